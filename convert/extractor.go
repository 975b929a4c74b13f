package convert

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"os"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// StructuralExtractor converts text-native formats (DOCX, HTML) locally,
// without any network provider. It is the first tier for those formats.
type StructuralExtractor struct {
	md       *converter.Converter
	sanitize *bluemonday.Policy
}

// NewStructuralExtractor creates the extractor with its Markdown converter
// and HTML sanitization policy.
func NewStructuralExtractor() *StructuralExtractor {
	return &StructuralExtractor{
		md: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(),
			),
		),
		sanitize: bluemonday.UGCPolicy(),
	}
}

func (e *StructuralExtractor) Name() string       { return "extract" }
func (e *StructuralExtractor) Kind() ProviderKind { return KindStructural }

func (e *StructuralExtractor) Supports(f Format) bool {
	return f == FormatDocx || f == FormatHTML
}

// Convert extracts Markdown from a DOCX or HTML file.
func (e *StructuralExtractor) Convert(ctx context.Context, path string) (string, string, error) {
	if err := ctx.Err(); err != nil {
		return "", "", err
	}

	format, err := DetectFormat(path)
	if err != nil {
		return "", "", err
	}

	var content string
	switch format {
	case FormatDocx:
		content, err = e.convertDocx(path)
	case FormatHTML:
		content, err = e.convertHTML(path)
	default:
		return "", "", providerErrf("extract: no structural parser for %s", format)
	}
	if err != nil {
		return "", "", err
	}
	return content, e.Name(), nil
}

// convertDocx renders word/document.xml paragraphs as Markdown.
func (e *StructuralExtractor) convertDocx(path string) (string, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return "", invalidInputf("extract: open docx %s", path)
	}
	defer r.Close()

	var docFile *zip.File
	for _, f := range r.File {
		if f.Name == "word/document.xml" {
			docFile = f
			break
		}
	}
	if docFile == nil {
		return "", invalidInputf("extract: word/document.xml not found in %s", path)
	}

	rc, err := docFile.Open()
	if err != nil {
		return "", providerErrf("extract: open document.xml: %v", err)
	}
	defer rc.Close()

	decoder := xml.NewDecoder(rc)
	var sb strings.Builder
	var currentText strings.Builder
	var inParagraph bool
	var paragraphStyle string
	var isListItem bool

	flush := func() {
		text := strings.TrimSpace(currentText.String())
		if text == "" {
			return
		}
		if sb.Len() > 0 {
			sb.WriteByte('\n')
		}
		switch {
		case docxHeadingLevel(paragraphStyle) > 0:
			level := docxHeadingLevel(paragraphStyle)
			sb.WriteString(strings.Repeat("#", level) + " " + text + "\n")
		case isListItem:
			sb.WriteString("- " + text + "\n")
		default:
			sb.WriteString(text + "\n")
		}
	}

	for {
		tok, err := decoder.Token()
		if err != nil {
			break
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch {
			case t.Name.Local == "p":
				inParagraph = true
				currentText.Reset()
				paragraphStyle = ""
				isListItem = false
			case t.Name.Local == "pStyle" && inParagraph:
				for _, attr := range t.Attr {
					if attr.Name.Local == "val" {
						paragraphStyle = attr.Value
					}
				}
			case t.Name.Local == "numPr" && inParagraph:
				isListItem = true
			}

		case xml.CharData:
			if inParagraph {
				currentText.Write(t)
			}

		case xml.EndElement:
			if t.Name.Local == "p" && inParagraph {
				inParagraph = false
				flush()
			}
		}
	}

	content := sb.String()
	if strings.TrimSpace(content) == "" {
		return "", providerErrf("extract: no text content in %s", path)
	}
	return content, nil
}

// convertHTML sanitizes the document and renders it as Markdown.
func (e *StructuralExtractor) convertHTML(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", invalidInputf("extract: read %s", path)
	}

	clean := e.sanitize.SanitizeBytes(data)
	content, err := e.md.ConvertString(string(clean))
	if err != nil {
		return "", providerErrf("extract: html to markdown: %v", err)
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return "", providerErrf("extract: no text content in %s", path)
	}

	// The sanitizer drops <head>, so pull the title from the raw document.
	if title := htmlTitle(data); title != "" && !strings.HasPrefix(content, "# ") {
		content = "# " + title + "\n\n" + content
	}
	return content + "\n", nil
}

// htmlTitle extracts the <title> text from a raw HTML document.
func htmlTitle(data []byte) string {
	doc, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return ""
	}
	var find func(*html.Node) string
	find = func(n *html.Node) string {
		if n.Type == html.ElementNode && n.DataAtom == atom.Title {
			if n.FirstChild != nil {
				return strings.TrimSpace(n.FirstChild.Data)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if t := find(c); t != "" {
				return t
			}
		}
		return ""
	}
	return find(doc)
}

// docxHeadingLevel extracts the heading level from a paragraph style name.
// e.g. "Heading1" → 1, "Title" → 1, "Subtitle" → 2.
func docxHeadingLevel(style string) int {
	lower := strings.ToLower(style)

	if lower == "title" {
		return 1
	}
	if lower == "subtitle" {
		return 2
	}

	for _, prefix := range []string{"heading", "titre"} {
		if strings.HasPrefix(lower, prefix) {
			rest := lower[len(prefix):]
			if len(rest) == 1 && rest[0] >= '1' && rest[0] <= '6' {
				return int(rest[0] - '0')
			}
		}
	}
	return 0
}
