package convert

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// buildDocx assembles a minimal DOCX container with the given document.xml body.
func buildDocx(t *testing.T, body string) string {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	f, err := w.Create("word/document.xml")
	if err != nil {
		t.Fatal(err)
	}
	doc := `<?xml version="1.0" encoding="UTF-8"?>` +
		`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` +
		body + `</w:body></w:document>`
	if _, err := f.Write([]byte(doc)); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(t.TempDir(), "doc.docx")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func docxPara(style, text string, list bool) string {
	var sb strings.Builder
	sb.WriteString("<w:p><w:pPr>")
	if style != "" {
		sb.WriteString(`<w:pStyle w:val="` + style + `"/>`)
	}
	if list {
		sb.WriteString("<w:numPr><w:ilvl w:val=\"0\"/></w:numPr>")
	}
	sb.WriteString("</w:pPr><w:r><w:t>" + text + "</w:t></w:r></w:p>")
	return sb.String()
}

func TestExtractDocx(t *testing.T) {
	// WHAT: Headings, list items and plain paragraphs map to their Markdown
	// forms with styles driving the heading level.
	path := buildDocx(t,
		docxPara("Heading1", "Quy chế làm việc", false)+
			docxPara("Heading2", "Phạm vi áp dụng", false)+
			docxPara("", "Đoạn văn bản thường.", false)+
			docxPara("", "mục thứ nhất", true)+
			docxPara("", "mục thứ hai", true))

	e := NewStructuralExtractor()
	content, tool, err := e.Convert(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	if tool != "extract" {
		t.Errorf("tool = %q, want extract", tool)
	}
	for _, want := range []string{
		"# Quy chế làm việc\n",
		"## Phạm vi áp dụng\n",
		"Đoạn văn bản thường.\n",
		"- mục thứ nhất\n",
		"- mục thứ hai\n",
	} {
		if !strings.Contains(content, want) {
			t.Errorf("missing %q in:\n%s", want, content)
		}
	}
}

func TestExtractDocxEmptyAndCorrupt(t *testing.T) {
	// WHAT: A DOCX with no text is a provider error; a non-zip file is
	// invalid input.
	// WHY: The distinction decides whether the chain advances or aborts.
	e := NewStructuralExtractor()

	empty := buildDocx(t, "<w:p></w:p>")
	_, _, err := e.Convert(context.Background(), empty)
	if !errors.Is(err, ErrProvider) {
		t.Errorf("empty docx: err = %v, want ErrProvider", err)
	}

	notZip := filepath.Join(t.TempDir(), "fake.docx")
	os.WriteFile(notZip, []byte("this is not a zip archive"), 0o644)
	_, _, err = e.Convert(context.Background(), notZip)
	if !errors.Is(err, ErrInvalidInput) {
		t.Errorf("corrupt docx: err = %v, want ErrInvalidInput", err)
	}
}

func TestExtractHTML(t *testing.T) {
	// WHAT: Sanitized HTML renders as Markdown with the document title as an
	// H1 and scripts stripped.
	html := `<!DOCTYPE html>
<html><head><title>Báo cáo thường niên</title><script>alert("x")</script></head>
<body>
<h2>Kết quả</h2>
<p>Doanh thu tăng <strong>12%</strong> so với cùng kỳ.</p>
<ul><li>chỉ tiêu một</li><li>chỉ tiêu hai</li></ul>
</body></html>`
	path := filepath.Join(t.TempDir(), "report.html")
	os.WriteFile(path, []byte(html), 0o644)

	e := NewStructuralExtractor()
	content, _, err := e.Convert(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(content, "# Báo cáo thường niên\n") {
		t.Errorf("title heading missing, got %q", content)
	}
	if !strings.Contains(content, "## Kết quả") {
		t.Errorf("h2 not converted: %q", content)
	}
	if !strings.Contains(content, "**12%**") {
		t.Errorf("emphasis not converted: %q", content)
	}
	if !strings.Contains(content, "- chỉ tiêu một") {
		t.Errorf("list not converted: %q", content)
	}
	if strings.Contains(content, "alert(") {
		t.Error("script content must be stripped")
	}
}

func TestExtractUnsupportedFormat(t *testing.T) {
	// WHAT: The structural tier declines PDFs and images outright.
	e := NewStructuralExtractor()
	if e.Supports(FormatPDF) || e.Supports(FormatImage) {
		t.Error("structural extractor must not claim PDF or image support")
	}
	if !e.Supports(FormatDocx) || !e.Supports(FormatHTML) {
		t.Error("structural extractor must support docx and html")
	}
}

func TestDocxHeadingLevel(t *testing.T) {
	tests := []struct {
		style string
		want  int
	}{
		{"Heading1", 1},
		{"heading3", 3},
		{"Title", 1},
		{"Subtitle", 2},
		{"Titre2", 2},
		{"Normal", 0},
		{"Heading9", 0},
		{"", 0},
	}
	for _, tt := range tests {
		if got := docxHeadingLevel(tt.style); got != tt.want {
			t.Errorf("docxHeadingLevel(%q) = %d, want %d", tt.style, got, tt.want)
		}
	}
}
