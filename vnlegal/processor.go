package vnlegal

import (
	"regexp"
	"strings"
)

// Process applies the ordered normalization pipeline for Vietnamese legal
// documents. Every rule is self-canceling once applied, so
// Process(Process(t)) == Process(t) for all t.
func Process(content string) string {
	content = removeBulletFromIntro(content)
	content = fixDefinitionLists(content)
	content = fixBoldHeaderSpacing(content)
	content = normalizeListMarkers(content)
	content = ensureTrailingNewline(content)
	return content
}

// Introductory connector clauses that lossy extractors render as list
// items. The bullet is an artifact; the clause introduces what follows.
var introBulletPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?m)^- (Đối với[^:\n]+:)`),
	regexp.MustCompile(`(?m)^- (Trường hợp[^:\n]+:)`),
	regexp.MustCompile(`(?m)^- (Riêng với[^:\n]+:)`),
}

func removeBulletFromIntro(content string) string {
	for _, pattern := range introBulletPatterns {
		content = pattern.ReplaceAllString(content, "$1")
	}
	return content
}

// definitionPattern matches a bare uppercase TERM: definition line that
// should be a definition list item.
var definitionPattern = regexp.MustCompile(`(?m)^([A-ZĐÀÁẢÃẠ][ A-ZĐÀÁẢÃẠ0-9]{2,20}):[ \t]*([^\n]+)$`)

func fixDefinitionLists(content string) string {
	return definitionPattern.ReplaceAllStringFunc(content, func(match string) string {
		sub := definitionPattern.FindStringSubmatch(match)
		key := strings.TrimSpace(sub[1])
		value := strings.TrimSpace(sub[2])
		return "- **" + key + ":** " + value
	})
}

// boldHeaderPattern matches a bold numbered header line: **N. Header**
var boldHeaderPattern = regexp.MustCompile(`^\*\*\d+\..*\*\*$`)

// fixBoldHeaderSpacing ensures exactly one blank line immediately follows
// a bold numbered header. Line-based so consecutive headers are all fixed
// in a single pass.
func fixBoldHeaderSpacing(content string) string {
	lines := strings.Split(content, "\n")
	out := make([]string, 0, len(lines))

	for i := 0; i < len(lines); i++ {
		out = append(out, lines[i])
		if !boldHeaderPattern.MatchString(strings.TrimSpace(lines[i])) {
			continue
		}
		// Collapse any run of blank lines after the header to exactly one,
		// provided more content follows.
		j := i + 1
		for j < len(lines) && strings.TrimSpace(lines[j]) == "" {
			j++
		}
		if j < len(lines) {
			out = append(out, "")
			i = j - 1
		}
	}
	return strings.Join(out, "\n")
}

// listMarkerPattern matches * or + used as a list marker.
var listMarkerPattern = regexp.MustCompile(`(?m)^([ \t]*)[+*]([ \t])`)

func normalizeListMarkers(content string) string {
	return listMarkerPattern.ReplaceAllString(content, "$1-$2")
}

// ensureTrailingNewline makes the document end in exactly one newline.
func ensureTrailingNewline(content string) string {
	if content == "" {
		return ""
	}
	return strings.TrimRight(content, " \t\n") + "\n"
}
