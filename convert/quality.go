package convert

import (
	"regexp"
	"strings"
	"unicode"
)

// QualityScorer estimates conversion fidelity on a 0–100 scale. It is a
// pure function of the content: no I/O, no state, same input same score.
type QualityScorer struct {
	// MinContentLength forces a low score for anything shorter,
	// regardless of structural markers.
	MinContentLength int
}

// NewQualityScorer creates a scorer with the configured minimum length.
func NewQualityScorer(minContentLength int) QualityScorer {
	if minContentLength <= 0 {
		minContentLength = 100
	}
	return QualityScorer{MinContentLength: minContentLength}
}

var (
	tableRowPattern  = regexp.MustCompile(`(?m)^\|.*\|`)
	tableRulePattern = regexp.MustCompile(`\|\s*-{2,}`)
	listItemPattern  = regexp.MustCompile(`(?m)^\s*[-*+]\s`)
)

// Score returns a 0–100 quality estimate for candidate Markdown output.
func (s QualityScorer) Score(content string) int {
	runes := len([]rune(content))
	if runes < s.MinContentLength {
		// Too short to be a faithful conversion. Scale within [0, 40) so
		// it can never reach an acceptance threshold.
		if runes == 0 {
			return 0
		}
		return runes * 40 / s.MinContentLength
	}

	score := 50

	// Length bonuses: substantial documents convert to substantial output.
	if runes > 1000 {
		score += 10
	}
	if runes > 5000 {
		score += 10
	}

	// Structural markers.
	if strings.Contains(content, "\n## ") || strings.HasPrefix(content, "## ") {
		score += 10
	}
	if strings.Contains(content, "\n### ") || strings.HasPrefix(content, "### ") {
		score += 5
	}
	if tableRowPattern.MatchString(content) && tableRulePattern.MatchString(content) {
		score += 10
	}
	if listItemPattern.MatchString(content) {
		score += 5
	}

	// Paragraph breaks distinguish structured text from a single blob.
	if strings.Contains(content, "\n\n") {
		score += 5
	}

	// Garbled or binary-looking output is penalized sharply.
	pr := printableRatio(content)
	switch {
	case pr < 0.70:
		score -= 50
	case pr < 0.85:
		score -= 30
	case pr < 0.95:
		score -= 10
	}
	if wordlikeRatio(content) < 0.40 {
		score -= 20
	}

	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// printableRatio returns the ratio of printable characters in text.
// Excludes PUA U+E000-U+F8FF, control chars < U+0020 (except \n\r\t), U+FFFD.
func printableRatio(text string) float64 {
	if len(text) == 0 {
		return 1.0
	}
	total := 0
	printable := 0
	for _, r := range text {
		total++
		if isGarbageRune(r) {
			continue
		}
		if unicode.IsPrint(r) || r == '\n' || r == '\r' || r == '\t' {
			printable++
		}
	}
	if total == 0 {
		return 1.0
	}
	return float64(printable) / float64(total)
}

func isGarbageRune(r rune) bool {
	// Private Use Area
	if r >= 0xE000 && r <= 0xF8FF {
		return true
	}
	// Replacement character
	if r == 0xFFFD {
		return true
	}
	// Control chars except whitespace
	if r < 0x0020 && r != '\n' && r != '\r' && r != '\t' {
		return true
	}
	return false
}

// wordlikeRatio returns the ratio of word-like tokens (length 2-15) to
// total tokens. Character-by-character extraction failures score near zero.
func wordlikeRatio(text string) float64 {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return 0
	}
	wordlike := 0
	for _, f := range fields {
		n := len([]rune(f))
		if n >= 2 && n <= 15 {
			wordlike++
		}
	}
	return float64(wordlike) / float64(len(fields))
}
