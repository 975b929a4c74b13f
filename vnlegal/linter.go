package vnlegal

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Issue is one structural defect found by the linter. Never persisted.
type Issue struct {
	Rule     string `json:"rule"`
	Line     int    `json:"line"`
	Message  string `json:"message"`
	Severity string `json:"severity"`
}

var (
	// VN001: two or more point markers (a), b), ...) merged on one line.
	vn001Detect = regexp.MustCompile(`^[a-eđ]\).*[ \t][b-eđ]\)`)
	vn001Split  = regexp.MustCompile(`[ \t]+([b-eđ]\))`)

	// VN002: repeated "1." items with no "2." anywhere — a suspected
	// numbering reset. Ambiguous, so report-only.
	vn002One = regexp.MustCompile(`(?m)^1\.\s`)
	vn002Two = regexp.MustCompile(`(?m)^2\.\s`)

	// VN003: an Điều heading with no blank line before it.
	vn003Heading = regexp.MustCompile(`^###\s+Điều\s+\d+`)

	// VN004: a point item carrying a spurious list bullet.
	vn004Detect = regexp.MustCompile(`^-\s*[a-eđ]\)`)
	vn004Bullet = regexp.MustCompile(`^-\s*`)
)

// vn002Threshold is how many "1." items must repeat before the numbering
// looks like a reset rather than a short list.
const vn002Threshold = 5

// Lint scans Markdown against rules VN001–VN004 and returns the issues
// found, ordered by ascending line number.
func Lint(content string) []Issue {
	_, issues := run(content, false)
	return issues
}

// LintFix scans and applies every auto-fixable rule in a single
// deterministic pass. VN002 is reported but never fixed. Line numbers in
// the returned issues refer to the input text.
func LintFix(content string) (string, []Issue) {
	return run(content, true)
}

func run(content string, fix bool) (string, []Issue) {
	var issues []Issue

	if n := len(vn002One.FindAllString(content, -1)); n > vn002Threshold && !vn002Two.MatchString(content) {
		issues = append(issues, Issue{
			Rule:     "VN002",
			Line:     1,
			Message:  fmt.Sprintf("Suspicious numbering: %dx '1.' found but no '2.'. Possible reset issue.", n),
			Severity: "warning",
		})
	}

	lines := strings.Split(content, "\n")
	out := make([]string, 0, len(lines))

	for i, line := range lines {
		n := i + 1

		if vn003Heading.MatchString(line) && i > 0 && strings.TrimSpace(lines[i-1]) != "" {
			issues = append(issues, Issue{
				Rule:     "VN003",
				Line:     n,
				Message:  "Missing blank line before 'Điều' header.",
				Severity: "warning",
			})
			if fix {
				out = append(out, "")
			}
		}

		if vn004Detect.MatchString(line) {
			issues = append(issues, Issue{
				Rule:     "VN004",
				Line:     n,
				Message:  "Incorrect 'Điểm' format. Use 'a)' instead of '- a)'.",
				Severity: "warning",
			})
			if fix {
				line = vn004Bullet.ReplaceAllString(line, "")
			}
		}

		if vn001Detect.MatchString(line) {
			issues = append(issues, Issue{
				Rule:     "VN001",
				Line:     n,
				Message:  "Merged list items detected. Items a), b), c) should be on separate lines.",
				Severity: "warning",
			})
			if fix {
				line = vn001Split.ReplaceAllString(line, "\n$1")
			}
		}

		out = append(out, line)
	}

	sort.SliceStable(issues, func(a, b int) bool { return issues[a].Line < issues[b].Line })

	if !fix {
		return content, issues
	}
	return strings.Join(out, "\n"), issues
}
