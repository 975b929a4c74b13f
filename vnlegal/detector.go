// Package vnlegal detects and normalizes the structure of Vietnamese legal
// instruments in Markdown: Điều (article), Chương (chapter), Mục (section),
// Khoản (clause) and Điểm (point) markup, plus the lint rules VN001–VN004.
//
// Everything in this package is a pure, deterministic text transform; no
// function here performs I/O.
package vnlegal

import (
	"regexp"
	"strings"
)

// DocumentType classifies a Vietnamese legal instrument.
type DocumentType string

const (
	TypeQuyChe    DocumentType = "quy_che"    // internal regulation
	TypeNghiDinh  DocumentType = "nghi_dinh"  // government decree
	TypeThongTu   DocumentType = "thong_tu"   // ministerial circular
	TypeQuyetDinh DocumentType = "quyet_dinh" // decision
	TypeUnknown   DocumentType = "unknown"
)

// legalPatterns are the canonical structural tokens of Vietnamese legal
// instruments. Detection counts how many distinct kinds appear.
var legalPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)Điều\s+\d+`),
	regexp.MustCompile(`(?i)Chương\s+[IVXLC]+`),
	regexp.MustCompile(`(?i)Mục\s+\d+`),
	regexp.MustCompile(`(?i)Khoản\s+\d+`),
	regexp.MustCompile(`(?i)Điểm\s+[a-zđ]`),
	regexp.MustCompile(`(?i)Quy\s+chế`),
	regexp.MustCompile(`(?i)Nghị\s+định`),
	regexp.MustCompile(`(?i)Thông\s+tư`),
	regexp.MustCompile(`(?i)Quyết\s+định`),
	regexp.MustCompile(`(?i)Phụ\s+lục`),
}

// detectThreshold is the number of distinct marker kinds that must appear
// before a document counts as a legal instrument.
const detectThreshold = 2

// IsLegalDocument reports whether the text looks like a Vietnamese legal
// instrument, based on the density of canonical structural tokens.
func IsLegalDocument(content string) bool {
	if content == "" {
		return false
	}
	matches := 0
	for _, pattern := range legalPatterns {
		if pattern.MatchString(content) {
			matches++
			if matches >= detectThreshold {
				return true
			}
		}
	}
	return false
}

// GetDocumentType determines the instrument subtype by keyword matching,
// defaulting to TypeUnknown.
func GetDocumentType(content string) DocumentType {
	lower := strings.ToLower(content)

	switch {
	case strings.Contains(lower, "quy chế"):
		return TypeQuyChe
	case strings.Contains(lower, "nghị định"):
		return TypeNghiDinh
	case strings.Contains(lower, "thông tư"):
		return TypeThongTu
	case strings.Contains(lower, "quyết định"):
		return TypeQuyetDinh
	}
	return TypeUnknown
}
