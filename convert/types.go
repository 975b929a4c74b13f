package convert

import (
	"path/filepath"
	"strings"
	"time"
)

// Format identifies a source document type.
type Format string

const (
	FormatPDF   Format = "pdf"
	FormatDocx  Format = "docx"
	FormatHTML  Format = "html"
	FormatImage Format = "image"
)

// Status is the terminal outcome of a conversion chain.
type Status string

const (
	// StatusSuccess: an attempt met the high-quality threshold.
	StatusSuccess Status = "success"
	// StatusPartial: chain exhausted but at least one attempt produced content.
	StatusPartial Status = "partial"
	// StatusFailed: every attempt errored or produced unusable content.
	StatusFailed Status = "failed"
)

// ConversionResult is the outcome of one conversion chain for one document.
// Immutable once returned.
type ConversionResult struct {
	SourcePath   string        `json:"source"`
	OutputPath   string        `json:"output,omitempty"`
	Status       Status        `json:"status"`
	ToolUsed     string        `json:"tool"`
	Content      string        `json:"-"`
	QualityScore int           `json:"quality_score"`
	Duration     time.Duration `json:"duration"`
	Error        string        `json:"error,omitempty"`
	FromCache    bool          `json:"from_cache,omitempty"`
}

// IsSuccess reports whether the chain met the quality threshold.
func (r ConversionResult) IsSuccess() bool { return r.Status == StatusSuccess }

// DetectFormat returns the document format for a file path based on its
// extension, or an error wrapping ErrInvalidInput for unsupported ones.
func DetectFormat(path string) (Format, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".pdf":
		return FormatPDF, nil
	case ".docx", ".doc":
		return FormatDocx, nil
	case ".html", ".htm":
		return FormatHTML, nil
	case ".png", ".jpg", ".jpeg", ".gif", ".webp":
		return FormatImage, nil
	default:
		return "", invalidInputf("unsupported format: %q", ext)
	}
}

// SupportedExtensions returns every extension the pipeline accepts.
func SupportedExtensions() []string {
	return []string{".pdf", ".docx", ".doc", ".html", ".htm", ".png", ".jpg", ".jpeg", ".gif", ".webp"}
}
