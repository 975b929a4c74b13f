package convert

import "context"

// ProviderKind is the closed set of conversion strategy variants.
type ProviderKind string

const (
	// KindStructural extracts text-native formats locally.
	KindStructural ProviderKind = "structural"
	// KindGenerative converts via a generative text provider.
	KindGenerative ProviderKind = "generative"
	// KindOCR handles scanned content via a remote OCR-capable provider.
	KindOCR ProviderKind = "ocr"
)

// Provider is one tier of the fallback chain.
//
// Convert returns the produced Markdown and a tool identifier (which may be
// more specific than Name, e.g. "gemini/gemini-2.0-flash-exp"). Errors are
// classified by the taxonomy in errors.go; anything else is treated as a
// provider error.
type Provider interface {
	Name() string
	Kind() ProviderKind
	Supports(f Format) bool
	Convert(ctx context.Context, path string) (content, tool string, err error)
}
