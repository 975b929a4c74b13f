package convert

import (
	"os"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// PDFProbe summarizes a PDF's structure ahead of conversion. It routes the
// fallback chain: image-only PDFs go straight to providers that can read
// pixels, and a corrupt PDF aborts the chain before any provider is paid for.
type PDFProbe struct {
	PageCount       int
	HasImageStreams bool
	HasFonts        bool
}

// Scanned reports whether the PDF is likely a scan: image streams present
// and no embedded fonts to carry real text.
func (p *PDFProbe) Scanned() bool {
	return p.HasImageStreams && !p.HasFonts
}

// probePDF opens and validates a PDF and inspects its object table.
// A file pdfcpu cannot validate is invalid input, not a provider failure.
func probePDF(path string) (*PDFProbe, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, invalidInputf("probe: open %s", path)
	}
	defer f.Close()

	conf := model.NewDefaultConfiguration()
	ctx, err := api.ReadValidateAndOptimize(f, conf)
	if err != nil {
		return nil, invalidInputf("probe: pdfcpu read %s: %v", path, err)
	}

	probe := &PDFProbe{
		PageCount:       ctx.PageCount,
		HasImageStreams: detectImageStreams(ctx),
	}
	if ctx.Optimize != nil && len(ctx.Optimize.FontObjects) > 0 {
		probe.HasFonts = true
	}
	return probe, nil
}

// detectImageStreams checks if the PDF contains image XObjects.
func detectImageStreams(ctx *model.Context) bool {
	if ctx.Optimize != nil {
		for pageNr := 1; pageNr <= ctx.PageCount; pageNr++ {
			objNrs := pdfcpu.ImageObjNrs(ctx, pageNr)
			if len(objNrs) > 0 {
				return true
			}
		}
	}
	// Fallback: scan XRefTable for image subtype objects.
	for _, entry := range ctx.Table {
		if entry == nil || entry.Free || entry.Compressed {
			continue
		}
		sd, ok := entry.Object.(types.StreamDict)
		if !ok {
			continue
		}
		if subtype, found := sd.Find("Subtype"); found {
			if name, isName := subtype.(types.Name); isName && name == "Image" {
				return true
			}
		}
	}
	return false
}
