package convert

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lexviet/mdconvert/convcache"
	"github.com/lexviet/mdconvert/vnlegal"
)

// Recorder receives the outcome of every conversion chain. Implementations
// must never fail the pipeline; errors are theirs to swallow.
type Recorder interface {
	Record(ctx context.Context, res ConversionResult)
}

// Converter drives an ordered provider chain per document, scoring each
// attempt until one is accepted or the chain is exhausted.
//
// The provider set is immutable after construction: built once per run,
// passed by reference, never mutated.
type Converter struct {
	cfg       *Config
	scorer    QualityScorer
	providers map[string]Provider
	order     []Provider
	cache     *convcache.Cache
	recorder  Recorder
	logger    *slog.Logger
}

// Option configures a Converter.
type Option func(*Converter)

// WithCache attaches a conversion cache.
func WithCache(cache *convcache.Cache) Option {
	return func(c *Converter) { c.cache = cache }
}

// WithRecorder attaches an outcome recorder.
func WithRecorder(r Recorder) Option {
	return func(c *Converter) { c.recorder = r }
}

// New builds a Converter over an explicit provider list. Chain position
// follows provider kind (structural, generative, OCR), not list order.
func New(cfg *Config, providers []Provider, opts ...Option) *Converter {
	c := &Converter{
		cfg:       cfg,
		scorer:    NewQualityScorer(cfg.MinContentLength),
		providers: make(map[string]Provider, len(providers)),
		order:     providers,
		logger:    cfg.logger(),
	}
	for _, p := range providers {
		c.providers[p.Name()] = p
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// DefaultProviders returns the standard provider set for a config.
func DefaultProviders(cfg *Config) []Provider {
	return []Provider{
		NewStructuralExtractor(),
		NewGenerativeProvider(cfg),
		NewOCRProvider(cfg),
	}
}

// Provider returns a registered provider by name.
func (c *Converter) Provider(name string) (Provider, bool) {
	p, ok := c.providers[name]
	return p, ok
}

// chainFor selects and orders the providers for one document. Text-native
// formats try the structural extractor first; PDFs and images start at the
// generative tier and escalate to OCR.
func (c *Converter) chainFor(format Format) []Provider {
	var kinds []ProviderKind
	switch format {
	case FormatDocx, FormatHTML:
		kinds = []ProviderKind{KindStructural, KindGenerative, KindOCR}
	default:
		kinds = []ProviderKind{KindGenerative, KindOCR}
	}

	var chain []Provider
	for _, kind := range kinds {
		for _, p := range c.order {
			if p.Kind() == kind && p.Supports(format) {
				chain = append(chain, p)
			}
		}
	}
	return chain
}

// Convert produces the best achievable Markdown for one input.
//
// Attempts run strictly sequentially, each bounded by the configured
// timeout. The chain stops at the first attempt scoring at or above the
// high-quality threshold; exhaustion with any usable content yields a
// partial result; invalid input aborts immediately.
func (c *Converter) Convert(ctx context.Context, path string) ConversionResult {
	start := time.Now()

	finish := func(res ConversionResult) ConversionResult {
		res.Duration = time.Since(start)
		if c.recorder != nil {
			// A cancelled run is still an outcome; detach from the caller's
			// context so the record lands either way.
			c.recorder.Record(context.WithoutCancel(ctx), res)
		}
		return res
	}

	res := ConversionResult{SourcePath: path, Status: StatusFailed, ToolUsed: "none"}

	info, err := os.Stat(path)
	if err != nil {
		res.Error = invalidInputf("stat %s", path).Error()
		return finish(res)
	}
	if info.Size() == 0 {
		res.Error = invalidInputf("empty file %s", path).Error()
		return finish(res)
	}

	format, err := DetectFormat(path)
	if err != nil {
		res.Error = err.Error()
		return finish(res)
	}

	outputPath := c.outputPath(path)

	// A valid hit must also guarantee the on-disk output artifact exists.
	if c.cache != nil {
		if content, entry, ok := c.cache.Get(path); ok {
			if _, err := os.Stat(outputPath); err != nil {
				if werr := c.writeOutput(outputPath, content); werr != nil {
					c.logger.Warn("restore cached output", "path", outputPath, "error", werr)
				}
			}
			c.logger.Debug("cache hit", "path", path, "tool", entry.Tool)
			res.Status = StatusSuccess
			res.OutputPath = outputPath
			res.ToolUsed = entry.Tool
			res.Content = content
			res.QualityScore = entry.Score
			res.FromCache = true
			return finish(res)
		}
	}

	// Probe PDFs up front: a corrupt file is invalid input before any
	// provider is tried, and the scan verdict annotates the logs.
	if format == FormatPDF {
		probe, err := probePDF(path)
		if err != nil {
			res.Error = err.Error()
			return finish(res)
		}
		c.logger.Debug("pdf probe", "path", path, "pages", probe.PageCount, "scanned", probe.Scanned())
	}

	chain := c.chainFor(format)
	if len(chain) == 0 {
		res.Error = notAvailablef("no provider supports format %s", format).Error()
		return finish(res)
	}

	var (
		bestContent string
		bestTool    string
		bestScore   int
		accepted    bool
		attemptErrs []string
	)

	for i, p := range chain {
		if ctx.Err() != nil {
			attemptErrs = append(attemptErrs, ctx.Err().Error())
			break
		}

		attemptCtx, cancel := context.WithTimeout(ctx, c.cfg.AttemptTimeout())
		content, tool, err := p.Convert(attemptCtx, path)
		cancel()

		if err != nil {
			if !retryable(err) {
				c.logger.Warn("chain aborted", "path", path, "provider", p.Name(), "error", err)
				res.Error = err.Error()
				return finish(res)
			}
			c.logger.Debug("attempt failed, advancing chain",
				"path", path, "provider", p.Name(), "attempt", i+1, "error", err)
			attemptErrs = append(attemptErrs, fmt.Sprintf("%s: %v", p.Name(), err))
			continue
		}

		score := c.scorer.Score(content)
		c.logger.Debug("attempt scored", "path", path, "tool", tool, "score", score)

		if score > bestScore || bestContent == "" {
			bestContent, bestTool, bestScore = content, tool, score
		}
		if score >= c.cfg.HighQualityThreshold {
			accepted = true
			break
		}
		attemptErrs = append(attemptErrs, fmt.Sprintf("%s: score %d below threshold", tool, score))
	}

	if strings.TrimSpace(bestContent) == "" {
		res.Error = strings.Join(attemptErrs, "; ")
		return finish(res)
	}

	final := c.finalize(path, bestContent, bestTool)

	// Only accepted results are cached. A below-threshold conversion is
	// written out but re-attempted from scratch on the next run, so the
	// chain can try again with better providers or a fixed source.
	if accepted && c.cache != nil {
		c.cache.Put(path, final, bestTool, bestScore)
	}
	if err := c.writeOutput(outputPath, final); err != nil {
		c.logger.Warn("write output", "path", outputPath, "error", err)
	}

	res.OutputPath = outputPath
	res.ToolUsed = bestTool
	res.Content = final
	res.QualityScore = bestScore
	if accepted {
		res.Status = StatusSuccess
	} else {
		res.Status = StatusPartial
		res.Error = strings.Join(attemptErrs, "; ")
	}
	return finish(res)
}

// finalize normalizes detected legal documents and prepends frontmatter.
func (c *Converter) finalize(path, content, tool string) string {
	if vnlegal.IsLegalDocument(content) {
		c.logger.Debug("legal document detected",
			"path", path, "type", vnlegal.GetDocumentType(content))
		content = vnlegal.Process(content)
	}
	if c.cfg.EnableFrontmatter {
		content = addFrontmatter(content, path, tool)
	}
	return content
}

// outputPath derives the destination .md path for a source file:
// lowercased stem with spaces collapsed to underscores, beside the source
// or under the configured output directory.
func (c *Converter) outputPath(path string) string {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	name := strings.ReplaceAll(strings.ToLower(stem), " ", "_") + ".md"

	dir := c.cfg.OutputDir
	if dir == "" {
		dir = filepath.Dir(path)
	}
	return filepath.Join(dir, name)
}

func (c *Converter) writeOutput(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// addFrontmatter prepends a YAML frontmatter block, unless the content
// already carries one.
func addFrontmatter(content, path, tool string) string {
	if strings.HasPrefix(content, "---\n") {
		return content
	}
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	now := time.Now()
	fm := "---\n" +
		fmt.Sprintf("title: %q\n", stem) +
		fmt.Sprintf("date: %q\n", now.Format("2006-01-02")) +
		"status: \"converted\"\n" +
		fmt.Sprintf("source_file: %q\n", filepath.Base(path)) +
		fmt.Sprintf("conversion_tool: %q\n", tool) +
		fmt.Sprintf("conversion_date: %q\n", now.Format(time.RFC3339)) +
		"---\n\n"
	return fm + content
}
