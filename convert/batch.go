package convert

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// ConvertAll converts many documents concurrently, bounded by the
// configured worker count. Within one document the chain stays strictly
// sequential; across documents no ordering is guaranteed, but the returned
// slice is indexed like the input.
//
// Batch runs have partial-failure semantics: one outcome per input,
// continuing past individual failures. Only context cancellation stops
// the run early, and even then every started document gets a result.
func (c *Converter) ConvertAll(ctx context.Context, paths []string) []ConversionResult {
	results := make([]ConversionResult, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.Workers)

	for i, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				results[i] = ConversionResult{
					SourcePath: path,
					Status:     StatusFailed,
					ToolUsed:   "none",
					Error:      err.Error(),
				}
				return nil
			}
			results[i] = c.Convert(gctx, path)
			return nil
		})
	}

	g.Wait()
	return results
}
