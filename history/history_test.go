package history

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/lexviet/mdconvert/convert"
)

func openTestLog(t *testing.T) *Log {
	t.Helper()
	l, err := Open(filepath.Join(t.TempDir(), "history.db"), slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { l.Close() })
	return l
}

func TestRecordAndStats(t *testing.T) {
	// WHAT: Recorded outcomes aggregate correctly by status, tool and cache.
	l := openTestLog(t)
	ctx := context.Background()

	outcomes := []convert.ConversionResult{
		{SourcePath: "a.pdf", Status: convert.StatusSuccess, ToolUsed: "gemini/flash", QualityScore: 97, Duration: 3 * time.Second},
		{SourcePath: "b.pdf", Status: convert.StatusSuccess, ToolUsed: "gemini/flash", QualityScore: 96, Duration: time.Second, FromCache: true},
		{SourcePath: "c.docx", Status: convert.StatusPartial, ToolUsed: "extract", QualityScore: 60, Duration: time.Second},
		{SourcePath: "d.png", Status: convert.StatusFailed, ToolUsed: "none", Error: "all providers failed"},
	}
	for _, res := range outcomes {
		l.Record(ctx, res)
	}

	s, err := l.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if s.Total != 4 {
		t.Errorf("Total = %d, want 4", s.Total)
	}
	if s.ByStatus["success"] != 2 || s.ByStatus["partial"] != 1 || s.ByStatus["failed"] != 1 {
		t.Errorf("ByStatus = %v", s.ByStatus)
	}
	if s.ByTool["gemini/flash"] != 2 {
		t.Errorf("ByTool = %v", s.ByTool)
	}
	if s.CacheHits != 1 {
		t.Errorf("CacheHits = %d, want 1", s.CacheHits)
	}
}

func TestStatsEmptyLog(t *testing.T) {
	// WHAT: A fresh database reports zeroed stats, not an error.
	l := openTestLog(t)
	s, err := l.Stats(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if s.Total != 0 || len(s.ByStatus) != 0 {
		t.Errorf("stats = %+v, want empty", s)
	}
}

func TestOpenIdempotent(t *testing.T) {
	// WHAT: Reopening an existing database preserves its rows.
	// WHY: The log accumulates across runs; the schema apply must not reset it.
	dir := t.TempDir()
	path := filepath.Join(dir, "history.db")
	logger := slog.New(slog.DiscardHandler)

	l1, err := Open(path, logger)
	if err != nil {
		t.Fatal(err)
	}
	l1.Record(context.Background(), convert.ConversionResult{
		SourcePath: "x.pdf", Status: convert.StatusSuccess, ToolUsed: "ocr",
	})
	l1.Close()

	l2, err := Open(path, logger)
	if err != nil {
		t.Fatal(err)
	}
	defer l2.Close()

	s, err := l2.Stats(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if s.Total != 1 {
		t.Errorf("Total after reopen = %d, want 1", s.Total)
	}
}
