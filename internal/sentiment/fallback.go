package sentiment

import (
	"context"
	"log/slog"
)

// FallbackAnalyzer tries Primary and, when it fails, Secondary.
type FallbackAnalyzer struct {
	Primary   Analyzer
	Secondary Analyzer
}

func (f FallbackAnalyzer) Name() string { return f.Primary.Name() }

func (f FallbackAnalyzer) Analyze(ctx context.Context, in Input) (Result, error) {
	r, err := f.Primary.Analyze(ctx, in)
	if err == nil || f.Secondary == nil || ctx.Err() != nil {
		return r, err
	}
	slog.Warn("Primary analyzer failed, falling back",
		"primary", f.Primary.Name(),
		"secondary", f.Secondary.Name(),
		"error", err)
	return f.Secondary.Analyze(ctx, in)
}
