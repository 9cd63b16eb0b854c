package app

import (
	"bufio"
	"context"
	"fmt"
	"os"

	"github.com/vk/etp/internal/align"
	"github.com/vk/etp/internal/ctxlog"
	"github.com/vk/etp/internal/logparse"
	"github.com/vk/etp/internal/render"
)

// Run reads the log, aligns its trace and writes the annotated listing.
// Whatever was written before a failure stays written.
func (a *App) Run(ctx context.Context) (err error) {
	ctx = ctxlog.With(ctxlog.WithLogger(ctx, a.logger), "log", a.config.LogPath)
	a.logger.Debug("App.Run method started.", "log", a.config.LogPath, "entry", a.config.Entry)

	data, err := os.ReadFile(a.config.LogPath)
	if err != nil {
		return fmt.Errorf("failed to read log: %w", err)
	}

	parsed, err := logparse.Parse(string(data), a.policy.Grammar)
	if err != nil {
		return fmt.Errorf("failed to parse log %s: %w", a.config.LogPath, err)
	}
	a.logger.Debug("Log parsed.",
		"modules", len(parsed.Modules),
		"blocks", parsed.Blocks.Len(),
		"events", len(parsed.Events),
	)

	out := bufio.NewWriter(a.outW)
	defer func() {
		if ferr := out.Flush(); ferr != nil && err == nil {
			err = fmt.Errorf("failed to write trace: %w", ferr)
		}
	}()

	printer := render.NewPrinter(out, a.policy.Layout)
	engine := align.New(parsed.Blocks, parsed.Events, a.policy.Alignment, printer)

	res, err := engine.Run(ctx, a.config.Entry)
	if err != nil {
		return fmt.Errorf("alignment failed: %w", err)
	}
	if err := printer.Err(); err != nil {
		return fmt.Errorf("failed to write trace: %w", err)
	}

	a.logger.Info("Trace aligned.",
		"entry", res.Entry,
		"reason", res.Reason.String(),
		"instructions", res.Instructions,
		"calls", res.Calls,
		"skipped_calls", res.SkippedCalls,
		"branches", res.Branches,
		"memory_warnings", res.MemoryWarnings,
	)
	if res.Reason == align.ReasonTraceExhausted {
		a.logger.Warn("Trace ended before the entry procedure returned.", "entry", res.Entry, "events", len(parsed.Events))
	}
	return nil
}
