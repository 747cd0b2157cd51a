package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/Veraticus/the-paperwork-must-flow/internal/importer"
)

// StatusFunc reports the current processing state of a session.
type StatusFunc func(ctx context.Context) (*importer.StatusView, error)

// WaitForSession polls status until the session reaches a terminal state,
// showing the current processing stage on a spinner.
func WaitForSession(ctx context.Context, w io.Writer, status StatusFunc, interval time.Duration) (*importer.StatusView, error) {
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}

	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(w),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetDescription("[cyan]Processing statement...[reset]"),
		progressbar.OptionClearOnFinish(),
	)
	defer func() {
		if err := bar.Finish(); err != nil {
			slog.Debug("Failed to finish spinner", "error", err)
		}
	}()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		view, err := status(ctx)
		if err != nil {
			return nil, err
		}
		if view.Status.IsTerminal() {
			return view, nil
		}
		bar.Describe(fmt.Sprintf("[cyan]Processing statement: %s[reset]", view.ProcessingStage))
		if err := bar.Add(1); err != nil {
			slog.Debug("Failed to update spinner", "error", err)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
