package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/ghfetch/internal/adapters/driving/status"
	"github.com/custodia-labs/ghfetch/internal/core/domain"
)

const (
	progressInterval = 500 * time.Millisecond

	// plainEvery is how many ticks pass between lines when output is not a terminal.
	plainEvery = 20
)

var (
	phaseStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("86")).Bold(true)
	countStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
)

// runWithProgress runs fn while redrawing a progress line from source every
// 500ms. When a status address is configured the same snapshot is served
// over HTTP for the duration of the run.
func runWithProgress(
	ctx context.Context,
	cmd *cobra.Command,
	name string,
	source status.Source,
	svc *Services,
	fn func(ctx context.Context) error,
) error {
	if cfg != nil && cfg.StatusAddr != "" {
		srvCtx, stop := context.WithCancel(ctx)
		defer stop()
		srv := status.NewServer(name, source, svc.stats)
		if _, err := srv.Start(srvCtx, cfg.StatusAddr); err != nil {
			return err
		}
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- fn(ctx)
	}()

	w := cmd.ErrOrStderr()
	tty := isTerminal(w)
	every := 1
	if !tty {
		every = plainEvery
	}

	ticker := time.NewTicker(progressInterval)
	defer ticker.Stop()

	ticks := 0
	last := ""
	for {
		select {
		case err := <-errCh:
			if tty && last != "" {
				fmt.Fprintf(w, "\r%s\n", formatProgress(source(), 0))
			}
			return err
		case <-ticker.C:
			ticks++
			if ticks%every != 0 {
				continue
			}
			line := formatProgress(source(), rateLimitWait(svc.stats()))
			if line == last {
				continue
			}
			if tty {
				// Pad to clear a longer previous line.
				fmt.Fprintf(w, "\r%-*s", lipgloss.Width(last), line)
			} else {
				fmt.Fprintln(w, line)
			}
			last = line
		}
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// rateLimitWait returns the longest remaining rate-limit pause across clients.
func rateLimitWait(stats map[string]domain.ClientStats) time.Duration {
	var wait time.Duration
	for _, st := range stats {
		wait = max(wait, st.RateLimitWait)
	}
	return wait
}

// formatProgress renders a snapshot as one line. A non-zero wait is shown as
// a rate-limit pause.
func formatProgress(snap domain.ProgressSnapshot, wait time.Duration) string {
	var b strings.Builder
	b.WriteString(phaseStyle.Render(snap.Phase))
	b.WriteString(" ")
	if snap.Total > 0 {
		pct := float64(snap.Completed) / float64(snap.Total) * 100
		b.WriteString(countStyle.Render(fmt.Sprintf("%d/%d (%.1f%%)", snap.Completed, snap.Total, pct)))
	} else {
		b.WriteString(countStyle.Render(fmt.Sprintf("%d", snap.Completed)))
	}

	s := snap.Stats
	parts := []string{fmt.Sprintf("%d fetched", s.Fetched)}
	if s.Skipped > 0 {
		parts = append(parts, fmt.Sprintf("%d skipped", s.Skipped))
	}
	if s.NotFound > 0 {
		parts = append(parts, fmt.Sprintf("%d not found", s.NotFound))
	}
	if s.Queries > 0 {
		parts = append(parts, fmt.Sprintf("%d queries", s.Queries))
	}
	b.WriteString(" ")
	b.WriteString(dimStyle.Render(strings.Join(parts, ", ")))
	if s.Errors > 0 {
		b.WriteString(" ")
		b.WriteString(warnStyle.Render(fmt.Sprintf("%d errors", s.Errors)))
	}
	if wait > 0 {
		b.WriteString(" ")
		b.WriteString(warnStyle.Render(fmt.Sprintf("rate limited (%ds)", int(wait.Round(time.Second)/time.Second))))
	}
	return b.String()
}

// printClientStats prints request counters for every client that made a request.
func printClientStats(cmd *cobra.Command, stats map[string]domain.ClientStats) {
	names := make([]string, 0, len(stats))
	for name := range stats {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		st := stats[name]
		if st.Requests == 0 {
			continue
		}
		cmd.Printf("%s: %d requests, %d retries, %d rate limited, avg %s\n",
			name, st.Requests, st.Retries, st.RateLimitHits, st.AverageTime().Round(time.Millisecond))
	}
}
