// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/relaunch/relaunch/internal/transfer"
	"github.com/relaunch/relaunch/internal/update"
)

const progressInterval = 200 * time.Millisecond

// consoleReporter prints status events as styled lines and download
// progress as a single line that is rewritten in place on a terminal.
type consoleReporter struct {
	mu       sync.Mutex
	w        io.Writer
	tty      bool
	now      func() time.Time
	last     time.Time
	lineOpen bool
}

var _ update.Reporter = (*consoleReporter)(nil)

func newConsoleReporter(w io.Writer) *consoleReporter {
	tty := false
	if f, ok := w.(*os.File); ok {
		tty = term.IsTerminal(int(f.Fd()))
	}
	return &consoleReporter{w: w, tty: tty, now: time.Now}
}

// Status implements update.Reporter.
func (r *consoleReporter) Status(s update.Status, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.closeLine()
	fmt.Fprintln(r.w, statusStyle(s).Render(message))
}

// Progress implements update.Reporter. Updates are throttled except for the
// first and the final one.
func (r *consoleReporter) Progress(p transfer.Progress) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if !p.Done() && !r.last.IsZero() && now.Sub(r.last) < progressInterval {
		return
	}
	r.last = now

	line := formatProgress(p)
	if !r.tty {
		fmt.Fprintln(r.w, line)
		return
	}

	fmt.Fprintf(r.w, "\r%s\033[K", line)
	r.lineOpen = true
	if p.Done() {
		r.closeLine()
	}
}

func (r *consoleReporter) closeLine() {
	if r.lineOpen {
		fmt.Fprintln(r.w)
		r.lineOpen = false
	}
}

func statusStyle(s update.Status) lipgloss.Style {
	switch s {
	case update.StatusCheckFailed:
		return WarningStyle
	case update.StatusUpToDate, update.StatusDone:
		return SuccessStyle
	case update.StatusUpdateNeeded:
		return TitleStyle
	default:
		return SubtitleStyle
	}
}

// formatProgress renders p as "12.5 / 40.0 MB  1234 kBit/s  ETA 17 s".
func formatProgress(p transfer.Progress) string {
	const mb = 1 << 20

	var sb strings.Builder
	fmt.Fprintf(&sb, "%.1f / %.1f MB", float64(p.BytesTransferred)/mb, float64(p.TotalBytes)/mb)
	if p.TotalBytes > 0 {
		fmt.Fprintf(&sb, " (%3.0f%%)", p.Fraction()*100)
	}

	switch {
	case p.Done():
		sb.WriteString("  done")
	case p.ETAKnown:
		fmt.Fprintf(&sb, "  %.0f kBit/s  ETA %d s", p.KBitPerSecond(), int64(p.ETA.Round(time.Second)/time.Second))
	default:
		sb.WriteString("  estimating...")
	}
	return sb.String()
}
