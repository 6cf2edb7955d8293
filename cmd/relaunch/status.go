// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/relaunch/relaunch/internal/transfer"
	"github.com/relaunch/relaunch/internal/update"
)

type (
	// recordSource reads and watches the last outcome record.
	recordSource interface {
		Read() (update.Record, error)
		Watch(ctx context.Context, since time.Time) (update.Record, error)
	}

	// statusParams bundles the collaborators of runStatus.
	statusParams struct {
		stdout      io.Writer
		installed   update.InstalledStore
		records     recordSource
		destination string
		wait        bool
		timeout     time.Duration
		now         func() time.Time
	}
)

func newStatusCommand(app *App) *cobra.Command {
	var (
		wait    bool
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the installed version, pending downloads and the last run",
		Long: `Show the installed version, any partial download left by an interrupted
run and the outcome of the most recent run.

With --wait the command blocks until a run started elsewhere (for example
by a launcher script) records its outcome.`,
		Example: `  relaunch status
  relaunch status --wait --timeout 2m`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p := statusParams{
				stdout:      cmd.OutOrStdout(),
				installed:   app.versionFile(),
				records:     app.resultStore(),
				destination: app.cfg.ArtifactPath(),
				wait:        wait,
				timeout:     timeout,
				now:         time.Now,
			}
			if err := runStatus(cmd.Context(), p); err != nil {
				return app.fail(cmd.ErrOrStderr(), err)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&wait, "wait", false, "wait for the next run to record its outcome")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Minute, "give up waiting after this long (0 waits forever)")

	return cmd
}

// runStatus prints the local update state. With wait it first blocks for a
// record newer than the moment it was called.
func runStatus(ctx context.Context, p statusParams) error {
	var (
		record    update.Record
		recordErr error
	)
	if p.wait {
		if p.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, p.timeout)
			defer cancel()
		}
		fmt.Fprintln(p.stdout, SubtitleStyle.Render("Waiting for an update run to finish..."))
		record, recordErr = p.records.Watch(ctx, p.now())
		if recordErr != nil {
			if errors.Is(recordErr, context.DeadlineExceeded) {
				return fmt.Errorf("no run finished within %s: %w", p.timeout, recordErr)
			}
			return recordErr
		}
	} else {
		record, recordErr = p.records.Read()
		if recordErr != nil && !errors.Is(recordErr, update.ErrNoRecord) {
			return recordErr
		}
	}

	installed, present, err := p.installed.Read()
	if err != nil {
		return fmt.Errorf("reading installed version: %w", err)
	}
	if present && installed != "" {
		fmt.Fprintf(p.stdout, "%s %s\n", labelStyle.Render("Installed:"), CmdStyle.Render(installed.String()))
	} else {
		fmt.Fprintf(p.stdout, "%s %s\n", labelStyle.Render("Installed:"), "(none)")
	}

	pending, ok, err := transfer.Inspect(p.destination)
	if err != nil {
		return fmt.Errorf("inspecting partial download: %w", err)
	}
	if ok {
		fmt.Fprintf(p.stdout, "%s version %s, %d bytes downloaded\n",
			labelStyle.Render("Pending:"), CmdStyle.Render(pending.Version.String()), pending.Bytes)
	}

	if errors.Is(recordErr, update.ErrNoRecord) {
		fmt.Fprintf(p.stdout, "%s %s\n", labelStyle.Render("Last run:"), "(none recorded)")
		return nil
	}
	printRecord(p.stdout, record)
	return nil
}

func printRecord(w io.Writer, r update.Record) {
	fmt.Fprintf(w, "%s %s at %s\n", labelStyle.Render("Last run:"), recordStyle(r.Status).Render(r.Status),
		r.ExecutedAt.Local().Format(time.DateTime))
	if r.Version != "" {
		fmt.Fprintf(w, "%s %s\n", labelStyle.Render("Published:"), r.Version)
	}
	if r.Decision != "" {
		fmt.Fprintf(w, "%s %s\n", labelStyle.Render("Decision:"), r.Decision)
	}
	if r.Error != "" {
		fmt.Fprintf(w, "%s %s\n", labelStyle.Render("Error:"), ErrorStyle.Render(r.Error))
	}
	fmt.Fprintf(w, "%s %v\n", labelStyle.Render("Relaunched:"), r.Relaunched)
}

func recordStyle(status string) lipgloss.Style {
	switch status {
	case update.RecordUpdated, update.RecordUpToDate:
		return SuccessStyle
	case update.RecordFailed, update.RecordCheckFailed:
		return ErrorStyle
	case update.RecordCancelled, update.RecordDeclined:
		return WarningStyle
	default:
		return SubtitleStyle
	}
}
