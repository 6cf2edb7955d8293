// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/relaunch/relaunch/internal/manifest"
	"github.com/relaunch/relaunch/internal/update"
)

type (
	// installer is the part of update.Orchestrator the download command needs.
	installer interface {
		Evaluate(ctx context.Context) (update.Outcome, error)
		Install(ctx context.Context, version manifest.VersionTag) error
	}

	// downloadParams bundles the collaborators of runDownload.
	downloadParams struct {
		stdout      io.Writer
		installer   installer
		destination string
		// version is fetched as given; empty means the published current version.
		version manifest.VersionTag
	}
)

func newDownloadCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "download [version]",
		Short: "Download a version of the artifact without starting it",
		Long: `Download the artifact of the given version, or of the published current
version when none is given, and record it as installed.

An interrupted download of the same version resumes where it stopped;
a partial download of a different version is discarded.`,
		Example: `  # Fetch the published current version
  relaunch download

  # Fetch a specific version
  relaunch download 2.4.1`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.cfg.Validate(); err != nil {
				return app.fail(cmd.ErrOrStderr(), err)
			}

			reporter := newConsoleReporter(cmd.OutOrStdout())
			orchestrator, err := app.newOrchestrator(update.Deps{
				Checker: &coordinatorChecker{
					coordinator: app.newCoordinator(reporter),
					retries:     app.cfg.Check.Retries,
					step:        retryPause,
				},
				Reporter: reporter,
			})
			if err != nil {
				return err
			}
			p := downloadParams{
				stdout:      cmd.OutOrStdout(),
				installer:   orchestrator,
				destination: app.cfg.ArtifactPath(),
			}
			if len(args) == 1 {
				p.version = manifest.VersionTag(args[0])
			}

			if err := runDownload(cmd.Context(), p); err != nil {
				return app.fail(cmd.ErrOrStderr(), err)
			}
			return nil
		},
	}
}

// runDownload resolves the version, downloads it and records it as installed.
func runDownload(ctx context.Context, p downloadParams) error {
	version := p.version
	if version == "" {
		out, err := p.installer.Evaluate(ctx)
		if err != nil {
			return err
		}
		version = out.Check.Manifest.Current()
	}

	if err := p.installer.Install(ctx, version); err != nil {
		return err
	}

	fmt.Fprintf(p.stdout, "%s %s\n", labelStyle.Render("Artifact:"), p.destination)
	return nil
}
