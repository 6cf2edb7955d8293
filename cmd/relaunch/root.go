// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime/debug"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
)

// skipConfigAnnotation marks commands that must work without a loadable
// configuration.
const skipConfigAnnotation = "relaunch.skip-config"

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version != "dev" {
		return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return "dev (built from source)"
}

// newRootCommand builds the command tree around app. Running the root command
// without a subcommand performs the update and starts the application.
func newRootCommand(app *App) *cobra.Command {
	var flags runFlags

	root := &cobra.Command{
		Use:   "relaunch",
		Short: "Keep an application up to date and start it",
		Long: TitleStyle.Render("relaunch") + SubtitleStyle.Render(" - Keep an application up to date and start it") + `

relaunch reads the published version list, compares it with the installed
version, downloads the new artifact when needed (resuming interrupted
downloads) and then starts the application.

` + SubtitleStyle.Render("Examples:") + `
  relaunch                  Check, update if needed, start the application
  relaunch --skip-check     Start the installed version right away
  relaunch check            Only report whether an update is available
  relaunch status --wait    Wait for the outcome of a running update
  relaunch config init      Write a default configuration file`,
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if _, skip := cmd.Annotations[skipConfigAnnotation]; skip {
				return nil
			}
			if err := app.load(cmd.Context()); err != nil {
				return app.fail(cmd.ErrOrStderr(), err)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRootCommand(cmd, app, flags)
		},
	}

	root.SetOut(app.stdout)
	root.SetErr(app.stderr)

	root.PersistentFlags().StringVar(&app.flags.configFile, "config", "", "config file (default is $XDG_CONFIG_HOME/relaunch/config.cue)")
	root.PersistentFlags().BoolVarP(&app.flags.verbose, "verbose", "v", false, "enable verbose output")
	root.PersistentFlags().BoolVarP(&app.flags.yes, "yes", "y", false, "answer prompts with their default and never ask")

	bindRunFlags(root, &flags)

	root.AddCommand(
		newCheckCommand(app),
		newDownloadCommand(app),
		newStatusCommand(app),
		newCleanCommand(app),
		newConfigCommand(app),
		newExplainCommand(),
	)

	return root
}

// Execute runs the CLI and exits the process with the classified exit code.
// This is called by main.main().
func Execute() {
	app := NewApp(Dependencies{})
	if err := fang.Execute(
		context.Background(),
		newRootCommand(app),
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(ExitFailure)
	}
}
