// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/charmbracelet/log"

	"github.com/relaunch/relaunch/internal/check"
	"github.com/relaunch/relaunch/internal/config"
	"github.com/relaunch/relaunch/internal/install"
	"github.com/relaunch/relaunch/internal/manifest"
	"github.com/relaunch/relaunch/internal/transfer"
	"github.com/relaunch/relaunch/internal/update"
)

type (
	// App wires CLI services and shared state. Every command handler receives
	// the App and builds its collaborators through it, so tests can swap the
	// config source, HTTP client and output streams.
	App struct {
		Config     config.Provider
		HTTPClient *http.Client

		stdout io.Writer
		stderr io.Writer

		flags   globalFlags
		cfg     *config.Config
		cfgPath string
		logger  *log.Logger
	}

	// Dependencies defines the injection points for building an App. Nil fields
	// are replaced with production defaults by NewApp.
	Dependencies struct {
		Config     config.Provider
		HTTPClient *http.Client
		Stdout     io.Writer
		Stderr     io.Writer
	}

	// globalFlags are the persistent flags shared by every command.
	globalFlags struct {
		configFile string
		verbose    bool
		yes        bool
	}
)

// NewApp creates an App, filling unset dependencies with defaults.
func NewApp(deps Dependencies) *App {
	if deps.Config == nil {
		deps.Config = config.NewProvider()
	}
	if deps.HTTPClient == nil {
		deps.HTTPClient = &http.Client{}
	}
	if deps.Stdout == nil {
		deps.Stdout = os.Stdout
	}
	if deps.Stderr == nil {
		deps.Stderr = os.Stderr
	}
	return &App{
		Config:     deps.Config,
		HTTPClient: deps.HTTPClient,
		stdout:     deps.Stdout,
		stderr:     deps.Stderr,
		logger:     log.New(io.Discard),
	}
}

// load reads the configuration once and derives the effective flags and
// logger from it. Flags win over the file; the file wins over defaults.
func (a *App) load(ctx context.Context) error {
	if a.cfg != nil {
		return nil
	}

	cfg, path, err := a.Config.Resolve(ctx, config.LoadOptions{ConfigFilePath: a.flags.configFile})
	if err != nil {
		return err
	}
	a.cfg, a.cfgPath = cfg, path

	a.flags.verbose = a.flags.verbose || cfg.UI.Verbose
	a.flags.yes = a.flags.yes || cfg.UI.AssumeYes
	a.logger = newLogger(a.stderr, cfg.Log.Level, a.flags.verbose)
	a.logger.Debug("configuration loaded", "path", path)
	return nil
}

// newLogger builds the root logger. --verbose forces debug level.
func newLogger(w io.Writer, level string, verbose bool) *log.Logger {
	logger := log.NewWithOptions(w, log.Options{
		Prefix:          "relaunch",
		ReportTimestamp: verbose,
		TimeFormat:      time.Kitchen,
	})

	lvl, err := log.ParseLevel(level)
	if err != nil {
		lvl = log.InfoLevel
	}
	if verbose {
		lvl = log.DebugLevel
	}
	logger.SetLevel(lvl)
	return logger
}

func (a *App) userAgent() string {
	return "relaunch/" + Version
}

func (a *App) newFetcher(reporter update.Reporter) *manifest.Fetcher {
	opts := []manifest.FetcherOption{
		manifest.WithHTTPClient(a.HTTPClient),
		manifest.WithUserAgent(a.userAgent()),
		manifest.WithLogger(a.logger.WithPrefix("manifest")),
	}
	if reporter != nil {
		opts = append(opts, manifest.WithOnConnect(func() {
			reporter.Status(update.StatusConnected, "Connected to the update server.")
		}))
	}
	return manifest.NewFetcher(a.cfg.ManifestURL, opts...)
}

func (a *App) newCoordinator(reporter update.Reporter) *check.Coordinator {
	return check.New(a.newFetcher(reporter),
		check.WithBaseInterval(a.cfg.Check.BaseInterval),
		check.WithLogger(a.logger.WithPrefix("check")),
	)
}

func (a *App) newTransfer() *transfer.Transfer {
	return transfer.New(
		transfer.WithHTTPClient(a.HTTPClient),
		transfer.WithChunkSize(a.cfg.Transfer.ChunkSize),
		transfer.WithUserAgent(a.userAgent()),
		transfer.WithLogger(a.logger.WithPrefix("transfer")),
	)
}

func (a *App) versionFile() install.VersionFile {
	return install.VersionFile{Path: a.cfg.VersionFilePath()}
}

func (a *App) resultStore() *update.ResultStore {
	return update.NewResultStore(a.cfg.RecordDir(), a.logger.WithPrefix("record"))
}

func (a *App) artifactURL(tag manifest.VersionTag) string {
	return install.ArtifactURL(a.cfg.ArtifactURL, tag)
}

// newOrchestrator completes deps with the installed-version store, the
// transfer and the artifact location of the loaded configuration.
func (a *App) newOrchestrator(deps update.Deps) (*update.Orchestrator, error) {
	deps.Installed = a.versionFile()
	deps.Downloader = a.newTransfer()
	deps.ArtifactURL = a.artifactURL
	deps.Destination = a.cfg.ArtifactPath()
	deps.Logger = a.logger.WithPrefix("update")

	o, err := update.New(deps)
	if err != nil {
		return nil, fmt.Errorf("building updater: %w", err)
	}
	return o, nil
}

// newRelauncher returns nil when relaunching is disabled.
func (a *App) newRelauncher(disabled bool) update.Relauncher {
	if disabled || a.cfg.Relaunch.Command == "" {
		return nil
	}
	return install.ExecRelauncher{
		Command: a.cfg.Relaunch.Command,
		Logger:  a.logger.WithPrefix("relaunch"),
	}
}

// fail reports err with the resources of the loaded configuration and
// returns the ExitError for it.
func (a *App) fail(w io.Writer, err error) error {
	var scope failureScope
	if a.cfg != nil {
		scope = failureScope{manifestURL: manifest.RedactURL(a.cfg.ManifestURL), destination: a.cfg.ArtifactPath()}
	}
	return reportFailure(w, describeFailure(err, scope), a.flags.verbose)
}
