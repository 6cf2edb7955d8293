// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/relaunch/relaunch/internal/config"
)

// newConfigCommand creates the `relaunch config` command tree.
func newConfigCommand(app *App) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage relaunch configuration",
		Long: `Manage relaunch configuration.

Configuration is stored in:
  - Linux: ~/.config/relaunch/config.cue
  - macOS: ~/Library/Application Support/relaunch/config.cue
  - Windows: %APPDATA%\relaunch\config.cue

A config.cue in the working directory is used when the user file is absent.
Every field can be overridden with RELAUNCH_<SECTION>_<FIELD>, for example
RELAUNCH_CHECK_RETRIES=3.`,
		Annotations: map[string]string{skipConfigAnnotation: "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	var raw bool
	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			showConfig(cmd.OutOrStdout(), app.cfg, app.cfgPath, raw)
			return nil
		},
	}
	showCmd.Flags().BoolVar(&raw, "raw", false, "print only the CUE document")

	var initDir string
	initCmd := &cobra.Command{
		Use:         "init",
		Short:       "Create a default configuration file",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{skipConfigAnnotation: "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, created, err := config.CreateDefaultConfig(initDir)
			if err != nil {
				return app.fail(cmd.ErrOrStderr(), err)
			}
			if !created {
				fmt.Fprintf(cmd.OutOrStdout(), "%s Configuration already exists at %s\n", WarningStyle.Render("!"), path)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Created default configuration at %s\n", SuccessStyle.Render("✓"), path)
			return nil
		},
	}
	initCmd.Flags().StringVar(&initDir, "dir", "", "directory to write config.cue into (default is the user config directory)")

	pathCmd := &cobra.Command{
		Use:         "path",
		Short:       "Show the configuration file path",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{skipConfigAnnotation: "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfgDir, err := config.ConfigDir()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Config directory: %s\n", cfgDir)
			fmt.Fprintf(cmd.OutOrStdout(), "Config file: %s\n", filepath.Join(cfgDir, config.ConfigFileName+"."+config.ConfigFileExt))
			return nil
		},
	}

	cfgCmd.AddCommand(showCmd, initCmd, pathCmd)
	return cfgCmd
}

func showConfig(w io.Writer, cfg *config.Config, path string, raw bool) {
	if raw {
		fmt.Fprint(w, config.GenerateCUE(cfg))
		return
	}

	fmt.Fprintln(w, TitleStyle.Render("Current Configuration"))
	fmt.Fprintln(w)
	if path != "" {
		fmt.Fprintf(w, "%s: %s\n", CmdStyle.Render("Config file"), path)
	} else {
		fmt.Fprintf(w, "%s: %s\n", CmdStyle.Render("Config file"), SubtitleStyle.Render("(using defaults)"))
	}
	fmt.Fprintf(w, "%s: %s\n", CmdStyle.Render("Artifact"), cfg.ArtifactPath())
	fmt.Fprintf(w, "%s: %s\n", CmdStyle.Render("Version file"), cfg.VersionFilePath())
	fmt.Fprintln(w)
	fmt.Fprint(w, config.GenerateCUE(cfg))
}
