// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"

	"github.com/relaunch/relaunch/internal/transfer"
)

func newCleanCommand(app *App) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Discard a partial download",
		Long: `Remove the partial artifact and its version marker so the next update
starts from the first byte. With --all the last outcome record is removed too.

The installed artifact and version file are never touched.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var result *multierror.Error

			if err := transfer.Discard(app.cfg.ArtifactPath()); err != nil {
				result = multierror.Append(result, err)
			}
			if all {
				if err := app.resultStore().Remove(); err != nil {
					result = multierror.Append(result, fmt.Errorf("removing outcome record: %w", err))
				}
			}

			if err := result.ErrorOrNil(); err != nil {
				return app.fail(cmd.ErrOrStderr(), err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s Partial download removed\n", SuccessStyle.Render("✓"))
			if all {
				fmt.Fprintf(cmd.OutOrStdout(), "%s Outcome record removed\n", SuccessStyle.Render("✓"))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "also remove the last outcome record")
	return cmd
}
