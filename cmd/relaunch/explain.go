// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/relaunch/relaunch/internal/issue"
)

func newExplainCommand() *cobra.Command {
	var style string

	cmd := &cobra.Command{
		Use:   "explain [topic]",
		Short: "Explain a failure and how to fix it",
		Long: `Show troubleshooting guidance for a failure. Failed commands print the
topic to look up; without a topic the available topics are listed.`,
		Example: `  relaunch explain
  relaunch explain timeout`,
		Args:        cobra.MaximumNArgs(1),
		Annotations: map[string]string{skipConfigAnnotation: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				listIssues(cmd.OutOrStdout())
				return nil
			}

			iss := issue.Lookup(args[0])
			if iss == nil {
				return &ExitError{Code: ExitFailure, Err: fmt.Errorf("unknown topic %q; run 'relaunch explain' to list topics", args[0])}
			}

			rendered, err := iss.Render(style)
			if err != nil {
				return fmt.Errorf("rendering %s: %w", args[0], err)
			}
			fmt.Fprint(cmd.OutOrStdout(), rendered)
			return nil
		},
	}

	cmd.Flags().StringVar(&style, "style", "auto", "glamour style: auto, dark, light, notty")
	return cmd
}

func listIssues(w io.Writer) {
	fmt.Fprintln(w, TitleStyle.Render("Topics"))
	for _, iss := range issue.Values() {
		fmt.Fprintf(w, "  %s\n", CmdStyle.Render(iss.Slug()))
	}
}
