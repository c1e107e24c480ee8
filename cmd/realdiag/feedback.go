package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

func newFeedbackCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "feedback",
		Short: "Export or import clinician feedback",
		Long: `Export or import clinician feedback stored in <data-dir>/feedback.db.

Subcommands:
  export  - Write every entry as a JSON export document
  import  - Load an export document, skipping entries that already exist`,
	}

	cmd.AddCommand(newFeedbackExportCmd(opts), newFeedbackImportCmd(opts))
	return cmd
}

func newFeedbackExportCmd(opts *options) *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export feedback as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, closeStore, err := opts.feedbackService(cmd)
			if err != nil {
				return err
			}
			defer closeStore()

			var w io.Writer = cmd.OutOrStdout()
			if out != "" {
				f, err := os.Create(out)
				if err != nil {
					return fmt.Errorf("failed to create export file: %w", err)
				}
				defer f.Close()
				w = f
			}

			if err := svc.Export(cmd.Context(), w); err != nil {
				return fmt.Errorf("export failed: %w", err)
			}
			if out != "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "Feedback exported to %s\n", out)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&out, "out", "", "write the export to this file instead of stdout")
	return cmd
}

func newFeedbackImportCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Import feedback from a JSON export",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("failed to open import file: %w", err)
			}
			defer f.Close()

			svc, closeStore, err := opts.feedbackService(cmd)
			if err != nil {
				return err
			}
			defer closeStore()

			imported, skipped, err := svc.Import(cmd.Context(), f)
			if err != nil {
				return fmt.Errorf("import failed: %w", err)
			}
			return printJSON(cmd.OutOrStdout(), map[string]int{"imported": imported, "skipped": skipped})
		},
	}
}
