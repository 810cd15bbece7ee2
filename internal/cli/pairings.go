package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/sakif/secret-santa/internal/app"
)

// NewPairingsCommand creates "pairings generate|reset|validate|export".
func NewPairingsCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pairings",
		Short: "Generate, reset, validate or export pairings",
	}
	cmd.AddCommand(newGenerateCommand(opts))
	cmd.AddCommand(newResetCommand(opts))
	cmd.AddCommand(newValidateCommand(opts))
	cmd.AddCommand(newExportCommand(opts))
	return cmd
}

func newGenerateCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "generate",
		Short: "Pair every active participant and email each giver",
		Long: `Pair every active participant and email each giver.

Generation happens once. Run "santactl pairings reset" first to start over.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApp(func(a *app.App) error {
				res, err := a.Pairings.Generate(cmd.Context())
				if err != nil {
					return err
				}
				return output(cmd, opts, fmt.Sprintf("Generated %d pairings (%d notified, %d notification failures)",
					res.Count, res.Notified, res.NotifyFailed), res)
			})
		},
	}
}

func newResetCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Delete all pairings and unlock generation (the reveal lock is left as is)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApp(func(a *app.App) error {
				if err := a.Pairings.Reset(cmd.Context()); err != nil {
					return err
				}
				return output(cmd, opts, "All pairings deleted and unlocked", nil)
			})
		},
	}
}

func newValidateCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the stored pairings against the active participants",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApp(func(a *app.App) error {
				report, err := a.Pairings.Validate(cmd.Context())
				if err != nil {
					return err
				}
				msg := fmt.Sprintf("OK: %d pairings cover %d active participants", report.Pairings, report.ActiveParticipants)
				if !report.Valid {
					msg = "INVALID: " + report.Problem
				}
				if err := output(cmd, opts, msg, report); err != nil {
					return err
				}
				if !report.Valid {
					return fmt.Errorf("pairings are invalid")
				}
				return nil
			})
		},
	}
}

func newExportCommand(opts *RootOptions) *cobra.Command {
	var outPath string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the pairings as CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApp(func(a *app.App) error {
				var w io.Writer = cmd.OutOrStdout()
				if outPath != "" {
					f, err := os.Create(outPath)
					if err != nil {
						return fmt.Errorf("creating %s: %w", outPath, err)
					}
					defer f.Close()
					w = f
				}
				return a.Pairings.Export(cmd.Context(), w)
			})
		},
	}
	cmd.Flags().StringVarP(&outPath, "output", "o", "", "write to this file instead of stdout")
	return cmd
}
