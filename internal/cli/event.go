package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/sakif/secret-santa/internal/app"
)

// NewRevealCommand creates "reveal lock|unlock".
func NewRevealCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reveal",
		Short: "Lock or unlock the reveal",
	}

	set := func(locked bool) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, _ []string) error {
			return opts.withApp(func(a *app.App) error {
				st, err := a.Settings.SetRevealLocked(cmd.Context(), locked)
				if err != nil {
					return err
				}
				state := "unlocked"
				if st.RevealLocked {
					state = "locked"
				}
				return output(cmd, opts, "Reveal is now "+state, st)
			})
		}
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "lock",
		Short: "Hide Secret Santas from participants",
		Args:  cobra.NoArgs,
		RunE:  set(true),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "unlock",
		Short: "Let participants see who their Secret Santa is",
		Args:  cobra.NoArgs,
		RunE:  set(false),
	})
	return cmd
}

// NewDeadlineCommand creates "deadline set <RFC3339>|clear".
func NewDeadlineCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deadline",
		Short: "Set or clear the gift submission deadline",
	}

	cmd.AddCommand(&cobra.Command{
		Use:     "set <RFC3339 time>",
		Short:   "Close gift submissions after the given time",
		Example: "  santactl deadline set 2026-12-15T18:00:00Z",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := time.Parse(time.RFC3339, args[0])
			if err != nil {
				return fmt.Errorf("invalid deadline %q (want RFC3339): %w", args[0], err)
			}
			return opts.withApp(func(a *app.App) error {
				st, err := a.Settings.SetDeadline(cmd.Context(), &d)
				if err != nil {
					return err
				}
				return output(cmd, opts, "Gift deadline set to "+st.GiftSubmissionDeadline.Format(time.RFC3339), st)
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Remove the gift submission deadline",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApp(func(a *app.App) error {
				st, err := a.Settings.SetDeadline(cmd.Context(), nil)
				if err != nil {
					return err
				}
				return output(cmd, opts, "Gift deadline cleared", st)
			})
		},
	})
	return cmd
}
