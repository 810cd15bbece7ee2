// Package cli implements santactl, the admin maintenance tool.
//
// santactl works directly on the server's SQLite database through the same
// services the HTTP API uses, so every rule (one-shot generation, reset
// leaving the reveal lock alone, participant cap) applies here too.
package cli

import (
	"fmt"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"github.com/sakif/secret-santa/internal/app"
	"github.com/sakif/secret-santa/internal/config"
	"github.com/sakif/secret-santa/internal/logging"
)

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// Opener builds the wired application a command runs against.
// The caller closes it.
type Opener func() (*app.App, error)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Format string // "json" | "text"
	DBPath string // overrides DB_PATH when set

	open Opener
}

// NewRootCommand creates the root command. A nil opener loads the
// configuration from the environment like the server does.
func NewRootCommand(open Opener) *cobra.Command {
	opts := &RootOptions{}
	if open == nil {
		open = opts.openFromEnv
	}
	opts.open = open

	cmd := &cobra.Command{
		Use:   "santactl",
		Short: "Secret Santa admin tool",
		Long:  "Maintenance commands for the Secret Santa database: seed participants, generate or reset pairings, move the event locks.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.DBPath, "db", "", "path to the SQLite database (overrides DB_PATH)")

	cmd.AddCommand(NewSeedCommand(opts))
	cmd.AddCommand(NewRevealCommand(opts))
	cmd.AddCommand(NewDeadlineCommand(opts))
	cmd.AddCommand(NewPairingsCommand(opts))

	return cmd
}

// openFromEnv loads config like the server. Logs go to stderr so JSON on
// stdout stays clean.
func (o *RootOptions) openFromEnv() (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if o.DBPath != "" {
		cfg.DBPath = o.DBPath
	}
	logger := logging.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	return app.New(cfg, logger)
}

// withApp opens the application, runs fn, and closes it again.
func (o *RootOptions) withApp(fn func(a *app.App) error) error {
	a, err := o.open()
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}
