package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sakif/secret-santa/internal/app"
	"github.com/sakif/secret-santa/internal/model"
	"github.com/sakif/secret-santa/internal/service"
)

// SeedFile is the YAML layout accepted by "santactl seed".
//
//	settings:
//	  revealDate: 2026-12-20T17:00:00Z
//	  maxParticipants: 40
//	participants:
//	  - name: Ann Admin
//	    email: ann@example.com
//	    role: admin
//	  - name: Bob
//	    email: bob@example.com
//	    department: Sales
type SeedFile struct {
	Settings     *SeedSettings     `yaml:"settings"`
	Participants []SeedParticipant `yaml:"participants"`
}

type SeedSettings struct {
	RevealDate             *time.Time `yaml:"revealDate"`
	GiftSubmissionDeadline *time.Time `yaml:"giftSubmissionDeadline"`
	MaxParticipants        *int       `yaml:"maxParticipants"`
}

type SeedParticipant struct {
	Name       string     `yaml:"name"`
	Email      string     `yaml:"email"`
	Department string     `yaml:"department"`
	Role       model.Role `yaml:"role"`
}

// SeedResult counts what a seed run did.
type SeedResult struct {
	Created int `json:"created"`
	Skipped int `json:"skipped"`
}

// NewSeedCommand creates the seed command.
func NewSeedCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "seed <file.yaml>",
		Short: "Create participants (and optionally settings) from a YAML file",
		Long: `Create participants from a YAML file.

Participants whose email already exists are skipped, so the same file can be
applied again safely. Settings in the file are applied before participants,
so a raised maxParticipants takes effect for the same run.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := readSeedFile(args[0])
			if err != nil {
				return err
			}
			return opts.withApp(func(a *app.App) error {
				res, err := applySeed(cmd.Context(), a, f)
				if err != nil {
					return err
				}
				return output(cmd, opts,
					fmt.Sprintf("Seeded %d participant(s), skipped %d existing", res.Created, res.Skipped), res)
			})
		},
	}
}

func readSeedFile(path string) (*SeedFile, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading seed file: %w", err)
	}
	var f SeedFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parsing seed file %s: %w", path, err)
	}
	return &f, nil
}

func applySeed(ctx context.Context, a *app.App, f *SeedFile) (*SeedResult, error) {
	if s := f.Settings; s != nil {
		if _, err := a.Settings.Update(ctx, service.SettingsUpdate{
			RevealDate:             s.RevealDate,
			GiftSubmissionDeadline: s.GiftSubmissionDeadline,
			MaxParticipants:        s.MaxParticipants,
		}); err != nil {
			return nil, fmt.Errorf("applying settings: %w", err)
		}
	}

	res := &SeedResult{}
	for i, p := range f.Participants {
		created, err := a.Participants.Seed(ctx, service.NewParticipant{
			Name:       p.Name,
			Email:      p.Email,
			Department: p.Department,
			Role:       p.Role,
		})
		if err != nil {
			return res, fmt.Errorf("participant #%d (%s): %w", i+1, p.Email, err)
		}
		if created {
			res.Created++
		} else {
			res.Skipped++
		}
	}
	return res, nil
}
