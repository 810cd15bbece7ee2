// Package export renders pairings as a CSV download for the admin.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/sakif/secret-santa/internal/model"
)

// Filename is the suggested name for the download.
const Filename = "secret-santa-pairings.csv"

var header = []string{
	"Giver Name",
	"Giver Email",
	"Giver Department",
	"Receiver Name",
	"Receiver Email",
	"Receiver Department",
	"Notified",
	"Notified At",
}

// WritePairingsCSV writes one row per pairing, in the order given.
// Empty departments and missing timestamps are written as "N/A".
func WritePairingsCSV(w io.Writer, pairings []model.PairingDetail) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(header); err != nil {
		return fmt.Errorf("export: writing header: %w", err)
	}
	for _, p := range pairings {
		if err := cw.Write(row(p)); err != nil {
			return fmt.Errorf("export: writing row %s: %w", p.ID, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("export: flushing csv: %w", err)
	}
	return nil
}

func row(p model.PairingDetail) []string {
	notified, notifiedAt := "No", "N/A"
	if p.Notified {
		notified = "Yes"
	}
	if p.NotifiedAt != nil {
		notifiedAt = p.NotifiedAt.UTC().Format(time.RFC3339)
	}
	return []string{
		p.Giver.Name,
		p.Giver.Email,
		orNA(p.Giver.Department),
		p.Receiver.Name,
		p.Receiver.Email,
		orNA(p.Receiver.Department),
		notified,
		notifiedAt,
	}
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
