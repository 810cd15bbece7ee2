package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/sakif/secret-santa/internal/model"
	"github.com/sakif/secret-santa/internal/repository"
)

var _ repository.SettingsRepository = (*DB)(nil)

// GetOrCreateSettings returns the singleton settings row.
//
// LAZY CREATION:
// The first caller inserts defaults with INSERT OR IGNORE. If two requests
// race, the CHECK (id = 1) primary key lets exactly one insert land and the
// other is silently ignored; both then read the same row.
func (db *DB) GetOrCreateSettings(ctx context.Context, defaults model.Settings) (*model.Settings, error) {
	now := time.Now().UTC()
	_, err := db.conn.ExecContext(ctx,
		`INSERT OR IGNORE INTO settings
			(id, reveal_date, pairing_locked, reveal_locked, pairing_generated_at,
			 max_participants, gift_submission_deadline, updated_at)
		 VALUES (1, ?, ?, ?, ?, ?, ?, ?)`,
		defaults.RevealDate.UTC(),
		defaults.PairingLocked,
		defaults.RevealLocked,
		nullableTime(defaults.PairingGeneratedAt),
		defaults.MaxParticipants,
		nullableTime(defaults.GiftSubmissionDeadline),
		now,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: inserting default settings: %w", err)
	}

	var (
		s           model.Settings
		generatedAt sql.NullTime
		deadline    sql.NullTime
	)
	err = db.conn.QueryRowContext(ctx,
		`SELECT reveal_date, pairing_locked, reveal_locked, pairing_generated_at,
		        max_participants, gift_submission_deadline, updated_at
		 FROM settings WHERE id = 1`).Scan(
		&s.RevealDate,
		&s.PairingLocked,
		&s.RevealLocked,
		&generatedAt,
		&s.MaxParticipants,
		&deadline,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: reading settings: %w", err)
	}
	s.PairingGeneratedAt = nullTime(generatedAt)
	s.GiftSubmissionDeadline = nullTime(deadline)
	return &s, nil
}

// SaveSettings overwrites the admin-editable fields of the settings row.
//
// pairing_locked and pairing_generated_at are NOT written here: they only
// change through CreateGeneration and ResetGeneration, so a stale settings
// value read before a generation can't unlock pairing by accident.
func (db *DB) SaveSettings(ctx context.Context, s *model.Settings) error {
	s.UpdatedAt = time.Now().UTC()
	result, err := db.conn.ExecContext(ctx,
		`UPDATE settings SET reveal_date = ?, reveal_locked = ?, max_participants = ?,
		        gift_submission_deadline = ?, updated_at = ?
		 WHERE id = 1`,
		s.RevealDate.UTC(),
		s.RevealLocked,
		s.MaxParticipants,
		nullableTime(s.GiftSubmissionDeadline),
		s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: saving settings: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("sqlite: settings row missing")
	}
	return nil
}
