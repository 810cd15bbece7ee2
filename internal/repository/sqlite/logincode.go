package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sakif/secret-santa/internal/apperror"
	"github.com/sakif/secret-santa/internal/model"
	"github.com/sakif/secret-santa/internal/repository"
)

var _ repository.LoginCodeRepository = (*DB)(nil)

// SaveLoginCode stores a fresh code, replacing any pending one for the same
// participant and resetting its attempt counter.
func (db *DB) SaveLoginCode(ctx context.Context, code model.LoginCode) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO login_codes (participant_id, code_hash, expires_at, attempts, created_at)
		 VALUES (?, ?, ?, 0, ?)
		 ON CONFLICT(participant_id) DO UPDATE SET
		     code_hash = excluded.code_hash,
		     expires_at = excluded.expires_at,
		     attempts = 0,
		     created_at = excluded.created_at`,
		code.ParticipantID, code.CodeHash, code.ExpiresAt.UTC(), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("sqlite: saving login code for %s: %w", code.ParticipantID, err)
	}
	return nil
}

func (db *DB) GetLoginCode(ctx context.Context, participantID string) (*model.LoginCode, error) {
	var c model.LoginCode
	err := db.conn.QueryRowContext(ctx,
		`SELECT participant_id, code_hash, expires_at, attempts FROM login_codes WHERE participant_id = ?`,
		participantID).Scan(&c.ParticipantID, &c.CodeHash, &c.ExpiresAt, &c.Attempts)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("login code", participantID)
		}
		return nil, fmt.Errorf("sqlite: getting login code for %s: %w", participantID, err)
	}
	return &c, nil
}

func (db *DB) IncrementLoginCodeAttempts(ctx context.Context, participantID string) error {
	if _, err := db.conn.ExecContext(ctx,
		`UPDATE login_codes SET attempts = attempts + 1 WHERE participant_id = ?`, participantID); err != nil {
		return fmt.Errorf("sqlite: counting login attempt for %s: %w", participantID, err)
	}
	return nil
}

// DeleteLoginCode removes the pending code. Deleting a missing code is not an error.
func (db *DB) DeleteLoginCode(ctx context.Context, participantID string) error {
	if _, err := db.conn.ExecContext(ctx,
		`DELETE FROM login_codes WHERE participant_id = ?`, participantID); err != nil {
		return fmt.Errorf("sqlite: deleting login code for %s: %w", participantID, err)
	}
	return nil
}

// ConsumeLoginCode redeems a verified code.
//
// The hash in the WHERE clause makes this a compare-and-delete: when two
// requests verify the same code at once, only one DELETE removes the row and
// only that caller may log in.
func (db *DB) ConsumeLoginCode(ctx context.Context, participantID, codeHash string) (bool, error) {
	result, err := db.conn.ExecContext(ctx,
		`DELETE FROM login_codes WHERE participant_id = ? AND code_hash = ?`,
		participantID, codeHash)
	if err != nil {
		return false, fmt.Errorf("sqlite: consuming login code for %s: %w", participantID, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	return n == 1, nil
}
