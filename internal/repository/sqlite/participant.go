package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/secret-santa/internal/apperror"
	"github.com/sakif/secret-santa/internal/model"
	"github.com/sakif/secret-santa/internal/repository"
)

// compile-time check that *DB implements repository.ParticipantRepository
var _ repository.ParticipantRepository = (*DB)(nil)

const participantColumns = `id, name, email, department, role, active, has_logged_in,
	last_login, has_revealed, revealed_at, created_at, updated_at`

// rowScanner is satisfied by both *sql.Row and *sql.Rows, so one scan
// function serves single-row and multi-row queries.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanParticipant(row rowScanner) (*model.Participant, error) {
	var (
		p          model.Participant
		role       string
		lastLogin  sql.NullTime
		revealedAt sql.NullTime
	)
	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Email,
		&p.Department,
		&role,
		&p.Active,
		&p.HasLoggedIn,
		&lastLogin,
		&p.HasRevealed,
		&revealedAt,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.Role = model.Role(role)
	p.LastLogin = nullTime(lastLogin)
	p.RevealedAt = nullTime(revealedAt)
	return &p, nil
}

// CreateParticipant inserts a new participant, filling in ID and timestamps.
//
// Email uniqueness is enforced by the UNIQUE COLLATE NOCASE column, so
// "Alice@Example.com" and "alice@example.com" collide even if a caller
// forgets to lower-case.
func (db *DB) CreateParticipant(ctx context.Context, p *model.Participant) error {
	now := time.Now().UTC()
	p.ID = xid.New().String()
	p.Email = strings.ToLower(strings.TrimSpace(p.Email))
	p.CreatedAt = now
	p.UpdatedAt = now
	if p.Role == "" {
		p.Role = model.RoleParticipant
	}

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO participants (id, name, email, department, role, active,
			has_logged_in, has_revealed, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, 0, 0, ?, ?)`,
		p.ID,
		p.Name,
		p.Email,
		p.Department,
		string(p.Role),
		p.Active,
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return &apperror.AppError{
				Err:     apperror.ErrConflict,
				Message: "User with this email already exists",
				Field:   "email",
			}
		}
		return fmt.Errorf("sqlite: creating participant %s: %w", p.Email, err)
	}

	return nil
}

// GetParticipant retrieves a participant by ID.
// Returns apperror.ErrNotFound if no participant exists with that ID.
func (db *DB) GetParticipant(ctx context.Context, id string) (*model.Participant, error) {
	p, err := scanParticipant(db.conn.QueryRowContext(ctx,
		`SELECT `+participantColumns+` FROM participants WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("participant", id)
		}
		return nil, fmt.Errorf("sqlite: getting participant %s: %w", id, err)
	}
	return p, nil
}

// GetParticipantByEmail looks a participant up by email, case-insensitively.
func (db *DB) GetParticipantByEmail(ctx context.Context, email string) (*model.Participant, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	p, err := scanParticipant(db.conn.QueryRowContext(ctx,
		`SELECT `+participantColumns+` FROM participants WHERE email = ?`, email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("participant", email)
		}
		return nil, fmt.Errorf("sqlite: getting participant by email: %w", err)
	}
	return p, nil
}

// ListParticipants returns every participant, active or not, sorted by name.
func (db *DB) ListParticipants(ctx context.Context) ([]model.Participant, error) {
	return db.queryParticipants(ctx,
		`SELECT `+participantColumns+` FROM participants ORDER BY name COLLATE NOCASE, id`)
}

// ListActiveParticipants returns the participants eligible for pairing.
func (db *DB) ListActiveParticipants(ctx context.Context) ([]model.Participant, error) {
	return db.queryParticipants(ctx,
		`SELECT `+participantColumns+` FROM participants WHERE active = 1 ORDER BY name COLLATE NOCASE, id`)
}

func (db *DB) queryParticipants(ctx context.Context, query string, args ...any) ([]model.Participant, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing participants: %w", err)
	}
	defer rows.Close()

	participants := make([]model.Participant, 0)
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning participant row: %w", err)
		}
		participants = append(participants, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating participants: %w", err)
	}
	return participants, nil
}

// CountActiveParticipants counts participants with the active flag set.
func (db *DB) CountActiveParticipants(ctx context.Context) (int, error) {
	var n int
	if err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM participants WHERE active = 1`).Scan(&n); err != nil {
		return 0, fmt.Errorf("sqlite: counting active participants: %w", err)
	}
	return n, nil
}

// UpdateParticipant applies a partial update and returns the stored result.
//
// Only non-nil fields in upd are written. The SET clause is built from a fixed
// list of column names, never from caller input, so it's safe to assemble.
func (db *DB) UpdateParticipant(ctx context.Context, id string, upd repository.ParticipantUpdate) (*model.Participant, error) {
	sets := []string{"updated_at = ?"}
	args := []any{time.Now().UTC()}

	if upd.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *upd.Name)
	}
	if upd.Email != nil {
		sets = append(sets, "email = ?")
		args = append(args, strings.ToLower(strings.TrimSpace(*upd.Email)))
	}
	if upd.Department != nil {
		sets = append(sets, "department = ?")
		args = append(args, *upd.Department)
	}
	if upd.Role != nil {
		sets = append(sets, "role = ?")
		args = append(args, string(*upd.Role))
	}
	if upd.Active != nil {
		sets = append(sets, "active = ?")
		args = append(args, *upd.Active)
	}
	args = append(args, id)

	result, err := db.conn.ExecContext(ctx,
		`UPDATE participants SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, &apperror.AppError{
				Err:     apperror.ErrConflict,
				Message: "User with this email already exists",
				Field:   "email",
			}
		}
		return nil, fmt.Errorf("sqlite: updating participant %s: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return nil, apperror.NotFound("participant", id)
	}

	return db.GetParticipant(ctx, id)
}

// RecordLogin sets has_logged_in and last_login.
func (db *DB) RecordLogin(ctx context.Context, id string, at time.Time) error {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE participants SET has_logged_in = 1, last_login = ?, updated_at = ? WHERE id = ?`,
		at, at, id)
	if err != nil {
		return fmt.Errorf("sqlite: recording login for %s: %w", id, err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return apperror.NotFound("participant", id)
	}
	return nil
}

// MarkRevealed stamps the reveal flag once.
//
// CONDITIONAL UPDATE:
// The WHERE has_revealed = 0 clause makes this a compare-and-swap. If two
// reveal requests for the same participant race, SQLite serialises the two
// UPDATEs; the first changes one row, the second changes none. The row count
// tells the caller which one it was, and revealed_at is never overwritten.
func (db *DB) MarkRevealed(ctx context.Context, id string, at time.Time) (bool, error) {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE participants SET has_revealed = 1, revealed_at = ?, updated_at = ?
		 WHERE id = ? AND has_revealed = 0`,
		at, at, id)
	if err != nil {
		return false, fmt.Errorf("sqlite: marking participant %s revealed: %w", id, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	return n == 1, nil
}
