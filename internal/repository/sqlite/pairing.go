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
	"github.com/sakif/secret-santa/internal/pairing"
	"github.com/sakif/secret-santa/internal/repository"
)

// compile-time check that *DB implements repository.PairingRepository
var _ repository.PairingRepository = (*DB)(nil)

// InsertAll bulk-creates edges in a single transaction.
//
// The unique indexes on giver_id and receiver_id reject a second edge for the
// same participant; the whole batch is rolled back in that case.
func (db *DB) InsertAll(ctx context.Context, edges []pairing.Edge) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		return insertEdges(ctx, tx, edges, time.Now().UTC())
	})
}

// CreateGeneration is the only way the app persists a new set of pairings.
//
// SINGLE-WRITER GUARD:
// Checking "no pairings yet" in the service and then inserting would leave a
// window where two admins both pass the check. Instead, one transaction:
//
//  1. flips settings.pairing_locked from 0 to 1 (compare-and-swap: the UPDATE
//     matches zero rows if someone else already locked it),
//  2. re-checks that the pairings table is empty,
//  3. inserts every edge.
//
// SQLite allows one writer at a time, and the first statement is a write, so
// a concurrent CreateGeneration waits (busy_timeout) and then sees
// pairing_locked = 1. The loser gets ErrPairingLocked and writes nothing.
func (db *DB) CreateGeneration(ctx context.Context, edges []pairing.Edge, at time.Time) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx,
			`UPDATE settings SET pairing_locked = 1, pairing_generated_at = ?, updated_at = ?
			 WHERE id = 1 AND pairing_locked = 0`,
			at, at)
		if err != nil {
			return fmt.Errorf("sqlite: locking pairings: %w", err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("sqlite: checking rows affected: %w", err)
		}
		if n == 0 {
			var exists int
			if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM settings WHERE id = 1`).Scan(&exists); err != nil {
				return fmt.Errorf("sqlite: checking settings row: %w", err)
			}
			if exists == 0 {
				return fmt.Errorf("sqlite: settings row missing; read settings before generating")
			}
			return apperror.Wrap(apperror.ErrPairingLocked,
				"Pairings are already locked. Delete existing pairings first.")
		}

		var count int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM pairings`).Scan(&count); err != nil {
			return fmt.Errorf("sqlite: counting pairings: %w", err)
		}
		if count > 0 {
			return apperror.Wrap(apperror.ErrPairingsExist,
				"Pairings already exist. Delete existing pairings first.")
		}

		return insertEdges(ctx, tx, edges, at)
	})
}

func insertEdges(ctx context.Context, tx *sql.Tx, edges []pairing.Edge, at time.Time) error {
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO pairings (id, giver_id, receiver_id, notified, created_at)
		 VALUES (?, ?, ?, 0, ?)`)
	if err != nil {
		return fmt.Errorf("sqlite: preparing pairing insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range edges {
		if _, err := stmt.ExecContext(ctx, xid.New().String(), e.GiverID, e.ReceiverID, at); err != nil {
			if isUniqueViolation(err) {
				return duplicateEdge(err, e)
			}
			return fmt.Errorf("sqlite: inserting pairing %s→%s: %w", e.GiverID, e.ReceiverID, err)
		}
	}
	return nil
}

// duplicateEdge names the side of the edge whose unique index fired.
// SQLite reports it as "UNIQUE constraint failed: pairings.<column>".
func duplicateEdge(err error, e pairing.Edge) error {
	if strings.Contains(err.Error(), "pairings.receiver_id") {
		return apperror.Wrap(apperror.ErrDuplicateReceiver,
			fmt.Sprintf("Participant %s is already someone's receiver", e.ReceiverID))
	}
	return apperror.Wrap(apperror.ErrDuplicateGiver,
		fmt.Sprintf("Participant %s already has a pairing", e.GiverID))
}

// ResetGeneration deletes every pairing and unlocks pairing generation.
//
// The reveal lock is deliberately left alone: after a reset the admin decides
// separately whether the reveal should be re-locked.
func (db *DB) ResetGeneration(ctx context.Context) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM pairings`); err != nil {
			return fmt.Errorf("sqlite: deleting pairings: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE settings SET pairing_locked = 0, pairing_generated_at = NULL, updated_at = ?
			 WHERE id = 1`, time.Now().UTC()); err != nil {
			return fmt.Errorf("sqlite: unlocking pairings: %w", err)
		}
		return nil
	})
}

const pairingColumns = `id, giver_id, receiver_id, notified, notified_at, created_at`

func scanPairing(row rowScanner) (*model.Pairing, error) {
	var (
		p          model.Pairing
		notifiedAt sql.NullTime
	)
	if err := row.Scan(&p.ID, &p.GiverID, &p.ReceiverID, &p.Notified, &notifiedAt, &p.CreatedAt); err != nil {
		return nil, err
	}
	p.NotifiedAt = nullTime(notifiedAt)
	return &p, nil
}

// FindByGiver returns the edge where giverID gives ("who do I give to?").
// An index lookup on idx_pairings_giver.
func (db *DB) FindByGiver(ctx context.Context, giverID string) (*model.Pairing, error) {
	p, err := scanPairing(db.conn.QueryRowContext(ctx,
		`SELECT `+pairingColumns+` FROM pairings WHERE giver_id = ?`, giverID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("pairing for giver", giverID)
		}
		return nil, fmt.Errorf("sqlite: finding pairing by giver %s: %w", giverID, err)
	}
	return p, nil
}

// FindByReceiver returns the edge where receiverID receives ("who gives to me?").
// An index lookup on idx_pairings_receiver; the inverse relation is never stored.
func (db *DB) FindByReceiver(ctx context.Context, receiverID string) (*model.Pairing, error) {
	p, err := scanPairing(db.conn.QueryRowContext(ctx,
		`SELECT `+pairingColumns+` FROM pairings WHERE receiver_id = ?`, receiverID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("pairing for receiver", receiverID)
		}
		return nil, fmt.Errorf("sqlite: finding pairing by receiver %s: %w", receiverID, err)
	}
	return p, nil
}

// ListPairings returns every edge of the current generation.
func (db *DB) ListPairings(ctx context.Context) ([]model.Pairing, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+pairingColumns+` FROM pairings ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing pairings: %w", err)
	}
	defer rows.Close()

	pairings := make([]model.Pairing, 0)
	for rows.Next() {
		p, err := scanPairing(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning pairing row: %w", err)
		}
		pairings = append(pairings, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating pairings: %w", err)
	}
	return pairings, nil
}

// ListPairingDetails returns every edge joined with both participants,
// ordered by giver name.
func (db *DB) ListPairingDetails(ctx context.Context) ([]model.PairingDetail, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT p.id, p.notified, p.notified_at, p.created_at,
		        g.id, g.name, g.email, g.department,
		        r.id, r.name, r.email, r.department
		 FROM pairings p
		 JOIN participants g ON g.id = p.giver_id
		 JOIN participants r ON r.id = p.receiver_id
		 ORDER BY g.name COLLATE NOCASE, p.id`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing pairing details: %w", err)
	}
	defer rows.Close()

	details := make([]model.PairingDetail, 0)
	for rows.Next() {
		var (
			d          model.PairingDetail
			notifiedAt sql.NullTime
		)
		if err := rows.Scan(
			&d.ID, &d.Notified, &notifiedAt, &d.CreatedAt,
			&d.Giver.ID, &d.Giver.Name, &d.Giver.Email, &d.Giver.Department,
			&d.Receiver.ID, &d.Receiver.Name, &d.Receiver.Email, &d.Receiver.Department,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scanning pairing detail row: %w", err)
		}
		d.NotifiedAt = nullTime(notifiedAt)
		details = append(details, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating pairing details: %w", err)
	}
	return details, nil
}

// CountPairings counts the edges of the current generation.
func (db *DB) CountPairings(ctx context.Context) (int, error) {
	var n int
	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM pairings`).Scan(&n); err != nil {
		return 0, fmt.Errorf("sqlite: counting pairings: %w", err)
	}
	return n, nil
}

// MarkNotified flags the giver's edge as notified. The only mutation an edge
// ever receives after creation.
func (db *DB) MarkNotified(ctx context.Context, giverID string, at time.Time) error {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE pairings SET notified = 1, notified_at = ? WHERE giver_id = ?`, at, giverID)
	if err != nil {
		return fmt.Errorf("sqlite: marking pairing notified for %s: %w", giverID, err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return apperror.NotFound("pairing for giver", giverID)
	}
	return nil
}
