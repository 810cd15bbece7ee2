package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/secret-santa/internal/apperror"
	"github.com/sakif/secret-santa/internal/model"
	"github.com/sakif/secret-santa/internal/repository"
)

var _ repository.GiftRepository = (*DB)(nil)

const giftColumns = `id, giver_id, name, message, image_ref, submitted_at, created_at, updated_at`

func scanGift(row rowScanner) (*model.Gift, error) {
	var g model.Gift
	if err := row.Scan(&g.ID, &g.GiverID, &g.Name, &g.Message, &g.ImageRef,
		&g.SubmittedAt, &g.CreatedAt, &g.UpdatedAt); err != nil {
		return nil, err
	}
	return &g, nil
}

// UpsertGift creates the giver's gift or replaces name, message and image.
//
// A giver has at most one gift (UNIQUE giver_id). The lookup and the write run
// in the same transaction so the "created" answer matches what was written.
// On an update the existing ID and CreatedAt are copied back into g.
func (db *DB) UpsertGift(ctx context.Context, g *model.Gift) (bool, error) {
	now := time.Now().UTC()
	created := false

	err := db.withTx(ctx, func(tx *sql.Tx) error {
		existing, err := scanGift(tx.QueryRowContext(ctx,
			`SELECT `+giftColumns+` FROM gifts WHERE giver_id = ?`, g.GiverID))
		switch {
		case errors.Is(err, sql.ErrNoRows):
			created = true
			g.ID = xid.New().String()
			g.SubmittedAt = now
			g.CreatedAt = now
			g.UpdatedAt = now
			_, err = tx.ExecContext(ctx,
				`INSERT INTO gifts (`+giftColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				g.ID, g.GiverID, g.Name, g.Message, g.ImageRef, g.SubmittedAt, g.CreatedAt, g.UpdatedAt)
			if err != nil {
				return fmt.Errorf("sqlite: inserting gift for %s: %w", g.GiverID, err)
			}
			return nil
		case err != nil:
			return fmt.Errorf("sqlite: loading gift for %s: %w", g.GiverID, err)
		}

		g.ID = existing.ID
		g.CreatedAt = existing.CreatedAt
		g.SubmittedAt = now
		g.UpdatedAt = now
		_, err = tx.ExecContext(ctx,
			`UPDATE gifts SET name = ?, message = ?, image_ref = ?, submitted_at = ?, updated_at = ?
			 WHERE id = ?`,
			g.Name, g.Message, g.ImageRef, g.SubmittedAt, g.UpdatedAt, g.ID)
		if err != nil {
			return fmt.Errorf("sqlite: updating gift %s: %w", g.ID, err)
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return created, nil
}

// GetGiftByGiver returns the gift submitted by giverID.
func (db *DB) GetGiftByGiver(ctx context.Context, giverID string) (*model.Gift, error) {
	g, err := scanGift(db.conn.QueryRowContext(ctx,
		`SELECT `+giftColumns+` FROM gifts WHERE giver_id = ?`, giverID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("gift for giver", giverID)
		}
		return nil, fmt.Errorf("sqlite: getting gift for %s: %w", giverID, err)
	}
	return g, nil
}

// DeleteGiftByGiver removes the giver's gift and returns what was deleted,
// so the caller can clean up the stored image.
func (db *DB) DeleteGiftByGiver(ctx context.Context, giverID string) (*model.Gift, error) {
	var deleted *model.Gift
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		g, err := scanGift(tx.QueryRowContext(ctx,
			`SELECT `+giftColumns+` FROM gifts WHERE giver_id = ?`, giverID))
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return apperror.NotFound("gift for giver", giverID)
			}
			return fmt.Errorf("sqlite: loading gift for %s: %w", giverID, err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM gifts WHERE id = ?`, g.ID); err != nil {
			return fmt.Errorf("sqlite: deleting gift %s: %w", g.ID, err)
		}
		deleted = g
		return nil
	})
	if err != nil {
		return nil, err
	}
	return deleted, nil
}

// ListGiftDetails returns every gift with its giver, newest submission first.
func (db *DB) ListGiftDetails(ctx context.Context) ([]model.GiftDetail, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT g.id, g.giver_id, g.name, g.message, g.image_ref, g.submitted_at, g.created_at, g.updated_at,
		        p.id, p.name, p.email, p.department
		 FROM gifts g
		 JOIN participants p ON p.id = g.giver_id
		 ORDER BY g.submitted_at DESC, g.id`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing gifts: %w", err)
	}
	defer rows.Close()

	gifts := make([]model.GiftDetail, 0)
	for rows.Next() {
		var d model.GiftDetail
		if err := rows.Scan(
			&d.ID, &d.GiverID, &d.Name, &d.Message, &d.ImageRef, &d.SubmittedAt, &d.CreatedAt, &d.UpdatedAt,
			&d.Giver.ID, &d.Giver.Name, &d.Giver.Email, &d.Giver.Department,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scanning gift row: %w", err)
		}
		gifts = append(gifts, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating gifts: %w", err)
	}
	return gifts, nil
}

// CountGifts counts submitted gifts.
func (db *DB) CountGifts(ctx context.Context) (int, error) {
	var n int
	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM gifts`).Scan(&n); err != nil {
		return 0, fmt.Errorf("sqlite: counting gifts: %w", err)
	}
	return n, nil
}
