package sqlite

import (
	"context"
	"fmt"

	"github.com/sakif/secret-santa/internal/repository"
)

var _ repository.StatsRepository = (*DB)(nil)

// Stats computes every dashboard counter in one round trip.
func (db *DB) Stats(ctx context.Context) (repository.Stats, error) {
	var s repository.Stats
	err := db.conn.QueryRowContext(ctx,
		`SELECT
		    (SELECT COUNT(*) FROM participants WHERE active = 1),
		    (SELECT COUNT(*) FROM pairings),
		    (SELECT COUNT(*) FROM gifts),
		    (SELECT COUNT(*) FROM participants WHERE active = 1 AND has_revealed = 1),
		    (SELECT COUNT(*) FROM participants WHERE active = 1 AND has_logged_in = 1)`,
	).Scan(&s.ActiveParticipants, &s.Pairings, &s.Gifts, &s.Revealed, &s.LoggedIn)
	if err != nil {
		return repository.Stats{}, fmt.Errorf("sqlite: computing stats: %w", err)
	}
	return s, nil
}
