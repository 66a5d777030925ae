package persist

import (
	"context"
	"fmt"
	"time"
)

// Event kinds stored in plane_events.
const (
	KindJoin  = "join"
	KindLeave = "leave"
	KindFire  = "fire"
)

// PlaneEvent is one recorded gameplay event.
type PlaneEvent struct {
	Kind       string
	PlayerID   uint64
	PlayerName string
	X, Y       float64
	OccurredAt time.Time
}

// FirerStat is one row of the fire leaderboard.
type FirerStat struct {
	PlayerName string `json:"name"`
	Fires      int64  `json:"fires"`
}

type PlaneEventRepo struct {
	db *DB
}

func NewPlaneEventRepo(db *DB) *PlaneEventRepo {
	return &PlaneEventRepo{db: db}
}

// WriteEvents atomically writes a batch of events in a single transaction.
func (r *PlaneEventRepo) WriteEvents(ctx context.Context, events []PlaneEvent) error {
	if len(events) == 0 {
		return nil
	}
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("plane events begin: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, e := range events {
		if _, err := tx.Exec(ctx,
			`INSERT INTO plane_events (kind, player_id, player_name, x, y, occurred_at)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			e.Kind, int64(e.PlayerID), e.PlayerName, e.X, e.Y, e.OccurredAt,
		); err != nil {
			return fmt.Errorf("plane events insert: %w", err)
		}
	}

	return tx.Commit(ctx)
}

// TopFirers returns the players with the most fire events since since.
func (r *PlaneEventRepo) TopFirers(ctx context.Context, since time.Time, limit int) ([]FirerStat, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT player_name, COUNT(*) AS fires
		 FROM plane_events
		 WHERE kind = $1 AND occurred_at >= $2
		 GROUP BY player_id, player_name
		 ORDER BY fires DESC, player_name
		 LIMIT $3`,
		KindFire, since, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("top firers: %w", err)
	}
	defer rows.Close()

	var out []FirerStat
	for rows.Next() {
		var s FirerStat
		if err := rows.Scan(&s.PlayerName, &s.Fires); err != nil {
			return nil, fmt.Errorf("top firers scan: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// PurgeBefore deletes events older than cutoff and returns how many went.
func (r *PlaneEventRepo) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM plane_events WHERE occurred_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge plane events: %w", err)
	}
	return tag.RowsAffected(), nil
}
