package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ametov/paraphrase-bot/internal/database"
)

type RotationRepo struct {
	db *database.DB
}

func NewRotationRepo(db *database.DB) *RotationRepo {
	return &RotationRepo{db: db}
}

func (r *RotationRepo) AppendEvent(ts time.Time) error {
	if _, err := r.db.Exec(`INSERT INTO rotation_events (ts) VALUES (?)`, ts.Unix()); err != nil {
		return fmt.Errorf("failed to append rotation event: %w", err)
	}
	return nil
}

func (r *RotationRepo) PruneBefore(cutoff time.Time) error {
	if _, err := r.db.Exec(`DELETE FROM rotation_events WHERE ts < ?`, cutoff.Unix()); err != nil {
		return fmt.Errorf("failed to prune rotation events: %w", err)
	}
	return nil
}

// LoadEventsSince returns in-window event timestamps in ascending order so
// the controller can rebuild its rolling window after a restart.
func (r *RotationRepo) LoadEventsSince(cutoff time.Time) ([]time.Time, error) {
	rows, err := r.db.Query(`SELECT ts FROM rotation_events WHERE ts >= ? ORDER BY ts ASC`, cutoff.Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to load rotation events: %w", err)
	}
	defer rows.Close()

	events := make([]time.Time, 0)
	for rows.Next() {
		var ts int64
		if err := rows.Scan(&ts); err != nil {
			return nil, fmt.Errorf("failed to scan rotation event: %w", err)
		}
		events = append(events, time.Unix(ts, 0))
	}
	return events, rows.Err()
}

type RotationState struct {
	ActiveIndex   int
	SinceRotation int
	Exhausted     bool
}

func (r *RotationRepo) SaveState(state RotationState) error {
	query := `
		INSERT INTO rotation_state (id, active_index, since_rotation, exhausted, updated_at)
		VALUES (1, ?, ?, ?, strftime('%s', 'now'))
		ON CONFLICT(id) DO UPDATE SET
			active_index = excluded.active_index,
			since_rotation = excluded.since_rotation,
			exhausted = excluded.exhausted,
			updated_at = excluded.updated_at
	`
	if _, err := r.db.Exec(query, state.ActiveIndex, state.SinceRotation, state.Exhausted); err != nil {
		return fmt.Errorf("failed to save rotation state: %w", err)
	}
	return nil
}

func (r *RotationRepo) LoadState() (RotationState, error) {
	var state RotationState
	err := r.db.QueryRow(
		`SELECT active_index, since_rotation, exhausted FROM rotation_state WHERE id = 1`,
	).Scan(&state.ActiveIndex, &state.SinceRotation, &state.Exhausted)
	if errors.Is(err, sql.ErrNoRows) {
		return RotationState{}, nil
	}
	if err != nil {
		return RotationState{}, fmt.Errorf("failed to load rotation state: %w", err)
	}
	return state, nil
}
