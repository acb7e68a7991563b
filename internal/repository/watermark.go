package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"foodaggregator/internal/models"
)

// LastRun returns the most recent time sourceName completed a full
// sweep, or the zero time if it never has. Watermarks are append-only,
// so this reads the newest of possibly many rows.
func (r *Repository) LastRun(ctx context.Context, sourceName string) (time.Time, error) {
	var lastRun time.Time
	err := r.db.QueryRow(ctx, `
		SELECT w.last_run_at
		FROM aggregation_watermarks w
		JOIN food_sources s ON s.id = w.source_id
		WHERE s.name = $1
		ORDER BY w.last_run_at DESC
		LIMIT 1
	`, sourceName).Scan(&lastRun)
	if errors.Is(err, pgx.ErrNoRows) {
		return time.Time{}, nil
	}
	return lastRun, err
}

// MarkCompleted appends a watermark recording that sourceName finished a
// full sweep at at, leaving any earlier watermark rows in place.
func (r *Repository) MarkCompleted(ctx context.Context, sourceName string, at time.Time) error {
	sourceID, err := r.getOrCreateSource(ctx, sourceName)
	if err != nil {
		return err
	}

	w := models.AggregationWatermark{SourceID: sourceID, LastRunAt: at}
	_, err = r.db.Exec(ctx, `
		INSERT INTO aggregation_watermarks (source_id, last_run_at)
		VALUES ($1, $2)
	`, w.SourceID, w.LastRunAt)
	return err
}
