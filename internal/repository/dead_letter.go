package repository

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"foodaggregator/internal/models"
)

// LogAbandoned records a page abandoned after exhausting retries. It is
// best-effort and runs outside any aggregator transaction: a failure to
// write the dead-letter row must never block ingestion.
func (r *Repository) LogAbandoned(ctx context.Context, sourceName string, page int, reason string) {
	sourceID, err := r.getOrCreateSource(ctx, sourceName)
	if err != nil {
		log.Printf("repository: abandon page %d for %q: resolve source: %v", page, sourceName, err)
		return
	}

	rec := models.IndexingError{
		ID:         uuid.New(),
		SourceID:   sourceID,
		Page:       page,
		Reason:     reason,
		OccurredAt: time.Now(),
	}

	_, err = r.db.Exec(ctx, `
		INSERT INTO indexing_errors (id, source_id, page, reason, occurred_at)
		VALUES ($1, $2, $3, $4, $5)
	`, rec.ID, rec.SourceID, rec.Page, rec.Reason, rec.OccurredAt)
	if err != nil {
		log.Printf("repository: log indexing error for %q page %d: %v", sourceName, page, err)
	}
}
