//go:build integration

package repository

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"foodaggregator/internal/source"
)

func newTestRepository(t *testing.T) *Repository {
	t.Helper()
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}

	ctx := context.Background()
	repo, err := NewRepository(ctx, dbURL)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(repo.Close)

	_, thisFile, _, _ := runtime.Caller(0)
	schemaPath := filepath.Join(filepath.Dir(thisFile), "..", "..", "schema.sql")
	if err := repo.Migrate(ctx, schemaPath); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return repo
}

func TestPersistUpsertsDimensionsFoodsAndNutrients(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	page := source.Page{Number: 1, Entries: []source.Entry{
		{
			ExternalID:   "1001",
			Name:         "Apple, raw",
			CategoryCode: "0100",
			CategoryName: "Milk and milk products",
			Nutrients: []source.EntryNutrient{
				{NutrientName: "Protein", UnitName: "G", Value: 0.3},
				{NutrientName: "Energy", UnitName: "KCAL", Value: 52},
			},
		},
	}}

	if err := repo.Persist(ctx, "usda", page); err != nil {
		t.Fatalf("persist: %v", err)
	}

	// Re-ingesting the same page should update in place, not duplicate.
	page.Entries[0].Name = "Apple, raw, renamed"
	if err := repo.Persist(ctx, "usda", page); err != nil {
		t.Fatalf("persist (re-run): %v", err)
	}

	var count int
	err := repo.db.QueryRow(ctx, `SELECT count(*) FROM foods WHERE external_id = '1001'`).Scan(&count)
	if err != nil {
		t.Fatalf("count foods: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected exactly one food row after re-ingestion, got %d", count)
	}

	var name string
	err = repo.db.QueryRow(ctx, `SELECT name FROM foods WHERE external_id = '1001'`).Scan(&name)
	if err != nil {
		t.Fatalf("read food name: %v", err)
	}
	if name != "Apple, raw, renamed" {
		t.Fatalf("expected updated name, got %q", name)
	}

	var nutrientCount int
	err = repo.db.QueryRow(ctx, `
		SELECT count(*) FROM food_nutrients fn
		JOIN foods f ON f.id = fn.food_id
		WHERE f.external_id = '1001'
	`).Scan(&nutrientCount)
	if err != nil {
		t.Fatalf("count food_nutrients: %v", err)
	}
	if nutrientCount != 2 {
		t.Fatalf("expected 2 food_nutrients rows, got %d", nutrientCount)
	}
}

func TestPersistCategoriesUniqueByName(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	// Two entries reporting the same category name under different
	// upstream codes must resolve to a single category row.
	page := source.Page{Number: 1, Entries: []source.Entry{
		{ExternalID: "2001", Name: "Whole milk", CategoryCode: "0100", CategoryName: "Milk and milk products"},
		{ExternalID: "2002", Name: "2% milk", CategoryCode: "0102", CategoryName: "Milk and milk products"},
	}}

	if err := repo.Persist(ctx, "usda", page); err != nil {
		t.Fatalf("persist: %v", err)
	}

	var count int
	err := repo.db.QueryRow(ctx, `SELECT count(*) FROM wweia_categories WHERE name = 'Milk and milk products'`).Scan(&count)
	if err != nil {
		t.Fatalf("count wweia_categories: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected exactly one category row for the shared name, got %d", count)
	}
}

func TestWatermarkRoundTrip(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	last, err := repo.LastRun(ctx, "usda")
	if err != nil {
		t.Fatalf("last run: %v", err)
	}
	if !last.IsZero() {
		t.Fatalf("expected zero watermark for a never-run source, got %v", last)
	}

	now := time.Now().UTC().Truncate(time.Microsecond)
	if err := repo.MarkCompleted(ctx, "usda", now); err != nil {
		t.Fatalf("mark completed: %v", err)
	}

	last, err = repo.LastRun(ctx, "usda")
	if err != nil {
		t.Fatalf("last run after mark: %v", err)
	}
	if !last.Equal(now) {
		t.Fatalf("expected watermark %v, got %v", now, last)
	}

	// A second completed sweep appends a new row rather than overwriting
	// the first; LastRun reports the newest one.
	later := now.Add(time.Hour)
	if err := repo.MarkCompleted(ctx, "usda", later); err != nil {
		t.Fatalf("mark completed (second sweep): %v", err)
	}

	last, err = repo.LastRun(ctx, "usda")
	if err != nil {
		t.Fatalf("last run after second mark: %v", err)
	}
	if !last.Equal(later) {
		t.Fatalf("expected watermark %v, got %v", later, last)
	}

	var watermarkCount int
	err = repo.db.QueryRow(ctx, `
		SELECT count(*) FROM aggregation_watermarks w
		JOIN food_sources s ON s.id = w.source_id
		WHERE s.name = 'usda'
	`).Scan(&watermarkCount)
	if err != nil {
		t.Fatalf("count aggregation_watermarks: %v", err)
	}
	if watermarkCount != 2 {
		t.Fatalf("expected two appended watermark rows, got %d", watermarkCount)
	}
}

func TestLogAbandonedIsBestEffort(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	repo.LogAbandoned(ctx, "usda", 7, "exhausted retries")

	var count int
	err := repo.db.QueryRow(ctx, `
		SELECT count(*) FROM indexing_errors ie
		JOIN food_sources s ON s.id = ie.source_id
		WHERE s.name = 'usda' AND ie.page = 7
	`).Scan(&count)
	if err != nil {
		t.Fatalf("count indexing_errors: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected one indexing_errors row, got %d", count)
	}
}
