package models

import (
	"time"

	"github.com/google/uuid"
)

// FoodSource represents the 'food_sources' table: one row per upstream
// provider (USDA FoodData Central today, others plug in alongside it).
type FoodSource struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	BaseURL   string    `json:"base_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// WweiaCategory represents the 'wweia_categories' table (USDA's "What We
// Eat In America" food categorization scheme).
type WweiaCategory struct {
	ID         uuid.UUID `json:"id"`
	ExternalID string    `json:"external_id"`
	Name       string    `json:"name"`
	CreatedAt  time.Time `json:"created_at"`
}

// Nutrient represents the 'nutrients' table, keyed by name (e.g.
// "Protein", "Total lipid (fat)").
type Nutrient struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Unit represents the 'units' table, keyed by unit name (e.g. "G", "MG",
// "KCAL").
type Unit struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Food represents the 'foods' table: one row per (source, external_id)
// pair, unique across re-ingestion of the same upstream record.
type Food struct {
	ID         uuid.UUID  `json:"id"`
	SourceID   uuid.UUID  `json:"source_id"`
	ExternalID string     `json:"external_id"`
	Name       string     `json:"name"`
	FnddsCode  string     `json:"fndds_code,omitempty"`
	CategoryID *uuid.UUID `json:"category_id,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// FoodNutrient represents the 'food_nutrients' table: the per-food
// quantity of a given nutrient, in a given unit, as reported by a given
// source. Unique on (food_id, nutrient_id, source_id) so re-ingestion
// updates the value in place rather than duplicating the row.
type FoodNutrient struct {
	FoodID     uuid.UUID `json:"food_id"`
	NutrientID uuid.UUID `json:"nutrient_id"`
	UnitID     uuid.UUID `json:"unit_id"`
	SourceID   uuid.UUID `json:"source_id"`
	Value      float64   `json:"value"`
}

// AggregationWatermark represents the 'aggregation_watermarks' table:
// one row per completed sweep of a source, appended and never
// overwritten. The Run Gate reads the newest row to enforce the cooldown.
type AggregationWatermark struct {
	SourceID  uuid.UUID `json:"source_id"`
	LastRunAt time.Time `json:"last_run_at"`
}

// IndexingError represents the 'indexing_errors' table: a dead-letter
// record for a page abandoned after exhausting retries. Best-effort;
// writing one never blocks or fails a sweep.
type IndexingError struct {
	ID         uuid.UUID `json:"id"`
	SourceID   uuid.UUID `json:"source_id"`
	Page       int       `json:"page"`
	Reason     string    `json:"reason"`
	OccurredAt time.Time `json:"occurred_at"`
}
