// Package source defines the upstream food-data provider contract that
// the aggregator drives. A Source knows how to page through one
// provider's catalog; it holds no scheduling, retry, or persistence
// logic of its own.
package source

import "context"

// Entry is one upstream food record, normalized enough for the
// persister to consume without knowing the wire format it came from.
type Entry struct {
	ExternalID   string
	Name         string
	FnddsCode    string
	CategoryCode string
	CategoryName string
	Nutrients    []EntryNutrient
}

// EntryNutrient is one nutrient measurement attached to an Entry.
type EntryNutrient struct {
	NutrientName string
	UnitName     string
	Value        float64
}

// Page is one page of results fetched from a Source, tagged with its page
// number. It does not carry the total page count; callers use
// Source.IsFinished to decide whether to keep paging.
type Page struct {
	Number  int
	Entries []Entry
}

// Source is the capability a concrete upstream provider (USDA today,
// others alongside it tomorrow) must implement. Implementations must be
// safe for concurrent use: Fetch and IsFinished are called from multiple
// worker goroutines at once.
type Source interface {
	// Name identifies the source for logging, watermark lookups, and the
	// food_sources table.
	Name() string

	// Fetch retrieves the given 1-indexed page. It returns a wrapped
	// error classified per the aggregator's error taxonomy (transient,
	// malformed, or fatal) so the caller can decide whether to retry.
	Fetch(ctx context.Context, page int) (Page, error)

	// IsFinished reports whether the given page number is past the end
	// of the catalog. It may return false until the total page count is
	// learned from the first successful Fetch.
	IsFinished(page int) bool
}
