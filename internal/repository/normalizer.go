package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"foodaggregator/internal/models"
	"foodaggregator/internal/source"
)

const foodNutrientChunkSize = 1000

// Persist runs the two-phase bulk upsert for one page, inside a single
// transaction: dimension rows (categories, nutrients, units) first, then
// the Food rows that reference them, then the FoodNutrient facts,
// chunked to keep any one statement's bound-parameter array reasonable.
func (r *Repository) Persist(ctx context.Context, sourceName string, page source.Page) error {
	if len(page.Entries) == 0 {
		return nil
	}

	sourceID, err := r.getOrCreateSource(ctx, sourceName)
	if err != nil {
		return fmt.Errorf("get or create source: %w", err)
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	categoryCodeByName := map[string]string{}
	nutrientSet := map[string]struct{}{}
	unitSet := map[string]struct{}{}
	for _, e := range page.Entries {
		if e.CategoryName != "" {
			categoryCodeByName[e.CategoryName] = e.CategoryCode
		}
		for _, n := range e.Nutrients {
			nutrientSet[n.NutrientName] = struct{}{}
			unitSet[n.UnitName] = struct{}{}
		}
	}

	categoryNames := make([]string, 0, len(categoryCodeByName))
	categoryCodes := make([]string, 0, len(categoryCodeByName))
	for name, code := range categoryCodeByName {
		categoryNames = append(categoryNames, name)
		categoryCodes = append(categoryCodes, code)
	}

	categoryIDs, err := r.upsertCategories(ctx, tx, categoryNames, categoryCodes)
	if err != nil {
		return err
	}
	nutrientIDs, err := r.upsertByName(ctx, tx, "nutrients", setKeys(nutrientSet))
	if err != nil {
		return err
	}
	unitIDs, err := r.upsertByName(ctx, tx, "units", setKeys(unitSet))
	if err != nil {
		return err
	}

	foodIDByExt, err := r.upsertFoods(ctx, tx, sourceID, page.Entries, categoryIDs)
	if err != nil {
		return err
	}

	if err := r.upsertFoodNutrients(ctx, tx, sourceID, page.Entries, foodIDByExt, nutrientIDs, unitIDs); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func setKeys(s map[string]struct{}) []string {
	out := make([]string, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	return out
}

func (r *Repository) getOrCreateSource(ctx context.Context, name string) (uuid.UUID, error) {
	var id uuid.UUID
	err := r.db.QueryRow(ctx, `SELECT id FROM food_sources WHERE name = $1`, name).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, err
	}

	id = uuid.New()
	if _, err := r.db.Exec(ctx, `
		INSERT INTO food_sources (id, name) VALUES ($1, $2)
		ON CONFLICT (name) DO NOTHING
	`, id, name); err != nil {
		return uuid.Nil, err
	}
	err = r.db.QueryRow(ctx, `SELECT id FROM food_sources WHERE name = $1`, name).Scan(&id)
	return id, err
}

// upsertCategories maps USDA category names to rows, keyed by name since
// that's the dimension's unique key; the upstream code is carried as a
// plain, non-unique column alongside it.
func (r *Repository) upsertCategories(ctx context.Context, tx pgx.Tx, names, codes []string) (map[string]uuid.UUID, error) {
	if len(names) == 0 {
		return map[string]uuid.UUID{}, nil
	}

	ids := make([]uuid.UUID, len(names))
	for i := range ids {
		ids[i] = uuid.New()
	}

	_, err := tx.Exec(ctx, `
		INSERT INTO wweia_categories (id, external_id, name)
		SELECT u.id, u.external_id, u.name
		FROM UNNEST($1::uuid[], $2::text[], $3::text[]) AS u(id, external_id, name)
		ON CONFLICT (name) DO NOTHING
	`, ids, codes, names)
	if err != nil {
		return nil, fmt.Errorf("upsert wweia_categories: %w", err)
	}

	rows, err := tx.Query(ctx, `SELECT id, name FROM wweia_categories WHERE name = ANY($1)`, names)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]uuid.UUID, len(names))
	for rows.Next() {
		var id uuid.UUID
		var name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, err
		}
		out[name] = id
	}
	return out, rows.Err()
}

// upsertByName is the shared shape for nutrients and units: both tables
// are keyed on a unique display name with no other columns worth
// tracking separately.
func (r *Repository) upsertByName(ctx context.Context, tx pgx.Tx, table string, names []string) (map[string]uuid.UUID, error) {
	if len(names) == 0 {
		return map[string]uuid.UUID{}, nil
	}

	ids := make([]uuid.UUID, len(names))
	for i := range ids {
		ids[i] = uuid.New()
	}

	_, err := tx.Exec(ctx, fmt.Sprintf(`
		INSERT INTO %s (id, name)
		SELECT u.id, u.name FROM UNNEST($1::uuid[], $2::text[]) AS u(id, name)
		ON CONFLICT (name) DO NOTHING
	`, table), ids, names)
	if err != nil {
		return nil, fmt.Errorf("upsert %s: %w", table, err)
	}

	rows, err := tx.Query(ctx, fmt.Sprintf(`SELECT id, name FROM %s WHERE name = ANY($1)`, table), names)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]uuid.UUID, len(names))
	for rows.Next() {
		var id uuid.UUID
		var name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, err
		}
		out[name] = id
	}
	return out, rows.Err()
}

// buildFoods translates upstream entries into the typed rows the foods
// table expects, resolving each entry's category name to the id upserted
// earlier in the same transaction.
func buildFoods(sourceID uuid.UUID, entries []source.Entry, categoryIDs map[string]uuid.UUID) []models.Food {
	foods := make([]models.Food, len(entries))
	for i, e := range entries {
		f := models.Food{
			ID:         uuid.New(),
			SourceID:   sourceID,
			ExternalID: e.ExternalID,
			Name:       e.Name,
			FnddsCode:  e.FnddsCode,
		}
		if e.CategoryName != "" {
			if id, ok := categoryIDs[e.CategoryName]; ok {
				f.CategoryID = &id
			}
		}
		foods[i] = f
	}
	return foods
}

func (r *Repository) upsertFoods(ctx context.Context, tx pgx.Tx, sourceID uuid.UUID, entries []source.Entry, categoryIDs map[string]uuid.UUID) (map[string]uuid.UUID, error) {
	foods := buildFoods(sourceID, entries, categoryIDs)

	ids := make([]uuid.UUID, len(foods))
	sourceIDs := make([]uuid.UUID, len(foods))
	extIDs := make([]string, len(foods))
	names := make([]string, len(foods))
	fnddsCodes := make([]string, len(foods))
	catIDs := make([]*uuid.UUID, len(foods))
	for i, f := range foods {
		ids[i] = f.ID
		sourceIDs[i] = f.SourceID
		extIDs[i] = f.ExternalID
		names[i] = f.Name
		fnddsCodes[i] = f.FnddsCode
		catIDs[i] = f.CategoryID
	}

	_, err := tx.Exec(ctx, `
		INSERT INTO foods (id, source_id, external_id, name, fndds_code, category_id)
		SELECT u.id, u.source_id, u.external_id, u.name, NULLIF(u.fndds_code, ''), u.category_id
		FROM UNNEST($1::uuid[], $2::uuid[], $3::text[], $4::text[], $5::text[], $6::uuid[])
			AS u(id, source_id, external_id, name, fndds_code, category_id)
		ON CONFLICT (source_id, external_id) DO UPDATE SET
			name = EXCLUDED.name,
			fndds_code = EXCLUDED.fndds_code,
			category_id = EXCLUDED.category_id,
			updated_at = now()
	`, ids, sourceIDs, extIDs, names, fnddsCodes, catIDs)
	if err != nil {
		return nil, fmt.Errorf("upsert foods: %w", err)
	}

	rows, err := tx.Query(ctx, `
		SELECT id, external_id FROM foods WHERE source_id = $1 AND external_id = ANY($2)
	`, sourceID, extIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]uuid.UUID, len(foods))
	for rows.Next() {
		var id uuid.UUID
		var extID string
		if err := rows.Scan(&id, &extID); err != nil {
			return nil, err
		}
		out[extID] = id
	}
	return out, rows.Err()
}

// buildFoodNutrients flattens each entry's nutrient readings into rows,
// dropping any reading whose food, nutrient, or unit didn't resolve to an
// id (a malformed upstream record shouldn't sink its siblings).
func buildFoodNutrients(sourceID uuid.UUID, entries []source.Entry, foodIDByExt, nutrientIDs, unitIDs map[string]uuid.UUID) []models.FoodNutrient {
	var all []models.FoodNutrient
	for _, e := range entries {
		foodID, ok := foodIDByExt[e.ExternalID]
		if !ok {
			continue
		}
		for _, n := range e.Nutrients {
			nutrientID, ok := nutrientIDs[n.NutrientName]
			if !ok {
				continue
			}
			unitID, ok := unitIDs[n.UnitName]
			if !ok {
				continue
			}
			all = append(all, models.FoodNutrient{
				FoodID:     foodID,
				NutrientID: nutrientID,
				UnitID:     unitID,
				SourceID:   sourceID,
				Value:      n.Value,
			})
		}
	}
	return all
}

func (r *Repository) upsertFoodNutrients(ctx context.Context, tx pgx.Tx, sourceID uuid.UUID, entries []source.Entry, foodIDByExt, nutrientIDs, unitIDs map[string]uuid.UUID) error {
	all := buildFoodNutrients(sourceID, entries, foodIDByExt, nutrientIDs, unitIDs)

	for start := 0; start < len(all); start += foodNutrientChunkSize {
		end := min(start+foodNutrientChunkSize, len(all))
		chunk := all[start:end]

		foodIDs := make([]uuid.UUID, len(chunk))
		nutrientIDsArr := make([]uuid.UUID, len(chunk))
		unitIDsArr := make([]uuid.UUID, len(chunk))
		sourceIDs := make([]uuid.UUID, len(chunk))
		values := make([]float64, len(chunk))
		for i, c := range chunk {
			foodIDs[i] = c.FoodID
			nutrientIDsArr[i] = c.NutrientID
			unitIDsArr[i] = c.UnitID
			sourceIDs[i] = c.SourceID
			values[i] = c.Value
		}

		_, err := tx.Exec(ctx, `
			INSERT INTO food_nutrients (food_id, nutrient_id, unit_id, source_id, value)
			SELECT u.food_id, u.nutrient_id, u.unit_id, u.source_id, u.value
			FROM UNNEST($1::uuid[], $2::uuid[], $3::uuid[], $4::uuid[], $5::float8[])
				AS u(food_id, nutrient_id, unit_id, source_id, value)
			ON CONFLICT (food_id, nutrient_id, source_id) DO UPDATE SET
				unit_id = EXCLUDED.unit_id,
				value = EXCLUDED.value
		`, foodIDs, nutrientIDsArr, unitIDsArr, sourceIDs, values)
		if err != nil {
			return fmt.Errorf("upsert food_nutrients: %w", err)
		}
	}

	return nil
}
