// Command resetwatermark deletes a source's aggregation watermark so its
// next scheduled run ignores the cooldown and starts a fresh sweep from
// page 1. Intended for manual operator use, not called by aggregatord.
package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is required")
	}
	if len(os.Args) < 2 {
		log.Fatalf("usage: %s <source-name>", os.Args[0])
	}
	sourceName := os.Args[1]

	pool, err := pgxpool.New(context.Background(), dbURL)
	if err != nil {
		log.Fatalf("unable to connect to database: %v", err)
	}
	defer pool.Close()

	ctx := context.Background()
	cmdTag, err := pool.Exec(ctx, `
		DELETE FROM aggregation_watermarks
		WHERE source_id = (SELECT id FROM food_sources WHERE name = $1)
	`, sourceName)
	if err != nil {
		log.Fatalf("failed to delete watermark: %v", err)
	}

	if cmdTag.RowsAffected() == 0 {
		fmt.Printf("no watermark found for %q; it will run on the next scheduler tick regardless\n", sourceName)
	} else {
		fmt.Printf("watermark cleared for %q; it is eligible to run again immediately\n", sourceName)
	}
}
