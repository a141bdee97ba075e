// Command main runs the database seeder for TwitSnap.
package main

import (
	"context"
	"flag"
	"log"

	"twitsnap/internal/config"
	"twitsnap/internal/database"
	"twitsnap/internal/seed"
)

func main() {
	numAuthors := flag.Int("authors", 20, "Number of synthetic authors")
	numSnaps := flag.Int("snaps", 200, "Number of snaps to create")
	maxDays := flag.Int("days", 90, "Spread created_at over this many days")
	shouldClean := flag.Bool("clean", true, "Clean database before seeding")
	dryRun := flag.Bool("dry-run", false, "Build data without writing it")
	randomSeed := flag.Int64("seed", 0, "Random seed (0 uses the clock)")
	flag.Parse()

	log.Println("🌱 Database Seeder")
	log.Println("==================")
	log.Printf("Target: %d authors, %d snaps, clean=%v\n", *numAuthors, *numSnaps, *shouldClean)

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	_, err = seed.NewSeeder(db).Seed(context.Background(), seed.Options{
		NumAuthors:  *numAuthors,
		NumSnaps:    *numSnaps,
		ShouldClean: *shouldClean,
		MaxDays:     *maxDays,
		RandomSeed:  *randomSeed,
		DryRun:      *dryRun,
	})
	if err != nil {
		log.Fatalf("❌ Seeding failed: %v", err)
	}

	log.Println("✨ All done! Your database is now populated with test data.")
}
