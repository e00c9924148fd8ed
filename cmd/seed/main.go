// Command main seeds the configured database with demo data.
package main

import (
	"context"
	"flag"
	"log"

	"stackit/internal/config"
	"stackit/internal/database"
	"stackit/internal/repository"
	"stackit/internal/seed"
)

func main() {
	numQuestions := flag.Int("questions", 0, "Generated questions to add on top of the fixture")
	numUsers := flag.Int("users", 20, "Generated users, used when -questions is set")
	maxAnswers := flag.Int("answers", 4, "Maximum generated answers per question")
	rngSeed := flag.Int64("seed", 0, "Seed for reproducible generated data (0 = random)")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer func() { _ = database.Close(db) }()

	ctx := context.Background()
	store := repository.NewGormStore(db)

	res, err := seed.Seed(ctx, store)
	if err != nil {
		log.Fatalf("Fixture seeding failed: %v", err)
	}
	if res.Skipped {
		log.Println("Fixture already present, skipping")
	} else {
		log.Printf("Fixture seeded: %d users, %d questions, %d answers, %d votes",
			len(res.Users), len(res.Questions), len(res.Answers), res.Votes)
	}

	if *numQuestions > 0 {
		vol, err := seed.Volume(ctx, store, seed.VolumeOptions{
			Users:      *numUsers,
			Questions:  *numQuestions,
			MaxAnswers: *maxAnswers,
			Seed:       *rngSeed,
		})
		if err != nil {
			log.Fatalf("Volume seeding failed: %v", err)
		}
		log.Printf("Generated %d users, %d questions, %d answers, %d votes",
			len(vol.Users), len(vol.Questions), len(vol.Answers), vol.Votes)
	}

	log.Println("Done. Fixture users sign in with password: password123")
}
