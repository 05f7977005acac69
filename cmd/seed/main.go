// Command seed populates the database with demo data for TapCard.
package main

import (
	"flag"
	"log"

	"tapcard/internal/config"
	"tapcard/internal/database"
	"tapcard/internal/seed"
)

func main() {
	numUsers := flag.Int("users", 25, "Number of profiles to create")
	connectRatio := flag.Float64("connect-ratio", 0.15, "Fraction of pairs ending up connected")
	pendingRatio := flag.Float64("pending-ratio", 0.05, "Fraction of pairs left with a pending request")
	shouldClean := flag.Bool("clean", true, "Clean database before seeding")
	fixture := flag.String("fixture", "", "Path to a YAML fixture file (overrides generated data)")
	password := flag.String("password", "password123", "Password assigned to every seeded profile")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	s, err := seed.NewSeeder(db, seed.Options{
		Users:        *numUsers,
		ConnectRatio: *connectRatio,
		PendingRatio: *pendingRatio,
		Password:     *password,
	})
	if err != nil {
		log.Fatalf("Failed to create seeder: %v", err)
	}

	if *shouldClean {
		if err := s.ClearAll(); err != nil {
			log.Fatalf("Cleanup failed: %v", err)
		}
	}

	if *fixture != "" {
		fx, err := seed.LoadFixture(*fixture)
		if err != nil {
			log.Fatalf("Fixture load failed: %v", err)
		}
		if err := s.ApplyFixture(fx); err != nil {
			log.Fatalf("Fixture seeding failed: %v", err)
		}
	} else {
		profiles, err := s.SeedProfiles(*numUsers)
		if err != nil {
			log.Fatalf("Profile seeding failed: %v", err)
		}
		if err := s.SeedRelationships(profiles); err != nil {
			log.Fatalf("Relationship seeding failed: %v", err)
		}
	}

	log.Println("Done. All seeded profiles share the password:", *password)
}
