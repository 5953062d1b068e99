// Command seed fills the database with demo users, posts and reactions.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"shapeit/internal/config"
	"shapeit/internal/database"
	"shapeit/internal/seed"
)

func main() {
	presetPath := flag.String("preset", "", "YAML preset file (users, posts_per_user, reaction_probability, max_days, clean)")
	seedValue := flag.Int64("seed", time.Now().UnixNano(), "Random seed; the same seed reproduces the same data")
	flag.Parse()

	log.Println("🌱 Database Seeder")
	log.Println("==================")

	preset := seed.DefaultPreset
	if *presetPath != "" {
		p, err := seed.LoadPresetFile(*presetPath)
		if err != nil {
			log.Fatalf("Failed to load preset: %v", err)
		}
		preset = p
		log.Printf("Applying preset: %s", *presetPath)
	}
	log.Printf("Target: %d users, %d posts each, reaction probability %.2f, clean=%v",
		preset.Users, preset.PostsPerUser, preset.ReactionProbability, preset.Clean)

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.IsProduction() {
		log.Fatal("Refusing to seed a production database")
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	sum, err := seed.Run(context.Background(), db, preset, *seedValue)
	if err != nil {
		log.Fatalf("❌ Seeding failed: %v", err)
	}

	log.Printf("✨ All done! %d users, %d posts, %d reactions (seed %d)",
		sum.Users, sum.Posts, sum.Reactions, *seedValue)
}
