// seed/main.go
package main

import (
	"flag"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/lingokeep/progress_api/seed/seeders"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	// Parse command line flags
	var (
		seedType = flag.String("type", "all", "Type of seeding: all, challenges, achievements")
		dsn      = flag.String("dsn", "", "Database DSN (overrides DATABASE_URL env var)")
		help     = flag.Bool("help", false, "Show help message")
	)
	flag.Parse()

	if *help {
		showHelp()
		return
	}

	databaseURL := *dsn
	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
		if databaseURL == "" {
			log.Fatal("No DSN provided: set DATABASE_URL or pass -dsn")
		}
	}

	// Connect to database
	db, err := gorm.Open(postgres.Open(databaseURL), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Info),
	})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	log.Println("Connected to database")

	mainSeeder := seeders.NewMainSeeder(db)

	switch *seedType {
	case "all":
		log.Println("Running complete catalog seeding...")
		if err := mainSeeder.SeedAll(); err != nil {
			log.Fatalf("Failed to seed database: %v", err)
		}
	case "challenges":
		log.Println("Seeding challenges only...")
		if err := mainSeeder.SeedChallengesOnly(); err != nil {
			log.Fatalf("Failed to seed challenges: %v", err)
		}
	case "achievements":
		log.Println("Seeding achievements only...")
		if err := mainSeeder.SeedAchievementsOnly(); err != nil {
			log.Fatalf("Failed to seed achievements: %v", err)
		}
	default:
		log.Fatalf("Unknown seed type: %s. Use 'all', 'challenges', or 'achievements'", *seedType)
	}

	log.Println("Seeding operation completed successfully!")
}

func showHelp() {
	log.Println(`
Catalog Seeding Tool

Usage: go run seed/main.go [flags]

Flags:
  -type string
        Type of seeding to perform (default "all")
        Options: all, challenges, achievements
  -dsn string
        Database DSN (overrides DATABASE_URL environment variable)
  -help
        Show this help message

Examples:
  # Seed everything
  go run seed/main.go

  # Seed only challenges
  go run seed/main.go -type=challenges

Environment Variables:
  DATABASE_URL - Postgres connection string`)
}
