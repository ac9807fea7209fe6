package seeders

import (
	"log"

	"gorm.io/gorm"
)

// MainSeeder coordinates all catalog seeding operations
type MainSeeder struct {
	db *gorm.DB
}

// NewMainSeeder creates a new main seeder
func NewMainSeeder(db *gorm.DB) *MainSeeder {
	return &MainSeeder{db: db}
}

// SeedAll runs all seeders. Safe to run on every boot: existing rows are
// left untouched.
func (s *MainSeeder) SeedAll() error {
	log.Println("Starting catalog seeding...")

	challengeSeeder := NewChallengeSeeder(s.db)
	if err := challengeSeeder.SeedChallenges(); err != nil {
		log.Printf("Challenge seeding failed: %v", err)
		return err
	}

	achievementSeeder := NewAchievementSeeder(s.db)
	if err := achievementSeeder.SeedAchievements(); err != nil {
		log.Printf("Achievement seeding failed: %v", err)
		return err
	}

	log.Println("Catalog seeding completed successfully!")
	return nil
}

// SeedChallengesOnly seeds only the challenge catalog
func (s *MainSeeder) SeedChallengesOnly() error {
	return NewChallengeSeeder(s.db).SeedChallenges()
}

// SeedAchievementsOnly seeds only the achievement catalog
func (s *MainSeeder) SeedAchievementsOnly() error {
	return NewAchievementSeeder(s.db).SeedAchievements()
}
