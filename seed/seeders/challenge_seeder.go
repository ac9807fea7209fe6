package seeders

import (
	"log"
	"time"

	"github.com/lingokeep/progress_api/model"
	"github.com/lingokeep/progress_api/shared"
	"gorm.io/gorm"
)

// ChallengeSeeder handles seeding the challenge catalog
type ChallengeSeeder struct {
	db *gorm.DB
}

// NewChallengeSeeder creates a new challenge seeder
func NewChallengeSeeder(db *gorm.DB) *ChallengeSeeder {
	return &ChallengeSeeder{db: db}
}

// SeedChallenges seeds the daily and weekly challenge catalog
func (s *ChallengeSeeder) SeedChallenges() error {
	challenges := s.getChallenges()

	for _, challenge := range challenges {
		var existing model.Challenge
		if err := s.db.Where("code = ?", challenge.Code).First(&existing).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				if err := s.db.Create(&challenge).Error; err != nil {
					log.Printf("Error creating challenge %s: %v", challenge.Code, err)
					return err
				}
				log.Printf("Created challenge: %s", challenge.Code)
			} else {
				log.Printf("Error checking challenge %s: %v", challenge.Code, err)
				return err
			}
		}
	}

	log.Println("Challenge seeding completed successfully")
	return nil
}

func (s *ChallengeSeeder) getChallenges() []model.Challenge {
	now := time.Now()

	return []model.Challenge{
		{
			ID:          "chal_daily_chatterbox",
			Code:        "daily_chatterbox",
			Type:        shared.ChallengeTypeDaily,
			Title:       "Chatterbox",
			Description: "Send 10 messages today",
			GoalType:    shared.GoalMessages,
			GoalValue:   10,
			RewardStars: 3,
			IsActive:    true,
			CreatedAt:   now,
			UpdatedAt:   now,
		},
		{
			ID:          "chal_daily_sharpshooter",
			Code:        "daily_sharpshooter",
			Type:        shared.ChallengeTypeDaily,
			Title:       "Sharpshooter",
			Description: "Send 5 messages with a score of 80 or higher today",
			GoalType:    shared.GoalHighAccuracyMessages,
			GoalValue:   5,
			RewardStars: 4,
			IsActive:    true,
			CreatedAt:   now,
			UpdatedAt:   now,
		},
		{
			ID:          "chal_daily_collector",
			Code:        "daily_collector",
			Type:        shared.ChallengeTypeDaily,
			Title:       "Word Collector",
			Description: "Save 5 new words today",
			GoalType:    shared.GoalSavedWords,
			GoalValue:   5,
			RewardStars: 3,
			IsActive:    true,
			CreatedAt:   now,
			UpdatedAt:   now,
		},
		{
			ID:          "chal_daily_traveler",
			Code:        "daily_traveler",
			Type:        shared.ChallengeTypeDaily,
			Title:       "Traveler",
			Description: "Send 5 messages about travel today",
			GoalType:    shared.GoalTopicMessage,
			GoalValue:   5,
			GoalTopic:   "travel",
			RewardStars: 4,
			IsActive:    true,
			CreatedAt:   now,
			UpdatedAt:   now,
		},
		{
			ID:          "chal_daily_keeper",
			Code:        "daily_streak_keeper",
			Type:        shared.ChallengeTypeDaily,
			Title:       "Streak Keeper",
			Description: "Reach a 3 day streak",
			GoalType:    shared.GoalStreakDays,
			GoalValue:   3,
			RewardStars: 5,
			IsActive:    true,
			CreatedAt:   now,
			UpdatedAt:   now,
		},
		{
			ID:          "chal_weekly_marathoner",
			Code:        "weekly_marathoner",
			Type:        shared.ChallengeTypeWeekly,
			Title:       "Marathoner",
			Description: "Send 50 messages this week",
			GoalType:    shared.GoalWeeklyMessages,
			GoalValue:   50,
			RewardStars: 10,
			IsActive:    true,
			CreatedAt:   now,
			UpdatedAt:   now,
		},
		{
			ID:          "chal_weekly_perfectionist",
			Code:        "weekly_perfectionist",
			Type:        shared.ChallengeTypeWeekly,
			Title:       "Perfectionist",
			Description: "Keep an average score of 85 or higher this week",
			GoalType:    shared.GoalWeeklyAccuracy,
			GoalValue:   85,
			RewardStars: 15,
			IsActive:    true,
			CreatedAt:   now,
			UpdatedAt:   now,
		},
		{
			ID:          "chal_weekly_lexicographer",
			Code:        "weekly_lexicographer",
			Type:        shared.ChallengeTypeWeekly,
			Title:       "Lexicographer",
			Description: "Save 20 new words this week",
			GoalType:    shared.GoalWeeklySavedWords,
			GoalValue:   20,
			RewardStars: 12,
			IsActive:    true,
			CreatedAt:   now,
			UpdatedAt:   now,
		},
	}
}
