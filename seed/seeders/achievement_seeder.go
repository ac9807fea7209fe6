package seeders

import (
	"log"
	"time"

	"github.com/lingokeep/progress_api/model"
	"github.com/lingokeep/progress_api/shared"
	"gorm.io/gorm"
)

// AchievementSeeder handles seeding the achievement catalog
type AchievementSeeder struct {
	db *gorm.DB
}

// NewAchievementSeeder creates a new achievement seeder
func NewAchievementSeeder(db *gorm.DB) *AchievementSeeder {
	return &AchievementSeeder{db: db}
}

// SeedAchievements seeds the achievement catalog
func (s *AchievementSeeder) SeedAchievements() error {
	achievements := s.getAchievements()

	for _, achievement := range achievements {
		var existing model.Achievement
		if err := s.db.Where("code = ?", achievement.Code).First(&existing).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				if err := s.db.Create(&achievement).Error; err != nil {
					log.Printf("Error creating achievement %s: %v", achievement.Code, err)
					return err
				}
				log.Printf("Created achievement: %s", achievement.Code)
			} else {
				log.Printf("Error checking achievement %s: %v", achievement.Code, err)
				return err
			}
		}
	}

	log.Println("Achievement seeding completed successfully")
	return nil
}

func (s *AchievementSeeder) getAchievements() []model.Achievement {
	now := time.Now()

	achievements := []model.Achievement{
		// Streak ladder
		{ID: "ach_streak_3", Code: "streak_3", Name: "Warming Up", Description: "Reach a 3 day streak", Category: shared.CategoryStreak, Threshold: 3, StarsReward: 2},
		{ID: "ach_streak_7", Code: "streak_7", Name: "One Week Wonder", Description: "Reach a 7 day streak", Category: shared.CategoryStreak, Threshold: 7, StarsReward: 5},
		{ID: "ach_streak_30", Code: "streak_30", Name: "Habit Formed", Description: "Reach a 30 day streak", Category: shared.CategoryStreak, Threshold: 30, StarsReward: 15},
		{ID: "ach_streak_100", Code: "streak_100", Name: "Centurion", Description: "Reach a 100 day streak", Category: shared.CategoryStreak, Threshold: 100, StarsReward: 50},

		// Message ladder
		{ID: "ach_msg_10", Code: "messages_10", Name: "First Words", Description: "Send 10 messages", Category: shared.CategoryMessages, Threshold: 10, StarsReward: 2},
		{ID: "ach_msg_100", Code: "messages_100", Name: "Conversationalist", Description: "Send 100 messages", Category: shared.CategoryMessages, Threshold: 100, StarsReward: 10},
		{ID: "ach_msg_1000", Code: "messages_1000", Name: "Orator", Description: "Send 1000 messages", Category: shared.CategoryMessages, Threshold: 1000, StarsReward: 40},

		// Vocabulary ladder
		{ID: "ach_vocab_10", Code: "vocabulary_10", Name: "Word Hoarder", Description: "Save 10 words", Category: shared.CategoryVocabulary, Threshold: 10, StarsReward: 2},
		{ID: "ach_vocab_100", Code: "vocabulary_100", Name: "Lexicon Builder", Description: "Save 100 words", Category: shared.CategoryVocabulary, Threshold: 100, StarsReward: 12},

		// Stars ladder
		{ID: "ach_stars_50", Code: "stars_50", Name: "Rising Star", Description: "Earn 50 stars", Category: shared.CategoryStars, Threshold: 50, StarsReward: 5},
		{ID: "ach_stars_500", Code: "stars_500", Name: "Constellation", Description: "Earn 500 stars", Category: shared.CategoryStars, Threshold: 500, StarsReward: 25},

		// Mastery ladder
		{ID: "ach_mastery_5", Code: "mastery_5", Name: "Getting It", Description: "Master 5 words", Category: shared.CategoryMastery, Threshold: 5, StarsReward: 5},
		{ID: "ach_mastery_50", Code: "mastery_50", Name: "Deep Roots", Description: "Master 50 words", Category: shared.CategoryMastery, Threshold: 50, StarsReward: 20},

		// Accuracy, hidden until earned
		{ID: "ach_accuracy_90", Code: "accuracy_90", Name: "Precision Speaker", Description: "Keep a lifetime average score of 90 or higher", Category: shared.CategoryAccuracy, Threshold: 90, StarsReward: 20, IsHidden: true},
	}

	for i := range achievements {
		achievements[i].IsActive = true
		achievements[i].CreatedAt = now
		achievements[i].UpdatedAt = now
	}
	return achievements
}
