package repositories

import (
	"github.com/lingokeep/progress_api/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AchievementRepository handles the achievement catalog and unlock rows.
type AchievementRepository struct {
	BaseRepository
}

func NewAchievementRepository(db *gorm.DB) *AchievementRepository {
	return &AchievementRepository{
		BaseRepository: NewBaseRepository(db),
	}
}

// Active returns active achievements, optionally limited to one category.
func (r *AchievementRepository) Active(category string) ([]model.Achievement, error) {
	query := r.db.Where("is_active = ?", true)
	if category != "" {
		query = query.Where("category = ?", category)
	}

	var achievements []model.Achievement
	err := query.Order("category ASC, threshold ASC").Find(&achievements).Error
	return achievements, err
}

// UnlockedIDs returns the set of achievement ids the user already holds.
func (r *AchievementRepository) UnlockedIDs(userID string) (map[string]bool, error) {
	var ids []string
	err := r.db.Model(&model.UserAchievement{}).
		Where("user_id = ?", userID).
		Pluck("achievement_id", &ids).Error
	if err != nil {
		return nil, err
	}

	unlocked := make(map[string]bool, len(ids))
	for _, id := range ids {
		unlocked[id] = true
	}
	return unlocked, nil
}

func (r *AchievementRepository) ListUnlocks(userID string) ([]model.UserAchievement, error) {
	var unlocks []model.UserAchievement
	err := r.db.Preload("Achievement").
		Where("user_id = ?", userID).
		Order("unlocked_at ASC").
		Find(&unlocks).Error
	return unlocks, err
}

// InsertUnlock appends the unlock row exactly once. A concurrent evaluator
// hitting the unique index is swallowed by DO NOTHING and reported as false,
// so only one caller credits the reward.
func (r *AchievementRepository) InsertUnlock(unlock *model.UserAchievement) (bool, error) {
	res := r.db.Clauses(clause.OnConflict{DoNothing: true}).Create(unlock)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
