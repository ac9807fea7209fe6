package repositories

import (
	"errors"

	"github.com/google/uuid"
	"github.com/lingokeep/progress_api/model"
	"gorm.io/gorm"
)

// StatsRepository handles daily stat and user progress rows.
type StatsRepository struct {
	BaseRepository
}

func NewStatsRepository(db *gorm.DB) *StatsRepository {
	return &StatsRepository{
		BaseRepository: NewBaseRepository(db),
	}
}

func (r *StatsRepository) GetDailyStat(userID, date string) (*model.DailyStat, error) {
	var stat model.DailyStat
	if err := r.db.Where("user_id = ? AND date = ?", userID, date).First(&stat).Error; err != nil {
		return nil, err
	}
	return &stat, nil
}

// GetOrCreateDailyStat returns the row for (userID, date), creating it if
// missing. A concurrent create loses on the unique index and falls back to
// fetching the winner's row.
func (r *StatsRepository) GetOrCreateDailyStat(userID, date string) (*model.DailyStat, error) {
	stat, err := r.GetDailyStat(userID, date)
	if err == nil {
		return stat, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	id, _ := uuid.NewV7()
	fresh := &model.DailyStat{
		ID:          id.String(),
		UserID:      userID,
		Date:        date,
		TopicCounts: []byte("{}"),
	}
	if createErr := r.db.Create(fresh).Error; createErr != nil {
		// Lost the create race, the row exists now.
		return r.GetDailyStat(userID, date)
	}
	return fresh, nil
}

// SaveDailyStatVersioned persists stat only if nobody else touched the row
// since it was read. Returns false when the version check fails; the caller
// reloads and retries.
func (r *StatsRepository) SaveDailyStatVersioned(stat *model.DailyStat) (bool, error) {
	oldVersion := stat.Version
	res := r.db.Model(&model.DailyStat{}).
		Where("id = ? AND version = ?", stat.ID, oldVersion).
		Updates(map[string]interface{}{
			"messages_count":      stat.MessagesCount,
			"words_said":          stat.WordsSaid,
			"saved_words":         stat.SavedWords,
			"high_accuracy_count": stat.HighAccuracyCount,
			"score_sum":           stat.ScoreSum,
			"correct_percent":     stat.CorrectPercent,
			"topic_counts":        stat.TopicCounts,
			"streak_day":          stat.StreakDay,
			"version":             oldVersion + 1,
		})
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		return false, nil
	}
	stat.Version = oldVersion + 1
	return true, nil
}

// ClaimStreakDay tags the day's stat row with its streak ordinal. The
// streak_day = 0 guard lets exactly one concurrent caller through.
func (r *StatsRepository) ClaimStreakDay(userID, date string, streak int) (bool, error) {
	res := r.db.Model(&model.DailyStat{}).
		Where("user_id = ? AND date = ? AND streak_day = 0", userID, date).
		Updates(map[string]interface{}{
			"streak_day": streak,
			"version":    gorm.Expr("version + 1"),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *StatsRepository) GetStatsInRange(userID, fromDate, toDate string) ([]model.DailyStat, error) {
	var stats []model.DailyStat
	err := r.db.Where("user_id = ? AND date >= ? AND date <= ?", userID, fromDate, toDate).
		Order("date ASC").
		Find(&stats).Error
	return stats, err
}

// ActiveUserIDs returns the distinct users with a stat row on any of the
// given dates. Used by the hourly refresh job.
func (r *StatsRepository) ActiveUserIDs(dates []string) ([]string, error) {
	var ids []string
	err := r.db.Model(&model.DailyStat{}).
		Distinct("user_id").
		Where("date IN ?", dates).
		Pluck("user_id", &ids).Error
	return ids, err
}

// LifetimeTotals sums message counts and score sums across all of a user's
// daily stats, for the accuracy achievement evaluator.
func (r *StatsRepository) LifetimeTotals(userID string) (messages int, scoreSum int, err error) {
	row := struct {
		Messages int
		ScoreSum int
	}{}
	err = r.db.Model(&model.DailyStat{}).
		Select("COALESCE(SUM(messages_count),0) AS messages, COALESCE(SUM(score_sum),0) AS score_sum").
		Where("user_id = ?", userID).
		Scan(&row).Error
	return row.Messages, row.ScoreSum, err
}

// ==================== USER PROGRESS ====================

func (r *StatsRepository) GetUserProgress(userID string) (*model.UserProgress, error) {
	var progress model.UserProgress
	if err := r.db.Where("user_id = ?", userID).First(&progress).Error; err != nil {
		return nil, err
	}
	return &progress, nil
}

func (r *StatsRepository) GetOrCreateUserProgress(userID string) (*model.UserProgress, error) {
	progress, err := r.GetUserProgress(userID)
	if err == nil {
		return progress, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	id, _ := uuid.NewV7()
	fresh := &model.UserProgress{
		ID:       id.String(),
		UserID:   userID,
		Timezone: "UTC",
	}
	if createErr := r.db.Create(fresh).Error; createErr != nil {
		return r.GetUserProgress(userID)
	}
	return fresh, nil
}

// SetStreakState writes the streak columns only. The cumulative totals are
// owned by IncrementTotals and must never be written from a read snapshot.
func (r *StatsRepository) SetStreakState(userID string, current, max int, lastActiveDate string) error {
	return r.db.Model(&model.UserProgress{}).
		Where("user_id = ?", userID).
		Updates(map[string]interface{}{
			"current_streak":   current,
			"max_streak":       max,
			"last_active_date": lastActiveDate,
		}).Error
}

func (r *StatsRepository) SetTimezone(userID, timezone string) error {
	return r.db.Model(&model.UserProgress{}).
		Where("user_id = ?", userID).
		Update("timezone", timezone).Error
}

// IncrementTotals bumps the cumulative counters without a read-modify-write.
func (r *StatsRepository) IncrementTotals(userID string, messages, wordsSaved int) error {
	return r.db.Model(&model.UserProgress{}).
		Where("user_id = ?", userID).
		Updates(map[string]interface{}{
			"total_messages":    gorm.Expr("total_messages + ?", messages),
			"total_words_saved": gorm.Expr("total_words_saved + ?", wordsSaved),
		}).Error
}

// StreakHolders lists users whose stored streak is still positive, for the
// nightly expiry sweep.
func (r *StatsRepository) StreakHolders() ([]model.UserProgress, error) {
	var holders []model.UserProgress
	err := r.db.Where("current_streak > 0").Find(&holders).Error
	return holders, err
}

// ResetExpiredStreak zeroes the stored streak, but only if the row still
// carries the streak the sweep observed. Max streak is untouched.
func (r *StatsRepository) ResetExpiredStreak(userID string, observedStreak int) error {
	return r.db.Model(&model.UserProgress{}).
		Where("user_id = ? AND current_streak = ?", userID, observedStreak).
		Update("current_streak", 0).Error
}
