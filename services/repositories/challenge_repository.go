package repositories

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lingokeep/progress_api/model"
	"gorm.io/gorm"
)

// ChallengeRepository handles the challenge catalog and per-user progress rows.
type ChallengeRepository struct {
	BaseRepository
}

func NewChallengeRepository(db *gorm.DB) *ChallengeRepository {
	return &ChallengeRepository{
		BaseRepository: NewBaseRepository(db),
	}
}

// ActiveByType returns active catalog entries ordered by code so that the
// deterministic daily selection sees a stable list.
func (r *ChallengeRepository) ActiveByType(challengeType string) ([]model.Challenge, error) {
	var challenges []model.Challenge
	err := r.db.Where("type = ? AND is_active = ?", challengeType, true).
		Order("code ASC").
		Find(&challenges).Error
	return challenges, err
}

func (r *ChallengeRepository) GetChallenge(challengeID string) (*model.Challenge, error) {
	var challenge model.Challenge
	if err := r.db.Where("id = ?", challengeID).First(&challenge).Error; err != nil {
		return nil, err
	}
	return &challenge, nil
}

func (r *ChallengeRepository) GetProgress(userID, challengeID, periodKey string) (*model.UserChallengeProgress, error) {
	var progress model.UserChallengeProgress
	err := r.db.Preload("Challenge").
		Where("user_id = ? AND challenge_id = ? AND period_key = ?", userID, challengeID, periodKey).
		First(&progress).Error
	if err != nil {
		return nil, err
	}
	return &progress, nil
}

// GetOrCreateProgress lazily creates the pending row for this period.
// Concurrent creates collapse onto the unique index.
func (r *ChallengeRepository) GetOrCreateProgress(userID, challengeID, periodKey string) (*model.UserChallengeProgress, error) {
	progress, err := r.GetProgress(userID, challengeID, periodKey)
	if err == nil {
		return progress, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	id, _ := uuid.NewV7()
	fresh := &model.UserChallengeProgress{
		ID:          id.String(),
		UserID:      userID,
		ChallengeID: challengeID,
		PeriodKey:   periodKey,
		Status:      model.ProgressStatusPending,
	}
	if createErr := r.db.Create(fresh).Error; createErr != nil {
		return r.GetProgress(userID, challengeID, periodKey)
	}
	return fresh, nil
}

// AdvanceProgress raises the stored progress to value. The guard keeps the
// column monotonic when a recompute runs with stale inputs.
func (r *ChallengeRepository) AdvanceProgress(progressID string, value int) error {
	return r.db.Model(&model.UserChallengeProgress{}).
		Where("id = ? AND progress < ?", progressID, value).
		Update("progress", value).Error
}

// MarkCompleted flips pending -> completed. Returns true when this call won
// the transition; a lost race or an already-completed row returns false.
func (r *ChallengeRepository) MarkCompleted(progressID string, at time.Time) (bool, error) {
	res := r.db.Model(&model.UserChallengeProgress{}).
		Where("id = ? AND status = ?", progressID, model.ProgressStatusPending).
		Updates(map[string]interface{}{
			"status":       model.ProgressStatusCompleted,
			"completed_at": at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// ClaimCAS flips completed -> claimed. The WHERE clause is the compare-and-set
// that guarantees a single winner under concurrent claims.
func (r *ChallengeRepository) ClaimCAS(progressID string, at time.Time) (bool, error) {
	res := r.db.Model(&model.UserChallengeProgress{}).
		Where("id = ? AND status = ?", progressID, model.ProgressStatusCompleted).
		Updates(map[string]interface{}{
			"status":     model.ProgressStatusClaimed,
			"claimed_at": at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
