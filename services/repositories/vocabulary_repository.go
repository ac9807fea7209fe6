package repositories

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lingokeep/progress_api/model"
	"gorm.io/gorm"
)

// VocabularyRepository handles spaced-repetition card rows.
type VocabularyRepository struct {
	BaseRepository
}

func NewVocabularyRepository(db *gorm.DB) *VocabularyRepository {
	return &VocabularyRepository{
		BaseRepository: NewBaseRepository(db),
	}
}

func (r *VocabularyRepository) GetCard(cardID string) (*model.VocabularyCard, error) {
	var card model.VocabularyCard
	if err := r.db.Where("id = ?", cardID).First(&card).Error; err != nil {
		return nil, err
	}
	return &card, nil
}

func (r *VocabularyRepository) GetCardByWord(userID, word string) (*model.VocabularyCard, error) {
	var card model.VocabularyCard
	if err := r.db.Where("user_id = ? AND word = ?", userID, word).First(&card).Error; err != nil {
		return nil, err
	}
	return &card, nil
}

// GetOrCreateCard returns the card for (userID, word), creating a fresh one
// due immediately when the word is saved for the first time.
func (r *VocabularyRepository) GetOrCreateCard(userID, word string, now time.Time) (*model.VocabularyCard, bool, error) {
	card, err := r.GetCardByWord(userID, word)
	if err == nil {
		return card, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}

	id, _ := uuid.NewV7()
	fresh := &model.VocabularyCard{
		ID:             id.String(),
		UserID:         userID,
		Word:           word,
		EaseFactor:     2.5,
		IntervalDays:   1,
		NextReviewDate: now,
		QualityHistory: []byte("[]"),
	}
	if createErr := r.db.Create(fresh).Error; createErr != nil {
		card, err = r.GetCardByWord(userID, word)
		return card, false, err
	}
	return fresh, true, nil
}

func (r *VocabularyRepository) UpdateCard(card *model.VocabularyCard) error {
	return r.db.Save(card).Error
}

func (r *VocabularyRepository) CountCards(userID string) (int64, error) {
	var count int64
	err := r.db.Model(&model.VocabularyCard{}).
		Where("user_id = ?", userID).
		Count(&count).Error
	return count, err
}

// CountMastered counts cards reviewed at least five times whose interval has
// grown to a month or more.
func (r *VocabularyRepository) CountMastered(userID string) (int64, error) {
	var count int64
	err := r.db.Model(&model.VocabularyCard{}).
		Where("user_id = ? AND review_count >= ? AND interval_days >= ?", userID, 5, 30).
		Count(&count).Error
	return count, err
}

// DueCards returns cards due at or before now: never-reviewed cards first,
// then the hardest (lowest ease factor), then the most overdue.
func (r *VocabularyRepository) DueCards(userID string, now time.Time, limit int) ([]model.VocabularyCard, error) {
	var cards []model.VocabularyCard
	err := r.db.Where("user_id = ? AND next_review_date <= ?", userID, now).
		Order("CASE WHEN review_count = 0 THEN 0 ELSE 1 END ASC, ease_factor ASC, next_review_date ASC").
		Limit(limit).
		Find(&cards).Error
	return cards, err
}
