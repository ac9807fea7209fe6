package repositories

import (
	"errors"

	"github.com/google/uuid"
	"github.com/lingokeep/progress_api/model"
	"gorm.io/gorm"
)

// LedgerRepository handles reward ledger rows and their audit trail.
// Balance columns are only ever changed through the atomic increment
// statements below, never read-modify-write.
type LedgerRepository struct {
	BaseRepository
}

func NewLedgerRepository(db *gorm.DB) *LedgerRepository {
	return &LedgerRepository{
		BaseRepository: NewBaseRepository(db),
	}
}

func (r *LedgerRepository) GetLedger(userID string) (*model.RewardLedger, error) {
	var ledger model.RewardLedger
	if err := r.db.Where("user_id = ?", userID).First(&ledger).Error; err != nil {
		return nil, err
	}
	return &ledger, nil
}

func (r *LedgerRepository) GetOrCreateLedger(userID string) (*model.RewardLedger, error) {
	ledger, err := r.GetLedger(userID)
	if err == nil {
		return ledger, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	id, _ := uuid.NewV7()
	fresh := &model.RewardLedger{
		ID:     id.String(),
		UserID: userID,
	}
	if createErr := r.db.Create(fresh).Error; createErr != nil {
		return r.GetLedger(userID)
	}
	return fresh, nil
}

// Credit adds amount to total, available and lifetime in one statement.
func (r *LedgerRepository) Credit(userID string, amount int) error {
	return r.db.Model(&model.RewardLedger{}).
		Where("user_id = ?", userID).
		Updates(map[string]interface{}{
			"total":     gorm.Expr("total + ?", amount),
			"available": gorm.Expr("available + ?", amount),
			"lifetime":  gorm.Expr("lifetime + ?", amount),
		}).Error
}

// Spend debits available/total and books the amount as spent, but only when
// the balance covers it. Lifetime is never touched. Returns false when the
// balance was insufficient.
func (r *LedgerRepository) Spend(userID string, amount int) (bool, error) {
	res := r.db.Model(&model.RewardLedger{}).
		Where("user_id = ? AND available >= ?", userID, amount).
		Updates(map[string]interface{}{
			"total":     gorm.Expr("total - ?", amount),
			"available": gorm.Expr("available - ?", amount),
			"spent":     gorm.Expr("spent + ?", amount),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *LedgerRepository) InsertTransaction(txn *model.StarTransaction) error {
	if txn.ID == "" {
		id, _ := uuid.NewV7()
		txn.ID = id.String()
	}
	return r.db.Create(txn).Error
}

func (r *LedgerRepository) ListTransactions(userID string, limit int) ([]model.StarTransaction, error) {
	var txns []model.StarTransaction
	err := r.db.Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&txns).Error
	return txns, err
}
