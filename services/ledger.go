package services

import (
	"fmt"
	"time"

	"github.com/alphabatem/common/context"
	"github.com/lingokeep/progress_api/dto"
	"github.com/lingokeep/progress_api/model"
	"github.com/lingokeep/progress_api/services/repositories"
	"github.com/lingokeep/progress_api/shared"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// LedgerService is the only component allowed to mutate star balances.
// Credits are additive atomic increments; lifetime never decreases.
type LedgerService struct {
	context.DefaultService

	db      *gorm.DB
	ledgers *repositories.LedgerRepository
	now     func() time.Time
}

const LEDGER_SVC = "ledger_svc"

func (svc LedgerService) Id() string {
	return LEDGER_SVC
}

func (svc *LedgerService) Configure(ctx *context.Context) error {
	return svc.DefaultService.Configure(ctx)
}

func (svc *LedgerService) Start() error {
	sqlSvc := svc.Service(POSTGRES_SVC).(*PostgresService)
	svc.initWithDb(sqlSvc.Db())
	return nil
}

func (svc *LedgerService) initWithDb(db *gorm.DB) {
	svc.db = db
	svc.ledgers = repositories.NewLedgerRepository(db)
	if svc.now == nil {
		svc.now = time.Now
	}
}

// CreditStars credits amount to the user's balance and books an audit row.
func (svc *LedgerService) CreditStars(userID string, amount int, reason, reference string) error {
	return svc.db.Transaction(func(tx *gorm.DB) error {
		return svc.creditInTx(tx, userID, amount, reason, reference)
	})
}

// creditInTx is the shared credit path for callers that already hold a
// transaction (reward claims, achievement unlocks).
func (svc *LedgerService) creditInTx(tx *gorm.DB, userID string, amount int, reason, reference string) error {
	if amount <= 0 {
		return fmt.Errorf("credit amount must be positive, got %d", amount)
	}

	repo := repositories.NewLedgerRepository(tx)
	if _, err := repo.GetOrCreateLedger(userID); err != nil {
		return err
	}
	if err := repo.Credit(userID, amount); err != nil {
		return err
	}
	if err := repo.InsertTransaction(&model.StarTransaction{
		UserID:    userID,
		Amount:    amount,
		Reason:    reason,
		Reference: reference,
	}); err != nil {
		return err
	}

	starsCreditedTotal.WithLabelValues(reason).Add(float64(amount))
	return nil
}

// SpendStars debits the available balance. Lifetime is untouched, so the
// total == lifetime - spent invariant holds by construction.
func (svc *LedgerService) SpendStars(userID string, amount int, reason string) error {
	if amount <= 0 {
		return fmt.Errorf("spend amount must be positive, got %d", amount)
	}

	return svc.db.Transaction(func(tx *gorm.DB) error {
		repo := repositories.NewLedgerRepository(tx)
		if _, err := repo.GetOrCreateLedger(userID); err != nil {
			return err
		}

		ok, err := repo.Spend(userID, amount)
		if err != nil {
			return err
		}
		if !ok {
			return shared.ErrInsufficientStars
		}

		return repo.InsertTransaction(&model.StarTransaction{
			UserID: userID,
			Amount: -amount,
			Reason: reason,
		})
	})
}

func (svc *LedgerService) Balance(userID string) (*dto.BalanceResponse, error) {
	ledger, err := svc.ledgers.GetOrCreateLedger(userID)
	if err != nil {
		log.Printf("Failed to load ledger for user %s: %v", userID, err)
		return nil, err
	}

	return &dto.BalanceResponse{
		UserID:    userID,
		Total:     ledger.Total,
		Available: ledger.Available,
		Lifetime:  ledger.Lifetime,
		Spent:     ledger.Spent,
	}, nil
}
