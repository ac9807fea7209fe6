package services

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/alphabatem/common/context"
	"github.com/google/uuid"
	"github.com/lingokeep/progress_api/dto"
	"github.com/lingokeep/progress_api/model"
	"github.com/lingokeep/progress_api/services/repositories"
	"github.com/lingokeep/progress_api/shared"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// AchievementService evaluates lifetime milestones and unlocks them exactly
// once per user.
type AchievementService struct {
	context.DefaultService

	ledgerSvc *LedgerService
	streakSvc *StreakService

	db           *gorm.DB
	achievements *repositories.AchievementRepository
	stats        *repositories.StatsRepository
	vocabulary   *repositories.VocabularyRepository
	ledgers      *repositories.LedgerRepository
	now          func() time.Time
}

const ACHIEVEMENT_SVC = "achievement_svc"

// accuracyMinMessages gates the accuracy category so that a lucky first
// message does not unlock it.
const accuracyMinMessages = 10

func (svc AchievementService) Id() string {
	return ACHIEVEMENT_SVC
}

func (svc *AchievementService) Configure(ctx *context.Context) error {
	return svc.DefaultService.Configure(ctx)
}

func (svc *AchievementService) Start() error {
	sqlSvc := svc.Service(POSTGRES_SVC).(*PostgresService)
	svc.ledgerSvc = svc.Service(LEDGER_SVC).(*LedgerService)
	svc.streakSvc = svc.Service(STREAK_SVC).(*StreakService)
	svc.initWithDb(sqlSvc.Db())
	return nil
}

func (svc *AchievementService) initWithDb(db *gorm.DB) {
	svc.db = db
	svc.achievements = repositories.NewAchievementRepository(db)
	svc.stats = repositories.NewStatsRepository(db)
	svc.vocabulary = repositories.NewVocabularyRepository(db)
	svc.ledgers = repositories.NewLedgerRepository(db)
	if svc.now == nil {
		svc.now = time.Now
	}
}

// Evaluate checks every active achievement in category against the user's
// current metric and unlocks the ones whose threshold is met. Returns the
// achievements unlocked by this call.
func (svc *AchievementService) Evaluate(userID, category string) ([]dto.AchievementView, error) {
	catalog, err := svc.achievements.Active(category)
	if err != nil {
		return nil, err
	}
	if len(catalog) == 0 {
		return nil, nil
	}

	metric, err := svc.categoryMetric(userID, category)
	if err != nil {
		return nil, err
	}

	unlocked, err := svc.achievements.UnlockedIDs(userID)
	if err != nil {
		return nil, err
	}

	var fresh []dto.AchievementView
	for i := range catalog {
		achievement := &catalog[i]
		if unlocked[achievement.ID] || metric < achievement.Threshold {
			continue
		}

		won, err := svc.unlock(userID, achievement, metric)
		if err != nil {
			return nil, err
		}
		if !won {
			continue
		}

		at := svc.now()
		view := buildAchievementView(achievement, true, &at, metric)
		fresh = append(fresh, view)
	}

	return fresh, nil
}

// EvaluateAll runs every category. Used by the periodic refresh; the hot path
// only evaluates the categories an event can move.
func (svc *AchievementService) EvaluateAll(userID string) ([]dto.AchievementView, error) {
	var all []dto.AchievementView
	for _, category := range []string{
		shared.CategoryStreak,
		shared.CategoryMessages,
		shared.CategoryVocabulary,
		shared.CategoryStars,
		shared.CategoryMastery,
		shared.CategoryAccuracy,
	} {
		views, err := svc.Evaluate(userID, category)
		if err != nil {
			return nil, err
		}
		all = append(all, views...)
	}
	return all, nil
}

// unlock inserts the unlock row and credits the reward in one transaction.
// The ON CONFLICT guard makes a lost race a clean no-op with no credit.
func (svc *AchievementService) unlock(userID string, achievement *model.Achievement, metric int) (bool, error) {
	won := false

	err := svc.db.Transaction(func(tx *gorm.DB) error {
		repo := repositories.NewAchievementRepository(tx)

		id, _ := uuid.NewV7()
		inserted, err := repo.InsertUnlock(&model.UserAchievement{
			ID:               id.String(),
			UserID:           userID,
			AchievementID:    achievement.ID,
			UnlockedAt:       svc.now(),
			ProgressAtUnlock: metric,
		})
		if err != nil {
			return err
		}
		if !inserted {
			return nil
		}

		if achievement.StarsReward > 0 {
			if err := svc.ledgerSvc.creditInTx(tx, userID, achievement.StarsReward, shared.ReasonAchievementReward, achievement.Code); err != nil {
				return err
			}
		}

		won = true
		return nil
	})
	if err != nil {
		return false, err
	}

	if won {
		achievementsUnlockedTotal.WithLabelValues(achievement.Category).Inc()
		log.WithFields(log.Fields{
			"user_id":  userID,
			"code":     achievement.Code,
			"category": achievement.Category,
		}).Info("Achievement unlocked")
	}
	return won, nil
}

// GetAchievements lists the catalog with the user's unlock state. Hidden
// achievements stay out of the list until unlocked.
func (svc *AchievementService) GetAchievements(userID string) ([]dto.AchievementView, error) {
	catalog, err := svc.achievements.Active("")
	if err != nil {
		return nil, err
	}

	unlocks, err := svc.achievements.ListUnlocks(userID)
	if err != nil {
		return nil, err
	}
	unlockedAt := make(map[string]*model.UserAchievement, len(unlocks))
	for i := range unlocks {
		unlockedAt[unlocks[i].AchievementID] = &unlocks[i]
	}

	metrics := map[string]int{}

	views := make([]dto.AchievementView, 0, len(catalog))
	for i := range catalog {
		achievement := &catalog[i]
		unlock := unlockedAt[achievement.ID]
		if achievement.IsHidden && unlock == nil {
			continue
		}

		metric, ok := metrics[achievement.Category]
		if !ok {
			metric, err = svc.categoryMetric(userID, achievement.Category)
			if err != nil {
				return nil, err
			}
			metrics[achievement.Category] = metric
		}

		var at *time.Time
		if unlock != nil {
			t := unlock.UnlockedAt
			at = &t
		}
		views = append(views, buildAchievementView(achievement, unlock != nil, at, metric))
	}

	return views, nil
}

// categoryMetric resolves the single number each category compares against
// its thresholds.
func (svc *AchievementService) categoryMetric(userID, category string) (int, error) {
	switch category {
	case shared.CategoryStreak:
		current, _, err := svc.streakSvc.CurrentStreak(userID)
		return current, err

	case shared.CategoryMessages:
		progress, err := svc.stats.GetUserProgress(userID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return 0, nil
			}
			return 0, err
		}
		return progress.TotalMessages, nil

	case shared.CategoryVocabulary:
		count, err := svc.vocabulary.CountCards(userID)
		return int(count), err

	case shared.CategoryStars:
		ledger, err := svc.ledgers.GetLedger(userID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return 0, nil
			}
			return 0, err
		}
		return ledger.Lifetime, nil

	case shared.CategoryMastery:
		count, err := svc.vocabulary.CountMastered(userID)
		return int(count), err

	case shared.CategoryAccuracy:
		messages, scoreSum, err := svc.stats.LifetimeTotals(userID)
		if err != nil {
			return 0, err
		}
		if messages < accuracyMinMessages {
			return 0, nil
		}
		return int(math.Round(float64(scoreSum) / float64(messages))), nil
	}

	return 0, fmt.Errorf("unknown achievement category %q", category)
}

func buildAchievementView(achievement *model.Achievement, unlocked bool, at *time.Time, metric int) dto.AchievementView {
	progress := metric
	if progress > achievement.Threshold {
		progress = achievement.Threshold
	}
	return dto.AchievementView{
		Code:        achievement.Code,
		Name:        achievement.Name,
		Description: achievement.Description,
		Category:    achievement.Category,
		Threshold:   achievement.Threshold,
		StarsReward: achievement.StarsReward,
		Hidden:      achievement.IsHidden,
		Unlocked:    unlocked,
		UnlockedAt:  at,
		Progress:    progress,
	}
}
