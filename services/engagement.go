package services

import (
	"fmt"
	"time"

	"github.com/alphabatem/common/context"
	"github.com/lingokeep/progress_api/dto"
	"github.com/lingokeep/progress_api/shared"
	log "github.com/sirupsen/logrus"
)

// EngagementService is the single entry point the message pipeline calls. One
// RecordEvent fans out to stats, streaks, stars, challenges and achievements
// and folds everything the client should surface into one result.
type EngagementService struct {
	context.DefaultService

	sqlSvc         *PostgresService
	statsSvc       *StatsService
	streakSvc      *StreakService
	ledgerSvc      *LedgerService
	challengeSvc   *ChallengeService
	achievementSvc *AchievementService
	srsSvc         *SpacedRepetitionService

	now func() time.Time
}

const ENGAGEMENT_SVC = "engagement_svc"

// streakMilestoneBonus pays extra stars the day a streak first reaches the
// milestone.
var streakMilestoneBonus = map[int]int{
	3:   1,
	7:   2,
	14:  3,
	30:  5,
	100: 10,
}

func (svc EngagementService) Id() string {
	return ENGAGEMENT_SVC
}

func (svc *EngagementService) Configure(ctx *context.Context) error {
	return svc.DefaultService.Configure(ctx)
}

func (svc *EngagementService) Start() error {
	svc.sqlSvc = svc.Service(POSTGRES_SVC).(*PostgresService)
	svc.statsSvc = svc.Service(STATS_SVC).(*StatsService)
	svc.streakSvc = svc.Service(STREAK_SVC).(*StreakService)
	svc.ledgerSvc = svc.Service(LEDGER_SVC).(*LedgerService)
	svc.challengeSvc = svc.Service(CHALLENGE_SVC).(*ChallengeService)
	svc.achievementSvc = svc.Service(ACHIEVEMENT_SVC).(*AchievementService)
	svc.srsSvc = svc.Service(SPACED_REPETITION_SVC).(*SpacedRepetitionService)
	if svc.now == nil {
		svc.now = time.Now
	}
	return nil
}

// RecordEvent processes one engagement event end to end.
func (svc *EngagementService) RecordEvent(req *dto.RecordEventRequest) (*dto.EngineResult, error) {
	if err := dto.GetValidator().Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrInvalidEventType, dto.FormatValidationErrors(err))
	}

	started := svc.now()
	defer func() {
		recordEventDurationSeconds.Observe(time.Since(started).Seconds())
	}()

	var result *dto.EngineResult
	var err error
	switch req.EventType {
	case shared.EventTypeMessage:
		result, err = svc.recordMessage(req.UserID, &req.Payload, started, req.Timezone)
	case shared.EventTypeWordSaved:
		result, err = svc.recordWordSaved(req.UserID, &req.Payload, started, req.Timezone)
	default:
		return nil, fmt.Errorf("%w: %s", shared.ErrInvalidEventType, req.EventType)
	}
	if err != nil {
		return nil, err
	}

	day := LocalDay(started, req.Timezone)
	if err := svc.enrich(req.UserID, day, result, svc.categoriesFor(req.EventType)); err != nil {
		// The event itself is already durable; surface the partial result.
		log.WithFields(log.Fields{
			"user_id": req.UserID,
			"day":     day,
		}).Warnf("Challenge/achievement sync failed: %v", err)
	}

	return result, nil
}

func (svc *EngagementService) recordMessage(userID string, payload *dto.EventPayload, when time.Time, timezone string) (*dto.EngineResult, error) {
	stat, err := svc.statsSvc.RecordMessage(userID, payload.Score, payload.Topic, payload.WordCount, when, timezone)
	if err != nil {
		return nil, err
	}

	// The streak decision rides on this event's own fold, never a re-read.
	current, max, incremented, err := svc.streakSvc.UpdateStreak(userID, when, timezone, stat.MessagesCount)
	if err != nil {
		return nil, err
	}

	stars := 1
	if payload.Score >= shared.HighAccuracyScore {
		stars++
	}
	if err := svc.ledgerSvc.CreditStars(userID, stars, shared.ReasonMessage, LocalDay(when, timezone)); err != nil {
		return nil, err
	}

	if incremented {
		if bonus, ok := streakMilestoneBonus[current]; ok {
			if err := svc.ledgerSvc.CreditStars(userID, bonus, shared.ReasonStreakBonus, fmt.Sprintf("day_%d", current)); err != nil {
				return nil, err
			}
			stars += bonus
		}
	}

	return &dto.EngineResult{
		StarsEarned:   stars,
		CurrentStreak: current,
		MaxStreak:     max,
	}, nil
}

func (svc *EngagementService) recordWordSaved(userID string, payload *dto.EventPayload, when time.Time, timezone string) (*dto.EngineResult, error) {
	if payload.Word == "" {
		return nil, fmt.Errorf("%w: word_saved requires a word", shared.ErrInvalidEventType)
	}

	if _, err := svc.statsSvc.RecordSavedWord(userID, when, timezone); err != nil {
		return nil, err
	}
	if _, _, err := svc.srsSvc.SaveWord(userID, payload.Word); err != nil {
		return nil, err
	}

	current, max, err := svc.streakSvc.CurrentStreak(userID)
	if err != nil {
		return nil, err
	}

	return &dto.EngineResult{
		CurrentStreak: current,
		MaxStreak:     max,
	}, nil
}

// enrich syncs challenges and the affected achievement categories, folding
// newly completed/unlocked entries plus their star rewards into result.
func (svc *EngagementService) enrich(userID, day string, result *dto.EngineResult, categories []string) error {
	completed, err := svc.challengeSvc.SyncProgress(userID, day)
	if err != nil {
		return err
	}
	result.CompletedChallenges = completed

	for _, category := range categories {
		unlocked, err := svc.achievementSvc.Evaluate(userID, category)
		if err != nil {
			return err
		}
		for _, view := range unlocked {
			result.StarsEarned += view.StarsReward
		}
		result.UnlockedAchievements = append(result.UnlockedAchievements, unlocked...)
	}
	return nil
}

// categoriesFor limits achievement evaluation to the categories an event can
// actually move.
func (svc *EngagementService) categoriesFor(eventType string) []string {
	if eventType == shared.EventTypeWordSaved {
		return []string{shared.CategoryVocabulary}
	}
	return []string{
		shared.CategoryStreak,
		shared.CategoryMessages,
		shared.CategoryStars,
		shared.CategoryAccuracy,
	}
}

// ==================== DELEGATES ====================

func (svc *EngagementService) GetChallenges(userID string, timezone string) (*dto.ChallengesResponse, error) {
	return svc.challengeSvc.GetChallenges(userID, LocalDay(svc.now(), timezone))
}

func (svc *EngagementService) ClaimReward(req *dto.ClaimRewardRequest) (*dto.ClaimRewardResponse, error) {
	if err := dto.GetValidator().Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrInvalidPeriodKey, dto.FormatValidationErrors(err))
	}
	return svc.challengeSvc.ClaimReward(req.UserID, req.ChallengeID, req.PeriodKey)
}

func (svc *EngagementService) GetAchievements(userID string) ([]dto.AchievementView, error) {
	views, err := svc.achievementSvc.GetAchievements(userID)
	if err != nil {
		return nil, svc.mapDbError(err)
	}
	return views, nil
}

func (svc *EngagementService) ScheduleReview(req *dto.ScheduleReviewRequest) (*dto.ReviewResponse, error) {
	if err := dto.GetValidator().Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrInvalidQuality, dto.FormatValidationErrors(err))
	}
	return svc.srsSvc.ScheduleReview(req.CardID, req.Quality)
}

func (svc *EngagementService) GetBalance(userID string) (*dto.BalanceResponse, error) {
	balance, err := svc.ledgerSvc.Balance(userID)
	if err != nil {
		return nil, svc.mapDbError(err)
	}
	return balance, nil
}

// mapDbError translates raw persistence failures at the facade boundary.
// Inner services that already speak the sentinel taxonomy bypass it.
func (svc *EngagementService) mapDbError(err error) error {
	if svc.sqlSvc == nil {
		return err
	}
	return svc.sqlSvc.HandleError(err)
}
