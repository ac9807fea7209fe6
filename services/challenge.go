package services

import (
	goContext "context"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/alphabatem/common/context"
	"github.com/lingokeep/progress_api/dto"
	"github.com/lingokeep/progress_api/model"
	"github.com/lingokeep/progress_api/services/repositories"
	"github.com/lingokeep/progress_api/shared"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ChallengeService selects daily/weekly challenges, tracks goal progress and
// pays out rewards exactly once.
type ChallengeService struct {
	context.DefaultService

	ledgerSvc *LedgerService
	streakSvc *StreakService
	redisSvc  *RedisService

	db         *gorm.DB
	challenges *repositories.ChallengeRepository
	stats      *repositories.StatsRepository
	now        func() time.Time
}

const CHALLENGE_SVC = "challenge_svc"

const challengeCatalogTTL = 5 * time.Minute

func (svc ChallengeService) Id() string {
	return CHALLENGE_SVC
}

func (svc *ChallengeService) Configure(ctx *context.Context) error {
	return svc.DefaultService.Configure(ctx)
}

func (svc *ChallengeService) Start() error {
	sqlSvc := svc.Service(POSTGRES_SVC).(*PostgresService)
	svc.ledgerSvc = svc.Service(LEDGER_SVC).(*LedgerService)
	svc.streakSvc = svc.Service(STREAK_SVC).(*StreakService)
	svc.redisSvc = svc.Service(REDIS_SVC).(*RedisService)
	svc.initWithDb(sqlSvc.Db())
	return nil
}

func (svc *ChallengeService) initWithDb(db *gorm.DB) {
	svc.db = db
	svc.challenges = repositories.NewChallengeRepository(db)
	svc.stats = repositories.NewStatsRepository(db)
	if svc.now == nil {
		svc.now = time.Now
	}
}

// ==================== SELECTION ====================

// dailySeed hashes "{userID}:{date}" with SHA-256 and truncates to 64 bits.
// The hash is stable across processes and replicas, so the same user always
// resolves to the same challenge for a given day.
func dailySeed(userID, date string) uint64 {
	sum := sha256.Sum256([]byte(userID + ":" + date))
	return binary.BigEndian.Uint64(sum[:8])
}

// weekStart returns the Monday of the week containing day.
func weekStart(day string) (string, error) {
	t, err := time.Parse(shared.DayFormat, day)
	if err != nil {
		return "", fmt.Errorf("%w: %s", shared.ErrInvalidPeriodKey, day)
	}
	offset := (int(t.Weekday()) + 6) % 7
	return t.AddDate(0, 0, -offset).Format(shared.DayFormat), nil
}

func (svc *ChallengeService) selectDaily(userID, date string) (*model.Challenge, error) {
	catalog, err := svc.activeByTypeCached(shared.ChallengeTypeDaily)
	if err != nil {
		return nil, err
	}
	if len(catalog) == 0 {
		return nil, fmt.Errorf("%w: no active daily challenges", shared.ErrNotFound)
	}

	index := dailySeed(userID, date) % uint64(len(catalog))
	return &catalog[index], nil
}

// activeByTypeCached serves the immutable catalog through a short Redis
// cache. A cold or absent cache falls through to the database.
func (svc *ChallengeService) activeByTypeCached(challengeType string) ([]model.Challenge, error) {
	key := "challenge_catalog:" + challengeType

	if svc.redisSvc != nil {
		var cached []model.Challenge
		found, err := svc.redisSvc.GetJSON(goContext.Background(), key, &cached)
		if err == nil && found && len(cached) > 0 {
			return cached, nil
		}
	}

	catalog, err := svc.challenges.ActiveByType(challengeType)
	if err != nil {
		return nil, err
	}

	if svc.redisSvc != nil && len(catalog) > 0 {
		if err := svc.redisSvc.Set(goContext.Background(), key, catalog, challengeCatalogTTL); err != nil {
			log.Printf("Failed to cache challenge catalog: %v", err)
		}
	}

	return catalog, nil
}

// ==================== VIEWS ====================

func (svc *ChallengeService) GetDailyChallenge(userID, date string) (*dto.ChallengeView, error) {
	if _, err := time.Parse(shared.DayFormat, date); err != nil {
		return nil, fmt.Errorf("%w: %s", shared.ErrInvalidPeriodKey, date)
	}

	challenge, err := svc.selectDaily(userID, date)
	if err != nil {
		return nil, err
	}

	view, _, err := svc.syncOne(userID, challenge, date)
	return view, err
}

func (svc *ChallengeService) GetWeeklyChallenges(userID, date string) ([]dto.ChallengeView, error) {
	if _, err := time.Parse(shared.DayFormat, date); err != nil {
		return nil, fmt.Errorf("%w: %s", shared.ErrInvalidPeriodKey, date)
	}

	catalog, err := svc.activeByTypeCached(shared.ChallengeTypeWeekly)
	if err != nil {
		return nil, err
	}

	views := make([]dto.ChallengeView, 0, len(catalog))
	for i := range catalog {
		view, _, err := svc.syncOne(userID, &catalog[i], date)
		if err != nil {
			return nil, err
		}
		views = append(views, *view)
	}
	return views, nil
}

func (svc *ChallengeService) GetChallenges(userID, date string) (*dto.ChallengesResponse, error) {
	daily, err := svc.GetDailyChallenge(userID, date)
	if err != nil {
		return nil, err
	}
	weekly, err := svc.GetWeeklyChallenges(userID, date)
	if err != nil {
		return nil, err
	}
	return &dto.ChallengesResponse{Daily: *daily, Weekly: weekly}, nil
}

// SyncProgress recomputes the user's challenges for date and returns the ones
// that completed during this pass.
func (svc *ChallengeService) SyncProgress(userID, date string) ([]dto.ChallengeView, error) {
	var completed []dto.ChallengeView

	daily, err := svc.selectDaily(userID, date)
	if err != nil && !errors.Is(err, shared.ErrNotFound) {
		return nil, err
	}
	if daily != nil {
		view, justCompleted, syncErr := svc.syncOne(userID, daily, date)
		if syncErr != nil {
			return nil, syncErr
		}
		if justCompleted {
			completed = append(completed, *view)
		}
	}

	weekly, err := svc.activeByTypeCached(shared.ChallengeTypeWeekly)
	if err != nil {
		return nil, err
	}
	for i := range weekly {
		view, justCompleted, syncErr := svc.syncOne(userID, &weekly[i], date)
		if syncErr != nil {
			return nil, syncErr
		}
		if justCompleted {
			completed = append(completed, *view)
		}
	}

	return completed, nil
}

// syncOne brings the progress row for one challenge up to date. The progress
// column only ever advances and the status only moves forward, so recomputes
// with stale inputs can never un-complete a challenge.
func (svc *ChallengeService) syncOne(userID string, challenge *model.Challenge, date string) (*dto.ChallengeView, bool, error) {
	periodKey, err := svc.periodKeyFor(challenge, date)
	if err != nil {
		return nil, false, err
	}

	progress, err := svc.computeProgress(userID, challenge, date)
	if err != nil {
		return nil, false, err
	}

	row, err := svc.challenges.GetOrCreateProgress(userID, challenge.ID, periodKey)
	if err != nil {
		return nil, false, err
	}

	if progress > row.Progress {
		if err := svc.challenges.AdvanceProgress(row.ID, progress); err != nil {
			return nil, false, err
		}
		row.Progress = progress
	}

	justCompleted := false
	if row.Progress >= challenge.GoalValue && !row.Completed() {
		won, err := svc.challenges.MarkCompleted(row.ID, svc.now())
		if err != nil {
			return nil, false, err
		}
		if won {
			justCompleted = true
		}
		row, err = svc.challenges.GetProgress(userID, challenge.ID, periodKey)
		if err != nil {
			return nil, false, err
		}
	}

	view := buildChallengeView(challenge, row, periodKey)
	return &view, justCompleted, nil
}

func (svc *ChallengeService) periodKeyFor(challenge *model.Challenge, date string) (string, error) {
	if challenge.Type == shared.ChallengeTypeWeekly {
		return weekStart(date)
	}
	if _, err := time.Parse(shared.DayFormat, date); err != nil {
		return "", fmt.Errorf("%w: %s", shared.ErrInvalidPeriodKey, date)
	}
	return date, nil
}

// computeProgress is a pure query over the period's aggregates.
func (svc *ChallengeService) computeProgress(userID string, challenge *model.Challenge, date string) (int, error) {
	switch challenge.GoalType {
	case shared.GoalMessages, shared.GoalHighAccuracyMessages, shared.GoalSavedWords, shared.GoalTopicMessage:
		stat, err := svc.stats.GetDailyStat(userID, date)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return 0, nil
			}
			return 0, err
		}
		switch challenge.GoalType {
		case shared.GoalMessages:
			return stat.MessagesCount, nil
		case shared.GoalHighAccuracyMessages:
			return stat.HighAccuracyCount, nil
		case shared.GoalSavedWords:
			return stat.SavedWords, nil
		default:
			return TopicOccurrences([]model.DailyStat{*stat}, challenge.GoalTopic), nil
		}

	case shared.GoalStreakDays:
		current, _, err := svc.streakSvc.CurrentStreak(userID)
		return current, err

	case shared.GoalWeeklyMessages, shared.GoalWeeklyAccuracy, shared.GoalWeeklySavedWords:
		monday, err := weekStart(date)
		if err != nil {
			return 0, err
		}
		mondayTime, _ := time.Parse(shared.DayFormat, monday)
		sunday := mondayTime.AddDate(0, 0, 6).Format(shared.DayFormat)

		week, err := svc.stats.GetStatsInRange(userID, monday, sunday)
		if err != nil {
			return 0, err
		}

		messages, scoreSum, savedWords := 0, 0, 0
		for _, day := range week {
			messages += day.MessagesCount
			scoreSum += day.ScoreSum
			savedWords += day.SavedWords
		}

		switch challenge.GoalType {
		case shared.GoalWeeklyMessages:
			return messages, nil
		case shared.GoalWeeklySavedWords:
			return savedWords, nil
		default:
			if messages == 0 {
				return 0, nil
			}
			// Message-weighted mean, not a mean of daily means.
			return int(math.Round(float64(scoreSum) / float64(messages))), nil
		}
	}

	return 0, fmt.Errorf("unknown goal type %q", challenge.GoalType)
}

// ==================== REWARD CLAIM ====================

// ClaimReward pays out a completed challenge exactly once. The status CAS and
// the ledger credit commit in the same transaction, so a concurrent claim
// either wins both or neither.
func (svc *ChallengeService) ClaimReward(userID, challengeID, periodKey string) (*dto.ClaimRewardResponse, error) {
	if _, err := time.Parse(shared.DayFormat, periodKey); err != nil {
		return nil, fmt.Errorf("%w: %s", shared.ErrInvalidPeriodKey, periodKey)
	}

	var result dto.ClaimRewardResponse

	err := svc.db.Transaction(func(tx *gorm.DB) error {
		repo := repositories.NewChallengeRepository(tx)

		row, err := repo.GetProgress(userID, challengeID, periodKey)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: no progress for challenge %s in %s", shared.ErrNotFound, challengeID, periodKey)
			}
			return err
		}

		won, err := repo.ClaimCAS(row.ID, svc.now())
		if err != nil {
			return err
		}
		if !won {
			// Lost the CAS: report why.
			row, err = repo.GetProgress(userID, challengeID, periodKey)
			if err != nil {
				return err
			}
			if row.Claimed() {
				return shared.ErrAlreadyClaimed
			}
			return shared.ErrNotCompleted
		}

		challenge, err := repo.GetChallenge(challengeID)
		if err != nil {
			return err
		}

		if err := svc.ledgerSvc.creditInTx(tx, userID, challenge.RewardStars, shared.ReasonChallengeReward, challenge.Code); err != nil {
			return err
		}

		ledger, err := repositories.NewLedgerRepository(tx).GetLedger(userID)
		if err != nil {
			return err
		}

		result = dto.ClaimRewardResponse{
			StarsEarned: challenge.RewardStars,
			TotalStars:  ledger.Total,
		}
		return nil
	})

	switch {
	case err == nil:
		rewardClaimsTotal.WithLabelValues("success").Inc()
	case errors.Is(err, shared.ErrAlreadyClaimed):
		rewardClaimsTotal.WithLabelValues("already_claimed").Inc()
	case errors.Is(err, shared.ErrNotCompleted):
		rewardClaimsTotal.WithLabelValues("not_completed").Inc()
	case errors.Is(err, shared.ErrNotFound):
		rewardClaimsTotal.WithLabelValues("not_found").Inc()
	}

	if err != nil {
		return nil, err
	}
	return &result, nil
}

func buildChallengeView(challenge *model.Challenge, row *model.UserChallengeProgress, periodKey string) dto.ChallengeView {
	return dto.ChallengeView{
		ID:            challenge.ID,
		Code:          challenge.Code,
		Type:          challenge.Type,
		Title:         challenge.Title,
		Description:   challenge.Description,
		GoalType:      challenge.GoalType,
		GoalValue:     challenge.GoalValue,
		GoalTopic:     challenge.GoalTopic,
		RewardStars:   challenge.RewardStars,
		PeriodKey:     periodKey,
		Progress:      row.Progress,
		Completed:     row.Completed(),
		RewardClaimed: row.Claimed(),
		CompletedAt:   row.CompletedAt,
	}
}
