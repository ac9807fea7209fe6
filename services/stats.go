package services

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/alphabatem/common/context"
	"github.com/lingokeep/progress_api/model"
	"github.com/lingokeep/progress_api/services/repositories"
	"github.com/lingokeep/progress_api/shared"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// StatsService folds raw learning events into one DailyStat row per user per
// user-local calendar day. Concurrent events for the same day are resolved
// with optimistic version checks, never last-write-wins.
type StatsService struct {
	context.DefaultService

	db    *gorm.DB
	stats *repositories.StatsRepository
	now   func() time.Time
}

const STATS_SVC = "stats_svc"

const statRetryAttempts = 3

func (svc StatsService) Id() string {
	return STATS_SVC
}

func (svc *StatsService) Configure(ctx *context.Context) error {
	return svc.DefaultService.Configure(ctx)
}

func (svc *StatsService) Start() error {
	sqlSvc := svc.Service(POSTGRES_SVC).(*PostgresService)
	svc.initWithDb(sqlSvc.Db())
	return nil
}

func (svc *StatsService) initWithDb(db *gorm.DB) {
	svc.db = db
	svc.stats = repositories.NewStatsRepository(db)
	if svc.now == nil {
		svc.now = time.Now
	}
}

// LocalDay resolves when into the user's calendar day. An unparseable
// timezone silently falls back to UTC; it must never fail the caller.
func LocalDay(when time.Time, timezone string) string {
	loc, err := time.LoadLocation(timezone)
	if err != nil || timezone == "" {
		loc = time.UTC
	}
	return when.In(loc).Format(shared.DayFormat)
}

// RecordMessage folds one scored message into the user's day. The returned
// row is the post-increment state, so MessagesCount == 1 marks the first
// qualifying event of the day.
func (svc *StatsService) RecordMessage(userID string, score int, topic string, wordCount int, when time.Time, timezone string) (*model.DailyStat, error) {
	date := LocalDay(when, timezone)

	stat, err := svc.mutateDailyStat(userID, date, func(s *model.DailyStat) {
		s.MessagesCount++
		s.WordsSaid += wordCount
		s.ScoreSum += score
		s.CorrectPercent = math.Round(float64(s.ScoreSum)/float64(s.MessagesCount)*100) / 100
		if score >= shared.HighAccuracyScore {
			s.HighAccuracyCount++
		}
		if topic != "" {
			s.TopicCounts = bumpTopicCount(s.TopicCounts, topic)
		}
	})
	if err != nil {
		return nil, err
	}

	if err := svc.bumpUserTotals(userID, timezone, 1, 0); err != nil {
		log.Printf("Failed to update user totals for %s: %v", userID, err)
	}

	eventsProcessedTotal.WithLabelValues(shared.EventTypeMessage).Inc()
	return stat, nil
}

// RecordSavedWord counts a vocabulary save against the user's day.
// Saved words do not qualify for streak purposes.
func (svc *StatsService) RecordSavedWord(userID string, when time.Time, timezone string) (*model.DailyStat, error) {
	date := LocalDay(when, timezone)

	stat, err := svc.mutateDailyStat(userID, date, func(s *model.DailyStat) {
		s.SavedWords++
	})
	if err != nil {
		return nil, err
	}

	if err := svc.bumpUserTotals(userID, timezone, 0, 1); err != nil {
		log.Printf("Failed to update user totals for %s: %v", userID, err)
	}

	eventsProcessedTotal.WithLabelValues(shared.EventTypeWordSaved).Inc()
	return stat, nil
}

// mutateDailyStat applies mutate under optimistic locking, retrying a bounded
// number of times before surfacing the conflict to the caller.
func (svc *StatsService) mutateDailyStat(userID, date string, mutate func(*model.DailyStat)) (*model.DailyStat, error) {
	stat, err := svc.stats.GetOrCreateDailyStat(userID, date)
	if err != nil {
		return nil, err
	}

	for attempt := 1; attempt <= statRetryAttempts; attempt++ {
		mutate(stat)

		ok, saveErr := svc.stats.SaveDailyStatVersioned(stat)
		if saveErr != nil {
			return nil, saveErr
		}
		if ok {
			return stat, nil
		}

		concurrencyRetriesTotal.Inc()
		stat, err = svc.stats.GetDailyStat(userID, date)
		if err != nil {
			return nil, err
		}
	}

	return nil, fmt.Errorf("%w: daily stat for user %s on %s", shared.ErrConcurrencyConflict, userID, date)
}

func (svc *StatsService) bumpUserTotals(userID, timezone string, messages, wordsSaved int) error {
	progress, err := svc.stats.GetOrCreateUserProgress(userID)
	if err != nil {
		return err
	}

	if timezone != "" && progress.Timezone != timezone {
		if _, tzErr := time.LoadLocation(timezone); tzErr == nil {
			if err := svc.stats.SetTimezone(userID, timezone); err != nil {
				return err
			}
		}
	}

	return svc.stats.IncrementTotals(userID, messages, wordsSaved)
}

func bumpTopicCount(raw json.RawMessage, topic string) json.RawMessage {
	counts := map[string]int{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &counts); err != nil {
			counts = map[string]int{}
		}
	}
	counts[topic]++

	out, err := json.Marshal(counts)
	if err != nil {
		return raw
	}
	return out
}

// TopicOccurrences folds the per-day topic maps across a date range.
func TopicOccurrences(stats []model.DailyStat, topic string) int {
	total := 0
	for _, s := range stats {
		if len(s.TopicCounts) == 0 {
			continue
		}
		counts := map[string]int{}
		if err := json.Unmarshal(s.TopicCounts, &counts); err != nil {
			continue
		}
		total += counts[topic]
	}
	return total
}
