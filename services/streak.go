package services

import (
	"errors"
	"time"

	"github.com/alphabatem/common/context"
	"github.com/lingokeep/progress_api/model"
	"github.com/lingokeep/progress_api/services/repositories"
	"github.com/lingokeep/progress_api/shared"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// StreakService derives the consecutive-day practice streak from daily stat
// history. There is no background decay: a lapsed streak resets naturally on
// the next qualifying event, and the nightly sweep only tidies the stored
// counter for users who went quiet.
type StreakService struct {
	context.DefaultService

	db    *gorm.DB
	stats *repositories.StatsRepository
	now   func() time.Time
}

const STREAK_SVC = "streak_svc"

func (svc StreakService) Id() string {
	return STREAK_SVC
}

func (svc *StreakService) Configure(ctx *context.Context) error {
	return svc.DefaultService.Configure(ctx)
}

func (svc *StreakService) Start() error {
	sqlSvc := svc.Service(POSTGRES_SVC).(*PostgresService)
	svc.initWithDb(sqlSvc.Db())
	return nil
}

func (svc *StreakService) initWithDb(db *gorm.DB) {
	svc.db = db
	svc.stats = repositories.NewStatsRepository(db)
	if svc.now == nil {
		svc.now = time.Now
	}
}

// UpdateStreak advances the streak for eventDate. messagesToday is the
// post-increment count from the caller's own fold, not a re-read; only the
// fold that produced the day's first message may advance the streak, and the
// streak_day row guard picks a single winner if two callers ever hold a
// count of one.
func (svc *StreakService) UpdateStreak(userID string, eventDate time.Time, timezone string, messagesToday int) (current int, max int, wasIncremented bool, err error) {
	today := LocalDay(eventDate, timezone)

	progress, err := svc.stats.GetOrCreateUserProgress(userID)
	if err != nil {
		return 0, 0, false, err
	}

	if messagesToday != 1 {
		return progress.CurrentStreak, progress.MaxStreak, false, nil
	}

	streak := 1
	if yesterday, ok := previousDay(today); ok {
		yStat, yErr := svc.stats.GetDailyStat(userID, yesterday)
		if yErr == nil && yStat.StreakDay > 0 {
			streak = yStat.StreakDay + 1
		} else if yErr != nil && !errors.Is(yErr, gorm.ErrRecordNotFound) {
			return 0, 0, false, yErr
		}
	}

	claimed, err := svc.stats.ClaimStreakDay(userID, today, streak)
	if err != nil {
		return 0, 0, false, err
	}
	if !claimed {
		return progress.CurrentStreak, progress.MaxStreak, false, nil
	}

	max = progress.MaxStreak
	if streak > max {
		max = streak
	}
	if err = svc.stats.SetStreakState(userID, streak, max, today); err != nil {
		return 0, 0, false, err
	}

	return streak, max, true, nil
}

// CurrentStreak reports the live streak, treating a lapsed stored counter as
// zero even before the nightly sweep has persisted the reset.
func (svc *StreakService) CurrentStreak(userID string) (current int, max int, err error) {
	progress, err := svc.stats.GetUserProgress(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, 0, nil
		}
		return 0, 0, err
	}

	if streakLapsed(progress, svc.now()) {
		return 0, progress.MaxStreak, nil
	}
	return progress.CurrentStreak, progress.MaxStreak, nil
}

// ExpireStale persists a zero streak for every user whose last active day is
// older than their local yesterday. Safe to run redundantly.
func (svc *StreakService) ExpireStale() error {
	holders, err := svc.stats.StreakHolders()
	if err != nil {
		return err
	}

	asOf := svc.now()
	expired := 0
	for _, progress := range holders {
		if !streakLapsed(&progress, asOf) {
			continue
		}
		if err := svc.stats.ResetExpiredStreak(progress.UserID, progress.CurrentStreak); err != nil {
			log.Printf("Failed to expire streak for user %s: %v", progress.UserID, err)
			continue
		}
		expired++
	}

	if expired > 0 {
		log.WithFields(log.Fields{"expired": expired}).Info("Streak sweep reset lapsed streaks")
	}
	return nil
}

// streakLapsed reports whether the stored streak no longer covers yesterday
// in the user's local calendar.
func streakLapsed(progress *model.UserProgress, asOf time.Time) bool {
	if progress.CurrentStreak == 0 || progress.LastActiveDate == "" {
		return false
	}

	today := LocalDay(asOf, progress.Timezone)
	yesterday, ok := previousDay(today)
	if !ok {
		return false
	}
	return progress.LastActiveDate < yesterday
}

func previousDay(day string) (string, bool) {
	t, err := time.Parse(shared.DayFormat, day)
	if err != nil {
		return "", false
	}
	return t.AddDate(0, 0, -1).Format(shared.DayFormat), true
}
