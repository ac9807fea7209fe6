package services

import (
	"time"

	"github.com/alphabatem/common/context"
	"github.com/go-co-op/gocron"
	"github.com/lingokeep/progress_api/services/repositories"
	"github.com/lingokeep/progress_api/shared"
	log "github.com/sirupsen/logrus"
)

// JobsService runs the periodic maintenance work: expiring lapsed streaks and
// refreshing challenge progress for recently active users.
type JobsService struct {
	context.DefaultService

	streakSvc    *StreakService
	challengeSvc *ChallengeService

	stats     *repositories.StatsRepository
	scheduler *gocron.Scheduler
	now       func() time.Time
}

const JOBS_SVC = "jobs_svc"

func (svc JobsService) Id() string {
	return JOBS_SVC
}

func (svc *JobsService) Configure(ctx *context.Context) error {
	svc.scheduler = gocron.NewScheduler(time.UTC)
	if svc.now == nil {
		svc.now = time.Now
	}
	return svc.DefaultService.Configure(ctx)
}

func (svc *JobsService) Start() error {
	sqlSvc := svc.Service(POSTGRES_SVC).(*PostgresService)
	svc.streakSvc = svc.Service(STREAK_SVC).(*StreakService)
	svc.challengeSvc = svc.Service(CHALLENGE_SVC).(*ChallengeService)
	svc.stats = repositories.NewStatsRepository(sqlSvc.Db())

	svc.scheduler.Every(1).Hour().Do(svc.refreshChallengeProgress)
	svc.scheduler.Every(1).Day().At("03:10").Do(svc.expireStaleStreaks)
	svc.scheduler.StartAsync()

	log.Printf("Jobs scheduler started")
	return nil
}

func (svc *JobsService) Shutdown() {
	if svc.scheduler != nil {
		svc.scheduler.Stop()
	}
}

// expireStaleStreaks resets current_streak for users who missed a day. Reads
// still lapse streaks on their own; this keeps the stored rows honest for
// reports that query the table directly.
func (svc *JobsService) expireStaleStreaks() {
	if err := svc.streakSvc.ExpireStale(); err != nil {
		log.Printf("Streak expiry sweep failed: %v", err)
	}
}

// refreshChallengeProgress re-syncs challenges for users active today or
// yesterday, so streak-goal challenges complete even when the qualifying
// event happened on an earlier day.
func (svc *JobsService) refreshChallengeProgress() {
	asOf := svc.now().UTC()
	today := asOf.Format(shared.DayFormat)
	yesterday := asOf.AddDate(0, 0, -1).Format(shared.DayFormat)

	userIDs, err := svc.stats.ActiveUserIDs([]string{today, yesterday})
	if err != nil {
		log.Printf("Challenge refresh failed to list active users: %v", err)
		return
	}

	for _, userID := range userIDs {
		if _, err := svc.challengeSvc.SyncProgress(userID, today); err != nil {
			log.WithFields(log.Fields{"user_id": userID}).Warnf("Challenge refresh failed: %v", err)
		}
	}
}
