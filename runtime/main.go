package main

import (
	"github.com/lingokeep/progress_api/services"

	"github.com/alphabatem/common/context"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

func main() {
	err := godotenv.Load()
	if err != nil {
		log.Warn().Err(err).Msg("No .env file loaded")
	}

	ctx, err := context.NewCtx(
		&services.PostgresService{},
		&services.RedisService{},
		&services.MonitoringService{},

		&services.LedgerService{},
		&services.StatsService{},
		&services.StreakService{},
		&services.ChallengeService{},
		&services.AchievementService{},
		&services.SpacedRepetitionService{},
		&services.EngagementService{},

		&services.JobsService{},
	)
	if err != nil {
		log.Fatal().Err(err)
		return
	}

	err = ctx.Run()
	if err != nil {
		log.Fatal().Err(err)
		return
	}
}
