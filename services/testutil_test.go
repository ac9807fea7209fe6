package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// A single connection keeps every query on the same in-memory database.
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(EngineModels()...))
	return db
}

// clockAt returns a fixed clock at noon UTC on the given day.
func clockAt(day string) func() time.Time {
	t, err := time.Parse("2006-01-02", day)
	if err != nil {
		panic(err)
	}
	at := t.Add(12 * time.Hour)
	return func() time.Time { return at }
}

// testEngine wires every service onto one shared in-memory database with a
// fixed clock, bypassing the service container.
type testEngine struct {
	db          *gorm.DB
	stats       *StatsService
	streak      *StreakService
	ledger      *LedgerService
	challenge   *ChallengeService
	achievement *AchievementService
	srs         *SpacedRepetitionService
	engagement  *EngagementService
}

func newTestEngine(t *testing.T, now func() time.Time) *testEngine {
	t.Helper()
	db := newTestDB(t)

	stats := &StatsService{now: now}
	stats.initWithDb(db)

	streak := &StreakService{now: now}
	streak.initWithDb(db)

	ledger := &LedgerService{now: now}
	ledger.initWithDb(db)

	challenge := &ChallengeService{ledgerSvc: ledger, streakSvc: streak, now: now}
	challenge.initWithDb(db)

	achievement := &AchievementService{ledgerSvc: ledger, streakSvc: streak, now: now}
	achievement.initWithDb(db)

	srs := &SpacedRepetitionService{now: now}
	srs.initWithDb(db)

	engagement := &EngagementService{
		statsSvc:       stats,
		streakSvc:      streak,
		ledgerSvc:      ledger,
		challengeSvc:   challenge,
		achievementSvc: achievement,
		srsSvc:         srs,
		now:            now,
	}

	return &testEngine{
		db:          db,
		stats:       stats,
		streak:      streak,
		ledger:      ledger,
		challenge:   challenge,
		achievement: achievement,
		srs:         srs,
		engagement:  engagement,
	}
}

// setClock retargets every service's clock, for tests that walk across days.
func (e *testEngine) setClock(now func() time.Time) {
	e.stats.now = now
	e.streak.now = now
	e.ledger.now = now
	e.challenge.now = now
	e.achievement.now = now
	e.srs.now = now
	e.engagement.now = now
}
