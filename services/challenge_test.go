package services

import (
	"fmt"
	"sync"
	"testing"

	"github.com/lingokeep/progress_api/model"
	"github.com/lingokeep/progress_api/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedChallenge(t *testing.T, e *testEngine, challenge model.Challenge) model.Challenge {
	t.Helper()
	if challenge.ID == "" {
		challenge.ID = "chal_" + challenge.Code
	}
	challenge.IsActive = true
	require.NoError(t, e.db.Create(&challenge).Error)
	return challenge
}

func seedDailyCatalog(t *testing.T, e *testEngine) []model.Challenge {
	t.Helper()
	var out []model.Challenge
	for i, goal := range []string{shared.GoalMessages, shared.GoalSavedWords, shared.GoalHighAccuracyMessages} {
		out = append(out, seedChallenge(t, e, model.Challenge{
			Code:        fmt.Sprintf("daily_%d", i),
			Type:        shared.ChallengeTypeDaily,
			GoalType:    goal,
			GoalValue:   3,
			RewardStars: 5,
		}))
	}
	return out
}

func TestWeekStart(t *testing.T) {
	monday, err := weekStart("2026-03-10") // a Tuesday
	require.NoError(t, err)
	assert.Equal(t, "2026-03-09", monday)

	monday, err = weekStart("2026-03-09") // Monday maps to itself
	require.NoError(t, err)
	assert.Equal(t, "2026-03-09", monday)

	monday, err = weekStart("2026-03-15") // Sunday belongs to the week behind it
	require.NoError(t, err)
	assert.Equal(t, "2026-03-09", monday)

	_, err = weekStart("not-a-date")
	assert.ErrorIs(t, err, shared.ErrInvalidPeriodKey)
}

func TestDailySelectionIsDeterministic(t *testing.T) {
	e := newTestEngine(t, clockAt("2026-03-10"))
	seedDailyCatalog(t, e)

	first, err := e.challenge.GetDailyChallenge("user-1", "2026-03-10")
	require.NoError(t, err)

	// Same inputs, fresh service instance, same pick.
	other := &ChallengeService{ledgerSvc: e.ledger, streakSvc: e.streak, now: e.challenge.now}
	other.initWithDb(e.db)

	for i := 0; i < 5; i++ {
		again, err := other.GetDailyChallenge("user-1", "2026-03-10")
		require.NoError(t, err)
		assert.Equal(t, first.Code, again.Code)
	}
}

func TestDailySelectionSpreadsAcrossUsers(t *testing.T) {
	e := newTestEngine(t, clockAt("2026-03-10"))
	catalog := seedDailyCatalog(t, e)

	// With enough users every catalog entry gets picked at least once.
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		view, err := e.challenge.GetDailyChallenge(fmt.Sprintf("user-%d", i), "2026-03-10")
		require.NoError(t, err)
		seen[view.Code] = true
	}
	assert.Len(t, seen, len(catalog))
}

func TestGetDailyChallengeRejectsBadDate(t *testing.T) {
	e := newTestEngine(t, clockAt("2026-03-10"))
	seedDailyCatalog(t, e)

	_, err := e.challenge.GetDailyChallenge("user-1", "10/03/2026")
	assert.ErrorIs(t, err, shared.ErrInvalidPeriodKey)
}

func TestGetDailyChallengeEmptyCatalog(t *testing.T) {
	e := newTestEngine(t, clockAt("2026-03-10"))

	_, err := e.challenge.GetDailyChallenge("user-1", "2026-03-10")
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestChallengeProgressTracksDailyStat(t *testing.T) {
	e := newTestEngine(t, clockAt("2026-03-10"))
	challenge := seedChallenge(t, e, model.Challenge{
		Code:      "daily_only",
		Type:      shared.ChallengeTypeDaily,
		GoalType:  shared.GoalMessages,
		GoalValue: 3,
	})
	when := e.stats.now()

	_, err := e.stats.RecordMessage("user-1", 70, "", 5, when, "UTC")
	require.NoError(t, err)

	view, err := e.challenge.GetDailyChallenge("user-1", "2026-03-10")
	require.NoError(t, err)
	assert.Equal(t, challenge.Code, view.Code)
	assert.Equal(t, 1, view.Progress)
	assert.False(t, view.Completed)

	for i := 0; i < 2; i++ {
		_, err = e.stats.RecordMessage("user-1", 70, "", 5, when, "UTC")
		require.NoError(t, err)
	}

	view, err = e.challenge.GetDailyChallenge("user-1", "2026-03-10")
	require.NoError(t, err)
	assert.Equal(t, 3, view.Progress)
	assert.True(t, view.Completed)
	assert.NotNil(t, view.CompletedAt)
}

func TestSyncProgressReportsCompletionOnce(t *testing.T) {
	e := newTestEngine(t, clockAt("2026-03-10"))
	seedChallenge(t, e, model.Challenge{
		Code:      "daily_only",
		Type:      shared.ChallengeTypeDaily,
		GoalType:  shared.GoalMessages,
		GoalValue: 2,
	})
	when := e.stats.now()

	for i := 0; i < 2; i++ {
		_, err := e.stats.RecordMessage("user-1", 70, "", 5, when, "UTC")
		require.NoError(t, err)
	}

	completed, err := e.challenge.SyncProgress("user-1", "2026-03-10")
	require.NoError(t, err)
	require.Len(t, completed, 1)
	assert.Equal(t, "daily_only", completed[0].Code)

	// Re-syncing with the goal still met reports nothing new.
	completed, err = e.challenge.SyncProgress("user-1", "2026-03-10")
	require.NoError(t, err)
	assert.Empty(t, completed)
}

func TestWeeklyProgressSumsAcrossDays(t *testing.T) {
	e := newTestEngine(t, clockAt("2026-03-10"))
	seedChallenge(t, e, model.Challenge{
		Code:      "weekly_messages",
		Type:      shared.ChallengeTypeWeekly,
		GoalType:  shared.GoalWeeklyMessages,
		GoalValue: 5,
	})

	for _, day := range []string{"2026-03-09", "2026-03-10", "2026-03-11"} {
		e.setClock(clockAt(day))
		when := e.stats.now()
		_, err := e.stats.RecordMessage("user-1", 70, "", 5, when, "UTC")
		require.NoError(t, err)
	}

	views, err := e.challenge.GetWeeklyChallenges("user-1", "2026-03-11")
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, "2026-03-09", views[0].PeriodKey, "weekly period key is the Monday")
	assert.Equal(t, 3, views[0].Progress)
}

func TestWeeklyAccuracyIsMessageWeighted(t *testing.T) {
	e := newTestEngine(t, clockAt("2026-03-09"))
	seedChallenge(t, e, model.Challenge{
		Code:      "weekly_accuracy",
		Type:      shared.ChallengeTypeWeekly,
		GoalType:  shared.GoalWeeklyAccuracy,
		GoalValue: 85,
	})

	// Day one: three messages at 90. Day two: one message at 50.
	e.setClock(clockAt("2026-03-09"))
	for i := 0; i < 3; i++ {
		_, err := e.stats.RecordMessage("user-1", 90, "", 5, e.stats.now(), "UTC")
		require.NoError(t, err)
	}
	e.setClock(clockAt("2026-03-10"))
	_, err := e.stats.RecordMessage("user-1", 50, "", 5, e.stats.now(), "UTC")
	require.NoError(t, err)

	views, err := e.challenge.GetWeeklyChallenges("user-1", "2026-03-10")
	require.NoError(t, err)
	require.Len(t, views, 1)
	// (3*90 + 50) / 4 = 80, not the 70 a mean of daily means would give.
	assert.Equal(t, 80, views[0].Progress)
}

func TestClaimRewardLifecycle(t *testing.T) {
	e := newTestEngine(t, clockAt("2026-03-10"))
	challenge := seedChallenge(t, e, model.Challenge{
		Code:        "daily_only",
		Type:        shared.ChallengeTypeDaily,
		GoalType:    shared.GoalMessages,
		GoalValue:   1,
		RewardStars: 5,
	})

	// Nothing to claim yet.
	_, err := e.challenge.ClaimReward("user-1", challenge.ID, "2026-03-10")
	assert.ErrorIs(t, err, shared.ErrNotFound)

	// Progress exists but the goal is not met.
	seedIncomplete := seedChallenge(t, e, model.Challenge{
		Code:      "daily_other",
		Type:      shared.ChallengeTypeDaily,
		GoalType:  shared.GoalSavedWords,
		GoalValue: 99,
	})
	_, _, err = e.challenge.syncOne("user-1", &seedIncomplete, "2026-03-10")
	require.NoError(t, err)
	_, err = e.challenge.ClaimReward("user-1", seedIncomplete.ID, "2026-03-10")
	assert.ErrorIs(t, err, shared.ErrNotCompleted)

	// Complete and claim.
	_, err = e.stats.RecordMessage("user-1", 70, "", 5, e.stats.now(), "UTC")
	require.NoError(t, err)
	_, _, err = e.challenge.syncOne("user-1", &challenge, "2026-03-10")
	require.NoError(t, err)

	resp, err := e.challenge.ClaimReward("user-1", challenge.ID, "2026-03-10")
	require.NoError(t, err)
	assert.Equal(t, 5, resp.StarsEarned)
	assert.Equal(t, 5, resp.TotalStars)

	// Claiming again fails and does not double-credit.
	_, err = e.challenge.ClaimReward("user-1", challenge.ID, "2026-03-10")
	assert.ErrorIs(t, err, shared.ErrAlreadyClaimed)

	balance, err := e.ledger.Balance("user-1")
	require.NoError(t, err)
	assert.Equal(t, 5, balance.Total)
}

func TestClaimRewardSingleWinnerUnderContention(t *testing.T) {
	e := newTestEngine(t, clockAt("2026-03-10"))
	challenge := seedChallenge(t, e, model.Challenge{
		Code:        "daily_only",
		Type:        shared.ChallengeTypeDaily,
		GoalType:    shared.GoalMessages,
		GoalValue:   1,
		RewardStars: 5,
	})

	_, err := e.stats.RecordMessage("user-1", 70, "", 5, e.stats.now(), "UTC")
	require.NoError(t, err)
	_, _, err = e.challenge.syncOne("user-1", &challenge, "2026-03-10")
	require.NoError(t, err)

	const claimers = 8
	results := make([]error, claimers)
	var wg sync.WaitGroup
	for i := 0; i < claimers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = e.challenge.ClaimReward("user-1", challenge.ID, "2026-03-10")
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, claimErr := range results {
		if claimErr == nil {
			wins++
			continue
		}
		assert.ErrorIs(t, claimErr, shared.ErrAlreadyClaimed)
	}
	assert.Equal(t, 1, wins)

	// One credit, once.
	balance, err := e.ledger.Balance("user-1")
	require.NoError(t, err)
	assert.Equal(t, 5, balance.Total)

	var credits int64
	require.NoError(t, e.db.Model(&model.StarTransaction{}).
		Where("user_id = ? AND reason = ?", "user-1", shared.ReasonChallengeReward).
		Count(&credits).Error)
	assert.EqualValues(t, 1, credits)
}

func TestClaimRewardRejectsBadPeriodKey(t *testing.T) {
	e := newTestEngine(t, clockAt("2026-03-10"))

	_, err := e.challenge.ClaimReward("user-1", "whatever", "march 10th")
	assert.ErrorIs(t, err, shared.ErrInvalidPeriodKey)
}

func TestProgressNeverDecreases(t *testing.T) {
	e := newTestEngine(t, clockAt("2026-03-10"))
	challenge := seedChallenge(t, e, model.Challenge{
		Code:      "daily_only",
		Type:      shared.ChallengeTypeDaily,
		GoalType:  shared.GoalMessages,
		GoalValue: 10,
	})

	_, err := e.stats.RecordMessage("user-1", 70, "", 5, e.stats.now(), "UTC")
	require.NoError(t, err)
	_, err = e.challenge.SyncProgress("user-1", "2026-03-10")
	require.NoError(t, err)

	// Force the stored progress above the live value; a re-sync must not
	// pull it back down.
	require.NoError(t, e.db.Model(&model.UserChallengeProgress{}).
		Where("challenge_id = ?", challenge.ID).
		Update("progress", 7).Error)

	view, err := e.challenge.GetDailyChallenge("user-1", "2026-03-10")
	require.NoError(t, err)
	assert.Equal(t, 7, view.Progress)
}
