package services

import (
	"testing"
	"time"

	"github.com/lingokeep/progress_api/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordMessageFoldsIntoDailyStat(t *testing.T) {
	e := newTestEngine(t, clockAt("2026-03-10"))
	when := e.stats.now()

	stat, err := e.stats.RecordMessage("user-1", 90, "travel", 12, when, "UTC")
	require.NoError(t, err)
	assert.Equal(t, 1, stat.MessagesCount)
	assert.Equal(t, 12, stat.WordsSaid)
	assert.Equal(t, 90, stat.ScoreSum)
	assert.Equal(t, 1, stat.HighAccuracyCount)
	assert.Equal(t, 90.0, stat.CorrectPercent)

	stat, err = e.stats.RecordMessage("user-1", 60, "food", 5, when, "UTC")
	require.NoError(t, err)
	assert.Equal(t, 2, stat.MessagesCount)
	assert.Equal(t, 17, stat.WordsSaid)
	assert.Equal(t, 150, stat.ScoreSum)
	assert.Equal(t, 1, stat.HighAccuracyCount, "a 60 does not count as high accuracy")
	assert.Equal(t, 75.0, stat.CorrectPercent)
}

func TestRecordMessageTracksTopics(t *testing.T) {
	e := newTestEngine(t, clockAt("2026-03-10"))
	when := e.stats.now()

	for i := 0; i < 3; i++ {
		_, err := e.stats.RecordMessage("user-1", 70, "travel", 5, when, "UTC")
		require.NoError(t, err)
	}
	_, err := e.stats.RecordMessage("user-1", 70, "food", 5, when, "UTC")
	require.NoError(t, err)

	stat, err := e.stats.stats.GetDailyStat("user-1", "2026-03-10")
	require.NoError(t, err)
	assert.Equal(t, 3, TopicOccurrences([]model.DailyStat{*stat}, "travel"))
	assert.Equal(t, 1, TopicOccurrences([]model.DailyStat{*stat}, "food"))
	assert.Equal(t, 0, TopicOccurrences([]model.DailyStat{*stat}, "sports"))
}

func TestRecordSavedWordCountsSeparately(t *testing.T) {
	e := newTestEngine(t, clockAt("2026-03-10"))
	when := e.stats.now()

	stat, err := e.stats.RecordSavedWord("user-1", when, "UTC")
	require.NoError(t, err)
	assert.Equal(t, 1, stat.SavedWords)
	assert.Equal(t, 0, stat.MessagesCount, "saved words are not messages")
}

func TestRecordMessageBumpsUserTotals(t *testing.T) {
	e := newTestEngine(t, clockAt("2026-03-10"))
	when := e.stats.now()

	_, err := e.stats.RecordMessage("user-1", 80, "", 4, when, "UTC")
	require.NoError(t, err)
	_, err = e.stats.RecordSavedWord("user-1", when, "UTC")
	require.NoError(t, err)

	progress, err := e.stats.stats.GetUserProgress("user-1")
	require.NoError(t, err)
	assert.Equal(t, 1, progress.TotalMessages)
	assert.Equal(t, 1, progress.TotalWordsSaved)
}

func TestLocalDayRespectsTimezone(t *testing.T) {
	// 2026-03-10 02:00 UTC is still 2026-03-09 in New York.
	when := time.Date(2026, 3, 10, 2, 0, 0, 0, time.UTC)

	assert.Equal(t, "2026-03-10", LocalDay(when, "UTC"))
	assert.Equal(t, "2026-03-09", LocalDay(when, "America/New_York"))
	assert.Equal(t, "2026-03-10", LocalDay(when, "not/a/zone"), "bad timezone falls back to UTC")
	assert.Equal(t, "2026-03-10", LocalDay(when, ""))
}

func TestMessagesOnEitherSideOfLocalMidnightLandOnDifferentDays(t *testing.T) {
	e := newTestEngine(t, clockAt("2026-03-10"))

	beforeMidnight := time.Date(2026, 3, 10, 3, 30, 0, 0, time.UTC) // 23:30 on Mar 9 in New York
	afterMidnight := time.Date(2026, 3, 10, 5, 30, 0, 0, time.UTC)  // 00:30 on Mar 10 in New York

	_, err := e.stats.RecordMessage("user-1", 70, "", 3, beforeMidnight, "America/New_York")
	require.NoError(t, err)
	_, err = e.stats.RecordMessage("user-1", 70, "", 3, afterMidnight, "America/New_York")
	require.NoError(t, err)

	first, err := e.stats.stats.GetDailyStat("user-1", "2026-03-09")
	require.NoError(t, err)
	second, err := e.stats.stats.GetDailyStat("user-1", "2026-03-10")
	require.NoError(t, err)
	assert.Equal(t, 1, first.MessagesCount)
	assert.Equal(t, 1, second.MessagesCount)
}

func TestSaveDailyStatVersionedRejectsStaleWrites(t *testing.T) {
	e := newTestEngine(t, clockAt("2026-03-10"))
	repo := e.stats.stats

	stat, err := repo.GetOrCreateDailyStat("user-1", "2026-03-10")
	require.NoError(t, err)

	stale := *stat

	stat.MessagesCount = 1
	ok, err := repo.SaveDailyStatVersioned(stat)
	require.NoError(t, err)
	assert.True(t, ok)

	// The stale copy still carries the old version and must lose.
	stale.MessagesCount = 99
	ok, err = repo.SaveDailyStatVersioned(&stale)
	require.NoError(t, err)
	assert.False(t, ok)

	fresh, err := repo.GetDailyStat("user-1", "2026-03-10")
	require.NoError(t, err)
	assert.Equal(t, 1, fresh.MessagesCount)
}

func TestStreakStateWriteTouchesOnlyStreakColumns(t *testing.T) {
	e := newTestEngine(t, clockAt("2026-03-01"))
	repo := e.stats.stats

	_, err := repo.GetOrCreateUserProgress("user-1")
	require.NoError(t, err)
	require.NoError(t, repo.IncrementTotals("user-1", 3, 2))

	// The streak and timezone writes land after the atomic bumps; neither
	// may carry a stale totals snapshot back into the row.
	require.NoError(t, repo.SetStreakState("user-1", 4, 4, "2026-03-01"))
	require.NoError(t, repo.SetTimezone("user-1", "Asia/Tokyo"))

	progress, err := repo.GetUserProgress("user-1")
	require.NoError(t, err)
	assert.Equal(t, 3, progress.TotalMessages)
	assert.Equal(t, 2, progress.TotalWordsSaved)
	assert.Equal(t, 4, progress.CurrentStreak)
	assert.Equal(t, 4, progress.MaxStreak)
	assert.Equal(t, "Asia/Tokyo", progress.Timezone)
	assert.Equal(t, "2026-03-01", progress.LastActiveDate)
}
