package services

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordDay sends one qualifying message and advances the streak, the way the
// event pipeline does.
func recordDay(t *testing.T, e *testEngine, userID, day string) (current int, incremented bool) {
	t.Helper()
	e.setClock(clockAt(day))
	when := e.stats.now()

	stat, err := e.stats.RecordMessage(userID, 75, "", 5, when, "UTC")
	require.NoError(t, err)

	current, _, incremented, err = e.streak.UpdateStreak(userID, when, "UTC", stat.MessagesCount)
	require.NoError(t, err)
	return current, incremented
}

func TestStreakGrowsOverConsecutiveDays(t *testing.T) {
	e := newTestEngine(t, clockAt("2026-03-01"))

	for i := 0; i < 5; i++ {
		day := fmt.Sprintf("2026-03-%02d", i+1)
		current, incremented := recordDay(t, e, "user-1", day)
		assert.Equal(t, i+1, current)
		assert.True(t, incremented)
	}

	current, max, err := e.streak.CurrentStreak("user-1")
	require.NoError(t, err)
	assert.Equal(t, 5, current)
	assert.Equal(t, 5, max)
}

func TestStreakResetsAfterMissedDay(t *testing.T) {
	e := newTestEngine(t, clockAt("2026-03-01"))

	recordDay(t, e, "user-1", "2026-03-01")
	recordDay(t, e, "user-1", "2026-03-02")

	// Day 3 skipped; day 4 starts over at 1.
	current, incremented := recordDay(t, e, "user-1", "2026-03-04")
	assert.Equal(t, 1, current)
	assert.True(t, incremented)

	_, max, err := e.streak.CurrentStreak("user-1")
	require.NoError(t, err)
	assert.Equal(t, 2, max, "max streak survives the reset")
}

func TestStreakCountsEachDayOnce(t *testing.T) {
	e := newTestEngine(t, clockAt("2026-03-01"))

	current, incremented := recordDay(t, e, "user-1", "2026-03-01")
	assert.Equal(t, 1, current)
	assert.True(t, incremented)

	// Second message on the same day does not move the streak.
	when := e.stats.now()
	stat, err := e.stats.RecordMessage("user-1", 75, "", 5, when, "UTC")
	require.NoError(t, err)
	current, _, incremented, err = e.streak.UpdateStreak("user-1", when, "UTC", stat.MessagesCount)
	require.NoError(t, err)
	assert.Equal(t, 1, current)
	assert.False(t, incremented)
}

func TestCurrentStreakLapsesWithoutWaitingForSweep(t *testing.T) {
	e := newTestEngine(t, clockAt("2026-03-01"))

	recordDay(t, e, "user-1", "2026-03-01")
	recordDay(t, e, "user-1", "2026-03-02")

	// Two days later the stored counter is stale; reads must see zero.
	e.setClock(clockAt("2026-03-04"))
	current, max, err := e.streak.CurrentStreak("user-1")
	require.NoError(t, err)
	assert.Equal(t, 0, current)
	assert.Equal(t, 2, max)
}

func TestCurrentStreakStillLiveOnNextDay(t *testing.T) {
	e := newTestEngine(t, clockAt("2026-03-01"))

	recordDay(t, e, "user-1", "2026-03-01")

	// The user has until the end of the next day to keep the streak.
	e.setClock(clockAt("2026-03-02"))
	current, _, err := e.streak.CurrentStreak("user-1")
	require.NoError(t, err)
	assert.Equal(t, 1, current)
}

func TestExpireStaleResetsOnlyLapsedStreaks(t *testing.T) {
	e := newTestEngine(t, clockAt("2026-03-01"))

	recordDay(t, e, "lapsed", "2026-03-01")
	recordDay(t, e, "active", "2026-03-03")

	e.setClock(clockAt("2026-03-04"))
	require.NoError(t, e.streak.ExpireStale())

	lapsed, err := e.stats.stats.GetUserProgress("lapsed")
	require.NoError(t, err)
	assert.Equal(t, 0, lapsed.CurrentStreak)
	assert.Equal(t, 1, lapsed.MaxStreak)

	active, err := e.stats.stats.GetUserProgress("active")
	require.NoError(t, err)
	assert.Equal(t, 1, active.CurrentStreak)
}

func TestUpdateStreakWithoutMessagesIsNoOp(t *testing.T) {
	e := newTestEngine(t, clockAt("2026-03-01"))

	current, max, incremented, err := e.streak.UpdateStreak("user-1", e.stats.now(), "UTC", 0)
	require.NoError(t, err)
	assert.Equal(t, 0, current)
	assert.Equal(t, 0, max)
	assert.False(t, incremented)
}

func TestStreakAdvancesWhenSameDayFoldsInterleave(t *testing.T) {
	e := newTestEngine(t, clockAt("2026-03-01"))
	when := e.stats.now()

	// Two events fold before either streak update runs. Each caller holds
	// the count its own fold returned.
	first, err := e.stats.RecordMessage("user-1", 75, "", 5, when, "UTC")
	require.NoError(t, err)
	second, err := e.stats.RecordMessage("user-1", 75, "", 5, when, "UTC")
	require.NoError(t, err)

	// The later fold resolves first and must not move anything.
	current, _, incremented, err := e.streak.UpdateStreak("user-1", when, "UTC", second.MessagesCount)
	require.NoError(t, err)
	assert.False(t, incremented)
	assert.Equal(t, 0, current)

	// The day-opening fold still advances the streak when it resolves last.
	current, _, incremented, err = e.streak.UpdateStreak("user-1", when, "UTC", first.MessagesCount)
	require.NoError(t, err)
	assert.True(t, incremented)
	assert.Equal(t, 1, current)
}

func TestStreakDayClaimedByOneCaller(t *testing.T) {
	e := newTestEngine(t, clockAt("2026-03-01"))
	when := e.stats.now()

	_, err := e.stats.RecordMessage("user-1", 75, "", 5, when, "UTC")
	require.NoError(t, err)

	// Two callers both holding the day-opening count; the row guard lets
	// exactly one through.
	_, _, firstInc, err := e.streak.UpdateStreak("user-1", when, "UTC", 1)
	require.NoError(t, err)
	_, _, secondInc, err := e.streak.UpdateStreak("user-1", when, "UTC", 1)
	require.NoError(t, err)
	assert.True(t, firstInc)
	assert.False(t, secondInc)

	current, _, err := e.streak.CurrentStreak("user-1")
	require.NoError(t, err)
	assert.Equal(t, 1, current)
}
