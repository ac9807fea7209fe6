package shared

const (
	UserID = "user_id"

	// Calendar day key used for daily stats and challenge period keys.
	DayFormat = "2006-01-02"

	ChallengeTypeDaily  = "daily"
	ChallengeTypeWeekly = "weekly"

	GoalMessages             = "messages"
	GoalHighAccuracyMessages = "high_accuracy_messages"
	GoalSavedWords           = "saved_words"
	GoalTopicMessage         = "topic_message"
	GoalStreakDays           = "streak_days"
	GoalWeeklyMessages       = "weekly_messages"
	GoalWeeklyAccuracy       = "weekly_accuracy"
	GoalWeeklySavedWords     = "weekly_saved_words"

	CategoryStreak     = "streak"
	CategoryMessages   = "messages"
	CategoryVocabulary = "vocabulary"
	CategoryStars      = "stars"
	CategoryMastery    = "mastery"
	CategoryAccuracy   = "accuracy"

	EventTypeMessage   = "message"
	EventTypeWordSaved = "word_saved"

	// Star transaction reasons
	ReasonMessage           = "message"
	ReasonStreakBonus       = "streak_bonus"
	ReasonChallengeReward   = "challenge_reward"
	ReasonAchievementReward = "achievement_reward"
	ReasonSpend             = "spend"

	// A message with a correctness score at or above this counts as high accuracy.
	HighAccuracyScore = 80
)
