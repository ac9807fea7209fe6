package dto

import "time"

// Event DTOs

// EventPayload carries the per-message fields the message pipeline emits.
type EventPayload struct {
	Score     int    `json:"score" validate:"gte=0,lte=100"`
	Topic     string `json:"topic,omitempty"`
	WordCount int    `json:"word_count,omitempty" validate:"gte=0"`
	Word      string `json:"word,omitempty"`
}

type RecordEventRequest struct {
	UserID    string       `json:"user_id" validate:"required"`
	EventType string       `json:"event_type" validate:"required,oneof=message word_saved"`
	Payload   EventPayload `json:"payload"`
	Timezone  string       `json:"timezone"`
}

// EngineResult is returned to the message pipeline after every event so it
// can surface rewards without a second round trip.
type EngineResult struct {
	StarsEarned          int               `json:"stars_earned"`
	CurrentStreak        int               `json:"current_streak"`
	MaxStreak            int               `json:"max_streak"`
	UnlockedAchievements []AchievementView `json:"unlocked_achievements"`
	CompletedChallenges  []ChallengeView   `json:"completed_challenges"`
}

// Challenge DTOs

type ChallengeView struct {
	ID            string     `json:"id"`
	Code          string     `json:"code"`
	Type          string     `json:"type"`
	Title         string     `json:"title"`
	Description   string     `json:"description"`
	GoalType      string     `json:"goal_type"`
	GoalValue     int        `json:"goal_value"`
	GoalTopic     string     `json:"goal_topic,omitempty"`
	RewardStars   int        `json:"reward_stars"`
	PeriodKey     string     `json:"period_key"`
	Progress      int        `json:"progress"`
	Completed     bool       `json:"completed"`
	RewardClaimed bool       `json:"reward_claimed"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}

type ChallengesResponse struct {
	Daily  ChallengeView   `json:"daily"`
	Weekly []ChallengeView `json:"weekly"`
}

type ClaimRewardRequest struct {
	UserID      string `json:"user_id" validate:"required"`
	ChallengeID string `json:"challenge_id" validate:"required"`
	PeriodKey   string `json:"period_key" validate:"required,period_key"`
}

type ClaimRewardResponse struct {
	StarsEarned int `json:"stars_earned"`
	TotalStars  int `json:"total_stars"`
}

// Achievement DTOs

type AchievementView struct {
	Code        string     `json:"code"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Category    string     `json:"category"`
	Threshold   int        `json:"threshold"`
	StarsReward int        `json:"stars_reward"`
	Hidden      bool       `json:"hidden"`
	Unlocked    bool       `json:"unlocked"`
	UnlockedAt  *time.Time `json:"unlocked_at,omitempty"`
	Progress    int        `json:"progress"`
}

// Review DTOs

type ScheduleReviewRequest struct {
	CardID  string `json:"card_id" validate:"required"`
	Quality int    `json:"quality" validate:"gte=0,lte=3"`
}

type ReviewResponse struct {
	CardID         string    `json:"card_id"`
	Word           string    `json:"word"`
	EaseFactor     float64   `json:"ease_factor"`
	IntervalDays   int       `json:"interval_days"`
	NextReviewDate time.Time `json:"next_review_date"`
	ReviewCount    int       `json:"review_count"`
}

type ReviewSessionResponse struct {
	SessionID string `json:"session_id"`
	CardsLeft int    `json:"cards_left"`
	Word      string `json:"word,omitempty"`
	CardID    string `json:"card_id,omitempty"`
	Done      bool   `json:"done"`
}

// Ledger DTOs

type BalanceResponse struct {
	UserID    string `json:"user_id"`
	Total     int    `json:"total"`
	Available int    `json:"available"`
	Lifetime  int    `json:"lifetime"`
	Spent     int    `json:"spent"`
}
