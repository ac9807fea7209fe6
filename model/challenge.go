// model/challenge.go
package model

import "time"

// Challenge is an immutable catalog entry describing a time-boxed goal.
// Rows are seeded and never mutated once user progress references them.
type Challenge struct {
	ID          string    `json:"id" gorm:"primaryKey"`
	Code        string    `json:"code" gorm:"not null;uniqueIndex"`
	Type        string    `json:"type" gorm:"not null"` // daily, weekly
	Title       string    `json:"title"`
	Description string    `json:"description"`
	GoalType    string    `json:"goal_type" gorm:"not null"`
	GoalValue   int       `json:"goal_value" gorm:"not null"`
	GoalTopic   string    `json:"goal_topic"` // only for topic_message goals
	RewardStars int       `json:"reward_stars" gorm:"default:0"`
	IsActive    bool      `json:"is_active" gorm:"default:true"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Progress status transitions are strictly forward:
// pending -> completed -> claimed.
const (
	ProgressStatusPending   = "pending"
	ProgressStatusCompleted = "completed"
	ProgressStatusClaimed   = "claimed"
)

// UserChallengeProgress tracks one user's progress against one challenge in
// one period. PeriodKey is the day for daily challenges and the Monday of the
// week for weekly ones.
type UserChallengeProgress struct {
	ID          string `json:"id" gorm:"primaryKey"`
	UserID      string `json:"user_id" gorm:"not null;uniqueIndex:ux_user_challenge_period,priority:1"`
	ChallengeID string `json:"challenge_id" gorm:"not null;uniqueIndex:ux_user_challenge_period,priority:2"`
	PeriodKey   string `json:"period_key" gorm:"not null;uniqueIndex:ux_user_challenge_period,priority:3"`

	Progress    int        `json:"progress" gorm:"default:0"`
	Status      string     `json:"status" gorm:"default:pending"`
	CompletedAt *time.Time `json:"completed_at"`
	ClaimedAt   *time.Time `json:"claimed_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Challenge Challenge `json:"challenge" gorm:"foreignKey:ChallengeID"`
}

func (p *UserChallengeProgress) Completed() bool {
	return p.Status == ProgressStatusCompleted || p.Status == ProgressStatusClaimed
}

func (p *UserChallengeProgress) Claimed() bool {
	return p.Status == ProgressStatusClaimed
}
