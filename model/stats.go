// model/stats.go
package model

import (
	"encoding/json"
	"time"
)

// DailyStat aggregates one user's learning activity for one user-local
// calendar day. Exactly one row exists per (user_id, date); it is created
// lazily on the first qualifying event of the day.
type DailyStat struct {
	ID     string `json:"id" gorm:"primaryKey"`
	UserID string `json:"user_id" gorm:"not null;uniqueIndex:ux_user_day,priority:1"`
	Date   string `json:"date" gorm:"not null;uniqueIndex:ux_user_day,priority:2"` // YYYY-MM-DD in the user's timezone

	MessagesCount     int             `json:"messages_count" gorm:"default:0"`
	WordsSaid         int             `json:"words_said" gorm:"default:0"`
	SavedWords        int             `json:"saved_words" gorm:"default:0"`
	HighAccuracyCount int             `json:"high_accuracy_count" gorm:"default:0"`
	ScoreSum          int             `json:"score_sum" gorm:"default:0"`
	CorrectPercent    float64         `json:"correct_percent" gorm:"default:0"`
	TopicCounts       json.RawMessage `json:"topic_counts" gorm:"type:text"` // JSON map topic -> message count
	StreakDay         int             `json:"streak_day" gorm:"default:0"`

	// Version guards concurrent increments (optimistic locking).
	Version int `json:"-" gorm:"default:0"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UserProgress is the derived per-user view of streak state plus the
// cumulative counters the achievement evaluators read.
type UserProgress struct {
	ID     string `json:"id" gorm:"primaryKey"`
	UserID string `json:"user_id" gorm:"not null;uniqueIndex"`

	CurrentStreak  int    `json:"current_streak" gorm:"default:0"`
	MaxStreak      int    `json:"max_streak" gorm:"default:0"`
	LastActiveDate string `json:"last_active_date"` // YYYY-MM-DD, user-local
	Timezone       string `json:"timezone"`         // last timezone seen for this user

	TotalMessages   int `json:"total_messages" gorm:"default:0"`
	TotalWordsSaved int `json:"total_words_saved" gorm:"default:0"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
