// model/achievement.go
package model

import "time"

// Achievement is an immutable catalog entry for a threshold-based unlock.
type Achievement struct {
	ID          string    `json:"id" gorm:"primaryKey"`
	Code        string    `json:"code" gorm:"not null;uniqueIndex"`
	Name        string    `json:"name" gorm:"not null"`
	Description string    `json:"description"`
	Category    string    `json:"category" gorm:"not null"` // streak, messages, vocabulary, stars, mastery, accuracy
	Threshold   int       `json:"threshold" gorm:"not null"`
	StarsReward int       `json:"stars_reward" gorm:"default:0"`
	IsHidden    bool      `json:"is_hidden" gorm:"default:false"`
	IsActive    bool      `json:"is_active" gorm:"default:true"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// UserAchievement records an unlock. Append-only: one row per
// (user, achievement), created exactly once, never deleted.
type UserAchievement struct {
	ID               string    `json:"id" gorm:"primaryKey"`
	UserID           string    `json:"user_id" gorm:"not null;uniqueIndex:ux_user_achievement,priority:1"`
	AchievementID    string    `json:"achievement_id" gorm:"not null;uniqueIndex:ux_user_achievement,priority:2"`
	UnlockedAt       time.Time `json:"unlocked_at"`
	ProgressAtUnlock int       `json:"progress_at_unlock"`
	CreatedAt        time.Time `json:"created_at"`

	Achievement Achievement `json:"achievement" gorm:"foreignKey:AchievementID"`
}
