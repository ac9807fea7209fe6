// model/vocabulary.go
package model

import (
	"encoding/json"
	"time"
)

// VocabularyCard is one saved word under spaced repetition.
// EaseFactor stays within [1.3, 3.0] and IntervalDays within [1, 365].
type VocabularyCard struct {
	ID     string `json:"id" gorm:"primaryKey"`
	UserID string `json:"user_id" gorm:"not null;uniqueIndex:ux_user_word,priority:1"`
	Word   string `json:"word" gorm:"not null;uniqueIndex:ux_user_word,priority:2"`

	EaseFactor     float64         `json:"ease_factor" gorm:"default:2.5"`
	IntervalDays   int             `json:"interval_days" gorm:"default:1"`
	NextReviewDate time.Time       `json:"next_review_date"`
	ReviewCount    int             `json:"review_count" gorm:"default:0"`
	QualityHistory json.RawMessage `json:"quality_history" gorm:"type:text"` // JSON array, last 5 qualities

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
