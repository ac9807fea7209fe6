// model/ledger.go
package model

import "time"

// RewardLedger is the single source of truth for a user's star balance.
// Lifetime never decreases and Total == Lifetime - Spent at all times.
// Rows are mutated only through the ledger service's atomic increments.
type RewardLedger struct {
	ID        string    `json:"id" gorm:"primaryKey"`
	UserID    string    `json:"user_id" gorm:"not null;uniqueIndex"`
	Total     int       `json:"total" gorm:"default:0"`
	Available int       `json:"available" gorm:"default:0"`
	Lifetime  int       `json:"lifetime" gorm:"default:0"`
	Spent     int       `json:"spent" gorm:"default:0"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// StarTransaction is the append-only audit trail behind every ledger
// mutation. Amount is positive for credits, negative for spends.
type StarTransaction struct {
	ID        string    `json:"id" gorm:"primaryKey"`
	UserID    string    `json:"user_id" gorm:"not null;index"`
	Amount    int       `json:"amount" gorm:"not null"`
	Reason    string    `json:"reason" gorm:"not null"`
	Reference string    `json:"reference"` // challenge/achievement code when applicable
	CreatedAt time.Time `json:"created_at"`
}
