// Package models provides data models for the crypto-folio system.
package models

import (
	"time"
)

// Holding represents one (coin, quantity) pair in a user's portfolio.
// Holdings are unique by CoinID; adding a coin that already exists
// increments its quantity instead of creating a second entry.
type Holding struct {
	CoinID   string  `json:"id" db:"coin_id"`
	Symbol   string  `json:"symbol" db:"symbol"`
	Name     string  `json:"name" db:"name"`
	Quantity float64 `json:"quantity" db:"quantity"`
	Image    *string `json:"image,omitempty" db:"image_url"`
}

// PortfolioStats holds the all-time high/low record observations for a
// user. Extremes are monotonic: a new high only replaces if strictly
// greater, a new low only if strictly less (or the slot is still null).
type PortfolioStats struct {
	HighestValue   *float64   `json:"highestValue"`
	HighestValueAt *time.Time `json:"highestValueTimestamp,omitempty"`
	LowestValue    *float64   `json:"lowestValue"`
	LowestValueAt  *time.Time `json:"lowestValueTimestamp,omitempty"`
}

// Portfolio represents a user's holdings plus record stats. Exactly one
// exists per user, created lazily on first portfolio access.
type Portfolio struct {
	UserID    int64          `json:"userId" db:"user_id"`
	Holdings  []Holding      `json:"portfolio"`
	Stats     PortfolioStats `json:"stats"`
	CreatedAt time.Time      `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time      `json:"updatedAt" db:"updated_at"`
}
