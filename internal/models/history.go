package models

import (
	"time"
)

// HistorySnapshot represents one day's recorded portfolio valuation.
// Exactly one exists per (user, calendar date); repeated snapshots on the
// same day update the point values and widen the daily high/low range
// instead of creating new rows.
type HistorySnapshot struct {
	ID             int64             `json:"id" db:"id"`
	UserID         int64             `json:"-" db:"user_id"`
	Date           string            `json:"date" db:"snapshot_date"`
	TotalValue     float64           `json:"totalValue" db:"total_value"`
	Change24hPct   float64           `json:"change24h" db:"change_24h"`
	DailyHigh      *float64          `json:"dailyHigh" db:"daily_high"`
	DailyLow       *float64          `json:"dailyLow" db:"daily_low"`
	FearGreedIndex *int              `json:"fearGreedIndex" db:"fear_greed_index"`
	Coins          []HistoryCoinLine `json:"coins"`
	Notes          []Note            `json:"notes"`
	CreatedAt      time.Time         `json:"-" db:"created_at"`
}

// HistoryCoinLine represents the per-coin breakdown of a snapshot. Lines
// are owned exclusively by their snapshot and are fully replaced on each
// recomputation of that day.
type HistoryCoinLine struct {
	HistoryID    int64   `json:"-" db:"history_id"`
	CoinID       string  `json:"coinId" db:"coin_id"`
	Symbol       string  `json:"symbol" db:"symbol"`
	Name         string  `json:"name" db:"name"`
	Quantity     float64 `json:"quantity" db:"quantity"`
	PriceUSD     float64 `json:"price" db:"price_usd"`
	ValueUSD     float64 `json:"value" db:"value_usd"`
	Change24hPct float64 `json:"change24h" db:"change_24h"`
	Image        *string `json:"image" db:"image_url"`
}

// Note represents a free-text annotation attached to a snapshot. Many
// notes can exist per snapshot; they are displayed newest first.
type Note struct {
	ID        int64     `json:"id" db:"id"`
	HistoryID int64     `json:"-" db:"history_id"`
	Text      string    `json:"text" db:"note_text"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}
