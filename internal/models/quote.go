package models

import (
	"time"
)

// PriceQuote represents a price + 24h-change observation for one coin at
// one instant. Quotes are ephemeral and sourced per refresh cycle; a coin
// absent from the feed response has no quote at all, which is different
// from a quote of zero.
type PriceQuote struct {
	CoinID       string    `json:"coinId"`
	PriceUSD     float64   `json:"usd"`
	Change24hPct float64   `json:"usd_24h_change"`
	ObservedAt   time.Time `json:"observedAt"`
}
