// Package valuation converts raw price-feed data and holdings into
// portfolio value and a blended 24h change. The package is pure: it never
// touches the store or the network.
package valuation

import (
	"github.com/Matej398/crypto-folio/internal/models"
)

// CoinLine is the valued view of a single holding. HasQuote distinguishes
// "quote unavailable" from a genuine zero price; a line without a quote is
// rendered as loading in the UI and excluded from totals.
type CoinLine struct {
	CoinID       string  `json:"coinId"`
	Symbol       string  `json:"symbol"`
	Name         string  `json:"name"`
	Quantity     float64 `json:"quantity"`
	PriceUSD     float64 `json:"price"`
	ValueUSD     float64 `json:"value"`
	Change24hPct float64 `json:"change24h"`
	Image        *string `json:"image,omitempty"`
	HasQuote     bool    `json:"hasQuote"`
}

// Valuation is the result of valuing a set of holdings against a quote
// map. TotalValue sums only the coins that have a quote; a coin without
// one contributes nothing rather than being treated as worth $0.
type Valuation struct {
	Coins        []CoinLine `json:"coins"`
	TotalValue   float64    `json:"totalValue"`
	Change24hAbs float64    `json:"change24hAbs"`
	Change24hPct float64    `json:"change24h"`
	// Complete is true only when every holding has a quote. A partial
	// valuation is displayed but must never feed the record tracker.
	Complete bool `json:"complete"`
}

// Valuate values holdings against a quote map. The quote map may be a
// strict subset of the holdings' coin ids; missing entries mean "quote
// unavailable, not zero".
func Valuate(holdings []models.Holding, quotes map[string]models.PriceQuote) Valuation {
	result := Valuation{
		Coins:    make([]CoinLine, 0, len(holdings)),
		Complete: true,
	}

	for _, h := range holdings {
		line := CoinLine{
			CoinID:   h.CoinID,
			Symbol:   h.Symbol,
			Name:     h.Name,
			Quantity: h.Quantity,
			Image:    h.Image,
		}

		quote, ok := quotes[h.CoinID]
		if ok {
			line.HasQuote = true
			line.PriceUSD = quote.PriceUSD
			line.ValueUSD = quote.PriceUSD * h.Quantity
			line.Change24hPct = quote.Change24hPct

			result.TotalValue += line.ValueUSD
			// Dollar move for this coin over 24h: value * (change% / 100)
			result.Change24hAbs += line.ValueUSD * (quote.Change24hPct / 100)
		} else {
			result.Complete = false
		}

		result.Coins = append(result.Coins, line)
	}

	// Reconstruct yesterday's total from today's total and today's delta,
	// then express the delta against it. This weights each coin's move by
	// its dollar value and is order-independent.
	previousTotal := result.TotalValue - result.Change24hAbs
	if previousTotal > 0 {
		result.Change24hPct = result.Change24hAbs / previousTotal * 100
	}

	return result
}

// Empty reports whether the valuation covers no holdings at all. An empty
// portfolio values to zero but must never win a lowest-value record, so
// callers gate record updates on this.
func (v Valuation) Empty() bool {
	return len(v.Coins) == 0
}
