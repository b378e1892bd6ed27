// Package pricefeed fetches current prices and 24h changes for coin
// identifiers from the CoinGecko simple/price endpoint.
package pricefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/Matej398/crypto-folio/internal/config"
	"github.com/Matej398/crypto-folio/internal/logging"
	"github.com/Matej398/crypto-folio/internal/models"
	"github.com/Matej398/crypto-folio/internal/retry"
)

// DefaultBatchSize caps how many coin ids go into a single feed request
const DefaultBatchSize = 120

// quoteEntry matches one coin's entry in the simple/price response
type quoteEntry struct {
	USD          *float64 `json:"usd"`
	USD24hChange *float64 `json:"usd_24h_change"`
}

// Client is a batching CoinGecko price client. Requests are paced with a
// rate limiter so large portfolios do not trip the feed's rate limits.
type Client struct {
	baseURL   string
	batchSize int
	client    *http.Client
	limiter   *rate.Limiter
	retryCfg  *retry.Config
}

// NewClient creates a price feed client from configuration
func NewClient(cfg *config.PriceFeedConfig) *Client {
	batchSize := cfg.BatchSize
	if batchSize <= 0 || batchSize > DefaultBatchSize {
		batchSize = DefaultBatchSize
	}

	interval := cfg.BatchInterval
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}

	return &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		batchSize: batchSize,
		client:    &http.Client{Timeout: cfg.Timeout},
		limiter:   rate.NewLimiter(rate.Every(interval), 1),
		retryCfg: &retry.Config{
			MaxAttempts:  3,
			InitialDelay: 500 * time.Millisecond,
			MaxDelay:     5 * time.Second,
			Multiplier:   2.0,
		},
	}
}

// FetchQuotes fetches quotes for the given coin ids, chunking the request
// to respect the feed's batch size limit. Identifiers absent from the
// response have no quote. A failed batch degrades to "no data" for its
// coins; other batches still resolve, so one bad chunk never aborts the
// whole refresh.
func (c *Client) FetchQuotes(ctx context.Context, coinIDs []string) (map[string]models.PriceQuote, error) {
	quotes := make(map[string]models.PriceQuote)
	if len(coinIDs) == 0 {
		return quotes, nil
	}

	logger := logging.FromContext(ctx)

	ids := dedupe(coinIDs)
	failedBatches := 0

	for start := 0; start < len(ids); start += c.batchSize {
		end := start + c.batchSize
		if end > len(ids) {
			end = len(ids)
		}
		batch := ids[start:end]

		if err := c.limiter.Wait(ctx); err != nil {
			return quotes, err
		}

		entries, err := c.fetchBatch(ctx, batch)
		if err != nil {
			failedBatches++
			logger.WithError(err).WithFields(map[string]interface{}{
				"batchSize": len(batch),
			}).Warn("Price feed batch failed, continuing without it")
			continue
		}

		observed := time.Now().UTC()
		for coinID, entry := range entries {
			if entry.USD == nil {
				// Entry without a price is as good as absent
				continue
			}
			quote := models.PriceQuote{
				CoinID:     coinID,
				PriceUSD:   *entry.USD,
				ObservedAt: observed,
			}
			if entry.USD24hChange != nil {
				quote.Change24hPct = *entry.USD24hChange
			}
			quotes[coinID] = quote
		}
	}

	if failedBatches > 0 && len(quotes) == 0 {
		return quotes, fmt.Errorf("all %d price feed batches failed", failedBatches)
	}

	return quotes, nil
}

// fetchBatch issues one simple/price request, retrying transient failures
func (c *Client) fetchBatch(ctx context.Context, coinIDs []string) (map[string]quoteEntry, error) {
	endpoint := fmt.Sprintf(
		"%s/simple/price?ids=%s&vs_currencies=usd&include_24hr_change=true",
		c.baseURL,
		url.QueryEscape(strings.Join(coinIDs, ",")),
	)

	var entries map[string]quoteEntry
	err := retry.Do(ctx, c.retryCfg, func(ctx context.Context, attempt int) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", "crypto-folio/1.0")

		resp, err := c.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		// 429 is transient and worth retrying after backoff
		if resp.StatusCode == http.StatusTooManyRequests {
			return fmt.Errorf("price feed rate limited (HTTP 429)")
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("price feed returned HTTP %d", resp.StatusCode)
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}

		var parsed map[string]quoteEntry
		if err := json.Unmarshal(body, &parsed); err != nil {
			return fmt.Errorf("malformed price feed response: %w", err)
		}

		entries = parsed
		return nil
	})
	if err != nil {
		return nil, err
	}

	return entries, nil
}

// dedupe returns the unique coin ids in deterministic order
func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
