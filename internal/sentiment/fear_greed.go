// Package sentiment fetches the crypto fear/greed index. Multiple
// upstream sources are tried in order; the first well-formed in-range
// value wins.
package sentiment

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/Matej398/crypto-folio/internal/config"
	"github.com/Matej398/crypto-folio/internal/logging"
	"github.com/Matej398/crypto-folio/internal/types"
)

// Reading is one fear/greed observation with its classification band
type Reading struct {
	Value          int                           `json:"value"`
	Classification types.FearGreedClassification `json:"classification"`
	Source         string                        `json:"source"`
	Timestamp      int64                         `json:"timestamp"`
}

// Client fetches the fear/greed index from configured sources
type Client struct {
	sources []string
	client  *http.Client
}

// NewClient creates a sentiment client from configuration
func NewClient(cfg *config.SentimentConfig) *Client {
	sources := make([]string, 0, 2)
	if cfg.PrimaryURL != "" {
		sources = append(sources, cfg.PrimaryURL)
	}
	if cfg.FallbackURL != "" {
		sources = append(sources, cfg.FallbackURL)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		sources: sources,
		client:  &http.Client{Timeout: timeout},
	}
}

// fngResponse matches the alternative.me fng API shape
type fngResponse struct {
	Data []struct {
		Value          string `json:"value"`
		Classification string `json:"value_classification"`
		Timestamp      string `json:"timestamp"`
	} `json:"data"`
}

// Fetch returns the current fear/greed reading. Sources are tried in
// order; a source that errors, times out, or returns an out-of-range
// value is skipped.
func (c *Client) Fetch(ctx context.Context) (*Reading, error) {
	logger := logging.FromContext(ctx)

	for _, source := range c.sources {
		reading, err := c.fetchSource(ctx, source)
		if err != nil {
			logger.WithError(err).WithField("source", source).Warn("Fear/greed source failed, trying next")
			continue
		}
		return reading, nil
	}

	return nil, fmt.Errorf("all fear/greed sources failed")
}

func (c *Client) fetchSource(ctx context.Context, source string) (*Reading, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fear/greed source returned HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var parsed fngResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("malformed fear/greed response: %w", err)
	}
	if len(parsed.Data) == 0 {
		return nil, fmt.Errorf("fear/greed response contains no data")
	}

	value, err := strconv.Atoi(parsed.Data[0].Value)
	if err != nil {
		return nil, fmt.Errorf("fear/greed value is not a number: %q", parsed.Data[0].Value)
	}
	if value < 0 || value > 100 {
		return nil, fmt.Errorf("fear/greed value out of range: %d", value)
	}

	timestamp := time.Now().Unix()
	if ts, err := strconv.ParseInt(parsed.Data[0].Timestamp, 10, 64); err == nil {
		timestamp = ts
	}

	return &Reading{
		Value:          value,
		Classification: types.ClassifyFearGreed(value),
		Source:         source,
		Timestamp:      timestamp,
	}, nil
}
