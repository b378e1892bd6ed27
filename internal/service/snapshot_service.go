package service

import (
	"context"
	"math"
	"sort"
	"time"

	apperrors "github.com/Matej398/crypto-folio/internal/errors"
	"github.com/Matej398/crypto-folio/internal/logging"
	"github.com/Matej398/crypto-folio/internal/models"
	"github.com/Matej398/crypto-folio/internal/sentiment"
	"github.com/Matej398/crypto-folio/internal/valuation"
)

// PortfolioLister interface for enumerating portfolios in the batch run
type PortfolioLister interface {
	ListAll(ctx context.Context) ([]*models.Portfolio, error)
}

// SnapshotStore interface for snapshot persistence
type SnapshotStore interface {
	UpsertSnapshot(ctx context.Context, userID int64, date string, totalValue, change24hPct float64, coins []models.HistoryCoinLine) (int64, error)
	SetFearGreed(ctx context.Context, historyID int64, value int) error
}

// SentimentSource interface for the fear/greed reading
type SentimentSource interface {
	Fetch(ctx context.Context) (*sentiment.Reading, error)
}

// SnapshotResult summarizes one batch snapshot run
type SnapshotResult struct {
	Date      string `json:"date"`
	Succeeded int    `json:"succeeded"`
	Skipped   int    `json:"skipped"`
	Failed    int    `json:"failed"`
	FearGreed *int   `json:"fearGreed,omitempty"`
}

// SnapshotService captures one daily valuation snapshot per user. Prices
// for all users are fetched in a single batched pass so the run issues a
// bounded number of upstream requests regardless of user count.
type SnapshotService struct {
	portfolios PortfolioLister
	store      SnapshotStore
	quotes     QuoteProvider
	sentiment  SentimentSource
	timezone   *time.Location
	logger     *logging.Logger
	now        func() time.Time
}

// NewSnapshotService creates a new snapshot service
func NewSnapshotService(
	portfolios PortfolioLister,
	store SnapshotStore,
	quotes QuoteProvider,
	sentimentSrc SentimentSource,
	timezone *time.Location,
	logger *logging.Logger,
) *SnapshotService {
	if timezone == nil {
		timezone = time.UTC
	}
	return &SnapshotService{
		portfolios: portfolios,
		store:      store,
		quotes:     quotes,
		sentiment:  sentimentSrc,
		timezone:   timezone,
		logger:     logger,
		now:        time.Now,
	}
}

// Run captures a snapshot for every user with a positive portfolio value.
// A failure for one user never aborts the run; it is counted and logged.
func (s *SnapshotService) Run(ctx context.Context) (*SnapshotResult, error) {
	date := s.now().In(s.timezone).Format("2006-01-02")
	result := &SnapshotResult{Date: date}

	portfolios, err := s.portfolios.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	if len(portfolios) == 0 {
		s.logger.Info("Snapshot run found no portfolios")
		return result, nil
	}

	quotes, err := s.quotes.FetchQuotes(ctx, unionCoinIDs(portfolios))
	if err != nil {
		return nil, apperrors.NewUpstreamError("price feed", err)
	}

	fearGreed := s.fetchFearGreed(ctx)
	result.FearGreed = fearGreed

	for _, p := range portfolios {
		v := valuation.Valuate(p.Holdings, quotes)
		if v.TotalValue <= 0 {
			result.Skipped++
			continue
		}

		historyID, err := s.store.UpsertSnapshot(ctx,
			p.UserID,
			date,
			math.Round(v.TotalValue*100)/100,
			v.Change24hPct,
			snapshotCoinLines(v),
		)
		if err != nil {
			result.Failed++
			s.logger.WithFields(map[string]interface{}{
				"user_id": p.UserID,
				"date":    date,
			}).WithError(err).Error("Failed to snapshot portfolio")
			continue
		}

		if fearGreed != nil {
			if err := s.store.SetFearGreed(ctx, historyID, *fearGreed); err != nil {
				s.logger.WithField("user_id", p.UserID).WithError(err).Warn("Failed to attach fear/greed index")
			}
		}

		result.Succeeded++
	}

	s.logger.WithFields(map[string]interface{}{
		"date":      date,
		"succeeded": result.Succeeded,
		"skipped":   result.Skipped,
		"failed":    result.Failed,
	}).Info("Snapshot run complete")

	return result, nil
}

// Schedule blocks and runs a snapshot at every midnight in the configured
// timezone until the context is cancelled
func (s *SnapshotService) Schedule(ctx context.Context) error {
	for {
		now := s.now().In(s.timezone)
		next := time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, s.timezone)
		wait := next.Sub(now)

		s.logger.WithFields(map[string]interface{}{
			"next_run": next.Format(time.RFC3339),
			"wait":     wait.String(),
		}).Info("Snapshot scheduler sleeping until next midnight")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}

		if _, err := s.Run(ctx); err != nil {
			s.logger.WithError(err).Error("Scheduled snapshot run failed")
		}
	}
}

// fetchFearGreed returns the current index value, or nil when every
// sentiment source is down. Snapshots proceed without it.
func (s *SnapshotService) fetchFearGreed(ctx context.Context) *int {
	if s.sentiment == nil {
		return nil
	}
	reading, err := s.sentiment.Fetch(ctx)
	if err != nil {
		s.logger.WithError(err).Warn("Fear/greed unavailable for snapshot run")
		return nil
	}
	value := reading.Value
	return &value
}

// unionCoinIDs collects the distinct coin ids across all portfolios
func unionCoinIDs(portfolios []*models.Portfolio) []string {
	seen := make(map[string]struct{})
	var ids []string
	for _, p := range portfolios {
		for _, h := range p.Holdings {
			if _, ok := seen[h.CoinID]; ok {
				continue
			}
			seen[h.CoinID] = struct{}{}
			ids = append(ids, h.CoinID)
		}
	}
	sort.Strings(ids)
	return ids
}

// snapshotCoinLines converts quoted valuation lines into history rows.
// Unquoted and zero-quantity lines carry no value and are not recorded.
func snapshotCoinLines(v valuation.Valuation) []models.HistoryCoinLine {
	lines := make([]models.HistoryCoinLine, 0, len(v.Coins))
	for _, c := range v.Coins {
		if !c.HasQuote || c.Quantity <= 0 {
			continue
		}
		lines = append(lines, models.HistoryCoinLine{
			CoinID:       c.CoinID,
			Symbol:       c.Symbol,
			Name:         c.Name,
			Quantity:     c.Quantity,
			PriceUSD:     c.PriceUSD,
			ValueUSD:     c.ValueUSD,
			Change24hPct: c.Change24hPct,
			Image:        c.Image,
		})
	}
	return lines
}
