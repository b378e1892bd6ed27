package service

import (
	"context"
	"sort"
	"strings"

	apperrors "github.com/Matej398/crypto-folio/internal/errors"
	"github.com/Matej398/crypto-folio/internal/logging"
	"github.com/Matej398/crypto-folio/internal/models"
	"github.com/Matej398/crypto-folio/internal/valuation"
)

// PortfolioRepository interface for portfolio data operations
type PortfolioRepository interface {
	GetByUser(ctx context.Context, userID int64) (*models.Portfolio, error)
	SaveHoldings(ctx context.Context, userID int64, holdings []models.Holding) error
	GetStats(ctx context.Context, userID int64) (models.PortfolioStats, error)
	SaveStats(ctx context.Context, userID int64, stats models.PortfolioStats) error
}

// QuoteProvider interface for fetching market quotes
type QuoteProvider interface {
	FetchQuotes(ctx context.Context, coinIDs []string) (map[string]models.PriceQuote, error)
}

// QuoteCache interface for the quote read-through cache
type QuoteCache interface {
	CacheQuotes(ctx context.Context, quotes map[string]models.PriceQuote) error
	GetCachedQuotes(ctx context.Context, coinIDs []string) (map[string]models.PriceQuote, error)
}

// RecordObserver receives valuations for peak/trough tracking
type RecordObserver interface {
	Observe(userID int64, v valuation.Valuation)
}

// PortfolioView is a portfolio joined with live market data
type PortfolioView struct {
	Coins        []valuation.CoinLine `json:"coins"`
	TotalValue   float64              `json:"totalValue"`
	Change24hPct float64              `json:"change24h"`
	Complete     bool                 `json:"complete"`
	// Stale is set when the live feed was unavailable and the view was
	// priced from cached quotes
	Stale bool                  `json:"stale"`
	Stats models.PortfolioStats `json:"stats"`
}

// PortfolioService manages holdings and computes live valuations
type PortfolioService struct {
	repo     PortfolioRepository
	quotes   QuoteProvider
	cache    QuoteCache
	observer RecordObserver
	logger   *logging.Logger
}

// NewPortfolioService creates a new portfolio service
func NewPortfolioService(
	repo PortfolioRepository,
	quotes QuoteProvider,
	cache QuoteCache,
	observer RecordObserver,
	logger *logging.Logger,
) *PortfolioService {
	return &PortfolioService{
		repo:     repo,
		quotes:   quotes,
		cache:    cache,
		observer: observer,
		logger:   logger,
	}
}

// GetValued returns the portfolio priced with current quotes. Quote fetch
// failures degrade to cached quotes; a portfolio is still returned when no
// price data is available at all, with Complete reporting the gap.
func (s *PortfolioService) GetValued(ctx context.Context, userID int64) (*PortfolioView, error) {
	portfolio, err := s.repo.GetByUser(ctx, userID)
	if err != nil {
		return nil, apperrors.NewPersistenceError("get portfolio", err)
	}

	quotes, stale := s.resolveQuotes(ctx, coinIDs(portfolio.Holdings))
	v := valuation.Valuate(portfolio.Holdings, quotes)

	if s.observer != nil {
		s.observer.Observe(userID, v)
	}

	return &PortfolioView{
		Coins:        v.Coins,
		TotalValue:   v.TotalValue,
		Change24hPct: v.Change24hPct,
		Complete:     v.Complete,
		Stale:        stale,
		Stats:        portfolio.Stats,
	}, nil
}

// AddCoin adds a holding, or merges quantity into an existing holding for
// the same coin id
func (s *PortfolioService) AddCoin(ctx context.Context, userID int64, holding models.Holding) (*models.Portfolio, error) {
	holding.CoinID = strings.TrimSpace(holding.CoinID)
	if holding.CoinID == "" {
		return nil, apperrors.NewValidationError("id", "coin id is required")
	}
	if holding.Quantity <= 0 {
		return nil, apperrors.NewValidationError("quantity", "quantity must be greater than zero")
	}

	portfolio, err := s.repo.GetByUser(ctx, userID)
	if err != nil {
		return nil, apperrors.NewPersistenceError("get portfolio", err)
	}

	merged := false
	for i := range portfolio.Holdings {
		if portfolio.Holdings[i].CoinID == holding.CoinID {
			portfolio.Holdings[i].Quantity += holding.Quantity
			merged = true
			break
		}
	}
	if !merged {
		portfolio.Holdings = append(portfolio.Holdings, holding)
	}

	if err := s.repo.SaveHoldings(ctx, userID, portfolio.Holdings); err != nil {
		return nil, apperrors.NewPersistenceError("save holdings", err)
	}

	s.logger.WithFields(map[string]interface{}{
		"user_id": userID,
		"coin_id": holding.CoinID,
		"merged":  merged,
	}).Info("Coin added to portfolio")

	return portfolio, nil
}

// UpdateQuantity replaces the quantity of an existing holding
func (s *PortfolioService) UpdateQuantity(ctx context.Context, userID int64, coinID string, quantity float64) (*models.Portfolio, error) {
	if quantity <= 0 {
		return nil, apperrors.NewValidationError("quantity", "quantity must be greater than zero")
	}

	portfolio, err := s.repo.GetByUser(ctx, userID)
	if err != nil {
		return nil, apperrors.NewPersistenceError("get portfolio", err)
	}

	found := false
	for i := range portfolio.Holdings {
		if portfolio.Holdings[i].CoinID == coinID {
			portfolio.Holdings[i].Quantity = quantity
			found = true
			break
		}
	}
	if !found {
		return nil, apperrors.NewNotFoundError("holding", coinID)
	}

	if err := s.repo.SaveHoldings(ctx, userID, portfolio.Holdings); err != nil {
		return nil, apperrors.NewPersistenceError("save holdings", err)
	}

	return portfolio, nil
}

// RemoveCoin deletes a holding from the portfolio
func (s *PortfolioService) RemoveCoin(ctx context.Context, userID int64, coinID string) (*models.Portfolio, error) {
	portfolio, err := s.repo.GetByUser(ctx, userID)
	if err != nil {
		return nil, apperrors.NewPersistenceError("get portfolio", err)
	}

	kept := portfolio.Holdings[:0]
	found := false
	for _, h := range portfolio.Holdings {
		if h.CoinID == coinID {
			found = true
			continue
		}
		kept = append(kept, h)
	}
	if !found {
		return nil, apperrors.NewNotFoundError("holding", coinID)
	}

	portfolio.Holdings = kept
	if err := s.repo.SaveHoldings(ctx, userID, portfolio.Holdings); err != nil {
		return nil, apperrors.NewPersistenceError("save holdings", err)
	}

	return portfolio, nil
}

// resolveQuotes fetches live quotes and falls back to the cache for any
// coin the feed could not price. The second return is true when any
// returned quote came from the cache rather than the live feed.
func (s *PortfolioService) resolveQuotes(ctx context.Context, ids []string) (map[string]models.PriceQuote, bool) {
	if len(ids) == 0 {
		return map[string]models.PriceQuote{}, false
	}

	quotes, err := s.quotes.FetchQuotes(ctx, ids)
	if err != nil {
		s.logger.WithError(err).Warn("Price feed unavailable, falling back to cached quotes")
		quotes = map[string]models.PriceQuote{}
	} else if s.cache != nil && len(quotes) > 0 {
		if cacheErr := s.cache.CacheQuotes(ctx, quotes); cacheErr != nil {
			s.logger.WithError(cacheErr).Warn("Failed to cache quotes")
		}
	}

	if s.cache == nil || len(quotes) == len(ids) {
		return quotes, false
	}

	var missing []string
	for _, id := range ids {
		if _, ok := quotes[id]; !ok {
			missing = append(missing, id)
		}
	}

	cached, err := s.cache.GetCachedQuotes(ctx, missing)
	if err != nil {
		s.logger.WithError(err).Warn("Quote cache lookup failed")
		return quotes, false
	}
	for id, q := range cached {
		quotes[id] = q
	}

	return quotes, len(cached) > 0
}

// coinIDs returns the distinct coin ids across holdings, sorted
func coinIDs(holdings []models.Holding) []string {
	seen := make(map[string]struct{}, len(holdings))
	ids := make([]string, 0, len(holdings))
	for _, h := range holdings {
		if _, ok := seen[h.CoinID]; ok {
			continue
		}
		seen[h.CoinID] = struct{}{}
		ids = append(ids, h.CoinID)
	}
	sort.Strings(ids)
	return ids
}
