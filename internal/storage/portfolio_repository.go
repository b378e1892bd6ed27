package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/Matej398/crypto-folio/internal/models"
)

// PortfolioRepository handles portfolio and stats persistence. Holdings
// and record stats are stored as JSON documents keyed by user; exactly
// one row exists per user, created lazily on first access.
type PortfolioRepository struct {
	db *PostgresDB
}

// NewPortfolioRepository creates a new portfolio repository
func NewPortfolioRepository(db *PostgresDB) *PortfolioRepository {
	return &PortfolioRepository{db: db}
}

// GetByUser retrieves a user's portfolio, creating an empty one if none
// exists yet.
func (r *PortfolioRepository) GetByUser(ctx context.Context, userID int64) (*models.Portfolio, error) {
	query := `
		SELECT user_id, portfolio_data, stats_data, created_at, updated_at
		FROM portfolios
		WHERE user_id = $1
	`

	var (
		portfolio    models.Portfolio
		holdingsJSON []byte
		statsJSON    []byte
	)

	err := r.db.Pool().QueryRow(ctx, query, userID).Scan(
		&portfolio.UserID,
		&holdingsJSON,
		&statsJSON,
		&portfolio.CreatedAt,
		&portfolio.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return r.initForUser(ctx, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get portfolio: %w", err)
	}

	if err := json.Unmarshal(holdingsJSON, &portfolio.Holdings); err != nil {
		return nil, fmt.Errorf("corrupt portfolio data for user %d: %w", userID, err)
	}
	if err := json.Unmarshal(statsJSON, &portfolio.Stats); err != nil {
		return nil, fmt.Errorf("corrupt stats data for user %d: %w", userID, err)
	}

	return &portfolio, nil
}

// initForUser creates the empty portfolio row for a user. Racing inits
// converge on the same row via the primary key.
func (r *PortfolioRepository) initForUser(ctx context.Context, userID int64) (*models.Portfolio, error) {
	query := `
		INSERT INTO portfolios (user_id)
		VALUES ($1)
		ON CONFLICT (user_id) DO UPDATE SET updated_at = portfolios.updated_at
		RETURNING user_id, created_at, updated_at
	`

	var portfolio models.Portfolio
	err := r.db.Pool().QueryRow(ctx, query, userID).Scan(
		&portfolio.UserID,
		&portfolio.CreatedAt,
		&portfolio.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize portfolio: %w", err)
	}

	portfolio.Holdings = []models.Holding{}
	portfolio.Stats = models.PortfolioStats{}
	return &portfolio, nil
}

// SaveHoldings replaces a user's holdings document
func (r *PortfolioRepository) SaveHoldings(ctx context.Context, userID int64, holdings []models.Holding) error {
	if holdings == nil {
		holdings = []models.Holding{}
	}
	raw, err := json.Marshal(holdings)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO portfolios (user_id, portfolio_data, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE SET
			portfolio_data = EXCLUDED.portfolio_data,
			updated_at = EXCLUDED.updated_at
	`

	if _, err := r.db.Pool().Exec(ctx, query, userID, raw, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to save holdings: %w", err)
	}
	return nil
}

// GetStats retrieves a user's record stats, lazily initializing the
// portfolio row if needed. Implements records.StatsStore.
func (r *PortfolioRepository) GetStats(ctx context.Context, userID int64) (models.PortfolioStats, error) {
	portfolio, err := r.GetByUser(ctx, userID)
	if err != nil {
		return models.PortfolioStats{}, err
	}
	return portfolio.Stats, nil
}

// SaveStats replaces a user's record stats document. Implements
// records.StatsStore.
func (r *PortfolioRepository) SaveStats(ctx context.Context, userID int64, stats models.PortfolioStats) error {
	raw, err := json.Marshal(stats)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO portfolios (user_id, stats_data, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE SET
			stats_data = EXCLUDED.stats_data,
			updated_at = EXCLUDED.updated_at
	`

	if _, err := r.db.Pool().Exec(ctx, query, userID, raw, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to save stats: %w", err)
	}
	return nil
}

// ListAll returns every user's portfolio, used by the batch snapshot job
func (r *PortfolioRepository) ListAll(ctx context.Context) ([]*models.Portfolio, error) {
	query := `
		SELECT user_id, portfolio_data, stats_data, created_at, updated_at
		FROM portfolios
		ORDER BY user_id
	`

	rows, err := r.db.Pool().Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list portfolios: %w", err)
	}
	defer rows.Close()

	var portfolios []*models.Portfolio
	for rows.Next() {
		var (
			portfolio    models.Portfolio
			holdingsJSON []byte
			statsJSON    []byte
		)
		if err := rows.Scan(
			&portfolio.UserID,
			&holdingsJSON,
			&statsJSON,
			&portfolio.CreatedAt,
			&portfolio.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan portfolio: %w", err)
		}
		if err := json.Unmarshal(holdingsJSON, &portfolio.Holdings); err != nil {
			return nil, fmt.Errorf("corrupt portfolio data for user %d: %w", portfolio.UserID, err)
		}
		if err := json.Unmarshal(statsJSON, &portfolio.Stats); err != nil {
			return nil, fmt.Errorf("corrupt stats data for user %d: %w", portfolio.UserID, err)
		}
		portfolios = append(portfolios, &portfolio)
	}

	return portfolios, rows.Err()
}
