package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/Matej398/crypto-folio/internal/models"
)

// MaxHistoryPerPage caps the history listing page size
const MaxHistoryPerPage = 50

// ErrHistoryNotFound is returned when no snapshot matches the lookup
var ErrHistoryNotFound = errors.New("history entry not found")

// ErrNoteNotFound is returned when a note is missing or not owned by the
// acting user. The two cases are deliberately indistinguishable.
var ErrNoteNotFound = errors.New("note not found")

// HistoryRepository handles daily snapshot persistence. The uniqueness
// constraint on (user_id, snapshot_date) is the concurrency backbone:
// concurrent snapshot runs for the same user and day converge through the
// max/min widening rule instead of overwriting each other.
type HistoryRepository struct {
	db *PostgresDB
}

// NewHistoryRepository creates a new history repository
func NewHistoryRepository(db *PostgresDB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

// UpsertSnapshot records one day's valuation for a user and replaces the
// snapshot's coin breakdown, all in a single transaction. A repeated run
// on the same day updates the point values and widens the daily high/low
// range; coin line items are fully replaced, never merged.
func (r *HistoryRepository) UpsertSnapshot(
	ctx context.Context,
	userID int64,
	date string,
	totalValue float64,
	change24hPct float64,
	coins []models.HistoryCoinLine,
) (int64, error) {
	tx, err := r.db.Pool().Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin snapshot transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	upsert := `
		INSERT INTO portfolio_history
			(user_id, snapshot_date, total_value, change_24h, daily_high, daily_low)
		VALUES ($1, $2, $3, $4, $3, $3)
		ON CONFLICT (user_id, snapshot_date) DO UPDATE SET
			total_value = EXCLUDED.total_value,
			change_24h = EXCLUDED.change_24h,
			daily_high = GREATEST(COALESCE(portfolio_history.daily_high, EXCLUDED.daily_high), EXCLUDED.daily_high),
			daily_low = LEAST(COALESCE(portfolio_history.daily_low, EXCLUDED.daily_low), EXCLUDED.daily_low),
			updated_at = now()
		RETURNING id
	`

	var historyID int64
	if err := tx.QueryRow(ctx, upsert, userID, date, totalValue, change24hPct).Scan(&historyID); err != nil {
		return 0, fmt.Errorf("failed to upsert history: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`DELETE FROM portfolio_history_coins WHERE history_id = $1`,
		historyID,
	); err != nil {
		return 0, fmt.Errorf("failed to clear coin lines: %w", err)
	}

	insert := `
		INSERT INTO portfolio_history_coins
			(history_id, coin_id, symbol, name, quantity, price_usd, value_usd, change_24h, image_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	for _, coin := range coins {
		if _, err := tx.Exec(ctx, insert,
			historyID,
			coin.CoinID,
			coin.Symbol,
			coin.Name,
			coin.Quantity,
			coin.PriceUSD,
			coin.ValueUSD,
			coin.Change24hPct,
			coin.Image,
		); err != nil {
			return 0, fmt.Errorf("failed to insert coin line %s: %w", coin.CoinID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit snapshot: %w", err)
	}

	return historyID, nil
}

// SetFearGreed attaches a fear/greed index value to a day's snapshot
func (r *HistoryRepository) SetFearGreed(ctx context.Context, historyID int64, value int) error {
	result, err := r.db.Pool().Exec(ctx,
		`UPDATE portfolio_history SET fear_greed_index = $2 WHERE id = $1`,
		historyID, value,
	)
	if err != nil {
		return fmt.Errorf("failed to set fear/greed index: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrHistoryNotFound
	}
	return nil
}

// GetIDByUserAndDate resolves a snapshot id for a user and calendar date
func (r *HistoryRepository) GetIDByUserAndDate(ctx context.Context, userID int64, date string) (int64, error) {
	var historyID int64
	err := r.db.Pool().QueryRow(ctx,
		`SELECT id FROM portfolio_history WHERE user_id = $1 AND snapshot_date = $2`,
		userID, date,
	).Scan(&historyID)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrHistoryNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to look up history: %w", err)
	}
	return historyID, nil
}

// List returns a page of a user's snapshots ordered by date descending,
// with coin breakdowns and notes attached. perPage is clamped to
// MaxHistoryPerPage; a page past the end is pulled back to the last one.
func (r *HistoryRepository) List(ctx context.Context, userID int64, page, perPage int) ([]*models.HistorySnapshot, int, int, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 10
	}
	if perPage > MaxHistoryPerPage {
		perPage = MaxHistoryPerPage
	}

	var total int
	if err := r.db.Pool().QueryRow(ctx,
		`SELECT COUNT(*) FROM portfolio_history WHERE user_id = $1`,
		userID,
	).Scan(&total); err != nil {
		return nil, 0, 0, fmt.Errorf("failed to count history: %w", err)
	}

	if total == 0 {
		return []*models.HistorySnapshot{}, 0, page, nil
	}

	offset := (page - 1) * perPage
	if offset >= total {
		page = (total + perPage - 1) / perPage
		offset = (page - 1) * perPage
	}

	query := `
		SELECT id, user_id, to_char(snapshot_date, 'YYYY-MM-DD'), total_value, change_24h,
		       daily_high, daily_low, fear_greed_index, created_at
		FROM portfolio_history
		WHERE user_id = $1
		ORDER BY snapshot_date DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.Pool().Query(ctx, query, userID, perPage, offset)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("failed to list history: %w", err)
	}
	defer rows.Close()

	var (
		snapshots []*models.HistorySnapshot
		ids       []int64
	)
	for rows.Next() {
		var s models.HistorySnapshot
		if err := rows.Scan(
			&s.ID,
			&s.UserID,
			&s.Date,
			&s.TotalValue,
			&s.Change24hPct,
			&s.DailyHigh,
			&s.DailyLow,
			&s.FearGreedIndex,
			&s.CreatedAt,
		); err != nil {
			return nil, 0, 0, fmt.Errorf("failed to scan history row: %w", err)
		}
		s.Coins = []models.HistoryCoinLine{}
		s.Notes = []models.Note{}
		snapshots = append(snapshots, &s)
		ids = append(ids, s.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, 0, err
	}

	if err := r.attachCoins(ctx, snapshots, ids); err != nil {
		return nil, 0, 0, err
	}
	if err := r.attachNotes(ctx, snapshots, ids); err != nil {
		return nil, 0, 0, err
	}

	return snapshots, total, page, nil
}

func (r *HistoryRepository) attachCoins(ctx context.Context, snapshots []*models.HistorySnapshot, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	query := `
		SELECT history_id, coin_id, symbol, name, quantity, price_usd, value_usd, change_24h, image_url
		FROM portfolio_history_coins
		WHERE history_id = ANY($1)
		ORDER BY value_usd DESC
	`

	rows, err := r.db.Pool().Query(ctx, query, ids)
	if err != nil {
		return fmt.Errorf("failed to load coin lines: %w", err)
	}
	defer rows.Close()

	byID := make(map[int64]*models.HistorySnapshot, len(snapshots))
	for _, s := range snapshots {
		byID[s.ID] = s
	}

	for rows.Next() {
		var line models.HistoryCoinLine
		if err := rows.Scan(
			&line.HistoryID,
			&line.CoinID,
			&line.Symbol,
			&line.Name,
			&line.Quantity,
			&line.PriceUSD,
			&line.ValueUSD,
			&line.Change24hPct,
			&line.Image,
		); err != nil {
			return fmt.Errorf("failed to scan coin line: %w", err)
		}
		if s, ok := byID[line.HistoryID]; ok {
			s.Coins = append(s.Coins, line)
		}
	}

	return rows.Err()
}

func (r *HistoryRepository) attachNotes(ctx context.Context, snapshots []*models.HistorySnapshot, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	query := `
		SELECT id, history_id, note_text, created_at
		FROM portfolio_history_notes
		WHERE history_id = ANY($1)
		ORDER BY created_at DESC
	`

	rows, err := r.db.Pool().Query(ctx, query, ids)
	if err != nil {
		return fmt.Errorf("failed to load notes: %w", err)
	}
	defer rows.Close()

	byID := make(map[int64]*models.HistorySnapshot, len(snapshots))
	for _, s := range snapshots {
		byID[s.ID] = s
	}

	for rows.Next() {
		var note models.Note
		if err := rows.Scan(&note.ID, &note.HistoryID, &note.Text, &note.CreatedAt); err != nil {
			return fmt.Errorf("failed to scan note: %w", err)
		}
		if s, ok := byID[note.HistoryID]; ok {
			s.Notes = append(s.Notes, note)
		}
	}

	return rows.Err()
}

// AddNote attaches a note to the user's snapshot for the given date
func (r *HistoryRepository) AddNote(ctx context.Context, userID int64, date, text string) (*models.Note, error) {
	historyID, err := r.GetIDByUserAndDate(ctx, userID, date)
	if err != nil {
		return nil, err
	}

	query := `
		INSERT INTO portfolio_history_notes (history_id, note_text)
		VALUES ($1, $2)
		RETURNING id, history_id, note_text, created_at
	`

	var note models.Note
	if err := r.db.Pool().QueryRow(ctx, query, historyID, text).Scan(
		&note.ID, &note.HistoryID, &note.Text, &note.CreatedAt,
	); err != nil {
		return nil, fmt.Errorf("failed to add note: %w", err)
	}

	return &note, nil
}

// UpdateNote edits a note's text. Ownership is verified by joining the
// owning snapshot inside the same statement as the mutation, so a foreign
// note can never be written even under concurrency.
func (r *HistoryRepository) UpdateNote(ctx context.Context, userID, noteID int64, text string) (*models.Note, error) {
	query := `
		UPDATE portfolio_history_notes n
		SET note_text = $3
		FROM portfolio_history h
		WHERE n.id = $1 AND n.history_id = h.id AND h.user_id = $2
		RETURNING n.id, n.history_id, n.note_text, n.created_at
	`

	var note models.Note
	err := r.db.Pool().QueryRow(ctx, query, noteID, userID, text).Scan(
		&note.ID, &note.HistoryID, &note.Text, &note.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNoteNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update note: %w", err)
	}

	return &note, nil
}

// DeleteNote removes a note, verifying ownership in the same statement
func (r *HistoryRepository) DeleteNote(ctx context.Context, userID, noteID int64) error {
	result, err := r.db.Pool().Exec(ctx, `
		DELETE FROM portfolio_history_notes n
		USING portfolio_history h
		WHERE n.id = $1 AND n.history_id = h.id AND h.user_id = $2
	`, noteID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete note: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNoteNotFound
	}
	return nil
}
