package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Matej398/crypto-folio/internal/models"
	"github.com/Matej398/crypto-folio/internal/sentiment"
)

type mockPortfolioLister struct {
	portfolios []*models.Portfolio
	err        error
}

func (m *mockPortfolioLister) ListAll(ctx context.Context) ([]*models.Portfolio, error) {
	return m.portfolios, m.err
}

type upsertCall struct {
	userID     int64
	date       string
	totalValue float64
	changePct  float64
	coins      []models.HistoryCoinLine
}

type mockSnapshotStore struct {
	upserts    []upsertCall
	fearGreeds map[int64]int
	failUser   int64
	nextID     int64
}

func newMockSnapshotStore() *mockSnapshotStore {
	return &mockSnapshotStore{fearGreeds: make(map[int64]int)}
}

func (m *mockSnapshotStore) UpsertSnapshot(ctx context.Context, userID int64, date string, totalValue, change24hPct float64, coins []models.HistoryCoinLine) (int64, error) {
	if m.failUser != 0 && userID == m.failUser {
		return 0, errors.New("database error")
	}
	m.upserts = append(m.upserts, upsertCall{userID, date, totalValue, change24hPct, coins})
	m.nextID++
	return m.nextID, nil
}

func (m *mockSnapshotStore) SetFearGreed(ctx context.Context, historyID int64, value int) error {
	m.fearGreeds[historyID] = value
	return nil
}

type mockSentiment struct {
	reading *sentiment.Reading
	err     error
}

func (m *mockSentiment) Fetch(ctx context.Context) (*sentiment.Reading, error) {
	return m.reading, m.err
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func newTestSnapshotService(lister PortfolioLister, store SnapshotStore, quotes QuoteProvider, src SentimentSource) *SnapshotService {
	svc := NewSnapshotService(lister, store, quotes, src, time.UTC, quietLogger())
	svc.now = fixedClock(time.Date(2026, 3, 15, 14, 30, 0, 0, time.UTC))
	return svc
}

func TestSnapshotRun(t *testing.T) {
	lister := &mockPortfolioLister{portfolios: []*models.Portfolio{
		{UserID: 1, Holdings: []models.Holding{{CoinID: "bitcoin", Quantity: 2}}},
	}}
	store := newMockSnapshotStore()
	quotes := &mockQuoteProvider{quotes: map[string]models.PriceQuote{
		"bitcoin": {CoinID: "bitcoin", PriceUSD: 50000.456, Change24hPct: 5},
	}}
	src := &mockSentiment{reading: &sentiment.Reading{Value: 30, Classification: "Fear"}}

	svc := newTestSnapshotService(lister, store, quotes, src)
	result, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if result.Succeeded != 1 || result.Failed != 0 || result.Skipped != 0 {
		t.Errorf("unexpected result: %+v", result)
	}
	if result.Date != "2026-03-15" {
		t.Errorf("expected date 2026-03-15, got %s", result.Date)
	}
	if len(store.upserts) != 1 {
		t.Fatalf("expected 1 upsert, got %d", len(store.upserts))
	}

	call := store.upserts[0]
	if call.totalValue != 100000.91 {
		t.Errorf("expected rounded total 100000.91, got %v", call.totalValue)
	}
	if len(call.coins) != 1 || call.coins[0].CoinID != "bitcoin" {
		t.Errorf("unexpected coin lines: %+v", call.coins)
	}
	if store.fearGreeds[1] != 30 {
		t.Errorf("expected fear/greed 30 attached, got %v", store.fearGreeds)
	}
}

func TestSnapshotRunSkipsZeroValuePortfolios(t *testing.T) {
	lister := &mockPortfolioLister{portfolios: []*models.Portfolio{
		{UserID: 1, Holdings: []models.Holding{{CoinID: "bitcoin", Quantity: 1}}},
		{UserID: 2, Holdings: nil},
		{UserID: 3, Holdings: []models.Holding{{CoinID: "unlisted-coin", Quantity: 5}}},
	}}
	store := newMockSnapshotStore()
	quotes := &mockQuoteProvider{quotes: map[string]models.PriceQuote{
		"bitcoin": {CoinID: "bitcoin", PriceUSD: 50000},
	}}

	svc := newTestSnapshotService(lister, store, quotes, nil)
	result, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if result.Succeeded != 1 {
		t.Errorf("expected 1 success, got %d", result.Succeeded)
	}
	if result.Skipped != 2 {
		t.Errorf("expected 2 skipped, got %d", result.Skipped)
	}
	if len(store.upserts) != 1 || store.upserts[0].userID != 1 {
		t.Errorf("unexpected upserts: %+v", store.upserts)
	}
}

func TestSnapshotRunContinuesAfterUserFailure(t *testing.T) {
	lister := &mockPortfolioLister{portfolios: []*models.Portfolio{
		{UserID: 1, Holdings: []models.Holding{{CoinID: "bitcoin", Quantity: 1}}},
		{UserID: 2, Holdings: []models.Holding{{CoinID: "bitcoin", Quantity: 2}}},
	}}
	store := newMockSnapshotStore()
	store.failUser = 1
	quotes := &mockQuoteProvider{quotes: map[string]models.PriceQuote{
		"bitcoin": {CoinID: "bitcoin", PriceUSD: 50000},
	}}

	svc := newTestSnapshotService(lister, store, quotes, nil)
	result, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if result.Failed != 1 || result.Succeeded != 1 {
		t.Errorf("expected 1 failed and 1 succeeded, got %+v", result)
	}
}

func TestSnapshotRunProceedsWithoutSentiment(t *testing.T) {
	lister := &mockPortfolioLister{portfolios: []*models.Portfolio{
		{UserID: 1, Holdings: []models.Holding{{CoinID: "bitcoin", Quantity: 1}}},
	}}
	store := newMockSnapshotStore()
	quotes := &mockQuoteProvider{quotes: map[string]models.PriceQuote{
		"bitcoin": {CoinID: "bitcoin", PriceUSD: 50000},
	}}
	src := &mockSentiment{err: errors.New("all sources down")}

	svc := newTestSnapshotService(lister, store, quotes, src)
	result, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if result.Succeeded != 1 {
		t.Errorf("expected success despite sentiment outage, got %+v", result)
	}
	if result.FearGreed != nil {
		t.Error("expected no fear/greed value")
	}
	if len(store.fearGreeds) != 0 {
		t.Error("expected no fear/greed writes")
	}
}

func TestSnapshotRunSingleQuoteFetch(t *testing.T) {
	lister := &mockPortfolioLister{portfolios: []*models.Portfolio{
		{UserID: 1, Holdings: []models.Holding{{CoinID: "bitcoin", Quantity: 1}}},
		{UserID: 2, Holdings: []models.Holding{{CoinID: "ethereum", Quantity: 1}, {CoinID: "bitcoin", Quantity: 1}}},
	}}
	store := newMockSnapshotStore()
	quotes := &mockQuoteProvider{quotes: map[string]models.PriceQuote{
		"bitcoin":  {CoinID: "bitcoin", PriceUSD: 50000},
		"ethereum": {CoinID: "ethereum", PriceUSD: 3000},
	}}

	svc := newTestSnapshotService(lister, store, quotes, nil)
	if _, err := svc.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if quotes.calls != 1 {
		t.Errorf("expected a single batched quote fetch, got %d", quotes.calls)
	}
}

func TestSnapshotRunFeedDownAborts(t *testing.T) {
	lister := &mockPortfolioLister{portfolios: []*models.Portfolio{
		{UserID: 1, Holdings: []models.Holding{{CoinID: "bitcoin", Quantity: 1}}},
	}}
	quotes := &mockQuoteProvider{err: errors.New("feed down")}

	svc := newTestSnapshotService(lister, newMockSnapshotStore(), quotes, nil)
	if _, err := svc.Run(context.Background()); err == nil {
		t.Fatal("expected error when the price feed is unavailable")
	}
}

func TestSnapshotRunExcludesUnquotedCoins(t *testing.T) {
	lister := &mockPortfolioLister{portfolios: []*models.Portfolio{
		{UserID: 1, Holdings: []models.Holding{
			{CoinID: "bitcoin", Quantity: 1},
			{CoinID: "unlisted-coin", Quantity: 99},
		}},
	}}
	store := newMockSnapshotStore()
	quotes := &mockQuoteProvider{quotes: map[string]models.PriceQuote{
		"bitcoin": {CoinID: "bitcoin", PriceUSD: 50000},
	}}

	svc := newTestSnapshotService(lister, store, quotes, nil)
	if _, err := svc.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	coins := store.upserts[0].coins
	if len(coins) != 1 || coins[0].CoinID != "bitcoin" {
		t.Errorf("expected only quoted coins recorded, got %+v", coins)
	}
}
