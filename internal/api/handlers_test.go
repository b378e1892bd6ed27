package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	apperrors "github.com/Matej398/crypto-folio/internal/errors"
	"github.com/Matej398/crypto-folio/internal/logging"
	"github.com/Matej398/crypto-folio/internal/models"
	"github.com/Matej398/crypto-folio/internal/sentiment"
	"github.com/Matej398/crypto-folio/internal/service"
)

const (
	testToken     = "test-session-token"
	testCronToken = "test-cron-token"
	testUserID    = int64(1)
)

// Mock services for handler testing

type mockAuthService struct {
	sessions map[string]int64
}

func (m *mockAuthService) Login(ctx context.Context, email, password string) (*service.Session, error) {
	if email == "admin@portfolio.com" && password == "portfolio123" {
		return &service.Session{Token: testToken, UserID: testUserID, Email: email}, nil
	}
	return nil, apperrors.NewUnauthorizedError("invalid credentials")
}

func (m *mockAuthService) Logout(ctx context.Context, token string) error {
	delete(m.sessions, token)
	return nil
}

func (m *mockAuthService) Authenticate(ctx context.Context, token string) (int64, error) {
	if id, ok := m.sessions[token]; ok {
		return id, nil
	}
	return 0, apperrors.NewUnauthorizedError("session expired or invalid")
}

func (m *mockAuthService) ChangePassword(ctx context.Context, userID int64, current, next string) error {
	if current != "portfolio123" {
		return apperrors.NewUnauthorizedError("current password is incorrect")
	}
	return nil
}

type mockPortfolioAPI struct {
	holdings []models.Holding
}

func (m *mockPortfolioAPI) GetValued(ctx context.Context, userID int64) (*service.PortfolioView, error) {
	return &service.PortfolioView{TotalValue: 100000, Complete: true}, nil
}

func (m *mockPortfolioAPI) AddCoin(ctx context.Context, userID int64, holding models.Holding) (*models.Portfolio, error) {
	if holding.Quantity <= 0 {
		return nil, apperrors.NewValidationError("quantity", "quantity must be greater than zero")
	}
	m.holdings = append(m.holdings, holding)
	return &models.Portfolio{UserID: userID, Holdings: m.holdings}, nil
}

func (m *mockPortfolioAPI) UpdateQuantity(ctx context.Context, userID int64, coinID string, quantity float64) (*models.Portfolio, error) {
	for i := range m.holdings {
		if m.holdings[i].CoinID == coinID {
			m.holdings[i].Quantity = quantity
			return &models.Portfolio{UserID: userID, Holdings: m.holdings}, nil
		}
	}
	return nil, apperrors.NewNotFoundError("holding", coinID)
}

func (m *mockPortfolioAPI) RemoveCoin(ctx context.Context, userID int64, coinID string) (*models.Portfolio, error) {
	return nil, apperrors.NewNotFoundError("holding", coinID)
}

type mockHistoryAPI struct{}

func (m *mockHistoryAPI) List(ctx context.Context, userID int64, page, perPage int) (*service.HistoryPage, error) {
	return &service.HistoryPage{Entries: []*models.HistorySnapshot{}, Page: page, PerPage: perPage}, nil
}

func (m *mockHistoryAPI) AddNote(ctx context.Context, userID int64, date, text string) (*models.Note, error) {
	if date != "2026-03-15" {
		return nil, apperrors.NewNotFoundError("history entry", date)
	}
	return &models.Note{ID: 1, Text: text}, nil
}

func (m *mockHistoryAPI) UpdateNote(ctx context.Context, userID, noteID int64, text string) (*models.Note, error) {
	return &models.Note{ID: noteID, Text: text}, nil
}

func (m *mockHistoryAPI) DeleteNote(ctx context.Context, userID, noteID int64) error {
	return nil
}

type mockSnapshotAPI struct {
	runs int
}

func (m *mockSnapshotAPI) Run(ctx context.Context) (*service.SnapshotResult, error) {
	m.runs++
	return &service.SnapshotResult{Date: "2026-03-15", Succeeded: 1}, nil
}

type mockSentimentAPI struct {
	err error
}

func (m *mockSentimentAPI) Fetch(ctx context.Context) (*sentiment.Reading, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &sentiment.Reading{Value: 30, Classification: "Fear"}, nil
}

func createTestServer() (*Server, *mockSnapshotAPI) {
	snapshots := &mockSnapshotAPI{}
	server := NewServer(
		&ServerConfig{
			Host:      "localhost",
			Port:      "0",
			CronToken: testCronToken,
		},
		&mockAuthService{sessions: map[string]int64{testToken: testUserID}},
		&mockPortfolioAPI{},
		&mockHistoryAPI{},
		snapshots,
		&mockSentimentAPI{},
		logging.NewLogger(logging.LevelFatal, logging.FormatText),
	)
	return server, snapshots
}

func doRequest(server *Server, method, path string, body interface{}, authed bool) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if authed {
		req.Header.Set("Authorization", "Bearer "+testToken)
	}

	w := httptest.NewRecorder()
	server.Router().ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	server, _ := createTestServer()

	w := doRequest(server, "GET", "/health", nil, false)
	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
}

func TestLogin(t *testing.T) {
	server, _ := createTestServer()

	w := doRequest(server, "POST", "/api/auth/login", map[string]string{
		"email":    "admin@portfolio.com",
		"password": "portfolio123",
	}, false)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var session service.Session
	if err := json.Unmarshal(w.Body.Bytes(), &session); err != nil {
		t.Fatalf("failed to decode session: %v", err)
	}
	if session.Token != testToken {
		t.Errorf("unexpected token %q", session.Token)
	}
}

func TestLoginBadCredentials(t *testing.T) {
	server, _ := createTestServer()

	w := doRequest(server, "POST", "/api/auth/login", map[string]string{
		"email":    "admin@portfolio.com",
		"password": "wrong",
	}, false)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestLoginInvalidJSON(t *testing.T) {
	server, _ := createTestServer()

	req := httptest.NewRequest("POST", "/api/auth/login", bytes.NewReader([]byte("not json")))
	w := httptest.NewRecorder()
	server.Router().ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestProtectedRoutesRequireSession(t *testing.T) {
	server, _ := createTestServer()

	paths := []struct {
		method string
		path   string
	}{
		{"GET", "/api/portfolio"},
		{"GET", "/api/history"},
		{"POST", "/api/portfolio/coins"},
		{"POST", "/api/auth/logout"},
	}

	for _, p := range paths {
		w := doRequest(server, p.method, p.path, nil, false)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("%s %s: expected 401, got %d", p.method, p.path, w.Code)
		}
	}
}

func TestGetPortfolio(t *testing.T) {
	server, _ := createTestServer()

	w := doRequest(server, "GET", "/api/portfolio", nil, true)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var view service.PortfolioView
	if err := json.Unmarshal(w.Body.Bytes(), &view); err != nil {
		t.Fatalf("failed to decode view: %v", err)
	}
	if view.TotalValue != 100000 {
		t.Errorf("expected total 100000, got %v", view.TotalValue)
	}
}

func TestAddCoin(t *testing.T) {
	server, _ := createTestServer()

	w := doRequest(server, "POST", "/api/portfolio/coins", map[string]interface{}{
		"id":       "bitcoin",
		"symbol":   "btc",
		"quantity": 2.5,
	}, true)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
}

func TestAddCoinValidationError(t *testing.T) {
	server, _ := createTestServer()

	w := doRequest(server, "POST", "/api/portfolio/coins", map[string]interface{}{
		"id":       "bitcoin",
		"quantity": 0,
	}, true)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestUpdateUnknownCoinReturns404(t *testing.T) {
	server, _ := createTestServer()

	w := doRequest(server, "PUT", "/api/portfolio/coins/dogecoin", map[string]interface{}{
		"quantity": 5,
	}, true)

	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestAddNoteUnknownDateReturns404(t *testing.T) {
	server, _ := createTestServer()

	w := doRequest(server, "POST", "/api/history/2020-01-01/notes", map[string]string{
		"text": "a note",
	}, true)

	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestAddNote(t *testing.T) {
	server, _ := createTestServer()

	w := doRequest(server, "POST", "/api/history/2026-03-15/notes", map[string]string{
		"text": "bought the dip",
	}, true)

	if w.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", w.Code)
	}
}

func TestSnapshotRequiresCronToken(t *testing.T) {
	server, snapshots := createTestServer()

	w := doRequest(server, "POST", "/api/snapshot", nil, false)
	if w.Code != http.StatusForbidden {
		t.Errorf("expected 403 without token, got %d", w.Code)
	}
	if snapshots.runs != 0 {
		t.Error("snapshot must not run without a valid token")
	}

	req := httptest.NewRequest("POST", "/api/snapshot", nil)
	req.Header.Set("X-Cron-Token", "wrong-token")
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403 with wrong token, got %d", rec.Code)
	}
}

func TestSnapshotRunsWithCronToken(t *testing.T) {
	server, snapshots := createTestServer()

	req := httptest.NewRequest("POST", "/api/snapshot", nil)
	req.Header.Set("X-Cron-Token", testCronToken)
	w := httptest.NewRecorder()
	server.Router().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if snapshots.runs != 1 {
		t.Errorf("expected 1 snapshot run, got %d", snapshots.runs)
	}
}

func TestSnapshotAcceptsQueryToken(t *testing.T) {
	server, snapshots := createTestServer()

	req := httptest.NewRequest("POST", "/api/snapshot?token="+testCronToken, nil)
	w := httptest.NewRecorder()
	server.Router().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if snapshots.runs != 1 {
		t.Errorf("expected 1 snapshot run, got %d", snapshots.runs)
	}
}

func TestFearGreedEndpoint(t *testing.T) {
	server, _ := createTestServer()

	w := doRequest(server, "GET", "/api/fear-greed", nil, false)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var reading sentiment.Reading
	if err := json.Unmarshal(w.Body.Bytes(), &reading); err != nil {
		t.Fatalf("failed to decode reading: %v", err)
	}
	if reading.Value != 30 {
		t.Errorf("expected value 30, got %d", reading.Value)
	}
}

func TestFearGreedUpstreamFailure(t *testing.T) {
	server := NewServer(
		&ServerConfig{Host: "localhost", Port: "0"},
		&mockAuthService{sessions: map[string]int64{testToken: testUserID}},
		&mockPortfolioAPI{},
		&mockHistoryAPI{},
		&mockSnapshotAPI{},
		&mockSentimentAPI{err: errors.New("all sources down")},
		logging.NewLogger(logging.LevelFatal, logging.FormatText),
	)

	w := doRequest(server, "GET", "/api/fear-greed", nil, false)
	if w.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", w.Code)
	}
}
