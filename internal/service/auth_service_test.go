package service

import (
	"context"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/Matej398/crypto-folio/internal/config"
	"github.com/Matej398/crypto-folio/internal/models"
	"github.com/Matej398/crypto-folio/internal/storage"
)

type mockUserRepo struct {
	users  map[string]*models.User
	nextID int64
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[string]*models.User)}
}

func (m *mockUserRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if u, ok := m.users[email]; ok {
		return u, nil
	}
	return nil, storage.ErrUserNotFound
}

func (m *mockUserRepo) GetByID(ctx context.Context, id int64) (*models.User, error) {
	for _, u := range m.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, storage.ErrUserNotFound
}

func (m *mockUserRepo) Create(ctx context.Context, email, passwordHash string) (*models.User, error) {
	m.nextID++
	u := &models.User{ID: m.nextID, Email: email, PasswordHash: passwordHash, CreatedAt: time.Now()}
	m.users[email] = u
	return u, nil
}

func (m *mockUserRepo) UpdatePassword(ctx context.Context, userID int64, passwordHash string) error {
	for _, u := range m.users {
		if u.ID == userID {
			u.PasswordHash = passwordHash
			return nil
		}
	}
	return storage.ErrUserNotFound
}

type mockSessionStore struct {
	sessions map[string]int64
}

func newMockSessionStore() *mockSessionStore {
	return &mockSessionStore{sessions: make(map[string]int64)}
}

func (m *mockSessionStore) SetSession(ctx context.Context, token string, userID int64, ttl time.Duration) error {
	m.sessions[token] = userID
	return nil
}

func (m *mockSessionStore) GetSession(ctx context.Context, token string) (int64, error) {
	if id, ok := m.sessions[token]; ok {
		return id, nil
	}
	return 0, storage.ErrSessionNotFound
}

func (m *mockSessionStore) DeleteSession(ctx context.Context, token string) error {
	delete(m.sessions, token)
	return nil
}

func testAuthConfig() config.AuthConfig {
	return config.AuthConfig{
		DefaultEmail:    "admin@portfolio.com",
		DefaultPassword: "portfolio123",
		SessionTTL:      time.Hour,
	}
}

func newTestAuthService() (*AuthService, *mockUserRepo, *mockSessionStore) {
	users := newMockUserRepo()
	sessions := newMockSessionStore()
	return NewAuthService(users, sessions, testAuthConfig(), quietLogger()), users, sessions
}

func TestLoginBootstrapsDefaultUser(t *testing.T) {
	svc, users, sessions := newTestAuthService()

	session, err := svc.Login(context.Background(), "admin@portfolio.com", "portfolio123")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if session.Token == "" {
		t.Error("expected a session token")
	}
	if len(users.users) != 1 {
		t.Errorf("expected default user created, have %d users", len(users.users))
	}
	if sessions.sessions[session.Token] != session.UserID {
		t.Error("session not stored")
	}
}

func TestLoginWrongPassword(t *testing.T) {
	svc, _, _ := newTestAuthService()
	ctx := context.Background()

	if _, err := svc.Login(ctx, "admin@portfolio.com", "portfolio123"); err != nil {
		t.Fatalf("bootstrap login failed: %v", err)
	}
	if _, err := svc.Login(ctx, "admin@portfolio.com", "wrong"); err == nil {
		t.Error("expected invalid credentials error")
	}
}

func TestLoginUnknownEmail(t *testing.T) {
	svc, users, _ := newTestAuthService()

	_, err := svc.Login(context.Background(), "stranger@example.com", "whatever")
	if err == nil {
		t.Fatal("expected invalid credentials error")
	}
	if len(users.users) != 0 {
		t.Error("unknown email must not create an account")
	}
}

func TestLoginEmailCaseInsensitive(t *testing.T) {
	svc, _, _ := newTestAuthService()
	ctx := context.Background()

	if _, err := svc.Login(ctx, "Admin@Portfolio.com", "portfolio123"); err != nil {
		t.Fatalf("mixed-case login failed: %v", err)
	}
	if _, err := svc.Login(ctx, "admin@portfolio.com", "portfolio123"); err != nil {
		t.Fatalf("lowercase login failed: %v", err)
	}
}

func TestAuthenticateAndLogout(t *testing.T) {
	svc, _, _ := newTestAuthService()
	ctx := context.Background()

	session, err := svc.Login(ctx, "admin@portfolio.com", "portfolio123")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	userID, err := svc.Authenticate(ctx, session.Token)
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}
	if userID != session.UserID {
		t.Errorf("expected user %d, got %d", session.UserID, userID)
	}

	if err := svc.Logout(ctx, session.Token); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}
	if _, err := svc.Authenticate(ctx, session.Token); err == nil {
		t.Error("expected authentication failure after logout")
	}
}

func TestAuthenticateMissingToken(t *testing.T) {
	svc, _, _ := newTestAuthService()

	if _, err := svc.Authenticate(context.Background(), ""); err == nil {
		t.Error("expected error for empty token")
	}
	if _, err := svc.Authenticate(context.Background(), "bogus"); err == nil {
		t.Error("expected error for unknown token")
	}
}

func TestChangePassword(t *testing.T) {
	svc, users, _ := newTestAuthService()
	ctx := context.Background()

	session, err := svc.Login(ctx, "admin@portfolio.com", "portfolio123")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	if err := svc.ChangePassword(ctx, session.UserID, "portfolio123", "a-new-password"); err != nil {
		t.Fatalf("ChangePassword failed: %v", err)
	}

	user := users.users["admin@portfolio.com"]
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("a-new-password")) != nil {
		t.Error("new password hash does not verify")
	}

	if _, err := svc.Login(ctx, "admin@portfolio.com", "portfolio123"); err == nil {
		t.Error("old password must stop working")
	}
	if _, err := svc.Login(ctx, "admin@portfolio.com", "a-new-password"); err != nil {
		t.Errorf("new password login failed: %v", err)
	}
}

func TestChangePasswordValidation(t *testing.T) {
	svc, _, _ := newTestAuthService()
	ctx := context.Background()

	session, err := svc.Login(ctx, "admin@portfolio.com", "portfolio123")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	if err := svc.ChangePassword(ctx, session.UserID, "portfolio123", "short"); err == nil {
		t.Error("expected error for short password")
	}
	if err := svc.ChangePassword(ctx, session.UserID, "wrong-current", "long-enough-pw"); err == nil {
		t.Error("expected error for wrong current password")
	}
}
