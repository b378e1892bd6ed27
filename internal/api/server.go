// Package api provides the HTTP API server implementation.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/Matej398/crypto-folio/internal/logging"
	"github.com/Matej398/crypto-folio/internal/models"
	"github.com/Matej398/crypto-folio/internal/sentiment"
	"github.com/Matej398/crypto-folio/internal/service"
)

// Service interfaces for dependency injection and testing

// AuthServiceInterface defines the interface for authentication operations
type AuthServiceInterface interface {
	Login(ctx context.Context, email, password string) (*service.Session, error)
	Logout(ctx context.Context, token string) error
	Authenticate(ctx context.Context, token string) (int64, error)
	ChangePassword(ctx context.Context, userID int64, current, next string) error
}

// PortfolioServiceInterface defines the interface for portfolio operations
type PortfolioServiceInterface interface {
	GetValued(ctx context.Context, userID int64) (*service.PortfolioView, error)
	AddCoin(ctx context.Context, userID int64, holding models.Holding) (*models.Portfolio, error)
	UpdateQuantity(ctx context.Context, userID int64, coinID string, quantity float64) (*models.Portfolio, error)
	RemoveCoin(ctx context.Context, userID int64, coinID string) (*models.Portfolio, error)
}

// HistoryServiceInterface defines the interface for snapshot history operations
type HistoryServiceInterface interface {
	List(ctx context.Context, userID int64, page, perPage int) (*service.HistoryPage, error)
	AddNote(ctx context.Context, userID int64, date, text string) (*models.Note, error)
	UpdateNote(ctx context.Context, userID, noteID int64, text string) (*models.Note, error)
	DeleteNote(ctx context.Context, userID, noteID int64) error
}

// SnapshotServiceInterface defines the interface for snapshot batch runs
type SnapshotServiceInterface interface {
	Run(ctx context.Context) (*service.SnapshotResult, error)
}

// SentimentServiceInterface defines the interface for the fear/greed reading
type SentimentServiceInterface interface {
	Fetch(ctx context.Context) (*sentiment.Reading, error)
}

// Server represents the HTTP API server.
type Server struct {
	router           *mux.Router
	httpServer       *http.Server
	authService      AuthServiceInterface
	portfolioService PortfolioServiceInterface
	historyService   HistoryServiceInterface
	snapshotService  SnapshotServiceInterface
	sentimentService SentimentServiceInterface
	config           *ServerConfig
	logger           *logging.Logger
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	RateLimitRPS    float64
	RateLimitBurst  int
	CronToken       string
}

// NewServer creates a new API server instance.
func NewServer(
	config *ServerConfig,
	authService AuthServiceInterface,
	portfolioService PortfolioServiceInterface,
	historyService HistoryServiceInterface,
	snapshotService SnapshotServiceInterface,
	sentimentService SentimentServiceInterface,
	logger *logging.Logger,
) *Server {
	s := &Server{
		router:           mux.NewRouter(),
		authService:      authService,
		portfolioService: portfolioService,
		historyService:   historyService,
		snapshotService:  snapshotService,
		sentimentService: sentimentService,
		config:           config,
		logger:           logger,
	}

	s.setupRouter()

	return s
}

// setupRouter configures the router with middleware and routes
func (s *Server) setupRouter() {
	// Middleware order matters
	s.router.Use(LoggingMiddleware(s.logger))
	s.router.Use(RecoveryMiddleware(s.logger))
	s.router.Use(CORSMiddleware)
	if s.config.RateLimitRPS > 0 {
		s.router.Use(RateLimitMiddleware(s.config.RateLimitRPS, s.config.RateLimitBurst))
	}
	s.router.Use(CompressionMiddleware)

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%s", s.config.Host, s.config.Port),
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	// Health check endpoint
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")

	api := s.router.PathPrefix("/api").Subrouter()

	// Public endpoints
	api.HandleFunc("/auth/login", s.handleLogin).Methods("POST")
	api.HandleFunc("/fear-greed", s.handleFearGreed).Methods("GET")

	// Snapshot trigger, guarded by the cron token rather than a session
	api.HandleFunc("/snapshot", s.handleRunSnapshot).Methods("POST")

	// Session-protected endpoints
	protected := api.PathPrefix("").Subrouter()
	protected.Use(AuthMiddleware(s.authService))

	protected.HandleFunc("/auth/logout", s.handleLogout).Methods("POST")
	protected.HandleFunc("/auth/password", s.handleChangePassword).Methods("PUT")

	protected.HandleFunc("/portfolio", s.handleGetPortfolio).Methods("GET")
	protected.HandleFunc("/portfolio/coins", s.handleAddCoin).Methods("POST")
	protected.HandleFunc("/portfolio/coins/{id}", s.handleUpdateCoin).Methods("PUT")
	protected.HandleFunc("/portfolio/coins/{id}", s.handleRemoveCoin).Methods("DELETE")

	protected.HandleFunc("/history", s.handleListHistory).Methods("GET")
	protected.HandleFunc("/history/{date}/notes", s.handleAddNote).Methods("POST")
	protected.HandleFunc("/history/notes/{id}", s.handleUpdateNote).Methods("PUT")
	protected.HandleFunc("/history/notes/{id}", s.handleDeleteNote).Methods("DELETE")
}

// handleHealth handles health check requests.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "crypto-folio",
	})
}

// Router exposes the configured router, used by tests
func (s *Server) Router() http.Handler {
	return s.router
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.WithField("addr", s.httpServer.Addr).Info("Starting API server")
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down API server")
	return s.httpServer.Shutdown(ctx)
}
