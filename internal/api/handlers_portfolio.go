package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/Matej398/crypto-folio/internal/models"
)

// handleGetPortfolio handles GET /api/portfolio - portfolio with live prices
func (s *Server) handleGetPortfolio(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, ErrCodeUnauthorized, "Authentication required", nil)
		return
	}

	view, err := s.portfolioService.GetValued(r.Context(), userID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, view)
}

// handleAddCoin handles POST /api/portfolio/coins
func (s *Server) handleAddCoin(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, ErrCodeUnauthorized, "Authentication required", nil)
		return
	}

	var req struct {
		ID       string  `json:"id"`
		Symbol   string  `json:"symbol"`
		Name     string  `json:"name"`
		Quantity float64 `json:"quantity"`
		Image    *string `json:"image,omitempty"`
	}

	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	portfolio, err := s.portfolioService.AddCoin(r.Context(), userID, models.Holding{
		CoinID:   req.ID,
		Symbol:   req.Symbol,
		Name:     req.Name,
		Quantity: req.Quantity,
		Image:    req.Image,
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, portfolio)
}

// handleUpdateCoin handles PUT /api/portfolio/coins/:id
func (s *Server) handleUpdateCoin(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, ErrCodeUnauthorized, "Authentication required", nil)
		return
	}

	coinID := mux.Vars(r)["id"]
	if coinID == "" {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Coin ID required", nil)
		return
	}

	var req struct {
		Quantity float64 `json:"quantity"`
	}

	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	portfolio, err := s.portfolioService.UpdateQuantity(r.Context(), userID, coinID, req.Quantity)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, portfolio)
}

// handleRemoveCoin handles DELETE /api/portfolio/coins/:id
func (s *Server) handleRemoveCoin(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, ErrCodeUnauthorized, "Authentication required", nil)
		return
	}

	coinID := mux.Vars(r)["id"]
	if coinID == "" {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Coin ID required", nil)
		return
	}

	portfolio, err := s.portfolioService.RemoveCoin(r.Context(), userID, coinID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, portfolio)
}
