package service

import (
	"context"
	"errors"
	"strings"
	"time"

	apperrors "github.com/Matej398/crypto-folio/internal/errors"
	"github.com/Matej398/crypto-folio/internal/models"
	"github.com/Matej398/crypto-folio/internal/storage"
)

// HistoryRepository interface for snapshot history reads and note writes
type HistoryRepository interface {
	List(ctx context.Context, userID int64, page, perPage int) ([]*models.HistorySnapshot, int, int, error)
	AddNote(ctx context.Context, userID int64, date, text string) (*models.Note, error)
	UpdateNote(ctx context.Context, userID, noteID int64, text string) (*models.Note, error)
	DeleteNote(ctx context.Context, userID, noteID int64) error
}

// HistoryPage is one page of snapshot history
type HistoryPage struct {
	Entries []*models.HistorySnapshot `json:"entries"`
	Total   int                       `json:"total"`
	Page    int                       `json:"page"`
	PerPage int                       `json:"perPage"`
}

// HistoryService exposes snapshot history and per-day notes
type HistoryService struct {
	repo HistoryRepository
}

// NewHistoryService creates a new history service
func NewHistoryService(repo HistoryRepository) *HistoryService {
	return &HistoryService{repo: repo}
}

// List returns a page of the user's snapshots, newest first
func (s *HistoryService) List(ctx context.Context, userID int64, page, perPage int) (*HistoryPage, error) {
	if perPage > storage.MaxHistoryPerPage {
		perPage = storage.MaxHistoryPerPage
	}
	entries, total, actualPage, err := s.repo.List(ctx, userID, page, perPage)
	if err != nil {
		return nil, apperrors.NewPersistenceError("list history", err)
	}
	if perPage < 1 {
		perPage = 10
	}
	return &HistoryPage{
		Entries: entries,
		Total:   total,
		Page:    actualPage,
		PerPage: perPage,
	}, nil
}

// AddNote attaches a note to the user's snapshot for a date
func (s *HistoryService) AddNote(ctx context.Context, userID int64, date, text string) (*models.Note, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperrors.NewValidationError("text", "note text is required")
	}
	if _, err := time.Parse("2006-01-02", date); err != nil {
		return nil, apperrors.NewValidationError("date", "date must be YYYY-MM-DD")
	}

	note, err := s.repo.AddNote(ctx, userID, date, text)
	if errors.Is(err, storage.ErrHistoryNotFound) {
		return nil, apperrors.NewNotFoundError("history entry", date)
	}
	if err != nil {
		return nil, apperrors.NewPersistenceError("add note", err)
	}
	return note, nil
}

// UpdateNote edits a note owned by the user
func (s *HistoryService) UpdateNote(ctx context.Context, userID, noteID int64, text string) (*models.Note, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperrors.NewValidationError("text", "note text is required")
	}

	note, err := s.repo.UpdateNote(ctx, userID, noteID, text)
	if errors.Is(err, storage.ErrNoteNotFound) {
		return nil, apperrors.NewNotFoundError("note", noteID)
	}
	if err != nil {
		return nil, apperrors.NewPersistenceError("update note", err)
	}
	return note, nil
}

// DeleteNote removes a note owned by the user
func (s *HistoryService) DeleteNote(ctx context.Context, userID, noteID int64) error {
	err := s.repo.DeleteNote(ctx, userID, noteID)
	if errors.Is(err, storage.ErrNoteNotFound) {
		return apperrors.NewNotFoundError("note", noteID)
	}
	if err != nil {
		return apperrors.NewPersistenceError("delete note", err)
	}
	return nil
}
