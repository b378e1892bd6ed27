package errors

import (
	stderrors "errors"
	"net/http"
	"testing"

	"github.com/Matej398/crypto-folio/internal/types"
)

func TestConstructorStatusCodes(t *testing.T) {
	tests := []struct {
		name   string
		err    *CategorizedError
		status int
		code   string
	}{
		{"validation", NewValidationError("quantity", "must be positive"), http.StatusBadRequest, "VALIDATION_ERROR"},
		{"unauthorized", NewUnauthorizedError("invalid credentials"), http.StatusUnauthorized, "UNAUTHORIZED"},
		{"forbidden", NewForbiddenError("invalid cron token"), http.StatusForbidden, "FORBIDDEN"},
		{"not found", NewNotFoundError("note", int64(7)), http.StatusNotFound, "NOT_FOUND"},
		{"upstream", NewUpstreamError("price feed", stderrors.New("timeout")), http.StatusBadGateway, "UPSTREAM_UNAVAILABLE"},
		{"persistence", NewPersistenceError("save stats", stderrors.New("conn refused")), http.StatusInternalServerError, "PERSISTENCE_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.StatusCode != tt.status {
				t.Errorf("status = %d, want %d", tt.err.StatusCode, tt.status)
			}
			if tt.err.Code != tt.code {
				t.Errorf("code = %q, want %q", tt.err.Code, tt.code)
			}
			if GetHTTPStatusCode(tt.err) != tt.status {
				t.Errorf("GetHTTPStatusCode = %d, want %d", GetHTTPStatusCode(tt.err), tt.status)
			}
		})
	}
}

func TestCategorizePassthrough(t *testing.T) {
	original := NewValidationError("date", "must be YYYY-MM-DD")
	if Categorize(original) != original {
		t.Error("categorized errors must pass through unchanged")
	}
}

func TestCategorizeServiceError(t *testing.T) {
	svcErr := &types.ServiceError{Code: "HISTORY_NOT_FOUND", Message: "no snapshot for date"}
	catErr := Categorize(svcErr)
	if catErr.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", catErr.StatusCode)
	}
}

func TestCategorizePlainError(t *testing.T) {
	catErr := Categorize(stderrors.New("boom"))
	if catErr.StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", catErr.StatusCode)
	}
	if !stderrors.Is(catErr, catErr.Cause) {
		t.Error("cause must be reachable via Unwrap")
	}
}

func TestIsRetryable(t *testing.T) {
	if !IsRetryable(NewUpstreamError("feed", stderrors.New("503"))) {
		t.Error("upstream errors are retryable")
	}
	if !IsRetryable(NewPersistenceError("upsert", stderrors.New("deadlock"))) {
		t.Error("persistence errors are retryable")
	}
	if IsRetryable(NewValidationError("text", "required")) {
		t.Error("validation errors are not retryable")
	}
	if IsRetryable(nil) {
		t.Error("nil is not retryable")
	}
}

func TestToServiceError(t *testing.T) {
	catErr := NewNotFoundError("holding", "dogecoin")
	svcErr := catErr.ToServiceError()
	if svcErr.Code != catErr.Code || svcErr.Message != catErr.Message {
		t.Errorf("ToServiceError lost fields: %+v", svcErr)
	}
}
