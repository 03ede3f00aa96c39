package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestConstructorsCarryStatus(t *testing.T) {
	tests := []struct {
		name   string
		err    *AppError
		status int
		is     func(error) bool
	}{
		{"validation", NewValidationError("bad"), http.StatusBadRequest, IsValidation},
		{"not found", NewNotFoundError("node"), http.StatusNotFound, IsNotFound},
		{"conflict", NewConflictError("stale"), http.StatusConflict, IsConflict},
		{"capacity", NewCapacityExceededError("n1", 5), http.StatusUnprocessableEntity, IsCapacityExceeded},
		{"unauthorized", NewUnauthorizedError(""), http.StatusUnauthorized, IsUnauthorized},
		{"forbidden", NewForbiddenError(""), http.StatusForbidden, IsForbidden},
		{"database", NewDatabaseError("get", errors.New("io")), http.StatusInternalServerError, IsDatabase},
		{"internal", NewInternalError("boom"), http.StatusInternalServerError, IsInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.status, tt.err.HTTPStatus)
			assert.True(t, tt.is(fmt.Errorf("wrapped: %w", tt.err)))
		})
	}
}

func TestWrap(t *testing.T) {
	assert.Nil(t, Wrap(nil, "ctx"))

	err := Wrap(NewNotFoundError("node"), "loading tree")
	assert.True(t, IsNotFound(err))
	assert.Equal(t, "loading tree: node not found", GetAppError(err).Message)

	plain := errors.New("disk")
	err = Wrap(plain, "saving")
	assert.True(t, IsInternal(err))
	assert.ErrorIs(t, err, plain)
}

func TestErrorHandler_Handle(t *testing.T) {
	h := NewErrorHandler(zap.NewNop(), false)

	t.Run("app error keeps its type and details", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/projects/car", nil)

		h.Handle(rec, req, fmt.Errorf("handler: %w", NewCapacityExceededError("n1", 5)))

		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		var body ErrorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.True(t, body.Error)
		assert.Equal(t, "CAPACITY_EXCEEDED", body.Type)
		assert.EqualValues(t, 5, body.Details["limit"])
		assert.NotContains(t, body.Details, "stack_trace")
	})

	t.Run("plain errors are hidden", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)

		h.Handle(rec, req, errors.New("secret connection string"))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.NotContains(t, rec.Body.String(), "secret")
	})
}

func TestErrorHandler_HandleStatus(t *testing.T) {
	h := NewErrorHandler(zap.NewNop(), false)
	rec := httptest.NewRecorder()

	h.HandleStatus(rec, httptest.NewRequest(http.MethodGet, "/", nil), http.StatusTooManyRequests, "slow down")

	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "RATE_LIMITED", body.Type)
}

func TestErrorHandler_MiddlewareRecoversPanics(t *testing.T) {
	h := NewErrorHandler(zap.NewNop(), false)
	handler := h.Middleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("nil map")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "INTERNAL")
}
