package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type envelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Details any    `json:"details"`
	} `json:"error"`
}

func serve(t *testing.T, handler gin.HandlerFunc) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RecoveryWithLogger(), ErrorHandler())
	r.GET("/", handler)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/", nil)
	r.ServeHTTP(w, req)

	var body envelope
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	}
	return w, body
}

func TestErrorHandlerRendersAppError(t *testing.T) {
	w, body := serve(t, func(c *gin.Context) {
		_ = c.Error(BadRequestWithDetails("VALIDATION_FAILED", "name: is required", gin.H{"field": "name"}))
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_FAILED", body.Error.Code)
	assert.Equal(t, "name: is required", body.Error.Message)
}

func TestErrorHandlerHidesInternalErrors(t *testing.T) {
	w, body := serve(t, func(c *gin.Context) {
		_ = c.Error(stderrors.New("pq: password authentication failed"))
	})

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "INTERNAL_ERROR", body.Error.Code)
	assert.NotContains(t, body.Error.Message, "pq:")
}

func TestRecoveryWithLogger(t *testing.T) {
	w, body := serve(t, func(c *gin.Context) { panic("boom") })

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "SERVER_ERROR", body.Error.Code)
}

func TestFromErrorUnwrapsChains(t *testing.T) {
	wrapped := fmt.Errorf("handler: %w", NewNotFoundError("NOT_FOUND", "campaign not found"))
	assert.Equal(t, http.StatusNotFound, GetStatusCode(wrapped))
	assert.Equal(t, "NOT_FOUND", GetErrorCode(wrapped))
	assert.True(t, Is(wrapped, NewNotFoundError("NOT_FOUND", "")))
	assert.Equal(t, "UNKNOWN_ERROR", GetErrorCode(stderrors.New("x")))
}
