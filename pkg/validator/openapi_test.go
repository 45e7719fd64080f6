package validator

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	apperrors "dungeon-ledger/backend/pkg/errors"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const schemaPath = "../../api/openapi.yaml"

func newValidatedRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	v, err := NewOpenAPIValidator(schemaPath)
	require.NoError(t, err)

	r := gin.New()
	r.Use(apperrors.ErrorHandler())
	r.Use(v.Middleware())
	r.POST("/api/v1/campaigns", func(c *gin.Context) { c.Status(http.StatusCreated) })
	r.POST("/api/v1/campaigns/:id/sessions", func(c *gin.Context) { c.Status(http.StatusCreated) })
	r.GET("/internal/debug", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func post(r http.Handler, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestValidRequestPasses(t *testing.T) {
	r := newValidatedRouter(t)

	w := post(r, "/api/v1/campaigns", `{"name":"QA Campaign","system":null}`)
	assert.Equal(t, http.StatusCreated, w.Code)

	w = post(r, "/api/v1/campaigns/3/sessions", `{"title":"Session 1","scheduled_at":"2026-03-01T18:00","timezone":"Europe/Berlin"}`)
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestInvalidRequestUsesErrorEnvelope(t *testing.T) {
	r := newValidatedRouter(t)

	w := post(r, "/api/v1/campaigns", `{"system":"5e"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)

	var body struct {
		Error struct {
			Code    string         `json:"code"`
			Details map[string]any `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "INVALID_REQUEST", body.Error.Code)
	assert.Contains(t, body.Error.Details["reason"], "name")

	w = post(r, "/api/v1/campaigns", `{"name":"`+strings.Repeat("x", 81)+`"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUndocumentedPathsPassThrough(t *testing.T) {
	r := newValidatedRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/internal/debug", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestReloadSchema(t *testing.T) {
	v, err := NewOpenAPIValidator(schemaPath)
	require.NoError(t, err)
	assert.NoError(t, v.ReloadSchema())

	_, err = NewOpenAPIValidator("does-not-exist.yaml")
	assert.Error(t, err)
}
