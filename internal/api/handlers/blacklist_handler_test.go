package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Wikid82/wafwatch/internal/models"
	"github.com/Wikid82/wafwatch/internal/storage"
)

type brokenLedger struct{}

func (brokenLedger) Load(ctx context.Context) ([]models.BlacklistEntry, error) {
	return nil, errors.New("disk on fire")
}

func (brokenLedger) Save(ctx context.Context, entries []models.BlacklistEntry) error { return nil }

func TestBlacklistHandler_List(t *testing.T) {
	gin.SetMode(gin.TestMode)
	now := time.Date(2026, 6, 2, 12, 0, 0, 0, time.UTC)
	repo := storage.NewSQLiteBlacklistRepository(OpenTestDB(t))
	require.NoError(t, repo.Save(context.Background(), []models.BlacklistEntry{
		{IP: "1.1.1.1", Reasons: []string{"XSS attack attempts"}, StartDate: now.Add(-30 * time.Hour)},
		{IP: "2.2.2.2", Reasons: []string{"XSS attack attempts"}, StartDate: now.Add(-time.Hour)},
	}))

	h := NewBlacklistHandler(repo)
	h.now = func() time.Time { return now }
	r := gin.New()
	r.GET("/blacklist", h.List)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/blacklist", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var resp blacklistResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Count)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/blacklist?recent=true", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, 1, resp.Count)
	assert.Equal(t, "2.2.2.2", resp.Entries[0].IP)
}

func TestBlacklistHandler_Empty(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/blacklist", NewBlacklistHandler(storage.NewBlobBlacklistRepository(storage.NewMemoryStore(), "bl.json")).List)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/blacklist", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"count":0,"entries":[]}`, w.Body.String())
}

func TestBlacklistHandler_LoadError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/blacklist", NewBlacklistHandler(brokenLedger{}).List)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/blacklist", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "disk on fire")
}
