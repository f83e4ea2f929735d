package api

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/KAsare1/commonthread-server/cmd/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testConfig(t *testing.T) *config.Config {
	return &config.Config{
		ServerPort:        "0",
		SecretKey:         "test-secret",
		TokenTTL:          time.Hour,
		AutoApprovePolicy: "always",
		ReminderSchedule:  "0 8 * * *",
		AllowedOrigins:    []string{"https://app.example.com"},
		UploadDir:         t.TempDir(),
	}
}

func TestHandler(t *testing.T) {
	cfg := testConfig(t)
	handler, err := NewApiServer(cfg, nil, zap.NewNop()).Handler()
	require.NoError(t, err)

	do := func(req *http.Request) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	rec := do(httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = do(httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	preflight := httptest.NewRequest(http.MethodOptions, "/api/v1/opportunities", nil)
	preflight.Header.Set("Origin", "https://app.example.com")
	preflight.Header.Set("Access-Control-Request-Method", "POST")
	rec = do(preflight)
	assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))

	imageDir := filepath.Join(cfg.UploadDir, "images")
	require.NoError(t, os.MkdirAll(imageDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(imageDir, "logo.png"), []byte("png"), 0644))
	rec = do(httptest.NewRequest(http.MethodGet, "/images/logo.png", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "png", rec.Body.String())
}

func TestHandler_RejectsUnknownPolicy(t *testing.T) {
	cfg := testConfig(t)
	cfg.AutoApprovePolicy = "sometimes"
	_, err := NewApiServer(cfg, nil, zap.NewNop()).Handler()
	assert.Error(t, err)
}
