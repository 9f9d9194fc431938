package app

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/quotedesk/internal/observability"
	"github.com/odyssey-erp/quotedesk/internal/rbac"
)

func TestLoadConfigDefaults(t *testing.T) {
	for _, key := range []string{"QUOTE_API_URL", "RBAC_POLICY", "SESSION_TTL", "COMMIT_LOCK_TTL", "SESSION_LOCK_WAIT", "QUOTE_API_TIMEOUT"} {
		unsetEnv(t, key)
	}
	t.Setenv("RATE_LIMIT_PER_MIN", "60")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 60, cfg.RateLimitPerMin)
	assert.Equal(t, 12*time.Hour, cfg.SessionTTL)
	assert.Equal(t, time.Minute, cfg.CommitLockTTL)
	assert.Equal(t, 5*time.Second, cfg.SessionLockWait)
	assert.Equal(t, 30*time.Second, cfg.QuoteAPITimeout)
	assert.Equal(t, rbac.DefaultPolicy, cfg.RBACPolicy)
	assert.Error(t, cfg.ValidateServer())

	cfg.QuoteAPIURL = "http://quotes.internal"
	assert.NoError(t, cfg.ValidateServer())
}

func unsetEnv(t *testing.T, key string) {
	t.Helper()
	t.Setenv(key, "")
	require.NoError(t, os.Unsetenv(key))
}

func TestLoadConfigRejectsBadDuration(t *testing.T) {
	t.Setenv("SESSION_TTL", "forever")

	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestIsProduction(t *testing.T) {
	var cfg *Config
	assert.False(t, cfg.IsProduction())
	assert.True(t, (&Config{AppEnv: "production"}).IsProduction())
}

func TestNewLoggerFormatAndLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&Config{LogFormat: "json", LogLevel: "warn"}, &buf)

	logger.Info("hidden")
	logger.Warn("shown", slog.String("quotation_id", "q-1"))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "shown", line["msg"])
	assert.Equal(t, "q-1", line["quotation_id"])

	assert.Equal(t, slog.LevelDebug, parseLevel(" DEBUG "))
	assert.Equal(t, slog.LevelInfo, parseLevel("verbose"))
}

func TestRuntimeTestMode(t *testing.T) {
	t.Setenv(testModeEnv, "1")
	RefreshTestMode()
	assert.True(t, InTestMode())

	t.Setenv(testModeEnv, "0")
	RefreshTestMode()
	assert.False(t, InTestMode())
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	policy, err := rbac.ParsePolicy(rbac.DefaultPolicy)
	require.NoError(t, err)
	svc := rbac.NewService(policy)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewRouter(RouterParams{
		Logger:             logger,
		Config:             &Config{AppRequestTimeout: time.Second, RateLimitPerMin: 1000},
		RBACMiddleware:     rbac.Middleware{Service: svc, Logger: logger},
		PermissionsHandler: rbac.NewPermissionsHandler(logger, svc),
		Metrics:            observability.NewMetrics(),
	})
}

func TestRouterHealthAndSecurityHeaders(t *testing.T) {
	router := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.NotEmpty(t, rec.Header().Get("X-Ratelimit-Limit"))
}

func TestRouterIdentifiesCaller(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/permissions/me", nil)
	req.Header.Set(rbac.HeaderUserID, "u-3")
	req.Header.Set(rbac.HeaderRole, "sales_rep")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		UserID      string   `json:"user_id"`
		Permissions []string `json:"permissions"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "u-3", body.UserID)
	assert.Equal(t, []string{rbac.PermQuotationEdit, rbac.PermQuotationView}, body.Permissions)
}

func TestRouterExposesMetrics(t *testing.T) {
	router := newTestRouter(t)
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "quotedesk_http_requests_total")
}
