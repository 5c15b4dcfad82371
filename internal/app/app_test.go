package app

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/companyadmin/internal/companies"
	companieshttp "github.com/odyssey-erp/companyadmin/internal/companies/http"
	"github.com/odyssey-erp/companyadmin/internal/companies/screen"
	"github.com/odyssey-erp/companyadmin/internal/observability"
	"github.com/odyssey-erp/companyadmin/internal/shared"
	"github.com/odyssey-erp/companyadmin/internal/view"
	_ "github.com/odyssey-erp/companyadmin/testing"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("SESSION_SECRET", "session")
	t.Setenv("CSRF_SECRET", "csrf")
}

func TestLoadConfigDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.AppAddr)
	assert.Equal(t, SourcePostgres, cfg.CompanySource)
	assert.Equal(t, 2*time.Hour, cfg.ScreenStateTTL)
	assert.Equal(t, 10*time.Second, cfg.CompanyAPITimeout)
	assert.False(t, cfg.IsProduction())
}

func TestLoadConfigRejectsInvalidSource(t *testing.T) {
	setRequiredEnv(t)

	t.Setenv("COMPANY_SOURCE", "ldap")
	_, err := LoadConfig()
	assert.ErrorContains(t, err, "COMPANY_SOURCE")

	t.Setenv("COMPANY_SOURCE", SourceAPI)
	t.Setenv("COMPANY_API_URL", "")
	_, err = LoadConfig()
	assert.ErrorContains(t, err, "COMPANY_API_URL")

	t.Setenv("COMPANY_API_URL", "http://companies.internal")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, SourceAPI, cfg.CompanySource)
}

func TestLoadConfigRequiresSecrets(t *testing.T) {
	t.Setenv("SESSION_SECRET", "")
	t.Setenv("CSRF_SECRET", "")
	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestNewLoggerJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&Config{LogFormat: "json", AppEnv: "production"}, &buf)
	logger.Debug("hidden")
	logger.Info("visible")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"msg":"visible"`)
	assert.Contains(t, out, `"service":"companyadmin"`)
}

type routerSource struct {
	deleted []int64
}

func (s *routerSource) List(ctx context.Context) ([]companies.Company, error) {
	return []companies.Company{{ID: 1, Name: "Acme"}}, nil
}

func (s *routerSource) Delete(ctx context.Context, id int64) error {
	s.deleted = append(s.deleted, id)
	return nil
}

func newTestRouter(t *testing.T, source *routerSource) http.Handler {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	engine, err := view.NewEngine()
	require.NoError(t, err)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	csrf := shared.NewCSRFManager("csrf")
	metrics := observability.NewMetrics()
	store := screen.NewStore(client, time.Hour)
	svc := companies.NewService(fakeRepository{source}, logger)

	return NewRouter(RouterParams{
		Logger:           logger,
		Config:           &Config{AppEnv: "test", AppRequestTimeout: 5 * time.Second},
		SessionManager:   shared.NewSessionManager(client, "companyadmin_session", time.Hour, false),
		CSRFManager:      csrf,
		CompaniesHandler: companieshttp.NewHandler(logger, source, store, engine, csrf, metrics),
		APIHandler:       companieshttp.NewAPIHandler(logger, svc),
		Metrics:          metrics,
	})
}

type fakeRepository struct {
	source *routerSource
}

func (f fakeRepository) List(ctx context.Context) ([]companies.Company, error) {
	return f.source.List(ctx)
}

func (f fakeRepository) Delete(ctx context.Context, id int64) error {
	return f.source.Delete(ctx, id)
}

func TestRouterHealthAndRedirect(t *testing.T) {
	router := newTestRouter(t, &routerSource{})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/companies", rr.Header().Get("Location"))
}

func TestRouterScreenRequiresCSRF(t *testing.T) {
	source := &routerSource{}
	router := newTestRouter(t, source)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/companies", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Acme")
	cookies := rr.Result().Cookies()
	require.NotEmpty(t, cookies)

	token := extractCSRF(t, rr.Body.String())

	rr = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/companies/1/delete", nil)
	req.AddCookie(cookies[0])
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	form := url.Values{"csrf_token": {token}}
	rr = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/companies/1/delete", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(cookies[0])
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusSeeOther, rr.Code)
}

func TestRouterAPISkipsSession(t *testing.T) {
	source := &routerSource{}
	router := newTestRouter(t, source)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodDelete, "/api/companies/1", nil))

	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, []int64{1}, source.deleted)
	assert.Empty(t, rr.Result().Cookies())
}

func TestRouterServesMetrics(t *testing.T) {
	router := newTestRouter(t, &routerSource{})
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "companyadmin_http_requests_total")
}

func extractCSRF(t *testing.T, body string) string {
	t.Helper()
	const marker = `name="csrf_token" value="`
	idx := strings.Index(body, marker)
	require.GreaterOrEqual(t, idx, 0, "csrf token not rendered")
	rest := body[idx+len(marker):]
	end := strings.Index(rest, `"`)
	require.Greater(t, end, 0)
	return rest[:end]
}

func TestRefreshTestModeRereadsEnv(t *testing.T) {
	t.Setenv(testModeEnv, "0")
	RefreshTestMode()
	assert.False(t, InTestMode())

	t.Setenv(testModeEnv, "1")
	RefreshTestMode()
	assert.True(t, InTestMode())
}
