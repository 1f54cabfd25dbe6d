package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jw6ventures/clinicgrid/internal/api"
	"github.com/jw6ventures/clinicgrid/internal/auth"
	"github.com/jw6ventures/clinicgrid/internal/config"
	"github.com/jw6ventures/clinicgrid/internal/ui"
)

type fakeDB struct{ err error }

func (f fakeDB) HealthCheck(context.Context) error { return f.err }

type fakeCache struct{ err error }

func (f fakeCache) Ping(context.Context) error { return f.err }

func newTestRouter(t *testing.T, cfg *config.Config, db HealthChecker, cache Pinger) http.Handler {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	h, err := NewRouter(ctx, cfg, Deps{
		Logger:   zerolog.Nop(),
		DB:       db,
		Cache:    cache,
		Verifier: auth.NewVerifier("0123456789abcdef0123456789abcdef", "clinicgrid"),
		API:      api.NewHandler(api.Deps{Logger: zerolog.Nop(), LIFFGatewaySecret: "gateway-secret"}),
		UI:       ui.NewHandler(nil, "Clinic"),
	})
	require.NoError(t, err)
	return h
}

func get(h http.Handler, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealthAndReadiness(t *testing.T) {
	cfg := &config.Config{}

	h := newTestRouter(t, cfg, fakeDB{}, fakeCache{})
	assert.Equal(t, http.StatusOK, get(h, "/healthz").Code)
	assert.Equal(t, http.StatusOK, get(h, "/readyz").Code)

	h = newTestRouter(t, cfg, fakeDB{err: errors.New("down")}, fakeCache{})
	assert.Equal(t, http.StatusOK, get(h, "/healthz").Code)
	assert.Equal(t, http.StatusServiceUnavailable, get(h, "/readyz").Code)

	h = newTestRouter(t, cfg, fakeDB{}, fakeCache{err: errors.New("redis down")})
	assert.Equal(t, http.StatusServiceUnavailable, get(h, "/readyz").Code)

	h = newTestRouter(t, cfg, fakeDB{}, nil)
	assert.Equal(t, http.StatusOK, get(h, "/readyz").Code)
}

func TestMetricsEndpointToggle(t *testing.T) {
	h := newTestRouter(t, &config.Config{}, fakeDB{}, nil)
	assert.Equal(t, http.StatusNotFound, get(h, "/metrics").Code)

	h = newTestRouter(t, &config.Config{PrometheusEnabled: true}, fakeDB{}, nil)
	get(h, "/healthz")
	rec := get(h, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "clinicgrid_http_requests_total")
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	h := newTestRouter(t, &config.Config{}, fakeDB{}, nil)

	for _, path := range []string{"/", "/day", "/api/layout", "/api/appointments", "/api/revenue"} {
		assert.Equal(t, http.StatusUnauthorized, get(h, path).Code, path)
	}
	// LIFF requests must carry the gateway secret.
	assert.Equal(t, http.StatusUnauthorized, get(h, "/api/liff/appointments").Code)
}

func TestRejectsBadTrustedProxy(t *testing.T) {
	_, err := NewRouter(context.Background(), &config.Config{TrustedProxies: []string{"nonsense"}}, Deps{Logger: zerolog.Nop()})
	assert.Error(t, err)
}

func TestRateLimitedAPI(t *testing.T) {
	h := newTestRouter(t, &config.Config{}, fakeDB{}, nil)
	limited := false
	deadline := time.Now().Add(2 * time.Second)
	for i := 0; i < 200 && time.Now().Before(deadline); i++ {
		if get(h, "/api/layout").Code == http.StatusTooManyRequests {
			limited = true
			break
		}
	}
	assert.True(t, limited)
}

func liffRequests(h http.Handler, peer string, n int) []int {
	codes := make([]int, 0, n)
	for i := 0; i < n; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/liff/appointments", nil)
		req.RemoteAddr = peer + ":40000"
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("198.51.100.%d", i+1))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	return codes
}

func TestForwardedForIgnoredFromUntrustedPeers(t *testing.T) {
	cfg := &config.Config{TrustedProxies: []string{"10.0.0.0/8"}}

	h := newTestRouter(t, cfg, fakeDB{}, nil)
	assert.Contains(t, liffRequests(h, "203.0.113.7", 20), http.StatusTooManyRequests)

	h = newTestRouter(t, cfg, fakeDB{}, nil)
	assert.NotContains(t, liffRequests(h, "10.1.2.3", 20), http.StatusTooManyRequests)
}
