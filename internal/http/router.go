package httpserver

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/jw6ventures/clinicgrid/internal/api"
	"github.com/jw6ventures/clinicgrid/internal/auth"
	"github.com/jw6ventures/clinicgrid/internal/config"
	"github.com/jw6ventures/clinicgrid/internal/http/ratelimit"
	"github.com/jw6ventures/clinicgrid/internal/logging"
	"github.com/jw6ventures/clinicgrid/internal/metrics"
	"github.com/jw6ventures/clinicgrid/internal/ui"
)

// HealthChecker is satisfied by *store.Store.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Pinger is satisfied by *cache.LayoutCache, including a nil one.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Deps struct {
	Logger   zerolog.Logger
	DB       HealthChecker
	Cache    Pinger
	Verifier *auth.Verifier
	API      *api.Handler
	UI       *ui.Handler
}

// NewRouter wires all HTTP routes for the UI and JSON API. Rate limiter
// sweeps stop when ctx is done.
func NewRouter(ctx context.Context, cfg *config.Config, deps Deps) (http.Handler, error) {
	r := chi.NewRouter()

	// Staff API: 20 requests per second, burst of 50 (the schedule screen polls /api/now)
	apiLimiter, err := newLimiter(ctx, rate.Limit(20), 50, cfg.TrustedProxies)
	if err != nil {
		return nil, err
	}
	// Pages: 5 requests per second, burst of 20
	uiLimiter, err := newLimiter(ctx, rate.Limit(5), 20, cfg.TrustedProxies)
	if err != nil {
		return nil, err
	}
	// LIFF: 2 requests per second, burst of 5
	liffLimiter, err := newLimiter(ctx, rate.Limit(2), 5, cfg.TrustedProxies)
	if err != nil {
		return nil, err
	}

	// No middleware.RealIP: the limiters resolve client addresses and honour
	// forwarding headers only from APP_TRUSTED_PROXIES.
	r.Use(middleware.RequestID)
	r.Use(logging.RequestLogger(deps.Logger))
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware())

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := deps.DB.HealthCheck(ctx); err != nil {
			logging.FromContext(r.Context()).Warn().Err(err).Msg("readiness: database unreachable")
			http.Error(w, "unready", http.StatusServiceUnavailable)
			return
		}
		if deps.Cache != nil {
			if err := deps.Cache.Ping(ctx); err != nil {
				logging.FromContext(r.Context()).Warn().Err(err).Msg("readiness: cache unreachable")
				http.Error(w, "unready", http.StatusServiceUnavailable)
				return
			}
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	if cfg.PrometheusEnabled {
		r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
			metrics.Handler().ServeHTTP(w, r)
		})
	}

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(liffLimiter.Middleware())
			deps.API.RegisterLIFF(r)
		})
		r.Group(func(r chi.Router) {
			r.Use(apiLimiter.Middleware())
			r.Use(auth.Middleware(deps.Verifier))
			deps.API.Register(r)
		})
	})

	r.Group(func(r chi.Router) {
		r.Use(uiLimiter.Middleware())
		r.Use(auth.Middleware(deps.Verifier))
		r.Get("/", deps.UI.Home)
		r.Get("/day", deps.UI.Day)
	})

	return r, nil
}

func newLimiter(ctx context.Context, limit rate.Limit, burst int, trusted []string) (*ratelimit.Limiter, error) {
	l, err := ratelimit.New(ratelimit.Options{Rate: limit, Burst: burst, Idle: 5 * time.Minute, TrustedProxies: trusted})
	if err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}
	go l.Run(ctx)
	return l, nil
}
