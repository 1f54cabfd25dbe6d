package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/jw6ventures/clinicgrid/internal/api"
	"github.com/jw6ventures/clinicgrid/internal/auth"
	"github.com/jw6ventures/clinicgrid/internal/cache"
	"github.com/jw6ventures/clinicgrid/internal/calendar"
	"github.com/jw6ventures/clinicgrid/internal/config"
	httpserver "github.com/jw6ventures/clinicgrid/internal/http"
	"github.com/jw6ventures/clinicgrid/internal/jobs"
	"github.com/jw6ventures/clinicgrid/internal/logging"
	"github.com/jw6ventures/clinicgrid/internal/store"
	"github.com/jw6ventures/clinicgrid/internal/ui"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "clinicgrid",
		Short:        "Clinic scheduling grid server",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(layoutCmd())
	rootCmd.AddCommand(materializeCmd())
	rootCmd.AddCommand(tokenCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// app holds the process-wide collaborators shared by the subcommands.
type app struct {
	cfg      *config.Config
	logger   zerolog.Logger
	pool     *pgxpool.Pool
	redis    *redis.Client
	store    *store.Store
	cache    *cache.LayoutCache
	calendar *calendar.Service
}

func bootstrap(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger := logging.New(cfg.LogLevel, cfg.Env)

	pool, err := pgxpool.New(ctx, cfg.DB.DSN)
	if err != nil {
		return nil, fmt.Errorf("create db pool: %w", err)
	}

	a := &app{cfg: cfg, logger: logger, pool: pool, store: store.New(pool)}
	if cfg.Redis.Addr != "" {
		a.redis = redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		a.cache = cache.NewLayoutCache(a.redis, cfg.Redis.TTL)
	} else {
		logger.Warn().Msg("APP_REDIS_ADDR not set, layout cache disabled")
	}

	deps := calendar.Deps{
		Appointments:  a.store.Appointments,
		Exceptions:    a.store.Exceptions,
		Availability:  a.store.Blocks,
		Practitioners: a.store.Practitioners,
	}
	if a.cache != nil {
		deps.Cache = a.cache
	}
	a.calendar = calendar.NewService(deps, cfg.Grid, logger)
	return a, nil
}

func (a *app) close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn().Err(err).Msg("close redis")
		}
	}
	a.pool.Close()
}

func (a *app) materializer() *jobs.Materializer {
	return jobs.NewMaterializer(a.store.Rules, a.store.Blocks, a.calendar, a.cfg.Grid.Zone(), a.cfg.Jobs.HorizonDays, a.logger)
}

func serveCmd() *cobra.Command {
	var migrate bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server and the availability scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(migrate)
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", true, "apply pending migrations before serving")
	return cmd
}

func runServer(migrate bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer a.close()
	log := a.logger

	if migrate {
		if err := store.ApplyMigrations(ctx, a.pool); err != nil {
			return fmt.Errorf("apply migrations: %w", err)
		}
	}

	scheduler := jobs.NewScheduler(a.cfg.Grid.Zone(), log)
	if err := scheduler.Add(a.cfg.Jobs.MaterializeCron, a.materializer()); err != nil {
		return err
	}
	if err := scheduler.Start(); err != nil {
		return err
	}

	var layoutCache httpserver.Pinger
	if a.cache != nil {
		layoutCache = a.cache
	}
	handler, err := httpserver.NewRouter(ctx, a.cfg, httpserver.Deps{
		Logger:   log,
		DB:       a.store,
		Cache:    layoutCache,
		Verifier: auth.NewVerifier(a.cfg.Auth.JWTSecret, a.cfg.Auth.Issuer),
		API: api.NewHandler(api.Deps{
			Calendar:      a.calendar,
			Practitioners: a.store.Practitioners,
			Patients:      a.store.Patients,
			Appointments:  a.store.Appointments,
			Exceptions:    a.store.Exceptions,
			Receipts:      a.store.Receipts,
			ClinicName:    a.cfg.ClinicName,
			Logger:        log,

			LIFFGatewaySecret: a.cfg.Auth.LIFFGatewaySecret,
		}),
		UI: ui.NewHandler(a.calendar, a.cfg.ClinicName),
	})
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:         a.cfg.ListenAddr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", a.cfg.ListenAddr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			log.Error().Err(err).Msg("server error")
		}
	}
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
	if err := scheduler.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("scheduler did not stop in time")
	}
	return nil
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()
			if err := store.ApplyMigrations(cmd.Context(), a.pool); err != nil {
				return err
			}
			a.logger.Info().Msg("migrations applied")
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "List migrations that have not been applied",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()
			pending, err := store.PendingMigrations(cmd.Context(), a.pool)
			if err != nil {
				return err
			}
			if len(pending) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "up to date")
				return nil
			}
			for _, name := range pending {
				fmt.Fprintln(cmd.OutOrStdout(), "pending", name)
			}
			return nil
		},
	})
	return cmd
}

func materializeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "materialize",
		Short: "Expand availability rules into blocks once and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()
			res, err := a.materializer().Materialize(cmd.Context())
			a.logger.Info().
				Time("from", res.From).Time("to", res.To).
				Int("rules", res.Rules).Int("practitioners", res.Practitioners).
				Int("blocks", res.Blocks).Int("truncated", res.Truncated).
				Msg("availability materialized")
			return err
		},
	}
}

func tokenCmd() *cobra.Command {
	var (
		subject      string
		name         string
		role         string
		practitioner string
		ttl          time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a staff token for local development",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			staff := auth.Staff{Subject: subject, Name: name, Role: auth.Role(role)}
			if !staff.Role.Valid() {
				return fmt.Errorf("unknown role %q", role)
			}
			if practitioner != "" {
				id, err := uuid.Parse(practitioner)
				if err != nil {
					return fmt.Errorf("invalid practitioner id: %w", err)
				}
				staff.PractitionerID = &id
			}
			raw, err := auth.NewVerifier(cfg.Auth.JWTSecret, cfg.Auth.Issuer).Sign(staff, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), raw)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "dev", "token subject")
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&role, "role", string(auth.RoleReceptionist), "admin, receptionist or practitioner")
	cmd.Flags().StringVar(&practitioner, "practitioner", "", "practitioner id for practitioner tokens")
	cmd.Flags().DurationVar(&ttl, "ttl", 12*time.Hour, "token lifetime")
	return cmd
}
