package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/jw6ventures/clinicgrid/internal/grid"
)

type Config struct {
	ListenAddr string
	BaseURL    string
	Env        string
	LogLevel   string
	ClinicName string

	DB struct {
		DSN string
	}

	Redis struct {
		Addr     string
		Password string
		DB       int
		TTL      time.Duration
	}

	Auth struct {
		JWTSecret string
		Issuer    string
		// LIFFGatewaySecret is the shared secret the LINE gateway sends with
		// every forwarded request. Empty disables the LIFF endpoints.
		LIFFGatewaySecret string
	}

	Jobs struct {
		MaterializeCron string
		HorizonDays     int
	}

	Grid     grid.Config
	GridFile string

	PrometheusEnabled bool
	TrustedProxies    []string
}

// gridFile is the on-disk shape of APP_GRID_CONFIG.
type gridFile struct {
	SlotMinutes   *int           `yaml:"slot_minutes"`
	SlotHeight    *float64       `yaml:"slot_height"`
	MinHeight     *float64       `yaml:"min_height"`
	StartHour     *int           `yaml:"start_hour"`
	EndHour       *int           `yaml:"end_hour"`
	Timezone      string         `yaml:"timezone"`
	Strategy      string         `yaml:"strategy"`
	ClipIndicator *bool          `yaml:"clip_indicator"`
	Priority      map[string]int `yaml:"priority"`
}

func Load() (*Config, error) {
	// A missing .env is normal outside local development.
	if err := godotenv.Load(getenvDefault("APP_ENV_FILE", ".env")); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load env file: %w", err)
	}

	cfg := &Config{}

	cfg.ListenAddr = getenvDefault("APP_LISTEN_ADDR", ":8080")
	cfg.BaseURL = getenvDefault("APP_BASE_URL", "http://localhost:8080")
	cfg.Env = getenvDefault("APP_ENV", "production")
	cfg.LogLevel = getenvDefault("APP_LOG_LEVEL", "info")
	cfg.ClinicName = getenvDefault("APP_CLINIC_NAME", "Clinic")
	cfg.DB.DSN = os.Getenv("APP_DB_DSN")

	if cfg.DB.DSN == "" {
		host := os.Getenv("APP_DB_HOST")
		name := os.Getenv("APP_DB_NAME")
		user := os.Getenv("APP_DB_USER")
		password := os.Getenv("APP_DB_PASSWORD")
		port := getenvDefault("APP_DB_PORT", "5432")
		sslmode := getenvDefault("APP_DB_SSLMODE", "disable")

		if host != "" && name != "" && user != "" && password != "" {
			cfg.DB.DSN = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", user, password, host, port, name, sslmode)
		}
	}

	cfg.Redis.Addr = os.Getenv("APP_REDIS_ADDR")
	cfg.Redis.Password = os.Getenv("APP_REDIS_PASSWORD")
	cfg.Auth.JWTSecret = os.Getenv("APP_JWT_SECRET")
	cfg.Auth.Issuer = getenvDefault("APP_JWT_ISSUER", "clinicgrid")
	cfg.Auth.LIFFGatewaySecret = os.Getenv("APP_LIFF_GATEWAY_SECRET")
	cfg.Jobs.MaterializeCron = getenvDefault("APP_MATERIALIZE_CRON", "0 3 * * *")
	cfg.PrometheusEnabled = getenvBool("APP_PROMETHEUS_ENDPOINT_ENABLED", false)
	cfg.TrustedProxies = getenvList("APP_TRUSTED_PROXIES")
	cfg.GridFile = os.Getenv("APP_GRID_CONFIG")

	var invalid []string
	var err error
	if cfg.Redis.DB, err = getenvInt("APP_REDIS_DB", 0); err != nil {
		invalid = append(invalid, "APP_REDIS_DB")
	}
	if cfg.Redis.TTL, err = getenvDuration("APP_LAYOUT_CACHE_TTL", 10*time.Minute); err != nil {
		invalid = append(invalid, "APP_LAYOUT_CACHE_TTL")
	}
	if cfg.Jobs.HorizonDays, err = getenvInt("APP_AVAILABILITY_HORIZON_DAYS", 28); err != nil || cfg.Jobs.HorizonDays <= 0 {
		invalid = append(invalid, "APP_AVAILABILITY_HORIZON_DAYS")
	}
	if len(invalid) > 0 {
		return nil, fmt.Errorf("invalid environment values: %s", strings.Join(invalid, ", "))
	}

	if cfg.DB.DSN == "" {
		return nil, errors.New("APP_DB_DSN is required (or set APP_DB_HOST, APP_DB_NAME, APP_DB_USER, and APP_DB_PASSWORD)")
	}
	if cfg.Auth.JWTSecret == "" {
		return nil, errors.New("APP_JWT_SECRET is required")
	}
	if len(cfg.Auth.JWTSecret) < 32 {
		return nil, fmt.Errorf("APP_JWT_SECRET must be at least 32 characters long (got %d)", len(cfg.Auth.JWTSecret))
	}

	cfg.Grid, err = LoadGrid(cfg.GridFile)
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadGrid reads grid settings from path over the defaults. An empty path
// returns the defaults.
func LoadGrid(path string) (grid.Config, error) {
	g := grid.DefaultConfig()
	if path == "" {
		return g, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return g, fmt.Errorf("read grid config: %w", err)
	}
	var f gridFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return g, fmt.Errorf("parse grid config %s: %w", path, err)
	}

	if f.SlotMinutes != nil {
		g.SlotMinutes = *f.SlotMinutes
	}
	if f.SlotHeight != nil {
		g.SlotHeight = *f.SlotHeight
		// Keep the one-slot minimum unless the file overrides it.
		if f.MinHeight == nil {
			g.MinHeight = *f.SlotHeight
		}
	}
	if f.MinHeight != nil {
		g.MinHeight = *f.MinHeight
	}
	if f.StartHour != nil {
		g.StartHour = *f.StartHour
	}
	if f.EndHour != nil {
		g.EndHour = *f.EndHour
	}
	if f.Timezone != "" {
		loc, err := time.LoadLocation(f.Timezone)
		if err != nil {
			return g, fmt.Errorf("grid timezone %q: %w", f.Timezone, err)
		}
		g.Location = loc
	}
	if f.Strategy != "" {
		g.Strategy = grid.Strategy(f.Strategy)
	}
	if f.ClipIndicator != nil {
		g.ClipIndicator = *f.ClipIndicator
	}
	if len(f.Priority) > 0 {
		g.Priority = grid.DefaultPriority()
		for k, v := range f.Priority {
			g.Priority[grid.EventType(k)] = v
		}
	}

	if err := g.Validate(); err != nil {
		return g, err
	}
	return g, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		switch strings.ToLower(v) {
		case "1", "true", "yes", "on":
			return true
		case "0", "false", "no", "off":
			return false
		}
	}
	return def
}

func getenvInt(key string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}

func getenvDuration(key string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	return time.ParseDuration(v)
}

func getenvList(key string) []string {
	if v := os.Getenv(key); v != "" {
		var result []string
		for _, item := range strings.Split(v, ",") {
			if trimmed := strings.TrimSpace(item); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return nil
}
