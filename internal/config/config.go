// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes application settings
// such as server timeouts, logging, storage backends, authentication, rate
// limiting, and observability.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "go-messages-api")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// Storage backends accepted by STORE_BACKEND.
const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendFile     = "file"
	BackendMemory   = "memory"
)

// StoreConfig selects and configures the persistence backend.
type StoreConfig struct {
	Backend     string        // STORE_BACKEND: sqlite|postgres|file|memory
	DBPath      string        // DB_PATH (sqlite)
	PostgresDSN string        // POSTGRES_DSN (postgres)
	TablePrefix string        // POSTGRES_TABLE_PREFIX (postgres), e.g. "chat_"
	DataDir     string        // DATA_DIR (file)
	RedisAddr   string        // REDIS_ADDR; empty disables the read cache
	CacheTTL    time.Duration // CACHE_TTL
}

// AuthConfig controls bearer-token protection of the write and list routes.
type AuthConfig struct {
	Enabled      bool          // AUTH_ENABLED
	Username     string        // AUTH_USERNAME
	PasswordHash string        // AUTH_PASSWORD_HASH (bcrypt)
	JWTSecret    string        // AUTH_JWT_SECRET (>= 16 bytes)
	TokenTTL     time.Duration // AUTH_TOKEN_TTL
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 20s
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test
	ShutdownTimeout   time.Duration // graceful drain budget

	// Logging / Docs
	LogLevel       string // debug|info|warn|error|fatal|panic
	LogPretty      bool   // pretty console logs in dev
	SwaggerEnabled bool   // enable Swagger UI route
	APIBasePath    string // base path for API routes

	// Storage
	Store StoreConfig

	// Limits
	MaxTextRunes int  // longest accepted message text
	GzipEnabled  bool // compress responses

	// Auth
	Auth AuthConfig

	// Rate limiting
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Observability
	OTEL OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		// Server
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),
		ShutdownTimeout:   getdur("SHUTDOWN_TIMEOUT", 10*time.Second),

		// Logging / Docs
		LogLevel:       strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:      getbool("LOG_PRETTY", false),
		SwaggerEnabled: getbool("SWAGGER_ENABLED", false),
		APIBasePath:    normalizeBasePath(getenv("API_BASE_PATH", "/api/v1")),

		// Storage
		Store: StoreConfig{
			Backend:     strings.ToLower(strings.TrimSpace(getenv("STORE_BACKEND", BackendSQLite))),
			DBPath:      getenv("DB_PATH", "app.db"),
			PostgresDSN: getenv("POSTGRES_DSN", ""),
			TablePrefix: strings.TrimSpace(getenv("POSTGRES_TABLE_PREFIX", "")),
			DataDir:     getenv("DATA_DIR", "data"),
			RedisAddr:   strings.TrimSpace(getenv("REDIS_ADDR", "")),
			CacheTTL:    getdur("CACHE_TTL", 30*time.Second),
		},

		// Limits
		MaxTextRunes: getint("MAX_TEXT_RUNES", 4000),
		GzipEnabled:  getbool("GZIP_ENABLED", true),

		// Auth
		Auth: AuthConfig{
			Enabled:      getbool("AUTH_ENABLED", false),
			Username:     getenv("AUTH_USERNAME", ""),
			PasswordHash: getenv("AUTH_PASSWORD_HASH", ""),
			JWTSecret:    getenv("AUTH_JWT_SECRET", ""),
			TokenTTL:     getdur("AUTH_TOKEN_TTL", time.Hour),
		},

		// Rate limiting
		RateRPS:   getfloat("RATE_RPS", 5.0),
		RateBurst: getint("RATE_BURST", 10),

		// Web protection
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "go-messages-api"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return cfg, errors.New("MAX_HEADER_BYTES must be > 0")
	}
	if cfg.ShutdownTimeout <= 0 {
		return cfg, errors.New("SHUTDOWN_TIMEOUT must be > 0")
	}
	switch cfg.Store.Backend {
	case BackendSQLite:
		if strings.TrimSpace(cfg.Store.DBPath) == "" {
			return cfg, errors.New("DB_PATH must not be empty")
		}
	case BackendPostgres:
		if strings.TrimSpace(cfg.Store.PostgresDSN) == "" {
			return cfg, errors.New("POSTGRES_DSN must be set when STORE_BACKEND=postgres")
		}
	case BackendFile:
		if strings.TrimSpace(cfg.Store.DataDir) == "" {
			return cfg, errors.New("DATA_DIR must not be empty")
		}
	case BackendMemory:
	default:
		return cfg, errors.New("STORE_BACKEND must be one of: sqlite, postgres, file, memory")
	}
	if cfg.Store.RedisAddr != "" && cfg.Store.CacheTTL <= 0 {
		return cfg, errors.New("CACHE_TTL must be > 0")
	}
	if cfg.MaxTextRunes < 1 {
		return cfg, errors.New("MAX_TEXT_RUNES must be >= 1")
	}
	if cfg.Auth.Enabled {
		if strings.TrimSpace(cfg.Auth.Username) == "" || cfg.Auth.PasswordHash == "" {
			return cfg, errors.New("AUTH_USERNAME and AUTH_PASSWORD_HASH are required when AUTH_ENABLED")
		}
		if len(cfg.Auth.JWTSecret) < 16 {
			return cfg, errors.New("AUTH_JWT_SECRET must be at least 16 bytes")
		}
		if cfg.Auth.TokenTTL <= 0 {
			return cfg, errors.New("AUTH_TOKEN_TTL must be > 0")
		}
	}
	if cfg.RateRPS < 0 {
		return cfg, errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return cfg, errors.New("RATE_BURST must be >= 1")
	}
	if cfg.Security.HSTSMaxAge < 0 {
		return cfg, errors.New("HSTS_MAX_AGE must be >= 0")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}
	return cfg, nil
}

// ---- helpers (no external deps) ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// normalizeBasePath ensures leading '/' and strips trailing '/' (except root).
func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
	}
	return p
}
