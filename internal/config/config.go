package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	TokenStoreSQLite   = "sqlite3"
	TokenStorePostgres = "pgx"
	TokenStoreFile     = "file"
)

type Config struct {
	LogLevel string
	UserID   string

	BackendURL       string
	BackendQueryPath string
	BackendTimeout   time.Duration
	BackendRPS       float64
	BackendBurst     int

	BackendRetryMaxAttempts int
	BackendBreakerEnabled   bool
	BackendBreakerOpen      time.Duration

	FallbackEnabled   bool
	MaxFileSize       int64
	UploadConcurrency int

	CallbackAddr      string
	CallbackRateLimit float64
	AuthWindowTimeout time.Duration
	// AuthAllowedOrigins may post to the callback listener; defaults to the
	// backend origin, which serves the authorization page.
	AuthAllowedOrigins []string

	DemoMode bool

	TokenStoreDriver string
	TokenStoreDSN    string
	TokenStorePath   string

	NATSURL           string
	NATSSubjectPrefix string

	ExportDir string
}

// Load reads an optional .env file, then an optional YAML overlay named by
// DOCASSIST_CONFIG, then the process environment. Environment variables win
// over the overlay.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	overlay, err := readOverlay(os.Getenv("DOCASSIST_CONFIG"))
	if err != nil {
		return Config{}, err
	}
	src := source{overlay: overlay}
	backendURL := src.mustEnv("BACKEND_URL", "http://localhost:8000")

	return Config{
		LogLevel: src.mustEnv("LOG_LEVEL", "info"),
		UserID:   src.mustEnv("USER_ID", "default_user"),

		BackendURL:       backendURL,
		BackendQueryPath: src.mustEnv("BACKEND_QUERY_PATH", "/analyze"),
		BackendTimeout:   src.mustEnvDuration("BACKEND_TIMEOUT", 60*time.Second),
		BackendRPS:       src.mustEnvFloat("BACKEND_RATE_LIMIT_RPS", 0),
		BackendBurst:     src.mustEnvInt("BACKEND_RATE_LIMIT_BURST", 4),

		BackendRetryMaxAttempts: src.mustEnvInt("BACKEND_RETRY_MAX_ATTEMPTS", 1),
		BackendBreakerEnabled:   src.mustEnvBool("BACKEND_BREAKER_ENABLED", true),
		BackendBreakerOpen:      src.mustEnvDuration("BACKEND_BREAKER_OPEN_TIMEOUT", 15*time.Second),

		FallbackEnabled:   src.mustEnvBool("FALLBACK_ENABLED", true),
		MaxFileSize:       int64(src.mustEnvInt("MAX_FILE_SIZE", 10<<20)),
		UploadConcurrency: src.mustEnvInt("UPLOAD_CONCURRENCY", 4),

		CallbackAddr:       src.mustEnv("CALLBACK_ADDR", "127.0.0.1:8765"),
		CallbackRateLimit:  src.mustEnvFloat("CALLBACK_RATE_LIMIT_RPS", 20),
		AuthWindowTimeout:  src.mustEnvDuration("AUTH_WINDOW_TIMEOUT", 5*time.Minute),
		AuthAllowedOrigins: src.mustEnvList("AUTH_ALLOWED_ORIGINS", []string{backendURL}),

		DemoMode: src.mustEnvBool("DEMO_MODE", false),

		TokenStoreDriver: src.mustEnv("TOKEN_STORE_DRIVER", TokenStoreSQLite),
		TokenStoreDSN:    src.mustEnv("TOKEN_STORE_DSN", "./data/docassist.db"),
		TokenStorePath:   src.mustEnv("TOKEN_STORE_PATH", "./data"),

		NATSURL:           src.mustEnv("NATS_URL", ""),
		NATSSubjectPrefix: src.mustEnv("NATS_SUBJECT_PREFIX", "docassist.session"),

		ExportDir: src.mustEnv("EXPORT_DIR", "./exports"),
	}, nil
}

// readOverlay parses a flat YAML mapping keyed by the environment variable
// names, e.g. "BACKEND_URL: http://backend:8000".
func readOverlay(path string) (map[string]string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config overlay: %w", err)
	}
	var values map[string]any
	if err := yaml.Unmarshal(raw, &values); err != nil {
		return nil, fmt.Errorf("parse config overlay %s: %w", path, err)
	}
	out := make(map[string]string, len(values))
	for k, v := range values {
		if v == nil {
			continue
		}
		out[strings.ToUpper(strings.TrimSpace(k))] = fmt.Sprint(v)
	}
	return out, nil
}

type source struct {
	overlay map[string]string
}

func (s source) lookup(key string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return s.overlay[key]
}

func (s source) mustEnv(key, fallback string) string {
	v := s.lookup(key)
	if v == "" {
		return fallback
	}
	return v
}

func (s source) mustEnvInt(key string, fallback int) int {
	v := s.lookup(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func (s source) mustEnvFloat(key string, fallback float64) float64 {
	v := s.lookup(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func (s source) mustEnvBool(key string, fallback bool) bool {
	v := s.lookup(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func (s source) mustEnvDuration(key string, fallback time.Duration) time.Duration {
	v := s.lookup(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func (s source) mustEnvList(key string, fallback []string) []string {
	v := s.lookup(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
