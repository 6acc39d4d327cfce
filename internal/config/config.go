package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/guillermoBallester/colscope/internal/core/domain"
)

type Config struct {
	// Database connection.
	DatabaseURL  string
	Schema       string // schema the analyzed tables live in (default "public")
	MaxRows      int
	QueryTimeout time.Duration

	// Table set and rules.
	Tables    []string // empty means the rules file's table list
	RulesFile string   // optional path to rules YAML; empty uses the built-in rules

	// Analysis knobs. Nil thresholds defer to the rules file, then to the
	// built-in defaults.
	SampleLimit         int
	SemanticSampleLimit int
	SemanticThreshold   *float64
	NearEmptyThreshold  *float64
	MinOccurrence       *int
	Concurrency         int // 0 means PoolMaxConns

	// Logging and output.
	LogLevel slog.Level
	Output   string // "text" (default) or "json"

	// Connection pool.
	PoolMaxConns        int32         // default: 5
	PoolMinConns        int32         // default: 1
	PoolMaxConnLifetime time.Duration // default: 30m

	// Observability.
	OTelEnabled bool // enable OpenTelemetry tracing and metrics

	// CLI-only fields (not settable via env vars).
	AuditLog string // path to NDJSON audit log file
}

// Overrides holds CLI flag values that override environment variables.
// Pointer fields distinguish "not set" from zero values.
type Overrides struct {
	DatabaseURL         *string
	Schema              *string
	Tables              []string
	RulesFile           *string
	LogLevel            *string
	MaxRows             *int
	QueryTimeout        *time.Duration
	SampleLimit         *int
	SemanticSampleLimit *int
	SemanticThreshold   *float64
	NearEmptyThreshold  *float64
	MinOccurrence       *int
	Concurrency         *int
	Output              *string
	OTelEnabled         bool
	AuditLog            string

	// Connection pool overrides.
	PoolMaxConns        *int32
	PoolMinConns        *int32
	PoolMaxConnLifetime *time.Duration
}

// Load builds a Config from environment variables, then applies CLI overrides,
// then validates the result.
func Load(overrides Overrides) (*Config, error) {
	cfg := defaults()

	if err := loadEnvVars(cfg); err != nil {
		return nil, err
	}
	if err := applyOverrides(cfg, overrides); err != nil {
		return nil, err
	}
	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ApplyTo copies the analysis knobs onto s. Thresholds are copied only when
// they were set explicitly, so a rules file applied earlier keeps its values.
func (c *Config) ApplyTo(s *domain.Settings) {
	s.SampleLimit = c.SampleLimit
	s.SemanticSampleLimit = c.SemanticSampleLimit
	if c.SemanticThreshold != nil {
		s.SemanticThreshold = *c.SemanticThreshold
	}
	if c.NearEmptyThreshold != nil {
		s.NearEmptyThreshold = *c.NearEmptyThreshold
	}
	if c.MinOccurrence != nil {
		s.MinOccurrence = *c.MinOccurrence
	}
}

// Workers returns the bound on concurrent store reads.
func (c *Config) Workers() int {
	if c.Concurrency > 0 {
		return c.Concurrency
	}
	return int(c.PoolMaxConns)
}

// defaults returns a Config populated with default values.
func defaults() *Config {
	return &Config{
		DatabaseURL:         os.Getenv("DATABASE_URL"),
		Schema:              "public",
		MaxRows:             100,
		QueryTimeout:        30 * time.Second,
		SampleLimit:         domain.DefaultSampleLimit,
		SemanticSampleLimit: domain.DefaultSemanticSampleLimit,
		Output:              "text",
		PoolMaxConns:        5,
		PoolMinConns:        1,
		PoolMaxConnLifetime: 30 * time.Minute,
	}
}

// loadEnvVars reads all supported environment variables into cfg.
func loadEnvVars(cfg *Config) error {
	if v := os.Getenv("SCHEMA"); v != "" {
		cfg.Schema = v
	}

	if v := os.Getenv("TABLES"); v != "" {
		cfg.Tables = splitList(v)
	}

	cfg.RulesFile = os.Getenv("RULES_FILE")

	var err error
	if cfg.MaxRows, err = envPositiveInt("MAX_ROWS", cfg.MaxRows); err != nil {
		return err
	}
	if cfg.SampleLimit, err = envPositiveInt("SAMPLE_LIMIT", cfg.SampleLimit); err != nil {
		return err
	}
	if cfg.SemanticSampleLimit, err = envPositiveInt("SEMANTIC_SAMPLE_LIMIT", cfg.SemanticSampleLimit); err != nil {
		return err
	}
	if cfg.Concurrency, err = envPositiveInt("CONCURRENCY", cfg.Concurrency); err != nil {
		return err
	}

	if v := os.Getenv("SHARED_MIN_OCCURRENCE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return fmt.Errorf("invalid SHARED_MIN_OCCURRENCE value %q: must be a positive integer", v)
		}
		cfg.MinOccurrence = &n
	}

	if cfg.SemanticThreshold, err = envRatio("SEMANTIC_THRESHOLD"); err != nil {
		return err
	}
	if cfg.NearEmptyThreshold, err = envRatio("NEAR_EMPTY_THRESHOLD"); err != nil {
		return err
	}

	if v := os.Getenv("QUERY_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid QUERY_TIMEOUT value %q: %w", v, err)
		}
		cfg.QueryTimeout = d
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		level, err := parseLogLevel(v)
		if err != nil {
			return err
		}
		cfg.LogLevel = level
	}

	if v := os.Getenv("OUTPUT"); v != "" {
		cfg.Output = v
	}

	if v := os.Getenv("OTEL_ENABLED"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid OTEL_ENABLED value %q: %w", v, err)
		}
		cfg.OTelEnabled = b
	}

	if err := loadPoolEnvVars(cfg); err != nil {
		return err
	}

	return nil
}

// loadPoolEnvVars reads connection pool environment variables.
func loadPoolEnvVars(cfg *Config) error {
	if v := os.Getenv("POOL_MAX_CONNS"); v != "" {
		n, err := strconv.ParseInt(v, 10, 32)
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid POOL_MAX_CONNS value %q: must be a positive integer", v)
		}
		cfg.PoolMaxConns = int32(n)
	}
	if v := os.Getenv("POOL_MIN_CONNS"); v != "" {
		n, err := strconv.ParseInt(v, 10, 32)
		if err != nil || n < 0 {
			return fmt.Errorf("invalid POOL_MIN_CONNS value %q: must be a non-negative integer", v)
		}
		cfg.PoolMinConns = int32(n)
	}
	if v := os.Getenv("POOL_MAX_CONN_LIFETIME"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid POOL_MAX_CONN_LIFETIME value %q: %w", v, err)
		}
		cfg.PoolMaxConnLifetime = d
	}
	return nil
}

// applyOverrides applies CLI flag values on top of the env-loaded config.
func applyOverrides(cfg *Config, o Overrides) error {
	if o.DatabaseURL != nil {
		cfg.DatabaseURL = *o.DatabaseURL
	}
	if o.Schema != nil {
		cfg.Schema = *o.Schema
	}
	if len(o.Tables) > 0 {
		cfg.Tables = o.Tables
	}
	if o.RulesFile != nil {
		cfg.RulesFile = *o.RulesFile
	}
	if o.LogLevel != nil {
		level, err := parseLogLevel(*o.LogLevel)
		if err != nil {
			return err
		}
		cfg.LogLevel = level
	}
	if o.MaxRows != nil {
		if *o.MaxRows <= 0 {
			return fmt.Errorf("invalid --max-rows value: must be a positive integer")
		}
		cfg.MaxRows = *o.MaxRows
	}
	if o.QueryTimeout != nil {
		cfg.QueryTimeout = *o.QueryTimeout
	}
	if o.Output != nil {
		cfg.Output = *o.Output
	}

	if err := applyAnalysisOverrides(cfg, o); err != nil {
		return err
	}
	if err := applyPoolOverrides(cfg, o); err != nil {
		return err
	}

	cfg.AuditLog = o.AuditLog
	cfg.OTelEnabled = cfg.OTelEnabled || o.OTelEnabled

	return nil
}

// applyAnalysisOverrides applies sampling and threshold CLI flag overrides.
func applyAnalysisOverrides(cfg *Config, o Overrides) error {
	if o.SampleLimit != nil {
		if *o.SampleLimit <= 0 {
			return fmt.Errorf("invalid --sample-limit value: must be a positive integer")
		}
		cfg.SampleLimit = *o.SampleLimit
	}
	if o.SemanticSampleLimit != nil {
		if *o.SemanticSampleLimit <= 0 {
			return fmt.Errorf("invalid --semantic-sample-limit value: must be a positive integer")
		}
		cfg.SemanticSampleLimit = *o.SemanticSampleLimit
	}
	if o.Concurrency != nil {
		if *o.Concurrency <= 0 {
			return fmt.Errorf("invalid --concurrency value: must be a positive integer")
		}
		cfg.Concurrency = *o.Concurrency
	}
	if o.SemanticThreshold != nil {
		cfg.SemanticThreshold = o.SemanticThreshold
	}
	if o.NearEmptyThreshold != nil {
		cfg.NearEmptyThreshold = o.NearEmptyThreshold
	}
	if o.MinOccurrence != nil {
		cfg.MinOccurrence = o.MinOccurrence
	}
	return nil
}

// applyPoolOverrides applies connection pool CLI flag overrides.
func applyPoolOverrides(cfg *Config, o Overrides) error {
	if o.PoolMaxConns != nil {
		if *o.PoolMaxConns <= 0 {
			return fmt.Errorf("invalid --pool-max-conns value: must be a positive integer")
		}
		cfg.PoolMaxConns = *o.PoolMaxConns
	}
	if o.PoolMinConns != nil {
		if *o.PoolMinConns < 0 {
			return fmt.Errorf("invalid --pool-min-conns value: must be a non-negative integer")
		}
		cfg.PoolMinConns = *o.PoolMinConns
	}
	if o.PoolMaxConnLifetime != nil {
		cfg.PoolMaxConnLifetime = *o.PoolMaxConnLifetime
	}
	return nil
}

// validate checks cross-field constraints on the final config.
func validate(cfg *Config) error {
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required (set via env var or --database-url flag)")
	}

	if cfg.Schema == "" {
		return fmt.Errorf("SCHEMA must not be empty")
	}

	switch cfg.Output {
	case "text", "json":
	default:
		return fmt.Errorf("invalid OUTPUT value %q: must be \"text\" or \"json\"", cfg.Output)
	}

	if err := checkRatio("SEMANTIC_THRESHOLD", cfg.SemanticThreshold); err != nil {
		return err
	}
	if err := checkRatio("NEAR_EMPTY_THRESHOLD", cfg.NearEmptyThreshold); err != nil {
		return err
	}
	if cfg.MinOccurrence != nil && *cfg.MinOccurrence < 1 {
		return fmt.Errorf("SHARED_MIN_OCCURRENCE (%d) must be at least 1", *cfg.MinOccurrence)
	}

	if cfg.QueryTimeout <= 0 {
		return fmt.Errorf("QUERY_TIMEOUT must be positive, got %s", cfg.QueryTimeout)
	}

	if cfg.PoolMinConns > cfg.PoolMaxConns {
		return fmt.Errorf("POOL_MIN_CONNS (%d) must not exceed POOL_MAX_CONNS (%d)", cfg.PoolMinConns, cfg.PoolMaxConns)
	}

	return nil
}

func envPositiveInt(name string, fallback int) (int, error) {
	v := os.Getenv(name)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s value %q: must be a positive integer", name, v)
	}
	return n, nil
}

func envRatio(name string) (*float64, error) {
	v := os.Getenv(name)
	if v == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", name, v, err)
	}
	return &f, nil
}

func checkRatio(name string, v *float64) error {
	if v != nil && (*v < 0 || *v > 1) {
		return fmt.Errorf("%s (%v) must be within [0, 1]", name, *v)
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL value %q: must be debug, info, warn, or error", s)
	}
}
