// Package config loads service and solver settings: built-in defaults, then
// an optional YAML file, then environment variables.
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

	"nearp/internal/opt"
)

type Config struct {
	Environment string `yaml:"environment"`
	LogLevel    string `yaml:"logLevel"`

	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	RateLimit RateLimitConfig `yaml:"rateLimit"`
	Solve     SolveConfig     `yaml:"solve"`
	Solver    opt.Config      `yaml:"solver"`
	Webhooks  WebhookConfig   `yaml:"webhooks"`
	Files     FilesConfig     `yaml:"files"`
}

type ServerConfig struct {
	Port              int           `yaml:"port"`
	ReadHeaderTimeout time.Duration `yaml:"readHeaderTimeout"`
	ShutdownTimeout   time.Duration `yaml:"shutdownTimeout"`
}

type DatabaseConfig struct {
	URL     string `yaml:"url"`
	Migrate bool   `yaml:"migrate"`
}

type RedisConfig struct {
	URL string `yaml:"url"`
}

// RateLimitConfig bounds POST /v1/solve. RPS <= 0 disables the limiter.
type RateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

// SolveConfig bounds the work one API request may start. MaxVertices caps
// the network size the server builds shortest paths for.
type SolveConfig struct {
	Timeout     time.Duration `yaml:"timeout"`
	MaxPending  int           `yaml:"maxPending"`
	MaxVertices int           `yaml:"maxVertices"`
}

// WebhookConfig drives completion callbacks. An empty Secret sends them
// unsigned.
type WebhookConfig struct {
	Secret      string        `yaml:"secret"`
	MaxAttempts int           `yaml:"maxAttempts"`
	Timeout     time.Duration `yaml:"timeout"`
}

// FilesConfig holds the directories the batch command reads and writes.
type FilesConfig struct {
	Instances  string `yaml:"instances"`
	Solutions  string `yaml:"solutions"`
	Statistics string `yaml:"statistics"`
}

func Default() Config {
	return Config{
		Environment: "development",
		LogLevel:    "info",
		Server: ServerConfig{
			Port:              8080,
			ReadHeaderTimeout: 5 * time.Second,
			ShutdownTimeout:   10 * time.Second,
		},
		Database:  DatabaseConfig{Migrate: true},
		RateLimit: RateLimitConfig{RPS: 5, Burst: 10},
		Solve:     SolveConfig{Timeout: 2 * time.Minute, MaxPending: 16, MaxVertices: 2000},
		Solver:    opt.DefaultConfig(),
		Webhooks:  WebhookConfig{MaxAttempts: 5, Timeout: 5 * time.Second},
		Files: FilesConfig{
			Instances:  "instances",
			Solutions:  "solutions",
			Statistics: "statistics",
		},
	}
}

// LoadDotEnv loads .env style files into the process environment. Missing
// files are skipped; variables already set win.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// Load builds the effective configuration. An empty path skips the file
// layer; a named file that does not exist is an error.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("load config: %w", err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("load config: %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	var errs []error
	integer := func(key string, dst *int) {
		if v, ok := lookup(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	float := func(key string, dst *float64) {
		if v, ok := lookup(key); ok && v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = f
		}
	}
	duration := func(key string, dst *time.Duration) {
		if v, ok := lookup(key); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}

	str("ENVIRONMENT", &c.Environment)
	str("LOG_LEVEL", &c.LogLevel)
	integer("PORT", &c.Server.Port)
	str("DATABASE_URL", &c.Database.URL)
	if v, ok := lookup("DB_MIGRATE"); ok && v != "" {
		c.Database.Migrate = v != "false" && v != "0"
	}
	str("REDIS_URL", &c.Redis.URL)
	float("RATE_RPS", &c.RateLimit.RPS)
	integer("RATE_BURST", &c.RateLimit.Burst)
	duration("SOLVE_TIMEOUT", &c.Solve.Timeout)
	integer("SOLVE_MAX_VERTICES", &c.Solve.MaxVertices)
	integer("SOLVER_WORKERS", &c.Solver.Workers)
	integer("SOLVER_ITERATIONS", &c.Solver.Iterations)
	str("WEBHOOK_SECRET", &c.Webhooks.Secret)
	integer("WEBHOOK_MAX_ATTEMPTS", &c.Webhooks.MaxAttempts)
	return errors.Join(errs...)
}

func (c Config) Validate() error {
	var errs []error
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if c.RateLimit.RPS > 0 && c.RateLimit.Burst < 1 {
		errs = append(errs, fmt.Errorf("rateLimit.burst must be >= 1 when rps is set"))
	}
	if c.Solve.Timeout < 0 {
		errs = append(errs, fmt.Errorf("solve.timeout must be >= 0"))
	}
	if c.Solve.MaxPending < 0 {
		errs = append(errs, fmt.Errorf("solve.maxPending must be >= 0"))
	}
	if c.Solve.MaxVertices < 1 {
		errs = append(errs, fmt.Errorf("solve.maxVertices must be >= 1"))
	}
	if c.Webhooks.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("webhooks.maxAttempts must be >= 1"))
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("logLevel %q unknown", c.LogLevel))
	}
	if err := c.Solver.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("solver: %w", err))
	}
	return errors.Join(errs...)
}
