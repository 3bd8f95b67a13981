package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Environment string

const (
	Development Environment = "development"
	Production  Environment = "production"
	Test        Environment = "test"
)

// Version is reported by the health and status endpoints
const Version = "1.0.0"

// RateLimitConfig controls the per-client request window
type RateLimitConfig struct {
	Requests   int           `yaml:"requests"`
	Window     time.Duration `yaml:"window"`
	MaxClients int           `yaml:"maxClients"`
}

// FetchConfig controls article import from URLs
type FetchConfig struct {
	Timeout  time.Duration `yaml:"timeout"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
	MaxBytes int64         `yaml:"maxBytes"`
}

type Config struct {
	Env         Environment     `yaml:"environment"`
	Port        string          `yaml:"port"`
	GinMode     string          `yaml:"ginMode"`
	LogLevel    string          `yaml:"logLevel"`
	CORSOrigins []string        `yaml:"corsOrigins"`
	StaticDir   string          `yaml:"staticDir"`
	DataDir     string          `yaml:"dataDir"`
	RateLimit   RateLimitConfig `yaml:"rateLimit"`
	Fetch       FetchConfig     `yaml:"fetch"`
}

// IsProduction reports whether detailed errors and statistics must be hidden
func (c *Config) IsProduction() bool {
	return c.Env == Production
}

// Default returns the configuration used when nothing is set
func Default() *Config {
	return &Config{
		Env:      Development,
		Port:     "3000",
		LogLevel: "info",
		DataDir:  "data",
		RateLimit: RateLimitConfig{
			Requests:   100,
			Window:     time.Hour,
			MaxClients: 10000,
		},
		Fetch: FetchConfig{
			Timeout:  15 * time.Second,
			CacheTTL: 30 * time.Minute,
			MaxBytes: 5 << 20,
		},
	}
}

// LoadEnv loads .env.development first (for local development) and falls
// back to .env
func LoadEnv() {
	if err := godotenv.Load(".env.development"); err != nil {
		if err := godotenv.Load(); err != nil {
			log.Println("No .env file found, using environment variables")
		}
	}
}

// Load builds the configuration from defaults, the optional YAML file named
// by CONFIG_FILE and the environment, in increasing priority
func Load() (*Config, error) {
	LoadEnv()

	cfg := Default()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if len(cfg.CORSOrigins) == 0 {
		cfg.CORSOrigins = defaultOrigins(cfg.Env)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return nil
}

func (c *Config) applyEnv() error {
	if env := firstEnv("APP_ENV", "NODE_ENV"); env != "" {
		c.Env = parseEnvironment(env)
	}
	c.Env = parseEnvironment(string(c.Env))

	c.Port = getEnv("PORT", c.Port)
	c.GinMode = getEnv("GIN_MODE", c.GinMode)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.StaticDir = getEnv("STATIC_DIR", c.StaticDir)
	c.DataDir = getEnv("DATA_DIR", c.DataDir)

	if origins := os.Getenv("CORS_ORIGINS"); origins != "" {
		c.CORSOrigins = splitList(origins)
	}

	var err error
	if c.RateLimit.Requests, err = getEnvInt("RATE_LIMIT", c.RateLimit.Requests); err != nil {
		return err
	}
	if c.RateLimit.Window, err = getEnvDuration("RATE_WINDOW", c.RateLimit.Window); err != nil {
		return err
	}
	if c.RateLimit.MaxClients, err = getEnvInt("RATE_LIMIT_MAX_CLIENTS", c.RateLimit.MaxClients); err != nil {
		return err
	}
	if c.Fetch.Timeout, err = getEnvDuration("FETCH_TIMEOUT", c.Fetch.Timeout); err != nil {
		return err
	}
	if c.Fetch.CacheTTL, err = getEnvDuration("FETCH_CACHE_TTL", c.Fetch.CacheTTL); err != nil {
		return err
	}

	return nil
}

// Validate rejects values the server cannot run with
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("port must not be empty")
	}
	if c.RateLimit.Requests <= 0 {
		return fmt.Errorf("rate limit must be positive, got %d", c.RateLimit.Requests)
	}
	if c.RateLimit.Window <= 0 {
		return fmt.Errorf("rate window must be positive, got %s", c.RateLimit.Window)
	}
	if c.RateLimit.MaxClients <= 0 {
		return fmt.Errorf("rate limit client cap must be positive, got %d", c.RateLimit.MaxClients)
	}
	if c.Fetch.Timeout <= 0 {
		return fmt.Errorf("fetch timeout must be positive, got %s", c.Fetch.Timeout)
	}
	return nil
}

// defaultOrigins mirrors the browser origins the frontend is served from
func defaultOrigins(env Environment) []string {
	if env == Production {
		return []string{"https://your-domain.com"}
	}
	return []string{
		"http://localhost:3000",
		"http://127.0.0.1:3000",
		"http://localhost:5500",
		"http://127.0.0.1:5500",
	}
}

func parseEnvironment(envStr string) Environment {
	env := Environment(strings.ToLower(strings.TrimSpace(envStr)))

	switch env {
	case Development, Production, Test:
		return env
	default:
		return Development
	}
}

func firstEnv(keys ...string) string {
	for _, key := range keys {
		if value := os.Getenv(key); value != "" {
			return value
		}
	}
	return ""
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}

	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return n, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}

	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return d, nil
}

func splitList(value string) []string {
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
