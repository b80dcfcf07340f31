// Package config provides unified configuration loading for giftlab.
// Supports YAML files, .env files, environment variables, and programmatic overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for giftlab.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Database      DatabaseConfig      `yaml:"database"`
	Cache         CacheConfig         `yaml:"cache"`
	Search        SearchConfig        `yaml:"search"`
	Recommend     RecommendConfig     `yaml:"recommend"`
	Generation    GenerationConfig    `yaml:"generation"`
	Loader        LoaderConfig        `yaml:"loader"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host             string        `yaml:"host"`
	Port             int           `yaml:"port"`
	ReadTimeout      time.Duration `yaml:"read_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	IdleTimeout      time.Duration `yaml:"idle_timeout"`
	GracefulShutdown time.Duration `yaml:"graceful_shutdown"`
	AllowedOrigins   []string      `yaml:"allowed_origins"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	Driver   string         `yaml:"driver"` // sqlite or postgres
	SQLite   SQLiteConfig   `yaml:"sqlite"`
	Postgres PostgresConfig `yaml:"postgres"`
}

// SQLiteConfig holds SQLite-specific settings.
type SQLiteConfig struct {
	Path         string `yaml:"path"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	JournalMode  string `yaml:"journal_mode"`
}

// PostgresConfig holds Postgres-specific settings.
type PostgresConfig struct {
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// CacheConfig holds settings for the remote generation response cache.
type CacheConfig struct {
	Driver     string        `yaml:"driver"` // memory or redis
	TTL        time.Duration `yaml:"ttl"`
	MaxEntries int           `yaml:"max_entries"`
	Redis      RedisConfig   `yaml:"redis"`
}

// RedisConfig holds Redis-specific settings.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
	Prefix   string `yaml:"prefix"`
}

// SearchConfig holds product search settings.
type SearchConfig struct {
	DefaultLimit int `yaml:"default_limit"`
	// RefreshInterval rebuilds the index on the next query once the current
	// snapshot is older than this. Zero keeps a snapshot until invalidated.
	RefreshInterval time.Duration `yaml:"refresh_interval"`
	// WatchDatabase invalidates the index when the SQLite file changes.
	WatchDatabase bool `yaml:"watch_database"`
}

// RecommendConfig holds recommendation scoring settings.
type RecommendConfig struct {
	DefaultLimit int           `yaml:"default_limit"`
	Weights      WeightsConfig `yaml:"weights"`
}

// WeightsConfig holds the linear blend applied by the scorer.
type WeightsConfig struct {
	Rating   float64 `yaml:"rating"`
	Discount float64 `yaml:"discount"`
	Price    float64 `yaml:"price"`
	Persona  float64 `yaml:"persona"`
	Delivery float64 `yaml:"delivery"`
}

// GenerationConfig holds remote text generation settings.
// Azure takes priority when both credential sets are complete.
type GenerationConfig struct {
	Timeout        time.Duration `yaml:"timeout"`
	CacheResponses bool          `yaml:"cache_responses"`
	Azure          AzureConfig   `yaml:"azure"`
	OpenAI         OpenAIConfig  `yaml:"openai"`
}

// AzureConfig holds Azure OpenAI credentials.
type AzureConfig struct {
	Endpoint   string `yaml:"endpoint"`
	APIKey     string `yaml:"api_key"`
	Deployment string `yaml:"deployment"`
	APIVersion string `yaml:"api_version"`
}

// OpenAIConfig holds OpenAI-compatible credentials.
type OpenAIConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
}

// LoaderConfig holds CSV bootstrap settings.
type LoaderConfig struct {
	DataDir  string            `yaml:"data_dir"`
	Datasets map[string]string `yaml:"datasets"` // table name -> CSV path relative to DataDir
}

// ObservabilityConfig holds logging settings.
type ObservabilityConfig struct {
	LogLevel    string `yaml:"log_level"`
	LogFormat   string `yaml:"log_format"`
	ServiceName string `yaml:"service_name"`
}

// Load reads configuration from a YAML file and applies environment overrides.
// A .env file in the working directory or next to the config file is loaded
// first; variables already present in the environment win.
func Load(path string) (*Config, error) {
	loadDotEnv(path)

	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}

		if cfg.Loader.DataDir != "" {
			cfg.Loader.DataDir = ResolveRelativePath(path, cfg.Loader.DataDir)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// DefaultConfig returns a configuration with sensible defaults for development.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:             "0.0.0.0",
			Port:             8090,
			ReadTimeout:      30 * time.Second,
			WriteTimeout:     30 * time.Second,
			IdleTimeout:      120 * time.Second,
			GracefulShutdown: 10 * time.Second,
			AllowedOrigins:   []string{"*"},
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			SQLite: SQLiteConfig{
				Path:         "valentines.db",
				MaxOpenConns: 1,
				JournalMode:  "WAL",
			},
			Postgres: PostgresConfig{
				MaxOpenConns:    25,
				MaxIdleConns:    5,
				ConnMaxLifetime: 5 * time.Minute,
			},
		},
		Cache: CacheConfig{
			Driver:     "memory",
			TTL:        30 * time.Minute,
			MaxEntries: 1000,
			Redis: RedisConfig{
				Addr:     "localhost:6379",
				DB:       0,
				PoolSize: 10,
				Prefix:   "giftlab:",
			},
		},
		Search: SearchConfig{
			DefaultLimit: 8,
		},
		Recommend: RecommendConfig{
			DefaultLimit: 5,
			Weights: WeightsConfig{
				Rating:   0.45,
				Discount: 0.20,
				Price:    0.20,
				Persona:  0.10,
				Delivery: 0.05,
			},
		},
		Generation: GenerationConfig{
			Timeout:        20 * time.Second,
			CacheResponses: true,
			Azure: AzureConfig{
				APIVersion: "2024-02-15-preview",
			},
			OpenAI: OpenAIConfig{
				BaseURL: "https://api.openai.com/v1",
				Model:   "gpt-4o-mini",
			},
		},
		Loader: LoaderConfig{
			DataDir:  "data",
			Datasets: DefaultDatasets(),
		},
		Observability: ObservabilityConfig{
			LogLevel:    "info",
			LogFormat:   "json",
			ServiceName: "giftlab",
		},
	}
}

// DefaultDatasets maps each table to its CSV file under the data directory.
func DefaultDatasets() map[string]string {
	return map[string]string{
		"dim_customer":         "cupid_chocolate_global/data/DimCustomer.csv",
		"dim_product":          "cupid_chocolate_global/data/DimProduct.csv",
		"fact_sales":           "cupid_chocolate_global/data/FactSales.csv",
		"gift_recommender":     "gifts/data/GiftRecommender.csv",
		"supply_chain":         "cupid_supply_chain/data/dataset_cupid_supply_chain.csv",
		"matchmaking":          "cupid_matchmaking/data/dataset_cupid_matchmaking.csv",
		"global_routing":       "cupid_global_routing/data/dataset_cupid_global_routing.csv",
		"love_notes_telemetry": "love_notes_telemetry/data/dataset_love_notes_telemetry.csv",
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Database.Driver != "sqlite" && c.Database.Driver != "postgres" {
		return fmt.Errorf("invalid database driver: %s", c.Database.Driver)
	}

	if c.Database.Driver == "postgres" && c.Database.Postgres.DSN == "" {
		return fmt.Errorf("postgres driver requires a dsn")
	}

	if c.Cache.Driver != "memory" && c.Cache.Driver != "redis" {
		return fmt.Errorf("invalid cache driver: %s", c.Cache.Driver)
	}

	if c.Search.DefaultLimit < 1 || c.Search.DefaultLimit > 100 {
		return fmt.Errorf("search default_limit must be between 1 and 100")
	}

	if c.Search.RefreshInterval < 0 {
		return fmt.Errorf("search refresh_interval must not be negative")
	}

	if c.Recommend.DefaultLimit < 1 || c.Recommend.DefaultLimit > 100 {
		return fmt.Errorf("recommend default_limit must be between 1 and 100")
	}

	w := c.Recommend.Weights
	if w.Rating < 0 || w.Discount < 0 || w.Price < 0 || w.Persona < 0 || w.Delivery < 0 {
		return fmt.Errorf("recommend weights must not be negative")
	}
	if sum := w.Rating + w.Discount + w.Price + w.Persona + w.Delivery; sum > 1.0000001 {
		return fmt.Errorf("recommend weights sum to %.3f, must not exceed 1", sum)
	}

	if c.Generation.Timeout <= 0 {
		return fmt.Errorf("generation timeout must be positive")
	}

	return nil
}

// DatabaseDSN returns the appropriate database connection string.
func (c *Config) DatabaseDSN() string {
	if c.Database.Driver == "sqlite" {
		return c.Database.SQLite.Path
	}
	return c.Database.Postgres.DSN
}

// AzureConfigured reports whether every Azure credential is present.
func (g GenerationConfig) AzureConfigured() bool {
	return g.Azure.Endpoint != "" && g.Azure.APIKey != "" && g.Azure.Deployment != ""
}

// OpenAIConfigured reports whether an OpenAI key is present.
func (g GenerationConfig) OpenAIConfigured() bool {
	return g.OpenAI.APIKey != ""
}

// loadDotEnv loads .env files without overriding variables that are already set.
func loadDotEnv(configPath string) {
	candidates := []string{".env"}
	if configPath != "" {
		candidates = append(candidates, filepath.Join(filepath.Dir(configPath), ".env"))
	}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			_ = godotenv.Load(p)
		}
	}
}

// applyEnvOverrides applies environment variable overrides to config.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}

	if v := os.Getenv("SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}

	if v := os.Getenv("DATABASE_URL"); v != "" {
		if strings.HasPrefix(v, "sqlite:") {
			cfg.Database.Driver = "sqlite"
			cfg.Database.SQLite.Path = strings.TrimPrefix(v, "sqlite:")
		} else if strings.HasPrefix(v, "postgres") {
			cfg.Database.Driver = "postgres"
			cfg.Database.Postgres.DSN = v
		}
	}

	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Cache.Driver = "redis"
		cfg.Cache.Redis.Addr = strings.TrimPrefix(v, "redis://")
	}

	if v := os.Getenv("SEARCH_REFRESH_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Search.RefreshInterval = d
		}
	}

	if v := os.Getenv("SEARCH_WATCH_DATABASE"); v != "" {
		cfg.Search.WatchDatabase = v == "true" || v == "1"
	}

	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.Loader.DataDir = v
	}

	if v := os.Getenv("AZURE_OPENAI_ENDPOINT"); v != "" {
		cfg.Generation.Azure.Endpoint = v
	}

	if v := os.Getenv("AZURE_OPENAI_API_KEY"); v != "" {
		cfg.Generation.Azure.APIKey = v
	}

	if v := os.Getenv("AZURE_OPENAI_DEPLOYMENT"); v != "" {
		cfg.Generation.Azure.Deployment = v
	}

	if v := os.Getenv("AZURE_OPENAI_API_VERSION"); v != "" {
		cfg.Generation.Azure.APIVersion = v
	}

	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.Generation.OpenAI.APIKey = v
	}

	if v := os.Getenv("OPENAI_BASE_URL"); v != "" {
		cfg.Generation.OpenAI.BaseURL = v
	}

	if v := os.Getenv("OPENAI_MODEL"); v != "" {
		cfg.Generation.OpenAI.Model = v
	}

	if v := os.Getenv("GENERATION_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Generation.Timeout = d
		}
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Observability.LogLevel = v
	}

	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Observability.LogFormat = v
	}
}

// ResolveRelativePath resolves a path relative to the config file location.
func ResolveRelativePath(configPath, targetPath string) string {
	if filepath.IsAbs(targetPath) {
		return targetPath
	}
	configDir := filepath.Dir(configPath)
	return filepath.Join(configDir, targetPath)
}
