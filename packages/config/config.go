package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	MongoURI       string
	DatabaseName   string
	CollectionName string
	DataFile       string

	AnthropicAPIKey string
	AnthropicModel  string

	UserAgent       string
	FetchTimeout    time.Duration
	MaxRetries      int
	RetryBaseDelay  time.Duration
	MaxPages        int
	CrawlDelay      time.Duration
	OrgDelay        time.Duration
	MaxContentChars int
	CandidateCap    int

	LogFile     string
	LogLevel    string
	MetricsAddr string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	CheckpointKey string
	UseCheckpoint bool
}

// fileConfig mirrors the optional config.yaml. Pointers keep "absent" apart
// from explicit zero values; durations are written as Go duration strings
// ("15s", "250ms") since yaml cannot decode those into time.Duration
// directly.
type fileConfig struct {
	MongoURI        *string `yaml:"mongo_uri"`
	DatabaseName    *string `yaml:"database_name"`
	CollectionName  *string `yaml:"collection_name"`
	DataFile        *string `yaml:"data_file"`
	AnthropicModel  *string `yaml:"anthropic_model"`
	UserAgent       *string `yaml:"user_agent"`
	FetchTimeout    *string `yaml:"fetch_timeout"`
	MaxRetries      *int    `yaml:"max_retries"`
	RetryBaseDelay  *string `yaml:"retry_base_delay"`
	MaxPages        *int    `yaml:"max_pages"`
	CrawlDelay      *string `yaml:"crawl_delay"`
	OrgDelay        *string `yaml:"org_delay"`
	MaxContentChars *int    `yaml:"max_content_chars"`
	CandidateCap    *int    `yaml:"candidate_cap"`
	LogFile         *string `yaml:"log_file"`
	LogLevel        *string `yaml:"log_level"`
	MetricsAddr     *string `yaml:"metrics_addr"`
	RedisAddr       *string `yaml:"redis_addr"`
	RedisDB         *int    `yaml:"redis_db"`
	CheckpointKey   *string `yaml:"checkpoint_key"`
	UseCheckpoint   *bool   `yaml:"use_checkpoint"`
}

func (f fileConfig) apply(cfg *Config) error {
	setIf(&cfg.MongoURI, f.MongoURI)
	setIf(&cfg.DatabaseName, f.DatabaseName)
	setIf(&cfg.CollectionName, f.CollectionName)
	setIf(&cfg.DataFile, f.DataFile)
	setIf(&cfg.AnthropicModel, f.AnthropicModel)
	setIf(&cfg.UserAgent, f.UserAgent)
	setIf(&cfg.MaxRetries, f.MaxRetries)
	setIf(&cfg.MaxPages, f.MaxPages)
	setIf(&cfg.MaxContentChars, f.MaxContentChars)
	setIf(&cfg.CandidateCap, f.CandidateCap)
	setIf(&cfg.LogFile, f.LogFile)
	setIf(&cfg.LogLevel, f.LogLevel)
	setIf(&cfg.MetricsAddr, f.MetricsAddr)
	setIf(&cfg.RedisAddr, f.RedisAddr)
	setIf(&cfg.RedisDB, f.RedisDB)
	setIf(&cfg.CheckpointKey, f.CheckpointKey)
	setIf(&cfg.UseCheckpoint, f.UseCheckpoint)

	for _, d := range []struct {
		name string
		raw  *string
		dst  *time.Duration
	}{
		{"fetch_timeout", f.FetchTimeout, &cfg.FetchTimeout},
		{"retry_base_delay", f.RetryBaseDelay, &cfg.RetryBaseDelay},
		{"crawl_delay", f.CrawlDelay, &cfg.CrawlDelay},
		{"org_delay", f.OrgDelay, &cfg.OrgDelay},
	} {
		if d.raw == nil {
			continue
		}
		v, err := time.ParseDuration(*d.raw)
		if err != nil {
			return fmt.Errorf("%s: %w", d.name, err)
		}
		*d.dst = v
	}
	return nil
}

func setIf[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

// Load builds the configuration from, in increasing precedence:
// built-in defaults, an optional config.yaml, then environment variables
// (a .env file is loaded first if present).
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := defaults()

	if data, err := os.ReadFile(configPath()); err == nil {
		var file fileConfig
		if err := yaml.Unmarshal(data, &file); err != nil {
			return cfg, fmt.Errorf("parsing %s: %w", configPath(), err)
		}
		if err := file.apply(&cfg); err != nil {
			return cfg, fmt.Errorf("parsing %s: %w", configPath(), err)
		}
	}

	cfg.MongoURI = getEnv("ANAJOBS_MONGODB_URI", cfg.MongoURI)
	cfg.DatabaseName = getEnv("ANAJOBS_DATABASE_NAME", cfg.DatabaseName)
	cfg.CollectionName = getEnv("ANAJOBS_COLLECTION_NAME", cfg.CollectionName)
	cfg.DataFile = getEnv("ANAJOBS_DATA_FILE", cfg.DataFile)
	cfg.AnthropicAPIKey = getEnv("ANTHROPIC_API_KEY", cfg.AnthropicAPIKey)
	cfg.AnthropicModel = getEnv("ANTHROPIC_MODEL", cfg.AnthropicModel)
	cfg.UserAgent = getEnv("ANAJOBS_USER_AGENT", cfg.UserAgent)
	cfg.LogFile = getEnv("LOG_FILE", cfg.LogFile)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.MetricsAddr = getEnv("METRICS_ADDR", cfg.MetricsAddr)
	cfg.RedisAddr = getEnv("REDIS_ADDR", cfg.RedisAddr)
	cfg.RedisPassword = getEnv("REDIS_PASSWORD", cfg.RedisPassword)
	cfg.CheckpointKey = getEnv("CHECKPOINT_KEY", cfg.CheckpointKey)

	cfg.FetchTimeout = getDuration("FETCH_TIMEOUT", cfg.FetchTimeout)
	cfg.RetryBaseDelay = getDuration("RETRY_BASE_DELAY", cfg.RetryBaseDelay)
	cfg.CrawlDelay = getDuration("CRAWL_DELAY", cfg.CrawlDelay)
	cfg.OrgDelay = getDuration("ORG_DELAY", cfg.OrgDelay)

	cfg.MaxRetries = getInt("MAX_RETRIES", cfg.MaxRetries)
	cfg.MaxPages = getInt("MAX_PAGES", cfg.MaxPages)
	cfg.MaxContentChars = getInt("MAX_CONTENT_CHARS", cfg.MaxContentChars)
	cfg.CandidateCap = getInt("CANDIDATE_CAP", cfg.CandidateCap)
	cfg.RedisDB = getInt("REDIS_DB", cfg.RedisDB)

	if v := os.Getenv("USE_CHECKPOINT"); v != "" {
		cfg.UseCheckpoint = strings.EqualFold(v, "true") || v == "1"
	}

	if cfg.MongoURI == "" {
		return cfg, fmt.Errorf("missing required environment variable: ANAJOBS_MONGODB_URI")
	}

	return cfg, nil
}

func defaults() Config {
	return Config{
		MongoURI:        "mongodb://localhost:27017/",
		DatabaseName:    "nonprofit_jobs",
		CollectionName:  "organizations",
		DataFile:        "data/publicserviceopenings.jsonl",
		AnthropicModel:  "claude-sonnet-4-20250514",
		UserAgent:       "Mozilla/5.0 (compatible; AnaJobs/1.0; +https://github.com/anajobs/anajobs)",
		FetchTimeout:    15 * time.Second,
		MaxRetries:      2,
		RetryBaseDelay:  time.Second,
		MaxPages:        10,
		CrawlDelay:      time.Second,
		OrgDelay:        2 * time.Second,
		MaxContentChars: 100_000,
		CandidateCap:    50,
		LogFile:         "logs/anajobs.log",
		LogLevel:        "info",
		RedisAddr:       "localhost:6379",
		CheckpointKey:   "anajobs:processed",
	}
}

func configPath() string {
	if p := os.Getenv("ANAJOBS_CONFIG"); p != "" {
		return p
	}
	return "config/config.yaml"
}

func getEnv(key, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultVal
}

func getInt(key string, defaultVal int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		slog.Warn("Invalid integer environment variable", "key", key, "value", raw, "error", err)
		return defaultVal
	}
	return v
}

func getDuration(key string, defaultVal time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultVal
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		slog.Warn("Invalid duration environment variable", "key", key, "value", raw, "error", err)
		return defaultVal
	}
	return v
}
