package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig
	Source   SourceConfig
	Cache    CacheConfig
	Menus    MenusConfig
	Matching MatchingConfig
	Refresh  RefreshConfig
	Images   ImagesConfig
	Metrics  MetricsConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	Environment    string   `mapstructure:"environment"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	RatePerIP      int      `mapstructure:"rate_per_ip"`
}

// SourceConfig holds catalog source API configuration
type SourceConfig struct {
	BaseURL       string        `mapstructure:"base_url"`
	APIKey        string        `mapstructure:"api_key"`
	PointID       int           `mapstructure:"point_id"`
	Timeout       time.Duration `mapstructure:"timeout"`
	RatePerSecond float64       `mapstructure:"rate_per_second"`
	Burst         int           `mapstructure:"burst"`
	MaxRetries    int           `mapstructure:"max_retries"`
	PageSize      int           `mapstructure:"page_size"`
}

// CacheConfig holds snapshot persistence and freshness configuration
type CacheConfig struct {
	Dir              string        `mapstructure:"dir"`
	DeliveryFile     string        `mapstructure:"delivery_file"`
	FullFile         string        `mapstructure:"full_file"`
	DeliveryTTL      time.Duration `mapstructure:"delivery_ttl"`
	FullTTL          time.Duration `mapstructure:"full_ttl"`
	ResultTTL        time.Duration `mapstructure:"result_ttl"`
	FetchConcurrency int           `mapstructure:"fetch_concurrency"`
	RetryAfter       time.Duration `mapstructure:"retry_after"`
}

// MenusConfig lists which menus play which role
type MenusConfig struct {
	DeliveryIDs         []string          `mapstructure:"delivery_ids"`
	AIAllowedIDs        []string          `mapstructure:"ai_allowed_ids"`
	Priority            []string          `mapstructure:"priority"`
	BarIDs              []string          `mapstructure:"bar_ids"`
	BreakfastID         string            `mapstructure:"breakfast_id"`
	BreakfastCutoffHour int               `mapstructure:"breakfast_cutoff_hour"`
	Fallback            map[string]string `mapstructure:"fallback"`
}

// MatchingConfig holds resolver thresholds and vocabulary overrides
type MatchingConfig struct {
	FuzzyThreshold      float64           `mapstructure:"fuzzy_threshold"`
	SuggestionThreshold float64           `mapstructure:"suggestion_threshold"`
	MaxSuggestions      int               `mapstructure:"max_suggestions"`
	NotFoundSample      int               `mapstructure:"not_found_sample"`
	MinSubstringLength  int               `mapstructure:"min_substring_length"`
	DishLimit           int               `mapstructure:"dish_limit"`
	Debug               bool              `mapstructure:"debug"`
	Synonyms            map[string]string `mapstructure:"synonyms"`
	RootClusters        [][]string        `mapstructure:"root_clusters"`
	AlcoholTerms        []string          `mapstructure:"alcohol_terms"`
	BarNameRoots        []string          `mapstructure:"bar_name_roots"`
	VegetarianTerms     []string          `mapstructure:"vegetarian_terms"`
	MeatRoots           []string          `mapstructure:"meat_roots"`
	PluralSuffixes      []string          `mapstructure:"plural_suffixes"`
	BreakfastPhrases    []string          `mapstructure:"breakfast_phrases"`
	BreakfastRoots      []string          `mapstructure:"breakfast_roots"`
}

// RefreshConfig holds scheduled refresh configuration
type RefreshConfig struct {
	Interval              time.Duration `mapstructure:"interval"`
	SignificanceThreshold float64       `mapstructure:"significance_threshold"`
}

// ImagesConfig holds image download configuration
type ImagesConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Dir         string `mapstructure:"dir"`
	Concurrency int    `mapstructure:"concurrency"`
}

// MetricsConfig holds Prometheus exposition configuration
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// Load loads configuration from environment variables and config files
func Load() (*Config, error) {
	return LoadWith(viper.New())
}

// LoadWith loads configuration into v, which may already carry bound flags.
func LoadWith(v *viper.Viper) (*Config, error) {
	if err := loadEnvFile(); err != nil {
		return nil, fmt.Errorf("error reading .env file: %w", err)
	}

	// Set config name and paths
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/menubot/")

	// Environment variable settings
	v.SetEnvPrefix("MENUBOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Read config file (optional - will use env vars if file doesn't exist)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// loadEnvFile loads ./.env if present. Variables already set win.
func loadEnvFile() error {
	err := godotenv.Load(".env")
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.rate_per_ip", 100)

	// Source defaults
	v.SetDefault("source.base_url", "")
	v.SetDefault("source.api_key", "")
	v.SetDefault("source.point_id", 0)
	v.SetDefault("source.timeout", "30s")
	v.SetDefault("source.rate_per_second", 5.0)
	v.SetDefault("source.burst", 10)
	v.SetDefault("source.max_retries", 3)
	v.SetDefault("source.page_size", 200)

	// Cache defaults
	v.SetDefault("cache.dir", "./data")
	v.SetDefault("cache.delivery_file", "menu_cache.json")
	v.SetDefault("cache.full_file", "all_menus_cache.json")
	v.SetDefault("cache.delivery_ttl", "1h")
	v.SetDefault("cache.full_ttl", "1h")
	v.SetDefault("cache.result_ttl", "10m")
	v.SetDefault("cache.fetch_concurrency", 2)
	v.SetDefault("cache.retry_after", "1m")

	// Menu defaults
	v.SetDefault("menus.delivery_ids", []string{})
	v.SetDefault("menus.ai_allowed_ids", []string{})
	v.SetDefault("menus.priority", []string{})
	v.SetDefault("menus.bar_ids", []string{})
	v.SetDefault("menus.breakfast_id", "")
	v.SetDefault("menus.breakfast_cutoff_hour", 0)

	// Matching defaults
	v.SetDefault("matching.fuzzy_threshold", 0.8)
	v.SetDefault("matching.suggestion_threshold", 0.4)
	v.SetDefault("matching.max_suggestions", 3)
	v.SetDefault("matching.not_found_sample", 5)
	v.SetDefault("matching.min_substring_length", 0)
	v.SetDefault("matching.dish_limit", 20)
	v.SetDefault("matching.debug", false)

	// Refresh defaults
	v.SetDefault("refresh.interval", "1h")
	v.SetDefault("refresh.significance_threshold", 15.0)

	// Image defaults
	v.SetDefault("images.enabled", false)
	v.SetDefault("images.dir", "./data/images")
	v.SetDefault("images.concurrency", 4)

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
}

// validate validates the configuration
func validate(config *Config) error {
	if config.Source.BaseURL == "" {
		return fmt.Errorf("source base URL is required (set MENUBOT_SOURCE_BASE_URL)")
	}

	if config.Source.PointID <= 0 {
		return fmt.Errorf("source point id must be positive (set MENUBOT_SOURCE_POINT_ID)")
	}

	if config.Matching.FuzzyThreshold < 0 || config.Matching.FuzzyThreshold > 1 {
		return fmt.Errorf("fuzzy threshold must be within [0, 1], got: %v", config.Matching.FuzzyThreshold)
	}

	if config.Matching.SuggestionThreshold < 0 || config.Matching.SuggestionThreshold > config.Matching.FuzzyThreshold {
		return fmt.Errorf("suggestion threshold must be within [0, fuzzy threshold], got: %v", config.Matching.SuggestionThreshold)
	}

	if config.Matching.MinSubstringLength < 0 {
		return fmt.Errorf("min substring length must not be negative, got: %d", config.Matching.MinSubstringLength)
	}

	if config.Menus.BreakfastCutoffHour < 0 || config.Menus.BreakfastCutoffHour > 23 {
		return fmt.Errorf("breakfast cutoff hour must be within [0, 23], got: %d", config.Menus.BreakfastCutoffHour)
	}

	if config.Refresh.SignificanceThreshold < 0 {
		return fmt.Errorf("significance threshold must not be negative, got: %v", config.Refresh.SignificanceThreshold)
	}

	if config.Images.Enabled && config.Images.Dir == "" {
		return fmt.Errorf("image directory is required when image download is enabled")
	}

	if config.Metrics.Enabled && !strings.HasPrefix(config.Metrics.Path, "/") {
		return fmt.Errorf("metrics path must start with '/', got: %s", config.Metrics.Path)
	}

	return nil
}
