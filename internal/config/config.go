// Package config loads and validates the pipeline configuration from a
// config file, environment variables and defaults.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the complete pipeline configuration.
type Config struct {
	API      APIConfig      `mapstructure:"api"`
	Database DatabaseConfig `mapstructure:"database"`
	Classify ClassifyConfig `mapstructure:"classify"`
	Booking  BookingConfig  `mapstructure:"booking"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// APIConfig configures the interpretation API client.
type APIConfig struct {
	BaseURL   string        `mapstructure:"base_url"`
	Token     string        `mapstructure:"token"`
	Timeout   time.Duration `mapstructure:"timeout"`
	RateLimit float64       `mapstructure:"rate_limit"`
	CacheSize int           `mapstructure:"cache_size"`
	PageSize  int           `mapstructure:"page_size"`
}

// DatabaseConfig configures the record-system connection.
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// ClassifyConfig carries the classification policy.
type ClassifyConfig struct {
	SampleType        string   `mapstructure:"sample_type"`
	PendingStatus     string   `mapstructure:"pending_status"`
	ReportedStatuses  []string `mapstructure:"reported_statuses"`
	Sites             []string `mapstructure:"sites"`
	PrimaryProvider   string   `mapstructure:"primary_provider"`
	ExcludedProviders []string `mapstructure:"excluded_providers"`
	MinTieringVersion string   `mapstructure:"min_tiering_version"`
	MaxSVFrequency    float64  `mapstructure:"max_sv_frequency"`
}

// BookingConfig carries the record-system code constants the safety gate
// checks and writes. The defaults match the production Moka deployment.
type BookingConfig struct {
	ReferralID             int64   `mapstructure:"referral_id"`
	AllowedPatientStatuses []int64 `mapstructure:"allowed_patient_statuses"`
	NegNegResultCode       int64   `mapstructure:"negneg_result_code"`
	NegativeReportStatus   int64   `mapstructure:"negative_report_status"`
	NotRequiredStatus      int64   `mapstructure:"not_required_status"`
	CheckerID              int64   `mapstructure:"checker_id"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from the optional file path, NEGNEG_* environment
// variables and defaults, in that order of precedence.
func Load(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/negneg/")
	}

	v.SetEnvPrefix("NEGNEG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// No config file; defaults and environment variables apply.
	}

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.timeout", "30s")
	v.SetDefault("api.rate_limit", 5)
	v.SetDefault("api.cache_size", 256)
	v.SetDefault("api.page_size", 100)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.max_open_conns", 5)
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.conn_max_lifetime", "5m")

	v.SetDefault("classify.sample_type", "raredisease")
	v.SetDefault("classify.pending_status", "sent_to_gmcs")
	v.SetDefault("classify.reported_statuses", []string{"report_generated", "report_sent"})
	v.SetDefault("classify.sites", []string{"RJ1", "RJ101", "GSTT"})
	v.SetDefault("classify.primary_provider", "genomics_england_tiering")
	v.SetDefault("classify.excluded_providers", []string{"genomics_england_tiering", "exomiser"})
	v.SetDefault("classify.min_tiering_version", "1.0.14")
	v.SetDefault("classify.max_sv_frequency", 0.01)

	v.SetDefault("booking.referral_id", 1199901218)
	v.SetDefault("booking.allowed_patient_statuses", []int64{4, 1202218839})
	v.SetDefault("booking.negneg_result_code", 1189679668)
	v.SetDefault("booking.negative_report_status", 1202218811)
	v.SetDefault("booking.not_required_status", 1202218787)
	v.SetDefault("booking.checker_id", 1201865448)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// Validate checks the configuration for values that would make a run unsafe
// or impossible.
func (c *Config) Validate() error {
	if c.Classify.PrimaryProvider == "" {
		return fmt.Errorf("classify.primary_provider is required")
	}
	if c.Classify.PendingStatus == "" {
		return fmt.Errorf("classify.pending_status is required")
	}
	if len(c.Classify.Sites) == 0 {
		return fmt.Errorf("classify.sites must not be empty")
	}
	if c.Classify.MaxSVFrequency <= 0 || c.Classify.MaxSVFrequency > 1 {
		return fmt.Errorf("classify.max_sv_frequency must be in (0, 1], got %v", c.Classify.MaxSVFrequency)
	}
	if c.Booking.NegNegResultCode == 0 {
		return fmt.Errorf("booking.negneg_result_code is required")
	}
	if c.Booking.CheckerID == 0 {
		return fmt.Errorf("booking.checker_id is required")
	}
	if len(c.Booking.AllowedPatientStatuses) == 0 {
		return fmt.Errorf("booking.allowed_patient_statuses must not be empty")
	}
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level %q", c.Logging.Level)
	}
	return nil
}
