// Package cli wires the pipeline's commands: classify, book and run.
package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/moka-guys/negneg/internal/config"
	"github.com/moka-guys/negneg/internal/interpretation"
	"github.com/moka-guys/negneg/pkg/cipapi"
)

var (
	cfgFile  string
	logLevel string
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "negneg",
	Short: "Classify 100k cases as negative-negative and book them into the record system",
	Long: `negneg pulls 100k rare-disease interpretation requests from the
case-interpretation API, classifies each as negative-negative or not, and for
the safe subset books the negative result into the laboratory record system
with a full audit trail.`,
	SilenceUsage: true,
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
}

// Execute runs the root command. It is called once from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ./config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&logLevel, "loglevel", "l", "", "log level: debug, info, warn, error")
}

// loadEnvironment loads configuration and builds the logger shared by every
// command.
func loadEnvironment() (*config.Config, *logrus.Logger, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, err
	}

	level := cfg.Logging.Level
	if logLevel != "" {
		level = logLevel
	}
	parsed, err := logrus.ParseLevel(strings.ToLower(level))
	if err != nil {
		return nil, nil, fmt.Errorf("invalid log level %q", level)
	}

	logger := logrus.New()
	logger.SetLevel(parsed)
	if cfg.Logging.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	return cfg, logger, nil
}

// newGrouper builds the classification pipeline from configuration.
func newGrouper(cfg *config.Config, logger *logrus.Logger) (*interpretation.Grouper, error) {
	client, err := cipapi.NewClient(cipapi.Config{
		BaseURL:   cfg.API.BaseURL,
		Token:     cfg.API.Token,
		Timeout:   cfg.API.Timeout,
		RateLimit: cfg.API.RateLimit,
		CacheSize: cfg.API.CacheSize,
		PageSize:  cfg.API.PageSize,
	}, logger)
	if err != nil {
		return nil, err
	}

	filters := interpretation.RareEventFilters{
		MinTieringVersion: cfg.Classify.MinTieringVersion,
		MaxSVFrequency:    cfg.Classify.MaxSVFrequency,
	}
	engine := interpretation.NewEngine(client, filters,
		cfg.Classify.PrimaryProvider, cfg.Classify.ExcludedProviders, logger)

	return interpretation.NewGrouper(client, engine, interpretation.GrouperConfig{
		SampleType:       cfg.Classify.SampleType,
		PendingStatus:    cfg.Classify.PendingStatus,
		ReportedStatuses: cfg.Classify.ReportedStatuses,
		Sites:            cfg.Classify.Sites,
	}, logger), nil
}
