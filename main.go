package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"torboxdav/pkg/config"
	"torboxdav/pkg/dav"
	"torboxdav/pkg/env"
	"torboxdav/pkg/linkcache"
	"torboxdav/pkg/logger"
	"torboxdav/pkg/refresh"
	"torboxdav/pkg/server"
	"torboxdav/pkg/shows"
	"torboxdav/pkg/torbox"
	"torboxdav/pkg/vfs"
)

// Version is set at build time
var Version = "dev"

var (
	flagEnvFile         = ".env"
	flagConfigFile      string
	flagAPIKey          string
	flagAPIURL          string
	flagAPIRateLimit    int
	flagAddress         string
	flagRefreshInterval string
	flagLinkIdleTimeout string
	flagMetricsAddress  string
	flagLogLevel        string
	flagLogFile         string
	flagLogMaxSize      int
	flagLogMaxBackups   int
	flagLogMaxAge       int
)

func main() {
	var rootCmd = &cobra.Command{
		Use:   "torboxdav",
		Short: "Serve your TorBox shows over WebDAV",
		Long: `A read-only WebDAV server that lists the TorBox torrents ready for download as
/shows/<title>/Season <n>/<episode> and streams files straight from TorBox.
`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return run(cfg)
		},
	}

	rootCmd.Flags().StringVar(&flagEnvFile, "env-file", flagEnvFile, ".env file to load")
	rootCmd.Flags().StringVar(&flagConfigFile, "config", "", "YAML config file (CONFIG_FILE)")
	rootCmd.Flags().StringVar(&flagAPIKey, "api-key", "", "TorBox API key (API_KEY)")
	rootCmd.Flags().StringVar(&flagAPIURL, "api-url", config.DefaultAPIURL, "TorBox API base URL (TORBOX_API_URL)")
	rootCmd.Flags().IntVar(&flagAPIRateLimit, "api-rate-limit", config.DefaultAPIRateLimit, "TorBox API requests per second (API_RATE_LIMIT)")
	rootCmd.Flags().StringVar(&flagAddress, "address", config.DefaultAddress, "Address to listen on (ADDRESS)")
	rootCmd.Flags().StringVarP(&flagRefreshInterval, "refresh-interval", "r", "600", "Refresh interval, seconds or a duration (REFRESH_INTERVAL)")
	rootCmd.Flags().StringVar(&flagLinkIdleTimeout, "link-idle-timeout", config.DefaultLinkIdleTimeout.String(), "Drop a download link after this long unused (LINK_IDLE_TIMEOUT)")
	rootCmd.Flags().StringVar(&flagMetricsAddress, "metrics-address", "", "Serve Prometheus metrics on this address (METRICS_ADDRESS)")
	rootCmd.Flags().StringVar(&flagLogLevel, "log-level", "info", "Log level: debug, info, warn, error (LOG_LEVEL)")
	rootCmd.Flags().StringVar(&flagLogFile, "log-file", "", "Also write logs to this file (LOG_FILE)")
	rootCmd.Flags().IntVar(&flagLogMaxSize, "log-max-size", config.DefaultLogMaxSizeMB, "Rotate the log file at this size in MB (LOG_MAX_SIZE)")
	rootCmd.Flags().IntVar(&flagLogMaxBackups, "log-max-backups", config.DefaultLogMaxBackups, "Rotated log files to keep (LOG_MAX_BACKUPS)")
	rootCmd.Flags().IntVar(&flagLogMaxAge, "log-max-age", 0, "Delete rotated log files older than this many days, 0 keeps them (LOG_MAX_AGE)")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(Version)
		},
	})

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

// loadConfig layers defaults, the YAML file, the environment and explicitly set flags
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	if err := env.LoadEnv(flagEnvFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load %s: %w", flagEnvFile, err)
	}

	cfg := config.Default()

	configFile := flagConfigFile
	if !cmd.Flags().Changed("config") {
		configFile = env.GetString("CONFIG_FILE", "")
	}
	if configFile != "" {
		if err := cfg.LoadFile(configFile); err != nil {
			return nil, err
		}
	}

	cfg.ApplyEnv()

	flags := cmd.Flags()
	if flags.Changed("api-key") {
		cfg.APIKey = flagAPIKey
	}
	if flags.Changed("api-url") {
		cfg.APIURL = flagAPIURL
	}
	if flags.Changed("api-rate-limit") {
		cfg.APIRateLimit = flagAPIRateLimit
	}
	if flags.Changed("address") {
		cfg.Address = flagAddress
	}
	if flags.Changed("refresh-interval") {
		d, err := config.ParseDuration(flagRefreshInterval)
		if err != nil {
			return nil, fmt.Errorf("invalid --refresh-interval: %w", err)
		}
		cfg.RefreshInterval = d
	}
	if flags.Changed("link-idle-timeout") {
		d, err := config.ParseDuration(flagLinkIdleTimeout)
		if err != nil {
			return nil, fmt.Errorf("invalid --link-idle-timeout: %w", err)
		}
		cfg.LinkIdleTimeout = d
	}
	if flags.Changed("metrics-address") {
		cfg.MetricsAddress = flagMetricsAddress
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = flagLogLevel
	}
	if flags.Changed("log-file") {
		cfg.LogFile = flagLogFile
	}
	if flags.Changed("log-max-size") {
		cfg.LogMaxSizeMB = flagLogMaxSize
	}
	if flags.Changed("log-max-backups") {
		cfg.LogMaxBackups = flagLogMaxBackups
	}
	if flags.Changed("log-max-age") {
		cfg.LogMaxAgeDays = flagLogMaxAge
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func run(cfg *config.Config) error {
	if err := logger.Init(logger.Options{
		Level:      cfg.LogLevel,
		File:       cfg.LogFile,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
		MaxAgeDays: cfg.LogMaxAgeDays,
	}); err != nil {
		return err
	}
	defer logger.Close()

	logger.Debug("Starting with configuration: address=%s, api=%s, refresh=%v, link idle=%v, rate limit=%d/s",
		cfg.Address, cfg.APIURL, cfg.RefreshInterval, cfg.LinkIdleTimeout, cfg.APIRateLimit)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := torbox.NewClient(cfg.APIKey,
		torbox.WithBaseURL(cfg.APIURL),
		torbox.WithRateLimit(cfg.APIRateLimit),
	)

	fs := vfs.New()

	links := linkcache.New(client, cfg.LinkIdleTimeout)
	go links.Run(ctx)

	job := refresh.NewJob(client, shows.ReleaseParser{}, fs, cfg.RefreshInterval)
	job.Start(ctx)
	defer job.Stop()

	srv := server.NewServer(cfg.Address, cfg.MetricsAddress, dav.NewHandler(fs, links, client))

	logger.Info("Starting torboxdav %s", Version)
	if cfg.MetricsAddress != "" {
		logger.Info("Metrics available at http://%s/metrics", cfg.MetricsAddress)
	}

	return srv.Run(ctx)
}
