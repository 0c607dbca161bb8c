package cli

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/rootsploit/deepx/internal/config"
	"github.com/rootsploit/deepx/internal/debug"
	"github.com/rootsploit/deepx/internal/logging"
	"github.com/rootsploit/deepx/internal/output"
	"github.com/rootsploit/deepx/internal/version"
)

// globalFlags are the persistent flags shared by every subcommand.
type globalFlags struct {
	configPath   string
	output       string
	noCache      bool
	cacheTTL     time.Duration
	cacheBackend string
	debug        bool
	logLevel     string
	logFile      string
	noColor      bool
}

var (
	flags   globalFlags
	rootCmd = &cobra.Command{
		Use:   "deepx",
		Short: "Hidden subdomain discovery",
		Long: `deepx - hidden subdomain discovery.

Collects subdomains from passive DNS, certificate transparency and web
archives, brute forces them with a dictionary learned from earlier runs,
and reports the hosts a search-engine index (FOFA) does not know about.

Example:
  deepx all example.com
  deepx collect example.com --no-brute
  deepx compare example.com --alive`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", "", "Config file (default: ~/.deepx/config.yaml)")
	pf.StringVarP(&flags.output, "output", "o", "", "Output directory (default: output)")
	pf.BoolVar(&flags.noCache, "no-cache", false, "Disable the source cache")
	pf.DurationVar(&flags.cacheTTL, "cache-ttl", 0, "Cache entry lifetime (default: 72h)")
	pf.StringVar(&flags.cacheBackend, "cache-backend", "", "Cache backend: file, sqlite or memory")
	pf.BoolVar(&flags.debug, "debug", false, "Show timing traces for every source and phase")
	pf.StringVar(&flags.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	pf.StringVar(&flags.logFile, "log-file", "", "Write JSON logs to a rotating file")
	pf.BoolVar(&flags.noColor, "no-color", false, "Disable colored output")

	rootCmd.AddCommand(collectCmd)
	rootCmd.AddCommand(fofaCmd)
	rootCmd.AddCommand(bruteCmd)
	rootCmd.AddCommand(compareCmd)
	rootCmd.AddCommand(aliveCmd)
	rootCmd.AddCommand(allCmd)
	rootCmd.AddCommand(cacheCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command. ctx is cancelled on SIGINT/SIGTERM.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// env is everything a subcommand needs after flags are resolved.
type env struct {
	cfg     *config.Config
	log     *log.Logger
	tracer  *debug.Tracer
	console *output.Console
}

// setup loads the config and applies explicitly set flags over it:
// defaults < file < environment < flags. apply sets the subcommand's own
// flags and may be nil.
func setup(cmd *cobra.Command, apply func(*config.Config) error) (*env, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, err
	}
	applyGlobalFlags(cmd, cfg)
	if apply != nil {
		if err := apply(cfg); err != nil {
			return nil, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := logging.New(logging.Options{
		Level:   cfg.LogLevel,
		File:    cfg.LogFile,
		NoColor: cfg.NoColor,
	})
	if err != nil {
		return nil, err
	}
	if cfg.Debug && cfg.LogFile == "" && flags.logLevel == "" {
		logger.SetLevel(log.DebugLevel)
	}

	return &env{
		cfg:     cfg,
		log:     logger,
		tracer:  debug.New(cfg.Debug, nil),
		console: output.NewConsole(nil, cfg.NoColor),
	}, nil
}

func applyGlobalFlags(cmd *cobra.Command, cfg *config.Config) {
	changed := cmd.Flags().Changed
	if changed("output") {
		cfg.OutputDir = flags.output
	}
	if changed("no-cache") {
		cfg.Cache.Disabled = flags.noCache
	}
	if changed("cache-ttl") {
		cfg.Cache.TTL = flags.cacheTTL
	}
	if changed("cache-backend") {
		cfg.Cache.Backend = flags.cacheBackend
	}
	if changed("debug") {
		cfg.Debug = flags.debug
	}
	if changed("log-level") {
		cfg.LogLevel = flags.logLevel
	}
	if changed("log-file") {
		cfg.LogFile = flags.logFile
	}
	if changed("no-color") {
		cfg.NoColor = flags.noColor
	}
}

func (e *env) close() {
	logging.Close(e.log)
}

func printBanner(c *output.Console) {
	c.Banner(version.Version)
}
