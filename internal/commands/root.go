package commands

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/stahnma/gh-rmdcrawl/internal/cache"
	"github.com/stahnma/gh-rmdcrawl/internal/config"
	ghub "github.com/stahnma/gh-rmdcrawl/internal/github"
	"github.com/stahnma/gh-rmdcrawl/internal/objectstore"
	"github.com/stahnma/gh-rmdcrawl/internal/stats"
)

// App holds shared application state.
type App struct {
	Config   config.Config
	Viper    *viper.Viper
	Cache    *cache.Cache
	GHClient ghub.Client
	Mirror   *objectstore.Mirror
	Logger   *zap.Logger
	Registry *prometheus.Registry
	GitSHA   string
	GitDirty string

	// Sleep and Source replace the real clock and random source in tests.
	Sleep  func(context.Context, time.Duration) error
	Source rand.Source

	configFile string
	promSink   *stats.Prometheus
}

// NewApp creates a new App from the given configuration.
func NewApp(cfg config.Config, logger *zap.Logger, gitSHA, gitDirty string) *App {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &App{
		Config:   cfg,
		Logger:   logger,
		Registry: prometheus.NewRegistry(),
		GitSHA:   gitSHA,
		GitDirty: gitDirty,
	}
}

// Prepare loads the response cache. It is called before every command and
// at the start of each Lambda invocation.
func (a *App) Prepare() error {
	if a.Cache != nil {
		return nil
	}
	if a.Config.NoCache {
		a.Cache = cache.NewWithTTL(a.Config.CacheTTL)
		return nil
	}
	c, err := cache.LoadFromFile(a.Config.CacheFile, a.Config.CacheTTL)
	if c == nil {
		return fmt.Errorf("loading cache: %w", err)
	}
	if err != nil {
		a.Logger.Warn("discarding unreadable cache", zap.Error(err))
	}
	a.Cache = c
	return nil
}

// ensureClient creates the GitHub client if it doesn't exist.
func (a *App) ensureClient() error {
	if a.GHClient != nil {
		return nil
	}
	if a.Config.GitHubToken == "" {
		return fmt.Errorf("GITHUB_TOKEN must be set")
	}
	a.GHClient = ghub.NewClient(a.Config.GitHubToken, a.Config.RequestsPerSecond)
	return nil
}

// EnsureMirror creates the S3 mirror if it doesn't exist.
func (a *App) EnsureMirror(ctx context.Context) (*objectstore.Mirror, error) {
	if a.Mirror != nil {
		return a.Mirror, nil
	}
	if a.Config.S3Bucket == "" || a.Config.S3ObjectKey == "" {
		return nil, fmt.Errorf("S3_BUCKET_NAME and S3_OBJECT_KEY environment variables must be set")
	}
	client, err := objectstore.NewClient(ctx, a.Config.AWSRegion)
	if err != nil {
		return nil, err
	}
	m, err := objectstore.NewMirror(client, a.Config.S3Bucket, a.Logger)
	if err != nil {
		return nil, err
	}
	a.Mirror = m
	return m, nil
}

// SaveCache saves the cache to disk if caching is enabled.
func (a *App) SaveCache() error {
	if !a.Config.NoCache && a.Cache != nil {
		return a.Cache.SaveToFile(a.Config.CacheFile)
	}
	return nil
}

// loadConfigFile re-reads configuration with the --config file layered
// under the environment.
func (a *App) loadConfigFile() error {
	if a.configFile == "" {
		return nil
	}
	if a.Viper == nil {
		a.Viper = config.NewViper()
	}
	a.Viper.SetConfigFile(a.configFile)
	if err := a.Viper.ReadInConfig(); err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}
	noCache := a.Config.NoCache
	cfg, err := config.Load(a.Viper)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	cfg.NoCache = cfg.NoCache || noCache
	a.Config = cfg
	return nil
}

// NewRootCommand creates the root cobra command with all subcommands.
func (a *App) NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "gh-rmdcrawl",
		Short: "Discover GitHub repositories containing R Markdown files.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := a.loadConfigFile(); err != nil {
				return err
			}
			return a.Prepare()
		},
	}
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true
	rootCmd.PersistentFlags().BoolVar(&a.Config.NoCache, "no-cache", a.Config.NoCache, "Disable caching")
	rootCmd.PersistentFlags().StringVar(&a.configFile, "config", "", "Path to a config file")

	rootCmd.AddCommand(a.newCrawlCommand())
	rootCmd.AddCommand(a.newAccountsCommand())
	rootCmd.AddCommand(a.newExportCommand())
	rootCmd.AddCommand(a.newVersionCommand())
	rootCmd.AddCommand(a.newClearCacheCommand())

	return rootCmd
}
