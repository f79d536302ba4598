package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/stahnma/gh-rmdcrawl/internal/crawl"
	ghub "github.com/stahnma/gh-rmdcrawl/internal/github"
	"github.com/stahnma/gh-rmdcrawl/internal/keywords"
	"github.com/stahnma/gh-rmdcrawl/internal/metrics"
	"github.com/stahnma/gh-rmdcrawl/internal/retry"
	"github.com/stahnma/gh-rmdcrawl/internal/stats"
	"github.com/stahnma/gh-rmdcrawl/internal/store"
)

func (a *App) newCrawlCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "crawl",
		Short: "Search random keyword combinations until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			summary, err := a.Crawl(cmd.Context(), crawl.ModeKeywords)
			if err != nil {
				return err
			}
			printSummary(cmd, summary)
			return nil
		},
	}
}

func (a *App) newAccountsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "accounts",
		Short: "Search every account that owns a known repository",
		RunE: func(cmd *cobra.Command, args []string) error {
			summary, err := a.Crawl(cmd.Context(), crawl.ModeAccounts)
			if err != nil {
				return err
			}
			printSummary(cmd, summary)
			return nil
		},
	}
}

func printSummary(cmd *cobra.Command, s crawl.Summary) {
	fmt.Fprintf(cmd.OutOrStdout(), "Found %d new repositories in total (%d pages, %d known).\n",
		s.NewIdentifiers, s.Pages, s.Known)
}

// Crawl runs one crawl in mode against the configured store. Keyword mode
// returns once ctx is cancelled; account mode returns after one pass.
func (a *App) Crawl(ctx context.Context, mode crawl.Mode) (crawl.Summary, error) {
	if err := a.ensureClient(); err != nil {
		return crawl.Summary{}, err
	}
	if err := a.Prepare(); err != nil {
		return crawl.Summary{}, err
	}
	cfg := a.Config

	st, err := store.Open(cfg.StoreDriver, cfg.StorePath)
	if err != nil {
		return crawl.Summary{}, fmt.Errorf("opening store: %w", err)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			a.Logger.Error("closing store", zap.Error(cerr))
		}
	}()

	// A failing stats sink cancels the crawl so pending identifiers are
	// still persisted on the way out.
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	observers := stats.Multi{stats.NewLog(a.Logger), a.prometheusSink()}
	if cfg.StatsFile != "" {
		csvSink, err := stats.OpenCSV(cfg.StatsFile, a.Logger)
		if err != nil {
			return crawl.Summary{}, err
		}
		defer csvSink.Close()
		observers = append(observers, crawl.ObserverFunc(func(p crawl.PageStats) {
			csvSink.Observe(p)
			if err := csvSink.Err(); err != nil {
				cancel(fmt.Errorf("writing stats: %w", err))
			}
		}))
	}

	if cfg.MetricsAddr != "" {
		serveCtx, stopServing := context.WithCancel(ctx)
		var g errgroup.Group
		g.Go(func() error {
			return metrics.Serve(serveCtx, cfg.MetricsAddr, a.Registry, a.Logger)
		})
		defer func() {
			stopServing()
			if err := g.Wait(); err != nil {
				a.Logger.Error("metrics server", zap.Error(err))
			}
		}()
	}

	var searcher ghub.Searcher = ghub.NewCodeSearcher(a.GHClient)
	if !cfg.NoCache {
		searcher = ghub.NewCachedSearcher(searcher, a.Cache, a.Logger)
	}

	policy := retry.DefaultPolicy(ghub.IsRateLimited)
	policy.Initial = cfg.InitialBackoff
	policy.MaxRetries = cfg.MaxRetries

	opts := []crawl.Option{
		crawl.WithConfig(crawl.Config{
			Extension:   cfg.Extension,
			AccountTerm: cfg.AccountTerm,
			MaxPages:    cfg.MaxPages,
			PageDelay:   cfg.PageDelay,
		}),
		crawl.WithRetryPolicy(policy),
		crawl.WithObserver(observers),
		crawl.WithLogger(a.Logger),
	}
	if a.Sleep != nil {
		opts = append(opts, crawl.WithSleep(a.Sleep))
	}

	var summary crawl.Summary
	switch mode {
	case crawl.ModeAccounts:
		summary, err = crawl.New(searcher, st, nil, opts...).RunAccounts(ctx)
	default:
		tracker, terr := a.newTracker()
		if terr != nil {
			return crawl.Summary{}, terr
		}
		summary, err = crawl.New(searcher, st, tracker, opts...).Run(ctx)
	}
	if err != nil {
		return summary, err
	}
	if cause := context.Cause(ctx); cause != nil && !errors.Is(cause, context.Canceled) && !errors.Is(cause, context.DeadlineExceeded) {
		return summary, cause
	}
	return summary, nil
}

func (a *App) newTracker() (*keywords.Tracker, error) {
	kws, err := keywords.LoadOrDefault(a.Config.KeywordsFile)
	if err != nil {
		a.Logger.Warn("using built-in keywords", zap.String("file", a.Config.KeywordsFile), zap.Error(err))
	}
	if len(kws) == 0 {
		return nil, keywords.ErrNoKeywords
	}
	opts := []keywords.Option{keywords.WithCombinationSize(a.Config.MinKeywords, a.Config.MaxKeywords)}
	if a.Source != nil {
		opts = append(opts, keywords.WithSource(a.Source))
	}
	a.Logger.Info("keyword universe", zap.Int("keywords", len(kws)))
	return keywords.NewTracker(kws, opts...), nil
}

// prometheusSink registers the crawl collectors once per App so repeated
// crawls (warm Lambda invocations) share them.
func (a *App) prometheusSink() *stats.Prometheus {
	if a.promSink == nil {
		a.promSink = stats.NewPrometheus(a.Registry)
	}
	return a.promSink
}
