// Package crawl drives the discovery loop: pick a query, page through its
// results, record repositories not seen before, and move on.
package crawl

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/stahnma/gh-rmdcrawl/internal/github"
	"github.com/stahnma/gh-rmdcrawl/internal/keywords"
	"github.com/stahnma/gh-rmdcrawl/internal/retry"
	"github.com/stahnma/gh-rmdcrawl/internal/store"
)

const (
	// DefaultPageDelay is the pause after every page.
	DefaultPageDelay = time.Second
	// DefaultExtension is the file extension the searches are restricted to.
	DefaultExtension = "Rmd"
	// DefaultAccountTerm is the search term used with an account scope.
	DefaultAccountTerm = "output"
)

// Config holds the loop's tunables.
type Config struct {
	Extension   string
	AccountTerm string
	MaxPages    int
	PageDelay   time.Duration
}

// DefaultConfig returns the standard tunables.
func DefaultConfig() Config {
	return Config{
		Extension:   DefaultExtension,
		AccountTerm: DefaultAccountTerm,
		MaxPages:    DefaultMaxPages,
		PageDelay:   DefaultPageDelay,
	}
}

// Summary describes what a crawl accomplished before it returned.
type Summary struct {
	RunID          uuid.UUID
	NewIdentifiers int
	Cycles         int
	Pages          int
	Known          int
}

// Crawler owns the known/pending identifier sets and the keyword tracker.
// It is not safe for concurrent use; cancellation arrives through the
// context passed to Run or RunAccounts.
type Crawler struct {
	searcher  github.Searcher
	store     store.Store
	tracker   *keywords.Tracker
	policy    retry.Policy
	cfg       Config
	observers []Observer
	logger    *zap.Logger
	sleep     func(context.Context, time.Duration) error
	now       func() time.Time
	runID     uuid.UUID

	loaded    bool
	known     store.Set
	pending   store.Set
	unflushed []string
	summary   Summary
}

// Option configures a Crawler.
type Option func(*Crawler)

// WithConfig replaces the default tunables.
func WithConfig(cfg Config) Option {
	return func(c *Crawler) { c.cfg = cfg }
}

// WithRetryPolicy replaces the default backoff policy.
func WithRetryPolicy(p retry.Policy) Option {
	return func(c *Crawler) { c.policy = p }
}

// WithObserver adds a page statistics observer.
func WithObserver(o Observer) Option {
	return func(c *Crawler) { c.observers = append(c.observers, o) }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Crawler) { c.logger = l }
}

// WithSleep replaces the context-aware sleep used for page delays and backoff.
func WithSleep(fn func(context.Context, time.Duration) error) Option {
	return func(c *Crawler) { c.sleep = fn }
}

// WithRunID fixes the run identifier reported in PageStats.
func WithRunID(id uuid.UUID) Option {
	return func(c *Crawler) { c.runID = id }
}

// New builds a Crawler. tracker may be nil when only RunAccounts is used.
func New(searcher github.Searcher, st store.Store, tracker *keywords.Tracker, opts ...Option) *Crawler {
	c := &Crawler{
		searcher: searcher,
		store:    st,
		tracker:  tracker,
		policy:   retry.DefaultPolicy(github.IsRateLimited),
		cfg:      DefaultConfig(),
		logger:   zap.NewNop(),
		sleep:    retry.Sleep,
		now:      time.Now,
		runID:    uuid.New(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.cfg.MaxPages <= 0 {
		c.cfg.MaxPages = DefaultMaxPages
	}
	if c.policy.Retryable == nil {
		c.policy.Retryable = github.IsRateLimited
	}
	if c.policy.Sleep == nil {
		c.policy.Sleep = c.sleep
	}
	if c.policy.Logger == nil {
		c.policy.Logger = c.logger
	}
	c.policy.OnExhausted = c.flush
	c.summary.RunID = c.runID
	return c
}

// cycle is one pagination sweep over a single query.
type cycle struct {
	mode     Mode
	terms    []string
	account  string
	query    string
	feedback func(newCount int)
}

// Run crawls keyword combinations until ctx is cancelled or a fatal error
// occurs. Cancellation is not an error: pending identifiers are persisted
// and the summary is returned with a nil error.
func (c *Crawler) Run(ctx context.Context) (Summary, error) {
	if c.tracker == nil {
		return c.summary, errors.New("crawl: keyword mode needs a keyword tracker")
	}
	if err := c.load(ctx); err != nil {
		return c.summary, err
	}

	for {
		if ctx.Err() != nil {
			return c.stop(ctx)
		}
		terms := c.tracker.Sample()
		cy := cycle{
			mode:  ModeKeywords,
			terms: terms,
			query: github.BuildQuery(terms, c.cfg.Extension, ""),
			feedback: func(n int) {
				c.tracker.RecordFeedback(terms, n)
			},
		}
		if err := c.runCycle(ctx, cy); err != nil {
			return c.finish(ctx, err)
		}
	}
}

// RunAccounts searches once through every account owning a known
// repository, in lexical order, then returns.
func (c *Crawler) RunAccounts(ctx context.Context) (Summary, error) {
	if err := c.load(ctx); err != nil {
		return c.summary, err
	}

	accounts := Accounts(c.known)
	c.logger.Info("crawling by account", zap.Int("accounts", len(accounts)))
	for _, account := range accounts {
		if ctx.Err() != nil {
			return c.stop(ctx)
		}
		terms := []string{c.cfg.AccountTerm}
		cy := cycle{
			mode:    ModeAccounts,
			terms:   terms,
			account: account,
			query:   github.BuildQuery(terms, c.cfg.Extension, account),
		}
		if err := c.runCycle(ctx, cy); err != nil {
			return c.finish(ctx, err)
		}
	}
	return c.stop(ctx)
}

// Accounts returns the distinct owner segments of ids, sorted. Identifiers
// without an owner segment are skipped.
func Accounts(ids store.Set) []string {
	seen := make(map[string]bool)
	var out []string
	for id := range ids {
		owner, _, ok := strings.Cut(id, "/")
		if !ok || owner == "" || seen[owner] {
			continue
		}
		seen[owner] = true
		out = append(out, owner)
	}
	sort.Strings(out)
	return out
}

// Seen reports whether id is known or pending.
func (c *Crawler) Seen(id string) bool {
	return c.known.Has(id) || c.pending.Has(id)
}

func (c *Crawler) load(ctx context.Context) error {
	if c.loaded {
		return nil
	}
	known, err := c.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("loading known identifiers: %w", err)
	}
	c.known = known
	c.pending = store.Set{}
	c.loaded = true
	c.logger.Info("loaded known repositories", zap.Int("count", known.Len()))
	return nil
}

func (c *Crawler) runCycle(ctx context.Context, cy cycle) error {
	c.logger.Debug("starting cycle", zap.String("mode", string(cy.mode)), zap.String("query", cy.query))

	cur := NewCursor()
	for cur.Next(c.cfg.MaxPages) {
		if err := ctx.Err(); err != nil {
			return err
		}

		pageNum := cur.Page
		// A request that has been sent is allowed to complete; cancellation
		// is observed before the next one.
		page, err := retry.Do(ctx, c.policy, func(rctx context.Context) (github.Page, error) {
			return c.searcher.Search(context.WithoutCancel(rctx), cy.query, pageNum)
		})
		if err != nil {
			return fmt.Errorf("searching %q page %d: %w", cy.query, pageNum, err)
		}
		cur.Advance(page)

		newCount, knownCount := c.classify(page)
		if err := c.flush(ctx); err != nil {
			return err
		}
		if cy.feedback != nil {
			cy.feedback(newCount)
		}
		c.summary.Pages++

		c.logger.Info(fmt.Sprintf("%d new repositories on this page out of %d", newCount, page.TotalCount),
			zap.String("query", cy.query), zap.Int("page", pageNum), zap.Int("known", knownCount))
		c.emit(PageStats{
			RunID:      c.runID,
			Mode:       cy.mode,
			Terms:      cy.terms,
			Account:    cy.account,
			Query:      cy.query,
			Page:       pageNum,
			New:        newCount,
			Known:      knownCount,
			TotalCount: page.TotalCount,
			At:         c.now(),
		})

		if err := c.sleep(ctx, c.cfg.PageDelay); err != nil {
			return err
		}
	}
	return c.endCycle(ctx)
}

// classify splits page items into new and already seen repositories,
// moving new ones into the pending set.
func (c *Crawler) classify(page github.Page) (newCount, knownCount int) {
	for _, item := range page.Items {
		id := item.Repository
		if id == "" {
			continue
		}
		if c.Seen(id) {
			knownCount++
			continue
		}
		c.pending.Add(id)
		c.unflushed = append(c.unflushed, id)
		newCount++
		c.logger.Info("new repository", zap.String("repository", id), zap.String("file", item.FileName))
	}
	c.summary.NewIdentifiers += newCount
	return newCount, knownCount
}

// flush persists identifiers discovered since the previous flush. It never
// observes cancellation so a shutdown cannot lose them.
func (c *Crawler) flush(ctx context.Context) error {
	if len(c.unflushed) == 0 {
		return nil
	}
	if err := c.store.Save(context.WithoutCancel(ctx), c.unflushed); err != nil {
		return fmt.Errorf("persisting identifiers: %w", err)
	}
	c.unflushed = c.unflushed[:0]
	return nil
}

func (c *Crawler) endCycle(ctx context.Context) error {
	if err := c.merge(ctx); err != nil {
		return err
	}
	c.summary.Cycles++
	return nil
}

// merge flushes and then folds the pending set into the known set.
func (c *Crawler) merge(ctx context.Context) error {
	if err := c.flush(ctx); err != nil {
		return err
	}
	for id := range c.pending {
		c.known.Add(id)
	}
	c.pending = store.Set{}
	return nil
}

func (c *Crawler) stop(ctx context.Context) (Summary, error) {
	if err := c.merge(ctx); err != nil {
		return c.summary, err
	}
	c.summary.Known = c.known.Len()
	c.logger.Info(fmt.Sprintf("Found %d new repositories in total.", c.summary.NewIdentifiers),
		zap.Int("pages", c.summary.Pages), zap.Int("cycles", c.summary.Cycles), zap.Int("known", c.summary.Known))
	return c.summary, nil
}

// finish ends a crawl interrupted by err, which is either a cancellation or fatal.
func (c *Crawler) finish(ctx context.Context, err error) (Summary, error) {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return c.stop(ctx)
	}
	if ferr := c.flush(ctx); ferr != nil {
		c.logger.Error("persisting pending identifiers failed", zap.Error(ferr))
	}
	c.summary.Known = c.known.Len() + c.pending.Len()
	c.logger.Error("crawl stopped", zap.Error(err), zap.Int("new", c.summary.NewIdentifiers))
	return c.summary, err
}

func (c *Crawler) emit(s PageStats) {
	for _, o := range c.observers {
		o.Observe(s)
	}
}
