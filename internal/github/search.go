package github

import (
	"context"
	"fmt"
	"strings"

	gh "github.com/google/go-github/v80/github"
	"github.com/stahnma/gh-rmdcrawl/internal/cache"
	"go.uber.org/zap"
)

// PerPage is the code-search page size; 100 is the API maximum.
const PerPage = 100

// Searcher runs one page of a code search.
type Searcher interface {
	Search(ctx context.Context, query string, page int) (Page, error)
}

// CodeSearcher issues code-search requests through a Client.
type CodeSearcher struct {
	client  Client
	perPage int
}

// NewCodeSearcher returns a CodeSearcher using the API's maximum page size.
func NewCodeSearcher(client Client) *CodeSearcher {
	return &CodeSearcher{client: client, perPage: PerPage}
}

// BuildQuery joins terms with spaces and appends the optional account scope
// and the file extension filter.
func BuildQuery(terms []string, extension, account string) string {
	parts := make([]string, 0, len(terms)+2)
	for _, t := range terms {
		if t = strings.TrimSpace(t); t != "" {
			parts = append(parts, t)
		}
	}
	if account != "" {
		parts = append(parts, "user:"+account)
	}
	if extension != "" {
		parts = append(parts, "extension:"+strings.TrimPrefix(extension, "."))
	}
	return strings.Join(parts, " ")
}

// Search fetches exactly one page of results for query.
func (s *CodeSearcher) Search(ctx context.Context, query string, page int) (Page, error) {
	opts := &gh.SearchOptions{ListOptions: gh.ListOptions{Page: page, PerPage: s.perPage}}
	results, response, err := s.client.SearchCode(ctx, query, opts)
	if err != nil {
		return Page{}, classify(err, "search code")
	}

	out := Page{TotalCount: results.GetTotal()}
	if response != nil {
		out.TotalPages = response.LastPage
		out.HasNext = response.NextPage != 0
	}
	for _, item := range results.CodeResults {
		out.Items = append(out.Items, Item{
			Repository: repoIdentifier(item.GetRepository()),
			FileName:   item.GetName(),
			Path:       item.GetPath(),
		})
	}
	return out, nil
}

// repoIdentifier prefers the full name and falls back to owner/name, then name.
func repoIdentifier(r *gh.Repository) string {
	if full := r.GetFullName(); full != "" {
		return full
	}
	if owner := r.GetOwner().GetLogin(); owner != "" {
		return owner + "/" + r.GetName()
	}
	return r.GetName()
}

// CachedSearcher serves repeated (query, page) lookups from a cache.
type CachedSearcher struct {
	next   Searcher
	cache  *cache.Cache
	logger *zap.Logger
}

// NewCachedSearcher wraps next with c.
func NewCachedSearcher(next Searcher, c *cache.Cache, logger *zap.Logger) *CachedSearcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedSearcher{next: next, cache: c, logger: logger}
}

// Search returns a cached page when present, otherwise delegates and caches
// successful responses.
func (s *CachedSearcher) Search(ctx context.Context, query string, page int) (Page, error) {
	cacheKey := fmt.Sprintf("search:%s:%d", query, page)
	if val, found := s.cache.Get(cacheKey); found {
		if p, ok := val.(Page); ok {
			s.logger.Debug("cache hit", zap.String("key", cacheKey))
			return p, nil
		}
	}
	s.logger.Debug("cache miss", zap.String("key", cacheKey))

	p, err := s.next.Search(ctx, query, page)
	if err != nil {
		return Page{}, err
	}
	s.cache.Set(cacheKey, p)
	return p, nil
}
