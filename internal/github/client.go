package github

import (
	"context"
	"fmt"
	"time"

	gh "github.com/google/go-github/v80/github"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

// DefaultTimeout bounds a single API request.
const DefaultTimeout = 30 * time.Second

// Client defines the GitHub API methods used by this application.
type Client interface {
	SearchCode(ctx context.Context, query string, opts *gh.SearchOptions) (*gh.CodeSearchResult, *gh.Response, error)
}

// realClient wraps the go-github client to implement Client.
type realClient struct {
	inner *gh.Client
}

// NewClient creates a GitHub API client authenticated with the given token.
// A positive requestsPerSecond throttles calls before they are sent.
func NewClient(token string, requestsPerSecond float64) Client {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	httpClient := oauth2.NewClient(context.Background(), ts)
	httpClient.Timeout = DefaultTimeout

	var c Client = &realClient{inner: gh.NewClient(httpClient)}
	if requestsPerSecond > 0 {
		c = Throttle(c, rate.NewLimiter(rate.Limit(requestsPerSecond), 1))
	}
	return c
}

func (c *realClient) SearchCode(ctx context.Context, query string, opts *gh.SearchOptions) (*gh.CodeSearchResult, *gh.Response, error) {
	return c.inner.Search.Code(ctx, query, opts)
}

// throttledClient waits on a token bucket before every call.
type throttledClient struct {
	next    Client
	limiter *rate.Limiter
}

// Throttle returns a Client that waits on limiter before delegating to next.
func Throttle(next Client, limiter *rate.Limiter) Client {
	return &throttledClient{next: next, limiter: limiter}
}

func (c *throttledClient) SearchCode(ctx context.Context, query string, opts *gh.SearchOptions) (*gh.CodeSearchResult, *gh.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, nil, fmt.Errorf("rate limit wait: %w", err)
	}
	return c.next.SearchCode(ctx, query, opts)
}
