package github

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"testing"
	"time"

	gh "github.com/google/go-github/v80/github"
	"github.com/stahnma/gh-rmdcrawl/internal/cache"
	"golang.org/x/time/rate"
)

func httpResponse(status int) *http.Response {
	return &http.Response{
		StatusCode: status,
		Request: &http.Request{
			Method: http.MethodGet,
			URL:    &url.URL{Scheme: "https", Host: "api.github.com", Path: "/search/code"},
		},
	}
}

func TestBuildQuery(t *testing.T) {
	tests := []struct {
		name    string
		terms   []string
		ext     string
		account string
		want    string
	}{
		{"keywords", []string{"setup", "title"}, "Rmd", "", "setup title extension:Rmd"},
		{"account", []string{"output"}, "Rmd", "alice", "output user:alice extension:Rmd"},
		{"dotted extension", []string{"date"}, ".qmd", "", "date extension:qmd"},
		{"blank terms", []string{" ", "library"}, "Rmd", "", "library extension:Rmd"},
		{"no extension", []string{"author"}, "", "", "author"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := BuildQuery(tt.terms, tt.ext, tt.account); got != tt.want {
				t.Errorf("BuildQuery() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSearch_Basic(t *testing.T) {
	var gotQuery string
	var gotOpts *gh.SearchOptions
	client := &mockClient{
		searchCodeFn: func(_ context.Context, query string, opts *gh.SearchOptions) (*gh.CodeSearchResult, *gh.Response, error) {
			gotQuery, gotOpts = query, opts
			return &gh.CodeSearchResult{
				Total: gh.Ptr(2),
				CodeResults: []*gh.CodeResult{
					makeCodeResult("alice", "project1"),
					makeCodeResult("bob", "project2"),
				},
			}, emptyResponse(), nil
		},
	}

	page, err := NewCodeSearcher(client).Search(context.Background(), "setup extension:Rmd", 3)
	if err != nil {
		t.Fatal(err)
	}
	if gotQuery != "setup extension:Rmd" {
		t.Errorf("query = %q", gotQuery)
	}
	if gotOpts.Page != 3 || gotOpts.PerPage != PerPage {
		t.Errorf("opts = page %d per_page %d, want 3/%d", gotOpts.Page, gotOpts.PerPage, PerPage)
	}
	if len(page.Items) != 2 {
		t.Fatalf("got %d items, want 2", len(page.Items))
	}
	if page.Items[0].Repository != "alice/project1" {
		t.Errorf("first repo = %s, want alice/project1", page.Items[0].Repository)
	}
	if page.Items[0].FileName != "analysis.Rmd" {
		t.Errorf("file name = %s", page.Items[0].FileName)
	}
	if page.HasNext {
		t.Error("expected no next page")
	}
	if page.TotalCount != 2 {
		t.Errorf("total = %d, want 2", page.TotalCount)
	}
}

func TestSearch_PaginationMetadata(t *testing.T) {
	client := &mockClient{
		searchCodeFn: func(_ context.Context, _ string, _ *gh.SearchOptions) (*gh.CodeSearchResult, *gh.Response, error) {
			resp := emptyResponse()
			resp.NextPage = 2
			resp.LastPage = 5
			return &gh.CodeSearchResult{Total: gh.Ptr(420)}, resp, nil
		},
	}

	page, err := NewCodeSearcher(client).Search(context.Background(), "q", 1)
	if err != nil {
		t.Fatal(err)
	}
	if !page.HasNext || page.TotalPages != 5 || page.TotalCount != 420 {
		t.Errorf("page = %+v, want next=true pages=5 total=420", page)
	}
}

func TestRepoIdentifier(t *testing.T) {
	tests := []struct {
		repo *gh.Repository
		want string
	}{
		{&gh.Repository{FullName: gh.Ptr("org/full"), Name: gh.Ptr("full")}, "org/full"},
		{&gh.Repository{Owner: &gh.User{Login: gh.Ptr("alice")}, Name: gh.Ptr("x")}, "alice/x"},
		{&gh.Repository{Name: gh.Ptr("lonely")}, "lonely"},
	}
	for _, tt := range tests {
		if got := repoIdentifier(tt.repo); got != tt.want {
			t.Errorf("repoIdentifier() = %q, want %q", got, tt.want)
		}
	}
}

func TestSearch_ErrorClassification(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		rateLimited bool
	}{
		{"primary", &gh.RateLimitError{Response: httpResponse(403), Message: "API rate limit exceeded"}, true},
		{"secondary", &gh.AbuseRateLimitError{Response: httpResponse(403), Message: "secondary rate limit", RetryAfter: gh.Ptr(time.Minute)}, true},
		{"forbidden", &gh.ErrorResponse{Response: httpResponse(403), Message: "forbidden"}, true},
		{"too many", &gh.ErrorResponse{Response: httpResponse(429), Message: "slow down"}, true},
		{"validation", &gh.ErrorResponse{Response: httpResponse(422), Message: "Validation Failed"}, false},
		{"transport", errors.New("connection reset"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &mockClient{
				searchCodeFn: func(_ context.Context, _ string, _ *gh.SearchOptions) (*gh.CodeSearchResult, *gh.Response, error) {
					return nil, nil, tt.err
				},
			}
			_, err := NewCodeSearcher(client).Search(context.Background(), "q", 1)
			if err == nil {
				t.Fatal("expected error")
			}
			if got := IsRateLimited(err); got != tt.rateLimited {
				t.Errorf("IsRateLimited = %v, want %v", got, tt.rateLimited)
			}
			if !errors.Is(err, tt.err) {
				t.Error("expected original error to stay in the chain")
			}
		})
	}
}

func TestRateLimitError_ResetAt(t *testing.T) {
	err := classify(&gh.AbuseRateLimitError{Response: httpResponse(403), RetryAfter: gh.Ptr(time.Minute)}, "search code")
	var rl *RateLimitError
	if !errors.As(err, &rl) {
		t.Fatalf("expected *RateLimitError, got %T", err)
	}
	if rl.ResetAt.Before(time.Now()) {
		t.Error("expected reset time in the future")
	}
	if rl.StatusCode != 403 {
		t.Errorf("status = %d, want 403", rl.StatusCode)
	}
}

func TestThrottle(t *testing.T) {
	calls := 0
	inner := &mockClient{
		searchCodeFn: func(_ context.Context, _ string, _ *gh.SearchOptions) (*gh.CodeSearchResult, *gh.Response, error) {
			calls++
			return &gh.CodeSearchResult{}, emptyResponse(), nil
		},
	}
	client := Throttle(inner, rate.NewLimiter(rate.Every(time.Hour), 1))

	if _, _, err := client.SearchCode(context.Background(), "q", nil); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, _, err := client.SearchCode(ctx, "q", nil); err == nil {
		t.Error("expected the second call to be throttled")
	}
	if calls != 1 {
		t.Errorf("inner calls = %d, want 1", calls)
	}
}

func TestCachedSearcher(t *testing.T) {
	inner := &fakeSearcher{page: Page{Items: []Item{{Repository: "alice/x"}}, HasNext: true}}
	s := NewCachedSearcher(inner, cache.New(), nil)

	for i := 0; i < 2; i++ {
		p, err := s.Search(context.Background(), "setup extension:Rmd", 1)
		if err != nil {
			t.Fatal(err)
		}
		if len(p.Items) != 1 || !p.HasNext {
			t.Errorf("unexpected page %+v", p)
		}
	}
	if inner.calls != 1 {
		t.Errorf("expected 1 delegated call, got %d", inner.calls)
	}

	if _, err := s.Search(context.Background(), "setup extension:Rmd", 2); err != nil {
		t.Fatal(err)
	}
	if inner.calls != 2 {
		t.Errorf("different page should miss the cache, got %d calls", inner.calls)
	}
}

func TestCachedSearcher_ErrorNotCached(t *testing.T) {
	inner := &fakeSearcher{err: errors.New("boom")}
	s := NewCachedSearcher(inner, cache.New(), nil)

	for i := 0; i < 2; i++ {
		if _, err := s.Search(context.Background(), "q", 1); err == nil {
			t.Fatal("expected error")
		}
	}
	if inner.calls != 2 {
		t.Errorf("errors must not be cached, got %d calls", inner.calls)
	}
}
