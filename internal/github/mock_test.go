package github

import (
	"context"
	"net/http"

	gh "github.com/google/go-github/v80/github"
)

// mockClient implements Client for testing.
type mockClient struct {
	searchCodeFn func(ctx context.Context, query string, opts *gh.SearchOptions) (*gh.CodeSearchResult, *gh.Response, error)
}

func (m *mockClient) SearchCode(ctx context.Context, query string, opts *gh.SearchOptions) (*gh.CodeSearchResult, *gh.Response, error) {
	return m.searchCodeFn(ctx, query, opts)
}

// emptyResponse returns a *gh.Response that signals no more pages.
func emptyResponse() *gh.Response {
	return &gh.Response{
		Response: &http.Response{StatusCode: 200},
	}
}

// makeCodeResult builds a CodeResult for the given owner/repo.
func makeCodeResult(owner, name string) *gh.CodeResult {
	return &gh.CodeResult{
		Name: gh.Ptr("analysis.Rmd"),
		Path: gh.Ptr("reports/analysis.Rmd"),
		Repository: &gh.Repository{
			Owner: &gh.User{Login: gh.Ptr(owner)},
			Name:  gh.Ptr(name),
		},
	}
}

// fakeSearcher counts calls and returns a fixed page.
type fakeSearcher struct {
	calls int
	page  Page
	err   error
}

func (f *fakeSearcher) Search(_ context.Context, _ string, _ int) (Page, error) {
	f.calls++
	return f.page, f.err
}
