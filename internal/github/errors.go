package github

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	gh "github.com/google/go-github/v80/github"
)

// RateLimitError reports that GitHub throttled a request, either through the
// primary quota or a secondary (abuse) limit.
type RateLimitError struct {
	StatusCode int
	Message    string
	// ResetAt is when GitHub says the quota refills, zero when not reported.
	ResetAt time.Time
	Err     error
}

func (e *RateLimitError) Error() string {
	msg := fmt.Sprintf("github: rate limited (status %d): %s", e.StatusCode, e.Message)
	if !e.ResetAt.IsZero() {
		msg += ", resets at " + e.ResetAt.Format(time.RFC3339)
	}
	return msg
}

func (e *RateLimitError) Unwrap() error {
	return e.Err
}

// IsRateLimited reports whether err is a throttling error worth retrying.
func IsRateLimited(err error) bool {
	var rlErr *RateLimitError
	return errors.As(err, &rlErr)
}

// classify converts go-github throttling errors into *RateLimitError and
// wraps everything else with the operation name.
func classify(err error, operation string) error {
	if err == nil {
		return nil
	}

	var primary *gh.RateLimitError
	if errors.As(err, &primary) {
		return &RateLimitError{
			StatusCode: statusOf(primary.Response),
			Message:    primary.Message,
			ResetAt:    primary.Rate.Reset.Time,
			Err:        err,
		}
	}

	var secondary *gh.AbuseRateLimitError
	if errors.As(err, &secondary) {
		rl := &RateLimitError{
			StatusCode: statusOf(secondary.Response),
			Message:    secondary.Message,
			Err:        err,
		}
		if d := secondary.GetRetryAfter(); d > 0 {
			rl.ResetAt = time.Now().Add(d)
		}
		return rl
	}

	var apiErr *gh.ErrorResponse
	if errors.As(err, &apiErr) {
		status := statusOf(apiErr.Response)
		if status == http.StatusForbidden || status == http.StatusTooManyRequests {
			return &RateLimitError{StatusCode: status, Message: apiErr.Message, Err: err}
		}
	}

	return fmt.Errorf("%s: %w", operation, err)
}

func statusOf(resp *http.Response) int {
	if resp == nil {
		return 0
	}
	return resp.StatusCode
}
