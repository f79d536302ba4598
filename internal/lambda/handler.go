// Package lambda runs bounded crawls as an AWS Lambda function. The
// identifier store lives in S3 between invocations.
package lambda

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/stahnma/gh-rmdcrawl/internal/commands"
	"github.com/stahnma/gh-rmdcrawl/internal/crawl"
)

// DefaultMargin is reserved before the invocation deadline for flushing
// and uploading the store.
const DefaultMargin = 30 * time.Second

// Event is the optional invocation payload.
type Event struct {
	// Mode is "keywords" (default) or "accounts".
	Mode string `json:"mode"`
}

// NewHandler returns a Lambda handler function that downloads the store,
// crawls until shortly before the deadline, and uploads the store again.
func NewHandler(app *commands.App) func(context.Context, json.RawMessage) (string, error) {
	return func(ctx context.Context, payload json.RawMessage) (string, error) {
		return Handle(ctx, app, payload, DefaultMargin)
	}
}

// Handle runs one invocation.
func Handle(ctx context.Context, app *commands.App, payload json.RawMessage, margin time.Duration) (string, error) {
	var ev Event
	if len(payload) > 0 && string(payload) != "null" {
		if err := json.Unmarshal(payload, &ev); err != nil {
			return "", fmt.Errorf("decoding event: %w", err)
		}
	}
	mode := crawl.ModeKeywords
	switch ev.Mode {
	case "", string(crawl.ModeKeywords):
	case string(crawl.ModeAccounts):
		mode = crawl.ModeAccounts
	default:
		return "", fmt.Errorf("unknown mode %q", ev.Mode)
	}

	if err := app.Prepare(); err != nil {
		return "", err
	}
	mirror, err := app.EnsureMirror(ctx)
	if err != nil {
		return "", err
	}
	key := app.Config.S3ObjectKey
	path := app.Config.StorePath

	if _, err := mirror.Download(ctx, key, path); err != nil {
		return "", err
	}

	crawlCtx := ctx
	if deadline, ok := ctx.Deadline(); ok {
		var cancel context.CancelFunc
		crawlCtx, cancel = context.WithDeadline(ctx, deadline.Add(-margin))
		defer cancel()
	}

	summary, crawlErr := app.Crawl(crawlCtx, mode)
	if crawlErr != nil {
		app.Logger.Error("crawl failed, uploading what was found", zap.Error(crawlErr))
	}

	var uploadErr error
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		// Nothing was ever found, so there is nothing to mirror.
		app.Logger.Info("no local store, skipping upload", zap.String("path", path))
	} else {
		uploadErr = mirror.Upload(context.WithoutCancel(ctx), path, key)
	}
	if err := app.SaveCache(); err != nil {
		app.Logger.Warn("saving cache", zap.Error(err))
	}
	if err := errors.Join(crawlErr, uploadErr); err != nil {
		return "", err
	}
	return fmt.Sprintf("Found %d new repositories in %d pages; %d known", summary.NewIdentifiers, summary.Pages, summary.Known), nil
}
