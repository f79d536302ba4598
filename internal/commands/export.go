package commands

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/stahnma/gh-rmdcrawl/internal/crawl"
	"github.com/stahnma/gh-rmdcrawl/internal/format"
	"github.com/stahnma/gh-rmdcrawl/internal/objectstore"
	"github.com/stahnma/gh-rmdcrawl/internal/store"
)

// ExportOptions selects what export prints and where it goes.
type ExportOptions struct {
	Accounts bool
	JSON     bool
	Slack    bool
	Upload   bool
}

type exportDoc struct {
	Date         string   `json:"date"`
	Count        int      `json:"count"`
	Repositories []string `json:"repositories,omitempty"`
	Accounts     []string `json:"accounts,omitempty"`
}

func (a *App) newExportCommand() *cobra.Command {
	var opts ExportOptions
	cmd := &cobra.Command{
		Use:   "export [flags]",
		Short: "Print the known repositories",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.Export(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}
	cmd.Flags().BoolVarP(&opts.Accounts, "accounts", "a", false, "Print the owning accounts instead of repositories")
	cmd.Flags().BoolVarP(&opts.JSON, "json", "j", false, "Print JSON instead of one value per line")
	cmd.Flags().BoolVarP(&opts.Slack, "slack", "s", false, "Wrap output in a slack code block")
	cmd.Flags().BoolVarP(&opts.Upload, "upload", "u", false, "Upload the store file to S3")
	return cmd
}

// Export writes the known repositories, or their accounts, to w.
func (a *App) Export(ctx context.Context, w io.Writer, opts ExportOptions) error {
	st, err := store.Open(a.Config.StoreDriver, a.Config.StorePath)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	known, err := st.Load(ctx)
	// The store is closed before any upload so SQLite has checkpointed.
	if cerr := st.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("loading store: %w", err)
	}

	values := known.Sorted()
	if opts.Accounts {
		values = crawl.Accounts(known)
	}

	if opts.JSON {
		now := time.Now()
		doc := exportDoc{Date: now.Format("2006-Jan-02"), Count: len(values)}
		if opts.Accounts {
			doc.Accounts = values
		} else {
			doc.Repositories = values
		}
		err = format.WriteJSON(w, doc, opts.Slack)
	} else {
		err = format.WriteLines(w, values, opts.Slack)
	}
	if err != nil {
		return err
	}

	if opts.Upload {
		mirror, err := a.EnsureMirror(ctx)
		if err != nil {
			return err
		}
		key := objectstore.ExpandKey(a.Config.S3ObjectKey, time.Now())
		if err := mirror.Upload(ctx, a.Config.StorePath, key); err != nil {
			return err
		}
	}
	return nil
}
