package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func (a *App) newClearCacheCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clearcache",
		Short: "Clear the cached search pages",
		RunE: func(cmd *cobra.Command, args []string) error {
			n := a.Cache.Len()
			a.Cache.Flush()
			if err := a.Cache.SaveToFile(a.Config.CacheFile); err != nil {
				return fmt.Errorf("saving cache: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cache cleared (%d pages).\n", n)
			return nil
		},
	}
}
