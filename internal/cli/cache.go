package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/rootsploit/deepx/internal/cache"
	"github.com/rootsploit/deepx/internal/config"
)

var (
	cacheCmd = &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clean the source cache",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cachePurgeCmd = &cobra.Command{
		Use:   "purge",
		Short: "Remove expired cache entries",
		Args:  cobra.NoArgs,
		RunE:  runCachePurge,
	}

	cacheStatsCmd = &cobra.Command{
		Use:   "stats",
		Short: "Show cache entry counts",
		Args:  cobra.NoArgs,
		RunE:  runCacheStats,
	}
)

func init() {
	cacheCmd.AddCommand(cachePurgeCmd)
	cacheCmd.AddCommand(cacheStatsCmd)
}

func openCache(cfg *config.Config) (cache.Store, error) {
	return cache.Open(cache.Options{
		Backend:  cfg.Cache.Backend,
		Dir:      cfg.Cache.Dir,
		TTL:      cfg.Cache.TTL,
		Disabled: cfg.Cache.Disabled,
	})
}

func runCachePurge(cmd *cobra.Command, args []string) error {
	e, err := setup(cmd, nil)
	if err != nil {
		return err
	}
	defer e.close()

	store, err := openCache(e.cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	n, err := store.PurgeExpired(cmd.Context())
	if err != nil {
		return fmt.Errorf("purge cache: %w", err)
	}
	e.console.Success("removed %d expired entries", n)
	return nil
}

func runCacheStats(cmd *cobra.Command, args []string) error {
	e, err := setup(cmd, nil)
	if err != nil {
		return err
	}
	defer e.close()

	store, err := openCache(e.cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	stats, err := store.Stats(cmd.Context())
	if err != nil {
		return fmt.Errorf("cache stats: %w", err)
	}

	cyan := color.New(color.FgCyan, color.Bold)
	gray := color.New(color.FgHiBlack)
	if e.cfg.NoColor {
		cyan.DisableColor()
		gray.DisableColor()
	}
	out := cmd.OutOrStdout()
	cyan.Fprintln(out, "\n[+] Cache")
	fmt.Fprintf(out, "    backend:  %s\n", stats.Backend)
	if stats.Backend != "disabled" && stats.Backend != "memory" {
		fmt.Fprintf(out, "    location: %s\n", e.cfg.Cache.Dir)
	}
	fmt.Fprintf(out, "    ttl:      %s\n", e.cfg.Cache.TTL)
	fmt.Fprintf(out, "    entries:  %d\n", stats.Total)
	fmt.Fprintf(out, "    expired:  %d\n", stats.Expired)
	if stats.Expired > 0 {
		gray.Fprintln(out, "\n    Run 'deepx cache purge' to remove expired entries.")
	}
	return nil
}
