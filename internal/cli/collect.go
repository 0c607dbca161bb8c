package cli

import (
	"github.com/spf13/cobra"

	"github.com/rootsploit/deepx/internal/config"
	"github.com/rootsploit/deepx/internal/pipeline"
)

var (
	collectSources []string
	collectNoBrute bool
	collectLevels  int
)

var collectCmd = &cobra.Command{
	Use:   "collect <domain>",
	Short: "Collect subdomains from passive DNS, crt.sh and web archives",
	Long: `Queries the deep sources (AlienVault OTX, crt.sh, the Wayback Machine)
through the cache, writes deep_subdomain.txt, merges the extracted prefixes
into the dictionary file and brute forces with it.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		apply := func(cfg *config.Config) error {
			if cmd.Flags().Changed("sources") {
				cfg.Sources = collectSources
			}
			if cmd.Flags().Changed("levels") {
				cfg.DictLevels = collectLevels
			}
			return nil
		}
		opts := pipeline.Options{Mode: pipeline.ModeCollect, NoBrute: collectNoBrute}
		return runPipeline(cmd, args[0], opts, apply)
	},
}

func init() {
	collectCmd.Flags().StringSliceVarP(&collectSources, "sources", "s", nil, "Sources to query (otx,crtsh,archive)")
	collectCmd.Flags().BoolVar(&collectNoBrute, "no-brute", false, "Skip dictionary brute force")
	collectCmd.Flags().IntVar(&collectLevels, "levels", 2, "Label depth of extracted dictionary prefixes")
}
