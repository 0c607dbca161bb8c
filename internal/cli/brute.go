package cli

import (
	"github.com/spf13/cobra"

	"github.com/rootsploit/deepx/internal/config"
	"github.com/rootsploit/deepx/internal/pipeline"
)

var (
	bruteWordlist    string
	bruteResolvers   string
	bruteConcurrency int
	bruteNoWildcard  bool
)

var bruteCmd = &cobra.Command{
	Use:   "brute <domain>",
	Short: "Brute force subdomains with the accumulated dictionary",
	Long: `Resolves <word>.<domain> for every word in the dictionary file (or
--wordlist) and writes the names that resolve to brute_subdomain.txt.
Wildcard answers are filtered unless --no-wildcard-check is given.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		apply := func(cfg *config.Config) error {
			servers, err := parseResolvers(bruteResolvers)
			if err != nil {
				return err
			}
			if len(servers) > 0 {
				cfg.Resolvers = servers
			}
			if cmd.Flags().Changed("concurrency") {
				cfg.BruteConcurrency = bruteConcurrency
			}
			if bruteNoWildcard {
				cfg.DetectWildcard = false
			}
			return nil
		}
		opts := pipeline.Options{Mode: pipeline.ModeBrute, Wordlist: bruteWordlist}
		return runPipeline(cmd, args[0], opts, apply)
	},
}

func init() {
	bruteCmd.Flags().StringVarP(&bruteWordlist, "wordlist", "w", "", "Wordlist to use instead of the dictionary file")
	bruteCmd.Flags().StringVarP(&bruteResolvers, "resolvers", "r", "", "Resolvers file or comma-separated list (default: system, then 8.8.8.8/1.1.1.1)")
	bruteCmd.Flags().IntVarP(&bruteConcurrency, "concurrency", "c", 100, "Concurrent DNS lookups")
	bruteCmd.Flags().BoolVar(&bruteNoWildcard, "no-wildcard-check", false, "Keep candidates that only match wildcard DNS")
}
