package cli

import (
	"github.com/spf13/cobra"

	"github.com/rootsploit/deepx/internal/pipeline"
)

var (
	compareDeepFile  string
	compareFofaFile  string
	compareBruteFile string
	compareAlive     bool
)

var compareCmd = &cobra.Command{
	Use:   "compare <domain>",
	Short: "Find hosts the FOFA index does not know about",
	Long: `Reads the deep, FOFA and brute force result files and writes
result.txt (hidden: found directly or by brute force but absent from FOFA)
and total.txt (every host). Missing input files count as empty.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := pipeline.Options{
			Mode:       pipeline.ModeCompare,
			DeepFile:   compareDeepFile,
			FofaFile:   compareFofaFile,
			BruteFile:  compareBruteFile,
			Probe:      compareAlive,
			ProbeScope: pipeline.ProbeHidden,
		}
		return runPipeline(cmd, args[0], opts, nil)
	},
}

func init() {
	compareCmd.Flags().StringVar(&compareDeepFile, "deep-file", "", "Deep collection results (default: <output>/deep_subdomain.txt)")
	compareCmd.Flags().StringVar(&compareFofaFile, "fofa-file", "", "FOFA results (default: <output>/fofa_subdomain.txt)")
	compareCmd.Flags().StringVar(&compareBruteFile, "brute-file", "", "Brute force results (default: <output>/brute_subdomain.txt)")
	compareCmd.Flags().BoolVar(&compareAlive, "alive", false, "Probe the hidden hosts for HTTP liveness")
}
