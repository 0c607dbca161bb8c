package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rootsploit/deepx/internal/config"
	"github.com/rootsploit/deepx/internal/pipeline"
)

var (
	allNoBrute    bool
	allNoProbe    bool
	allProbeScope string
	allFofa       fofaFlags
)

var allCmd = &cobra.Command{
	Use:   "all <domain>",
	Short: "Run the full pipeline",
	Long: `Runs deep collection, FOFA collection, dictionary update, brute force,
comparison and the liveness probe in order. Without FOFA credentials the
indexed set is empty and every collected host counts as hidden.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		scope := pipeline.ProbeScope(allProbeScope)
		if scope != pipeline.ProbeTotal && scope != pipeline.ProbeHidden {
			return fmt.Errorf("--probe must be %q or %q", pipeline.ProbeTotal, pipeline.ProbeHidden)
		}
		apply := func(cfg *config.Config) error {
			allFofa.apply(cmd, cfg)
			return nil
		}
		opts := pipeline.Options{
			Mode:       pipeline.ModeAll,
			NoBrute:    allNoBrute,
			NoProbe:    allNoProbe,
			ProbeScope: scope,
		}
		return runPipeline(cmd, args[0], opts, apply)
	},
}

func init() {
	allCmd.Flags().BoolVar(&allNoBrute, "no-brute", false, "Skip dictionary brute force")
	allCmd.Flags().BoolVar(&allNoProbe, "no-probe", false, "Skip the liveness probe")
	allCmd.Flags().StringVar(&allProbeScope, "probe", string(pipeline.ProbeTotal), "Hosts to probe: total or hidden")
	allFofa.register(allCmd)
}
