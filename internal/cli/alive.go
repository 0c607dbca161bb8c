package cli

import (
	"github.com/spf13/cobra"

	"github.com/rootsploit/deepx/internal/config"
	"github.com/rootsploit/deepx/internal/pipeline"
)

var (
	aliveInput       string
	aliveConcurrency int
)

var aliveCmd = &cobra.Command{
	Use:   "alive <domain>",
	Short: "Probe hosts for HTTP(S) liveness",
	Long: `Checks every in-scope host of --input (default: <output>/result.txt)
over HTTPS, falling back to HTTP, and writes alive.txt with the status,
title and size of each live host. Dead hosts are listed last.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		apply := func(cfg *config.Config) error {
			if cmd.Flags().Changed("concurrency") {
				cfg.ProbeConcurrency = aliveConcurrency
			}
			return nil
		}
		opts := pipeline.Options{Mode: pipeline.ModeAlive, InputFile: aliveInput, ProbeScope: pipeline.ProbeInput}
		return runPipeline(cmd, args[0], opts, apply)
	},
}

func init() {
	aliveCmd.Flags().StringVarP(&aliveInput, "input", "i", "", "Newline-delimited hosts to probe (default: <output>/result.txt)")
	aliveCmd.Flags().IntVarP(&aliveConcurrency, "concurrency", "c", 50, "Concurrent probes")
}
