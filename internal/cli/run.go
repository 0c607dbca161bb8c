package cli

import (
	"bufio"
	"errors"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/rootsploit/deepx/internal/config"
	"github.com/rootsploit/deepx/internal/output"
	"github.com/rootsploit/deepx/internal/pipeline"
	"github.com/rootsploit/deepx/internal/version"
)

// runPipeline is the common body of every scanning subcommand.
func runPipeline(cmd *cobra.Command, domain string, opts pipeline.Options, apply func(*config.Config) error) error {
	e, err := setup(cmd, apply)
	if err != nil {
		return err
	}
	defer e.close()

	printBanner(e.console)
	ex, err := pipeline.NewFromConfig(e.cfg, e.log, e.tracer, e.console, version.Version)
	if err != nil {
		return err
	}
	defer ex.Close()

	start := time.Now()
	report, err := ex.Run(cmd.Context(), domain, opts)
	if report != nil {
		e.console.Summary(report.Run.RunID, time.Since(start), ex.Output().Counts(), output.FileOrder)
		if cmd.Context().Err() != nil {
			e.console.Warn("interrupted, partial results saved in %s", ex.Output().BaseDir())
		}
	}
	return err
}

// parseResolvers accepts a resolvers file (one server per line) or a
// comma-separated list.
func parseResolvers(value string) ([]string, error) {
	if value == "" {
		return nil, nil
	}
	f, err := os.Open(value)
	switch {
	case errors.Is(err, os.ErrNotExist):
		var out []string
		for _, s := range strings.Split(value, ",") {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
		return out, nil
	case err != nil:
		return nil, err
	}
	defer f.Close()

	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out, sc.Err()
}
