package output

import (
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"

	"github.com/rootsploit/deepx/internal/probe"
	"github.com/rootsploit/deepx/internal/sources"
)

// Console prints the human-facing progress lines.
type Console struct {
	out io.Writer

	cyan   *color.Color
	green  *color.Color
	yellow *color.Color
	red    *color.Color
	gray   *color.Color
	white  *color.Color
}

// NewConsole writes to out (color.Output when nil). noColor strips escapes.
func NewConsole(out io.Writer, noColor bool) *Console {
	if out == nil {
		out = color.Output
	}
	c := &Console{
		out:    out,
		cyan:   color.New(color.FgCyan, color.Bold),
		green:  color.New(color.FgGreen),
		yellow: color.New(color.FgYellow),
		red:    color.New(color.FgRed, color.Bold),
		gray:   color.New(color.FgHiBlack),
		white:  color.New(color.FgWhite, color.Bold),
	}
	if noColor {
		for _, col := range []*color.Color{c.cyan, c.green, c.yellow, c.red, c.gray, c.white} {
			col.DisableColor()
		}
	}
	return c
}

func (c *Console) Banner(version string) {
	c.red.Fprint(c.out, `
     _
  __| | ___  ___ _ __ __  __
 / _' |/ _ \/ _ \ '_ \\ \/ /
| (_| |  __/  __/ |_) |>  <
 \__,_|\___|\___| .__//_/\_\
                |_|
`)
	c.cyan.Fprint(c.out, "  Hidden Subdomain Discovery")
	c.gray.Fprintf(c.out, "  v%s\n\n", version)
}

// Phase prints a stage header.
func (c *Console) Phase(title string) {
	c.cyan.Fprintf(c.out, "\n[+] %s\n", title)
}

func (c *Console) Info(format string, args ...interface{}) {
	c.gray.Fprintf(c.out, "    [*] "+format+"\n", args...)
}

func (c *Console) Success(format string, args ...interface{}) {
	c.green.Fprintf(c.out, "    [✓] "+format+"\n", args...)
}

func (c *Console) Warn(format string, args ...interface{}) {
	c.yellow.Fprintf(c.out, "    [!] "+format+"\n", args...)
}

func (c *Console) Error(format string, args ...interface{}) {
	c.red.Fprintf(c.out, "    [✗] "+format+"\n", args...)
}

// SourceResults prints one line per collector outcome.
func (c *Console) SourceResults(results []sources.Result) {
	for _, r := range results {
		switch {
		case !r.Success:
			c.Warn("source %s failed: %v", r.Source, r.Err)
		case r.Partial:
			c.Warn("source %s returned partial results (%d): %v", r.Source, r.Hostnames.Len(), r.Err)
		case r.FromCache:
			c.Info("%-8s %d hosts (cache)", r.Source, r.Hostnames.Len())
		default:
			c.Success("%-8s %d hosts in %s", r.Source, r.Hostnames.Len(), r.Duration.Round(time.Millisecond))
		}
	}
}

// Record prints a liveness line colored by status class.
func (c *Console) Record(r probe.Record) {
	line := FormatRecord(r)
	switch {
	case !r.Alive:
		c.gray.Fprintln(c.out, line)
	case r.StatusCode >= 500:
		c.red.Fprintln(c.out, line)
	case r.StatusCode >= 400:
		c.yellow.Fprintln(c.out, line)
	case r.StatusCode >= 300:
		c.cyan.Fprintln(c.out, line)
	default:
		c.green.Fprintln(c.out, line)
	}
}

// ProbeSummary prints the alive records followed by the totals.
func (c *Console) ProbeSummary(records []probe.Record) {
	alive := probe.Alive(records)
	for _, r := range alive {
		c.Record(r)
	}
	c.white.Fprintf(c.out, "    total %d, alive %d, dead %d\n", len(records), len(alive), len(records)-len(alive))
}

// Summary closes a run with the per-file counts.
func (c *Console) Summary(runID string, elapsed time.Duration, files map[string]int, order []string) {
	c.green.Fprintln(c.out, "\n━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	c.green.Fprintf(c.out, "  Run %s\n", runID)
	c.green.Fprintln(c.out, "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	for _, name := range order {
		n, ok := files[name]
		if !ok {
			continue
		}
		fmt.Fprintf(c.out, "  %-28s %d\n", name, n)
	}
	c.green.Fprintf(c.out, "  Total time: %s\n", elapsed.Round(time.Millisecond))
	c.green.Fprintln(c.out, "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
}
