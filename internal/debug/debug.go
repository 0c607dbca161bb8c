package debug

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
)

// Tracer prints colored START/END timing lines for sources and phases and
// keeps them for a closing summary. A nil or disabled Tracer is a no-op.
type Tracer struct {
	enabled bool
	out     io.Writer

	mu   sync.Mutex
	logs []LogEntry
}

type LogEntry struct {
	Timestamp time.Time     `json:"timestamp"`
	Name      string        `json:"name"`
	Duration  time.Duration `json:"duration"`
	Status    string        `json:"status"`
	Count     int           `json:"count"`
}

// New returns a tracer writing to out (color.Output when nil).
func New(enabled bool, out io.Writer) *Tracer {
	if out == nil {
		out = color.Output
	}
	return &Tracer{enabled: enabled, out: out}
}

// IsEnabled returns whether debug tracing is enabled
func (t *Tracer) IsEnabled() bool {
	return t != nil && t.enabled
}

// Start logs the start of a unit of work
func (t *Tracer) Start(name string, detail ...string) time.Time {
	start := time.Now()
	if !t.IsEnabled() {
		return start
	}
	gray := color.New(color.FgHiBlack)
	t.mu.Lock()
	gray.Fprintf(t.out, "    [DEBUG %s] START: %s %s\n", start.Format("15:04:05.000"), name, strings.Join(detail, " "))
	t.mu.Unlock()
	return start
}

// End logs the completion of a unit of work started with Start
func (t *Tracer) End(name string, start time.Time, err error, count int) {
	if !t.IsEnabled() {
		return
	}
	duration := time.Since(start)
	end := time.Now()

	status := "OK"
	statusColor := color.New(color.FgGreen)
	if err != nil {
		status = fmt.Sprintf("ERROR: %v", err)
		statusColor = color.New(color.FgRed)
	}

	gray := color.New(color.FgHiBlack)
	t.mu.Lock()
	defer t.mu.Unlock()
	gray.Fprintf(t.out, "    [DEBUG %s] END:   %s ", end.Format("15:04:05.000"), name)
	statusColor.Fprintf(t.out, "%s", status)
	gray.Fprintf(t.out, " (duration: %s, results: %d)\n", duration.Round(time.Millisecond), count)

	t.logs = append(t.logs, LogEntry{
		Timestamp: end,
		Name:      name,
		Duration:  duration,
		Status:    status,
		Count:     count,
	})
}

// PhaseStart logs the start of a pipeline phase
func (t *Tracer) PhaseStart(phase string) time.Time {
	start := time.Now()
	if !t.IsEnabled() {
		return start
	}
	cyan := color.New(color.FgCyan, color.Bold)
	t.mu.Lock()
	cyan.Fprintf(t.out, "    [DEBUG %s] PHASE START: %s\n", start.Format("15:04:05.000"), phase)
	t.mu.Unlock()
	return start
}

// PhaseEnd logs the end of a pipeline phase
func (t *Tracer) PhaseEnd(phase string, start time.Time) {
	if !t.IsEnabled() {
		return
	}
	cyan := color.New(color.FgCyan, color.Bold)
	t.mu.Lock()
	cyan.Fprintf(t.out, "    [DEBUG %s] PHASE END:   %s (total: %s)\n", time.Now().Format("15:04:05.000"), phase, time.Since(start).Round(time.Millisecond))
	t.mu.Unlock()
}

// Summary prints a table of every traced unit
func (t *Tracer) Summary() {
	if !t.IsEnabled() {
		return
	}
	logs := t.Logs()
	if len(logs) == 0 {
		return
	}

	cyan := color.New(color.FgCyan, color.Bold)
	fmt.Fprintln(t.out)
	cyan.Fprintln(t.out, "═══════════════════════════════════════════════════════")
	cyan.Fprintln(t.out, "                    DEBUG SUMMARY")
	cyan.Fprintln(t.out, "═══════════════════════════════════════════════════════")

	var total time.Duration
	for _, l := range logs {
		mark := "✓"
		if strings.HasPrefix(l.Status, "ERROR") {
			mark = "✗"
		}
		fmt.Fprintf(t.out, "  %s %-20s %10s %6d\n", mark, l.Name, l.Duration.Round(time.Millisecond), l.Count)
		total += l.Duration
	}

	fmt.Fprintln(t.out, "───────────────────────────────────────────────────────")
	fmt.Fprintf(t.out, "  Total traced time: %s\n", total.Round(time.Millisecond))
	fmt.Fprintf(t.out, "  Units traced: %d\n", len(logs))
	cyan.Fprintln(t.out, "═══════════════════════════════════════════════════════")
}

// Logs returns all logged entries
func (t *Tracer) Logs() []LogEntry {
	if t == nil {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]LogEntry{}, t.logs...)
}
