package pipeline

import (
	"github.com/rootsploit/deepx/internal/probe"
	"github.com/rootsploit/deepx/internal/sources"
	"github.com/rootsploit/deepx/internal/subdomain"
)

// ProbeScope picks which set the probe phase checks.
type ProbeScope string

const (
	ProbeHidden ProbeScope = "hidden"
	ProbeTotal  ProbeScope = "total"
	ProbeInput  ProbeScope = "input" // hosts read from Options.InputFile
)

// Options are the per-invocation choices the CLI makes.
type Options struct {
	Mode Mode

	NoBrute bool
	NoProbe bool
	// Probe adds the probe phase to compare mode.
	Probe      bool
	ProbeScope ProbeScope

	// File overrides; empty means the default name in the output directory.
	DeepFile  string
	FofaFile  string
	BruteFile string
	InputFile string
	// Wordlist replaces the persisted dictionary for brute force.
	Wordlist string
}

// State carries the sets flowing between phases of one run. A nil set
// means its producer has not run yet in this invocation.
type State struct {
	Domain string

	Deep       subdomain.Set
	Indexed    subdomain.Set
	Brute      subdomain.Set
	Dictionary []string
	Comparison *subdomain.Comparison
	Records    []probe.Record

	// Per-source outcomes of the collect phases.
	Results []sources.Result
	// Succeeded counts sources that returned usable data across the
	// collect phases.
	Succeeded int
	Attempted int
}

// PhaseInput is what a phase executor receives.
type PhaseInput struct {
	State   *State
	Builder *Builder
	Options Options
}

// NewState starts an empty state for domain.
func NewState(domain string) *State {
	return &State{Domain: domain}
}
