package pipeline

import (
	"fmt"
	"strings"
)

// Phase represents a pipeline stage identifier
type Phase string

const (
	PhaseCollect    Phase = "collect"    // deep sources
	PhaseIndexed    Phase = "indexed"    // FOFA
	PhaseDictionary Phase = "dictionary" // prefix extraction
	PhaseBrute      Phase = "brute"
	PhaseCompare    Phase = "compare"
	PhaseProbe      Phase = "probe"
)

// PhaseNumber maps phases to their display number
var PhaseNumber = map[Phase]int{
	PhaseCollect:    1,
	PhaseIndexed:    2,
	PhaseDictionary: 3,
	PhaseBrute:      4,
	PhaseCompare:    5,
	PhaseProbe:      6,
}

// PhaseName maps phases to their display name
var PhaseName = map[Phase]string{
	PhaseCollect:    "Deep Collection",
	PhaseIndexed:    "Indexed Collection (FOFA)",
	PhaseDictionary: "Prefix Dictionary",
	PhaseBrute:      "DNS Brute Force",
	PhaseCompare:    "Comparison",
	PhaseProbe:      "Liveness Probe",
}

// PhaseDependencies lists what each phase reads. They are soft: a phase
// whose producer did not run in this invocation loads the producer's file
// from the output directory instead.
var PhaseDependencies = map[Phase][]Phase{
	PhaseCollect:    {},
	PhaseIndexed:    {},
	PhaseDictionary: {PhaseCollect, PhaseIndexed},
	PhaseBrute:      {PhaseDictionary},
	PhaseCompare:    {PhaseCollect, PhaseIndexed, PhaseBrute},
	PhaseProbe:      {PhaseCompare},
}

// GetAllPhases returns all phases in execution order
func GetAllPhases() []Phase {
	return []Phase{
		PhaseCollect,
		PhaseIndexed,
		PhaseDictionary,
		PhaseBrute,
		PhaseCompare,
		PhaseProbe,
	}
}

// GetPhaseDisplayName returns "[Phase N] Name" for CLI output
func GetPhaseDisplayName(phase Phase) string {
	return fmt.Sprintf("[Phase %d] %s", PhaseNumber[phase], PhaseName[phase])
}

// Mode selects which phases a run executes.
type Mode string

const (
	ModeCollect Mode = "collect"
	ModeFofa    Mode = "fofa"
	ModeBrute   Mode = "brute"
	ModeCompare Mode = "compare"
	ModeAlive   Mode = "alive"
	ModeAll     Mode = "all"
)

// ParseMode validates a mode name.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeCollect, ModeFofa, ModeBrute, ModeCompare, ModeAlive, ModeAll:
		return m, nil
	default:
		return "", fmt.Errorf("unknown mode %q", s)
	}
}

// Phases returns the phases opts.Mode runs, in execution order.
func (o Options) Phases() []Phase {
	var phases []Phase
	switch o.Mode {
	case ModeCollect:
		phases = []Phase{PhaseCollect, PhaseDictionary, PhaseBrute}
	case ModeFofa:
		phases = []Phase{PhaseIndexed}
	case ModeBrute:
		phases = []Phase{PhaseBrute}
	case ModeCompare:
		phases = []Phase{PhaseCompare}
		if o.Probe {
			phases = append(phases, PhaseProbe)
		}
	case ModeAlive:
		phases = []Phase{PhaseProbe}
	case ModeAll:
		phases = []Phase{PhaseCollect, PhaseIndexed, PhaseDictionary, PhaseBrute, PhaseCompare}
		if !o.NoProbe {
			phases = append(phases, PhaseProbe)
		}
	}
	if o.NoBrute && o.Mode != ModeBrute {
		phases = without(phases, PhaseBrute)
	}
	return phases
}

func without(phases []Phase, drop Phase) []Phase {
	out := phases[:0:0]
	for _, p := range phases {
		if p != drop {
			out = append(out, p)
		}
	}
	return out
}
