package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"

	"github.com/rootsploit/deepx/internal/output"
	"github.com/rootsploit/deepx/internal/subdomain"
)

// Builder fills in phase inputs that were not produced in this invocation
// by reading the files an earlier run left in the output directory.
type Builder struct {
	out  *output.Manager
	opts Options
	log  log.FieldLogger
}

// NewBuilder creates a builder reading from out.
func NewBuilder(out *output.Manager, opts Options, logger log.FieldLogger) *Builder {
	return &Builder{out: out, opts: opts, log: logger}
}

// Build loads whatever phase needs and state does not yet hold. Missing
// files yield empty sets and a warning; any other read error is returned.
func (b *Builder) Build(ctx context.Context, phase Phase, st *State) ([]string, error) {
	var warnings []string
	load := func(dst *subdomain.Set, override, def string) error {
		if *dst != nil {
			return nil
		}
		set, missing, err := b.loadSet(ctx, b.pick(override, def), st.Domain)
		if err != nil {
			return err
		}
		if missing != "" {
			warnings = append(warnings, missing)
		}
		*dst = set
		return nil
	}

	switch phase {
	case PhaseDictionary:
		if st.Deep == nil && st.Indexed == nil {
			if err := load(&st.Deep, b.opts.DeepFile, output.DeepFile); err != nil {
				return warnings, err
			}
		}
	case PhaseCompare:
		if err := load(&st.Deep, b.opts.DeepFile, output.DeepFile); err != nil {
			return warnings, err
		}
		if err := load(&st.Indexed, b.opts.FofaFile, output.FofaFile); err != nil {
			return warnings, err
		}
		if err := load(&st.Brute, b.opts.BruteFile, output.BruteFile); err != nil {
			return warnings, err
		}
	}
	return warnings, nil
}

// ProbeTargets returns the hosts the probe phase checks.
func (b *Builder) ProbeTargets(ctx context.Context, st *State) (subdomain.Set, string, error) {
	switch {
	case b.opts.ProbeScope == ProbeTotal && st.Comparison != nil:
		return st.Comparison.Total, "", nil
	case b.opts.ProbeScope != ProbeInput && st.Comparison != nil:
		return st.Comparison.Hidden, "", nil
	}
	set, missing, err := b.loadSet(ctx, b.pick(b.opts.InputFile, output.HiddenFile), st.Domain)
	if err != nil {
		return nil, "", err
	}
	return set, missing, nil
}

// Words returns the brute-force dictionary: the explicit wordlist when one
// was given, else the words built this run merged with the persisted
// dictionary file.
func (b *Builder) Words(ctx context.Context, st *State, dictFile string) ([]string, error) {
	if b.opts.Wordlist != "" {
		words, err := b.out.Storage().ReadLines(ctx, userPath(b.opts.Wordlist))
		if err != nil {
			return nil, fmt.Errorf("read wordlist: %w", err)
		}
		return subdomain.MergeWords(words), nil
	}

	dictFile = userPath(dictFile)
	persisted, err := b.out.Storage().ReadLines(ctx, dictFile)
	switch {
	case errors.Is(err, os.ErrNotExist):
		b.log.WithField("file", dictFile).Debug("no dictionary file yet")
	case err != nil:
		return nil, fmt.Errorf("read dictionary: %w", err)
	}
	return subdomain.MergeWords(st.Dictionary, persisted), nil
}

// pick prefers a user-supplied path, resolved against the working
// directory, over a file name inside the output directory.
func (b *Builder) pick(override, def string) string {
	if override != "" {
		return userPath(override)
	}
	return def
}

func userPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}

func (b *Builder) loadSet(ctx context.Context, name, root string) (subdomain.Set, string, error) {
	set, err := b.out.LoadHostnames(ctx, name, root)
	if errors.Is(err, os.ErrNotExist) {
		return subdomain.NewSet(), fmt.Sprintf("%s not found, treating as empty", b.out.Path(name)), nil
	}
	if err != nil {
		return nil, "", err
	}
	b.log.WithFields(log.Fields{"file": b.out.Path(name), "hosts": set.Len()}).Debug("loaded hostnames")
	return set, "", nil
}
