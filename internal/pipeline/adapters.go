package pipeline

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/rootsploit/deepx/internal/brute"
	"github.com/rootsploit/deepx/internal/output"
	"github.com/rootsploit/deepx/internal/probe"
	"github.com/rootsploit/deepx/internal/sources"
	"github.com/rootsploit/deepx/internal/subdomain"
)

// collectPhase queries the deep sources through the cache.
type collectPhase struct{ e *Executor }

// indexedPhase queries FOFA.
type indexedPhase struct{ e *Executor }

// dictionaryPhase extracts prefixes and merges them into the dictionary file.
type dictionaryPhase struct{ e *Executor }

// brutePhase resolves dictionary candidates.
type brutePhase struct{ e *Executor }

// comparePhase computes the hidden and total sets.
type comparePhase struct{ e *Executor }

// probePhase checks HTTP liveness.
type probePhase struct{ e *Executor }

func (p *collectPhase) Name() Phase    { return PhaseCollect }
func (p *indexedPhase) Name() Phase    { return PhaseIndexed }
func (p *dictionaryPhase) Name() Phase { return PhaseDictionary }
func (p *brutePhase) Name() Phase      { return PhaseBrute }
func (p *comparePhase) Name() Phase    { return PhaseCompare }
func (p *probePhase) Name() Phase      { return PhaseProbe }

func (p *collectPhase) Execute(ctx context.Context, in *PhaseInput, res *PhaseResult) error {
	st := in.State
	hosts, err := p.e.collect(ctx, st, p.e.deps.Deep, p.e.cfg.SourceConcurrency, res)
	if err != nil {
		return err
	}
	st.Deep = hosts
	return p.e.saveSet(ctx, in.Builder.pick(in.Options.DeepFile, output.DeepFile), hosts, res)
}

func (p *indexedPhase) Execute(ctx context.Context, in *PhaseInput, res *PhaseResult) error {
	st := in.State
	if p.e.deps.Indexed == nil {
		if in.Options.Mode == ModeFofa {
			return fmt.Errorf("fofa: %w (set FOFA_API_KEY or --key)", sources.ErrMissingCredentials)
		}
		msg := "FOFA credentials not configured, indexed set is empty"
		p.e.deps.Console.Warn("%s", msg)
		res.Warnings = append(res.Warnings, msg)
		st.Indexed = subdomain.NewSet()
		return nil
	}
	hosts, err := p.e.collect(ctx, st, []sources.Collector{p.e.deps.Indexed}, 1, res)
	if err != nil {
		return err
	}
	st.Indexed = hosts
	return p.e.saveSet(ctx, in.Builder.pick(in.Options.FofaFile, output.FofaFile), hosts, res)
}

func (p *dictionaryPhase) Execute(ctx context.Context, in *PhaseInput, res *PhaseResult) error {
	st := in.State
	words := subdomain.BuildDictionary(st.Domain, subdomain.Union(st.Deep, st.Indexed), p.e.cfg.DictLevels)
	st.Dictionary = words
	res.Count = len(words)

	path := userPath(p.e.cfg.DictFile)
	total, err := p.e.deps.Out.Storage().MergeLines(ctx, path, words)
	if err != nil {
		return fmt.Errorf("update dictionary: %w", err)
	}
	res.Files = append(res.Files, path)
	p.e.deps.Console.Success("%d prefixes extracted, dictionary now holds %d words", len(words), total)
	return nil
}

func (p *brutePhase) Execute(ctx context.Context, in *PhaseInput, res *PhaseResult) error {
	st := in.State
	words, err := in.Builder.Words(ctx, st, p.e.cfg.DictFile)
	if err != nil {
		return err
	}
	if len(words) == 0 {
		p.e.deps.Console.Warn("dictionary is empty, nothing to brute force")
	} else {
		p.e.deps.Console.Info("resolving %d candidates with %d workers", len(words), p.e.cfg.BruteConcurrency)
	}

	bf := brute.New(p.e.deps.Resolver, p.e.cfg.BruteConcurrency, p.e.cfg.DNSTimeout, p.e.log)
	bf.DetectWildcard = p.e.cfg.DetectWildcard
	start := p.e.deps.Tracer.Start("brute", st.Domain)
	found := bf.Brute(ctx, st.Domain, words)
	p.e.deps.Tracer.End("brute", start, ctx.Err(), found.Len())
	if ctx.Err() != nil {
		msg := fmt.Sprintf("brute force interrupted: %v", ctx.Err())
		p.e.deps.Console.Warn("%s", msg)
		res.Warnings = append(res.Warnings, msg)
	}

	st.Brute = found
	res.Count = found.Len()
	if err := p.e.saveSet(ctx, in.Builder.pick(in.Options.BruteFile, output.BruteFile), found, res); err != nil {
		return err
	}
	p.e.deps.Console.Success("%d hosts resolved", found.Len())
	return nil
}

func (p *comparePhase) Execute(ctx context.Context, in *PhaseInput, res *PhaseResult) error {
	st := in.State
	cmp := subdomain.Compare(st.Deep, st.Indexed, st.Brute)
	st.Comparison = &cmp

	if err := p.e.saveSet(ctx, output.HiddenFile, cmp.Hidden, res); err != nil {
		return err
	}
	if err := p.e.saveSet(ctx, output.TotalFile, cmp.Total, res); err != nil {
		return err
	}
	res.Count = cmp.Hidden.Len()
	res.BySource = map[string]int{
		"deep":    st.Deep.Len(),
		"indexed": st.Indexed.Len(),
		"brute":   st.Brute.Len(),
		"hidden":  cmp.Hidden.Len(),
		"total":   cmp.Total.Len(),
	}
	p.e.deps.Console.Success("%d hidden of %d total (deep %d, fofa %d, brute %d)",
		cmp.Hidden.Len(), cmp.Total.Len(), st.Deep.Len(), st.Indexed.Len(), st.Brute.Len())
	return nil
}

func (p *probePhase) Execute(ctx context.Context, in *PhaseInput, res *PhaseResult) error {
	st := in.State
	hosts, missing, err := in.Builder.ProbeTargets(ctx, st)
	if err != nil {
		return err
	}
	if missing != "" {
		p.e.deps.Console.Warn("%s", missing)
		res.Warnings = append(res.Warnings, missing)
	}
	p.e.deps.Console.Info("probing %d hosts with %d workers", hosts.Len(), p.e.cfg.ProbeConcurrency)

	start := p.e.deps.Tracer.Start("probe", st.Domain)
	records := p.e.deps.Prober.Probe(ctx, hosts)
	alive := len(probe.Alive(records))
	p.e.deps.Tracer.End("probe", start, ctx.Err(), alive)
	st.Records = records

	if err := p.e.deps.Out.SaveLiveness(context.WithoutCancel(ctx), output.AliveFile, records); err != nil {
		return err
	}
	res.Files = append(res.Files, output.AliveFile)
	res.Count = alive
	res.ByStatus = map[string]int{"alive": alive, "dead": len(records) - alive}
	p.e.deps.Console.ProbeSummary(records)
	return nil
}

// collect runs collectors through the cache-aware orchestrator and folds
// the outcome into st and res. Only a misconfiguration is returned as an
// error; every source failing is recorded and left for Run to report.
func (e *Executor) collect(ctx context.Context, st *State, collectors []sources.Collector, concurrency int, res *PhaseResult) (subdomain.Set, error) {
	orch := sources.NewOrchestrator(e.deps.Store, concurrency, e.log, e.deps.Tracer)
	coll, err := orch.Collect(ctx, st.Domain, collectors)
	if err != nil && !errors.Is(err, sources.ErrNoSourceSucceeded) {
		return nil, err
	}

	results := append([]sources.Result(nil), coll.Results...)
	sources.SortResults(results)
	e.deps.Console.SourceResults(results)

	st.Results = append(st.Results, coll.Results...)
	st.Attempted += len(coll.Results)
	for _, r := range coll.Results {
		switch {
		case !r.Success:
			res.Warnings = append(res.Warnings, fmt.Sprintf("%s: %v", r.Source, r.Err))
		case r.Partial:
			st.Succeeded++
			res.Warnings = append(res.Warnings, fmt.Sprintf("%s: partial: %v", r.Source, r.Err))
		default:
			st.Succeeded++
		}
	}
	if err != nil {
		e.log.WithError(err).Warn("collection produced no data")
	}

	res.Count = coll.Hostnames.Len()
	res.BySource = coll.BySource()
	e.log.WithFields(log.Fields{"hosts": coll.Hostnames.Len(), "sources": len(collectors)}).Info("collection merged")
	return coll.Hostnames, nil
}

// saveSet writes a result file. Writes ignore cancellation so that a run
// cut short by the scan deadline still leaves its partial results behind.
func (e *Executor) saveSet(ctx context.Context, name string, set subdomain.Set, res *PhaseResult) error {
	if err := e.deps.Out.SaveHostnames(context.WithoutCancel(ctx), name, set); err != nil {
		return err
	}
	res.Files = append(res.Files, name)
	return nil
}
