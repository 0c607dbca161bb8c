package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/rootsploit/deepx/internal/brute"
	"github.com/rootsploit/deepx/internal/cache"
	"github.com/rootsploit/deepx/internal/config"
	"github.com/rootsploit/deepx/internal/debug"
	"github.com/rootsploit/deepx/internal/output"
	"github.com/rootsploit/deepx/internal/probe"
	"github.com/rootsploit/deepx/internal/sources"
	"github.com/rootsploit/deepx/internal/storage"
	"github.com/rootsploit/deepx/internal/subdomain"
)

// PhaseResult represents the output of a phase execution
type PhaseResult struct {
	Phase     Phase
	Status    Status
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration
	Count     int
	Files     []string
	Warnings  []string
	BySource  map[string]int
	ByStatus  map[string]int
	Error     error
}

// Status represents the execution status of a phase
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusSkipped   Status = "skipped"
)

// PhaseExecutor runs one phase against the shared run state.
type PhaseExecutor interface {
	Name() Phase
	Execute(ctx context.Context, in *PhaseInput, res *PhaseResult) error
}

// Prober checks hosts for HTTP liveness.
type Prober interface {
	Probe(ctx context.Context, hosts subdomain.Set) []probe.Record
}

// Deps are the components a run drives. Nil fields fall back to no-op or
// default implementations where one exists.
type Deps struct {
	Store    cache.Store
	Deep     []sources.Collector
	Indexed  sources.Collector
	Resolver brute.Resolver
	Prober   Prober
	Out      *output.Manager
	Console  *output.Console
	Log      log.FieldLogger
	Tracer   *debug.Tracer
	Version  string
}

// Report is what Run hands back to the caller.
type Report struct {
	Run     *storage.RunMeta
	State   *State
	Results map[Phase]*PhaseResult
}

// Executor drives the phases of one or more runs.
type Executor struct {
	cfg  *config.Config
	deps Deps
	log  log.FieldLogger

	executors map[Phase]PhaseExecutor
}

// NewExecutor wires the phase executors around deps.
func NewExecutor(cfg *config.Config, deps Deps) *Executor {
	if deps.Log == nil {
		deps.Log = log.StandardLogger()
	}
	if deps.Store == nil {
		deps.Store = cache.Disabled{}
	}
	if deps.Out == nil {
		deps.Out = output.NewManager(cfg.OutputDir)
	}
	if deps.Console == nil {
		deps.Console = output.NewConsole(nil, cfg.NoColor)
	}
	if deps.Resolver == nil {
		deps.Resolver = brute.NewDNSResolver(cfg.Resolvers, cfg.DNSTimeout)
	}
	if deps.Prober == nil {
		deps.Prober = probe.New(cfg.ProbeConcurrency, cfg.ProbeTimeout, deps.Log, probe.WithUserAgent(cfg.UserAgent))
	}
	e := &Executor{
		cfg:       cfg,
		deps:      deps,
		log:       deps.Log,
		executors: make(map[Phase]PhaseExecutor),
	}
	e.Register(&collectPhase{e: e})
	e.Register(&indexedPhase{e: e})
	e.Register(&dictionaryPhase{e: e})
	e.Register(&brutePhase{e: e})
	e.Register(&comparePhase{e: e})
	e.Register(&probePhase{e: e})
	return e
}

// NewFromConfig builds the executor and every component from cfg.
func NewFromConfig(cfg *config.Config, logger log.FieldLogger, tracer *debug.Tracer, console *output.Console, version string) (*Executor, error) {
	store, err := cache.Open(cache.Options{
		Backend:  cfg.Cache.Backend,
		Dir:      cfg.Cache.Dir,
		TTL:      cfg.Cache.TTL,
		Disabled: cfg.Cache.Disabled,
	})
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}

	settings := SourceSettings(cfg, logger)
	deep, err := sources.Build(cfg.Sources, settings)
	if err != nil {
		store.Close()
		return nil, err
	}

	deps := Deps{
		Store:    store,
		Deep:     deep,
		Resolver: brute.NewDNSResolver(cfg.Resolvers, cfg.DNSTimeout),
		Prober:   probe.New(cfg.ProbeConcurrency, cfg.ProbeTimeout, logger, probe.WithUserAgent(cfg.UserAgent)),
		Out:      output.NewManager(cfg.OutputDir),
		Console:  console,
		Log:      logger,
		Tracer:   tracer,
		Version:  version,
	}
	if cfg.HasFofa() {
		deps.Indexed = sources.NewFofa(FofaSettings(cfg, logger))
	}
	return NewExecutor(cfg, deps), nil
}

// SourceSettings maps the config onto collector settings.
func SourceSettings(cfg *config.Config, logger log.FieldLogger) sources.Settings {
	return sources.Settings{
		Timeout:       cfg.SourceTimeout,
		UserAgent:     cfg.UserAgent,
		Retries:       cfg.Retries,
		RetryDelay:    cfg.RetryDelay,
		RPS:           cfg.RateLimit,
		OTXKey:        cfg.OTX.APIKey,
		OTXMaxPages:   cfg.OTX.MaxPages,
		FofaKey:       cfg.Fofa.APIKey,
		FofaEmail:     cfg.Fofa.Email,
		FofaQuery:     cfg.Fofa.Query,
		FofaPageSize:  cfg.Fofa.PageSize,
		FofaMaxPages:  cfg.Fofa.MaxPages,
		FofaPageDelay: cfg.Fofa.PageDelay,
		CrtShURL:      cfg.Endpoints.CrtSh,
		OTXURL:        cfg.Endpoints.OTX,
		ArchiveURL:    cfg.Endpoints.Archive,
		FofaURL:       cfg.Endpoints.Fofa,
		Log:           logger,
	}
}

// FofaSettings is SourceSettings with FOFA's own retry policy.
func FofaSettings(cfg *config.Config, logger log.FieldLogger) sources.Settings {
	s := SourceSettings(cfg, logger)
	s.Retries = cfg.Fofa.Retries
	s.RetryDelay = cfg.Fofa.RetryDelay
	return s
}

// Register adds a phase executor
func (e *Executor) Register(executor PhaseExecutor) {
	e.executors[executor.Name()] = executor
}

// Store returns the cache the executor collects through.
func (e *Executor) Store() cache.Store { return e.deps.Store }

// Output returns the result file manager.
func (e *Executor) Output() *output.Manager { return e.deps.Out }

// Close releases the cache.
func (e *Executor) Close() error {
	return e.deps.Store.Close()
}

// Run validates target and executes the phases opts selects, in order.
//
// Only an invalid target, a failed output write or an unreadable input
// file stop the run early. Source failures are recorded and reported; when
// a collect phase ran and no source succeeded at all, Run still finishes
// the remaining phases and then returns sources.ErrNoSourceSucceeded.
// When the scan deadline passes, phases already under way return what
// they have and later phases run on that partial data.
func (e *Executor) Run(ctx context.Context, target string, opts Options) (*Report, error) {
	domain, err := subdomain.ValidateDomain(target)
	if err != nil {
		return nil, err
	}
	phases := opts.Phases()
	if len(phases) == 0 {
		return nil, fmt.Errorf("mode %q selects no phases", opts.Mode)
	}

	if e.cfg.ScanTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.ScanTimeout)
		defer cancel()
	}

	run := storage.NewRunMeta(domain, string(opts.Mode), e.deps.Version)
	run.Config = e.runConfig()
	st := NewState(domain)
	if opts.NoBrute && opts.Mode != ModeCompare && opts.Mode != ModeBrute {
		st.Brute = subdomain.NewSet()
	}
	builder := NewBuilder(e.deps.Out, opts, e.log)
	logger := e.log.WithFields(log.Fields{"run_id": run.RunID, "domain": domain, "mode": opts.Mode})
	logger.Info("run started")

	report := &Report{Run: run, State: st, Results: make(map[Phase]*PhaseResult)}
	var fatal error
	for _, phase := range phases {
		if fatal != nil {
			report.Results[phase] = &PhaseResult{Phase: phase, Status: StatusSkipped}
			continue
		}
		res := e.execute(ctx, phase, st, builder, opts)
		report.Results[phase] = res
		run.Add(phaseOutput(run, res))
		if res.Status == StatusFailed {
			fatal = fmt.Errorf("%s: %w", phase, res.Error)
		}
	}

	if fatal == nil && st.Attempted > 0 && st.Succeeded == 0 {
		fatal = fmt.Errorf("%w for %s", sources.ErrNoSourceSucceeded, domain)
	}
	run.Finish(fatal)

	// run metadata is written even after cancellation
	if err := e.deps.Out.SaveRun(context.WithoutCancel(ctx), run); err != nil {
		logger.WithError(err).Warn("failed to write run metadata")
	}
	e.logRateLimits(logger)
	e.deps.Tracer.Summary()
	logger.WithFields(log.Fields{"status": run.Status, "duration": run.Duration}).Info("run finished")

	return report, fatal
}

func (e *Executor) execute(ctx context.Context, phase Phase, st *State, builder *Builder, opts Options) *PhaseResult {
	res := &PhaseResult{Phase: phase, Status: StatusRunning, StartTime: time.Now()}
	executor, ok := e.executors[phase]
	if !ok {
		res.Status = StatusFailed
		res.Error = fmt.Errorf("no executor registered for phase: %s", phase)
		return res
	}

	e.deps.Console.Phase(GetPhaseDisplayName(phase))
	traced := e.deps.Tracer.PhaseStart(string(phase))

	warnings, err := builder.Build(ctx, phase, st)
	res.Warnings = append(res.Warnings, warnings...)
	if err == nil {
		err = executor.Execute(ctx, &PhaseInput{State: st, Builder: builder, Options: opts}, res)
	}
	for _, w := range warnings {
		e.deps.Console.Warn("%s", w)
	}

	e.deps.Tracer.PhaseEnd(string(phase), traced)
	res.EndTime = time.Now()
	res.Duration = res.EndTime.Sub(res.StartTime)
	switch {
	case err != nil:
		res.Status = StatusFailed
		res.Error = err
		e.deps.Console.Error("%s failed: %v", phase, err)
	default:
		res.Status = StatusCompleted
	}
	e.log.WithFields(log.Fields{
		"phase":    phase,
		"status":   res.Status,
		"count":    res.Count,
		"duration": res.Duration.Round(time.Millisecond),
	}).Debug("phase finished")
	return res
}

func (e *Executor) runConfig() storage.RunConfig {
	return storage.RunConfig{
		Sources:           e.cfg.Sources,
		SourceConcurrency: e.cfg.SourceConcurrency,
		BruteConcurrency:  e.cfg.BruteConcurrency,
		ProbeConcurrency:  e.cfg.ProbeConcurrency,
		CacheBackend:      e.cfg.Cache.Backend,
		CacheDisabled:     e.cfg.Cache.Disabled,
		DictLevels:        e.cfg.DictLevels,
	}
}

func (e *Executor) logRateLimits(logger log.FieldLogger) {
	collectors := append([]sources.Collector{}, e.deps.Deep...)
	if e.deps.Indexed != nil {
		collectors = append(collectors, e.deps.Indexed)
	}
	for _, c := range collectors {
		t, ok := c.(sources.Throttled)
		if !ok {
			continue
		}
		s := t.RateLimits()
		if s == nil {
			continue
		}
		logger.WithFields(log.Fields{"source": c.Name(), "limits": s}).Debug("rate limiter summary")
	}
}

func phaseOutput(run *storage.RunMeta, res *PhaseResult) *storage.PhaseOutput {
	po := storage.NewPhaseOutput(string(res.Phase), run.RunID, run.Target, res.StartTime, res.Count)
	if res.BySource != nil {
		po = po.WithBySource(res.BySource)
	}
	if res.ByStatus != nil {
		po = po.WithByStatus(res.ByStatus)
	}
	if len(res.Files) > 0 {
		po = po.WithFiles(res.Files...)
	}
	if len(res.Warnings) > 0 {
		po = po.WithErrors(res.Warnings)
	}
	if res.Error != nil {
		po = po.Failed(res.Error)
	}
	return po
}

// IsFatal reports whether err from Run means nothing useful was produced,
// as opposed to the run completing with every source failed.
func IsFatal(err error) bool {
	return err != nil && !errors.Is(err, sources.ErrNoSourceSucceeded)
}
