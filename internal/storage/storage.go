package storage

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"

	"github.com/rootsploit/deepx/internal/subdomain"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Storage is the file layer every stage reads its inputs from and writes its
// outputs to.
type Storage interface {
	Write(ctx context.Context, path string, data []byte) error
	WriteJSON(ctx context.Context, path string, data interface{}) error
	Read(ctx context.Context, path string) ([]byte, error)
	Exists(ctx context.Context, path string) (bool, error)
	BaseDir() string
}

// LocalStorage implements Storage on the local filesystem. Relative paths
// resolve against baseDir; absolute paths are used as given.
type LocalStorage struct {
	baseDir string
}

func NewLocalStorage(baseDir string) *LocalStorage {
	return &LocalStorage{baseDir: baseDir}
}

func (s *LocalStorage) BaseDir() string {
	return s.baseDir
}

func (s *LocalStorage) resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(s.baseDir, path)
}

// Write replaces the file at path atomically: readers see the old or the new
// content, never a prefix.
func (s *LocalStorage) Write(ctx context.Context, path string, data []byte) error {
	fullPath := s.resolve(path)
	dir := filepath.Dir(fullPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), fullPath)
}

func (s *LocalStorage) WriteJSON(ctx context.Context, path string, data interface{}) error {
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return err
	}
	return s.Write(ctx, path, append(b, '\n'))
}

func (s *LocalStorage) Read(ctx context.Context, path string) ([]byte, error) {
	return os.ReadFile(s.resolve(path))
}

func (s *LocalStorage) Exists(ctx context.Context, path string) (bool, error) {
	_, err := os.Stat(s.resolve(path))
	if os.IsNotExist(err) {
		return false, nil
	}
	return err == nil, err
}

// WriteLines writes one entry per line. An empty slice still produces an
// (empty) file so later stages can tell "ran, found nothing" from "never ran".
func (s *LocalStorage) WriteLines(ctx context.Context, path string, lines []string) error {
	content := strings.Join(lines, "\n")
	if len(lines) > 0 {
		content += "\n"
	}
	return s.Write(ctx, path, []byte(content))
}

// ReadLines returns the trimmed, non-blank lines of a file.
func (s *LocalStorage) ReadLines(ctx context.Context, path string) ([]string, error) {
	f, err := os.Open(s.resolve(path))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	return lines, sc.Err()
}

// ReadSet loads a hostname file, keeping only names in scope of root.
func (s *LocalStorage) ReadSet(ctx context.Context, path, root string) (subdomain.Set, error) {
	lines, err := s.ReadLines(ctx, path)
	if err != nil {
		return nil, err
	}
	return subdomain.Collect(root, lines), nil
}

// WriteSet writes a hostname set sorted, one per line.
func (s *LocalStorage) WriteSet(ctx context.Context, path string, set subdomain.Set) error {
	return s.WriteLines(ctx, path, set.Sorted())
}

// MergeLines unions lines into the file at path and returns the new size.
// A missing file is treated as empty.
func (s *LocalStorage) MergeLines(ctx context.Context, path string, lines []string) (int, error) {
	existing, err := s.ReadLines(ctx, path)
	if err != nil && !os.IsNotExist(err) {
		return 0, err
	}
	merged := subdomain.MergeWords(existing, lines)
	return len(merged), s.WriteLines(ctx, path, merged)
}

// PhaseOutput is the per-stage record kept in the run summary.
type PhaseOutput struct {
	Meta   PhaseMeta  `json:"meta"`
	Stats  PhaseStats `json:"stats"`
	Files  []string   `json:"files,omitempty"`
	Errors []string   `json:"errors,omitempty"`
}

type PhaseMeta struct {
	Phase     string    `json:"phase"`
	RunID     string    `json:"run_id"`
	Target    string    `json:"target"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Duration  string    `json:"duration"`
	Status    string    `json:"status"` // "completed", "failed", "partial", "skipped"
}

type PhaseStats struct {
	Total    int            `json:"total"`
	BySource map[string]int `json:"by_source,omitempty"`
	ByStatus map[string]int `json:"by_status,omitempty"`
}

// NewPhaseOutput stamps a finished phase.
func NewPhaseOutput(phase, runID, target string, startTime time.Time, total int) *PhaseOutput {
	endTime := time.Now()
	return &PhaseOutput{
		Meta: PhaseMeta{
			Phase:     phase,
			RunID:     runID,
			Target:    target,
			StartTime: startTime,
			EndTime:   endTime,
			Duration:  endTime.Sub(startTime).Round(time.Millisecond).String(),
			Status:    "completed",
		},
		Stats: PhaseStats{Total: total},
	}
}

func (p *PhaseOutput) WithBySource(sources map[string]int) *PhaseOutput {
	p.Stats.BySource = sources
	return p
}

func (p *PhaseOutput) WithByStatus(status map[string]int) *PhaseOutput {
	p.Stats.ByStatus = status
	return p
}

func (p *PhaseOutput) WithFiles(files ...string) *PhaseOutput {
	p.Files = append(p.Files, files...)
	return p
}

// WithErrors records non-fatal failures and marks the phase partial.
func (p *PhaseOutput) WithErrors(errors []string) *PhaseOutput {
	p.Errors = errors
	if len(errors) > 0 {
		p.Meta.Status = "partial"
	}
	return p
}

// Failed marks the phase failed with err.
func (p *PhaseOutput) Failed(err error) *PhaseOutput {
	p.Meta.Status = "failed"
	p.Errors = append(p.Errors, err.Error())
	return p
}

// RunMeta is written as run.json at the end of every invocation.
type RunMeta struct {
	RunID     string         `json:"run_id"`
	Target    string         `json:"target"`
	Mode      string         `json:"mode"`
	Version   string         `json:"version"`
	StartTime time.Time      `json:"start_time"`
	EndTime   time.Time      `json:"end_time,omitempty"`
	Duration  string         `json:"duration,omitempty"`
	Status    string         `json:"status"` // "running", "completed", "failed"
	Phases    []*PhaseOutput `json:"phases"`
	Config    RunConfig      `json:"config"`
}

// RunConfig captures the knobs a run used.
type RunConfig struct {
	Sources           []string `json:"sources"`
	SourceConcurrency int      `json:"source_concurrency"`
	BruteConcurrency  int      `json:"brute_concurrency"`
	ProbeConcurrency  int      `json:"probe_concurrency"`
	CacheBackend      string   `json:"cache_backend"`
	CacheDisabled     bool     `json:"cache_disabled"`
	DictLevels        int      `json:"dict_levels"`
}

// NewRunMeta starts a run record with a fresh ID.
func NewRunMeta(target, mode, version string) *RunMeta {
	return &RunMeta{
		RunID:     GenerateRunID(),
		Target:    target,
		Mode:      mode,
		Version:   version,
		StartTime: time.Now(),
		Status:    "running",
	}
}

// Add appends a finished phase.
func (m *RunMeta) Add(p *PhaseOutput) {
	m.Phases = append(m.Phases, p)
}

// Finish stamps the end of the run; a non-nil err marks it failed.
func (m *RunMeta) Finish(err error) {
	m.EndTime = time.Now()
	m.Duration = m.EndTime.Sub(m.StartTime).Round(time.Millisecond).String()
	m.Status = "completed"
	if err != nil {
		m.Status = "failed"
	}
}

// Errors flattens phase errors as "phase: message".
func (m *RunMeta) Errors() []string {
	var out []string
	for _, p := range m.Phases {
		for _, e := range p.Errors {
			out = append(out, fmt.Sprintf("%s: %s", p.Meta.Phase, e))
		}
	}
	return out
}

// GenerateRunID returns a random UUID.
func GenerateRunID() string {
	return uuid.NewString()
}
