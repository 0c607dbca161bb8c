package output

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/rootsploit/deepx/internal/probe"
	"github.com/rootsploit/deepx/internal/storage"
	"github.com/rootsploit/deepx/internal/subdomain"
)

// Result file names inside the output directory.
const (
	DeepFile   = "deep_subdomain.txt"
	FofaFile   = "fofa_subdomain.txt"
	BruteFile  = "brute_subdomain.txt"
	HiddenFile = "result.txt"
	TotalFile  = "total.txt"
	AliveFile  = "alive.txt"
	RunFile    = "run.json"
)

// FileOrder is the order files are listed in summaries.
var FileOrder = []string{DeepFile, FofaFile, BruteFile, HiddenFile, TotalFile, AliveFile}

// Manager writes stage results into one output directory and remembers
// what it wrote.
type Manager struct {
	store  *storage.LocalStorage
	counts map[string]int
}

// NewManager creates a manager rooted at outputDir.
func NewManager(outputDir string) *Manager {
	return &Manager{
		store:  storage.NewLocalStorage(outputDir),
		counts: make(map[string]int),
	}
}

// BaseDir returns the output directory.
func (m *Manager) BaseDir() string {
	return m.store.BaseDir()
}

// Storage exposes the underlying file layer for reads.
func (m *Manager) Storage() *storage.LocalStorage {
	return m.store
}

// Path returns the full path of a result file.
func (m *Manager) Path(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(m.store.BaseDir(), name)
}

// SaveHostnames writes a sorted hostname file.
func (m *Manager) SaveHostnames(ctx context.Context, name string, set subdomain.Set) error {
	if err := m.store.WriteSet(ctx, name, set); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	m.counts[name] = set.Len()
	return nil
}

// LoadHostnames reads a hostname file written by an earlier stage.
func (m *Manager) LoadHostnames(ctx context.Context, name, root string) (subdomain.Set, error) {
	set, err := m.store.ReadSet(ctx, name, root)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return set, nil
}

// SaveLiveness writes the liveness report. The recorded count is the
// number of alive hosts.
func (m *Manager) SaveLiveness(ctx context.Context, name string, records []probe.Record) error {
	if err := m.store.WriteLines(ctx, name, FormatReport(records)); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	m.counts[name] = len(probe.Alive(records))
	return nil
}

// SaveRun writes run metadata.
func (m *Manager) SaveRun(ctx context.Context, run *storage.RunMeta) error {
	return m.store.WriteJSON(ctx, RunFile, run)
}

// Counts returns entries per written file.
func (m *Manager) Counts() map[string]int {
	out := make(map[string]int, len(m.counts))
	for k, v := range m.counts {
		out[k] = v
	}
	return out
}
