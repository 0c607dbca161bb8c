package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rootsploit/deepx/internal/subdomain"
)

func TestWriteLinesAndReadBack(t *testing.T) {
	ctx := context.Background()
	s := NewLocalStorage(t.TempDir())

	require.NoError(t, s.WriteLines(ctx, "nested/out.txt", []string{"b.example.com", "a.example.com"}))
	data, err := s.Read(ctx, "nested/out.txt")
	require.NoError(t, err)
	assert.Equal(t, "b.example.com\na.example.com\n", string(data))

	lines, err := s.ReadLines(ctx, "nested/out.txt")
	require.NoError(t, err)
	assert.Equal(t, []string{"b.example.com", "a.example.com"}, lines)
}

func TestWriteLinesEmptyCreatesFile(t *testing.T) {
	ctx := context.Background()
	s := NewLocalStorage(t.TempDir())

	require.NoError(t, s.WriteLines(ctx, "empty.txt", nil))
	ok, err := s.Exists(ctx, "empty.txt")
	require.NoError(t, err)
	assert.True(t, ok)

	lines, err := s.ReadLines(ctx, "empty.txt")
	require.NoError(t, err)
	assert.Empty(t, lines)
}

func TestWriteLeavesNoTempFiles(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s := NewLocalStorage(dir)
	for i := 0; i < 3; i++ {
		require.NoError(t, s.Write(ctx, "x.txt", []byte("data")))
	}
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "x.txt", entries[0].Name())
}

func TestAbsolutePathBypassesBaseDir(t *testing.T) {
	ctx := context.Background()
	other := filepath.Join(t.TempDir(), "abs.txt")
	s := NewLocalStorage(t.TempDir())
	require.NoError(t, s.WriteLines(ctx, other, []string{"x"}))
	_, err := os.Stat(other)
	assert.NoError(t, err)
}

func TestReadSetFiltersScope(t *testing.T) {
	ctx := context.Background()
	s := NewLocalStorage(t.TempDir())
	require.NoError(t, s.WriteLines(ctx, "in.txt", []string{
		"A.Example.com.", "", "  b.example.com ", "evil.org", "a.example.com",
	}))

	set, err := s.ReadSet(ctx, "in.txt", "example.com")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.example.com", "b.example.com"}, set.Sorted())

	_, err = s.ReadSet(ctx, "missing.txt", "example.com")
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestWriteSetSorted(t *testing.T) {
	ctx := context.Background()
	s := NewLocalStorage(t.TempDir())
	set := subdomain.Collect("example.com", []string{"z.example.com", "a.example.com"})
	require.NoError(t, s.WriteSet(ctx, "set.txt", set))
	data, err := s.Read(ctx, "set.txt")
	require.NoError(t, err)
	assert.Equal(t, "a.example.com\nz.example.com\n", string(data))
}

func TestMergeLines(t *testing.T) {
	ctx := context.Background()
	s := NewLocalStorage(t.TempDir())

	n, err := s.MergeLines(ctx, "dict.txt", []string{"www", "api"})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = s.MergeLines(ctx, "dict.txt", []string{"api", "dev", "API"})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	lines, err := s.ReadLines(ctx, "dict.txt")
	require.NoError(t, err)
	assert.Equal(t, []string{"api", "dev", "www"}, lines)
}

func TestRunMeta(t *testing.T) {
	ctx := context.Background()
	s := NewLocalStorage(t.TempDir())

	run := NewRunMeta("example.com", "all", "1.0.0")
	_, err := uuid.Parse(run.RunID)
	require.NoError(t, err)
	assert.Equal(t, "running", run.Status)

	start := time.Now().Add(-time.Second)
	run.Add(NewPhaseOutput("collect", run.RunID, run.Target, start, 5).
		WithBySource(map[string]int{"otx": 3, "crtsh": 2}).
		WithErrors([]string{"archive: timeout"}))
	run.Add(NewPhaseOutput("compare", run.RunID, run.Target, start, 2).WithFiles("result.txt"))
	run.Add(NewPhaseOutput("probe", run.RunID, run.Target, start, 0).Failed(errors.New("boom")))
	run.Finish(nil)

	assert.Equal(t, "completed", run.Status)
	assert.Equal(t, "partial", run.Phases[0].Meta.Status)
	assert.Equal(t, "completed", run.Phases[1].Meta.Status)
	assert.Equal(t, "failed", run.Phases[2].Meta.Status)
	assert.Equal(t, []string{"collect: archive: timeout", "probe: boom"}, run.Errors())

	require.NoError(t, s.WriteJSON(ctx, "run.json", run))
	data, err := s.Read(ctx, "run.json")
	require.NoError(t, err)

	var back RunMeta
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, run.RunID, back.RunID)
	assert.Len(t, back.Phases, 3)
	assert.Equal(t, 3, back.Phases[0].Stats.BySource["otx"])

	run.Finish(errors.New("fatal"))
	assert.Equal(t, "failed", run.Status)
}

func TestGenerateRunIDUnique(t *testing.T) {
	assert.NotEqual(t, GenerateRunID(), GenerateRunID())
}
