package output

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rootsploit/deepx/internal/probe"
	"github.com/rootsploit/deepx/internal/sources"
	"github.com/rootsploit/deepx/internal/storage"
	"github.com/rootsploit/deepx/internal/subdomain"
)

func TestFormatRecord(t *testing.T) {
	tests := []struct {
		name string
		rec  probe.Record
		want string
	}{
		{
			"alive",
			probe.Record{Host: "a.example.com", Scheme: "https", Alive: true, StatusCode: 200, Title: "Home", Size: 512},
			"https://a.example.com [status: 200] [title: Home] [size: 512 bytes]",
		},
		{
			"alive over http without title",
			probe.Record{Host: "b.example.com", Scheme: "http", Alive: true, StatusCode: 403},
			"http://b.example.com [status: 403] [title: N/A] [size: 0 bytes]",
		},
		{
			"dead",
			probe.Record{Host: "c.example.com", Scheme: "https"},
			"https://c.example.com [not alive]",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatRecord(tt.rec))
		})
	}
}

func TestFormatReportAliveFirst(t *testing.T) {
	recs := []probe.Record{
		{Host: "a.example.com", Scheme: "https"},
		{Host: "b.example.com", Scheme: "https", Alive: true, StatusCode: 200},
		{Host: "c.example.com", Scheme: "https"},
	}
	lines := FormatReport(recs)
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "b.example.com")
	assert.Equal(t, "https://a.example.com [not alive]", lines[1])
	assert.Equal(t, "https://c.example.com [not alive]", lines[2])
}

func TestManagerWritesFiles(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	m := NewManager(dir)

	set := subdomain.Collect("example.com", []string{"b.example.com", "a.example.com"})
	require.NoError(t, m.SaveHostnames(ctx, DeepFile, set))
	require.NoError(t, m.SaveHostnames(ctx, FofaFile, subdomain.NewSet()))
	require.NoError(t, m.SaveLiveness(ctx, AliveFile, []probe.Record{
		{Host: "a.example.com", Scheme: "https", Alive: true, StatusCode: 200, Title: "A", Size: 1},
		{Host: "b.example.com", Scheme: "https"},
	}))

	data, err := os.ReadFile(filepath.Join(dir, DeepFile))
	require.NoError(t, err)
	assert.Equal(t, "a.example.com\nb.example.com\n", string(data))

	data, err = os.ReadFile(filepath.Join(dir, FofaFile))
	require.NoError(t, err)
	assert.Empty(t, data)

	data, err = os.ReadFile(filepath.Join(dir, AliveFile))
	require.NoError(t, err)
	assert.Equal(t, "https://a.example.com [status: 200] [title: A] [size: 1 bytes]\nhttps://b.example.com [not alive]\n", string(data))

	assert.Equal(t, map[string]int{DeepFile: 2, FofaFile: 0, AliveFile: 1}, m.Counts())

	back, err := m.LoadHostnames(ctx, DeepFile, "example.com")
	require.NoError(t, err)
	assert.Equal(t, set.Sorted(), back.Sorted())

	_, err = m.LoadHostnames(ctx, BruteFile, "example.com")
	assert.Error(t, err)

	run := storage.NewRunMeta("example.com", "all", "test")
	run.Finish(nil)
	require.NoError(t, m.SaveRun(ctx, run))
	_, err = os.Stat(m.Path(RunFile))
	assert.NoError(t, err)
}

func TestConsoleNoColor(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf, true)

	c.Phase("Collecting")
	c.SourceResults([]sources.Result{
		{Source: "crtsh", Success: true, Hostnames: subdomain.NewSet("a.example.com"), Duration: time.Second},
		{Source: "otx", Success: false, Err: assert.AnError, Hostnames: subdomain.NewSet()},
		{Source: "archive", Success: true, FromCache: true, Hostnames: subdomain.NewSet()},
	})
	c.ProbeSummary([]probe.Record{
		{Host: "a.example.com", Scheme: "https", Alive: true, StatusCode: 200},
		{Host: "b.example.com", Scheme: "https"},
	})
	c.Summary("run-1", time.Second, map[string]int{DeepFile: 3, TotalFile: 4}, FileOrder)

	out := buf.String()
	assert.NotContains(t, out, "\x1b[")
	assert.Contains(t, out, "[+] Collecting")
	assert.Contains(t, out, "source otx failed")
	assert.Contains(t, out, "(cache)")
	assert.Contains(t, out, "https://a.example.com [status: 200] [title: N/A] [size: 0 bytes]")
	assert.NotContains(t, out, "b.example.com [not alive]")
	assert.Contains(t, out, "total 2, alive 1, dead 1")
	assert.Contains(t, out, DeepFile)
	assert.NotContains(t, out, AliveFile)
}
