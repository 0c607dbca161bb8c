package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rootsploit/deepx/internal/config"
	"github.com/rootsploit/deepx/internal/pipeline"
)

func TestParseResolvers(t *testing.T) {
	servers, err := parseResolvers("9.9.9.9, 1.1.1.1:53,,")
	require.NoError(t, err)
	assert.Equal(t, []string{"9.9.9.9", "1.1.1.1:53"}, servers)

	file := filepath.Join(t.TempDir(), "resolvers.txt")
	require.NoError(t, os.WriteFile(file, []byte("# public\n8.8.8.8\n\n208.67.222.222:53\n"), 0644))
	servers, err = parseResolvers(file)
	require.NoError(t, err)
	assert.Equal(t, []string{"8.8.8.8", "208.67.222.222:53"}, servers)

	servers, err = parseResolvers("")
	require.NoError(t, err)
	assert.Nil(t, servers)
}

func TestFofaFlagsApply(t *testing.T) {
	var f fofaFlags
	cmd := &cobra.Command{Use: "fofa"}
	f.register(cmd)
	require.NoError(t, cmd.Flags().Set("pages", "7"))
	require.NoError(t, cmd.Flags().Set("key", "k"))
	f.query = `host="{domain}"`

	cfg := config.DefaultConfig()
	f.apply(cmd, cfg)
	assert.Equal(t, "k", cfg.Fofa.APIKey)
	assert.Equal(t, `host="{domain}"`, cfg.Fofa.Query)
	assert.Equal(t, 7, cfg.Fofa.MaxPages)
	assert.Empty(t, cfg.Fofa.Email)
}

func TestAllProbesTotalByDefault(t *testing.T) {
	flag := allCmd.Flags().Lookup("probe")
	require.NotNil(t, flag)
	assert.Equal(t, string(pipeline.ProbeTotal), flag.DefValue)
}

// TestCommands drives the root command end to end without network access:
// config init/show and a compare over prepared files.
func TestCommands(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	outDir := filepath.Join(dir, "out")
	t.Setenv("FOFA_API_KEY", "")
	t.Setenv("DEEPX_CACHE_DIR", filepath.Join(dir, "cache"))

	run := func(args ...string) (string, error) {
		var buf bytes.Buffer
		rootCmd.SetOut(&buf)
		rootCmd.SetErr(&buf)
		rootCmd.SetArgs(append([]string{"--config", cfgPath, "--no-color"}, args...))
		err := rootCmd.ExecuteContext(context.Background())
		return buf.String(), err
	}

	out, err := run("config", "init")
	require.NoError(t, err)
	assert.Contains(t, out, "Created: "+cfgPath)
	_, err = os.Stat(cfgPath)
	require.NoError(t, err)

	out, err = run("config", "init")
	require.NoError(t, err)
	assert.Contains(t, out, "already exists")

	t.Setenv("FOFA_API_KEY", "abcdefghijkl")
	out, err = run("config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "abcd...ijkl")
	assert.NotContains(t, out, "abcdefghijkl")

	deep := filepath.Join(dir, "deep.txt")
	require.NoError(t, os.WriteFile(deep, []byte("a.example.com\nhidden.example.com\n"), 0644))
	fofa := filepath.Join(dir, "fofa.txt")
	require.NoError(t, os.WriteFile(fofa, []byte("a.example.com\n"), 0644))

	_, err = run("-o", outDir, "--no-cache", "compare", "example.com", "--deep-file", deep, "--fofa-file", fofa)
	require.NoError(t, err)
	data, err := os.ReadFile(filepath.Join(outDir, "result.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hidden.example.com\n", string(data))

	_, err = run("-o", outDir, "compare", "not_a_domain!")
	assert.Error(t, err)

	out, err = run("version")
	require.NoError(t, err)
	assert.Contains(t, out, "deepx version")
}
