package cli_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pyfreeze/pyfreeze/internal/adapters/inbound/cli"
	"github.com/pyfreeze/pyfreeze/internal/adapters/outbound/config"
	"github.com/pyfreeze/pyfreeze/internal/domain"
)

func TestInitCmd_CreatesConfigFile(t *testing.T) {
	tmpDir := t.TempDir()

	root := cli.NewRootCmdForTest()
	root.SetArgs([]string{"init", tmpDir})
	require.NoError(t, root.Execute())

	data, err := os.ReadFile(filepath.Join(tmpDir, ".pyfreeze.yaml"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "# pyfreeze configuration")
	assert.Contains(t, string(data), "timeout: 30s")
	assert.Contains(t, string(data), "@hourly")
}

func TestInitCmd_GeneratedConfigLoads(t *testing.T) {
	tmpDir := t.TempDir()

	root := cli.NewRootCmdForTest()
	root.SetArgs([]string{"init", tmpDir, "--interpreter", "/opt/py/bin/python3"})
	require.NoError(t, root.Execute())

	cfg, err := config.New().Load(tmpDir)
	require.NoError(t, err)

	def := domain.DefaultConfig()
	assert.Equal(t, "/opt/py/bin/python3", cfg.Interpreter)
	assert.Equal(t, def.Timeout, cfg.Timeout)
	assert.Equal(t, def.Workers, cfg.Workers)
	assert.Equal(t, 168*time.Hour, cfg.Cache.MaxAge)
	assert.Equal(t, def.Cache.PruneSchedule, cfg.Cache.PruneSchedule)
	assert.Equal(t, def.Build.OneFile, cfg.Build.OneFile)
	assert.Equal(t, def.Build.DistPath, cfg.Build.DistPath)
	assert.Empty(t, cfg.ExtraHiddenImports)
}

func TestInitCmd_FailsIfExists(t *testing.T) {
	tmpDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, ".pyfreeze.yaml"), []byte("existing"), 0644))

	root := cli.NewRootCmdForTest()
	root.SetArgs([]string{"init", tmpDir})
	err := root.Execute()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}

func TestInitCmd_ForceOverwrites(t *testing.T) {
	tmpDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, ".pyfreeze.yaml"), []byte("old"), 0644))

	root := cli.NewRootCmdForTest()
	root.SetArgs([]string{"init", tmpDir, "--force"})
	require.NoError(t, root.Execute())

	data, err := os.ReadFile(filepath.Join(tmpDir, ".pyfreeze.yaml"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "workers:")
	assert.NotEqual(t, "old", string(data))
}
