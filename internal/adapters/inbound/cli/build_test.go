package cli_test

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pyfreeze/pyfreeze/internal/domain"
)

// fakePython answers the module probe with an empty report and echoes the
// PyInstaller arguments it receives, exiting with the given status.
const fakePython = `#!/bin/sh
if [ "$1" = "-c" ]; then
  printf '{"prefix":"/nonexistent","base_prefix":"/nonexistent","modules":{}}'
  exit 0
fi
shift 2
echo "pyinstaller: $*"
exit %s
`

// failingPython answers the module probe like fakePython, then fails the
// build with a missing-module traceback.
const failingPython = `#!/bin/sh
if [ "$1" = "-c" ]; then
  printf '{"prefix":"/nonexistent","base_prefix":"/nonexistent","modules":{}}'
  exit 0
fi
echo "Traceback (most recent call last):"
echo "ModuleNotFoundError: No module named 'reportlab'" >&2
exit 1
`

func writeFakePython(t *testing.T, status string) string {
	t.Helper()
	return writeInterpreter(t, fmt.Sprintf(fakePython, status))
}

func writeInterpreter(t *testing.T, script string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake interpreter is a shell script")
	}
	path := filepath.Join(t.TempDir(), "python")
	require.NoError(t, os.WriteFile(path, []byte(script), 0755))
	return path
}

func TestBuildCommand_RunsPyInstallerAndRecordsHistory(t *testing.T) {
	isolate(t)
	python := writeFakePython(t, "0")
	script := filepath.Join(t.TempDir(), "main.py")
	require.NoError(t, os.WriteFile(script, []byte("import requests\n"), 0644))

	out, err := run(t, "build", script, "--interpreter", python)
	require.NoError(t, err)

	assert.Contains(t, out, "pyinstaller: --onefile --console")
	assert.Contains(t, out, "--hidden-import=urllib3")
	assert.Contains(t, out, "ok")

	out, err = run(t, "history", "--json")
	require.NoError(t, err)
	var runs []domain.BuildRun
	require.NoError(t, json.Unmarshal([]byte(out), &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, 0, runs[0].ExitCode)
	assert.Equal(t, script, runs[0].Script)
	assert.Contains(t, runs[0].Args, "--noconfirm")
}

func TestBuildCommand_QuietHidesOutput(t *testing.T) {
	isolate(t)
	python := writeFakePython(t, "0")
	script := filepath.Join(t.TempDir(), "main.py")
	require.NoError(t, os.WriteFile(script, []byte("import os\n"), 0644))

	out, err := run(t, "build", script, "--interpreter", python, "--quiet")
	require.NoError(t, err)

	assert.NotContains(t, out, "pyinstaller:")
	assert.Contains(t, out, "build")
}

func TestBuildCommand_NonZeroExit(t *testing.T) {
	isolate(t)
	python := writeFakePython(t, "2")
	script := filepath.Join(t.TempDir(), "main.py")
	require.NoError(t, os.WriteFile(script, []byte("import os\n"), 0644))

	out, err := run(t, "build", script, "--interpreter", python)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "build failed")
	assert.Contains(t, err.Error(), "status 2")
	assert.Contains(t, out, "exit 2")
}

func TestBuildCommand_ExplainsFailure(t *testing.T) {
	isolate(t)
	python := writeInterpreter(t, failingPython)
	script := filepath.Join(t.TempDir(), "main.py")
	require.NoError(t, os.WriteFile(script, []byte("import os\n"), 0644))

	out, err := run(t, "build", script, "--interpreter", python, "--quiet")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 1")
	assert.NotContains(t, out, "Traceback")
	assert.Contains(t, out, "not installed for the interpreter running PyInstaller")
	assert.Contains(t, out, "reportlab")
	assert.Contains(t, out, "extra_hidden_imports")
}

func TestBuildCommand_MissingScript(t *testing.T) {
	isolate(t)

	_, err := run(t, "build", filepath.Join(t.TempDir(), "nope.py"), "--interpreter", "python3")

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrScriptNotFound)
}
