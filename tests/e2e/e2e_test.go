package e2e_test

import (
	"bytes"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pyfreeze/pyfreeze/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	binaryPath string
	cacheHome  string
)

func TestMain(m *testing.M) {
	// Build binary before running tests
	dir, err := os.MkdirTemp("", "pyfreeze-e2e")
	if err != nil {
		panic(err)
	}
	defer os.RemoveAll(dir)

	binaryPath = filepath.Join(dir, "pyfreeze")
	cmd := exec.Command("go", "build", "-o", binaryPath, "../../cmd/pyfreeze")
	if out, err := cmd.CombinedOutput(); err != nil {
		panic("build failed: " + string(out))
	}

	cacheHome = filepath.Join(dir, "cache")
	os.Exit(m.Run())
}

func fixturePath(name string) string {
	abs, _ := filepath.Abs(filepath.Join("../../testdata/scripts", name))
	return abs
}

// run executes the binary and returns stdout, stderr and the exit code.
// Log lines go to stderr, so stdout stays machine-readable.
func run(t *testing.T, args ...string) (string, string, int) {
	t.Helper()
	cmd := exec.Command(binaryPath, args...)
	cmd.Env = append(os.Environ(), "XDG_CACHE_HOME="+cacheHome, "HOME="+cacheHome)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	exitCode := 0
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		}
	}
	return stdout.String(), stderr.String(), exitCode
}

// --- Detect Tests ---

func TestE2E_Detect(t *testing.T) {
	out, errOut, code := run(t, "detect", fixturePath("webapp/app.py"), "--no-cache")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "pyfreeze")
	assert.Contains(t, out, "app.py")
	assert.Contains(t, out, "werkzeug.serving")
}

func TestE2E_DetectJSON(t *testing.T) {
	out, errOut, code := run(t, "detect", fixturePath("nested.py"), "--json", "--no-cache")
	require.Equal(t, 0, code, errOut)

	var r domain.DetectionResult
	require.NoError(t, json.Unmarshal([]byte(out), &r))
	assert.Equal(t, fixturePath("nested.py"), r.ScriptPath)
	assert.NotEmpty(t, r.ContentHash)
}

func TestE2E_DetectMissingScript(t *testing.T) {
	out, errOut, code := run(t, "detect", fixturePath("does_not_exist.py"))
	assert.Equal(t, 1, code)
	assert.Empty(t, out)
	assert.Contains(t, errOut, "script not found")
}

func TestE2E_SyntaxErrorStillDetects(t *testing.T) {
	out, errOut, code := run(t, "detect", fixturePath("broken.py"), "--json", "--no-cache")
	require.Equal(t, 0, code, errOut)

	var r domain.DetectionResult
	require.NoError(t, json.Unmarshal([]byte(out), &r), "stdout must be clean JSON")
	assert.True(t, r.HasNote(domain.DiagParseError))
	assert.Contains(t, errOut, "static extraction failed")
}

// --- Directive Tests ---

func TestE2E_Directives(t *testing.T) {
	out, errOut, code := run(t, "directives", fixturePath("webapp/app.py"), "--no-cache")
	require.Equal(t, 0, code, errOut)

	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		assert.True(t, strings.HasPrefix(line, "--"), "unexpected line %q", line)
	}
	assert.Contains(t, out, "--collect-all=flask")
}

func TestE2E_Command(t *testing.T) {
	out, errOut, code := run(t, "command", fixturePath("stdlib_only.py"), "--no-cache")
	require.Equal(t, 0, code, errOut)
	assert.True(t, strings.HasPrefix(out, "pyinstaller "))
	assert.Contains(t, out, "--noconfirm")
}

// --- Templates Tests ---

func TestE2E_TemplatesList(t *testing.T) {
	out, errOut, code := run(t, "templates", "list")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "django")
	assert.Contains(t, out, "numpy")
}

// --- Init Tests ---

func TestE2E_InitThenDetect(t *testing.T) {
	dir := t.TempDir()
	_, errOut, code := run(t, "init", dir)
	require.Equal(t, 0, code, errOut)
	assert.FileExists(t, filepath.Join(dir, ".pyfreeze.yaml"))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.py"), []byte("import importlib\nloader = importlib.import_module(\"yaml\")\n"), 0644))
	out, errOut, code := run(t, "directives", filepath.Join(dir, "main.py"))
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "--hidden-import=yaml")
}

func TestE2E_InvalidConfig(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".pyfreeze.yaml"), []byte("timeout: -1s\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.py"), []byte("import os\n"), 0644))

	_, errOut, code := run(t, "detect", filepath.Join(dir, "main.py"))
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "invalid .pyfreeze.yaml")
}

func TestE2E_Version(t *testing.T) {
	out, errOut, code := run(t, "version")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "pyfreeze")
}
