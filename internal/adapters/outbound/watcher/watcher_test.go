package watcher_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pyfreeze/pyfreeze/internal/adapters/outbound/watcher"
	"github.com/pyfreeze/pyfreeze/internal/logging"
)

type recorder struct {
	mu    sync.Mutex
	calls [][]string
}

func (r *recorder) onChange(_ context.Context, changed []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, changed)
	return nil
}

func (r *recorder) snapshot() [][]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]string(nil), r.calls...)
}

func startWatcher(t *testing.T, dir string, rec *recorder, ignore ...string) {
	t.Helper()
	w, err := watcher.New(watcher.Config{
		ScriptPath: filepath.Join(dir, "main.py"),
		Ignore:     ignore,
		Debounce:   50 * time.Millisecond,
		OnChange:   rec.onChange,
		Logger:     logging.Discard(),
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		assert.NoError(t, <-done)
	})
}

func TestWatcher_DebouncesRelevantChanges(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "main.py")
	require.NoError(t, os.WriteFile(script, []byte("import os\n"), 0644))
	rec := &recorder{}
	startWatcher(t, dir, rec)

	require.NoError(t, os.WriteFile(script, []byte("import os\nimport yaml\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pyproject.toml"), []byte("[tool.pyfreeze]\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0644))

	require.Eventually(t, func() bool { return len(rec.snapshot()) > 0 }, 3*time.Second, 20*time.Millisecond)
	time.Sleep(200 * time.Millisecond)

	var seen []string
	for _, call := range rec.snapshot() {
		seen = append(seen, call...)
	}
	assert.Contains(t, seen, "main.py")
	assert.Contains(t, seen, "pyproject.toml")
	assert.NotContains(t, seen, "notes.txt")
}

func TestWatcher_IgnoresCacheDirectories(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.py"), nil, 0644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "__pycache__"), 0755))
	rec := &recorder{}
	startWatcher(t, dir, rec)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "__pycache__", "main.py"), nil, 0644))
	time.Sleep(300 * time.Millisecond)

	assert.Empty(t, rec.snapshot())
}

func TestWatcher_UserIgnorePatterns(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.py"), nil, 0644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "generated"), 0755))
	rec := &recorder{}
	startWatcher(t, dir, rec, "generated/**")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "generated", "stubs.py"), nil, 0644))
	time.Sleep(300 * time.Millisecond)
	assert.Empty(t, rec.snapshot())

	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.py"), []byte("import os\n"), 0644))
	require.Eventually(t, func() bool { return len(rec.snapshot()) > 0 }, 3*time.Second, 20*time.Millisecond)
}

func TestWatcher_InvalidIgnorePattern(t *testing.T) {
	_, err := watcher.New(watcher.Config{
		ScriptPath: filepath.Join(t.TempDir(), "main.py"),
		Ignore:     []string{"[unclosed"},
	})
	assert.Error(t, err)
}

func TestWatcher_NewPackageDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.py"), nil, 0644))
	rec := &recorder{}
	startWatcher(t, dir, rec)

	pkg := filepath.Join(dir, "helpers")
	require.NoError(t, os.Mkdir(pkg, 0755))
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(pkg, "__init__.py"), []byte("x = 1\n"), 0644))

	want := filepath.Join("helpers", "__init__.py")
	require.Eventually(t, func() bool {
		for _, call := range rec.snapshot() {
			for _, p := range call {
				if p == want {
					return true
				}
			}
		}
		return false
	}, 3*time.Second, 20*time.Millisecond)
}

func TestWatcher_RunTwice(t *testing.T) {
	dir := t.TempDir()
	w, err := watcher.New(watcher.Config{ScriptPath: filepath.Join(dir, "main.py")})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, w.Run(ctx))
	assert.Error(t, w.Run(ctx))
}
