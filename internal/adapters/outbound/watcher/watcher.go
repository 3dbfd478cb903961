// Package watcher re-runs detection when a script or the files around it change.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

const defaultDebounce = 300 * time.Millisecond

// Files whose change can alter a detection result, relative to the script directory.
var relevantPatterns = []string{
	"**/*.py",
	"**/pyproject.toml",
	".pyfreeze.yaml",
	"**/config.*",
	"**/settings.json",
}

// defaultIgnores are excluded whatever Config.Ignore says.
var defaultIgnores = []string{
	"**/.*/**",
	"**/__pycache__/**",
	"**/node_modules/**",
	"**/venv/**",
	"**/env/**",
	"build/**",
	"dist/**",
}

var ignoredDirs = map[string]bool{
	"__pycache__":  true,
	"node_modules": true,
	"venv":         true,
	"env":          true,
	"build":        true,
	"dist":         true,
}

type Config struct {
	// ScriptPath is the watched script. Its directory tree is watched.
	ScriptPath string
	Debounce   time.Duration
	// Ignore adds doublestar patterns to the built-in ignore list.
	Ignore []string
	// OnChange receives the changed paths relative to the script directory.
	OnChange func(ctx context.Context, changed []string) error
	Logger   *log.Logger
}

type Watcher struct {
	cfg      Config
	fsw      *fsnotify.Watcher
	baseDir  string
	ignores  []string
	debounce time.Duration
	logger   *log.Logger
	started  atomic.Bool
}

func New(cfg Config) (*Watcher, error) {
	abs, err := filepath.Abs(cfg.ScriptPath)
	if err != nil {
		return nil, fmt.Errorf("watch: resolve script: %w", err)
	}
	for _, pat := range cfg.Ignore {
		if _, err := doublestar.Match(pat, ""); err != nil {
			return nil, fmt.Errorf("watch: invalid ignore pattern %q: %w", pat, err)
		}
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: create fsnotify watcher: %w", err)
	}

	w := &Watcher{
		cfg:      cfg,
		fsw:      fsw,
		baseDir:  filepath.Dir(abs),
		ignores:  append(append([]string(nil), defaultIgnores...), cfg.Ignore...),
		debounce: cfg.Debounce,
		logger:   cfg.Logger,
	}
	if w.debounce <= 0 {
		w.debounce = defaultDebounce
	}
	if w.logger == nil {
		w.logger = log.New(io.Discard)
	}

	if err := w.addDirectories(); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	return w, nil
}

// Run blocks until ctx is done, calling OnChange once per burst of events.
// Calls never overlap; a burst arriving during a call is delivered after it.
func (w *Watcher) Run(ctx context.Context) error {
	if !w.started.CompareAndSwap(false, true) {
		return errors.New("watch: Run called more than once")
	}
	defer w.fsw.Close()

	var (
		mu      sync.Mutex
		pending = make(map[string]struct{})
		timer   *time.Timer
		running sync.Mutex
	)

	fire := func() {
		running.Lock()
		defer running.Unlock()
		if ctx.Err() != nil {
			return
		}

		mu.Lock()
		changed := make([]string, 0, len(pending))
		for p := range pending {
			changed = append(changed, p)
		}
		clear(pending)
		mu.Unlock()
		if len(changed) == 0 {
			return
		}
		sort.Strings(changed)

		if w.cfg.OnChange != nil {
			if err := w.cfg.OnChange(ctx, changed); err != nil {
				w.logger.Warn("watch callback failed", "error", err)
			}
		}
	}
	defer func() {
		mu.Lock()
		if timer != nil {
			timer.Stop()
		}
		mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case evt, ok := <-w.fsw.Events:
			if !ok {
				return errors.New("watch: fsnotify event channel closed unexpectedly")
			}
			if evt.Has(fsnotify.Create) {
				w.maybeAddDir(evt.Name)
			}
			if evt.Has(fsnotify.Chmod) && !evt.Has(fsnotify.Write) {
				continue
			}
			rel, err := filepath.Rel(w.baseDir, evt.Name)
			if err != nil || !w.relevant(rel) {
				continue
			}

			w.logger.Debug("change detected", "path", rel, "op", evt.Op.String())
			mu.Lock()
			pending[rel] = struct{}{}
			if timer == nil {
				timer = time.AfterFunc(w.debounce, fire)
			} else {
				timer.Reset(w.debounce)
			}
			mu.Unlock()

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return errors.New("watch: fsnotify error channel closed unexpectedly")
			}
			if isFatal(err) {
				return fmt.Errorf("watch: fatal fsnotify error: %w", err)
			}
			w.logger.Warn("fsnotify error", "error", err)
		}
	}
}

func (w *Watcher) addDirectories() error {
	err := filepath.WalkDir(w.baseDir, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			w.logger.Debug("skipping inaccessible path", "path", path, "error", walkErr)
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.baseDir && skipDir(d.Name()) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("watch: add directory %q: %w", path, err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("watch: walk directory tree: %w", err)
	}
	return nil
}

func (w *Watcher) maybeAddDir(path string) {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() || skipDir(info.Name()) {
		return
	}
	if err := w.fsw.Add(path); err != nil {
		w.logger.Warn("cannot watch new directory", "path", path, "error", err)
	}
}

func skipDir(name string) bool {
	return ignoredDirs[name] || strings.HasPrefix(name, ".")
}

func (w *Watcher) relevant(rel string) bool {
	rel = filepath.ToSlash(rel)
	for _, pat := range w.ignores {
		if ok, _ := doublestar.Match(pat, rel); ok {
			return false
		}
	}
	for _, pat := range relevantPatterns {
		if ok, _ := doublestar.Match(pat, rel); ok {
			return true
		}
	}
	return false
}

// isFatal reports inotify resource exhaustion, after which no events arrive.
func isFatal(err error) bool {
	return errors.Is(err, syscall.ENOSPC) ||
		errors.Is(err, syscall.EMFILE) ||
		errors.Is(err, syscall.ENFILE)
}
