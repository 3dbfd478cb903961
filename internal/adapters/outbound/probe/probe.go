// Package probe asks a Python interpreter which modules it can resolve,
// without importing them, and where its shared libraries live.
package probe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/pyfreeze/pyfreeze/internal/domain"
)

// findSpecScript prints one JSON document describing each module named on
// the command line. find_spec on a top-level name imports nothing.
const findSpecScript = `import importlib.util, json, sys
out = {"prefix": sys.prefix, "base_prefix": sys.base_prefix, "modules": {}}
for name in sys.argv[1:]:
    try:
        out["modules"][name] = "found" if importlib.util.find_spec(name) is not None else "missing"
    except Exception:
        out["modules"][name] = "error"
sys.stdout.write(json.dumps(out))
`

const defaultBatchSize = 48

// waitDelay bounds how long a killed probe may hold its output pipes open.
const waitDelay = time.Second

// Directories under an interpreter prefix that hold shared libraries.
var binarySubdirs = []string{filepath.Join("Library", "bin"), "DLLs", "bin", "lib", "."}

type batchReport struct {
	Prefix     string            `json:"prefix"`
	BasePrefix string            `json:"base_prefix"`
	Modules    map[string]string `json:"modules"`
}

// Interpreter implements domain.ModuleProber by running the target interpreter.
type Interpreter struct {
	workers   int
	batchSize int
	logger    *log.Logger
}

func New(workers int, logger *log.Logger) *Interpreter {
	if workers < 1 {
		workers = 1
	}
	return &Interpreter{workers: workers, batchSize: defaultBatchSize, logger: logger}
}

// WithBatchSize overrides how many modules each interpreter run checks.
func (p *Interpreter) WithBatchSize(n int) *Interpreter {
	if n > 0 {
		p.batchSize = n
	}
	return p
}

// Probe checks the top-level package of every requested module. Batches
// run in parallel and are joined by position. Lookup failures and errors
// both count as missing; an interpreter that cannot be run yields an
// *domain.InterpreterUnreachableError.
func (p *Interpreter) Probe(ctx context.Context, req domain.ProbeRequest) (*domain.ProbeReport, error) {
	tops := domain.NewOrderedModules()
	for _, m := range req.Modules {
		tops.Add(m.TopLevel())
	}
	names := tops.Items()

	// Always run at least once so binaries can be located from the prefix.
	batches := chunk(names, p.batchSize)
	if len(batches) == 0 {
		batches = [][]domain.ModuleName{nil}
	}

	reports := make([]*batchReport, len(batches))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for i, batch := range batches {
		g.Go(func() error {
			rep, err := p.run(gctx, req.Interpreter, batch)
			if err != nil {
				return err
			}
			reports[i] = rep
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}

	out := &domain.ProbeReport{Missing: domain.NewModuleSet()}
	for i, rep := range reports {
		for _, name := range batches[i] {
			switch status := rep.Modules[string(name)]; status {
			case "found":
			case "error":
				p.logger.Debug("module lookup failed", "module", name)
				out.Missing.Add(name)
			default:
				p.logger.Debug("module not found", "module", name, "status", status)
				out.Missing.Add(name)
			}
		}
	}

	first := reports[0]
	out.Prefixes = uniq(first.Prefix, first.BasePrefix)
	out.Binaries = LocateBinaries(out.Prefixes, req.BinaryNames)
	return out, nil
}

func (p *Interpreter) run(ctx context.Context, interpreter string, batch []domain.ModuleName) (*batchReport, error) {
	args := []string{"-c", findSpecScript}
	for _, m := range batch {
		args = append(args, string(m))
	}

	cmd := exec.CommandContext(ctx, interpreter, args...)
	// Keep the user's site customizations from running arbitrary code.
	cmd.Env = append(os.Environ(), "PYTHONNOUSERSITE=1", "PYTHONDONTWRITEBYTECODE=1")
	cmd.WaitDelay = waitDelay
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			err = fmt.Errorf("exit status %d: %s", exitErr.ExitCode(), bytes.TrimSpace(stderr.Bytes()))
		}
		return nil, &domain.InterpreterUnreachableError{Interpreter: interpreter, Err: err}
	}

	var rep batchReport
	if err := json.Unmarshal(stdout.Bytes(), &rep); err != nil {
		return nil, &domain.InterpreterUnreachableError{
			Interpreter: interpreter,
			Err:         fmt.Errorf("decoding probe output: %w", err),
		}
	}
	return &rep, nil
}

// LocateBinaries finds each named shared library under the interpreter
// prefixes. The first hit per name wins; names never found are skipped.
func LocateBinaries(prefixes, names []string) []domain.DataFile {
	var out []domain.DataFile
	for _, name := range names {
	search:
		for _, prefix := range prefixes {
			for _, sub := range binarySubdirs {
				candidate := filepath.Join(prefix, sub, name)
				if info, err := os.Stat(candidate); err == nil && info.Mode().IsRegular() {
					out = append(out, domain.DataFile{Source: candidate, Dest: "."})
					break search
				}
			}
		}
	}
	return out
}

func chunk(names []domain.ModuleName, size int) [][]domain.ModuleName {
	var out [][]domain.ModuleName
	for len(names) > 0 {
		n := min(size, len(names))
		out = append(out, names[:n])
		names = names[n:]
	}
	return out
}

func uniq(values ...string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, v := range values {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
