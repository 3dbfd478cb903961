// Package pyproject reads the [tool.pyfreeze] table of the nearest pyproject.toml.
package pyproject

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/pyfreeze/pyfreeze/internal/domain"
)

const FileName = "pyproject.toml"

type document struct {
	Tool struct {
		PyFreeze *table `toml:"pyfreeze"`
	} `toml:"tool"`
}

type table struct {
	HiddenImports  []string `toml:"hidden-imports"`
	CollectAll     []string `toml:"collect-all"`
	ExcludeModules []string `toml:"exclude-modules"`
}

// Reader implements domain.ExtrasReader.
type Reader struct{}

func New() *Reader { return &Reader{} }

// Read looks for pyproject.toml in the script's directory and its parents,
// stopping at the first one found or at a repository root. It returns
// (nil, nil) when no file carries a [tool.pyfreeze] table.
func (r *Reader) Read(scriptPath string) (*domain.ProjectExtras, error) {
	abs, err := filepath.Abs(scriptPath)
	if err != nil {
		return nil, err
	}
	path, ok := find(filepath.Dir(abs))
	if !ok {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc document
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if doc.Tool.PyFreeze == nil {
		return nil, nil
	}

	t := doc.Tool.PyFreeze
	extras := &domain.ProjectExtras{Source: path}
	fields := []struct {
		key  string
		in   []string
		into *[]domain.ModuleName
	}{
		{"hidden-imports", t.HiddenImports, &extras.HiddenImports},
		{"collect-all", t.CollectAll, &extras.CollectAll},
		{"exclude-modules", t.ExcludeModules, &extras.ExcludeModules},
	}
	for _, f := range fields {
		for _, name := range f.in {
			m := domain.ModuleName(name)
			if !m.Valid() {
				return nil, fmt.Errorf("%s: invalid module name %q in tool.pyfreeze.%s", path, name, f.key)
			}
			*f.into = append(*f.into, m)
		}
	}
	return extras, nil
}

func find(dir string) (string, bool) {
	for {
		candidate := filepath.Join(dir, FileName)
		if info, err := os.Stat(candidate); err == nil && info.Mode().IsRegular() {
			return candidate, true
		}
		if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil || !errors.Is(err, os.ErrNotExist) {
			return "", false
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}
