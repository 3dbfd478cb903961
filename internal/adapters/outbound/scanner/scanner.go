package scanner

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pyfreeze/pyfreeze/internal/domain"
)

var skipDirs = map[string]bool{
	"__pycache__":  true,
	"venv":         true,
	".venv":        true,
	"env":          true,
	"node_modules": true,
	".git":         true,
	"build":        true,
	"dist":         true,
	".tox":         true,
	".mypy_cache":  true,
}

// Config files shipped next to the executable when they sit beside the script.
var configFiles = []string{
	"config.json",
	"config.yaml",
	"config.yml",
	"config.ini",
	"settings.json",
}

// FileScanner implements domain.ScriptDirScanner by reading the script's directory.
type FileScanner struct{}

func New() *FileScanner {
	return &FileScanner{}
}

// Scan lists the modules importable from the script's directory (sibling
// .py files and packages) and the config files that should be bundled.
func (s *FileScanner) Scan(scriptPath string) (*domain.ScriptDirScan, error) {
	absPath, err := filepath.Abs(scriptPath)
	if err != nil {
		return nil, err
	}
	dir := filepath.Dir(absPath)

	result := &domain.ScriptDirScan{
		Dir:          dir,
		LocalModules: domain.NewModuleSet(),
	}

	err = filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == dir {
			return nil
		}

		name := d.Name()
		if d.IsDir() {
			if skipDirs[name] || strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			if isPackage(path) {
				addLocal(result, name)
			}
			// Only the top level is importable without a package prefix.
			return filepath.SkipDir
		}

		if strings.HasSuffix(name, ".py") && path != absPath {
			addLocal(result, strings.TrimSuffix(name, ".py"))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, name := range configFiles {
		p := filepath.Join(dir, name)
		if info, err := os.Stat(p); err == nil && info.Mode().IsRegular() {
			result.ConfigFiles = append(result.ConfigFiles, domain.DataFile{Source: p, Dest: "."})
		}
	}

	return result, nil
}

// ResolveData expands template data globs against scriptDir. Directories
// keep their relative path as destination; files land in their parent.
func (s *FileScanner) ResolveData(scriptDir string, globs []string) []domain.DataFile {
	var out []domain.DataFile
	for _, g := range globs {
		matches, err := filepath.Glob(filepath.Join(scriptDir, filepath.FromSlash(g)))
		if err != nil {
			continue
		}
		sort.Strings(matches)
		for _, m := range matches {
			info, err := os.Stat(m)
			if err != nil {
				continue
			}
			rel, err := filepath.Rel(scriptDir, m)
			if err != nil {
				continue
			}
			dest := rel
			if !info.IsDir() {
				dest = filepath.Dir(rel)
			}
			out = append(out, domain.DataFile{Source: m, Dest: filepath.ToSlash(dest)})
		}
	}
	return out
}

func isPackage(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, "__init__.py"))
	return err == nil
}

func addLocal(result *domain.ScriptDirScan, name string) {
	if m := domain.ModuleName(name); m.Valid() {
		result.LocalModules.Add(m)
	}
}
