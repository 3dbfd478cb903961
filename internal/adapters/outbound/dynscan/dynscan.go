// Package dynscan finds imports made by name at runtime: importlib and
// __import__ calls, plugin loaders, exec'd import statements and
// configuration dictionaries naming modules.
package dynscan

import (
	"regexp"
	"sort"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/pyfreeze/pyfreeze/internal/domain"
)

type pattern struct {
	name string
	re   *regexp.Regexp
	// concat marks patterns whose literal may be a "pkg." prefix joined to a
	// runtime value with +.
	concat bool
}

const quoted = `\(\s*[rbu]?["']([^"'\n]*)["']`

var patterns = []pattern{
	{name: "import_module", re: regexp.MustCompile(`\bimport_module` + quoted + `(\s*\+)?`), concat: true},
	{name: "__import__", re: regexp.MustCompile(`\b__import__` + quoted + `(\s*\+)?`), concat: true},
	{name: "find_spec", re: regexp.MustCompile(`\bfind_spec` + quoted)},
	{name: "resolve_name", re: regexp.MustCompile(`\bpkgutil\.resolve_name\(\s*["']([A-Za-z_][\w.]*)`)},
	{name: "plugin", re: regexp.MustCompile(`\b(?:load_plugin|get_plugin)` + quoted)},
	{name: "exec_import", re: regexp.MustCompile(`\b(?:exec|eval)\(\s*[rbu]?["']\s*import\s+([A-Za-z_][\w.]*)`)},
	{name: "exec_from", re: regexp.MustCompile(`\b(?:exec|eval)\(\s*[rbu]?["']\s*from\s+([A-Za-z_][\w.]*)\s+import\b`)},
	{name: "config_key", re: regexp.MustCompile(`["'](?:module|plugin|handler)["']\s*:\s*["']([^"'\n]*)["']`)},
}

// Literal values that look like identifiers but are almost never modules.
var noise = map[string]bool{
	"main": true, "name": true, "file": true, "path": true, "version": true,
	"true": true, "false": true, "none": true, "null": true, "self": true,
	"cls": true, "args": true, "kwargs": true, "data": true, "value": true,
	"key": true, "item": true, "result": true, "config": true, "settings": true,
}

// Scanner implements domain.DynamicScanner.
type Scanner struct {
	logger *log.Logger
}

func New(logger *log.Logger) *Scanner {
	return &Scanner{logger: logger}
}

type hit struct {
	offset int
	name   domain.ModuleName
}

// Scan returns module-shaped literals in order of first appearance. It never
// fails: anything unexpected yields an empty result.
func (s *Scanner) Scan(src []byte) (found domain.OrderedModules) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Warn("dynamic scan aborted", "panic", r)
			found = domain.OrderedModules{}
		}
	}()

	var hits []hit
	for _, p := range patterns {
		for _, m := range p.re.FindAllSubmatchIndex(src, -1) {
			lit := string(src[m[2]:m[3]])
			joined := p.concat && len(m) >= 6 && m[4] >= 0
			name, ok := candidate(lit, joined)
			if !ok {
				continue
			}
			hits = append(hits, hit{offset: m[0], name: name})
			s.logger.Debug("dynamic import", "pattern", p.name, "module", name)
		}
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].offset < hits[j].offset })
	for _, h := range hits {
		found.Add(h.name)
	}
	return found
}

// candidate turns a string literal into a module name, or rejects it.
// A literal concatenated with a runtime value only counts when it is a
// package prefix ending in a dot.
func candidate(lit string, joined bool) (domain.ModuleName, bool) {
	if joined {
		if !strings.HasSuffix(lit, ".") {
			return "", false
		}
		lit = strings.TrimSuffix(lit, ".")
	}
	name := domain.ModuleName(lit)
	if !name.Valid() || noise[strings.ToLower(lit)] {
		return "", false
	}
	return name, true
}
