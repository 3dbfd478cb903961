// Package knowledge holds the framework knowledge base: an immutable table of
// templates keyed by name, the table of mutually exclusive modules, and the
// standard library module list.
package knowledge

import (
	_ "embed"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/pyfreeze/pyfreeze/internal/domain"
)

// FormatVersion is the only table version this build understands.
const FormatVersion = 1

//go:embed templates.yaml
var bundled []byte

type document struct {
	Version   int                        `yaml:"version"`
	Templates []domain.FrameworkTemplate `yaml:"templates"`
	Conflicts [][]domain.ModuleName      `yaml:"conflicts"`
	Stdlib    []domain.ModuleName        `yaml:"stdlib"`
}

// Base is the loaded knowledge base. It is safe for concurrent use because
// nothing mutates it after Parse returns.
type Base struct {
	version   int
	templates []domain.FrameworkTemplate
	byName    map[string]int
	conflicts []domain.ConflictPair
	stdlib    domain.ModuleSet
}

var loadDefault = sync.OnceValues(func() (*Base, error) {
	return Parse(bundled)
})

// Default returns the bundled knowledge base.
func Default() *Base {
	b, err := loadDefault()
	if err != nil {
		panic(fmt.Sprintf("bundled knowledge base: %v", err))
	}
	return b
}

// Parse decodes and validates a knowledge base document.
func Parse(data []byte) (*Base, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decoding knowledge base: %w", err)
	}
	if doc.Version != FormatVersion {
		return nil, fmt.Errorf("knowledge base version %d not supported (want %d)", doc.Version, FormatVersion)
	}

	b := &Base{
		version: doc.Version,
		stdlib:  domain.NewModuleSet(doc.Stdlib...),
	}
	for i, pair := range doc.Conflicts {
		if len(pair) != 2 {
			return nil, fmt.Errorf("conflicts[%d]: want 2 modules, got %d", i, len(pair))
		}
		b.conflicts = append(b.conflicts, domain.NewConflictPair(pair[0], pair[1]))
	}
	if err := b.add(doc.Templates); err != nil {
		return nil, err
	}
	return b, nil
}

// LoadTemplatesFile reads extra templates from a YAML file holding a
// top-level "templates" list.
func LoadTemplatesFile(path string) ([]domain.FrameworkTemplate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading templates file: %w", err)
	}
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return doc.Templates, nil
}

// Merge returns a new Base with extra templates appended after the existing ones.
func (b *Base) Merge(extra []domain.FrameworkTemplate) (*Base, error) {
	nb := &Base{
		version:   b.version,
		conflicts: append([]domain.ConflictPair(nil), b.conflicts...),
		stdlib:    domain.NewModuleSet(b.stdlib.Sorted()...),
	}
	if err := nb.add(append(b.Templates(), extra...)); err != nil {
		return nil, err
	}
	return nb, nil
}

func (b *Base) add(templates []domain.FrameworkTemplate) error {
	b.byName = make(map[string]int, len(templates))
	b.templates = make([]domain.FrameworkTemplate, 0, len(templates))
	for _, t := range templates {
		if _, dup := b.byName[t.Name]; dup {
			return fmt.Errorf("duplicate template %q", t.Name)
		}
		b.byName[t.Name] = len(b.templates)
		b.templates = append(b.templates, clone(t))
	}
	return b.Validate()
}

// Validate checks the table invariants.
func (b *Base) Validate() error {
	owner := make(map[domain.ModuleName]string)
	for _, t := range b.templates {
		// 1. named
		if t.Name == "" {
			return fmt.Errorf("template without a name")
		}
		// 2. at least one indicator
		if len(t.IndicatorModules) == 0 {
			return fmt.Errorf("template %q has no indicator modules", t.Name)
		}
		// 3. every listed module is module-shaped
		for _, list := range [][]domain.ModuleName{t.IndicatorModules, t.HiddenImports, t.CollectAllPackages} {
			for _, m := range list {
				if !m.Valid() {
					return fmt.Errorf("template %q: invalid module name %q", t.Name, m)
				}
			}
		}
		// 4. indicators disjoint across templates, including by prefix
		for _, ind := range t.IndicatorModules {
			for other, name := range owner {
				if name != t.Name && (ind.Within(other) || other.Within(ind)) {
					return fmt.Errorf("indicator %q of template %q overlaps %q of template %q", ind, t.Name, other, name)
				}
			}
			owner[ind] = t.Name
		}
	}
	return nil
}

func (b *Base) Version() int { return b.version }

func (b *Base) Len() int { return len(b.templates) }

// Templates returns copies of every template in table order.
func (b *Base) Templates() []domain.FrameworkTemplate {
	out := make([]domain.FrameworkTemplate, len(b.templates))
	for i, t := range b.templates {
		out[i] = clone(t)
	}
	return out
}

func (b *Base) Template(name string) (domain.FrameworkTemplate, bool) {
	i, ok := b.byName[name]
	if !ok {
		return domain.FrameworkTemplate{}, false
	}
	return clone(b.templates[i]), true
}

// Match returns every template indicated by at least one module, in table order.
func (b *Base) Match(modules domain.ModuleSet) []domain.FrameworkTemplate {
	var out []domain.FrameworkTemplate
	for i := range b.templates {
		if b.matches(i, modules) {
			out = append(out, clone(b.templates[i]))
		}
	}
	return out
}

// MatchAt reports whether the template at table position i is indicated.
// Lookups at different positions are independent.
func (b *Base) MatchAt(i int, modules domain.ModuleSet) (domain.FrameworkTemplate, bool) {
	if i < 0 || i >= len(b.templates) || !b.matches(i, modules) {
		return domain.FrameworkTemplate{}, false
	}
	return clone(b.templates[i]), true
}

func (b *Base) matches(i int, modules domain.ModuleSet) bool {
	t := &b.templates[i]
	for m := range modules {
		if t.Indicates(m) {
			return true
		}
	}
	return false
}

// Conflicts returns every known-exclusive pair whose members are both present,
// either as detected names or as the top-level package of one.
func (b *Base) Conflicts(modules domain.ModuleSet) domain.ConflictSet {
	present := domain.NewModuleSet()
	for m := range modules {
		present.Add(m, m.TopLevel())
	}
	out := domain.NewConflictSet()
	for _, p := range b.conflicts {
		if present.Has(p.A) && present.Has(p.B) {
			out.Add(p)
		}
	}
	return out
}

// ConflictTable returns the known-exclusive pairs.
func (b *Base) ConflictTable() []domain.ConflictPair {
	return append([]domain.ConflictPair(nil), b.conflicts...)
}

// IsStdlib reports whether the module's top-level package ships with Python.
func (b *Base) IsStdlib(m domain.ModuleName) bool {
	return b.stdlib.Has(m.TopLevel())
}

func clone(t domain.FrameworkTemplate) domain.FrameworkTemplate {
	t.IndicatorModules = append([]domain.ModuleName(nil), t.IndicatorModules...)
	t.HiddenImports = append([]domain.ModuleName(nil), t.HiddenImports...)
	t.CollectAllPackages = append([]domain.ModuleName(nil), t.CollectAllPackages...)
	t.DataFileGlobs = append([]string(nil), t.DataFileGlobs...)
	t.KnownBinaryNames = append([]string(nil), t.KnownBinaryNames...)
	t.Recommendations = append([]string(nil), t.Recommendations...)
	return t
}
