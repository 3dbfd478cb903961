package domain

import (
	"encoding/json"
	"regexp"
	"sort"
	"strings"
)

// ModuleName is a dotted identifier such as "a.b.c". Equality is exact.
type ModuleName string

var moduleNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)*$`)

// Valid reports whether the name has the shape of an identifier-dot-identifier chain.
func (m ModuleName) Valid() bool {
	return moduleNamePattern.MatchString(string(m))
}

// TopLevel returns the first dotted component.
func (m ModuleName) TopLevel() ModuleName {
	if i := strings.IndexByte(string(m), '.'); i >= 0 {
		return m[:i]
	}
	return m
}

// Within reports whether m is pkg itself or one of its submodules.
func (m ModuleName) Within(pkg ModuleName) bool {
	return m == pkg || strings.HasPrefix(string(m), string(pkg)+".")
}

// ModuleSet is an unordered set of module names. Iteration order is only
// deterministic through Sorted.
type ModuleSet map[ModuleName]struct{}

func NewModuleSet(names ...ModuleName) ModuleSet {
	s := make(ModuleSet, len(names))
	for _, n := range names {
		s[n] = struct{}{}
	}
	return s
}

func (s ModuleSet) Add(names ...ModuleName) {
	for _, n := range names {
		s[n] = struct{}{}
	}
}

func (s ModuleSet) Has(name ModuleName) bool {
	_, ok := s[name]
	return ok
}

// Union adds every member of other to s.
func (s ModuleSet) Union(other ModuleSet) {
	for n := range other {
		s[n] = struct{}{}
	}
}

func (s ModuleSet) Sorted() []ModuleName {
	out := make([]ModuleName, 0, len(s))
	for n := range s {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (s ModuleSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Sorted())
}

func (s *ModuleSet) UnmarshalJSON(data []byte) error {
	var names []ModuleName
	if err := json.Unmarshal(data, &names); err != nil {
		return err
	}
	*s = NewModuleSet(names...)
	return nil
}

// OrderedModules is a duplicate-free sequence that keeps first-seen order.
// The zero value is ready to use.
type OrderedModules struct {
	items []ModuleName
	seen  map[ModuleName]struct{}
}

func NewOrderedModules(names ...ModuleName) OrderedModules {
	var o OrderedModules
	o.Add(names...)
	return o
}

// Add appends names not already present and returns how many were new.
func (o *OrderedModules) Add(names ...ModuleName) int {
	added := 0
	for _, n := range names {
		if _, ok := o.seen[n]; ok {
			continue
		}
		if o.seen == nil {
			o.seen = make(map[ModuleName]struct{})
		}
		o.seen[n] = struct{}{}
		o.items = append(o.items, n)
		added++
	}
	return added
}

func (o OrderedModules) Has(name ModuleName) bool {
	_, ok := o.seen[name]
	return ok
}

func (o OrderedModules) Len() int { return len(o.items) }

// Items returns a copy of the sequence.
func (o OrderedModules) Items() []ModuleName {
	return append([]ModuleName(nil), o.items...)
}

func (o OrderedModules) MarshalJSON() ([]byte, error) {
	if o.items == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(o.items)
}

func (o *OrderedModules) UnmarshalJSON(data []byte) error {
	var names []ModuleName
	if err := json.Unmarshal(data, &names); err != nil {
		return err
	}
	*o = NewOrderedModules(names...)
	return nil
}
