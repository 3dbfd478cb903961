// Package synth merges detection findings into the final directive lists.
package synth

import "github.com/pyfreeze/pyfreeze/internal/domain"

// Input collects everything the merge consumes. Sequences are read in the
// order given; nothing here is mutated.
type Input struct {
	Static  domain.OrderedModules
	Dynamic domain.OrderedModules
	// Templates are the matched knowledge-base templates in table order.
	Templates          []domain.FrameworkTemplate
	ExtraHiddenImports []domain.ModuleName
	ExtraCollectAll    []domain.ModuleName
	Exclude            []domain.ModuleName
	// ConfigFiles come before TemplateData when deduplicating by destination.
	ConfigFiles  []domain.DataFile
	TemplateData []domain.DataFile
	Binaries     []domain.DataFile
	// Implicit reports findings the packager resolves by itself (standard
	// library, modules next to the script). They never become hidden imports.
	Implicit func(domain.ModuleName) bool
}

type Directives struct {
	HiddenImports domain.OrderedModules
	CollectAll    domain.ModuleSet
	DataFiles     domain.DataFiles
	Binaries      domain.DataFiles
}

// Synthesize is a pure merge. Hidden imports keep first-seen order across
// static findings, dynamic findings, template contributions and user extras.
func Synthesize(in Input) Directives {
	out := Directives{CollectAll: domain.NewModuleSet()}

	excluded := func(m domain.ModuleName) bool {
		for _, x := range in.Exclude {
			if m.Within(x) {
				return true
			}
		}
		return false
	}
	addFinding := func(m domain.ModuleName) {
		if excluded(m) || (in.Implicit != nil && in.Implicit(m)) {
			return
		}
		out.HiddenImports.Add(m)
	}

	for _, m := range in.Static.Items() {
		addFinding(m)
	}
	for _, m := range in.Dynamic.Items() {
		addFinding(m)
	}
	for _, t := range in.Templates {
		for _, m := range t.HiddenImports {
			if !excluded(m) {
				out.HiddenImports.Add(m)
			}
		}
		for _, p := range t.CollectAllPackages {
			if !excluded(p) {
				out.CollectAll.Add(p)
			}
		}
	}
	for _, m := range in.ExtraHiddenImports {
		if !excluded(m) {
			out.HiddenImports.Add(m)
		}
	}
	for _, p := range in.ExtraCollectAll {
		if !excluded(p) {
			out.CollectAll.Add(p)
		}
	}

	out.DataFiles.Add(in.ConfigFiles...)
	out.DataFiles.Add(in.TemplateData...)
	out.Binaries.Add(in.Binaries...)

	return out
}

// Requirements lists the top-level packages the target interpreter must be
// able to import for the synthesized directives to build, in directive order.
// Implicit findings are left out.
func Requirements(in Input) []domain.ModuleName {
	d := Synthesize(in)
	var out domain.OrderedModules
	for _, m := range d.HiddenImports.Items() {
		if in.Implicit == nil || !in.Implicit(m) {
			out.Add(m.TopLevel())
		}
	}
	for _, p := range d.CollectAll.Sorted() {
		if in.Implicit == nil || !in.Implicit(p) {
			out.Add(p.TopLevel())
		}
	}
	return out.Items()
}

// Apply copies the directives onto a result.
func (d Directives) Apply(r *domain.DetectionResult) {
	r.HiddenImports = d.HiddenImports
	r.CollectAll = d.CollectAll
	r.DataFiles = d.DataFiles
	r.Binaries = d.Binaries
}
