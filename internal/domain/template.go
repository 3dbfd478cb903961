package domain

// FrameworkTemplate describes the extra directives a package needs beyond
// bare import visibility. Templates are loaded once and never mutated.
type FrameworkTemplate struct {
	Name               string       `yaml:"name"                 json:"name"`
	Description        string       `yaml:"description"          json:"description,omitempty"`
	IndicatorModules   []ModuleName `yaml:"indicators"           json:"indicator_modules"`
	HiddenImports      []ModuleName `yaml:"hidden_imports"       json:"hidden_imports,omitempty"`
	CollectAllPackages []ModuleName `yaml:"collect_all"          json:"collect_all_packages,omitempty"`
	DataFileGlobs      []string     `yaml:"data_files"           json:"data_file_globs,omitempty"`
	KnownBinaryNames   []string     `yaml:"binaries"             json:"known_binary_names,omitempty"`
	Recommendations    []string     `yaml:"recommendations"      json:"recommendations,omitempty"`
}

// Indicates reports whether a detected module triggers this template: it
// equals an indicator or lives beneath one.
func (t *FrameworkTemplate) Indicates(m ModuleName) bool {
	for _, ind := range t.IndicatorModules {
		if m.Within(ind) {
			return true
		}
	}
	return false
}
