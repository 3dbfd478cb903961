package domain

import (
	"encoding/json"
	"path"
	"path/filepath"
	"sort"
)

// DataFile is a (source, destination) pair for --add-data or --add-binary.
// Dest is the directory inside the bundle.
type DataFile struct {
	Source string `json:"source"`
	Dest   string `json:"dest"`
}

// Target is the identity key used to deduplicate entries: the destination
// directory joined with the source's base name. It is computed without
// touching the filesystem, so for a directory source it does not match the
// bundle layout (PyInstaller copies a directory's contents into Dest, while
// Target reports Dest/base).
func (f DataFile) Target() string {
	return path.Join(filepath.ToSlash(f.Dest), path.Base(filepath.ToSlash(f.Source)))
}

// DataFiles is an ordered sequence of DataFile, unique by bundle target.
// On a collision the first occurrence wins.
type DataFiles struct {
	items   []DataFile
	targets map[string]struct{}
}

// Add appends files whose target is not yet taken and returns how many were kept.
func (d *DataFiles) Add(files ...DataFile) int {
	kept := 0
	for _, f := range files {
		target := f.Target()
		if _, ok := d.targets[target]; ok {
			continue
		}
		if d.targets == nil {
			d.targets = make(map[string]struct{})
		}
		d.targets[target] = struct{}{}
		d.items = append(d.items, f)
		kept++
	}
	return kept
}

func (d DataFiles) Len() int { return len(d.items) }

func (d DataFiles) Items() []DataFile {
	return append([]DataFile(nil), d.items...)
}

func (d DataFiles) MarshalJSON() ([]byte, error) {
	if d.items == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(d.items)
}

func (d *DataFiles) UnmarshalJSON(data []byte) error {
	var files []DataFile
	if err := json.Unmarshal(data, &files); err != nil {
		return err
	}
	*d = DataFiles{}
	d.Add(files...)
	return nil
}

// ConflictPair is an unordered pair of mutually exclusive modules, stored with A < B.
type ConflictPair struct {
	A ModuleName
	B ModuleName
}

func NewConflictPair(a, b ModuleName) ConflictPair {
	if b < a {
		a, b = b, a
	}
	return ConflictPair{A: a, B: b}
}

func (p ConflictPair) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]ModuleName{p.A, p.B})
}

func (p *ConflictPair) UnmarshalJSON(data []byte) error {
	var pair [2]ModuleName
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	*p = NewConflictPair(pair[0], pair[1])
	return nil
}

// ConflictSet is an unordered set of conflict pairs.
type ConflictSet map[ConflictPair]struct{}

func NewConflictSet(pairs ...ConflictPair) ConflictSet {
	s := make(ConflictSet, len(pairs))
	for _, p := range pairs {
		s.Add(p)
	}
	return s
}

func (s ConflictSet) Add(p ConflictPair) {
	s[NewConflictPair(p.A, p.B)] = struct{}{}
}

func (s ConflictSet) Has(a, b ModuleName) bool {
	_, ok := s[NewConflictPair(a, b)]
	return ok
}

func (s ConflictSet) Sorted() []ConflictPair {
	out := make([]ConflictPair, 0, len(s))
	for p := range s {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].A != out[j].A {
			return out[i].A < out[j].A
		}
		return out[i].B < out[j].B
	})
	return out
}

func (s ConflictSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Sorted())
}

func (s *ConflictSet) UnmarshalJSON(data []byte) error {
	var pairs []ConflictPair
	if err := json.Unmarshal(data, &pairs); err != nil {
		return err
	}
	*s = NewConflictSet(pairs...)
	return nil
}

// DiagnosticKind classifies an advisory note attached to a result.
type DiagnosticKind string

const (
	DiagParseError             DiagnosticKind = "parse_error"
	DiagInterpreterUnreachable DiagnosticKind = "interpreter_unreachable"
	DiagMissingModule          DiagnosticKind = "missing_module"
	DiagConflict               DiagnosticKind = "conflict"
	DiagRecommendation         DiagnosticKind = "recommendation"
)

type Diagnostic struct {
	Kind    DiagnosticKind `json:"kind"`
	Message string         `json:"message"`
}

// DetectionResult is produced once per script analysis and is read-only
// once returned. ProbedInterpreter names the interpreter MissingModules was
// checked against and is empty when no availability check ran.
type DetectionResult struct {
	ScriptPath           string         `json:"script_path"`
	ContentHash          string         `json:"content_hash"`
	DetectedModules      ModuleSet      `json:"detected_modules"`
	HiddenImports        OrderedModules `json:"hidden_imports"`
	CollectAll           ModuleSet      `json:"collect_all"`
	DataFiles            DataFiles      `json:"data_files"`
	Binaries             DataFiles      `json:"binaries"`
	MissingModules       ModuleSet      `json:"missing_modules"`
	ProbedInterpreter    string         `json:"probed_interpreter,omitempty"`
	ConflictedModules    ConflictSet    `json:"conflicted_modules"`
	MatchedTemplates     []string       `json:"matched_templates,omitempty"`
	Notes                []Diagnostic   `json:"notes,omitempty"`
	CacheHit             bool           `json:"cache_hit"`
	DetectionTimeSeconds float64        `json:"detection_time_seconds"`
}

// NewDetectionResult returns a result with every set initialized.
func NewDetectionResult(scriptPath string) *DetectionResult {
	return &DetectionResult{
		ScriptPath:        scriptPath,
		DetectedModules:   NewModuleSet(),
		CollectAll:        NewModuleSet(),
		MissingModules:    NewModuleSet(),
		ConflictedModules: NewConflictSet(),
	}
}

// DirectiveCount is the number of individual directives the result expands to.
func (r *DetectionResult) DirectiveCount() int {
	return r.HiddenImports.Len() + len(r.CollectAll) + r.DataFiles.Len() + r.Binaries.Len()
}

// HasNote reports whether a diagnostic of the given kind is attached.
func (r *DetectionResult) HasNote(kind DiagnosticKind) bool {
	for _, n := range r.Notes {
		if n.Kind == kind {
			return true
		}
	}
	return false
}
