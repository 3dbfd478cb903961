package domain

import (
	"context"
	"time"
)

// StaticExtractor parses a script and returns the modules its import
// statements name, in source order. A *ParseError means nothing usable was
// extracted.
type StaticExtractor interface {
	Extract(ctx context.Context, path string, src []byte) (OrderedModules, error)
}

// DynamicScanner finds string-based imports in raw source text. It never fails.
type DynamicScanner interface {
	Scan(src []byte) OrderedModules
}

// ScriptDirScanner inspects the directory holding a script.
type ScriptDirScanner interface {
	Scan(scriptPath string) (*ScriptDirScan, error)
	ResolveData(scriptDir string, globs []string) []DataFile
}

// ScriptDirScan holds what was found next to a script.
type ScriptDirScan struct {
	Dir          string     `json:"dir"`
	LocalModules ModuleSet  `json:"local_modules"`
	ConfigFiles  []DataFile `json:"config_files"`
}

// ModuleProber checks modules against a target interpreter without importing them.
type ModuleProber interface {
	Probe(ctx context.Context, req ProbeRequest) (*ProbeReport, error)
}

type ProbeRequest struct {
	Interpreter string
	Modules     []ModuleName
	BinaryNames []string
}

type ProbeReport struct {
	Missing  ModuleSet
	Binaries []DataFile
	Prefixes []string
}

// ResultCache stores detection results keyed by script path and content.
type ResultCache interface {
	Lookup(scriptPath string) (*DetectionResult, bool)
	Store(scriptPath string, result *DetectionResult) error
	Clear() error
}

// ExtrasReader reads user-declared directives kept alongside the script.
// Returns (nil, nil) when there are none.
type ExtrasReader interface {
	Read(scriptPath string) (*ProjectExtras, error)
}

type ProjectExtras struct {
	Source         string       `json:"source"`
	HiddenImports  []ModuleName `json:"hidden_imports,omitempty"`
	CollectAll     []ModuleName `json:"collect_all,omitempty"`
	ExcludeModules []ModuleName `json:"exclude_modules,omitempty"`
}

// ConfigLoader loads tool configuration for a project directory.
type ConfigLoader interface {
	Load(projectPath string) (ProjectConfig, error)
}

// BuildHistory records packaging runs.
type BuildHistory interface {
	Save(run BuildRun) error
	List(limit int) ([]BuildRun, error)
}

// GitInfo resolves version-control metadata for a path.
type GitInfo interface {
	CommitHash(path string) (string, error)
}

// Packager runs the external packaging tool.
type Packager interface {
	Run(ctx context.Context, interpreter string, args []string, onLine func(string)) (int, error)
	Version(ctx context.Context, interpreter string) (string, error)
}

// BuildRun is one recorded packaging attempt.
type BuildRun struct {
	ID         string        `json:"id"`
	Script     string        `json:"script"`
	CommitHash string        `json:"commit_hash,omitempty"`
	StartedAt  time.Time     `json:"started_at"`
	Duration   time.Duration `json:"duration"`
	ExitCode   int           `json:"exit_code"`
	Directives int           `json:"directives"`
	Cancelled  bool          `json:"cancelled"`
	CacheHit   bool          `json:"cache_hit"`
	Args       []string      `json:"args"`
}

func (r BuildRun) Succeeded() bool { return r.ExitCode == 0 && !r.Cancelled }

// BuildFinding explains one recognized problem in packager output.
type BuildFinding struct {
	Rule      string   `json:"rule"`
	Category  string   `json:"category"`
	Severity  string   `json:"severity"`
	Subject   string   `json:"subject,omitempty"`
	Cause     string   `json:"cause"`
	Line      string   `json:"line,omitempty"`
	Solutions []string `json:"solutions"`
}
