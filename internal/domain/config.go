package domain

import (
	"fmt"
	"strings"
	"time"
)

const (
	DefaultTimeout       = 30 * time.Second
	DefaultWorkers       = 4
	MaxWorkers           = 64
	DefaultCacheMaxAge   = 7 * 24 * time.Hour
	DefaultPruneSchedule = "@hourly"
)

// ValidLogLevels enumerates the levels accepted for log_level.
var ValidLogLevels = []string{"debug", "info", "warn", "error", "fatal"}

// ValidPackagerLogLevels enumerates PyInstaller's --log-level values.
var ValidPackagerLogLevels = []string{"TRACE", "DEBUG", "INFO", "WARN", "DEPRECATION", "ERROR", "FATAL"}

// ProjectConfig holds tool configuration loaded from .pyfreeze.yaml and the environment.
type ProjectConfig struct {
	Interpreter        string        `mapstructure:"interpreter"          yaml:"interpreter"          json:"interpreter,omitempty"`
	Timeout            time.Duration `mapstructure:"timeout"              yaml:"timeout"              json:"timeout"`
	Workers            int           `mapstructure:"workers"              yaml:"workers"              json:"workers"`
	LogLevel           string        `mapstructure:"log_level"            yaml:"log_level"            json:"log_level,omitempty"`
	Cache              CacheConfig   `mapstructure:"cache"                yaml:"cache"                json:"cache"`
	ExtraHiddenImports []string      `mapstructure:"extra_hidden_imports" yaml:"extra_hidden_imports" json:"extra_hidden_imports,omitempty"`
	ExtraCollectAll    []string      `mapstructure:"extra_collect_all"    yaml:"extra_collect_all"    json:"extra_collect_all,omitempty"`
	ExcludeModules     []string      `mapstructure:"exclude_modules"      yaml:"exclude_modules"      json:"exclude_modules,omitempty"`
	TemplatesFile      string        `mapstructure:"templates_file"       yaml:"templates_file"       json:"templates_file,omitempty"`
	Build              BuildConfig   `mapstructure:"build"                yaml:"build"                json:"build"`
}

type CacheConfig struct {
	Dir           string        `mapstructure:"dir"            yaml:"dir"            json:"dir,omitempty"`
	MaxAge        time.Duration `mapstructure:"max_age"        yaml:"max_age"        json:"max_age"`
	Disabled      bool          `mapstructure:"disabled"       yaml:"disabled"       json:"disabled"`
	PruneSchedule string        `mapstructure:"prune_schedule" yaml:"prune_schedule" json:"prune_schedule,omitempty"`
}

// BuildConfig mirrors the PyInstaller options the build command controls.
type BuildConfig struct {
	OneFile   bool     `mapstructure:"onefile"    yaml:"onefile"    json:"onefile"`
	Windowed  bool     `mapstructure:"windowed"   yaml:"windowed"   json:"windowed"`
	Clean     bool     `mapstructure:"clean"      yaml:"clean"      json:"clean"`
	DistPath  string   `mapstructure:"dist_path"  yaml:"dist_path"  json:"dist_path,omitempty"`
	Name      string   `mapstructure:"name"       yaml:"name"       json:"name,omitempty"`
	Icon      string   `mapstructure:"icon"       yaml:"icon"       json:"icon,omitempty"`
	LogLevel  string   `mapstructure:"log_level"  yaml:"log_level"  json:"log_level,omitempty"`
	ExtraArgs []string `mapstructure:"extra_args" yaml:"extra_args" json:"extra_args,omitempty"`
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() ProjectConfig {
	return ProjectConfig{
		Timeout:  DefaultTimeout,
		Workers:  DefaultWorkers,
		LogLevel: "warn",
		Cache: CacheConfig{
			MaxAge:        DefaultCacheMaxAge,
			PruneSchedule: DefaultPruneSchedule,
		},
		Build: BuildConfig{
			OneFile:  true,
			DistPath: "dist",
			LogLevel: "INFO",
		},
	}
}

// Validate checks the config for invalid values and returns a descriptive error.
func (c ProjectConfig) Validate() error {
	// 1. timeout must be positive
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be > 0 (got %s)", c.Timeout)
	}

	// 2. workers bounded
	if c.Workers < 1 || c.Workers > MaxWorkers {
		return fmt.Errorf("workers must be between 1 and %d (got %d)", MaxWorkers, c.Workers)
	}

	// 3. log level must be known or empty
	if c.LogLevel != "" && !contains(ValidLogLevels, strings.ToLower(c.LogLevel)) {
		return fmt.Errorf("unknown log_level %q (valid: %s)", c.LogLevel, strings.Join(ValidLogLevels, ", "))
	}

	// 4. cache max age cannot be negative
	if c.Cache.MaxAge < 0 {
		return fmt.Errorf("cache.max_age must be >= 0 (got %s)", c.Cache.MaxAge)
	}

	// 5. module lists must hold module-shaped names
	lists := map[string][]string{
		"extra_hidden_imports": c.ExtraHiddenImports,
		"extra_collect_all":    c.ExtraCollectAll,
		"exclude_modules":      c.ExcludeModules,
	}
	for key, names := range lists {
		for _, n := range names {
			if !ModuleName(n).Valid() {
				return fmt.Errorf("invalid module name %q in %s", n, key)
			}
		}
	}

	// 6. packager log level
	if c.Build.LogLevel != "" && !contains(ValidPackagerLogLevels, strings.ToUpper(c.Build.LogLevel)) {
		return fmt.Errorf("unknown build.log_level %q (valid: %s)", c.Build.LogLevel, strings.Join(ValidPackagerLogLevels, ", "))
	}

	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
