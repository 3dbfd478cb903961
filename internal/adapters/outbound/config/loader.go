// Package config loads .pyfreeze.yaml with PYFREEZE_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"

	"github.com/pyfreeze/pyfreeze/internal/domain"
)

const (
	// FileName is the project config file looked up in the script's directory.
	FileName  = ".pyfreeze.yaml"
	envPrefix = "PYFREEZE"
)

// Loader implements domain.ConfigLoader on top of viper.
type Loader struct{}

func New() *Loader { return &Loader{} }

// Load reads FileName from projectPath, applies environment overrides and
// validates the result. A missing file yields the defaults.
func (l *Loader) Load(projectPath string) (domain.ProjectConfig, error) {
	v := viper.New()
	setDefaults(v, domain.DefaultConfig())

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	path := filepath.Join(projectPath, FileName)
	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return domain.ProjectConfig{}, fmt.Errorf("parsing %s: %w", FileName, err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return domain.ProjectConfig{}, err
	}

	var cfg domain.ProjectConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return domain.ProjectConfig{}, fmt.Errorf("parsing %s: %w", FileName, err)
	}

	if err := cfg.Validate(); err != nil {
		return domain.ProjectConfig{}, fmt.Errorf("invalid %s: %w", FileName, err)
	}
	if cfg.Cache.PruneSchedule != "" {
		if _, err := cron.ParseStandard(cfg.Cache.PruneSchedule); err != nil {
			return domain.ProjectConfig{}, fmt.Errorf("invalid %s: cache.prune_schedule: %w", FileName, err)
		}
	}

	if cfg.Cache.Dir == "" {
		cfg.Cache.Dir = DefaultCacheDir()
	} else if !filepath.IsAbs(cfg.Cache.Dir) {
		cfg.Cache.Dir = filepath.Join(projectPath, cfg.Cache.Dir)
	}
	if cfg.TemplatesFile != "" && !filepath.IsAbs(cfg.TemplatesFile) {
		cfg.TemplatesFile = filepath.Join(projectPath, cfg.TemplatesFile)
	}
	return cfg, nil
}

// DataDir is the per-user directory holding the result cache and build
// history. It is empty when the platform has no user cache directory.
func DataDir() string {
	base, err := os.UserCacheDir()
	if err != nil {
		return ""
	}
	return filepath.Join(base, "pyfreeze")
}

// DefaultCacheDir is where detection results persist when cache.dir is unset.
func DefaultCacheDir() string {
	dir := DataDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "detect")
}

// setDefaults registers every key so AutomaticEnv can override it.
func setDefaults(v *viper.Viper, d domain.ProjectConfig) {
	v.SetDefault("interpreter", d.Interpreter)
	v.SetDefault("timeout", d.Timeout)
	v.SetDefault("workers", d.Workers)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("extra_hidden_imports", d.ExtraHiddenImports)
	v.SetDefault("extra_collect_all", d.ExtraCollectAll)
	v.SetDefault("exclude_modules", d.ExcludeModules)
	v.SetDefault("templates_file", d.TemplatesFile)

	v.SetDefault("cache.dir", d.Cache.Dir)
	v.SetDefault("cache.max_age", d.Cache.MaxAge)
	v.SetDefault("cache.disabled", d.Cache.Disabled)
	v.SetDefault("cache.prune_schedule", d.Cache.PruneSchedule)

	v.SetDefault("build.onefile", d.Build.OneFile)
	v.SetDefault("build.windowed", d.Build.Windowed)
	v.SetDefault("build.clean", d.Build.Clean)
	v.SetDefault("build.dist_path", d.Build.DistPath)
	v.SetDefault("build.name", d.Build.Name)
	v.SetDefault("build.icon", d.Build.Icon)
	v.SetDefault("build.log_level", d.Build.LogLevel)
	v.SetDefault("build.extra_args", d.Build.ExtraArgs)
}
