package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/pyfreeze/pyfreeze/internal/adapters/outbound/config"
	"github.com/pyfreeze/pyfreeze/internal/domain"
)

const configHeader = `# pyfreeze configuration
# Every key can be overridden with a PYFREEZE_ environment variable,
# e.g. PYFREEZE_TIMEOUT=1m or PYFREEZE_CACHE_DISABLED=true.
#
# interpreter: path of the Python that will run PyInstaller. When set,
#   detected modules are checked against it and missing ones are reported.
# extra_hidden_imports / extra_collect_all / exclude_modules: added to or
#   removed from every detection result. pyproject.toml may add more under
#   [tool.pyfreeze].

`

// initFile mirrors domain.ProjectConfig with durations written the way a
// person would type them.
type initFile struct {
	Interpreter        string             `yaml:"interpreter"`
	Timeout            string             `yaml:"timeout"`
	Workers            int                `yaml:"workers"`
	LogLevel           string             `yaml:"log_level"`
	ExtraHiddenImports []string           `yaml:"extra_hidden_imports"`
	ExtraCollectAll    []string           `yaml:"extra_collect_all"`
	ExcludeModules     []string           `yaml:"exclude_modules"`
	Cache              initCache          `yaml:"cache"`
	Build              domain.BuildConfig `yaml:"build"`
}

type initCache struct {
	MaxAge        string `yaml:"max_age"`
	Disabled      bool   `yaml:"disabled"`
	PruneSchedule string `yaml:"prune_schedule"`
}

func newInitCmd() *cobra.Command {
	var (
		interpreter string
		force       bool
	)

	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Generate a .pyfreeze.yaml configuration file",
		Long:  "Create a .pyfreeze.yaml with the default settings in the given directory.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "."
			if len(args) > 0 {
				path = args[0]
			}

			absPath, err := filepath.Abs(path)
			if err != nil {
				return fmt.Errorf("resolving path: %w", err)
			}

			dest := filepath.Join(absPath, config.FileName)

			if !force {
				if _, err := os.Stat(dest); err == nil {
					return fmt.Errorf("%s already exists (use --force to overwrite)", config.FileName)
				}
			}

			cfg := domain.DefaultConfig()
			cfg.Interpreter = interpreter
			content, err := generateConfig(cfg)
			if err != nil {
				return err
			}

			if err := os.WriteFile(dest, content, 0644); err != nil {
				return fmt.Errorf("writing config: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Created %s\n", config.FileName)
			return nil
		},
	}

	cmd.Flags().StringVar(&interpreter, "interpreter", "", "Python interpreter to record in the config")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing .pyfreeze.yaml")

	return cmd
}

func generateConfig(cfg domain.ProjectConfig) ([]byte, error) {
	f := initFile{
		Interpreter:        cfg.Interpreter,
		Timeout:            cfg.Timeout.String(),
		Workers:            cfg.Workers,
		LogLevel:           cfg.LogLevel,
		ExtraHiddenImports: nonNil(cfg.ExtraHiddenImports),
		ExtraCollectAll:    nonNil(cfg.ExtraCollectAll),
		ExcludeModules:     nonNil(cfg.ExcludeModules),
		Cache: initCache{
			MaxAge:        cfg.Cache.MaxAge.String(),
			Disabled:      cfg.Cache.Disabled,
			PruneSchedule: cfg.Cache.PruneSchedule,
		},
		Build: cfg.Build,
	}
	f.Build.ExtraArgs = nonNil(f.Build.ExtraArgs)

	body, err := yaml.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("encoding config: %w", err)
	}
	return append([]byte(configHeader), body...), nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
