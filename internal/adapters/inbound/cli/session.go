package cli

import (
	"fmt"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/pyfreeze/pyfreeze/internal/adapters/outbound/cache"
	"github.com/pyfreeze/pyfreeze/internal/adapters/outbound/config"
	"github.com/pyfreeze/pyfreeze/internal/adapters/outbound/dynscan"
	"github.com/pyfreeze/pyfreeze/internal/adapters/outbound/parser"
	"github.com/pyfreeze/pyfreeze/internal/adapters/outbound/probe"
	"github.com/pyfreeze/pyfreeze/internal/adapters/outbound/pyproject"
	"github.com/pyfreeze/pyfreeze/internal/adapters/outbound/scanner"
	"github.com/pyfreeze/pyfreeze/internal/application"
	"github.com/pyfreeze/pyfreeze/internal/domain"
	"github.com/pyfreeze/pyfreeze/internal/domain/knowledge"
	"github.com/pyfreeze/pyfreeze/internal/logging"
)

// session holds everything one command invocation shares: configuration,
// logger, the result cache and the detection pipeline.
type session struct {
	projectDir string
	cfg        domain.ProjectConfig
	logger     *log.Logger
	store      *cache.Store
	kb         *knowledge.Base
	detect     *application.DetectService
}

// openSession loads configuration from projectDir and wires the adapters.
func openSession(cmd *cobra.Command, projectDir string) (*session, error) {
	absDir, err := filepath.Abs(projectDir)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}

	cfg, err := config.New().Load(absDir)
	if err != nil {
		return nil, err
	}

	level := cfg.LogLevel
	if f := cmd.Flag("log-level"); f != nil && f.Changed {
		level = f.Value.String()
	}
	logger := logging.New(cmd.ErrOrStderr(), level)

	kb := knowledge.Default()
	if cfg.TemplatesFile != "" {
		extra, err := knowledge.LoadTemplatesFile(cfg.TemplatesFile)
		if err != nil {
			return nil, err
		}
		if kb, err = kb.Merge(extra); err != nil {
			return nil, fmt.Errorf("merging %s: %w", cfg.TemplatesFile, err)
		}
	}

	s := &session{projectDir: absDir, cfg: cfg, logger: logger, kb: kb}
	if !cfg.Cache.Disabled {
		s.store, err = cache.Open(cfg.Cache.Dir, cache.Options{MaxAge: cfg.Cache.MaxAge, Logger: logger})
		if err != nil {
			return nil, err
		}
	}

	s.detect = application.NewDetectService(
		parser.New(),
		dynscan.New(logger),
		scanner.New(),
		probe.New(cfg.Workers, logger),
		pyproject.New(),
		s.resultCache(),
		kb,
		cfg,
		logger,
	)
	return s, nil
}

// openScriptSession loads the configuration that sits next to scriptPath.
func openScriptSession(cmd *cobra.Command, scriptPath string) (*session, error) {
	abs, err := filepath.Abs(scriptPath)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}
	return openSession(cmd, filepath.Dir(abs))
}

// resultCache returns the store as a port, or a nil interface when caching
// is disabled.
func (s *session) resultCache() domain.ResultCache {
	if s.store == nil {
		return nil
	}
	return s.store
}

func (s *session) Close() {
	if s.store != nil {
		s.store.Close()
	}
}
