package application

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/pyfreeze/pyfreeze/internal/domain"
	"github.com/pyfreeze/pyfreeze/internal/domain/command"
	"github.com/pyfreeze/pyfreeze/internal/domain/diagnose"
)

// BuildOptions controls one packaging run.
type BuildOptions struct {
	Detect DetectOptions
	// Command overrides the config-derived PyInstaller switches when non-nil.
	Command *command.Options
	// OnLine receives each line PyInstaller prints.
	OnLine func(string)
}

// BuildReport describes a finished packaging run. Findings explain problems
// recognized in PyInstaller's output.
type BuildReport struct {
	Run      domain.BuildRun
	Result   *domain.DetectionResult
	Findings []domain.BuildFinding
}

// BuildService detects a script's directives and runs PyInstaller with them.
type BuildService struct {
	detect   *DetectService
	packager domain.Packager
	history  domain.BuildHistory
	git      domain.GitInfo
	logger   *log.Logger
}

// NewBuildService wires the build flow. history and git may be nil.
func NewBuildService(
	detect *DetectService,
	packager domain.Packager,
	history domain.BuildHistory,
	git domain.GitInfo,
	logger *log.Logger,
) *BuildService {
	return &BuildService{
		detect:   detect,
		packager: packager,
		history:  history,
		git:      git,
		logger:   logger,
	}
}

// Build runs detection and then PyInstaller. A detection timeout falls back
// to a build without extra directives. Cancelling ctx interrupts PyInstaller;
// the run is still recorded and ctx.Err() is returned.
func (s *BuildService) Build(ctx context.Context, scriptPath string, opts BuildOptions) (*BuildReport, error) {
	cfg := s.detect.Config()

	// 1. Detect
	result, err := s.detect.Detect(ctx, scriptPath, opts.Detect)
	var timeout *domain.DetectionTimeoutError
	switch {
	case errors.As(err, &timeout):
		s.logger.Warn("detection timed out, building without extra directives", "script", scriptPath, "timeout", timeout.Timeout)
		result = domain.NewDetectionResult(timeout.Script)
	case err != nil:
		return nil, err
	}

	// 2. Build the command line
	cmdOpts := command.FromConfig(cfg, result.ScriptPath)
	if opts.Command != nil {
		cmdOpts = *opts.Command
		cmdOpts.Script = result.ScriptPath
	}
	args := command.Build(cmdOpts, result)

	interpreter := opts.Detect.Interpreter
	if interpreter == "" {
		interpreter = cfg.Interpreter
	}
	if interpreter == "" {
		interpreter = DefaultInterpreter(runtime.GOOS)
	}

	run := domain.BuildRun{
		ID:         uuid.NewString(),
		Script:     result.ScriptPath,
		StartedAt:  time.Now().UTC(),
		Directives: result.DirectiveCount(),
		CacheHit:   result.CacheHit,
		Args:       args,
	}
	if s.git != nil {
		if hash, err := s.git.CommitHash(result.ScriptPath); err == nil {
			run.CommitHash = hash
		}
	}

	// 3. Run PyInstaller
	s.logger.Info("starting build", "id", run.ID, "script", run.Script, "directives", run.Directives)
	collector := diagnose.NewCollector()
	onLine := func(line string) {
		collector.Observe(line)
		if opts.OnLine != nil {
			opts.OnLine(line)
		}
	}
	code, runErr := s.packager.Run(ctx, interpreter, args, onLine)
	run.Duration = time.Since(run.StartedAt)
	run.ExitCode = code
	run.Cancelled = ctx.Err() != nil
	findings := collector.Findings(runErr == nil && !run.Cancelled && code != 0)
	for _, f := range findings {
		s.logger.Debug("build finding", "id", run.ID, "rule", f.Rule, "subject", f.Subject)
	}

	// 4. Record
	if s.history != nil {
		if err := s.history.Save(run); err != nil {
			s.logger.Warn("recording build failed", "id", run.ID, "error", err)
		}
	}

	report := &BuildReport{Run: run, Result: result, Findings: findings}
	switch {
	case run.Cancelled:
		return report, ctx.Err()
	case runErr != nil:
		return report, fmt.Errorf("running PyInstaller: %w", runErr)
	case code != 0:
		return report, fmt.Errorf("PyInstaller exited with status %d", code)
	}
	return report, nil
}

// DefaultInterpreter is the interpreter name used when none is configured.
func DefaultInterpreter(goos string) string {
	if goos == "windows" {
		return "python"
	}
	return "python3"
}
