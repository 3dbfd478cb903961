package application

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/pyfreeze/pyfreeze/internal/domain"
	"github.com/pyfreeze/pyfreeze/internal/domain/knowledge"
	"github.com/pyfreeze/pyfreeze/internal/domain/synth"
)

// DetectOptions override configuration for a single run.
type DetectOptions struct {
	// Interpreter replaces the configured interpreter when set.
	Interpreter string
	// Timeout replaces the configured timeout when positive.
	Timeout time.Duration
	// NoCache skips both cache lookup and store.
	NoCache bool
}

// DetectService orchestrates the detection pipeline:
// cache → (static ∥ dynamic ∥ directory ∥ pyproject) → templates → probe → synthesize → conflicts → cache.
type DetectService struct {
	parser  domain.StaticExtractor
	dynamic domain.DynamicScanner
	scanner domain.ScriptDirScanner
	prober  domain.ModuleProber
	extras  domain.ExtrasReader
	cache   domain.ResultCache
	kb      *knowledge.Base
	cfg     domain.ProjectConfig
	logger  *log.Logger
}

// NewDetectService wires the pipeline. cache may be nil to run uncached.
func NewDetectService(
	parser domain.StaticExtractor,
	dynamic domain.DynamicScanner,
	scanner domain.ScriptDirScanner,
	prober domain.ModuleProber,
	extras domain.ExtrasReader,
	cache domain.ResultCache,
	kb *knowledge.Base,
	cfg domain.ProjectConfig,
	logger *log.Logger,
) *DetectService {
	if cfg.Workers < 1 {
		cfg.Workers = domain.DefaultWorkers
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = domain.DefaultTimeout
	}
	return &DetectService{
		parser:  parser,
		dynamic: dynamic,
		scanner: scanner,
		prober:  prober,
		extras:  extras,
		cache:   cache,
		kb:      kb,
		cfg:     cfg,
		logger:  logger,
	}
}

// Config returns the configuration the service was built with.
func (s *DetectService) Config() domain.ProjectConfig { return s.cfg }

// KnowledgeBase returns the template table in use.
func (s *DetectService) KnowledgeBase() *knowledge.Base { return s.kb }

// findings is what the independent first-stage tasks produce. Each task
// owns one field.
type findings struct {
	static   domain.OrderedModules
	parseErr *domain.ParseError
	dynamic  domain.OrderedModules
	dir      *domain.ScriptDirScan
	extras   *domain.ProjectExtras
}

// Detect analyzes one script. The only error after input validation is a
// *domain.DetectionTimeoutError (or the caller's own cancellation); every
// other failure degrades into a note on the result.
func (s *DetectService) Detect(ctx context.Context, scriptPath string, opts DetectOptions) (*domain.DetectionResult, error) {
	start := time.Now()

	// 0. Validate input
	abs, err := filepath.Abs(scriptPath)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", scriptPath, err)
	}
	info, err := os.Stat(abs)
	if err != nil || !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%w: %s", domain.ErrScriptNotFound, scriptPath)
	}

	timeout := s.cfg.Timeout
	if opts.Timeout > 0 {
		timeout = opts.Timeout
	}
	interpreter := s.cfg.Interpreter
	if opts.Interpreter != "" {
		interpreter = opts.Interpreter
	}
	useCache := s.cache != nil && !opts.NoCache && !s.cfg.Cache.Disabled

	// 1. Cache lookup
	if useCache {
		if cached, ok := s.cache.Lookup(abs); ok {
			if interpreter == "" || cached.ProbedInterpreter == interpreter {
				s.logger.Debug("cache hit", "script", abs)
				return cached, nil
			}
			s.logger.Debug("cached result was not checked against interpreter", "script", abs, "interpreter", interpreter)
		}
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	timedOut := func() error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &domain.DetectionTimeoutError{Script: abs, Timeout: timeout}
	}

	src, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", abs, err)
	}
	result := domain.NewDetectionResult(abs)
	result.ContentHash = domain.HashContent(src)

	// 2. Independent extraction tasks, joined by field
	f, err := s.extract(runCtx, abs, src)
	if err != nil {
		if runCtx.Err() != nil {
			return nil, timedOut()
		}
		return nil, err
	}
	if f.parseErr != nil {
		s.logger.Warn("static extraction failed, using dynamic scan only", "script", abs, "error", f.parseErr)
		result.Notes = append(result.Notes, domain.Diagnostic{Kind: domain.DiagParseError, Message: f.parseErr.Error()})
	}

	found := domain.NewModuleSet(f.static.Items()...)
	found.Add(f.dynamic.Items()...)

	// 3. Knowledge-base lookups, one per template, joined by table position
	templates, err := s.matchTemplates(runCtx, found)
	if err != nil {
		return nil, timedOut()
	}

	local := domain.NewModuleSet()
	var configFiles []domain.DataFile
	scriptDir := filepath.Dir(abs)
	if f.dir != nil {
		local = f.dir.LocalModules
		configFiles = f.dir.ConfigFiles
	}
	implicit := func(m domain.ModuleName) bool {
		return s.kb.IsStdlib(m) || local.Has(m.TopLevel())
	}

	var templateData []domain.DataFile
	var binaryNames []string
	for _, t := range templates {
		templateData = append(templateData, s.scanner.ResolveData(scriptDir, t.DataFileGlobs)...)
		binaryNames = append(binaryNames, t.KnownBinaryNames...)
	}

	exclude := toModules(s.cfg.ExcludeModules)
	extraHidden := toModules(s.cfg.ExtraHiddenImports)
	extraCollect := toModules(s.cfg.ExtraCollectAll)
	if f.extras != nil {
		extraHidden = append(extraHidden, f.extras.HiddenImports...)
		extraCollect = append(extraCollect, f.extras.CollectAll...)
		exclude = append(exclude, f.extras.ExcludeModules...)
	}

	in := synth.Input{
		Static:             f.static,
		Dynamic:            f.dynamic,
		Templates:          templates,
		ExtraHiddenImports: extraHidden,
		ExtraCollectAll:    extraCollect,
		Exclude:            exclude,
		ConfigFiles:        configFiles,
		TemplateData:       templateData,
		Implicit:           implicit,
	}

	// 4. Availability probe and binary lookup
	if interpreter != "" {
		report, err := s.prober.Probe(runCtx, domain.ProbeRequest{
			Interpreter: interpreter,
			Modules:     synth.Requirements(in),
			BinaryNames: binaryNames,
		})
		var unreachable *domain.InterpreterUnreachableError
		switch {
		case err == nil:
			result.MissingModules = report.Missing
			result.ProbedInterpreter = interpreter
			in.Binaries = report.Binaries
		case runCtx.Err() != nil:
			return nil, timedOut()
		case errors.As(err, &unreachable):
			s.logger.Warn("availability check skipped", "interpreter", interpreter, "error", err)
			result.Notes = append(result.Notes, domain.Diagnostic{Kind: domain.DiagInterpreterUnreachable, Message: err.Error()})
		default:
			s.logger.Warn("availability check failed", "interpreter", interpreter, "error", err)
			result.Notes = append(result.Notes, domain.Diagnostic{Kind: domain.DiagInterpreterUnreachable, Message: err.Error()})
		}
	}

	// 5. Synthesize
	directives := synth.Synthesize(in)

	if len(result.MissingModules) > 0 {
		names := make([]string, 0, len(result.MissingModules))
		for _, m := range result.MissingModules.Sorted() {
			names = append(names, string(m))
		}
		result.Notes = append(result.Notes, domain.Diagnostic{
			Kind:    domain.DiagMissingModule,
			Message: fmt.Sprintf("not installed for %s: %s", interpreter, strings.Join(names, ", ")),
		})
	}

	// 6. Conflicts over everything the script pulls in
	detected := domain.NewModuleSet()
	detected.Union(found)
	for _, t := range templates {
		detected.Add(t.HiddenImports...)
		detected.Add(t.CollectAllPackages...)
	}
	detected.Add(extraHidden...)
	result.DetectedModules = detected
	result.ConflictedModules = s.kb.Conflicts(detected)
	for _, p := range result.ConflictedModules.Sorted() {
		result.Notes = append(result.Notes, domain.Diagnostic{
			Kind:    domain.DiagConflict,
			Message: fmt.Sprintf("%s and %s should not be bundled together", p.A, p.B),
		})
	}

	for _, t := range templates {
		result.MatchedTemplates = append(result.MatchedTemplates, t.Name)
		for _, rec := range t.Recommendations {
			result.Notes = append(result.Notes, domain.Diagnostic{Kind: domain.DiagRecommendation, Message: rec})
		}
	}

	// A deadline that expired during the last steps still discards the result.
	if runCtx.Err() != nil {
		return nil, timedOut()
	}

	directives.Apply(result)
	result.DetectionTimeSeconds = time.Since(start).Seconds()
	s.logger.Info("detection finished",
		"script", abs,
		"directives", result.DirectiveCount(),
		"templates", len(templates),
		"seconds", result.DetectionTimeSeconds,
	)

	// 7. Cache store
	if useCache {
		if err := s.cache.Store(abs, result); err != nil {
			s.logger.Warn("caching result failed", "script", abs, "error", err)
		}
	}
	return result, nil
}

func (s *DetectService) extract(ctx context.Context, abs string, src []byte) (*findings, error) {
	var f findings
	err := s.fanOut(ctx, func(g *errgroup.Group, gctx context.Context) {
		g.Go(func() error {
			mods, err := s.parser.Extract(gctx, abs, src)
			var pe *domain.ParseError
			switch {
			case errors.As(err, &pe):
				f.parseErr = pe
			case err != nil:
				return err
			default:
				f.static = mods
			}
			return nil
		})
		g.Go(func() error {
			f.dynamic = s.dynamic.Scan(src)
			return gctx.Err()
		})
		g.Go(func() error {
			dir, err := s.scanner.Scan(abs)
			if err != nil {
				s.logger.Warn("scanning script directory", "script", abs, "error", err)
				return nil
			}
			f.dir = dir
			return nil
		})
		if s.extras != nil {
			g.Go(func() error {
				extras, err := s.extras.Read(abs)
				if err != nil {
					s.logger.Warn("reading pyproject extras", "script", abs, "error", err)
					return nil
				}
				f.extras = extras
				return nil
			})
		}
	})
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func (s *DetectService) matchTemplates(ctx context.Context, found domain.ModuleSet) ([]domain.FrameworkTemplate, error) {
	slots := make([]*domain.FrameworkTemplate, s.kb.Len())
	err := s.fanOut(ctx, func(g *errgroup.Group, gctx context.Context) {
		for i := range slots {
			g.Go(func() error {
				if t, ok := s.kb.MatchAt(i, found); ok {
					slots[i] = &t
				}
				return gctx.Err()
			})
		}
	})
	if err != nil {
		return nil, err
	}

	var out []domain.FrameworkTemplate
	for _, t := range slots {
		if t != nil {
			out = append(out, *t)
		}
	}
	return out, nil
}

// fanOut runs spawn on a worker-limited group and joins it, returning as
// soon as ctx is done. Tasks that ignore their context keep running in the
// background and whatever they write is never read.
func (s *DetectService) fanOut(ctx context.Context, spawn func(g *errgroup.Group, gctx context.Context)) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Workers)
	done := make(chan error, 1)
	go func() {
		spawn(g, gctx)
		done <- g.Wait()
	}()
	select {
	case err := <-done:
		if err != nil {
			return err
		}
		return ctx.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

func toModules(names []string) []domain.ModuleName {
	out := make([]domain.ModuleName, 0, len(names))
	for _, n := range names {
		out = append(out, domain.ModuleName(n))
	}
	return out
}
