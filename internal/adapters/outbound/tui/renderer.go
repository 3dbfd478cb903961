package tui

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/pyfreeze/pyfreeze/internal/domain"
	"github.com/pyfreeze/pyfreeze/internal/domain/diagnose"
)

// ── warm palette ──
var (
	accent    = lipgloss.Color("#D97706") // amber
	fg        = lipgloss.Color("#E8E6E3") // warm light gray
	dim       = lipgloss.Color("#6B7280") // muted gray
	faint     = lipgloss.Color("#3F3F46") // very dim
	success   = lipgloss.Color("#22C55E") // green
	danger    = lipgloss.Color("#EF4444") // red
	warning   = lipgloss.Color("#F59E0B") // amber-yellow
	info      = lipgloss.Color("#8B949E") // soft blue-gray
	skipColor = lipgloss.Color("#4B5563") // dark gray
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(accent).
			Align(lipgloss.Center)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(accent).
			Padding(1, 4).
			Align(lipgloss.Center).
			Width(68)

	dimStyle           = lipgloss.NewStyle().Foreground(dim)
	faintStyle         = lipgloss.NewStyle().Foreground(faint)
	passStyle          = lipgloss.NewStyle().Foreground(success)
	failStyle          = lipgloss.NewStyle().Foreground(danger)
	warnStyle          = lipgloss.NewStyle().Foreground(warning)
	skipStyle          = lipgloss.NewStyle().Foreground(skipColor)
	errorTagStyle      = lipgloss.NewStyle().Foreground(danger).Bold(true)
	warnTagStyle       = lipgloss.NewStyle().Foreground(warning).Bold(true)
	infoTagStyle       = lipgloss.NewStyle().Foreground(info)
	fileStyle          = lipgloss.NewStyle().Foreground(dim)
	titleStyle         = lipgloss.NewStyle().Bold(true).Foreground(fg)
	sectionHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(accent)
	hintStyle          = lipgloss.NewStyle().Foreground(dim).Italic(true)
	separatorLine      = faintStyle.Render(strings.Repeat("─", 64))
)

// RenderDetection formats a detection result for the terminal.
func RenderDetection(r *domain.DetectionResult) string {
	var b strings.Builder

	// ── Header ──
	title := headerStyle.Render("pyfreeze")
	script := titleStyle.Render(filepath.Base(r.ScriptPath))
	count := lipgloss.NewStyle().Bold(true).Foreground(accent).
		Render(fmt.Sprintf("%d directives", r.DirectiveCount()))
	var origin string
	if r.CacheHit {
		origin = passStyle.Render("cached")
	} else {
		origin = dimStyle.Render(fmt.Sprintf("%.2fs", r.DetectionTimeSeconds))
	}
	b.WriteString(boxStyle.Render(title + "\n" + script + "\n\n" + count + "  " + origin))
	b.WriteString("\n")

	if len(r.MatchedTemplates) > 0 {
		renderSection(&b, "Frameworks", len(r.MatchedTemplates))
		b.WriteString("    " + strings.Join(r.MatchedTemplates, dimStyle.Render(", ")) + "\n")
	}

	renderModules(&b, "Hidden Imports", r.HiddenImports.Items(), passStyle)
	renderModules(&b, "Collect All", r.CollectAll.Sorted(), passStyle)
	renderFiles(&b, "Data Files", r.DataFiles.Items())
	renderFiles(&b, "Binaries", r.Binaries.Items())
	renderModules(&b, "Missing Modules", r.MissingModules.Sorted(), failStyle)

	if pairs := r.ConflictedModules.Sorted(); len(pairs) > 0 {
		renderSection(&b, "Conflicts", len(pairs))
		for _, p := range pairs {
			fmt.Fprintf(&b, "    %s %s %s %s\n", warnStyle.Render("●"), p.A, dimStyle.Render("vs"), p.B)
		}
	}

	if r.DirectiveCount() == 0 && len(r.Notes) == 0 {
		b.WriteString("\n  " + passStyle.Render("Nothing beyond what PyInstaller finds on its own.") + "\n")
	}

	if len(r.Notes) > 0 {
		b.WriteString("\n  " + separatorLine + "\n\n")
		for _, n := range r.Notes {
			fmt.Fprintf(&b, "    %s %s\n", noteTag(n.Kind), dimStyle.Render(n.Message))
		}
	}

	b.WriteString("\n")
	return b.String()
}

func renderSection(b *strings.Builder, title string, n int) {
	b.WriteString("\n")
	fmt.Fprintf(b, "  %s %s\n", sectionHeaderStyle.Render(title), dimStyle.Render(fmt.Sprintf("(%d)", n)))
}

func renderModules(b *strings.Builder, title string, mods []domain.ModuleName, bullet lipgloss.Style) {
	if len(mods) == 0 {
		return
	}
	renderSection(b, title, len(mods))
	for _, m := range mods {
		fmt.Fprintf(b, "    %s %s\n", bullet.Render("●"), m)
	}
}

func renderFiles(b *strings.Builder, title string, files []domain.DataFile) {
	if len(files) == 0 {
		return
	}
	renderSection(b, title, len(files))
	for _, f := range files {
		fmt.Fprintf(b, "    %s %s %s %s\n",
			passStyle.Render("●"), fileStyle.Render(shortenPath(f.Source)), faintStyle.Render("→"), f.Dest)
	}
}

func noteTag(kind domain.DiagnosticKind) string {
	switch kind {
	case domain.DiagMissingModule:
		return errorTagStyle.Render("error")
	case domain.DiagParseError, domain.DiagInterpreterUnreachable, domain.DiagConflict:
		return warnTagStyle.Render("warn ")
	default:
		return infoTagStyle.Render("info ")
	}
}

// RenderTemplates lists knowledge-base templates in table order.
func RenderTemplates(templates []domain.FrameworkTemplate) string {
	var b strings.Builder
	b.WriteString("\n")
	b.WriteString("  " + titleStyle.Render("Framework Templates") + "  " + dimStyle.Render(fmt.Sprintf("(%d)", len(templates))) + "\n")
	b.WriteString("  " + faintStyle.Render(strings.Repeat("─", 50)) + "\n\n")

	for _, t := range templates {
		indicators := make([]string, len(t.IndicatorModules))
		for i, m := range t.IndicatorModules {
			indicators[i] = string(m)
		}
		fmt.Fprintf(&b, "  %s %s\n", padRight(t.Name, 16), dimStyle.Render(strings.Join(indicators, ", ")))
	}
	b.WriteString("\n")
	return b.String()
}

// RenderTemplate shows every contribution of a single template.
func RenderTemplate(t domain.FrameworkTemplate) string {
	var b strings.Builder

	body := titleStyle.Render(t.Name)
	if t.Description != "" {
		body += "\n" + dimStyle.Render(t.Description)
	}
	b.WriteString(boxStyle.Render(body))
	b.WriteString("\n")

	renderModules(&b, "Indicators", t.IndicatorModules, infoTagStyle)
	renderModules(&b, "Hidden Imports", t.HiddenImports, passStyle)
	renderModules(&b, "Collect All", t.CollectAllPackages, passStyle)
	renderStrings(&b, "Data Globs", t.DataFileGlobs)
	renderStrings(&b, "Binaries", t.KnownBinaryNames)
	if len(t.Recommendations) > 0 {
		renderSection(&b, "Recommendations", len(t.Recommendations))
		for _, r := range t.Recommendations {
			b.WriteString("    " + hintStyle.Render(r) + "\n")
		}
	}
	b.WriteString("\n")
	return b.String()
}

func renderStrings(b *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	renderSection(b, title, len(items))
	for _, s := range items {
		fmt.Fprintf(b, "    %s %s\n", skipStyle.Render("○"), s)
	}
}

// RenderHistory formats build history for terminal output, newest first.
func RenderHistory(runs []domain.BuildRun) string {
	if len(runs) == 0 {
		return "  " + dimStyle.Render("No build history found.") + "\n"
	}

	var b strings.Builder
	b.WriteString("\n")
	b.WriteString("  " + titleStyle.Render("Build History") + "\n")
	b.WriteString("  " + faintStyle.Render(strings.Repeat("─", 50)) + "\n\n")

	for _, r := range runs {
		hash := r.CommitHash
		if len(hash) > 7 {
			hash = hash[:7]
		}
		if hash == "" {
			hash = "·······"
		}

		fmt.Fprintf(&b, "  %s  %s  %s  %s  %s  %s\n",
			dimStyle.Render(r.StartedAt.Local().Format("2006-01-02 15:04")),
			faintStyle.Render(hash),
			padRight(filepath.Base(r.Script), 20),
			runStatus(r),
			dimStyle.Render(r.Duration.Round(100*time.Millisecond).String()),
			dimStyle.Render(fmt.Sprintf("%d directives", r.Directives)),
		)
	}
	return b.String()
}

// RenderBuild summarizes a finished packaging run and explains any problems
// recognized in the packager's output.
func RenderBuild(r domain.BuildRun, findings []domain.BuildFinding) string {
	var b strings.Builder
	b.WriteString("\n  " + separatorLine + "\n")
	fmt.Fprintf(&b, "  %s %s  %s  %s\n",
		titleStyle.Render("build"),
		runStatus(r),
		dimStyle.Render(r.Duration.Round(100*time.Millisecond).String()),
		dimStyle.Render(fmt.Sprintf("%d directives", r.Directives)),
	)
	if r.CacheHit {
		b.WriteString("  " + hintStyle.Render("directives served from cache") + "\n")
	}

	for _, f := range findings {
		tag := warnTagStyle.Render("warn ")
		if f.Severity == diagnose.SeverityHigh {
			tag = errorTagStyle.Render("error")
		}
		b.WriteString("\n")
		headline := f.Cause
		if f.Subject != "" {
			headline += " " + fileStyle.Render("("+f.Subject+")")
		}
		fmt.Fprintf(&b, "  %s %s\n", tag, headline)
		if f.Line != "" {
			fmt.Fprintf(&b, "        %s\n", faintStyle.Render(f.Line))
		}
		for _, fix := range f.Solutions {
			fmt.Fprintf(&b, "        %s %s\n", dimStyle.Render("→"), hintStyle.Render(fix))
		}
	}
	return b.String()
}

func runStatus(r domain.BuildRun) string {
	switch {
	case r.Cancelled:
		return warnStyle.Render("cancelled")
	case r.Succeeded():
		return passStyle.Render("ok")
	default:
		return failStyle.Render(fmt.Sprintf("exit %d", r.ExitCode))
	}
}

// RenderCacheStats formats cache counters and disk usage.
func RenderCacheStats(s domain.CacheStats) string {
	var b strings.Builder
	dir := s.Dir
	if dir == "" {
		dir = "(memory only)"
	}
	b.WriteString("\n")
	b.WriteString("  " + titleStyle.Render("Result Cache") + "  " + fileStyle.Render(dir) + "\n")
	b.WriteString("  " + faintStyle.Render(strings.Repeat("─", 50)) + "\n\n")
	fmt.Fprintf(&b, "  %s %d\n", padRight("disk entries", 16), s.DiskEntries)
	fmt.Fprintf(&b, "  %s %s\n", padRight("disk usage", 16), humanBytes(s.DiskBytes))
	if s.Hits+s.Misses+s.Stores > 0 {
		fmt.Fprintf(&b, "  %s %d\n", padRight("hits", 16), s.Hits)
		fmt.Fprintf(&b, "  %s %d\n", padRight("misses", 16), s.Misses)
	}
	if s.Corrupt > 0 {
		fmt.Fprintf(&b, "  %s %s\n", padRight("corrupt", 16), warnStyle.Render(fmt.Sprint(s.Corrupt)))
	}
	return b.String()
}

func humanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

func shortenPath(path string) string {
	parts := strings.Split(filepath.ToSlash(path), "/")
	if len(parts) > 3 {
		return strings.Join(parts[len(parts)-3:], "/")
	}
	return path
}

func padRight(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}
