// Package command flattens a detection result into PyInstaller arguments.
package command

import (
	"runtime"
	"strings"

	"github.com/pyfreeze/pyfreeze/internal/domain"
)

// Options holds the non-directive PyInstaller switches.
type Options struct {
	Script         string
	OneFile        bool
	Windowed       bool
	Clean          bool
	DistPath       string
	Name           string
	Icon           string
	LogLevel       string
	ExtraArgs      []string
	ExcludeModules []domain.ModuleName
	// GOOS selects the --add-data separator. Empty means the running OS.
	GOOS string
}

// FromConfig builds Options for script from the build section of the config.
func FromConfig(cfg domain.ProjectConfig, script string) Options {
	opts := Options{
		Script:    script,
		OneFile:   cfg.Build.OneFile,
		Windowed:  cfg.Build.Windowed,
		Clean:     cfg.Build.Clean,
		DistPath:  cfg.Build.DistPath,
		Name:      cfg.Build.Name,
		Icon:      cfg.Build.Icon,
		LogLevel:  cfg.Build.LogLevel,
		ExtraArgs: cfg.Build.ExtraArgs,
	}
	for _, m := range cfg.ExcludeModules {
		opts.ExcludeModules = append(opts.ExcludeModules, domain.ModuleName(m))
	}
	return opts
}

// Separator returns the source/destination separator PyInstaller expects on goos.
func Separator(goos string) string {
	if goos == "" {
		goos = runtime.GOOS
	}
	if goos == "windows" {
		return ";"
	}
	return ":"
}

// Directives returns one argument per directive in the result: hidden
// imports in order, collect-all packages sorted, then data files and
// binaries in order.
func Directives(r *domain.DetectionResult, goos string) []string {
	sep := Separator(goos)
	var args []string
	for _, m := range r.HiddenImports.Items() {
		args = append(args, "--hidden-import="+string(m))
	}
	for _, p := range r.CollectAll.Sorted() {
		args = append(args, "--collect-all="+string(p))
	}
	for _, f := range r.DataFiles.Items() {
		args = append(args, "--add-data="+f.Source+sep+f.Dest)
	}
	for _, f := range r.Binaries.Items() {
		args = append(args, "--add-binary="+f.Source+sep+f.Dest)
	}
	return args
}

// Build returns the full PyInstaller argument list, script last.
func Build(opts Options, r *domain.DetectionResult) []string {
	var args []string

	if opts.OneFile {
		args = append(args, "--onefile")
	} else {
		args = append(args, "--onedir")
	}
	if opts.Windowed {
		args = append(args, "--windowed")
	} else {
		args = append(args, "--console")
	}
	if opts.Clean {
		args = append(args, "--clean")
	}
	if opts.DistPath != "" {
		args = append(args, "--distpath="+opts.DistPath)
	}
	if opts.Name != "" {
		args = append(args, "--name="+opts.Name)
	}
	if opts.Icon != "" {
		args = append(args, "--icon="+opts.Icon)
	}
	if opts.LogLevel != "" {
		args = append(args, "--log-level="+strings.ToUpper(opts.LogLevel))
	}
	args = append(args, "--noconfirm")

	if r != nil {
		args = append(args, Directives(r, opts.GOOS)...)
	}
	for _, m := range opts.ExcludeModules {
		args = append(args, "--exclude-module="+string(m))
	}
	args = append(args, ExtraArgs(opts.ExtraArgs)...)

	return append(args, opts.Script)
}

// ExtraArgs drops blank lines and # comments from user-supplied arguments.
func ExtraArgs(lines []string) []string {
	var out []string
	for _, l := range lines {
		l = strings.TrimSpace(l)
		if l == "" || strings.HasPrefix(l, "#") {
			continue
		}
		out = append(out, l)
	}
	return out
}
