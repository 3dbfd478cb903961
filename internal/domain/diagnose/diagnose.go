// Package diagnose matches packager output against known failure patterns
// and turns each match into a finding with a root cause and suggested fixes.
package diagnose

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/pyfreeze/pyfreeze/internal/domain"
)

const (
	SeverityHigh   = "high"
	SeverityMedium = "medium"
)

// RulePackagingFailed is reported for a failed build whose output matched
// no other rule.
const RulePackagingFailed = "packaging_failed"

const maxLine = 240

type rule struct {
	name      string
	category  string
	severity  string
	pattern   *regexp.Regexp
	cause     string
	solutions func(subject string) []string
}

// rules are tried in order; the first match claims the line. A capture
// group, when present, is the finding's subject.
var rules = []rule{
	{
		name:     "missing_module",
		category: "dependency",
		severity: SeverityHigh,
		pattern:  regexp.MustCompile(`(?i)No module named ['"]?([A-Za-z_][\w.]*)['"]?`),
		cause:    "A module the script imports is not installed for the interpreter running PyInstaller.",
		solutions: func(m string) []string {
			return []string{
				fmt.Sprintf("Install the package that provides %s into the build interpreter.", m),
				"Check that the intended virtual environment is active, or pass --interpreter.",
				fmt.Sprintf("If %s is only imported at runtime, add it to extra_hidden_imports in .pyfreeze.yaml.", m),
			}
		},
	},
	{
		name:     "hidden_import_not_found",
		category: "dependency",
		severity: SeverityMedium,
		pattern:  regexp.MustCompile(`Hidden import ['"]([^'"]+)['"] not found`),
		cause:    "PyInstaller could not import a requested hidden import.",
		solutions: func(m string) []string {
			return []string{
				fmt.Sprintf("Install %s into the build interpreter.", domain.ModuleName(m).TopLevel()),
				fmt.Sprintf("If the application does not need it, add %s to exclude_modules in .pyfreeze.yaml.", m),
			}
		},
	},
	{
		name:     "import_name_error",
		category: "dependency",
		severity: SeverityHigh,
		pattern:  regexp.MustCompile(`(?i)cannot import name ['"]([^'"]+)['"]`),
		cause:    "An installed package does not provide a name the code imports, usually a version mismatch.",
		solutions: func(string) []string {
			return []string{
				"Compare the installed package versions with the ones the script was written against.",
				"Upgrade or pin the package in the build interpreter.",
			}
		},
	},
	{
		name:     "data_not_found",
		category: "filesystem",
		severity: SeverityHigh,
		pattern:  regexp.MustCompile(`Unable to find ['"]([^'"]+)['"] when adding`),
		cause:    "A file passed to --add-data or --add-binary does not exist.",
		solutions: func(p string) []string {
			return []string{
				fmt.Sprintf("Check that %s exists relative to the directory PyInstaller runs in.", p),
				"Remove the entry from the build configuration if the file is no longer used.",
			}
		},
	},
	{
		name:     "file_not_found",
		category: "filesystem",
		severity: SeverityHigh,
		pattern:  regexp.MustCompile(`(?i)(?:No such file or directory|cannot find the (?:file|path) specified)(?:[^:]*:\s*['"]([^'"]+)['"])?`),
		cause:    "A file or directory the build needs does not exist.",
		solutions: func(string) []string {
			return []string{
				"Check the path, including its case.",
				"Use absolute paths in .pyfreeze.yaml and pyproject.toml.",
			}
		},
	},
	{
		name:     "permission_denied",
		category: "security",
		severity: SeverityMedium,
		pattern:  regexp.MustCompile(`(?i)(?:Permission denied|Access is denied)(?:[^:]*:\s*['"]([^'"]+)['"])?`),
		cause:    "The build could not read or write a file or directory.",
		solutions: func(string) []string {
			return []string{
				"Close any running copy of the packaged program; its executable in dist is locked while it runs.",
				"Check the permissions of the build and dist directories.",
				"Exclude the project directory from antivirus scanning.",
			}
		},
	},
	{
		name:     "encoding_error",
		category: "encoding",
		severity: SeverityMedium,
		pattern:  regexp.MustCompile(`(?i)codec can't (?:decode|encode)`),
		cause:    "A file or console output uses an encoding Python could not handle.",
		solutions: func(string) []string {
			return []string{
				"Save sources and data files as UTF-8.",
				"Set PYTHONUTF8=1 for the build.",
			}
		},
	},
}

var packagingFailed = domain.BuildFinding{
	Rule:     RulePackagingFailed,
	Category: "packaging",
	Severity: SeverityHigh,
	Cause:    "PyInstaller failed without an error pyfreeze recognizes.",
	Solutions: []string{
		"Rerun with --clean to discard PyInstaller's build cache.",
		"Rerun with --log-level=DEBUG and read the warn-*.txt file in the build directory.",
	},
}

// Line matches one output line against the rule table.
func Line(line string) (domain.BuildFinding, bool) {
	for _, r := range rules {
		m := r.pattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		var subject string
		if len(m) > 1 {
			subject = m[1]
		}
		return domain.BuildFinding{
			Rule:      r.name,
			Category:  r.category,
			Severity:  r.severity,
			Subject:   subject,
			Cause:     r.cause,
			Line:      truncate(strings.TrimSpace(line)),
			Solutions: r.solutions(subject),
		}, true
	}
	return domain.BuildFinding{}, false
}

// Collector accumulates findings from streamed output. Each rule and subject
// pair is reported once, in order of first appearance. It is safe for
// concurrent use.
type Collector struct {
	mu       sync.Mutex
	seen     map[string]struct{}
	findings []domain.BuildFinding
}

func NewCollector() *Collector {
	return &Collector{seen: make(map[string]struct{})}
}

func (c *Collector) Observe(line string) {
	f, ok := Line(line)
	if !ok {
		return
	}
	key := f.Rule + "\x00" + f.Subject
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, dup := c.seen[key]; dup {
		return
	}
	c.seen[key] = struct{}{}
	c.findings = append(c.findings, f)
}

// Findings returns what was observed. A failed build with no findings gets
// a generic packaging finding.
func (c *Collector) Findings(failed bool) []domain.BuildFinding {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := append([]domain.BuildFinding(nil), c.findings...)
	if failed && len(out) == 0 {
		f := packagingFailed
		f.Solutions = append([]string(nil), packagingFailed.Solutions...)
		out = append(out, f)
	}
	return out
}

func truncate(s string) string {
	r := []rune(s)
	if len(r) <= maxLine {
		return s
	}
	return string(r[:maxLine]) + "…"
}
