package knowledge_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pyfreeze/pyfreeze/internal/domain"
	"github.com/pyfreeze/pyfreeze/internal/domain/knowledge"
)

func TestDefault_LoadsBundledTable(t *testing.T) {
	kb := knowledge.Default()

	assert.Equal(t, knowledge.FormatVersion, kb.Version())
	assert.NoError(t, kb.Validate())

	for _, name := range []string{"django", "flask", "fastapi", "opencv", "matplotlib", "numpy", "pandas",
		"tensorflow", "pytorch", "scikit_learn", "pyqt5", "pyqt6", "tkinter", "requests", "selenium", "pillow"} {
		_, ok := kb.Template(name)
		assert.True(t, ok, "template %q should be bundled", name)
	}
}

func TestDefault_EveryTemplateHasIndicators(t *testing.T) {
	for _, tmpl := range knowledge.Default().Templates() {
		assert.NotEmpty(t, tmpl.IndicatorModules, tmpl.Name)
	}
}

func TestTemplate_IsolatedCopy(t *testing.T) {
	kb := knowledge.Default()
	tmpl, ok := kb.Template("numpy")
	require.True(t, ok)

	tmpl.HiddenImports[0] = "mutated"

	again, _ := kb.Template("numpy")
	assert.NotEqual(t, domain.ModuleName("mutated"), again.HiddenImports[0])
}

func TestMatch_SubmoduleOfIndicator(t *testing.T) {
	kb := knowledge.Default()

	matched := kb.Match(domain.NewModuleSet("PyQt5.QtWidgets", "os"))

	require.Len(t, matched, 1)
	assert.Equal(t, "pyqt5", matched[0].Name)
	assert.Contains(t, matched[0].CollectAllPackages, domain.ModuleName("PyQt5"))
}

func TestMatch_TableOrderAndMultipleTemplates(t *testing.T) {
	kb := knowledge.Default()

	matched := kb.Match(domain.NewModuleSet("requests", "cv2", "numpy"))

	var got []string
	for _, m := range matched {
		got = append(got, m.Name)
	}
	assert.Equal(t, []string{"opencv", "numpy", "requests"}, got)
}

func TestMatch_PrefixIsNotEnough(t *testing.T) {
	kb := knowledge.Default()

	// "numpyro" shares a prefix with "numpy" but is not beneath it.
	assert.Empty(t, kb.Match(domain.NewModuleSet("numpyro", "flasgger")))
}

func TestMatchAt_AgreesWithMatch(t *testing.T) {
	kb := knowledge.Default()
	mods := domain.NewModuleSet("flask", "pandas.io")

	var viaIndex []string
	for i := 0; i < kb.Len(); i++ {
		if tmpl, ok := kb.MatchAt(i, mods); ok {
			viaIndex = append(viaIndex, tmpl.Name)
		}
	}
	var viaMatch []string
	for _, tmpl := range kb.Match(mods) {
		viaMatch = append(viaMatch, tmpl.Name)
	}
	assert.Equal(t, viaMatch, viaIndex)

	_, ok := kb.MatchAt(-1, mods)
	assert.False(t, ok)
}

func TestConflicts(t *testing.T) {
	kb := knowledge.Default()

	t.Run("both bindings present", func(t *testing.T) {
		got := kb.Conflicts(domain.NewModuleSet("PyQt5.QtWidgets", "PyQt6.QtCore"))
		assert.True(t, got.Has("PyQt6", "PyQt5"))
		assert.Len(t, got, 1)
	})

	t.Run("distribution names compared verbatim", func(t *testing.T) {
		got := kb.Conflicts(domain.NewModuleSet("tensorflow", "tensorflow-gpu"))
		assert.True(t, got.Has("tensorflow", "tensorflow-gpu"))
	})

	t.Run("single member", func(t *testing.T) {
		assert.Empty(t, kb.Conflicts(domain.NewModuleSet("PySide6")))
	})
}

func TestIsStdlib(t *testing.T) {
	kb := knowledge.Default()
	assert.True(t, kb.IsStdlib("os.path"))
	assert.True(t, kb.IsStdlib("json"))
	assert.False(t, kb.IsStdlib("requests"))
}

func TestParse_RejectsOverlappingIndicators(t *testing.T) {
	_, err := knowledge.Parse([]byte(`
version: 1
templates:
  - name: qt
    indicators: [PyQt5]
  - name: qtwidgets
    indicators: [PyQt5.QtWidgets]
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "overlaps")
}

func TestParse_RejectsEmptyIndicators(t *testing.T) {
	_, err := knowledge.Parse([]byte(`
version: 1
templates:
  - name: empty
    hidden_imports: [x]
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no indicator modules")
}

func TestParse_RejectsUnknownVersion(t *testing.T) {
	_, err := knowledge.Parse([]byte("version: 9\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not supported")
}

func TestParse_RejectsDuplicateNames(t *testing.T) {
	_, err := knowledge.Parse([]byte(`
version: 1
templates:
  - name: a
    indicators: [alpha]
  - name: a
    indicators: [beta]
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate template")
}

func TestMerge_AppendsAfterBundled(t *testing.T) {
	kb := knowledge.Default()
	merged, err := kb.Merge([]domain.FrameworkTemplate{{
		Name:             "internal_sdk",
		IndicatorModules: []domain.ModuleName{"acme_sdk"},
		HiddenImports:    []domain.ModuleName{"acme_sdk.transport.grpc"},
	}})
	require.NoError(t, err)

	assert.Equal(t, kb.Len()+1, merged.Len())
	all := merged.Templates()
	assert.Equal(t, "internal_sdk", all[len(all)-1].Name)

	_, ok := kb.Template("internal_sdk")
	assert.False(t, ok, "original base must stay unchanged")
}

func TestMerge_RejectsIndicatorClash(t *testing.T) {
	_, err := knowledge.Default().Merge([]domain.FrameworkTemplate{{
		Name:             "my_numpy",
		IndicatorModules: []domain.ModuleName{"numpy.linalg"},
	}})
	assert.Error(t, err)
}

func TestLoadTemplatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "extra.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
templates:
  - name: pendulum
    indicators: [pendulum]
    hidden_imports: [pendulum.locales.en]
`), 0644))

	got, err := knowledge.LoadTemplatesFile(path)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, []domain.ModuleName{"pendulum.locales.en"}, got[0].HiddenImports)
}
