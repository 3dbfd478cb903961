package dynscan_test

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pyfreeze/pyfreeze/internal/adapters/outbound/dynscan"
	"github.com/pyfreeze/pyfreeze/internal/domain"
	"github.com/pyfreeze/pyfreeze/internal/logging"
)

func scan(src string) []domain.ModuleName {
	return dynscan.New(logging.Discard()).Scan([]byte(src)).Items()
}

func TestScan_PluginLoaderFixture(t *testing.T) {
	src, err := os.ReadFile("../../../../testdata/scripts/plugins/loader.py")
	require.NoError(t, err)

	got := dynscan.New(logging.Discard()).Scan(src).Items()

	assert.Equal(t, []domain.ModuleName{
		"exporters.csv_writer",
		"exporters.xlsx_writer",
		"yaml",
		"plugins",
		"numpy",
	}, got)
}

func TestScan_Patterns(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want []domain.ModuleName
	}{
		{"import_module", `importlib.import_module("pkg.sub")`, []domain.ModuleName{"pkg.sub"}},
		{"bare import_module", `import_module('reports.pdf')`, []domain.ModuleName{"reports.pdf"}},
		{"__import__", `mod = __import__("lxml.etree")`, []domain.ModuleName{"lxml.etree"}},
		{"find_spec", `importlib.util.find_spec("ujson")`, []domain.ModuleName{"ujson"}},
		{"resolve_name", `pkgutil.resolve_name("celery.app.task:Task")`, []domain.ModuleName{"celery.app.task"}},
		{"load_plugin", `load_plugin("ext.markdown")`, []domain.ModuleName{"ext.markdown"}},
		{"get_plugin", `get_plugin('ext.rst')`, []domain.ModuleName{"ext.rst"}},
		{"exec import", `exec("import zmq")`, []domain.ModuleName{"zmq"}},
		{"eval from", `eval("from lxml import html")`, []domain.ModuleName{"lxml"}},
		{"config key", `{"plugin": "ext.toc", 'handler': "web.handlers"}`, []domain.ModuleName{"ext.toc", "web.handlers"}},
		{"concatenated package prefix", `importlib.import_module("drivers." + kind)`, []domain.ModuleName{"drivers"}},
		{"concatenated non-package prefix", `importlib.import_module("driver_" + kind)`, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, scan(tt.src))
		})
	}
}

func TestScan_RejectsNonModuleShapes(t *testing.T) {
	src := `
importlib.import_module("has space")
importlib.import_module("9lives")
__import__("")
__import__("a..b")
importlib.import_module("../etc/passwd")
importlib.import_module(" requests ")
__import__("yaml ")
`
	assert.Empty(t, scan(src))
}

func TestScan_RejectsNoiseWords(t *testing.T) {
	src := `{"module": "config", "handler": "None"}; importlib.import_module("main")`
	assert.Empty(t, scan(src))
}

func TestScan_OrderByFirstAppearance(t *testing.T) {
	src := `
load_plugin("beta")
importlib.import_module("alpha")
__import__("beta")
`
	assert.Equal(t, []domain.ModuleName{"beta", "alpha"}, scan(src))
}

func TestScan_GarbageInput(t *testing.T) {
	assert.Empty(t, dynscan.New(logging.Discard()).Scan([]byte{0xff, 0xfe, 0x00, '(', '"'}).Items())
}
