package parser_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pyfreeze/pyfreeze/internal/adapters/outbound/parser"
	"github.com/pyfreeze/pyfreeze/internal/domain"
)

const scriptsDir = "../../../../testdata/scripts/"

func extract(t *testing.T, src string) []domain.ModuleName {
	t.Helper()
	found, err := parser.New().Extract(context.Background(), "inline.py", []byte(src))
	require.NoError(t, err)
	return found.Items()
}

func TestPythonParser_NestedScopesAndBranches(t *testing.T) {
	src, err := os.ReadFile(scriptsDir + "nested.py")
	require.NoError(t, err)

	found, err := parser.New().Extract(context.Background(), "nested.py", src)
	require.NoError(t, err)

	assert.Equal(t, []domain.ModuleName{
		"logging",
		"a.b",
		"c.d",
		"ujson",
		"json",
		"pandas",
		"matplotlib",
		"matplotlib.pyplot",
		"PyQt5.QtWidgets",
		"PyQt5",
		"PyQt5.QtCore",
	}, found.Items())
}

func TestPythonParser_UntakenBranchStillCounted(t *testing.T) {
	got := extract(t, "if False:\n    import a.b\n")
	assert.Equal(t, []domain.ModuleName{"a.b"}, got)
}

func TestPythonParser_FromImportForms(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want []domain.ModuleName
	}{
		{"class name is not a submodule", "from flask import Flask\n", []domain.ModuleName{"flask"}},
		{"lower-case name recorded both ways", "from os import path\n", []domain.ModuleName{"os", "os.path"}},
		{"wildcard", "from tkinter import *\n", []domain.ModuleName{"tkinter"}},
		{"parenthesized list", "from concurrent import (\n    futures,\n    Executor,\n)\n", []domain.ModuleName{"concurrent", "concurrent.futures"}},
		{"aliased", "from matplotlib import pyplot as plt\n", []domain.ModuleName{"matplotlib", "matplotlib.pyplot"}},
		{"relative skipped", "from . import sibling\nfrom ..pkg import thing\n", nil},
		{"future skipped", "from __future__ import annotations\n", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extract(t, tt.src))
		})
	}
}

func TestPythonParser_ImportList(t *testing.T) {
	got := extract(t, "import os, sys as system, xml.etree.ElementTree as ET\n")
	assert.Equal(t, []domain.ModuleName{"os", "sys", "xml.etree.ElementTree"}, got)
}

func TestPythonParser_DuplicatesKeepFirstPosition(t *testing.T) {
	got := extract(t, "import b\nimport a\nimport b\n")
	assert.Equal(t, []domain.ModuleName{"b", "a"}, got)
}

func TestPythonParser_StringsAreNotImports(t *testing.T) {
	got := extract(t, "doc = 'import secret'\n# import hidden\n")
	assert.Empty(t, got)
}

func TestPythonParser_SyntaxError(t *testing.T) {
	src, err := os.ReadFile(scriptsDir + "broken.py")
	require.NoError(t, err)

	found, err := parser.New().Extract(context.Background(), "broken.py", src)

	var pe *domain.ParseError
	require.True(t, errors.As(err, &pe), "want ParseError, got %v", err)
	assert.Equal(t, "broken.py", pe.Path)
	assert.GreaterOrEqual(t, pe.Line, 3)
	assert.Zero(t, found.Len())
}

func TestPythonParser_InvalidUTF8(t *testing.T) {
	_, err := parser.New().Extract(context.Background(), "latin1.py", []byte("import os\nname = '\xe9t\xe9'\n"))

	var pe *domain.ParseError
	require.True(t, errors.As(err, &pe))
	assert.Contains(t, pe.Reason, "UTF-8")
}

func TestPythonParser_ByteOrderMark(t *testing.T) {
	got := extract(t, "\xEF\xBB\xBFimport requests\n")
	assert.Equal(t, []domain.ModuleName{"requests"}, got)
}
