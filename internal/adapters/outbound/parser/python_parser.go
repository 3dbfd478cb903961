package parser

import (
	"bytes"
	"context"
	"strings"
	"unicode"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"

	"github.com/pyfreeze/pyfreeze/internal/domain"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// PythonParser implements domain.StaticExtractor using the tree-sitter
// Python grammar. Every import statement in the file is collected,
// including those in function bodies and in branches never taken.
type PythonParser struct{}

func New() *PythonParser {
	return &PythonParser{}
}

func (p *PythonParser) Extract(ctx context.Context, path string, src []byte) (domain.OrderedModules, error) {
	src = bytes.TrimPrefix(src, utf8BOM)
	if !utf8.Valid(src) {
		return domain.OrderedModules{}, &domain.ParseError{Path: path, Reason: "not valid UTF-8"}
	}

	// sitter.Parser is not safe for concurrent use, so each call gets its own.
	sp := sitter.NewParser()
	defer sp.Close()
	sp.SetLanguage(python.GetLanguage())

	tree, err := sp.ParseCtx(ctx, nil, src)
	if err != nil {
		if ctx.Err() != nil {
			return domain.OrderedModules{}, ctx.Err()
		}
		return domain.OrderedModules{}, &domain.ParseError{Path: path, Reason: err.Error()}
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		return domain.OrderedModules{}, &domain.ParseError{
			Path:   path,
			Line:   firstErrorLine(root),
			Reason: "syntax error",
		}
	}

	var found domain.OrderedModules
	walk(root, func(n *sitter.Node) {
		switch n.Type() {
		case "import_statement":
			collectImport(n, src, &found)
		case "import_from_statement":
			collectFromImport(n, src, &found)
		}
	})
	return found, nil
}

// collectImport handles `import a.b, c as d`.
func collectImport(n *sitter.Node, src []byte, found *domain.OrderedModules) {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if name, ok := importedName(n.NamedChild(i), src); ok {
			found.Add(name)
		}
	}
}

// collectFromImport handles `from X import Y, Z` and `from X import *`.
// X is always recorded; X.Y is recorded too when Y looks like a submodule.
// Relative imports refer to the script's own package and are skipped.
func collectFromImport(n *sitter.Node, src []byte, found *domain.OrderedModules) {
	mod := n.ChildByFieldName("module_name")
	if mod == nil || mod.Type() != "dotted_name" {
		return
	}
	base := dotted(mod.Content(src))
	if !base.Valid() {
		return
	}
	found.Add(base)

	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		if c.StartByte() == mod.StartByte() {
			continue
		}
		name, ok := importedName(c, src)
		if !ok || !looksLikeSubmodule(name) {
			continue
		}
		if sub := base + "." + name; sub.Valid() {
			found.Add(sub)
		}
	}
}

// importedName returns the module path of a dotted_name or aliased_import node.
func importedName(n *sitter.Node, src []byte) (domain.ModuleName, bool) {
	switch n.Type() {
	case "dotted_name":
	case "aliased_import":
		n = n.ChildByFieldName("name")
		if n == nil {
			return "", false
		}
	default:
		return "", false
	}
	name := dotted(n.Content(src))
	return name, name.Valid()
}

// looksLikeSubmodule accepts lower-case or underscore names (`os.path`,
// `concurrent.futures`) and Qt-style modules (`PyQt5.QtWidgets`). Capitalized
// names are usually classes.
func looksLikeSubmodule(name domain.ModuleName) bool {
	first, size := utf8.DecodeRuneInString(string(name))
	if first == '_' || unicode.IsLower(first) {
		return true
	}
	rest := string(name)[size:]
	if first == 'Q' && strings.HasPrefix(rest, "t") && len(rest) > 1 {
		second, _ := utf8.DecodeRuneInString(rest[1:])
		return unicode.IsUpper(second)
	}
	return false
}

func dotted(s string) domain.ModuleName {
	return domain.ModuleName(strings.Join(strings.Fields(s), ""))
}

func walk(root *sitter.Node, visit func(*sitter.Node)) {
	stack := []*sitter.Node{root}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		visit(n)
		// Push in reverse so children are visited in source order.
		for i := int(n.NamedChildCount()) - 1; i >= 0; i-- {
			stack = append(stack, n.NamedChild(i))
		}
	}
}

// firstErrorLine returns the 1-based line of the first ERROR or MISSING node.
func firstErrorLine(n *sitter.Node) int {
	if n.IsError() || n.IsMissing() {
		return int(n.StartPoint().Row) + 1
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		if c == nil || !(c.HasError() || c.IsMissing()) {
			continue
		}
		if line := firstErrorLine(c); line > 0 {
			return line
		}
	}
	return int(n.StartPoint().Row) + 1
}
