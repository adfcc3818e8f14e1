package resolve

import (
	"unicode"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/jward/svtree/internal/scope"
)

// skipKinds never contain value references worth recording.
var skipKinds = map[string]bool{
	"comment":                   true,
	"type_annotation":           true,
	"type_arguments":            true,
	"type_parameters":           true,
	"type_alias_declaration":    true,
	"interface_declaration":     true,
	"implements_clause":         true,
	"index_signature":           true,
	"abstract_method_signature": true,
	"method_signature":          true,
	"regex":                     true,
}

// blockFunction is a function declared inside a nested block, pending
// the legacy var hoisting into its enclosing function.
type blockFunction struct {
	block scope.ID
	fn    scope.ID
	name  string
}

type walker struct {
	res     *Result
	src     []byte
	pending []blockFunction
}

func (w *walker) newScope(parent scope.ID, kind scope.Kind, n *sitter.Node) scope.ID {
	id := w.res.arena.NewScope(parent, kind)
	w.res.spans = append(w.res.spans, spanOf(n))
	return id
}

func (w *walker) text(n *sitter.Node) string { return n.Content(w.src) }

func (w *walker) record(n *sitter.Node, cur scope.ID) {
	w.res.refs[keyOf(n)] = cur
}

func (w *walker) define(id scope.ID, name string, kind scope.DeclKind) error {
	_, err := w.res.arena.Define(id, name, kind, kind == scope.Const)
	return err
}

func (w *walker) children(n *sitter.Node, cur, fn scope.ID) error {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if err := w.walk(n.NamedChild(i), cur, fn); err != nil {
			return err
		}
	}
	return nil
}

// walk visits n with cur as the innermost scope and fn as the nearest
// function (or program) scope, the target of var hoisting.
func (w *walker) walk(n *sitter.Node, cur, fn scope.ID) error {
	if n == nil {
		return nil
	}
	typ := n.Type()
	if skipKinds[typ] {
		return nil
	}

	switch typ {
	case "identifier", "shorthand_property_identifier":
		w.record(n, cur)
		return nil

	case "function_declaration", "generator_function_declaration":
		if name := n.ChildByFieldName("name"); name != nil {
			if err := w.define(cur, w.text(name), scope.Var); err != nil {
				return err
			}
			w.record(name, cur)
			if cur != fn {
				w.pending = append(w.pending, blockFunction{block: cur, fn: fn, name: w.text(name)})
			}
		}
		return w.function(n, cur, true, false)

	case "function_signature":
		// TypeScript overload or ambient function: declares, no body.
		if name := n.ChildByFieldName("name"); name != nil {
			if !w.res.arena.Scope(cur).HasInScope(w.text(name)) {
				return w.define(cur, w.text(name), scope.Var)
			}
		}
		return nil

	case "function", "function_expression", "generator_function":
		return w.function(n, cur, true, true)

	case "arrow_function":
		return w.function(n, cur, false, false)

	case "method_definition":
		if name := n.ChildByFieldName("name"); name != nil && name.Type() == "computed_property_name" {
			if err := w.walk(name, cur, fn); err != nil {
				return err
			}
		}
		return w.function(n, cur, true, false)

	case "class_declaration", "abstract_class_declaration":
		if name := n.ChildByFieldName("name"); name != nil {
			if err := w.define(cur, w.text(name), scope.Let); err != nil {
				return err
			}
			w.record(name, cur)
		}
		return w.class(n, cur, fn, false)

	case "class":
		return w.class(n, cur, fn, true)

	case "statement_block":
		return w.children(n, w.newScope(cur, scope.KindBlock, n), fn)

	case "switch_body":
		return w.children(n, w.newScope(cur, scope.KindSwitch, n), fn)

	case "for_statement":
		return w.children(n, w.newScope(cur, scope.KindFor, n), fn)

	case "for_in_statement":
		return w.forIn(n, cur, fn)

	case "catch_clause":
		return w.catch(n, cur, fn)

	case "lexical_declaration":
		kind := scope.Let
		if k := n.ChildByFieldName("kind"); k != nil && w.text(k) == "const" {
			kind = scope.Const
		}
		return w.declarators(n, cur, cur, fn, kind)

	case "variable_declaration":
		return w.declarators(n, fn, cur, fn, scope.Var)

	case "enum_declaration":
		// Enums merge across declarations, so they bind like var.
		if name := n.ChildByFieldName("name"); name != nil {
			if err := w.define(cur, w.text(name), scope.Var); err != nil {
				return err
			}
			w.record(name, cur)
		}
		return nil

	case "internal_module", "module":
		// Namespaces merge with each other and with a class, function or
		// enum of the same name.
		if name := moduleName(n.ChildByFieldName("name")); name != nil {
			if !w.res.arena.Scope(cur).HasInScope(w.text(name)) {
				if err := w.define(cur, w.text(name), scope.Var); err != nil {
					return err
				}
			}
			w.record(name, cur)
		}
		// The body is its own var scope.
		if body := n.ChildByFieldName("body"); body != nil {
			ns := w.newScope(cur, scope.KindBlock, body)
			return w.children(body, ns, ns)
		}
		return nil

	case "import_statement":
		return w.imports(n, cur)

	case "import_alias":
		// import A = B.C binds A; the right-hand side is a reference.
		for i := 0; i < int(n.NamedChildCount()); i++ {
			c := n.NamedChild(i)
			if i == 0 && c.Type() == "identifier" {
				if err := w.define(cur, w.text(c), scope.Const); err != nil {
					return err
				}
				w.record(c, cur)
				continue
			}
			if err := w.walk(c, cur, fn); err != nil {
				return err
			}
		}
		return nil

	case "export_statement":
		return w.export(n, cur, fn)

	case "jsx_opening_element", "jsx_closing_element", "jsx_self_closing_element":
		return w.jsxElement(n, cur, fn)
	}

	return w.children(n, cur, fn)
}

// function opens a function scope for n. Named function expressions bind
// their own name inside that scope.
func (w *walker) function(n *sitter.Node, cur scope.ID, hasArguments, bindsOwnName bool) error {
	fs := w.newScope(cur, scope.KindFunction, n)
	if hasArguments {
		w.res.implicitArgs[fs] = true
	}
	if bindsOwnName {
		if name := n.ChildByFieldName("name"); name != nil {
			if err := w.define(fs, w.text(name), scope.Var); err != nil {
				return err
			}
			w.record(name, fs)
		}
	}

	params := n.ChildByFieldName("parameters")
	if params == nil {
		params = n.ChildByFieldName("parameter")
	}
	if params != nil {
		if params.Type() == "formal_parameters" {
			for i := 0; i < int(params.NamedChildCount()); i++ {
				if err := w.param(params.NamedChild(i), fs); err != nil {
					return err
				}
			}
		} else if err := w.param(params, fs); err != nil {
			return err
		}
	}

	body := n.ChildByFieldName("body")
	if body == nil {
		return nil
	}
	if body.Type() == "statement_block" {
		return w.children(body, fs, fs)
	}
	return w.walk(body, fs, fs)
}

func (w *walker) param(p *sitter.Node, fs scope.ID) error {
	for _, name := range w.patternNames(p) {
		if err := w.define(fs, name, scope.Var); err != nil {
			return err
		}
	}
	return w.walk(p, fs, fs)
}

// class opens a scope for the class body. A class expression's own name is
// visible only inside it.
func (w *walker) class(n *sitter.Node, cur, fn scope.ID, bindsOwnName bool) error {
	cs := w.newScope(cur, scope.KindClass, n)
	if bindsOwnName {
		if name := n.ChildByFieldName("name"); name != nil {
			if err := w.define(cs, w.text(name), scope.Let); err != nil {
				return err
			}
			w.record(name, cs)
		}
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		if t := child.Type(); t == "identifier" || t == "type_identifier" {
			continue // the name
		}
		if err := w.walk(child, cs, fn); err != nil {
			return err
		}
	}
	return nil
}

func (w *walker) forIn(n *sitter.Node, cur, fn scope.ID) error {
	fs := w.newScope(cur, scope.KindFor, n)
	if k := n.ChildByFieldName("kind"); k != nil {
		target, kind := fs, scope.Let
		switch w.text(k) {
		case "var":
			target, kind = fn, scope.Var
		case "const":
			kind = scope.Const
		}
		if left := n.ChildByFieldName("left"); left != nil {
			for _, name := range w.patternNames(left) {
				if err := w.define(target, name, kind); err != nil {
					return err
				}
			}
		}
	}
	return w.children(n, fs, fn)
}

func (w *walker) catch(n *sitter.Node, cur, fn scope.ID) error {
	cs := w.newScope(cur, scope.KindCatch, n)
	if p := n.ChildByFieldName("parameter"); p != nil {
		for _, name := range w.patternNames(p) {
			if err := w.define(cs, name, scope.Let); err != nil {
				return err
			}
		}
	}
	return w.children(n, cs, fn)
}

// declarators defines every name bound by the declarators of n in target,
// then walks names and initializers in cur.
func (w *walker) declarators(n *sitter.Node, target, cur, fn scope.ID, kind scope.DeclKind) error {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		d := n.NamedChild(i)
		if d.Type() != "variable_declarator" {
			continue
		}
		if name := d.ChildByFieldName("name"); name != nil {
			for _, bound := range w.patternNames(name) {
				if err := w.define(target, bound, kind); err != nil {
					return err
				}
			}
		}
		if err := w.children(d, cur, fn); err != nil {
			return err
		}
	}
	return nil
}

// imports binds every local name an import statement introduces. Imported
// names are constant.
func (w *walker) imports(n *sitter.Node, cur scope.ID) error {
	bind := func(id *sitter.Node) error {
		w.record(id, cur)
		return w.define(cur, w.text(id), scope.Const)
	}
	var clause *sitter.Node
	for i := 0; i < int(n.NamedChildCount()); i++ {
		switch c := n.NamedChild(i); c.Type() {
		case "import_clause":
			clause = c
		case "import_require_clause":
			// import x = require("m")
			if id := c.NamedChild(0); id != nil && id.Type() == "identifier" {
				if err := bind(id); err != nil {
					return err
				}
			}
		}
	}
	if clause == nil {
		return nil
	}
	for i := 0; i < int(clause.NamedChildCount()); i++ {
		c := clause.NamedChild(i)
		switch c.Type() {
		case "identifier":
			if err := bind(c); err != nil {
				return err
			}
		case "namespace_import":
			for j := 0; j < int(c.NamedChildCount()); j++ {
				if id := c.NamedChild(j); id.Type() == "identifier" {
					if err := bind(id); err != nil {
						return err
					}
				}
			}
		case "named_imports":
			for j := 0; j < int(c.NamedChildCount()); j++ {
				spec := c.NamedChild(j)
				if spec.Type() != "import_specifier" {
					continue
				}
				local := spec.ChildByFieldName("alias")
				if local == nil {
					local = spec.ChildByFieldName("name")
				}
				if local != nil && local.Type() == "identifier" {
					if err := bind(local); err != nil {
						return err
					}
				}
			}
		}
	}
	return nil
}

// export walks exported declarations normally. In export clauses only the
// local name of a specifier is a reference, and re-exports from another
// module reference nothing locally.
func (w *walker) export(n *sitter.Node, cur, fn scope.ID) error {
	reexport := n.ChildByFieldName("source") != nil
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		if c.Type() != "export_clause" {
			if err := w.walk(c, cur, fn); err != nil {
				return err
			}
			continue
		}
		if reexport {
			continue
		}
		for j := 0; j < int(c.NamedChildCount()); j++ {
			spec := c.NamedChild(j)
			if name := spec.ChildByFieldName("name"); name != nil && name.Type() == "identifier" {
				w.record(name, cur)
			}
		}
	}
	return nil
}

// jsxElement records a tag name only when it names a component; lowercase
// tags are intrinsic elements.
func (w *walker) jsxElement(n *sitter.Node, cur, fn scope.ID) error {
	name := n.ChildByFieldName("name")
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		if name != nil && keyOf(c) == keyOf(name) && c.Type() == "identifier" {
			if r, _ := utf8.DecodeRuneInString(w.text(c)); unicode.IsUpper(r) {
				w.record(c, cur)
			}
			continue
		}
		if err := w.walk(c, cur, fn); err != nil {
			return err
		}
	}
	return nil
}

// patternNames lists the names a binding pattern introduces.
func (w *walker) patternNames(n *sitter.Node) []string {
	if n == nil {
		return nil
	}
	switch n.Type() {
	case "identifier", "shorthand_property_identifier_pattern":
		return []string{w.text(n)}
	case "object_pattern", "array_pattern":
		var names []string
		for i := 0; i < int(n.NamedChildCount()); i++ {
			names = append(names, w.patternNames(n.NamedChild(i))...)
		}
		return names
	case "pair_pattern":
		return w.patternNames(n.ChildByFieldName("value"))
	case "assignment_pattern", "object_assignment_pattern":
		return w.patternNames(n.ChildByFieldName("left"))
	case "rest_pattern":
		if n.NamedChildCount() > 0 {
			return w.patternNames(n.NamedChild(0))
		}
	case "required_parameter", "optional_parameter":
		return w.patternNames(n.ChildByFieldName("pattern"))
	}
	return nil
}

// moduleName returns the identifier a namespace declaration binds: the
// first segment of a dotted name. Quoted ambient module names bind nothing.
func moduleName(n *sitter.Node) *sitter.Node {
	for n != nil {
		switch n.Type() {
		case "identifier":
			return n
		case "nested_identifier", "member_expression":
			n = n.NamedChild(0)
		default:
			return nil
		}
	}
	return nil
}

// hoistBlockFunctions gives each function declared in a nested block a var
// binding in its enclosing function. The hoist is skipped when the function
// scope already binds the name, or when a block between the declaration and
// the function binds it, since a var there would be a redeclaration. Simple
// catch parameters do not block the hoist.
func (w *walker) hoistBlockFunctions() error {
	for _, p := range w.pending {
		if w.blocksHoist(p) {
			continue
		}
		if err := w.define(p.fn, p.name, scope.Var); err != nil {
			return err
		}
	}
	return nil
}

func (w *walker) blocksHoist(p blockFunction) bool {
	arena := w.res.arena
	for _, id := range arena.Chain(p.block) {
		if id == p.block {
			continue
		}
		sc := arena.Scope(id)
		if id == p.fn {
			return sc.HasInScope(p.name)
		}
		if sc.Kind() != scope.KindCatch && sc.HasInScope(p.name) {
			return true
		}
	}
	return false
}
