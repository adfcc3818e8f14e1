// Package node defines the closed vocabulary of the SV tree: a small set of
// immutable, tagged node variants produced by the transformation pass.
//
// Every variant is built through a constructor that validates the
// invariants it can check locally (literal value/type agreement, operator
// membership, non-nil children, assignment target classification). Nothing
// here performs cross-node validation; whether an Identifier is actually
// bound is a question for the scope package.
package node

import "fmt"

// Type is the discriminant tag carried by every Node.
type Type string

const (
	TypeLiteral              Type = "Literal"
	TypeBinaryExpression     Type = "BinaryExpression"
	TypeLogicalExpression    Type = "LogicalExpression"
	TypeUnaryExpression      Type = "UnaryExpression"
	TypeArrayExpression      Type = "ArrayExpression"
	TypeCallExpression       Type = "CallExpression"
	TypeMemberExpression     Type = "MemberExpression"
	TypeAssignmentExpression Type = "AssignmentExpression"
	TypeIdentifier           Type = "Identifier"
	TypeVariableDefinition   Type = "VariableDefinition"
)

// Node is implemented only by the variants in this package.
type Node interface {
	Type() Type
	sealed()
}

// ValidationError reports a constructor invariant violation.
type ValidationError struct {
	Node   Type
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("node: invalid %s: %s", e.Node, e.Reason)
}

func invalid(t Type, format string, args ...any) error {
	return &ValidationError{Node: t, Reason: fmt.Sprintf(format, args...)}
}

// --- Literal ---

// LiteralKind is the declared category of a Literal.
type LiteralKind string

const (
	LiteralString  LiteralKind = "string"
	LiteralNumber  LiteralKind = "number"
	LiteralBoolean LiteralKind = "boolean"
)

// Literal is a string, number or boolean constant.
type Literal struct {
	kind  LiteralKind
	value any
}

// NewLiteral builds a Literal, rejecting values whose Go type disagrees
// with kind. Numbers are float64; integer Go types are widened.
func NewLiteral(kind LiteralKind, value any) (*Literal, error) {
	switch kind {
	case LiteralString:
		if _, ok := value.(string); !ok {
			return nil, invalid(TypeLiteral, "string literal with %T value", value)
		}
	case LiteralNumber:
		switch v := value.(type) {
		case float64:
		case int:
			value = float64(v)
		case int64:
			value = float64(v)
		default:
			return nil, invalid(TypeLiteral, "number literal with %T value", value)
		}
	case LiteralBoolean:
		if _, ok := value.(bool); !ok {
			return nil, invalid(TypeLiteral, "boolean literal with %T value", value)
		}
	default:
		return nil, invalid(TypeLiteral, "unknown literal kind %q", kind)
	}
	return &Literal{kind: kind, value: value}, nil
}

func (*Literal) Type() Type { return TypeLiteral }
func (*Literal) sealed()    {}

func (l *Literal) Kind() LiteralKind { return l.kind }
func (l *Literal) Value() any        { return l.value }

// --- Binary / Logical ---

// BinaryExpression is an arithmetic, relational or bitwise operation.
type BinaryExpression struct {
	left, right Node
	op          BinaryOperator
}

func NewBinaryExpression(op BinaryOperator, left, right Node) (*BinaryExpression, error) {
	if !op.Valid() {
		return nil, invalid(TypeBinaryExpression, "operator %q", op)
	}
	if left == nil || right == nil {
		return nil, invalid(TypeBinaryExpression, "missing operand")
	}
	return &BinaryExpression{left: left, right: right, op: op}, nil
}

func (*BinaryExpression) Type() Type { return TypeBinaryExpression }
func (*BinaryExpression) sealed()    {}

func (b *BinaryExpression) Left() Node               { return b.left }
func (b *BinaryExpression) Right() Node              { return b.right }
func (b *BinaryExpression) Operator() BinaryOperator { return b.op }

// LogicalExpression is a short-circuiting &&, || or ??.
type LogicalExpression struct {
	left, right Node
	op          LogicalOperator
}

func NewLogicalExpression(op LogicalOperator, left, right Node) (*LogicalExpression, error) {
	if !op.Valid() {
		return nil, invalid(TypeLogicalExpression, "operator %q", op)
	}
	if left == nil || right == nil {
		return nil, invalid(TypeLogicalExpression, "missing operand")
	}
	return &LogicalExpression{left: left, right: right, op: op}, nil
}

func (*LogicalExpression) Type() Type { return TypeLogicalExpression }
func (*LogicalExpression) sealed()    {}

func (l *LogicalExpression) Left() Node                { return l.left }
func (l *LogicalExpression) Right() Node               { return l.right }
func (l *LogicalExpression) Operator() LogicalOperator { return l.op }

// --- Unary ---

type UnaryExpression struct {
	operand Node
	op      UnaryOperator
}

func NewUnaryExpression(op UnaryOperator, operand Node) (*UnaryExpression, error) {
	if !op.Valid() {
		return nil, invalid(TypeUnaryExpression, "operator %q", op)
	}
	if operand == nil {
		return nil, invalid(TypeUnaryExpression, "missing operand")
	}
	return &UnaryExpression{operand: operand, op: op}, nil
}

func (*UnaryExpression) Type() Type { return TypeUnaryExpression }
func (*UnaryExpression) sealed()    {}

func (u *UnaryExpression) Operand() Node           { return u.operand }
func (u *UnaryExpression) Operator() UnaryOperator { return u.op }

// --- Array ---

// ArrayExpression holds its elements in the order they were given; the
// transformation pass is responsible for the emitted order.
type ArrayExpression struct {
	elements []Node
}

func NewArrayExpression(elements []Node) (*ArrayExpression, error) {
	for i, el := range elements {
		if el == nil {
			return nil, invalid(TypeArrayExpression, "nil element at %d", i)
		}
	}
	return &ArrayExpression{elements: append([]Node(nil), elements...)}, nil
}

func (*ArrayExpression) Type() Type { return TypeArrayExpression }
func (*ArrayExpression) sealed()    {}

func (a *ArrayExpression) Len() int          { return len(a.elements) }
func (a *ArrayExpression) Element(i int) Node { return a.elements[i] }

// Elements returns a copy of the element slice.
func (a *ArrayExpression) Elements() []Node { return append([]Node(nil), a.elements...) }

// --- Call ---

type CallExpression struct {
	callee Node
	args   []Node
}

func NewCallExpression(callee Node, args []Node) (*CallExpression, error) {
	if callee == nil {
		return nil, invalid(TypeCallExpression, "missing callee")
	}
	for i, a := range args {
		if a == nil {
			return nil, invalid(TypeCallExpression, "nil argument at %d", i)
		}
	}
	return &CallExpression{callee: callee, args: append([]Node(nil), args...)}, nil
}

func (*CallExpression) Type() Type { return TypeCallExpression }
func (*CallExpression) sealed()    {}

func (c *CallExpression) Callee() Node      { return c.callee }
func (c *CallExpression) Arguments() []Node { return append([]Node(nil), c.args...) }

// --- Member ---

type MemberExpression struct {
	object, property Node
	computed         bool
}

// NewMemberExpression builds object.property (computed=false) or
// object[property] (computed=true).
func NewMemberExpression(object, property Node, computed bool) (*MemberExpression, error) {
	if object == nil || property == nil {
		return nil, invalid(TypeMemberExpression, "missing object or property")
	}
	return &MemberExpression{object: object, property: property, computed: computed}, nil
}

func (*MemberExpression) Type() Type { return TypeMemberExpression }
func (*MemberExpression) sealed()    {}

func (m *MemberExpression) Object() Node   { return m.object }
func (m *MemberExpression) Property() Node { return m.property }
func (m *MemberExpression) Computed() bool { return m.computed }

// --- Assignment ---

// AssignmentTarget classifies the left-hand side of an assignment.
type AssignmentTarget string

const (
	TargetIdentifier AssignmentTarget = "identifier"
	TargetProperty   AssignmentTarget = "property"
)

type AssignmentExpression struct {
	left, right Node
	op          AssignmentOperator
	target      AssignmentTarget
}

// NewAssignmentExpression classifies the target once: property when left
// is a MemberExpression, identifier otherwise.
func NewAssignmentExpression(op AssignmentOperator, left, right Node) (*AssignmentExpression, error) {
	if !op.Valid() {
		return nil, invalid(TypeAssignmentExpression, "operator %q", op)
	}
	if left == nil || right == nil {
		return nil, invalid(TypeAssignmentExpression, "missing operand")
	}
	target := TargetIdentifier
	if _, ok := left.(*MemberExpression); ok {
		target = TargetProperty
	}
	return &AssignmentExpression{left: left, right: right, op: op, target: target}, nil
}

func (*AssignmentExpression) Type() Type { return TypeAssignmentExpression }
func (*AssignmentExpression) sealed()    {}

func (a *AssignmentExpression) Left() Node                   { return a.left }
func (a *AssignmentExpression) Right() Node                  { return a.right }
func (a *AssignmentExpression) Operator() AssignmentOperator { return a.op }
func (a *AssignmentExpression) Target() AssignmentTarget     { return a.target }

// --- Identifier ---

type Identifier struct {
	name     string
	isGlobal bool
}

func NewIdentifier(name string, isGlobal bool) (*Identifier, error) {
	if name == "" {
		return nil, invalid(TypeIdentifier, "empty name")
	}
	return &Identifier{name: name, isGlobal: isGlobal}, nil
}

func (*Identifier) Type() Type { return TypeIdentifier }
func (*Identifier) sealed()    {}

func (i *Identifier) Name() string   { return i.name }
func (i *Identifier) IsGlobal() bool { return i.isGlobal }

// --- VariableDefinition ---

// DeclarationKind is the keyword that introduced a declaration statement.
type DeclarationKind string

const (
	DeclareVar   DeclarationKind = "var"
	DeclareLet   DeclarationKind = "let"
	DeclareConst DeclarationKind = "const"
)

func (k DeclarationKind) Valid() bool {
	return k == DeclareVar || k == DeclareLet || k == DeclareConst
}

// Declarator is one binding entry of a VariableDefinition. Value is nil
// when the declarator has no initializer.
type Declarator struct {
	Name     string
	Constant bool
	Value    Node
}

// VariableDefinition covers a whole declaration statement.
type VariableDefinition struct {
	kind  DeclarationKind
	decls []Declarator
}

func NewVariableDefinition(kind DeclarationKind, decls []Declarator) (*VariableDefinition, error) {
	if !kind.Valid() {
		return nil, invalid(TypeVariableDefinition, "declaration kind %q", kind)
	}
	for i, d := range decls {
		if d.Name == "" {
			return nil, invalid(TypeVariableDefinition, "declarator %d has no name", i)
		}
	}
	return &VariableDefinition{kind: kind, decls: append([]Declarator(nil), decls...)}, nil
}

func (*VariableDefinition) Type() Type { return TypeVariableDefinition }
func (*VariableDefinition) sealed()    {}

func (v *VariableDefinition) Kind() DeclarationKind { return v.kind }
func (v *VariableDefinition) Len() int              { return len(v.decls) }

// Declarations returns a copy of the declarators.
func (v *VariableDefinition) Declarations() []Declarator {
	return append([]Declarator(nil), v.decls...)
}
