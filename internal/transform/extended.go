package transform

import (
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/jward/svtree/internal/node"
)

// Extended registers handlers for calls, member access and assignments.
// These kinds build nodes only where the pass scans a child, such as a
// declarator initializer or an operand.
func Extended() Option {
	return func(c *config) {
		c.handlers["call_expression"] = callHandler
		c.handlers["member_expression"] = memberHandler
		c.handlers["subscript_expression"] = subscriptHandler
		c.handlers["assignment_expression"] = assignmentHandler
		c.handlers["augmented_assignment_expression"] = assignmentHandler
	}
}

// callHandler keeps supported arguments in order and drops the rest, the
// same way array elements are treated. Tagged templates are omitted.
func callHandler(s *Session, n *sitter.Node) (node.Node, error) {
	callee, err := s.Scan(n.ChildByFieldName("function"))
	if err != nil || callee == nil {
		return nil, err
	}
	argList := n.ChildByFieldName("arguments")
	if argList == nil || argList.Type() != "arguments" {
		return nil, nil
	}
	var args []node.Node
	for i := 0; i < int(argList.NamedChildCount()); i++ {
		arg, err := s.Scan(argList.NamedChild(i))
		if err != nil {
			return nil, err
		}
		if arg != nil {
			args = append(args, arg)
		}
	}
	return node.NewCallExpression(callee, args)
}

// memberHandler maps a.b. Property names are never global references.
func memberHandler(s *Session, n *sitter.Node) (node.Node, error) {
	object, err := s.Scan(n.ChildByFieldName("object"))
	if err != nil || object == nil {
		return nil, err
	}
	prop := n.ChildByFieldName("property")
	if prop == nil {
		return nil, nil
	}
	switch prop.Type() {
	case "property_identifier", "private_property_identifier":
	default:
		return nil, nil
	}
	property, err := node.NewIdentifier(s.Text(prop), false)
	if err != nil {
		return nil, err
	}
	return node.NewMemberExpression(object, property, false)
}

// subscriptHandler maps a[b] to a computed MemberExpression.
func subscriptHandler(s *Session, n *sitter.Node) (node.Node, error) {
	object, err := s.Scan(n.ChildByFieldName("object"))
	if err != nil || object == nil {
		return nil, err
	}
	index, err := s.Scan(n.ChildByFieldName("index"))
	if err != nil || index == nil {
		return nil, err
	}
	return node.NewMemberExpression(object, index, true)
}

// assignmentHandler maps plain and compound assignments. Destructuring
// targets are omitted.
func assignmentHandler(s *Session, n *sitter.Node) (node.Node, error) {
	left := n.ChildByFieldName("left")
	if left == nil {
		return nil, nil
	}
	switch left.Type() {
	case "identifier", "member_expression", "subscript_expression", "parenthesized_expression":
	default:
		return nil, nil
	}
	target, err := s.Scan(left)
	if err != nil || target == nil {
		return nil, err
	}
	switch target.(type) {
	case *node.Identifier, *node.MemberExpression:
	default:
		return nil, nil
	}
	value, err := s.Scan(n.ChildByFieldName("right"))
	if err != nil || value == nil {
		return nil, err
	}
	op := "="
	if n.Type() == "augmented_assignment_expression" {
		op = s.fieldText(n, "operator")
	}
	return node.NewAssignmentExpression(node.AssignmentOperator(op), target, value)
}
