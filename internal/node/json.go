package node

import (
	"encoding/json"
	"fmt"
	"math"
)

// ToMap converts n into a tree of plain Go values tagged with "type". The
// result is what Marshal encodes and what scripts receive. Non-finite
// number values become the strings "Infinity", "-Infinity" and "NaN" since
// JSON has no literal for them.
func ToMap(n Node) map[string]any {
	if n == nil {
		return nil
	}
	m := map[string]any{"type": string(n.Type())}
	switch v := n.(type) {
	case *Literal:
		m["kind"] = string(v.kind)
		m["value"] = v.value
		if f, ok := v.value.(float64); ok {
			m["value"] = encodeNumber(f)
		}
	case *BinaryExpression:
		m["operator"] = string(v.op)
		m["left"] = ToMap(v.left)
		m["right"] = ToMap(v.right)
	case *LogicalExpression:
		m["operator"] = string(v.op)
		m["left"] = ToMap(v.left)
		m["right"] = ToMap(v.right)
	case *UnaryExpression:
		m["operator"] = string(v.op)
		m["operand"] = ToMap(v.operand)
	case *ArrayExpression:
		m["elements"] = listToMaps(v.elements)
	case *CallExpression:
		m["callee"] = ToMap(v.callee)
		m["arguments"] = listToMaps(v.args)
	case *MemberExpression:
		m["object"] = ToMap(v.object)
		m["property"] = ToMap(v.property)
		m["computed"] = v.computed
	case *AssignmentExpression:
		m["operator"] = string(v.op)
		m["target"] = string(v.target)
		m["left"] = ToMap(v.left)
		m["right"] = ToMap(v.right)
	case *Identifier:
		m["name"] = v.name
		m["isGlobal"] = v.isGlobal
	case *VariableDefinition:
		m["kind"] = string(v.kind)
		decls := make([]any, 0, len(v.decls))
		for _, d := range v.decls {
			dm := map[string]any{"name": d.Name, "constant": d.Constant}
			if d.Value != nil {
				dm["value"] = ToMap(d.Value)
			}
			decls = append(decls, dm)
		}
		m["declarations"] = decls
	}
	return m
}

func encodeNumber(f float64) any {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}
	return f
}

// decodeNumber reverses encodeNumber for a number Literal's value.
func decodeNumber(v any) any {
	switch v {
	case "NaN":
		return math.NaN()
	case "Infinity":
		return math.Inf(1)
	case "-Infinity":
		return math.Inf(-1)
	}
	return v
}

func listToMaps(nodes []Node) []any {
	out := make([]any, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, ToMap(n))
	}
	return out
}

// Marshal encodes n as tagged JSON.
func Marshal(n Node) ([]byte, error) {
	return json.Marshal(ToMap(n))
}

// MarshalList encodes a node sequence as a JSON array.
func MarshalList(nodes []Node) ([]byte, error) {
	return json.Marshal(listToMaps(nodes))
}

// wire mirrors the union of fields ToMap can emit.
type wire struct {
	Type         Type              `json:"type"`
	Kind         string            `json:"kind"`
	Value        json.RawMessage   `json:"value"`
	Operator     string            `json:"operator"`
	Left         json.RawMessage   `json:"left"`
	Right        json.RawMessage   `json:"right"`
	Operand      json.RawMessage   `json:"operand"`
	Elements     []json.RawMessage `json:"elements"`
	Callee       json.RawMessage   `json:"callee"`
	Arguments    []json.RawMessage `json:"arguments"`
	Object       json.RawMessage   `json:"object"`
	Property     json.RawMessage   `json:"property"`
	Computed     bool              `json:"computed"`
	Name         string            `json:"name"`
	IsGlobal     bool              `json:"isGlobal"`
	Declarations []struct {
		Name     string          `json:"name"`
		Constant bool            `json:"constant"`
		Value    json.RawMessage `json:"value"`
	} `json:"declarations"`
}

// Decode rebuilds a Node from its tagged JSON form. Every node goes back
// through its constructor, so invalid input yields a ValidationError.
func Decode(data []byte) (Node, error) {
	var w wire
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("node: decode: %w", err)
	}
	switch w.Type {
	case TypeLiteral:
		var v any
		if err := json.Unmarshal(w.Value, &v); err != nil {
			return nil, fmt.Errorf("node: decode literal value: %w", err)
		}
		if LiteralKind(w.Kind) == LiteralNumber {
			v = decodeNumber(v)
		}
		return NewLiteral(LiteralKind(w.Kind), v)
	case TypeBinaryExpression:
		l, r, err := decodePair(w.Left, w.Right)
		if err != nil {
			return nil, err
		}
		return NewBinaryExpression(BinaryOperator(w.Operator), l, r)
	case TypeLogicalExpression:
		l, r, err := decodePair(w.Left, w.Right)
		if err != nil {
			return nil, err
		}
		return NewLogicalExpression(LogicalOperator(w.Operator), l, r)
	case TypeUnaryExpression:
		operand, err := decodeOptional(w.Operand)
		if err != nil {
			return nil, err
		}
		return NewUnaryExpression(UnaryOperator(w.Operator), operand)
	case TypeArrayExpression:
		elems, err := decodeList(w.Elements)
		if err != nil {
			return nil, err
		}
		return NewArrayExpression(elems)
	case TypeCallExpression:
		callee, err := decodeOptional(w.Callee)
		if err != nil {
			return nil, err
		}
		args, err := decodeList(w.Arguments)
		if err != nil {
			return nil, err
		}
		return NewCallExpression(callee, args)
	case TypeMemberExpression:
		obj, prop, err := decodePair(w.Object, w.Property)
		if err != nil {
			return nil, err
		}
		return NewMemberExpression(obj, prop, w.Computed)
	case TypeAssignmentExpression:
		l, r, err := decodePair(w.Left, w.Right)
		if err != nil {
			return nil, err
		}
		return NewAssignmentExpression(AssignmentOperator(w.Operator), l, r)
	case TypeIdentifier:
		return NewIdentifier(w.Name, w.IsGlobal)
	case TypeVariableDefinition:
		decls := make([]Declarator, 0, len(w.Declarations))
		for _, d := range w.Declarations {
			value, err := decodeOptional(d.Value)
			if err != nil {
				return nil, err
			}
			decls = append(decls, Declarator{Name: d.Name, Constant: d.Constant, Value: value})
		}
		return NewVariableDefinition(DeclarationKind(w.Kind), decls)
	default:
		return nil, fmt.Errorf("node: decode: unknown node type %q", w.Type)
	}
}

// DecodeList decodes a JSON array produced by MarshalList.
func DecodeList(data []byte) ([]Node, error) {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, fmt.Errorf("node: decode list: %w", err)
	}
	return decodeList(raws)
}

func decodeOptional(raw json.RawMessage) (Node, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	return Decode(raw)
}

func decodePair(a, b json.RawMessage) (Node, Node, error) {
	l, err := decodeOptional(a)
	if err != nil {
		return nil, nil, err
	}
	r, err := decodeOptional(b)
	if err != nil {
		return nil, nil, err
	}
	return l, r, nil
}

func decodeList(raws []json.RawMessage) ([]Node, error) {
	out := make([]Node, 0, len(raws))
	for _, raw := range raws {
		n, err := Decode(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}
