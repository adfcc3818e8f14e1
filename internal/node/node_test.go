package node

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustIdent(t *testing.T, name string, global bool) *Identifier {
	t.Helper()
	id, err := NewIdentifier(name, global)
	require.NoError(t, err)
	return id
}

func mustNumber(t *testing.T, v float64) *Literal {
	t.Helper()
	l, err := NewLiteral(LiteralNumber, v)
	require.NoError(t, err)
	return l
}

func TestNewLiteral_PreservesValueAndKind(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		kind  LiteralKind
		value any
		want  any
	}{
		{"string", LiteralString, "hello", "hello"},
		{"empty string", LiteralString, "", ""},
		{"float", LiteralNumber, 3.5, 3.5},
		{"int widened", LiteralNumber, 42, float64(42)},
		{"int64 widened", LiteralNumber, int64(-7), float64(-7)},
		{"true", LiteralBoolean, true, true},
		{"false", LiteralBoolean, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			l, err := NewLiteral(tt.kind, tt.value)
			require.NoError(t, err)
			assert.Equal(t, tt.kind, l.Kind())
			assert.Equal(t, tt.want, l.Value())
			assert.Equal(t, TypeLiteral, l.Type())
		})
	}
}

func TestNewLiteral_MismatchedTypeFails(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		kind  LiteralKind
		value any
	}{
		{"string with number", LiteralString, 1.0},
		{"number with string", LiteralNumber, "1"},
		{"number with bool", LiteralNumber, true},
		{"boolean with string", LiteralBoolean, "true"},
		{"boolean with nil", LiteralBoolean, nil},
		{"unknown kind", LiteralKind("bigint"), 1.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := NewLiteral(tt.kind, tt.value)
			require.Error(t, err)
			var verr *ValidationError
			require.True(t, errors.As(err, &verr), "want ValidationError, got %T", err)
			assert.Equal(t, TypeLiteral, verr.Node)
		})
	}
}

func TestOperators_RejectUnknown(t *testing.T) {
	t.Parallel()
	one := mustNumber(t, 1)

	_, err := NewBinaryExpression("&&", one, one)
	assert.Error(t, err, "&& belongs to the logical set")

	_, err = NewLogicalExpression("+", one, one)
	assert.Error(t, err)

	_, err = NewUnaryExpression("++", one)
	assert.Error(t, err)

	_, err = NewAssignmentExpression("=>", one, one)
	assert.Error(t, err)

	assert.True(t, IsLogical("??"))
	assert.False(t, IsLogical("+"))
}

func TestComposites_RequireChildren(t *testing.T) {
	t.Parallel()
	one := mustNumber(t, 1)

	_, err := NewBinaryExpression("+", one, nil)
	assert.Error(t, err)
	_, err = NewUnaryExpression("-", nil)
	assert.Error(t, err)
	_, err = NewArrayExpression([]Node{one, nil})
	assert.Error(t, err)
	_, err = NewCallExpression(nil, nil)
	assert.Error(t, err)
	_, err = NewMemberExpression(one, nil, false)
	assert.Error(t, err)
	_, err = NewIdentifier("", false)
	assert.Error(t, err)
	_, err = NewVariableDefinition(DeclareLet, []Declarator{{Name: ""}})
	assert.Error(t, err)
	_, err = NewVariableDefinition("static", nil)
	assert.Error(t, err)
}

func TestAssignmentExpression_TargetClassification(t *testing.T) {
	t.Parallel()
	obj := mustIdent(t, "obj", true)
	prop := mustIdent(t, "field", false)
	member, err := NewMemberExpression(obj, prop, false)
	require.NoError(t, err)

	toProp, err := NewAssignmentExpression("=", member, mustNumber(t, 1))
	require.NoError(t, err)
	assert.Equal(t, TargetProperty, toProp.Target())

	toIdent, err := NewAssignmentExpression("+=", mustIdent(t, "x", false), mustNumber(t, 1))
	require.NoError(t, err)
	assert.Equal(t, TargetIdentifier, toIdent.Target())
}

func TestArrayExpression_CopiesInput(t *testing.T) {
	t.Parallel()
	elems := []Node{mustNumber(t, 1), mustNumber(t, 2)}
	arr, err := NewArrayExpression(elems)
	require.NoError(t, err)

	elems[0] = mustNumber(t, 99)
	assert.Equal(t, 1.0, arr.Element(0).(*Literal).Value())

	out := arr.Elements()
	out[1] = nil
	assert.NotNil(t, arr.Element(1))
	assert.Equal(t, 2, arr.Len())
}

func TestDecode_RoundTripsNestedTree(t *testing.T) {
	t.Parallel()
	sum, err := NewBinaryExpression("+", mustIdent(t, "a", false), mustNumber(t, 2))
	require.NoError(t, err)
	and, err := NewLogicalExpression("&&", sum, mustIdent(t, "flag", true))
	require.NoError(t, err)
	def, err := NewVariableDefinition(DeclareConst, []Declarator{
		{Name: "x", Constant: true, Value: and},
		{Name: "y", Constant: true},
	})
	require.NoError(t, err)

	data, err := Marshal(def)
	require.NoError(t, err)

	got, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, ToMap(def), ToMap(got))

	vd := got.(*VariableDefinition)
	require.Equal(t, 2, vd.Len())
	assert.Nil(t, vd.Declarations()[1].Value)
	flag := vd.Declarations()[0].Value.(*LogicalExpression).Right().(*Identifier)
	assert.True(t, flag.IsGlobal())
}

func TestDecode_RoundTripsNonFiniteNumbers(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		value float64
		wire  string
	}{
		{"positive infinity", math.Inf(1), `"Infinity"`},
		{"negative infinity", math.Inf(-1), `"-Infinity"`},
		{"nan", math.NaN(), `"NaN"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			neg, err := NewUnaryExpression("-", mustNumber(t, tt.value))
			require.NoError(t, err)

			data, err := Marshal(neg)
			require.NoError(t, err)
			assert.Contains(t, string(data), `"value":`+tt.wire)

			got, err := Decode(data)
			require.NoError(t, err)
			lit := got.(*UnaryExpression).Operand().(*Literal)
			f, ok := lit.Value().(float64)
			require.True(t, ok, "value decodes as a number, got %T", lit.Value())
			if math.IsNaN(tt.value) {
				assert.True(t, math.IsNaN(f))
			} else {
				assert.Equal(t, tt.value, f)
			}
		})
	}

	// A string literal spelled like a non-finite number stays a string.
	s, err := NewLiteral(LiteralString, "Infinity")
	require.NoError(t, err)
	data, err := Marshal(s)
	require.NoError(t, err)
	got, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, "Infinity", got.(*Literal).Value())
}

func TestDecode_RejectsInvalidPayload(t *testing.T) {
	t.Parallel()

	_, err := Decode([]byte(`{"type":"Literal","kind":"number","value":"nope"}`))
	var verr *ValidationError
	assert.True(t, errors.As(err, &verr))

	_, err = Decode([]byte(`{"type":"Spread"}`))
	assert.Error(t, err)

	_, err = Decode([]byte(`not json`))
	assert.Error(t, err)
}
