package scope

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefine_AssignsDenseOrdinals(t *testing.T) {
	t.Parallel()
	a := NewArena()
	root := a.NewScope(NoScope, KindProgram)

	for i, name := range []string{"a", "b", "c"} {
		b, err := a.Define(root, name, Let, false)
		require.NoError(t, err)
		assert.Equal(t, i, b.ID)
		assert.Equal(t, root, b.Scope)
	}

	// A second scope starts again at 0.
	child := a.NewScope(root, KindBlock)
	b, err := a.Define(child, "a", Const, true)
	require.NoError(t, err)
	assert.Equal(t, 0, b.ID)
	assert.True(t, b.Constant)
}

func TestDefine_VarRedeclarationAllowed(t *testing.T) {
	t.Parallel()
	a := NewArena()
	root := a.NewScope(NoScope, KindFunction)

	first, err := a.Define(root, "v", Var, false)
	require.NoError(t, err)
	second, err := a.Define(root, "v", Var, false)
	require.NoError(t, err)

	assert.Equal(t, 0, first.ID)
	assert.Equal(t, 1, second.ID)
	assert.Equal(t, 2, a.Scope(root).Len())

	got, err := a.Scope(root).LookupLocal("v")
	require.NoError(t, err)
	assert.Equal(t, second, got)
}

func TestDefine_RedeclarationRules(t *testing.T) {
	t.Parallel()

	tests := []struct {
		existing, next DeclKind
		ok             bool
	}{
		{Var, Var, true},
		{Let, Let, false},
		{Let, Var, false},
		{Var, Let, false},
		{Var, Const, false},
		{Const, Const, false},
		{Const, Var, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.existing)+"_"+string(tt.next), func(t *testing.T) {
			t.Parallel()
			a := NewArena()
			root := a.NewScope(NoScope, KindProgram)
			_, err := a.Define(root, "v", tt.existing, tt.existing == Const)
			require.NoError(t, err)

			_, err = a.Define(root, "v", tt.next, tt.next == Const)
			if tt.ok {
				require.NoError(t, err)
				return
			}
			var rerr *RedeclarationError
			require.True(t, errors.As(err, &rerr), "want RedeclarationError, got %v", err)
			assert.Equal(t, "v", rerr.Name)
			assert.Equal(t, tt.existing, rerr.Existing)
			assert.Equal(t, 1, a.Scope(root).Len(), "failed define must not consume an ordinal")
		})
	}
}

func TestDefine_ShadowingInChildIsAllowed(t *testing.T) {
	t.Parallel()
	a := NewArena()
	root := a.NewScope(NoScope, KindProgram)
	child := a.NewScope(root, KindBlock)

	_, err := a.Define(root, "x", Let, false)
	require.NoError(t, err)
	inner, err := a.Define(child, "x", Let, false)
	require.NoError(t, err)

	got, err := a.LookupChain(child, "x")
	require.NoError(t, err)
	assert.Equal(t, inner, got)
}

func TestDefine_InvalidInput(t *testing.T) {
	t.Parallel()
	a := NewArena()
	root := a.NewScope(NoScope, KindProgram)

	_, err := a.Define(root, "x", DeclKind("function"), false)
	assert.Error(t, err)
	_, err = a.Define(ID(7), "x", Let, false)
	assert.Error(t, err)
}

func TestLookupChain_ThreeLevels(t *testing.T) {
	t.Parallel()
	a := NewArena()
	outer := a.NewScope(NoScope, KindProgram)
	mid := a.NewScope(outer, KindFunction)
	inner := a.NewScope(mid, KindBlock)

	want, err := a.Define(outer, "config", Const, true)
	require.NoError(t, err)

	got, err := a.LookupChain(inner, "config")
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.True(t, a.HasInChain(inner, "config"))

	// Local lookups do not walk ancestors.
	assert.False(t, a.Scope(inner).HasInScope("config"))
	_, err = a.Scope(inner).LookupLocal("config")
	var uerr *UndefinedReferenceError
	require.True(t, errors.As(err, &uerr))
	assert.Equal(t, "config is not defined", uerr.Error())
}

func TestLookupChain_Undefined(t *testing.T) {
	t.Parallel()
	a := NewArena()
	outer := a.NewScope(NoScope, KindProgram)
	inner := a.NewScope(a.NewScope(outer, KindFunction), KindBlock)

	_, err := a.LookupChain(inner, "missing")
	var uerr *UndefinedReferenceError
	require.True(t, errors.As(err, &uerr))
	assert.Equal(t, "missing", uerr.Name)
	assert.False(t, a.HasInChain(inner, "missing"))
}

func TestLookupChain_DoesNotSeeSiblings(t *testing.T) {
	t.Parallel()
	a := NewArena()
	root := a.NewScope(NoScope, KindProgram)
	left := a.NewScope(root, KindBlock)
	right := a.NewScope(root, KindBlock)

	_, err := a.Define(left, "only", Let, false)
	require.NoError(t, err)
	assert.False(t, a.HasInChain(right, "only"))
}

func TestArena_ChainAndWalk(t *testing.T) {
	t.Parallel()
	a := NewArena()
	root := a.NewScope(NoScope, KindProgram)
	fn := a.NewScope(root, KindFunction)
	blk := a.NewScope(fn, KindBlock)

	assert.Equal(t, []ID{blk, fn, root}, a.Chain(blk))
	assert.Equal(t, blk, a.Scope(blk).ID())
	assert.Equal(t, fn, a.Scope(blk).Parent())
	assert.Equal(t, NoScope, a.Scope(root).Parent())
	assert.Equal(t, 3, a.Len())
	assert.Nil(t, a.Scope(NoScope))

	var kinds []Kind
	a.Walk(func(s *Scope) { kinds = append(kinds, s.Kind()) })
	assert.Equal(t, []Kind{KindProgram, KindFunction, KindBlock}, kinds)
}

func TestScope_BindingsOrdered(t *testing.T) {
	t.Parallel()
	a := NewArena()
	root := a.NewScope(NoScope, KindProgram)
	for _, n := range []string{"z", "y", "x"} {
		_, err := a.Define(root, n, Var, false)
		require.NoError(t, err)
	}
	var names []string
	for _, b := range a.Scope(root).Bindings() {
		names = append(names, b.Name)
	}
	assert.Equal(t, []string{"z", "y", "x"}, names)
}

func TestBindings_AreCopies(t *testing.T) {
	t.Parallel()
	a := NewArena()
	root := a.NewScope(NoScope, KindProgram)

	b, err := a.Define(root, "x", Const, true)
	require.NoError(t, err)
	b.Name, b.Kind, b.Constant = "y", Var, false
	require.Equal(t, "y", b.Name)

	got, err := a.LookupChain(root, "x")
	require.NoError(t, err)
	assert.Equal(t, Binding{ID: 0, Name: "x", Kind: Const, Constant: true, Scope: root}, got)

	got.Kind = Var
	listed := a.Scope(root).Bindings()
	listed[0].Constant = false
	_, err = a.Define(root, "x", Var, false)
	assert.Error(t, err, "the stored binding must still be const")

	again, err := a.Scope(root).LookupLocal("x")
	require.NoError(t, err)
	assert.True(t, again.Constant)
	assert.False(t, a.Scope(root).HasInScope("y"))
}
