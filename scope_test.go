package corelang

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCompiler(env *Env) *Compiler {
	c := NewCompiler(env, NewConfig(), "test")
	c.PushScope(ScopeFunction|ScopeTop, "top")
	return c
}

func TestResolveFindsLocalInCurrentScope(t *testing.T) {
	c := newTestCompiler(nil)
	slot := Slot{Index: 2, EnvIndex: -1, Flags: SlotNamed}
	c.nameSlot("x", slot)

	got := c.Resolve("x")
	assert.Equal(t, int32(2), got.Index)
	assert.Equal(t, int32(-1), got.EnvIndex, "a symbol resolved within its own function is never an upvalue")
}

func TestResolveFallsBackToGlobalEnvDef(t *testing.T) {
	env := NewEnv()
	env.Def("pi", Int(3))
	c := newTestCompiler(env)

	got := c.Resolve("pi")
	assert.True(t, got.IsConstant())
	assert.Equal(t, Int(3), got.Constant)
}

func TestResolveVarBindingProducesMutableRefSlot(t *testing.T) {
	env := NewEnv()
	env.Var("counter", Int(0))
	c := newTestCompiler(env)

	got := c.Resolve("counter")
	assert.NotZero(t, got.Flags&SlotRef)
	assert.NotZero(t, got.Flags&SlotMutable)
	assert.Zero(t, got.Flags&SlotConstant)
}

func TestResolveUnknownSymbolErrors(t *testing.T) {
	c := newTestCompiler(nil)
	c.Resolve("nowhere")
	assert.True(t, c.errored)
}

// Capture soundness: resolving a symbol bound in an enclosing function
// scope, from inside a directly nested function scope, threads an
// upvalue reference through the intermediate scope's Envs list and
// flags that scope ScopeEnv (needs-env).
func TestResolveAcrossFunctionBoundaryThreadsUpvalue(t *testing.T) {
	c := newTestCompiler(nil)
	outer := c.scope
	c.nameSlot("x", Slot{Index: 0, EnvIndex: -1})

	inner := c.PushScope(ScopeFunction, "inner")
	got := c.Resolve("x")

	assert.Equal(t, int32(0), got.EnvIndex, "first capture hop is env index 0")
	assert.NotZero(t, outer.Flags&ScopeEnv, "the defining function must be flagged needs-env")
	require.Len(t, inner.Envs, 1)
	assert.Equal(t, int32(-1), inner.Envs[0], "env slot 0 means 'direct parent'")
}

// A second, deeper nesting level reuses the same upvalue chain entry
// rather than appending a fresh one when resolving the same name.
func TestResolveAcrossTwoFunctionBoundariesReusesChainEntry(t *testing.T) {
	c := newTestCompiler(nil)
	c.nameSlot("x", Slot{Index: 0, EnvIndex: -1})

	mid := c.PushScope(ScopeFunction, "mid")
	_ = c.Resolve("x")
	inner := c.PushScope(ScopeFunction, "inner")
	got := c.Resolve("x")

	require.Len(t, mid.Envs, 1)
	require.Len(t, inner.Envs, 1)
	assert.Equal(t, int32(0), got.EnvIndex)
}

func TestPopScopePropagatesHighWaterMarkToParent(t *testing.T) {
	c := newTestCompiler(nil)
	parent := c.scope
	c.PushScope(0, "block")
	c.scope.RA.Touch(5)
	c.PopScope()

	assert.Equal(t, c.scope, parent)
	assert.Equal(t, int32(5), parent.RA.Max())
}

func TestPopScopeKeepSlotTouchesParentRegister(t *testing.T) {
	c := newTestCompiler(nil)
	c.PushScope(ScopeFunction, "fn")
	c.PopScopeKeepSlot(Slot{Index: 3, EnvIndex: -1})

	assert.True(t, c.scope.RA.isSet(3))
}

func TestNonFunctionScopeSharesParentRegisterFile(t *testing.T) {
	c := newTestCompiler(nil)
	c.scope.RA.Touch(0)
	child := c.PushScope(0, "block")
	assert.True(t, child.RA.isSet(0), "lexical blocks share their function's register occupancy")
}

func TestFunctionScopeGetsFreshRegisterFile(t *testing.T) {
	c := newTestCompiler(nil)
	c.scope.RA.Touch(0)
	child := c.PushScope(ScopeFunction, "fn")
	assert.False(t, child.RA.isSet(0), "a nested function starts with its own register file")
}
