package corelang

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sym(name string) *Symbol { return InternSymbol([]byte(name)) }
func kw(name string) *Symbol  { return InternKeyword([]byte(name)) }

func mustCompile(t *testing.T, x Value, env *Env) *FuncDef {
	t.Helper()
	if env == nil {
		env = NewEnv()
	}
	res := Compile(x, env, NewConfig(), "test")
	require.Equal(t, CompileOK, res.Status, "compile error: %s @ %d:%d", res.Error, res.ErrorLine, res.ErrorColumn)
	return res.FuncDef
}

func opcodes(def *FuncDef) []Opcode {
	out := make([]Opcode, len(def.Bytecode))
	for i, ins := range def.Bytecode {
		out[i] = ins.Op()
	}
	return out
}

// Scenario 1: "(+ 1 2)" compiled with `+` bound as a native function —
// the bytecode calls it with arguments 1 and 2 and tail-returns;
// slotcount >= 3 (two argument registers plus the callee register).
func TestScenarioCallCompilesTailcallWithThreeSlots(t *testing.T) {
	plus := NewAbstract("native-fn", func(a, b Value) Value { return nil })
	env := NewEnv()
	env.Def("+", plus)

	x := NewTuple([]Value{sym("+"), Int(1), Int(2)})
	def := mustCompile(t, x, env)

	ops := opcodes(def)
	assert.Contains(t, ops, OpTailcall)
	assert.Contains(t, ops, OpLoadInteger)
	assert.Contains(t, ops, OpLoadConstant)
	assert.GreaterOrEqual(t, def.SlotCount, int32(3))
}

// Scenario 5: "(if true :yes :no)" compiles to the code for :yes plus
// a return; no instructions for :no, though :no never has a chance to
// error since it's a bare keyword.
func TestScenarioIfDeadCodePurity(t *testing.T) {
	x := NewTuple([]Value{sym("if"), True, kw("yes"), kw("no")})
	def := mustCompile(t, x, nil)

	ops := opcodes(def)
	assert.Equal(t, []Opcode{OpLoadConstant, OpReturn}, ops)
	require.Len(t, def.Constants, 1)
	assert.Equal(t, kw("yes"), def.Constants[0])
}

func TestScenarioIfFalseConditionTakesElseBranch(t *testing.T) {
	x := NewTuple([]Value{sym("if"), False, kw("yes"), kw("no")})
	def := mustCompile(t, x, nil)

	require.Len(t, def.Constants, 1)
	assert.Equal(t, kw("no"), def.Constants[0])
}

// Dead code purity also requires that an error inside the discarded
// branch is still reported even though it contributes no bytecode.
func TestScenarioIfDeadBranchErrorsStillReported(t *testing.T) {
	x := NewTuple([]Value{sym("if"), True, kw("yes"), sym("undefined-name")})
	res := Compile(x, NewEnv(), NewConfig(), "test")
	assert.Equal(t, CompileError_, res.Status)
	assert.Contains(t, res.Error, "undefined-name")
}

// Scenario 6: "(fn [x] (fn [y] (+ x y)))" — outer function has
// needs-env set; inner function's env-capture list references the
// outer by index 0; resolving x in the inner emits load-upvalue with
// envindex = 0.
func TestScenarioNestedFnCaptureSoundness(t *testing.T) {
	plus := NewAbstract("native-fn", nil)
	env := NewEnv()
	env.Def("+", plus)

	innerBody := NewTuple([]Value{sym("+"), sym("x"), sym("y")})
	innerFn := NewTuple([]Value{sym("fn"), NewTuple([]Value{sym("y")}), innerBody})
	outerFn := NewTuple([]Value{sym("fn"), NewTuple([]Value{sym("x")}), innerFn})

	// Compile wraps the whole form in a "_thunk" FuncDef; the outer fn is
	// the thunk's only nested definition.
	thunk := mustCompile(t, outerFn, env)
	require.Len(t, thunk.Defs, 1)
	outerDef := thunk.Defs[0]
	assert.True(t, outerDef.NeedsEnv, "outer function must be flagged needs-env")

	// The outer function's only nested definition is the inner FuncDef,
	// also referenced from its constants as an Abstract("funcdef", ...)
	// since this dialect has no dedicated closure-creation opcode.
	require.Len(t, outerDef.Defs, 1)
	innerDef := outerDef.Defs[0]

	require.Len(t, innerDef.Environments, 1)
	assert.Equal(t, int32(-1), innerDef.Environments[0], "env slot 0 must reference the immediately enclosing function")

	foundUpvalue := false
	for _, ins := range innerDef.Bytecode {
		if ins.Op() == OpLoadUpvalue && ins.Imm()>>8 == 0 {
			foundUpvalue = true
		}
	}
	assert.True(t, foundUpvalue, "inner function must load x via load-upvalue envindex=0")
}

// Invariant: bytecode/source-map parity.
func TestBytecodeSourceMapParity(t *testing.T) {
	x := NewTuple([]Value{sym("if"), True, kw("yes"), kw("no")})
	def := mustCompile(t, x, nil)
	assert.Equal(t, len(def.Bytecode), len(def.SourceMap))
}

// Invariant: every local-slot operand is within slotcount-1. We check
// this on a case with several distinct registers in flight (three
// arguments forces push-3's three source operands into use).
func TestRegisterBoundInvariant(t *testing.T) {
	plus := NewAbstract("native-fn", nil)
	env := NewEnv()
	env.Def("+", plus)

	x := NewTuple([]Value{sym("+"), Int(1), Int(2), Int(3)})
	def := mustCompile(t, x, env)

	for _, ins := range def.Bytecode {
		if isImmForm(ins.Op()) {
			continue
		}
		assert.LessOrEqual(t, int32(ins.Dst()), def.SlotCount-1)
		assert.LessOrEqual(t, int32(ins.Src1()), def.SlotCount-1)
		assert.LessOrEqual(t, int32(ins.Src2()), def.SlotCount-1)
	}
}

func TestUnboundSymbolIsCompileError(t *testing.T) {
	res := Compile(sym("nowhere"), NewEnv(), NewConfig(), "test")
	assert.Equal(t, CompileError_, res.Status)
	assert.Contains(t, res.Error, "nowhere")
}

func TestDefBindsNameInCurrentScope(t *testing.T) {
	x := NewTuple([]Value{sym("do"),
		NewTuple([]Value{sym("def"), sym("x"), Int(10)}),
		sym("x"),
	})
	def := mustCompile(t, x, nil)
	ops := opcodes(def)
	assert.Contains(t, ops, OpLoadInteger)
	assert.Contains(t, ops, OpReturn)
}

func TestQuoteReturnsLiteralUnevaluated(t *testing.T) {
	x := NewTuple([]Value{sym("quote"), NewTuple([]Value{sym("a"), sym("b")})})
	def := mustCompile(t, x, nil)
	require.Len(t, def.Constants, 1)
	quoted, ok := def.Constants[0].(*Tuple)
	require.True(t, ok)
	assert.Equal(t, "a", quoted.Items[0].(*Symbol).String())
}

func TestBreakOutsideLoopIsCompileError(t *testing.T) {
	x := NewTuple([]Value{sym("break"), Int(9)})
	res := Compile(x, NewEnv(), NewConfig(), "test")
	assert.Equal(t, CompileError_, res.Status)
	assert.Contains(t, res.Error, "break")
}

func TestBreakInsideFnOutsideWhileIsStillAnError(t *testing.T) {
	x := NewTuple([]Value{sym("fn"), NewTuple(nil), NewTuple([]Value{sym("break")})})
	res := Compile(x, NewEnv(), NewConfig(), "test")
	assert.Equal(t, CompileError_, res.Status, "break must not cross a fn boundary to reach an outer loop")
}

// `while` now lowers to a genuine conditional forward jump over the
// body plus an unconditional backward jump back to the condition test
// — not a single dead-code pass.
func TestWhileEmitsConditionalForwardAndBackwardJump(t *testing.T) {
	x := NewTuple([]Value{sym("while"), True, kw("body")})
	def := mustCompile(t, x, nil)
	assert.Equal(t, []Opcode{OpLoadTrue, OpJumpIfNot, OpJump, OpReturnNil}, opcodes(def))

	jExit := def.Bytecode[1]
	exitTarget := 1 + int(jExit.ImmSigned())
	assert.Equal(t, 3, exitTarget, "jump-if-not must land after the backward jump, at the loop's exit")

	backward := def.Bytecode[2]
	loopTarget := 2 + int(backward.ImmSigned())
	assert.Equal(t, 0, loopTarget, "the loop's unconditional jump must return to the condition test")
}

// `break` jumps to the same exit label as the loop's own
// falsy-condition fallthrough, not to an unconditional function return.
func TestBreakInsideWhileJumpsToLoopExit(t *testing.T) {
	x := NewTuple([]Value{sym("while"), True, NewTuple([]Value{sym("break")})})
	def := mustCompile(t, x, nil)
	assert.Equal(t, []Opcode{OpLoadTrue, OpJumpIfNot, OpJump, OpJump, OpReturnNil}, opcodes(def))

	jExit := def.Bytecode[1]
	exitTarget := 1 + int(jExit.ImmSigned())

	breakJump := def.Bytecode[2]
	breakTarget := 2 + int(breakJump.ImmSigned())

	assert.Equal(t, exitTarget, breakTarget, "break must land exactly where the loop exit does")
	assert.Equal(t, 4, exitTarget)

	backward := def.Bytecode[3]
	loopTarget := 3 + int(backward.ImmSigned())
	assert.Equal(t, 0, loopTarget)
}
