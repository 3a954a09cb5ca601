package corelang

import "fmt"

// FormOpts carries per-call compilation context down through
// compileValue: whether the result must be returned (tail position)
// and/or copied into a caller-chosen target slot. Grounded on
// original_source/src/compiler/compile.h's DstFopts.
type FormOpts struct {
	Tail bool
	Hint *Slot // nil means "no hint, pick any target"
}

func defaultFormOpts() FormOpts { return FormOpts{} }

// CompileStatus is the outcome of a Compiler.Compile call.
type CompileStatus int

const (
	CompileOK CompileStatus = iota
	CompileError_
)

// CompileResult is everything Compiler.Compile hands back: either a
// finished FuncDef, or an error with the source position it occurred
// at (and, for macro-expansion failures, the fiber/value the failing
// macro produced).
type CompileResult struct {
	Status      CompileStatus
	FuncDef     *FuncDef
	Error       string
	ErrorLine   int
	ErrorColumn int
	MacroFiber  any
}

// Compiler lowers a parsed Value tree into a FuncDef. One Compiler
// compiles exactly one top-level form (spec.md §5); create a new one
// per call to Compile. Grounded on
// original_source/src/core/compile.c's DstCompiler and dst_compile.
type Compiler struct {
	scope *Scope
	env   *Env
	cfg   *Config

	buffer    []Instruction
	sourceMap []Location

	currentMapping Location
	source         string

	recursionGuard int
	macroCap       int

	errored    bool
	errMessage string
	errMapping Location
	macroFiber any

	loops []*loopFrame
}

// loopFrame tracks one lexically enclosing `while`, so `break` can
// find the nearest one and record a pending jump to its exit. A
// funcBoundary frame marks where a `fn` body starts: break must not
// search past it into an outer function's loop.
type loopFrame struct {
	breaks       []int
	funcBoundary bool
}

// NewCompiler returns a compiler that resolves globals against env and
// uses cfg's tunables (nil falls back to defaults). source is an
// optional file name attached to the resulting FuncDef.
func NewCompiler(env *Env, cfg *Config, source string) *Compiler {
	if cfg == nil {
		cfg = NewConfig()
	}
	if env == nil {
		env = NewEnv()
	}
	return &Compiler{
		env:            env,
		cfg:            cfg,
		source:         source,
		recursionGuard: cfg.GetInt("compiler.max_recursion"),
		macroCap:       cfg.GetInt("compiler.max_macro_expand"),
	}
}

// Compile lowers x into a top-level thunk FuncDef named "_thunk",
// matching original_source's dst_compile/dst_compile's naming of the
// implicit top-level form.
func Compile(x Value, env *Env, cfg *Config, source string) CompileResult {
	c := NewCompiler(env, cfg, source)
	c.PushScope(ScopeFunction|ScopeTop, "root")

	opts := FormOpts{Tail: true}
	c.compileValue(opts, x)

	if !c.errored {
		def := c.popFuncDef()
		def.Name = "_thunk"
		return CompileResult{Status: CompileOK, FuncDef: def}
	}

	c.errMapping = c.currentMapping
	c.PopScope()
	return CompileResult{
		Status:      CompileError_,
		Error:       c.errMessage,
		ErrorLine:   c.errMapping.Line,
		ErrorColumn: c.errMapping.Column,
		MacroFiber:  c.macroFiber,
	}
}

func (c *Compiler) error(msg string) {
	if c.errored {
		return // first error wins
	}
	c.errored = true
	c.errMessage = msg
	c.errMapping = c.currentMapping
}

func (c *Compiler) cerror(msg string) { c.error(msg) }

// emit appends one instruction, tagged with the compiler's current
// source position for later bytecode/source-map parity.
func (c *Compiler) emit(ins Instruction) {
	c.buffer = append(c.buffer, ins)
	c.sourceMap = append(c.sourceMap, c.currentMapping)
}

// emitJump emits op (OpJump or OpJumpIfNot, cond only meaningful for
// the latter) with a placeholder offset and returns the instruction's
// index so a later patchJump call can fill in its target.
func (c *Compiler) emitJump(op Opcode, cond uint8) int {
	idx := len(c.buffer)
	c.emit(encodeABi(op, cond, 0))
	return idx
}

// emitJumpTo emits a jump whose target is already known (a backward
// branch to the top of a loop).
func (c *Compiler) emitJumpTo(op Opcode, cond uint8, target int) {
	idx := len(c.buffer)
	c.emit(encodeABi(op, cond, uint16(int16(target-idx))))
}

// patchJump fills in idx's offset so it lands on the current end of
// the instruction buffer. Safe to call more than once for the same
// target as long as nothing has been emitted in between.
func (c *Compiler) patchJump(idx int) {
	target := len(c.buffer)
	ins := c.buffer[idx]
	c.buffer[idx] = encodeABi(ins.Op(), ins.Dst(), uint16(int16(target-idx)))
}

// currentLoop returns the innermost enclosing `while`'s loopFrame, or
// nil if there isn't one before either the loop stack or a `fn`
// boundary is reached — a `break` inside a nested function body must
// not target an outer function's loop.
func (c *Compiler) currentLoop() *loopFrame {
	if len(c.loops) == 0 {
		return nil
	}
	top := c.loops[len(c.loops)-1]
	if top.funcBoundary {
		return nil
	}
	return top
}

// materialize brings a Slot's value into a near (0-255 addressable)
// register, emitting whatever load/move is needed, and returns that
// register number. Constants are loaded via the appropriate load-*
// opcode; upvalues via load-upvalue (envindex and far-slot index
// packed into the 16-bit immediate, high then low byte); already-near
// locals are used directly; far locals are brought down with
// move-far.
func (c *Compiler) materialize(s Slot) uint8 {
	if s.Flags&SlotConstant != 0 {
		reg := c.scope.RA.AllocNear()
		switch v := s.Constant.(type) {
		case nil:
			c.emit(encodeABi(OpLoadNil, uint8(reg), 0))
		case Nil:
			c.emit(encodeABi(OpLoadNil, uint8(reg), 0))
		case Bool:
			if v {
				c.emit(encodeABi(OpLoadTrue, uint8(reg), 0))
			} else {
				c.emit(encodeABi(OpLoadFalse, uint8(reg), 0))
			}
		case Int:
			if v >= -32768 && v <= 32767 {
				c.emit(encodeABi(OpLoadInteger, uint8(reg), uint16(int16(v))))
				return uint8(reg)
			}
			idx := c.addConstant(v)
			c.emit(encodeABi(OpLoadConstant, uint8(reg), uint16(idx)))
		default:
			idx := c.addConstant(s.Constant)
			c.emit(encodeABi(OpLoadConstant, uint8(reg), uint16(idx)))
		}
		return uint8(reg)
	}
	if s.EnvIndex >= 0 {
		reg := c.scope.RA.AllocNear()
		imm := uint16(s.EnvIndex)<<8 | uint16(uint8(s.Index))
		c.emit(encodeABi(OpLoadUpvalue, uint8(reg), imm))
		return uint8(reg)
	}
	if s.Index >= 0 && s.Index <= 0xff {
		return uint8(s.Index)
	}
	reg := c.scope.RA.AllocNear()
	c.emit(encodeABi(OpMoveFar, uint8(reg), uint16(s.Index)))
	return uint8(reg)
}

// addConstant interns v in the current function scope's constant
// pool, enforcing the configured cap.
func (c *Compiler) addConstant(v Value) int {
	for i, existing := range c.scope.Consts {
		if valuesEqual(existing, v) {
			return i
		}
	}
	if len(c.scope.Consts) >= c.cfg.GetInt("compiler.max_constants") {
		c.cerror("too many constants")
		return 0
	}
	c.scope.Consts = append(c.scope.Consts, v)
	return len(c.scope.Consts) - 1
}

// freeSlot releases a slot's register, if it owns one — constants,
// refs and named (def/var) slots never do.
func (c *Compiler) freeSlot(s Slot) {
	if s.Flags&(SlotConstant|SlotRef|SlotNamed) != 0 {
		return
	}
	if s.EnvIndex >= 0 {
		return
	}
	c.scope.RA.Free(s.Index)
}

// gettarget picks the register a value should land in: the caller's
// hint if it's a usable near local, otherwise a fresh far slot.
func (c *Compiler) gettarget(opts FormOpts) Slot {
	if opts.Hint != nil && opts.Hint.EnvIndex < 0 && opts.Hint.Index >= 0 && opts.Hint.Index <= 0xff {
		return *opts.Hint
	}
	return Slot{Index: c.scope.RA.AllocFar(), EnvIndex: -1, Constant: NilValue}
}

func (c *Compiler) emitReturn(s Slot) Slot {
	if s.Flags&SlotReturned != 0 {
		return s
	}
	if s.Flags&SlotConstant != 0 {
		if _, ok := s.Constant.(Nil); ok {
			c.emit(encodeABi(OpReturnNil, 0, 0))
			s.Flags |= SlotReturned
			return s
		}
	}
	reg := c.materialize(s)
	c.emit(encodeABi(OpReturn, reg, 0))
	s.Flags |= SlotReturned
	return s
}

// throwaway compiles x in a scope flagged ScopeUnused purely to check
// that it is well formed (reporting any real error), then discards
// whatever bytecode it emitted. Used for the branch of an `if` whose
// condition is a known compile-time constant. Grounded on
// original_source/src/core/compile.c:dstc_throwaway.
func (c *Compiler) throwaway(opts FormOpts, x Value) {
	bufStart := len(c.buffer)
	mapStart := len(c.sourceMap)
	c.PushScope(ScopeUnused, "unused")
	c.compileValue(opts, x)
	c.PopScope()
	c.buffer = c.buffer[:bufStart]
	c.sourceMap = c.sourceMap[:mapStart]
}

// macroexpand1 tries one round of macro expansion on x: if x is a
// non-empty tuple whose head names a special form, that special form
// is returned (and expansion stops); if the head names a bound macro,
// the macro is invoked and its result replaces x for another round.
// Anything else isn't expandable at all.
func (c *Compiler) macroexpand1(x Value) (out Value, spec *specialForm, expanded bool) {
	tup, ok := x.(*Tuple)
	if !ok || len(tup.Items) == 0 {
		return x, nil, false
	}
	if tup.Source.Line > 0 {
		c.currentMapping = Location{Line: tup.Source.Line, Column: tup.Source.Column}
	}
	head, ok := tup.Items[0].(*Symbol)
	if !ok {
		return x, nil, false
	}
	if s := lookupSpecial(head.String()); s != nil {
		return x, s, false
	}
	kind, val := c.env.Resolve(head.String())
	if kind != BindingMacro {
		return x, nil, false
	}
	abs, ok := val.(*Abstract)
	if !ok {
		return x, nil, false
	}
	callable, ok := abs.Handle.(Callable)
	if !ok {
		return x, nil, false
	}
	result, fiber, signal := callable.Call(tup.Items[1:])
	if signal != SignalOK {
		c.macroFiber = fiber
		c.error(fmt.Sprintf("(macro) %s", x.String()))
		return x, nil, true
	}
	return result, nil, true
}

// compileValue is the dispatch at the heart of the compiler: macro
// expand, route special forms to their handler, and otherwise lower
// the value by its own runtime type (symbol lookup, tuple call,
// literal container constructors, or a bare constant).
//
// Grounded on original_source/src/core/compile.c:dstc_value.
func (c *Compiler) compileValue(opts FormOpts, x Value) Slot {
	lastMapping := c.currentMapping
	c.recursionGuard--

	if c.errored {
		return CSlot(NilValue)
	}
	if c.recursionGuard <= 0 {
		c.cerror("recursed too deeply")
		return CSlot(NilValue)
	}
	defer func() { c.recursionGuard++ }()

	var spec *specialForm
	budget := c.macroCap
	for budget > 0 && !c.errored {
		var expanded bool
		x, spec, expanded = c.macroexpand1(x)
		if !expanded {
			break
		}
		budget--
	}
	if budget == 0 {
		c.cerror("recursed too deeply in macro expansion")
		return CSlot(NilValue)
	}

	var ret Slot
	if spec != nil {
		tup := x.(*Tuple)
		ret = spec.Compile(c, opts, tup.Items[1:])
	} else {
		switch v := x.(type) {
		case *Tuple:
			if len(v.Items) == 0 {
				ret = CSlot(x)
			} else {
				sub := defaultFormOpts()
				head := c.compileValue(sub, v.Items[0])
				ret = c.call(opts, c.toSlots(v.Items[1:]), head)
				c.freeSlot(head)
			}
		case *Symbol:
			ret = c.compileSymbol(v)
		case *Array:
			ret = c.compileArray(opts, v)
		case *Struct:
			ret = c.compileKVCtor(opts, v, OpMakeStruct)
		case *Table:
			ret = c.compileKVCtor(opts, v, OpMakeTable)
		case *Buffer:
			ret = c.compileBufferCtor(opts, v)
		default:
			ret = CSlot(x)
		}
	}

	if c.errored {
		return CSlot(NilValue)
	}
	c.currentMapping = lastMapping
	if opts.Tail {
		ret = c.emitReturn(ret)
	}
	if opts.Hint != nil {
		ret = c.copyToHint(*opts.Hint, ret)
	}
	return ret
}

// copyToHint materializes src and, if it isn't already sitting in the
// hinted register, moves it there.
func (c *Compiler) copyToHint(hint, src Slot) Slot {
	reg := c.materialize(src)
	if hint.EnvIndex < 0 && hint.Index >= 0 && hint.Index <= 0xff && uint8(hint.Index) == reg {
		return hint
	}
	target := c.materializeTargetReg(hint)
	c.emit(encodeABC(OpMoveNear, target, reg, 0))
	hint.Index = int32(target)
	return hint
}

func (c *Compiler) materializeTargetReg(s Slot) uint8 {
	if s.Index >= 0 && s.Index <= 0xff {
		return uint8(s.Index)
	}
	return uint8(c.scope.RA.AllocNear())
}

func (c *Compiler) compileSymbol(sym *Symbol) Slot {
	if sym.IsKeyword() {
		return CSlot(sym)
	}
	return c.Resolve(sym.String())
}
