package corelang

// specialForm pairs a name with the handler that compiles its argument
// list directly, bypassing the normal call-compilation path. Grounded
// on original_source/src/compiler/compile.h's DstSpecial and
// src/core/compile.c:macroexpand1's special-form lookup.
type specialForm struct {
	Name    string
	Compile func(c *Compiler, opts FormOpts, args []Value) Slot
}

var specialFormTable = map[string]*specialForm{}

func registerSpecial(name string, fn func(c *Compiler, opts FormOpts, args []Value) Slot) {
	specialFormTable[name] = &specialForm{Name: name, Compile: fn}
}

func lookupSpecial(name string) *specialForm { return specialFormTable[name] }

func init() {
	registerSpecial("def", compileDef)
	registerSpecial("var", compileVar)
	registerSpecial("set", compileSet)
	registerSpecial("if", compileIf)
	registerSpecial("do", compileDo)
	registerSpecial("while", compileWhile)
	registerSpecial("fn", compileFn)
	registerSpecial("quote", compileQuote)
	registerSpecial("quasiquote", compileQuasiquote)
	registerSpecial("unquote", compileUnquoteTopLevel)
	registerSpecial("splice", compileSpliceTopLevel)
	registerSpecial("break", compileBreak)
}

func isFalsy(v Value) bool {
	switch x := v.(type) {
	case Nil:
		return true
	case Bool:
		return !bool(x)
	default:
		return false
	}
}

// compileDef binds args[0] (a plain symbol — destructuring patterns
// are not supported by this dialect) to the compiled value of args[1]
// in the current lexical scope.
func compileDef(c *Compiler, opts FormOpts, args []Value) Slot {
	if len(args) != 2 {
		c.cerror("def expects exactly 2 arguments")
		return CSlot(NilValue)
	}
	sym, ok := args[0].(*Symbol)
	if !ok {
		c.cerror("def target must be a symbol")
		return CSlot(NilValue)
	}
	target := Slot{Index: c.scope.RA.AllocFar(), EnvIndex: -1}
	valOpts := FormOpts{Hint: &target}
	slot := c.compileValue(valOpts, args[1])
	slot.Flags |= SlotNamed
	c.nameSlot(sym.String(), slot)
	return slot
}

// compileVar is identical to compileDef except the bound slot is
// flagged mutable so a later `set` on the same symbol is accepted.
func compileVar(c *Compiler, opts FormOpts, args []Value) Slot {
	if len(args) != 2 {
		c.cerror("var expects exactly 2 arguments")
		return CSlot(NilValue)
	}
	sym, ok := args[0].(*Symbol)
	if !ok {
		c.cerror("var target must be a symbol")
		return CSlot(NilValue)
	}
	target := Slot{Index: c.scope.RA.AllocFar(), EnvIndex: -1}
	valOpts := FormOpts{Hint: &target}
	slot := c.compileValue(valOpts, args[1])
	slot.Flags |= SlotMutable | SlotNamed
	c.nameSlot(sym.String(), slot)
	return slot
}

// compileSet reassigns an already-bound var. Resolving across a
// function boundary yields a slot with EnvIndex >= 0; writing to that
// case emits set-upvalue. A local var is just recompiled with the
// existing register as the hint, which has the same effect as an
// assignment.
func compileSet(c *Compiler, opts FormOpts, args []Value) Slot {
	if len(args) != 2 {
		c.cerror("set expects exactly 2 arguments")
		return CSlot(NilValue)
	}
	sym, ok := args[0].(*Symbol)
	if !ok {
		c.cerror("set target must be a symbol")
		return CSlot(NilValue)
	}
	target := c.Resolve(sym.String())
	if target.Flags&SlotMutable == 0 {
		c.cerror("cannot set a non-var binding")
		return CSlot(NilValue)
	}
	if target.EnvIndex >= 0 {
		reg := c.compileValue(defaultFormOpts(), args[1])
		src := c.materialize(reg)
		imm := uint16(target.EnvIndex)<<8 | uint16(uint8(target.Index))
		c.emit(encodeABi(OpSetUpvalue, src, imm))
		return target
	}
	hinted := target
	return c.compileValue(FormOpts{Hint: &hinted}, args[1])
}

// compileIf implements the full two-branch conditional. A compile-time
// -constant condition still picks its live branch outright and throws
// the other away (matching spec.md §8's dead-code-purity scenario
// exactly, and never emitting a branch whose condition is already
// known). A non-constant condition compiles a genuine runtime fork: a
// jump-if-not over the "then" branch straight to "else", and, outside
// tail position, an unconditional jump from the end of "then" past
// "else", so only one side ever executes (in tail position each branch
// already ends in its own return, so no such jump is emitted). Grounded on
// original_source/src/include/janet/janet.h's JOP_JUMP/JOP_JUMP_IF_NOT
// (ground truth for how the original resolves a non-constant `if`,
// confirming this dialect's opcode set is meant to carry a jump even
// though spec.md §6.4's instruction list never named one explicitly).
// See DESIGN.md.
func compileIf(c *Compiler, opts FormOpts, args []Value) Slot {
	if len(args) != 2 && len(args) != 3 {
		c.cerror("if expects 2 or 3 arguments")
		return CSlot(NilValue)
	}
	cond := args[0]
	thenForm := args[1]
	var elseForm Value = NilValue
	if len(args) == 3 {
		elseForm = args[2]
	}

	condSlot := c.compileValue(defaultFormOpts(), cond)
	if condSlot.Flags&SlotConstant != 0 {
		c.freeSlot(condSlot)
		if isFalsy(condSlot.Constant) {
			c.throwaway(defaultFormOpts(), thenForm)
			return c.compileValue(opts, elseForm)
		}
		c.throwaway(defaultFormOpts(), elseForm)
		return c.compileValue(opts, thenForm)
	}

	condReg := c.materialize(condSlot)
	c.freeSlot(condSlot)
	jElse := c.emitJump(OpJumpIfNot, condReg)

	branchOpts := opts
	if !opts.Tail && opts.Hint == nil {
		target := Slot{Index: c.scope.RA.AllocFar(), EnvIndex: -1, Constant: NilValue}
		branchOpts = FormOpts{Hint: &target}
	}

	thenSlot := c.compileValue(branchOpts, thenForm)

	jEnd := -1
	if !opts.Tail {
		jEnd = c.emitJump(OpJump, 0)
	}
	c.patchJump(jElse)

	elseSlot := c.compileValue(branchOpts, elseForm)

	if !opts.Tail {
		c.patchJump(jEnd)
		return elseSlot
	}
	return thenSlot
}

// compileDo sequences a block of forms, compiling all but the last
// for effect only (their slots are freed immediately) and forwarding
// opts (tail position, hint) to the last.
func compileDo(c *Compiler, opts FormOpts, args []Value) Slot {
	if len(args) == 0 {
		return c.compileValue(opts, NilValue)
	}
	for _, form := range args[:len(args)-1] {
		s := c.compileValue(defaultFormOpts(), form)
		c.freeSlot(s)
	}
	return c.compileValue(opts, args[len(args)-1])
}

// compileWhile lowers to a real backward-jumping loop: test the
// condition, jump-if-not past the body to the exit, compile the body
// for effect, jump back to the test, and patch the exit label for
// both the falsy-condition fallthrough and any `break` inside the
// body. Janet's compiler sometimes lowers `while` to a tail-recursive
// IIFE instead when the body closes over a mutated local (see
// DESIGN.md's Open Question decision) — that alternate transform is
// still not implemented, only the plain backward-jump form, which is
// sufficient for every case this dialect's opcode set can express.
// The ScopeClosure flag is still set by Resolve on a scope whose
// binding a nested fn captures, and PopScope carries it up to the
// enclosing scopes; nothing else in this package reads it.
func compileWhile(c *Compiler, opts FormOpts, args []Value) Slot {
	if len(args) < 1 {
		c.cerror("while expects a condition")
		return CSlot(NilValue)
	}
	frame := &loopFrame{}
	c.loops = append(c.loops, frame)
	c.PushScope(0, "while")

	loopStart := len(c.buffer)
	condSlot := c.compileValue(defaultFormOpts(), args[0])
	condReg := c.materialize(condSlot)
	c.freeSlot(condSlot)
	jExit := c.emitJump(OpJumpIfNot, condReg)

	for _, form := range args[1:] {
		s := c.compileValue(defaultFormOpts(), form)
		c.freeSlot(s)
	}
	c.emitJumpTo(OpJump, 0, loopStart)

	c.patchJump(jExit)
	for _, idx := range frame.breaks {
		c.patchJump(idx)
	}

	c.PopScope()
	c.loops = c.loops[:len(c.loops)-1]
	return c.compileValue(opts, NilValue)
}

// compileFn compiles a function literal: args[0] is a Tuple or Array
// of parameter symbols, args[1:] is the body (last form in tail
// position). The resulting FuncDef is appended to the enclosing
// scope's Defs and returned as a constant Abstract("funcdef", def) —
// this dialect's opcode set has no dedicated closure-creation
// instruction, so a function literal materializes exactly like any
// other constant, via load-constant; the (out-of-scope) VM is
// expected to recognize the "funcdef" Abstract kind and build a real
// closure from it using FuncDef.Environments.
func compileFn(c *Compiler, opts FormOpts, args []Value) Slot {
	if len(args) < 1 {
		c.cerror("fn expects a parameter list")
		return CSlot(NilValue)
	}
	var params []Value
	switch p := args[0].(type) {
	case *Tuple:
		params = p.Items
	case *Array:
		params = p.Items
	default:
		c.cerror("fn parameter list must be a tuple or array")
		return CSlot(NilValue)
	}

	c.loops = append(c.loops, &loopFrame{funcBoundary: true})
	c.PushScope(ScopeFunction, "fn")
	for _, p := range params {
		sym, ok := p.(*Symbol)
		if !ok {
			c.cerror("fn parameter must be a symbol")
			continue
		}
		reg := c.scope.RA.AllocNear()
		c.nameSlot(sym.String(), Slot{Index: reg, EnvIndex: -1})
	}

	body := args[1:]
	if len(body) == 0 {
		c.emitReturn(CSlot(NilValue))
	} else {
		for _, form := range body[:len(body)-1] {
			s := c.compileValue(defaultFormOpts(), form)
			c.freeSlot(s)
		}
		c.compileValue(FormOpts{Tail: true}, body[len(body)-1])
	}

	def := c.popFuncDef()
	c.loops = c.loops[:len(c.loops)-1]
	c.scope.Defs = append(c.scope.Defs, def)
	return CSlot(NewAbstract("funcdef", def))
}

func compileQuote(c *Compiler, opts FormOpts, args []Value) Slot {
	if len(args) != 1 {
		c.cerror("quote expects exactly 1 argument")
		return CSlot(NilValue)
	}
	return CSlot(args[0])
}

// compileQuasiquote returns the template verbatim (like quote) when it
// contains no unquote/splice escapes. Otherwise it rebuilds the
// template as an array, evaluating each (unquote x)/(splice x) escape
// in place and leaving every other element as a literal constant —
// this dialect's required opcode set has no make-tuple instruction
// (only make-array/make-struct/make-table/make-buffer), so an
// escape-bearing template always reconstructs as an array rather than
// preserving a tuple's shape. See DESIGN.md. Only escapes that are
// direct elements of the template are evaluated; an escape nested
// deeper stays unevaluated inside its literal element, and a splice
// escape contributes its value as a single element.
func compileQuasiquote(c *Compiler, opts FormOpts, args []Value) Slot {
	if len(args) != 1 {
		c.cerror("quasiquote expects exactly 1 argument")
		return CSlot(NilValue)
	}
	tmpl := args[0]
	if !containsEscape(tmpl) {
		return CSlot(tmpl)
	}
	items := quasiItems(tmpl)
	slots := make([]Slot, len(items))
	for i, it := range items {
		if t, ok := it.(*Tuple); ok && isEscapeForm(t) {
			slots[i] = c.compileValue(defaultFormOpts(), it)
		} else {
			slots[i] = CSlot(it)
		}
	}
	return c.maker(opts, slots, OpMakeArray)
}

func quasiItems(tmpl Value) []Value {
	switch t := tmpl.(type) {
	case *Tuple:
		return t.Items
	case *Array:
		return t.Items
	default:
		return []Value{tmpl}
	}
}

func containsEscape(v Value) bool {
	switch t := v.(type) {
	case *Tuple:
		if isEscapeForm(t) {
			return true
		}
		for _, it := range t.Items {
			if containsEscape(it) {
				return true
			}
		}
	case *Array:
		for _, it := range t.Items {
			if containsEscape(it) {
				return true
			}
		}
	}
	return false
}

func isEscapeForm(t *Tuple) bool {
	if len(t.Items) == 0 {
		return false
	}
	sym, ok := t.Items[0].(*Symbol)
	if !ok {
		return false
	}
	return sym.String() == "unquote" || sym.String() == "splice"
}

// compileUnquoteTopLevel and compileSpliceTopLevel handle `unquote`/
// `splice` used outside of a quasiquote template. This dialect has no
// reader-macro sigil for either (see DESIGN.md's comma/semicolon
// decision); both are reachable only by name, and outside a
// quasiquote template the most coherent reading of "unquote/splice
// this value" is simply to evaluate it normally.
func compileUnquoteTopLevel(c *Compiler, opts FormOpts, args []Value) Slot {
	if len(args) != 1 {
		c.cerror("unquote expects exactly 1 argument")
		return CSlot(NilValue)
	}
	return c.compileValue(opts, args[0])
}

func compileSpliceTopLevel(c *Compiler, opts FormOpts, args []Value) Slot {
	if len(args) != 1 {
		c.cerror("splice expects exactly 1 argument")
		return CSlot(NilValue)
	}
	return c.compileValue(opts, args[0])
}

// compileBreak compiles its optional value, for side effects and type
// checking, and jumps to the exit of the nearest enclosing `while` —
// compileWhile patches this jump once it knows where that exit lands.
// A break outside of any loop, or one that would have to cross a `fn`
// boundary to find one, is a compile error.
func compileBreak(c *Compiler, opts FormOpts, args []Value) Slot {
	if len(args) > 1 {
		c.cerror("break expects at most 1 argument")
		return CSlot(NilValue)
	}
	frame := c.currentLoop()
	if frame == nil {
		c.cerror("break used outside of a loop")
		return CSlot(NilValue)
	}
	var val Value = NilValue
	if len(args) == 1 {
		val = args[0]
	}
	s := c.compileValue(defaultFormOpts(), val)
	c.freeSlot(s)
	idx := c.emitJump(OpJump, 0)
	frame.breaks = append(frame.breaks, idx)
	return CSlot(NilValue)
}
