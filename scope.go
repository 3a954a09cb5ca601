package corelang

import "github.com/samber/lo"

// Scope flags. Grounded on compile.h's DST_SCOPE_* bits, plus Closure
// which that header's excerpt doesn't enumerate but compile.c reads
// and writes (DST_SCOPE_CLOSURE) when propagating a while-loop's
// closure-creation fact up to its parent scope.
const (
	ScopeFunction = 1 << 0
	ScopeEnv      = 1 << 1
	ScopeTop      = 1 << 2
	ScopeUnused   = 1 << 3
	ScopeClosure  = 1 << 4
)

// Slot flag bits, from compile.h's DST_SLOT_* constants.
const (
	SlotConstant = 1 << 16
	SlotNamed    = 1 << 17
	SlotMutable  = 1 << 18
	SlotRef      = 1 << 19
	SlotReturned = 1 << 20
)

// SlotTypeAny is the "accepts any primitive type" mask used as the
// default DstFopts.flags/DstSlot.flags value.
const SlotTypeAny = 0xffff

// Slot describes where a compiled value lives: a register index (near
// or far), an upvalue reference, or a constant folded directly into
// the instruction stream.
type Slot struct {
	Index    int32
	EnvIndex int32 // -1 means local to the current function
	Flags    uint32
	Constant Value
}

// CSlot wraps a compile-time constant as a stateless slot — it needs
// no register and nothing ever frees it.
func CSlot(x Value) Slot {
	return Slot{Index: -1, EnvIndex: -1, Flags: SlotConstant, Constant: x}
}

func (s Slot) IsConstant() bool { return s.Flags&SlotConstant != 0 }

type symPair struct {
	sym  string
	slot Slot
	keep bool
}

// Scope is one lexical nesting level of the compiler: a register
// allocator, a symbol table (linear, scanned newest-first so shadowing
// works), a constant pool, nested FuncDefs, and the list of enclosing
// environments this scope's function needs captured. Grounded on
// original_source/src/compiler/compile.h's DstScope and
// src/core/compile.c's dstc_scope/dstc_popscope/dstc_resolve.
type Scope struct {
	Name   string
	Parent *Scope
	Child  *Scope

	Consts []Value
	Syms   []symPair
	RA     *RegisterAllocator
	Defs   []*FuncDef
	Envs   []int32

	SelfConst     int32
	BytecodeStart int32
	Flags         int
}

// PushScope opens a new scope on top of c's current scope and returns
// it. Non-function scopes inherit their parent's register occupancy
// (lexical blocks share a function's register file); function scopes
// start with a fresh allocator.
func (c *Compiler) PushScope(flags int, name string) *Scope {
	s := &Scope{
		Name:          name,
		Flags:         flags,
		SelfConst:     -1,
		BytecodeStart: int32(len(c.buffer)),
		Parent:        c.scope,
	}
	if flags&ScopeFunction == 0 && c.scope != nil {
		s.RA = cloneRegisterAllocator(c.scope.RA)
	} else {
		s.RA = newRegisterAllocator()
	}
	if c.scope != nil {
		c.scope.Child = s
	}
	c.scope = s
	return s
}

// PopScope closes c's current scope, folding anything the child scope
// needs to keep alive (kept upvalue slots, the high-water register
// mark, the propagated closure flag) into its parent.
func (c *Compiler) PopScope() {
	old := c.scope
	parent := old.Parent

	if old.Flags&(ScopeFunction|ScopeUnused) == 0 && parent != nil {
		if old.Flags&ScopeClosure != 0 {
			parent.Flags |= ScopeClosure
		}
		if parent.RA.Max() < old.RA.Max() {
			parent.RA.max = old.RA.Max()
		}
		for _, pair := range old.Syms {
			if !pair.keep {
				continue
			}
			pair.sym = ""
			parent.Syms = append(parent.Syms, pair)
			parent.RA.Touch(pair.slot.Index)
		}
	}

	if parent != nil {
		parent.Child = nil
	}
	c.scope = parent
}

// PopScopeKeepSlot closes the current scope like PopScope, but first
// ensures retslot's register survives into the parent — used when a
// nested form's result slot must remain valid after its scope exits
// (e.g. an if-branch's value feeding the enclosing expression).
func (c *Compiler) PopScopeKeepSlot(retslot Slot) {
	c.PopScope()
	if c.scope != nil && retslot.EnvIndex < 0 && retslot.Index >= 0 {
		c.scope.RA.Touch(retslot.Index)
	}
}

// nameSlot records sym as bound to s in the current scope, flagging
// the slot as named (def/var/function-parameter) so it isn't
// accidentally freed as a transient temporary.
func (c *Compiler) nameSlot(sym string, s Slot) {
	s.Flags |= SlotNamed
	c.scope.Syms = append(c.scope.Syms, symPair{sym: sym, slot: s})
}

// Resolve looks up sym, searching lexical scopes from innermost
// outward and falling back to the global Env. When the symbol is
// found in an enclosing function's scope (not the current one), this
// also threads an upvalue reference through every intermediate
// function scope's Envs list, so each one knows to capture the
// environment chain leading to the binding.
//
// Grounded on original_source/src/core/compile.c:dstc_resolve.
func (c *Compiler) Resolve(sym string) Slot {
	scope := c.scope
	var found *symPair
	var foundScope *Scope
	foundLocal := true
	unused := false

	for scope != nil {
		if scope.Flags&ScopeUnused != 0 {
			unused = true
		}
		for i := len(scope.Syms) - 1; i >= 0; i-- {
			if scope.Syms[i].sym == sym {
				found = &scope.Syms[i]
				foundScope = scope
				goto foundSym
			}
		}
		if scope.Flags&ScopeFunction != 0 {
			foundLocal = false
		}
		scope = scope.Parent
	}

	{
		kind, val := c.env.Resolve(sym)
		switch kind {
		case BindingDef, BindingMacro:
			return CSlot(val)
		case BindingVar:
			ret := CSlot(val)
			ret.Flags |= SlotRef | SlotNamed | SlotMutable | SlotTypeAny
			ret.Flags &^= SlotConstant
			return ret
		default:
			c.cerror("unknown symbol " + sym)
			return CSlot(NilValue)
		}
	}

foundSym:
	ret := found.slot

	if ret.Flags&(SlotConstant|SlotRef) != 0 {
		return ret
	}

	if unused || foundLocal {
		ret.EnvIndex = -1
		return ret
	}

	found.keep = true
	foundScope.Flags |= ScopeClosure
	fnScope := foundScope
	for fnScope != nil && fnScope.Flags&ScopeFunction == 0 {
		fnScope = fnScope.Parent
	}
	fnScope.Flags |= ScopeEnv

	envIndex := int32(-1)
	walk := fnScope.Child
	for walk != nil {
		if walk.Flags&ScopeFunction != 0 {
			if lo.Contains(walk.Envs, envIndex) {
				envIndex = int32(lo.IndexOf(walk.Envs, envIndex))
			} else {
				walk.Envs = append(walk.Envs, envIndex)
				envIndex = int32(len(walk.Envs) - 1)
			}
		}
		walk = walk.Child
	}

	ret.EnvIndex = envIndex
	return ret
}
