package corelang

import "github.com/samber/lo"

// toSlots compiles each of vals independently (in a fresh default
// FormOpts) into its own Slot, in order — the per-argument result
// slots later get pushed onto the VM's argument stack before a call
// or a container constructor.
func (c *Compiler) toSlots(vals []Value) []Slot {
	sub := defaultFormOpts()
	return lo.Map(vals, func(v Value, _ int) Slot {
		return c.compileValue(sub, v)
	})
}

// liveSlots filters out slots that own no register (constants, refs,
// named bindings), leaving only the transient registers freeSlots
// actually needs to release.
func liveSlots(slots []Slot) []Slot {
	return lo.Filter(slots, func(s Slot, _ int) bool {
		return s.Flags&(SlotConstant|SlotRef|SlotNamed) == 0 && s.EnvIndex < 0
	})
}

// toSlotsKV compiles a struct/table's key/value pairs into a flat
// slot list (key0, value0, key1, value1, ...), iterating in the
// source's canonical bucket order.
func (c *Compiler) toSlotsKV(kv *kvTable) []Slot {
	var out []Slot
	sub := defaultFormOpts()
	kv.each(func(k, v Value) {
		out = append(out, c.compileValue(sub, k))
		out = append(out, c.compileValue(sub, v))
	})
	return out
}

// pushSlots emits the push-3/push-2/push sequence that loads slots
// onto the VM's argument stack in the fewest instructions, 3 registers
// per push-3 and a trailing push-2/push for the remainder.
func (c *Compiler) pushSlots(slots []Slot) {
	i := 0
	for ; i+2 < len(slots); i += 3 {
		a := c.materialize(slots[i])
		b := c.materialize(slots[i+1])
		cc := c.materialize(slots[i+2])
		c.emit(encodeABC(OpPush3, a, b, cc))
	}
	switch len(slots) - i {
	case 2:
		a := c.materialize(slots[i])
		b := c.materialize(slots[i+1])
		c.emit(encodeABC(OpPush2, a, b, 0))
	case 1:
		a := c.materialize(slots[i])
		c.emit(encodeABi(OpPush, a, 0))
	}
}

func (c *Compiler) freeSlots(slots []Slot) {
	for _, s := range liveSlots(slots) {
		c.freeSlot(s)
	}
}

// call compiles a function application: push the evaluated arguments,
// then emit a tailcall (if opts asks for tail position, discarding any
// result slot — the VM's tailcall never returns to this frame) or a
// regular call into a fresh/hinted target register.
//
// Grounded on original_source/src/core/compile.c:dstc_call. The
// original also consults a per-cfunction optimizer table before
// falling back to a plain call; that table lives in the out-of-scope
// VM runtime, so this always takes the plain-call path.
func (c *Compiler) call(opts FormOpts, slots []Slot, fun Slot) Slot {
	c.pushSlots(slots)

	var ret Slot
	if opts.Tail {
		reg := c.materialize(fun)
		c.emit(encodeABi(OpTailcall, reg, 0))
		ret = CSlot(NilValue)
		ret.Flags = SlotReturned
	} else {
		ret = c.gettarget(opts)
		target := c.materializeTargetReg(ret)
		funReg := c.materialize(fun)
		c.emit(encodeABC(OpCall, target, funReg, 0))
		ret.Index = int32(target)
	}
	c.freeSlots(slots)
	return ret
}

// maker compiles a container literal: push its element slots, then
// emit the single constructor opcode that builds the container from
// them into a fresh/hinted target register.
func (c *Compiler) maker(opts FormOpts, slots []Slot, op Opcode) Slot {
	c.pushSlots(slots)
	c.freeSlots(slots)
	ret := c.gettarget(opts)
	target := c.materializeTargetReg(ret)
	c.emit(encodeABi(op, target, 0))
	ret.Index = int32(target)
	return ret
}

func (c *Compiler) compileArray(opts FormOpts, a *Array) Slot {
	return c.maker(opts, c.toSlots(a.Items), OpMakeArray)
}

func (c *Compiler) compileKVCtor(opts FormOpts, kv interface{ eachable() *kvTable }, op Opcode) Slot {
	return c.maker(opts, c.toSlotsKV(kv.eachable()), op)
}

func (s *Struct) eachable() *kvTable { return s.kv }
func (t *Table) eachable() *kvTable  { return t.kv }

func (c *Compiler) compileBufferCtor(opts FormOpts, b *Buffer) Slot {
	asString := NewString(b.Bytes)
	return c.maker(opts, c.toSlots([]Value{asString}), OpMakeBuffer)
}
