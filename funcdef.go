package corelang

// FuncDef is the immutable, ready-to-execute product of compiling one
// function body: its bytecode, the constants and nested function
// templates it references, and how many environments (upvalue
// sources) it needs wired up when instantiated into a live closure by
// the (out-of-scope) VM. Grounded on
// original_source/src/core/compile.c:dstc_pop_funcdef and the
// DstFuncDef fields it populates.
type FuncDef struct {
	Name string

	Environments []int32
	Constants    []Value
	Defs         []*FuncDef

	Bytecode  []Instruction
	SourceMap []Location

	Source    string
	SlotCount int32
	NeedsEnv  bool
}

// popFuncDef finishes the compiler's current (function) scope into a
// FuncDef: it snapshots the scope's constants/envs/nested-defs, carves
// the tail of the shared instruction buffer that belongs to this
// function out into its own slice, and then pops the scope.
func (c *Compiler) popFuncDef() *FuncDef {
	scope := c.scope
	if scope.Flags&ScopeFunction == 0 {
		panic("expected function scope")
	}

	def := &FuncDef{
		SlotCount:    scope.RA.Max() + 1,
		Environments: append([]int32(nil), scope.Envs...),
		Constants:    append([]Value(nil), scope.Consts...),
		Defs:         append([]*FuncDef(nil), scope.Defs...),
		Source:       c.source,
		NeedsEnv:     scope.Flags&ScopeEnv != 0,
	}

	start := scope.BytecodeStart
	def.Bytecode = append([]Instruction(nil), c.buffer[start:]...)
	def.SourceMap = append([]Location(nil), c.sourceMap[start:]...)
	c.buffer = c.buffer[:start]
	c.sourceMap = c.sourceMap[:start]

	c.PopScope()
	return def
}
