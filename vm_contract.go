package corelang

// The bytecode VM and garbage collector are out of scope for this
// package (spec.md §1); Callable and Heap are the minimal interfaces
// the compiler needs from them, so macro expansion and function
// allocation can be wired to a real VM without this package importing
// one.

// Signal mirrors a fiber's completion status after running a macro
// body, matching original_source/src/core/compile.c's DstSignal/
// DST_SIGNAL_OK check in macroexpand1.
type Signal int

const (
	SignalOK Signal = iota
	SignalError
)

// Callable is anything the compiler can invoke during macro expansion:
// a macro's argument tuple goes in, a result value and a signal come
// back out. The host VM supplies the implementation.
type Callable interface {
	Call(args []Value) (result Value, fiber any, signal Signal)
}

// Heap is the allocation surface the compiler needs when lowering
// array/struct/table/buffer literals and function literals into the
// VM's live representation. Nothing in this package calls it directly
// today — FuncDef is handed back as plain data — but the interface
// documents the seam a real VM integration would plug into.
type Heap interface {
	NewClosure(def *FuncDef, envs []any) Value
}
