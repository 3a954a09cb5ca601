package corelang

import "fmt"

// Opcode identifies a single bytecode instruction. Grounded on
// spec.md §6.4's required opcode set; the VM that executes these is
// out of scope here, so only the encoding surface is implemented.
type Opcode uint8

const (
	OpLoadNil Opcode = iota
	OpLoadTrue
	OpLoadFalse
	OpLoadInteger
	OpLoadConstant
	OpLoadUpvalue
	OpSetUpvalue
	OpMoveNear
	OpMoveFar
	OpGetIndex
	OpPutIndex
	OpPush
	OpPush2
	OpPush3
	OpCall
	OpTailcall
	OpReturn
	OpReturnNil
	OpMakeArray
	OpMakeBuffer
	OpMakeStruct
	OpMakeTable
	OpJump
	OpJumpIfNot
)

var opcodeNames = [...]string{
	OpLoadNil:      "load-nil",
	OpLoadTrue:     "load-true",
	OpLoadFalse:    "load-false",
	OpLoadInteger:  "load-integer",
	OpLoadConstant: "load-constant",
	OpLoadUpvalue:  "load-upvalue",
	OpSetUpvalue:   "set-upvalue",
	OpMoveNear:     "move-near",
	OpMoveFar:      "move-far",
	OpGetIndex:     "get-index",
	OpPutIndex:     "put-index",
	OpPush:         "push",
	OpPush2:        "push-2",
	OpPush3:        "push-3",
	OpCall:         "call",
	OpTailcall:     "tailcall",
	OpReturn:       "return",
	OpReturnNil:    "return-nil",
	OpMakeArray:    "make-array",
	OpMakeBuffer:   "make-buffer",
	OpMakeStruct:   "make-struct",
	OpMakeTable:    "make-table",
	OpJump:         "jump",
	OpJumpIfNot:    "jump-if-not",
}

func (op Opcode) String() string {
	if int(op) < len(opcodeNames) {
		return opcodeNames[op]
	}
	return fmt.Sprintf("op(%d)", op)
}

// Instruction is a single 32-bit bytecode word, packed either as
// {opcode:8, dst:8, src1:8, src2:8} (the "ABC" form) or as
// {opcode:8, dst:8, imm:16} (the "ABi" form). Which form applies is a
// property of the opcode, not the word itself.
type Instruction uint32

func encodeABC(op Opcode, dst, src1, src2 uint8) Instruction {
	return Instruction(uint32(op) | uint32(dst)<<8 | uint32(src1)<<16 | uint32(src2)<<24)
}

func encodeABi(op Opcode, dst uint8, imm uint16) Instruction {
	return Instruction(uint32(op) | uint32(dst)<<8 | uint32(imm)<<16)
}

func (ins Instruction) Op() Opcode  { return Opcode(ins & 0xff) }
func (ins Instruction) Dst() uint8  { return uint8(ins >> 8 & 0xff) }
func (ins Instruction) Src1() uint8 { return uint8(ins >> 16 & 0xff) }
func (ins Instruction) Src2() uint8 { return uint8(ins >> 24 & 0xff) }
func (ins Instruction) Imm() uint16 { return uint16(ins >> 16 & 0xffff) }

// ImmSigned interprets the 16-bit immediate as a signed value, the
// form jump offsets use: OpJump/OpJumpIfNot's imm is the number of
// instructions to add to the jump's own index to reach its target,
// negative for a backward (loop) branch.
func (ins Instruction) ImmSigned() int16 { return int16(ins.Imm()) }

// isImmForm reports whether op packs its operand as a 16-bit immediate
// rather than two 8-bit source registers. Matches exactly how the
// compiler emits each opcode (materialize, emitReturn, call, maker):
// OpMoveNear, OpPush2, OpPush3 and OpCall are the only ABC-form ops.
func isImmForm(op Opcode) bool {
	switch op {
	case OpMoveNear, OpPush2, OpPush3, OpCall:
		return false
	default:
		return true
	}
}

// Disassemble renders ins as a human-readable line, used by tests and
// debug tooling rather than by the compiler itself.
func Disassemble(ins Instruction) string {
	op := ins.Op()
	switch op {
	case OpJump, OpJumpIfNot:
		return fmt.Sprintf("%s %d %+d", op, ins.Dst(), ins.ImmSigned())
	}
	if isImmForm(op) {
		return fmt.Sprintf("%s %d %d", op, ins.Dst(), ins.Imm())
	}
	return fmt.Sprintf("%s %d %d %d", op, ins.Dst(), ins.Src1(), ins.Src2())
}

// DisassembleAll renders a whole bytecode buffer, one instruction per
// line, in order.
func DisassembleAll(code []Instruction) string {
	out := ""
	for i, ins := range code {
		if i > 0 {
			out += "\n"
		}
		out += fmt.Sprintf("%4d  %s", i, Disassemble(ins))
	}
	return out
}
