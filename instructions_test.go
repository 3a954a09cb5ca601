package corelang

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEncodeABCRoundTrip(t *testing.T) {
	ins := encodeABC(OpPush3, 1, 2, 3)
	assert.Equal(t, OpPush3, ins.Op())
	assert.Equal(t, uint8(1), ins.Dst())
	assert.Equal(t, uint8(2), ins.Src1())
	assert.Equal(t, uint8(3), ins.Src2())
}

func TestEncodeABiRoundTrip(t *testing.T) {
	ins := encodeABi(OpLoadConstant, 7, 0xbeef)
	assert.Equal(t, OpLoadConstant, ins.Op())
	assert.Equal(t, uint8(7), ins.Dst())
	assert.Equal(t, uint16(0xbeef), ins.Imm())
}

func TestIsImmFormMatchesActualEncodingUsage(t *testing.T) {
	abcOps := []Opcode{OpMoveNear, OpPush2, OpPush3, OpCall}
	for _, op := range abcOps {
		assert.False(t, isImmForm(op), "%s is emitted via encodeABC", op)
	}
	abiOps := []Opcode{
		OpLoadNil, OpLoadTrue, OpLoadFalse, OpLoadInteger, OpLoadConstant,
		OpLoadUpvalue, OpSetUpvalue, OpMoveFar, OpPush, OpTailcall,
		OpReturn, OpReturnNil, OpMakeArray, OpMakeBuffer, OpMakeStruct, OpMakeTable,
	}
	for _, op := range abiOps {
		assert.True(t, isImmForm(op), "%s is emitted via encodeABi", op)
	}
}

func TestDisassembleAllProducesOneLinePerInstruction(t *testing.T) {
	code := []Instruction{
		encodeABi(OpLoadInteger, 0, 1),
		encodeABi(OpLoadInteger, 1, 2),
		encodeABC(OpCall, 0, 0, 0),
	}
	out := DisassembleAll(code)
	assert.Contains(t, out, "load-integer")
	assert.Contains(t, out, "call")
}

func TestOpcodeStringForUnknownValue(t *testing.T) {
	var bogus Opcode = 250
	assert.Contains(t, bogus.String(), "op(250)")
}
