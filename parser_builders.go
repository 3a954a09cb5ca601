package corelang

import "github.com/samber/lo"

// The close* builders run when a container frame's matching delimiter
// arrives; they pop state.argn values off the parser's argument stack
// (which yields them in reverse source order, since it's a stack) and
// assemble the closed Value. Grounded on
// original_source/src/core/parse.c's close_tuple/close_array/
// close_struct/close_table.

// popN pops the last n pushed args off, in stack (last-pushed-first)
// order.
func (p *Parser) popN(n int) []Value {
	out := make([]Value, n)
	for i := 0; i < n; i++ {
		out[i] = p.popArg()
	}
	return out
}

func (p *Parser) closeTuple(f *frame, bracket bool) Value {
	items := lo.Reverse(p.popN(int(f.argn)))
	t := NewTuple(items)
	if bracket {
		t.Flags |= TupleFlagBracket
	}
	t.Source = Range{Line: f.line, Column: f.column}
	return t
}

func (p *Parser) closeArray(f *frame) Value {
	return NewArray(lo.Reverse(p.popN(int(f.argn))))
}

func (p *Parser) closeStruct(f *frame) Value {
	n := int(f.argn)
	pairs := make([]kvEntry, 0, n/2)
	for i := n; i > 0; i -= 2 {
		value := p.popArg()
		key := p.popArg()
		pairs = append(pairs, kvEntry{key: key, value: value})
	}
	return NewStruct(pairs)
}

func (p *Parser) closeTable(f *frame) Value {
	n := int(f.argn)
	pairs := make([]kvEntry, 0, n/2)
	for i := n; i > 0; i -= 2 {
		value := p.popArg()
		key := p.popArg()
		pairs = append(pairs, kvEntry{key: key, value: value})
	}
	return NewTable(pairs)
}

// stringEnd assembles the buffered bytes of a string/buffer/long-string
// token into its final Value and pops the frame. For long strings the
// leading newline right after the opening fence, and the single
// trailing newline right before the closing fence, are stripped —
// this lets a long-string's first and last lines sit flush with the
// fence without becoming part of the content.
func (p *Parser) stringEnd(f *frame) {
	buf := p.buf
	if f.flags&pflagLongString != 0 {
		if len(buf) > 0 && buf[0] == '\n' {
			buf = buf[1:]
		}
		if len(buf) > 0 && buf[len(buf)-1] == '\n' {
			buf = buf[:len(buf)-1]
		}
	}
	var v Value
	if f.flags&pflagBuffer != 0 {
		v = NewBuffer(buf)
	} else {
		v = NewString(buf)
	}
	p.buf = p.buf[:0]
	p.popState(v)
}
