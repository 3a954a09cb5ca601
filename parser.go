package corelang

// Parser is a byte-at-a-time streaming reader: feed it bytes one or
// many at a time with Consume/Byte, and drain completed top-level
// values with Produce. It never blocks and never looks ahead; all
// state needed to resume after a short read lives in the frame stack,
// which is why Clone can snapshot it for speculative parsing.
//
// Grounded on original_source/src/core/parse.c's JanetParser; this is
// the direct Go port of its frame-stack state machine.
type Parser struct {
	frames  []frame
	buf     []byte
	args    []Value
	pending int

	err  *ParseError
	dead bool

	lookback int
	line     int
	column   int
	file     string

	cfg *Config
}

// NewParser returns a parser primed with the root frame, ready to
// receive bytes. A nil cfg falls back to NewConfig()'s defaults.
func NewParser(cfg *Config) *Parser {
	if cfg == nil {
		cfg = NewConfig()
	}
	p := &Parser{
		lookback: -1,
		line:     1,
		column:   0,
		cfg:      cfg,
	}
	p.pushState(consumeRoot, "root", pflagContainer)
	return p
}

// SetFile attaches a file name to positions this parser reports via
// Where and on tuples it closes.
func (p *Parser) SetFile(name string) { p.file = name }

func (p *Parser) checkDead() {
	if p.dead {
		panic("parser is dead, cannot consume")
	}
	if p.err != nil {
		panic("parser has unchecked error, cannot consume")
	}
}

func (p *Parser) top() *frame { return &p.frames[len(p.frames)-1] }

func (p *Parser) pushState(consumer consumerFn, tag string, flags int) {
	p.frames = append(p.frames, frame{
		flags:    flags,
		consumer: consumer,
		tag:      tag,
		line:     p.line,
		column:   p.column,
	})
}

// popState pops the current frame and folds val into whatever sits
// below it: container frames collect it as another argument,
// reader-macro frames wrap it in a (quote val)-style 2-tuple and keep
// unwinding (a reader macro can sit directly on top of another one,
// as in "~'x"), and anything else just discards the unwind — there's
// nothing left to do with the value at the top level.
func (p *Parser) popState(val Value) {
	for {
		top := p.frames[len(p.frames)-1]
		p.frames = p.frames[:len(p.frames)-1]
		newTop := p.top()

		switch {
		case newTop.flags&pflagContainer != 0:
			newTop.argn++
			if len(p.frames) == 1 {
				p.pending++
			}
			p.pushArg(val)
			return

		case newTop.flags&pflagReaderMac != 0:
			name := readerMacName(byte(newTop.flags & pflagReaderMacCharMask))
			wrapped := NewTuple([]Value{InternSymbol([]byte(name)), val})
			wrapped.Source = Range{Line: newTop.line, Column: newTop.column}
			val = wrapped

		default:
			return
		}
	}
}

func readerMacName(c byte) string {
	switch c {
	case '\'':
		return "quote"
	case ',':
		return "unquote"
	case ';':
		return "splice"
	case '|':
		return "short-fn"
	case '~':
		return "quasiquote"
	default:
		return "<unknown>"
	}
}

func (p *Parser) pushBuf(c byte)    { p.buf = append(p.buf, c) }
func (p *Parser) pushArg(v Value)   { p.args = append(p.args, v) }

func (p *Parser) popArg() Value {
	v := p.args[len(p.args)-1]
	p.args = p.args[:len(p.args)-1]
	return v
}

func (p *Parser) setError(msg string) {
	p.err = &ParseError{Message: msg, Where: p.Where()}
}

// Byte feeds a single byte into the parser.
func (p *Parser) Byte(c byte) {
	p.checkDead()
	if c == '\r' {
		p.line++
		p.column = 0
	} else if c == '\n' {
		p.column = 0
		if p.lookback != '\r' {
			p.line++
		}
	} else {
		p.column++
	}

	consumed := false
	for !consumed && p.err == nil {
		f := p.top()
		consumed = f.consumer(p, f, c)
	}
	p.lookback = int(c)
}

// Consume feeds data into the parser byte by byte and returns the
// number of bytes actually consumed before the parser left the
// Root/Pending steady state (e.g. because it hit an error). When
// nothing goes wrong the full length of data is consumed.
func (p *Parser) Consume(data []byte) int {
	for i, c := range data {
		p.Byte(c)
		switch p.Status() {
		case StatusRoot, StatusPending:
			continue
		default:
			return i + 1
		}
	}
	return len(data)
}

// EOF signals end of input. If a container is still open this sticks
// a "unexpected end of source" error, located at the line/column where
// the innermost still-open frame was opened; either way the parser
// becomes dead and further Consume/Byte calls panic.
func (p *Parser) EOF() {
	p.checkDead()
	oldLine, oldColumn := p.line, p.column
	p.Byte('\n')
	p.line, p.column = oldLine, oldColumn
	if len(p.frames) > 1 {
		f := p.top()
		p.err = &ParseError{Message: "unexpected end of source", Where: Location{Line: f.line, Column: f.column, File: p.file}}
	}
	p.dead = true
}

// Status reports the parser's current state.
func (p *Parser) Status() ParserStatus {
	if p.err != nil {
		return StatusError
	}
	if p.dead {
		return StatusDead
	}
	if len(p.frames) > 1 {
		return StatusPending
	}
	return StatusRoot
}

// Error returns and clears the parser's sticky parse error, flushing
// its buffered state so it can be reused for the next top-level form.
// Returns nil if Status() is not StatusError.
func (p *Parser) Error() error {
	if p.Status() != StatusError {
		return nil
	}
	e := *p.err
	p.err = nil
	p.Flush()
	return e
}

// Flush discards all buffered arguments, bytes and nested frames,
// resetting to a single root frame. Used to recover after a parse
// error without losing line/column tracking.
func (p *Parser) Flush() {
	p.args = p.args[:0]
	p.buf = p.buf[:0]
	p.frames = p.frames[:1]
	p.pending = 0
}

// HasMore reports whether Produce has a completed top-level value
// waiting.
func (p *Parser) HasMore() bool { return p.pending > 0 }

// Produce returns the next completed top-level value, in the order it
// was parsed, and advances past it. Returns (nil, false) if none is
// ready.
func (p *Parser) Produce() (Value, bool) {
	if p.pending == 0 {
		return nil, false
	}
	v := p.args[0]
	copy(p.args, p.args[1:])
	p.args = p.args[:len(p.args)-1]
	p.pending--
	return v, true
}

// Where reports the parser's current source location.
func (p *Parser) Where() Location {
	return Location{Line: p.line, Column: p.column, File: p.file}
}

// Insert pushes val directly as though it had just been parsed,
// without going through any byte-level consumer. If a token is
// mid-accumulation it's first flushed with a synthetic space so the
// insertion doesn't get glued onto it. The value is added only when the
// frame on top is a container; inside a string, long string, comment or
// reader-macro prefix it is discarded.
func (p *Parser) Insert(val Value) {
	f := p.top()
	if f.tag == "token" {
		p.Byte(' ')
		p.column--
		f = p.top()
	}
	if f.flags&pflagContainer != 0 {
		f.argn++
		if len(p.frames) == 1 {
			p.pending++
		}
		p.pushArg(val)
	}
}

// Clone returns an independent copy of the parser's state, letting a
// caller try speculative input (e.g. a REPL's "did the user finish
// typing a form" probe) and discard the attempt.
func (p *Parser) Clone() *Parser {
	cp := &Parser{
		pending:  p.pending,
		lookback: p.lookback,
		line:     p.line,
		column:   p.column,
		file:     p.file,
		dead:     p.dead,
		cfg:      p.cfg,
	}
	if p.err != nil {
		e := *p.err
		cp.err = &e
	}
	cp.frames = append([]frame(nil), p.frames...)
	cp.args = append([]Value(nil), p.args...)
	cp.buf = append([]byte(nil), p.buf...)
	return cp
}

// State returns the consumer tag of the currently active frame, for
// introspection (e.g. a syntax-highlighting editor asking "am I inside
// a string right now").
func (p *Parser) State() string {
	return p.top().tag
}

// Frames returns the consumer tag of every open frame, outermost
// first — the same information State() reports for the top frame,
// extended across the whole nesting stack.
func (p *Parser) Frames() []string {
	out := make([]string, len(p.frames))
	for i, f := range p.frames {
		out[i] = f.tag
	}
	return out
}

// Delimiters returns the opening delimiter characters of every open
// container frame, outermost first (e.g. "([" while inside "(foo [").
func (p *Parser) Delimiters() string {
	var out []byte
	for _, f := range p.frames {
		switch {
		case f.flags&pflagParens != 0:
			out = append(out, '(')
		case f.flags&pflagSquareBrackets != 0:
			out = append(out, '[')
		case f.flags&pflagCurlyBrackets != 0:
			out = append(out, '{')
		}
	}
	return string(out)
}

