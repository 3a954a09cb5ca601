package corelang

// isWhitespace reports whether c is one of the bytes the parser treats
// as insignificant between tokens. Comma and semicolon are handled
// separately in parser_consumers.go's consumeRoot (comma as plain
// whitespace, semicolon as a second comment lead alongside '#') rather
// than folded into this table, since semicolon's comment behavior
// needs the dedicated comment consumer, not a single-byte skip.
func isWhitespace(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\r', 0, '\v', '\f':
		return true
	default:
		return false
	}
}

// symChars is a 256-bit table (as eight uint32 words) where bit N is
// set iff ASCII byte N is a valid symbol character: A-Z, a-z, 0-9, or
// one of "!$%&*+-./:<=>@\^_~|". Bytes >= 0x80 are always symbol
// characters too (validated separately as UTF-8); see below.
var symChars = [8]uint32{
	0x00000000, 0x77ffec72, 0xd7ffffff, 0x57fffffe,
	0xffffffff, 0xffffffff, 0xffffffff, 0xffffffff,
}

// isSymbolChar reports whether c may appear inside a token (symbol,
// keyword, or number literal).
func isSymbolChar(c byte) bool {
	return symChars[c>>5]&(uint32(1)<<(c&0x1f)) != 0
}

// validUTF8 validates the encoding (not the code points) of b: only
// 1-4 byte sequences are accepted, 5- and 6-byte forms are rejected,
// continuation bytes must be 10xxxxxx, and overlong encodings are
// rejected for the 2-, 3- and 4-byte forms.
func validUTF8(b []byte) bool {
	i, n := 0, len(b)
	for i < n {
		c := b[i]
		var next int
		switch {
		case c < 0x80:
			next = i + 1
		case c>>5 == 0x06:
			next = i + 2
		case c>>4 == 0x0e:
			next = i + 3
		case c>>3 == 0x1e:
			next = i + 4
		default:
			return false
		}
		if next > n {
			return false
		}
		for j := i + 1; j < next; j++ {
			if b[j]>>6 != 2 {
				return false
			}
		}
		if next == i+2 && b[i] < 0xc2 {
			return false
		}
		if b[i] == 0xe0 && b[i+1] < 0xa0 {
			return false
		}
		if b[i] == 0xf0 && b[i+1] < 0x90 {
			return false
		}
		i = next
	}
	return true
}

func toHexDigit(c byte) int {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0')
	case c >= 'A' && c <= 'F':
		return int(c-'A') + 10
	case c >= 'a' && c <= 'f':
		return int(c-'a') + 10
	default:
		return -1
	}
}
