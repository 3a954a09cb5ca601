package corelang

import "strconv"

// ScanNumber attempts to interpret tok as a Janet-style numeric literal
// and returns the resulting Value (Int or Real) and true on success.
// Grounded on original_source/src/core/parse.c's tokenchar/number-scan
// contract (spec.md §4.2 rule 2): decimal and radix-prefixed integers
// ("16rFF", "2r1010"), optional leading sign, optional trailing
// exponent/fraction for reals, and the underscore-as-digit-separator
// convention. A bare "-", "+", "..." or "." is never a number.
func ScanNumber(tok []byte) (Value, bool) {
	if len(tok) == 0 {
		return nil, false
	}

	clean := stripDigitSeparators(tok)
	if len(clean) == 0 {
		return nil, false
	}

	if radix, digits, ok := splitRadix(clean); ok {
		return scanRadixInt(radix, digits)
	}

	if isPlainInteger(clean) {
		if n, err := strconv.ParseInt(string(clean), 10, 32); err == nil {
			return Int(int32(n)), true
		}
		if f, err := strconv.ParseFloat(string(clean), 64); err == nil {
			return Real(f), true
		}
		return nil, false
	}

	if f, err := strconv.ParseFloat(string(clean), 64); err == nil {
		return Real(f), true
	}

	return nil, false
}

func stripDigitSeparators(tok []byte) []byte {
	out := make([]byte, 0, len(tok))
	for _, c := range tok {
		if c == '_' {
			continue
		}
		out = append(out, c)
	}
	return out
}

// splitRadix recognizes the "<radix>r<digits>" form (radix 2-36,
// optional leading sign before the radix digits).
func splitRadix(tok []byte) (radix int, digits []byte, ok bool) {
	i := 0
	neg := false
	if i < len(tok) && (tok[i] == '+' || tok[i] == '-') {
		neg = tok[i] == '-'
		i++
	}
	start := i
	for i < len(tok) && tok[i] >= '0' && tok[i] <= '9' {
		i++
	}
	if i == start || i >= len(tok) || tok[i] != 'r' {
		return 0, nil, false
	}
	r, err := strconv.Atoi(string(tok[start:i]))
	if err != nil || r < 2 || r > 36 {
		return 0, nil, false
	}
	rest := tok[i+1:]
	if len(rest) == 0 {
		return 0, nil, false
	}
	if neg {
		out := make([]byte, 0, len(rest)+1)
		out = append(out, '-')
		out = append(out, rest...)
		return r, out, true
	}
	return r, rest, true
}

func scanRadixInt(radix int, digits []byte) (Value, bool) {
	n, err := strconv.ParseInt(string(digits), radix, 64)
	if err != nil {
		return nil, false
	}
	return Int(int32(n)), true
}

func isPlainInteger(tok []byte) bool {
	i := 0
	if i < len(tok) && (tok[i] == '+' || tok[i] == '-') {
		i++
	}
	if i == len(tok) {
		return false
	}
	for ; i < len(tok); i++ {
		if tok[i] < '0' || tok[i] > '9' {
			return false
		}
	}
	return true
}
