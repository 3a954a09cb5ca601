package corelang

import "fmt"

// ParseError is returned (sticky, via Parser.Status/Parser.Error) when
// the byte-at-a-time parser encounters malformed source.
type ParseError struct {
	Message string
	Where   Location
}

func (e ParseError) Error() string {
	return fmt.Sprintf("%s @ %s", e.Message, e.Where)
}

func newParseError(message string, where Location) ParseError {
	return ParseError{Message: message, Where: where}
}

// CompileError pairs a compile failure message with its source
// location, with MacroValue holding the failing macro's value for
// macro-expansion errors; see spec.md §4.5 "Macro expansion".
// Compile itself reports failures through CompileResult (Status,
// Error, ErrorLine, ErrorColumn, MacroFiber), not through this type.
type CompileError struct {
	Message    string
	Where      Location
	MacroValue Value
}

func (e CompileError) Error() string {
	return fmt.Sprintf("%s @ %s", e.Message, e.Where)
}

func newCompileError(message string, where Location) CompileError {
	return CompileError{Message: message, Where: where}
}
