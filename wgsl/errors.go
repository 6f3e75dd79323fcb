package wgsl

import (
	"fmt"
	"strings"
)

// SourceError is implemented by every front-end error that carries a
// source position, so callers can render context without knowing which
// stage failed.
type SourceError interface {
	error
	SourcePos() Pos
	SourceMessage() string
}

// SyntaxError is a parse-time fault at a source position.
type SyntaxError struct {
	Message string
	Pos     Pos
}

func (e *SyntaxError) Error() string {
	if e.Pos.Line == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Pos, e.Message)
}

func syntaxErrorf(pos Pos, format string, args ...any) *SyntaxError {
	return &SyntaxError{Message: fmt.Sprintf(format, args...), Pos: pos}
}

// TypeInferenceError reports that an expression's type could not be
// resolved from context during lowering.
type TypeInferenceError struct {
	Message string
	Pos     Pos
}

func (e *TypeInferenceError) Error() string {
	if e.Pos.Line == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s: cannot infer type: %s", e.Pos, e.Message)
}

// LoweringError is a semantic fault found while building the typed form:
// unknown names, bad attribute combinations, malformed builtin calls.
type LoweringError struct {
	Message string
	Pos     Pos
}

func (e *LoweringError) Error() string {
	if e.Pos.Line == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Pos, e.Message)
}

func loweringErrorf(pos Pos, format string, args ...any) *LoweringError {
	return &LoweringError{Message: fmt.Sprintf(format, args...), Pos: pos}
}

func (e *SyntaxError) SourcePos() Pos        { return e.Pos }
func (e *TypeInferenceError) SourcePos() Pos { return e.Pos }
func (e *LoweringError) SourcePos() Pos      { return e.Pos }

func (e *SyntaxError) SourceMessage() string        { return e.Message }
func (e *TypeInferenceError) SourceMessage() string { return "cannot infer type: " + e.Message }
func (e *LoweringError) SourceMessage() string      { return e.Message }

// RenderContext formats an error against its source, with the offending
// line and a caret. Used by callers that want rich diagnostics; Error()
// stays terse.
func RenderContext(source string, pos Pos, message string) string {
	if pos.Line == 0 {
		return message
	}
	lines := strings.Split(source, "\n")
	if pos.Line > len(lines) {
		return fmt.Sprintf("%s: %s", pos, message)
	}
	line := lines[pos.Line-1]
	col := pos.Column
	if col < 1 {
		col = 1
	}
	if col > len(line)+1 {
		col = len(line) + 1
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "error: %s\n", message)
	fmt.Fprintf(&sb, "  --> %s\n", pos)
	fmt.Fprintf(&sb, "%4d | %s\n", pos.Line, line)
	fmt.Fprintf(&sb, "     | %s^\n", strings.Repeat(" ", col-1))
	return sb.String()
}
