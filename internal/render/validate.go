package render

import (
	"fmt"
	"strings"
)

// bracketPairs maps closers to their expected openers for the balance scan.
var bracketPairs = map[byte]byte{
	')': '(',
	']': '[',
	'}': '{',
}

// ValidateComponentSource checks component source before any execution is
// attempted: it must be non-empty, declare an export marker, and balance
// brackets, parentheses, and braces. The first violation is returned as a
// syntax Error with the offending character position; nil means the source
// passed.
func ValidateComponentSource(source string) *Error {
	if strings.TrimSpace(source) == "" {
		return newError(TypeSyntax, "component source is empty")
	}

	if !strings.Contains(source, "export") {
		return newError(TypeSyntax, "component source declares no export entry point")
	}

	type open struct {
		char byte
		pos  int
	}
	var stack []open

	for i := 0; i < len(source); i++ {
		c := source[i]
		switch c {
		case '(', '[', '{':
			stack = append(stack, open{char: c, pos: i})
		case ')', ']', '}':
			if len(stack) == 0 || stack[len(stack)-1].char != bracketPairs[c] {
				err := newError(TypeSyntax,
					fmt.Sprintf("unmatched %q at position %d", string(c), i))
				err.Position = i
				return err
			}
			stack = stack[:len(stack)-1]
		}
	}

	if len(stack) > 0 {
		last := stack[len(stack)-1]
		err := newError(TypeSyntax,
			fmt.Sprintf("unclosed %q at position %d", string(last.char), last.pos))
		err.Position = last.pos
		return err
	}

	return nil
}

// ClassifyExecutionError maps a sandbox execution failure onto the render
// error taxonomy by inspecting the error text for known markers.
func ClassifyExecutionError(err error) *Error {
	message := err.Error()
	lower := strings.ToLower(message)

	switch {
	case strings.Contains(lower, "unexpected token"),
		strings.Contains(lower, "syntax"),
		strings.Contains(lower, "unexpected end of input"):
		return newError(TypeSyntax, message)

	case strings.Contains(lower, "cannot find module"),
		strings.Contains(lower, "module not found"),
		strings.Contains(lower, "failed to resolve import"),
		strings.Contains(lower, "unresolved"):
		return newError(TypeImport, message)

	case strings.Contains(lower, "prop"),
		strings.Contains(lower, "cannot read propert"):
		return newError(TypeProps, message)

	case strings.Contains(lower, "css"),
		strings.Contains(lower, "style"),
		strings.Contains(lower, "stylesheet"):
		return newError(TypeStyling, message)

	default:
		return newError(TypeRuntime, message)
	}
}
