package render

import "fmt"

// ErrorType classifies a render failure.
type ErrorType string

// Render failure classes.
const (
	TypeSyntax  ErrorType = "syntax"
	TypeImport  ErrorType = "import"
	TypeProps   ErrorType = "props"
	TypeStyling ErrorType = "styling"
	TypeRuntime ErrorType = "runtime"
)

// Error is a classified render failure with remediation suggestions. It is
// always surfaced to the caller, never swallowed: it means the generated
// artifact itself is unusable.
type Error struct {
	Type        ErrorType `json:"type"`
	Message     string    `json:"message"`
	Position    int       `json:"position,omitempty"`
	Suggestions []string  `json:"suggestions,omitempty"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s error: %s", e.Type, e.Message)
}

// suggestions holds the canned remediation hints per failure class.
var suggestions = map[ErrorType][]string{
	TypeSyntax: {
		"check for unbalanced brackets, parentheses, or braces",
		"regenerate the artifact; truncated output often breaks mid-expression",
	},
	TypeImport: {
		"remove imports of packages the sandbox does not provide",
		"inline small helpers instead of importing them",
	},
	TypeProps: {
		"give every referenced prop a default value",
		"check the props schema matches how the component is invoked",
	},
	TypeStyling: {
		"validate the stylesheet separately before embedding it",
		"drop vendor-specific CSS features",
	},
	TypeRuntime: {
		"retry the render; transient sandbox limits can reject work",
		"simplify the artifact and re-render incrementally",
	},
}

// newError creates a classified Error carrying the canned suggestions for
// its type.
func newError(errType ErrorType, message string) *Error {
	return &Error{
		Type:        errType,
		Message:     message,
		Suggestions: suggestions[errType],
	}
}
