package pipeline

import (
	"fmt"
	"strings"

	"github.com/glyphsmith/glyphsmith-api/internal/domain"
	"github.com/glyphsmith/glyphsmith-api/internal/extract"
)

// minimum plausible output lengths per target kind, used by the structural
// quality heuristic.
const (
	minIconPackLength  = 100
	minUIBundleLength  = 200
	minComponentLength = 50
)

// ValidationError reports a failed output check with actionable
// suggestions. It carries the validation error class of the pipeline layer.
type ValidationError struct {
	Message     string   `json:"message"`
	Suggestions []string `json:"suggestions"`
}

// Error implements the error interface for ValidationError.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s", e.Message)
}

// newValidationError creates a ValidationError with suggestions.
func newValidationError(message string, suggestions ...string) *ValidationError {
	return &ValidationError{Message: message, Suggestions: suggestions}
}

// ValidateOutput runs the conjunctive success condition over generated
// text: it must parse as the target kind, declare the expected entry
// point, and pass a structural quality heuristic. All three must hold.
// On success it returns the extracted artifact for downstream steps.
func ValidateOutput(text string, kind domain.TargetKind) (*domain.Artifact, error) {
	trimmed := strings.TrimSpace(text)
	lower := strings.ToLower(trimmed)

	switch kind {
	case domain.KindIconPack:
		if len(trimmed) < minIconPackLength {
			return nil, newValidationError(
				"output too short for an icon pack",
				"regenerate with an explicit element count",
				"include one <svg> element per icon")
		}
		if !strings.Contains(lower, "<svg") {
			return nil, newValidationError(
				"no vector elements declared",
				"ask for inline <svg> markup rather than image references")
		}

	case domain.KindUIBundle:
		if len(trimmed) < minUIBundleLength {
			return nil, newValidationError(
				"output too short for a UI bundle",
				"request a complete page with markup, styles, and script")
		}
		if !strings.HasPrefix(lower, "<!doctype") && !strings.Contains(lower, "<html") {
			return nil, newValidationError(
				"missing document entry point",
				"ensure the output opens with a complete HTML document")
		}

	case domain.KindComponent:
		if len(trimmed) < minComponentLength {
			return nil, newValidationError(
				"output too short for a component",
				"request the full component source, not a snippet")
		}
		if !strings.Contains(trimmed, "export") {
			return nil, newValidationError(
				"missing export declaration",
				"the component must declare an exported entry point")
		}
		if !containsAny(trimmed, "function", "const", "class") {
			return nil, newValidationError(
				"no component definition found",
				"define the component as a function, const, or class")
		}

	default:
		return nil, domain.ErrInvalidTargetKind
	}

	artifact, err := extract.Extract(trimmed, kind)
	if err != nil {
		return nil, newValidationError(
			fmt.Sprintf("output does not parse as %s: %v", kind, err),
			"regenerate with well-formed markup")
	}

	if kind == domain.KindIconPack && len(artifact.Icons) == 0 {
		return nil, newValidationError(
			"markup parsed but contains no vector elements",
			"ensure each icon is an inline <svg> element")
	}

	return artifact, nil
}

// containsAny reports whether text contains at least one of the keywords.
func containsAny(text string, keywords ...string) bool {
	for _, keyword := range keywords {
		if strings.Contains(text, keyword) {
			return true
		}
	}
	return false
}
