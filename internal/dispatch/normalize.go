package dispatch

import (
	"strings"

	"github.com/glyphsmith/glyphsmith-api/internal/domain"
)

// Normalize strips presentation fencing from accumulated provider output
// and, for kinds that expect a complete markup document, prepends the
// opening document marker when it is missing. It never validates: malformed
// content passes through for the extractor to judge.
func Normalize(text string, kind domain.TargetKind) string {
	text = stripCodeFences(text)

	if kind == domain.KindUIBundle && !hasDocumentMarker(text) {
		text = "<!DOCTYPE html>\n" + text
	}

	return text
}

// stripCodeFences removes a wrapping markdown code fence, with or without a
// language tag. Fences inside the body are left alone.
func stripCodeFences(text string) string {
	trimmed := strings.TrimSpace(text)

	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}

	// Drop the opening fence line, including any language tag.
	if idx := strings.IndexByte(trimmed, '\n'); idx >= 0 {
		trimmed = trimmed[idx+1:]
	} else {
		return strings.TrimSpace(strings.TrimPrefix(trimmed, "```"))
	}

	trimmed = strings.TrimSpace(trimmed)
	trimmed = strings.TrimSuffix(trimmed, "```")

	return strings.TrimSpace(trimmed)
}

// hasDocumentMarker reports whether text already opens as an HTML document.
func hasDocumentMarker(text string) bool {
	head := strings.ToLower(strings.TrimSpace(text))
	return strings.HasPrefix(head, "<!doctype") || strings.HasPrefix(head, "<html")
}
