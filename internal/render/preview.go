package render

import (
	"context"
	"fmt"
	"strings"

	"github.com/glyphsmith/glyphsmith-api/internal/domain"
)

// PreviewRenderer is the default Renderer: it assembles a self-contained
// preview document from the artifact without executing anything. Real
// sandboxed execution environments replace it behind the same interface.
type PreviewRenderer struct{}

// NewPreviewRenderer creates a PreviewRenderer.
func NewPreviewRenderer() *PreviewRenderer {
	return &PreviewRenderer{}
}

// Render builds the preview document for the artifact.
func (p *PreviewRenderer) Render(ctx context.Context, artifact *domain.Artifact, opts Options) (string, error) {
	if artifact == nil {
		return "", fmt.Errorf("no artifact to render")
	}

	switch artifact.Kind {
	case domain.KindIconPack:
		var out strings.Builder
		out.WriteString("<!DOCTYPE html>\n<html><body>")
		if artifact.Stylesheet != "" {
			out.WriteString("<style>" + artifact.Stylesheet + "</style>")
		}
		for _, icon := range artifact.Icons {
			out.WriteString(icon.RawMarkup)
		}
		out.WriteString("</body></html>")
		return out.String(), nil

	case domain.KindUIBundle:
		if artifact.Bundle == nil {
			return "", fmt.Errorf("bundle artifact has no bundle payload")
		}
		var out strings.Builder
		out.WriteString(artifact.Bundle.HTML)
		if artifact.Bundle.CSS != "" {
			out.WriteString("\n<style>" + artifact.Bundle.CSS + "</style>")
		}
		if artifact.Bundle.JS != "" {
			out.WriteString("\n<script>" + artifact.Bundle.JS + "</script>")
		}
		return out.String(), nil

	case domain.KindComponent:
		if artifact.Component == nil {
			return "", fmt.Errorf("component artifact has no component payload")
		}
		return artifact.Component.SourceCode, nil

	default:
		return "", fmt.Errorf("unknown artifact kind %q", artifact.Kind)
	}
}
