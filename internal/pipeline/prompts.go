package pipeline

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/glyphsmith/glyphsmith-api/internal/domain"
)

// Prompt templates for the default generation session. Wording is
// deliberately plain configuration, not architecture; callers can swap the
// whole step set for different prompting strategies.
var promptTemplates = template.Must(template.New("prompts").Parse(`
{{define "analyze"}}Analyze this design request and summarize the intent, the expected number of elements, and any implied style constraints.

Request: {{.Description}}
Target kind: {{.Kind}}
{{if .StyleHint}}Style hint: {{.StyleHint}}{{end}}
{{if .ColorHint}}Color hint: {{.ColorHint}}{{end}}{{end}}

{{define "structure"}}Derive the structure for this {{.Kind}} request: list the elements or sections to produce and their relationships. Respond with a concise outline.

Request: {{.Description}}
{{if .Analysis}}Analysis: {{.Analysis}}{{end}}{{end}}

{{define "generate"}}Generate the complete {{.Kind}} output for this request. Respond with markup only, no explanations.

Request: {{.Description}}
{{if .Structure}}Structure to follow: {{.Structure}}{{end}}
{{if .StyleHint}}Style: {{.StyleHint}}{{end}}
{{if .ColorHint}}Colors: {{.ColorHint}}{{end}}{{end}}

{{define "style"}}Apply consistent styling to the following {{.Kind}} output. Keep the structure identical; refine visual attributes only. Respond with the full updated markup.

{{.Markup}}
{{if .Feedback}}User feedback: {{.Feedback}}{{end}}{{end}}

{{define "optimize"}}Clean up the following {{.Kind}} output: remove redundant attributes, collapse duplicate definitions, and keep behavior identical. Respond with the full updated markup.

{{.Markup}}{{end}}

{{define "variants"}}Produce one alternative variant of the following {{.Kind}} output with a distinct visual treatment. Respond with markup only.

{{.Markup}}{{end}}
`))

// promptData carries the fields the templates reference.
type promptData struct {
	Description string
	Kind        domain.TargetKind
	StyleHint   string
	ColorHint   string
	Analysis    string
	Structure   string
	Markup      string
	Feedback    string
}

// renderPrompt executes the named prompt template.
func renderPrompt(name string, data promptData) (string, error) {
	var buf bytes.Buffer
	if err := promptTemplates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("failed to execute prompt template %q: %w", name, err)
	}
	return buf.String(), nil
}
