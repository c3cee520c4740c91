package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/glyphsmith/glyphsmith-api/internal/dispatch"
	"github.com/glyphsmith/glyphsmith-api/internal/domain"
)

// Step ids for the default generation session.
const (
	StepAnalyze   = "analyze"
	StepStructure = "structure"
	StepGenerate  = "generate"
	StepStyle     = "style"
	StepOptimize  = "optimize"
	StepValidate  = "validate"
	StepVariants  = "variants"
)

// ModelParams carries the call parameters shared by every dispatching step.
type ModelParams struct {
	Model           string
	Temperature     float32
	MaxOutputTokens int
	Stream          bool
}

// BuildSteps returns the default ordered step list for a generation
// session. The variants step is included only when the request opts in.
func BuildSteps(req domain.GenerationRequest) []*Step {
	steps := []*Step{
		{ID: StepAnalyze, Name: "Analyze request", Status: StepPending},
		{ID: StepStructure, Name: "Derive structure", Status: StepPending},
		{ID: StepGenerate, Name: "Generate artifact", Status: StepPending},
		{ID: StepStyle, Name: "Apply styling", Status: StepPending},
		{ID: StepOptimize, Name: "Optimize output", Status: StepPending},
		{ID: StepValidate, Name: "Validate output", Status: StepPending},
	}

	if req.IncludeVariants {
		steps = append(steps, &Step{ID: StepVariants, Name: "Generate variants", Status: StepPending})
	}

	return steps
}

// StepSet provides handlers for the default generation session, built
// around the provider fallback dispatcher.
type StepSet struct {
	dispatcher *dispatch.Dispatcher
	params     ModelParams
	logger     *slog.Logger
}

// NewStepSet creates a StepSet over the given dispatcher.
func NewStepSet(dispatcher *dispatch.Dispatcher, params ModelParams, logger *slog.Logger) *StepSet {
	return &StepSet{
		dispatcher: dispatcher,
		params:     params,
		logger:     logger.With(slog.String("component", "step_set")),
	}
}

// Register binds every default step handler to the engine.
func (s *StepSet) Register(engine *Engine) {
	engine.RegisterHandler(StepAnalyze, s.analyze)
	engine.RegisterHandler(StepStructure, s.structure)
	engine.RegisterHandler(StepGenerate, s.generate)
	engine.RegisterHandler(StepStyle, s.style)
	engine.RegisterHandler(StepOptimize, s.optimize)
	engine.RegisterHandler(StepValidate, s.validate)
	engine.RegisterHandler(StepVariants, s.variants)
}

// dispatchPrompt runs one rendered prompt through the dispatcher and
// returns the accumulated text.
func (s *StepSet) dispatchPrompt(ctx context.Context, prompt string) (string, error) {
	result, err := s.dispatcher.Dispatch(ctx, dispatch.GenerationCall{
		Model: s.params.Model,
		Messages: []dispatch.Message{
			{Role: "user", Content: prompt},
		},
		Temperature:     s.params.Temperature,
		MaxOutputTokens: s.params.MaxOutputTokens,
		Stream:          s.params.Stream,
	})
	if err != nil {
		return "", err
	}
	return result.Text, nil
}

// analyze summarizes the request. When the request did not ask for
// analysis, it records a local summary without a provider call.
func (s *StepSet) analyze(ctx context.Context, p *Pipeline, step *Step) (*StepResult, error) {
	req := p.Request

	if !req.Analyze {
		summary := fmt.Sprintf("kind=%s description=%q", req.Kind, req.Description)
		return &StepResult{Payload: summary}, nil
	}

	prompt, err := renderPrompt("analyze", promptData{
		Description: req.Description,
		Kind:        req.Kind,
		StyleHint:   req.StyleHint,
		ColorHint:   req.ColorHint,
	})
	if err != nil {
		return nil, err
	}

	text, err := s.dispatchPrompt(ctx, prompt)
	if err != nil {
		return nil, err
	}
	return &StepResult{Payload: text}, nil
}

// structure derives the outline the generate step will follow.
func (s *StepSet) structure(ctx context.Context, p *Pipeline, step *Step) (*StepResult, error) {
	analysis, _ := stringResult(p, StepAnalyze)

	prompt, err := renderPrompt("structure", promptData{
		Description: p.Request.Description,
		Kind:        p.Request.Kind,
		Analysis:    analysis,
	})
	if err != nil {
		return nil, err
	}

	text, err := s.dispatchPrompt(ctx, prompt)
	if err != nil {
		return nil, err
	}
	return &StepResult{Payload: text}, nil
}

// generate produces the primary artifact markup.
func (s *StepSet) generate(ctx context.Context, p *Pipeline, step *Step) (*StepResult, error) {
	structure, _ := stringResult(p, StepStructure)

	prompt, err := renderPrompt("generate", promptData{
		Description: p.Request.Description,
		Kind:        p.Request.Kind,
		StyleHint:   p.Request.StyleHint,
		ColorHint:   p.Request.ColorHint,
		Structure:   structure,
	})
	if err != nil {
		return nil, err
	}

	text, err := s.dispatchPrompt(ctx, prompt)
	if err != nil {
		return nil, err
	}
	return &StepResult{Payload: dispatch.Normalize(text, p.Request.Kind)}, nil
}

// style refines visual attributes over the generated markup, honoring any
// feedback supplied on resume.
func (s *StepSet) style(ctx context.Context, p *Pipeline, step *Step) (*StepResult, error) {
	markup, ok := latestMarkup(p)
	if !ok {
		return nil, fmt.Errorf("no generated markup available for styling")
	}

	feedback, _ := p.FeedbackFor(StepStyle)

	prompt, err := renderPrompt("style", promptData{
		Kind:     p.Request.Kind,
		Markup:   markup,
		Feedback: feedback,
	})
	if err != nil {
		return nil, err
	}

	text, err := s.dispatchPrompt(ctx, prompt)
	if err != nil {
		return nil, err
	}
	return &StepResult{Payload: dispatch.Normalize(text, p.Request.Kind)}, nil
}

// optimize cleans the styled markup without changing behavior.
func (s *StepSet) optimize(ctx context.Context, p *Pipeline, step *Step) (*StepResult, error) {
	markup, ok := latestMarkup(p)
	if !ok {
		return nil, fmt.Errorf("no markup available to optimize")
	}

	prompt, err := renderPrompt("optimize", promptData{
		Kind:   p.Request.Kind,
		Markup: markup,
	})
	if err != nil {
		return nil, err
	}

	text, err := s.dispatchPrompt(ctx, prompt)
	if err != nil {
		return nil, err
	}
	return &StepResult{Payload: dispatch.Normalize(text, p.Request.Kind)}, nil
}

// validate runs the conjunctive output checks. It performs no provider
// calls; failures are retried with the same budget as any other step.
func (s *StepSet) validate(ctx context.Context, p *Pipeline, step *Step) (*StepResult, error) {
	markup, ok := latestMarkup(p)
	if !ok {
		return nil, fmt.Errorf("no markup available to validate")
	}

	artifact, err := ValidateOutput(markup, p.Request.Kind)
	if err != nil {
		return nil, err
	}

	return &StepResult{Payload: artifact}, nil
}

// variants produces one alternative treatment of the final markup.
func (s *StepSet) variants(ctx context.Context, p *Pipeline, step *Step) (*StepResult, error) {
	markup, ok := latestMarkup(p)
	if !ok {
		return nil, fmt.Errorf("no markup available for variants")
	}

	prompt, err := renderPrompt("variants", promptData{
		Kind:   p.Request.Kind,
		Markup: markup,
	})
	if err != nil {
		return nil, err
	}

	text, err := s.dispatchPrompt(ctx, prompt)
	if err != nil {
		return nil, err
	}
	return &StepResult{Payload: dispatch.Normalize(text, p.Request.Kind)}, nil
}

// latestMarkup returns the most recent markup produced by the session,
// preferring optimize over style over generate.
func latestMarkup(p *Pipeline) (string, bool) {
	for _, id := range []string{StepOptimize, StepStyle, StepGenerate} {
		if markup, ok := stringResult(p, id); ok && strings.TrimSpace(markup) != "" {
			return markup, true
		}
	}
	return "", false
}

// stringResult reads a completed step's result as a string.
func stringResult(p *Pipeline, stepID string) (string, bool) {
	result, ok := p.StepResultByID(stepID)
	if !ok {
		return "", false
	}
	text, ok := result.(string)
	return text, ok
}
