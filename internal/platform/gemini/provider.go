package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/genai"

	"github.com/glyphsmith/glyphsmith-api/internal/dispatch"
)

// Common errors returned by the gemini package
var (
	// ErrInvalidConfig is returned when the provider configuration is invalid
	ErrInvalidConfig = errors.New("invalid gemini provider configuration")
)

// Config holds the settings needed to construct a Provider.
type Config struct {
	// APIKey authenticates against the Gemini API.
	APIKey string

	// Model is the default model name, used when a call does not name one.
	Model string
}

// Provider implements dispatch.Provider using Google's Gemini API. It is a
// blocking adapter: streaming requests are served as one accumulated
// payload, and the dispatcher falls back to chunk-capable providers when
// true streaming is required.
type Provider struct {
	logger *slog.Logger
	client *genai.Client
	model  string
}

// NewProvider creates a Provider with the given configuration.
func NewProvider(ctx context.Context, logger *slog.Logger, cfg Config) (*Provider, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: API key cannot be empty", ErrInvalidConfig)
	}

	if cfg.Model == "" {
		return nil, fmt.Errorf("%w: model name cannot be empty", ErrInvalidConfig)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create Gemini client: %v", ErrInvalidConfig, err)
	}

	return &Provider{
		logger: logger.With(slog.String("component", "gemini_provider")),
		client: client,
		model:  cfg.Model,
	}, nil
}

// Name returns the provider name used in attempt records.
func (p *Provider) Name() string { return "gemini" }

// SupportsStreaming reports chunked transport support. The SDK hides raw
// chunk handling, so this adapter is blocking-only.
func (p *Provider) SupportsStreaming() bool { return false }

// Generate executes one generation call and returns the accumulated text.
// Failures are normalized into *dispatch.ClassifiedError.
func (p *Provider) Generate(ctx context.Context, call dispatch.GenerationCall) (string, error) {
	model := call.Model
	if model == "" {
		model = p.model
	}

	contents := make([]*genai.Content, 0, len(call.Messages))
	var systemInstruction *genai.Content
	for _, msg := range call.Messages {
		content := &genai.Content{
			Role:  genaiRole(msg.Role),
			Parts: []*genai.Part{{Text: msg.Content}},
		}
		if msg.Role == "system" {
			// Gemini carries the system message out of band.
			systemInstruction = &genai.Content{Parts: []*genai.Part{{Text: msg.Content}}}
			continue
		}
		contents = append(contents, content)
	}

	genCfg := &genai.GenerateContentConfig{
		Temperature:       genai.Ptr(call.Temperature),
		SystemInstruction: systemInstruction,
	}
	if call.MaxOutputTokens > 0 {
		genCfg.MaxOutputTokens = int32(call.MaxOutputTokens)
	}

	p.logger.DebugContext(ctx, "calling Gemini API",
		"model", model,
		"message_count", len(call.Messages))

	resp, err := p.client.Models.GenerateContent(ctx, model, contents, genCfg)
	if err != nil {
		return "", p.classify(err)
	}

	text := collectText(resp)
	if text == "" {
		return "", dispatch.NewClassifiedError(dispatch.ClassMalformed, p.Name(),
			errors.New("response contained no text parts"))
	}

	return text, nil
}

// classify maps a genai error onto the dispatcher's failure taxonomy.
func (p *Provider) classify(err error) *dispatch.ClassifiedError {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return dispatch.NewClassifiedError(dispatch.ClassifyStatus(apiErr.Code), p.Name(), err)
	}

	return dispatch.NewClassifiedError(dispatch.ClassNetwork, p.Name(), err)
}

// collectText concatenates the text parts of the first candidate.
func collectText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}

	var out strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil {
			out.WriteString(part.Text)
		}
	}
	return out.String()
}

// genaiRole maps common chat roles onto the Gemini role vocabulary.
func genaiRole(role string) string {
	switch role {
	case "assistant":
		return "model"
	default:
		return "user"
	}
}
