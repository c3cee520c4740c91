package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Message is one role-tagged entry in a generation conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// GenerationCall is the provider-independent request shape. Provider
// adapters translate it into their own wire format.
type GenerationCall struct {
	Model           string
	Messages        []Message
	Temperature     float32
	MaxOutputTokens int
	Stream          bool
}

// Provider is one external generation backend, normalized so the dispatcher
// never sees a provider family's native response shape. Generate returns
// the full accumulated text; failures must be *ClassifiedError.
type Provider interface {
	// Name returns the provider's configured name.
	Name() string

	// SupportsStreaming reports whether the provider can stream chunks.
	SupportsStreaming() bool

	// Generate executes one generation call and returns the accumulated
	// text. Cancelling ctx aborts an in-flight read promptly.
	Generate(ctx context.Context, call GenerationCall) (string, error)
}

// AttemptStatus is the terminal state of one provider attempt.
type AttemptStatus string

// Possible attempt status values
const (
	AttemptSuccess        AttemptStatus = "success"
	AttemptRetryableError AttemptStatus = "retryable-error"
	AttemptFatalError     AttemptStatus = "fatal-error"
)

// attemptTextLimit caps the raw text kept on an attempt record so the
// attempt history stays diagnostic-sized.
const attemptTextLimit = 2048

// Attempt records one dispatch call against one provider, kept for
// diagnostics on the returned result. Text holds the raw accumulated
// text the provider produced, truncated to attemptTextLimit.
type Attempt struct {
	Provider  string        `json:"provider"`
	StartedAt time.Time     `json:"started_at"`
	Elapsed   time.Duration `json:"elapsed"`
	Status    AttemptStatus `json:"status"`
	Text      string        `json:"text,omitempty"`
	Error     string        `json:"error,omitempty"`
	Class     ErrorClass    `json:"class,omitempty"`
}

// truncateAttemptText clips text to the attempt record limit.
func truncateAttemptText(text string) string {
	if len(text) > attemptTextLimit {
		return text[:attemptTextLimit]
	}
	return text
}

// Result is a successful dispatch outcome: the normalized text plus the
// full attempt history, including providers that failed before the one
// that succeeded.
type Result struct {
	Text     string
	Provider string
	Attempts []Attempt
}

// Config holds dispatcher tuning knobs.
type Config struct {
	// RateLimitBackoff is the fixed delay before trying the next provider
	// after a rate-limited failure.
	RateLimitBackoff time.Duration
}

// DefaultConfig returns a Config with reasonable defaults.
func DefaultConfig() Config {
	return Config{
		RateLimitBackoff: 3 * time.Second,
	}
}

// Dispatcher executes generation calls against an ordered provider list
// with classified fallback.
type Dispatcher struct {
	providers []Provider
	config    Config
	logger    *slog.Logger
}

// NewDispatcher creates a Dispatcher over the given priority-ordered
// providers.
func NewDispatcher(providers []Provider, config Config, logger *slog.Logger) *Dispatcher {
	if config.RateLimitBackoff <= 0 {
		config.RateLimitBackoff = DefaultConfig().RateLimitBackoff
	}

	return &Dispatcher{
		providers: providers,
		config:    config,
		logger:    logger.With(slog.String("component", "dispatcher")),
	}
}

// Dispatch tries each provider in order until one succeeds. Fallback rules:
// authentication failures abort immediately; rate-limited failures wait the
// configured backoff before the next provider; server, network, and
// malformed-response failures move on with no delay. When every provider
// fails, the returned error is an *ExhaustionError listing each provider's
// classified failure.
func (d *Dispatcher) Dispatch(ctx context.Context, call GenerationCall) (*Result, error) {
	if len(d.providers) == 0 {
		return nil, ErrNoProviders
	}

	attempts := make([]Attempt, 0, len(d.providers))
	failures := make([]*ClassifiedError, 0)

	for i, provider := range d.providers {
		started := time.Now()
		d.logger.InfoContext(ctx, "dispatching generation call",
			"provider", provider.Name(),
			"position", i,
			"stream", call.Stream && provider.SupportsStreaming())

		providerCall := call
		providerCall.Stream = call.Stream && provider.SupportsStreaming()

		text, err := provider.Generate(ctx, providerCall)
		elapsed := time.Since(started)

		if err == nil && strings.TrimSpace(text) == "" {
			// Success status but nothing usable in the body.
			err = NewClassifiedError(ClassMalformed, provider.Name(),
				errors.New("empty response body"))
		}

		if err == nil {
			attempts = append(attempts, Attempt{
				Provider:  provider.Name(),
				StartedAt: started,
				Elapsed:   elapsed,
				Status:    AttemptSuccess,
				Text:      truncateAttemptText(text),
			})
			d.logger.InfoContext(ctx, "generation call succeeded",
				"provider", provider.Name(),
				"elapsed", elapsed,
				"text_length", len(text))
			return &Result{
				Text:     text,
				Provider: provider.Name(),
				Attempts: attempts,
			}, nil
		}

		classified := asClassified(provider.Name(), err)
		failures = append(failures, classified)

		status := AttemptRetryableError
		if !classified.Retryable() {
			status = AttemptFatalError
		}
		attempts = append(attempts, Attempt{
			Provider:  provider.Name(),
			StartedAt: started,
			Elapsed:   elapsed,
			Status:    status,
			Text:      truncateAttemptText(text),
			Error:     classified.Err.Error(),
			Class:     classified.Class,
		})

		d.logger.WarnContext(ctx, "generation call failed",
			"provider", provider.Name(),
			"class", classified.Class,
			"error", classified.Err)

		if classified.Class == ClassAuthentication {
			// All providers likely share the same credential scope;
			// surface instead of silently falling back.
			return nil, fmt.Errorf("%w: %v", ErrAuthentication, classified)
		}

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		if classified.Class == ClassRateLimited && i < len(d.providers)-1 {
			d.logger.InfoContext(ctx, "rate limited, delaying before next provider",
				"backoff", d.config.RateLimitBackoff)
			select {
			case <-time.After(d.config.RateLimitBackoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}

	return nil, &ExhaustionError{Failures: failures}
}

// asClassified coerces a provider error into a ClassifiedError. Errors a
// provider failed to classify are treated as network-class, the most
// conservative retryable class.
func asClassified(provider string, err error) *ClassifiedError {
	var classified *ClassifiedError
	if errors.As(err, &classified) {
		return classified
	}
	return NewClassifiedError(ClassNetwork, provider, err)
}
