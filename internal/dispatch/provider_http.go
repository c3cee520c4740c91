package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HTTPProviderSpec configures one HTTP-shaped provider endpoint speaking
// the common chat-completions wire format.
type HTTPProviderSpec struct {
	// Name identifies the provider in logs and attempt records.
	Name string

	// Endpoint is the full completions URL.
	Endpoint string

	// APIKey, when set, is sent as a bearer token.
	APIKey string

	// Model, when set, overrides the call's model identifier.
	Model string

	// Streaming enables chunked event-stream responses.
	Streaming bool
}

// HTTPProvider calls an HTTP endpoint that accepts role-tagged messages and
// returns either one complete JSON payload or a newline-delimited event
// stream of delta fragments.
type HTTPProvider struct {
	spec   HTTPProviderSpec
	client *http.Client
}

// NewHTTPProvider creates an HTTPProvider for the given spec. A nil client
// uses a default with a 120 second overall timeout.
func NewHTTPProvider(spec HTTPProviderSpec, client *http.Client) *HTTPProvider {
	if client == nil {
		client = &http.Client{Timeout: 120 * time.Second}
	}
	return &HTTPProvider{spec: spec, client: client}
}

// Name returns the provider's configured name.
func (p *HTTPProvider) Name() string { return p.spec.Name }

// SupportsStreaming reports whether the endpoint streams chunks.
func (p *HTTPProvider) SupportsStreaming() bool { return p.spec.Streaming }

// chatRequest is the provider wire request.
type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float32   `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Stream      bool      `json:"stream,omitempty"`
}

// chatResponse is the blocking wire response.
type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// chatChunk is one decoded streaming event payload.
type chatChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// Generate executes one generation call. All failures are returned as
// *ClassifiedError so the dispatcher can apply its fallback rules.
func (p *HTTPProvider) Generate(ctx context.Context, call GenerationCall) (string, error) {
	model := call.Model
	if p.spec.Model != "" {
		model = p.spec.Model
	}

	body, err := json.Marshal(chatRequest{
		Model:       model,
		Messages:    call.Messages,
		Temperature: call.Temperature,
		MaxTokens:   call.MaxOutputTokens,
		Stream:      call.Stream,
	})
	if err != nil {
		return "", NewClassifiedError(ClassMalformed, p.spec.Name,
			fmt.Errorf("failed to encode request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.spec.Endpoint, bytes.NewReader(body))
	if err != nil {
		return "", NewClassifiedError(ClassNetwork, p.spec.Name,
			fmt.Errorf("failed to build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	if p.spec.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.spec.APIKey)
	}
	if call.Stream {
		req.Header.Set("Accept", "text/event-stream")
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return "", NewClassifiedError(ClassNetwork, p.spec.Name, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		// Drain a little of the body for the error message, then classify.
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", NewClassifiedError(ClassifyStatus(resp.StatusCode), p.spec.Name,
			fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet))))
	}

	if call.Stream {
		return p.assembleStream(ctx, resp.Body)
	}

	return p.decodeBlocking(resp.Body)
}

// decodeBlocking parses a single complete response payload.
func (p *HTTPProvider) decodeBlocking(body io.Reader) (string, error) {
	raw, err := io.ReadAll(body)
	if err != nil {
		return "", NewClassifiedError(ClassNetwork, p.spec.Name,
			fmt.Errorf("failed to read response body: %w", err))
	}

	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", NewClassifiedError(ClassMalformed, p.spec.Name,
			fmt.Errorf("failed to parse response: %w", err))
	}

	if len(parsed.Choices) == 0 {
		return "", NewClassifiedError(ClassMalformed, p.spec.Name,
			fmt.Errorf("response contains no choices"))
	}

	return parsed.Choices[0].Message.Content, nil
}

// assembleStream reads transport chunks and losslessly accumulates delta
// fragments in arrival order. It terminates on the explicit end-of-stream
// marker, on stream closure, or when ctx is cancelled (the transport read
// is aborted by the request context).
func (p *HTTPProvider) assembleStream(ctx context.Context, body io.Reader) (string, error) {
	var (
		decoder ChunkDecoder
		out     strings.Builder
		buf     = make([]byte, 4096)
	)

	appendEvent := func(event Event) bool {
		if event.Done {
			return false
		}
		var chunk chatChunk
		if err := json.Unmarshal([]byte(event.Data), &chunk); err != nil {
			// Unknown event payloads are skipped, not fatal: keep-alive
			// and metadata records share the same channel.
			return true
		}
		for _, choice := range chunk.Choices {
			out.WriteString(choice.Delta.Content)
		}
		return true
	}

	for {
		n, err := body.Read(buf)
		if n > 0 {
			for _, event := range decoder.Feed(buf[:n]) {
				if !appendEvent(event) {
					return out.String(), nil
				}
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			if ctx.Err() != nil {
				return "", NewClassifiedError(ClassNetwork, p.spec.Name, ctx.Err())
			}
			return "", NewClassifiedError(ClassNetwork, p.spec.Name,
				fmt.Errorf("stream read failed: %w", err))
		}
	}

	if event, ok := decoder.Finish(); ok {
		appendEvent(event)
	}

	return out.String(), nil
}
