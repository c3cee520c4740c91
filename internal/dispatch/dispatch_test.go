package dispatch

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubProvider implements Provider for testing with a configurable response.
type stubProvider struct {
	name      string
	streaming bool
	calls     int
	generate  func(ctx context.Context, call GenerationCall) (string, error)
}

func (p *stubProvider) Name() string            { return p.name }
func (p *stubProvider) SupportsStreaming() bool { return p.streaming }

func (p *stubProvider) Generate(ctx context.Context, call GenerationCall) (string, error) {
	p.calls++
	return p.generate(ctx, call)
}

func succeeding(name, text string) *stubProvider {
	return &stubProvider{
		name: name,
		generate: func(ctx context.Context, call GenerationCall) (string, error) {
			return text, nil
		},
	}
}

func failing(name string, class ErrorClass) *stubProvider {
	return &stubProvider{
		name: name,
		generate: func(ctx context.Context, call GenerationCall) (string, error) {
			return "", NewClassifiedError(class, name, errors.New("provider exploded"))
		},
	}
}

func setupTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
}

func testCall() GenerationCall {
	return GenerationCall{
		Model:    "test-model",
		Messages: []Message{{Role: "user", Content: "draw me an icon"}},
	}
}

func TestDispatchFirstProviderSucceeds(t *testing.T) {
	t.Parallel()

	primary := succeeding("primary", "<svg/>")
	secondary := succeeding("secondary", "unused")
	d := NewDispatcher([]Provider{primary, secondary}, DefaultConfig(), setupTestLogger())

	result, err := d.Dispatch(context.Background(), testCall())

	require.NoError(t, err)
	assert.Equal(t, "<svg/>", result.Text)
	assert.Equal(t, "primary", result.Provider)
	require.Len(t, result.Attempts, 1)
	assert.Equal(t, AttemptSuccess, result.Attempts[0].Status)
	assert.Equal(t, 0, secondary.calls, "fallback provider should not be called")
}

func TestDispatchFallsBackOnServerError(t *testing.T) {
	t.Parallel()

	primary := failing("primary", ClassServer)
	secondary := succeeding("secondary", "<svg/>")
	d := NewDispatcher([]Provider{primary, secondary}, DefaultConfig(), setupTestLogger())

	result, err := d.Dispatch(context.Background(), testCall())

	require.NoError(t, err)
	assert.Equal(t, "secondary", result.Provider)

	// The attempt history records the failed provider before the winner.
	require.Len(t, result.Attempts, 2)
	assert.Equal(t, "primary", result.Attempts[0].Provider)
	assert.Equal(t, AttemptRetryableError, result.Attempts[0].Status)
	assert.Equal(t, ClassServer, result.Attempts[0].Class)
	assert.Equal(t, "secondary", result.Attempts[1].Provider)
	assert.Equal(t, AttemptSuccess, result.Attempts[1].Status)
}

func TestDispatchAuthenticationAbortsImmediately(t *testing.T) {
	t.Parallel()

	primary := failing("primary", ClassAuthentication)
	secondary := succeeding("secondary", "unused")
	d := NewDispatcher([]Provider{primary, secondary}, DefaultConfig(), setupTestLogger())

	_, err := d.Dispatch(context.Background(), testCall())

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAuthentication)
	assert.Equal(t, 0, secondary.calls, "auth failure must not fall back")
}

func TestDispatchRateLimitBacksOffBeforeNextProvider(t *testing.T) {
	t.Parallel()

	primary := failing("primary", ClassRateLimited)
	secondary := succeeding("secondary", "<svg/>")
	d := NewDispatcher([]Provider{primary, secondary}, Config{
		RateLimitBackoff: 50 * time.Millisecond,
	}, setupTestLogger())

	started := time.Now()
	result, err := d.Dispatch(context.Background(), testCall())
	elapsed := time.Since(started)

	require.NoError(t, err)
	assert.Equal(t, "secondary", result.Provider)
	assert.GreaterOrEqual(t, elapsed, 50*time.Millisecond,
		"rate-limited fallback should wait the configured backoff")
}

func TestDispatchAttemptRecordsText(t *testing.T) {
	t.Parallel()

	// The attempt history keeps the raw accumulated text, truncated so a
	// long response cannot bloat the record.
	empty := succeeding("empty", "   ")
	long := succeeding("long", strings.Repeat("x", attemptTextLimit+100))
	d := NewDispatcher([]Provider{empty, long}, DefaultConfig(), setupTestLogger())

	result, err := d.Dispatch(context.Background(), testCall())

	require.NoError(t, err)
	require.Len(t, result.Attempts, 2)
	assert.Equal(t, "   ", result.Attempts[0].Text,
		"a failed attempt keeps what the provider produced")
	assert.Len(t, result.Attempts[1].Text, attemptTextLimit)
	assert.Len(t, result.Text, attemptTextLimit+100,
		"truncation applies to the attempt record only")
}

func TestDispatchEmptyTextIsMalformed(t *testing.T) {
	t.Parallel()

	// A provider returning success with nothing usable falls back like a
	// malformed response.
	primary := succeeding("primary", "   \n\t ")
	secondary := succeeding("secondary", "real output")
	d := NewDispatcher([]Provider{primary, secondary}, DefaultConfig(), setupTestLogger())

	result, err := d.Dispatch(context.Background(), testCall())

	require.NoError(t, err)
	assert.Equal(t, "secondary", result.Provider)
	require.Len(t, result.Attempts, 2)
	assert.Equal(t, ClassMalformed, result.Attempts[0].Class)
}

func TestDispatchExhaustionListsEveryFailure(t *testing.T) {
	t.Parallel()

	primary := failing("primary", ClassServer)
	secondary := failing("secondary", ClassNetwork)
	d := NewDispatcher([]Provider{primary, secondary}, DefaultConfig(), setupTestLogger())

	_, err := d.Dispatch(context.Background(), testCall())

	require.Error(t, err)
	var exhausted *ExhaustionError
	require.ErrorAs(t, err, &exhausted)
	require.Len(t, exhausted.Failures, 2)
	assert.Equal(t, "primary", exhausted.Failures[0].Provider)
	assert.Equal(t, ClassServer, exhausted.Failures[0].Class)
	assert.Equal(t, "secondary", exhausted.Failures[1].Provider)
	assert.Equal(t, ClassNetwork, exhausted.Failures[1].Class)
}

func TestDispatchNoProviders(t *testing.T) {
	t.Parallel()

	d := NewDispatcher(nil, DefaultConfig(), setupTestLogger())
	_, err := d.Dispatch(context.Background(), testCall())

	assert.ErrorIs(t, err, ErrNoProviders)
}

func TestDispatchUnclassifiedErrorTreatedAsNetwork(t *testing.T) {
	t.Parallel()

	primary := &stubProvider{
		name: "primary",
		generate: func(ctx context.Context, call GenerationCall) (string, error) {
			return "", errors.New("raw transport mess")
		},
	}
	secondary := succeeding("secondary", "output")
	d := NewDispatcher([]Provider{primary, secondary}, DefaultConfig(), setupTestLogger())

	result, err := d.Dispatch(context.Background(), testCall())

	require.NoError(t, err)
	assert.Equal(t, ClassNetwork, result.Attempts[0].Class)
}

func TestDispatchStreamDowngradedForNonStreamingProvider(t *testing.T) {
	t.Parallel()

	var sawStream bool
	primary := &stubProvider{
		name:      "primary",
		streaming: false,
		generate: func(ctx context.Context, call GenerationCall) (string, error) {
			sawStream = call.Stream
			return "output", nil
		},
	}
	d := NewDispatcher([]Provider{primary}, DefaultConfig(), setupTestLogger())

	call := testCall()
	call.Stream = true
	_, err := d.Dispatch(context.Background(), call)

	require.NoError(t, err)
	assert.False(t, sawStream, "non-streaming provider must receive a blocking call")
}

func TestDispatchCancelledContext(t *testing.T) {
	t.Parallel()

	primary := failing("primary", ClassServer)
	secondary := succeeding("secondary", "unused")
	d := NewDispatcher([]Provider{primary, secondary}, DefaultConfig(), setupTestLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := d.Dispatch(ctx, testCall())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestClassifyStatus(t *testing.T) {
	t.Parallel()

	cases := []struct {
		status int
		want   ErrorClass
	}{
		{401, ClassAuthentication},
		{403, ClassAuthentication},
		{429, ClassRateLimited},
		{500, ClassServer},
		{503, ClassServer},
		{400, ClassServer},
		{404, ClassServer},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, ClassifyStatus(tc.status), "status %d", tc.status)
	}
}

func TestClassifiedErrorRetryable(t *testing.T) {
	t.Parallel()

	for _, class := range []ErrorClass{ClassRateLimited, ClassServer, ClassNetwork, ClassMalformed} {
		err := NewClassifiedError(class, "p", errors.New("x"))
		assert.True(t, err.Retryable(), "class %s", class)
	}

	err := NewClassifiedError(ClassAuthentication, "p", errors.New("x"))
	assert.False(t, err.Retryable())
}
