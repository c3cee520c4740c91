package dispatch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPProviderBlockingResponse(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var body chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "test-model", body.Model)
		assert.False(t, body.Stream)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"<svg></svg>"}}]}`))
	}))
	defer server.Close()

	p := NewHTTPProvider(HTTPProviderSpec{
		Name:     "test",
		Endpoint: server.URL,
		APIKey:   "secret",
	}, nil)

	text, err := p.Generate(context.Background(), testCall())

	require.NoError(t, err)
	assert.Equal(t, "<svg></svg>", text)
}

func TestHTTPProviderStreamAssembly(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "text/event-stream", r.Header.Get("Accept"))

		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)

		// Deltas arrive out of alignment with transport writes; the
		// decoder must reassemble them losslessly in order.
		chunks := []string{
			"data: {\"choices\":[{\"delta\":{\"content\":\"<sv\"}}]}\n\ndata: {\"choi",
			"ces\":[{\"delta\":{\"content\":\"g>\"}}]}\n",
			"data: {\"choices\":[{\"delta\":{\"content\":\"</svg>\"}}]}\n",
			"data: [DONE]\n",
		}
		for _, chunk := range chunks {
			_, _ = w.Write([]byte(chunk))
			flusher.Flush()
		}
	}))
	defer server.Close()

	p := NewHTTPProvider(HTTPProviderSpec{
		Name:      "test",
		Endpoint:  server.URL,
		Streaming: true,
	}, nil)

	call := testCall()
	call.Stream = true
	text, err := p.Generate(context.Background(), call)

	require.NoError(t, err)
	assert.Equal(t, "<svg></svg>", text)
}

func TestHTTPProviderStreamSkipsUnknownEvents(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(": keep-alive\n"))
		_, _ = w.Write([]byte("data: not json at all\n"))
		_, _ = w.Write([]byte("data: {\"choices\":[{\"delta\":{\"content\":\"ok\"}}]}\n"))
		_, _ = w.Write([]byte("data: [DONE]\n"))
	}))
	defer server.Close()

	p := NewHTTPProvider(HTTPProviderSpec{Name: "test", Endpoint: server.URL, Streaming: true}, nil)

	call := testCall()
	call.Stream = true
	text, err := p.Generate(context.Background(), call)

	require.NoError(t, err)
	assert.Equal(t, "ok", text)
}

func TestHTTPProviderStreamCancellation(t *testing.T) {
	t.Parallel()

	// The server sends one delta and then stalls forever; the only way out
	// for the client is its own context.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = w.Write([]byte("data: {\"choices\":[{\"delta\":{\"content\":\"partial\"}}]}\n"))
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	}))
	defer server.Close()

	p := NewHTTPProvider(HTTPProviderSpec{Name: "test", Endpoint: server.URL, Streaming: true}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	type outcome struct {
		text string
		err  error
	}
	done := make(chan outcome, 1)
	go func() {
		call := testCall()
		call.Stream = true
		text, err := p.Generate(ctx, call)
		done <- outcome{text, err}
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case got := <-done:
		var classified *ClassifiedError
		require.ErrorAs(t, got.err, &classified)
		assert.Equal(t, ClassNetwork, classified.Class)
		assert.ErrorIs(t, got.err, context.Canceled)
		assert.Empty(t, got.text)
	case <-time.After(2 * time.Second):
		t.Fatal("Generate did not return after context cancellation")
	}
}

func TestHTTPProviderStatusClassification(t *testing.T) {
	t.Parallel()

	cases := []struct {
		status int
		want   ErrorClass
	}{
		{http.StatusUnauthorized, ClassAuthentication},
		{http.StatusForbidden, ClassAuthentication},
		{http.StatusTooManyRequests, ClassRateLimited},
		{http.StatusInternalServerError, ClassServer},
		{http.StatusBadRequest, ClassServer},
	}

	for _, tc := range cases {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
			_, _ = w.Write([]byte("nope"))
		}))

		p := NewHTTPProvider(HTTPProviderSpec{Name: "test", Endpoint: server.URL}, nil)
		_, err := p.Generate(context.Background(), testCall())
		server.Close()

		var classified *ClassifiedError
		require.ErrorAs(t, err, &classified, "status %d", tc.status)
		assert.Equal(t, tc.want, classified.Class, "status %d", tc.status)
		assert.Equal(t, "test", classified.Provider)
	}
}

func TestHTTPProviderMalformedBody(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("this is not json"))
	}))
	defer server.Close()

	p := NewHTTPProvider(HTTPProviderSpec{Name: "test", Endpoint: server.URL}, nil)
	_, err := p.Generate(context.Background(), testCall())

	var classified *ClassifiedError
	require.ErrorAs(t, err, &classified)
	assert.Equal(t, ClassMalformed, classified.Class)
}

func TestHTTPProviderNoChoices(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer server.Close()

	p := NewHTTPProvider(HTTPProviderSpec{Name: "test", Endpoint: server.URL}, nil)
	_, err := p.Generate(context.Background(), testCall())

	var classified *ClassifiedError
	require.ErrorAs(t, err, &classified)
	assert.Equal(t, ClassMalformed, classified.Class)
}

func TestHTTPProviderConnectionFailureIsNetwork(t *testing.T) {
	t.Parallel()

	// Closed server: the dial fails.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	p := NewHTTPProvider(HTTPProviderSpec{Name: "test", Endpoint: server.URL}, nil)
	_, err := p.Generate(context.Background(), testCall())

	var classified *ClassifiedError
	require.ErrorAs(t, err, &classified)
	assert.Equal(t, ClassNetwork, classified.Class)
}

func TestHTTPProviderModelOverride(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "pinned-model", body.Model)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
	}))
	defer server.Close()

	p := NewHTTPProvider(HTTPProviderSpec{
		Name:     "test",
		Endpoint: server.URL,
		Model:    "pinned-model",
	}, nil)

	_, err := p.Generate(context.Background(), testCall())
	require.NoError(t, err)
}
