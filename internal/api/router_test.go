package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glyphsmith/glyphsmith-api/internal/dispatch"
	"github.com/glyphsmith/glyphsmith-api/internal/pipeline"
	"github.com/glyphsmith/glyphsmith-api/internal/render"
	"github.com/glyphsmith/glyphsmith-api/internal/service"
	"github.com/glyphsmith/glyphsmith-api/internal/store"
)

var iconMarkup = `<style>.icon { fill: currentColor; stroke-width: 2; }</style>
<svg name="home" viewBox="0 0 24 24"><path d="M3 12l9-9 9 9v9H3z"/></svg>
<svg name="search" viewBox="0 0 24 24"><circle cx="11" cy="11" r="7"/></svg>`

// stubProvider implements dispatch.Provider with a fixed response.
type stubProvider struct {
	text string
	err  error
}

func (p *stubProvider) Name() string            { return "stub" }
func (p *stubProvider) SupportsStreaming() bool { return false }

func (p *stubProvider) Generate(ctx context.Context, call dispatch.GenerationCall) (string, error) {
	return p.text, p.err
}

// blockingProvider holds every generation call until release is closed,
// keeping pipelines in progress for as long as a test needs.
type blockingProvider struct {
	release chan struct{}
}

func (p *blockingProvider) Name() string            { return "blocking" }
func (p *blockingProvider) SupportsStreaming() bool { return false }

func (p *blockingProvider) Generate(ctx context.Context, call dispatch.GenerationCall) (string, error) {
	select {
	case <-p.release:
		return "", dispatch.NewClassifiedError(dispatch.ClassServer, p.Name(), context.Canceled)
	case <-ctx.Done():
		return "", dispatch.NewClassifiedError(dispatch.ClassNetwork, p.Name(), ctx.Err())
	}
}

func setupTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
}

// newTestServer wires the full HTTP surface over a stub provider and an
// in-memory store.
func newTestServer(t *testing.T, provider dispatch.Provider) *httptest.Server {
	t.Helper()

	logger := setupTestLogger()
	dispatcher := dispatch.NewDispatcher([]dispatch.Provider{provider}, dispatch.DefaultConfig(), logger)
	engine := pipeline.NewEngine(pipeline.NewRegistry(), pipeline.DefaultConfig(), nil, logger)
	params := pipeline.ModelParams{Model: "test-model"}
	pipeline.NewStepSet(dispatcher, params, logger).Register(engine)

	svc := service.NewGenerationService(dispatcher, engine, params, store.NewMemoryStore(), logger)
	scheduler := render.NewScheduler(render.NewPreviewRenderer(), render.Config{
		Debounce:      5 * time.Millisecond,
		MaxConcurrent: 3,
	}, logger)

	server := httptest.NewServer(NewRouter(
		NewGenerationHandler(svc, logger),
		NewRenderHandler(scheduler, logger),
	))
	t.Cleanup(server.Close)
	return server
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()

	payload, err := json.Marshal(body)
	require.NoError(t, err)

	resp, err := http.Post(url, "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	return resp
}

func doDelete(t *testing.T, url string) *http.Response {
	t.Helper()

	req, err := http.NewRequest(http.MethodDelete, url, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, dst any) {
	t.Helper()
	defer func() { _ = resp.Body.Close() }()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(dst))
}

func TestGenerateEndpoint(t *testing.T) {
	t.Parallel()

	server := newTestServer(t, &stubProvider{text: iconMarkup})

	resp := postJSON(t, server.URL+"/api/generate", GenerateRequest{
		Description: "a pair of outline icons",
		Kind:        "icon-pack",
	})

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body GenerateResponse
	decodeBody(t, resp, &body)
	assert.NotEmpty(t, body.RequestID)
	require.NotNil(t, body.Artifact)
	assert.Len(t, body.Artifact.Icons, 2)
}

func TestGenerateEndpointValidation(t *testing.T) {
	t.Parallel()

	server := newTestServer(t, &stubProvider{text: iconMarkup})

	cases := []struct {
		name string
		body GenerateRequest
	}{
		{"missing description", GenerateRequest{Kind: "icon-pack"}},
		{"missing kind", GenerateRequest{Description: "something"}},
		{"unknown kind", GenerateRequest{Description: "something", Kind: "poster"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := postJSON(t, server.URL+"/api/generate", tc.body)
			defer func() { _ = resp.Body.Close() }()
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
}

func TestGenerateEndpointExhaustion(t *testing.T) {
	t.Parallel()

	server := newTestServer(t, &stubProvider{
		err: dispatch.NewClassifiedError(dispatch.ClassServer, "stub", assert.AnError),
	})

	resp := postJSON(t, server.URL+"/api/generate", GenerateRequest{
		Description: "anything",
		Kind:        "icon-pack",
	})
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
}

func TestPipelineEndpoints(t *testing.T) {
	t.Parallel()

	server := newTestServer(t, &stubProvider{text: iconMarkup})

	resp := postJSON(t, server.URL+"/api/pipelines/", GenerateRequest{
		Description: "a pair of outline icons",
		Kind:        "icon-pack",
	})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var started StartPipelineResponse
	decodeBody(t, resp, &started)
	require.NotEmpty(t, started.PipelineID)

	// Poll until the pipeline completes.
	require.Eventually(t, func() bool {
		getResp, err := http.Get(server.URL + "/api/pipelines/" + started.PipelineID)
		if err != nil {
			return false
		}
		var snapshot pipeline.Snapshot
		decodeBody(t, getResp, &snapshot)
		return snapshot.Status == pipeline.StatusCompleted
	}, 10*time.Second, 20*time.Millisecond)

	// Cancelling a finished pipeline conflicts.
	resp = postJSON(t, server.URL+"/api/pipelines/"+started.PipelineID+"/cancel", struct{}{})
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	// A finished pipeline can be deleted, after which it is gone.
	delResp := doDelete(t, server.URL+"/api/pipelines/"+started.PipelineID)
	assert.Equal(t, http.StatusNoContent, delResp.StatusCode)

	getResp, err := http.Get(server.URL + "/api/pipelines/" + started.PipelineID)
	require.NoError(t, err)
	defer func() { _ = getResp.Body.Close() }()
	assert.Equal(t, http.StatusNotFound, getResp.StatusCode)
}

func TestDeletePipelineRejectsActive(t *testing.T) {
	t.Parallel()

	// A paused pipeline stays resident until cancelled or resumed to
	// completion; deleting it must conflict.
	blocked := make(chan struct{})
	t.Cleanup(func() { close(blocked) })
	provider := &blockingProvider{release: blocked}
	server := newTestServer(t, provider)

	resp := postJSON(t, server.URL+"/api/pipelines/", GenerateRequest{
		Description: "a pair of outline icons",
		Kind:        "icon-pack",
	})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var started StartPipelineResponse
	decodeBody(t, resp, &started)

	delResp := doDelete(t, server.URL+"/api/pipelines/"+started.PipelineID)
	assert.Equal(t, http.StatusConflict, delResp.StatusCode)

	delResp = doDelete(t, server.URL+"/api/pipelines/"+uuid.NewString())
	assert.Equal(t, http.StatusNotFound, delResp.StatusCode)
}

func TestPipelineNotFound(t *testing.T) {
	t.Parallel()

	server := newTestServer(t, &stubProvider{text: iconMarkup})

	resp, err := http.Get(server.URL + "/api/pipelines/" + uuid.NewString())
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = http.Get(server.URL + "/api/pipelines/not-a-uuid")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRenderEndpoint(t *testing.T) {
	t.Parallel()

	server := newTestServer(t, &stubProvider{text: iconMarkup})

	artifactID := "artifact-1"
	resp := postJSON(t, server.URL+"/api/render/", map[string]any{
		"artifact_id": artifactID,
		"artifact": map[string]any{
			"kind": "icon-pack",
			"icons": []map[string]any{
				{"id": "icon-0", "semantic_name": "home", "raw_markup": "<svg/>", "bounding_size": 24},
			},
		},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result render.Result
	decodeBody(t, resp, &result)
	assert.True(t, result.Success)
	assert.Contains(t, result.Rendered, "<svg/>")

	// Stats exist after the render and disappear after clearing.
	statsResp, err := http.Get(server.URL + "/api/render/" + artifactID + "/stats")
	require.NoError(t, err)
	var stats render.Stats
	decodeBody(t, statsResp, &stats)
	assert.Equal(t, int64(1), stats.RenderCount)

	req, err := http.NewRequest(http.MethodDelete, server.URL+"/api/render/"+artifactID, nil)
	require.NoError(t, err)
	delResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	_ = delResp.Body.Close()
	assert.Equal(t, http.StatusNoContent, delResp.StatusCode)

	statsResp, err = http.Get(server.URL + "/api/render/" + artifactID + "/stats")
	require.NoError(t, err)
	_ = statsResp.Body.Close()
	assert.Equal(t, http.StatusNotFound, statsResp.StatusCode)
}

func TestRenderEndpointValidation(t *testing.T) {
	t.Parallel()

	server := newTestServer(t, &stubProvider{text: iconMarkup})

	resp := postJSON(t, server.URL+"/api/render/", map[string]any{
		"artifact_id": "only-an-id",
	})
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
