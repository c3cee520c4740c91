package render

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/glyphsmith/glyphsmith-api/internal/domain"
)

// Options carries per-render presentation settings.
type Options struct {
	Theme    string `json:"theme,omitempty"`
	Viewport string `json:"viewport,omitempty"`
}

// Result is the outcome of one settled render window. Every caller that
// requested a render within the window receives the same Result.
type Result struct {
	Success            bool     `json:"success"`
	Rendered           string   `json:"rendered,omitempty"`
	Errors             []*Error `json:"errors,omitempty"`
	Warnings           []string `json:"warnings,omitempty"`
	RenderTimeMs       int64    `json:"render_time_ms"`
	EstimatedSizeBytes int      `json:"estimated_size_bytes"`
}

// Renderer abstracts the sandboxed execution environment that runs
// markup/script and reports success or a thrown error.
type Renderer interface {
	Render(ctx context.Context, artifact *domain.Artifact, opts Options) (string, error)
}

// Stats is the rolling performance record for one artifact id. The average
// is recomputed as total/count after each completed render; it exists for
// observability and never changes scheduling behavior.
type Stats struct {
	RenderCount int64   `json:"render_count"`
	LastMs      int64   `json:"last_ms"`
	TotalMs     int64   `json:"total_ms"`
	AverageMs   float64 `json:"average_ms"`
}

// Config holds scheduler tuning knobs.
type Config struct {
	// Debounce is the coalescing window for repeated requests against the
	// same artifact id.
	Debounce time.Duration

	// MaxConcurrent caps simultaneous render executions across all jobs.
	MaxConcurrent int
}

// DefaultConfig returns a Config with reasonable defaults.
func DefaultConfig() Config {
	return Config{
		Debounce:      300 * time.Millisecond,
		MaxConcurrent: 3,
	}
}

// window is one debounce window's shared settlement: every caller in the
// window blocks on done and reads the same result.
type window struct {
	artifact *domain.Artifact
	opts     Options
	result   *Result
	done     chan struct{}
}

// job tracks render state for one artifact id. The debounce timer is
// replaced, not stacked, on each new request.
type job struct {
	timer      *time.Timer
	pending    *window
	stats      Stats
	lastErrors []*Error
}

// Scheduler debounces and concurrency-bounds render requests. It owns the
// per-artifact job map explicitly; callers remove entries with Clear when a
// preview is dismissed.
type Scheduler struct {
	mu       sync.Mutex
	jobs     map[string]*job
	sem      chan struct{}
	config   Config
	renderer Renderer
	logger   *slog.Logger
}

// NewScheduler creates a Scheduler over the given sandboxed renderer.
func NewScheduler(renderer Renderer, config Config, logger *slog.Logger) *Scheduler {
	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = DefaultConfig().MaxConcurrent
	}
	if config.Debounce < 0 {
		config.Debounce = DefaultConfig().Debounce
	}

	return &Scheduler{
		jobs:     make(map[string]*job),
		sem:      make(chan struct{}, config.MaxConcurrent),
		config:   config,
		renderer: renderer,
		logger:   logger.With(slog.String("component", "render_scheduler")),
	}
}

// RequestRender schedules a render for the artifact id. Repeated calls
// within the debounce window coalesce: only the last call's artifact and
// options are rendered, and every caller still waiting receives that single
// execution's Result. The call blocks until the window settles or ctx is
// cancelled.
func (s *Scheduler) RequestRender(ctx context.Context, artifactID string, artifact *domain.Artifact, opts Options) (*Result, error) {
	s.mu.Lock()

	j, ok := s.jobs[artifactID]
	if !ok {
		j = &job{}
		s.jobs[artifactID] = j
	}

	if j.pending == nil {
		j.pending = &window{done: make(chan struct{})}
	}

	// Last caller wins the window's payload.
	j.pending.artifact = artifact
	j.pending.opts = opts
	w := j.pending

	if j.timer != nil {
		j.timer.Stop()
	}
	j.timer = time.AfterFunc(s.config.Debounce, func() {
		s.execute(artifactID)
	})

	s.mu.Unlock()

	select {
	case <-w.done:
		return w.result, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// execute runs the settled window for an artifact id.
func (s *Scheduler) execute(artifactID string) {
	s.mu.Lock()
	j, ok := s.jobs[artifactID]
	if !ok || j.pending == nil {
		s.mu.Unlock()
		return
	}
	w := j.pending
	j.pending = nil
	j.timer = nil
	s.mu.Unlock()

	// Global concurrency bound: fail fast when saturated instead of
	// queuing without limit.
	select {
	case s.sem <- struct{}{}:
	default:
		s.logger.Warn("render concurrency bound saturated, rejecting",
			"artifact_id", artifactID)
		s.settle(artifactID, w, &Result{
			Success: false,
			Errors: []*Error{newError(TypeRuntime,
				"too many concurrent renders, retry shortly")},
		})
		return
	}
	defer func() { <-s.sem }()

	// Pre-render validation applies to component artifacts only; it
	// short-circuits before any execution is attempted.
	if w.artifact != nil && w.artifact.Kind == domain.KindComponent && w.artifact.Component != nil {
		if verr := ValidateComponentSource(w.artifact.Component.SourceCode); verr != nil {
			s.settle(artifactID, w, &Result{
				Success: false,
				Errors:  []*Error{verr},
			})
			return
		}
	}

	started := time.Now()
	rendered, err := s.renderer.Render(context.Background(), w.artifact, w.opts)
	elapsedMs := time.Since(started).Milliseconds()

	result := &Result{
		RenderTimeMs:       elapsedMs,
		EstimatedSizeBytes: len(rendered),
	}

	if err != nil {
		result.Errors = []*Error{ClassifyExecutionError(err)}
	} else {
		result.Success = true
		result.Rendered = rendered
	}

	s.recordStats(artifactID, elapsedMs, result.Errors)
	s.settle(artifactID, w, result)
}

// settle publishes the window result to every waiting caller.
func (s *Scheduler) settle(artifactID string, w *window, result *Result) {
	s.mu.Lock()
	if j, ok := s.jobs[artifactID]; ok && len(result.Errors) > 0 {
		j.lastErrors = result.Errors
	}
	s.mu.Unlock()

	w.result = result
	close(w.done)
}

// recordStats folds one completed render into the job's rolling stats.
func (s *Scheduler) recordStats(artifactID string, elapsedMs int64, errs []*Error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[artifactID]
	if !ok {
		return
	}

	j.stats.RenderCount++
	j.stats.LastMs = elapsedMs
	j.stats.TotalMs += elapsedMs
	j.stats.AverageMs = float64(j.stats.TotalMs) / float64(j.stats.RenderCount)

	if len(errs) > 0 {
		j.lastErrors = errs
	}
}

// Stats returns the rolling performance record for an artifact id.
func (s *Scheduler) Stats(artifactID string) (Stats, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[artifactID]
	if !ok {
		return Stats{}, false
	}
	return j.stats, true
}

// LastErrors returns the most recent error list for an artifact id.
func (s *Scheduler) LastErrors(artifactID string) []*Error {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[artifactID]
	if !ok {
		return nil
	}
	return j.lastErrors
}

// Clear removes all render state for an artifact id. A pending window, if
// any, still settles; its callers are not abandoned.
func (s *Scheduler) Clear(artifactID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[artifactID]
	if !ok {
		return
	}
	if j.timer != nil && j.pending == nil {
		j.timer.Stop()
	}
	if j.pending == nil {
		delete(s.jobs, artifactID)
	}
	// With a pending window the entry stays until execute settles it;
	// the next Clear call removes it.
}
