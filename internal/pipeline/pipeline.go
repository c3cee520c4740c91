package pipeline

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/glyphsmith/glyphsmith-api/internal/domain"
)

// Status represents the overall state of a pipeline.
type Status string

// Possible pipeline status values
const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusPaused     Status = "paused"
)

// StepStatus represents the state of a single step.
type StepStatus string

// Possible step status values
const (
	StepPending    StepStatus = "pending"
	StepInProgress StepStatus = "in-progress"
	StepCompleted  StepStatus = "completed"
	StepFailed     StepStatus = "failed"
	StepSkipped    StepStatus = "skipped"
)

// Step is one unit of work in a pipeline. It is mutated only by the engine
// executing its pipeline; the retry count lives on the record so it is
// independently inspectable.
type Step struct {
	ID         string        `json:"id"`
	Name       string        `json:"name"`
	Status     StepStatus    `json:"status"`
	RetryCount int           `json:"retry_count"`
	Duration   time.Duration `json:"duration"`
	Result     any           `json:"result,omitempty"`
	LastError  string        `json:"last_error,omitempty"`
}

// Pipeline is one stateful multi-step generation session. The current step
// index only advances when the step at that index completes; a step that
// exhausts its retry budget fails the whole pipeline.
type Pipeline struct {
	mu sync.Mutex

	ID          uuid.UUID
	Request     domain.GenerationRequest
	Steps       []*Step
	Current     int
	Status      Status
	StartedAt   time.Time
	CompletedAt time.Time

	// Feedback accumulates user input keyed by step id, supplied on
	// resume calls.
	Feedback map[string]string
}

// New creates a pending Pipeline for the given request and steps.
func New(request domain.GenerationRequest, steps []*Step) *Pipeline {
	return &Pipeline{
		ID:       uuid.New(),
		Request:  request,
		Steps:    steps,
		Status:   StatusPending,
		Feedback: make(map[string]string),
	}
}

// StepResultByID returns the stored result of a completed step, so later
// steps can read earlier steps' output.
func (p *Pipeline) StepResultByID(id string) (any, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, step := range p.Steps {
		if step.ID == id && step.Status == StepCompleted {
			return step.Result, true
		}
	}
	return nil, false
}

// FeedbackFor returns the user feedback recorded for the given step id.
func (p *Pipeline) FeedbackFor(id string) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	value, ok := p.Feedback[id]
	return value, ok
}

// StepSnapshot is a read-only copy of a step's state.
type StepSnapshot struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Status     StepStatus `json:"status"`
	RetryCount int        `json:"retry_count"`
	DurationMs int64      `json:"duration_ms"`
	Result     any        `json:"result,omitempty"`
	LastError  string     `json:"last_error,omitempty"`
}

// Snapshot is a consistent read-only copy of a pipeline's state.
type Snapshot struct {
	ID          uuid.UUID         `json:"id"`
	Kind        domain.TargetKind `json:"kind"`
	Status      Status            `json:"status"`
	Current     int               `json:"current_step"`
	Steps       []StepSnapshot    `json:"steps"`
	StartedAt   time.Time         `json:"started_at,omitempty"`
	CompletedAt time.Time         `json:"completed_at,omitempty"`
	Feedback    map[string]string `json:"feedback,omitempty"`
}

// Snapshot returns a copy of the pipeline's current state, safe to read
// while the engine is executing.
func (p *Pipeline) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()

	steps := make([]StepSnapshot, 0, len(p.Steps))
	for _, step := range p.Steps {
		steps = append(steps, StepSnapshot{
			ID:         step.ID,
			Name:       step.Name,
			Status:     step.Status,
			RetryCount: step.RetryCount,
			DurationMs: step.Duration.Milliseconds(),
			Result:     step.Result,
			LastError:  step.LastError,
		})
	}

	feedback := make(map[string]string, len(p.Feedback))
	for key, value := range p.Feedback {
		feedback[key] = value
	}

	return Snapshot{
		ID:          p.ID,
		Kind:        p.Request.Kind,
		Status:      p.Status,
		Current:     p.Current,
		Steps:       steps,
		StartedAt:   p.StartedAt,
		CompletedAt: p.CompletedAt,
		Feedback:    feedback,
	}
}
