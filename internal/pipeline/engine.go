package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/glyphsmith/glyphsmith-api/internal/events"
)

// Common errors returned by the Engine
var (
	ErrUnknownStepHandler = errors.New("no handler registered for step")
	ErrNotPaused          = errors.New("pipeline is not paused")
	ErrAlreadyTerminal    = errors.New("pipeline already reached a terminal state")
	ErrNotTerminal        = errors.New("pipeline has not reached a terminal state")
)

// StepResult is what a handler returns on success. NeedsUserInput pauses
// the pipeline at the current step until an explicit resume call.
type StepResult struct {
	Payload        any
	NeedsUserInput bool
}

// Handler executes one step. It receives the pipeline so later steps can
// read earlier steps' results, and the step record for its own bookkeeping.
type Handler func(ctx context.Context, p *Pipeline, step *Step) (*StepResult, error)

// Config holds engine tuning knobs.
type Config struct {
	// MaxStepRetries is how many times a failing step is re-invoked
	// before the pipeline fails. Total attempts = MaxStepRetries + 1.
	MaxStepRetries int
}

// DefaultConfig returns a Config with reasonable defaults.
func DefaultConfig() Config {
	return Config{MaxStepRetries: 2}
}

// Engine executes pipelines step by step, strictly in array order, never
// concurrently within one pipeline. Pipelines run independently of each
// other with no shared mutable state.
type Engine struct {
	registry *Registry
	handlers map[string]Handler
	config   Config
	emitter  events.EventEmitter
	logger   *slog.Logger

	cancelMu sync.Mutex
	cancels  map[uuid.UUID]context.CancelFunc
}

// NewEngine creates an Engine over the given registry. The emitter may be
// nil when no subscribers exist.
func NewEngine(registry *Registry, config Config, emitter events.EventEmitter, logger *slog.Logger) *Engine {
	if config.MaxStepRetries < 0 {
		config.MaxStepRetries = DefaultConfig().MaxStepRetries
	}

	return &Engine{
		registry: registry,
		handlers: make(map[string]Handler),
		config:   config,
		emitter:  emitter,
		logger:   logger.With(slog.String("component", "pipeline_engine")),
		cancels:  make(map[uuid.UUID]context.CancelFunc),
	}
}

// RegisterHandler binds a handler to a step id. Registering twice replaces
// the previous handler.
func (e *Engine) RegisterHandler(stepID string, handler Handler) {
	e.handlers[stepID] = handler
}

// Registry returns the engine's pipeline registry.
func (e *Engine) Registry() *Registry {
	return e.registry
}

// Start transitions a pending pipeline to in-progress and begins executing
// its steps at index 0 in a background goroutine. Every step must have a
// registered handler.
func (e *Engine) Start(p *Pipeline) error {
	for _, step := range p.Steps {
		if _, ok := e.handlers[step.ID]; !ok {
			return fmt.Errorf("%w: %s", ErrUnknownStepHandler, step.ID)
		}
	}

	p.mu.Lock()
	if p.Status != StatusPending {
		p.mu.Unlock()
		return fmt.Errorf("cannot start pipeline in status %q", p.Status)
	}
	p.Status = StatusInProgress
	p.StartedAt = time.Now().UTC()
	p.mu.Unlock()

	e.registry.Put(p)

	// Execution outlives the submitting request; cancellation happens
	// through Cancel, not the caller's context.
	runCtx, cancel := context.WithCancel(context.Background())
	e.cancelMu.Lock()
	e.cancels[p.ID] = cancel
	e.cancelMu.Unlock()

	e.emit(runCtx, events.TypePipelineStarted, p.ID, nil)

	go e.run(runCtx, p)
	return nil
}

// Resume transitions a paused pipeline back to in-progress and continues
// from the same step index. Feedback entries are merged into the
// pipeline's feedback map before the step re-executes.
func (e *Engine) Resume(id uuid.UUID, feedback map[string]string) error {
	p, err := e.registry.Get(id)
	if err != nil {
		return err
	}

	p.mu.Lock()
	if p.Status != StatusPaused {
		p.mu.Unlock()
		return fmt.Errorf("%w: status is %q", ErrNotPaused, p.Status)
	}
	for key, value := range feedback {
		p.Feedback[key] = value
	}
	p.Status = StatusInProgress
	p.mu.Unlock()

	runCtx, cancel := context.WithCancel(context.Background())
	e.cancelMu.Lock()
	e.cancels[p.ID] = cancel
	e.cancelMu.Unlock()

	e.emit(runCtx, events.TypePipelineResumed, p.ID, feedback)

	go e.run(runCtx, p)
	return nil
}

// Cancel marks the pipeline failed and abandons further step execution.
// Side effects of already completed steps are not rolled back.
func (e *Engine) Cancel(id uuid.UUID) error {
	p, err := e.registry.Get(id)
	if err != nil {
		return err
	}

	e.cancelMu.Lock()
	if cancel, ok := e.cancels[id]; ok {
		cancel()
		delete(e.cancels, id)
	}
	e.cancelMu.Unlock()

	p.mu.Lock()
	if p.Status == StatusCompleted || p.Status == StatusFailed {
		p.mu.Unlock()
		return ErrAlreadyTerminal
	}
	p.Status = StatusFailed
	p.CompletedAt = time.Now().UTC()
	p.mu.Unlock()

	e.emit(context.Background(), events.TypePipelineFailed, p.ID,
		map[string]string{"reason": "cancelled"})
	return nil
}

// Delete removes a terminal pipeline from the registry so completed
// sessions do not accumulate. Pending, running, and paused pipelines
// must be cancelled first.
func (e *Engine) Delete(id uuid.UUID) error {
	p, err := e.registry.Get(id)
	if err != nil {
		return err
	}

	p.mu.Lock()
	status := p.Status
	p.mu.Unlock()

	if status != StatusCompleted && status != StatusFailed {
		return fmt.Errorf("%w: status is %q", ErrNotTerminal, status)
	}

	e.registry.Remove(id)
	e.logger.Info("pipeline removed", "pipeline_id", id.String(), "status", status)
	return nil
}

// Get returns a snapshot of the pipeline with the given ID.
func (e *Engine) Get(id uuid.UUID) (Snapshot, error) {
	p, err := e.registry.Get(id)
	if err != nil {
		return Snapshot{}, err
	}
	return p.Snapshot(), nil
}

// run executes steps from the current index until the pipeline completes,
// fails, pauses, or is cancelled. Within one pipeline, steps execute
// strictly in order and never concurrently with each other.
func (e *Engine) run(ctx context.Context, p *Pipeline) {
	logger := e.logger.With(slog.String("pipeline_id", p.ID.String()))

	for {
		p.mu.Lock()
		if p.Status != StatusInProgress {
			// Cancelled or externally transitioned; stop quietly.
			p.mu.Unlock()
			return
		}
		if p.Current >= len(p.Steps) {
			p.Status = StatusCompleted
			p.CompletedAt = time.Now().UTC()
			p.mu.Unlock()
			logger.Info("pipeline completed")
			e.emit(ctx, events.TypePipelineCompleted, p.ID, nil)
			e.clearCancel(p.ID)
			return
		}
		step := p.Steps[p.Current]
		step.Status = StepInProgress
		p.mu.Unlock()

		e.emit(ctx, events.TypeStepStarted, p.ID, map[string]string{"step_id": step.ID})
		logger.Info("executing step", "step_id", step.ID, "retry_count", step.RetryCount)

		handler := e.handlers[step.ID]
		started := time.Now()
		result, err := handler(ctx, p, step)
		elapsed := time.Since(started)

		p.mu.Lock()
		step.Duration += elapsed

		if ctx.Err() != nil {
			// Cancelled mid-step; Cancel already set the terminal state
			// or will shortly. Do not advance.
			step.Status = StepFailed
			p.mu.Unlock()
			return
		}

		if err != nil {
			step.LastError = err.Error()

			if step.RetryCount >= e.config.MaxStepRetries {
				step.Status = StepFailed
				p.Status = StatusFailed
				p.CompletedAt = time.Now().UTC()
				p.mu.Unlock()

				logger.Error("step exhausted retry budget, failing pipeline",
					"step_id", step.ID,
					"retry_count", step.RetryCount,
					"error", err)
				e.emit(ctx, events.TypeStepFailed, p.ID, map[string]string{
					"step_id": step.ID,
					"error":   err.Error(),
				})
				e.emit(ctx, events.TypePipelineFailed, p.ID, map[string]string{
					"step_id": step.ID,
					"error":   err.Error(),
				})
				e.clearCancel(p.ID)
				return
			}

			// Re-invoke the same step; later steps depend on this one,
			// so there is no skipping ahead.
			step.RetryCount++
			p.mu.Unlock()

			logger.Warn("step failed, retrying",
				"step_id", step.ID,
				"retry_count", step.RetryCount,
				"error", err)
			continue
		}

		if result != nil && result.NeedsUserInput {
			step.Result = result.Payload
			p.Status = StatusPaused
			p.mu.Unlock()

			logger.Info("step requested user input, pausing pipeline", "step_id", step.ID)
			e.emit(ctx, events.TypePipelinePaused, p.ID, map[string]string{"step_id": step.ID})
			e.clearCancel(p.ID)
			return
		}

		step.Status = StepCompleted
		if result != nil {
			step.Result = result.Payload
		}
		p.Current++
		p.mu.Unlock()

		logger.Info("step completed", "step_id", step.ID, "elapsed", elapsed)
		e.emit(ctx, events.TypeStepCompleted, p.ID, map[string]string{"step_id": step.ID})
	}
}

// clearCancel releases the run context for a pipeline that reached a
// resting state on its own.
func (e *Engine) clearCancel(id uuid.UUID) {
	e.cancelMu.Lock()
	if cancel, ok := e.cancels[id]; ok {
		cancel()
		delete(e.cancels, id)
	}
	e.cancelMu.Unlock()
}

// emit publishes a lifecycle event, logging emission failures rather than
// letting subscribers disturb execution.
func (e *Engine) emit(ctx context.Context, eventType string, pipelineID uuid.UUID, payload any) {
	if e.emitter == nil {
		return
	}

	event, err := events.NewPipelineEvent(eventType, pipelineID, payload)
	if err != nil {
		e.logger.Error("failed to build pipeline event", "event_type", eventType, "error", err)
		return
	}

	if err := e.emitter.EmitEvent(ctx, event); err != nil {
		e.logger.Error("failed to emit pipeline event", "event_type", eventType, "error", err)
	}
}
