package pipeline

import (
	"errors"
	"sync"

	"github.com/google/uuid"
)

// Common errors returned by the Registry
var (
	ErrPipelineNotFound = errors.New("pipeline not found")
)

// Registry is the explicit owned store of live pipelines. It starts empty,
// is populated via Put, and entries leave only through explicit Remove;
// anything needing pipeline state receives the registry by handle.
type Registry struct {
	mu        sync.RWMutex
	pipelines map[uuid.UUID]*Pipeline
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		pipelines: make(map[uuid.UUID]*Pipeline),
	}
}

// Put stores a pipeline under its own ID, replacing any previous entry.
func (r *Registry) Put(p *Pipeline) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pipelines[p.ID] = p
}

// Get returns the pipeline with the given ID, or ErrPipelineNotFound.
func (r *Registry) Get(id uuid.UUID) (*Pipeline, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.pipelines[id]
	if !ok {
		return nil, ErrPipelineNotFound
	}
	return p, nil
}

// Remove deletes the pipeline with the given ID. Removing a missing
// pipeline is a no-op.
func (r *Registry) Remove(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.pipelines, id)
}

// List returns the IDs of all live pipelines.
func (r *Registry) List() []uuid.UUID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]uuid.UUID, 0, len(r.pipelines))
	for id := range r.pipelines {
		ids = append(ids, id)
	}
	return ids
}
