package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// TargetKind identifies the shape of artifact a generation request expects.
type TargetKind string

// Supported target kinds.
const (
	KindIconPack  TargetKind = "icon-pack"
	KindUIBundle  TargetKind = "ui-bundle"
	KindComponent TargetKind = "component"
)

// Common validation errors for GenerationRequest
var (
	ErrEmptyRequestID          = errors.New("generation request ID cannot be empty")
	ErrEmptyRequestDescription = errors.New("generation request description cannot be empty")
	ErrInvalidTargetKind       = errors.New("invalid target kind")
)

// GenerationRequest is a user's free-text ask for a design artifact.
// It is immutable once created; hints are opaque strings passed through
// to prompt construction.
type GenerationRequest struct {
	ID              uuid.UUID  `json:"id"`
	Description     string     `json:"description"`
	Kind            TargetKind `json:"kind"`
	StyleHint       string     `json:"style_hint,omitempty"`
	ColorHint       string     `json:"color_hint,omitempty"`
	Analyze         bool       `json:"analyze"`
	IncludeVariants bool       `json:"include_variants"`
	CreatedAt       time.Time  `json:"created_at"`
}

// NewGenerationRequest creates a new GenerationRequest with the given
// description and target kind. It generates a new UUID for the request ID
// and sets the creation timestamp.
// Returns an error if validation fails.
func NewGenerationRequest(description string, kind TargetKind) (*GenerationRequest, error) {
	req := &GenerationRequest{
		ID:          uuid.New(),
		Description: description,
		Kind:        kind,
		CreatedAt:   time.Now().UTC(),
	}

	if err := req.Validate(); err != nil {
		return nil, err
	}

	return req, nil
}

// Validate checks if the GenerationRequest has valid data.
// Returns an error if any field fails validation.
func (r *GenerationRequest) Validate() error {
	if r.ID == uuid.Nil {
		return ErrEmptyRequestID
	}

	if r.Description == "" {
		return ErrEmptyRequestDescription
	}

	if !IsValidTargetKind(r.Kind) {
		return ErrInvalidTargetKind
	}

	return nil
}

// IsValidTargetKind checks if the given kind is a supported TargetKind.
func IsValidTargetKind(kind TargetKind) bool {
	switch kind {
	case KindIconPack, KindUIBundle, KindComponent:
		return true
	default:
		return false
	}
}
