// Package attribute provides the model and repository for the typed
// attribute catalog used to tag experiences and resolve search queries.
package attribute

import (
	"errors"
	"time"
)

// Common errors for attribute operations.
var (
	ErrAttributeNotFound = errors.New("attribute not found")
	ErrDuplicateName     = errors.New("attribute name already exists for type")
)

// Attribute is a typed, named catalog entry (e.g. an agency or a role).
// Attributes are created by ingestion and are immutable once an experience
// references them; the ranking path only ever reads them.
type Attribute struct {
	ID      int64  `json:"id"`
	Type    string `json:"type"`
	Name    string `json:"name"`
	Summary string `json:"summary,omitempty"`

	// Embedding is populated by ingestion for vector search elsewhere.
	// The ranking path never reads it.
	Embedding []float64 `json:"-"`

	CreatedAt time.Time `json:"created_at,omitempty"`
}
