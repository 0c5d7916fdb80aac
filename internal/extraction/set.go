// Package extraction turns free-form query text into a bounded set of typed
// attribute identifiers via a completion service with a callable attribute
// search tool.
package extraction

import (
	"errors"

	"github.com/provenhq/expertrank/internal/attribute"
)

// Common errors for extraction.
var (
	// ErrInvalidInput is returned for empty or whitespace-only query text.
	// No external call is made in that case.
	ErrInvalidInput = errors.New("query text is empty")

	// ErrExtractionFailed wraps completion-service failures: unreachable
	// service, timeout, or a response that cannot be resolved into valid
	// attribute identifiers. Retryable by the caller; never auto-retried
	// and never degraded into a partial result.
	ErrExtractionFailed = errors.New("attribute extraction failed")
)

// AttributeSet is the per-request extraction result: for each configured
// attribute type, an ordered sequence of resolved attributes (at most the
// configured maximum per type). Ephemeral; never persisted.
type AttributeSet struct {
	// Types preserves the configured type order.
	Types []string `json:"types"`

	// ByType maps each configured type to its resolved attributes. Types the
	// model never queried map to empty sequences.
	ByType map[string][]attribute.Attribute `json:"by_type"`
}

// NewAttributeSet returns an empty set over the given configured types.
func NewAttributeSet(types []string) *AttributeSet {
	byType := make(map[string][]attribute.Attribute, len(types))
	for _, t := range types {
		byType[t] = nil
	}
	return &AttributeSet{
		Types:  append([]string(nil), types...),
		ByType: byType,
	}
}

// Add appends an attribute under its type, deduplicating by ID and capping
// at maxPerType. Returns whether the attribute was kept.
func (s *AttributeSet) Add(attr attribute.Attribute, maxPerType int) bool {
	existing := s.ByType[attr.Type]
	if maxPerType > 0 && len(existing) >= maxPerType {
		return false
	}
	for _, a := range existing {
		if a.ID == attr.ID {
			return false
		}
	}
	s.ByType[attr.Type] = append(existing, attr)
	return true
}

// IDs returns the flattened identifier set used for scoring, deduplicated,
// in configured type order.
func (s *AttributeSet) IDs() []int64 {
	seen := make(map[int64]bool)
	var ids []int64
	for _, t := range s.Types {
		for _, a := range s.ByType[t] {
			if !seen[a.ID] {
				seen[a.ID] = true
				ids = append(ids, a.ID)
			}
		}
	}
	return ids
}

// Empty reports whether no attributes were resolved for any type.
func (s *AttributeSet) Empty() bool {
	for _, attrs := range s.ByType {
		if len(attrs) > 0 {
			return false
		}
	}
	return true
}

// Count returns the total number of resolved attributes across types.
func (s *AttributeSet) Count() int {
	n := 0
	for _, attrs := range s.ByType {
		n += len(attrs)
	}
	return n
}
