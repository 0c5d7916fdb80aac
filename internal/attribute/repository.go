package attribute

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// Repository defines the interface for attribute catalog operations.
type Repository interface {
	// Create stores a new attribute and assigns its ID.
	// Returns ErrDuplicateName if (type, name) already exists.
	Create(ctx context.Context, attr *Attribute) error

	// GetByID retrieves an attribute by its ID.
	// Returns ErrAttributeNotFound if it does not exist.
	GetByID(ctx context.Context, id int64) (*Attribute, error)

	// Lookup returns up to limit attributes of the given type matching the
	// free-text fragment, in relevance order. An empty fragment lists the
	// type's attributes in name order. The relevance order is the store's
	// contract with the extraction resolver: exact name match first, then
	// name-prefix matches, then substring matches, each group in name order.
	Lookup(ctx context.Context, attrType, query string, limit int) ([]*Attribute, error)

	// Delete removes an attribute. Associations to experiences are removed
	// with it.
	Delete(ctx context.Context, id int64) error
}

// InMemoryRepository is an in-memory implementation of Repository.
// Thread-safe via RWMutex. Used for testing and development.
type InMemoryRepository struct {
	mu         sync.RWMutex
	attributes map[int64]*Attribute
	nextID     int64
}

// NewInMemoryRepository creates a new in-memory attribute repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		attributes: make(map[int64]*Attribute),
		nextID:     1,
	}
}

// Create stores a new attribute and assigns its ID.
func (r *InMemoryRepository) Create(_ context.Context, attr *Attribute) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.attributes {
		if strings.EqualFold(existing.Type, attr.Type) && strings.EqualFold(existing.Name, attr.Name) {
			return ErrDuplicateName
		}
	}

	attr.ID = r.nextID
	r.nextID++
	if attr.CreatedAt.IsZero() {
		attr.CreatedAt = time.Now().UTC()
	}

	stored := *attr
	r.attributes[stored.ID] = &stored
	return nil
}

// GetByID retrieves an attribute by its ID.
func (r *InMemoryRepository) GetByID(_ context.Context, id int64) (*Attribute, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	attr, ok := r.attributes[id]
	if !ok {
		return nil, ErrAttributeNotFound
	}
	attrCopy := *attr
	return &attrCopy, nil
}

// Lookup returns up to limit attributes of the given type matching the
// fragment, in relevance order.
func (r *InMemoryRepository) Lookup(_ context.Context, attrType, query string, limit int) ([]*Attribute, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	query = strings.ToLower(strings.TrimSpace(query))

	type candidate struct {
		attr *Attribute
		rank int
	}
	var candidates []candidate

	for _, attr := range r.attributes {
		if !strings.EqualFold(attr.Type, attrType) {
			continue
		}
		name := strings.ToLower(attr.Name)
		rank := -1
		switch {
		case query == "":
			rank = 3
		case name == query:
			rank = 0
		case strings.HasPrefix(name, query):
			rank = 1
		case strings.Contains(name, query):
			rank = 2
		}
		if rank >= 0 {
			candidates = append(candidates, candidate{attr: attr, rank: rank})
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].rank != candidates[j].rank {
			return candidates[i].rank < candidates[j].rank
		}
		return candidates[i].attr.Name < candidates[j].attr.Name
	})

	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}

	result := make([]*Attribute, 0, len(candidates))
	for _, c := range candidates {
		attrCopy := *c.attr
		result = append(result, &attrCopy)
	}
	return result, nil
}

// Delete removes an attribute.
func (r *InMemoryRepository) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.attributes[id]; !ok {
		return ErrAttributeNotFound
	}
	delete(r.attributes, id)
	return nil
}
