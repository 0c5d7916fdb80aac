package expert

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/provenhq/expertrank/internal/attribute"
)

// Repository defines the interface for expert and experience data operations.
type Repository interface {
	// CreateExpert stores a new expert and assigns its ID.
	CreateExpert(ctx context.Context, e *Expert) error

	// GetExpert retrieves an expert by ID. Returns ErrExpertNotFound if absent.
	GetExpert(ctx context.Context, id int64) (*Expert, error)

	// GetExpertsByID retrieves the named experts. Missing IDs are simply
	// absent from the result map.
	GetExpertsByID(ctx context.Context, ids []int64) (map[int64]*Expert, error)

	// ListExperts retrieves all experts in ID order.
	ListExperts(ctx context.Context) ([]*Expert, error)

	// UpdateExpert updates an expert's name and summary.
	UpdateExpert(ctx context.Context, e *Expert) error

	// DeleteExpert removes an expert and cascades to its experiences.
	DeleteExpert(ctx context.Context, id int64) error

	// CreateExperience stores a new experience for an existing expert.
	CreateExperience(ctx context.Context, exp *Experience) error

	// GetExperience retrieves an experience with its attributes.
	GetExperience(ctx context.Context, id int64) (*Experience, error)

	// ListExperiencesByExpert retrieves an expert's experiences in ID order,
	// each with its attributes.
	ListExperiencesByExpert(ctx context.Context, expertID int64) ([]*Experience, error)

	// DeleteExperience removes an experience and its attribute associations.
	DeleteExperience(ctx context.Context, id int64) error

	// SetExperienceAttributes replaces an experience's attribute set with the
	// given attribute IDs.
	SetExperienceAttributes(ctx context.Context, experienceID int64, attributeIDs []int64) error

	// MatchExperiences returns, in one logical pass, every experience whose
	// attribute set intersects attributeIDs, with expert ID, date range, and
	// the matched attributes attached. Experiences with an empty intersection
	// never appear. Results are ordered by (expert ID, experience ID).
	MatchExperiences(ctx context.Context, attributeIDs []int64) ([]ExperienceMatch, error)
}

// InMemoryRepository is an in-memory implementation of Repository backed by
// an attribute repository for association hydration. Thread-safe via RWMutex.
type InMemoryRepository struct {
	mu          sync.RWMutex
	experts     map[int64]*Expert
	experiences map[int64]*Experience
	// experience ID -> ordered attribute IDs
	associations map[int64][]int64
	attributes   attribute.Repository
	nextExpert   int64
	nextExp      int64
}

// NewInMemoryRepository creates a new in-memory expert repository.
// The attribute repository is used to hydrate associated attributes.
func NewInMemoryRepository(attrs attribute.Repository) *InMemoryRepository {
	return &InMemoryRepository{
		experts:      make(map[int64]*Expert),
		experiences:  make(map[int64]*Experience),
		associations: make(map[int64][]int64),
		attributes:   attrs,
		nextExpert:   1,
		nextExp:      1,
	}
}

// CreateExpert stores a new expert and assigns its ID.
func (r *InMemoryRepository) CreateExpert(_ context.Context, e *Expert) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e.ID = r.nextExpert
	r.nextExpert++
	now := time.Now().UTC()
	e.CreatedAt = now
	e.UpdatedAt = now

	stored := *e
	r.experts[stored.ID] = &stored
	return nil
}

// GetExpert retrieves an expert by ID.
func (r *InMemoryRepository) GetExpert(_ context.Context, id int64) (*Expert, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.experts[id]
	if !ok {
		return nil, ErrExpertNotFound
	}
	expertCopy := *e
	return &expertCopy, nil
}

// GetExpertsByID retrieves the named experts.
func (r *InMemoryRepository) GetExpertsByID(_ context.Context, ids []int64) (map[int64]*Expert, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make(map[int64]*Expert, len(ids))
	for _, id := range ids {
		if e, ok := r.experts[id]; ok {
			expertCopy := *e
			result[id] = &expertCopy
		}
	}
	return result, nil
}

// ListExperts retrieves all experts in ID order.
func (r *InMemoryRepository) ListExperts(_ context.Context) ([]*Expert, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*Expert, 0, len(r.experts))
	for _, e := range r.experts {
		expertCopy := *e
		result = append(result, &expertCopy)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// UpdateExpert updates an expert's name and summary.
func (r *InMemoryRepository) UpdateExpert(_ context.Context, e *Expert) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.experts[e.ID]
	if !ok {
		return ErrExpertNotFound
	}
	existing.Name = e.Name
	existing.Summary = e.Summary
	existing.UpdatedAt = time.Now().UTC()
	*e = *existing
	return nil
}

// DeleteExpert removes an expert and cascades to its experiences.
func (r *InMemoryRepository) DeleteExpert(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.experts[id]; !ok {
		return ErrExpertNotFound
	}
	delete(r.experts, id)
	for expID, exp := range r.experiences {
		if exp.ExpertID == id {
			delete(r.experiences, expID)
			delete(r.associations, expID)
		}
	}
	return nil
}

// CreateExperience stores a new experience for an existing expert.
func (r *InMemoryRepository) CreateExperience(_ context.Context, exp *Experience) error {
	if err := exp.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.experts[exp.ExpertID]; !ok {
		return ErrExpertNotFound
	}

	exp.ID = r.nextExp
	r.nextExp++

	stored := *exp
	stored.Attributes = nil
	r.experiences[stored.ID] = &stored

	if len(exp.Attributes) > 0 {
		ids := make([]int64, 0, len(exp.Attributes))
		for _, a := range exp.Attributes {
			ids = append(ids, a.ID)
		}
		r.associations[stored.ID] = ids
	}
	return nil
}

// GetExperience retrieves an experience with its attributes.
func (r *InMemoryRepository) GetExperience(ctx context.Context, id int64) (*Experience, error) {
	r.mu.RLock()
	exp, ok := r.experiences[id]
	if !ok {
		r.mu.RUnlock()
		return nil, ErrExperienceNotFound
	}
	expCopy := *exp
	attrIDs := append([]int64(nil), r.associations[id]...)
	r.mu.RUnlock()

	attrs, err := r.hydrate(ctx, attrIDs)
	if err != nil {
		return nil, err
	}
	expCopy.Attributes = attrs
	return &expCopy, nil
}

// ListExperiencesByExpert retrieves an expert's experiences in ID order.
func (r *InMemoryRepository) ListExperiencesByExpert(ctx context.Context, expertID int64) ([]*Experience, error) {
	r.mu.RLock()
	if _, ok := r.experts[expertID]; !ok {
		r.mu.RUnlock()
		return nil, ErrExpertNotFound
	}
	var ids []int64
	for id, exp := range r.experiences {
		if exp.ExpertID == expertID {
			ids = append(ids, id)
		}
	}
	r.mu.RUnlock()

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	result := make([]*Experience, 0, len(ids))
	for _, id := range ids {
		exp, err := r.GetExperience(ctx, id)
		if err != nil {
			return nil, err
		}
		result = append(result, exp)
	}
	return result, nil
}

// DeleteExperience removes an experience and its attribute associations.
func (r *InMemoryRepository) DeleteExperience(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.experiences[id]; !ok {
		return ErrExperienceNotFound
	}
	delete(r.experiences, id)
	delete(r.associations, id)
	return nil
}

// SetExperienceAttributes replaces an experience's attribute set.
func (r *InMemoryRepository) SetExperienceAttributes(_ context.Context, experienceID int64, attributeIDs []int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.experiences[experienceID]; !ok {
		return ErrExperienceNotFound
	}
	r.associations[experienceID] = append([]int64(nil), attributeIDs...)
	return nil
}

// MatchExperiences returns every experience whose attribute set intersects
// attributeIDs, with the matched attributes attached.
func (r *InMemoryRepository) MatchExperiences(ctx context.Context, attributeIDs []int64) ([]ExperienceMatch, error) {
	if len(attributeIDs) == 0 {
		return nil, nil
	}

	wanted := make(map[int64]bool, len(attributeIDs))
	for _, id := range attributeIDs {
		wanted[id] = true
	}

	r.mu.RLock()
	type hit struct {
		exp     *Experience
		matched []int64
	}
	var hits []hit
	for expID, exp := range r.experiences {
		var matched []int64
		for _, attrID := range r.associations[expID] {
			if wanted[attrID] {
				matched = append(matched, attrID)
			}
		}
		if len(matched) > 0 {
			expCopy := *exp
			hits = append(hits, hit{exp: &expCopy, matched: matched})
		}
	}
	r.mu.RUnlock()

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].exp.ExpertID != hits[j].exp.ExpertID {
			return hits[i].exp.ExpertID < hits[j].exp.ExpertID
		}
		return hits[i].exp.ID < hits[j].exp.ID
	})

	result := make([]ExperienceMatch, 0, len(hits))
	for _, h := range hits {
		attrs, err := r.hydrate(ctx, h.matched)
		if err != nil {
			return nil, err
		}
		result = append(result, ExperienceMatch{
			ExperienceID: h.exp.ID,
			ExpertID:     h.exp.ExpertID,
			StartDate:    h.exp.StartDate,
			EndDate:      h.exp.EndDate,
			Summary:      h.exp.Summary,
			Matched:      attrs,
		})
	}
	return result, nil
}

// hydrate resolves attribute IDs against the attribute repository, skipping
// IDs that no longer exist.
func (r *InMemoryRepository) hydrate(ctx context.Context, ids []int64) ([]attribute.Attribute, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	attrs := make([]attribute.Attribute, 0, len(ids))
	for _, id := range ids {
		a, err := r.attributes.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, attribute.ErrAttributeNotFound) {
				continue
			}
			return nil, err
		}
		attrs = append(attrs, *a)
	}
	return attrs, nil
}
