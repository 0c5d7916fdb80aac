// Package expert provides models and repository for experts and their
// dated experience records, including the attribute-intersection query the
// ranking pipeline scores against.
package expert

import (
	"errors"
	"time"

	"github.com/provenhq/expertrank/internal/attribute"
)

// Common errors for expert and experience operations.
var (
	ErrExpertNotFound     = errors.New("expert not found")
	ErrExperienceNotFound = errors.New("experience not found")
	ErrInvalidDateRange   = errors.New("end date precedes start date")
)

// Expert is a person entity owning zero or more experiences. Deleting an
// expert deletes its experiences; they never outlive their owner.
type Expert struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Summary string `json:"summary"`

	CreatedAt time.Time `json:"created_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// Experience is a dated work record belonging to one expert, tagged with
// zero or more attributes. A nil EndDate means the experience is ongoing;
// scoring treats "today" as its effective end.
type Experience struct {
	ID        int64      `json:"id"`
	ExpertID  int64      `json:"expert_id"`
	StartDate time.Time  `json:"start_date"`
	EndDate   *time.Time `json:"end_date,omitempty"`
	Summary   string     `json:"summary"`

	Attributes []attribute.Attribute `json:"attributes,omitempty"`
}

// Validate checks the experience's date range.
func (e *Experience) Validate() error {
	if e.EndDate != nil && e.EndDate.Before(e.StartDate) {
		return ErrInvalidDateRange
	}
	return nil
}

// ExperienceMatch is one row of the attribute-intersection query: an
// experience that shares at least one attribute with the requested ID set,
// carrying everything the scorer and the response shaping need.
type ExperienceMatch struct {
	ExperienceID int64
	ExpertID     int64
	StartDate    time.Time
	EndDate      *time.Time
	Summary      string

	// Matched holds only the attributes in the intersection, not the
	// experience's full attribute set.
	Matched []attribute.Attribute
}
