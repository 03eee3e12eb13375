package directory

import (
	"fmt"
	"time"
	"unicode/utf8"

	"geodirectory/pkg/shared"
)

// Organization is always returned fully populated: its building, its
// activity set and its phones are attached by the service layer in one
// logical fetch.
type Organization struct {
	ID         int64      `json:"id" db:"id"`
	Name       string     `json:"name" db:"name"`
	BuildingID int64      `json:"building_id" db:"building_id"`
	Building   *Building  `json:"building,omitempty"`
	Activities []Activity `json:"activities"`
	Phones     []Phone    `json:"phones"`
	IsActive   bool       `json:"is_active" db:"is_active"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at" db:"updated_at"`
}

type CreateOrganizationRequest struct {
	Name        string  `json:"name"`
	BuildingID  int64   `json:"building_id"`
	ActivityIDs []int64 `json:"activity_ids"`
}

func (r *CreateOrganizationRequest) Validate() error {
	if n := utf8.RuneCountInString(r.Name); n < OrganizationNameMinLen || n > OrganizationNameMaxLen {
		return fmt.Errorf("name must be %d-%d characters: %w", OrganizationNameMinLen, OrganizationNameMaxLen, shared.ErrValidation)
	}
	if r.BuildingID < 1 {
		return fmt.Errorf("building_id is required: %w", shared.ErrValidation)
	}
	if len(r.ActivityIDs) == 0 {
		return fmt.Errorf("at least one activity_id is required: %w", shared.ErrValidation)
	}
	return nil
}

// UniqueActivityIDs returns the activity set with duplicates removed, input
// order preserved. Association membership is set-valued.
func (r *CreateOrganizationRequest) UniqueActivityIDs() []int64 {
	seen := make(map[int64]bool, len(r.ActivityIDs))
	out := make([]int64, 0, len(r.ActivityIDs))
	for _, id := range r.ActivityIDs {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
