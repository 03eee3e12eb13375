package directory

import (
	"fmt"
	"time"
	"unicode/utf8"

	"geodirectory/pkg/shared"
)

// Activity is a node in the business-activity forest. Parent is a weak
// reference by id; children are discovered by reverse lookup, never stored.
type Activity struct {
	ID        int64     `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Level     int       `json:"level" db:"level"`
	ParentID  *int64    `json:"parent_id,omitempty" db:"parent_id"`
	IsActive  bool      `json:"is_active" db:"is_active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type CreateActivityRequest struct {
	Name     string `json:"name"`
	ParentID *int64 `json:"parent_id,omitempty"`
}

func (r *CreateActivityRequest) Validate() error {
	if n := utf8.RuneCountInString(r.Name); n < ActivityNameMinLen || n > ActivityNameMaxLen {
		return fmt.Errorf("name must be %d-%d characters: %w", ActivityNameMinLen, ActivityNameMaxLen, shared.ErrValidation)
	}
	return nil
}
