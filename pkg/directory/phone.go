package directory

import (
	"fmt"
	"regexp"
	"time"

	"geodirectory/pkg/shared"
)

// Russian national numbering: optional 8/+7/7 prefix, optional parenthesized
// area code starting 4/8/9, flexible space or hyphen grouping.
var phonePattern = regexp.MustCompile(`^(\+7|7|8)?[\s\-]?\(?[489][0-9]{2}\)?[\s\-]?[0-9]{3}[\s\-]?[0-9]{2}[\s\-]?[0-9]{2}$`)

type Phone struct {
	ID             int64     `json:"id" db:"id"`
	PhoneNumber    string    `json:"phone_number" db:"phone_number"`
	OrganizationID *int64    `json:"organization_id,omitempty" db:"organization_id"`
	IsActive       bool      `json:"is_active" db:"is_active"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}

// A phone may be created unattached; the organization reference is optional.
type CreatePhoneRequest struct {
	PhoneNumber    string `json:"phone_number"`
	OrganizationID *int64 `json:"organization_id,omitempty"`
}

func (r *CreatePhoneRequest) Validate() error {
	if !phonePattern.MatchString(r.PhoneNumber) {
		return fmt.Errorf("phone_number %q does not match the expected format: %w", r.PhoneNumber, shared.ErrValidation)
	}
	return nil
}
