package directory

import (
	"fmt"
	"time"
	"unicode/utf8"

	"geodirectory/pkg/shared"
)

type Building struct {
	ID        int64     `json:"id" db:"id"`
	Address   string    `json:"address" db:"address"`
	Latitude  float64   `json:"latitude" db:"latitude"`
	Longitude float64   `json:"longitude" db:"longitude"`
	IsActive  bool      `json:"is_active" db:"is_active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type CreateBuildingRequest struct {
	Address   string  `json:"address"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

func (r *CreateBuildingRequest) Validate() error {
	if n := utf8.RuneCountInString(r.Address); n < AddressMinLen || n > AddressMaxLen {
		return fmt.Errorf("address must be %d-%d characters: %w", AddressMinLen, AddressMaxLen, shared.ErrValidation)
	}
	if r.Latitude < LatMin || r.Latitude > LatMax {
		return fmt.Errorf("latitude must be within [%g, %g]: %w", LatMin, LatMax, shared.ErrValidation)
	}
	if r.Longitude < LonMin || r.Longitude > LonMax {
		return fmt.Errorf("longitude must be within [%g, %g]: %w", LonMin, LonMax, shared.ErrValidation)
	}
	return nil
}
