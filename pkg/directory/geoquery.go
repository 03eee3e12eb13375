package directory

import (
	"fmt"

	"geodirectory/pkg/shared"
)

// RadiusQuery describes a great-circle search around a center point.
type RadiusQuery struct {
	Lat      float64 `json:"lat"`
	Lon      float64 `json:"lon"`
	RadiusKm float64 `json:"radius_km"`
}

func (q *RadiusQuery) Validate() error {
	if q.Lat < LatMin || q.Lat > LatMax {
		return fmt.Errorf("lat must be within [%g, %g]: %w", LatMin, LatMax, shared.ErrValidation)
	}
	if q.Lon < LonMin || q.Lon > LonMax {
		return fmt.Errorf("lon must be within [%g, %g]: %w", LonMin, LonMax, shared.ErrValidation)
	}
	if q.RadiusKm < RadiusMinKm || q.RadiusKm > RadiusMaxKm {
		return fmt.Errorf("radius_km must be within [%g, %g]: %w", RadiusMinKm, RadiusMaxKm, shared.ErrValidation)
	}
	return nil
}

// RectangleQuery describes an axis-aligned bounding box, inclusive on all
// four edges.
type RectangleQuery struct {
	LatMin float64 `json:"lat_min"`
	LatMax float64 `json:"lat_max"`
	LonMin float64 `json:"lon_min"`
	LonMax float64 `json:"lon_max"`
}

func (q *RectangleQuery) Validate() error {
	for _, lat := range []float64{q.LatMin, q.LatMax} {
		if lat < LatMin || lat > LatMax {
			return fmt.Errorf("latitude bounds must be within [%g, %g]: %w", LatMin, LatMax, shared.ErrValidation)
		}
	}
	for _, lon := range []float64{q.LonMin, q.LonMax} {
		if lon < LonMin || lon > LonMax {
			return fmt.Errorf("longitude bounds must be within [%g, %g]: %w", LonMin, LonMax, shared.ErrValidation)
		}
	}
	if q.LatMin > q.LatMax {
		return fmt.Errorf("lat_min must not exceed lat_max: %w", shared.ErrValidation)
	}
	if q.LonMin > q.LonMax {
		return fmt.Errorf("lon_min must not exceed lon_max: %w", shared.ErrValidation)
	}
	return nil
}
