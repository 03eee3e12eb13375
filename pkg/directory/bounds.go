package directory

// Field bounds enforced before any store access. Length bounds count
// characters, not bytes; Cyrillic text is two bytes per character.
//
// Longitude is validated to the full [-180, 180] range for both building
// coordinates and area queries. Narrowing queries to [-90, 90] would silently
// reject half the globe.
const (
	LatMin = -90.0
	LatMax = 90.0
	LonMin = -180.0
	LonMax = 180.0

	// Radius search bounds in kilometers; the upper bound is Earth's radius.
	RadiusMinKm = 1.0
	RadiusMaxKm = 6371.0

	AddressMinLen = 5
	AddressMaxLen = 155

	OrganizationNameMinLen = 5
	OrganizationNameMaxLen = 155

	ActivityNameMinLen = 3
	ActivityNameMaxLen = 155

	// Activity trees are capped at three levels.
	ActivityMaxLevel = 3
)
