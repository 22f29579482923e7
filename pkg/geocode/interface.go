package geocode

import "context"

// Geocoder turns a coordinate into a human-readable address. Used only
// to enrich the SMS body; every failure is best-effort.
type Geocoder interface {
	ReverseGeocode(ctx context.Context, lat, lng float64) (string, error)
}
