package domain

import (
	"context"
	"errors"
)

// Suggestion is one candidate returned by forward or reverse geocoding.
type Suggestion struct {
	Label        string  `json:"label"`
	Lat          float64 `json:"lat"`
	Lon          float64 `json:"lon"`
	Neighborhood string  `json:"neighborhood,omitempty"`
}

// Position returns the suggestion's coordinates.
func (s Suggestion) Position() Position {
	return Position{Lat: s.Lat, Lon: s.Lon}
}

// Geocoder resolves free text to coordinates and back.
type Geocoder interface {
	// Search returns up to limit candidates for a free-text query.
	Search(ctx context.Context, query string, limit int) ([]Suggestion, error)

	// Reverse returns the best label for a coordinate. An empty Label means
	// nothing was found.
	Reverse(ctx context.Context, lat, lon float64) (Suggestion, error)
}

// PostalAddress is what a postal-code lookup fills into the admin form.
type PostalAddress struct {
	PostalCode   string `json:"postal_code"`
	Street       string `json:"street"`
	Neighborhood string `json:"neighborhood"`
	City         string `json:"city,omitempty"`
	State        string `json:"state,omitempty"`
}

// ErrPostalCodeNotFound is returned by a PostalLookup that has no address for
// a well-formed code.
var ErrPostalCodeNotFound = errors.New("postal code not found")

// PostalLookup resolves a postal code to street and neighborhood.
type PostalLookup interface {
	Lookup(ctx context.Context, cep string) (PostalAddress, error)
}
