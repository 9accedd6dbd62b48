package domain

import (
	"errors"
	"math"
)

// RawRow is one loosely-typed row as returned by the backend, relations
// joined as nested maps.
type RawRow map[string]any

// Position is a WGS-84 latitude/longitude pair in decimal degrees.
type Position struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Valid reports whether both components are finite numbers.
func (p Position) Valid() bool {
	return isFinite(p.Lat) && isFinite(p.Lon)
}

// ErrInvalidPosition is returned for user positions outside the WGS-84 range.
var ErrInvalidPosition = errors.New("position must have latitude in [-90, 90] and longitude in [-180, 180]")

// Check validates a user-supplied position. Unlike Valid it also bounds the
// components. Stored rows are only required to be Valid; out-of-range rows
// are reported by the data audit.
func (p Position) Check() error {
	if !p.Valid() || math.Abs(p.Lat) > 90 || math.Abs(p.Lon) > 180 {
		return ErrInvalidPosition
	}
	return nil
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// Address holds the structured address components alongside the legacy
// single-string form. Formatted is resolved once by the normalizer.
type Address struct {
	PostalCode   string `json:"postal_code,omitempty"`
	Street       string `json:"street,omitempty"`
	Number       string `json:"number,omitempty"`
	Complement   string `json:"complement,omitempty"`
	Neighborhood string `json:"neighborhood,omitempty"`
	Legacy       string `json:"legacy,omitempty"`
	Formatted    string `json:"formatted"`
}

// Contact is a person reachable through a messaging-app handle.
type Contact struct {
	Name     string `json:"name,omitempty"`
	WhatsApp string `json:"whatsapp,omitempty"`
}

// Supervisor is the optional supervisor pair linked to a group.
type Supervisor struct {
	First  Contact  `json:"first"`
	Second *Contact `json:"second,omitempty"`
}

// Coordinator is the optional coordinator linked to a group.
type Coordinator struct {
	Contact
}

// Group is the canonical in-memory cell group.
type Group struct {
	ID            string       `json:"id"`
	Title         string       `json:"title"`
	Name          string       `json:"name,omitempty"`
	Category      Category     `json:"category"`
	Position      Position     `json:"position"`
	LeaderDisplay string       `json:"leader_display"`
	Leaders       []Contact    `json:"leaders,omitempty"`
	Supervisor    *Supervisor  `json:"supervisor,omitempty"`
	Coordinator   *Coordinator `json:"coordinator,omitempty"`
	Schedule      string       `json:"schedule"`
	Address       Address      `json:"address"`

	// Distance is attached per render when a user position exists.
	Distance *float64 `json:"distance,omitempty"`
}

// SkippedRow records a raw row the normalizer refused to materialize.
type SkippedRow struct {
	RowID  string `json:"row_id"`
	Reason string `json:"reason"`
}
