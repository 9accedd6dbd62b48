package domain

import (
	"strings"
	"time"
)

// Entity names a backend table managed from the admin dashboard.
type Entity string

const (
	EntityGroup       Entity = "group"
	EntitySupervisor  Entity = "supervisor"
	EntityCoordinator Entity = "coordinator"
)

// Op is the kind of write applied to an entity.
type Op string

const (
	OpCreate Op = "create"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// ChangeEvent describes one successful admin write.
type ChangeEvent struct {
	Entity Entity    `json:"entity"`
	Op     Op        `json:"op"`
	ID     string    `json:"id"`
	Actor  string    `json:"actor,omitempty"`
	At     time.Time `json:"at"`
}

// Key is the partitioning key for the event stream.
func (e ChangeEvent) Key() string {
	return string(e.Entity) + ":" + e.ID
}

// RegionQuery scopes free text to a region, e.g.
// "Rudge Ramos" → "Rudge Ramos, Estado de São Paulo, Brazil".
func RegionQuery(text, region string) string {
	text = strings.TrimSpace(text)
	region = strings.TrimSpace(region)
	if region == "" {
		return text
	}
	return text + ", " + region
}

// AddressQuery builds the admin "resolve coordinates" query from form fields.
func AddressQuery(street, number, neighborhood, region string) string {
	parts := make([]string, 0, 4)
	for _, p := range []string{street, number, neighborhood, region} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}
