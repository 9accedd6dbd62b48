package admin

import (
	"fmt"
	"strings"

	"github.com/celulas/locator/internal/domain"
	"github.com/celulas/locator/internal/store"
)

// prepareGroup normalizes form input: masked phones become wa.me digits, the
// category is resolved against the table and the postal code is masked.
func prepareGroup(g store.GroupRecord) (store.GroupRecord, error) {
	g.Name = strings.TrimSpace(g.Name)

	g.Category = strings.ToLower(strings.TrimSpace(g.Category))
	if g.Category == "" {
		g.Category = domain.DefaultCategoryID
	}
	if _, ok := domain.LookupCategory(g.Category); !ok {
		return g, fmt.Errorf("%w: unknown category %q", ErrInvalidInput, g.Category)
	}

	if (g.Lat == nil) != (g.Lon == nil) {
		return g, fmt.Errorf("%w: lat and lon must be set together", ErrInvalidInput)
	}
	if g.Lat != nil {
		if err := (domain.Position{Lat: *g.Lat, Lon: *g.Lon}).Check(); err != nil {
			return g, fmt.Errorf("%w: %w", ErrInvalidInput, err)
		}
	}

	g.Leader1Name = strings.TrimSpace(g.Leader1Name)
	g.Leader2Name = strings.TrimSpace(g.Leader2Name)
	g.Leader1WhatsApp = domain.WhatsAppNumber(g.Leader1WhatsApp)
	g.Leader2WhatsApp = domain.WhatsAppNumber(g.Leader2WhatsApp)
	g.CoordinatorWhatsApp = domain.WhatsAppNumber(g.CoordinatorWhatsApp)
	g.PostalCode = domain.MaskCEP(g.PostalCode)
	g.Street = strings.TrimSpace(g.Street)
	g.Number = strings.TrimSpace(g.Number)
	g.Complement = strings.TrimSpace(g.Complement)
	g.Neighborhood = strings.TrimSpace(g.Neighborhood)
	g.Schedule = strings.TrimSpace(g.Schedule)
	return g, nil
}

func prepareSupervisor(r store.SupervisorRecord) (store.SupervisorRecord, error) {
	r.Name1 = strings.TrimSpace(r.Name1)
	r.Name2 = strings.TrimSpace(r.Name2)
	if r.Name1 == "" {
		return r, fmt.Errorf("%w: supervisor name is required", ErrInvalidInput)
	}
	r.WhatsApp1 = domain.WhatsAppNumber(r.WhatsApp1)
	r.WhatsApp2 = domain.WhatsAppNumber(r.WhatsApp2)
	return r, nil
}

func prepareCoordinator(r store.CoordinatorRecord) (store.CoordinatorRecord, error) {
	r.Name = strings.TrimSpace(r.Name)
	if r.Name == "" {
		return r, fmt.Errorf("%w: coordinator name is required", ErrInvalidInput)
	}
	r.WhatsApp = domain.WhatsAppNumber(r.WhatsApp)
	return r, nil
}
