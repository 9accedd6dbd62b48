// Package admin implements the staff dashboard operations: editing groups,
// supervisors and coordinators, and the address helpers the edit form uses.
package admin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/jonboulle/clockwork"

	"github.com/celulas/locator/internal/catalog"
	"github.com/celulas/locator/internal/domain"
	"github.com/celulas/locator/internal/observability"
	"github.com/celulas/locator/internal/store"
)

var (
	// ErrInvalidInput is returned when a submitted record fails validation.
	ErrInvalidInput = errors.New("invalid input")
	// ErrAddressNotFound is returned when an address resolves to no coordinates.
	ErrAddressNotFound = errors.New("address not found")
	// ErrLookupFailed wraps failures of the geocoding and postal services.
	ErrLookupFailed = errors.New("lookup service unavailable")
)

// Store is the backend the dashboard edits.
type Store interface {
	GetGroup(ctx context.Context, id int64) (store.GroupRecord, error)
	InsertGroup(ctx context.Context, g store.GroupRecord) (int64, error)
	UpdateGroup(ctx context.Context, g store.GroupRecord) error
	DeleteGroup(ctx context.Context, id int64) error

	ListSupervisors(ctx context.Context) ([]store.SupervisorRecord, error)
	InsertSupervisor(ctx context.Context, r store.SupervisorRecord) (int64, error)
	UpdateSupervisor(ctx context.Context, r store.SupervisorRecord) error
	DeleteSupervisor(ctx context.Context, id int64) error

	ListCoordinators(ctx context.Context) ([]store.CoordinatorRecord, error)
	InsertCoordinator(ctx context.Context, r store.CoordinatorRecord) (int64, error)
	UpdateCoordinator(ctx context.Context, r store.CoordinatorRecord) error
	DeleteCoordinator(ctx context.Context, id int64) error
}

// Catalog is the normalized snapshot the dashboard lists from and refreshes.
type Catalog interface {
	Snapshot() *catalog.Snapshot
	Refresh(ctx context.Context) error
}

// Publisher announces successful writes. A nil Publisher disables events.
type Publisher interface {
	Publish(ctx context.Context, event domain.ChangeEvent) error
}

// Service runs dashboard operations.
type Service struct {
	store         Store
	catalog       Catalog
	geocoder      domain.Geocoder
	postal        domain.PostalLookup
	publisher     Publisher
	geocodeRegion string
	clock         clockwork.Clock
	logger        *slog.Logger
	metrics       *observability.Metrics
}

// Config carries the collaborators of a Service. Publisher and Clock are optional.
type Config struct {
	Store         Store
	Catalog       Catalog
	Geocoder      domain.Geocoder
	Postal        domain.PostalLookup
	Publisher     Publisher
	GeocodeRegion string
	Clock         clockwork.Clock
	Logger        *slog.Logger
	Metrics       *observability.Metrics
}

// NewService creates a Service.
func NewService(cfg Config) *Service {
	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Service{
		store:         cfg.Store,
		catalog:       cfg.Catalog,
		geocoder:      cfg.Geocoder,
		postal:        cfg.Postal,
		publisher:     cfg.Publisher,
		geocodeRegion: cfg.GeocodeRegion,
		clock:         clock,
		logger:        cfg.Logger,
		metrics:       cfg.Metrics,
	}
}

type actorKey struct{}

// WithActor tags ctx with the email of the admin performing writes.
func WithActor(ctx context.Context, email string) context.Context {
	return context.WithValue(ctx, actorKey{}, email)
}

func actorFrom(ctx context.Context) string {
	s, _ := ctx.Value(actorKey{}).(string)
	return s
}

// GroupList is the dashboard table plus the rows the map cannot show.
type GroupList struct {
	Groups  []domain.Card       `json:"groups"`
	Total   int                 `json:"total"`
	Skipped []domain.SkippedRow `json:"skipped"`
}

// ListGroups filters the catalog in privileged mode by free text over name,
// neighborhood and leaders, and by category.
func (s *Service) ListGroups(query, category string) GroupList {
	snap := s.catalog.Snapshot()
	groups := domain.Apply(snap.Groups, domain.FilterState{
		Query:      query,
		CategoryID: category,
		Mode:       domain.ModePrivileged,
	})
	p := domain.Present(groups, domain.ModePrivileged, nil)
	skipped := snap.Skipped
	if skipped == nil {
		skipped = []domain.SkippedRow{}
	}
	return GroupList{Groups: p.Cards, Total: len(p.Cards), Skipped: skipped}
}

// GetGroup returns the editable form of a group. Phone numbers come back in
// the "(AA) NNNNN-NNNN" display mask; saves strip it again.
func (s *Service) GetGroup(ctx context.Context, id int64) (store.GroupRecord, error) {
	g, err := s.store.GetGroup(ctx, id)
	if err != nil {
		return store.GroupRecord{}, err
	}
	g.Leader1WhatsApp = domain.MaskPhone(g.Leader1WhatsApp)
	g.Leader2WhatsApp = domain.MaskPhone(g.Leader2WhatsApp)
	g.CoordinatorWhatsApp = domain.MaskPhone(g.CoordinatorWhatsApp)
	return g, nil
}

// CreateGroup validates and inserts a group, returning it with its new id.
func (s *Service) CreateGroup(ctx context.Context, g store.GroupRecord) (store.GroupRecord, error) {
	g, err := prepareGroup(g)
	if err != nil {
		return store.GroupRecord{}, err
	}
	id, err := s.store.InsertGroup(ctx, g)
	if err = s.afterWrite(ctx, domain.EntityGroup, domain.OpCreate, id, err); err != nil {
		return store.GroupRecord{}, err
	}
	g.ID = id
	return g, nil
}

// UpdateGroup validates and saves an existing group.
func (s *Service) UpdateGroup(ctx context.Context, g store.GroupRecord) (store.GroupRecord, error) {
	g, err := prepareGroup(g)
	if err != nil {
		return store.GroupRecord{}, err
	}
	err = s.store.UpdateGroup(ctx, g)
	if err = s.afterWrite(ctx, domain.EntityGroup, domain.OpUpdate, g.ID, err); err != nil {
		return store.GroupRecord{}, err
	}
	return g, nil
}

// DeleteGroup removes a group.
func (s *Service) DeleteGroup(ctx context.Context, id int64) error {
	return s.afterWrite(ctx, domain.EntityGroup, domain.OpDelete, id, s.store.DeleteGroup(ctx, id))
}

// ListSupervisors returns every supervisor.
func (s *Service) ListSupervisors(ctx context.Context) ([]store.SupervisorRecord, error) {
	return s.store.ListSupervisors(ctx)
}

// CreateSupervisor inserts a supervisor entry.
func (s *Service) CreateSupervisor(ctx context.Context, r store.SupervisorRecord) (store.SupervisorRecord, error) {
	r, err := prepareSupervisor(r)
	if err != nil {
		return store.SupervisorRecord{}, err
	}
	id, err := s.store.InsertSupervisor(ctx, r)
	if err = s.afterWrite(ctx, domain.EntitySupervisor, domain.OpCreate, id, err); err != nil {
		return store.SupervisorRecord{}, err
	}
	r.ID = id
	return r, nil
}

// UpdateSupervisor saves an existing supervisor entry.
func (s *Service) UpdateSupervisor(ctx context.Context, r store.SupervisorRecord) (store.SupervisorRecord, error) {
	r, err := prepareSupervisor(r)
	if err != nil {
		return store.SupervisorRecord{}, err
	}
	err = s.store.UpdateSupervisor(ctx, r)
	if err = s.afterWrite(ctx, domain.EntitySupervisor, domain.OpUpdate, r.ID, err); err != nil {
		return store.SupervisorRecord{}, err
	}
	return r, nil
}

// DeleteSupervisor removes a supervisor entry no group links to.
func (s *Service) DeleteSupervisor(ctx context.Context, id int64) error {
	return s.afterWrite(ctx, domain.EntitySupervisor, domain.OpDelete, id, s.store.DeleteSupervisor(ctx, id))
}

// ListCoordinators returns every coordinator.
func (s *Service) ListCoordinators(ctx context.Context) ([]store.CoordinatorRecord, error) {
	return s.store.ListCoordinators(ctx)
}

// CreateCoordinator inserts a coordinator.
func (s *Service) CreateCoordinator(ctx context.Context, r store.CoordinatorRecord) (store.CoordinatorRecord, error) {
	r, err := prepareCoordinator(r)
	if err != nil {
		return store.CoordinatorRecord{}, err
	}
	id, err := s.store.InsertCoordinator(ctx, r)
	if err = s.afterWrite(ctx, domain.EntityCoordinator, domain.OpCreate, id, err); err != nil {
		return store.CoordinatorRecord{}, err
	}
	r.ID = id
	return r, nil
}

// UpdateCoordinator saves an existing coordinator.
func (s *Service) UpdateCoordinator(ctx context.Context, r store.CoordinatorRecord) (store.CoordinatorRecord, error) {
	r, err := prepareCoordinator(r)
	if err != nil {
		return store.CoordinatorRecord{}, err
	}
	err = s.store.UpdateCoordinator(ctx, r)
	if err = s.afterWrite(ctx, domain.EntityCoordinator, domain.OpUpdate, r.ID, err); err != nil {
		return store.CoordinatorRecord{}, err
	}
	return r, nil
}

// DeleteCoordinator removes a coordinator no group links to.
func (s *Service) DeleteCoordinator(ctx context.Context, id int64) error {
	return s.afterWrite(ctx, domain.EntityCoordinator, domain.OpDelete, id, s.store.DeleteCoordinator(ctx, id))
}

// afterWrite records the outcome of a write. On success the catalog is
// reloaded and a change event is published; neither failure undoes the write.
func (s *Service) afterWrite(ctx context.Context, entity domain.Entity, op domain.Op, id int64, err error) error {
	if err != nil {
		s.metrics.AdminWrites.WithLabelValues(string(entity), string(op), "error").Inc()
		return fmt.Errorf("%s %s: %w", op, entity, err)
	}
	s.metrics.AdminWrites.WithLabelValues(string(entity), string(op), "success").Inc()

	actor := actorFrom(ctx)
	s.logger.Info("admin write", "entity", entity, "op", op, "id", id, "actor", actor)

	if err := s.catalog.Refresh(ctx); err != nil {
		s.logger.Warn("catalog refresh after write failed", "entity", entity, "id", id, "error", err)
	}

	if s.publisher != nil {
		event := domain.ChangeEvent{
			Entity: entity,
			Op:     op,
			ID:     strconv.FormatInt(id, 10),
			Actor:  actor,
			At:     s.clock.Now().UTC(),
		}
		if err := s.publisher.Publish(ctx, event); err != nil {
			s.logger.Warn("change event not published", "entity", entity, "id", id, "error", err)
		}
	}
	return nil
}

// GeocodeAddress resolves the form's address to coordinates, scoped to the
// configured region.
func (s *Service) GeocodeAddress(ctx context.Context, street, number, neighborhood string) (domain.Suggestion, error) {
	if strings.TrimSpace(street) == "" || strings.TrimSpace(number) == "" {
		return domain.Suggestion{}, fmt.Errorf("%w: street and number are required", ErrInvalidInput)
	}
	query := domain.AddressQuery(street, number, neighborhood, s.geocodeRegion)
	res, err := s.geocoder.Search(ctx, query, 1)
	if err != nil {
		return domain.Suggestion{}, fmt.Errorf("geocode address: %w: %w", ErrLookupFailed, err)
	}
	if len(res) == 0 {
		return domain.Suggestion{}, ErrAddressNotFound
	}
	return res[0], nil
}

// LookupPostal fills street and neighborhood from a postal code.
func (s *Service) LookupPostal(ctx context.Context, cep string) (domain.PostalAddress, error) {
	if _, err := domain.NormalizeCEP(cep); err != nil {
		return domain.PostalAddress{}, err
	}
	addr, err := s.postal.Lookup(ctx, cep)
	switch {
	case err == nil:
		return addr, nil
	case errors.Is(err, domain.ErrPostalCodeNotFound), errors.Is(err, domain.ErrInvalidPostalCode):
		return domain.PostalAddress{}, err
	default:
		return domain.PostalAddress{}, fmt.Errorf("lookup postal code: %w: %w", ErrLookupFailed, err)
	}
}
