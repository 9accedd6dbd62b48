package admin

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/celulas/locator/internal/catalog"
	"github.com/celulas/locator/internal/domain"
	"github.com/celulas/locator/internal/observability"
	"github.com/celulas/locator/internal/store"
)

// --- mocks ---

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.ChangeEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, e domain.ChangeEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, e)
	return nil
}

type stubGeocoder struct {
	queries []string
	limits  []int
	results []domain.Suggestion
	err     error
}

func (g *stubGeocoder) Search(_ context.Context, query string, limit int) ([]domain.Suggestion, error) {
	g.queries = append(g.queries, query)
	g.limits = append(g.limits, limit)
	return g.results, g.err
}

func (g *stubGeocoder) Reverse(context.Context, float64, float64) (domain.Suggestion, error) {
	return domain.Suggestion{}, nil
}

type stubPostal struct {
	calls int
	addr  domain.PostalAddress
	err   error
}

func (p *stubPostal) Lookup(context.Context, string) (domain.PostalAddress, error) {
	p.calls++
	return p.addr, p.err
}

// --- helpers ---

type fixture struct {
	svc       *Service
	store     *store.Store
	catalog   *catalog.Catalog
	publisher *recordingPublisher
	geocoder  *stubGeocoder
	postal    *stubPostal
	metrics   *observability.Metrics
	clock     *clockwork.FakeClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	st, err := store.Open(context.Background(), store.DriverSQLite, ":memory:", logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	metrics := observability.NewMetricsForTesting()
	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	cat := catalog.New(st, domain.Normalizer{}, time.Minute, clock, logger, metrics)
	f := &fixture{
		store:     st,
		catalog:   cat,
		publisher: &recordingPublisher{},
		geocoder:  &stubGeocoder{},
		postal:    &stubPostal{},
		metrics:   metrics,
		clock:     clock,
	}
	f.svc = NewService(Config{
		Store:         st,
		Catalog:       cat,
		Geocoder:      f.geocoder,
		Postal:        f.postal,
		Publisher:     f.publisher,
		GeocodeRegion: "São Paulo, Brazil",
		Clock:         clock,
		Logger:        logger,
		Metrics:       metrics,
	})
	return f
}

func ptr[T any](v T) *T { return &v }

func cardIDs(cards []domain.Card) []string {
	out := make([]string, 0, len(cards))
	for _, c := range cards {
		out = append(out, c.ID)
	}
	return out
}

// --- tests ---

func TestCreateGroup_NormalizesAndRefreshes(t *testing.T) {
	f := newFixture(t)
	ctx := WithActor(context.Background(), "secretaria@igreja.org")

	g, err := f.svc.CreateGroup(ctx, store.GroupRecord{
		Name:            " Célula Rudge ",
		Category:        " Valentes ",
		Leader1Name:     "Pedro",
		Leader1WhatsApp: "(11) 99999-0001",
		PostalCode:      "09641000",
		Street:          "Rua Alfeu Tavares",
		Number:          "149",
		Neighborhood:    "Rudge Ramos",
		Schedule:        "Sábado 16h",
		Lat:             ptr(-23.65),
		Lon:             ptr(-46.57),
	})
	require.NoError(t, err)
	assert.NotZero(t, g.ID)
	assert.Equal(t, "Célula Rudge", g.Name)
	assert.Equal(t, "valentes", g.Category)
	assert.Equal(t, "5511999990001", g.Leader1WhatsApp)
	assert.Equal(t, "09641-000", g.PostalCode)

	stored, err := f.store.GetGroup(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, "5511999990001", stored.Leader1WhatsApp)

	// The write is visible in the catalog without waiting for the refresh loop.
	list := f.svc.ListGroups("", "")
	require.Len(t, list.Groups, 1)
	assert.Equal(t, "Rua Alfeu Tavares, 149", list.Groups[0].Location)

	require.Len(t, f.publisher.events, 1)
	assert.Equal(t, domain.ChangeEvent{
		Entity: domain.EntityGroup,
		Op:     domain.OpCreate,
		ID:     "1",
		Actor:  "secretaria@igreja.org",
		At:     f.clock.Now(),
	}, f.publisher.events[0])
	assert.InDelta(t, 1, testutil.ToFloat64(f.metrics.AdminWrites.WithLabelValues("group", "create", "success")), 0)
}

func TestCreateGroup_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreateGroup(ctx, store.GroupRecord{Category: "adultos"})
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = f.svc.CreateGroup(ctx, store.GroupRecord{Lat: ptr(-23.5)})
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = f.svc.CreateGroup(ctx, store.GroupRecord{Lat: ptr(123.0), Lon: ptr(0.0)})
	require.ErrorIs(t, err, ErrInvalidInput)
	require.ErrorIs(t, err, domain.ErrInvalidPosition)

	g, err := f.svc.CreateGroup(ctx, store.GroupRecord{Name: "Sem categoria"})
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultCategoryID, g.Category)

	assert.Len(t, f.publisher.events, 1, "rejected input never reaches the store")
}

func TestUpdateGroup(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	g, err := f.svc.CreateGroup(ctx, store.GroupRecord{Name: "Centro", Category: "figueira", Lat: ptr(-23.55), Lon: ptr(-46.63)})
	require.NoError(t, err)

	g.Schedule = "Quarta 20h"
	g.Leader2WhatsApp = "11 3333-4444"
	_, err = f.svc.UpdateGroup(ctx, g)
	require.NoError(t, err)

	stored, err := f.store.GetGroup(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, "Quarta 20h", stored.Schedule)
	assert.Equal(t, "551133334444", stored.Leader2WhatsApp)
	assert.Equal(t, "Quarta 20h", f.catalog.Groups()[0].Schedule)

	form, err := f.svc.GetGroup(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, "(11) 3333-4444", form.Leader2WhatsApp)
	assert.Empty(t, form.Leader1WhatsApp)

	// Saving the masked form back keeps the stored digits unchanged.
	_, err = f.svc.UpdateGroup(ctx, form)
	require.NoError(t, err)
	stored, err = f.store.GetGroup(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, "551133334444", stored.Leader2WhatsApp)

	g.ID = 999
	_, err = f.svc.UpdateGroup(ctx, g)
	require.ErrorIs(t, err, store.ErrNotFound)
	assert.InDelta(t, 1, testutil.ToFloat64(f.metrics.AdminWrites.WithLabelValues("group", "update", "error")), 0)
	assert.Len(t, f.publisher.events, 3)
}

func TestDeleteSupervisor_ReferencedByGroup(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sup, err := f.svc.CreateSupervisor(ctx, store.SupervisorRecord{Name1: "Carlos", WhatsApp1: "(11) 98888-0001"})
	require.NoError(t, err)
	assert.Equal(t, "5511988880001", sup.WhatsApp1)

	g, err := f.svc.CreateGroup(ctx, store.GroupRecord{Name: "Sul", Lat: ptr(-23.6), Lon: ptr(-46.6), SupervisorID: &sup.ID})
	require.NoError(t, err)

	err = f.svc.DeleteSupervisor(ctx, sup.ID)
	require.ErrorIs(t, err, store.ErrReferenced)

	require.NoError(t, f.svc.DeleteGroup(ctx, g.ID))
	require.NoError(t, f.svc.DeleteSupervisor(ctx, sup.ID))

	list, err := f.svc.ListSupervisors(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)

	ops := make([]domain.Op, 0, len(f.publisher.events))
	for _, e := range f.publisher.events {
		ops = append(ops, e.Op)
	}
	assert.Equal(t, []domain.Op{domain.OpCreate, domain.OpCreate, domain.OpDelete, domain.OpDelete}, ops)
}

func TestCoordinatorCRUD(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreateCoordinator(ctx, store.CoordinatorRecord{Name: "  "})
	require.ErrorIs(t, err, ErrInvalidInput)

	c, err := f.svc.CreateCoordinator(ctx, store.CoordinatorRecord{Name: "Ana", WhatsApp: "(11) 97777-0000"})
	require.NoError(t, err)
	assert.Equal(t, "5511977770000", c.WhatsApp)

	c.Name = "Ana Paula"
	_, err = f.svc.UpdateCoordinator(ctx, c)
	require.NoError(t, err)

	list, err := f.svc.ListCoordinators(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Ana Paula", list[0].Name)

	require.NoError(t, f.svc.DeleteCoordinator(ctx, c.ID))
	require.ErrorIs(t, f.svc.DeleteCoordinator(ctx, c.ID), store.ErrNotFound)
}

func TestWrite_PublisherFailureDoesNotFailWrite(t *testing.T) {
	f := newFixture(t)
	f.publisher.err = errors.New("broker unavailable")

	_, err := f.svc.CreateCoordinator(context.Background(), store.CoordinatorRecord{Name: "Ana"})
	require.NoError(t, err)
}

func TestWrite_WithoutPublisher(t *testing.T) {
	f := newFixture(t)
	f.svc.publisher = nil

	_, err := f.svc.CreateCoordinator(context.Background(), store.CoordinatorRecord{Name: "Ana"})
	require.NoError(t, err)
}

func TestListGroups_PrivilegedFilterAndSkipped(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreateGroup(ctx, store.GroupRecord{Name: "Figueira Norte", Category: "figueira", Leader1Name: "Marcos", Neighborhood: "Santana", Lat: ptr(-23.50), Lon: ptr(-46.62)})
	require.NoError(t, err)
	_, err = f.svc.CreateGroup(ctx, store.GroupRecord{Name: "Teens Sul", Category: "teens", Leader1Name: "Lucas", Neighborhood: "Saúde", Lat: ptr(-23.61), Lon: ptr(-46.63)})
	require.NoError(t, err)
	_, err = f.svc.CreateGroup(ctx, store.GroupRecord{Name: "Sem mapa", Category: "teens"})
	require.NoError(t, err)

	all := f.svc.ListGroups("", "")
	assert.Equal(t, []string{"1", "2"}, cardIDs(all.Groups))
	assert.Equal(t, []domain.SkippedRow{{RowID: "3", Reason: domain.ReasonMissingLatitude}}, all.Skipped)

	assert.Equal(t, []string{"1"}, cardIDs(f.svc.ListGroups("marcos", "").Groups), "leaders are searchable in privileged mode")
	assert.Equal(t, []string{"2"}, cardIDs(f.svc.ListGroups("", "teens").Groups))
	assert.Empty(t, f.svc.ListGroups("marcos", "teens").Groups)
}

func TestGeocodeAddress(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.geocoder.results = []domain.Suggestion{{Label: "Rua Alfeu Tavares, 149", Lat: -23.65, Lon: -46.57}}

	got, err := f.svc.GeocodeAddress(ctx, "Rua Alfeu Tavares", "149", "Rudge Ramos")
	require.NoError(t, err)
	assert.InDelta(t, -23.65, got.Lat, 1e-9)
	assert.Equal(t, []string{"Rua Alfeu Tavares, 149, Rudge Ramos, São Paulo, Brazil"}, f.geocoder.queries)
	assert.Equal(t, []int{1}, f.geocoder.limits)

	f.geocoder.results = nil
	_, err = f.svc.GeocodeAddress(ctx, "Rua Inexistente", "1", "")
	require.ErrorIs(t, err, ErrAddressNotFound)

	f.geocoder.err = errors.New("timeout")
	_, err = f.svc.GeocodeAddress(ctx, "Rua X", "2", "")
	require.ErrorIs(t, err, ErrLookupFailed)
	require.NotErrorIs(t, err, ErrAddressNotFound)

	_, err = f.svc.GeocodeAddress(ctx, "", "10", " ")
	require.ErrorIs(t, err, ErrInvalidInput)

	// A neighborhood alone would resolve to its centroid, not the house.
	_, err = f.svc.GeocodeAddress(ctx, "Rua Alfeu Tavares", " ", "Rudge Ramos")
	require.ErrorIs(t, err, ErrInvalidInput)
	_, err = f.svc.GeocodeAddress(ctx, "", "", "Rudge Ramos")
	require.ErrorIs(t, err, ErrInvalidInput)
	assert.Len(t, f.geocoder.queries, 3, "rejected input never reaches the geocoder")
}

func TestLookupPostal(t *testing.T) {
	f := newFixture(t)
	f.postal.addr = domain.PostalAddress{PostalCode: "09641-000", Street: "Rua Alfeu Tavares", Neighborhood: "Rudge Ramos"}

	got, err := f.svc.LookupPostal(context.Background(), "09641-000")
	require.NoError(t, err)
	assert.Equal(t, "Rudge Ramos", got.Neighborhood)

	_, err = f.svc.LookupPostal(context.Background(), "0964")
	require.ErrorIs(t, err, domain.ErrInvalidPostalCode)
	assert.Equal(t, 1, f.postal.calls, "short codes never reach the lookup service")

	f.postal.err = domain.ErrPostalCodeNotFound
	_, err = f.svc.LookupPostal(context.Background(), "99999-999")
	require.ErrorIs(t, err, domain.ErrPostalCodeNotFound)
	require.NotErrorIs(t, err, ErrLookupFailed)

	f.postal.err = errors.New("connection refused")
	_, err = f.svc.LookupPostal(context.Background(), "99999-999")
	require.ErrorIs(t, err, ErrLookupFailed)
}
