// Package seed loads supervisors, coordinators and groups from a YAML file.
// Records in the file refer to each other by key; ids are assigned by the
// store on insert.
package seed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"gopkg.in/yaml.v3"

	"github.com/celulas/locator/internal/admin"
	"github.com/celulas/locator/internal/domain"
	"github.com/celulas/locator/internal/store"
)

// File is the seed document.
type File struct {
	Supervisors  []Supervisor  `yaml:"supervisors"`
	Coordinators []Coordinator `yaml:"coordinators"`
	Groups       []Group       `yaml:"groups"`
}

// Supervisor is a supervisores entry addressable by Key.
type Supervisor struct {
	Key                    string `yaml:"key"`
	store.SupervisorRecord `yaml:",inline"`
}

// Coordinator is a coordenadores entry addressable by Key.
type Coordinator struct {
	Key                     string `yaml:"key"`
	store.CoordinatorRecord `yaml:",inline"`
}

// Group is a celulas entry linking to a supervisor and coordinator by key.
type Group struct {
	store.GroupRecord `yaml:",inline"`
	Supervisor        string `yaml:"supervisor"`
	Coordinator       string `yaml:"coordinator"`
}

// Parse decodes and checks a seed document. Unknown fields, duplicate keys
// and dangling references are errors.
func Parse(r io.Reader) (*File, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f File
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode seed file: %w", err)
	}
	if err := f.check(); err != nil {
		return nil, err
	}
	return &f, nil
}

func (f *File) check() error {
	sups := make(map[string]bool, len(f.Supervisors))
	for i, s := range f.Supervisors {
		if s.Key == "" {
			return fmt.Errorf("supervisor %d: key is required", i)
		}
		if sups[s.Key] {
			return fmt.Errorf("duplicate supervisor key %q", s.Key)
		}
		sups[s.Key] = true
	}
	coords := make(map[string]bool, len(f.Coordinators))
	for i, c := range f.Coordinators {
		if c.Key == "" {
			return fmt.Errorf("coordinator %d: key is required", i)
		}
		if coords[c.Key] {
			return fmt.Errorf("duplicate coordinator key %q", c.Key)
		}
		coords[c.Key] = true
	}
	for i, g := range f.Groups {
		if g.Supervisor != "" && !sups[g.Supervisor] {
			return fmt.Errorf("group %d (%s): unknown supervisor %q", i, g.Name, g.Supervisor)
		}
		if g.Coordinator != "" && !coords[g.Coordinator] {
			return fmt.Errorf("group %d (%s): unknown coordinator %q", i, g.Name, g.Coordinator)
		}
	}
	return nil
}

// Writer inserts records and returns them with their assigned ids.
type Writer interface {
	CreateSupervisor(ctx context.Context, r store.SupervisorRecord) (store.SupervisorRecord, error)
	CreateCoordinator(ctx context.Context, r store.CoordinatorRecord) (store.CoordinatorRecord, error)
	CreateGroup(ctx context.Context, g store.GroupRecord) (store.GroupRecord, error)
}

// AddressResolver fills in missing coordinates.
type AddressResolver interface {
	GeocodeAddress(ctx context.Context, street, number, neighborhood string) (domain.Suggestion, error)
}

// Result counts what Apply inserted.
type Result struct {
	Supervisors  int
	Coordinators int
	Groups       int
	Geocoded     int
	// Unlocated names the groups inserted without coordinates.
	Unlocated []string
}

// Apply inserts every record of f through w. When resolver is non-nil,
// groups without coordinates are geocoded from their address first; a group
// that cannot be resolved is still inserted and listed in Result.Unlocated.
func Apply(ctx context.Context, w Writer, resolver AddressResolver, f *File, logger *slog.Logger) (Result, error) {
	var res Result

	supIDs := make(map[string]int64, len(f.Supervisors))
	for _, s := range f.Supervisors {
		rec, err := w.CreateSupervisor(ctx, s.SupervisorRecord)
		if err != nil {
			return res, fmt.Errorf("insert supervisor %q: %w", s.Key, err)
		}
		supIDs[s.Key] = rec.ID
		res.Supervisors++
	}

	coordIDs := make(map[string]int64, len(f.Coordinators))
	for _, c := range f.Coordinators {
		rec, err := w.CreateCoordinator(ctx, c.CoordinatorRecord)
		if err != nil {
			return res, fmt.Errorf("insert coordinator %q: %w", c.Key, err)
		}
		coordIDs[c.Key] = rec.ID
		res.Coordinators++
	}

	for _, g := range f.Groups {
		rec := g.GroupRecord
		rec.ID = 0
		if g.Supervisor != "" {
			id := supIDs[g.Supervisor]
			rec.SupervisorID = &id
		}
		if g.Coordinator != "" {
			id := coordIDs[g.Coordinator]
			rec.CoordinatorID = &id
		}

		if rec.Lat == nil && rec.Lon == nil && resolver != nil {
			sug, err := resolver.GeocodeAddress(ctx, rec.Street, rec.Number, rec.Neighborhood)
			switch {
			case err == nil:
				rec.Lat, rec.Lon = &sug.Lat, &sug.Lon
				res.Geocoded++
			case errors.Is(err, admin.ErrAddressNotFound), errors.Is(err, admin.ErrInvalidInput):
				logger.Warn("address not resolved", "group", rec.Name, "error", err)
			default:
				logger.Warn("geocoding failed", "group", rec.Name, "error", err)
			}
		}
		if rec.Lat == nil || rec.Lon == nil {
			res.Unlocated = append(res.Unlocated, rec.Name)
		}

		if _, err := w.CreateGroup(ctx, rec); err != nil {
			return res, fmt.Errorf("insert group %q: %w", rec.Name, err)
		}
		res.Groups++
	}
	return res, nil
}

// Direct writes records to a store as-is, without the normalization the
// admin service applies. It is meant for auditing files exactly as written.
func Direct(st *store.Store) Writer {
	return directWriter{st: st}
}

type directWriter struct {
	st *store.Store
}

func (d directWriter) CreateSupervisor(ctx context.Context, r store.SupervisorRecord) (store.SupervisorRecord, error) {
	id, err := d.st.InsertSupervisor(ctx, r)
	r.ID = id
	return r, err
}

func (d directWriter) CreateCoordinator(ctx context.Context, r store.CoordinatorRecord) (store.CoordinatorRecord, error) {
	id, err := d.st.InsertCoordinator(ctx, r)
	r.ID = id
	return r, err
}

func (d directWriter) CreateGroup(ctx context.Context, g store.GroupRecord) (store.GroupRecord, error) {
	id, err := d.st.InsertGroup(ctx, g)
	g.ID = id
	return g, err
}
