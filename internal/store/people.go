package store

import (
	"context"
	"fmt"
)

// SupervisorRecord is a supervisores row. A supervisor entry may hold a pair
// of people.
type SupervisorRecord struct {
	ID        int64  `json:"id" yaml:"id,omitempty"`
	Name1     string `json:"name_1" yaml:"name_1"`
	WhatsApp1 string `json:"whatsapp_1" yaml:"whatsapp_1"`
	Name2     string `json:"name_2" yaml:"name_2"`
	WhatsApp2 string `json:"whatsapp_2" yaml:"whatsapp_2"`
}

// CoordinatorRecord is a coordenadores row.
type CoordinatorRecord struct {
	ID       int64  `json:"id" yaml:"id,omitempty"`
	Name     string `json:"name" yaml:"name"`
	WhatsApp string `json:"whatsapp" yaml:"whatsapp"`
}

// ListSupervisors returns every supervisor ordered by first name.
func (s *Store) ListSupervisors(ctx context.Context) ([]SupervisorRecord, error) {
	rows, err := s.query(ctx, "SELECT id, nome_1, whatsapp_1, nome_2, whatsapp_2 FROM supervisores ORDER BY nome_1, id")
	if err != nil {
		return nil, fmt.Errorf("list supervisors: %w", err)
	}
	defer rows.Close()

	var out []SupervisorRecord
	for rows.Next() {
		var r SupervisorRecord
		if err := rows.Scan(&r.ID, &r.Name1, &r.WhatsApp1, &r.Name2, &r.WhatsApp2); err != nil {
			return nil, fmt.Errorf("scan supervisor: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// InsertSupervisor stores a new supervisor and returns its id.
func (s *Store) InsertSupervisor(ctx context.Context, r SupervisorRecord) (int64, error) {
	id, err := s.insert(ctx, "INSERT INTO supervisores (nome_1, whatsapp_1, nome_2, whatsapp_2) VALUES (?, ?, ?, ?)",
		r.Name1, r.WhatsApp1, r.Name2, r.WhatsApp2)
	if err != nil {
		return 0, fmt.Errorf("insert supervisor: %w", err)
	}
	return id, nil
}

// UpdateSupervisor overwrites the supervisor with r.ID.
func (s *Store) UpdateSupervisor(ctx context.Context, r SupervisorRecord) error {
	err := s.update(ctx, "UPDATE supervisores SET nome_1 = ?, whatsapp_1 = ?, nome_2 = ?, whatsapp_2 = ? WHERE id = ?",
		r.Name1, r.WhatsApp1, r.Name2, r.WhatsApp2, r.ID)
	if err != nil {
		return fmt.Errorf("update supervisor %d: %w", r.ID, err)
	}
	return nil
}

// DeleteSupervisor removes a supervisor. ErrReferenced means groups still link to it.
func (s *Store) DeleteSupervisor(ctx context.Context, id int64) error {
	if err := s.deleteByID(ctx, "supervisores", id); err != nil {
		return fmt.Errorf("delete supervisor %d: %w", id, err)
	}
	return nil
}

// ListCoordinators returns every coordinator ordered by name.
func (s *Store) ListCoordinators(ctx context.Context) ([]CoordinatorRecord, error) {
	rows, err := s.query(ctx, "SELECT id, nome, whatsapp FROM coordenadores ORDER BY nome, id")
	if err != nil {
		return nil, fmt.Errorf("list coordinators: %w", err)
	}
	defer rows.Close()

	var out []CoordinatorRecord
	for rows.Next() {
		var r CoordinatorRecord
		if err := rows.Scan(&r.ID, &r.Name, &r.WhatsApp); err != nil {
			return nil, fmt.Errorf("scan coordinator: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// InsertCoordinator stores a new coordinator and returns its id.
func (s *Store) InsertCoordinator(ctx context.Context, r CoordinatorRecord) (int64, error) {
	id, err := s.insert(ctx, "INSERT INTO coordenadores (nome, whatsapp) VALUES (?, ?)", r.Name, r.WhatsApp)
	if err != nil {
		return 0, fmt.Errorf("insert coordinator: %w", err)
	}
	return id, nil
}

// UpdateCoordinator overwrites the coordinator with r.ID.
func (s *Store) UpdateCoordinator(ctx context.Context, r CoordinatorRecord) error {
	err := s.update(ctx, "UPDATE coordenadores SET nome = ?, whatsapp = ? WHERE id = ?", r.Name, r.WhatsApp, r.ID)
	if err != nil {
		return fmt.Errorf("update coordinator %d: %w", r.ID, err)
	}
	return nil
}

// DeleteCoordinator removes a coordinator. ErrReferenced means groups still link to it.
func (s *Store) DeleteCoordinator(ctx context.Context, id int64) error {
	if err := s.deleteByID(ctx, "coordenadores", id); err != nil {
		return fmt.Errorf("delete coordinator %d: %w", id, err)
	}
	return nil
}
