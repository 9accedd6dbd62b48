package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/celulas/locator/internal/domain"
)

// GroupRecord is the editable form of a celulas row.
type GroupRecord struct {
	ID                  int64    `json:"id" yaml:"id,omitempty"`
	Name                string   `json:"name" yaml:"name"`
	Category            string   `json:"category" yaml:"category"`
	Leader1Name         string   `json:"leader1_name" yaml:"leader1_name"`
	Leader1WhatsApp     string   `json:"leader1_whatsapp" yaml:"leader1_whatsapp"`
	Leader2Name         string   `json:"leader2_name" yaml:"leader2_name"`
	Leader2WhatsApp     string   `json:"leader2_whatsapp" yaml:"leader2_whatsapp"`
	CoordinatorWhatsApp string   `json:"coordinator_whatsapp" yaml:"coordinator_whatsapp"`
	Schedule            string   `json:"schedule" yaml:"schedule"`
	PostalCode          string   `json:"postal_code" yaml:"postal_code"`
	Street              string   `json:"street" yaml:"street"`
	Number              string   `json:"number" yaml:"number"`
	Complement          string   `json:"complement" yaml:"complement"`
	Neighborhood        string   `json:"neighborhood" yaml:"neighborhood"`
	Lat                 *float64 `json:"lat" yaml:"lat"`
	Lon                 *float64 `json:"lon" yaml:"lon"`
	SupervisorID        *int64   `json:"supervisor_id" yaml:"supervisor_id"`
	CoordinatorID       *int64   `json:"coordinator_id" yaml:"coordinator_id"`
}

// FetchGroups returns every celulas row as a raw row ordered by id, with the
// linked supervisor and coordinator attached under "supervisores" and
// "coordenadores".
func (s *Store) FetchGroups(ctx context.Context) ([]domain.RawRow, error) {
	rows, err := s.query(ctx, "SELECT * FROM celulas ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("query groups: %w", err)
	}
	defer rows.Close()

	raw, err := scanRawRows(rows)
	if err != nil {
		return nil, fmt.Errorf("scan groups: %w", err)
	}

	sups, err := s.relationIndex(ctx, "SELECT id, nome_1, whatsapp_1, nome_2, whatsapp_2 FROM supervisores")
	if err != nil {
		return nil, fmt.Errorf("query supervisors: %w", err)
	}
	coords, err := s.relationIndex(ctx, "SELECT id, nome, whatsapp FROM coordenadores")
	if err != nil {
		return nil, fmt.Errorf("query coordinators: %w", err)
	}

	for _, row := range raw {
		if rel, ok := sups[idKey(row["supervisor_id"])]; ok {
			row["supervisores"] = rel
		}
		if rel, ok := coords[idKey(row["coordenador_id"])]; ok {
			row["coordenadores"] = rel
		}
	}
	return raw, nil
}

// GetGroup returns the editable record for id. Rows that only carry the
// legacy combined address get it split into street and number.
func (s *Store) GetGroup(ctx context.Context, id int64) (GroupRecord, error) {
	var (
		g                                              GroupRecord
		name, category, legacyLeader, l1, l1w, l2, l2w sql.NullString
		whatsapp1, coordWA, schedule, cep, street      sql.NullString
		number, complement, neighborhood, legacyAddr   sql.NullString
		lat, lon                                       sql.NullFloat64
		supID, coordID                                 sql.NullInt64
	)
	err := s.queryRow(ctx, `SELECT id, nome, categoria, lider, lider1_nome, lider1_whatsapp, lider2_nome, lider2_whatsapp,
		whatsapp1, whatsapp_coordenador, dia, cep, logradouro, numero, complemento, bairro, endereco,
		lat, lon, supervisor_id, coordenador_id FROM celulas WHERE id = ?`, id).Scan(
		&g.ID, &name, &category, &legacyLeader, &l1, &l1w, &l2, &l2w,
		&whatsapp1, &coordWA, &schedule, &cep, &street, &number, &complement, &neighborhood, &legacyAddr,
		&lat, &lon, &supID, &coordID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return GroupRecord{}, ErrNotFound
	}
	if err != nil {
		return GroupRecord{}, fmt.Errorf("get group: %w", err)
	}

	g.Name = name.String
	g.Category = category.String
	g.Leader1Name = firstNonEmpty(l1.String, legacyLeader.String)
	g.Leader1WhatsApp = firstNonEmpty(l1w.String, whatsapp1.String)
	g.Leader2Name = l2.String
	g.Leader2WhatsApp = l2w.String
	g.CoordinatorWhatsApp = coordWA.String
	g.Schedule = schedule.String
	g.PostalCode = cep.String
	g.Street = street.String
	g.Number = number.String
	g.Complement = complement.String
	g.Neighborhood = neighborhood.String
	if g.Street == "" && g.Number == "" {
		g.Street, g.Number = domain.SplitLegacyAddress(legacyAddr.String)
	}
	if lat.Valid {
		g.Lat = &lat.Float64
	}
	if lon.Valid {
		g.Lon = &lon.Float64
	}
	if supID.Valid {
		g.SupervisorID = &supID.Int64
	}
	if coordID.Valid {
		g.CoordinatorID = &coordID.Int64
	}
	return g, nil
}

// InsertGroup stores a new group and returns its id.
func (s *Store) InsertGroup(ctx context.Context, g GroupRecord) (int64, error) {
	id, err := s.insert(ctx, `INSERT INTO celulas (`+groupWriteColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, groupArgs(g)...)
	if err != nil {
		return 0, fmt.Errorf("insert group: %w", err)
	}
	return id, nil
}

// UpdateGroup overwrites the group with g.ID.
func (s *Store) UpdateGroup(ctx context.Context, g GroupRecord) error {
	args := append(groupArgs(g), g.ID)
	err := s.update(ctx, `UPDATE celulas SET nome = ?, categoria = ?, lider = ?, lider1_nome = ?, lider1_whatsapp = ?,
		lider2_nome = ?, lider2_whatsapp = ?, whatsapp1 = ?, whatsapp_coordenador = ?, dia = ?, cep = ?,
		logradouro = ?, numero = ?, complemento = ?, bairro = ?, endereco = ?, lat = ?, lon = ?,
		supervisor_id = ?, coordenador_id = ? WHERE id = ?`, args...)
	if err != nil {
		return fmt.Errorf("update group %d: %w", g.ID, err)
	}
	return nil
}

// DeleteGroup removes the group with id.
func (s *Store) DeleteGroup(ctx context.Context, id int64) error {
	if err := s.deleteByID(ctx, "celulas", id); err != nil {
		return fmt.Errorf("delete group %d: %w", id, err)
	}
	return nil
}

const groupWriteColumns = `nome, categoria, lider, lider1_nome, lider1_whatsapp, lider2_nome, lider2_whatsapp,
	whatsapp1, whatsapp_coordenador, dia, cep, logradouro, numero, complemento, bairro, endereco,
	lat, lon, supervisor_id, coordenador_id`

// groupArgs also fills the legacy lider, whatsapp1 and endereco columns so
// readers of the older row shape keep working.
func groupArgs(g GroupRecord) []any {
	return []any{
		g.Name, g.Category, g.Leader1Name, g.Leader1Name, g.Leader1WhatsApp, g.Leader2Name, g.Leader2WhatsApp,
		g.Leader1WhatsApp, g.CoordinatorWhatsApp, g.Schedule, g.PostalCode, g.Street, g.Number, g.Complement,
		g.Neighborhood, domain.JoinLegacyAddress(g.Street, g.Number),
		nullableFloat(g.Lat), nullableFloat(g.Lon), nullableInt(g.SupervisorID), nullableInt(g.CoordinatorID),
	}
}

func nullableFloat(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}

func nullableInt(n *int64) any {
	if n == nil {
		return nil
	}
	return *n
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
