package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// GetPreference returns the stored value for a client key. ok is false when
// nothing was saved.
func (s *Store) GetPreference(ctx context.Context, clientID, key string) (value string, ok bool, err error) {
	err = s.queryRow(ctx, "SELECT valor FROM preferencias WHERE client_id = ? AND chave = ?", clientID, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get preference %s: %w", key, err)
	}
	return value, true, nil
}

// SetPreference saves a client key, replacing any previous value.
func (s *Store) SetPreference(ctx context.Context, clientID, key, value string) error {
	_, err := s.exec(ctx, `INSERT INTO preferencias (client_id, chave, valor) VALUES (?, ?, ?)
		ON CONFLICT (client_id, chave) DO UPDATE SET valor = excluded.valor`, clientID, key, value)
	if err != nil {
		return fmt.Errorf("set preference %s: %w", key, err)
	}
	return nil
}
