// Package store persists groups, supervisors, coordinators and visitor
// preferences over database/sql. Postgres (pgx) is the production backend;
// SQLite (modernc) serves development, tests and seed files.
package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Supported driver names.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

const pgForeignKeyViolation = "23503"

var (
	// ErrNotFound is returned when no row has the requested id.
	ErrNotFound = errors.New("record not found")
	// ErrReferenced is returned when a delete is blocked by rows linking to the record.
	ErrReferenced = errors.New("could not delete, check for existing links")
	// ErrInvalidReference is returned when a write links to a missing supervisor or coordinator.
	ErrInvalidReference = errors.New("linked record does not exist")
)

//go:embed schema/*.sql
var schemaFS embed.FS

// Store is the backend data store.
type Store struct {
	db     *sql.DB
	driver string
	logger *slog.Logger
}

// Open connects to the database, applies the schema and returns a Store.
func Open(ctx context.Context, driver, dsn string, logger *slog.Logger) (*Store, error) {
	var sqlDriver string
	switch driver {
	case DriverSQLite:
		sqlDriver = "sqlite"
		dsn = withSQLitePragmas(dsn)
	case DriverPostgres:
		sqlDriver = "pgx"
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := sql.Open(sqlDriver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	s := &Store{db: db, driver: driver, logger: logger}
	if err := s.init(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) init(ctx context.Context) error {
	if s.driver == DriverSQLite {
		// A single connection keeps in-memory databases alive and serializes writers.
		s.db.SetMaxOpenConns(1)
		s.db.SetMaxIdleConns(1)
	}

	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}

	schema, err := schemaFS.ReadFile("schema/" + s.driver + ".sql")
	if err != nil {
		return fmt.Errorf("read schema: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, string(schema)); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	s.logger.Info("database ready", "driver", s.driver)
	return nil
}

// withSQLitePragmas enables foreign keys and a busy timeout on every
// connection the driver opens.
func withSQLitePragmas(dsn string) string {
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// CheckReadiness reports whether the database answers.
func (s *Store) CheckReadiness(ctx context.Context) error {
	if err := s.Ping(ctx); err != nil {
		return fmt.Errorf("database unreachable: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// rebind rewrites ? placeholders as $1, $2, ... for Postgres.
func (s *Store) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *Store) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.db.ExecContext(ctx, s.rebind(query), args...)
}

func (s *Store) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.db.QueryContext(ctx, s.rebind(query), args...)
}

func (s *Store) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return s.db.QueryRowContext(ctx, s.rebind(query), args...)
}

// insert runs an INSERT ... RETURNING id statement.
func (s *Store) insert(ctx context.Context, query string, args ...any) (int64, error) {
	var id int64
	if err := s.queryRow(ctx, query+" RETURNING id", args...).Scan(&id); err != nil {
		if isForeignKeyViolation(err) {
			return 0, ErrInvalidReference
		}
		return 0, err
	}
	return id, nil
}

// update runs an UPDATE by id and maps zero affected rows to ErrNotFound.
func (s *Store) update(ctx context.Context, query string, args ...any) error {
	res, err := s.exec(ctx, query, args...)
	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrInvalidReference
		}
		return err
	}
	return expectAffected(res)
}

// deleteByID removes one row from table.
func (s *Store) deleteByID(ctx context.Context, table string, id int64) error {
	res, err := s.exec(ctx, "DELETE FROM "+table+" WHERE id = ?", id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrReferenced
		}
		return err
	}
	return expectAffected(res)
}

func expectAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgForeignKeyViolation
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code() == sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY
	}
	return false
}
