package location

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"rezscan/pkg/domain"
	"rezscan/pkg/platform/sentinel"
	"rezscan/pkg/platform/tx"
)

// PostgresStore persists the location directory in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed location store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) ResolveByPrefix(ctx context.Context, prefix string) (*Location, error) {
	q := tx.Resolve(ctx, s.db)
	row := q.QueryRowContext(ctx, `
		SELECT id, prefix, name
		FROM locations
		WHERE UPPER(prefix) = UPPER($1)
	`, strings.TrimSpace(prefix))

	loc, err := scanLocation(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("resolve location prefix: %w", err)
	}
	return loc, nil
}

func (s *PostgresStore) Create(ctx context.Context, loc *Location) error {
	q := tx.Resolve(ctx, s.db)
	_, err := q.ExecContext(ctx, `
		INSERT INTO locations (id, prefix, name)
		VALUES ($1, $2, $3)
	`, loc.ID.String(), strings.TrimSpace(loc.Prefix), loc.Name)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return fmt.Errorf("%w: prefix %q already mapped", sentinel.ErrConflict, loc.Prefix)
		}
		return fmt.Errorf("create location: %w", err)
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context) ([]Location, error) {
	q := tx.Resolve(ctx, s.db)
	rows, err := q.QueryContext(ctx, `SELECT id, prefix, name FROM locations ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list locations: %w", err)
	}
	defer rows.Close()

	var locations []Location
	for rows.Next() {
		loc, err := scanLocation(rows)
		if err != nil {
			return nil, fmt.Errorf("list locations: %w", err)
		}
		locations = append(locations, *loc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list locations: %w", err)
	}
	return locations, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLocation(row rowScanner) (*Location, error) {
	var (
		loc Location
		id  string
	)
	if err := row.Scan(&id, &loc.Prefix, &loc.Name); err != nil {
		return nil, err
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("corrupt location id %q: %w", id, err)
	}
	loc.ID = domain.LocationID(parsed)
	return &loc, nil
}
