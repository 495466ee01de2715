package resident

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"rezscan/pkg/domain"
	"rezscan/pkg/platform/sentinel"
	"rezscan/pkg/platform/tx"
)

// PostgresStore persists the resident directory in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed resident store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) FindByMDOC(ctx context.Context, mdoc string) (*Resident, error) {
	q := tx.Resolve(ctx, s.db)
	row := q.QueryRowContext(ctx, `SELECT id, mdoc, name FROM residents WHERE mdoc = $1`, mdoc)
	r, err := scanResident(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find resident by mdoc: %w", err)
	}
	return r, nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id domain.ResidentID) (*Resident, error) {
	q := tx.Resolve(ctx, s.db)
	row := q.QueryRowContext(ctx, `SELECT id, mdoc, name FROM residents WHERE id = $1`, id.String())
	r, err := scanResident(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find resident by id: %w", err)
	}
	return r, nil
}

func (s *PostgresStore) Create(ctx context.Context, r *Resident) error {
	q := tx.Resolve(ctx, s.db)
	_, err := q.ExecContext(ctx, `
		INSERT INTO residents (id, mdoc, name)
		VALUES ($1, $2, $3)
	`, r.ID.String(), r.MDOC, r.Name)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return fmt.Errorf("%w: mdoc %q already registered", sentinel.ErrConflict, r.MDOC)
		}
		return fmt.Errorf("create resident: %w", err)
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context) ([]Resident, error) {
	q := tx.Resolve(ctx, s.db)
	rows, err := q.QueryContext(ctx, `SELECT id, mdoc, name FROM residents ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list residents: %w", err)
	}
	defer rows.Close()

	var residents []Resident
	for rows.Next() {
		r, err := scanResident(rows)
		if err != nil {
			return nil, fmt.Errorf("list residents: %w", err)
		}
		residents = append(residents, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list residents: %w", err)
	}
	return residents, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanResident(row rowScanner) (*Resident, error) {
	var (
		r  Resident
		id string
	)
	if err := row.Scan(&id, &r.MDOC, &r.Name); err != nil {
		return nil, err
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("corrupt resident id %q: %w", id, err)
	}
	r.ID = domain.ResidentID(parsed)
	return &r, nil
}
