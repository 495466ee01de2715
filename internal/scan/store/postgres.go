package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"rezscan/internal/scan/models"
	"rezscan/pkg/domain"
	"rezscan/pkg/platform/sentinel"
	"rezscan/pkg/platform/tx"
)

const defaultListLimit = 100

// Postgres persists scan events in PostgreSQL.
// This store is pure I/O; transition decisions belong to the engine.
type Postgres struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed event store.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// RunForResident runs fn inside a transaction holding a per-resident
// advisory lock. The lock serializes concurrent read-decide-write cycles for
// one resident without blocking other residents; it is released at
// commit/rollback. The two-insert missed-scan correction therefore lands
// atomically or not at all.
func (s *Postgres) RunForResident(ctx context.Context, residentID domain.ResidentID, fn func(txCtx context.Context) error) error {
	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return translateErr(fmt.Errorf("begin scan tx: %w", err))
	}

	txCtx := tx.WithTx(ctx, dbTx)

	if _, err := dbTx.ExecContext(txCtx,
		`SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`,
		residentID.String(),
	); err != nil {
		dbTx.Rollback()
		return translateErr(fmt.Errorf("acquire resident lock: %w", err))
	}

	if err := fn(txCtx); err != nil {
		dbTx.Rollback()
		return err
	}

	if err := dbTx.Commit(); err != nil {
		return translateErr(fmt.Errorf("commit scan tx: %w", err))
	}
	return nil
}

func (s *Postgres) LastEvent(ctx context.Context, residentID domain.ResidentID) (*models.ScanEvent, error) {
	q := tx.Resolve(ctx, s.db)
	row := q.QueryRowContext(ctx, `
		SELECT seq, resident_id, ts, status, location
		FROM scans
		WHERE resident_id = $1
		ORDER BY ts DESC, seq DESC
		LIMIT 1
	`, residentID.String())

	event, err := scanEvent(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, translateErr(fmt.Errorf("last scan event: %w", err))
	}
	return event, nil
}

func (s *Postgres) Append(ctx context.Context, events ...*models.ScanEvent) error {
	q := tx.Resolve(ctx, s.db)
	for _, event := range events {
		err := q.QueryRowContext(ctx, `
			INSERT INTO scans (resident_id, ts, status, location)
			VALUES ($1, $2, $3, $4)
			RETURNING seq
		`, event.ResidentID.String(), event.Timestamp, string(event.Status), event.Location).Scan(&event.Seq)
		if err != nil {
			return translateErr(fmt.Errorf("append scan event: %w", err))
		}
	}
	return nil
}

func (s *Postgres) LatestPerResident(ctx context.Context) ([]models.ScanEvent, error) {
	q := tx.Resolve(ctx, s.db)
	rows, err := q.QueryContext(ctx, `
		SELECT DISTINCT ON (resident_id)
			seq, resident_id, ts, status, location
		FROM scans
		ORDER BY resident_id, ts DESC, seq DESC
	`)
	if err != nil {
		return nil, translateErr(fmt.Errorf("latest scan per resident: %w", err))
	}
	defer rows.Close()
	return collectEvents(rows)
}

func (s *Postgres) List(ctx context.Context, filter ListFilter) ([]models.ScanEvent, error) {
	query := `
		SELECT seq, resident_id, ts, status, location
		FROM scans
	`
	var (
		where []string
		args  []any
	)
	if !filter.ResidentID.IsNil() {
		args = append(args, filter.ResidentID.String())
		where = append(where, "resident_id = $"+strconv.Itoa(len(args)))
	}
	if filter.Location != "" {
		args = append(args, filter.Location)
		where = append(where, "location = $"+strconv.Itoa(len(args)))
	}
	for i, clause := range where {
		if i == 0 {
			query += " WHERE " + clause
		} else {
			query += " AND " + clause
		}
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	args = append(args, limit)
	query += " ORDER BY ts DESC, seq DESC LIMIT $" + strconv.Itoa(len(args))

	q := tx.Resolve(ctx, s.db)
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, translateErr(fmt.Errorf("list scan events: %w", err))
	}
	defer rows.Close()
	return collectEvents(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (*models.ScanEvent, error) {
	var (
		event      models.ScanEvent
		residentID string
		status     string
	)
	if err := row.Scan(&event.Seq, &residentID, &event.Timestamp, &status, &event.Location); err != nil {
		return nil, err
	}
	parsed, err := uuid.Parse(residentID)
	if err != nil {
		return nil, fmt.Errorf("corrupt resident id %q: %w", residentID, err)
	}
	event.ResidentID = domain.ResidentID(parsed)
	event.Status, err = models.ParseStatus(status)
	if err != nil {
		return nil, err
	}
	return &event, nil
}

func collectEvents(rows *sql.Rows) ([]models.ScanEvent, error) {
	var events []models.ScanEvent
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, *event)
	}
	if err := rows.Err(); err != nil {
		return nil, translateErr(err)
	}
	return events, nil
}

// translateErr maps driver errors onto the sentinel taxonomy: serialization
// and deadlock failures become ErrConflict (the engine retries those);
// connection-class failures become ErrUnavailable.
func translateErr(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch {
		case pqErr.Code == "40001" || pqErr.Code == "40P01":
			return fmt.Errorf("%w: %v", sentinel.ErrConflict, err)
		case pqErr.Code.Class() == "08":
			return fmt.Errorf("%w: %v", sentinel.ErrUnavailable, err)
		}
	}
	if errors.Is(err, sql.ErrConnDone) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", sentinel.ErrUnavailable, err)
	}
	return err
}
