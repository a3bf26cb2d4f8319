package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"smartparking/backend/services/parking-service/internal/models"
)

var _ SessionStore = (*SessionRepository)(nil)

const sessionColumns = `id, slot_id, holder, entry_time, exit_time, duration_minutes, cost, status, payment_status, created_at, updated_at`

// schema keeps at most one open session per slot with a partial unique index.
const schema = `
	CREATE TABLE IF NOT EXISTS parking_sessions (
		id               TEXT PRIMARY KEY,
		slot_id          TEXT NOT NULL,
		holder           TEXT NOT NULL,
		entry_time       TIMESTAMPTZ NOT NULL,
		exit_time        TIMESTAMPTZ,
		duration_minutes BIGINT,
		cost             DOUBLE PRECISION,
		status           TEXT NOT NULL,
		payment_status   TEXT NOT NULL,
		created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
	CREATE UNIQUE INDEX IF NOT EXISTS parking_sessions_one_open_per_slot
		ON parking_sessions (slot_id) WHERE status = 'open';
	CREATE INDEX IF NOT EXISTS parking_sessions_holder_entry
		ON parking_sessions (holder, entry_time DESC);
`

// SessionRepository handles persistence of parking sessions in Postgres.
type SessionRepository struct {
	db *sql.DB
}

// NewSessionRepository returns repository.
func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Migrate creates the sessions table and indexes if missing.
func (r *SessionRepository) Migrate(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("repository: migrate: %w", err)
	}
	return nil
}

func (r *SessionRepository) Insert(ctx context.Context, session *models.Session) (string, error) {
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	const query = `
		INSERT INTO parking_sessions (id, slot_id, holder, entry_time, status, payment_status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRowContext(ctx, query,
		session.ID,
		session.SlotID,
		session.Holder,
		session.EntryTime,
		session.Status,
		session.PaymentStatus,
	).Scan(&session.CreatedAt, &session.UpdatedAt)
	if err != nil {
		return "", fmt.Errorf("repository: insert session: %w", err)
	}
	return session.ID, nil
}

func (r *SessionRepository) Get(ctx context.Context, id string) (*models.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM parking_sessions WHERE id = $1`
	session, err := scanSession(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("repository: get session: %w", err)
	}
	return session, nil
}

func (r *SessionRepository) FindOpenSession(ctx context.Context, slotID string) (*models.Session, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM parking_sessions
		WHERE slot_id = $1 AND status = 'open'
		ORDER BY entry_time DESC
		LIMIT 1
	`
	session, err := scanSession(r.db.QueryRowContext(ctx, query, slotID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("repository: find open session: %w", err)
	}
	return session, nil
}

func (r *SessionRepository) Update(ctx context.Context, id string, update models.SessionUpdate) error {
	const query = `
		UPDATE parking_sessions
		SET exit_time = $2,
		    duration_minutes = $3,
		    cost = $4,
		    status = $5,
		    updated_at = NOW()
		WHERE id = $1
	`
	result, err := r.db.ExecContext(ctx, query, id, update.ExitTime, update.DurationMinutes, update.Cost, update.Status)
	if err != nil {
		return fmt.Errorf("repository: update session: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrSessionNotFound
	}
	return nil
}

func (r *SessionRepository) FindByHolder(ctx context.Context, holder string, limit int) ([]models.Session, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM parking_sessions
		WHERE ($1::text = '' OR holder = $1)
		ORDER BY entry_time DESC
		LIMIT $2
	`
	return r.list(ctx, query, holder, normalizeLimit(limit))
}

func (r *SessionRepository) ListOpen(ctx context.Context) ([]models.Session, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM parking_sessions
		WHERE status = 'open'
		ORDER BY entry_time DESC
	`
	return r.list(ctx, query)
}

func (r *SessionRepository) MarkPaid(ctx context.Context, id string) error {
	const query = `
		UPDATE parking_sessions
		SET payment_status = 'paid',
		    updated_at = NOW()
		WHERE id = $1 AND status = 'closed'
	`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("repository: mark paid: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected > 0 {
		return nil
	}

	if _, err := r.Get(ctx, id); err != nil {
		return err
	}
	return ErrSessionNotClosed
}

func (r *SessionRepository) list(ctx context.Context, query string, args ...any) ([]models.Session, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("repository: list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []models.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sessions, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*models.Session, error) {
	var (
		s        models.Session
		exitTime sql.NullTime
		duration sql.NullInt64
		cost     sql.NullFloat64
	)
	if err := row.Scan(
		&s.ID,
		&s.SlotID,
		&s.Holder,
		&s.EntryTime,
		&exitTime,
		&duration,
		&cost,
		&s.Status,
		&s.PaymentStatus,
		&s.CreatedAt,
		&s.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if exitTime.Valid {
		t := exitTime.Time.UTC()
		s.ExitTime = &t
	}
	if duration.Valid {
		d := duration.Int64
		s.DurationMinutes = &d
	}
	if cost.Valid {
		c := cost.Float64
		s.Cost = &c
	}
	s.EntryTime = s.EntryTime.UTC()
	return &s, nil
}
