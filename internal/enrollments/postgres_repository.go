package enrollments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// db is the subset of pgxpool.Pool the repository needs; pgxmock satisfies it.
type db interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore persists enrollments in the relational database.
type PostgresStore struct {
	db db
}

// NewPostgresStore initializes a store backed by pgxpool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	if pool == nil {
		panic("enrollments: pgx pool required")
	}
	return &PostgresStore{db: pool}
}

// newPostgresStoreWithDB allows injecting mocks for tests.
func newPostgresStoreWithDB(conn db) *PostgresStore {
	return &PostgresStore{db: conn}
}

const enrollmentColumns = `id, client_id, status,
	COALESCE(to_char(program_start_date, 'YYYY-MM-DD'), ''),
	COALESCE(to_char(program_end_date, 'YYYY-MM-DD'), ''),
	COALESCE(to_char(original_end_date, 'YYYY-MM-DD'), ''),
	COALESCE(to_char(pause_start_date, 'YYYY-MM-DD'), ''),
	COALESCE(to_char(pause_end_date, 'YYYY-MM-DD'), ''),
	COALESCE(pause_reason, ''), total_pause_days, pause_count, created_at`

func scanEnrollment(row pgx.Row) (*Enrollment, error) {
	var e Enrollment
	if err := row.Scan(
		&e.ID, &e.ClientID, &e.Status,
		&e.ProgramStartDate, &e.ProgramEndDate, &e.OriginalEndDate,
		&e.PauseStartDate, &e.PauseEndDate, &e.PauseReason,
		&e.TotalPauseDays, &e.PauseCount, &e.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &e, nil
}

// Get fetches one enrollment.
func (s *PostgresStore) Get(ctx context.Context, enrollmentID string) (*Enrollment, error) {
	query := `SELECT ` + enrollmentColumns + ` FROM enrollments WHERE id = $1`
	e, err := scanEnrollment(s.db.QueryRow(ctx, query, enrollmentID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEnrollmentNotFound
		}
		return nil, fmt.Errorf("enrollments: get: %w", err)
	}
	return e, nil
}

// Create inserts a new enrollment, pending or immediately active.
func (s *PostgresStore) Create(ctx context.Context, clientID, startDate, endDate string, pending bool) (*Enrollment, error) {
	status := StatusActive
	if pending {
		status = StatusPendingStart
	}
	id := uuid.NewString()
	query := `
		INSERT INTO enrollments (id, client_id, status, program_start_date, program_end_date)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`
	var createdAt time.Time
	if err := s.db.QueryRow(ctx, query, id, clientID, status, startDate, endDate).Scan(&createdAt); err != nil {
		return nil, fmt.Errorf("enrollments: insert: %w", err)
	}
	return &Enrollment{
		ID:               id,
		ClientID:         clientID,
		Status:           status,
		ProgramStartDate: startDate,
		ProgramEndDate:   endDate,
		CreatedAt:        createdAt,
	}, nil
}

// ApplyPause writes the pause-transition fields in one update.
func (s *PostgresStore) ApplyPause(ctx context.Context, e *Enrollment) error {
	query := `
		UPDATE enrollments SET
			status = $2,
			program_end_date = $3,
			original_end_date = $4,
			pause_start_date = $5,
			pause_end_date = $6,
			pause_reason = $7,
			pause_count = $8,
			updated_at = now()
		WHERE id = $1
	`
	tag, err := s.db.Exec(ctx, query,
		e.ID, e.Status, e.ProgramEndDate, e.OriginalEndDate,
		e.PauseStartDate, e.PauseEndDate, e.PauseReason, e.PauseCount)
	if err != nil {
		return fmt.Errorf("enrollments: apply pause: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrEnrollmentNotFound
	}
	return nil
}

// ApplyResume writes the resume-transition fields in one update, clearing
// the pause window.
func (s *PostgresStore) ApplyResume(ctx context.Context, e *Enrollment) error {
	query := `
		UPDATE enrollments SET
			status = $2,
			program_end_date = $3,
			total_pause_days = $4,
			pause_start_date = NULL,
			pause_end_date = NULL,
			pause_reason = NULL,
			updated_at = now()
		WHERE id = $1
	`
	tag, err := s.db.Exec(ctx, query, e.ID, e.Status, e.ProgramEndDate, e.TotalPauseDays)
	if err != nil {
		return fmt.Errorf("enrollments: apply resume: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrEnrollmentNotFound
	}
	return nil
}

// UpdateStatus transitions the status and, when provided, stamps the
// program start date (delayed-start activation).
func (s *PostgresStore) UpdateStatus(ctx context.Context, enrollmentID string, status Status, programStartDate string) error {
	query := `
		UPDATE enrollments SET
			status = $2,
			program_start_date = COALESCE(NULLIF($3, '')::date, program_start_date),
			updated_at = now()
		WHERE id = $1
	`
	tag, err := s.db.Exec(ctx, query, enrollmentID, status, programStartDate)
	if err != nil {
		return fmt.Errorf("enrollments: update status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrEnrollmentNotFound
	}
	return nil
}
