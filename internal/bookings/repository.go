package bookings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/coachpoint/scheduling-platform/internal/availability"
)

// db is the subset of pgxpool.Pool the repository needs; pgxmock satisfies it.
type db interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository persists the booking ledger.
type Repository struct {
	db db
}

// NewRepository creates a repository backed by pgx pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	if pool == nil {
		panic("bookings: pgx pool required")
	}
	return &Repository{db: pool}
}

// newRepositoryWithDB allows injecting mocks for tests.
func newRepositoryWithDB(conn db) *Repository {
	return &Repository{db: conn}
}

const bookingColumns = `id, provider_id, client_id, COALESCE(enrollment_id, ''),
	to_char(session_date, 'YYYY-MM-DD'), session_time, duration_minutes, session_type, status,
	COALESCE(calendar_event_id, ''), COALESCE(video_bot_id, ''), created_at`

func scanBooking(row pgx.Row) (*Booking, error) {
	var b Booking
	if err := row.Scan(
		&b.ID, &b.ProviderID, &b.ClientID, &b.EnrollmentID,
		&b.Date, &b.Time, &b.DurationMinutes, &b.SessionType, &b.Status,
		&b.CalendarEventID, &b.VideoBotID, &b.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &b, nil
}

// ConfirmFromHold consumes a live hold and writes the ledger row in one
// transaction. The hold delete and the insert commit or roll back together,
// so a confirmation can never land without having owned the slot.
func (r *Repository) ConfirmFromHold(ctx context.Context, req *ConfirmRequest) (*Booking, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("bookings: begin confirm: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var providerID, date, slotTime string
	consume := `
		DELETE FROM holds
		WHERE id = $1 AND expires_at > now()
		RETURNING provider_id, to_char(slot_date, 'YYYY-MM-DD'), slot_time
	`
	if err := tx.QueryRow(ctx, consume, req.HoldID).Scan(&providerID, &date, &slotTime); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrHoldGone
		}
		return nil, fmt.Errorf("bookings: consume hold: %w", err)
	}

	id := uuid.NewString()
	insert := `
		INSERT INTO bookings (id, provider_id, client_id, enrollment_id,
			session_date, session_time, duration_minutes, session_type, status,
			calendar_event_id, video_bot_id)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7, $8, $9, NULLIF($10, ''), NULLIF($11, ''))
		RETURNING created_at
	`
	var createdAt time.Time
	if err := tx.QueryRow(ctx, insert,
		id, providerID, req.ClientID, req.EnrollmentID,
		date, slotTime, req.DurationMinutes, req.SessionType, StatusScheduled,
		req.CalendarEventID, req.VideoBotID,
	).Scan(&createdAt); err != nil {
		return nil, fmt.Errorf("bookings: insert: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("bookings: commit confirm: %w", err)
	}

	return &Booking{
		ID:              id,
		ProviderID:      providerID,
		ClientID:        req.ClientID,
		EnrollmentID:    req.EnrollmentID,
		Date:            date,
		Time:            slotTime,
		DurationMinutes: req.DurationMinutes,
		SessionType:     req.SessionType,
		Status:          StatusScheduled,
		CalendarEventID: req.CalendarEventID,
		VideoBotID:      req.VideoBotID,
		CreatedAt:       createdAt,
	}, nil
}

// Get fetches one booking.
func (r *Repository) Get(ctx context.Context, bookingID string) (*Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`
	b, err := scanBooking(r.db.QueryRow(ctx, query, bookingID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBookingNotFound
		}
		return nil, fmt.Errorf("bookings: get: %w", err)
	}
	return b, nil
}

// ActiveKeys implements availability.BookingLookup for the slot generator.
func (r *Repository) ActiveKeys(ctx context.Context, providerID, fromDate, toDate string) (map[availability.SlotKey]struct{}, error) {
	query := `
		SELECT to_char(session_date, 'YYYY-MM-DD'), session_time FROM bookings
		WHERE provider_id = $1 AND session_date BETWEEN $2 AND $3
		  AND status = ANY($4)
	`
	rows, err := r.db.Query(ctx, query, providerID, fromDate, toDate, activeStatuses)
	if err != nil {
		return nil, fmt.Errorf("bookings: active keys: %w", err)
	}
	defer rows.Close()

	keys := make(map[availability.SlotKey]struct{})
	for rows.Next() {
		var key availability.SlotKey
		if err := rows.Scan(&key.Date, &key.Time); err != nil {
			return nil, fmt.Errorf("bookings: scan key: %w", err)
		}
		keys[key] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("bookings: iterate keys: %w", err)
	}
	return keys, nil
}

// ListUpcomingByProvider returns the provider's active bookings on or after
// fromDate, earliest first.
func (r *Repository) ListUpcomingByProvider(ctx context.Context, providerID, fromDate string) ([]*Booking, error) {
	query := `
		SELECT ` + bookingColumns + ` FROM bookings
		WHERE provider_id = $1 AND session_date >= $2 AND status = ANY($3)
		ORDER BY session_date, session_time
	`
	return r.list(ctx, query, providerID, fromDate, activeStatuses)
}

// UpdateStatus transitions one booking. Terminal rows reject further moves.
func (r *Repository) UpdateStatus(ctx context.Context, bookingID string, status Status) error {
	query := `
		UPDATE bookings SET status = $2, updated_at = now()
		WHERE id = $1 AND status NOT IN ('cancelled', 'completed', 'no_show')
	`
	tag, err := r.db.Exec(ctx, query, bookingID, status)
	if err != nil {
		return fmt.Errorf("bookings: update status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrBookingNotFound
	}
	return nil
}

// MarkPausedInWindow pauses every active booking for the enrollment whose
// date falls inside [startDate, endDate] and returns the affected rows so
// the caller can tear down their external resources.
func (r *Repository) MarkPausedInWindow(ctx context.Context, enrollmentID, startDate, endDate string) ([]*Booking, error) {
	query := `
		UPDATE bookings SET status = 'paused', updated_at = now()
		WHERE enrollment_id = $1 AND session_date BETWEEN $2 AND $3
		  AND status = ANY($4)
		RETURNING ` + bookingColumns
	return r.list(ctx, query, enrollmentID, startDate, endDate, activeStatuses)
}

// ReactivatePaused returns paused bookings on or after fromDate to the
// scheduled state and reports how many moved. Already-resumed enrollments
// simply match zero rows.
func (r *Repository) ReactivatePaused(ctx context.Context, enrollmentID, fromDate string) (int64, error) {
	query := `
		UPDATE bookings SET status = 'scheduled', updated_at = now()
		WHERE enrollment_id = $1 AND status = 'paused' AND session_date >= $2
	`
	tag, err := r.db.Exec(ctx, query, enrollmentID, fromDate)
	if err != nil {
		return 0, fmt.Errorf("bookings: reactivate paused: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Reschedule closes the old row as rescheduled and writes a new scheduled
// row at the new slot, in one transaction.
func (r *Repository) Reschedule(ctx context.Context, bookingID, newDate, newTime string) (*Booking, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("bookings: begin reschedule: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	old, err := scanBooking(tx.QueryRow(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE id = $1 AND status = ANY($2)`,
		bookingID, activeStatuses))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBookingNotFound
		}
		return nil, fmt.Errorf("bookings: load for reschedule: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`UPDATE bookings SET status = 'rescheduled', updated_at = now() WHERE id = $1`,
		bookingID); err != nil {
		return nil, fmt.Errorf("bookings: close old row: %w", err)
	}

	id := uuid.NewString()
	var createdAt time.Time
	insert := `
		INSERT INTO bookings (id, provider_id, client_id, enrollment_id,
			session_date, session_time, duration_minutes, session_type, status,
			calendar_event_id, video_bot_id)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7, $8, 'scheduled', NULLIF($9, ''), NULLIF($10, ''))
		RETURNING created_at
	`
	if err := tx.QueryRow(ctx, insert,
		id, old.ProviderID, old.ClientID, old.EnrollmentID,
		newDate, newTime, old.DurationMinutes, old.SessionType,
		old.CalendarEventID, old.VideoBotID,
	).Scan(&createdAt); err != nil {
		return nil, fmt.Errorf("bookings: insert rescheduled row: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("bookings: commit reschedule: %w", err)
	}

	moved := *old
	moved.ID = id
	moved.Date = newDate
	moved.Time = newTime
	moved.Status = StatusScheduled
	moved.CreatedAt = createdAt
	return &moved, nil
}

func (r *Repository) list(ctx context.Context, query string, args ...any) ([]*Booking, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("bookings: query: %w", err)
	}
	defer rows.Close()

	var out []*Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("bookings: scan row: %w", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("bookings: iterate rows: %w", err)
	}
	return out, nil
}
