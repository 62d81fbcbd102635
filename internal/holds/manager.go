package holds

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/coachpoint/scheduling-platform/internal/availability"
	"github.com/coachpoint/scheduling-platform/internal/observability/metrics"
	"github.com/coachpoint/scheduling-platform/pkg/logging"
)

var holdsTracer = otel.Tracer("coachpoint.internal.holds")

// db is the subset of pgxpool.Pool the manager needs; pgxmock satisfies it.
type db interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Manager is the booking-conflict guard. Placing a hold is the only
// operation in the system requiring a true atomic compare-and-set: the
// check-and-insert runs as a single conditional write against the hold
// table, never a separate read-then-write.
type Manager struct {
	db      db
	ttl     time.Duration
	metrics *metrics.SchedulingMetrics
	logger  *logging.Logger
}

// NewManager constructs a hold manager backed by pgx pool.
func NewManager(pool *pgxpool.Pool, ttl time.Duration, m *metrics.SchedulingMetrics, logger *logging.Logger) *Manager {
	if pool == nil {
		panic("holds: pgx pool required")
	}
	return newManagerWithDB(pool, ttl, m, logger)
}

// newManagerWithDB allows injecting mocks for tests.
func newManagerWithDB(conn db, ttl time.Duration, m *metrics.SchedulingMetrics, logger *logging.Logger) *Manager {
	if ttl <= 0 {
		ttl = 3 * time.Minute
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Manager{db: conn, ttl: ttl, metrics: m, logger: logger}
}

// Place claims (providerID, date, slotTime) for the manager's TTL. An
// unexpired hold on the key yields ErrSlotHeld; an active booking yields
// ErrSlotBooked. The insert takes over an expired row in the same
// statement, so two concurrent calls can never both succeed.
func (m *Manager) Place(ctx context.Context, providerID, date, slotTime string) (*Hold, error) {
	ctx, span := holdsTracer.Start(ctx, "holds.place")
	defer span.End()
	span.SetAttributes(
		attribute.String("coachpoint.provider_id", providerID),
		attribute.String("coachpoint.slot", date+" "+slotTime),
	)

	var booked bool
	bookingCheck := `
		SELECT EXISTS (
			SELECT 1 FROM bookings
			WHERE provider_id = $1 AND session_date = $2 AND session_time = $3
			  AND status IN ('scheduled', 'confirmed')
		)
	`
	if err := m.db.QueryRow(ctx, bookingCheck, providerID, date, slotTime).Scan(&booked); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("holds: booking check: %w", err)
	}
	if booked {
		m.metrics.ObserveHold("conflict_booking")
		return nil, ErrSlotBooked
	}

	id := uuid.NewString()
	expiresAt := time.Now().UTC().Add(m.ttl)

	// Conditional write: the conflict target is the unique slot key, and the
	// takeover only fires when the existing row has expired. No row back
	// means a live hold owns the slot.
	query := `
		INSERT INTO holds (id, provider_id, slot_date, slot_time, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (provider_id, slot_date, slot_time) DO UPDATE
		SET id = EXCLUDED.id, expires_at = EXCLUDED.expires_at, created_at = now()
		WHERE holds.expires_at <= now()
		RETURNING id
	`
	var returnedID string
	err := m.db.QueryRow(ctx, query, id, providerID, date, slotTime, expiresAt).Scan(&returnedID)
	if errors.Is(err, pgx.ErrNoRows) {
		m.metrics.ObserveHold("conflict_held")
		return nil, ErrSlotHeld
	}
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("holds: place: %w", err)
	}

	m.metrics.ObserveHold("placed")
	m.logger.Info("hold placed", "hold_id", returnedID, "provider_id", providerID, "date", date, "time", slotTime)
	return &Hold{
		ID:         returnedID,
		ProviderID: providerID,
		Date:       date,
		Time:       slotTime,
		ExpiresAt:  expiresAt,
	}, nil
}

// Release drops a live hold. Releasing an expired or unknown hold reports
// ErrHoldNotFound; callers treat that as already-gone.
func (m *Manager) Release(ctx context.Context, holdID string) error {
	ctx, span := holdsTracer.Start(ctx, "holds.release")
	defer span.End()

	tag, err := m.db.Exec(ctx, `DELETE FROM holds WHERE id = $1 AND expires_at > now()`, holdID)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("holds: release: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrHoldNotFound
	}
	m.metrics.ObserveHold("released")
	return nil
}

// UnexpiredKeys implements availability.HoldLookup: the slot generator
// treats any hold past its expiry as absent.
func (m *Manager) UnexpiredKeys(ctx context.Context, providerID, fromDate, toDate string) (map[availability.SlotKey]struct{}, error) {
	query := `
		SELECT to_char(slot_date, 'YYYY-MM-DD'), slot_time FROM holds
		WHERE provider_id = $1 AND slot_date BETWEEN $2 AND $3 AND expires_at > now()
	`
	rows, err := m.db.Query(ctx, query, providerID, fromDate, toDate)
	if err != nil {
		return nil, fmt.Errorf("holds: list unexpired: %w", err)
	}
	defer rows.Close()

	keys := make(map[availability.SlotKey]struct{})
	for rows.Next() {
		var key availability.SlotKey
		if err := rows.Scan(&key.Date, &key.Time); err != nil {
			return nil, fmt.Errorf("holds: scan key: %w", err)
		}
		keys[key] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("holds: iterate keys: %w", err)
	}
	return keys, nil
}

// DeleteExpired removes expired rows. Correctness never depends on this;
// it exists for storage hygiene and is driven by the Compactor.
func (m *Manager) DeleteExpired(ctx context.Context) (int64, error) {
	tag, err := m.db.Exec(ctx, `DELETE FROM holds WHERE expires_at <= now()`)
	if err != nil {
		return 0, fmt.Errorf("holds: delete expired: %w", err)
	}
	return tag.RowsAffected(), nil
}
