package enrollments

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Audit event types recorded by the timeline engine.
const (
	EventCreated        = "enrollment.created"
	EventStarted        = "enrollment.started"
	EventPaused         = "enrollment.paused"
	EventResumed        = "enrollment.resumed"
	EventCancelled      = "enrollment.cancelled"
)

// Event is an immutable audit record of a lifecycle transition,
// append-only with one row per meaningful state change.
type Event struct {
	ID           string          `json:"id"`
	EnrollmentID string          `json:"enrollment_id"`
	EventType    string          `json:"event_type"`
	Actor        string          `json:"actor"`
	Payload      json.RawMessage `json:"payload,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// EventStore appends and reads enrollment audit events.
type EventStore struct {
	db db
}

// NewEventStore initializes an event store backed by pgxpool.
func NewEventStore(pool *pgxpool.Pool) *EventStore {
	if pool == nil {
		panic("enrollments: pgx pool required")
	}
	return &EventStore{db: pool}
}

// newEventStoreWithDB allows injecting mocks for tests.
func newEventStoreWithDB(conn db) *EventStore {
	return &EventStore{db: conn}
}

// Append records one audit event.
func (s *EventStore) Append(ctx context.Context, enrollmentID, eventType, actor string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("enrollments: marshal event payload: %w", err)
	}
	query := `
		INSERT INTO enrollment_events (id, enrollment_id, event_type, actor, payload)
		VALUES ($1, $2, $3, $4, $5)
	`
	if _, err := s.db.Exec(ctx, query, uuid.NewString(), enrollmentID, eventType, actor, data); err != nil {
		return fmt.Errorf("enrollments: append event: %w", err)
	}
	return nil
}

// ListByEnrollment returns the audit trail, oldest first.
func (s *EventStore) ListByEnrollment(ctx context.Context, enrollmentID string) ([]Event, error) {
	query := `
		SELECT id, enrollment_id, event_type, actor, payload, created_at
		FROM enrollment_events
		WHERE enrollment_id = $1
		ORDER BY created_at
	`
	rows, err := s.db.Query(ctx, query, enrollmentID)
	if err != nil {
		return nil, fmt.Errorf("enrollments: list events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var ev Event
		if err := rows.Scan(&ev.ID, &ev.EnrollmentID, &ev.EventType, &ev.Actor, &ev.Payload, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("enrollments: scan event: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("enrollments: iterate events: %w", err)
	}
	return events, nil
}
