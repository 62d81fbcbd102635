package holds

import (
	"context"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coachpoint/scheduling-platform/internal/availability"
)

func newMockManager(t *testing.T) (*Manager, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return newManagerWithDB(mock, 2*time.Minute, nil, nil), mock
}

func expectBookingCheck(mock pgxmock.PgxPoolIface, occupied bool) {
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("p1", "2026-03-02", "09:00").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(occupied))
}

func TestPlaceHoldSucceeds(t *testing.T) {
	m, mock := newMockManager(t)

	expectBookingCheck(mock, false)
	mock.ExpectQuery("INSERT INTO holds").
		WithArgs(pgxmock.AnyArg(), "p1", "2026-03-02", "09:00", pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("hold-1"))

	hold, err := m.Place(context.Background(), "p1", "2026-03-02", "09:00")
	require.NoError(t, err)
	assert.Equal(t, "hold-1", hold.ID)
	assert.Equal(t, "p1", hold.ProviderID)
	assert.WithinDuration(t, time.Now().UTC().Add(2*time.Minute), hold.ExpiresAt, 5*time.Second)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPlaceHoldConflictWithLiveHold(t *testing.T) {
	m, mock := newMockManager(t)

	expectBookingCheck(mock, false)
	// Conditional write returns no row when an unexpired hold owns the key.
	mock.ExpectQuery("INSERT INTO holds").
		WithArgs(pgxmock.AnyArg(), "p1", "2026-03-02", "09:00", pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id"}))

	_, err := m.Place(context.Background(), "p1", "2026-03-02", "09:00")
	assert.ErrorIs(t, err, ErrSlotHeld)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPlaceHoldConflictWithBooking(t *testing.T) {
	m, mock := newMockManager(t)

	expectBookingCheck(mock, true)

	_, err := m.Place(context.Background(), "p1", "2026-03-02", "09:00")
	assert.ErrorIs(t, err, ErrSlotBooked)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReleaseHold(t *testing.T) {
	m, mock := newMockManager(t)

	mock.ExpectExec("DELETE FROM holds").
		WithArgs("hold-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	require.NoError(t, m.Release(context.Background(), "hold-1"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReleaseUnknownHold(t *testing.T) {
	m, mock := newMockManager(t)

	mock.ExpectExec("DELETE FROM holds").
		WithArgs("gone").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	err := m.Release(context.Background(), "gone")
	assert.ErrorIs(t, err, ErrHoldNotFound)
}

func TestUnexpiredKeys(t *testing.T) {
	m, mock := newMockManager(t)

	rows := pgxmock.NewRows([]string{"slot_date", "slot_time"}).
		AddRow("2026-03-02", "09:00").
		AddRow("2026-03-03", "14:30")
	mock.ExpectQuery("SELECT to_char").
		WithArgs("p1", "2026-03-02", "2026-03-08").
		WillReturnRows(rows)

	keys, err := m.UnexpiredKeys(context.Background(), "p1", "2026-03-02", "2026-03-08")
	require.NoError(t, err)
	assert.Len(t, keys, 2)
	assert.Contains(t, keys, availability.SlotKey{Date: "2026-03-02", Time: "09:00"})
	assert.Contains(t, keys, availability.SlotKey{Date: "2026-03-03", Time: "14:30"})
}

func TestDeleteExpired(t *testing.T) {
	m, mock := newMockManager(t)

	mock.ExpectExec("DELETE FROM holds WHERE expires_at").
		WillReturnResult(pgxmock.NewResult("DELETE", 7))

	removed, err := m.DeleteExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(7), removed)
}

func TestCompactorRunsUntilCancelled(t *testing.T) {
	m, mock := newMockManager(t)
	mock.ExpectExec("DELETE FROM holds WHERE expires_at").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	c := NewCompactor(m, 10*time.Millisecond, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("compactor did not stop on context cancellation")
	}
}

func TestPlaceHoldRequestValidate(t *testing.T) {
	req := PlaceHoldRequest{}
	assert.ErrorIs(t, req.Validate(), ErrMissingProvider)

	req.ProviderID = "p1"
	assert.ErrorIs(t, req.Validate(), ErrMissingSlot)

	req.Date, req.Time = "2026-03-02", "09:00"
	assert.NoError(t, req.Validate())
}
