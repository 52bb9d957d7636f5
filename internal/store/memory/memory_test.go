package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"memberbook/backend/internal/domain"
	"memberbook/backend/internal/store"
)

var base = time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)

func hold(start time.Time, minutes, buffer int, expiresAt time.Time) domain.Booking {
	end := start.Add(time.Duration(minutes) * time.Minute)
	return domain.Booking{
		ID:            uuid.New(),
		ProviderID:    "p1",
		CustomerID:    "c1",
		StartTime:     start,
		EndTime:       end,
		BlockedUntil:  end.Add(time.Duration(buffer) * time.Minute),
		BufferMinutes: buffer,
		Currency:      "usd",
		State:         domain.BookingPending,
		ExpiresAt:     expiresAt,
	}
}

func TestPlaceHold_ConcurrentSameSlotHasOneWinner(t *testing.T) {
	s := New()
	now := base.Add(-24 * time.Hour)
	const n = 64

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		wins     int
		conflict int
	)
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := s.PlaceHold(context.Background(), hold(base, 30, 0, now.Add(15*time.Minute)), now)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case assert.ErrorIs(t, err, store.ErrConflict):
				conflict++
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Equal(t, n-1, conflict)
}

func TestPlaceHold_DisjointSlotsDoNotInterfere(t *testing.T) {
	s := New()
	now := base.Add(-24 * time.Hour)

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.PlaceHold(context.Background(), hold(base.Add(time.Duration(i)*30*time.Minute), 30, 0, now.Add(time.Hour)), now)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		require.NoError(t, err, "hold %d", i)
	}
}

func TestPlaceHold_RespectsStoredBuffer(t *testing.T) {
	s := New()
	now := base.Add(-24 * time.Hour)

	_, err := s.PlaceHold(context.Background(), hold(base, 30, 10, now.Add(time.Hour)), now)
	require.NoError(t, err)

	_, err = s.PlaceHold(context.Background(), hold(base.Add(30*time.Minute), 30, 10, now.Add(time.Hour)), now)
	assert.ErrorIs(t, err, store.ErrConflict)

	_, err = s.PlaceHold(context.Background(), hold(base.Add(time.Hour), 30, 10, now.Add(time.Hour)), now)
	assert.NoError(t, err)
}

func TestPlaceHold_ReleasesExpiredHold(t *testing.T) {
	s := New()
	now := base.Add(-24 * time.Hour)

	first, err := s.PlaceHold(context.Background(), hold(base, 30, 0, now.Add(15*time.Minute)), now)
	require.NoError(t, err)

	later := now.Add(16 * time.Minute)
	second, err := s.PlaceHold(context.Background(), hold(base, 30, 0, later.Add(15*time.Minute)), later)
	require.NoError(t, err)
	require.Len(t, second.Released, 1)
	assert.Equal(t, first.Booking.ID, second.Released[0].ID)

	old, err := s.GetBooking(context.Background(), first.Booking.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingCanceled, old.State)

	history, err := s.ListTransitions(context.Background(), first.Booking.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, store.ReasonHoldPlaced, history[0].Reason)
	assert.Equal(t, domain.ReasonHoldExpired, history[1].Reason)
}

func TestPlaceHold_ReplayWithSameID(t *testing.T) {
	s := New()
	now := base.Add(-24 * time.Hour)
	b := hold(base, 30, 0, now.Add(time.Hour))

	first, err := s.PlaceHold(context.Background(), b, now)
	require.NoError(t, err)

	again, err := s.PlaceHold(context.Background(), b, now.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, first.Booking.ID, again.Booking.ID)

	different := b
	different.PriceAmount = 500
	_, err = s.PlaceHold(context.Background(), different, now)
	assert.ErrorIs(t, err, store.ErrIdempotencyConflict)
}

func TestTransition_IsGuardedByExpectedState(t *testing.T) {
	s := New()
	now := base.Add(-24 * time.Hour)
	res, err := s.PlaceHold(context.Background(), hold(base, 30, 0, now.Add(time.Hour)), now)
	require.NoError(t, err)
	id := res.Booking.ID

	_, err = s.Transition(context.Background(), id, domain.BookingPending, domain.BookingCompleted, "x", now)
	assert.ErrorIs(t, err, domain.ErrIllegalTransition)

	b, err := s.Transition(context.Background(), id, domain.BookingPending, domain.BookingConfirmed, domain.ReasonPaymentCaptured, now)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingConfirmed, b.State)

	_, err = s.Transition(context.Background(), id, domain.BookingPending, domain.BookingCanceled, domain.ReasonHoldExpired, now)
	assert.ErrorIs(t, err, store.ErrStaleState)

	_, err = s.Transition(context.Background(), uuid.New(), domain.BookingPending, domain.BookingCanceled, domain.ReasonHoldExpired, now)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestTransition_ExpiredHoldCannotBeConfirmed(t *testing.T) {
	s := New()
	now := base.Add(-24 * time.Hour)
	expires := now.Add(10 * time.Minute)
	res, err := s.PlaceHold(context.Background(), hold(base, 30, 0, expires), now)
	require.NoError(t, err)
	id := res.Booking.ID

	_, err = s.Transition(context.Background(), id, domain.BookingPending, domain.BookingConfirmed, domain.ReasonPaymentCaptured, expires)
	assert.ErrorIs(t, err, store.ErrStaleState)

	got, err := s.GetBooking(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingPending, got.State)

	canceled, err := s.Transition(context.Background(), id, domain.BookingPending, domain.BookingCanceled, domain.ReasonHoldExpired, expires)
	require.NoError(t, err, "expired holds can still be released")
	assert.Equal(t, domain.BookingCanceled, canceled.State)
}

func TestPlaceHold_ReplayAfterRelease(t *testing.T) {
	s := New()
	now := base.Add(-24 * time.Hour)
	b := hold(base, 30, 0, now.Add(10*time.Minute))

	_, err := s.PlaceHold(context.Background(), b, now)
	require.NoError(t, err)

	_, err = s.PlaceHold(context.Background(), b, now.Add(11*time.Minute))
	assert.ErrorIs(t, err, store.ErrReleased)
}

func TestAttachPaymentRef(t *testing.T) {
	s := New()
	now := base.Add(-24 * time.Hour)
	res, err := s.PlaceHold(context.Background(), hold(base, 30, 0, now.Add(time.Hour)), now)
	require.NoError(t, err)
	id := res.Booking.ID

	b, err := s.AttachPaymentRef(context.Background(), id, "pi_1")
	require.NoError(t, err)
	assert.Equal(t, "pi_1", b.PaymentReference())

	_, err = s.AttachPaymentRef(context.Background(), id, "pi_1")
	assert.NoError(t, err)

	_, err = s.AttachPaymentRef(context.Background(), id, "pi_2")
	assert.ErrorIs(t, err, store.ErrStaleState)

	byRef, err := s.GetBookingByPaymentRef(context.Background(), "pi_1")
	require.NoError(t, err)
	assert.Equal(t, id, byRef.ID)
}

func TestListExpiredAndElapsed(t *testing.T) {
	s := New()
	now := base.Add(-24 * time.Hour)

	expiring, err := s.PlaceHold(context.Background(), hold(base, 30, 0, now.Add(time.Minute)), now)
	require.NoError(t, err)
	confirmed, err := s.PlaceHold(context.Background(), hold(base.Add(time.Hour), 30, 0, now.Add(time.Hour)), now)
	require.NoError(t, err)
	_, err = s.Transition(context.Background(), confirmed.Booking.ID, domain.BookingPending, domain.BookingConfirmed, domain.ReasonPaymentCaptured, now)
	require.NoError(t, err)

	expired, err := s.ListExpiredHolds(context.Background(), now.Add(2*time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, expiring.Booking.ID, expired[0].ID)

	elapsed, err := s.ListElapsed(context.Background(), base.Add(2*time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, elapsed, 1)
	assert.Equal(t, confirmed.Booking.ID, elapsed[0].ID)
}
