// Package memory is an in-process store used for local development and tests.
// Hold placement is serialized per provider; everything else takes the store lock briefly.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"memberbook/backend/internal/domain"
	"memberbook/backend/internal/store"
)

type Store struct {
	mu        sync.RWMutex
	templates map[string]domain.AvailabilityTemplate
	bookings  map[uuid.UUID]domain.Booking
	byRef     map[string]uuid.UUID
	history   map[uuid.UUID][]domain.BookingTransition
	nextID    int64

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

func New() *Store {
	return &Store{
		templates: make(map[string]domain.AvailabilityTemplate),
		bookings:  make(map[uuid.UUID]domain.Booking),
		byRef:     make(map[string]uuid.UUID),
		history:   make(map[uuid.UUID][]domain.BookingTransition),
		locks:     make(map[string]*sync.Mutex),
	}
}

func (s *Store) providerLock(providerID string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	l, ok := s.locks[providerID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[providerID] = l
	}
	return l
}

func (s *Store) GetTemplate(ctx context.Context, providerID string) (domain.AvailabilityTemplate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tpl, ok := s.templates[providerID]
	if !ok {
		return domain.AvailabilityTemplate{}, store.ErrNotFound
	}
	return tpl, nil
}

func (s *Store) PutTemplate(ctx context.Context, tpl domain.AvailabilityTemplate) (domain.AvailabilityTemplate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	if prev, ok := s.templates[tpl.ProviderID]; ok {
		tpl.CreatedAt = prev.CreatedAt
	} else {
		tpl.CreatedAt = now
	}
	tpl.UpdatedAt = now
	s.templates[tpl.ProviderID] = tpl
	return tpl, nil
}

func (s *Store) ArchiveTemplate(ctx context.Context, providerID string, at time.Time) (domain.AvailabilityTemplate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tpl, ok := s.templates[providerID]
	if !ok {
		return domain.AvailabilityTemplate{}, store.ErrNotFound
	}
	if tpl.ArchivedAt == nil {
		archived := at.UTC()
		tpl.ArchivedAt = &archived
		tpl.UpdatedAt = time.Now().UTC()
		s.templates[providerID] = tpl
	}
	return tpl, nil
}

func (s *Store) PlaceHold(ctx context.Context, b domain.Booking, now time.Time) (store.HoldResult, error) {
	if err := ctx.Err(); err != nil {
		return store.HoldResult{}, err
	}
	l := s.providerLock(b.ProviderID)
	l.Lock()
	defer l.Unlock()
	return store.PlaceHold(ctx, memTx{s: s}, b, now)
}

func (s *Store) Transition(ctx context.Context, id uuid.UUID, from, to domain.BookingState, reason string, at time.Time) (domain.Booking, error) {
	return store.ApplyTransition(ctx, memTx{s: s}, id, from, to, reason, at)
}

func (s *Store) AttachPaymentRef(ctx context.Context, id uuid.UUID, ref string) (domain.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok {
		return domain.Booking{}, store.ErrNotFound
	}
	if b.State != domain.BookingPending {
		return domain.Booking{}, store.ErrStaleState
	}
	if b.PaymentRef != nil {
		if *b.PaymentRef != ref {
			return domain.Booking{}, store.ErrStaleState
		}
		return b, nil
	}
	if other, taken := s.byRef[ref]; taken && other != id {
		return domain.Booking{}, store.ErrConflict
	}
	r := ref
	b.PaymentRef = &r
	b.UpdatedAt = time.Now().UTC()
	s.bookings[id] = b
	s.byRef[ref] = id
	return b, nil
}

func (s *Store) GetBooking(ctx context.Context, id uuid.UUID) (domain.Booking, error) {
	return memTx{s: s}.FindBooking(ctx, id)
}

func (s *Store) GetBookingByPaymentRef(ctx context.Context, ref string) (domain.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byRef[ref]
	if !ok {
		return domain.Booking{}, store.ErrNotFound
	}
	return s.bookings[id], nil
}

func (s *Store) ListBookings(ctx context.Context, providerID string, windowStart, windowEnd time.Time) ([]domain.Booking, error) {
	return s.filter(func(b domain.Booking) bool {
		return b.ProviderID == providerID && b.StartTime.Before(windowEnd) && b.EndTime.After(windowStart)
	}, 0), nil
}

func (s *Store) ListActiveBookings(ctx context.Context, providerID string, windowStart, windowEnd time.Time) ([]domain.Booking, error) {
	return s.filter(func(b domain.Booking) bool {
		return b.ProviderID == providerID &&
			(b.State == domain.BookingPending || b.State == domain.BookingConfirmed) &&
			b.StartTime.Before(windowEnd) && b.EndTime.After(windowStart)
	}, 0), nil
}

func (s *Store) ListExpiredHolds(ctx context.Context, now time.Time, limit int) ([]domain.Booking, error) {
	return s.filter(func(b domain.Booking) bool {
		return b.HoldExpired(now)
	}, limit), nil
}

func (s *Store) ListElapsed(ctx context.Context, now time.Time, limit int) ([]domain.Booking, error) {
	return s.filter(func(b domain.Booking) bool {
		return b.State == domain.BookingConfirmed && !b.EndTime.After(now)
	}, limit), nil
}

func (s *Store) ListTransitions(ctx context.Context, id uuid.UUID) ([]domain.BookingTransition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.bookings[id]; !ok {
		return nil, store.ErrNotFound
	}
	out := make([]domain.BookingTransition, len(s.history[id]))
	copy(out, s.history[id])
	return out, nil
}

func (s *Store) filter(keep func(domain.Booking) bool, limit int) []domain.Booking {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Booking, 0)
	for _, b := range s.bookings {
		if keep(b) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartTime.Equal(out[j].StartTime) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].StartTime.Before(out[j].StartTime)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// memTx implements store.BookingTx. Callers placing holds hold the provider lock.
type memTx struct {
	s *Store
}

func (t memTx) FindBooking(ctx context.Context, id uuid.UUID) (domain.Booking, error) {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	b, ok := t.s.bookings[id]
	if !ok {
		return domain.Booking{}, store.ErrNotFound
	}
	return b, nil
}

func (t memTx) ReleaseExpiredHolds(ctx context.Context, providerID string, span domain.TimeSlot, now time.Time) ([]domain.Booking, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	var out []domain.Booking
	for id, b := range t.s.bookings {
		if b.ProviderID != providerID || !b.HoldExpired(now) || !domain.Overlaps(b.BlockedRange(), span) {
			continue
		}
		b.State = domain.BookingCanceled
		b.UpdatedAt = now
		t.s.bookings[id] = b
		out = append(out, b)
	}
	return out, nil
}

func (t memTx) ListBlocking(ctx context.Context, providerID string, span domain.TimeSlot) ([]domain.Booking, error) {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	var out []domain.Booking
	for _, b := range t.s.bookings {
		if b.ProviderID != providerID {
			continue
		}
		if b.State != domain.BookingPending && b.State != domain.BookingConfirmed {
			continue
		}
		if domain.Overlaps(b.BlockedRange(), span) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (t memTx) InsertBooking(ctx context.Context, b domain.Booking) (domain.Booking, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if b.ID == uuid.Nil {
		id, err := uuid.NewV7()
		if err != nil {
			return domain.Booking{}, err
		}
		b.ID = id
	}
	if _, exists := t.s.bookings[b.ID]; exists {
		return domain.Booking{}, store.ErrIdempotencyConflict
	}
	now := time.Now().UTC()
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	b.UpdatedAt = now
	t.s.bookings[b.ID] = b
	if b.PaymentRef != nil {
		t.s.byRef[*b.PaymentRef] = b.ID
	}
	return b, nil
}

func (t memTx) UpdateState(ctx context.Context, id uuid.UUID, from, to domain.BookingState, at time.Time) (domain.Booking, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	b, ok := t.s.bookings[id]
	if !ok || b.State != from {
		return domain.Booking{}, store.ErrStaleState
	}
	if domain.ConfirmsHold(from, to) && !at.Before(b.ExpiresAt) {
		return domain.Booking{}, store.ErrStaleState
	}
	b.State = to
	b.UpdatedAt = time.Now().UTC()
	t.s.bookings[id] = b
	return b, nil
}

func (t memTx) RecordTransition(ctx context.Context, tr domain.BookingTransition) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	t.s.nextID++
	tr.ID = t.s.nextID
	t.s.history[tr.BookingID] = append(t.s.history[tr.BookingID], tr)
	return nil
}
