package payments

import (
	"context"
	"errors"
	"sync"

	"memberbook/backend/internal/domain"
)

var (
	// ErrDeclined means the processor refused the payment; retrying with the same method will not help.
	ErrDeclined = errors.New("payment declined")
	// ErrIgnoredEvent is returned for webhook events that carry no booking outcome.
	ErrIgnoredEvent = errors.New("payment event ignored")
)

// Intent is a processor-side payment reserved for one booking.
type Intent struct {
	Ref          string
	ClientSecret string
}

type EventKind string

const (
	// EventAuthorized means funds are held and the intent can be captured.
	EventAuthorized EventKind = "authorized"
	EventSucceeded  EventKind = "succeeded"
	EventFailed     EventKind = "failed"
	EventCanceled   EventKind = "canceled"
)

// Event is an asynchronous payment outcome delivered by the processor.
type Event struct {
	ID   string
	Kind EventKind
	Ref  string
}

// Processor creates, captures and voids payments. Intents are authorized only;
// funds move on Capture.
type Processor interface {
	// CreateIntent must return the same intent when called again for the same booking.
	CreateIntent(ctx context.Context, b domain.Booking) (Intent, error)
	Capture(ctx context.Context, ref string) error
	Void(ctx context.Context, ref string) error
	// Refund returns captured funds in full.
	Refund(ctx context.Context, ref string) error
}

// Sandbox is an in-process processor for local runs. Every capture succeeds
// unless the reference was registered with Decline.
type Sandbox struct {
	mu       sync.Mutex
	declined map[string]bool
	voided   map[string]bool
	refunded map[string]bool
}

func NewSandbox() *Sandbox {
	return &Sandbox{declined: map[string]bool{}, voided: map[string]bool{}, refunded: map[string]bool{}}
}

func SandboxRef(b domain.Booking) string {
	return "sandbox_" + b.ID.String()
}

func (s *Sandbox) CreateIntent(ctx context.Context, b domain.Booking) (Intent, error) {
	ref := SandboxRef(b)
	return Intent{Ref: ref, ClientSecret: ref + "_secret"}, nil
}

func (s *Sandbox) Capture(ctx context.Context, ref string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.declined[ref] || s.voided[ref] {
		return ErrDeclined
	}
	return nil
}

func (s *Sandbox) Void(ctx context.Context, ref string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.voided[ref] = true
	return nil
}

func (s *Sandbox) Decline(ref string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.declined[ref] = true
}

func (s *Sandbox) Voided(ref string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.voided[ref]
}

func (s *Sandbox) Refund(ctx context.Context, ref string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refunded[ref] = true
	return nil
}

func (s *Sandbox) Refunded(ref string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refunded[ref]
}
