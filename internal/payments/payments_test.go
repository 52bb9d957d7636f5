package payments

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"memberbook/backend/internal/domain"
)

func TestSandboxCreateIntentIsStablePerBooking(t *testing.T) {
	s := NewSandbox()
	b := domain.Booking{ID: uuid.New()}

	first, err := s.CreateIntent(context.Background(), b)
	require.NoError(t, err)
	second, err := s.CreateIntent(context.Background(), b)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, SandboxRef(b), first.Ref)
	assert.NotEmpty(t, first.ClientSecret)
}

func TestSandboxCapture(t *testing.T) {
	ctx := context.Background()
	s := NewSandbox()
	ok := SandboxRef(domain.Booking{ID: uuid.New()})
	declined := SandboxRef(domain.Booking{ID: uuid.New()})
	s.Decline(declined)

	assert.NoError(t, s.Capture(ctx, ok))
	assert.ErrorIs(t, s.Capture(ctx, declined), ErrDeclined)
}

func TestSandboxVoidBlocksCapture(t *testing.T) {
	ctx := context.Background()
	s := NewSandbox()
	ref := SandboxRef(domain.Booking{ID: uuid.New()})

	assert.False(t, s.Voided(ref))
	require.NoError(t, s.Void(ctx, ref))
	assert.True(t, s.Voided(ref))
	assert.ErrorIs(t, s.Capture(ctx, ref), ErrDeclined)
}

func TestSandboxRefund(t *testing.T) {
	s := NewSandbox()
	ref := SandboxRef(domain.Booking{ID: uuid.New()})

	assert.False(t, s.Refunded(ref))
	require.NoError(t, s.Refund(context.Background(), ref))
	assert.True(t, s.Refunded(ref))
	assert.False(t, s.Voided(ref))
}
