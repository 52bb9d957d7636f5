package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthenticate_TrustedHeaderWhenDisabled(t *testing.T) {
	v := NewVerifier("")

	id, err := v.Authenticate("", "  member-1 ")
	require.NoError(t, err)
	assert.Equal(t, "member-1", id)

	_, err = v.Authenticate("Bearer whatever", "")
	assert.ErrorIs(t, err, ErrMissingCredentials)
}

func TestAuthenticate_BearerToken(t *testing.T) {
	v := NewVerifier("s3cret")

	token, err := v.Issue("member-1", time.Hour)
	require.NoError(t, err)

	id, err := v.Authenticate("Bearer "+token, "someone-else")
	require.NoError(t, err)
	assert.Equal(t, "member-1", id, "header id is ignored when tokens are verified")

	id, err = v.Authenticate("bearer "+token, "")
	require.NoError(t, err)
	assert.Equal(t, "member-1", id)

	_, err = v.Authenticate("", "member-1")
	assert.ErrorIs(t, err, ErrMissingCredentials)
}

func TestVerify_Rejects(t *testing.T) {
	v := NewVerifier("s3cret")
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	v.now = func() time.Time { return base }

	expired, err := v.Issue("member-1", time.Minute)
	require.NoError(t, err)
	v.now = func() time.Time { return base.Add(2 * time.Minute) }
	_, err = v.Verify(expired)
	assert.ErrorIs(t, err, ErrExpiredToken)

	other := NewVerifier("different")
	foreign, err := other.Issue("member-1", time.Hour)
	require.NoError(t, err)
	_, err = v.Verify(foreign)
	assert.ErrorIs(t, err, ErrInvalidToken)

	noSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{RegisteredClaims: jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(base.Add(time.Hour)),
	}}).SignedString([]byte("s3cret"))
	require.NoError(t, err)
	_, err = v.Verify(noSubject)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = v.Verify("not-a-jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestPrincipalContext(t *testing.T) {
	_, ok := PrincipalFrom(context.Background())
	assert.False(t, ok)

	id, ok := PrincipalFrom(WithPrincipal(context.Background(), "member-1"))
	assert.True(t, ok)
	assert.Equal(t, "member-1", id)
}
