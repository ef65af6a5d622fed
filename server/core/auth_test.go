package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenIssuer_RoundTrip(t *testing.T) {
	ti, err := NewTokenIssuer("secret", time.Hour)
	require.NoError(t, err)

	tok, err := ti.Issue(42)
	require.NoError(t, err)

	id, err := ti.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, uint32(42), id)
}

func TestTokenIssuer_RejectsForeignKey(t *testing.T) {
	a, err := NewTokenIssuer("", time.Hour)
	require.NoError(t, err)
	b, err := NewTokenIssuer("", time.Hour)
	require.NoError(t, err)

	tok, err := a.Issue(1)
	require.NoError(t, err)

	_, err = b.Verify(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenIssuer_RejectsExpired(t *testing.T) {
	ti, err := NewTokenIssuer("secret", time.Minute)
	require.NoError(t, err)

	start := time.Now()
	ti.now = func() time.Time { return start }
	tok, err := ti.Issue(7)
	require.NoError(t, err)

	ti.now = func() time.Time { return start.Add(2 * time.Minute) }
	_, err = ti.Verify(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenIssuer_RejectsGarbage(t *testing.T) {
	ti, err := NewTokenIssuer("secret", time.Hour)
	require.NoError(t, err)

	_, err = ti.Verify("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
