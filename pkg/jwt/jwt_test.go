package jwt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndValidate(t *testing.T) {
	m, err := NewManager("s3cret", time.Hour, "netflis")
	require.NoError(t, err)

	tok, exp, err := m.Issue("room-1", RoleHost)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), exp, 5*time.Second)

	claims, err := m.Validate(tok, "room-1")
	require.NoError(t, err)
	assert.Equal(t, RoleHost, claims.Role)
	assert.Equal(t, "room-1", claims.RoomID)
}

func TestValidateRejects(t *testing.T) {
	m, err := NewManager("s3cret", time.Hour, "netflis")
	require.NoError(t, err)
	tok, _, err := m.Issue("room-1", RoleGuest)
	require.NoError(t, err)

	_, err = m.Validate(tok, "room-2")
	assert.ErrorIs(t, err, ErrWrongRoom)

	other, err := NewManager("different", time.Hour, "netflis")
	require.NoError(t, err)
	_, err = other.Validate(tok, "room-1")
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = m.Validate(tok+"x", "room-1")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateExpired(t *testing.T) {
	m, err := NewManager("s3cret", time.Minute, "netflis")
	require.NoError(t, err)

	base := time.Now()
	m.now = func() time.Time { return base }
	tok, _, err := m.Issue("room-1", RoleGuest)
	require.NoError(t, err)

	m.now = func() time.Time { return base.Add(2 * time.Minute) }
	_, err = m.Validate(tok, "room-1")
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestIssueRejectsBadInput(t *testing.T) {
	m, err := NewManager("s3cret", time.Minute, "netflis")
	require.NoError(t, err)

	_, _, err = m.Issue("", RoleHost)
	assert.ErrorIs(t, err, ErrInvalidToken)
	_, _, err = m.Issue("room", Role("admin"))
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = NewManager("", time.Minute, "x")
	assert.ErrorIs(t, err, ErrEmptySecret)
}
