package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/yourusername/arena-api/internal/pkg/errors"
)

func TestJWTService_TokenRoundTrip(t *testing.T) {
	// Arrange
	svc, err := NewJWTService("test-secret", 1, 60)
	require.NoError(t, err)

	// Act
	token, err := svc.GenerateToken(42, "alice")
	require.NoError(t, err)

	claims, err := svc.ParseToken(token)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, uint(42), claims.ParticipantID)
	assert.Equal(t, "alice", claims.Handle)
}

func TestJWTService_EmptySecretRejected(t *testing.T) {
	_, err := NewJWTService("", 1, 60)
	assert.Error(t, err)
}

func TestJWTService_WrongSecretRejected(t *testing.T) {
	// Arrange
	svc, err := NewJWTService("secret-a", 1, 60)
	require.NoError(t, err)
	other, err := NewJWTService("secret-b", 1, 60)
	require.NoError(t, err)

	token, err := svc.GenerateToken(42, "alice")
	require.NoError(t, err)

	// Act
	_, err = other.ParseToken(token)

	// Assert
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
}

func TestJWTService_UsageSeparation(t *testing.T) {
	// Arrange
	svc, err := NewJWTService("test-secret", 1, 60)
	require.NoError(t, err)

	access, err := svc.GenerateToken(42, "alice")
	require.NoError(t, err)
	ticket, err := svc.GenerateWSTicket(42, "alice")
	require.NoError(t, err)

	// Act / Assert: access токен не подходит для WS и наоборот
	_, err = svc.ParseWSTicket(access)
	assert.Error(t, err)

	_, err = svc.ParseToken(ticket)
	assert.Error(t, err)

	claims, err := svc.ParseWSTicket(ticket)
	require.NoError(t, err)
	assert.Equal(t, uint(42), claims.ParticipantID)
}

func TestJWTService_ExpiredToken(t *testing.T) {
	// Arrange: тикет живет одну секунду
	svc, err := NewJWTService("test-secret", 1, 1)
	require.NoError(t, err)

	ticket, err := svc.GenerateWSTicket(42, "alice")
	require.NoError(t, err)

	// Act
	time.Sleep(1100 * time.Millisecond)
	_, err = svc.ParseWSTicket(ticket)

	// Assert
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrExpiredToken)
}
