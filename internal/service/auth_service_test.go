package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/yourusername/arena-api/internal/pkg/errors"
	pgRepo "github.com/yourusername/arena-api/internal/repository/postgres"
	"github.com/yourusername/arena-api/pkg/auth"
)

func newTestAuthService(t *testing.T) (*AuthService, *auth.JWTService) {
	t.Helper()
	db := newTestDB(t)
	jwtService, err := auth.NewJWTService("test-secret-key", 1, 60)
	require.NoError(t, err)
	return NewAuthService(pgRepo.NewParticipantRepo(db), jwtService), jwtService
}

func TestAuthService_Register_Success(t *testing.T) {
	// Arrange
	svc, jwtService := newTestAuthService(t)

	// Act
	participant, token, err := svc.Register("alice", "0xabc123", "secret123")

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "alice", participant.Handle)
	assert.NotEqual(t, "secret123", participant.Password, "Пароль должен храниться хешированным")

	claims, err := jwtService.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, participant.ID, claims.ParticipantID)
	assert.Equal(t, "alice", claims.Handle)
}

func TestAuthService_Register_Validation(t *testing.T) {
	svc, _ := newTestAuthService(t)

	cases := []struct {
		name            string
		handle, wallet  string
		password        string
	}{
		{"короткий handle", "ab", "0xabc", "secret123"},
		{"пустой кошелек", "alice", "", "secret123"},
		{"короткий пароль", "alice", "0xabc", "12345"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := svc.Register(tc.handle, tc.wallet, tc.password)
			require.Error(t, err)
			assert.ErrorIs(t, err, apperrors.ErrValidation)
		})
	}
}

func TestAuthService_Register_DuplicateHandle(t *testing.T) {
	// Arrange
	svc, _ := newTestAuthService(t)
	_, _, err := svc.Register("alice", "0xabc", "secret123")
	require.NoError(t, err)

	// Act: тот же handle, другой кошелек
	_, _, err = svc.Register("alice", "0xdef", "secret123")

	// Assert
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrConflict)
}

func TestAuthService_Login(t *testing.T) {
	// Arrange
	svc, _ := newTestAuthService(t)
	registered, _, err := svc.Register("alice", "0xabc", "secret123")
	require.NoError(t, err)

	// Act / Assert: верный пароль
	participant, token, err := svc.Login("alice", "secret123")
	require.NoError(t, err)
	assert.Equal(t, registered.ID, participant.ID)
	assert.NotEmpty(t, token)

	// Неверный пароль и неизвестный handle — одинаково Unauthorized,
	// чтобы не раскрывать существование аккаунта
	_, _, err = svc.Login("alice", "wrong-pass")
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)

	_, _, err = svc.Login("nobody", "secret123")
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
}

func TestAuthService_IssueWSTicket(t *testing.T) {
	// Arrange
	svc, jwtService := newTestAuthService(t)
	participant, _, err := svc.Register("alice", "0xabc", "secret123")
	require.NoError(t, err)

	// Act
	ticket, err := svc.IssueWSTicket(participant.ID)

	// Assert: тикет принимает только ParseWSTicket, не ParseToken
	require.NoError(t, err)
	claims, err := jwtService.ParseWSTicket(ticket)
	require.NoError(t, err)
	assert.Equal(t, participant.ID, claims.ParticipantID)

	_, err = jwtService.ParseToken(ticket)
	assert.Error(t, err, "WS тикет не должен проходить как access токен")
}
