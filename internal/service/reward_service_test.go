package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/yourusername/arena-api/internal/domain/entity"
	apperrors "github.com/yourusername/arena-api/internal/pkg/errors"
	pgRepo "github.com/yourusername/arena-api/internal/repository/postgres"
	"github.com/yourusername/arena-api/pkg/reward"
)

// MockTransport реализует reward.Transport
type MockTransport struct {
	mock.Mock
}

func (m *MockTransport) Send(ctx context.Context, address string, amount int64) (*reward.Receipt, error) {
	args := m.Called(ctx, address, amount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*reward.Receipt), args.Error(1)
}

// newTestRewardService собирает сервис наград поверх тестовой БД.
// При nil-транспорте используется devnet, который всегда успешен.
func newTestRewardService(t *testing.T, db *gorm.DB, transport reward.Transport) *RewardService {
	t.Helper()
	if transport == nil {
		transport = reward.NewDevnetTransport()
	}
	return NewRewardService(
		pgRepo.NewRewardRepo(db),
		pgRepo.NewParticipantRepo(db),
		nil,
		transport,
		nil,
		100,
		5,
	)
}

func rewardFixture(t *testing.T, db *gorm.DB) (*entity.Session, *entity.Participant) {
	t.Helper()
	winner := createTestParticipant(t, db, "winner")
	session := &entity.Session{
		Title:                  "Финал",
		CreatorID:              winner.ID,
		Status:                 entity.SessionStatusEnded,
		DurationMinutes:        10,
		MinParticipantsToStart: 1,
		MaxParticipants:        5,
		Strategy:               entity.StrategyPoints,
		PointsPerTask:          10,
		WinnerID:               &winner.ID,
	}
	require.NoError(t, db.Create(session).Error)
	return session, winner
}

func TestRewardService_AwardToken_Success(t *testing.T) {
	// Arrange
	db := newTestDB(t)
	svc := newTestRewardService(t, db, nil)
	session, winner := rewardFixture(t, db)

	// Act
	record, err := svc.AwardToken(context.Background(), session, winner)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, entity.RewardStatusCompleted, record.Status)
	assert.Equal(t, int64(100), record.TokenAmount)
	require.NotNil(t, record.TxRef)
	assert.NotEmpty(t, *record.TxRef)
	require.NotNil(t, record.BlockRef)

	// Сумма наград участника обновлена
	var stored entity.Participant
	require.NoError(t, db.First(&stored, winner.ID).Error)
	assert.Equal(t, int64(100), stored.TotalRewardEarned)
}

func TestRewardService_AwardToken_DuplicateConflict(t *testing.T) {
	// Arrange
	db := newTestDB(t)
	svc := newTestRewardService(t, db, nil)
	session, winner := rewardFixture(t, db)

	_, err := svc.AwardToken(context.Background(), session, winner)
	require.NoError(t, err)

	// Act: вторая выплата за ту же сессию
	_, err = svc.AwardToken(context.Background(), session, winner)

	// Assert
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrConflict)

	var count int64
	require.NoError(t, db.Model(&entity.Reward{}).Where("session_id = ?", session.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count, "Запись о награде ровно одна")
}

func TestRewardService_AwardToken_TransportFailure(t *testing.T) {
	// Arrange: транспорт падает
	db := newTestDB(t)
	transport := new(MockTransport)
	transport.On("Send", mock.Anything, mock.Anything, int64(100)).
		Return(nil, &reward.TransportError{Code: "timeout", Message: "network timeout", Retryable: true})
	svc := newTestRewardService(t, db, transport)
	session, winner := rewardFixture(t, db)

	// Act
	record, err := svc.AwardToken(context.Background(), session, winner)

	// Assert: сбой зафиксирован, запись остаётся для повтора
	require.Error(t, err)
	var terr *reward.TransportError
	assert.True(t, errors.As(err, &terr), "Исходная ошибка транспорта должна сохраняться в цепочке")
	require.NotNil(t, record)
	assert.Equal(t, entity.RewardStatusFailed, record.Status)
	assert.Equal(t, 1, record.RetryCount)
	assert.Contains(t, record.ErrorMessage, "network timeout")

	// Сумма наград не менялась
	var stored entity.Participant
	require.NoError(t, db.First(&stored, winner.ID).Error)
	assert.Equal(t, int64(0), stored.TotalRewardEarned)
}

func TestRewardService_Retry_SucceedsAfterFailure(t *testing.T) {
	// Arrange: первая попытка падает, вторая проходит
	db := newTestDB(t)
	transport := new(MockTransport)
	transport.On("Send", mock.Anything, mock.Anything, int64(100)).
		Return(nil, &reward.TransportError{Code: "timeout", Message: "network timeout", Retryable: true}).Once()
	transport.On("Send", mock.Anything, mock.Anything, int64(100)).
		Return(&reward.Receipt{TxRef: "devnet-ok", BlockRef: "block-1"}, nil).Once()
	svc := newTestRewardService(t, db, transport)
	session, winner := rewardFixture(t, db)

	failed, err := svc.AwardToken(context.Background(), session, winner)
	require.Error(t, err)
	require.Equal(t, entity.RewardStatusFailed, failed.Status)

	// Act
	record, err := svc.Retry(context.Background(), failed.ID)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, entity.RewardStatusCompleted, record.Status)
	require.NotNil(t, record.TxRef)
	assert.Equal(t, "devnet-ok", *record.TxRef)
	transport.AssertExpectations(t)
}

func TestRewardService_Retry_BoundedAttempts(t *testing.T) {
	// Arrange: транспорт падает всегда
	db := newTestDB(t)
	transport := new(MockTransport)
	transport.On("Send", mock.Anything, mock.Anything, int64(100)).
		Return(nil, &reward.TransportError{Code: "down", Message: "chain unavailable", Retryable: true})
	svc := newTestRewardService(t, db, transport)
	session, winner := rewardFixture(t, db)

	record, err := svc.AwardToken(context.Background(), session, winner)
	require.Error(t, err)

	// Act: исчерпываем лимит попыток (первая уже потрачена в AwardToken)
	for i := 0; i < 4; i++ {
		record, err = svc.Retry(context.Background(), record.ID)
		require.Error(t, err)
		require.NotNil(t, record)
	}
	assert.Equal(t, 5, record.RetryCount)

	// Assert: шестая попытка отклоняется без вызова транспорта
	_, err = svc.Retry(context.Background(), record.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrConflict)
	transport.AssertNumberOfCalls(t, "Send", 5)
}

func TestRewardService_Retry_CompletedNotRetryable(t *testing.T) {
	// Arrange
	db := newTestDB(t)
	svc := newTestRewardService(t, db, nil)
	session, winner := rewardFixture(t, db)

	record, err := svc.AwardToken(context.Background(), session, winner)
	require.NoError(t, err)

	// Act
	_, err = svc.Retry(context.Background(), record.ID)

	// Assert: успешную выплату нельзя повторить
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrConflict)
}
