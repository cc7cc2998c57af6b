package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/arena-api/internal/domain/entity"
	pgRepo "github.com/yourusername/arena-api/internal/repository/postgres"
)

func TestReconciler_Tick_EndsExpiredSessions(t *testing.T) {
	// Arrange: сессия стартовала и её дедлайн уже в прошлом
	db := newTestDB(t)
	rewardSvc := newTestRewardService(t, db, nil)
	svc := newTestSessionService(t, db, rewardSvc)
	creator := createTestParticipant(t, db, "creator")
	p1 := createTestParticipant(t, db, "p1")

	session, err := svc.Create(creator.ID, CreateSessionInput{
		Title:                  "Просроченная",
		DurationMinutes:        10,
		MinParticipantsToStart: 1,
		MaxParticipants:        5,
		AutoStart:              true,
		AutoEnd:                true,
	})
	require.NoError(t, err)
	_, _, err = svc.Join(session.ID, p1.ID)
	require.NoError(t, err)

	expired := time.Now().Add(-time.Minute)
	require.NoError(t, db.Model(&entity.Session{}).
		Where("id = ?", session.ID).
		Update("scheduled_end_at", expired).Error)

	reconciler := NewReconciler(pgRepo.NewSessionRepo(db), svc, time.Minute)

	// Act
	reconciler.Tick(context.Background())

	// Assert: сессия завершена, победитель и награда зафиксированы
	stored, _, err := svc.Get(session.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.SessionStatusEnded, stored.Status)
	require.NotNil(t, stored.WinnerID)
	assert.Equal(t, p1.ID, *stored.WinnerID)

	var count int64
	require.NoError(t, db.Model(&entity.Reward{}).Where("session_id = ?", session.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestReconciler_Tick_SkipsFutureDeadlines(t *testing.T) {
	// Arrange: дедлайн еще не наступил
	db := newTestDB(t)
	svc := newTestSessionService(t, db, nil)
	creator := createTestParticipant(t, db, "creator")
	p1 := createTestParticipant(t, db, "p1")

	session, err := svc.Create(creator.ID, CreateSessionInput{
		Title:                  "Идущая",
		DurationMinutes:        30,
		MinParticipantsToStart: 1,
		MaxParticipants:        5,
		AutoStart:              true,
		AutoEnd:                true,
	})
	require.NoError(t, err)
	_, _, err = svc.Join(session.ID, p1.ID)
	require.NoError(t, err)

	reconciler := NewReconciler(pgRepo.NewSessionRepo(db), svc, time.Minute)

	// Act
	reconciler.Tick(context.Background())

	// Assert
	stored, _, err := svc.Get(session.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.SessionStatusLive, stored.Status)
}

func TestReconciler_Tick_ManualEndWinsRace(t *testing.T) {
	// Arrange: сессия просрочена, но её успели завершить вручную
	db := newTestDB(t)
	rewardSvc := newTestRewardService(t, db, nil)
	svc := newTestSessionService(t, db, rewardSvc)
	creator := createTestParticipant(t, db, "creator")
	p1 := createTestParticipant(t, db, "p1")

	session, err := svc.Create(creator.ID, CreateSessionInput{
		Title:                  "Гонка завершений",
		DurationMinutes:        10,
		MinParticipantsToStart: 1,
		MaxParticipants:        5,
		AutoStart:              true,
		AutoEnd:                true,
	})
	require.NoError(t, err)
	_, _, err = svc.Join(session.ID, p1.ID)
	require.NoError(t, err)

	_, err = svc.End(context.Background(), session.ID, creator.ID, false)
	require.NoError(t, err)

	reconciler := NewReconciler(pgRepo.NewSessionRepo(db), svc, time.Minute)

	// Act: проход не должен ни падать, ни дублировать награду
	reconciler.Tick(context.Background())

	// Assert
	var count int64
	require.NoError(t, db.Model(&entity.Reward{}).Where("session_id = ?", session.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestReconciler_Run_StopsOnContextCancel(t *testing.T) {
	// Arrange
	db := newTestDB(t)
	svc := newTestSessionService(t, db, nil)
	reconciler := NewReconciler(pgRepo.NewSessionRepo(db), svc, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	// Act
	go func() {
		reconciler.Run(ctx)
		close(done)
	}()
	cancel()

	// Assert
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Реконсайлер не остановился после отмены контекста")
	}
}
