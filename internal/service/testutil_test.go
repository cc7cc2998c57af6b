package service

import (
	"math/rand"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/yourusername/arena-api/internal/config"
	"github.com/yourusername/arena-api/internal/domain/entity"
	pgRepo "github.com/yourusername/arena-api/internal/repository/postgres"
	"github.com/yourusername/arena-api/internal/service/scoring"
)

// newTestDB поднимает изолированную in-memory БД для одного теста.
// TranslateError включен, как и в продовом подключении: нарушения
// уникальных индексов должны приходить как gorm.ErrDuplicatedKey.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err, "Не удалось открыть тестовую БД")

	// In-memory база живет в рамках одного соединения
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&entity.Participant{},
		&entity.Session{},
		&entity.ParticipantSession{},
		&entity.Reward{},
	), "Не удалось создать схему")

	return db
}

func defaultTestSessionConfig() config.SessionConfig {
	return config.SessionConfig{
		MinDurationMinutes:   1,
		MaxDurationMinutes:   1440,
		MaxParticipantsLimit: 1000,
		LeaderboardLimit:     10,
		ReconcileIntervalSec: 60,
	}
}

// newTestSessionService собирает сервис сессий поверх реальных
// репозиториев и тестовой БД, без Redis и без WebSocket
func newTestSessionService(t *testing.T, db *gorm.DB, rewardService *RewardService) *SessionService {
	t.Helper()
	return NewSessionService(
		pgRepo.NewSessionRepo(db),
		pgRepo.NewParticipantSessionRepo(db),
		pgRepo.NewParticipantRepo(db),
		nil,
		rewardService,
		nil,
		scoring.NewEngineWithSource(rand.NewSource(42)),
		defaultTestSessionConfig(),
		db,
	)
}

func createTestParticipant(t *testing.T, db *gorm.DB, handle string) *entity.Participant {
	t.Helper()
	p := &entity.Participant{
		Handle:        handle,
		WalletAddress: "wallet-" + handle,
		Password:      "secret123",
	}
	require.NoError(t, db.Create(p).Error, "Не удалось создать участника %s", handle)
	return p
}
