package repository

import (
	"github.com/yourusername/arena-api/internal/domain/entity"
	"gorm.io/gorm"
)

// ParticipantRepository определяет методы для работы с участниками
type ParticipantRepository interface {
	Create(participant *entity.Participant) error
	GetByID(id uint) (*entity.Participant, error)
	GetByHandle(handle string) (*entity.Participant, error)
	GetByWalletAddress(address string) (*entity.Participant, error)
	Update(participant *entity.Participant) error
	IncrementSessionsJoined(id uint) error
	// RecordWin увеличивает счётчик побед в рамках транзакции завершения сессии
	RecordWin(tx *gorm.DB, id uint) error
	AddRewardEarned(id uint, amount int64) error
	GetLeaderboard(limit, offset int) ([]entity.Participant, int64, error)
}
