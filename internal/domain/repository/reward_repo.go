package repository

import "github.com/yourusername/arena-api/internal/domain/entity"

// RewardRepository определяет методы для работы с наградами
type RewardRepository interface {
	Create(reward *entity.Reward) error
	GetByID(id uint) (*entity.Reward, error)
	GetBySessionID(sessionID uint) (*entity.Reward, error)
	GetByParticipantID(participantID uint, limit, offset int) ([]entity.Reward, error)
	Update(reward *entity.Reward) error
}
