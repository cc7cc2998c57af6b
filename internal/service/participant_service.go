package service

import (
	"github.com/yourusername/arena-api/internal/domain/entity"
	"github.com/yourusername/arena-api/internal/domain/repository"
)

// ParticipantService отдаёт профили и глобальную статистику участников
type ParticipantService struct {
	participantRepo repository.ParticipantRepository
	rewardRepo      repository.RewardRepository
}

// NewParticipantService создает новый сервис участников
func NewParticipantService(participantRepo repository.ParticipantRepository, rewardRepo repository.RewardRepository) *ParticipantService {
	return &ParticipantService{
		participantRepo: participantRepo,
		rewardRepo:      rewardRepo,
	}
}

// GetByID возвращает участника по ID
func (s *ParticipantService) GetByID(id uint) (*entity.Participant, error) {
	return s.participantRepo.GetByID(id)
}

// GetRewards возвращает историю наград участника
func (s *ParticipantService) GetRewards(participantID uint, page, pageSize int) ([]entity.Reward, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return s.rewardRepo.GetByParticipantID(participantID, pageSize, (page-1)*pageSize)
}

// GetLeaderboard возвращает глобальный лидерборд по победам и наградам
func (s *ParticipantService) GetLeaderboard(page, pageSize int) ([]entity.Participant, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return s.participantRepo.GetLeaderboard(pageSize, (page-1)*pageSize)
}
