package repository

import (
	"github.com/yourusername/arena-api/internal/domain/entity"
	"gorm.io/gorm"
)

// ParticipantSessionRepository определяет методы для работы с участием в сессиях
type ParticipantSessionRepository interface {
	Create(ps *entity.ParticipantSession) error
	CreateInTx(tx *gorm.DB, ps *entity.ParticipantSession) error
	Update(ps *entity.ParticipantSession) error
	UpdateInTx(tx *gorm.DB, ps *entity.ParticipantSession) error
	GetBySessionAndParticipant(sessionID, participantID uint) (*entity.ParticipantSession, error)
	// GetActiveBySession возвращает активных участников сессии
	GetActiveBySession(sessionID uint) ([]entity.ParticipantSession, error)
	GetBySession(sessionID uint) ([]entity.ParticipantSession, error)
	// GetFinalStandings возвращает записи завершённой сессии в порядке final_rank
	GetFinalStandings(sessionID uint, limit int) ([]entity.ParticipantSession, error)
	// SaveFinalRanks фиксирует итоговые места в рамках транзакции завершения
	SaveFinalRanks(tx *gorm.DB, sessionID uint, ranks map[uint]int) error
}
