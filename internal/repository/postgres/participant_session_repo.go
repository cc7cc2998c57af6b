package postgres

import (
	"errors"

	"gorm.io/gorm"

	"github.com/yourusername/arena-api/internal/domain/entity"
	apperrors "github.com/yourusername/arena-api/internal/pkg/errors"
)

// ParticipantSessionRepo реализует repository.ParticipantSessionRepository
type ParticipantSessionRepo struct {
	db *gorm.DB
}

// NewParticipantSessionRepo создает новый репозиторий участия в сессиях
func NewParticipantSessionRepo(db *gorm.DB) *ParticipantSessionRepo {
	return &ParticipantSessionRepo{db: db}
}

// Create создает запись об участии
func (r *ParticipantSessionRepo) Create(ps *entity.ParticipantSession) error {
	err := r.db.Create(ps).Error
	if err != nil && errors.Is(err, gorm.ErrDuplicatedKey) {
		return apperrors.ErrConflict
	}
	return err
}

// CreateInTx создает запись об участии в рамках внешней транзакции
func (r *ParticipantSessionRepo) CreateInTx(tx *gorm.DB, ps *entity.ParticipantSession) error {
	err := tx.Create(ps).Error
	if err != nil && errors.Is(err, gorm.ErrDuplicatedKey) {
		return apperrors.ErrConflict
	}
	return err
}

// Update сохраняет запись об участии
func (r *ParticipantSessionRepo) Update(ps *entity.ParticipantSession) error {
	return r.db.Save(ps).Error
}

// UpdateInTx сохраняет запись об участии в рамках внешней транзакции
func (r *ParticipantSessionRepo) UpdateInTx(tx *gorm.DB, ps *entity.ParticipantSession) error {
	return tx.Save(ps).Error
}

// GetBySessionAndParticipant возвращает запись пары (сессия, участник)
func (r *ParticipantSessionRepo) GetBySessionAndParticipant(sessionID, participantID uint) (*entity.ParticipantSession, error) {
	var ps entity.ParticipantSession
	err := r.db.
		Where("session_id = ? AND participant_id = ?", sessionID, participantID).
		First(&ps).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &ps, nil
}

// GetActiveBySession возвращает активных участников сессии
func (r *ParticipantSessionRepo) GetActiveBySession(sessionID uint) ([]entity.ParticipantSession, error) {
	var list []entity.ParticipantSession
	err := r.db.
		Where("session_id = ? AND is_active = ?", sessionID, true).
		Order("joined_at ASC, id ASC").
		Find(&list).Error
	return list, err
}

// GetBySession возвращает все записи сессии, включая вышедших участников
func (r *ParticipantSessionRepo) GetBySession(sessionID uint) ([]entity.ParticipantSession, error) {
	var list []entity.ParticipantSession
	err := r.db.
		Where("session_id = ?", sessionID).
		Order("joined_at ASC, id ASC").
		Find(&list).Error
	return list, err
}

// GetFinalStandings возвращает итоговую таблицу завершённой сессии.
// Записи без final_rank (вышедшие до завершения) не включаются.
func (r *ParticipantSessionRepo) GetFinalStandings(sessionID uint, limit int) ([]entity.ParticipantSession, error) {
	var list []entity.ParticipantSession
	query := r.db.
		Where("session_id = ? AND final_rank > 0", sessionID).
		Order("final_rank ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&list).Error
	return list, err
}

// SaveFinalRanks фиксирует итоговые места участников в рамках транзакции завершения
func (r *ParticipantSessionRepo) SaveFinalRanks(tx *gorm.DB, sessionID uint, ranks map[uint]int) error {
	for participantID, rank := range ranks {
		err := tx.Model(&entity.ParticipantSession{}).
			Where("session_id = ? AND participant_id = ?", sessionID, participantID).
			UpdateColumn("final_rank", rank).
			Error
		if err != nil {
			return err
		}
	}
	return nil
}
