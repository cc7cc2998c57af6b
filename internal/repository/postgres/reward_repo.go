package postgres

import (
	"errors"

	"gorm.io/gorm"

	"github.com/yourusername/arena-api/internal/domain/entity"
	apperrors "github.com/yourusername/arena-api/internal/pkg/errors"
)

// RewardRepo реализует repository.RewardRepository
type RewardRepo struct {
	db *gorm.DB
}

// NewRewardRepo создает новый репозиторий наград
func NewRewardRepo(db *gorm.DB) *RewardRepo {
	return &RewardRepo{db: db}
}

// Create создает запись о награде. Уникальный индекс по session_id
// превращает попытку второй выплаты за сессию в ErrConflict.
func (r *RewardRepo) Create(reward *entity.Reward) error {
	err := r.db.Create(reward).Error
	if err != nil && errors.Is(err, gorm.ErrDuplicatedKey) {
		return apperrors.ErrConflict
	}
	return err
}

// GetByID возвращает награду по ID
func (r *RewardRepo) GetByID(id uint) (*entity.Reward, error) {
	var reward entity.Reward
	err := r.db.First(&reward, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &reward, nil
}

// GetBySessionID возвращает награду сессии, если она существует
func (r *RewardRepo) GetBySessionID(sessionID uint) (*entity.Reward, error) {
	var reward entity.Reward
	err := r.db.Where("session_id = ?", sessionID).First(&reward).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &reward, nil
}

// GetByParticipantID возвращает награды участника с пагинацией
func (r *RewardRepo) GetByParticipantID(participantID uint, limit, offset int) ([]entity.Reward, error) {
	var rewards []entity.Reward
	err := r.db.
		Where("participant_id = ?", participantID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&rewards).Error
	return rewards, err
}

// Update сохраняет запись о награде
func (r *RewardRepo) Update(reward *entity.Reward) error {
	return r.db.Save(reward).Error
}
