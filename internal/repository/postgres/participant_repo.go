package postgres

import (
	"errors"

	"gorm.io/gorm"

	"github.com/yourusername/arena-api/internal/domain/entity"
	apperrors "github.com/yourusername/arena-api/internal/pkg/errors"
)

// ParticipantRepo реализует repository.ParticipantRepository
type ParticipantRepo struct {
	db *gorm.DB
}

// NewParticipantRepo создает новый репозиторий участников
func NewParticipantRepo(db *gorm.DB) *ParticipantRepo {
	return &ParticipantRepo{db: db}
}

// Create создает нового участника
func (r *ParticipantRepo) Create(participant *entity.Participant) error {
	err := r.db.Create(participant).Error
	if err != nil && errors.Is(err, gorm.ErrDuplicatedKey) {
		return apperrors.ErrConflict
	}
	return err
}

// GetByID возвращает участника по ID
func (r *ParticipantRepo) GetByID(id uint) (*entity.Participant, error) {
	var participant entity.Participant
	err := r.db.First(&participant, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &participant, nil
}

// GetByHandle возвращает участника по уникальному хендлу
func (r *ParticipantRepo) GetByHandle(handle string) (*entity.Participant, error) {
	var participant entity.Participant
	err := r.db.Where("handle = ?", handle).First(&participant).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &participant, nil
}

// GetByWalletAddress возвращает участника по адресу кошелька
func (r *ParticipantRepo) GetByWalletAddress(address string) (*entity.Participant, error) {
	var participant entity.Participant
	err := r.db.Where("wallet_address = ?", address).First(&participant).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &participant, nil
}

// Update обновляет информацию об участнике
func (r *ParticipantRepo) Update(participant *entity.Participant) error {
	return r.db.Save(participant).Error
}

// IncrementSessionsJoined увеличивает счетчик сыгранных сессий
func (r *ParticipantRepo) IncrementSessionsJoined(id uint) error {
	return r.db.Model(&entity.Participant{}).
		Where("id = ?", id).
		UpdateColumn("sessions_joined", gorm.Expr("sessions_joined + ?", 1)).
		Error
}

// RecordWin увеличивает счетчик побед в рамках внешней транзакции
func (r *ParticipantRepo) RecordWin(tx *gorm.DB, id uint) error {
	return tx.Model(&entity.Participant{}).
		Where("id = ?", id).
		UpdateColumn("sessions_won", gorm.Expr("sessions_won + ?", 1)).
		Error
}

// AddRewardEarned прибавляет сумму выплаченной награды к накопленному итогу
func (r *ParticipantRepo) AddRewardEarned(id uint, amount int64) error {
	return r.db.Model(&entity.Participant{}).
		Where("id = ?", id).
		UpdateColumn("total_reward_earned", gorm.Expr("total_reward_earned + ?", amount)).
		Error
}

// GetLeaderboard возвращает участников для глобального лидерборда,
// отсортированных по числу побед и сумме заработанных наград.
func (r *ParticipantRepo) GetLeaderboard(limit, offset int) ([]entity.Participant, int64, error) {
	var participants []entity.Participant
	var total int64

	err := r.db.Model(&entity.Participant{}).Count(&total).Error
	if err != nil {
		return nil, 0, err
	}

	// ID в сортировке нужен для стабильного порядка страниц
	err = r.db.Order("sessions_won DESC, total_reward_earned DESC, id ASC").
		Limit(limit).
		Offset(offset).
		Find(&participants).Error
	if err != nil {
		return nil, 0, err
	}

	return participants, total, nil
}
