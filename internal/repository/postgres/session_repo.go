package postgres

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/yourusername/arena-api/internal/domain/entity"
	"github.com/yourusername/arena-api/internal/domain/repository"
	apperrors "github.com/yourusername/arena-api/internal/pkg/errors"
)

// SessionRepo реализует repository.SessionRepository
type SessionRepo struct {
	db *gorm.DB
}

// NewSessionRepo создает новый репозиторий сессий
func NewSessionRepo(db *gorm.DB) *SessionRepo {
	return &SessionRepo{db: db}
}

// Create создает новую сессию
func (r *SessionRepo) Create(session *entity.Session) error {
	return r.db.Create(session).Error
}

// GetByID возвращает сессию по ID
func (r *SessionRepo) GetByID(id uint) (*entity.Session, error) {
	var session entity.Session
	err := r.db.First(&session, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &session, nil
}

// List возвращает сессии с фильтром по статусу и пагинацией
func (r *SessionRepo) List(filter repository.SessionFilter) ([]entity.Session, int64, error) {
	var sessions []entity.Session
	var total int64

	query := r.db.Model(&entity.Session{})
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.Order("created_at DESC, id DESC").
		Limit(filter.Limit).
		Offset(filter.Offset).
		Find(&sessions).Error
	if err != nil {
		return nil, 0, err
	}

	return sessions, total, nil
}

// Update сохраняет сессию
func (r *SessionRepo) Update(session *entity.Session) error {
	return r.db.Save(session).Error
}

// UpdateInTx сохраняет сессию в рамках внешней транзакции
func (r *SessionRepo) UpdateInTx(tx *gorm.DB, session *entity.Session) error {
	return tx.Save(session).Error
}

// FindDue возвращает идущие сессии с истёкшим сроком.
// Используется реконсайлером для автозавершения.
func (r *SessionRepo) FindDue(now time.Time) ([]entity.Session, error) {
	var sessions []entity.Session
	err := r.db.
		Where("status = ? AND scheduled_end_at IS NOT NULL AND scheduled_end_at <= ?",
			entity.SessionStatusLive, now).
		Order("scheduled_end_at ASC").
		Find(&sessions).Error
	return sessions, err
}
