package repository

import (
	"time"

	"github.com/yourusername/arena-api/internal/domain/entity"
	"gorm.io/gorm"
)

// SessionFilter задаёт параметры выборки списка сессий
type SessionFilter struct {
	Status string
	Limit  int
	Offset int
}

// SessionRepository определяет методы для работы с сессиями
type SessionRepository interface {
	Create(session *entity.Session) error
	GetByID(id uint) (*entity.Session, error)
	List(filter SessionFilter) ([]entity.Session, int64, error)
	Update(session *entity.Session) error
	// UpdateInTx сохраняет сессию в рамках внешней транзакции
	UpdateInTx(tx *gorm.DB, session *entity.Session) error
	// FindDue возвращает идущие сессии, срок которых истёк к моменту now
	FindDue(now time.Time) ([]entity.Session, error)
}
