package entity

import "time"

// Статусы награды
const (
	RewardStatusPending   = "pending"
	RewardStatusCompleted = "completed"
	RewardStatusFailed    = "failed"
)

// Reward — запись о выплате награды победителю сессии.
// На одну сессию существует не более одной записи (уникальный индекс),
// это и есть гарантия от двойной выплаты.
type Reward struct {
	ID            uint  `gorm:"primaryKey" json:"id"`
	SessionID     uint  `gorm:"not null;uniqueIndex" json:"session_id"`
	ParticipantID uint  `gorm:"not null;index" json:"participant_id"`
	TokenAmount   int64 `gorm:"not null" json:"token_amount"`

	Status string `gorm:"size:20;not null;default:'pending'" json:"status"`

	// TxRef заполняется только при успешной выплате и глобально уникален
	TxRef    *string `gorm:"size:100;uniqueIndex" json:"tx_ref,omitempty"`
	BlockRef *string `gorm:"size:100" json:"block_ref,omitempty"`

	RetryCount   int    `gorm:"not null;default:0" json:"retry_count"`
	ErrorMessage string `gorm:"size:500;not null;default:''" json:"error_message,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName определяет имя таблицы для GORM
func (Reward) TableName() string {
	return "rewards"
}

// CanRetry возвращает true, если выплату можно повторить
func (r *Reward) CanRetry(maxRetries int) bool {
	return r.Status == RewardStatusFailed && r.RetryCount < maxRetries
}
