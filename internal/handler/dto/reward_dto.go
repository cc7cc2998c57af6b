package dto

import (
	"time"

	"github.com/yourusername/arena-api/internal/domain/entity"
)

// RewardResponse представляет запись о награде
type RewardResponse struct {
	ID            uint      `json:"id"`
	SessionID     uint      `json:"session_id"`
	ParticipantID uint      `json:"participant_id"`
	TokenAmount   int64     `json:"token_amount"`
	Status        string    `json:"status"`
	TxRef         *string   `json:"tx_ref,omitempty"`
	BlockRef      *string   `json:"block_ref,omitempty"`
	RetryCount    int       `json:"retry_count"`
	ErrorMessage  string    `json:"error_message,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// NewRewardResponse создает DTO награды
func NewRewardResponse(r *entity.Reward) *RewardResponse {
	return &RewardResponse{
		ID:            r.ID,
		SessionID:     r.SessionID,
		ParticipantID: r.ParticipantID,
		TokenAmount:   r.TokenAmount,
		Status:        r.Status,
		TxRef:         r.TxRef,
		BlockRef:      r.BlockRef,
		RetryCount:    r.RetryCount,
		ErrorMessage:  r.ErrorMessage,
		CreatedAt:     r.CreatedAt,
	}
}
