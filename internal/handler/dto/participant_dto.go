package dto

import (
	"time"

	"github.com/yourusername/arena-api/internal/domain/entity"
)

// ParticipantResponse представляет участника в формате для ответа клиенту
type ParticipantResponse struct {
	ID                uint      `json:"id"`
	Handle            string    `json:"handle"`
	WalletAddress     string    `json:"wallet_address"`
	SessionsJoined    int64     `json:"sessions_joined"`
	SessionsWon       int64     `json:"sessions_won"`
	TotalRewardEarned int64     `json:"total_reward_earned"`
	CreatedAt         time.Time `json:"created_at"`
}

// NewParticipantResponse создает DTO участника
func NewParticipantResponse(p *entity.Participant) *ParticipantResponse {
	return &ParticipantResponse{
		ID:                p.ID,
		Handle:            p.Handle,
		WalletAddress:     p.WalletAddress,
		SessionsJoined:    p.SessionsJoined,
		SessionsWon:       p.SessionsWon,
		TotalRewardEarned: p.TotalRewardEarned,
		CreatedAt:         p.CreatedAt,
	}
}

// AuthResponse — ответ на регистрацию/вход
type AuthResponse struct {
	Participant *ParticipantResponse `json:"participant"`
	AccessToken string               `json:"access_token"`
}

// LeaderboardRow — строка глобального лидерборда
type LeaderboardRow struct {
	Rank              int    `json:"rank"`
	ParticipantID     uint   `json:"participant_id"`
	Handle            string `json:"handle"`
	SessionsWon       int64  `json:"sessions_won"`
	TotalRewardEarned int64  `json:"total_reward_earned"`
}

// PaginatedLeaderboardResponse — пагинированный глобальный лидерборд
type PaginatedLeaderboardResponse struct {
	Rows    []*LeaderboardRow `json:"rows"`
	Total   int64             `json:"total"`
	Page    int               `json:"page"`
	PerPage int               `json:"per_page"`
}
