package dto

import (
	"time"

	"github.com/yourusername/arena-api/internal/domain/entity"
)

// SessionResponse представляет сессию в формате для ответа клиенту
type SessionResponse struct {
	ID                     uint                `json:"id"`
	Title                  string              `json:"title"`
	CreatorID              uint                `json:"creator_id"`
	Status                 string              `json:"status"`
	WinnerID               *uint               `json:"winner_id,omitempty"`
	ParticipantCount       int                 `json:"participant_count"`
	DurationMinutes        int                 `json:"duration_minutes"`
	MinParticipantsToStart int                 `json:"min_participants_to_start"`
	MaxParticipants        int                 `json:"max_participants"`
	Strategy               string              `json:"strategy"`
	PointsPerTask          int                 `json:"points_per_task"`
	EnableRandomWinner     bool                `json:"enable_random_winner"`
	AutoStart              bool                `json:"auto_start"`
	AutoEnd                bool                `json:"auto_end"`
	Extensions             entity.ExtensionMap `json:"extensions,omitempty"`
	StartedAt              *time.Time          `json:"started_at,omitempty"`
	EndedAt                *time.Time          `json:"ended_at,omitempty"`
	ScheduledEndAt         *time.Time          `json:"scheduled_end_at,omitempty"`
	CreatedAt              time.Time           `json:"created_at"`
}

// NewSessionResponse создает DTO сессии
func NewSessionResponse(s *entity.Session) *SessionResponse {
	return &SessionResponse{
		ID:                     s.ID,
		Title:                  s.Title,
		CreatorID:              s.CreatorID,
		Status:                 s.Status,
		WinnerID:               s.WinnerID,
		ParticipantCount:       s.ParticipantCount,
		DurationMinutes:        s.DurationMinutes,
		MinParticipantsToStart: s.MinParticipantsToStart,
		MaxParticipants:        s.MaxParticipants,
		Strategy:               s.Strategy,
		PointsPerTask:          s.PointsPerTask,
		EnableRandomWinner:     s.EnableRandomWinner,
		AutoStart:              s.AutoStart,
		AutoEnd:                s.AutoEnd,
		Extensions:             s.Extensions,
		StartedAt:              s.StartedAt,
		EndedAt:                s.EndedAt,
		ScheduledEndAt:         s.ScheduledEndAt,
		CreatedAt:              s.CreatedAt,
	}
}

// MembershipResponse представляет участие в сессии
type MembershipResponse struct {
	ParticipantID  uint       `json:"participant_id"`
	Handle         string     `json:"handle"`
	Score          int        `json:"score"`
	TasksCompleted int        `json:"tasks_completed"`
	IsActive       bool       `json:"is_active"`
	JoinedAt       time.Time  `json:"joined_at"`
	LeftAt         *time.Time `json:"left_at,omitempty"`
	FinalRank      int        `json:"final_rank,omitempty"`
}

// NewMembershipResponse создает DTO участия
func NewMembershipResponse(ps *entity.ParticipantSession) *MembershipResponse {
	return &MembershipResponse{
		ParticipantID:  ps.ParticipantID,
		Handle:         ps.Handle,
		Score:          ps.Score,
		TasksCompleted: ps.TasksCompleted,
		IsActive:       ps.IsActive,
		JoinedAt:       ps.JoinedAt,
		LeftAt:         ps.LeftAt,
		FinalRank:      ps.FinalRank,
	}
}

// SessionDetailResponse — сессия вместе с записями участия
type SessionDetailResponse struct {
	Session *SessionResponse      `json:"session"`
	Members []*MembershipResponse `json:"members"`
}

// PaginatedSessionsResponse — пагинированный список сессий
type PaginatedSessionsResponse struct {
	Sessions []*SessionResponse `json:"sessions"`
	Total    int64              `json:"total"`
	Page     int                `json:"page"`
	PerPage  int                `json:"per_page"`
}
