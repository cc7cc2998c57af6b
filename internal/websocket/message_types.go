package websocket

import "time"

// Типы исходящих событий. Имена и форма полезной нагрузки — часть
// контракта с клиентами, менять их нельзя.
const (
	SessionJoined  = "session_joined"
	SessionLeft    = "session_left"
	PlayerJoined   = "player_joined"
	PlayerLeft     = "player_left"
	ScoreUpdated   = "score_updated"
	SessionStarted = "session_started"
	SessionEnded   = "session_ended"
	TokenRewarded  = "token_rewarded"
	ErrorMessage   = "error"
)

// Типы входящих сообщений от клиентов
const (
	ClientSessionJoin  = "session:join"
	ClientSessionLeave = "session:leave"
)

// LeaderboardEntry — строка таблицы лидеров в исходящих событиях
type LeaderboardEntry struct {
	Rank           int       `json:"rank"`
	ParticipantID  uint      `json:"participant_id"`
	Handle         string    `json:"handle"`
	Score          int       `json:"score"`
	TasksCompleted int       `json:"tasks_completed"`
	JoinedAt       time.Time `json:"joined_at"`
}

// SessionSnapshot — снимок сессии для подтверждения подписки
type SessionSnapshot struct {
	ID               uint       `json:"id"`
	Title            string     `json:"title"`
	Status           string     `json:"status"`
	Strategy         string     `json:"strategy"`
	ParticipantCount int        `json:"participant_count"`
	MaxParticipants  int        `json:"max_participants"`
	DurationMinutes  int        `json:"duration_minutes"`
	StartedAt        *time.Time `json:"started_at,omitempty"`
	ScheduledEndAt   *time.Time `json:"scheduled_end_at,omitempty"`
}

// SessionJoinedPayload подтверждает подписку соединения на сессию
type SessionJoinedPayload struct {
	SessionID        uint            `json:"session_id"`
	ParticipantCount int             `json:"participant_count"`
	Session          SessionSnapshot `json:"session"`
}

// SessionLeftPayload подтверждает отписку соединения от сессии
type SessionLeftPayload struct {
	SessionID uint `json:"session_id"`
}

// PlayerPayload сообщает комнате об изменении состава участников
type PlayerPayload struct {
	ParticipantID    uint   `json:"participant_id"`
	Handle           string `json:"handle"`
	ParticipantCount int    `json:"participant_count"`
}

// ScoreUpdatedPayload несёт обновление счёта и свежую таблицу лидеров
type ScoreUpdatedPayload struct {
	ParticipantID  uint               `json:"participant_id"`
	Score          int                `json:"score"`
	TasksCompleted int                `json:"tasks_completed"`
	Leaderboard    []LeaderboardEntry `json:"leaderboard"`
}

// SessionStartedPayload сообщает о переходе сессии в LIVE
type SessionStartedPayload struct {
	SessionID       uint       `json:"session_id"`
	StartedAt       time.Time  `json:"started_at"`
	DurationMinutes int        `json:"duration_minutes"`
	ScheduledEndAt  *time.Time `json:"scheduled_end_at,omitempty"`
}

// SessionEndedPayload несёт итог сессии: победителя и финальную таблицу
type SessionEndedPayload struct {
	SessionID   uint               `json:"session_id"`
	Winner      *LeaderboardEntry  `json:"winner"`
	Leaderboard []LeaderboardEntry `json:"leaderboard"`
	EndedAt     time.Time          `json:"ended_at"`
}

// TokenRewardedPayload сообщает об исходе выплаты награды
type TokenRewardedPayload struct {
	SessionID     uint   `json:"session_id"`
	ParticipantID uint   `json:"participant_id"`
	TokenAmount   int64  `json:"token_amount"`
	TxRef         string `json:"tx_ref,omitempty"`
	Status        string `json:"status"`
}

// ErrorPayload — конверт ошибки для клиента
type ErrorPayload struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}
