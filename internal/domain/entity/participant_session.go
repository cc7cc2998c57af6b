package entity

import "time"

// ParticipantSession хранит положение одного участника внутри одной сессии.
// Пара (SessionID, ParticipantID) уникальна; запись никогда не удаляется,
// при выходе участник помечается неактивным и может вернуться, пока сессия
// открыта для присоединения.
type ParticipantSession struct {
	ID            uint `gorm:"primaryKey" json:"id"`
	SessionID     uint `gorm:"not null;uniqueIndex:idx_session_participant" json:"session_id"`
	ParticipantID uint `gorm:"not null;uniqueIndex:idx_session_participant" json:"participant_id"`

	// Handle дублируется из Participant, чтобы не делать JOIN при
	// построении таблицы лидеров
	Handle string `gorm:"size:50;not null" json:"handle"`

	Score          int  `gorm:"not null;default:0" json:"score"`
	TasksCompleted int  `gorm:"not null;default:0" json:"tasks_completed"`
	IsActive       bool `gorm:"not null;default:true;index" json:"is_active"`

	JoinedAt       time.Time  `gorm:"not null" json:"joined_at"`
	LeftAt         *time.Time `json:"left_at,omitempty"`
	LastActivityAt time.Time  `gorm:"not null" json:"last_activity_at"`

	// Rank вычисляется на лету для живой таблицы лидеров, FinalRank
	// фиксируется один раз при завершении сессии
	Rank      int `gorm:"-" json:"rank,omitempty"`
	FinalRank int `gorm:"not null;default:0" json:"final_rank,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName определяет имя таблицы для GORM
func (ParticipantSession) TableName() string {
	return "participant_sessions"
}

// SetProgress записывает накопленные очки и число выполненных задач.
// Отрицательные значения обрезаются до нуля.
func (ps *ParticipantSession) SetProgress(score, tasksCompleted *int) {
	if score != nil {
		ps.Score = clampNonNegative(*score)
	}
	if tasksCompleted != nil {
		ps.TasksCompleted = clampNonNegative(*tasksCompleted)
	}
}

func clampNonNegative(v int) int {
	if v < 0 {
		return 0
	}
	return v
}
