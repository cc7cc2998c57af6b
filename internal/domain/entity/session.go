package entity

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Статусы сессии
const (
	SessionStatusWaiting   = "waiting"
	SessionStatusLive      = "live"
	SessionStatusEnded     = "ended"
	SessionStatusCancelled = "cancelled"
)

// Стратегии выбора победителя
const (
	StrategyPoints   = "points"
	StrategyTasks    = "tasks"
	StrategyRandom   = "random"
	StrategyCombined = "combined"
)

// Ограничения на поле Extensions. Произвольные метаданные допускаются,
// но карта строго ограничена по размеру и форме значений.
const (
	MaxExtensionKeys     = 16
	MaxExtensionKeyLen   = 64
	MaxExtensionValueLen = 256
)

// ExtensionMap хранит дополнительные метаданные сессии в колонке jsonb.
// Значения допускаются только скалярные (строки, числа, булевы).
type ExtensionMap map[string]interface{}

// Value реализует driver.Valuer для сохранения в БД
func (m ExtensionMap) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

// Scan реализует sql.Scanner для чтения из БД
func (m *ExtensionMap) Scan(value interface{}) error {
	if value == nil {
		*m = nil
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported extensions column type %T", value)
	}
	return json.Unmarshal(data, m)
}

// Validate проверяет ограничения карты расширений
func (m ExtensionMap) Validate() error {
	if len(m) > MaxExtensionKeys {
		return fmt.Errorf("extensions: too many keys (%d, max %d)", len(m), MaxExtensionKeys)
	}
	for key, value := range m {
		if len(key) == 0 || len(key) > MaxExtensionKeyLen {
			return fmt.Errorf("extensions: invalid key %q", key)
		}
		switch v := value.(type) {
		case string:
			if len(v) > MaxExtensionValueLen {
				return fmt.Errorf("extensions: value for %q is too long", key)
			}
		case bool, float64, int, int64:
			// скалярные значения допустимы как есть
		default:
			return fmt.Errorf("extensions: value for %q must be a scalar", key)
		}
	}
	return nil
}

// Session представляет одну соревновательную сессию
type Session struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	Title     string `gorm:"size:100;not null" json:"title"`
	CreatorID uint   `gorm:"not null;index" json:"creator_id"`
	Status    string `gorm:"size:20;not null;default:'waiting';index" json:"status"`
	WinnerID  *uint  `gorm:"index" json:"winner_id,omitempty"`

	ParticipantCount int `gorm:"not null;default:0" json:"participant_count"`

	// Конфигурация сессии, задаётся при создании и далее не меняется
	DurationMinutes        int          `gorm:"not null" json:"duration_minutes"`
	MinParticipantsToStart int          `gorm:"not null;default:1" json:"min_participants_to_start"`
	MaxParticipants        int          `gorm:"not null" json:"max_participants"`
	Strategy               string       `gorm:"size:20;not null;default:'points'" json:"strategy"`
	PointsPerTask          int          `gorm:"not null;default:10" json:"points_per_task"`
	EnableRandomWinner     bool         `gorm:"not null;default:false" json:"enable_random_winner"`
	AutoStart              bool         `gorm:"not null;default:true" json:"auto_start"`
	AutoEnd                bool         `gorm:"not null;default:true" json:"auto_end"`
	Extensions             ExtensionMap `gorm:"type:jsonb" json:"extensions,omitempty"`

	StartedAt      *time.Time `json:"started_at,omitempty"`
	EndedAt        *time.Time `json:"ended_at,omitempty"`
	ScheduledEndAt *time.Time `gorm:"index" json:"scheduled_end_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName определяет имя таблицы для GORM
func (Session) TableName() string {
	return "sessions"
}

// IsTerminal возвращает true, если сессия находится в конечном состоянии
func (s *Session) IsTerminal() bool {
	return s.Status == SessionStatusEnded || s.Status == SessionStatusCancelled
}

// IsJoinable возвращает true, если к сессии можно присоединиться:
// либо она ожидает участников, либо идёт и есть свободные места
func (s *Session) IsJoinable() bool {
	switch s.Status {
	case SessionStatusWaiting:
		return s.ParticipantCount < s.MaxParticipants
	case SessionStatusLive:
		return s.ParticipantCount < s.MaxParticipants
	default:
		return false
	}
}

// ValidStrategy проверяет, что стратегия известна системе
func ValidStrategy(strategy string) bool {
	switch strategy {
	case StrategyPoints, StrategyTasks, StrategyRandom, StrategyCombined:
		return true
	}
	return false
}
