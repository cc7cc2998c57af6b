package entity

import (
	"log"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Participant представляет участника арены
type Participant struct {
	ID            uint   `gorm:"primaryKey" json:"id"`
	Handle        string `gorm:"size:50;not null;uniqueIndex" json:"handle"`
	WalletAddress string `gorm:"size:100;not null;uniqueIndex" json:"wallet_address"`
	Password      string `gorm:"size:100;not null" json:"-"`

	SessionsJoined    int64 `gorm:"not null;default:0" json:"sessions_joined"`
	SessionsWon       int64 `gorm:"not null;default:0;index:idx_participants_leaderboard" json:"sessions_won"`
	TotalRewardEarned int64 `gorm:"not null;default:0;index:idx_participants_leaderboard" json:"total_reward_earned"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName определяет имя таблицы для GORM
func (Participant) TableName() string {
	return "participants"
}

// BeforeSave хеширует пароль перед сохранением, только если он не является bcrypt-хешем
func (p *Participant) BeforeSave(tx *gorm.DB) error {
	if len(p.Password) > 0 && !strings.HasPrefix(p.Password, "$2a$") &&
		!strings.HasPrefix(p.Password, "$2b$") && !strings.HasPrefix(p.Password, "$2y$") {
		hashedPassword, err := bcrypt.GenerateFromPassword([]byte(p.Password), bcrypt.DefaultCost)
		if err != nil {
			log.Printf("[Participant.BeforeSave] Ошибка при хешировании пароля для handle=%s: %v", p.Handle, err)
			return err
		}
		p.Password = string(hashedPassword)
	}
	return nil
}

// CheckPassword проверяет, соответствует ли переданный пароль хешу
func (p *Participant) CheckPassword(password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(p.Password), []byte(password))
	return err == nil
}
