package auth

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/golang-jwt/jwt/v4"

	apperrors "github.com/yourusername/arena-api/internal/pkg/errors"
)

// Назначения токенов. WS-тикет короткоживущий и годится
// только для апгрейда WebSocket-соединения.
const (
	usageAccess   = "access"
	usageWSTicket = "websocket_auth"
)

// JWTCustomClaims содержит пользовательские поля токена
type JWTCustomClaims struct {
	ParticipantID uint   `json:"participant_id"`
	Handle        string `json:"handle"`
	Usage         string `json:"usage,omitempty"`
	jwt.RegisteredClaims
}

// JWTService предоставляет методы для работы с JWT
type JWTService struct {
	secret         []byte
	expiration     time.Duration
	wsTicketExpiry time.Duration
}

// NewJWTService создает новый сервис JWT
func NewJWTService(secret string, expirationHrs, wsTicketExpirySec int) (*JWTService, error) {
	if secret == "" {
		return nil, errors.New("JWT secret cannot be empty")
	}
	if expirationHrs <= 0 {
		expirationHrs = 24
	}
	if wsTicketExpirySec <= 0 {
		wsTicketExpirySec = 60
	}
	return &JWTService{
		secret:         []byte(secret),
		expiration:     time.Duration(expirationHrs) * time.Hour,
		wsTicketExpiry: time.Duration(wsTicketExpirySec) * time.Second,
	}, nil
}

// GenerateToken создает access-токен участника
func (s *JWTService) GenerateToken(participantID uint, handle string) (string, error) {
	return s.generate(participantID, handle, usageAccess, s.expiration, "arena-clients")
}

// GenerateWSTicket создает короткоживущий тикет для апгрейда WebSocket
func (s *JWTService) GenerateWSTicket(participantID uint, handle string) (string, error) {
	return s.generate(participantID, handle, usageWSTicket, s.wsTicketExpiry, "arena-ws")
}

func (s *JWTService) generate(participantID uint, handle, usage string, ttl time.Duration, audience string) (string, error) {
	now := time.Now()
	claims := &JWTCustomClaims{
		ParticipantID: participantID,
		Handle:        handle,
		Usage:         usage,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    "arena-api",
			Subject:   fmt.Sprintf("%d", participantID),
			Audience:  jwt.ClaimStrings{audience},
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		log.Printf("[JWT] Ошибка подписи токена (usage=%s) для участника ID=%d: %v", usage, participantID, err)
		return "", err
	}
	return signed, nil
}

// ParseToken проверяет access-токен и возвращает его claims
func (s *JWTService) ParseToken(tokenString string) (*JWTCustomClaims, error) {
	return s.parse(tokenString, usageAccess)
}

// ParseWSTicket проверяет WS-тикет и возвращает его claims
func (s *JWTService) ParseWSTicket(ticketString string) (*JWTCustomClaims, error) {
	return s.parse(ticketString, usageWSTicket)
}

func (s *JWTService) parse(tokenString, expectedUsage string) (*JWTCustomClaims, error) {
	claims := &JWTCustomClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		var ve *jwt.ValidationError
		if errors.As(err, &ve) && ve.Errors&jwt.ValidationErrorExpired != 0 {
			return nil, apperrors.ErrExpiredToken
		}
		return nil, fmt.Errorf("invalid token: %w", apperrors.ErrUnauthorized)
	}

	if !token.Valid {
		return nil, apperrors.ErrUnauthorized
	}

	if claims.Usage != expectedUsage {
		return nil, fmt.Errorf("unexpected token usage %q: %w", claims.Usage, apperrors.ErrUnauthorized)
	}

	return claims, nil
}
