package service

import (
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/yourusername/arena-api/internal/domain/entity"
	"github.com/yourusername/arena-api/internal/domain/repository"
	apperrors "github.com/yourusername/arena-api/internal/pkg/errors"
	"github.com/yourusername/arena-api/pkg/auth"
)

// AuthService регистрирует участников и выдаёт токены
type AuthService struct {
	participantRepo repository.ParticipantRepository
	jwtService      *auth.JWTService
}

// NewAuthService создает новый сервис аутентификации
func NewAuthService(participantRepo repository.ParticipantRepository, jwtService *auth.JWTService) *AuthService {
	return &AuthService{
		participantRepo: participantRepo,
		jwtService:      jwtService,
	}
}

// Register создает нового участника и возвращает access-токен
func (s *AuthService) Register(handle, walletAddress, password string) (*entity.Participant, string, error) {
	handle = strings.TrimSpace(handle)
	walletAddress = strings.TrimSpace(walletAddress)

	if len(handle) < 3 || len(handle) > 50 {
		return nil, "", fmt.Errorf("handle must be 3-50 characters: %w", apperrors.ErrValidation)
	}
	if walletAddress == "" {
		return nil, "", fmt.Errorf("wallet address is required: %w", apperrors.ErrValidation)
	}
	if len(password) < 6 {
		return nil, "", fmt.Errorf("password must be at least 6 characters: %w", apperrors.ErrValidation)
	}

	participant := &entity.Participant{
		Handle:        handle,
		WalletAddress: walletAddress,
		Password:      password, // хешируется в BeforeSave
	}
	if err := s.participantRepo.Create(participant); err != nil {
		if errors.Is(err, apperrors.ErrConflict) {
			return nil, "", fmt.Errorf("handle or wallet address is already taken: %w", apperrors.ErrConflict)
		}
		return nil, "", err
	}

	token, err := s.jwtService.GenerateToken(participant.ID, participant.Handle)
	if err != nil {
		return nil, "", err
	}

	log.Printf("[AuthService] Зарегистрирован участник: ID=%d handle=%s", participant.ID, participant.Handle)
	return participant, token, nil
}

// Login проверяет пароль и возвращает access-токен
func (s *AuthService) Login(handle, password string) (*entity.Participant, string, error) {
	participant, err := s.participantRepo.GetByHandle(strings.TrimSpace(handle))
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, "", fmt.Errorf("invalid credentials: %w", apperrors.ErrUnauthorized)
		}
		return nil, "", err
	}

	if !participant.CheckPassword(password) {
		return nil, "", fmt.Errorf("invalid credentials: %w", apperrors.ErrUnauthorized)
	}

	token, err := s.jwtService.GenerateToken(participant.ID, participant.Handle)
	if err != nil {
		return nil, "", err
	}
	return participant, token, nil
}

// IssueWSTicket выдаёт короткоживущий тикет для апгрейда WebSocket
func (s *AuthService) IssueWSTicket(participantID uint) (string, error) {
	participant, err := s.participantRepo.GetByID(participantID)
	if err != nil {
		return "", err
	}
	return s.jwtService.GenerateWSTicket(participant.ID, participant.Handle)
}
