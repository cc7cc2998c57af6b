package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/yourusername/arena-api/internal/domain/entity"
	"github.com/yourusername/arena-api/internal/domain/repository"
	apperrors "github.com/yourusername/arena-api/internal/pkg/errors"
	"github.com/yourusername/arena-api/internal/websocket"
	"github.com/yourusername/arena-api/pkg/reward"
)

// TTL быстрого guard-ключа в Redis. Истинный инвариант "одна награда
// на сессию" держит уникальный индекс в БД, ключ только срезает гонки
// до обращения к базе.
const rewardGuardTTL = 24 * time.Hour

// RewardService выплачивает награду победителю сессии не более одного
// раза и ведёт учёт повторных попыток после сбоев транспорта.
type RewardService struct {
	rewardRepo      repository.RewardRepository
	participantRepo repository.ParticipantRepository
	cacheRepo       repository.CacheRepository
	transport       reward.Transport
	wsManager       *websocket.Manager
	tokenAmount     int64
	maxRetries      int
}

// NewRewardService создает новый сервис наград
func NewRewardService(
	rewardRepo repository.RewardRepository,
	participantRepo repository.ParticipantRepository,
	cacheRepo repository.CacheRepository,
	transport reward.Transport,
	wsManager *websocket.Manager,
	tokenAmount int64,
	maxRetries int,
) *RewardService {
	if tokenAmount <= 0 {
		tokenAmount = 100
	}
	if maxRetries <= 0 {
		maxRetries = 5
	}
	return &RewardService{
		rewardRepo:      rewardRepo,
		participantRepo: participantRepo,
		cacheRepo:       cacheRepo,
		transport:       transport,
		wsManager:       wsManager,
		tokenAmount:     tokenAmount,
		maxRetries:      maxRetries,
	}
}

// AwardToken выплачивает награду победителю сессии.
// Повторный вызов для той же сессии возвращает ErrConflict.
func (s *RewardService) AwardToken(ctx context.Context, session *entity.Session, winner *entity.Participant) (*entity.Reward, error) {
	if s.cacheRepo != nil {
		guardKey := fmt.Sprintf("reward:session:%d", session.ID)
		ok, err := s.cacheRepo.SetNX(guardKey, winner.ID, rewardGuardTTL)
		if err != nil {
			// Redis недоступен — решает уникальный индекс в БД
			log.Printf("[RewardService] SetNX guard для сессии %d недоступен: %v", session.ID, err)
		} else if !ok {
			return nil, fmt.Errorf("reward for session %d is already being issued: %w", session.ID, apperrors.ErrConflict)
		}
	}

	existing, err := s.rewardRepo.GetBySessionID(session.ID)
	if err == nil && existing != nil {
		return nil, fmt.Errorf("reward for session %d already exists: %w", session.ID, apperrors.ErrConflict)
	}
	if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	}

	record := &entity.Reward{
		SessionID:     session.ID,
		ParticipantID: winner.ID,
		TokenAmount:   s.tokenAmount,
		Status:        entity.RewardStatusPending,
	}
	if err := s.rewardRepo.Create(record); err != nil {
		if errors.Is(err, apperrors.ErrConflict) {
			// Гонка двух завершений: кто-то успел создать запись
			return nil, fmt.Errorf("reward for session %d already exists: %w", session.ID, apperrors.ErrConflict)
		}
		return nil, err
	}

	log.Printf("[RewardService] Создана запись награды: сессия=%d победитель=%d сумма=%d",
		session.ID, winner.ID, s.tokenAmount)
	return s.settle(ctx, record, winner.WalletAddress)
}

// Retry повторяет неудавшуюся выплату. Число попыток ограничено.
func (s *RewardService) Retry(ctx context.Context, rewardID uint) (*entity.Reward, error) {
	record, err := s.rewardRepo.GetByID(rewardID)
	if err != nil {
		return nil, err
	}
	if !record.CanRetry(s.maxRetries) {
		return nil, fmt.Errorf("reward %d is not retryable (status=%s, retries=%d/%d): %w",
			rewardID, record.Status, record.RetryCount, s.maxRetries, apperrors.ErrConflict)
	}

	participant, err := s.participantRepo.GetByID(record.ParticipantID)
	if err != nil {
		return nil, err
	}

	record.Status = entity.RewardStatusPending
	if err := s.rewardRepo.Update(record); err != nil {
		return nil, err
	}

	log.Printf("[RewardService] Повторная выплата %d (попытка %d)", rewardID, record.RetryCount+1)
	return s.settle(ctx, record, participant.WalletAddress)
}

// GetBySession возвращает награду сессии
func (s *RewardService) GetBySession(sessionID uint) (*entity.Reward, error) {
	return s.rewardRepo.GetBySessionID(sessionID)
}

// settle вызывает транспорт и фиксирует исход.
// Вызов транспорта не держит никаких блокировок сессии.
func (s *RewardService) settle(ctx context.Context, record *entity.Reward, address string) (*entity.Reward, error) {
	receipt, err := s.transport.Send(ctx, address, record.TokenAmount)
	if err != nil {
		record.Status = entity.RewardStatusFailed
		record.RetryCount++
		record.ErrorMessage = err.Error()
		if uerr := s.rewardRepo.Update(record); uerr != nil {
			log.Printf("[RewardService] Не удалось сохранить сбой выплаты %d: %v", record.ID, uerr)
		}
		s.emitOutcome(record)
		return record, fmt.Errorf("reward transport failed for session %d: %w", record.SessionID, err)
	}

	record.Status = entity.RewardStatusCompleted
	record.TxRef = &receipt.TxRef
	record.BlockRef = &receipt.BlockRef
	record.ErrorMessage = ""
	if err := s.rewardRepo.Update(record); err != nil {
		return nil, err
	}

	if err := s.participantRepo.AddRewardEarned(record.ParticipantID, record.TokenAmount); err != nil {
		log.Printf("[RewardService] Не удалось обновить сумму наград участника %d: %v", record.ParticipantID, err)
	}

	log.Printf("[RewardService] Выплата завершена: сессия=%d участник=%d tx=%s",
		record.SessionID, record.ParticipantID, receipt.TxRef)
	s.emitOutcome(record)
	return record, nil
}

func (s *RewardService) emitOutcome(record *entity.Reward) {
	if s.wsManager == nil {
		return
	}
	payload := websocket.TokenRewardedPayload{
		SessionID:     record.SessionID,
		ParticipantID: record.ParticipantID,
		TokenAmount:   record.TokenAmount,
		Status:        record.Status,
	}
	if record.TxRef != nil {
		payload.TxRef = *record.TxRef
	}
	// После завершения сессии её комната закрывается, поэтому итог
	// повторной выплаты доставляется победителю напрямую
	if s.wsManager.Hub().RoomCount(record.SessionID) > 0 {
		s.wsManager.BroadcastToSession(record.SessionID, websocket.TokenRewarded, payload)
	} else {
		s.wsManager.SendEventToParticipant(record.ParticipantID, websocket.TokenRewarded, payload)
	}
}
