package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/yourusername/arena-api/internal/config"
	"github.com/yourusername/arena-api/internal/domain/entity"
	"github.com/yourusername/arena-api/internal/domain/repository"
	apperrors "github.com/yourusername/arena-api/internal/pkg/errors"
	"github.com/yourusername/arena-api/internal/service/scoring"
	"github.com/yourusername/arena-api/internal/websocket"
)

// TTL кеша живой таблицы лидеров
const leaderboardCacheTTL = 10 * time.Second

// CreateSessionInput — параметры создания сессии
type CreateSessionInput struct {
	Title                  string
	DurationMinutes        int
	MinParticipantsToStart int
	MaxParticipants        int
	Strategy               string
	PointsPerTask          int
	EnableRandomWinner     bool
	AutoStart              bool
	AutoEnd                bool
	Extensions             entity.ExtensionMap
}

// SessionService управляет жизненным циклом сессий.
// Все мутации одной сессии сериализуются её мьютексом; операции над
// разными сессиями идут параллельно.
type SessionService struct {
	sessionRepo     repository.SessionRepository
	psRepo          repository.ParticipantSessionRepository
	participantRepo repository.ParticipantRepository
	cacheRepo       repository.CacheRepository
	rewardService   *RewardService
	wsManager       *websocket.Manager
	engine          *scoring.Engine
	cfg             config.SessionConfig
	db              *gorm.DB

	// Мьютексы по ID сессии. Записи не удаляются: сессии короткоживущие,
	// а мьютекс занимает десятки байт.
	locks sync.Map
}

// NewSessionService создает новый сервис сессий
func NewSessionService(
	sessionRepo repository.SessionRepository,
	psRepo repository.ParticipantSessionRepository,
	participantRepo repository.ParticipantRepository,
	cacheRepo repository.CacheRepository,
	rewardService *RewardService,
	wsManager *websocket.Manager,
	engine *scoring.Engine,
	cfg config.SessionConfig,
	db *gorm.DB,
) *SessionService {
	return &SessionService{
		sessionRepo:     sessionRepo,
		psRepo:          psRepo,
		participantRepo: participantRepo,
		cacheRepo:       cacheRepo,
		rewardService:   rewardService,
		wsManager:       wsManager,
		engine:          engine,
		cfg:             cfg,
		db:              db,
	}
}

func (s *SessionService) lockFor(sessionID uint) *sync.Mutex {
	lock, _ := s.locks.LoadOrStore(sessionID, &sync.Mutex{})
	return lock.(*sync.Mutex)
}

// Create создает новую сессию в состоянии ожидания участников
func (s *SessionService) Create(creatorID uint, input CreateSessionInput) (*entity.Session, error) {
	if input.Title == "" {
		return nil, fmt.Errorf("title is required: %w", apperrors.ErrValidation)
	}
	if input.MinParticipantsToStart < 1 {
		return nil, fmt.Errorf("min participants must be at least 1: %w", apperrors.ErrValidation)
	}
	if input.MaxParticipants < input.MinParticipantsToStart {
		return nil, fmt.Errorf("max participants (%d) is below min participants (%d): %w",
			input.MaxParticipants, input.MinParticipantsToStart, apperrors.ErrValidation)
	}
	if s.cfg.MaxParticipantsLimit > 0 && input.MaxParticipants > s.cfg.MaxParticipantsLimit {
		return nil, fmt.Errorf("max participants exceeds limit %d: %w", s.cfg.MaxParticipantsLimit, apperrors.ErrValidation)
	}
	if input.DurationMinutes < s.cfg.MinDurationMinutes || input.DurationMinutes > s.cfg.MaxDurationMinutes {
		return nil, fmt.Errorf("duration must be within [%d, %d] minutes: %w",
			s.cfg.MinDurationMinutes, s.cfg.MaxDurationMinutes, apperrors.ErrValidation)
	}
	if input.Strategy == "" {
		input.Strategy = entity.StrategyPoints
	}
	if !entity.ValidStrategy(input.Strategy) {
		return nil, fmt.Errorf("unknown strategy %q: %w", input.Strategy, apperrors.ErrValidation)
	}
	if input.PointsPerTask <= 0 {
		input.PointsPerTask = 10
	}
	if err := input.Extensions.Validate(); err != nil {
		return nil, fmt.Errorf("%v: %w", err, apperrors.ErrValidation)
	}

	session := &entity.Session{
		Title:                  input.Title,
		CreatorID:              creatorID,
		Status:                 entity.SessionStatusWaiting,
		DurationMinutes:        input.DurationMinutes,
		MinParticipantsToStart: input.MinParticipantsToStart,
		MaxParticipants:        input.MaxParticipants,
		Strategy:               input.Strategy,
		PointsPerTask:          input.PointsPerTask,
		EnableRandomWinner:     input.EnableRandomWinner,
		AutoStart:              input.AutoStart,
		AutoEnd:                input.AutoEnd,
		Extensions:             input.Extensions,
	}

	if err := s.sessionRepo.Create(session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	log.Printf("[SessionService] Сессия создана: ID=%d creator=%d strategy=%s", session.ID, creatorID, session.Strategy)
	return session, nil
}

// Get возвращает сессию и записи участия в ней
func (s *SessionService) Get(sessionID uint) (*entity.Session, []entity.ParticipantSession, error) {
	session, err := s.sessionRepo.GetByID(sessionID)
	if err != nil {
		return nil, nil, err
	}
	members, err := s.psRepo.GetBySession(sessionID)
	if err != nil {
		return nil, nil, err
	}
	return session, members, nil
}

// List возвращает сессии с фильтром по статусу
func (s *SessionService) List(status string, page, pageSize int) ([]entity.Session, int64, error) {
	if status != "" {
		switch status {
		case entity.SessionStatusWaiting, entity.SessionStatusLive,
			entity.SessionStatusEnded, entity.SessionStatusCancelled:
		default:
			return nil, 0, fmt.Errorf("unknown status %q: %w", status, apperrors.ErrValidation)
		}
	}
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return s.sessionRepo.List(repository.SessionFilter{
		Status: status,
		Limit:  pageSize,
		Offset: (page - 1) * pageSize,
	})
}

// Join присоединяет участника к сессии. Если после присоединения
// достигнут порог автостарта, сессия атомарно переходит в LIVE —
// вместе с созданием членства, одной транзакцией.
func (s *SessionService) Join(sessionID, participantID uint) (*entity.Session, *entity.ParticipantSession, error) {
	lock := s.lockFor(sessionID)
	lock.Lock()
	defer lock.Unlock()

	session, err := s.sessionRepo.GetByID(sessionID)
	if err != nil {
		return nil, nil, err
	}

	ps, err := s.psRepo.GetBySessionAndParticipant(sessionID, participantID)
	rejoin := false
	if err == nil {
		if ps.IsActive {
			return nil, nil, fmt.Errorf("participant %d already joined session %d: %w",
				participantID, sessionID, apperrors.ErrConflict)
		}
		rejoin = true
	} else if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, nil, err
	}

	if !session.IsJoinable() {
		return nil, nil, fmt.Errorf("session %d is not joinable (status=%s, participants=%d/%d): %w",
			sessionID, session.Status, session.ParticipantCount, session.MaxParticipants, apperrors.ErrConflict)
	}

	participant, err := s.participantRepo.GetByID(participantID)
	if err != nil {
		return nil, nil, err
	}

	now := time.Now()
	if rejoin {
		// При возвращении сохраняем исходный joinedAt: тай-брейк
		// "раньше присоединился — выше" не должен сбрасываться
		ps.IsActive = true
		ps.LeftAt = nil
		ps.LastActivityAt = now
	} else {
		ps = &entity.ParticipantSession{
			SessionID:      sessionID,
			ParticipantID:  participantID,
			Handle:         participant.Handle,
			IsActive:       true,
			JoinedAt:       now,
			LastActivityAt: now,
		}
	}

	session.ParticipantCount++
	started := false
	if session.AutoStart && session.Status == entity.SessionStatusWaiting &&
		session.ParticipantCount >= session.MinParticipantsToStart {
		session.Status = entity.SessionStatusLive
		session.StartedAt = &now
		started = true
		if session.AutoEnd {
			endAt := now.Add(time.Duration(session.DurationMinutes) * time.Minute)
			session.ScheduledEndAt = &endAt
		}
	}

	tx := s.db.Begin()
	if tx.Error != nil {
		return nil, nil, tx.Error
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	if rejoin {
		err = s.psRepo.UpdateInTx(tx, ps)
	} else {
		err = s.psRepo.CreateInTx(tx, ps)
	}
	if err != nil {
		tx.Rollback()
		return nil, nil, err
	}
	if err := s.sessionRepo.UpdateInTx(tx, session); err != nil {
		tx.Rollback()
		return nil, nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, nil, err
	}

	if !rejoin {
		if err := s.participantRepo.IncrementSessionsJoined(participantID); err != nil {
			log.Printf("[SessionService] Не удалось обновить счётчик сессий участника %d: %v", participantID, err)
		}
	}

	s.emit(sessionID, websocket.PlayerJoined, websocket.PlayerPayload{
		ParticipantID:    participantID,
		Handle:           ps.Handle,
		ParticipantCount: session.ParticipantCount,
	})
	if started {
		log.Printf("[SessionService] Сессия %d стартовала: участников=%d", sessionID, session.ParticipantCount)
		s.emit(sessionID, websocket.SessionStarted, websocket.SessionStartedPayload{
			SessionID:       sessionID,
			StartedAt:       *session.StartedAt,
			DurationMinutes: session.DurationMinutes,
			ScheduledEndAt:  session.ScheduledEndAt,
		})
	}

	return session, ps, nil
}

// Leave выводит участника из сессии. Выход никогда не завершает сессию,
// даже если число участников упало ниже порога старта.
func (s *SessionService) Leave(sessionID, participantID uint) error {
	lock := s.lockFor(sessionID)
	lock.Lock()
	defer lock.Unlock()

	session, err := s.sessionRepo.GetByID(sessionID)
	if err != nil {
		return err
	}
	if session.IsTerminal() {
		return fmt.Errorf("session %d is already %s: %w", sessionID, session.Status, apperrors.ErrConflict)
	}

	ps, err := s.psRepo.GetBySessionAndParticipant(sessionID, participantID)
	if err != nil || !ps.IsActive {
		return fmt.Errorf("participant %d has not joined session %d: %w",
			participantID, sessionID, apperrors.ErrNotFound)
	}

	now := time.Now()
	ps.IsActive = false
	ps.LeftAt = &now
	session.ParticipantCount--
	if session.ParticipantCount < 0 {
		session.ParticipantCount = 0
	}

	tx := s.db.Begin()
	if tx.Error != nil {
		return tx.Error
	}
	if err := s.psRepo.UpdateInTx(tx, ps); err != nil {
		tx.Rollback()
		return err
	}
	if err := s.sessionRepo.UpdateInTx(tx, session); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit().Error; err != nil {
		return err
	}

	s.emit(sessionID, websocket.PlayerLeft, websocket.PlayerPayload{
		ParticipantID:    participantID,
		Handle:           ps.Handle,
		ParticipantCount: session.ParticipantCount,
	})
	return nil
}

// UpdateScore записывает прогресс участника и рассылает комнате
// обновлённую таблицу лидеров. Допускается только в идущей сессии.
func (s *SessionService) UpdateScore(sessionID, participantID uint, score, tasksCompleted *int) (*entity.ParticipantSession, error) {
	if score == nil && tasksCompleted == nil {
		return nil, fmt.Errorf("at least one of score or tasks_completed is required: %w", apperrors.ErrValidation)
	}

	lock := s.lockFor(sessionID)
	lock.Lock()
	defer lock.Unlock()

	session, err := s.sessionRepo.GetByID(sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status != entity.SessionStatusLive {
		return nil, fmt.Errorf("session %d is not live (status=%s): %w", sessionID, session.Status, apperrors.ErrConflict)
	}

	ps, err := s.psRepo.GetBySessionAndParticipant(sessionID, participantID)
	if err != nil || !ps.IsActive {
		return nil, fmt.Errorf("participant %d has not joined session %d: %w",
			participantID, sessionID, apperrors.ErrNotFound)
	}

	ps.SetProgress(score, tasksCompleted)
	ps.LastActivityAt = time.Now()
	if err := s.psRepo.Update(ps); err != nil {
		return nil, err
	}

	entries, err := s.liveLeaderboard(session)
	if err != nil {
		log.Printf("[SessionService] Не удалось построить таблицу лидеров сессии %d: %v", sessionID, err)
		entries = nil
	}
	// В событие попадает только верхушка таблицы, как и в ответ API
	if limit := s.clampLeaderboardLimit(0); len(entries) > limit {
		entries = entries[:limit]
	}

	s.emit(sessionID, websocket.ScoreUpdated, websocket.ScoreUpdatedPayload{
		ParticipantID:  participantID,
		Score:          ps.Score,
		TasksCompleted: ps.TasksCompleted,
		Leaderboard:    entries,
	})
	return ps, nil
}

// End завершает сессию: фиксирует победителя и места одной транзакцией,
// затем, уже без блокировки сессии, выплачивает награду.
func (s *SessionService) End(ctx context.Context, sessionID, actorID uint, system bool) (*entity.Session, error) {
	session, winnerID, err := s.finish(sessionID, actorID, system)
	if err != nil {
		return nil, err
	}

	// Выплата идёт вне мьютекса сессии: транспорт может быть медленным,
	// а чтения таблицы лидеров не должны его ждать
	if winnerID != 0 && s.rewardService != nil {
		winner, werr := s.participantRepo.GetByID(winnerID)
		if werr != nil {
			log.Printf("[SessionService] Победитель %d сессии %d не найден: %v", winnerID, sessionID, werr)
		} else if _, werr := s.rewardService.AwardToken(ctx, session, winner); werr != nil {
			// Сессия остаётся завершённой: повторный запуск завершения
			// нарушил бы инварианты, выплату можно повторить отдельно
			log.Printf("[SessionService] Выплата награды за сессию %d не удалась: %v", sessionID, werr)
		}
	}

	if s.wsManager != nil {
		s.wsManager.Hub().CloseRoom(sessionID)
	}
	return session, nil
}

// EndAsSystem — точка входа реконсайлера
func (s *SessionService) EndAsSystem(ctx context.Context, sessionID uint) error {
	_, err := s.End(ctx, sessionID, 0, true)
	return err
}

func (s *SessionService) finish(sessionID, actorID uint, system bool) (*entity.Session, uint, error) {
	lock := s.lockFor(sessionID)
	lock.Lock()
	defer lock.Unlock()

	session, err := s.sessionRepo.GetByID(sessionID)
	if err != nil {
		return nil, 0, err
	}
	if !system && session.CreatorID != actorID {
		return nil, 0, fmt.Errorf("only the creator can end session %d: %w", sessionID, apperrors.ErrForbidden)
	}
	if session.IsTerminal() {
		return nil, 0, fmt.Errorf("session %d is already %s: %w", sessionID, session.Status, apperrors.ErrConflict)
	}

	active, err := s.psRepo.GetActiveBySession(sessionID)
	if err != nil {
		return nil, 0, err
	}
	outcome := s.engine.Evaluate(session, active)

	now := time.Now()
	session.Status = entity.SessionStatusEnded
	session.EndedAt = &now
	session.ScheduledEndAt = nil

	var winnerID uint
	if outcome.Winner != nil {
		winnerID = outcome.Winner.ParticipantID
		session.WinnerID = &winnerID
	}

	ranks := make(map[uint]int, len(outcome.Standings))
	for _, st := range outcome.Standings {
		ranks[st.ParticipantID] = st.Rank
	}

	tx := s.db.Begin()
	if tx.Error != nil {
		return nil, 0, tx.Error
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	if err := s.sessionRepo.UpdateInTx(tx, session); err != nil {
		tx.Rollback()
		return nil, 0, err
	}
	if err := s.psRepo.SaveFinalRanks(tx, sessionID, ranks); err != nil {
		tx.Rollback()
		return nil, 0, err
	}
	if winnerID != 0 {
		if err := s.participantRepo.RecordWin(tx, winnerID); err != nil {
			tx.Rollback()
			return nil, 0, err
		}
	}
	if err := tx.Commit().Error; err != nil {
		return nil, 0, err
	}

	s.dropLeaderboardCache(sessionID)

	var winnerEntry *websocket.LeaderboardEntry
	entries := standingsToEntries(outcome.Standings)
	if outcome.Winner != nil {
		entry := standingToEntry(*outcome.Winner)
		winnerEntry = &entry
	}
	s.emit(sessionID, websocket.SessionEnded, websocket.SessionEndedPayload{
		SessionID:   sessionID,
		Winner:      winnerEntry,
		Leaderboard: entries,
		EndedAt:     now,
	})

	log.Printf("[SessionService] Сессия %d завершена: участников=%d победитель=%d", sessionID, len(active), winnerID)
	return session, winnerID, nil
}

// Cancel отменяет сессию без подсчёта очков и выплат.
// Завершённую сессию отменить нельзя.
func (s *SessionService) Cancel(sessionID, actorID uint, system bool) (*entity.Session, error) {
	lock := s.lockFor(sessionID)
	lock.Lock()
	defer lock.Unlock()

	session, err := s.sessionRepo.GetByID(sessionID)
	if err != nil {
		return nil, err
	}
	if !system && session.CreatorID != actorID {
		return nil, fmt.Errorf("only the creator can cancel session %d: %w", sessionID, apperrors.ErrForbidden)
	}
	if session.IsTerminal() {
		return nil, fmt.Errorf("session %d is already %s: %w", sessionID, session.Status, apperrors.ErrConflict)
	}

	session.Status = entity.SessionStatusCancelled
	session.ScheduledEndAt = nil
	if err := s.sessionRepo.Update(session); err != nil {
		return nil, err
	}

	s.dropLeaderboardCache(sessionID)
	if s.wsManager != nil {
		s.wsManager.Hub().CloseRoom(sessionID)
	}

	log.Printf("[SessionService] Сессия %d отменена участником %d (system=%t)", sessionID, actorID, system)
	return session, nil
}

// GetLeaderboard возвращает таблицу лидеров сессии. Для завершённой
// сессии — зафиксированные места, для идущей — живой расчёт.
func (s *SessionService) GetLeaderboard(sessionID uint, limit int) ([]websocket.LeaderboardEntry, error) {
	limit = s.clampLeaderboardLimit(limit)

	session, err := s.sessionRepo.GetByID(sessionID)
	if err != nil {
		return nil, err
	}

	if session.Status == entity.SessionStatusEnded {
		finals, err := s.psRepo.GetFinalStandings(sessionID, limit)
		if err != nil {
			return nil, err
		}
		entries := make([]websocket.LeaderboardEntry, 0, len(finals))
		for _, ps := range finals {
			entries = append(entries, websocket.LeaderboardEntry{
				Rank:           ps.FinalRank,
				ParticipantID:  ps.ParticipantID,
				Handle:         ps.Handle,
				Score:          ps.Score,
				TasksCompleted: ps.TasksCompleted,
				JoinedAt:       ps.JoinedAt,
			})
		}
		return entries, nil
	}

	entries, err := s.liveLeaderboard(session)
	if err != nil {
		return nil, err
	}
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// clampLeaderboardLimit приводит лимит к настроенному значению по
// умолчанию и верхней границе
func (s *SessionService) clampLeaderboardLimit(limit int) int {
	if limit < 1 {
		limit = s.cfg.LeaderboardLimit
		if limit < 1 {
			limit = 10
		}
	}
	if limit > 100 {
		limit = 100
	}
	return limit
}

// ExportStandings возвращает полную таблицу лидеров сессии без
// ограничения размера — для выгрузки в файл.
func (s *SessionService) ExportStandings(sessionID uint) (*entity.Session, []websocket.LeaderboardEntry, error) {
	session, err := s.sessionRepo.GetByID(sessionID)
	if err != nil {
		return nil, nil, err
	}

	if session.Status == entity.SessionStatusEnded {
		finals, err := s.psRepo.GetFinalStandings(sessionID, 0)
		if err != nil {
			return nil, nil, err
		}
		entries := make([]websocket.LeaderboardEntry, 0, len(finals))
		for _, ps := range finals {
			entries = append(entries, websocket.LeaderboardEntry{
				Rank:           ps.FinalRank,
				ParticipantID:  ps.ParticipantID,
				Handle:         ps.Handle,
				Score:          ps.Score,
				TasksCompleted: ps.TasksCompleted,
				JoinedAt:       ps.JoinedAt,
			})
		}
		return session, entries, nil
	}

	entries, err := s.liveLeaderboard(session)
	if err != nil {
		return nil, nil, err
	}
	return session, entries, nil
}

// HandleDisconnect выполняет идемпотентный выход участника из всех
// сессий, на которые было подписано оборванное соединение.
func (s *SessionService) HandleDisconnect(participantID uint, sessionIDs []uint) {
	for _, sessionID := range sessionIDs {
		if err := s.Leave(sessionID, participantID); err != nil {
			// Выход мог уже случиться явно, а сессия — завершиться;
			// оба случая для очистки не ошибка
			if errors.Is(err, apperrors.ErrNotFound) || errors.Is(err, apperrors.ErrConflict) {
				continue
			}
			log.Printf("[SessionService] Очистка после обрыва: участник=%d сессия=%d: %v", participantID, sessionID, err)
		}
	}
}

// Snapshot строит снимок сессии для исходящих событий
func (s *SessionService) Snapshot(session *entity.Session) websocket.SessionSnapshot {
	return websocket.SessionSnapshot{
		ID:               session.ID,
		Title:            session.Title,
		Status:           session.Status,
		Strategy:         session.Strategy,
		ParticipantCount: session.ParticipantCount,
		MaxParticipants:  session.MaxParticipants,
		DurationMinutes:  session.DurationMinutes,
		StartedAt:        session.StartedAt,
		ScheduledEndAt:   session.ScheduledEndAt,
	}
}

func (s *SessionService) liveLeaderboard(session *entity.Session) ([]websocket.LeaderboardEntry, error) {
	cacheKey := fmt.Sprintf("session:%d:leaderboard", session.ID)
	if s.cacheRepo != nil {
		var cached []websocket.LeaderboardEntry
		if err := s.cacheRepo.GetJSON(cacheKey, &cached); err == nil {
			return cached, nil
		}
	}

	active, err := s.psRepo.GetActiveBySession(session.ID)
	if err != nil {
		return nil, err
	}
	entries := standingsToEntries(s.engine.Rank(session, active))

	if s.cacheRepo != nil {
		if err := s.cacheRepo.SetJSON(cacheKey, entries, leaderboardCacheTTL); err != nil {
			log.Printf("[SessionService] Не удалось закешировать таблицу лидеров сессии %d: %v", session.ID, err)
		}
	}
	return entries, nil
}

func (s *SessionService) dropLeaderboardCache(sessionID uint) {
	if s.cacheRepo == nil {
		return
	}
	if err := s.cacheRepo.Delete(fmt.Sprintf("session:%d:leaderboard", sessionID)); err != nil {
		log.Printf("[SessionService] Не удалось сбросить кеш таблицы лидеров сессии %d: %v", sessionID, err)
	}
}

func (s *SessionService) emit(sessionID uint, eventType string, payload interface{}) {
	if s.wsManager == nil {
		return
	}
	s.wsManager.BroadcastToSession(sessionID, eventType, payload)
}

func standingToEntry(st scoring.Standing) websocket.LeaderboardEntry {
	return websocket.LeaderboardEntry{
		Rank:           st.Rank,
		ParticipantID:  st.ParticipantID,
		Handle:         st.Handle,
		Score:          st.Score,
		TasksCompleted: st.TasksCompleted,
		JoinedAt:       st.JoinedAt,
	}
}

func standingsToEntries(standings []scoring.Standing) []websocket.LeaderboardEntry {
	entries := make([]websocket.LeaderboardEntry, 0, len(standings))
	for _, st := range standings {
		entries = append(entries, standingToEntry(st))
	}
	return entries
}
