package service

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/yourusername/arena-api/internal/domain/repository"
	apperrors "github.com/yourusername/arena-api/internal/pkg/errors"
)

// SessionFinisher завершает сессию от имени системы
type SessionFinisher interface {
	EndAsSystem(ctx context.Context, sessionID uint) error
}

// Reconciler периодически завершает идущие сессии с истёкшим сроком.
// Работает независимо от клиентских запросов: сессия закончится,
// даже если все её участники давно отключились.
type Reconciler struct {
	sessionRepo repository.SessionRepository
	finisher    SessionFinisher
	interval    time.Duration
}

// NewReconciler создает новый реконсайлер
func NewReconciler(sessionRepo repository.SessionRepository, finisher SessionFinisher, interval time.Duration) *Reconciler {
	if interval <= 0 {
		interval = 60 * time.Second
	}
	return &Reconciler{
		sessionRepo: sessionRepo,
		finisher:    finisher,
		interval:    interval,
	}
}

// Run запускает цикл реконсайлера до отмены контекста
func (r *Reconciler) Run(ctx context.Context) {
	log.Printf("[Reconciler] Запущен с интервалом %s", r.interval)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[Reconciler] Остановлен")
			return
		case <-ticker.C:
			r.Tick(ctx)
		}
	}
}

// Tick обрабатывает один проход: находит просроченные сессии и завершает
// каждую. Сбой одной сессии не прерывает обработку остальных.
func (r *Reconciler) Tick(ctx context.Context) {
	due, err := r.sessionRepo.FindDue(time.Now())
	if err != nil {
		log.Printf("[Reconciler] Ошибка выборки просроченных сессий: %v", err)
		return
	}
	if len(due) == 0 {
		return
	}

	log.Printf("[Reconciler] Найдено просроченных сессий: %d", len(due))
	for _, session := range due {
		if err := r.finisher.EndAsSystem(ctx, session.ID); err != nil {
			if errors.Is(err, apperrors.ErrConflict) {
				// Сессию успели завершить вручную между выборкой и обработкой
				continue
			}
			// Ошибка не фатальна: сессия попадёт в следующий проход
			log.Printf("[Reconciler] Не удалось завершить сессию %d: %v", session.ID, err)
		}
	}
}
