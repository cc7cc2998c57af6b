// Package scoring вычисляет победителя и места участников завершённой
// сессии. Пакет чистый: не трогает БД и не шлёт событий, работает только
// над переданными записями участия.
package scoring

import (
	"math/rand"
	"sort"
	"time"

	"github.com/yourusername/arena-api/internal/domain/entity"
)

// Standing — одна строка итоговой таблицы
type Standing struct {
	ParticipantID  uint
	Handle         string
	Score          int
	TasksCompleted int
	JoinedAt       time.Time
	Rank           int
}

// Outcome — результат работы движка: победитель (nil, если активных
// участников не было) и полная таблица мест
type Outcome struct {
	Winner    *Standing
	Standings []Standing
}

// Engine выбирает победителя по стратегии сессии.
// Источник случайности инжектируется для воспроизводимости в тестах.
type Engine struct {
	rng *rand.Rand
}

// NewEngine создает движок со случайным зерном
func NewEngine() *Engine {
	return NewEngineWithSource(rand.NewSource(time.Now().UnixNano()))
}

// NewEngineWithSource создает движок с заданным источником случайности
func NewEngineWithSource(src rand.Source) *Engine {
	return &Engine{rng: rand.New(src)}
}

// Rank строит таблицу мест без выбора победителя. Используется и при
// завершении сессии, и для живой таблицы лидеров.
func (e *Engine) Rank(session *entity.Session, participants []entity.ParticipantSession) []Standing {
	standings := make([]Standing, 0, len(participants))
	for _, ps := range participants {
		standings = append(standings, Standing{
			ParticipantID:  ps.ParticipantID,
			Handle:         ps.Handle,
			Score:          ps.Score,
			TasksCompleted: ps.TasksCompleted,
			JoinedAt:       ps.JoinedAt,
		})
	}

	// Порядок мест определяет компаратор активной стратегии. Для RANDOM
	// канонический порядок мест — по очкам; случайность относится только
	// к выбору победителя.
	rankStrategy := session.Strategy
	if rankStrategy == entity.StrategyRandom {
		rankStrategy = entity.StrategyPoints
	}

	less := comparator(rankStrategy, session.PointsPerTask)
	sort.SliceStable(standings, func(i, j int) bool {
		return less(&standings[i], &standings[j])
	})
	for i := range standings {
		standings[i].Rank = i + 1
	}
	return standings
}

// Evaluate строит таблицу мест и выбирает победителя.
// Вызывается только для активных на момент завершения участников.
func (e *Engine) Evaluate(session *entity.Session, participants []entity.ParticipantSession) *Outcome {
	if len(participants) == 0 {
		return &Outcome{}
	}

	standings := e.Rank(session, participants)

	var winner Standing
	if session.Strategy == entity.StrategyRandom || session.EnableRandomWinner {
		// Равномерный выбор из активного множества; таблица мест
		// при этом остаётся в порядке сконфигурированной стратегии
		winner = standings[e.rng.Intn(len(standings))]
	} else {
		winner = standings[0]
	}

	return &Outcome{Winner: &winner, Standings: standings}
}

// comparator возвращает строгий порядок "i выше j" для стратегии.
// Последнее сравнение по ParticipantID делает порядок полным и
// воспроизводимым при полностью одинаковых показателях.
func comparator(strategy string, pointsPerTask int) func(a, b *Standing) bool {
	switch strategy {
	case entity.StrategyTasks:
		return func(a, b *Standing) bool {
			if a.TasksCompleted != b.TasksCompleted {
				return a.TasksCompleted > b.TasksCompleted
			}
			if a.Score != b.Score {
				return a.Score > b.Score
			}
			if !a.JoinedAt.Equal(b.JoinedAt) {
				return a.JoinedAt.Before(b.JoinedAt)
			}
			return a.ParticipantID < b.ParticipantID
		}
	case entity.StrategyCombined:
		return func(a, b *Standing) bool {
			wa := a.Score + a.TasksCompleted*pointsPerTask
			wb := b.Score + b.TasksCompleted*pointsPerTask
			if wa != wb {
				return wa > wb
			}
			// При равном взвешенном счёте выше тот, кто выполнил
			// больше задач: стратегия премирует именно задачи
			if a.TasksCompleted != b.TasksCompleted {
				return a.TasksCompleted > b.TasksCompleted
			}
			if a.Score != b.Score {
				return a.Score > b.Score
			}
			if !a.JoinedAt.Equal(b.JoinedAt) {
				return a.JoinedAt.Before(b.JoinedAt)
			}
			return a.ParticipantID < b.ParticipantID
		}
	default: // points
		return func(a, b *Standing) bool {
			if a.Score != b.Score {
				return a.Score > b.Score
			}
			if a.TasksCompleted != b.TasksCompleted {
				return a.TasksCompleted > b.TasksCompleted
			}
			if !a.JoinedAt.Equal(b.JoinedAt) {
				return a.JoinedAt.Before(b.JoinedAt)
			}
			return a.ParticipantID < b.ParticipantID
		}
	}
}
