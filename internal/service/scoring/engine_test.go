package scoring

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourusername/arena-api/internal/domain/entity"
)

func makeParticipants(base time.Time) []entity.ParticipantSession {
	return []entity.ParticipantSession{
		{ParticipantID: 1, Handle: "alice", Score: 50, TasksCompleted: 7, JoinedAt: base},
		{ParticipantID: 2, Handle: "bob", Score: 80, TasksCompleted: 3, JoinedAt: base.Add(1 * time.Minute)},
		{ParticipantID: 3, Handle: "carol", Score: 80, TasksCompleted: 5, JoinedAt: base.Add(2 * time.Minute)},
		{ParticipantID: 4, Handle: "dave", Score: 10, TasksCompleted: 9, JoinedAt: base.Add(3 * time.Minute)},
	}
}

func TestEngine_Evaluate_PointsStrategy(t *testing.T) {
	// Arrange
	engine := NewEngineWithSource(rand.NewSource(1))
	base := time.Now()
	session := &entity.Session{Strategy: entity.StrategyPoints, PointsPerTask: 10}

	// Act
	outcome := engine.Evaluate(session, makeParticipants(base))

	// Assert
	require.NotNil(t, outcome.Winner, "Должен быть победитель")
	// carol и bob по 80 очков, у carol больше задач
	assert.Equal(t, uint(3), outcome.Winner.ParticipantID)
	assert.Equal(t, []uint{3, 2, 1, 4}, standingOrder(outcome.Standings))
	assert.Equal(t, []int{1, 2, 3, 4}, standingRanks(outcome.Standings))
}

func TestEngine_Evaluate_TasksStrategy(t *testing.T) {
	// Arrange
	engine := NewEngineWithSource(rand.NewSource(1))
	base := time.Now()
	session := &entity.Session{Strategy: entity.StrategyTasks, PointsPerTask: 10}

	// Act
	outcome := engine.Evaluate(session, makeParticipants(base))

	// Assert
	require.NotNil(t, outcome.Winner)
	// dave выполнил больше всех задач
	assert.Equal(t, uint(4), outcome.Winner.ParticipantID)
	assert.Equal(t, []uint{4, 1, 3, 2}, standingOrder(outcome.Standings))
}

func TestEngine_Evaluate_CombinedStrategy(t *testing.T) {
	// Arrange
	engine := NewEngineWithSource(rand.NewSource(1))
	base := time.Now()
	session := &entity.Session{Strategy: entity.StrategyCombined, PointsPerTask: 10}

	// Act
	outcome := engine.Evaluate(session, makeParticipants(base))

	// Assert
	require.NotNil(t, outcome.Winner)
	// Взвешенные очки: carol 130, alice 120, bob 110, dave 100
	assert.Equal(t, uint(3), outcome.Winner.ParticipantID)
	assert.Equal(t, []uint{3, 1, 2, 4}, standingOrder(outcome.Standings))
}

func TestEngine_Evaluate_CombinedWeightedTie(t *testing.T) {
	// Arrange
	engine := NewEngineWithSource(rand.NewSource(1))
	base := time.Now()
	session := &entity.Session{Strategy: entity.StrategyCombined, PointsPerTask: 10}
	participants := []entity.ParticipantSession{
		{ParticipantID: 2, Handle: "sprinter", Score: 60, TasksCompleted: 1, JoinedAt: base.Add(time.Minute)},
		{ParticipantID: 1, Handle: "grinder", Score: 50, TasksCompleted: 2, JoinedAt: base},
	}

	// Act
	outcome := engine.Evaluate(session, participants)

	// Assert
	// Взвешенные очки равны (50+2*10 == 60+1*10 == 70): выше тот,
	// кто выполнил больше задач, а не набрал больше сырых очков
	require.NotNil(t, outcome.Winner)
	assert.Equal(t, uint(1), outcome.Winner.ParticipantID)
	assert.Equal(t, []uint{1, 2}, standingOrder(outcome.Standings))
}

func TestEngine_Evaluate_TieBreakByJoinTime(t *testing.T) {
	// Arrange
	engine := NewEngineWithSource(rand.NewSource(1))
	base := time.Now()
	session := &entity.Session{Strategy: entity.StrategyPoints, PointsPerTask: 10}
	participants := []entity.ParticipantSession{
		{ParticipantID: 1, Handle: "late", Score: 42, TasksCompleted: 5, JoinedAt: base.Add(time.Minute)},
		{ParticipantID: 2, Handle: "early", Score: 42, TasksCompleted: 5, JoinedAt: base},
	}

	// Act
	outcome := engine.Evaluate(session, participants)

	// Assert
	// При равных показателях выше тот, кто присоединился раньше
	require.NotNil(t, outcome.Winner)
	assert.Equal(t, uint(2), outcome.Winner.ParticipantID)
	assert.Equal(t, []uint{2, 1}, standingOrder(outcome.Standings))
}

func TestEngine_Evaluate_RandomStrategy_WinnerFromActiveSet(t *testing.T) {
	// Arrange
	base := time.Now()
	session := &entity.Session{Strategy: entity.StrategyRandom, PointsPerTask: 10}
	participants := makeParticipants(base)

	// Act: при разных зернах победитель всегда из множества участников,
	// а порядок мест — канонический (по очкам)
	seen := map[uint]bool{}
	for seed := int64(0); seed < 20; seed++ {
		engine := NewEngineWithSource(rand.NewSource(seed))
		outcome := engine.Evaluate(session, participants)

		require.NotNil(t, outcome.Winner)
		seen[outcome.Winner.ParticipantID] = true
		assert.Equal(t, []uint{3, 2, 1, 4}, standingOrder(outcome.Standings),
			"Места при RANDOM считаются по очкам")
	}

	// Assert: за 20 прогонов выбор не вырождается в одного участника
	assert.Greater(t, len(seen), 1, "Победитель должен меняться от зерна к зерну")
	for id := range seen {
		assert.Contains(t, []uint{1, 2, 3, 4}, id)
	}
}

func TestEngine_Evaluate_RandomWinnerOverride(t *testing.T) {
	// Arrange: стратегия points, но включен случайный победитель
	base := time.Now()
	session := &entity.Session{
		Strategy:           entity.StrategyPoints,
		PointsPerTask:      10,
		EnableRandomWinner: true,
	}
	participants := makeParticipants(base)

	// Act
	engine := NewEngineWithSource(rand.NewSource(3))
	outcome := engine.Evaluate(session, participants)

	// Assert: места остаются по стратегии, победитель — из множества участников
	require.NotNil(t, outcome.Winner)
	assert.Contains(t, []uint{1, 2, 3, 4}, outcome.Winner.ParticipantID)
	assert.Equal(t, []uint{3, 2, 1, 4}, standingOrder(outcome.Standings))
}

func TestEngine_Evaluate_NoParticipants(t *testing.T) {
	// Arrange
	engine := NewEngineWithSource(rand.NewSource(1))
	session := &entity.Session{Strategy: entity.StrategyPoints, PointsPerTask: 10}

	// Act
	outcome := engine.Evaluate(session, nil)

	// Assert: пустая сессия завершается без победителя
	assert.Nil(t, outcome.Winner)
	assert.Empty(t, outcome.Standings)
}

func TestEngine_Rank_FullyDeterministic(t *testing.T) {
	// Arrange: полностью одинаковые показатели и время входа
	engine := NewEngine()
	base := time.Now()
	session := &entity.Session{Strategy: entity.StrategyPoints, PointsPerTask: 10}
	participants := []entity.ParticipantSession{
		{ParticipantID: 7, Score: 1, TasksCompleted: 1, JoinedAt: base},
		{ParticipantID: 5, Score: 1, TasksCompleted: 1, JoinedAt: base},
		{ParticipantID: 6, Score: 1, TasksCompleted: 1, JoinedAt: base},
	}

	// Act
	standings := engine.Rank(session, participants)

	// Assert: последний тай-брейк по ID делает порядок воспроизводимым
	assert.Equal(t, []uint{5, 6, 7}, standingOrder(standings))
}

func standingOrder(standings []Standing) []uint {
	order := make([]uint, 0, len(standings))
	for _, st := range standings {
		order = append(order, st.ParticipantID)
	}
	return order
}

func standingRanks(standings []Standing) []int {
	ranks := make([]int, 0, len(standings))
	for _, st := range standings {
		ranks = append(ranks, st.Rank)
	}
	return ranks
}
