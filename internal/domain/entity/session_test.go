package entity

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSession_IsTerminal(t *testing.T) {
	cases := []struct {
		status   string
		terminal bool
	}{
		{SessionStatusWaiting, false},
		{SessionStatusLive, false},
		{SessionStatusEnded, true},
		{SessionStatusCancelled, true},
	}
	for _, tc := range cases {
		s := &Session{Status: tc.status}
		assert.Equal(t, tc.terminal, s.IsTerminal(), "статус %s", tc.status)
	}
}

func TestSession_IsJoinable(t *testing.T) {
	// В ожидании — можно войти
	s := &Session{Status: SessionStatusWaiting, ParticipantCount: 0, MaxParticipants: 2}
	assert.True(t, s.IsJoinable())

	// Идущая с местами — тоже можно (поздний вход)
	s = &Session{Status: SessionStatusLive, ParticipantCount: 1, MaxParticipants: 2}
	assert.True(t, s.IsJoinable())

	// Мест нет
	s = &Session{Status: SessionStatusLive, ParticipantCount: 2, MaxParticipants: 2}
	assert.False(t, s.IsJoinable())

	// Терминальные состояния закрыты для входа
	s = &Session{Status: SessionStatusEnded, ParticipantCount: 0, MaxParticipants: 2}
	assert.False(t, s.IsJoinable())
	s = &Session{Status: SessionStatusCancelled, ParticipantCount: 0, MaxParticipants: 2}
	assert.False(t, s.IsJoinable())
}

func TestValidStrategy(t *testing.T) {
	for _, strategy := range []string{StrategyPoints, StrategyTasks, StrategyRandom, StrategyCombined} {
		assert.True(t, ValidStrategy(strategy), strategy)
	}
	assert.False(t, ValidStrategy("luck"))
	assert.False(t, ValidStrategy(""))
}

func TestExtensionMap_Validate(t *testing.T) {
	// Скалярные значения проходят
	m := ExtensionMap{"theme": "dark", "tries": float64(3), "open": true}
	assert.NoError(t, m.Validate())

	// nil не считается скаляром
	assert.Error(t, ExtensionMap{"empty": nil}.Validate())

	// Вложенные структуры запрещены
	m = ExtensionMap{"nested": map[string]interface{}{"a": 1}}
	assert.Error(t, m.Validate())
	m = ExtensionMap{"list": []interface{}{1, 2}}
	assert.Error(t, m.Validate())

	// Лимиты на число ключей и длины
	big := ExtensionMap{}
	for i := 0; i <= MaxExtensionKeys; i++ {
		big[strings.Repeat("k", 2)+string(rune('a'+i))] = "v"
	}
	assert.Error(t, big.Validate())

	m = ExtensionMap{strings.Repeat("k", MaxExtensionKeyLen+1): "v"}
	assert.Error(t, m.Validate())
	m = ExtensionMap{"k": strings.Repeat("v", MaxExtensionValueLen+1)}
	assert.Error(t, m.Validate())
}

func TestParticipantSession_SetProgress(t *testing.T) {
	ps := &ParticipantSession{Score: 10, TasksCompleted: 2, JoinedAt: time.Now()}

	// Частичное обновление: только очки
	score := 25
	ps.SetProgress(&score, nil)
	assert.Equal(t, 25, ps.Score)
	assert.Equal(t, 2, ps.TasksCompleted)

	// Только задачи
	tasks := 5
	ps.SetProgress(nil, &tasks)
	assert.Equal(t, 25, ps.Score)
	assert.Equal(t, 5, ps.TasksCompleted)

	// Отрицательные значения приводятся к нулю
	neg := -7
	ps.SetProgress(&neg, &neg)
	assert.Equal(t, 0, ps.Score)
	assert.Equal(t, 0, ps.TasksCompleted)
}
