package websocket

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Клиенты создаются без сетевого соединения: насосы не запускаются,
// сообщения читаются напрямую из буфера отправки.
func newTestClient(hub *Hub, participantID uint, handle string) *Client {
	return NewClient(hub, nil, participantID, handle)
}

func receivedMessage(t *testing.T, client *Client) []byte {
	t.Helper()
	select {
	case msg := <-client.send:
		return msg
	default:
		t.Fatal("Ожидалось сообщение в буфере клиента")
		return nil
	}
}

func TestClient_SendCloseRace(t *testing.T) {
	// Arrange
	client := newTestClient(nil, 1, "alice")

	// Act: конкурентные отправки и закрытие не должны паниковать
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				client.trySend([]byte("ping"))
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		client.CloseSend()
	}()
	wg.Wait()

	// Assert
	assert.True(t, client.IsSendClosed())
	assert.False(t, client.trySend([]byte("after")), "Отправка в закрытый канал должна возвращать false")
	assert.False(t, client.CloseSend(), "Повторное закрытие не должно срабатывать")
}

func TestHub_JoinRoom_Idempotent(t *testing.T) {
	// Arrange
	hub := NewHub()
	client := newTestClient(hub, 1, "alice")

	// Act
	hub.JoinRoom(client, 7)
	hub.JoinRoom(client, 7)

	// Assert
	assert.True(t, client.InRoom(7))
	assert.Equal(t, 1, hub.RoomCount(7))
	assert.ElementsMatch(t, []uint{7}, client.Rooms())

	hub.LeaveRoom(client, 7)
	assert.False(t, client.InRoom(7))
	assert.Equal(t, 0, hub.RoomCount(7))
}

func TestHub_BroadcastToSession_SkipsClosedClients(t *testing.T) {
	// Arrange
	hub := NewHub()
	alive := newTestClient(hub, 1, "alice")
	gone := newTestClient(hub, 2, "bob")
	hub.JoinRoom(alive, 7)
	hub.JoinRoom(gone, 7)
	gone.CloseSend()

	// Act
	hub.BroadcastToSession(7, []byte("event"))

	// Assert
	assert.Equal(t, []byte("event"), receivedMessage(t, alive))
	assert.True(t, gone.IsSendClosed())
}

func TestHub_SendToParticipant_AllConnections(t *testing.T) {
	// Arrange: у участника два соединения (две вкладки)
	hub := NewHub()
	first := newTestClient(hub, 1, "alice")
	second := newTestClient(hub, 1, "alice")
	stranger := newTestClient(hub, 2, "bob")
	hub.addClient(first)
	hub.addClient(second)
	hub.addClient(stranger)
	require.Equal(t, 3, hub.ClientCount())

	// Act
	sent := hub.SendToParticipant(1, []byte("direct"))

	// Assert
	assert.True(t, sent)
	assert.Equal(t, []byte("direct"), receivedMessage(t, first))
	assert.Equal(t, []byte("direct"), receivedMessage(t, second))
	assert.Empty(t, stranger.send)

	assert.False(t, hub.SendToParticipant(99, []byte("nobody")), "У незнакомого участника нет соединений")
}

func TestManager_SendEventToParticipant(t *testing.T) {
	// Arrange
	hub := NewHub()
	manager := NewManager(hub)
	client := newTestClient(hub, 1, "alice")
	hub.addClient(client)

	// Act
	manager.SendEventToParticipant(1, TokenRewarded, map[string]int{"session_id": 7})

	// Assert
	var event Event
	require.NoError(t, json.Unmarshal(receivedMessage(t, client), &event))
	assert.Equal(t, TokenRewarded, event.Type)
}

func TestMessageTypeFromBytes(t *testing.T) {
	assert.Equal(t, "session:join", messageTypeFromBytes([]byte(`{"type":"session:join","data":{}}`)))
	assert.Equal(t, "unknown", messageTypeFromBytes([]byte(`{"data":{}}`)))
	assert.Equal(t, "unknown", messageTypeFromBytes([]byte(`not json`)))
}
