package websocket

import (
	"encoding/json"
	"log"
	"sync"
)

// Hub ведёт учёт активных соединений и комнат сессий и рассылает события.
// Каждая сессия отображается на одну комнату; соединение может состоять
// в нескольких комнатах одновременно.
type Hub struct {
	// Все активные клиенты
	clients sync.Map // *Client -> struct{}

	// Клиенты по ID участника. У участника может быть несколько
	// соединений (вкладки, устройства).
	participants sync.Map // uint -> *sync.Map (*Client -> struct{})

	// Комнаты сессий
	rooms sync.Map // uint (sessionID) -> *sync.Map (*Client -> struct{})

	register   chan *Client
	unregister chan *Client

	done chan struct{}

	// onDisconnect вызывается после снятия клиента со всех комнат,
	// чтобы менеджер жизненного цикла выполнил идемпотентные выходы
	onDisconnect   func(participantID uint, sessionIDs []uint)
	onDisconnectMu sync.RWMutex
}

// NewHub создает новый хаб
func NewHub() *Hub {
	return &Hub{
		register:   make(chan *Client, 64),
		unregister: make(chan *Client, 64),
		done:       make(chan struct{}),
	}
}

// SetDisconnectHandler задаёт обработчик обрыва соединения.
// Вызывается до запуска Run.
func (h *Hub) SetDisconnectHandler(fn func(participantID uint, sessionIDs []uint)) {
	h.onDisconnectMu.Lock()
	h.onDisconnect = fn
	h.onDisconnectMu.Unlock()
}

// Run обрабатывает регистрацию и отключение клиентов.
// Запускается одной горутиной при старте процесса.
func (h *Hub) Run() {
	log.Println("[Hub] Запущен")
	for {
		select {
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		case <-h.done:
			log.Println("[Hub] Остановлен")
			return
		}
	}
}

// Close останавливает хаб и закрывает все соединения
func (h *Hub) Close() {
	log.Printf("[Hub] Остановка, активных соединений: %d", h.ClientCount())
	close(h.done)
	h.clients.Range(func(key, _ interface{}) bool {
		if client, ok := key.(*Client); ok {
			client.CloseSend()
		}
		return true
	})
}

func (h *Hub) addClient(client *Client) {
	h.clients.Store(client, struct{}{})

	conns, _ := h.participants.LoadOrStore(client.ParticipantID, &sync.Map{})
	conns.(*sync.Map).Store(client, struct{}{})

	log.Printf("[Hub] Клиент зарегистрирован: participant=%d conn=%s", client.ParticipantID, client.ConnectionID)
}

func (h *Hub) removeClient(client *Client) {
	if _, loaded := h.clients.LoadAndDelete(client); !loaded {
		return
	}

	if conns, ok := h.participants.Load(client.ParticipantID); ok {
		conns.(*sync.Map).Delete(client)
	}

	// Снимаем соединение со всех комнат и собираем их список
	// для идемпотентной очистки членства
	sessionIDs := client.Rooms()
	for _, sessionID := range sessionIDs {
		h.leaveRoomLocked(client, sessionID)
	}

	client.CloseSend()
	log.Printf("[Hub] Клиент отключен: participant=%d conn=%s rooms=%d", client.ParticipantID, client.ConnectionID, len(sessionIDs))

	h.onDisconnectMu.RLock()
	fn := h.onDisconnect
	h.onDisconnectMu.RUnlock()
	if fn != nil && len(sessionIDs) > 0 {
		// Очистка членства не должна блокировать цикл хаба
		go fn(client.ParticipantID, sessionIDs)
	}
}

// JoinRoom добавляет соединение в комнату сессии.
// Повторная подписка на ту же комнату идемпотентна.
func (h *Hub) JoinRoom(client *Client, sessionID uint) {
	if client.InRoom(sessionID) {
		return
	}
	room, _ := h.rooms.LoadOrStore(sessionID, &sync.Map{})
	room.(*sync.Map).Store(client, struct{}{})
	client.rooms.Store(sessionID, struct{}{})
}

// LeaveRoom убирает соединение из комнаты сессии
func (h *Hub) LeaveRoom(client *Client, sessionID uint) {
	client.rooms.Delete(sessionID)
	h.leaveRoomLocked(client, sessionID)
}

func (h *Hub) leaveRoomLocked(client *Client, sessionID uint) {
	if room, ok := h.rooms.Load(sessionID); ok {
		room.(*sync.Map).Delete(client)
	}
}

// CloseRoom удаляет комнату целиком (после завершения сессии комната
// больше не нужна; подписки клиентов снимаются)
func (h *Hub) CloseRoom(sessionID uint) {
	if room, loaded := h.rooms.LoadAndDelete(sessionID); loaded {
		room.(*sync.Map).Range(func(key, _ interface{}) bool {
			if client, ok := key.(*Client); ok {
				client.rooms.Delete(sessionID)
			}
			return true
		})
	}
}

// BroadcastToSession отправляет сообщение всем соединениям в комнате сессии
func (h *Hub) BroadcastToSession(sessionID uint, message []byte) {
	room, ok := h.rooms.Load(sessionID)
	if !ok {
		return
	}

	room.(*sync.Map).Range(func(key, _ interface{}) bool {
		client, ok := key.(*Client)
		if !ok {
			return true
		}
		if !client.trySend(message) && !client.IsSendClosed() {
			// Буфер переполнен — отключаем отстающего клиента,
			// чтобы не задерживать рассылку остальным
			log.Printf("[Hub] Переполнен буфер отправки participant=%d conn=%s, соединение закрывается",
				client.ParticipantID, client.ConnectionID)
			client.CloseSend()
		}
		return true
	})
}

// SendToParticipant отправляет сообщение всем соединениям участника.
// Возвращает true, если у участника было хотя бы одно соединение.
func (h *Hub) SendToParticipant(participantID uint, message []byte) bool {
	conns, ok := h.participants.Load(participantID)
	if !ok {
		return false
	}

	sent := false
	conns.(*sync.Map).Range(func(key, _ interface{}) bool {
		client, ok := key.(*Client)
		if !ok {
			return true
		}
		if client.trySend(message) {
			sent = true
		} else if !client.IsSendClosed() {
			client.CloseSend()
		}
		return true
	})
	return sent
}

// SendToClient отправляет сообщение конкретному соединению
func (h *Hub) SendToClient(client *Client, message []byte) {
	if !client.trySend(message) && !client.IsSendClosed() {
		client.CloseSend()
	}
}

// RoomCount возвращает число соединений в комнате сессии
func (h *Hub) RoomCount(sessionID uint) int {
	room, ok := h.rooms.Load(sessionID)
	if !ok {
		return 0
	}
	count := 0
	room.(*sync.Map).Range(func(_, _ interface{}) bool {
		count++
		return true
	})
	return count
}

// ClientCount возвращает общее число активных соединений
func (h *Hub) ClientCount() int {
	count := 0
	h.clients.Range(func(_, _ interface{}) bool {
		count++
		return true
	})
	return count
}

// marshalOrLog сериализует событие, логируя ошибку вместо паники
func marshalOrLog(event interface{}) ([]byte, bool) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("[Hub] Ошибка сериализации события: %v", err)
		return nil, false
	}
	return data, true
}
