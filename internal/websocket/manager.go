package websocket

import (
	"encoding/json"
	"fmt"
	"log"
)

// Event представляет структуру WebSocket-сообщения
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Manager обрабатывает входящие WebSocket-сообщения и отдаёт
// сервисам типизированные методы рассылки событий по комнатам.
type Manager struct {
	hub            *Hub
	messageHandler map[string]func(data json.RawMessage, client *Client) error
}

// NewManager создает новый менеджер WebSocket
func NewManager(hub *Hub) *Manager {
	return &Manager{
		hub:            hub,
		messageHandler: make(map[string]func(data json.RawMessage, client *Client) error),
	}
}

// Hub возвращает хаб менеджера
func (m *Manager) Hub() *Hub {
	return m.hub
}

// RegisterHandler регистрирует обработчик для типа входящих сообщений.
// Вызывается при старте процесса, до запуска обработки соединений.
func (m *Manager) RegisterHandler(eventType string, handler func(data json.RawMessage, client *Client) error) {
	m.messageHandler[eventType] = handler
	log.Printf("[WebSocketManager] Зарегистрирован обработчик для сообщений типа: %s", eventType)
}

// HandleMessage обрабатывает входящее сообщение от клиента.
// Возвращает error, если обработка не удалась и соединение нужно закрыть.
func (m *Manager) HandleMessage(message []byte, client *Client) error {
	var event Event
	if err := json.Unmarshal(message, &event); err != nil {
		log.Printf("[WebSocketManager] Не удалось разобрать сообщение от participant=%d: %v", client.ParticipantID, err)
		m.SendErrorToClient(client, "invalid_message_format", "Invalid JSON format")
		return err // Ошибка парсинга — закрываем соединение
	}

	handler, ok := m.messageHandler[event.Type]
	if !ok {
		m.SendErrorToClient(client, "unknown_message_type", fmt.Sprintf("Unknown message type: %s", event.Type))
		return nil // Неизвестный тип — соединение не закрываем
	}

	rawData, _ := json.Marshal(event.Data)
	if err := handler(rawData, client); err != nil {
		log.Printf("[WebSocketManager] Обработчик '%s' вернул ошибку для participant=%d: %v",
			event.Type, client.ParticipantID, err)
		return err
	}

	return nil
}

// SendErrorToClient отправляет сообщение об ошибке конкретному соединению.
// Соединение при этом не закрывается.
func (m *Manager) SendErrorToClient(client *Client, code string, message string) {
	m.SendEventToClient(client, ErrorMessage, ErrorPayload{Message: message, Code: code})
}

// SendEventToClient отправляет событие конкретному соединению
func (m *Manager) SendEventToClient(client *Client, eventType string, data interface{}) {
	if payload, ok := marshalOrLog(Event{Type: eventType, Data: data}); ok {
		m.hub.SendToClient(client, payload)
	}
}

// SendEventToParticipant отправляет событие всем соединениям участника
func (m *Manager) SendEventToParticipant(participantID uint, eventType string, data interface{}) {
	if payload, ok := marshalOrLog(Event{Type: eventType, Data: data}); ok {
		m.hub.SendToParticipant(participantID, payload)
	}
}

// BroadcastToSession отправляет событие всем соединениям в комнате сессии
func (m *Manager) BroadcastToSession(sessionID uint, eventType string, data interface{}) {
	if payload, ok := marshalOrLog(Event{Type: eventType, Data: data}); ok {
		m.hub.BroadcastToSession(sessionID, payload)
	}
}
