package websocket

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// Время, которое разрешено писать сообщение клиенту
	writeWait = 10 * time.Second

	// Время, которое разрешено клиенту читать следующее сообщение
	pongWait = 30 * time.Second

	// Периодичность отправки ping-сообщений клиенту
	pingPeriod = (pongWait * 9) / 10

	// Максимальный размер входящего сообщения
	maxMessageSize = 512

	// Размер буфера канала отправки сообщений клиенту
	defaultClientBufferSize = 128
)

var (
	newline = []byte{'\n'}
	space   = []byte{' '}
)

// Client является посредником между WebSocket-соединением и хабом.
// Одно соединение может состоять сразу в нескольких комнатах сессий.
type Client struct {
	// ID участника
	ParticipantID uint

	// Хендл участника, дублируется для логов и исходящих событий
	Handle string

	// Уникальный ID соединения
	ConnectionID string

	hub  *Hub
	conn *websocket.Conn

	// Буферизованный канал для исходящих сообщений
	send chan []byte

	// Сериализует запись в send относительно его закрытия: проверка
	// флага и сама отправка должны быть одной критической секцией,
	// иначе CloseSend из другой горутины приведёт к панике
	sendMu sync.Mutex

	// Флаг закрытия канала send
	sendClosed atomic.Bool

	// Комнаты (ID сессий), в которых состоит соединение
	rooms sync.Map

	lastActivity time.Time
}

// NewClient создает нового клиента
func NewClient(hub *Hub, conn *websocket.Conn, participantID uint, handle string) *Client {
	return &Client{
		ParticipantID: participantID,
		Handle:        handle,
		ConnectionID:  uuid.New().String(),
		hub:           hub,
		conn:          conn,
		send:          make(chan []byte, defaultClientBufferSize),
		lastActivity:  time.Now(),
	}
}

// Rooms возвращает список сессий, на которые подписано соединение
func (c *Client) Rooms() []uint {
	var ids []uint
	c.rooms.Range(func(key, _ interface{}) bool {
		if id, ok := key.(uint); ok {
			ids = append(ids, id)
		}
		return true
	})
	return ids
}

// InRoom проверяет подписку соединения на сессию
func (c *Client) InRoom(sessionID uint) bool {
	_, ok := c.rooms.Load(sessionID)
	return ok
}

// CloseSend безопасно закрывает канал send (только один раз).
// Возвращает true, если канал был закрыт этим вызовом.
func (c *Client) CloseSend() bool {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.sendClosed.CompareAndSwap(false, true) {
		close(c.send)
		return true
	}
	return false
}

// IsSendClosed проверяет, закрыт ли канал send
func (c *Client) IsSendClosed() bool {
	return c.sendClosed.Load()
}

// trySend кладёт сообщение в буфер соединения без блокировки.
// Возвращает false, если канал уже закрыт или буфер переполнен.
func (c *Client) trySend(message []byte) bool {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.sendClosed.Load() {
		return false
	}
	select {
	case c.send <- message:
		return true
	default:
		return false
	}
}

// StartPumps запускает горутины чтения и записи сообщений
func (c *Client) StartPumps(messageHandler func(message []byte, client *Client) error) {
	if c.ParticipantID == 0 {
		log.Printf("WebSocket: client has no ParticipantID, skipping registration")
		c.conn.Close()
		return
	}

	c.hub.register <- c

	go c.writePump()
	go c.readPump(messageHandler)
}

// readPump читает сообщения от клиента и передает их обработчику
func (c *Client) readPump(messageHandler func(message []byte, client *Client) error) {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
		log.Printf("WebSocket: read pump stopped for participant=%d conn=%s", c.ParticipantID, c.ConnectionID)
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		c.lastActivity = time.Now()
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				log.Printf("WebSocket: read error (participant=%d conn=%s): %v", c.ParticipantID, c.ConnectionID, err)
			}
			break
		}

		c.lastActivity = time.Now()

		if handlerErr := safeHandleMessage(message, c, messageHandler); handlerErr != nil {
			log.Printf("WebSocket: handler error (participant=%d conn=%s type=%s): %v. Closing connection.",
				c.ParticipantID, c.ConnectionID, messageTypeFromBytes(message), handlerErr)
			break
		}
	}
}

// safeHandleMessage — обертка для вызова обработчика с recover.
// Паника в обработчике фатальна только для этого соединения.
func safeHandleMessage(message []byte, client *Client, messageHandler func(message []byte, client *Client) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("PANIC recovered in message handler for participant=%d conn=%s. Panic: %v\nStack trace:\n%s",
				client.ParticipantID, client.ConnectionID, r, string(debug.Stack()))
			err = fmt.Errorf("panic recovered: %v", r)
		}
	}()
	message = bytes.TrimSpace(bytes.Replace(message, newline, space, -1))
	if messageHandler != nil {
		err = messageHandler(message, client)
	}
	return err
}

// writePump отправляет сообщения клиенту из канала send
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if !ok {
				// Канал send закрыт хабом
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			if _, err := w.Write(message); err != nil {
				log.Printf("WebSocket: write error (participant=%d conn=%s): %v", c.ParticipantID, c.ConnectionID, err)
			}
			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// messageTypeFromBytes извлекает тип сообщения из JSON для логов
func messageTypeFromBytes(message []byte) string {
	var event struct {
		Type string `json:"type"`
	}
	if json.Unmarshal(message, &event) == nil && event.Type != "" {
		return event.Type
	}
	return "unknown"
}
