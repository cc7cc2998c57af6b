package handler

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	gorillaws "github.com/gorilla/websocket"
	"github.com/yourusername/arena-api/internal/service"
	"github.com/yourusername/arena-api/internal/websocket"
	"github.com/yourusername/arena-api/pkg/auth"
)

// WSHandler обрабатывает WebSocket соединения
type WSHandler struct {
	wsHub          *websocket.Hub
	wsManager      *websocket.Manager
	sessionService *service.SessionService
	jwtService     *auth.JWTService
}

// NewWSHandler создает новый обработчик WebSocket
func NewWSHandler(
	wsHub *websocket.Hub,
	wsManager *websocket.Manager,
	sessionService *service.SessionService,
	jwtService *auth.JWTService,
) *WSHandler {
	handler := &WSHandler{
		wsHub:          wsHub,
		wsManager:      wsManager,
		sessionService: sessionService,
		jwtService:     jwtService,
	}

	// Регистрируем обработчики сообщений один раз при создании обработчика
	handler.registerMessageHandlers()

	return handler
}

var upgrader = gorillaws.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")

		// Пустой Origin - не браузерный клиент (мобильное приложение, curl и т.д.)
		if origin == "" {
			return true
		}

		// Список разрешенных origin (синхронизирован с CORS в main.go)
		allowedOrigins := []string{
			"http://localhost:5173",
			"http://localhost:8000",
			"http://localhost:3000",
		}

		for _, allowed := range allowedOrigins {
			if origin == allowed {
				return true
			}
		}

		log.Printf("WebSocket: rejected unauthorized origin: %s", origin)
		return false
	},
	EnableCompression: true,
}

// HandleConnection обрабатывает входящее WebSocket соединение.
// Аутентификация — краткоживущим тикетом в query (?ticket=...),
// чтобы не светить основной access токен в URL.
func (h *WSHandler) HandleConnection(c *gin.Context) {
	ticket := c.Query("ticket")
	if ticket == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Missing authentication ticket parameter"})
		return
	}

	claims, err := h.jwtService.ParseWSTicket(ticket)
	if err != nil {
		log.Printf("WebSocket: Invalid or expired ticket - %v", err)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired ticket"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("Error upgrading connection: %v", err)
		return
	}

	log.Printf("WebSocket: Connection upgraded for ParticipantID: %d", claims.ParticipantID)

	client := websocket.NewClient(h.wsHub, conn, claims.ParticipantID, claims.Handle)
	client.StartPumps(h.wsManager.HandleMessage)
}

// registerMessageHandlers регистрирует обработчики для различных типов сообщений
func (h *WSHandler) registerMessageHandlers() {
	// Подписка соединения на комнату сессии
	h.wsManager.RegisterHandler(websocket.ClientSessionJoin, func(data json.RawMessage, client *websocket.Client) error {
		var joinEvent struct {
			SessionID uint `json:"session_id"`
		}
		// Ошибка парсинга фатальна для этого сообщения
		if err := json.Unmarshal(data, &joinEvent); err != nil {
			log.Printf("[WSHandler] Ошибка парсинга %s: %v, Data: %s", websocket.ClientSessionJoin, err, string(data))
			h.wsManager.SendErrorToClient(client, "invalid_format", "Failed to parse session:join event")
			return fmt.Errorf("failed to parse session:join event: %w", err)
		}
		if joinEvent.SessionID == 0 {
			h.wsManager.SendErrorToClient(client, "invalid_format", "session_id is required")
			return nil
		}

		session, members, err := h.sessionService.Get(joinEvent.SessionID)
		if err != nil {
			log.Printf("[WSHandler] Участник %d запросил подписку на несуществующую сессию %d: %v", client.ParticipantID, joinEvent.SessionID, err)
			h.wsManager.SendErrorToClient(client, "session_not_found", fmt.Sprintf("Session %d not found", joinEvent.SessionID))
			return nil
		}

		// Подписка только для активных членов сессии
		isMember := false
		for i := range members {
			if members[i].ParticipantID == client.ParticipantID && members[i].IsActive {
				isMember = true
				break
			}
		}
		if !isMember {
			h.wsManager.SendErrorToClient(client, "not_a_member", fmt.Sprintf("Join session %d before subscribing", joinEvent.SessionID))
			return nil
		}

		h.wsHub.JoinRoom(client, joinEvent.SessionID)
		log.Printf("[WSHandler] Участник %d подписан на сессию %d", client.ParticipantID, joinEvent.SessionID)

		h.wsManager.SendEventToClient(client, websocket.SessionJoined, websocket.SessionJoinedPayload{
			SessionID:        session.ID,
			ParticipantCount: session.ParticipantCount,
			Session:          h.sessionService.Snapshot(session),
		})
		return nil
	})

	// Отписка соединения от комнаты сессии
	h.wsManager.RegisterHandler(websocket.ClientSessionLeave, func(data json.RawMessage, client *websocket.Client) error {
		var leaveEvent struct {
			SessionID uint `json:"session_id"`
		}
		if err := json.Unmarshal(data, &leaveEvent); err != nil {
			log.Printf("[WSHandler] Ошибка парсинга %s: %v, Data: %s", websocket.ClientSessionLeave, err, string(data))
			h.wsManager.SendErrorToClient(client, "invalid_format", "Failed to parse session:leave event")
			return fmt.Errorf("failed to parse session:leave event: %w", err)
		}

		h.wsHub.LeaveRoom(client, leaveEvent.SessionID)
		log.Printf("[WSHandler] Участник %d отписан от сессии %d", client.ParticipantID, leaveEvent.SessionID)

		h.wsManager.SendEventToClient(client, websocket.SessionLeft, websocket.SessionLeftPayload{
			SessionID: leaveEvent.SessionID,
		})
		return nil
	})
}
