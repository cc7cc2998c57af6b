package handler

import (
	"encoding/csv"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"
	"github.com/yourusername/arena-api/internal/domain/entity"
	"github.com/yourusername/arena-api/internal/handler/dto"
	"github.com/yourusername/arena-api/internal/middleware"
	apperrors "github.com/yourusername/arena-api/internal/pkg/errors"
	"github.com/yourusername/arena-api/internal/service"
	"github.com/yourusername/arena-api/internal/websocket"
)

// SessionHandler обрабатывает запросы, связанные с сессиями
type SessionHandler struct {
	sessionService *service.SessionService
	rewardService  *service.RewardService
}

// NewSessionHandler создает новый обработчик сессий
func NewSessionHandler(sessionService *service.SessionService, rewardService *service.RewardService) *SessionHandler {
	return &SessionHandler{
		sessionService: sessionService,
		rewardService:  rewardService,
	}
}

// CreateSessionRequest представляет запрос на создание сессии
type CreateSessionRequest struct {
	Title                  string              `json:"title" binding:"required,min=3,max=100"`
	DurationMinutes        int                 `json:"duration_minutes" binding:"required,min=1"`
	MinParticipantsToStart int                 `json:"min_participants_to_start"`
	MaxParticipants        int                 `json:"max_participants" binding:"required,min=1"`
	Strategy               string              `json:"strategy"`
	PointsPerTask          int                 `json:"points_per_task"`
	EnableRandomWinner     bool                `json:"enable_random_winner"`
	AutoStart              bool                `json:"auto_start"`
	AutoEnd                bool                `json:"auto_end"`
	Extensions             entity.ExtensionMap `json:"extensions"`
}

// UpdateScoreRequest представляет запрос на обновление прогресса участника
type UpdateScoreRequest struct {
	Score          *int `json:"score"`
	TasksCompleted *int `json:"tasks_completed"`
}

// CreateSession обрабатывает запрос на создание сессии
func (h *SessionHandler) CreateSession(c *gin.Context) {
	var req CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	creatorID := c.MustGet(middleware.ContextParticipantID).(uint)

	session, err := h.sessionService.Create(creatorID, service.CreateSessionInput{
		Title:                  req.Title,
		DurationMinutes:        req.DurationMinutes,
		MinParticipantsToStart: req.MinParticipantsToStart,
		MaxParticipants:        req.MaxParticipants,
		Strategy:               req.Strategy,
		PointsPerTask:          req.PointsPerTask,
		EnableRandomWinner:     req.EnableRandomWinner,
		AutoStart:              req.AutoStart,
		AutoEnd:                req.AutoEnd,
		Extensions:             req.Extensions,
	})
	if err != nil {
		h.handleSessionError(c, err)
		return
	}

	log.Printf("[SessionHandler] Сессия ID=%d (%s) создана участником %d", session.ID, session.Title, creatorID)
	c.JSON(http.StatusCreated, dto.NewSessionResponse(session))
}

// ListSessions возвращает пагинированный список сессий
func (h *SessionHandler) ListSessions(c *gin.Context) {
	status := c.Query("status")
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("per_page", "10"))

	sessions, total, err := h.sessionService.List(status, page, pageSize)
	if err != nil {
		h.handleSessionError(c, err)
		return
	}

	resp := dto.PaginatedSessionsResponse{
		Sessions: make([]*dto.SessionResponse, 0, len(sessions)),
		Total:    total,
		Page:     page,
		PerPage:  pageSize,
	}
	for i := range sessions {
		resp.Sessions = append(resp.Sessions, dto.NewSessionResponse(&sessions[i]))
	}
	c.JSON(http.StatusOK, resp)
}

// GetSession возвращает сессию вместе с записями участия
func (h *SessionHandler) GetSession(c *gin.Context) {
	sessionID := c.MustGet("sessionID").(uint)

	session, members, err := h.sessionService.Get(sessionID)
	if err != nil {
		h.handleSessionError(c, err)
		return
	}

	resp := dto.SessionDetailResponse{
		Session: dto.NewSessionResponse(session),
		Members: make([]*dto.MembershipResponse, 0, len(members)),
	}
	for i := range members {
		resp.Members = append(resp.Members, dto.NewMembershipResponse(&members[i]))
	}
	c.JSON(http.StatusOK, resp)
}

// JoinSession присоединяет текущего участника к сессии
func (h *SessionHandler) JoinSession(c *gin.Context) {
	sessionID := c.MustGet("sessionID").(uint)
	participantID := c.MustGet(middleware.ContextParticipantID).(uint)

	session, membership, err := h.sessionService.Join(sessionID, participantID)
	if err != nil {
		h.handleSessionError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"session":    dto.NewSessionResponse(session),
		"membership": dto.NewMembershipResponse(membership),
	})
}

// LeaveSession выводит текущего участника из сессии
func (h *SessionHandler) LeaveSession(c *gin.Context) {
	sessionID := c.MustGet("sessionID").(uint)
	participantID := c.MustGet(middleware.ContextParticipantID).(uint)

	if err := h.sessionService.Leave(sessionID, participantID); err != nil {
		h.handleSessionError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Left session"})
}

// UpdateScore обновляет прогресс текущего участника в сессии
func (h *SessionHandler) UpdateScore(c *gin.Context) {
	var req UpdateScoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sessionID := c.MustGet("sessionID").(uint)
	participantID := c.MustGet(middleware.ContextParticipantID).(uint)

	membership, err := h.sessionService.UpdateScore(sessionID, participantID, req.Score, req.TasksCompleted)
	if err != nil {
		h.handleSessionError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewMembershipResponse(membership))
}

// EndSession завершает сессию с подведением итогов
func (h *SessionHandler) EndSession(c *gin.Context) {
	sessionID := c.MustGet("sessionID").(uint)
	actorID := c.MustGet(middleware.ContextParticipantID).(uint)

	session, err := h.sessionService.End(c.Request.Context(), sessionID, actorID, false)
	if err != nil {
		h.handleSessionError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewSessionResponse(session))
}

// CancelSession отменяет сессию без подведения итогов
func (h *SessionHandler) CancelSession(c *gin.Context) {
	sessionID := c.MustGet("sessionID").(uint)
	actorID := c.MustGet(middleware.ContextParticipantID).(uint)

	session, err := h.sessionService.Cancel(sessionID, actorID, false)
	if err != nil {
		h.handleSessionError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewSessionResponse(session))
}

// GetLeaderboard возвращает таблицу лидеров сессии
func (h *SessionHandler) GetLeaderboard(c *gin.Context) {
	sessionID := c.MustGet("sessionID").(uint)
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))

	entries, err := h.sessionService.GetLeaderboard(sessionID, limit)
	if err != nil {
		h.handleSessionError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"leaderboard": entries})
}

// GetReward возвращает запись о награде за сессию
func (h *SessionHandler) GetReward(c *gin.Context) {
	sessionID := c.MustGet("sessionID").(uint)

	reward, err := h.rewardService.GetBySession(sessionID)
	if err != nil {
		h.handleSessionError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewRewardResponse(reward))
}

// RetryReward повторяет неудавшуюся выплату награды
func (h *SessionHandler) RetryReward(c *gin.Context) {
	sessionID := c.MustGet("sessionID").(uint)

	reward, err := h.rewardService.GetBySession(sessionID)
	if err != nil {
		h.handleSessionError(c, err)
		return
	}

	reward, err = h.rewardService.Retry(c.Request.Context(), reward.ID)
	if err != nil {
		h.handleSessionError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewRewardResponse(reward))
}

// ExportLeaderboard экспортирует таблицу лидеров сессии в CSV или Excel формате
// Формат выбирается через query параметр ?format=csv|xlsx (по умолчанию csv)
func (h *SessionHandler) ExportLeaderboard(c *gin.Context) {
	sessionID := c.MustGet("sessionID").(uint)
	format := c.DefaultQuery("format", "csv")

	// Полная таблица без пагинации для экспорта
	session, entries, err := h.sessionService.ExportStandings(sessionID)
	if err != nil {
		h.handleSessionError(c, err)
		return
	}

	filename := fmt.Sprintf("session_%d_leaderboard_%s", sessionID, time.Now().Format("2006-01-02"))

	switch format {
	case "xlsx":
		h.exportXLSX(c, entries, session, filename)
	default:
		h.exportCSV(c, entries, session, filename)
	}
}

// exportCSV экспортирует таблицу лидеров в CSV
func (h *SessionHandler) exportCSV(c *gin.Context, entries []websocket.LeaderboardEntry, session *entity.Session, filename string) {
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s.csv\"", filename))

	// BOM для корректного отображения UTF-8 в Excel
	c.Writer.Write([]byte{0xEF, 0xBB, 0xBF})

	// Используем encoding/csv для правильного экранирования запятых/кавычек
	writer := csv.NewWriter(c.Writer)
	defer writer.Flush()

	// Заголовки
	writer.Write([]string{"Место", "Участник", "Очки", "Задач выполнено", "Победитель", "Время входа"})

	for _, e := range entries {
		winner := "Нет"
		if session.WinnerID != nil && *session.WinnerID == e.ParticipantID {
			winner = "Да"
		}
		writer.Write([]string{
			strconv.Itoa(e.Rank),
			sanitizeForExcel(e.Handle),
			strconv.Itoa(e.Score),
			strconv.Itoa(e.TasksCompleted),
			winner,
			e.JoinedAt.Format(time.RFC3339),
		})
	}
}

// exportXLSX экспортирует таблицу лидеров в Excel с использованием StreamWriter
func (h *SessionHandler) exportXLSX(c *gin.Context, entries []websocket.LeaderboardEntry, session *entity.Session, filename string) {
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s.xlsx\"", filename))

	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Таблица лидеров"
	f.SetSheetName("Sheet1", sheetName)

	sw, err := f.NewStreamWriter(sheetName)
	if err != nil {
		log.Printf("[SessionHandler] Ошибка создания StreamWriter: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create Excel file"})
		return
	}

	headers := []interface{}{"Место", "Участник", "Очки", "Задач выполнено", "Победитель", "Время входа"}
	if err := sw.SetRow("A1", headers); err != nil {
		log.Printf("[SessionHandler] Ошибка записи заголовков: %v", err)
	}

	for i, e := range entries {
		rowNum := i + 2 // Первая строка занята заголовками
		cell := fmt.Sprintf("A%d", rowNum)

		winner := "Нет"
		if session.WinnerID != nil && *session.WinnerID == e.ParticipantID {
			winner = "Да"
		}

		row := []interface{}{e.Rank, sanitizeForExcel(e.Handle), e.Score, e.TasksCompleted, winner, e.JoinedAt.Format(time.RFC3339)}
		if err := sw.SetRow(cell, row); err != nil {
			log.Printf("[SessionHandler] Ошибка записи строки %d: %v", rowNum, err)
		}
	}

	if err := sw.Flush(); err != nil {
		log.Printf("[SessionHandler] Ошибка при Flush: %v", err)
	}

	if err := f.Write(c.Writer); err != nil {
		log.Printf("[SessionHandler] Ошибка записи Excel в response: %v", err)
	}
}

// sanitizeForExcel экранирует данные для защиты от formula injection в Excel/CSV
func sanitizeForExcel(s string) string {
	if len(s) == 0 {
		return s
	}
	// Символы, начинающие формулу в Excel/LibreOffice: = + - @ \t \r
	if s[0] == '=' || s[0] == '+' || s[0] == '-' || s[0] == '@' || s[0] == '\t' || s[0] == '\r' {
		return "'" + s
	}
	return s
}

// handleSessionError обрабатывает ошибки сервисов сессий стандартизированным способом
func (h *SessionHandler) handleSessionError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, apperrors.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, apperrors.ErrValidation):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, apperrors.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	case errors.Is(err, apperrors.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	default:
		log.Printf("[SessionHandler] Внутренняя ошибка: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
