package handler

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/yourusername/arena-api/internal/handler/dto"
	"github.com/yourusername/arena-api/internal/middleware"
	apperrors "github.com/yourusername/arena-api/internal/pkg/errors"
	"github.com/yourusername/arena-api/internal/service"
)

// ParticipantHandler обрабатывает запросы, связанные с участниками
type ParticipantHandler struct {
	participantService *service.ParticipantService
}

// NewParticipantHandler создает новый обработчик участников
func NewParticipantHandler(participantService *service.ParticipantService) *ParticipantHandler {
	return &ParticipantHandler{participantService: participantService}
}

// GetMe возвращает профиль текущего участника
func (h *ParticipantHandler) GetMe(c *gin.Context) {
	participantID := c.MustGet(middleware.ContextParticipantID).(uint)

	participant, err := h.participantService.GetByID(participantID)
	if err != nil {
		h.handleParticipantError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewParticipantResponse(participant))
}

// GetMyRewards возвращает награды текущего участника
func (h *ParticipantHandler) GetMyRewards(c *gin.Context) {
	participantID := c.MustGet(middleware.ContextParticipantID).(uint)
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("per_page", "10"))

	rewards, err := h.participantService.GetRewards(participantID, page, pageSize)
	if err != nil {
		h.handleParticipantError(c, err)
		return
	}

	resp := make([]*dto.RewardResponse, 0, len(rewards))
	for i := range rewards {
		resp = append(resp, dto.NewRewardResponse(&rewards[i]))
	}
	c.JSON(http.StatusOK, gin.H{"rewards": resp, "page": page, "per_page": pageSize})
}

// GetGlobalLeaderboard возвращает глобальный лидерборд участников
// по числу побед и сумме заработанных наград
func (h *ParticipantHandler) GetGlobalLeaderboard(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("per_page", "10"))

	participants, total, err := h.participantService.GetLeaderboard(page, pageSize)
	if err != nil {
		h.handleParticipantError(c, err)
		return
	}

	resp := dto.PaginatedLeaderboardResponse{
		Rows:    make([]*dto.LeaderboardRow, 0, len(participants)),
		Total:   total,
		Page:    page,
		PerPage: pageSize,
	}
	for i := range participants {
		p := &participants[i]
		resp.Rows = append(resp.Rows, &dto.LeaderboardRow{
			Rank:              (page-1)*pageSize + i + 1,
			ParticipantID:     p.ID,
			Handle:            p.Handle,
			SessionsWon:       p.SessionsWon,
			TotalRewardEarned: p.TotalRewardEarned,
		})
	}
	c.JSON(http.StatusOK, resp)
}

// handleParticipantError обрабатывает ошибки сервиса участников стандартизированным способом
func (h *ParticipantHandler) handleParticipantError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, apperrors.ErrValidation):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	default:
		log.Printf("[ParticipantHandler] Внутренняя ошибка: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
