package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/assistmate/assistmate-backend/internal/service"
)

// ChatHandler обслуживает историю переписки.
type ChatHandler struct {
	chats *service.ChatService
}

// NewChatHandler создаёт новый хэндлер.
func NewChatHandler(chats *service.ChatService) *ChatHandler {
	return &ChatHandler{chats: chats}
}

// History обрабатывает GET /api/chats/:requestId: переписка по заявке,
// доступна только её участникам.
func (h *ChatHandler) History(c *gin.Context) {
	user, err := currentUser(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	requestID, err := uuid.Parse(c.Param("requestId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "неверный идентификатор заявки"})
		return
	}

	chats, err := h.chats.History(c.Request.Context(), requestID, user.ID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, chats)
}
