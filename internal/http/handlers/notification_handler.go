package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/assistmate/assistmate-backend/internal/dto"
	"github.com/assistmate/assistmate-backend/internal/service"
)

// NotificationHandler обслуживает маршруты уведомлений.
type NotificationHandler struct {
	notifications *service.NotificationService
}

// NewNotificationHandler создаёт новый хэндлер.
func NewNotificationHandler(notifications *service.NotificationService) *NotificationHandler {
	return &NotificationHandler{notifications: notifications}
}

// ListNotifications обрабатывает GET /api/notifications.
// Выданные непрочитанные уведомления помечаются прочитанными.
func (h *NotificationHandler) ListNotifications(c *gin.Context) {
	user, err := currentUser(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	limit := parseIntQuery(c, "limit", 20)
	offset := parseIntQuery(c, "offset", 0)
	onlyUnread := c.Query("unread_only") == "true"

	notifications, total, err := h.notifications.List(c.Request.Context(), user.ID, onlyUnread, limit, offset)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":  notifications,
		"total": total,
	})
}

// GetNotification обрабатывает GET /api/notifications/:id.
func (h *NotificationHandler) GetNotification(c *gin.Context) {
	user, err := currentUser(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "неверный идентификатор уведомления"})
		return
	}

	notification, err := h.notifications.GetByID(c.Request.Context(), id, user.ID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, notification)
}

// UpdateNotification обрабатывает PATCH /api/notifications/:id.
func (h *NotificationHandler) UpdateNotification(c *gin.Context) {
	user, err := currentUser(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "неверный идентификатор уведомления"})
		return
	}

	var input dto.UpdateNotificationRequest
	if err := c.ShouldBindJSON(&input); err != nil || input.Read == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "поле read обязательно"})
		return
	}

	notification, err := h.notifications.SetRead(c.Request.Context(), id, user.ID, *input.Read)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, notification)
}

// ReadAllNotifications обрабатывает PATCH /api/notifications/read-all.
func (h *NotificationHandler) ReadAllNotifications(c *gin.Context) {
	user, err := currentUser(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	var input dto.ReadAllNotificationsRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "нужен непустой список ids"})
		return
	}

	count, err := h.notifications.ReadAll(c.Request.Context(), user.ID, input.IDs)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": fmt.Sprintf("прочитано уведомлений: %d", count),
		"count":   count,
	})
}

// CountUnread обрабатывает GET /api/notifications/unread/count.
func (h *NotificationHandler) CountUnread(c *gin.Context) {
	user, err := currentUser(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	count, err := h.notifications.CountUnread(c.Request.Context(), user.ID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": count})
}

// DeleteNotification обрабатывает DELETE /api/notifications/:id.
func (h *NotificationHandler) DeleteNotification(c *gin.Context) {
	user, err := currentUser(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "неверный идентификатор уведомления"})
		return
	}

	if err := h.notifications.Delete(c.Request.Context(), id, user.ID); err != nil {
		_ = c.Error(err)
		return
	}
	c.Status(http.StatusCreated)
}
