package middleware

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/assistmate/assistmate-backend/internal/models"
)

// ContextRequestKey хранит загруженную middleware-ом заявку.
const ContextRequestKey = "targetRequest"

// RequestLoader загружает заявку для проверки прав.
type RequestLoader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Request, error)
}

// OwnershipKey называет поле заявки, по которому проверяются права на
// мутирующую операцию. Ключ фиксируется при регистрации маршрута.
type OwnershipKey int

const (
	// OwnershipUser допускает только автора заявки.
	OwnershipUser OwnershipKey = iota
	// OwnershipParticipant допускает автора или назначенного исполнителя.
	OwnershipParticipant
)

// RequestOwnership загружает заявку из параметра id, проверяет права
// вызывающего и кладёт заявку в контекст для обработчика.
func RequestOwnership(requests RequestLoader, key OwnershipKey) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "требуется авторизация"})
			return
		}

		id, err := uuid.Parse(c.Param("id"))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "параметр id должен быть валидным UUID"})
			return
		}

		request, err := requests.GetByID(c.Request.Context(), id)
		if err != nil {
			_ = c.Error(err)
			c.Abort()
			return
		}

		allowed := false
		switch key {
		case OwnershipUser:
			allowed = request.UserID == user.ID
		case OwnershipParticipant:
			allowed = request.IsParticipant(user.ID)
		}
		if !allowed {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "недостаточно прав"})
			return
		}

		c.Set(ContextRequestKey, request)
		c.Next()
	}
}

// TargetRequest достаёт заявку, загруженную RequestOwnership.
func TargetRequest(c *gin.Context) (*models.Request, bool) {
	value, ok := c.Get(ContextRequestKey)
	if !ok {
		return nil, false
	}
	request, ok := value.(*models.Request)
	return request, ok
}
