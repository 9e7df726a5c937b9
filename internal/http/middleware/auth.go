package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/assistmate/assistmate-backend/internal/models"
	"github.com/assistmate/assistmate-backend/internal/service"
)

// Context ключи для gin.Context.
const (
	ContextUserKey = "currentUser"
)

// IdentityResolver сопоставляет утверждения токена с внутренним пользователем.
type IdentityResolver interface {
	ResolveIdentity(ctx context.Context, claims *service.IdentityClaims) (*models.User, error)
}

// AuthMiddleware проверяет bearer-токен identity-провайдера и кладёт
// внутреннего пользователя в контекст запроса. Первый вход создаёт профиль
// из утверждений токена. Для WebSocket-рукопожатия токен принимается
// также из query-параметра token.
func AuthMiddleware(verifier *service.TokenVerifier, users IdentityResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := ""
		if auth := c.GetHeader("Authorization"); strings.HasPrefix(auth, "Bearer ") {
			raw = strings.TrimPrefix(auth, "Bearer ")
		} else if token := c.Query("token"); token != "" {
			raw = token
		}
		if raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "требуется авторизация"})
			return
		}

		claims, err := verifier.Verify(raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "токен невалиден"})
			return
		}

		user, err := users.ResolveIdentity(c.Request.Context(), claims)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "не удалось сопоставить пользователя"})
			return
		}

		c.Set(ContextUserKey, user)
		c.Next()
	}
}

// CurrentUser достаёт аутентифицированного пользователя из контекста.
func CurrentUser(c *gin.Context) (*models.User, bool) {
	value, ok := c.Get(ContextUserKey)
	if !ok {
		return nil, false
	}
	user, ok := value.(*models.User)
	return user, ok
}
