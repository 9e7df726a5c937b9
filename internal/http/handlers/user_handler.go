package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/assistmate/assistmate-backend/internal/dto"
	"github.com/assistmate/assistmate-backend/internal/service"
)

// UserHandler обслуживает маршруты профилей.
type UserHandler struct {
	users *service.UserService
}

// NewUserHandler создаёт новый хэндлер.
func NewUserHandler(users *service.UserService) *UserHandler {
	return &UserHandler{users: users}
}

// Me обрабатывает GET /api/users/me.
func (h *UserHandler) Me(c *gin.Context) {
	user, err := currentUser(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, user)
}

// UpdateMe обрабатывает PATCH /api/users/me.
func (h *UserHandler) UpdateMe(c *gin.Context) {
	user, err := currentUser(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	var input dto.UpdateProfileRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "некорректное тело запроса"})
		return
	}

	updated, err := h.users.UpdateProfile(c.Request.Context(), user.ID, input)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

// UpdateToken обрабатывает PUT /api/users/me/token: push-токен устройства.
func (h *UserHandler) UpdateToken(c *gin.Context) {
	user, err := currentUser(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	var input dto.UpdateFmcTokenRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "поле fmc_token обязательно"})
		return
	}

	if err := h.users.UpdateFmcToken(c.Request.Context(), user.ID, input.FmcToken); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "токен доставки обновлён"})
}

// UpdateLocation обрабатывает PUT /api/users/me/location.
func (h *UserHandler) UpdateLocation(c *gin.Context) {
	user, err := currentUser(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	var input dto.UpdateLocationRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "нужны longitude и latitude"})
		return
	}

	if err := h.users.UpdateLocation(c.Request.Context(), user.ID, input.Longitude, input.Latitude); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "геолокация обновлена"})
}

// ListUsers обрабатывает GET /api/users.
func (h *UserHandler) ListUsers(c *gin.Context) {
	user, err := currentUser(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	limit := parseIntQuery(c, "limit", 20)
	offset := parseIntQuery(c, "offset", 0)

	users, err := h.users.List(c.Request.Context(), user.ID, c.Query("search"), c.Query("user_type"), limit, offset)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, users)
}

// NearbyUsers обрабатывает GET /api/users/near: пользователи в радиусе,
// ближние первыми.
func (h *UserHandler) NearbyUsers(c *gin.Context) {
	user, err := currentUser(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	longitude := parseFloatQuery(c, "longitude", 0)
	latitude := parseFloatQuery(c, "latitude", 0)
	radiusKm := parseFloatQuery(c, "distance", 0)
	limit := parseIntQuery(c, "limit", 50)

	users, err := h.users.Nearby(
		c.Request.Context(),
		user,
		longitude,
		latitude,
		radiusKm,
		c.Query("search"),
		c.Query("user_type"),
		limit,
	)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, users)
}

// GetUser обрабатывает GET /api/users/:id.
func (h *UserHandler) GetUser(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "неверный идентификатор пользователя"})
		return
	}

	user, err := h.users.GetByID(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, user)
}
