package handlers

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/assistmate/assistmate-backend/internal/http/middleware"
	"github.com/assistmate/assistmate-backend/internal/models"
)

var errUserNotFound = errors.New("пользователь не найден в контексте")

// currentUser извлекает аутентифицированного пользователя из контекста.
func currentUser(c *gin.Context) (*models.User, error) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		return nil, errUserNotFound
	}
	return user, nil
}

// parseIntQuery читает целочисленный query-параметр с дефолтом.
func parseIntQuery(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

// parseFloatQuery читает числовой query-параметр с дефолтом.
func parseFloatQuery(c *gin.Context, name string, fallback float64) float64 {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fallback
	}
	return value
}
