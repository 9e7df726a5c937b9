package middleware

import (
	"errors"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/assistmate/assistmate-backend/internal/logger"
	"github.com/assistmate/assistmate-backend/internal/pkg/apperror"
)

// ErrorHandler обрабатывает ошибки централизованно: известная таксономия
// проходит со своим статусом и сообщением, остальное маскируется как 500.
// Вне production ответ дополняется исходной ошибкой и стеком вызовов.
func ErrorHandler(env string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() || len(c.Errors) == 0 {
			return
		}
		err := c.Errors.Last().Err

		statusCode := http.StatusInternalServerError
		message := "внутренняя ошибка сервера"

		var appErr *apperror.AppError
		var pqErr *pq.Error
		switch {
		case errors.As(err, &appErr):
			statusCode = appErr.HTTPStatus
			message = appErr.Message
		case errors.As(err, &pqErr):
			// Нарушение уникальности и ошибки приведения типов — проблема
			// входных данных, а не сервера.
			if pqErr.Code == "23505" {
				statusCode = http.StatusBadRequest
				message = "значение уже существует: " + pqErr.Constraint
			} else if pqErr.Code.Class() == "22" {
				statusCode = http.StatusBadRequest
				message = "некорректное значение поля: " + pqErr.Column
			}
		}

		if logger.Log != nil {
			entry := logger.Log.WithFields(logrus.Fields{
				"error":  err.Error(),
				"path":   c.Request.URL.Path,
				"method": c.Request.Method,
				"status": statusCode,
			})
			if statusCode >= http.StatusInternalServerError {
				entry.Error("request error")
			} else {
				entry.Warn("request error")
			}
		}

		body := gin.H{"error": message}
		if env != "production" {
			body["detail"] = err.Error()
			body["stack"] = string(debug.Stack())
		}
		c.JSON(statusCode, body)
	}
}
