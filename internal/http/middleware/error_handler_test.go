package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/assistmate/assistmate-backend/internal/pkg/apperror"
)

func errorEndpoint(env string, err error) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(ErrorHandler(env))
	r.GET("/boom", func(c *gin.Context) {
		_ = c.Error(err)
	})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/boom", nil)
	r.ServeHTTP(rec, req)
	return rec
}

func TestErrorHandlerMapsTaxonomy(t *testing.T) {
	rec := errorEndpoint("production", apperror.New(apperror.ErrCodeConflict, "заявка уже в статусе IN_PROGRESS"))

	assert.Equal(t, http.StatusConflict, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "заявка уже в статусе IN_PROGRESS", body["error"])
}

func TestErrorHandlerIncludesDetailAndStackOutsideProduction(t *testing.T) {
	rec := errorEndpoint("development", errors.New("соединение с базой потеряно"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "внутренняя ошибка сервера", body["error"])
	assert.Equal(t, "соединение с базой потеряно", body["detail"])

	stack, ok := body["stack"].(string)
	require.True(t, ok)
	assert.Contains(t, stack, "goroutine")
}

func TestErrorHandlerHidesDetailInProduction(t *testing.T) {
	rec := errorEndpoint("production", errors.New("соединение с базой потеряно"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotContains(t, body, "detail")
	assert.NotContains(t, body, "stack")
}
