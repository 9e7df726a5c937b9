package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/assistmate/assistmate-backend/internal/dto"
	"github.com/assistmate/assistmate-backend/internal/service"
)

// RequestHandler обслуживает маршруты заявок.
type RequestHandler struct {
	requests *service.RequestService
}

// NewRequestHandler создаёт новый хэндлер.
func NewRequestHandler(requests *service.RequestService) *RequestHandler {
	return &RequestHandler{requests: requests}
}

// CreateRequest обрабатывает POST /api/requests.
func (h *RequestHandler) CreateRequest(c *gin.Context) {
	user, err := currentUser(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	var input dto.CreateRequestRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "некорректное тело запроса"})
		return
	}

	if _, err := h.requests.Create(c.Request.Context(), user, input); err != nil {
		_ = c.Error(err)
		return
	}
	c.Status(http.StatusCreated)
}

// ListRequests обрабатывает GET /api/requests: заявки вызывающего.
func (h *RequestHandler) ListRequests(c *gin.Context) {
	user, err := currentUser(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	limit := parseIntQuery(c, "limit", 20)
	offset := parseIntQuery(c, "offset", 0)

	requests, total, err := h.requests.ListOwn(
		c.Request.Context(),
		user.ID,
		c.Query("search"),
		c.Query("category"),
		c.Query("status"),
		limit,
		offset,
	)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, dto.ListResponse{
		Data:  dto.NewRequestListResponse(requests),
		Total: total,
		Pagination: dto.Pagination{
			Page:  offset/max(limit, 1) + 1,
			Limit: limit,
		},
	})
}

// NearbyRequests обрабатывает GET /api/requests/near: активные заявки
// в радиусе, где вызывающий является кандидатом или исполнителем.
func (h *RequestHandler) NearbyRequests(c *gin.Context) {
	user, err := currentUser(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	longitude := parseFloatQuery(c, "longitude", 0)
	latitude := parseFloatQuery(c, "latitude", 0)
	radiusKm := parseFloatQuery(c, "distance", 0)
	limit := parseIntQuery(c, "limit", 50)

	requests, err := h.requests.Nearby(c.Request.Context(), user.ID, longitude, latitude, radiusKm, limit)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, dto.NewRequestListResponse(requests))
}

// TopRequests обрабатывает GET /api/requests/top: ближайшие активные
// чужие заявки без ограничения по участию.
func (h *RequestHandler) TopRequests(c *gin.Context) {
	user, err := currentUser(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	longitude := parseFloatQuery(c, "longitude", 0)
	latitude := parseFloatQuery(c, "latitude", 0)
	radiusKm := parseFloatQuery(c, "maxDistance", 0)

	requests, err := h.requests.Top(c.Request.Context(), user.ID, longitude, latitude, radiusKm)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, dto.NewRequestListResponse(requests))
}

// GetRequest обрабатывает GET /api/requests/:id.
func (h *RequestHandler) GetRequest(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "неверный идентификатор заявки"})
		return
	}

	request, err := h.requests.GetByID(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, dto.NewRequestResponse(request))
}

// UpdateRequest обрабатывает PATCH /api/requests/:id: правка автора,
// разрешена только пока заявка в статусе CREATED.
func (h *RequestHandler) UpdateRequest(c *gin.Context) {
	user, err := currentUser(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "неверный идентификатор заявки"})
		return
	}

	var input dto.UpdateRequestRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "некорректное тело запроса"})
		return
	}

	request, err := h.requests.Update(c.Request.Context(), user, id, input)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, dto.NewRequestResponse(request))
}

// ActOnRequest обрабатывает PATCH /api/requests/:id/:action
// (accept, reject, cancel, complete).
func (h *RequestHandler) ActOnRequest(c *gin.Context) {
	user, err := currentUser(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "неверный идентификатор заявки"})
		return
	}

	var payload dto.RequestActionRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&payload); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "некорректное тело запроса"})
			return
		}
	}

	request, err := h.requests.Act(c.Request.Context(), user, id, c.Param("action"), payload)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, dto.NewRequestResponse(request))
}

// DeleteRequest обрабатывает DELETE /api/requests/:id.
func (h *RequestHandler) DeleteRequest(c *gin.Context) {
	user, err := currentUser(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "неверный идентификатор заявки"})
		return
	}

	if err := h.requests.Delete(c.Request.Context(), user, id); err != nil {
		_ = c.Error(err)
		return
	}
	c.Status(http.StatusCreated)
}
