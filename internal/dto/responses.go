package dto

import (
	"github.com/assistmate/assistmate-backend/internal/models"
)

// RequestResponse wraps a request together with its GeoJSON coordinate.
type RequestResponse struct {
	*models.Request
	Coordinate models.GeoPoint `json:"coordinate"`
}

// NewRequestResponse builds the wire representation of a request.
func NewRequestResponse(r *models.Request) RequestResponse {
	return RequestResponse{
		Request:    r,
		Coordinate: r.Coordinate(),
	}
}

// NewRequestListResponse builds the wire representation of a request list.
func NewRequestListResponse(requests []models.Request) []RequestResponse {
	out := make([]RequestResponse, 0, len(requests))
	for i := range requests {
		out = append(out, NewRequestResponse(&requests[i]))
	}
	return out
}

// ListResponse is the envelope for paginated listings.
type ListResponse struct {
	Data       interface{} `json:"data"`
	Total      int         `json:"total"`
	Pagination Pagination  `json:"pagination"`
}

// Pagination describes the page window of a listing.
type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
}
