package dto

import (
	"time"

	"github.com/google/uuid"
)

// CreateRequestRequest represents the request to create a help request.
type CreateRequestRequest struct {
	Title         string      `json:"title" binding:"required"`
	Category      string      `json:"category" binding:"required"`
	OtherCategory *string     `json:"other_category"`
	Description   string      `json:"description" binding:"required"`
	DueDateTime   *time.Time  `json:"due_date_time"`
	Coordinate    *Coordinate `json:"coordinate" binding:"required"`
	TempResolvers []uuid.UUID `json:"temp_resolvers" binding:"required,min=1"`
}

// Coordinate mirrors the GeoJSON point shape accepted on the wire.
type Coordinate struct {
	Type        string     `json:"type"`
	Coordinates [2]float64 `json:"coordinates" binding:"required"`
}

// UpdateRequestRequest represents the owner's edit of a CREATED request.
type UpdateRequestRequest struct {
	Title         *string     `json:"title"`
	Category      *string     `json:"category"`
	OtherCategory *string     `json:"other_category"`
	Description   *string     `json:"description"`
	DueDateTime   *time.Time  `json:"due_date_time"`
	Coordinate    *Coordinate `json:"coordinate"`
	TempResolvers []uuid.UUID `json:"temp_resolvers"`
}

// RequestActionRequest carries the offer details for accept/reject/cancel/complete.
type RequestActionRequest struct {
	Reason        string   `json:"reason"`
	Paid          *bool    `json:"paid"`
	Currency      *string  `json:"currency"`
	PaymentAmount *float64 `json:"payment_amount"`
	Description   string   `json:"description"`
}

// UpdateNotificationRequest toggles the read flag of a notification.
type UpdateNotificationRequest struct {
	Read *bool `json:"read" binding:"required"`
}

// ReadAllNotificationsRequest marks the listed notifications as read.
type ReadAllNotificationsRequest struct {
	IDs []uuid.UUID `json:"ids" binding:"required,min=1"`
}

// UpdateFmcTokenRequest updates the caller's push delivery token.
type UpdateFmcTokenRequest struct {
	FmcToken string `json:"fmc_token" binding:"required"`
}

// UpdateLocationRequest updates the caller's current location.
type UpdateLocationRequest struct {
	Longitude float64 `json:"longitude" binding:"required"`
	Latitude  float64 `json:"latitude" binding:"required"`
}

// UpdateProfileRequest represents the caller's profile edit.
type UpdateProfileRequest struct {
	Username  *string `json:"username"`
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	Avatar    *string `json:"avatar"`
	UserType  *string `json:"user_type"`
}
