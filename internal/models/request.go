package models

import (
	"time"

	"github.com/google/uuid"
)

// Request описывает заявку на помощь.
type Request struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	Title         string     `db:"title" json:"title"`
	Category      string     `db:"category" json:"category"`
	OtherCategory *string    `db:"other_category" json:"other_category,omitempty"`
	Description   string     `db:"description" json:"description"`
	DueDateTime   *time.Time `db:"due_date_time" json:"due_date_time,omitempty"`
	Status        string     `db:"status" json:"status"`
	Longitude     float64    `db:"longitude" json:"-"`
	Latitude      float64    `db:"latitude" json:"-"`
	UserID        uuid.UUID  `db:"user_id" json:"user_id"`
	CreatedBy     uuid.UUID  `db:"created_by" json:"created_by"`
	ResolverID    *uuid.UUID `db:"resolver_id" json:"resolver_id,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`

	// Встроенная структура: sqlx кладёт offer_* колонки прямо сюда,
	// в JSON условия отдаются вложенным объектом request_offer.
	RequestOffer `json:"request_offer"`

	// TempResolvers заполняется отдельным запросом (упорядоченный список кандидатов).
	TempResolvers []uuid.UUID `db:"-" json:"temp_resolvers"`

	// Distance заполняется только гео-запросами (метры до точки поиска).
	Distance *float64 `db:"distance" json:"distance,omitempty"`
}

// RequestOffer хранит условия, названные при принятии/отклонении/отмене заявки.
// Принадлежит заявке и живёт в её же строке.
type RequestOffer struct {
	Paid          *bool    `db:"offer_paid" json:"paid,omitempty"`
	PaymentAmount *float64 `db:"offer_amount" json:"payment_amount,omitempty"`
	Currency      *string  `db:"offer_currency" json:"currency,omitempty"`
	Reason        *string  `db:"offer_reason" json:"reason,omitempty"`
}

// Coordinate возвращает точку заявки в формате GeoJSON.
func (r *Request) Coordinate() GeoPoint {
	return NewGeoPoint(r.Longitude, r.Latitude)
}

// IsParticipant сообщает, является ли пользователь участником заявки:
// её автором или назначенным исполнителем.
func (r *Request) IsParticipant(userID uuid.UUID) bool {
	if r.UserID == userID {
		return true
	}
	return r.ResolverID != nil && *r.ResolverID == userID
}

// HasTempResolver проверяет, входит ли пользователь в список кандидатов.
func (r *Request) HasTempResolver(userID uuid.UUID) bool {
	for _, id := range r.TempResolvers {
		if id == userID {
			return true
		}
	}
	return false
}
