package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// User описывает пользователя платформы: того, кто просит о помощи,
// или того, кто готов её оказать. Поле UID хранит стабильный идентификатор
// из внешнего identity-провайдера и не меняется после создания записи.
type User struct {
	ID        uuid.UUID `db:"id" json:"id"`
	UID       string    `db:"uid" json:"uid"`
	Email     string    `db:"email" json:"email"`
	Username  string    `db:"username" json:"username"`
	FirstName string    `db:"first_name" json:"first_name"`
	LastName  string    `db:"last_name" json:"last_name"`
	Avatar    *string   `db:"avatar" json:"avatar,omitempty"`
	UserType  *string   `db:"user_type" json:"user_type,omitempty"`
	FmcToken  *string   `db:"fmc_token" json:"-"`
	Longitude *float64  `db:"longitude" json:"-"`
	Latitude  *float64  `db:"latitude" json:"-"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`

	// Distance заполняется только гео-запросами (метры до точки поиска).
	Distance *float64 `db:"distance" json:"distance,omitempty"`
}

// FullName возвращает имя и фамилию одной строкой.
func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// HasDeliveryToken сообщает, привязан ли к пользователю push-токен устройства.
func (u *User) HasDeliveryToken() bool {
	return u.FmcToken != nil && *u.FmcToken != ""
}

// Coordinate возвращает текущую точку пользователя, если она задана.
func (u *User) Coordinate() (GeoPoint, bool) {
	if u.Longitude == nil || u.Latitude == nil {
		return GeoPoint{}, false
	}
	return NewGeoPoint(*u.Longitude, *u.Latitude), true
}
