package models

import (
	"time"

	"github.com/google/uuid"
)

// Notification — долговременная запись о событии, доставленном пользователю.
// UserID — получатель, OwnerID — контрагент, вызвавший событие.
type Notification struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	Title       string     `db:"title" json:"title"`
	Description string     `db:"description" json:"description"`
	Trigger     string     `db:"trigger" json:"trigger"`
	RequestID   uuid.UUID  `db:"request_id" json:"request_id"`
	DueDateTime *time.Time `db:"due_date_time" json:"due_date_time,omitempty"`
	UserID      uuid.UUID  `db:"user_id" json:"user_id"`
	OwnerID     uuid.UUID  `db:"owner_id" json:"owner_id"`
	Read        bool       `db:"read" json:"read"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}
