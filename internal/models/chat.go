package models

import (
	"time"

	"github.com/google/uuid"
)

// Chat — одно сообщение в переписке по заявке. Сообщения неизменяемы:
// запись только добавляется, порядок определяется временем создания.
type Chat struct {
	ID                    uuid.UUID  `db:"id" json:"id"`
	RequestID             uuid.UUID  `db:"request_id" json:"request_id"`
	SenderID              uuid.UUID  `db:"sender_id" json:"sender_id"`
	ParticipantUserID     uuid.UUID  `db:"participant_user_id" json:"-"`
	ParticipantResolverID uuid.UUID  `db:"participant_resolver_id" json:"-"`
	Message               string     `db:"message" json:"message"`
	CreatedAt             time.Time  `db:"created_at" json:"created_at"`

	// Sender заполняется при выдаче истории и рассылке сообщений.
	Sender *ChatSender `db:"-" json:"sender,omitempty"`
}

// ChatSender — публичные поля отправителя, прикладываемые к сообщению.
type ChatSender struct {
	ID        uuid.UUID `json:"id"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Avatar    *string   `json:"avatar,omitempty"`
}

// Participants возвращает пару участников переписки.
func (c *Chat) Participants() [2]uuid.UUID {
	return [2]uuid.UUID{c.ParticipantUserID, c.ParticipantResolverID}
}
