package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/assistmate/assistmate-backend/internal/models"
)

// ChatRepository отвечает за переписку по заявкам. Сообщения только
// добавляются, порядок истории определяется временем создания.
type ChatRepository struct {
	db *sqlx.DB
}

// NewChatRepository создаёт экземпляр репозитория.
func NewChatRepository(db *sqlx.DB) *ChatRepository {
	return &ChatRepository{db: db}
}

// Create сохраняет сообщение чата.
func (r *ChatRepository) Create(ctx context.Context, chat *models.Chat) error {
	query := `
		INSERT INTO chats (request_id, sender_id, participant_user_id, participant_resolver_id, message)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`
	if err := r.db.QueryRowxContext(
		ctx,
		query,
		chat.RequestID,
		chat.SenderID,
		chat.ParticipantUserID,
		chat.ParticipantResolverID,
		chat.Message,
	).Scan(&chat.ID, &chat.CreatedAt); err != nil {
		return fmt.Errorf("chat repository: create %w", err)
	}
	return nil
}

// ListByRequest возвращает историю переписки по заявке от старых к новым,
// с публичными полями отправителя.
func (r *ChatRepository) ListByRequest(ctx context.Context, requestID uuid.UUID) ([]models.Chat, error) {
	rows, err := r.db.QueryxContext(ctx, `
		SELECT c.id, c.request_id, c.sender_id, c.participant_user_id, c.participant_resolver_id,
		       c.message, c.created_at,
		       u.first_name, u.last_name, u.avatar
		FROM chats c
		JOIN users u ON u.id = c.sender_id
		WHERE c.request_id = $1
		ORDER BY c.created_at ASC
	`, requestID)
	if err != nil {
		return nil, fmt.Errorf("chat repository: list by request %w", err)
	}
	defer rows.Close()

	chats := []models.Chat{}
	for rows.Next() {
		var chat models.Chat
		var sender models.ChatSender
		if err := rows.Scan(
			&chat.ID,
			&chat.RequestID,
			&chat.SenderID,
			&chat.ParticipantUserID,
			&chat.ParticipantResolverID,
			&chat.Message,
			&chat.CreatedAt,
			&sender.FirstName,
			&sender.LastName,
			&sender.Avatar,
		); err != nil {
			return nil, fmt.Errorf("chat repository: scan %w", err)
		}
		sender.ID = chat.SenderID
		chat.Sender = &sender
		chats = append(chats, chat)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("chat repository: rows %w", err)
	}
	return chats, nil
}

// CountByRequest возвращает число сообщений по заявке.
func (r *ChatRepository) CountByRequest(ctx context.Context, requestID uuid.UUID) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM chats WHERE request_id = $1`, requestID); err != nil {
		return 0, fmt.Errorf("chat repository: count by request %w", err)
	}
	return count, nil
}
