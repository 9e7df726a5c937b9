package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/assistmate/assistmate-backend/internal/models"
)

// ErrNotificationNotFound возвращается, когда уведомление не найдено
// или принадлежит другому пользователю.
var ErrNotificationNotFound = errors.New("notification not found")

const notificationColumns = `id, title, description, "trigger", request_id, due_date_time, user_id, owner_id, read, created_at, updated_at`

// NotificationRepository отвечает за работу с уведомлениями.
type NotificationRepository struct {
	db *sqlx.DB
}

// NewNotificationRepository создаёт экземпляр репозитория.
func NewNotificationRepository(db *sqlx.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Create сохраняет уведомление.
func (r *NotificationRepository) Create(ctx context.Context, n *models.Notification) error {
	query := `
		INSERT INTO notifications (title, description, "trigger", request_id, due_date_time, user_id, owner_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, read, created_at, updated_at
	`
	if err := r.db.QueryRowxContext(
		ctx,
		query,
		n.Title,
		n.Description,
		n.Trigger,
		n.RequestID,
		n.DueDateTime,
		n.UserID,
		n.OwnerID,
	).Scan(&n.ID, &n.Read, &n.CreatedAt, &n.UpdatedAt); err != nil {
		return fmt.Errorf("notification repository: create %w", err)
	}
	return nil
}

// GetByID возвращает уведомление конкретного пользователя.
func (r *NotificationRepository) GetByID(ctx context.Context, id, userID uuid.UUID) (*models.Notification, error) {
	var n models.Notification
	query := fmt.Sprintf(`SELECT %s FROM notifications WHERE id = $1 AND user_id = $2`, notificationColumns)
	if err := r.db.GetContext(ctx, &n, query, id, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotificationNotFound
		}
		return nil, fmt.Errorf("notification repository: get by id %w", err)
	}
	return &n, nil
}

// List возвращает уведомления пользователя, новые первыми.
// onlyUnread ограничивает выборку непрочитанными.
func (r *NotificationRepository) List(ctx context.Context, userID uuid.UUID, onlyUnread bool, limit, offset int) ([]models.Notification, int, error) {
	where := `user_id = $1`
	if onlyUnread {
		where += ` AND read = FALSE`
	}

	var total int
	if err := r.db.GetContext(ctx, &total,
		`SELECT COUNT(*) FROM notifications WHERE `+where, userID); err != nil {
		return nil, 0, fmt.Errorf("notification repository: count %w", err)
	}

	query := fmt.Sprintf(
		`SELECT %s FROM notifications WHERE %s ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		notificationColumns, where,
	)
	var notifications []models.Notification
	if err := r.db.SelectContext(ctx, &notifications, query, userID, limit, offset); err != nil {
		return nil, 0, fmt.Errorf("notification repository: list %w", err)
	}
	return notifications, total, nil
}

// MarkListedRead помечает перечисленные уведомления прочитанными. Такая пометка
// происходит после выдачи списка: клиент получил уведомления, значит увидел их.
func (r *NotificationRepository) MarkListedRead(ctx context.Context, userID uuid.UUID, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := r.db.ExecContext(ctx, `
		UPDATE notifications SET read = TRUE, updated_at = NOW()
		WHERE user_id = $1 AND id = ANY($2) AND read = FALSE
	`, userID, pq.Array(ids)); err != nil {
		return fmt.Errorf("notification repository: mark listed read %w", err)
	}
	return nil
}

// SetRead выставляет флаг прочтения одного уведомления.
func (r *NotificationRepository) SetRead(ctx context.Context, id, userID uuid.UUID, read bool) (*models.Notification, error) {
	query := fmt.Sprintf(`
		UPDATE notifications SET read = $1, updated_at = NOW()
		WHERE id = $2 AND user_id = $3
		RETURNING %s
	`, notificationColumns)

	var n models.Notification
	if err := r.db.GetContext(ctx, &n, query, read, id, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotificationNotFound
		}
		return nil, fmt.Errorf("notification repository: set read %w", err)
	}
	return &n, nil
}

// ReadAllByIDs помечает уведомления из списка прочитанными и возвращает
// число изменённых строк.
func (r *NotificationRepository) ReadAllByIDs(ctx context.Context, userID uuid.UUID, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result, err := r.db.ExecContext(ctx, `
		UPDATE notifications SET read = TRUE, updated_at = NOW()
		WHERE user_id = $1 AND id = ANY($2) AND read = FALSE
	`, userID, pq.Array(ids))
	if err != nil {
		return 0, fmt.Errorf("notification repository: read all by ids %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("notification repository: rows affected %w", err)
	}
	return affected, nil
}

// CountUnread возвращает число непрочитанных уведомлений пользователя.
func (r *NotificationRepository) CountUnread(ctx context.Context, userID uuid.UUID) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND read = FALSE`, userID); err != nil {
		return 0, fmt.Errorf("notification repository: count unread %w", err)
	}
	return count, nil
}

// Delete удаляет уведомление пользователя.
func (r *NotificationRepository) Delete(ctx context.Context, id, userID uuid.UUID) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM notifications WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("notification repository: delete %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return ErrNotificationNotFound
	}
	return nil
}
