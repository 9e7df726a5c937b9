package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/assistmate/assistmate-backend/internal/goroutine"
	"github.com/assistmate/assistmate-backend/internal/models"
	"github.com/assistmate/assistmate-backend/internal/pkg/apperror"
	"github.com/assistmate/assistmate-backend/internal/push"
	"github.com/assistmate/assistmate-backend/internal/repository"
)

// NotificationStore описывает хранилище уведомлений, нужное сервису.
type NotificationStore interface {
	Create(ctx context.Context, n *models.Notification) error
	GetByID(ctx context.Context, id, userID uuid.UUID) (*models.Notification, error)
	List(ctx context.Context, userID uuid.UUID, onlyUnread bool, limit, offset int) ([]models.Notification, int, error)
	MarkListedRead(ctx context.Context, userID uuid.UUID, ids []uuid.UUID) error
	SetRead(ctx context.Context, id, userID uuid.UUID, read bool) (*models.Notification, error)
	ReadAllByIDs(ctx context.Context, userID uuid.UUID, ids []uuid.UUID) (int64, error)
	CountUnread(ctx context.Context, userID uuid.UUID) (int, error)
	Delete(ctx context.Context, id, userID uuid.UUID) error
}

// PushSender отправляет push-сообщения на устройства.
type PushSender interface {
	Enabled() bool
	Send(ctx context.Context, msg push.Message) error
}

// NotificationService создаёт уведомления о переходах заявок и управляет
// их прочтением.
type NotificationService struct {
	notifications NotificationStore
	sender        PushSender
	log           *logrus.Logger
}

// NewNotificationService создаёт сервис уведомлений.
func NewNotificationService(notifications NotificationStore, sender PushSender, log *logrus.Logger) *NotificationService {
	return &NotificationService{
		notifications: notifications,
		sender:        sender,
		log:           log,
	}
}

// Dispatch — одно событие для одного получателя.
type Dispatch struct {
	Trigger   string
	Request   *models.Request
	Recipient *models.User
	OwnerID   uuid.UUID

	// Actor — пользователь, вызвавший переход; используется для
	// синтеза текста уведомления при accept/reject/cancel.
	Actor *models.User

	Reason      string
	Description string
}

// Notify сохраняет уведомление и отправляет push. Получатель без токена
// доставки пропускается целиком: ни записи, ни push. Ошибка доставки
// логируется и не отменяет сохранённую запись.
func (s *NotificationService) Notify(ctx context.Context, d Dispatch) error {
	if d.Recipient == nil || !d.Recipient.HasDeliveryToken() {
		return nil
	}

	notification := &models.Notification{
		Title:       s.title(d),
		Description: s.describe(d),
		Trigger:     d.Trigger,
		RequestID:   d.Request.ID,
		DueDateTime: d.Request.DueDateTime,
		UserID:      d.Recipient.ID,
		OwnerID:     d.OwnerID,
	}
	if err := s.notifications.Create(ctx, notification); err != nil {
		return fmt.Errorf("notification service: сохранение уведомления %w", err)
	}

	token := *d.Recipient.FmcToken
	msg := push.Message{
		Token:     token,
		Title:     notification.Title,
		Body:      notification.Description,
		RequestID: d.Request.ID,
		UserID:    d.Recipient.ID,
	}
	goroutine.SafeGo(func() {
		if err := s.sender.Send(context.Background(), msg); err != nil {
			s.log.WithError(err).WithFields(logrus.Fields{
				"trigger":    d.Trigger,
				"request_id": d.Request.ID,
				"user_id":    d.Recipient.ID,
			}).Warn("push-доставка не удалась")
		}
	})
	return nil
}

// title строит заголовок уведомления. Push о сообщении в чате называет
// отправителя по имени.
func (s *NotificationService) title(d Dispatch) string {
	if d.Trigger == models.TriggerNewChatMessage && d.Actor != nil {
		return fmt.Sprintf("Новое сообщение от %s", d.Actor.FullName())
	}
	return triggerTitle(d.Trigger)
}

// describe синтезирует текст уведомления: для действий над заявкой
// называем актора, иначе берём причину или описание из запроса.
func (s *NotificationService) describe(d Dispatch) string {
	if d.Actor != nil {
		switch d.Trigger {
		case models.TriggerRequestAccepted:
			return fmt.Sprintf("%s принял(а) вашу заявку", d.Actor.FullName())
		case models.TriggerRequestRejected:
			return fmt.Sprintf("%s отклонил(а) вашу заявку", d.Actor.FullName())
		case models.TriggerRequestCancelled:
			return fmt.Sprintf("%s отменил(а) заявку", d.Actor.FullName())
		case models.TriggerRequestCompleted:
			return fmt.Sprintf("%s завершил(а) заявку", d.Actor.FullName())
		}
	}
	if d.Reason != "" {
		return d.Reason
	}
	if d.Description != "" {
		return d.Description
	}
	return d.Request.Description
}

func triggerTitle(trigger string) string {
	switch trigger {
	case models.TriggerRequestCreated:
		return "Новая заявка"
	case models.TriggerRequestUpdated:
		return "Заявка обновлена"
	case models.TriggerRequestAccepted:
		return "Заявка принята"
	case models.TriggerRequestRejected:
		return "Заявка отклонена"
	case models.TriggerRequestCancelled:
		return "Заявка отменена"
	case models.TriggerRequestCompleted:
		return "Заявка завершена"
	case models.TriggerNewChatMessage:
		return "Новое сообщение"
	default:
		return "Уведомление"
	}
}

// List возвращает страницу уведомлений пользователя и общее количество.
// Выданные непрочитанные помечаются прочитанными: клиент их увидел.
func (s *NotificationService) List(ctx context.Context, userID uuid.UUID, onlyUnread bool, limit, offset int) ([]models.Notification, int, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	notifications, total, err := s.notifications.List(ctx, userID, onlyUnread, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("notification service: список %w", err)
	}

	unreadIDs := make([]uuid.UUID, 0, len(notifications))
	for _, n := range notifications {
		if !n.Read {
			unreadIDs = append(unreadIDs, n.ID)
		}
	}
	if len(unreadIDs) > 0 {
		if err := s.notifications.MarkListedRead(ctx, userID, unreadIDs); err != nil {
			s.log.WithError(err).Warn("не удалось пометить выданные уведомления прочитанными")
		}
	}
	return notifications, total, nil
}

// GetByID возвращает уведомление пользователя. Непрочитанное помечается
// прочитанным прямо при выдаче.
func (s *NotificationService) GetByID(ctx context.Context, id, userID uuid.UUID) (*models.Notification, error) {
	notification, err := s.notifications.GetByID(ctx, id, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotificationNotFound) {
			return nil, apperror.ErrNotificationNotFound
		}
		return nil, fmt.Errorf("notification service: получение %w", err)
	}
	if !notification.Read {
		updated, err := s.notifications.SetRead(ctx, id, userID, true)
		if err != nil {
			s.log.WithError(err).WithField("notification_id", id).Warn("не удалось пометить уведомление прочитанным")
			return notification, nil
		}
		notification = updated
	}
	return notification, nil
}

// SetRead выставляет флаг прочтения одного уведомления.
func (s *NotificationService) SetRead(ctx context.Context, id, userID uuid.UUID, read bool) (*models.Notification, error) {
	notification, err := s.notifications.SetRead(ctx, id, userID, read)
	if err != nil {
		if errors.Is(err, repository.ErrNotificationNotFound) {
			return nil, apperror.ErrNotificationNotFound
		}
		return nil, fmt.Errorf("notification service: обновление прочтения %w", err)
	}
	return notification, nil
}

// ReadAll помечает перечисленные уведомления прочитанными и возвращает
// количество изменённых.
func (s *NotificationService) ReadAll(ctx context.Context, userID uuid.UUID, ids []uuid.UUID) (int64, error) {
	count, err := s.notifications.ReadAllByIDs(ctx, userID, ids)
	if err != nil {
		return 0, fmt.Errorf("notification service: массовое прочтение %w", err)
	}
	return count, nil
}

// CountUnread возвращает число непрочитанных уведомлений.
func (s *NotificationService) CountUnread(ctx context.Context, userID uuid.UUID) (int, error) {
	count, err := s.notifications.CountUnread(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("notification service: подсчёт непрочитанных %w", err)
	}
	return count, nil
}

// Delete удаляет уведомление пользователя.
func (s *NotificationService) Delete(ctx context.Context, id, userID uuid.UUID) error {
	if err := s.notifications.Delete(ctx, id, userID); err != nil {
		if errors.Is(err, repository.ErrNotificationNotFound) {
			return apperror.ErrNotificationNotFound
		}
		return fmt.Errorf("notification service: удаление %w", err)
	}
	return nil
}
