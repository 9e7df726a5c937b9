package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/assistmate/assistmate-backend/internal/models"
	"github.com/assistmate/assistmate-backend/internal/pkg/apperror"
	"github.com/assistmate/assistmate-backend/internal/repository"
	"github.com/assistmate/assistmate-backend/internal/validation"
)

// ChatStore описывает хранилище сообщений чата.
type ChatStore interface {
	Create(ctx context.Context, chat *models.Chat) error
	ListByRequest(ctx context.Context, requestID uuid.UUID) ([]models.Chat, error)
	CountByRequest(ctx context.Context, requestID uuid.UUID) (int, error)
}

// ChatActivityMarker отмечает активность переписки на заявке.
type ChatActivityMarker interface {
	AppendChat(ctx context.Context, requestID uuid.UUID) error
}

// ChatService управляет перепиской по заявке: допуск участников,
// сохранение сообщений и push-уведомление второго участника.
type ChatService struct {
	chats    ChatStore
	requests RequestStore
	users    UserStore
	activity ChatActivityMarker
	notifier Notifier
	log      *logrus.Logger
}

// NewChatService создаёт сервис чатов.
func NewChatService(chats ChatStore, requests RequestStore, users UserStore, activity ChatActivityMarker, notifier Notifier, log *logrus.Logger) *ChatService {
	return &ChatService{
		chats:    chats,
		requests: requests,
		users:    users,
		activity: activity,
		notifier: notifier,
		log:      log,
	}
}

// CanJoin сообщает, может ли пользователь войти в комнату заявки.
// Допускаются только участники: автор и назначенный исполнитель.
func (s *ChatService) CanJoin(ctx context.Context, requestID, userID uuid.UUID) (bool, error) {
	request, err := s.loadRequest(ctx, requestID)
	if err != nil {
		return false, err
	}
	return request.IsParticipant(userID), nil
}

func (s *ChatService) loadRequest(ctx context.Context, requestID uuid.UUID) (*models.Request, error) {
	request, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, repository.ErrRequestNotFound) {
			return nil, apperror.ErrRequestNotFound
		}
		return nil, fmt.Errorf("chat service: загрузка заявки %w", err)
	}
	return request, nil
}

// SendMessage сохраняет сообщение и возвращает его с публичными полями
// отправителя. Push второму участнику отправляется отдельным шагом
// NotifyMessage уже после рассылки по комнате.
func (s *ChatService) SendMessage(ctx context.Context, requestID, senderID uuid.UUID, message string) (*models.Chat, error) {
	text := validation.NormalizeText(message)
	if err := validation.ValidateLength("сообщение", text, validation.MinMessageLength, validation.MaxMessageLength); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}

	request, err := s.loadRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if request.ResolverID == nil {
		return nil, apperror.New(apperror.ErrCodeConflict, "чат доступен после принятия заявки")
	}
	if !request.IsParticipant(senderID) {
		return nil, apperror.ErrForbidden
	}

	sender, err := s.users.GetByID(ctx, senderID)
	if err != nil {
		return nil, fmt.Errorf("chat service: загрузка отправителя %w", err)
	}

	chat := &models.Chat{
		RequestID:             requestID,
		SenderID:              senderID,
		ParticipantUserID:     request.UserID,
		ParticipantResolverID: *request.ResolverID,
		Message:               text,
	}
	if err := s.chats.Create(ctx, chat); err != nil {
		return nil, fmt.Errorf("chat service: сохранение сообщения %w", err)
	}
	chat.Sender = &models.ChatSender{
		ID:        sender.ID,
		FirstName: sender.FirstName,
		LastName:  sender.LastName,
		Avatar:    sender.Avatar,
	}

	if err := s.activity.AppendChat(ctx, requestID); err != nil {
		s.log.WithError(err).WithField("request_id", requestID).Warn("не удалось отметить активность переписки")
	}
	return chat, nil
}

// NotifyMessage отправляет push второму участнику о сохранённом сообщении:
// оффлайн-доставка вместо сокета. Заголовок уведомления называет
// отправителя. Ошибка доставки не влияет на сохранённое сообщение.
func (s *ChatService) NotifyMessage(ctx context.Context, chat *models.Chat) error {
	request, err := s.loadRequest(ctx, chat.RequestID)
	if err != nil {
		return err
	}

	sender, err := s.users.GetByID(ctx, chat.SenderID)
	if err != nil {
		return fmt.Errorf("chat service: загрузка отправителя %w", err)
	}

	recipientID := chat.ParticipantUserID
	if recipientID == chat.SenderID {
		recipientID = chat.ParticipantResolverID
	}
	recipient, err := s.users.GetByID(ctx, recipientID)
	if err != nil {
		return fmt.Errorf("chat service: загрузка получателя %w", err)
	}

	return s.notifier.Notify(ctx, Dispatch{
		Trigger:     models.TriggerNewChatMessage,
		Request:     request,
		Recipient:   recipient,
		OwnerID:     chat.SenderID,
		Actor:       sender,
		Description: chat.Message,
	})
}

// History возвращает переписку по заявке участнику, от старых к новым.
func (s *ChatService) History(ctx context.Context, requestID, callerID uuid.UUID) ([]models.Chat, error) {
	request, err := s.loadRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if !request.IsParticipant(callerID) {
		return nil, apperror.ErrForbidden
	}

	chats, err := s.chats.ListByRequest(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("chat service: история %w", err)
	}
	return chats, nil
}
