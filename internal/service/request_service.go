package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/assistmate/assistmate-backend/internal/dto"
	"github.com/assistmate/assistmate-backend/internal/models"
	"github.com/assistmate/assistmate-backend/internal/pkg/apperror"
	"github.com/assistmate/assistmate-backend/internal/repository"
	"github.com/assistmate/assistmate-backend/internal/validation"
)

// RequestStore описывает хранилище заявок, нужное сервису.
type RequestStore interface {
	Create(ctx context.Context, request *models.Request, tempResolvers []uuid.UUID) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Request, error)
	List(ctx context.Context, filter repository.RequestFilter) ([]models.Request, int, error)
	UpdateByOwner(ctx context.Context, id uuid.UUID, update repository.OwnerUpdate) (*models.Request, error)
	ApplyTransition(ctx context.Context, t repository.StatusTransition) (*models.Request, error)
	Delete(ctx context.Context, id uuid.UUID) error
	NearbyForCandidate(ctx context.Context, point models.GeoPoint, radiusMeters float64, callerID uuid.UUID, limit int) ([]models.Request, error)
	Top(ctx context.Context, point models.GeoPoint, radiusMeters float64, excludeUserID uuid.UUID, limit int) ([]models.Request, error)
}

// UserStore описывает хранилище пользователей, нужное сервисам.
type UserStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByUID(ctx context.Context, uid string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	UpdateProfile(ctx context.Context, id uuid.UUID, fields map[string]interface{}) (*models.User, error)
	UpdateFmcToken(ctx context.Context, id uuid.UUID, token string) error
	UpdateLocation(ctx context.Context, id uuid.UUID, point models.GeoPoint) error
	List(ctx context.Context, excludeID uuid.UUID, search, userType string, limit, offset int) ([]models.User, error)
	Nearby(ctx context.Context, point models.GeoPoint, radiusMeters float64, excludeID uuid.UUID, search, userType string, limit int) ([]models.User, error)
}

// Notifier создаёт уведомление и отправляет push одному получателю.
type Notifier interface {
	Notify(ctx context.Context, d Dispatch) error
}

// RequestService владеет жизненным циклом заявки: создание, правки автора,
// переходы accept/reject/cancel/complete и гео-выборки кандидатов.
type RequestService struct {
	requests RequestStore
	users    UserStore
	notifier Notifier
	log      *logrus.Logger
}

// NewRequestService создаёт сервис заявок.
func NewRequestService(requests RequestStore, users UserStore, notifier Notifier, log *logrus.Logger) *RequestService {
	return &RequestService{
		requests: requests,
		users:    users,
		notifier: notifier,
		log:      log,
	}
}

// Create создаёт заявку в статусе CREATED и рассылает кандидатам
// уведомление request_created.
func (s *RequestService) Create(ctx context.Context, actor *models.User, input dto.CreateRequestRequest) (*models.Request, error) {
	title := validation.NormalizeText(input.Title)
	description := validation.NormalizeText(input.Description)

	if err := validation.ValidateLength("заголовок", title, validation.MinTitleLength, validation.MaxTitleLength); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}
	if err := validation.ValidateLength("описание", description, validation.MinDescriptionLength, validation.MaxDescriptionLength); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}
	if err := validation.ValidateLength("категория", input.Category, 1, validation.MaxCategoryLength); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}
	if input.Coordinate == nil {
		return nil, apperror.New(apperror.ErrCodeValidation, "координата обязательна")
	}
	longitude := input.Coordinate.Coordinates[0]
	latitude := input.Coordinate.Coordinates[1]
	if err := validation.ValidateCoordinate(longitude, latitude); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}
	// Автор и дубликаты в кандидатах не считаются: после очистки списка
	// должен остаться хотя бы один настоящий кандидат.
	tempResolvers := dedupeIDs(input.TempResolvers, actor.ID)
	if len(tempResolvers) == 0 {
		return nil, apperror.New(apperror.ErrCodeValidation, "нужен хотя бы один кандидат")
	}

	// Первый кандидат обязан существовать, иначе заявка не создаётся вовсе.
	if _, err := s.users.GetByID(ctx, tempResolvers[0]); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, apperror.New(apperror.ErrCodeUnauthorized, "кандидат не найден")
		}
		return nil, fmt.Errorf("request service: проверка кандидата %w", err)
	}

	request := &models.Request{
		Title:         title,
		Category:      input.Category,
		OtherCategory: input.OtherCategory,
		Description:   description,
		DueDateTime:   input.DueDateTime,
		Status:        models.RequestStatusCreated,
		Longitude:     longitude,
		Latitude:      latitude,
		UserID:        actor.ID,
		CreatedBy:     actor.ID,
	}
	if err := s.requests.Create(ctx, request, tempResolvers); err != nil {
		return nil, fmt.Errorf("request service: создание %w", err)
	}

	s.notifyCandidates(ctx, request, actor, models.TriggerRequestCreated, "", description)
	return request, nil
}

// GetByID возвращает заявку по идентификатору.
func (s *RequestService) GetByID(ctx context.Context, id uuid.UUID) (*models.Request, error) {
	request, err := s.requests.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrRequestNotFound) {
			return nil, apperror.ErrRequestNotFound
		}
		return nil, fmt.Errorf("request service: получение %w", err)
	}
	return request, nil
}

// ListOwn возвращает заявки, принадлежащие вызывающему.
func (s *RequestService) ListOwn(ctx context.Context, userID uuid.UUID, search, category, status string, limit, offset int) ([]models.Request, int, error) {
	if status != "" && !models.IsValidStatus(status) {
		return nil, 0, apperror.Newf(apperror.ErrCodeValidation, "неизвестный статус %q", status)
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	requests, total, err := s.requests.List(ctx, repository.RequestFilter{
		Search:   validation.NormalizeText(search),
		Category: category,
		Status:   status,
		UserID:   &userID,
		SortDir:  "desc",
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("request service: список %w", err)
	}
	return requests, total, nil
}

// Update применяет правку автора. Разрешена только пока заявка в CREATED;
// кандидаты получают уведомление request_updated.
func (s *RequestService) Update(ctx context.Context, actor *models.User, id uuid.UUID, input dto.UpdateRequestRequest) (*models.Request, error) {
	current, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.UserID != actor.ID {
		return nil, apperror.ErrForbidden
	}

	update := repository.OwnerUpdate{Fields: map[string]interface{}{}}
	if input.Title != nil {
		title := validation.NormalizeText(*input.Title)
		if err := validation.ValidateLength("заголовок", title, validation.MinTitleLength, validation.MaxTitleLength); err != nil {
			return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
		}
		update.Fields["title"] = title
	}
	if input.Category != nil {
		if err := validation.ValidateLength("категория", *input.Category, 1, validation.MaxCategoryLength); err != nil {
			return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
		}
		update.Fields["category"] = *input.Category
	}
	if input.OtherCategory != nil {
		update.Fields["other_category"] = *input.OtherCategory
	}
	if input.Description != nil {
		description := validation.NormalizeText(*input.Description)
		if err := validation.ValidateLength("описание", description, validation.MinDescriptionLength, validation.MaxDescriptionLength); err != nil {
			return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
		}
		update.Fields["description"] = description
	}
	if input.DueDateTime != nil {
		update.Fields["due_date_time"] = *input.DueDateTime
	}
	if input.Coordinate != nil {
		longitude := input.Coordinate.Coordinates[0]
		latitude := input.Coordinate.Coordinates[1]
		if err := validation.ValidateCoordinate(longitude, latitude); err != nil {
			return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
		}
		point := models.NewGeoPoint(longitude, latitude)
		update.Coordinate = &point
	}
	if input.TempResolvers != nil {
		tempResolvers := dedupeIDs(input.TempResolvers, actor.ID)
		if len(tempResolvers) == 0 {
			return nil, apperror.New(apperror.ErrCodeValidation, "нужен хотя бы один кандидат")
		}
		update.TempResolvers = tempResolvers
	}

	updated, err := s.requests.UpdateByOwner(ctx, id, update)
	if err != nil {
		if errors.Is(err, repository.ErrTransitionConflict) {
			return nil, s.conflictWithCurrentStatus(ctx, id)
		}
		return nil, fmt.Errorf("request service: правка %w", err)
	}

	s.notifyCandidates(ctx, updated, actor, models.TriggerRequestUpdated, "", updated.Description)
	return updated, nil
}

// Act выполняет переход жизненного цикла: accept, reject, cancel или complete.
// Переход применяется одним условным обновлением; при гонке проигравший
// получает конфликт с актуальным статусом.
func (s *RequestService) Act(ctx context.Context, actor *models.User, id uuid.UUID, action string, payload dto.RequestActionRequest) (*models.Request, error) {
	request, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	reason := validation.NormalizeText(payload.Reason)
	if reason != "" {
		if err := validation.ValidateLength("причина", reason, 0, validation.MaxReasonLength); err != nil {
			return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
		}
	}
	if payload.PaymentAmount != nil {
		if err := validation.ValidatePaymentAmount(*payload.PaymentAmount); err != nil {
			return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
		}
	}

	var transition repository.StatusTransition
	var trigger string

	switch action {
	case models.RequestActionAccept, models.RequestActionReject, models.RequestActionCancel:
		// Автор не может принимать, отклонять или отменять собственную заявку.
		if request.CreatedBy == actor.ID {
			return nil, apperror.New(apperror.ErrCodeConflict, "автор заявки не может выполнить это действие")
		}
		if !request.HasTempResolver(actor.ID) {
			return nil, apperror.ErrForbidden
		}
	case models.RequestActionComplete:
		if !request.IsParticipant(actor.ID) {
			return nil, apperror.ErrForbidden
		}
	default:
		// Неизвестное действие выглядит как несуществующий маршрут.
		return nil, apperror.Newf(apperror.ErrCodeNotFound, "неизвестное действие %q", action)
	}

	switch action {
	case models.RequestActionAccept:
		actorID := actor.ID
		transition = repository.StatusTransition{
			RequestID: id,
			From:      models.RequestStatusCreated,
			To:        models.RequestStatusInProgress,
			Resolver:  &actorID,
			SetOffer:  true,
			Offer: models.RequestOffer{
				Paid:          payload.Paid,
				PaymentAmount: payload.PaymentAmount,
				Currency:      payload.Currency,
				Reason:        optionalString(reason),
			},
			RemoveTempResolver: &actorID,
		}
		trigger = models.TriggerRequestAccepted

	case models.RequestActionReject:
		actorID := actor.ID
		transition = repository.StatusTransition{
			RequestID:          id,
			From:               models.RequestStatusCreated,
			To:                 models.RequestStatusRejected,
			SetOffer:           true,
			Offer:              models.RequestOffer{Reason: optionalString(reason)},
			RemoveTempResolver: &actorID,
		}
		trigger = models.TriggerRequestRejected

	case models.RequestActionCancel:
		transition = repository.StatusTransition{
			RequestID: id,
			From:      models.RequestStatusCreated,
			To:        models.RequestStatusCancelled,
			SetOffer:  true,
			Offer:     models.RequestOffer{Reason: optionalString(reason)},
		}
		trigger = models.TriggerRequestCancelled

	case models.RequestActionComplete:
		transition = repository.StatusTransition{
			RequestID:    id,
			From:         models.RequestStatusInProgress,
			To:           models.RequestStatusCompleted,
			KeepResolver: true,
			SetOffer:     false,
		}
		trigger = models.TriggerRequestCompleted
	}

	updated, err := s.requests.ApplyTransition(ctx, transition)
	if err != nil {
		if errors.Is(err, repository.ErrTransitionConflict) {
			return nil, s.conflictWithCurrentStatus(ctx, id)
		}
		return nil, fmt.Errorf("request service: переход %w", err)
	}

	s.notifyTransition(ctx, updated, actor, trigger, reason, payload.Description)
	return updated, nil
}

// Delete удаляет заявку автора. Переписка и кандидаты удаляются каскадно.
func (s *RequestService) Delete(ctx context.Context, actor *models.User, id uuid.UUID) error {
	request, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if request.UserID != actor.ID {
		return apperror.ErrForbidden
	}
	if err := s.requests.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrRequestNotFound) {
			return apperror.ErrRequestNotFound
		}
		return fmt.Errorf("request service: удаление %w", err)
	}
	return nil
}

// Nearby возвращает активные заявки в радиусе, где вызывающий является
// кандидатом или исполнителем, ближние первыми.
func (s *RequestService) Nearby(ctx context.Context, callerID uuid.UUID, longitude, latitude, radiusKm float64, limit int) ([]models.Request, error) {
	point, radiusMeters, err := normalizeGeoQuery(longitude, latitude, radiusKm)
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	requests, err := s.requests.NearbyForCandidate(ctx, point, radiusMeters, callerID, limit)
	if err != nil {
		return nil, fmt.Errorf("request service: поиск рядом %w", err)
	}
	return requests, nil
}

// Top возвращает активные чужие заявки в радиусе без ограничения по участию.
func (s *RequestService) Top(ctx context.Context, callerID uuid.UUID, longitude, latitude, radiusKm float64) ([]models.Request, error) {
	point, radiusMeters, err := normalizeGeoQuery(longitude, latitude, radiusKm)
	if err != nil {
		return nil, err
	}

	requests, err := s.requests.Top(ctx, point, radiusMeters, callerID, 20)
	if err != nil {
		return nil, fmt.Errorf("request service: топ заявок %w", err)
	}
	return requests, nil
}

// notifyTransition отправляет уведомление о переходе второму участнику:
// действовавший кандидат или исполнитель извещает автора, автор извещает
// исполнителя.
func (s *RequestService) notifyTransition(ctx context.Context, request *models.Request, actor *models.User, trigger, reason, description string) {
	recipientID := request.UserID
	if recipientID == actor.ID {
		if request.ResolverID == nil {
			return
		}
		recipientID = *request.ResolverID
	}

	recipient, err := s.users.GetByID(ctx, recipientID)
	if err != nil {
		s.log.WithError(err).WithField("user_id", recipientID).Warn("получатель уведомления не найден")
		return
	}
	if err := s.notifier.Notify(ctx, Dispatch{
		Trigger:     trigger,
		Request:     request,
		Recipient:   recipient,
		OwnerID:     actor.ID,
		Actor:       actor,
		Reason:      reason,
		Description: description,
	}); err != nil {
		s.log.WithError(err).WithField("request_id", request.ID).Warn("не удалось создать уведомление о переходе")
	}
}

// notifyCandidates извещает каждого кандидата заявки; кандидаты без
// профиля или токена молча пропускаются.
func (s *RequestService) notifyCandidates(ctx context.Context, request *models.Request, actor *models.User, trigger, reason, description string) {
	for _, candidateID := range request.TempResolvers {
		candidate, err := s.users.GetByID(ctx, candidateID)
		if err != nil {
			s.log.WithError(err).WithField("user_id", candidateID).Warn("кандидат не найден, уведомление пропущено")
			continue
		}
		if err := s.notifier.Notify(ctx, Dispatch{
			Trigger:     trigger,
			Request:     request,
			Recipient:   candidate,
			OwnerID:     request.UserID,
			Actor:       actor,
			Reason:      reason,
			Description: description,
		}); err != nil {
			s.log.WithError(err).WithField("request_id", request.ID).Warn("не удалось создать уведомление кандидату")
		}
	}
}

// conflictWithCurrentStatus перечитывает заявку и строит конфликт,
// называющий её актуальный статус.
func (s *RequestService) conflictWithCurrentStatus(ctx context.Context, id uuid.UUID) error {
	current, err := s.requests.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrRequestNotFound) {
			return apperror.ErrRequestNotFound
		}
		return fmt.Errorf("request service: перечитывание после конфликта %w", err)
	}
	return apperror.Newf(apperror.ErrCodeConflict, "заявка уже в статусе %s", current.Status)
}

// normalizeGeoQuery валидирует точку и радиус, переводя километры в метры.
func normalizeGeoQuery(longitude, latitude, radiusKm float64) (models.GeoPoint, float64, error) {
	if err := validation.ValidateCoordinate(longitude, latitude); err != nil {
		return models.GeoPoint{}, 0, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}
	if radiusKm == 0 {
		radiusKm = validation.DefaultRadiusKm
	}
	if err := validation.ValidateRadiusKm(radiusKm); err != nil {
		return models.GeoPoint{}, 0, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}
	return models.NewGeoPoint(longitude, latitude), radiusKm * 1000, nil
}

// dedupeIDs убирает дубликаты и автора из списка кандидатов, сохраняя порядок.
func dedupeIDs(ids []uuid.UUID, exclude uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]bool, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == exclude || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
