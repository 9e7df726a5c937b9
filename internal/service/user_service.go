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

// UserService отвечает за профили: сопоставление identity-провайдера
// с внутренней записью, правки профиля, геолокацию и поиск рядом.
type UserService struct {
	users UserStore
	log   *logrus.Logger
}

// NewUserService создаёт сервис пользователей.
func NewUserService(users UserStore, log *logrus.Logger) *UserService {
	return &UserService{users: users, log: log}
}

// ResolveIdentity сопоставляет проверенные утверждения токена с внутренней
// записью пользователя. Первый вход создаёт профиль из утверждений.
func (s *UserService) ResolveIdentity(ctx context.Context, claims *IdentityClaims) (*models.User, error) {
	user, err := s.users.GetByUID(ctx, claims.Subject)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, repository.ErrUserNotFound) {
		return nil, fmt.Errorf("user service: поиск по uid %w", err)
	}

	user = &models.User{
		UID:       claims.Subject,
		Email:     claims.Email,
		Username:  claims.Username,
		FirstName: claims.FirstName,
		LastName:  claims.LastName,
	}
	if claims.Avatar != "" {
		avatar := claims.Avatar
		user.Avatar = &avatar
	}
	if user.Username == "" {
		user.Username = claims.Subject
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("user service: автосоздание профиля %w", err)
	}
	s.log.WithField("uid", claims.Subject).Info("создан профиль для нового пользователя")
	return user, nil
}

// GetByID возвращает пользователя по внутреннему идентификатору.
func (s *UserService) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, apperror.ErrUserNotFound
		}
		return nil, fmt.Errorf("user service: получение %w", err)
	}
	return user, nil
}

// UpdateProfile обновляет переданные поля профиля вызывающего.
func (s *UserService) UpdateProfile(ctx context.Context, id uuid.UUID, input dto.UpdateProfileRequest) (*models.User, error) {
	fields := map[string]interface{}{}
	if input.Username != nil {
		username := validation.NormalizeText(*input.Username)
		if err := validation.ValidateLength("имя пользователя", username, 1, 100); err != nil {
			return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
		}
		fields["username"] = username
	}
	if input.FirstName != nil {
		fields["first_name"] = validation.NormalizeText(*input.FirstName)
	}
	if input.LastName != nil {
		fields["last_name"] = validation.NormalizeText(*input.LastName)
	}
	if input.Avatar != nil {
		fields["avatar"] = *input.Avatar
	}
	if input.UserType != nil {
		fields["user_type"] = *input.UserType
	}

	user, err := s.users.UpdateProfile(ctx, id, fields)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, apperror.ErrUserNotFound
		}
		return nil, fmt.Errorf("user service: правка профиля %w", err)
	}
	return user, nil
}

// UpdateFmcToken сохраняет push-токен устройства вызывающего.
func (s *UserService) UpdateFmcToken(ctx context.Context, id uuid.UUID, token string) error {
	if validation.NormalizeText(token) == "" {
		return apperror.New(apperror.ErrCodeValidation, "токен доставки не может быть пустым")
	}
	if err := s.users.UpdateFmcToken(ctx, id, token); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return apperror.ErrUserNotFound
		}
		return fmt.Errorf("user service: обновление токена %w", err)
	}
	return nil
}

// UpdateLocation сохраняет текущую точку вызывающего.
func (s *UserService) UpdateLocation(ctx context.Context, id uuid.UUID, longitude, latitude float64) error {
	if err := validation.ValidateCoordinate(longitude, latitude); err != nil {
		return apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}
	if err := s.users.UpdateLocation(ctx, id, models.NewGeoPoint(longitude, latitude)); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return apperror.ErrUserNotFound
		}
		return fmt.Errorf("user service: обновление точки %w", err)
	}
	return nil
}

// List возвращает пользователей по поиску и типу, исключая вызывающего.
func (s *UserService) List(ctx context.Context, callerID uuid.UUID, search, userType string, limit, offset int) ([]models.User, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	users, err := s.users.List(ctx, callerID, validation.NormalizeText(search), userType, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("user service: список %w", err)
	}
	return users, nil
}

// Nearby возвращает пользователей в радиусе от точки, ближние первыми.
// Без явной точки используется сохранённая геолокация вызывающего.
func (s *UserService) Nearby(ctx context.Context, caller *models.User, longitude, latitude, radiusKm float64, search, userType string, limit int) ([]models.User, error) {
	if longitude == 0 && latitude == 0 {
		point, ok := caller.Coordinate()
		if !ok {
			return nil, apperror.New(apperror.ErrCodeValidation, "не задана точка поиска и нет сохранённой геолокации")
		}
		longitude = point.Longitude()
		latitude = point.Latitude()
	}

	point, radiusMeters, err := normalizeGeoQuery(longitude, latitude, radiusKm)
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	users, err := s.users.Nearby(ctx, point, radiusMeters, caller.ID, validation.NormalizeText(search), userType, limit)
	if err != nil {
		return nil, fmt.Errorf("user service: поиск рядом %w", err)
	}
	return users, nil
}
