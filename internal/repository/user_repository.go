package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/assistmate/assistmate-backend/internal/models"
)

// Ошибки уровня репозитория.
var (
	ErrUserNotFound = errors.New("user not found")
)

const userColumns = `id, uid, email, username, first_name, last_name, avatar, user_type, fmc_token, longitude, latitude, created_at, updated_at`

// UserRepository отвечает за работу с пользователями.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository создаёт экземпляр репозитория.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// GetByID возвращает пользователя по внутреннему идентификатору.
func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	query := fmt.Sprintf(`SELECT %s FROM users WHERE id = $1`, userColumns)
	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("user repository: get by id %w", err)
	}
	return &user, nil
}

// GetByUID возвращает пользователя по стабильному идентификатору identity-провайдера.
func (r *UserRepository) GetByUID(ctx context.Context, uid string) (*models.User, error) {
	var user models.User
	query := fmt.Sprintf(`SELECT %s FROM users WHERE uid = $1`, userColumns)
	if err := r.db.GetContext(ctx, &user, query, uid); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("user repository: get by uid %w", err)
	}
	return &user, nil
}

// Create сохраняет нового пользователя. UID неизменяем после вставки.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (uid, email, username, first_name, last_name, avatar, user_type)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at
	`
	if err := r.db.QueryRowxContext(
		ctx,
		query,
		user.UID,
		user.Email,
		user.Username,
		user.FirstName,
		user.LastName,
		user.Avatar,
		user.UserType,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt); err != nil {
		return fmt.Errorf("user repository: create %w", err)
	}
	return nil
}

// UpdateProfile обновляет только переданные поля профиля.
func (r *UserRepository) UpdateProfile(ctx context.Context, id uuid.UUID, fields map[string]interface{}) (*models.User, error) {
	if len(fields) == 0 {
		return r.GetByID(ctx, id)
	}

	allowed := map[string]bool{
		"username":   true,
		"first_name": true,
		"last_name":  true,
		"avatar":     true,
		"user_type":  true,
	}

	setParts := make([]string, 0, len(fields)+1)
	args := make([]interface{}, 0, len(fields)+1)
	argIndex := 1

	for column, value := range fields {
		if !allowed[column] {
			return nil, fmt.Errorf("user repository: недопустимое поле %q", column)
		}
		setParts = append(setParts, fmt.Sprintf("%s = $%d", column, argIndex))
		args = append(args, value)
		argIndex++
	}
	setParts = append(setParts, "updated_at = NOW()")
	args = append(args, id)

	query := fmt.Sprintf(
		`UPDATE users SET %s WHERE id = $%d RETURNING %s`,
		strings.Join(setParts, ", "), argIndex, userColumns,
	)

	var user models.User
	if err := r.db.GetContext(ctx, &user, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("user repository: update profile %w", err)
	}
	return &user, nil
}

// UpdateFmcToken сохраняет push-токен устройства.
func (r *UserRepository) UpdateFmcToken(ctx context.Context, id uuid.UUID, token string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET fmc_token = $1, updated_at = NOW() WHERE id = $2`, token, id)
	if err != nil {
		return fmt.Errorf("user repository: update fmc token %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return ErrUserNotFound
	}
	return nil
}

// UpdateLocation сохраняет текущую точку пользователя.
func (r *UserRepository) UpdateLocation(ctx context.Context, id uuid.UUID, point models.GeoPoint) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET longitude = $1, latitude = $2, updated_at = NOW() WHERE id = $3`,
		point.Longitude(), point.Latitude(), id)
	if err != nil {
		return fmt.Errorf("user repository: update location %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return ErrUserNotFound
	}
	return nil
}

// List возвращает пользователей с фильтрами поиска и типа, исключая excludeID.
func (r *UserRepository) List(ctx context.Context, excludeID uuid.UUID, search, userType string, limit, offset int) ([]models.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE id <> $1`, userColumns)
	args := []interface{}{excludeID}
	argIndex := 2

	if search != "" {
		query += fmt.Sprintf(
			` AND (username ILIKE $%d OR email ILIKE $%d OR first_name ILIKE $%d OR last_name ILIKE $%d)`,
			argIndex, argIndex, argIndex, argIndex,
		)
		args = append(args, "%"+search+"%")
		argIndex++
	}

	if userType != "" {
		query += fmt.Sprintf(` AND user_type = $%d`, argIndex)
		args = append(args, userType)
		argIndex++
	}

	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, argIndex, argIndex+1)
	args = append(args, limit, offset)

	var users []models.User
	if err := r.db.SelectContext(ctx, &users, query, args...); err != nil {
		return nil, fmt.Errorf("user repository: list %w", err)
	}
	return users, nil
}

// Nearby возвращает пользователей в радиусе radiusMeters от точки,
// упорядоченных от ближнего к дальнему, исключая excludeID.
func (r *UserRepository) Nearby(ctx context.Context, point models.GeoPoint, radiusMeters float64, excludeID uuid.UUID, search, userType string, limit int) ([]models.User, error) {
	query := fmt.Sprintf(`
		SELECT %s,
		       earth_distance(ll_to_earth($1, $2), ll_to_earth(latitude, longitude)) AS distance
		FROM users
		WHERE id <> $3
		  AND latitude IS NOT NULL AND longitude IS NOT NULL
		  AND earth_box(ll_to_earth($1, $2), $4) @> ll_to_earth(latitude, longitude)
		  AND earth_distance(ll_to_earth($1, $2), ll_to_earth(latitude, longitude)) <= $4
	`, userColumns)
	args := []interface{}{point.Latitude(), point.Longitude(), excludeID, radiusMeters}
	argIndex := 5

	if search != "" {
		query += fmt.Sprintf(
			` AND (username ILIKE $%d OR email ILIKE $%d OR first_name ILIKE $%d OR last_name ILIKE $%d)`,
			argIndex, argIndex, argIndex, argIndex,
		)
		args = append(args, "%"+search+"%")
		argIndex++
	}

	if userType != "" {
		query += fmt.Sprintf(` AND user_type = $%d`, argIndex)
		args = append(args, userType)
		argIndex++
	}

	query += fmt.Sprintf(` ORDER BY distance LIMIT $%d`, argIndex)
	args = append(args, limit)

	var users []models.User
	if err := r.db.SelectContext(ctx, &users, query, args...); err != nil {
		return nil, fmt.Errorf("user repository: nearby %w", err)
	}
	return users, nil
}
