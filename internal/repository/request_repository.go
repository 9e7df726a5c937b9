package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/assistmate/assistmate-backend/internal/models"
)

// Ошибки уровня репозитория.
var (
	ErrRequestNotFound = errors.New("request not found")

	// ErrTransitionConflict означает, что условное обновление не нашло строку
	// в ожидаемом статусе: заявка уже переведена другим участником.
	ErrTransitionConflict = errors.New("request status transition conflict")
)

const requestColumns = `id, title, category, other_category, description, due_date_time, status, longitude, latitude,
	user_id, created_by, resolver_id, offer_paid, offer_amount, offer_currency, offer_reason, created_at, updated_at`

// RequestRepository отвечает за работу с заявками и списками кандидатов.
type RequestRepository struct {
	db *sqlx.DB
}

// NewRequestRepository создаёт экземпляр репозитория.
func NewRequestRepository(db *sqlx.DB) *RequestRepository {
	return &RequestRepository{db: db}
}

// Create сохраняет заявку и её кандидатов в одной транзакции.
func (r *RequestRepository) Create(ctx context.Context, request *models.Request, tempResolvers []uuid.UUID) error {
	tx, err := r.db.BeginTxx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("request repository: begin tx %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	query := `
		INSERT INTO requests (title, category, other_category, description, due_date_time, status, longitude, latitude, user_id, created_by)
		VALUES ($1, $2, $3, $4, $5, $6::request_status, $7, $8, $9, $10)
		RETURNING id, created_at, updated_at
	`
	if err = tx.QueryRowxContext(
		ctx,
		query,
		request.Title,
		request.Category,
		request.OtherCategory,
		request.Description,
		request.DueDateTime,
		request.Status,
		request.Longitude,
		request.Latitude,
		request.UserID,
		request.CreatedBy,
	).Scan(&request.ID, &request.CreatedAt, &request.UpdatedAt); err != nil {
		return fmt.Errorf("request repository: insert request %w", err)
	}

	if err = insertTempResolvers(ctx, tx, request.ID, tempResolvers); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("request repository: commit %w", err)
	}

	request.TempResolvers = tempResolvers
	return nil
}

// insertTempResolvers вставляет кандидатов одним batch-запросом, сохраняя порядок.
func insertTempResolvers(ctx context.Context, tx *sqlx.Tx, requestID uuid.UUID, resolvers []uuid.UUID) error {
	if len(resolvers) == 0 {
		return nil
	}

	query := `INSERT INTO request_temp_resolvers (request_id, user_id, position) VALUES `
	values := make([]interface{}, 0, len(resolvers)*3)
	for i, userID := range resolvers {
		if i > 0 {
			query += ", "
		}
		query += fmt.Sprintf("($%d, $%d, $%d)", i*3+1, i*3+2, i*3+3)
		values = append(values, requestID, userID, i)
	}
	query += " ON CONFLICT DO NOTHING"

	if _, err := tx.ExecContext(ctx, query, values...); err != nil {
		return fmt.Errorf("request repository: batch insert temp resolvers %w", err)
	}
	return nil
}

// GetByID возвращает заявку вместе со списком кандидатов.
func (r *RequestRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Request, error) {
	var request models.Request
	query := fmt.Sprintf(`SELECT %s FROM requests WHERE id = $1`, requestColumns)
	if err := r.db.GetContext(ctx, &request, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRequestNotFound
		}
		return nil, fmt.Errorf("request repository: get by id %w", err)
	}

	if err := r.loadTempResolvers(ctx, []*models.Request{&request}); err != nil {
		return nil, err
	}
	return &request, nil
}

// RequestFilter описывает фильтры списка заявок.
type RequestFilter struct {
	Search   string
	Category string
	Status   string
	UserID   *uuid.UUID
	Sort     string
	SortDir  string
	Limit    int
	Offset   int
}

// List возвращает заявки по фильтру и общее количество подходящих строк.
func (r *RequestRepository) List(ctx context.Context, filter RequestFilter) ([]models.Request, int, error) {
	where := []string{"TRUE"}
	args := []interface{}{}
	argIndex := 1

	if filter.Search != "" {
		where = append(where, fmt.Sprintf("(title ILIKE $%d OR description ILIKE $%d)", argIndex, argIndex))
		args = append(args, "%"+filter.Search+"%")
		argIndex++
	}
	if filter.Category != "" {
		where = append(where, fmt.Sprintf("category = $%d", argIndex))
		args = append(args, filter.Category)
		argIndex++
	}
	if filter.Status != "" {
		where = append(where, fmt.Sprintf("status = $%d::request_status", argIndex))
		args = append(args, filter.Status)
		argIndex++
	}
	if filter.UserID != nil {
		where = append(where, fmt.Sprintf("user_id = $%d", argIndex))
		args = append(args, *filter.UserID)
		argIndex++
	}

	whereClause := strings.Join(where, " AND ")

	var total int
	countQuery := `SELECT COUNT(*) FROM requests WHERE ` + whereClause
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("request repository: count %w", err)
	}

	// Сортировка только по белому списку колонок.
	sortColumn := "created_at"
	if filter.Sort == "title" || filter.Sort == "due_date_time" {
		sortColumn = filter.Sort
	}
	sortDir := "ASC"
	if strings.EqualFold(filter.SortDir, "desc") {
		sortDir = "DESC"
	}

	query := fmt.Sprintf(
		`SELECT %s FROM requests WHERE %s ORDER BY %s %s LIMIT $%d OFFSET $%d`,
		requestColumns, whereClause, sortColumn, sortDir, argIndex, argIndex+1,
	)
	args = append(args, filter.Limit, filter.Offset)

	var requests []models.Request
	if err := r.db.SelectContext(ctx, &requests, query, args...); err != nil {
		return nil, 0, fmt.Errorf("request repository: list %w", err)
	}

	if err := r.loadTempResolversBatch(ctx, requests); err != nil {
		return nil, 0, err
	}
	return requests, total, nil
}

// OwnerUpdate описывает правку заявки её автором.
type OwnerUpdate struct {
	Fields        map[string]interface{}
	Coordinate    *models.GeoPoint
	TempResolvers []uuid.UUID
}

// UpdateByOwner применяет правку только пока заявка в статусе CREATED.
// Возвращает ErrTransitionConflict, если заявка уже переведена дальше.
func (r *RequestRepository) UpdateByOwner(ctx context.Context, id uuid.UUID, update OwnerUpdate) (*models.Request, error) {
	allowed := map[string]bool{
		"title":          true,
		"category":       true,
		"other_category": true,
		"description":    true,
		"due_date_time":  true,
	}

	setParts := []string{"updated_at = NOW()"}
	args := []interface{}{}
	argIndex := 1

	for column, value := range update.Fields {
		if !allowed[column] {
			return nil, fmt.Errorf("request repository: недопустимое поле %q", column)
		}
		setParts = append(setParts, fmt.Sprintf("%s = $%d", column, argIndex))
		args = append(args, value)
		argIndex++
	}
	if update.Coordinate != nil {
		setParts = append(setParts, fmt.Sprintf("longitude = $%d, latitude = $%d", argIndex, argIndex+1))
		args = append(args, update.Coordinate.Longitude(), update.Coordinate.Latitude())
		argIndex += 2
	}

	tx, err := r.db.BeginTxx(ctx, &sql.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("request repository: begin tx %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	query := fmt.Sprintf(
		`UPDATE requests SET %s WHERE id = $%d AND status = 'CREATED' RETURNING %s`,
		strings.Join(setParts, ", "), argIndex, requestColumns,
	)
	args = append(args, id)

	var request models.Request
	if err = tx.GetContext(ctx, &request, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = ErrTransitionConflict
			return nil, err
		}
		return nil, fmt.Errorf("request repository: update by owner %w", err)
	}

	if update.TempResolvers != nil {
		if _, err = tx.ExecContext(ctx,
			`DELETE FROM request_temp_resolvers WHERE request_id = $1`, id); err != nil {
			return nil, fmt.Errorf("request repository: clear temp resolvers %w", err)
		}
		if err = insertTempResolvers(ctx, tx, id, update.TempResolvers); err != nil {
			return nil, err
		}
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("request repository: commit %w", err)
	}

	if err := r.loadTempResolvers(ctx, []*models.Request{&request}); err != nil {
		return nil, err
	}
	return &request, nil
}

// StatusTransition описывает атомарный перевод заявки между статусами.
type StatusTransition struct {
	RequestID uuid.UUID
	From      string
	To        string

	// Resolver — новый исполнитель; nil очищает колонку.
	// При KeepResolver колонка не меняется (завершение заявки).
	Resolver     *uuid.UUID
	KeepResolver bool

	SetOffer bool
	Offer    models.RequestOffer

	// RemoveTempResolver удаляет кандидата из списка после перехода.
	RemoveTempResolver *uuid.UUID
}

// ApplyTransition выполняет переход одним условным UPDATE: строка меняется
// только если текущий статус равен ожидаемому. Ноль затронутых строк —
// ErrTransitionConflict, проигравший параллельный вызов узнаёт об этом здесь.
func (r *RequestRepository) ApplyTransition(ctx context.Context, t StatusTransition) (*models.Request, error) {
	setParts := []string{"status = $1::request_status", "updated_at = NOW()"}
	args := []interface{}{t.To}
	argIndex := 2

	if !t.KeepResolver {
		setParts = append(setParts, fmt.Sprintf("resolver_id = $%d", argIndex))
		args = append(args, t.Resolver)
		argIndex++
	}
	if t.SetOffer {
		setParts = append(setParts, fmt.Sprintf(
			"offer_paid = $%d, offer_amount = $%d, offer_currency = $%d, offer_reason = $%d",
			argIndex, argIndex+1, argIndex+2, argIndex+3,
		))
		args = append(args, t.Offer.Paid, t.Offer.PaymentAmount, t.Offer.Currency, t.Offer.Reason)
		argIndex += 4
	}

	tx, err := r.db.BeginTxx(ctx, &sql.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("request repository: begin tx %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	query := fmt.Sprintf(
		`UPDATE requests SET %s WHERE id = $%d AND status = $%d::request_status RETURNING %s`,
		strings.Join(setParts, ", "), argIndex, argIndex+1, requestColumns,
	)
	args = append(args, t.RequestID, t.From)

	var request models.Request
	if err = tx.GetContext(ctx, &request, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = ErrTransitionConflict
			return nil, err
		}
		return nil, fmt.Errorf("request repository: apply transition %w", err)
	}

	if t.RemoveTempResolver != nil {
		if _, err = tx.ExecContext(ctx,
			`DELETE FROM request_temp_resolvers WHERE request_id = $1 AND user_id = $2`,
			t.RequestID, *t.RemoveTempResolver); err != nil {
			return nil, fmt.Errorf("request repository: remove temp resolver %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("request repository: commit %w", err)
	}

	if err := r.loadTempResolvers(ctx, []*models.Request{&request}); err != nil {
		return nil, err
	}
	return &request, nil
}

// Delete удаляет заявку. Сообщения чата и кандидаты удаляются каскадно.
func (r *RequestRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM requests WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("request repository: delete %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return ErrRequestNotFound
	}
	return nil
}

// NearbyForCandidate возвращает заявки в радиусе radiusMeters, в которых
// вызывающий является кандидатом или исполнителем. Свои заявки и заявки
// в конечных статусах исключаются; ближние первыми.
func (r *RequestRepository) NearbyForCandidate(ctx context.Context, point models.GeoPoint, radiusMeters float64, callerID uuid.UUID, limit int) ([]models.Request, error) {
	query := fmt.Sprintf(`
		SELECT %s,
		       earth_distance(ll_to_earth($1, $2), ll_to_earth(latitude, longitude)) AS distance
		FROM requests r
		WHERE created_by <> $3
		  AND status NOT IN ('COMPLETED', 'CANCELLED', 'REJECTED')
		  AND earth_box(ll_to_earth($1, $2), $4) @> ll_to_earth(latitude, longitude)
		  AND earth_distance(ll_to_earth($1, $2), ll_to_earth(latitude, longitude)) <= $4
		  AND (resolver_id = $3 OR EXISTS (
		        SELECT 1 FROM request_temp_resolvers tr
		        WHERE tr.request_id = r.id AND tr.user_id = $3))
		ORDER BY distance
		LIMIT $5
	`, requestColumns)

	var requests []models.Request
	if err := r.db.SelectContext(ctx, &requests, query,
		point.Latitude(), point.Longitude(), callerID, radiusMeters, limit); err != nil {
		return nil, fmt.Errorf("request repository: nearby for candidate %w", err)
	}

	if err := r.loadTempResolversBatch(ctx, requests); err != nil {
		return nil, err
	}
	return requests, nil
}

// Top возвращает заявки в радиусе без ограничения по участию вызывающего.
func (r *RequestRepository) Top(ctx context.Context, point models.GeoPoint, radiusMeters float64, excludeUserID uuid.UUID, limit int) ([]models.Request, error) {
	query := fmt.Sprintf(`
		SELECT %s,
		       earth_distance(ll_to_earth($1, $2), ll_to_earth(latitude, longitude)) AS distance
		FROM requests
		WHERE created_by <> $3
		  AND status NOT IN ('COMPLETED', 'CANCELLED', 'REJECTED')
		  AND earth_box(ll_to_earth($1, $2), $4) @> ll_to_earth(latitude, longitude)
		  AND earth_distance(ll_to_earth($1, $2), ll_to_earth(latitude, longitude)) <= $4
		ORDER BY distance
		LIMIT $5
	`, requestColumns)

	var requests []models.Request
	if err := r.db.SelectContext(ctx, &requests, query,
		point.Latitude(), point.Longitude(), excludeUserID, radiusMeters, limit); err != nil {
		return nil, fmt.Errorf("request repository: top %w", err)
	}

	if err := r.loadTempResolversBatch(ctx, requests); err != nil {
		return nil, err
	}
	return requests, nil
}

// AppendChat дописывает сообщение в последовательность чатов заявки.
// Сама запись сообщения живёт в chats; здесь только обновляется updated_at,
// чтобы заявка поднималась в списках по активности переписки.
func (r *RequestRepository) AppendChat(ctx context.Context, requestID uuid.UUID) error {
	if _, err := r.db.ExecContext(ctx,
		`UPDATE requests SET updated_at = NOW() WHERE id = $1`, requestID); err != nil {
		return fmt.Errorf("request repository: append chat %w", err)
	}
	return nil
}

// loadTempResolvers загружает кандидатов для набора заявок по указателям.
func (r *RequestRepository) loadTempResolvers(ctx context.Context, requests []*models.Request) error {
	if len(requests) == 0 {
		return nil
	}

	ids := make([]uuid.UUID, 0, len(requests))
	byID := make(map[uuid.UUID]*models.Request, len(requests))
	for _, req := range requests {
		req.TempResolvers = []uuid.UUID{}
		ids = append(ids, req.ID)
		byID[req.ID] = req
	}

	rows, err := r.db.QueryxContext(ctx, `
		SELECT request_id, user_id
		FROM request_temp_resolvers
		WHERE request_id = ANY($1)
		ORDER BY request_id, position
	`, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("request repository: load temp resolvers %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var requestID, userID uuid.UUID
		if err := rows.Scan(&requestID, &userID); err != nil {
			return fmt.Errorf("request repository: scan temp resolver %w", err)
		}
		if req, ok := byID[requestID]; ok {
			req.TempResolvers = append(req.TempResolvers, userID)
		}
	}
	return rows.Err()
}

func (r *RequestRepository) loadTempResolversBatch(ctx context.Context, requests []models.Request) error {
	ptrs := make([]*models.Request, 0, len(requests))
	for i := range requests {
		ptrs = append(ptrs, &requests[i])
	}
	return r.loadTempResolvers(ctx, ptrs)
}
