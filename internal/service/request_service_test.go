package service

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/assistmate/assistmate-backend/internal/dto"
	"github.com/assistmate/assistmate-backend/internal/models"
	"github.com/assistmate/assistmate-backend/internal/pkg/apperror"
	"github.com/assistmate/assistmate-backend/internal/repository"
)

// fakeRequestStore — потокобезопасное in-memory хранилище заявок.
// ApplyTransition повторяет семантику условного UPDATE: переход применяется
// только если текущий статус совпадает с ожидаемым.
type fakeRequestStore struct {
	mu       sync.Mutex
	requests map[uuid.UUID]*models.Request
}

func newFakeRequestStore() *fakeRequestStore {
	return &fakeRequestStore{requests: make(map[uuid.UUID]*models.Request)}
}

func (s *fakeRequestStore) Create(_ context.Context, request *models.Request, tempResolvers []uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	request.ID = uuid.New()
	request.TempResolvers = append([]uuid.UUID{}, tempResolvers...)
	clone := *request
	s.requests[request.ID] = &clone
	return nil
}

func (s *fakeRequestStore) GetByID(_ context.Context, id uuid.UUID) (*models.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	request, ok := s.requests[id]
	if !ok {
		return nil, repository.ErrRequestNotFound
	}
	clone := *request
	clone.TempResolvers = append([]uuid.UUID{}, request.TempResolvers...)
	return &clone, nil
}

func (s *fakeRequestStore) List(_ context.Context, filter repository.RequestFilter) ([]models.Request, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Request
	for _, request := range s.requests {
		if filter.UserID != nil && request.UserID != *filter.UserID {
			continue
		}
		if filter.Status != "" && request.Status != filter.Status {
			continue
		}
		out = append(out, *request)
	}
	return out, len(out), nil
}

func (s *fakeRequestStore) UpdateByOwner(_ context.Context, id uuid.UUID, update repository.OwnerUpdate) (*models.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	request, ok := s.requests[id]
	if !ok || request.Status != models.RequestStatusCreated {
		return nil, repository.ErrTransitionConflict
	}
	if title, ok := update.Fields["title"]; ok {
		request.Title = title.(string)
	}
	if description, ok := update.Fields["description"]; ok {
		request.Description = description.(string)
	}
	if update.Coordinate != nil {
		request.Longitude = update.Coordinate.Longitude()
		request.Latitude = update.Coordinate.Latitude()
	}
	if update.TempResolvers != nil {
		request.TempResolvers = append([]uuid.UUID{}, update.TempResolvers...)
	}
	clone := *request
	return &clone, nil
}

func (s *fakeRequestStore) ApplyTransition(_ context.Context, t repository.StatusTransition) (*models.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	request, ok := s.requests[t.RequestID]
	if !ok || request.Status != t.From {
		return nil, repository.ErrTransitionConflict
	}
	request.Status = t.To
	if !t.KeepResolver {
		request.ResolverID = t.Resolver
	}
	if t.SetOffer {
		request.RequestOffer = t.Offer
	}
	if t.RemoveTempResolver != nil {
		kept := request.TempResolvers[:0]
		for _, id := range request.TempResolvers {
			if id != *t.RemoveTempResolver {
				kept = append(kept, id)
			}
		}
		request.TempResolvers = kept
	}
	clone := *request
	clone.TempResolvers = append([]uuid.UUID{}, request.TempResolvers...)
	return &clone, nil
}

func (s *fakeRequestStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.requests[id]; !ok {
		return repository.ErrRequestNotFound
	}
	delete(s.requests, id)
	return nil
}

func (s *fakeRequestStore) NearbyForCandidate(_ context.Context, _ models.GeoPoint, _ float64, callerID uuid.UUID, _ int) ([]models.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Request
	for _, request := range s.requests {
		if models.IsTerminalStatus(request.Status) || request.CreatedBy == callerID {
			continue
		}
		if request.HasTempResolver(callerID) || (request.ResolverID != nil && *request.ResolverID == callerID) {
			out = append(out, *request)
		}
	}
	return out, nil
}

func (s *fakeRequestStore) Top(_ context.Context, _ models.GeoPoint, _ float64, excludeUserID uuid.UUID, _ int) ([]models.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Request
	for _, request := range s.requests {
		if models.IsTerminalStatus(request.Status) || request.CreatedBy == excludeUserID {
			continue
		}
		out = append(out, *request)
	}
	return out, nil
}

// fakeUserStore — in-memory хранилище пользователей.
type fakeUserStore struct {
	mu    sync.Mutex
	users map[uuid.UUID]*models.User
}

func newFakeUserStore(users ...*models.User) *fakeUserStore {
	store := &fakeUserStore{users: make(map[uuid.UUID]*models.User)}
	for _, user := range users {
		store.users[user.ID] = user
	}
	return store
}

func (s *fakeUserStore) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	clone := *user
	return &clone, nil
}

func (s *fakeUserStore) GetByUID(_ context.Context, uid string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, user := range s.users {
		if user.UID == uid {
			clone := *user
			return &clone, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (s *fakeUserStore) Create(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user.ID = uuid.New()
	clone := *user
	s.users[user.ID] = &clone
	return nil
}

func (s *fakeUserStore) UpdateProfile(_ context.Context, id uuid.UUID, fields map[string]interface{}) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	if username, ok := fields["username"]; ok {
		user.Username = username.(string)
	}
	clone := *user
	return &clone, nil
}

func (s *fakeUserStore) UpdateFmcToken(_ context.Context, id uuid.UUID, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	user.FmcToken = &token
	return nil
}

func (s *fakeUserStore) UpdateLocation(_ context.Context, id uuid.UUID, point models.GeoPoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	longitude := point.Longitude()
	latitude := point.Latitude()
	user.Longitude = &longitude
	user.Latitude = &latitude
	return nil
}

func (s *fakeUserStore) List(_ context.Context, excludeID uuid.UUID, _, _ string, _, _ int) ([]models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.User
	for _, user := range s.users {
		if user.ID != excludeID {
			out = append(out, *user)
		}
	}
	return out, nil
}

func (s *fakeUserStore) Nearby(_ context.Context, _ models.GeoPoint, _ float64, excludeID uuid.UUID, _, _ string, _ int) ([]models.User, error) {
	return s.List(context.Background(), excludeID, "", "", 0, 0)
}

// recordingNotifier копит отправленные уведомления.
type recordingNotifier struct {
	mu         sync.Mutex
	dispatches []Dispatch
}

func (n *recordingNotifier) Notify(_ context.Context, d Dispatch) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.dispatches = append(n.dispatches, d)
	return nil
}

func (n *recordingNotifier) all() []Dispatch {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Dispatch{}, n.dispatches...)
}

func testUser(name string) *models.User {
	token := "device-token-" + name
	return &models.User{
		ID:        uuid.New(),
		UID:       "uid-" + name,
		Username:  name,
		FirstName: name,
		FmcToken:  &token,
	}
}

func newTestRequestService(requests *fakeRequestStore, users *fakeUserStore, notifier *recordingNotifier) *RequestService {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return NewRequestService(requests, users, notifier, log)
}

func createTestRequest(t *testing.T, svc *RequestService, owner *models.User, candidates ...uuid.UUID) *models.Request {
	t.Helper()
	request, err := svc.Create(context.Background(), owner, dto.CreateRequestRequest{
		Title:       "Помочь с переездом",
		Category:    "household",
		Description: "Нужно перенести мебель на пятый этаж",
		Coordinate: &dto.Coordinate{
			Type:        "Point",
			Coordinates: [2]float64{77.5946, 12.9716},
		},
		TempResolvers: candidates,
	})
	require.NoError(t, err)
	return request
}

func TestCreateRequestSeedsCandidatesAndNotifies(t *testing.T) {
	owner := testUser("alice")
	candidate := testUser("bob")
	users := newFakeUserStore(owner, candidate)
	requests := newFakeRequestStore()
	notifier := &recordingNotifier{}
	svc := newTestRequestService(requests, users, notifier)

	request := createTestRequest(t, svc, owner, candidate.ID)

	assert.Equal(t, models.RequestStatusCreated, request.Status)
	assert.Equal(t, []uuid.UUID{candidate.ID}, request.TempResolvers)
	assert.Equal(t, 77.5946, request.Longitude)
	assert.Equal(t, 12.9716, request.Latitude)

	dispatches := notifier.all()
	require.Len(t, dispatches, 1)
	assert.Equal(t, models.TriggerRequestCreated, dispatches[0].Trigger)
	assert.Equal(t, candidate.ID, dispatches[0].Recipient.ID)
	assert.Equal(t, owner.ID, dispatches[0].OwnerID)
}

func TestCreateRequestUnknownFirstCandidate(t *testing.T) {
	owner := testUser("alice")
	users := newFakeUserStore(owner)
	requests := newFakeRequestStore()
	svc := newTestRequestService(requests, users, &recordingNotifier{})

	_, err := svc.Create(context.Background(), owner, dto.CreateRequestRequest{
		Title:       "Помочь с переездом",
		Category:    "household",
		Description: "Нужно перенести мебель",
		Coordinate: &dto.Coordinate{
			Type:        "Point",
			Coordinates: [2]float64{30.3, 59.9},
		},
		TempResolvers: []uuid.UUID{uuid.New()},
	})
	require.Error(t, err)

	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperror.ErrCodeUnauthorized, appErr.Code)
	assert.Empty(t, requests.requests)
}

func TestCreateRequestRejectsCreatorAsOnlyCandidate(t *testing.T) {
	owner := testUser("alice")
	users := newFakeUserStore(owner)
	requests := newFakeRequestStore()
	svc := newTestRequestService(requests, users, &recordingNotifier{})

	// Автор в кандидатах не считается: после очистки список пуст.
	_, err := svc.Create(context.Background(), owner, dto.CreateRequestRequest{
		Title:       "Помочь с переездом",
		Category:    "household",
		Description: "Нужно перенести мебель",
		Coordinate: &dto.Coordinate{
			Type:        "Point",
			Coordinates: [2]float64{30.3, 59.9},
		},
		TempResolvers: []uuid.UUID{owner.ID, owner.ID},
	})
	require.Error(t, err)
	assert.True(t, apperror.IsValidation(err))
	assert.Empty(t, requests.requests)
}

func TestAcceptAssignsResolverAndOffer(t *testing.T) {
	owner := testUser("alice")
	candidate := testUser("bob")
	users := newFakeUserStore(owner, candidate)
	requests := newFakeRequestStore()
	notifier := &recordingNotifier{}
	svc := newTestRequestService(requests, users, notifier)

	request := createTestRequest(t, svc, owner, candidate.ID)

	paid := true
	currency := "USD"
	amount := 20.0
	updated, err := svc.Act(context.Background(), candidate, request.ID, models.RequestActionAccept, dto.RequestActionRequest{
		Reason:        "will do",
		Paid:          &paid,
		Currency:      &currency,
		PaymentAmount: &amount,
	})
	require.NoError(t, err)

	assert.Equal(t, models.RequestStatusInProgress, updated.Status)
	require.NotNil(t, updated.ResolverID)
	assert.Equal(t, candidate.ID, *updated.ResolverID)
	assert.Empty(t, updated.TempResolvers)
	require.NotNil(t, updated.Reason)
	assert.Equal(t, "will do", *updated.Reason)
	require.NotNil(t, updated.Paid)
	assert.True(t, *updated.Paid)
	require.NotNil(t, updated.Currency)
	assert.Equal(t, "USD", *updated.Currency)
	require.NotNil(t, updated.PaymentAmount)
	assert.Equal(t, 20.0, *updated.PaymentAmount)

	// Ровно одно уведомление о принятии: автору, от кандидата.
	var accepted []Dispatch
	for _, d := range notifier.all() {
		if d.Trigger == models.TriggerRequestAccepted {
			accepted = append(accepted, d)
		}
	}
	require.Len(t, accepted, 1)
	assert.Equal(t, owner.ID, accepted[0].Recipient.ID)
	assert.Equal(t, candidate.ID, accepted[0].OwnerID)
}

func TestCreatorCannotActOnOwnRequest(t *testing.T) {
	owner := testUser("alice")
	candidate := testUser("bob")
	users := newFakeUserStore(owner, candidate)
	requests := newFakeRequestStore()
	svc := newTestRequestService(requests, users, &recordingNotifier{})

	request := createTestRequest(t, svc, owner, candidate.ID)

	for _, action := range []string{models.RequestActionAccept, models.RequestActionReject, models.RequestActionCancel} {
		_, err := svc.Act(context.Background(), owner, request.ID, action, dto.RequestActionRequest{})
		require.Error(t, err, action)
		assert.True(t, apperror.IsConflict(err), action)
	}
}

func TestActOnTerminalRequestConflicts(t *testing.T) {
	owner := testUser("alice")
	candidate := testUser("bob")
	other := testUser("carol")
	users := newFakeUserStore(owner, candidate, other)
	requests := newFakeRequestStore()
	svc := newTestRequestService(requests, users, &recordingNotifier{})

	request := createTestRequest(t, svc, owner, candidate.ID, other.ID)

	_, err := svc.Act(context.Background(), candidate, request.ID, models.RequestActionReject, dto.RequestActionRequest{Reason: "занят"})
	require.NoError(t, err)

	_, err = svc.Act(context.Background(), other, request.ID, models.RequestActionAccept, dto.RequestActionRequest{})
	require.Error(t, err)
	assert.True(t, apperror.IsConflict(err))
	assert.Contains(t, err.Error(), models.RequestStatusRejected)
}

func TestConcurrentAcceptExactlyOneWins(t *testing.T) {
	owner := testUser("alice")
	first := testUser("bob")
	second := testUser("carol")
	users := newFakeUserStore(owner, first, second)
	requests := newFakeRequestStore()
	svc := newTestRequestService(requests, users, &recordingNotifier{})

	request := createTestRequest(t, svc, owner, first.ID, second.ID)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, actor := range []*models.User{first, second} {
		wg.Add(1)
		go func(i int, actor *models.User) {
			defer wg.Done()
			_, errs[i] = svc.Act(context.Background(), actor, request.ID, models.RequestActionAccept, dto.RequestActionRequest{})
		}(i, actor)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			assert.True(t, apperror.IsConflict(err))
			assert.Contains(t, err.Error(), models.RequestStatusInProgress)
		}
	}
	assert.Equal(t, 1, succeeded)

	final, err := svc.GetByID(context.Background(), request.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusInProgress, final.Status)
	require.NotNil(t, final.ResolverID)
}

func TestUnknownActionRejected(t *testing.T) {
	owner := testUser("alice")
	candidate := testUser("bob")
	users := newFakeUserStore(owner, candidate)
	requests := newFakeRequestStore()
	svc := newTestRequestService(requests, users, &recordingNotifier{})

	request := createTestRequest(t, svc, owner, candidate.ID)

	_, err := svc.Act(context.Background(), candidate, request.ID, "approve", dto.RequestActionRequest{})
	require.Error(t, err)
	assert.True(t, apperror.IsNotFound(err))
}

func TestCompleteByParticipant(t *testing.T) {
	owner := testUser("alice")
	candidate := testUser("bob")
	users := newFakeUserStore(owner, candidate)
	requests := newFakeRequestStore()
	svc := newTestRequestService(requests, users, &recordingNotifier{})

	request := createTestRequest(t, svc, owner, candidate.ID)

	_, err := svc.Act(context.Background(), candidate, request.ID, models.RequestActionAccept, dto.RequestActionRequest{})
	require.NoError(t, err)

	// Посторонний завершить не может.
	stranger := testUser("dave")
	_, err = svc.Act(context.Background(), stranger, request.ID, models.RequestActionComplete, dto.RequestActionRequest{})
	require.Error(t, err)

	updated, err := svc.Act(context.Background(), owner, request.ID, models.RequestActionComplete, dto.RequestActionRequest{})
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusCompleted, updated.Status)
	require.NotNil(t, updated.ResolverID)
	assert.Equal(t, candidate.ID, *updated.ResolverID)
}

func TestUpdateOnlyWhileCreated(t *testing.T) {
	owner := testUser("alice")
	candidate := testUser("bob")
	users := newFakeUserStore(owner, candidate)
	requests := newFakeRequestStore()
	svc := newTestRequestService(requests, users, &recordingNotifier{})

	request := createTestRequest(t, svc, owner, candidate.ID)

	_, err := svc.Act(context.Background(), candidate, request.ID, models.RequestActionAccept, dto.RequestActionRequest{})
	require.NoError(t, err)

	title := "Новый заголовок"
	_, err = svc.Update(context.Background(), owner, request.ID, dto.UpdateRequestRequest{Title: &title})
	require.Error(t, err)
	assert.True(t, apperror.IsConflict(err))
}

func TestDeleteForeignRequestForbidden(t *testing.T) {
	owner := testUser("alice")
	candidate := testUser("bob")
	users := newFakeUserStore(owner, candidate)
	requests := newFakeRequestStore()
	svc := newTestRequestService(requests, users, &recordingNotifier{})

	request := createTestRequest(t, svc, owner, candidate.ID)

	err := svc.Delete(context.Background(), candidate, request.ID)
	require.Error(t, err)

	require.NoError(t, svc.Delete(context.Background(), owner, request.ID))
	_, err = svc.GetByID(context.Background(), request.ID)
	assert.True(t, apperror.IsNotFound(err))
}
