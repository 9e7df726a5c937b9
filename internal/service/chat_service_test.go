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
)

// fakeChatStore — append-only хранилище сообщений.
type fakeChatStore struct {
	mu    sync.Mutex
	chats []models.Chat
}

func (s *fakeChatStore) Create(_ context.Context, chat *models.Chat) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	chat.ID = uuid.New()
	s.chats = append(s.chats, *chat)
	return nil
}

func (s *fakeChatStore) ListByRequest(_ context.Context, requestID uuid.UUID) ([]models.Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Chat
	for _, chat := range s.chats {
		if chat.RequestID == requestID {
			out = append(out, chat)
		}
	}
	return out, nil
}

func (s *fakeChatStore) CountByRequest(_ context.Context, requestID uuid.UUID) (int, error) {
	chats, _ := s.ListByRequest(context.Background(), requestID)
	return len(chats), nil
}

type fakeActivityMarker struct {
	mu    sync.Mutex
	marks []uuid.UUID
}

func (m *fakeActivityMarker) AppendChat(_ context.Context, requestID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.marks = append(m.marks, requestID)
	return nil
}

type chatFixture struct {
	svc      *ChatService
	chats    *fakeChatStore
	notifier *recordingNotifier
	owner    *models.User
	resolver *models.User
	request  *models.Request
}

// newChatFixture поднимает заявку с назначенным исполнителем.
func newChatFixture(t *testing.T) *chatFixture {
	t.Helper()

	owner := testUser("alice")
	resolver := testUser("bob")
	users := newFakeUserStore(owner, resolver)
	requests := newFakeRequestStore()
	notifier := &recordingNotifier{}
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	requestSvc := NewRequestService(requests, users, notifier, log)
	request := createTestRequest(t, requestSvc, owner, resolver.ID)
	_, err := requestSvc.Act(context.Background(), resolver, request.ID, models.RequestActionAccept, dto.RequestActionRequest{})
	require.NoError(t, err)

	chats := &fakeChatStore{}
	svc := NewChatService(chats, requests, users, &fakeActivityMarker{}, notifier, log)
	return &chatFixture{
		svc:      svc,
		chats:    chats,
		notifier: notifier,
		owner:    owner,
		resolver: resolver,
		request:  request,
	}
}

func TestSendMessagePersistsAndNotifies(t *testing.T) {
	f := newChatFixture(t)

	chat, err := f.svc.SendMessage(context.Background(), f.request.ID, f.resolver.ID, "выезжаю через час")
	require.NoError(t, err)

	assert.Equal(t, f.resolver.ID, chat.SenderID)
	assert.Equal(t, f.owner.ID, chat.ParticipantUserID)
	assert.Equal(t, f.resolver.ID, chat.ParticipantResolverID)
	require.NotNil(t, chat.Sender)
	assert.Equal(t, f.resolver.FirstName, chat.Sender.FirstName)

	count, err := f.chats.CountByRequest(context.Background(), f.request.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	// Сохранение само по себе push не отправляет: доставка идёт после
	// рассылки по комнате, отдельным шагом.
	assert.Empty(t, chatDispatches(f.notifier))

	require.NoError(t, f.svc.NotifyMessage(context.Background(), chat))

	dispatches := chatDispatches(f.notifier)
	require.Len(t, dispatches, 1)
	assert.Equal(t, f.owner.ID, dispatches[0].Recipient.ID)
	assert.Equal(t, f.resolver.ID, dispatches[0].OwnerID)
	assert.Equal(t, "выезжаю через час", dispatches[0].Description)

	// Отправитель передаётся актором: его имя попадает в заголовок push.
	require.NotNil(t, dispatches[0].Actor)
	assert.Equal(t, f.resolver.ID, dispatches[0].Actor.ID)
}

func chatDispatches(notifier *recordingNotifier) []Dispatch {
	var out []Dispatch
	for _, d := range notifier.all() {
		if d.Trigger == models.TriggerNewChatMessage {
			out = append(out, d)
		}
	}
	return out
}

func TestSendMessageByNonParticipantDropped(t *testing.T) {
	f := newChatFixture(t)
	stranger := testUser("carol")

	_, err := f.svc.SendMessage(context.Background(), f.request.ID, stranger.ID, "привет")
	require.Error(t, err)

	count, err := f.chats.CountByRequest(context.Background(), f.request.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestSendMessageRequiresResolver(t *testing.T) {
	owner := testUser("alice")
	candidate := testUser("bob")
	users := newFakeUserStore(owner, candidate)
	requests := newFakeRequestStore()
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	requestSvc := NewRequestService(requests, users, &recordingNotifier{}, log)
	request := createTestRequest(t, requestSvc, owner, candidate.ID)

	chats := &fakeChatStore{}
	svc := NewChatService(chats, requests, users, &fakeActivityMarker{}, &recordingNotifier{}, log)

	_, err := svc.SendMessage(context.Background(), request.ID, owner.ID, "есть кто живой?")
	require.Error(t, err)
	assert.True(t, apperror.IsConflict(err))
}

func TestSendMessageRejectsEmptyText(t *testing.T) {
	f := newChatFixture(t)

	_, err := f.svc.SendMessage(context.Background(), f.request.ID, f.owner.ID, "   ")
	require.Error(t, err)
	assert.True(t, apperror.IsValidation(err))
}

func TestCanJoinOnlyParticipants(t *testing.T) {
	f := newChatFixture(t)

	for _, userID := range []uuid.UUID{f.owner.ID, f.resolver.ID} {
		ok, err := f.svc.CanJoin(context.Background(), f.request.ID, userID)
		require.NoError(t, err)
		assert.True(t, ok)
	}

	ok, err := f.svc.CanJoin(context.Background(), f.request.ID, uuid.New())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHistoryParticipantOnlyAndOrdered(t *testing.T) {
	f := newChatFixture(t)

	for _, text := range []string{"первое", "второе", "третье"} {
		_, err := f.svc.SendMessage(context.Background(), f.request.ID, f.owner.ID, text)
		require.NoError(t, err)
	}

	history, err := f.svc.History(context.Background(), f.request.ID, f.resolver.ID)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, "первое", history[0].Message)
	assert.Equal(t, "третье", history[2].Message)

	_, err = f.svc.History(context.Background(), f.request.ID, uuid.New())
	require.Error(t, err)
}
