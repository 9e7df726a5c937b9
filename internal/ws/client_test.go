package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/assistmate/assistmate-backend/internal/models"
)

// fakeGateway фиксирует порядок обращений к чату.
type fakeGateway struct {
	mu       sync.Mutex
	calls    []string
	denyJoin bool
	notified *models.Chat
}

func (g *fakeGateway) record(call string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, call)
}

func (g *fakeGateway) recorded() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string{}, g.calls...)
}

func (g *fakeGateway) CanJoin(_ context.Context, _, _ uuid.UUID) (bool, error) {
	g.record("can_join")
	return !g.denyJoin, nil
}

func (g *fakeGateway) SendMessage(_ context.Context, requestID, senderID uuid.UUID, message string) (*models.Chat, error) {
	g.record("send")
	return &models.Chat{
		ID:        uuid.New(),
		RequestID: requestID,
		SenderID:  senderID,
		Message:   message,
	}, nil
}

func (g *fakeGateway) NotifyMessage(_ context.Context, chat *models.Chat) error {
	g.mu.Lock()
	g.notified = chat
	g.mu.Unlock()
	g.record("notify")
	return nil
}

func quietLog() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func rawEvent(t *testing.T, eventType string, payload any) []byte {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	raw, err := json.Marshal(map[string]json.RawMessage{
		"type": json.RawMessage(fmt.Sprintf("%q", eventType)),
		"data": data,
	})
	require.NoError(t, err)
	return raw
}

func TestSendMessageEventBroadcastsBeforePush(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	roomID := uuid.New()
	gateway := &fakeGateway{}
	sender := &Client{hub: hub, chat: gateway, log: quietLog(), userID: uuid.New(), send: make(chan []byte, 16)}
	peer := newTestClient()

	hub.Register(sender)
	hub.Register(peer)
	hub.Join(sender, roomID)
	hub.Join(peer, roomID)

	sender.handleEvent(context.Background(), rawEvent(t, EventSendMessage, sendMessagePayload{
		RequestID: roomID,
		Message:   "выезжаю через час",
	}))

	// Второй участник получает сообщение через комнату.
	payload := receive(t, peer)
	assert.Equal(t, EventReceiveMessage, payload["type"])
	data := payload["data"].(map[string]any)
	assert.Equal(t, "выезжаю через час", data["message"])

	// Push уходит после сохранения и рассылки.
	assert.Equal(t, []string{"send", "notify"}, gateway.recorded())
	require.NotNil(t, gateway.notified)
	assert.Equal(t, "выезжаю через час", gateway.notified.Message)
}

func TestJoinRoomEventValidatesAccess(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	roomID := uuid.New()
	gateway := &fakeGateway{denyJoin: true}
	client := &Client{hub: hub, chat: gateway, log: quietLog(), userID: uuid.New(), send: make(chan []byte, 16)}
	hub.Register(client)

	client.handleEvent(context.Background(), rawEvent(t, EventJoinRoom, joinRoomPayload{RequestID: roomID}))

	assert.Equal(t, []string{"can_join"}, gateway.recorded())
	assert.Equal(t, 0, hub.RoomSize(roomID))
}
