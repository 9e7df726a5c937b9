package ws

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient() *Client {
	return &Client{send: make(chan []byte, 16)}
}

func receive(t *testing.T, client *Client) map[string]any {
	t.Helper()
	select {
	case raw := <-client.send:
		var payload map[string]any
		require.NoError(t, json.Unmarshal(raw, &payload))
		return payload
	case <-time.After(time.Second):
		t.Fatal("сообщение не пришло")
		return nil
	}
}

func TestBroadcastReachesRoomMembers(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	roomID := uuid.New()
	first := newTestClient()
	second := newTestClient()
	outsider := newTestClient()

	hub.Register(first)
	hub.Register(second)
	hub.Register(outsider)
	hub.Join(first, roomID)
	hub.Join(second, roomID)
	hub.Join(outsider, uuid.New())

	require.NoError(t, hub.BroadcastToRoom(roomID, EventReceiveMessage, map[string]string{"message": "привет"}))

	for _, client := range []*Client{first, second} {
		payload := receive(t, client)
		assert.Equal(t, EventReceiveMessage, payload["type"])
		data := payload["data"].(map[string]any)
		assert.Equal(t, "привет", data["message"])
	}

	select {
	case <-outsider.send:
		t.Fatal("сообщение ушло в чужую комнату")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestUnregisterLeavesAllRooms(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	firstRoom := uuid.New()
	secondRoom := uuid.New()
	client := newTestClient()

	hub.Register(client)
	hub.Join(client, firstRoom)
	hub.Join(client, secondRoom)
	assert.Equal(t, 1, hub.RoomSize(firstRoom))

	hub.Unregister(client)

	require.Eventually(t, func() bool {
		return hub.RoomSize(firstRoom) == 0 && hub.RoomSize(secondRoom) == 0
	}, time.Second, 10*time.Millisecond)
}

func TestClientMayJoinSeveralRooms(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	firstRoom := uuid.New()
	secondRoom := uuid.New()
	client := newTestClient()

	hub.Register(client)
	hub.Join(client, firstRoom)
	hub.Join(client, secondRoom)

	require.NoError(t, hub.BroadcastToRoom(firstRoom, EventReceiveMessage, "a"))
	require.NoError(t, hub.BroadcastToRoom(secondRoom, EventReceiveMessage, "b"))

	got := []string{
		receive(t, client)["data"].(string),
		receive(t, client)["data"].(string),
	}
	assert.ElementsMatch(t, []string{"a", "b"}, got)
}
