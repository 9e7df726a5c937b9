package ws

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/assistmate/assistmate-backend/internal/goroutine"
)

// Hub управляет комнатами переписки. Комната привязана к заявке и хранит
// все подключения, прошедшие join; членство дополняется только самим
// подключением и очищается при его закрытии.
type Hub struct {
	mu         sync.RWMutex
	clients    map[*Client]struct{}
	rooms      map[uuid.UUID]map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	broadcast  chan roomMessage
}

type roomMessage struct {
	roomID  uuid.UUID
	payload []byte
}

// NewHub создаёт новый хаб.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]struct{}),
		rooms:      make(map[uuid.UUID]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan roomMessage, 32),
	}
}

// Run запускает главный цикл хаба.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		case msg := <-h.broadcast:
			h.send(msg.roomID, msg.payload)
		}
	}
}

// Register добавляет подключение. В комнаты оно попадает отдельными join.
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister убирает подключение из всех комнат.
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// Join добавляет подключение в комнату заявки.
func (h *Hub) Join(client *Client, roomID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.rooms[roomID]; !ok {
		h.rooms[roomID] = make(map[*Client]struct{})
	}
	h.rooms[roomID][client] = struct{}{}
}

// BroadcastToRoom отправляет событие всем подключениям комнаты.
// Сообщение клиенту следует контракту WebSocket API: поле "type"
// содержит имя события, "data" полезную нагрузку.
func (h *Hub) BroadcastToRoom(roomID uuid.UUID, event string, data any) error {
	payload := map[string]any{
		"type": event,
		"data": data,
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("ws: не удалось сериализовать сообщение: %w", err)
	}
	h.broadcast <- roomMessage{roomID: roomID, payload: raw}
	return nil
}

// RoomSize возвращает число подключений в комнате.
func (h *Hub) RoomSize(roomID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client] = struct{}{}
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.clients, client)
	for roomID, members := range h.rooms {
		if _, ok := members[client]; ok {
			delete(members, client)
			if len(members) == 0 {
				delete(h.rooms, roomID)
			}
		}
	}
}

func (h *Hub) send(roomID uuid.UUID, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.rooms[roomID] {
		select {
		case client.send <- payload:
		default:
			// Переполненный буфер: подключение не успевает читать, закрываем.
			c := client
			goroutine.SafeGo(func() {
				c.Close()
			})
		}
	}
}
