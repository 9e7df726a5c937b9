package ws

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/assistmate/assistmate-backend/internal/goroutine"
	"github.com/assistmate/assistmate-backend/internal/models"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Входящие и исходящие события комнат.
const (
	EventJoinRoom       = "join_room"
	EventSendMessage    = "send_message"
	EventReceiveMessage = "receive_message"
)

// ChatGateway проверяет допуск в комнату, сохраняет сообщения и
// отправляет push второму участнику после рассылки по комнате.
type ChatGateway interface {
	CanJoin(ctx context.Context, requestID, userID uuid.UUID) (bool, error)
	SendMessage(ctx context.Context, requestID, senderID uuid.UUID, message string) (*models.Chat, error)
	NotifyMessage(ctx context.Context, chat *models.Chat) error
}

// Client представляет одно подключение WebSocket.
type Client struct {
	conn   *websocket.Conn
	hub    *Hub
	chat   ChatGateway
	log    *logrus.Logger
	userID uuid.UUID
	send   chan []byte
}

// NewClient создаёт нового клиента.
func NewClient(conn *websocket.Conn, hub *Hub, chat ChatGateway, log *logrus.Logger, userID uuid.UUID) *Client {
	return &Client{
		conn:   conn,
		hub:    hub,
		chat:   chat,
		log:    log,
		userID: userID,
		send:   make(chan []byte, 16),
	}
}

// Run запускает обработку входящих и исходящих сообщений.
func (c *Client) Run(ctx context.Context) {
	goroutine.SafeGo(c.writePump)
	c.readPump(ctx)
}

// Close закрывает соединение.
func (c *Client) Close() {
	c.hub.Unregister(c)
	c.conn.Close()
}

type inboundEvent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type joinRoomPayload struct {
	RequestID uuid.UUID `json:"request_id"`
}

type sendMessagePayload struct {
	RequestID uuid.UUID `json:"request_id"`
	Message   string    `json:"message"`
}

// readPump обрабатывает события подключения последовательно: сообщения
// одного отправителя сохраняются и рассылаются в порядке поступления.
func (c *Client) readPump(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Errorf("ws: panic в readPump: %v", r)
		}
		c.Close()
	}()

	c.conn.SetReadLimit(512 * 1024)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		select {
		case <-ctx.Done():
			return
		default:
			_, raw, err := c.conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					c.log.WithError(err).Debug("ws: соединение закрыто неожиданно")
				}
				return
			}
			c.handleEvent(ctx, raw)
		}
	}
}

// handleEvent разбирает входящее событие. Ошибки чата клиенту не
// возвращаются: они логируются, операция отбрасывается.
func (c *Client) handleEvent(ctx context.Context, raw []byte) {
	var event inboundEvent
	if err := json.Unmarshal(raw, &event); err != nil {
		c.log.WithError(err).Debug("ws: нечитаемое событие")
		return
	}

	switch event.Type {
	case EventJoinRoom:
		var payload joinRoomPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil || payload.RequestID == uuid.Nil {
			c.log.Debug("ws: некорректный join_room")
			return
		}
		allowed, err := c.chat.CanJoin(ctx, payload.RequestID, c.userID)
		if err != nil {
			c.log.WithError(err).WithField("request_id", payload.RequestID).Warn("ws: проверка допуска не удалась")
			return
		}
		if !allowed {
			c.log.WithFields(logrus.Fields{
				"request_id": payload.RequestID,
				"user_id":    c.userID,
			}).Warn("ws: попытка входа в чужую комнату")
			return
		}
		c.hub.Join(c, payload.RequestID)

	case EventSendMessage:
		var payload sendMessagePayload
		if err := json.Unmarshal(event.Data, &payload); err != nil || payload.RequestID == uuid.Nil {
			c.log.Debug("ws: некорректный send_message")
			return
		}
		chat, err := c.chat.SendMessage(ctx, payload.RequestID, c.userID, payload.Message)
		if err != nil {
			c.log.WithError(err).WithField("request_id", payload.RequestID).Warn("ws: сообщение отброшено")
			return
		}
		if err := c.hub.BroadcastToRoom(payload.RequestID, EventReceiveMessage, chat); err != nil {
			c.log.WithError(err).Warn("ws: рассылка сообщения не удалась")
		}
		// Push идёт после рассылки: сначала комната, затем оффлайн-доставка.
		if err := c.chat.NotifyMessage(ctx, chat); err != nil {
			c.log.WithError(err).WithField("request_id", payload.RequestID).Warn("ws: не удалось уведомить о сообщении")
		}

	default:
		c.log.WithField("type", event.Type).Debug("ws: неизвестное событие")
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
