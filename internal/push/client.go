package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// Message — push-сообщение для доставки на устройство пользователя.
type Message struct {
	Token     string    `json:"token"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	RequestID uuid.UUID `json:"request_id"`
	UserID    uuid.UUID `json:"user_id"`
}

// Client отправляет push-уведомления через внешний шлюз доставки.
// Пустой baseURL означает, что доставка выключена: Send становится no-op.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient создаёт клиент шлюза push-доставки.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Enabled сообщает, настроена ли доставка.
func (c *Client) Enabled() bool {
	return c.baseURL != ""
}

// Send доставляет одно сообщение. Ошибка доставки не критична для вызывающего:
// сервис уведомлений логирует её и продолжает работу.
func (c *Client) Send(ctx context.Context, msg Message) error {
	if !c.Enabled() {
		return nil
	}
	if msg.Token == "" {
		return fmt.Errorf("push: пустой токен доставки")
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("push: сериализация сообщения %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/send", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("push: создание запроса %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("push: отправка запроса %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("push: шлюз вернул статус %d: %s", resp.StatusCode, string(body))
	}
	return nil
}
