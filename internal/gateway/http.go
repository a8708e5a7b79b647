package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
)

// HTTPClient calls the provider's REST API with basic auth.
type HTTPClient struct {
	BaseURL string
	KeyID   string
	Secret  string
	Timeout time.Duration
}

func NewHTTPClient(baseURL, keyID, secret string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPClient{
		BaseURL: strings.TrimRight(baseURL, "/"),
		KeyID:   keyID,
		Secret:  secret,
		Timeout: timeout,
	}
}

func (c *HTTPClient) Name() string { return "gateway" }

func (c *HTTPClient) CreateOrder(ctx context.Context, req CreateOrderRequest) (RemoteOrder, error) {
	if err := ctx.Err(); err != nil {
		return RemoteOrder{}, err
	}
	timeout := c.Timeout
	if dl, ok := ctx.Deadline(); ok && time.Until(dl) < timeout {
		timeout = time.Until(dl)
	}

	a := fiber.Post(c.BaseURL + "/v1/orders")
	a.BasicAuth(c.KeyID, c.Secret).JSON(req).Timeout(timeout)
	if err := a.Parse(); err != nil {
		fiber.ReleaseAgent(a)
		return RemoteOrder{}, fmt.Errorf("gateway: %w", err)
	}
	code, body, errs := a.Bytes()
	if len(errs) > 0 {
		return RemoteOrder{}, fmt.Errorf("gateway: create order: %w", errors.Join(errs...))
	}
	if code < 200 || code > 299 {
		return RemoteOrder{}, fmt.Errorf("gateway: create order: status %d: %s", code, truncate(body, 200))
	}

	var out RemoteOrder
	if err := json.Unmarshal(body, &out); err != nil {
		return RemoteOrder{}, fmt.Errorf("gateway: decode order: %w", err)
	}
	if out.ID == "" {
		return RemoteOrder{}, errors.New("gateway: response has no order id")
	}
	return out, nil
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n])
	}
	return string(b)
}
