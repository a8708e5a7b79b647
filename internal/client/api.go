// Package client is the buyer-side SDK: an optimistic copy of the cart that
// defers to the server, and the checkout wizard.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"

	"basecamp/internal/domain"
)

// API is the server surface the client needs.
type API interface {
	Cart(ctx context.Context) ([]domain.CartLine, error)
	AddLine(ctx context.Context, k domain.VariantKey, qty int) (domain.CartLine, error)
	UpdateQuantity(ctx context.Context, lineID string, qty int) (line domain.CartLine, removed bool, err error)
	RemoveLine(ctx context.Context, lineID string) error
	Proposal(ctx context.Context, addressID string, method domain.PaymentMethod) (domain.Proposal, error)
	PlaceCOD(ctx context.Context, addressID, token string) (domain.Order, error)

	StartGateway(ctx context.Context, addressID string) (GatewayOrder, error)
	VerifyGateway(ctx context.Context, cb domain.GatewayCallback) (domain.Order, error)
	ReportGatewayFailure(ctx context.Context, externalOrderID, reason string) error
}

// GatewayOrder is what the hosted payment widget is opened with.
type GatewayOrder struct {
	ExternalOrderID string `json:"externalOrderId"`
	Amount          int64  `json:"amount"`
	Currency        string `json:"currency"`
	KeyID           string `json:"keyId"`
}

// StatusError is a response the server answered with a non-2xx status.
type StatusError struct {
	Status  int
	Code    string
	Message string
	Field   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("client: %d %s: %s", e.Status, e.Code, e.Message)
}

var codeErrors = map[string]error{
	"EMPTY_CART":                  domain.ErrEmptyCart,
	"NO_SHIPPING_ADDRESS":         domain.ErrNoShippingAddress,
	"VALIDATION":                  domain.ErrValidation,
	"INSUFFICIENT_STOCK":          domain.ErrInsufficientStock,
	"PAYMENT_VERIFICATION_FAILED": domain.ErrPaymentVerificationFailed,
	"ILLEGAL_TRANSITION":          domain.ErrIllegalTransition,
	"NOT_FOUND":                   domain.ErrNotFound,
	"FORBIDDEN":                   domain.ErrForbidden,
	"GATEWAY_UNAVAILABLE":         domain.ErrGatewayUnavailable,
}

// Is lets callers test server errors against the domain taxonomy.
func (e *StatusError) Is(target error) bool {
	return codeErrors[e.Code] == target && target != nil
}

// IsRejection reports whether the server refused the request (4xx), as
// opposed to the request never getting an answer.
func IsRejection(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Status >= 400 && se.Status < 500
}

// HTTPAPI talks to the buyer REST API with the session cookie.
type HTTPAPI struct {
	BaseURL string
	SID     string
	Timeout time.Duration
}

func NewHTTPAPI(baseURL string) *HTTPAPI {
	return &HTTPAPI{BaseURL: strings.TrimRight(baseURL, "/"), Timeout: 10 * time.Second}
}

func (c *HTTPAPI) agent(method, path string) *fiber.Agent {
	a := fiber.AcquireAgent()
	req := a.Request()
	req.Header.SetMethod(method)
	req.SetRequestURI(c.BaseURL + path)
	req.Header.Set(fiber.HeaderAccept, fiber.MIMEApplicationJSON)
	if c.SID != "" {
		a.Cookie("sid", c.SID)
	}
	return a
}

func (c *HTTPAPI) send(ctx context.Context, a *fiber.Agent, out any) (int, error) {
	if err := ctx.Err(); err != nil {
		fiber.ReleaseAgent(a)
		return 0, err
	}
	timeout := c.Timeout
	if dl, ok := ctx.Deadline(); ok && time.Until(dl) < timeout {
		timeout = time.Until(dl)
	}
	a.Timeout(timeout)
	if err := a.Parse(); err != nil {
		fiber.ReleaseAgent(a)
		return 0, fmt.Errorf("client: %w", err)
	}
	code, body, errs := a.Bytes()
	if len(errs) > 0 {
		return 0, fmt.Errorf("client: %w", errors.Join(errs...))
	}
	if code < 200 || code > 299 {
		se := &StatusError{Status: code}
		var eb struct {
			Error string `json:"error"`
			Code  string `json:"code"`
			Field string `json:"field"`
		}
		if json.Unmarshal(body, &eb) == nil {
			se.Code, se.Message, se.Field = eb.Code, eb.Error, eb.Field
		}
		return code, se
	}
	if out != nil && len(body) > 0 {
		if err := json.Unmarshal(body, out); err != nil {
			return code, fmt.Errorf("client: decode: %w", err)
		}
	}
	return code, nil
}

// Login signs in and keeps the session cookie for later calls.
func (c *HTTPAPI) Login(ctx context.Context, email, password string) error {
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	a := c.agent(fiber.MethodPost, "/api/v1/login")
	a.JSON(map[string]string{"email": email, "password": password}).SetResponse(resp)
	if _, err := c.send(ctx, a, nil); err != nil {
		return err
	}
	var ck fasthttp.Cookie
	ck.SetKey("sid")
	if !resp.Header.Cookie(&ck) || len(ck.Value()) == 0 {
		return errors.New("client: login response has no session cookie")
	}
	c.SID = string(ck.Value())
	return nil
}

func (c *HTTPAPI) Cart(ctx context.Context) ([]domain.CartLine, error) {
	var out struct {
		Lines []domain.CartLine `json:"lines"`
	}
	_, err := c.send(ctx, c.agent(fiber.MethodGet, "/api/v1/cart"), &out)
	return out.Lines, err
}

func (c *HTTPAPI) AddLine(ctx context.Context, k domain.VariantKey, qty int) (domain.CartLine, error) {
	a := c.agent(fiber.MethodPost, "/api/v1/cart/lines")
	a.JSON(map[string]any{"productId": k.ProductID, "size": k.Size, "color": k.Color, "quantity": qty})
	var line domain.CartLine
	_, err := c.send(ctx, a, &line)
	return line, err
}

func (c *HTTPAPI) UpdateQuantity(ctx context.Context, lineID string, qty int) (domain.CartLine, bool, error) {
	a := c.agent(fiber.MethodPatch, "/api/v1/cart/lines/"+lineID)
	a.JSON(map[string]int{"quantity": qty})
	var line domain.CartLine
	code, err := c.send(ctx, a, &line)
	if err != nil {
		return domain.CartLine{}, false, err
	}
	return line, code == fiber.StatusNoContent, nil
}

func (c *HTTPAPI) RemoveLine(ctx context.Context, lineID string) error {
	_, err := c.send(ctx, c.agent(fiber.MethodDelete, "/api/v1/cart/lines/"+lineID), nil)
	return err
}

func (c *HTTPAPI) Proposal(ctx context.Context, addressID string, method domain.PaymentMethod) (domain.Proposal, error) {
	a := c.agent(fiber.MethodPost, "/api/v1/checkout/proposal")
	a.JSON(map[string]string{"addressId": addressID, "paymentMethod": string(method)})
	var p domain.Proposal
	_, err := c.send(ctx, a, &p)
	return p, err
}

func (c *HTTPAPI) PlaceCOD(ctx context.Context, addressID, token string) (domain.Order, error) {
	a := c.agent(fiber.MethodPost, "/api/v1/orders")
	a.Set("Idempotency-Key", token)
	a.JSON(map[string]string{"addressId": addressID, "paymentMethod": string(domain.PaymentCOD)})
	var o domain.Order
	_, err := c.send(ctx, a, &o)
	return o, err
}

// Addresses lists the buyer's saved shipping addresses.
func (c *HTTPAPI) Addresses(ctx context.Context) ([]domain.Address, error) {
	var out struct {
		Addresses []domain.Address `json:"addresses"`
	}
	_, err := c.send(ctx, c.agent(fiber.MethodGet, "/api/v1/addresses"), &out)
	return out.Addresses, err
}

func (c *HTTPAPI) StartGateway(ctx context.Context, addressID string) (GatewayOrder, error) {
	a := c.agent(fiber.MethodPost, "/api/v1/payments/gateway/orders")
	a.JSON(map[string]string{"addressId": addressID})
	var g GatewayOrder
	_, err := c.send(ctx, a, &g)
	return g, err
}

// VerifyGateway hands the widget's success callback to the server, which
// checks the signature before any order exists.
func (c *HTTPAPI) VerifyGateway(ctx context.Context, cb domain.GatewayCallback) (domain.Order, error) {
	a := c.agent(fiber.MethodPost, "/api/v1/payments/gateway/verify")
	a.JSON(cb)
	var o domain.Order
	_, err := c.send(ctx, a, &o)
	return o, err
}

func (c *HTTPAPI) ReportGatewayFailure(ctx context.Context, externalOrderID, reason string) error {
	a := c.agent(fiber.MethodPost, "/api/v1/payments/gateway/failure")
	a.JSON(map[string]string{"externalOrderId": externalOrderID, "reason": reason})
	_, err := c.send(ctx, a, nil)
	return err
}

// SandboxPay completes a payment on the development gateway and returns the
// callback the hosted widget would deliver. It only works against non-prod
// servers running the sandbox.
func (c *HTTPAPI) SandboxPay(ctx context.Context, externalOrderID string) (domain.GatewayCallback, error) {
	a := c.agent(fiber.MethodPost, "/dev/gateway/pay")
	a.JSON(map[string]string{"externalOrderId": externalOrderID})
	var cb domain.GatewayCallback
	_, err := c.send(ctx, a, &cb)
	return cb, err
}
