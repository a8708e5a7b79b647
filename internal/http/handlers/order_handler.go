package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"basecamp/internal/domain"
	applog "basecamp/internal/log"
	"basecamp/internal/services"
	"basecamp/internal/validate"
)

const (
	headerIdempotencyKey = "Idempotency-Key"
	headerReplayed       = "Idempotent-Replayed"

	defaultListLimit = 20
	maxListLimit     = 100
)

type OrderHandler struct {
	Orders   *services.OrderService
	Payments *services.PaymentService
}

type placeOrderRequest struct {
	AddressID     string `json:"addressId"`
	PaymentMethod string `json:"paymentMethod"`
}

func listLimit(c *fiber.Ctx) int {
	n := c.QueryInt("limit", defaultListLimit)
	if n < 1 || n > maxListLimit {
		return defaultListLimit
	}
	return n
}

// POST /api/v1/orders places a cash-on-delivery order. The Idempotency-Key
// header makes retries of one submission return the same order.
func (h *OrderHandler) Place(c *fiber.Ctx) error {
	var req placeOrderRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "body", "is not valid JSON")
	}
	if req.PaymentMethod == "" {
		req.PaymentMethod = string(domain.PaymentCOD)
	}
	if domain.PaymentMethod(req.PaymentMethod) != domain.PaymentCOD {
		return badRequest(c, "paymentMethod", "must be COD; online payments start at /payments/gateway/orders")
	}
	token, ok := validate.Token(c.Get(headerIdempotencyKey))
	if !ok {
		return badRequest(c, headerIdempotencyKey, "header must be 8-64 url-safe characters")
	}

	o, replayed, err := h.Payments.PlaceCOD(c.UserContext(), identity(c), req.AddressID, token)
	if err != nil {
		applog.Security(c, "order.place.fail", map[string]any{"error": err.Error()})
		return fail(c, err)
	}
	applog.Audit(c, "order.place", map[string]any{
		"order_id":    o.ID,
		"grand_total": o.GrandTotal.StringFixed(2),
		"replayed":    replayed,
	})
	if replayed {
		c.Set(headerReplayed, "true")
		return c.JSON(o)
	}
	return c.Status(fiber.StatusCreated).JSON(o)
}

// GET /api/v1/orders
func (h *OrderHandler) List(c *fiber.Ctx) error {
	orders, err := h.Orders.ListForBuyer(c.UserContext(), identity(c), listLimit(c))
	if err != nil {
		return fail(c, err)
	}
	if orders == nil {
		orders = []domain.Order{}
	}
	return c.JSON(fiber.Map{"orders": orders})
}

// GET /api/v1/orders/:id
func (h *OrderHandler) Get(c *fiber.Ctx) error {
	o, err := h.Orders.Get(c.UserContext(), identity(c), c.Params("id"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			applog.Security(c, "access.denied.order", map[string]any{"order_id": c.Params("id")})
		}
		return fail(c, err)
	}
	return c.JSON(o)
}

// POST /api/v1/orders/:id/cancel
func (h *OrderHandler) Cancel(c *fiber.Ctx) error {
	o, err := h.Orders.Cancel(c.UserContext(), identity(c), c.Params("id"))
	if err != nil {
		return fail(c, err)
	}
	applog.Audit(c, "order.cancel", map[string]any{"order_id": o.ID})
	return c.JSON(o)
}
