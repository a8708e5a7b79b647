package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"basecamp/internal/domain"
	"basecamp/internal/gateway"
	applog "basecamp/internal/log"
	"basecamp/internal/services"
	"basecamp/internal/validate"
)

type PaymentHandler struct {
	Payments *services.PaymentService
	// Sandbox is set only when the in-process gateway is active.
	Sandbox *gateway.Sandbox
}

type startGatewayRequest struct {
	AddressID string `json:"addressId"`
}

type failureRequest struct {
	ExternalOrderID string `json:"externalOrderId"`
	Reason          string `json:"reason"`
}

type sandboxPayRequest struct {
	ExternalOrderID string `json:"externalOrderId"`
}

// POST /api/v1/payments/gateway/orders
func (h *PaymentHandler) Start(c *fiber.Ctx) error {
	var req startGatewayRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "body", "is not valid JSON")
	}
	out, err := h.Payments.StartGateway(c.UserContext(), identity(c), req.AddressID)
	if err != nil {
		return fail(c, err)
	}
	applog.Audit(c, "payment.gateway.start", map[string]any{"external_order_id": out.ExternalOrderID, "amount": out.Amount})
	return c.Status(fiber.StatusCreated).JSON(out)
}

// POST /api/v1/payments/gateway/verify
func (h *PaymentHandler) Verify(c *fiber.Ctx) error {
	var cb domain.GatewayCallback
	if err := c.BodyParser(&cb); err != nil {
		return badRequest(c, "body", "is not valid JSON")
	}
	if cb.ExternalOrderID == "" || cb.ExternalPaymentID == "" || cb.Signature == "" {
		return badRequest(c, "callback", "externalOrderId, externalPaymentId and signature are required")
	}
	o, err := h.Payments.VerifyGateway(c.UserContext(), identity(c), cb)
	if err != nil {
		if errors.Is(err, domain.ErrPaymentVerificationFailed) {
			applog.Security(c, "payment.verify.fail", map[string]any{"external_order_id": cb.ExternalOrderID})
		}
		return fail(c, err)
	}
	applog.Audit(c, "payment.verify.ok", map[string]any{"external_order_id": cb.ExternalOrderID, "order_id": o.ID})
	return c.Status(fiber.StatusCreated).JSON(o)
}

// POST /api/v1/payments/gateway/failure records the widget's failure report.
func (h *PaymentHandler) Failure(c *fiber.Ctx) error {
	var req failureRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "body", "is not valid JSON")
	}
	if _, ok := validate.ID(req.ExternalOrderID); !ok {
		return badRequest(c, "externalOrderId", "is invalid")
	}
	in, err := h.Payments.FailGateway(c.UserContext(), identity(c), req.ExternalOrderID, req.Reason)
	if err != nil {
		return fail(c, err)
	}
	applog.Info(c, "payment.gateway.failure", map[string]any{"external_order_id": in.ExternalOrderID, "status": in.Status})
	return c.JSON(in)
}

// GET /api/v1/payments/gateway/orders/:id
func (h *PaymentHandler) Intent(c *fiber.Ctx) error {
	in, err := h.Payments.Intent(c.UserContext(), identity(c), c.Params("id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(in)
}

// POST /dev/gateway/pay stands in for the hosted widget in development.
func (h *PaymentHandler) SandboxPay(c *fiber.Ctx) error {
	var req sandboxPayRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "body", "is not valid JSON")
	}
	if _, err := h.Payments.Intent(c.UserContext(), identity(c), req.ExternalOrderID); err != nil {
		return fail(c, err)
	}
	paymentID, sig, err := h.Sandbox.Pay(req.ExternalOrderID)
	if err != nil {
		return fail(c, domain.ErrNotFound)
	}
	return c.JSON(domain.GatewayCallback{
		ExternalOrderID:   req.ExternalOrderID,
		ExternalPaymentID: paymentID,
		Signature:         sig,
	})
}
