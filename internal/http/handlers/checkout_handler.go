package handlers

import (
	"github.com/gofiber/fiber/v2"

	"basecamp/internal/domain"
	"basecamp/internal/services"
)

type CheckoutHandler struct {
	Checkout *services.CheckoutService
}

type proposalRequest struct {
	AddressID     string `json:"addressId"`
	PaymentMethod string `json:"paymentMethod"`
}

// POST /api/v1/checkout/proposal prices the cart without committing anything.
func (h *CheckoutHandler) Proposal(c *fiber.Ctx) error {
	var req proposalRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "body", "is not valid JSON")
	}
	p, err := h.Checkout.Prepare(c.UserContext(), identity(c), req.AddressID, domain.PaymentMethod(req.PaymentMethod))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(p)
}

// GET /api/v1/addresses
func (h *CheckoutHandler) Addresses(c *fiber.Ctx) error {
	addrs, err := h.Checkout.ListAddresses(c.UserContext(), identity(c))
	if err != nil {
		return fail(c, err)
	}
	if addrs == nil {
		addrs = []domain.Address{}
	}
	return c.JSON(fiber.Map{"addresses": addrs})
}
