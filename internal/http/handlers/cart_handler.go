package handlers

import (
	"github.com/gofiber/fiber/v2"

	"basecamp/internal/domain"
	"basecamp/internal/services"
)

type CartHandler struct {
	Cart *services.CartService
}

type addLineRequest struct {
	ProductID string `json:"productId"`
	Size      string `json:"size"`
	Color     string `json:"color"`
	Quantity  int    `json:"quantity"`
}

type updateLineRequest struct {
	Quantity *int `json:"quantity"`
}

// GET /api/v1/cart
func (h *CartHandler) View(c *fiber.Ctx) error {
	cv, err := h.Cart.View(c.UserContext(), identity(c))
	if err != nil {
		return fail(c, err)
	}
	if cv.Lines == nil {
		cv.Lines = []domain.CartLine{}
	}
	return c.JSON(cv)
}

// POST /api/v1/cart/lines
func (h *CartHandler) Add(c *fiber.Ctx) error {
	var req addLineRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "body", "is not valid JSON")
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	line, err := h.Cart.AddLine(c.UserContext(), identity(c), domain.VariantKey{
		ProductID: req.ProductID, Size: req.Size, Color: req.Color,
	}, req.Quantity)
	if err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(line)
}

// PATCH /api/v1/cart/lines/:id
func (h *CartHandler) Update(c *fiber.Ctx) error {
	var req updateLineRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "body", "is not valid JSON")
	}
	if req.Quantity == nil {
		return badRequest(c, "quantity", "is required")
	}
	line, removed, err := h.Cart.UpdateQuantity(c.UserContext(), identity(c), c.Params("id"), *req.Quantity)
	if err != nil {
		return fail(c, err)
	}
	if removed {
		return c.SendStatus(fiber.StatusNoContent)
	}
	return c.JSON(line)
}

// DELETE /api/v1/cart/lines/:id
func (h *CartHandler) Remove(c *fiber.Ctx) error {
	if err := h.Cart.RemoveLine(c.UserContext(), identity(c), c.Params("id")); err != nil {
		return fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
