package handlers

import (
	"github.com/gofiber/fiber/v2"

	"basecamp/internal/domain"
	applog "basecamp/internal/log"
	"basecamp/internal/repos"
	"basecamp/internal/services"
	"basecamp/internal/validate"
)

type InventoryHandler struct {
	Inv *services.InventoryService
}

type restockRequest struct {
	ProductID string `json:"productId"`
	Size      string `json:"size"`
	Color     string `json:"color"`
	Stock     *int   `json:"stock"`
}

// GET /api/v1/availability?productId=&size=&color=
func (h *InventoryHandler) Check(c *fiber.Ctx) error {
	productID, ok := validate.ID(c.Query("productId"))
	if !ok {
		return badRequest(c, "productId", "is missing or invalid")
	}
	size, ok := validate.Attr(c.Query("size"))
	if !ok {
		return badRequest(c, "size", "is missing or invalid")
	}
	color, ok := validate.Attr(c.Query("color"))
	if !ok {
		return badRequest(c, "color", "is missing or invalid")
	}
	avail, err := h.Inv.Availability(c.UserContext(), domain.VariantKey{ProductID: productID, Size: size, Color: color})
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(avail)
}

// GET /admin/api/inventory
func (h *InventoryHandler) List(c *fiber.Ctx) error {
	rows, err := h.Inv.List(c.UserContext())
	if err != nil {
		return fail(c, err)
	}
	if rows == nil {
		rows = []repos.InventoryRow{}
	}
	return c.JSON(fiber.Map{"variants": rows})
}

// POST /admin/api/inventory sets a variant's stock.
func (h *InventoryHandler) Restock(c *fiber.Ctx) error {
	var req restockRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "body", "is not valid JSON")
	}
	if req.Stock == nil {
		return badRequest(c, "stock", "is required")
	}
	k := domain.VariantKey{ProductID: req.ProductID, Size: req.Size, Color: req.Color}
	if err := h.Inv.Restock(c.UserContext(), k, *req.Stock); err != nil {
		applog.Error(c, "admin.inventory.save.fail", err, map[string]any{"variant": k.String(), "stock": *req.Stock})
		return fail(c, err)
	}
	applog.Audit(c, "admin.inventory.save", map[string]any{"variant": k.String(), "stock": *req.Stock})
	return c.JSON(fiber.Map{"variant": k, "stock": *req.Stock})
}
