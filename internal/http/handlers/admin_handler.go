package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"basecamp/internal/domain"
	applog "basecamp/internal/log"
	"basecamp/internal/services"
)

type AdminHandler struct {
	Orders *services.OrderService
}

type transitionRequest struct {
	Status string `json:"status"`
}

func adminFilter(c *fiber.Ctx) domain.OrderFilter {
	return domain.OrderFilter{
		Status:  domain.OrderStatus(c.Query("status")),
		BuyerID: c.Query("buyerId"),
		Limit:   listLimit(c),
	}
}

func (h *AdminHandler) transition(c *fiber.Ctx, orderID, status string) (domain.Order, error) {
	o, err := h.Orders.Transition(c.UserContext(), identity(c), orderID, domain.OrderStatus(status))
	switch {
	case errors.Is(err, domain.ErrIllegalTransition):
		applog.Security(c, "admin.orders.transition.illegal", map[string]any{"order_id": orderID, "status": status, "error": err.Error()})
	case err != nil:
		applog.Error(c, "admin.orders.update.fail", err, map[string]any{"order_id": orderID})
	default:
		applog.Audit(c, "admin.orders.update", map[string]any{"order_id": orderID, "status": status})
	}
	return o, err
}

// GET /admin/api/orders?status=&buyerId=&limit=
func (h *AdminHandler) ListJSON(c *fiber.Ctx) error {
	orders, err := h.Orders.List(c.UserContext(), identity(c), adminFilter(c))
	if err != nil {
		return fail(c, err)
	}
	if orders == nil {
		orders = []domain.Order{}
	}
	return c.JSON(fiber.Map{"orders": orders})
}

// POST /admin/api/orders/:id/transition
func (h *AdminHandler) TransitionJSON(c *fiber.Ctx) error {
	var req transitionRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "body", "is not valid JSON")
	}
	o, err := h.transition(c, c.Params("id"), req.Status)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(o)
}

// GET /admin/orders
func (h *AdminHandler) OrdersPage(c *fiber.Ctx) error {
	f := adminFilter(c)
	orders, err := h.Orders.List(c.UserContext(), identity(c), f)
	if err != nil {
		applog.Error(c, "admin.orders.list.fail", err, nil)
		return notFoundPage(c, fiber.StatusInternalServerError, "Could not load orders")
	}
	return render(c, "admin_orders", fiber.Map{
		"Orders":   orders,
		"Filter":   string(f.Status),
		"Statuses": domain.AllStatuses(),
	})
}

// GET /admin/orders/:id
func (h *AdminHandler) OrderPage(c *fiber.Ctx) error {
	ctx, id := c.UserContext(), identity(c)
	o, err := h.Orders.Get(ctx, id, c.Params("id"))
	if err != nil {
		return notFoundPage(c, fiber.StatusNotFound, "Order not found")
	}
	history, err := h.Orders.History(ctx, id, o.ID)
	if err != nil {
		applog.Error(c, "admin.orders.history.fail", err, map[string]any{"order_id": o.ID})
		return notFoundPage(c, fiber.StatusInternalServerError, "Could not load order history")
	}
	var next []domain.OrderStatus
	for _, s := range domain.AllStatuses() {
		if domain.CanTransition(o.Status, s) {
			next = append(next, s)
		}
	}
	return render(c, "admin_order", fiber.Map{"Order": o, "History": history, "Next": next})
}

// POST /admin/orders/:id/status
func (h *AdminHandler) UpdateOrderStatus(c *fiber.Ctx) error {
	id := c.Params("id")
	status := c.FormValue("status")
	if id == "" || status == "" {
		return notFoundPage(c, fiber.StatusBadRequest, "Missing order or status")
	}
	if _, err := h.transition(c, id, status); err != nil {
		code, body := classify(err)
		return notFoundPage(c, code, body.Error)
	}
	return c.Redirect("/admin/orders/" + id)
}
