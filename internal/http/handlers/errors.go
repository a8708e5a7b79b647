package handlers

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"basecamp/internal/domain"
	applog "basecamp/internal/log"
)

const friendlyMessage = "Something went wrong. Please try again."

type apiError struct {
	Error string `json:"error"`
	Code  string `json:"code"`
	Field string `json:"field,omitempty"`
}

// errorCodes is checked in order; the first sentinel the error matches wins.
var errorCodes = []struct {
	target error
	status int
	code   string
	msg    string
}{
	{domain.ErrEmptyCart, fiber.StatusBadRequest, "EMPTY_CART", "Your cart is empty."},
	{domain.ErrNoShippingAddress, fiber.StatusBadRequest, "NO_SHIPPING_ADDRESS", "Choose a complete shipping address."},
	{domain.ErrValidation, fiber.StatusBadRequest, "VALIDATION", "Please check your input."},
	{domain.ErrInsufficientStock, fiber.StatusConflict, "INSUFFICIENT_STOCK", "An item is no longer available in that variant."},
	{domain.ErrPaymentVerificationFailed, fiber.StatusPaymentRequired, "PAYMENT_VERIFICATION_FAILED", "Payment could not be verified. Please retry the payment."},
	{domain.ErrIllegalTransition, fiber.StatusConflict, "ILLEGAL_TRANSITION", "That status change is not allowed."},
	{domain.ErrNotFound, fiber.StatusNotFound, "NOT_FOUND", "Not found."},
	{domain.ErrForbidden, fiber.StatusForbidden, "FORBIDDEN", "You are not allowed to do that."},
	{domain.ErrGatewayUnavailable, fiber.StatusServiceUnavailable, "GATEWAY_UNAVAILABLE", "Payments are temporarily unavailable. Please try again shortly."},
}

// classify maps err onto its HTTP status and response body.
func classify(err error) (int, apiError) {
	for _, e := range errorCodes {
		if errors.Is(err, e.target) {
			body := apiError{Error: e.msg, Code: e.code}
			var ve *domain.ValidationError
			if errors.As(err, &ve) {
				body.Field = ve.Field
				body.Error = ve.Field + " " + ve.Reason
			}
			return e.status, body
		}
	}
	return fiber.StatusInternalServerError, apiError{Error: friendlyMessage, Code: "INTERNAL"}
}

// fail writes the JSON error response for a service error.
func fail(c *fiber.Ctx, err error) error {
	status, body := classify(err)
	if status == fiber.StatusInternalServerError {
		applog.Error(c, "server.error", err, nil)
	}
	return c.Status(status).JSON(body)
}

func badRequest(c *fiber.Ctx, field, reason string) error {
	applog.Security(c, "validation.fail", map[string]any{"field": field})
	return fail(c, domain.Invalid(field, reason))
}

// ErrorHandler is the app-wide fiber error handler. Framework errors keep their
// status; anything else is answered without internal details.
func ErrorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) && fe.Code < fiber.StatusInternalServerError {
		return c.Status(fe.Code).JSON(apiError{Error: fe.Message, Code: "HTTP_" + strconv.Itoa(fe.Code)})
	}
	status, body := classify(err)
	if status == fiber.StatusInternalServerError {
		applog.Error(c, "server.error", err, nil)
		if wantsHTML(c) {
			if rerr := c.Status(status).Render("notfound", fiber.Map{"Message": friendlyMessage}); rerr == nil {
				return nil
			}
		}
	}
	return c.Status(status).JSON(body)
}
