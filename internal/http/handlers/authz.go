package handlers

import (
	"github.com/gofiber/fiber/v2"

	"basecamp/internal/domain"
	applog "basecamp/internal/log"
	"basecamp/internal/services"
)

// Identify attaches the session user, when there is one, to the request.
func Identify(auth *services.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if sid := c.Cookies("sid"); sid != "" {
			if u, err := auth.CurrentUser(c.UserContext(), sid); err == nil && u != nil {
				setUser(c, u)
			}
		}
		return c.Next()
	}
}

func setUser(c *fiber.Ctx, u *domain.User) {
	c.Locals("user", u)
	c.Locals("buyer_id", u.ID)
}

func currentUser(c *fiber.Ctx) *domain.User {
	u, _ := c.Locals("user").(*domain.User)
	return u
}

// identity is the caller handed to every service call. Handlers behind
// RequireUser/RequireAdmin always have one.
func identity(c *fiber.Ctx) domain.Identity {
	if u := currentUser(c); u != nil {
		return u.Identity()
	}
	return domain.Identity{}
}

func lookup(c *fiber.Ctx, auth *services.AuthService) *domain.User {
	if u := currentUser(c); u != nil {
		return u
	}
	sid := c.Cookies("sid")
	if sid == "" {
		return nil
	}
	u, err := auth.CurrentUser(c.UserContext(), sid)
	if err != nil || u == nil {
		return nil
	}
	setUser(c, u)
	return u
}

// RequireUser rejects anonymous API calls with 401.
func RequireUser(auth *services.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if lookup(c, auth) == nil {
			applog.Security(c, "access.denied.anonymous", nil)
			return c.Status(fiber.StatusUnauthorized).JSON(apiError{Error: "Please sign in.", Code: "UNAUTHENTICATED"})
		}
		return c.Next()
	}
}

// RequireAdmin enforces an authenticated ADMIN user.
func RequireAdmin(auth *services.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		u := lookup(c, auth)
		if u == nil || u.Role != domain.RoleAdmin {
			fields := map[string]any{}
			if u != nil {
				fields["user_id"] = u.ID
			}
			applog.Security(c, "access.denied.admin", fields)
			if wantsHTML(c) {
				return notFoundPage(c, fiber.StatusForbidden, "Not authorized")
			}
			return fail(c, domain.ErrForbidden)
		}
		return c.Next()
	}
}
