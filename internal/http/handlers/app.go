package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/csrf"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	html "github.com/gofiber/template/html/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	applog "basecamp/internal/log"
	"basecamp/web"
)

const maxBodyBytes = 1 << 20 // 1 MiB

type Options struct {
	Env          string
	CookieSecure bool
	// GlobalLimit and SensitiveLimit are requests per minute per IP; zero uses the defaults.
	GlobalLimit    int
	SensitiveLimit int
	AccessLog      bool
	Gatherer       prometheus.Gatherer
}

func (o Options) withDefaults() Options {
	if o.GlobalLimit == 0 {
		o.GlobalLimit = 60
	}
	if o.SensitiveLimit == 0 {
		o.SensitiveLimit = 10
	}
	if o.Gatherer == nil {
		o.Gatherer = prometheus.DefaultGatherer
	}
	return o
}

// NewApp builds the fiber application with middleware and every route.
func NewApp(d *Deps, opts Options) *fiber.App {
	opts = opts.withDefaults()

	engine := html.NewFileSystem(http.FS(web.Templates()), ".html")
	app := fiber.New(fiber.Config{
		Views:        engine,
		ErrorHandler: ErrorHandler,
	})
	app.Server().MaxRequestBodySize = maxBodyBytes

	// ---------- Middlewares ----------
	app.Use(requestid.New())
	if opts.AccessLog {
		app.Use(logger.New())
	}
	app.Use(helmet.New())
	app.Use(Identify(d.Auth))
	app.Use(limiter.New(limiter.Config{
		Max:        opts.GlobalLimit,
		Expiration: time.Minute,
		Next: func(c *fiber.Ctx) bool {
			p := c.Path()
			return p == "/healthz" || p == "/metrics"
		},
		LimitReached: func(c *fiber.Ctx) error {
			applog.Security(c, "rate.global.hit", nil)
			return c.Status(fiber.StatusTooManyRequests).JSON(apiError{Error: "rate limit exceeded, retry soon", Code: "RATE_LIMITED"})
		},
	}))
	sensitive := func(name string) fiber.Handler {
		return limiter.New(limiter.Config{
			Max:        opts.SensitiveLimit,
			Expiration: time.Minute,
			KeyGenerator: func(c *fiber.Ctx) string {
				return c.IP() + "|" + name
			},
			LimitReached: func(c *fiber.Ctx) error {
				applog.Security(c, "rate."+name+".hit", nil)
				return c.Status(fiber.StatusTooManyRequests).JSON(apiError{Error: "rate limit exceeded, retry soon", Code: "RATE_LIMITED"})
			},
		})
	}

	// ---------- Infra ----------
	app.Get("/healthz", func(c *fiber.Ctx) error { return c.JSON(fiber.Map{"ok": true}) })
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})))

	// ---------- Buyer API ----------
	api := app.Group("/api/v1")
	api.Post("/login", sensitive("login"), d.AuthHandler.Login)
	api.Post("/logout", d.AuthHandler.Logout)
	api.Get("/availability", d.InventoryHandler.Check)

	buyer := api.Group("", RequireUser(d.Auth))
	buyer.Get("/me", d.AuthHandler.Me)
	buyer.Get("/addresses", d.CheckoutHandler.Addresses)

	buyer.Get("/cart", d.CartHandler.View)
	buyer.Post("/cart/lines", d.CartHandler.Add)
	buyer.Patch("/cart/lines/:id", d.CartHandler.Update)
	buyer.Delete("/cart/lines/:id", d.CartHandler.Remove)

	buyer.Post("/checkout/proposal", d.CheckoutHandler.Proposal)

	buyer.Post("/orders", sensitive("place"), d.OrderHandler.Place)
	buyer.Get("/orders", d.OrderHandler.List)
	buyer.Get("/orders/:id", d.OrderHandler.Get)
	buyer.Post("/orders/:id/cancel", d.OrderHandler.Cancel)

	buyer.Post("/payments/gateway/orders", d.PaymentHandler.Start)
	buyer.Get("/payments/gateway/orders/:id", d.PaymentHandler.Intent)
	buyer.Post("/payments/gateway/verify", sensitive("verify"), d.PaymentHandler.Verify)
	buyer.Post("/payments/gateway/failure", d.PaymentHandler.Failure)

	if d.PaymentHandler.Sandbox != nil && opts.Env != "prod" {
		app.Post("/dev/gateway/pay", RequireUser(d.Auth), d.PaymentHandler.SandboxPay)
	}

	// ---------- Admin ----------
	adminAPI := app.Group("/admin/api", RequireAdmin(d.Auth))
	adminAPI.Get("/orders", d.AdminHandler.ListJSON)
	adminAPI.Post("/orders/:id/transition", d.AdminHandler.TransitionJSON)
	adminAPI.Get("/inventory", d.InventoryHandler.List)
	adminAPI.Post("/inventory", d.InventoryHandler.Restock)

	admin := app.Group("/admin", RequireAdmin(d.Auth), csrf.New(csrf.Config{
		KeyLookup:      "form:csrf",
		CookieName:     "csrf_",
		CookieSameSite: "Lax",
		CookieSecure:   opts.CookieSecure,
		ContextKey:     "csrf",
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			applog.Security(c, "csrf.fail", nil)
			return notFoundPage(c, fiber.StatusForbidden, "Security check failed. Please refresh and try again.")
		},
	}), func(c *fiber.Ctx) error {
		if tok, ok := c.Locals("csrf").(string); ok {
			c.Locals("CSRFToken", tok)
		}
		return c.Next()
	})
	admin.Get("/orders", d.AdminHandler.OrdersPage)
	admin.Get("/orders/:id", d.AdminHandler.OrderPage)
	admin.Post("/orders/:id/status", d.AdminHandler.UpdateOrderStatus)

	// 404
	app.Use(func(c *fiber.Ctx) error {
		if strings.HasPrefix(c.Path(), "/admin/") && wantsHTML(c) {
			return notFoundPage(c, fiber.StatusNotFound, "Page not found")
		}
		return c.Status(fiber.StatusNotFound).JSON(apiError{Error: "Not found.", Code: "NOT_FOUND"})
	})
	return app
}
