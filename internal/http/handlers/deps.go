package handlers

import (
	"github.com/jmoiron/sqlx"

	"basecamp/internal/cache"
	"basecamp/internal/config"
	"basecamp/internal/gateway"
	"basecamp/internal/metrics"
	"basecamp/internal/repos"
	"basecamp/internal/services"
)

type Deps struct {
	Auth     *services.AuthService
	Orders   *services.OrderService
	Payments *services.PaymentService
	Sweeper  *services.IntentSweeper

	AuthHandler      *AuthHandler
	CartHandler      *CartHandler
	CheckoutHandler  *CheckoutHandler
	OrderHandler     *OrderHandler
	PaymentHandler   *PaymentHandler
	InventoryHandler *InventoryHandler
	AdminHandler     *AdminHandler
}

// NewDeps wires repositories, services and handlers over one database.
func NewDeps(db *sqlx.DB, cfg config.Config, gw gateway.Client, c cache.CartCache, m *metrics.Metrics) *Deps {
	userRepo := repos.NewUserRepo(db)
	invRepo := repos.NewInventoryRepo(db)
	prodRepo := repos.NewProductRepo(db)
	cartRepo := repos.NewCartRepo(db)
	addrRepo := repos.NewAddressRepo(db)
	orderRepo := repos.NewOrderRepo(db)
	intentRepo := repos.NewPaymentRepo(db)

	authSvc := services.NewAuthService(userRepo, cfg.SessionIdle, m)
	invSvc := services.NewInventoryService(invRepo, m)
	cartSvc := services.NewCartService(db, cartRepo, prodRepo, c)
	checkoutSvc := services.NewCheckoutService(cartSvc, addrRepo, cfg.PricingRules(), cfg.Currency)
	orderSvc := services.NewOrderService(db, orderRepo, cartRepo, invSvc, c, m)
	signer := gateway.NewSigner(cfg.GatewayKeySecret)
	paySvc := services.NewPaymentService(checkoutSvc, orderSvc, intentRepo, gw, signer, cfg.GatewayKeyID, m)

	sandbox, _ := gw.(*gateway.Sandbox)

	return &Deps{
		Auth:     authSvc,
		Orders:   orderSvc,
		Payments: paySvc,
		Sweeper:  services.NewIntentSweeper(intentRepo, cfg.PaymentIntentTTL, cfg.SweepInterval),

		AuthHandler:      &AuthHandler{Auth: authSvc, CookieSecure: cfg.CookieSecure},
		CartHandler:      &CartHandler{Cart: cartSvc},
		CheckoutHandler:  &CheckoutHandler{Checkout: checkoutSvc},
		OrderHandler:     &OrderHandler{Orders: orderSvc, Payments: paySvc},
		PaymentHandler:   &PaymentHandler{Payments: paySvc, Sandbox: sandbox},
		InventoryHandler: &InventoryHandler{Inv: invSvc},
		AdminHandler:     &AdminHandler{Orders: orderSvc},
	}
}
