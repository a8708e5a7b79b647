package client_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"basecamp/internal/cache"
	"basecamp/internal/client"
	"basecamp/internal/config"
	"basecamp/internal/domain"
	"basecamp/internal/gateway"
	"basecamp/internal/http/handlers"
	"basecamp/internal/metrics"
	"basecamp/internal/repos"
)

func startServer(t *testing.T) string {
	t.Helper()
	db, err := repos.OpenDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	cfg := config.Config{
		Env: "test", Currency: "INR", GatewayKeyID: "rzp_test_key", GatewayKeySecret: "secret",
		PaymentIntentTTL: time.Minute, SweepInterval: time.Minute,
	}
	reg := prometheus.NewRegistry()
	deps := handlers.NewDeps(db, cfg, gateway.NewSandbox(gateway.NewSigner(cfg.GatewayKeySecret)), cache.Nop{}, metrics.New(reg))
	app := handlers.NewApp(deps, handlers.Options{Env: "test", GlobalLimit: 1000, SensitiveLimit: 100, Gatherer: reg})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = app.Listener(ln) }()
	t.Cleanup(func() { _ = app.Shutdown() })
	return "http://" + ln.Addr().String()
}

func TestHTTPAPICheckout(t *testing.T) {
	ctx := context.Background()
	api := client.NewHTTPAPI(startServer(t))
	require.NoError(t, api.Login(ctx, "asha@basecamp.test", "Passw0rd!"))

	cart := client.NewCart(api)
	require.NoError(t, cart.Refresh(ctx))
	assert.Empty(t, cart.Lines())

	require.NoError(t, cart.AddLine(ctx, teeM, 2))
	lines := cart.Lines()
	require.Len(t, lines, 1)
	assert.True(t, lines[0].Confirmed)
	assert.Equal(t, "998", cart.Subtotal().String())

	err := cart.AddLine(ctx, teeM, 98)
	require.ErrorIs(t, err, domain.ErrValidation)
	assert.Equal(t, 2, cart.Lines()[0].Quantity)

	addrs, err := api.Addresses(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, addrs)

	p, err := api.Proposal(ctx, addrs[0].ID, domain.PaymentCOD)
	require.NoError(t, err)
	assert.Equal(t, "998.00", p.GrandTotal.StringFixed(2))

	w := client.NewWizard(cart)
	require.NoError(t, w.Next())
	require.NoError(t, w.SetAddress(addrs[0]))
	require.NoError(t, w.Next())
	require.NoError(t, w.SetPaymentMethod(domain.PaymentCOD))
	require.NoError(t, w.Next())

	o, err := w.SubmitCOD(ctx, api)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, o.Status)

	replay, err := api.PlaceCOD(ctx, addrs[0].ID, w.Token())
	require.NoError(t, err)
	assert.Equal(t, o.ID, replay.ID)

	require.NoError(t, cart.Refresh(ctx))
	assert.Empty(t, cart.Lines())
}

func TestHTTPAPITransportFailureIsNotRejection(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	api := client.NewHTTPAPI("http://" + addr)
	api.Timeout = time.Second
	cart := client.NewCart(api)
	err = cart.AddLine(context.Background(), teeM, 1)
	require.Error(t, err)
	assert.False(t, client.IsRejection(err))
	assert.True(t, cart.Stale())
	assert.False(t, cart.Lines()[0].Confirmed)
}

func TestHTTPAPIGatewayCheckout(t *testing.T) {
	ctx := context.Background()
	api := client.NewHTTPAPI(startServer(t))
	require.NoError(t, api.Login(ctx, "ravi@basecamp.test", "Passw0rd!"))

	cart := client.NewCart(api)
	require.NoError(t, cart.AddLine(ctx, teeM, 1))
	addrs, err := api.Addresses(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, addrs)

	w := client.NewWizard(cart)
	require.NoError(t, w.Next())
	require.NoError(t, w.SetAddress(addrs[0]))
	require.NoError(t, w.Next())
	require.NoError(t, w.SetPaymentMethod(domain.PaymentGateway))
	require.NoError(t, w.Next())

	declined, err := w.BeginGateway(ctx, api)
	require.NoError(t, err)
	assert.Equal(t, int64(49900), declined.Amount)
	require.NoError(t, w.FailGateway(ctx, api, "card_declined"))

	g, err := w.BeginGateway(ctx, api)
	require.NoError(t, err)
	assert.NotEqual(t, declined.ExternalOrderID, g.ExternalOrderID)

	cb, err := api.SandboxPay(ctx, g.ExternalOrderID)
	require.NoError(t, err)
	o, err := w.CompleteGateway(ctx, api, cb)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentPaid, o.PaymentStatus())
	assert.Equal(t, client.StepPlaced, w.Step())

	_, err = api.VerifyGateway(ctx, domain.GatewayCallback{ExternalOrderID: declined.ExternalOrderID, ExternalPaymentID: "pay_x", Signature: "forged"})
	assert.ErrorIs(t, err, domain.ErrPaymentVerificationFailed)

	require.NoError(t, cart.Refresh(ctx))
	assert.Empty(t, cart.Lines())
}
