package handlers_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"basecamp/internal/cache"
	"basecamp/internal/config"
	"basecamp/internal/gateway"
	"basecamp/internal/http/handlers"
	applog "basecamp/internal/log"
	"basecamp/internal/metrics"
	"basecamp/internal/repos"
)

const (
	testSecret = "test-gateway-secret"
	password   = "Passw0rd!"

	ashaEmail  = "asha@basecamp.test"
	raviEmail  = "ravi@basecamp.test"
	adminEmail = "admin@basecamp.test"
)

type testEnv struct {
	app    *fiber.App
	deps   *handlers.Deps
	db     *sqlx.DB
	signer gateway.Signer
}

// newTestEnv builds the full application over a fresh in-memory store with the sandbox gateway.
func newTestEnv(t *testing.T, opts handlers.Options) *testEnv {
	t.Helper()
	db, err := repos.OpenDB(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	cfg := config.Config{
		Env:              "test",
		Currency:         "INR",
		GatewayKeyID:     "rzp_test_key",
		GatewayKeySecret: testSecret,
		PaymentIntentTTL: 30 * time.Minute,
		SweepInterval:    time.Minute,
	}
	signer := gateway.NewSigner(testSecret)
	reg := prometheus.NewRegistry()
	deps := handlers.NewDeps(db, cfg, gateway.NewSandbox(signer), cache.Nop{}, metrics.New(reg))

	if opts.GlobalLimit == 0 {
		opts.GlobalLimit = 1000
	}
	if opts.SensitiveLimit == 0 {
		opts.SensitiveLimit = 100
	}
	if opts.Env == "" {
		opts.Env = cfg.Env
	}
	opts.Gatherer = reg
	return &testEnv{app: handlers.NewApp(deps, opts), deps: deps, db: db, signer: signer}
}

func (e *testEnv) send(t *testing.T, req *http.Request) (*http.Response, []byte) {
	t.Helper()
	resp, err := e.app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", req.Method, req.URL.Path, err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, body
}

// do sends a JSON request as the session sid ("" for anonymous).
func (e *testEnv) do(t *testing.T, method, path, sid string, payload any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		body = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, body)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	if sid != "" {
		req.AddCookie(&http.Cookie{Name: "sid", Value: sid})
	}
	return e.send(t, req)
}

func (e *testEnv) login(t *testing.T, email string) string {
	t.Helper()
	resp, body := e.do(t, "POST", "/api/v1/login", "", map[string]string{"email": email, "password": password}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login %s: status %d body=%s", email, resp.StatusCode, body)
	}
	sid := cookieValue(resp, "sid")
	if sid == "" {
		t.Fatalf("login %s: no sid cookie", email)
	}
	return sid
}

func (e *testEnv) addToCart(t *testing.T, sid, productID, size, color string, qty int) {
	t.Helper()
	resp, body := e.do(t, "POST", "/api/v1/cart/lines", sid, map[string]any{
		"productId": productID, "size": size, "color": color, "quantity": qty,
	}, nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("add line: status %d body=%s", resp.StatusCode, body)
	}
}

func cookieValue(resp *http.Response, name string) string {
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c.Value
		}
	}
	return ""
}

func decode[T any](t *testing.T, body []byte) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(body, &v); err != nil {
		t.Fatalf("decode %T: %v body=%s", v, err, body)
	}
	return v
}

type errBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
	Field string `json:"field"`
}

// captureLogs routes the application logger into an in-memory observer for the test.
func captureLogs(t *testing.T) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zap.DebugLevel)
	prev := applog.L()
	applog.Set(zap.New(core))
	t.Cleanup(func() { applog.Set(prev) })
	return logs
}

func hasAction(logs *observer.ObservedLogs, action string) bool {
	return logs.FilterMessage(action).Len() > 0
}
