package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	idemmemory "github.com/dejobratic/storefront/internal/idempotency/memory"
	"github.com/dejobratic/storefront/internal/kafka"
	httpadapter "github.com/dejobratic/storefront/internal/orders/adapters/http"
	"github.com/dejobratic/storefront/internal/orders/adapters/memory"
	"github.com/dejobratic/storefront/internal/orders/app"
	"github.com/dejobratic/storefront/internal/orders/app/commands"
	"github.com/dejobratic/storefront/internal/orders/domain"
	"github.com/dejobratic/storefront/internal/orders/metrics"
	"github.com/dejobratic/storefront/internal/orders/ports"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/metric/noop"
)

type stubGateway struct {
	sessions map[string]*ports.CheckoutSession
	created  []ports.CheckoutRequest
}

func (g *stubGateway) CreateSession(_ context.Context, req ports.CheckoutRequest) (*ports.CheckoutSession, error) {
	g.created = append(g.created, req)
	return &ports.CheckoutSession{ID: "cs_test_1", URL: "https://checkout.stripe.com/c/pay/cs_test_1"}, nil
}

func (g *stubGateway) RetrieveSession(_ context.Context, id string) (*ports.CheckoutSession, error) {
	session, ok := g.sessions[id]
	if !ok {
		return nil, ports.ErrNotFound
	}
	return session, nil
}

// ParseWebhook accepts the signature "valid" and treats the payload as a session id.
func (g *stubGateway) ParseWebhook(payload []byte, signature string) (*ports.PaymentEvent, error) {
	if signature != "valid" {
		return nil, ports.ErrInvalidSignature
	}
	session, ok := g.sessions[string(payload)]
	if !ok {
		return &ports.PaymentEvent{ID: "evt_other", Type: "customer.created"}, nil
	}
	return &ports.PaymentEvent{ID: "evt_1", Type: ports.PaymentEventCheckoutCompleted, Session: session}, nil
}

type testServer struct {
	handler  http.Handler
	products *memory.ProductStore
	carts    *memory.CartStore
	gateway  *stubGateway
}

func newTestServer(t *testing.T, withPayments bool) *testServer {
	t.Helper()
	meter := noop.NewMeterProvider().Meter("test")
	orderMetrics, err := metrics.NewMetrics(meter)
	if err != nil {
		t.Fatalf("NewMetrics() failed: %v", err)
	}
	httpMetrics, err := httpadapter.NewMetrics(meter)
	if err != nil {
		t.Fatalf("NewMetrics() failed: %v", err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	ts := &testServer{
		products: memory.NewProductStore(
			domain.Product{ID: "A", Name: "Lamp", Price: decimal.NewFromInt(80), Discount: 10, Stock: 5},
			domain.Product{ID: "B", Name: "Rug", Price: decimal.NewFromInt(50), Stock: 1},
		),
		carts:   memory.NewCartStore(),
		gateway: &stubGateway{sessions: map[string]*ports.CheckoutSession{}},
	}

	deps := app.Dependencies{
		Orders:      memory.NewRepository(),
		Carts:       ts.carts,
		Products:    ts.products,
		Events:      kafka.NewNoopEventBus(logger),
		Idempotency: idemmemory.NewStore(0),
		Logger:      logger,
		Metrics:     orderMetrics,
		Policy:      commands.OrderPolicy{ShippingFee: decimal.NewFromInt(100)},
		Checkout:    app.CheckoutConfig{Currency: "egp"},
	}
	if withPayments {
		deps.Payments = ts.gateway
	}

	ts.handler = httpadapter.NewRouter(httpadapter.RouterConfig{
		Handler: httpadapter.NewHandler(app.NewService(deps), logger),
		Metrics: httpMetrics,
		Logger:  logger,
		Readiness: map[string]httpadapter.ReadinessCheck{
			"database": func(context.Context) error { return nil },
		},
		ServiceName: "storefront-test",
	})
	return ts
}

func (ts *testServer) do(t *testing.T, method, path, userID string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case []byte:
		reader = bytes.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if userID != "" {
		req.Header.Set(httpadapter.UserIDHeader, userID)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode response %q: %v", rec.Body.String(), err)
	}
	return body
}

func orderOf(t *testing.T, rec *httptest.ResponseRecorder) domain.Order {
	t.Helper()
	var body struct {
		Order domain.Order `json:"order"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode order %q: %v", rec.Body.String(), err)
	}
	return body.Order
}

var checkoutForm = map[string]any{
	"fullName":      "Nour",
	"phone":         "0123",
	"governorate":   "Cairo",
	"city":          "Nasr City",
	"street":        "Abbas El Akkad",
	"paymentMethod": "COD",
}

func TestHealthRoutes(t *testing.T) {
	ts := newTestServer(t, false)

	if rec := ts.do(t, http.MethodGet, "/healthz", "", nil); rec.Code != http.StatusOK {
		t.Errorf("expected 200 from /healthz, got %d", rec.Code)
	}
	if rec := ts.do(t, http.MethodGet, "/readyz", "", nil); rec.Code != http.StatusOK {
		t.Errorf("expected 200 from /readyz, got %d", rec.Code)
	}
}

func TestReadinessFailure(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	meter := noop.NewMeterProvider().Meter("test")
	httpMetrics, _ := httpadapter.NewMetrics(meter)

	handler := httpadapter.NewRouter(httpadapter.RouterConfig{
		Handler: httpadapter.NewHandler(nil, logger),
		Metrics: httpMetrics,
		Logger:  logger,
		Readiness: map[string]httpadapter.ReadinessCheck{
			"database": func(context.Context) error { return errors.New("connection refused") },
		},
	})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	errs, _ := decode(t, rec)["errors"].(map[string]any)
	if errs["database"] != "connection refused" {
		t.Errorf("expected database failure in body, got %v", errs)
	}
}

func TestCartEndpoints(t *testing.T) {
	ts := newTestServer(t, false)

	t.Run("requires a caller", func(t *testing.T) {
		if rec := ts.do(t, http.MethodGet, "/v1/cart", "", nil); rec.Code != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d", rec.Code)
		}
	})

	t.Run("adds, updates and removes items", func(t *testing.T) {
		rec := ts.do(t, http.MethodPost, "/v1/cart/items", "u1", map[string]any{"productId": "A", "quantity": 2})
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
		}
		cart, _ := decode(t, rec)["cart"].(map[string]any)
		if cart["totalPrice"] != "144" {
			t.Errorf("expected total 144, got %v", cart["totalPrice"])
		}

		rec = ts.do(t, http.MethodPut, "/v1/cart/items/A", "u1", map[string]any{"quantity": 3})
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
		}

		if rec := ts.do(t, http.MethodPut, "/v1/cart/items/B", "u1", map[string]any{"quantity": 1}); rec.Code != http.StatusNotFound {
			t.Errorf("expected 404 for a product not in the cart, got %d", rec.Code)
		}

		rec = ts.do(t, http.MethodDelete, "/v1/cart/items/A", "u1", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
		}
		cart, _ = decode(t, rec)["cart"].(map[string]any)
		if items, _ := cart["items"].([]any); len(items) != 0 {
			t.Errorf("expected empty cart, got %v", items)
		}
	})

	t.Run("unknown product", func(t *testing.T) {
		rec := ts.do(t, http.MethodPost, "/v1/cart/items", "u1", map[string]any{"productId": "ghost", "quantity": 1})
		if rec.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", rec.Code)
		}
	})
}

func TestOrderEndpoints(t *testing.T) {
	t.Run("empty cart is not found", func(t *testing.T) {
		ts := newTestServer(t, false)

		if rec := ts.do(t, http.MethodPost, "/v1/orders", "u1", checkoutForm); rec.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d: %s", rec.Code, rec.Body)
		}
	})

	t.Run("validation failure", func(t *testing.T) {
		ts := newTestServer(t, false)
		ts.do(t, http.MethodPost, "/v1/cart/items", "u1", map[string]any{"productId": "A", "quantity": 1})

		form := map[string]any{"fullName": "Nour", "paymentMethod": "COD"}
		if rec := ts.do(t, http.MethodPost, "/v1/orders", "u1", form); rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d: %s", rec.Code, rec.Body)
		}
	})

	t.Run("invalid JSON", func(t *testing.T) {
		ts := newTestServer(t, false)

		if rec := ts.do(t, http.MethodPost, "/v1/orders", "u1", []byte("{")); rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("full lifecycle", func(t *testing.T) {
		ts := newTestServer(t, false)
		ts.do(t, http.MethodPost, "/v1/cart/items", "u1", map[string]any{"productId": "A", "quantity": 2})

		rec := ts.do(t, http.MethodPost, "/v1/orders", "u1", checkoutForm)
		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body)
		}
		order := orderOf(t, rec)
		if !order.TotalAmount.Equal(decimal.NewFromInt(244)) {
			t.Errorf("expected total 244, got %s", order.TotalAmount)
		}

		rec = ts.do(t, http.MethodGet, "/v1/orders/"+order.ID, "", nil)
		if rec.Code != http.StatusOK || orderOf(t, rec).ID != order.ID {
			t.Fatalf("expected to fetch the order, got %d: %s", rec.Code, rec.Body)
		}

		rec = ts.do(t, http.MethodGet, "/v1/orders?mine=true&status=pending", "u1", nil)
		if orders, _ := decode(t, rec)["orders"].([]any); len(orders) != 1 {
			t.Errorf("expected one pending order for u1, got %v", orders)
		}
		rec = ts.do(t, http.MethodGet, "/v1/orders?mine=true", "u2", nil)
		if orders, _ := decode(t, rec)["orders"].([]any); len(orders) != 0 {
			t.Errorf("expected no orders for u2, got %v", orders)
		}

		rec = ts.do(t, http.MethodPut, "/v1/orders/"+order.ID, "", map[string]any{"orderStatus": "confirmed"})
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
		}
		if !orderOf(t, rec).StockDeducted {
			t.Error("expected stock to be deducted on confirm")
		}
		level, _ := ts.products.GetStock(context.Background(), "A")
		if level.Stock != 3 {
			t.Errorf("expected stock 3 after confirm, got %d", level.Stock)
		}

		rec = ts.do(t, http.MethodPut, "/v1/orders/"+order.ID, "", map[string]any{"orderStatus": "pending"})
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400 for a backward move, got %d", rec.Code)
		}

		rec = ts.do(t, http.MethodDelete, "/v1/orders/"+order.ID, "", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
		}
		level, _ = ts.products.GetStock(context.Background(), "A")
		if level.Stock != 5 {
			t.Errorf("expected stock restored to 5, got %d", level.Stock)
		}

		if rec := ts.do(t, http.MethodGet, "/v1/orders/"+order.ID, "", nil); rec.Code != http.StatusNotFound {
			t.Errorf("expected 404 after delete, got %d", rec.Code)
		}
		if rec := ts.do(t, http.MethodDelete, "/v1/orders/"+order.ID, "", nil); rec.Code != http.StatusNotFound {
			t.Errorf("expected 404 on second delete, got %d", rec.Code)
		}
	})

	t.Run("insufficient stock reports the product", func(t *testing.T) {
		ts := newTestServer(t, false)
		ts.do(t, http.MethodPost, "/v1/cart/items", "u1", map[string]any{"productId": "B", "quantity": 1})

		order := orderOf(t, ts.do(t, http.MethodPost, "/v1/orders", "u1", checkoutForm))
		ts.products.Put(domain.Product{ID: "B", Name: "Rug", Price: decimal.NewFromInt(50), Stock: 0})

		rec := ts.do(t, http.MethodPut, "/v1/orders/"+order.ID, "", map[string]any{"orderStatus": "confirmed"})
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body)
		}
		body := decode(t, rec)
		if body["productId"] != "B" || body["available"] != float64(0) || body["requested"] != float64(1) {
			t.Errorf("unexpected body %v", body)
		}
	})

	t.Run("bad pagination", func(t *testing.T) {
		ts := newTestServer(t, false)

		if rec := ts.do(t, http.MethodGet, "/v1/orders?page=abc", "", nil); rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
		if rec := ts.do(t, http.MethodGet, "/v1/orders?page_size=1000", "", nil); rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})
}

func TestCreateOrderIdempotency(t *testing.T) {
	ts := newTestServer(t, false)
	ts.do(t, http.MethodPost, "/v1/cart/items", "u1", map[string]any{"productId": "A", "quantity": 1})

	first := ts.do(t, http.MethodPost, "/v1/orders", "u1", checkoutForm, "Idempotency-Key", "k1")
	if first.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", first.Code, first.Body)
	}

	replay := ts.do(t, http.MethodPost, "/v1/orders", "u1", checkoutForm, "Idempotency-Key", "k1")
	if replay.Code != http.StatusCreated {
		t.Fatalf("expected replayed 201, got %d", replay.Code)
	}
	if replay.Header().Get("Idempotent-Replayed") != "true" {
		t.Error("expected replay header")
	}
	if orderOf(t, replay).ID != orderOf(t, first).ID {
		t.Error("expected the same order on replay")
	}

	// Keys are per caller: the same key from another user is a fresh request.
	other := ts.do(t, http.MethodPost, "/v1/orders", "u2", checkoutForm, "Idempotency-Key", "k1")
	if other.Code != http.StatusNotFound {
		t.Errorf("expected 404 for u2's empty cart, got %d", other.Code)
	}
}

func TestCheckoutEndpoints(t *testing.T) {
	t.Run("unavailable without a gateway", func(t *testing.T) {
		ts := newTestServer(t, false)

		rec := ts.do(t, http.MethodPost, "/v1/checkout/session", "u1", map[string]any{"shippingAddress": checkoutForm})
		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("expected 503, got %d", rec.Code)
		}
	})

	t.Run("session, webhook and verify", func(t *testing.T) {
		ts := newTestServer(t, true)
		ts.do(t, http.MethodPost, "/v1/cart/items", "u1", map[string]any{"productId": "A", "quantity": 2})

		rec := ts.do(t, http.MethodPost, "/v1/checkout/session", "u1", map[string]any{"shippingAddress": checkoutForm})
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
		}
		body := decode(t, rec)
		if body["sessionId"] != "cs_test_1" || body["url"] == "" {
			t.Errorf("unexpected session body %v", body)
		}
		if len(ts.gateway.created) != 1 {
			t.Fatalf("expected one session request, got %d", len(ts.gateway.created))
		}

		if rec := ts.do(t, http.MethodGet, "/v1/checkout/verify?session_id=cs_test_1", "u1", nil); rec.Code != http.StatusNotFound {
			t.Errorf("expected 404 for an unknown session, got %d", rec.Code)
		}

		ts.gateway.sessions["cs_test_1"] = &ports.CheckoutSession{
			ID:       "cs_test_1",
			Paid:     true,
			Metadata: ts.gateway.created[0].Metadata,
		}

		if rec := ts.do(t, http.MethodPost, "/v1/webhooks/stripe", "", []byte("cs_test_1"), "Stripe-Signature", "forged"); rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400 for a bad signature, got %d", rec.Code)
		}

		rec = ts.do(t, http.MethodPost, "/v1/webhooks/stripe", "", []byte("cs_test_1"), "Stripe-Signature", "valid")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
		}
		orderID, _ := decode(t, rec)["orderId"].(string)
		if orderID == "" {
			t.Fatal("expected the webhook to report the order")
		}

		rec = ts.do(t, http.MethodGet, "/v1/checkout/verify?session_id=cs_test_1", "u1", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
		}
		order := orderOf(t, rec)
		if order.ID != orderID {
			t.Errorf("expected verify to return %s, got %s", orderID, order.ID)
		}
		if order.Status != domain.StatusConfirmed || order.PaymentStatus != domain.PaymentPaid {
			t.Errorf("unexpected statuses %s/%s", order.Status, order.PaymentStatus)
		}

		level, _ := ts.products.GetStock(context.Background(), "A")
		if level.Stock != 3 {
			t.Errorf("expected a single deduction, stock is %d", level.Stock)
		}
	})

	t.Run("unpaid session", func(t *testing.T) {
		ts := newTestServer(t, true)
		ts.gateway.sessions["cs_open"] = &ports.CheckoutSession{ID: "cs_open"}

		if rec := ts.do(t, http.MethodGet, "/v1/checkout/verify?session_id=cs_open", "u1", nil); rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("ignored event types", func(t *testing.T) {
		ts := newTestServer(t, true)

		rec := ts.do(t, http.MethodPost, "/v1/webhooks/stripe", "", []byte("unknown"), "Stripe-Signature", "valid")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if _, ok := decode(t, rec)["orderId"]; ok {
			t.Error("expected no order for an ignored event")
		}
	})
}
