package server

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"commerce-backend/internal/config"
	"commerce-backend/internal/domain"
	"commerce-backend/internal/infrastructure/repo"
	"commerce-backend/internal/infrastructure/tamara"
	"commerce-backend/internal/metrics"
	"commerce-backend/internal/usecase"
)

const webhookSecret = "whsec_server_test"

type stubGateway struct{}

func (stubGateway) CreateCheckout(ctx context.Context, req tamara.CheckoutRequest) (*tamara.CheckoutSession, error) {
	return &tamara.CheckoutSession{OrderID: "T1", CheckoutID: "C1", CheckoutURL: "https://checkout.tamara.co/c/C1", Status: "new"}, nil
}

func (stubGateway) AuthorizeOrder(ctx context.Context, providerOrderID string) (*tamara.Authorization, error) {
	return &tamara.Authorization{OrderID: providerOrderID, Status: "authorised"}, nil
}

func (stubGateway) CapturePayment(ctx context.Context, providerOrderID string, req tamara.CaptureRequest) (*tamara.Capture, error) {
	return &tamara.Capture{CaptureID: "cap-1", OrderID: providerOrderID, Status: "fully_captured"}, nil
}

func (stubGateway) RefundPayment(ctx context.Context, providerOrderID string, req tamara.RefundRequest) (*tamara.Refund, error) {
	return &tamara.Refund{RefundID: "ref-1", OrderID: providerOrderID, Status: "refunded"}, nil
}

func (stubGateway) CancelOrder(ctx context.Context, providerOrderID string, req tamara.CancelRequest) (*tamara.Cancellation, error) {
	return &tamara.Cancellation{CancelID: "can-1", OrderID: providerOrderID, Status: "canceled"}, nil
}

func (stubGateway) GetOrderStatus(ctx context.Context, providerOrderID string) (*tamara.RemoteOrder, error) {
	return &tamara.RemoteOrder{OrderID: providerOrderID, Status: "approved"}, nil
}

func newTestServer(t *testing.T) (*Server, *repo.MemoryOrderRepo) {
	t.Helper()
	store := repo.NewMemoryOrderRepo()
	payments := &usecase.PaymentService{
		Repo:     store,
		Gateway:  stubGateway{},
		Verifier: &tamara.WebhookVerifier{Secret: webhookSecret},
	}
	orders := &usecase.OrderService{Repo: store}
	cfg := config.Config{Env: "dev", JWTSecret: ""}
	return New(cfg, orders, payments, &usecase.LogNotifier{}, metrics.New("test")), store
}

func seedPaidCandidate(t *testing.T, store *repo.MemoryOrderRepo, id string, withProviderID bool) {
	t.Helper()
	now := time.Now().UTC()
	o := &domain.Order{
		OrderID:       id,
		OrderNumber:   "SO-" + id,
		Items:         []domain.OrderItem{{SKU: "WB-1", Name: "Water bottle", Qty: 2, UnitPrice: 175}},
		TotalPrice:    350,
		PaymentMethod: domain.PayTamara,
		PaymentResult: domain.PaymentResult{},
		Status:        domain.OrderPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if withProviderID {
		o.PaymentResult["providerOrderId"] = "T1"
	}
	if err := store.Put(o); err != nil {
		t.Fatalf("seed: %v", err)
	}
}

func sign(body []byte) string {
	mac := hmac.New(sha256.New, []byte(webhookSecret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func do(s *Server, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func TestHealthz(t *testing.T) {
	s, _ := newTestServer(t)
	w := do(s, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestWebhookValidSignatureApplied(t *testing.T) {
	s, store := newTestServer(t)
	seedPaidCandidate(t, store, "o-1", true)

	body := []byte(`{"order_id":"T1","event_type":"order_approved"}`)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/tamara", bytes.NewReader(body))
	req.Header.Set("X-Tamara-Signature", sign(body))

	w := do(s, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("response: %v", err)
	}
	if resp["received"] != true || resp["order_id"] != "o-1" {
		t.Fatalf("response = %v", resp)
	}
	o, _ := store.Get("o-1")
	if !o.IsPaid || o.Status != domain.OrderConfirmed {
		t.Fatalf("order state: isPaid=%v status=%s", o.IsPaid, o.Status)
	}
}

func TestWebhookTamperedBodyIsUnauthorized(t *testing.T) {
	s, store := newTestServer(t)
	seedPaidCandidate(t, store, "o-2", true)

	body := []byte(`{"order_id":"T1","event_type":"order_approved"}`)
	sig := sign(body)
	tampered := []byte(`{"order_id":"T1","event_type":"order_captured"}`)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/tamara", bytes.NewReader(tampered))
	req.Header.Set("X-Tamara-Signature", sig)

	w := do(s, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", w.Code)
	}
	o, _ := store.Get("o-2")
	if o.IsPaid || len(o.PaymentResult) != 1 {
		t.Fatal("rejected webhook mutated the order")
	}
}

func TestWebhookUnknownOrderIs404(t *testing.T) {
	s, _ := newTestServer(t)

	body := []byte(`{"order_id":"T-unknown","event_type":"order_approved"}`)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/tamara", bytes.NewReader(body))
	req.Header.Set("X-Tamara-Signature", sign(body))

	w := do(s, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
}

func TestCheckoutMissingFieldsIs400(t *testing.T) {
	s, store := newTestServer(t)
	seedPaidCandidate(t, store, "o-3", false)

	body := []byte(`{
		"order_reference_id": "o-3",
		"total_amount": {"amount": 350, "currency": "SAR"},
		"items": [{"reference_id":"i-1","name":"Water bottle","sku":"WB-1","quantity":2}],
		"consumer": {"first_name":"Sara","last_name":"A","phone_number":"+966500000001","email":"sara@example.com"},
		"shipping_address": {"line1":"1 King Fahd Rd","city":"Riyadh"}
	}`)
	req := httptest.NewRequest(http.MethodPost, "/api/checkout", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	w := do(s, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("response: %v", err)
	}
	if resp.Error.Code != "ValidationError" {
		t.Fatalf("code = %q", resp.Error.Code)
	}
	if !bytes.Contains([]byte(resp.Error.Message), []byte("billing_address")) {
		t.Fatalf("message does not name the missing field: %q", resp.Error.Message)
	}
}

func TestCheckoutReturnsURLAndPersistsIDs(t *testing.T) {
	s, store := newTestServer(t)
	seedPaidCandidate(t, store, "o-4", false)

	body := []byte(`{
		"order_reference_id": "o-4",
		"total_amount": {"amount": 350, "currency": "SAR"},
		"items": [{"reference_id":"i-1","name":"Water bottle","sku":"WB-1","quantity":2,"unit_price":{"amount":175,"currency":"SAR"}}],
		"consumer": {"first_name":"Sara","last_name":"A","phone_number":"+966500000001","email":"sara@example.com"},
		"billing_address": {"line1":"1 King Fahd Rd","city":"Riyadh"},
		"shipping_address": {"line1":"1 King Fahd Rd","city":"Riyadh"}
	}`)
	req := httptest.NewRequest(http.MethodPost, "/api/checkout", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	w := do(s, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("response: %v", err)
	}
	if resp["checkoutUrl"] != "https://checkout.tamara.co/c/C1" {
		t.Fatalf("checkoutUrl = %v", resp["checkoutUrl"])
	}
	o, _ := store.Get("o-4")
	if o.PaymentResult.ProviderOrderID() != "T1" {
		t.Fatalf("providerOrderId = %q", o.PaymentResult.ProviderOrderID())
	}
}

func TestCreateAndFetchOrder(t *testing.T) {
	s, _ := newTestServer(t)

	body := []byte(`{
		"customerEmail": "sara@example.com",
		"items": [{"sku":"WB-1","name":"Water bottle","qty":2,"unitPrice":175}],
		"totalPrice": 350,
		"paymentMethod": "tamara"
	}`)
	req := httptest.NewRequest(http.MethodPost, "/api/orders", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := do(s, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var created domain.Order
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("response: %v", err)
	}
	if created.OrderID == "" || created.OrderNumber == "" || created.Status != domain.OrderPending {
		t.Fatalf("created = %+v", created)
	}

	w = do(s, httptest.NewRequest(http.MethodGet, "/api/orders/"+created.OrderID, nil))
	if w.Code != http.StatusOK {
		t.Fatalf("fetch status = %d", w.Code)
	}

	w = do(s, httptest.NewRequest(http.MethodGet, "/api/orders/missing", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("missing order status = %d", w.Code)
	}
}

func TestSyncWithoutProviderIDIs400(t *testing.T) {
	s, store := newTestServer(t)
	seedPaidCandidate(t, store, "o-5", false)

	w := do(s, httptest.NewRequest(http.MethodGet, "/api/orders/o-5/sync", nil))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
}
