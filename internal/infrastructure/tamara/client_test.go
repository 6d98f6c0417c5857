package tamara

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return &Client{
		BaseURL:       srv.URL,
		APIKey:        "sk_test",
		PublicBaseURL: "https://shop.example.com",
		StorefrontURL: "https://shop.example.com",
		HTTP:          srv.Client(),
	}
}

func validCheckout() CheckoutRequest {
	return CheckoutRequest{
		TotalAmount:      &Amount{Amount: 350},
		OrderReferenceID: "o-1",
		OrderNumber:      "SO-1",
		Items: []Item{
			{ReferenceID: "i-1", Name: "Water bottle", SKU: "WB-1", Quantity: 2, UnitPrice: &Amount{Amount: 175}},
		},
		Consumer:        &Consumer{FirstName: "Sara", LastName: "A", PhoneNumber: "+966500000001", Email: "sara@example.com"},
		BillingAddress:  &Address{Line1: "1 King Fahd Rd", City: "Riyadh"},
		ShippingAddress: &Address{Line1: "1 King Fahd Rd", City: "Riyadh"},
	}
}

func TestCreateCheckoutBuildsProviderRequest(t *testing.T) {
	var got map[string]any
	var gotHeaders http.Header
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/checkout" {
			t.Errorf("path = %s", r.URL.Path)
		}
		gotHeaders = r.Header.Clone()
		_ = json.NewDecoder(r.Body).Decode(&got)
		_ = json.NewEncoder(w).Encode(CheckoutSession{
			OrderID:     "T1",
			CheckoutID:  "C1",
			CheckoutURL: "https://checkout.tamara.co/c/C1",
			Status:      "new",
		})
	})

	session, err := c.CreateCheckout(context.Background(), validCheckout())
	if err != nil {
		t.Fatalf("CreateCheckout: %v", err)
	}
	if session.OrderID != "T1" || session.CheckoutURL == "" {
		t.Fatalf("session = %+v", session)
	}

	if gotHeaders.Get("Authorization") != "Bearer sk_test" {
		t.Errorf("authorization header = %q", gotHeaders.Get("Authorization"))
	}
	if gotHeaders.Get("Origin") != "https://shop.example.com" {
		t.Errorf("origin = %q", gotHeaders.Get("Origin"))
	}
	if gotHeaders.Get("User-Agent") == "" || gotHeaders.Get("Accept-Language") == "" {
		t.Error("browser profile headers missing")
	}

	total := got["total_amount"].(map[string]any)
	if total["currency"] != "SAR" {
		t.Errorf("default currency = %v", total["currency"])
	}
	mu := got["merchant_url"].(map[string]any)
	if mu["notification"] != "https://shop.example.com/webhooks/tamara" {
		t.Errorf("notification url = %v", mu["notification"])
	}
	if got["payment_type"] != "PAY_BY_INSTALMENTS" || got["instalments"] != float64(3) {
		t.Errorf("instalment defaults: %v %v", got["payment_type"], got["instalments"])
	}
	item := got["items"].([]any)[0].(map[string]any)
	if item["total_amount"].(map[string]any)["amount"] != float64(350) {
		t.Errorf("item total not derived: %v", item["total_amount"])
	}
	if _, ok := item["tax_amount"]; !ok {
		t.Error("item tax_amount sub-total missing")
	}
}

func TestCreateCheckoutBusinessRejection(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message":"total_amount below minimum limit"}`))
	})
	_, err := c.CreateCheckout(context.Background(), validCheckout())
	var ge *APIError
	if !errors.As(err, &ge) {
		t.Fatalf("err = %v", err)
	}
	if ge.Status != http.StatusBadRequest || ge.Transient || ge.EdgeBlock {
		t.Fatalf("classification = %+v", ge)
	}
	if ge.Message != "total_amount below minimum limit" {
		t.Fatalf("message = %q", ge.Message)
	}
}

func TestEdgeBlockClassification(t *testing.T) {
	blocked := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`<html>Attention Required! | Cloudflare</html>`))
	})
	_, err := blocked.GetOrderStatus(context.Background(), "T1")
	var ge *APIError
	if !errors.As(err, &ge) || !ge.EdgeBlock {
		t.Fatalf("expected edge block, got %v", err)
	}

	plain := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"message":"merchant not allowed"}`))
	})
	_, err = plain.GetOrderStatus(context.Background(), "T1")
	if !errors.As(err, &ge) {
		t.Fatalf("err = %v", err)
	}
	if ge.EdgeBlock {
		t.Fatal("plain 403 misclassified as edge block")
	}
}

func TestServerErrorIsTransient(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	_, err := c.AuthorizeOrder(context.Background(), "T1")
	var ge *APIError
	if !errors.As(err, &ge) || !ge.Transient {
		t.Fatalf("expected transient, got %v", err)
	}
}

func TestUnreachableProviderIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	c := &Client{BaseURL: url, APIKey: "sk_test"}
	_, err := c.GetOrderStatus(context.Background(), "T1")
	var ge *APIError
	if !errors.As(err, &ge) || !ge.Transient {
		t.Fatalf("expected transient, got %v", err)
	}
}

func TestMissingAPIKeyIsConfigError(t *testing.T) {
	c := &Client{BaseURL: "https://api.tamara.co"}
	_, err := c.CreateCheckout(context.Background(), validCheckout())
	var ce *ConfigError
	if !errors.As(err, &ce) {
		t.Fatalf("err = %v", err)
	}
	if ce.Name != "TAMARA_API_KEY" {
		t.Fatalf("name = %q", ce.Name)
	}
}
