package tamara

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// APIError is the failure result of a gateway call. Provider rejections are
// expected outcomes, so every remote failure comes back as a value the
// caller inspects rather than a panic or a wrapped transport error.
type APIError struct {
	Status    int    // HTTP status, 0 when the provider was unreachable
	Message   string // provider message or transport description
	Body      string // raw provider body, passthrough for operators
	EdgeBlock bool   // rejected by the provider's WAF, not its business logic
	Transient bool   // timeout, network failure or 5xx; safe to retry
}

func (e *APIError) Error() string {
	switch {
	case e.EdgeBlock:
		return fmt.Sprintf("tamara: blocked by provider edge (status %d)", e.Status)
	case e.Status > 0:
		return fmt.Sprintf("tamara: %s (status %d)", e.Message, e.Status)
	default:
		return "tamara: " + e.Message
	}
}

type ConfigError struct {
	Name string
}

func (e *ConfigError) Error() string {
	return "tamara: missing configuration: " + e.Name
}

// Client talks to the Tamara API. Construct it explicitly and inject it;
// there is no package-level credential state. The provider's edge network
// fingerprints traffic, so requests carry a browser-like profile with
// Origin/Referer set to the storefront.
type Client struct {
	BaseURL       string
	APIKey        string
	PublicBaseURL string // base for merchant_url redirects and the webhook
	StorefrontURL string
	CountryCode   string
	Currency      string
	HTTP          *http.Client
}

const (
	defaultTimeout = 30 * time.Second // the checkout endpoint is slow, not hung
	userAgent      = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
)

var edgeMarkers = []string{
	"cloudflare",
	"cf-ray",
	"attention required",
	"just a moment",
	"access denied",
	"request blocked",
	"captcha",
}

func (c *Client) CreateCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	c.fillDefaults(&req)
	var out CheckoutSession
	if err := c.do(ctx, http.MethodPost, "/checkout", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) AuthorizeOrder(ctx context.Context, providerOrderID string) (*Authorization, error) {
	var out Authorization
	if err := c.do(ctx, http.MethodPost, "/orders/"+providerOrderID+"/authorise", struct{}{}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CapturePayment(ctx context.Context, providerOrderID string, req CaptureRequest) (*Capture, error) {
	req.OrderID = providerOrderID
	c.fillCurrency(req.TotalAmount)
	var out Capture
	if err := c.do(ctx, http.MethodPost, "/payments/capture", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) RefundPayment(ctx context.Context, providerOrderID string, req RefundRequest) (*Refund, error) {
	c.fillCurrency(req.TotalAmount)
	var out Refund
	if err := c.do(ctx, http.MethodPost, "/orders/"+providerOrderID+"/refunds", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CancelOrder(ctx context.Context, providerOrderID string, req CancelRequest) (*Cancellation, error) {
	c.fillCurrency(req.TotalAmount)
	var out Cancellation
	if err := c.do(ctx, http.MethodPost, "/orders/"+providerOrderID+"/cancel", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetOrderStatus(ctx context.Context, providerOrderID string) (*RemoteOrder, error) {
	var out RemoteOrder
	if err := c.do(ctx, http.MethodGet, "/orders/"+providerOrderID, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) fillCurrency(a *Amount) {
	if a != nil && a.Currency == "" {
		a.Currency = c.currency()
	}
}

func (c *Client) currency() string {
	if c.Currency != "" {
		return c.Currency
	}
	return "SAR"
}

// fillDefaults completes the provider payload: currency on every amount,
// per-item sub-totals, instalment defaults and the merchant URLs pointing
// back at this service.
func (c *Client) fillDefaults(req *CheckoutRequest) {
	cur := c.currency()
	c.fillCurrency(req.TotalAmount)
	if req.ShippingAmount == nil {
		req.ShippingAmount = &Amount{Currency: cur}
	}
	c.fillCurrency(req.ShippingAmount)
	if req.TaxAmount == nil {
		req.TaxAmount = &Amount{Currency: cur}
	}
	c.fillCurrency(req.TaxAmount)
	for i := range req.Items {
		it := &req.Items[i]
		if it.Type == "" {
			it.Type = "Physical"
		}
		if it.Quantity == 0 {
			it.Quantity = 1
		}
		c.fillCurrency(it.UnitPrice)
		if it.TaxAmount == nil {
			it.TaxAmount = &Amount{Currency: cur}
		}
		if it.DiscountAmount == nil {
			it.DiscountAmount = &Amount{Currency: cur}
		}
		if it.TotalAmount == nil && it.UnitPrice != nil {
			it.TotalAmount = &Amount{Amount: it.UnitPrice.Amount * float64(it.Quantity), Currency: cur}
		}
		c.fillCurrency(it.TotalAmount)
	}
	if req.MerchantURL == nil {
		base := strings.TrimRight(c.PublicBaseURL, "/")
		req.MerchantURL = &MerchantURL{
			Success:      base + "/payments/tamara/success",
			Cancel:       base + "/payments/tamara/cancel",
			Failure:      base + "/payments/tamara/failure",
			Notification: base + "/webhooks/tamara",
		}
	}
	if req.PaymentType == "" {
		req.PaymentType = "PAY_BY_INSTALMENTS"
	}
	if req.Instalments == 0 {
		req.Instalments = 3
	}
	if req.CountryCode == "" {
		if c.CountryCode != "" {
			req.CountryCode = c.CountryCode
		} else {
			req.CountryCode = "SA"
		}
	}
	if req.Locale == "" {
		req.Locale = "en_US"
	}
	if req.Platform == "" {
		req.Platform = "web"
	}
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	if strings.TrimSpace(c.APIKey) == "" {
		return &ConfigError{Name: "TAMARA_API_KEY"}
	}
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(c.BaseURL, "/")+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	if c.StorefrontURL != "" {
		req.Header.Set("Origin", c.StorefrontURL)
		req.Header.Set("Referer", c.StorefrontURL+"/")
	}
	hc := c.HTTP
	if hc == nil {
		hc = &http.Client{Timeout: defaultTimeout}
	}
	resp, err := hc.Do(req)
	if err != nil {
		return &APIError{Message: "provider unreachable: " + err.Error(), Transient: true}
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &APIError{Status: resp.StatusCode, Message: "reading provider response failed", Transient: true}
	}
	if resp.StatusCode >= 500 {
		return &APIError{Status: resp.StatusCode, Message: "provider error", Body: string(raw), Transient: true}
	}
	if resp.StatusCode == http.StatusForbidden && isEdgeBlocked(raw) {
		return &APIError{Status: resp.StatusCode, Message: "request blocked by provider edge network", Body: string(raw), EdgeBlock: true}
	}
	if resp.StatusCode >= 400 {
		return &APIError{Status: resp.StatusCode, Message: providerMessage(raw), Body: string(raw)}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &APIError{Status: resp.StatusCode, Message: "malformed provider response", Body: string(raw)}
	}
	return nil
}

func isEdgeBlocked(body []byte) bool {
	b := strings.ToLower(string(body))
	for _, m := range edgeMarkers {
		if strings.Contains(b, m) {
			return true
		}
	}
	return false
}

func providerMessage(body []byte) string {
	var envelope struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil {
		if envelope.Message != "" {
			return envelope.Message
		}
		if envelope.Error != "" {
			return envelope.Error
		}
	}
	return "request rejected by provider"
}
