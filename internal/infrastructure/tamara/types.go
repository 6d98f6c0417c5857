package tamara

import "encoding/json"

type Amount struct {
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency,omitempty"`
}

type Consumer struct {
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	PhoneNumber string `json:"phone_number"`
	Email       string `json:"email"`
}

type Address struct {
	FirstName   string `json:"first_name,omitempty"`
	LastName    string `json:"last_name,omitempty"`
	Line1       string `json:"line1"`
	Line2       string `json:"line2,omitempty"`
	Region      string `json:"region,omitempty"`
	City        string `json:"city"`
	CountryCode string `json:"country_code,omitempty"`
	PhoneNumber string `json:"phone_number,omitempty"`
}

type Item struct {
	ReferenceID    string  `json:"reference_id"`
	Type           string  `json:"type"`
	Name           string  `json:"name"`
	SKU            string  `json:"sku"`
	Quantity       int     `json:"quantity"`
	UnitPrice      *Amount `json:"unit_price"`
	TaxAmount      *Amount `json:"tax_amount,omitempty"`
	DiscountAmount *Amount `json:"discount_amount,omitempty"`
	TotalAmount    *Amount `json:"total_amount,omitempty"`
}

type MerchantURL struct {
	Success      string `json:"success"`
	Cancel       string `json:"cancel"`
	Failure      string `json:"failure"`
	Notification string `json:"notification"`
}

// CheckoutRequest is the provider checkout payload. Pointer fields let the
// orchestrator tell "absent" from "zero" when enumerating missing fields.
type CheckoutRequest struct {
	TotalAmount      *Amount      `json:"total_amount"`
	ShippingAmount   *Amount      `json:"shipping_amount,omitempty"`
	TaxAmount        *Amount      `json:"tax_amount,omitempty"`
	OrderReferenceID string       `json:"order_reference_id"`
	OrderNumber      string       `json:"order_number,omitempty"`
	Items            []Item       `json:"items"`
	Consumer         *Consumer    `json:"consumer"`
	BillingAddress   *Address     `json:"billing_address"`
	ShippingAddress  *Address     `json:"shipping_address"`
	MerchantURL      *MerchantURL `json:"merchant_url,omitempty"`
	PaymentType      string       `json:"payment_type,omitempty"`
	Instalments      int          `json:"instalments,omitempty"`
	CountryCode      string       `json:"country_code,omitempty"`
	Locale           string       `json:"locale,omitempty"`
	Platform         string       `json:"platform,omitempty"`
	Description      string       `json:"description,omitempty"`
}

type CheckoutSession struct {
	OrderID     string `json:"order_id"`
	CheckoutID  string `json:"checkout_id"`
	CheckoutURL string `json:"checkout_url"`
	Status      string `json:"status"`
}

type Authorization struct {
	OrderID          string  `json:"order_id"`
	Status           string  `json:"status"`
	AuthorizedAmount *Amount `json:"authorized_amount,omitempty"`
	OrderExpiryTime  string  `json:"order_expiry_time,omitempty"`
}

type CaptureRequest struct {
	OrderID      string         `json:"order_id,omitempty"`
	TotalAmount  *Amount        `json:"total_amount"`
	ShippingInfo map[string]any `json:"shipping_info,omitempty"`
}

type Capture struct {
	CaptureID      string  `json:"capture_id"`
	OrderID        string  `json:"order_id"`
	Status         string  `json:"status"`
	CapturedAmount *Amount `json:"captured_amount,omitempty"`
}

type RefundRequest struct {
	TotalAmount *Amount `json:"total_amount"`
	Comment     string  `json:"comment,omitempty"`
}

type Refund struct {
	RefundID       string  `json:"refund_id"`
	OrderID        string  `json:"order_id"`
	Status         string  `json:"status"`
	RefundedAmount *Amount `json:"refunded_amount,omitempty"`
}

type CancelRequest struct {
	TotalAmount *Amount `json:"total_amount,omitempty"`
}

type Cancellation struct {
	CancelID string `json:"cancel_id"`
	OrderID  string `json:"order_id"`
	Status   string `json:"status"`
}

type RemoteOrder struct {
	OrderID    string  `json:"order_id"`
	Status     string  `json:"status"`
	PaidAmount *Amount `json:"paid_amount,omitempty"`
}

// WebhookEvent is the inbound notification body. At least one of the three
// correlation keys is expected; Data is kept opaque and stored for audit.
type WebhookEvent struct {
	OrderID          string          `json:"order_id"`
	OrderReferenceID string          `json:"order_reference_id,omitempty"`
	OrderNumber      string          `json:"order_number,omitempty"`
	EventType        string          `json:"event_type"`
	Data             json.RawMessage `json:"data,omitempty"`
}
