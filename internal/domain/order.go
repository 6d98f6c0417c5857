package domain

import "time"

type OrderStatus string

const (
	OrderPending    OrderStatus = "pending"
	OrderConfirmed  OrderStatus = "confirmed"
	OrderProcessing OrderStatus = "processing"
	OrderCancelled  OrderStatus = "cancelled"
	OrderRefunded   OrderStatus = "refunded"
)

type PaymentMethod string

const (
	PayCashOnDelivery PaymentMethod = "cod"
	PayCard           PaymentMethod = "card"
	PayTamara         PaymentMethod = "tamara"
	PayTabby          PaymentMethod = "tabby"
)

type OrderItem struct {
	SKU       string  `json:"sku"`
	Name      string  `json:"name"`
	Qty       int     `json:"qty"`
	UnitPrice float64 `json:"unitPrice"`
}

// PaymentResult holds provider correlation data. It is merge-updated only:
// fields written by one event survive later events that do not mention them.
// Well-known keys: providerOrderId, checkoutId, status, eventType,
// updateTime, capturedAmount, refundId, authorizedAmount, orderExpiryTime,
// webhookData.
type PaymentResult map[string]any

func (p PaymentResult) ProviderOrderID() string {
	s, _ := p["providerOrderId"].(string)
	return s
}

func (p PaymentResult) Status() string {
	s, _ := p["status"].(string)
	return s
}

type Order struct {
	OrderID       string        `json:"orderId"`
	OrderNumber   string        `json:"orderNumber"`
	UserID        string        `json:"userId,omitempty"`
	CustomerEmail string        `json:"customerEmail,omitempty"`
	Items         []OrderItem   `json:"items"`
	TotalPrice    float64       `json:"totalPrice"`
	ShippingPrice float64       `json:"shippingPrice"`
	TaxPrice      float64       `json:"taxPrice"`
	PaymentMethod PaymentMethod `json:"paymentMethod"`
	PaymentResult PaymentResult `json:"paymentResult"`
	IsPaid        bool          `json:"isPaid"`
	PaidAt        *time.Time    `json:"paidAt,omitempty"`
	Status        OrderStatus   `json:"status"`
	CreatedAt     time.Time     `json:"createdAt"`
	UpdatedAt     time.Time     `json:"updatedAt"`
}

// PaymentUpdate is one atomic read-modify-write of an order's payment state.
// Result is merged into PaymentResult field by field; existing keys not
// named in Result survive. PaidAt is derived by the store: set once when
// IsPaid first becomes true, cleared only when ClearPaidAt is set.
type PaymentUpdate struct {
	Result      PaymentResult
	SetPaid     *bool       // nil leaves isPaid unchanged
	ClearPaidAt bool
	Status      OrderStatus // "" leaves status unchanged
}
