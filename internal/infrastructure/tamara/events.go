package tamara

import (
	"strings"

	"commerce-backend/internal/domain"
)

// Provider event vocabulary. The set is open ended: unknown tags map to the
// passthrough row of MapEvent instead of failing.
const (
	EventOrderApproved   = "order_approved"
	EventOrderDeclined   = "order_declined"
	EventOrderExpired    = "order_expired"
	EventOrderCanceled   = "order_canceled"
	EventOrderAuthorised = "order_authorised"
	EventOrderCaptured   = "order_captured"
	EventOrderRefunded   = "order_refunded"
)

type NormalizedStatus struct {
	PaymentStatus string             `json:"paymentStatus"`
	IsPaid        bool               `json:"isPaid"`
	OrderStatus   domain.OrderStatus `json:"orderStatus"`
	Description   string             `json:"description"`
}

// MapEvent translates a provider event into the internal status vocabulary.
// Pure and total: an unrecognized eventType passes through as the payment
// status with a pending order status.
func MapEvent(eventType string, data map[string]any) NormalizedStatus {
	switch eventType {
	case EventOrderApproved:
		return NormalizedStatus{"approved", true, domain.OrderConfirmed, "Order approved by Tamara"}
	case EventOrderDeclined:
		return NormalizedStatus{"declined", false, domain.OrderCancelled, "Order declined by Tamara"}
	case EventOrderExpired:
		return NormalizedStatus{"expired", false, domain.OrderCancelled, "Checkout session expired"}
	case EventOrderCanceled:
		return NormalizedStatus{"canceled", false, domain.OrderCancelled, "Order canceled"}
	case EventOrderAuthorised:
		return NormalizedStatus{"authorised", true, domain.OrderConfirmed, "Payment authorised"}
	case EventOrderCaptured:
		return NormalizedStatus{"fully_captured", true, domain.OrderProcessing, "Payment captured"}
	case EventOrderRefunded:
		if _, ok := data["refund_amount"]; ok {
			return NormalizedStatus{"partially_refunded", false, domain.OrderRefunded, "Payment partially refunded"}
		}
		return NormalizedStatus{"refunded", false, domain.OrderRefunded, "Payment refunded"}
	default:
		return NormalizedStatus{eventType, false, domain.OrderPending, "Unknown event: " + eventType}
	}
}

// ClearsPaidAt reports whether the event explicitly unwinds a payment, the
// only case where a previously set paidAt is erased. A refund keeps paidAt
// as the record that payment did happen.
func ClearsPaidAt(eventType string) bool {
	switch eventType {
	case EventOrderDeclined, EventOrderCanceled, EventOrderExpired:
		return true
	}
	return false
}

// EventForStatus converts a polled remote order status into its event form
// so sync and webhook paths share one mapping.
func EventForStatus(status string) string {
	s := strings.ToLower(strings.TrimSpace(status))
	switch s {
	case "fully_captured", "captured":
		return EventOrderCaptured
	case "refunded", "partially_refunded":
		return EventOrderRefunded
	}
	if strings.HasPrefix(s, "order_") {
		return s
	}
	return "order_" + s
}
