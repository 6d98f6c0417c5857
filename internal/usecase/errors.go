package usecase

import "strings"

// ValidationError enumerates every missing field, not just the first.
type ValidationError struct {
	Missing []string
}

func (e *ValidationError) Error() string {
	return "missing required fields: " + strings.Join(e.Missing, ", ")
}

// OrderNotFoundError means no order matched any correlation key. This is a
// loud failure: an undeliverable payment event is money state going
// untracked.
type OrderNotFoundError struct {
	ReferenceID     string
	ProviderOrderID string
	OrderNumber     string
}

func (e *OrderNotFoundError) Error() string {
	keys := make([]string, 0, 3)
	if e.ReferenceID != "" {
		keys = append(keys, "reference_id="+e.ReferenceID)
	}
	if e.ProviderOrderID != "" {
		keys = append(keys, "provider_order_id="+e.ProviderOrderID)
	}
	if e.OrderNumber != "" {
		keys = append(keys, "order_number="+e.OrderNumber)
	}
	if len(keys) == 0 {
		return "order not found: no correlation keys supplied"
	}
	return "order not found by " + strings.Join(keys, ", ")
}

// NotAPaymentOrderError means the order has no provider order id, so there
// is nothing to reconcile against the gateway.
type NotAPaymentOrderError struct {
	OrderID string
}

func (e *NotAPaymentOrderError) Error() string {
	return "order " + e.OrderID + " has no provider order id"
}

type BadRequestError string

func (e BadRequestError) Error() string { return string(e) }
