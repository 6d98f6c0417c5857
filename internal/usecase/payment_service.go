package usecase

import (
	"context"
	"encoding/json"
	"time"

	"commerce-backend/internal/domain"
	"commerce-backend/internal/infrastructure/tamara"
	"commerce-backend/internal/logger"
)

type OrderRepo interface {
	Put(*domain.Order) error
	Get(id string) (*domain.Order, bool)
	GetByProviderOrderID(providerOrderID string) (*domain.Order, bool)
	GetByOrderNumber(orderNumber string) (*domain.Order, bool)
	ApplyPayment(id string, upd domain.PaymentUpdate) (*domain.Order, error)
}

type Gateway interface {
	CreateCheckout(ctx context.Context, req tamara.CheckoutRequest) (*tamara.CheckoutSession, error)
	AuthorizeOrder(ctx context.Context, providerOrderID string) (*tamara.Authorization, error)
	CapturePayment(ctx context.Context, providerOrderID string, req tamara.CaptureRequest) (*tamara.Capture, error)
	RefundPayment(ctx context.Context, providerOrderID string, req tamara.RefundRequest) (*tamara.Refund, error)
	CancelOrder(ctx context.Context, providerOrderID string, req tamara.CancelRequest) (*tamara.Cancellation, error)
	GetOrderStatus(ctx context.Context, providerOrderID string) (*tamara.RemoteOrder, error)
}

type WebhookVerifier interface {
	Verify(rawBody []byte, signatureOrToken string) error
}

// PaymentService coordinates the payment lifecycle: checkout creation,
// webhook application and reconciliation. It holds no state of its own; the
// order store is the only point of concurrency control, and no lock is held
// across a gateway call.
type PaymentService struct {
	Repo     OrderRepo
	Gateway  Gateway
	Verifier WebhookVerifier
}

func (s *PaymentService) CreateCheckout(ctx context.Context, req tamara.CheckoutRequest) (*tamara.CheckoutSession, error) {
	missing := make([]string, 0, 5)
	if req.TotalAmount == nil {
		missing = append(missing, "total_amount")
	}
	if req.Consumer == nil {
		missing = append(missing, "consumer")
	}
	if len(req.Items) == 0 {
		missing = append(missing, "items")
	}
	if req.BillingAddress == nil {
		missing = append(missing, "billing_address")
	}
	if req.ShippingAddress == nil {
		missing = append(missing, "shipping_address")
	}
	if len(missing) > 0 {
		return nil, &ValidationError{Missing: missing}
	}
	if req.OrderReferenceID == "" {
		return nil, BadRequestError("order_reference_id required")
	}
	order, ok := s.Repo.Get(req.OrderReferenceID)
	if !ok {
		return nil, &OrderNotFoundError{ReferenceID: req.OrderReferenceID}
	}
	if req.OrderNumber == "" {
		req.OrderNumber = order.OrderNumber
	}

	session, err := s.Gateway.CreateCheckout(ctx, req)
	if err != nil {
		return nil, err
	}

	// Persist provider ids before the checkout URL reaches the customer: a
	// webhook cannot fire before the customer sees the URL, so this ordering
	// is the primary defense against the webhook-before-persist race. A
	// persistence failure is logged, not returned; the session already
	// exists and SyncOrderStatus can close the gap.
	if _, err := s.Repo.ApplyPayment(order.OrderID, domain.PaymentUpdate{
		Result: domain.PaymentResult{
			"providerOrderId": session.OrderID,
			"checkoutId":      session.CheckoutID,
			"status":          session.Status,
			"updateTime":      nowStamp(),
		},
	}); err != nil {
		logger.Error("checkout created but persisting provider ids failed", map[string]any{
			"orderId":         order.OrderID,
			"providerOrderId": session.OrderID,
			"error":           err.Error(),
		})
	}
	return session, nil
}

type WebhookResult struct {
	Order          *domain.Order
	EventType      string
	PreviousStatus string
	PreviousPaid   bool
	NewStatus      tamara.NormalizedStatus
}

func (s *PaymentService) ProcessWebhook(ctx context.Context, rawBody []byte, signatureOrToken string) (*WebhookResult, error) {
	if err := s.Verifier.Verify(rawBody, signatureOrToken); err != nil {
		return nil, err
	}
	var ev tamara.WebhookEvent
	if err := json.Unmarshal(rawBody, &ev); err != nil {
		return nil, BadRequestError("malformed webhook payload")
	}
	if ev.EventType == "" {
		return nil, BadRequestError("event_type required")
	}

	order, err := s.resolveOrder(ev)
	if err != nil {
		logger.Error("webhook references no known order", map[string]any{
			"eventType":        ev.EventType,
			"orderId":          ev.OrderID,
			"orderReferenceId": ev.OrderReferenceID,
			"orderNumber":      ev.OrderNumber,
		})
		return nil, err
	}

	var data map[string]any
	if len(ev.Data) > 0 {
		_ = json.Unmarshal(ev.Data, &data)
	}
	norm := tamara.MapEvent(ev.EventType, data)

	prevStatus := order.PaymentResult.Status()
	prevPaid := order.IsPaid

	// A redelivered approval that already progressed to authorised must not
	// regress the status; the state has converged, acknowledge and stop.
	if ev.EventType == tamara.EventOrderApproved {
		if _, authorized := order.PaymentResult["authorizedAmount"]; authorized || prevStatus == "authorised" {
			return &WebhookResult{
				Order:          order,
				EventType:      ev.EventType,
				PreviousStatus: prevStatus,
				PreviousPaid:   prevPaid,
				NewStatus:      norm,
			}, nil
		}
	}

	merge := domain.PaymentResult{
		"status":     norm.PaymentStatus,
		"eventType":  ev.EventType,
		"updateTime": nowStamp(),
	}
	if ev.OrderID != "" {
		merge["providerOrderId"] = ev.OrderID
	}
	if data != nil {
		merge["webhookData"] = data
	}
	updated, err := s.Repo.ApplyPayment(order.OrderID, domain.PaymentUpdate{
		Result:      merge,
		SetPaid:     &norm.IsPaid,
		ClearPaidAt: tamara.ClearsPaidAt(ev.EventType),
		Status:      norm.OrderStatus,
	})
	if err != nil {
		return nil, err
	}

	if ev.EventType == tamara.EventOrderApproved {
		updated = s.autoAuthorize(ctx, updated, prevStatus)
	}

	return &WebhookResult{
		Order:          updated,
		EventType:      ev.EventType,
		PreviousStatus: prevStatus,
		PreviousPaid:   prevPaid,
		NewStatus:      norm,
	}, nil
}

// autoAuthorize chains an authorization call after an approval. Best-effort:
// failures are logged and the webhook is still acknowledged, since a retry
// storm cannot fix a problem that needs manual intervention. A redelivered
// approval that already led to an authorization is skipped.
func (s *PaymentService) autoAuthorize(ctx context.Context, order *domain.Order, prevStatus string) *domain.Order {
	if prevStatus == "authorised" {
		return order
	}
	if _, ok := order.PaymentResult["authorizedAmount"]; ok {
		return order
	}
	pid := order.PaymentResult.ProviderOrderID()
	if pid == "" {
		logger.Error("auto-authorization skipped: no provider order id", map[string]any{"orderId": order.OrderID})
		return order
	}
	auth, err := s.Gateway.AuthorizeOrder(ctx, pid)
	if err != nil {
		logger.Error("auto-authorization failed", map[string]any{
			"orderId":         order.OrderID,
			"providerOrderId": pid,
			"error":           err.Error(),
		})
		return order
	}
	merge := domain.PaymentResult{
		"status":     auth.Status,
		"updateTime": nowStamp(),
	}
	if auth.AuthorizedAmount != nil {
		merge["authorizedAmount"] = auth.AuthorizedAmount.Amount
	}
	if auth.OrderExpiryTime != "" {
		merge["orderExpiryTime"] = auth.OrderExpiryTime
	}
	paid := true
	updated, err := s.Repo.ApplyPayment(order.OrderID, domain.PaymentUpdate{
		Result:  merge,
		SetPaid: &paid,
		Status:  domain.OrderConfirmed,
	})
	if err != nil {
		logger.Error("persisting authorization result failed", map[string]any{
			"orderId": order.OrderID,
			"error":   err.Error(),
		})
		return order
	}
	return updated
}

type SyncResult struct {
	Order        *domain.Order
	RemoteStatus string
}

// SyncOrderStatus polls the gateway and applies the result through the same
// mapper and merge path as the webhook flow. This closes the gap when a
// webhook was missed or arrived before the order carried provider ids.
func (s *PaymentService) SyncOrderStatus(ctx context.Context, orderID string) (*SyncResult, error) {
	order, ok := s.Repo.Get(orderID)
	if !ok {
		return nil, &OrderNotFoundError{ReferenceID: orderID}
	}
	pid := order.PaymentResult.ProviderOrderID()
	if pid == "" {
		return nil, &NotAPaymentOrderError{OrderID: orderID}
	}
	remote, err := s.Gateway.GetOrderStatus(ctx, pid)
	if err != nil {
		return nil, err
	}
	eventType := tamara.EventForStatus(remote.Status)
	norm := tamara.MapEvent(eventType, nil)
	updated, err := s.Repo.ApplyPayment(order.OrderID, domain.PaymentUpdate{
		Result: domain.PaymentResult{
			"status":     norm.PaymentStatus,
			"eventType":  eventType,
			"updateTime": nowStamp(),
		},
		SetPaid:     &norm.IsPaid,
		ClearPaidAt: tamara.ClearsPaidAt(eventType),
		Status:      norm.OrderStatus,
	})
	if err != nil {
		return nil, err
	}
	return &SyncResult{Order: updated, RemoteStatus: remote.Status}, nil
}

func (s *PaymentService) Authorize(ctx context.Context, orderID string) (*domain.Order, error) {
	order, pid, err := s.paymentOrder(orderID)
	if err != nil {
		return nil, err
	}
	auth, err := s.Gateway.AuthorizeOrder(ctx, pid)
	if err != nil {
		return nil, err
	}
	merge := domain.PaymentResult{
		"status":     auth.Status,
		"eventType":  tamara.EventOrderAuthorised,
		"updateTime": nowStamp(),
	}
	if auth.AuthorizedAmount != nil {
		merge["authorizedAmount"] = auth.AuthorizedAmount.Amount
	}
	if auth.OrderExpiryTime != "" {
		merge["orderExpiryTime"] = auth.OrderExpiryTime
	}
	paid := true
	return s.Repo.ApplyPayment(order.OrderID, domain.PaymentUpdate{
		Result:  merge,
		SetPaid: &paid,
		Status:  domain.OrderConfirmed,
	})
}

func (s *PaymentService) Capture(ctx context.Context, orderID string, req tamara.CaptureRequest) (*domain.Order, error) {
	order, pid, err := s.paymentOrder(orderID)
	if err != nil {
		return nil, err
	}
	if req.TotalAmount == nil {
		req.TotalAmount = &tamara.Amount{Amount: order.TotalPrice}
	}
	capture, err := s.Gateway.CapturePayment(ctx, pid, req)
	if err != nil {
		return nil, err
	}
	norm := tamara.MapEvent(tamara.EventOrderCaptured, nil)
	return s.Repo.ApplyPayment(order.OrderID, domain.PaymentUpdate{
		Result: domain.PaymentResult{
			"status":         norm.PaymentStatus,
			"eventType":      tamara.EventOrderCaptured,
			"capturedAmount": req.TotalAmount.Amount,
			"captureId":      capture.CaptureID,
			"updateTime":     nowStamp(),
		},
		SetPaid: &norm.IsPaid,
		Status:  norm.OrderStatus,
	})
}

func (s *PaymentService) Refund(ctx context.Context, orderID string, req tamara.RefundRequest) (*domain.Order, error) {
	order, pid, err := s.paymentOrder(orderID)
	if err != nil {
		return nil, err
	}
	if req.TotalAmount == nil {
		req.TotalAmount = &tamara.Amount{Amount: order.TotalPrice}
	}
	refund, err := s.Gateway.RefundPayment(ctx, pid, req)
	if err != nil {
		return nil, err
	}
	data := map[string]any{}
	if req.TotalAmount.Amount < order.TotalPrice {
		data["refund_amount"] = req.TotalAmount.Amount
	}
	norm := tamara.MapEvent(tamara.EventOrderRefunded, data)
	return s.Repo.ApplyPayment(order.OrderID, domain.PaymentUpdate{
		Result: domain.PaymentResult{
			"status":     norm.PaymentStatus,
			"eventType":  tamara.EventOrderRefunded,
			"refundId":   refund.RefundID,
			"updateTime": nowStamp(),
		},
		SetPaid: &norm.IsPaid,
		Status:  norm.OrderStatus,
	})
}

func (s *PaymentService) Cancel(ctx context.Context, orderID string, req tamara.CancelRequest) (*domain.Order, error) {
	order, pid, err := s.paymentOrder(orderID)
	if err != nil {
		return nil, err
	}
	cancellation, err := s.Gateway.CancelOrder(ctx, pid, req)
	if err != nil {
		return nil, err
	}
	norm := tamara.MapEvent(tamara.EventOrderCanceled, nil)
	return s.Repo.ApplyPayment(order.OrderID, domain.PaymentUpdate{
		Result: domain.PaymentResult{
			"status":     norm.PaymentStatus,
			"eventType":  tamara.EventOrderCanceled,
			"cancelId":   cancellation.CancelID,
			"updateTime": nowStamp(),
		},
		SetPaid:     &norm.IsPaid,
		ClearPaidAt: true,
		Status:      norm.OrderStatus,
	})
}

func (s *PaymentService) paymentOrder(orderID string) (*domain.Order, string, error) {
	order, ok := s.Repo.Get(orderID)
	if !ok {
		return nil, "", &OrderNotFoundError{ReferenceID: orderID}
	}
	pid := order.PaymentResult.ProviderOrderID()
	if pid == "" {
		return nil, "", &NotAPaymentOrderError{OrderID: orderID}
	}
	return order, pid, nil
}

// resolveOrder tries the three correlation keys in priority order: internal
// reference id, provider order id, business order number.
func (s *PaymentService) resolveOrder(ev tamara.WebhookEvent) (*domain.Order, error) {
	if ev.OrderReferenceID != "" {
		if o, ok := s.Repo.Get(ev.OrderReferenceID); ok {
			return o, nil
		}
	}
	if ev.OrderID != "" {
		if o, ok := s.Repo.GetByProviderOrderID(ev.OrderID); ok {
			return o, nil
		}
	}
	if ev.OrderNumber != "" {
		if o, ok := s.Repo.GetByOrderNumber(ev.OrderNumber); ok {
			return o, nil
		}
	}
	return nil, &OrderNotFoundError{
		ReferenceID:     ev.OrderReferenceID,
		ProviderOrderID: ev.OrderID,
		OrderNumber:     ev.OrderNumber,
	}
}

func nowStamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}
