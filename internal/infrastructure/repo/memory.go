package repo

import (
	"errors"
	"sync"
	"time"

	"commerce-backend/internal/domain"
)

// MemoryOrderRepo mirrors the Postgres merge semantics under a mutex. Used
// by tests and when no database is configured.
type MemoryOrderRepo struct {
	mu sync.RWMutex
	m  map[string]*domain.Order
}

func NewMemoryOrderRepo() *MemoryOrderRepo {
	return &MemoryOrderRepo{m: make(map[string]*domain.Order)}
}

func (r *MemoryOrderRepo) Put(o *domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.m[o.OrderID] = clone(o)
	return nil
}

func (r *MemoryOrderRepo) Get(id string) (*domain.Order, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.m[id]
	if !ok {
		return nil, false
	}
	return clone(o), true
}

func (r *MemoryOrderRepo) GetByProviderOrderID(providerOrderID string) (*domain.Order, bool) {
	if providerOrderID == "" {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, o := range r.m {
		if o.PaymentResult.ProviderOrderID() == providerOrderID {
			return clone(o), true
		}
	}
	return nil, false
}

func (r *MemoryOrderRepo) GetByOrderNumber(orderNumber string) (*domain.Order, bool) {
	if orderNumber == "" {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, o := range r.m {
		if o.OrderNumber == orderNumber {
			return clone(o), true
		}
	}
	return nil, false
}

func (r *MemoryOrderRepo) ApplyPayment(id string, upd domain.PaymentUpdate) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.m[id]
	if !ok {
		return nil, errors.New("order not found: " + id)
	}
	if o.PaymentResult == nil {
		o.PaymentResult = domain.PaymentResult{}
	}
	for k, v := range upd.Result {
		o.PaymentResult[k] = v
	}
	if upd.SetPaid != nil {
		if *upd.SetPaid && !o.IsPaid && o.PaidAt == nil {
			now := time.Now().UTC()
			o.PaidAt = &now
		}
		o.IsPaid = *upd.SetPaid
	}
	if upd.ClearPaidAt {
		o.PaidAt = nil
	}
	if upd.Status != "" {
		o.Status = upd.Status
	}
	o.UpdatedAt = time.Now().UTC()
	return clone(o), nil
}

func clone(o *domain.Order) *domain.Order {
	cp := *o
	if o.PaymentResult != nil {
		cp.PaymentResult = make(domain.PaymentResult, len(o.PaymentResult))
		for k, v := range o.PaymentResult {
			cp.PaymentResult[k] = v
		}
	}
	if o.Items != nil {
		cp.Items = append([]domain.OrderItem(nil), o.Items...)
	}
	if o.PaidAt != nil {
		t := *o.PaidAt
		cp.PaidAt = &t
	}
	return &cp
}
