package usecase

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"commerce-backend/internal/domain"
)

// OrderService is the minimal order intake surface the payment core sits
// behind: create an order pending payment, fetch it back.
type OrderService struct {
	Repo OrderRepo
}

type CreateOrderRequest struct {
	UserID        string               `json:"userId"`
	CustomerEmail string               `json:"customerEmail"`
	Items         []domain.OrderItem   `json:"items"`
	TotalPrice    float64              `json:"totalPrice"`
	ShippingPrice float64              `json:"shippingPrice"`
	TaxPrice      float64              `json:"taxPrice"`
	PaymentMethod domain.PaymentMethod `json:"paymentMethod"`
}

func (s *OrderService) Create(req CreateOrderRequest) (*domain.Order, error) {
	missing := make([]string, 0, 2)
	if len(req.Items) == 0 {
		missing = append(missing, "items")
	}
	if req.TotalPrice <= 0 {
		missing = append(missing, "totalPrice")
	}
	if len(missing) > 0 {
		return nil, &ValidationError{Missing: missing}
	}
	if req.PaymentMethod == "" {
		req.PaymentMethod = domain.PayCashOnDelivery
	}
	id := uuid.NewString()
	now := time.Now().UTC()
	o := &domain.Order{
		OrderID:       id,
		OrderNumber:   orderNumber(id),
		UserID:        req.UserID,
		CustomerEmail: req.CustomerEmail,
		Items:         req.Items,
		TotalPrice:    req.TotalPrice,
		ShippingPrice: req.ShippingPrice,
		TaxPrice:      req.TaxPrice,
		PaymentMethod: req.PaymentMethod,
		PaymentResult: domain.PaymentResult{},
		Status:        domain.OrderPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.Repo.Put(o); err != nil {
		return nil, err
	}
	return o, nil
}

func (s *OrderService) Get(id string) (*domain.Order, error) {
	o, ok := s.Repo.Get(id)
	if !ok {
		return nil, &OrderNotFoundError{ReferenceID: id}
	}
	return o, nil
}

func orderNumber(id string) string {
	return "SO-" + strings.ToUpper(strings.ReplaceAll(id, "-", "")[:10])
}
