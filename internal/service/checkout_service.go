package service

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"fsanano/pharmacy-storefront/internal/model"
)

var (
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrEmptyCart        = errors.New("cart is empty")
)

type OrderAPI interface {
	CreateOrder(ctx context.Context, items []model.OrderLine) (*model.Order, error)
}

type CheckoutService struct {
	cart    *CartStore
	session *SessionStore
	orders  OrderAPI
	log     logrus.FieldLogger
}

func NewCheckoutService(cart *CartStore, session *SessionStore, orders OrderAPI, log logrus.FieldLogger) *CheckoutService {
	return &CheckoutService{
		cart:    cart,
		session: session,
		orders:  orders,
		log:     log.WithField("component", "checkout"),
	}
}

// Checkout places an order for the current cart and empties the cart once
// the order is accepted. On failure the cart is left as it was.
func (s *CheckoutService) Checkout(ctx context.Context) (*model.Order, error) {
	if !s.session.IsAuthenticated() {
		return nil, ErrNotAuthenticated
	}

	items := s.cart.Items()
	if len(items) == 0 {
		return nil, ErrEmptyCart
	}

	lines := make([]model.OrderLine, 0, len(items))
	for _, it := range items {
		lines = append(lines, model.OrderLine{MedicineID: it.Medicine.ID, Quantity: it.Quantity})
	}

	order, err := s.orders.CreateOrder(ctx, lines)
	if err != nil {
		return nil, err
	}

	s.cart.ClearCart(ctx)
	s.log.WithField("order_id", order.ID).WithField("lines", len(lines)).Info("order placed")
	return order, nil
}
