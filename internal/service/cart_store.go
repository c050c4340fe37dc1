package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"fsanano/pharmacy-storefront/internal/metrics"
	"fsanano/pharmacy-storefront/internal/model"
	"fsanano/pharmacy-storefront/internal/repository"
)

const cartStorageKey = "cart"

var (
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidQuantity   = errors.New("quantity must be greater than 0")
)

// StockError is returned when a cart mutation would exceed a medicine's stock.
// It matches ErrInsufficientStock with errors.Is.
type StockError struct {
	MedicineID string
	Requested  int
	Available  int
}

func (e *StockError) Error() string {
	return fmt.Sprintf("insufficient stock for medicine %s: requested %d, available %d", e.MedicineID, e.Requested, e.Available)
}

func (e *StockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

// CartStore holds the cart line items. Every successful mutation writes the
// whole cart to storage; a rejected mutation leaves it untouched.
type CartStore struct {
	storage repository.Storage
	log     logrus.FieldLogger

	mu    sync.RWMutex
	items []model.CartItem
}

// NewCartStore adopts the stored snapshot if there is a valid one and
// otherwise starts empty.
func NewCartStore(ctx context.Context, storage repository.Storage, log logrus.FieldLogger) *CartStore {
	s := &CartStore{
		storage: storage,
		log:     log.WithField("component", "cart"),
	}
	s.items = s.load(ctx)
	return s
}

func (s *CartStore) load(ctx context.Context) []model.CartItem {
	raw, ok, err := s.storage.Get(ctx, cartStorageKey)
	if err != nil {
		s.log.WithError(err).Warn("failed to read cart snapshot, starting empty")
		return nil
	}
	if !ok {
		return nil
	}

	var items []model.CartItem
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		s.log.WithError(err).Warn("discarding malformed cart snapshot")
		return nil
	}

	seen := make(map[string]bool, len(items))
	for _, it := range items {
		if it.Medicine.ID == "" || it.Quantity <= 0 || seen[it.Medicine.ID] {
			s.log.Warn("discarding inconsistent cart snapshot")
			return nil
		}
		seen[it.Medicine.ID] = true
	}
	return items
}

// persist must be called with s.mu held.
func (s *CartStore) persist(ctx context.Context) {
	items := s.items
	if items == nil {
		items = []model.CartItem{}
	}
	b, err := json.Marshal(items)
	if err == nil {
		err = s.storage.Set(ctx, cartStorageKey, string(b))
	}
	if err != nil {
		// The in-memory cart stays authoritative; the next mutation retries the write.
		s.log.WithError(err).Error("failed to persist cart")
	}
}

func (s *CartStore) indexOf(medicineID string) int {
	for i := range s.items {
		if s.items[i].Medicine.ID == medicineID {
			return i
		}
	}
	return -1
}

// AddItem puts quantity units of medicine in the cart, merging with an
// existing line. The resulting line quantity may not exceed medicine.Stock.
func (s *CartStore) AddItem(ctx context.Context, medicine model.Medicine, quantity int) (err error) {
	defer func() { metrics.CartMutation("add", err) }()

	if quantity <= 0 {
		return ErrInvalidQuantity
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if i := s.indexOf(medicine.ID); i >= 0 {
		newQuantity := s.items[i].Quantity + quantity
		if newQuantity > medicine.Stock {
			return &StockError{MedicineID: medicine.ID, Requested: newQuantity, Available: medicine.Stock}
		}
		s.items[i].Quantity = newQuantity
	} else {
		if quantity > medicine.Stock {
			return &StockError{MedicineID: medicine.ID, Requested: quantity, Available: medicine.Stock}
		}
		s.items = append(s.items, model.CartItem{Medicine: medicine, Quantity: quantity})
	}

	s.persist(ctx)
	return nil
}

// AddOne is AddItem with a quantity of one.
func (s *CartStore) AddOne(ctx context.Context, medicine model.Medicine) error {
	return s.AddItem(ctx, medicine, 1)
}

// RemoveItem drops the line for medicineID. Missing lines are ignored.
func (s *CartStore) RemoveItem(ctx context.Context, medicineID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(medicineID)
	if i < 0 {
		return
	}
	s.items = append(s.items[:i:i], s.items[i+1:]...)
	s.persist(ctx)
	metrics.CartMutation("remove", nil)
}

// UpdateQuantity sets the quantity of an existing line, checked against the
// stock recorded when the medicine was added. Missing lines are ignored.
func (s *CartStore) UpdateQuantity(ctx context.Context, medicineID string, quantity int) (err error) {
	defer func() { metrics.CartMutation("update", err) }()

	if quantity <= 0 {
		return ErrInvalidQuantity
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(medicineID)
	if i < 0 {
		return nil
	}
	if stock := s.items[i].Medicine.Stock; quantity > stock {
		return &StockError{MedicineID: medicineID, Requested: quantity, Available: stock}
	}
	s.items[i].Quantity = quantity

	s.persist(ctx)
	return nil
}

func (s *CartStore) ClearCart(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = nil
	s.persist(ctx)
	metrics.CartMutation("clear", nil)
}

func (s *CartStore) GetItemQuantity(medicineID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if i := s.indexOf(medicineID); i >= 0 {
		return s.items[i].Quantity
	}
	return 0
}

// Items returns a copy of the cart lines in insertion order.
func (s *CartStore) Items() []model.CartItem {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.CartItem, len(s.items))
	copy(out, s.items)
	return out
}

func (s *CartStore) TotalItems() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := 0
	for _, it := range s.items {
		total += it.Quantity
	}
	return total
}

func (s *CartStore) TotalAmount() decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := decimal.Zero
	for _, it := range s.items {
		total = total.Add(it.Medicine.Price.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return total
}

func (s *CartStore) IsEmpty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items) == 0
}
