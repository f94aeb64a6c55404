// Package memstore is an in-process implementation of the catalog and order
// repositories. It backs STORAGE=memory deployments and the service tests.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	catalogapp "github.com/dmehra2102/medsupply-orders/internal/catalog/application"
	catalog "github.com/dmehra2102/medsupply-orders/internal/catalog/domain"
	orderapp "github.com/dmehra2102/medsupply-orders/internal/order/application"
	"github.com/dmehra2102/medsupply-orders/internal/order/domain"
	"github.com/dmehra2102/medsupply-orders/pkg/apperr"
)

// Store keeps every table behind one lock. Order creation stages all rows first
// and applies them only once nothing can fail, which gives the same
// all-or-nothing outcome as a database transaction.
type Store struct {
	mu  sync.RWMutex
	now func() time.Time

	nextProductID  int64
	nextCustomerID int64
	nextOrderID    int64
	nextItemID     int64

	products    map[int64]catalog.Product
	customers   map[int64]domain.Customer
	orders      map[int64]domain.Order
	idempotency map[string]int64
}

var (
	_ catalogapp.ProductRepository = (*Store)(nil)
	_ catalogapp.StockRepository   = (*Store)(nil)
	_ orderapp.OrderRepository     = (*Store)(nil)
)

func New() *Store {
	return &Store{
		now:            func() time.Time { return time.Now().UTC() },
		nextProductID:  1,
		nextCustomerID: 1,
		nextOrderID:    1,
		nextItemID:     1,
		products:       make(map[int64]catalog.Product),
		customers:      make(map[int64]domain.Customer),
		orders:         make(map[int64]domain.Order),
		idempotency:    make(map[string]int64),
	}
}

// Counts reports row counts per table.
func (s *Store) Counts() (customers, orders, items int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, o := range s.orders {
		items += len(o.Items)
	}
	return len(s.customers), len(s.orders), items
}

func (s *Store) CreateProduct(_ context.Context, p catalog.Product) (catalog.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.productByName(p.Name); taken {
		return catalog.Product{}, duplicateName(p.Name)
	}
	now := s.now()
	p.ID = s.nextProductID
	s.nextProductID++
	p.CreatedAt, p.UpdatedAt = now, now
	s.products[p.ID] = p
	return p, nil
}

func (s *Store) GetProduct(_ context.Context, id int64) (catalog.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.products[id]
	if !ok {
		return catalog.Product{}, catalog.ErrProductNotFound
	}
	return p, nil
}

func (s *Store) UpdateProduct(_ context.Context, p catalog.Product) (catalog.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.products[p.ID]
	if !ok {
		return catalog.Product{}, catalog.ErrProductNotFound
	}
	if other, taken := s.productByName(p.Name); taken && other.ID != p.ID {
		return catalog.Product{}, duplicateName(p.Name)
	}
	p.CreatedAt = cur.CreatedAt
	p.UpdatedAt = s.now()
	s.products[p.ID] = p
	return p, nil
}

func (s *Store) DeleteProduct(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[id]; !ok {
		return catalog.ErrProductNotFound
	}
	delete(s.products, id)
	return nil
}

func (s *Store) ListProducts(_ context.Context) ([]catalog.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]catalog.Product, 0, len(s.products))
	for _, p := range s.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) ApplyStockMovements(_ context.Context, movements []catalog.StockMovement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range movements {
		p, ok := s.products[m.ProductID]
		if !ok {
			continue
		}
		p.StockQuantity = max(p.StockQuantity-m.Quantity, 0)
		p.UpdatedAt = s.now()
		s.products[p.ID] = p
	}
	return nil
}

func (s *Store) Create(_ context.Context, n domain.NewOrder) (domain.Order, bool, error) {
	if err := n.Validate(); err != nil {
		return domain.Order{}, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if n.IdempotencyKey != "" {
		if id, ok := s.idempotency[n.IdempotencyKey]; ok {
			return s.withCustomer(s.orders[id]), true, nil
		}
	}

	customer, isNew := s.resolveCustomer(n.Customer)
	o := n.Order(customer.ID)
	o.ID = s.nextOrderID
	for _, req := range n.Items {
		p, ok := s.lookupProduct(req)
		if !ok {
			return domain.Order{}, false, &domain.ProductNotFoundError{ID: req.ProductID, Name: req.ProductName}
		}
		o.AddItem(p, req.Quantity)
	}
	o.Finalize()
	if err := o.CheckLimits(); err != nil {
		return domain.Order{}, false, err
	}
	if err := o.Verify(); err != nil {
		return domain.Order{}, false, fmt.Errorf("order totals: %w", err)
	}

	// Nothing below can fail.
	now := s.now()
	if isNew {
		customer.CreatedAt = now
		s.customers[customer.ID] = customer
		s.nextCustomerID++
	}
	s.nextOrderID++
	o.CreatedAt = now
	for i := range o.Items {
		o.Items[i].ID = s.nextItemID
		o.Items[i].OrderID = o.ID
		s.nextItemID++
	}
	s.orders[o.ID] = o
	if n.IdempotencyKey != "" {
		s.idempotency[n.IdempotencyKey] = o.ID
	}
	return s.withCustomer(o), false, nil
}

func (s *Store) Get(_ context.Context, id int64) (domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[id]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return s.withCustomer(o), nil
}

func (s *Store) List(_ context.Context, f orderapp.ListFilter) ([]domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Order, 0, len(s.orders))
	for _, o := range s.orders {
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		o = s.withCustomer(o)
		o.Items = nil
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *Store) UpdateStatus(_ context.Context, id int64, status domain.OrderStatus) (domain.Order, error) {
	if !status.Valid() {
		return domain.Order{}, apperr.NewValidation("status", fmt.Sprintf("unknown status %q", status))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	o.Status = status
	s.orders[id] = o
	return s.withCustomer(o), nil
}

func (s *Store) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return domain.ErrOrderNotFound
	}
	delete(s.orders, id)
	if o.IdempotencyKey != "" {
		delete(s.idempotency, o.IdempotencyKey)
	}
	return nil
}

func (s *Store) resolveCustomer(c domain.Customer) (domain.Customer, bool) {
	if key := c.EmailKey(); key != "" {
		for _, existing := range s.customers {
			if existing.EmailKey() == key {
				return existing, false
			}
		}
	}
	c.ID = s.nextCustomerID
	return c, true
}

func (s *Store) lookupProduct(req domain.ItemRequest) (catalog.Product, bool) {
	if req.ProductID > 0 {
		p, ok := s.products[req.ProductID]
		return p, ok
	}
	return s.productByName(req.ProductName)
}

func (s *Store) productByName(name string) (catalog.Product, bool) {
	for _, p := range s.products {
		if p.Name == name {
			return p, true
		}
	}
	return catalog.Product{}, false
}

// withCustomer returns a copy safe to hand out: items are cloned so callers
// cannot reach into the stored order.
func (s *Store) withCustomer(o domain.Order) domain.Order {
	if c, ok := s.customers[o.CustomerID]; ok {
		o.CustomerName = c.Name
	}
	o.Items = append([]domain.OrderItem(nil), o.Items...)
	return o
}

func duplicateName(name string) error {
	return &apperr.ConstraintError{
		Constraint: "products_name_key",
		Message:    fmt.Sprintf("product %q already exists", name),
	}
}
