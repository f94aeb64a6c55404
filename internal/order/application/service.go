package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/dmehra2102/medsupply-orders/internal/order/domain"
	"github.com/dmehra2102/medsupply-orders/pkg/apperr"
	"github.com/dmehra2102/medsupply-orders/pkg/orderapi"
	"github.com/dmehra2102/medsupply-orders/pkg/validation"
)

const maxListLimit = 500

type Service struct {
	log      *slog.Logger
	repo     OrderRepository
	idem     IdempotencyCache
	validate *validator.Validate
}

// NewService wires the order store. idem may be nil; the repository's unique
// idempotency key still deduplicates replays.
func NewService(log *slog.Logger, repo OrderRepository, idem IdempotencyCache) *Service {
	return &Service{log: log, repo: repo, idem: idem, validate: validation.New()}
}

// CreateOrder validates the request and creates the order in one transaction.
// replayed is true when key matched an order created earlier; nothing is written
// in that case.
func (s *Service) CreateOrder(ctx context.Context, req orderapi.CreateOrderRequest, key string) (o domain.Order, replayed bool, err error) {
	if key == "" {
		key = strings.TrimSpace(req.IdempotencyKey)
	}
	req.IdempotencyKey = key

	n, err := s.toNewOrder(req)
	if err != nil {
		return domain.Order{}, false, err
	}

	if key != "" {
		if o, ok := s.lookupReplay(ctx, key); ok {
			return o, true, nil
		}
	}

	o, replayed, err = s.repo.Create(ctx, n)
	if err != nil {
		var pnf *domain.ProductNotFoundError
		if errors.As(err, &pnf) {
			s.log.Warn("order rejected", "reason", "product_not_found", "product", pnf.Name, "product_id", pnf.ID)
		}
		return domain.Order{}, false, err
	}

	if key != "" && s.idem != nil {
		if err := s.idem.Remember(ctx, key, strconv.FormatInt(o.ID, 10)); err != nil {
			s.log.Warn("idempotency remember failed", "order_id", o.ID, "err", err)
		}
	}
	if replayed {
		s.log.Info("order replay accepted", "order_id", o.ID, "idempotency_key", key)
	} else {
		s.log.Info("order created",
			"order_id", o.ID,
			"customer_id", o.CustomerID,
			"items", len(o.Items),
			"subtotal", o.Subtotal.StringFixed(2),
			"vat", o.VATAmount.StringFixed(2),
			"total", o.TotalAmount.StringFixed(2),
		)
	}
	return o, replayed, nil
}

func (s *Service) lookupReplay(ctx context.Context, key string) (domain.Order, bool) {
	if s.idem == nil {
		return domain.Order{}, false
	}
	raw, ok, err := s.idem.Lookup(ctx, key)
	if err != nil {
		s.log.Warn("idempotency lookup failed", "err", err)
		return domain.Order{}, false
	}
	if !ok {
		return domain.Order{}, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return domain.Order{}, false
	}
	o, err := s.repo.Get(ctx, id)
	if err != nil {
		// Deleted since; fall through to the repository check.
		return domain.Order{}, false
	}
	return o, true
}

func (s *Service) GetOrder(ctx context.Context, id int64) (domain.Order, error) {
	if id <= 0 {
		return domain.Order{}, apperr.NewValidation("id", "must be positive")
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) ListOrders(ctx context.Context, f ListFilter) ([]domain.Order, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, apperr.NewValidation("status", fmt.Sprintf("unknown status %q", f.Status))
	}
	if f.Limit <= 0 || f.Limit > maxListLimit {
		f.Limit = maxListLimit
	}
	return s.repo.List(ctx, f)
}

func (s *Service) UpdateStatus(ctx context.Context, id int64, req orderapi.UpdateStatusRequest) (domain.Order, error) {
	if id <= 0 {
		return domain.Order{}, apperr.NewValidation("id", "must be positive")
	}
	if err := validation.Struct(s.validate, req); err != nil {
		return domain.Order{}, err
	}
	o, err := s.repo.UpdateStatus(ctx, id, domain.OrderStatus(req.Status))
	if err != nil {
		return domain.Order{}, err
	}
	s.log.Info("order status updated", "order_id", id, "status", o.Status)
	return o, nil
}

func (s *Service) DeleteOrder(ctx context.Context, id int64) error {
	if id <= 0 {
		return apperr.NewValidation("id", "must be positive")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.log.Info("order deleted", "order_id", id)
	return nil
}

func (s *Service) toNewOrder(req orderapi.CreateOrderRequest) (domain.NewOrder, error) {
	if err := validation.Struct(s.validate, req); err != nil {
		return domain.NewOrder{}, err
	}
	date, err := time.Parse(orderapi.DeliveryDateLayout, req.OrderData.DeliveryDate)
	if err != nil {
		return domain.NewOrder{}, apperr.NewValidation("orderData.delivery_date", "must be a date formatted as 2006-01-02")
	}

	items := make([]domain.ItemRequest, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, domain.ItemRequest{
			ProductID:   it.ProductID,
			ProductName: strings.TrimSpace(it.ProductName),
			Quantity:    it.Quantity,
		})
	}

	return domain.NewOrder{
		Customer: domain.Customer{
			Name:            strings.TrimSpace(req.CustomerData.Name),
			Email:           strings.TrimSpace(req.CustomerData.Email),
			Phone:           strings.TrimSpace(req.CustomerData.Phone),
			DeliveryAddress: strings.TrimSpace(req.CustomerData.DeliveryAddress),
		},
		DeliveryDate:            date,
		DeliveryRoute:           strings.TrimSpace(req.OrderData.DeliveryRoute),
		PreferredDeliveryMethod: domain.DeliveryMethod(req.OrderData.PreferredDeliveryMethod),
		RequestStatus:           domain.RequestStatus(req.OrderData.RequestStatus),
		IdempotencyKey:          req.IdempotencyKey,
		Items:                   items,
	}, nil
}
