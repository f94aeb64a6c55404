package http

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dmehra2102/medsupply-orders/internal/order/application"
	"github.com/dmehra2102/medsupply-orders/internal/order/domain"
	"github.com/dmehra2102/medsupply-orders/pkg/apperr"
	"github.com/dmehra2102/medsupply-orders/pkg/httpx"
	"github.com/dmehra2102/medsupply-orders/pkg/orderapi"
)

type Handler struct {
	log     *slog.Logger
	service *application.Service
	tracer  trace.Tracer
}

func NewHandler(log *slog.Logger, service *application.Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
		tracer:  otel.Tracer("order-http"),
	}
}

func (h *Handler) Register(r chi.Router) {
	r.Route(orderapi.OrdersPath, func(r chi.Router) {
		r.Post("/", h.createOrder)
		r.Get("/", h.listOrders)
		r.Get("/{id}", h.getOrder)
		r.Patch("/{id}/status", h.updateStatus)
		r.Delete("/{id}", h.deleteOrder)
	})
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "CreateOrder")
	defer span.End()

	var req orderapi.CreateOrderRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		h.fail(w, span, err)
		return
	}

	key := r.Header.Get(orderapi.IdempotencyKeyHeader)
	o, replayed, err := h.service.CreateOrder(ctx, req, key)
	if err != nil {
		h.fail(w, span, err)
		return
	}
	span.SetAttributes(
		attribute.Int64("order.id", o.ID),
		attribute.Bool("order.replayed", replayed),
	)

	status := http.StatusCreated
	if replayed {
		w.Header().Set(orderapi.ReplayedHeader, "true")
		status = http.StatusOK
	}
	w.Header().Set("Location", orderapi.OrdersPath+"/"+strconv.FormatInt(o.ID, 10))
	httpx.WriteJSON(w, status, ToResponse(o))
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	f := application.ListFilter{Status: domain.OrderStatus(r.URL.Query().Get("status"))}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			httpx.WriteError(w, h.log, apperr.NewValidation("limit", "must be a positive integer"))
			return
		}
		f.Limit = limit
	}
	orders, err := h.service.ListOrders(r.Context(), f)
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	out := make([]orderapi.Order, 0, len(orders))
	for _, o := range orders {
		out = append(out, ToResponse(o))
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	o, err := h.service.GetOrder(r.Context(), id)
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, ToResponse(o))
}

func (h *Handler) updateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	var req orderapi.UpdateStatusRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	o, err := h.service.UpdateStatus(r.Context(), id, req)
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, ToResponse(o))
}

func (h *Handler) deleteOrder(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	if err := h.service.DeleteOrder(r.Context(), id); err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) fail(w http.ResponseWriter, span trace.Span, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		span.RecordError(err)
		span.SetStatus(codes.Error, http.StatusText(status))
	}
	httpx.WriteErrorStatus(w, h.log, status, err)
}

// statusFor maps a vanished product to 422: the request was well formed but
// cannot be fulfilled against the current catalog.
func statusFor(err error) int {
	var pnf *domain.ProductNotFoundError
	if errors.As(err, &pnf) {
		return http.StatusUnprocessableEntity
	}
	return httpx.StatusFor(err)
}

func ToResponse(o domain.Order) orderapi.Order {
	out := orderapi.Order{
		ID:                      o.ID,
		CustomerID:              o.CustomerID,
		CustomerName:            o.CustomerName,
		DeliveryDate:            o.DeliveryDate.Format(orderapi.DeliveryDateLayout),
		DeliveryRoute:           o.DeliveryRoute,
		PreferredDeliveryMethod: string(o.PreferredDeliveryMethod),
		RequestStatus:           string(o.RequestStatus),
		Subtotal:                o.Subtotal,
		VATAmount:               o.VATAmount,
		TotalAmount:             o.TotalAmount,
		Status:                  string(o.Status),
		CreatedAt:               o.CreatedAt,
	}
	for _, it := range o.Items {
		out.Items = append(out.Items, orderapi.OrderItem{
			ID:          it.ID,
			OrderID:     it.OrderID,
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			Subtotal:    it.Subtotal,
		})
	}
	return out
}
