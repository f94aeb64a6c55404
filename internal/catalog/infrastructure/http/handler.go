package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/dmehra2102/medsupply-orders/internal/catalog/application"
	"github.com/dmehra2102/medsupply-orders/internal/catalog/domain"
	"github.com/dmehra2102/medsupply-orders/pkg/httpx"
	"github.com/dmehra2102/medsupply-orders/pkg/orderapi"
	"github.com/dmehra2102/medsupply-orders/pkg/validation"
)

type Handler struct {
	log      *slog.Logger
	service  *application.Service
	validate *validator.Validate
}

func NewHandler(log *slog.Logger, service *application.Service) *Handler {
	return &Handler{log: log, service: service, validate: validation.New()}
}

func (h *Handler) Register(r chi.Router) {
	r.Route(orderapi.ProductsPath, func(r chi.Router) {
		r.Get("/", h.listProducts)
		r.Post("/", h.createProduct)
		r.Get("/{id}", h.getProduct)
		r.Put("/{id}", h.updateProduct)
		r.Delete("/{id}", h.deleteProduct)
	})
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.service.List(r.Context())
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	out := make([]orderapi.Product, 0, len(products))
	for _, p := range products {
		out = append(out, toResponse(p))
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	p, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toResponse(p))
}

func (h *Handler) createProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.decode(w, r)
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	created, err := h.service.Create(r.Context(), p)
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, toResponse(created))
}

func (h *Handler) updateProduct(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	p, err := h.decode(w, r)
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	p.ID = id
	updated, err := h.service.Update(r.Context(), p)
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toResponse(updated))
}

func (h *Handler) deleteProduct(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request) (domain.Product, error) {
	var req orderapi.ProductRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		return domain.Product{}, err
	}
	if err := validation.Struct(h.validate, req); err != nil {
		return domain.Product{}, err
	}
	return domain.Product{
		Name:          req.Name,
		Description:   req.Description,
		Price:         req.Price,
		Unit:          req.Unit,
		StockQuantity: req.StockQuantity,
	}, nil
}

func toResponse(p domain.Product) orderapi.Product {
	return orderapi.Product{
		ID:            p.ID,
		Name:          p.Name,
		Description:   p.Description,
		Price:         p.Price,
		Unit:          p.Unit,
		StockQuantity: p.StockQuantity,
	}
}
