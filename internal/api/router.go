// Package api assembles the order service's HTTP surface.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	cataloghttp "github.com/dmehra2102/medsupply-orders/internal/catalog/infrastructure/http"
	orderhttp "github.com/dmehra2102/medsupply-orders/internal/order/infrastructure/http"
	"github.com/dmehra2102/medsupply-orders/pkg/httpx"
	"github.com/dmehra2102/medsupply-orders/pkg/orderapi"
	"github.com/dmehra2102/medsupply-orders/pkg/tracing"
)

// HealthCheck reports whether the backing store can serve requests.
type HealthCheck func(ctx context.Context) error

func NewRouter(log *slog.Logger, orders *orderhttp.Handler, products *cataloghttp.Handler, health HealthCheck) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(log))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get(orderapi.HealthPath, func(w http.ResponseWriter, r *http.Request) {
		if health != nil {
			if err := health(r.Context()); err != nil {
				log.Warn("health check failed", "err", err)
				httpx.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	orders.Register(r)
	products.Register(r)

	return tracing.Handler(r, "order-service")
}

func requestLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			if r.URL.Path == orderapi.HealthPath {
				return
			}
			log.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}
