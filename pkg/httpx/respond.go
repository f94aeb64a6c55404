// Package httpx holds the JSON response helpers shared by the HTTP handlers.
package httpx

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/dmehra2102/medsupply-orders/pkg/apperr"
	"github.com/dmehra2102/medsupply-orders/pkg/orderapi"
)

const maxBodyBytes = 1 << 20

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError responds with {error} and a status derived from the error taxonomy.
// Unclassified errors are logged and reported without detail.
func WriteError(w http.ResponseWriter, log *slog.Logger, err error) {
	WriteErrorStatus(w, log, StatusFor(err), err)
}

func WriteErrorStatus(w http.ResponseWriter, log *slog.Logger, status int, err error) {
	msg := err.Error()
	switch {
	case status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable:
		log.Error("request failed", "status", status, "err", err)
		msg = "internal error"
	case status == http.StatusServiceUnavailable:
		log.Warn("request failed", "status", status, "err", err)
		msg = "service temporarily unavailable"
	}
	WriteJSON(w, status, orderapi.ErrorResponse{Error: msg})
}

func StatusFor(err error) int {
	switch {
	case apperr.IsValidation(err):
		return http.StatusBadRequest
	case apperr.IsNotFound(err):
		return http.StatusNotFound
	case apperr.IsConstraint(err):
		return http.StatusConflict
	case apperr.IsTransient(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// DecodeJSON reads a size-limited JSON body into v.
func DecodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return apperr.NewValidation("", "request body is empty")
		}
		return apperr.NewValidation("", "invalid json: "+err.Error())
	}
	return nil
}

func PathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.NewValidation(name, "must be a positive integer")
	}
	return id, nil
}
