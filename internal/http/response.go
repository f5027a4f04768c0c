package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/fjod/storefront/internal/order"
	"github.com/fjod/storefront/internal/repository"
	"github.com/fjod/storefront/pkg/circuitbreaker"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

// respondStoreError maps store and repository errors onto HTTP statuses.
// Order matters: a not-found wrapped in ErrUpdateStatus is still a 404.
func respondStoreError(w http.ResponseWriter, err error) {
	var (
		httpStatus int
		code       string
	)

	switch {
	case errors.Is(err, order.ErrAuthRequired),
		errors.Is(err, repository.ErrSessionNotFound):
		httpStatus, code = http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, repository.ErrInvalidCredentials):
		httpStatus, code = http.StatusUnauthorized, "invalid_credentials"
	case errors.Is(err, order.ErrInvalidStatus):
		httpStatus, code = http.StatusBadRequest, "invalid_status"
	case errors.Is(err, repository.ErrWeakPassword):
		httpStatus, code = http.StatusBadRequest, "weak_password"
	case errors.Is(err, repository.ErrOrderNotFound),
		errors.Is(err, repository.ErrProductNotFound),
		errors.Is(err, repository.ErrUserNotFound):
		httpStatus, code = http.StatusNotFound, "not_found"
	case errors.Is(err, repository.ErrEmailTaken):
		httpStatus, code = http.StatusConflict, "email_taken"
	case errors.Is(err, circuitbreaker.ErrOpenState),
		errors.Is(err, circuitbreaker.ErrTooManyRequests):
		httpStatus, code = http.StatusServiceUnavailable, "unavailable"
	case errors.Is(err, context.DeadlineExceeded):
		httpStatus, code = http.StatusGatewayTimeout, "timeout"
	case errors.Is(err, order.ErrCreateOrder),
		errors.Is(err, order.ErrFetchOrder),
		errors.Is(err, order.ErrFetchOrders),
		errors.Is(err, order.ErrUpdateStatus):
		httpStatus, code = http.StatusBadGateway, "upstream_error"
	default:
		httpStatus, code = http.StatusInternalServerError, "internal_error"
	}

	respondError(w, httpStatus, code, err.Error())
}
