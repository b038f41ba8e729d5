package main

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/nexacart/order-events/resilience/health"
)

type handler struct {
	svc    *Service
	health *health.Handler
	logger *slog.Logger
}

func NewHandler(svc *Service, h *health.Handler, logger *slog.Logger) *handler {
	return &handler{svc: svc, health: h, logger: logger}
}

func (h *handler) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /orders", h.handleCreateOrder)
	mux.HandleFunc("POST /orders/{id}/cancel", h.handleCancelOrder)
	mux.HandleFunc("GET /health", h.health.Live)
	mux.HandleFunc("GET /ready", h.health.Ready)
}

func correlationID(r *http.Request) string {
	if v := r.Header.Get("x-correlation-id"); v != "" {
		return v
	}
	return uuid.NewString()
}

func (h *handler) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	if !h.health.IsReady(r.Context()) {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "not ready"})
		return
	}

	var req CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	idempotencyKey := r.Header.Get("Idempotency-Key")
	corrID := correlationID(r)

	result, err := h.svc.CreateOrder(r.Context(), req, idempotencyKey, corrID)
	if err != nil {
		var validationErr *ErrValidation
		if errors.As(err, &validationErr) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": validationErr.Error()})
			return
		}
		var envelopeErr *ErrEnvelopeInvalid
		if errors.As(err, &envelopeErr) {
			h.logger.Error("envelope validation failed on create", slog.Any("error", err))
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
			return
		}
		h.logger.Error("create order failed", slog.Any("error", err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	if result.Idempotent {
		writeJSON(w, http.StatusOK, map[string]any{
			"orderId":    result.Order.OrderID,
			"status":     result.Order.Status,
			"idempotent": true,
		})
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"orderId": result.Order.OrderID,
		"status":  result.Order.Status,
	})
}

func (h *handler) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	orderID := r.PathValue("id")

	var req CancelOrderRequest
	_ = json.NewDecoder(r.Body).Decode(&req)

	corrID := correlationID(r)
	if err := h.svc.CancelOrder(r.Context(), orderID, req.Reason, corrID); err != nil {
		h.logger.Error("cancel order failed", slog.String("order_id", orderID), slog.Any("error", err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"orderId": orderID,
		"status":  string(StatusCancelled),
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
