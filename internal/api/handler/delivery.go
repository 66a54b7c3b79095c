// internal/api/handler/delivery.go
package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/tradingpro/pulse/internal/api/middleware"
	"github.com/tradingpro/pulse/internal/api/response"
	"github.com/tradingpro/pulse/internal/core"
	"github.com/tradingpro/pulse/internal/storage/delivery"
)

// DeliveryStatusHandler accepts signed delivery-status callbacks from
// subscribers acknowledging or rejecting a webhook they received.
type DeliveryStatusHandler struct {
	deliveries delivery.Store
}

// NewDeliveryStatusHandler creates a new delivery status handler.
func NewDeliveryStatusHandler(deliveries delivery.Store) *DeliveryStatusHandler {
	return &DeliveryStatusHandler{deliveries: deliveries}
}

type deliveryStatusRequest struct {
	SignalID     string `json:"signal_id"`
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
}

// ServeHTTP handles POST status updates. The caller must have passed
// webhook signature verification.
func (h *DeliveryStatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		response.Error(w, http.StatusMethodNotAllowed,
			core.WrapError(core.ErrValidation, fmt.Errorf("method %s not allowed", r.Method)))
		return
	}

	sub, ok := middleware.SubscriberFrom(r.Context())
	if !ok {
		response.Error(w, http.StatusUnauthorized, core.ErrUnauthorized)
		return
	}

	var req deliveryStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest,
			core.WrapError(core.ErrValidation, fmt.Errorf("request body must be valid JSON")))
		return
	}

	if req.SignalID == "" || req.Status == "" {
		response.Error(w, http.StatusBadRequest,
			core.WrapError(core.ErrValidation, fmt.Errorf("signal_id and status are required")))
		return
	}

	status := core.DeliveryStatus(req.Status)
	switch status {
	case core.DeliveryPending, core.DeliveryRetrying, core.DeliveryDelivered, core.DeliveryFailed:
	default:
		response.Error(w, http.StatusBadRequest,
			core.WrapError(core.ErrValidation, fmt.Errorf("unknown delivery status: %s", req.Status)))
		return
	}

	d, err := h.deliveries.Get(r.Context(), req.SignalID, sub.ID)
	if err != nil {
		if errors.Is(err, core.ErrDeliveryNotFound) {
			response.Error(w, http.StatusNotFound, err)
			return
		}
		response.Error(w, http.StatusInternalServerError, err)
		return
	}

	now := time.Now()
	d.Status = status
	d.Attempts++
	d.LastAttempt = now
	switch status {
	case core.DeliveryDelivered:
		d.DeliveredAt = now
	case core.DeliveryFailed:
		d.ErrorMessage = req.ErrorMessage
	}

	if err := h.deliveries.Update(r.Context(), d); err != nil {
		response.Error(w, http.StatusInternalServerError, err)
		return
	}

	response.JSON(w, http.StatusOK, map[string]any{
		"message": "Delivery status updated successfully",
	})
}
