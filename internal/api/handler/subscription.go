// internal/api/handler/subscription.go
package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/tradingpro/pulse/internal/api/middleware"
	"github.com/tradingpro/pulse/internal/api/response"
	"github.com/tradingpro/pulse/internal/core"
	"github.com/tradingpro/pulse/internal/storage/subscriber"
)

// SubscriptionHandler lets a subscriber read and update its own
// delivery preferences.
type SubscriptionHandler struct {
	subscribers subscriber.Store
}

// NewSubscriptionHandler creates a new subscription handler.
func NewSubscriptionHandler(subscribers subscriber.Store) *SubscriptionHandler {
	return &SubscriptionHandler{subscribers: subscribers}
}

// ServeHTTP dispatches by method.
func (h *SubscriptionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.get(w, r)
	case http.MethodPost:
		h.update(w, r)
	default:
		response.Error(w, http.StatusMethodNotAllowed,
			core.WrapError(core.ErrValidation, fmt.Errorf("method %s not allowed", r.Method)))
	}
}

func (h *SubscriptionHandler) get(w http.ResponseWriter, r *http.Request) {
	sub, ok := middleware.SubscriberFrom(r.Context())
	if !ok {
		response.Error(w, http.StatusUnauthorized, core.ErrUnauthorized)
		return
	}

	var lastAccessed any
	if !sub.LastAccessed.IsZero() {
		lastAccessed = sub.LastAccessed.Format(time.RFC3339)
	}

	response.JSON(w, http.StatusOK, map[string]any{
		"name":                     sub.Name,
		"status":                   sub.Status,
		"subscribed_tickers":       sub.SubscribedTickers,
		"min_confidence_threshold": sub.MinConfidence,
		"signal_types":             sub.SignalTypes,
		"webhook_url":              sub.WebhookURL,
		"rate_limit_per_hour":      sub.RateLimitPerHour,
		"request_count":            sub.RequestCount,
		"last_accessed":            lastAccessed,
	})
}

type subscriptionUpdate struct {
	SubscribedTickers *[]string          `json:"subscribed_tickers"`
	MinConfidence     *float64           `json:"min_confidence_threshold"`
	SignalTypes       *[]core.SignalType `json:"signal_types"`
	WebhookURL        *string            `json:"webhook_url"`
}

// update applies partial preference changes. Absent fields keep their
// current values.
func (h *SubscriptionHandler) update(w http.ResponseWriter, r *http.Request) {
	sub, ok := middleware.SubscriberFrom(r.Context())
	if !ok {
		response.Error(w, http.StatusUnauthorized, core.ErrUnauthorized)
		return
	}

	var req subscriptionUpdate
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest,
			core.WrapError(core.ErrValidation, fmt.Errorf("request body must be valid JSON")))
		return
	}

	if req.MinConfidence != nil {
		if *req.MinConfidence < 0 || *req.MinConfidence > 1 {
			response.Error(w, http.StatusBadRequest,
				core.WrapError(core.ErrValidation, fmt.Errorf("confidence threshold must be between 0 and 1")))
			return
		}
	}
	if req.SignalTypes != nil {
		for _, t := range *req.SignalTypes {
			if !core.ValidSignalType(t) {
				response.Error(w, http.StatusBadRequest,
					core.WrapError(core.ErrValidation, fmt.Errorf("unknown signal type: %s", t)))
				return
			}
		}
	}

	if req.SubscribedTickers != nil {
		tickers := make([]string, 0, len(*req.SubscribedTickers))
		for _, t := range *req.SubscribedTickers {
			tickers = append(tickers, strings.ToUpper(strings.TrimSpace(t)))
		}
		sub.SubscribedTickers = tickers
	}
	if req.MinConfidence != nil {
		sub.MinConfidence = *req.MinConfidence
	}
	if req.SignalTypes != nil {
		sub.SignalTypes = *req.SignalTypes
	}
	if req.WebhookURL != nil {
		sub.WebhookURL = *req.WebhookURL
	}

	if err := h.subscribers.Update(r.Context(), sub); err != nil {
		response.Error(w, http.StatusInternalServerError, err)
		return
	}

	response.JSON(w, http.StatusOK, map[string]any{
		"message":                  "Subscription updated successfully",
		"subscribed_tickers":       sub.SubscribedTickers,
		"min_confidence_threshold": sub.MinConfidence,
		"signal_types":             sub.SignalTypes,
		"webhook_url":              sub.WebhookURL,
	})
}
