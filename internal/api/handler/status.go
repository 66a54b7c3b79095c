// internal/api/handler/status.go
package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/tradingpro/pulse/internal/api/middleware"
	"github.com/tradingpro/pulse/internal/api/response"
	"github.com/tradingpro/pulse/internal/core"
	"github.com/tradingpro/pulse/internal/lifecycle"
	"github.com/tradingpro/pulse/internal/webhook"
)

// StatusHandler reports API health, the caller's account state and
// aggregate signal/delivery statistics.
type StatusHandler struct {
	manager *lifecycle.Manager
	engine  *webhook.Engine
}

// NewStatusHandler creates a new status handler.
func NewStatusHandler(manager *lifecycle.Manager, engine *webhook.Engine) *StatusHandler {
	return &StatusHandler{manager: manager, engine: engine}
}

// ServeHTTP handles GET status requests.
func (h *StatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		response.Error(w, http.StatusMethodNotAllowed,
			core.WrapError(core.ErrValidation, fmt.Errorf("method %s not allowed", r.Method)))
		return
	}

	sub, ok := middleware.SubscriberFrom(r.Context())
	if !ok {
		response.Error(w, http.StatusUnauthorized, core.ErrUnauthorized)
		return
	}

	var lastAccessed any
	if !sub.LastAccessed.IsZero() {
		lastAccessed = sub.LastAccessed.Format(time.RFC3339)
	}

	data := map[string]any{
		"status": "operational",
		"subscriber": map[string]any{
			"name":                sub.Name,
			"status":              sub.Status,
			"rate_limit_per_hour": sub.RateLimitPerHour,
			"request_count":       sub.RequestCount,
			"last_accessed":       lastAccessed,
		},
		"endpoints": map[string]string{
			"signals":        "/api/v1/signals",
			"subscription":   "/api/v1/subscription",
			"webhook_status": "/api/v1/webhook/status",
			"status":         "/api/v1/status",
		},
	}

	if perf, err := h.manager.GetPerformanceStats(r.Context()); err == nil {
		data["signal_performance"] = map[string]any{
			"total_signals":       perf.TotalSignals,
			"average_performance": perf.AveragePerformance,
			"success_rate":        perf.SuccessRate,
			"best_performance":    perf.BestPerformance,
			"worst_performance":   perf.WorstPerformance,
		}
	}

	if del, err := h.engine.GetDeliveryStats(r.Context()); err == nil {
		data["webhook_deliveries"] = map[string]any{
			"total":        del.Total,
			"delivered":    del.Delivered,
			"failed":       del.Failed,
			"pending":      del.Pending,
			"retrying":     del.Retrying,
			"success_rate": del.SuccessRate,
		}
	}

	response.JSON(w, http.StatusOK, data)
}
