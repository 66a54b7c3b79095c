// internal/api/handler/signals.go
package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/tradingpro/pulse/internal/api/middleware"
	"github.com/tradingpro/pulse/internal/api/response"
	"github.com/tradingpro/pulse/internal/core"
	"github.com/tradingpro/pulse/internal/generator"
	"github.com/tradingpro/pulse/internal/storage/article"
	"github.com/tradingpro/pulse/internal/storage/signal"
)

const (
	defaultPerPage     = 50
	maxPerPage         = 100
	defaultSinceWindow = 24 * time.Hour
	maxRelatedArticles = 5
)

// SignalsHandler serves signal queries and on-demand generation for
// authenticated subscribers.
type SignalsHandler struct {
	signals   signal.Store
	articles  article.Store
	generator *generator.Generator
	logger    *zap.Logger
}

// NewSignalsHandler creates a new signals handler.
func NewSignalsHandler(signals signal.Store, articles article.Store, gen *generator.Generator, logger *zap.Logger) *SignalsHandler {
	return &SignalsHandler{signals: signals, articles: articles, generator: gen, logger: logger}
}

// ServeHTTP dispatches by method.
func (h *SignalsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.list(w, r)
	case http.MethodPost:
		h.generate(w, r)
	default:
		response.Error(w, http.StatusMethodNotAllowed,
			core.WrapError(core.ErrValidation, fmt.Errorf("method %s not allowed", r.Method)))
	}
}

// list returns signals filtered by the subscriber's preferences.
func (h *SignalsHandler) list(w http.ResponseWriter, r *http.Request) {
	sub, ok := middleware.SubscriberFrom(r.Context())
	if !ok {
		response.Error(w, http.StatusUnauthorized, core.ErrUnauthorized)
		return
	}

	q := r.URL.Query()

	filter := signal.ListFilter{
		Symbols:       sub.SubscribedTickers,
		Types:         sub.SignalTypes,
		MinConfidence: sub.MinConfidence,
	}

	if since := q.Get("since"); since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			response.Error(w, http.StatusBadRequest,
				core.WrapError(core.ErrValidation, fmt.Errorf("since must be ISO 8601 (e.g. 2025-09-01T00:00:00Z)")))
			return
		}
		filter.From = t
	} else {
		filter.From = time.Now().Add(-defaultSinceWindow)
	}

	page := 1
	if p := q.Get("page"); p != "" {
		if n, err := strconv.Atoi(p); err == nil && n > 0 {
			page = n
		}
	}
	perPage := defaultPerPage
	if pp := q.Get("per_page"); pp != "" {
		if n, err := strconv.Atoi(pp); err == nil && n > 0 {
			perPage = n
		}
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}
	filter.Limit = perPage
	filter.Offset = (page - 1) * perPage

	signals, err := h.signals.List(r.Context(), filter)
	if err != nil {
		response.Error(w, http.StatusInternalServerError, err)
		return
	}
	total, err := h.signals.Count(r.Context(), filter)
	if err != nil {
		response.Error(w, http.StatusInternalServerError, err)
		return
	}

	items := make([]map[string]any, 0, len(signals))
	for _, sig := range signals {
		items = append(items, h.signalView(r, sig, true))
	}

	pages := (total + perPage - 1) / perPage
	if pages == 0 {
		pages = 1
	}

	response.JSON(w, http.StatusOK, map[string]any{
		"signals": items,
		"pagination": map[string]any{
			"page":         page,
			"per_page":     perPage,
			"total":        total,
			"pages":        pages,
			"has_next":     page < pages,
			"has_previous": page > 1,
		},
		"subscriber_info": map[string]any{
			"name":                     sub.Name,
			"subscribed_tickers":       sub.SubscribedTickers,
			"min_confidence_threshold": sub.MinConfidence,
			"signal_types":             sub.SignalTypes,
		},
	})
}

type generateRequest struct {
	Ticker string `json:"ticker"`
	Source string `json:"source"`
}

// generate produces a fresh signal for one ticker on demand.
func (h *SignalsHandler) generate(w http.ResponseWriter, r *http.Request) {
	sub, ok := middleware.SubscriberFrom(r.Context())
	if !ok {
		response.Error(w, http.StatusUnauthorized, core.ErrUnauthorized)
		return
	}

	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest,
			core.WrapError(core.ErrValidation, fmt.Errorf("request body must be valid JSON")))
		return
	}

	ticker := strings.ToUpper(strings.TrimSpace(req.Ticker))
	if ticker == "" {
		response.Error(w, http.StatusBadRequest,
			core.WrapError(core.ErrValidation, fmt.Errorf("ticker is required")))
		return
	}

	if !sub.WantsTicker(ticker) {
		response.Error(w, http.StatusForbidden,
			core.WrapError(core.ErrForbidden, fmt.Errorf("not subscribed to %s", ticker)))
		return
	}

	source := core.SourceCombined
	if req.Source != "" {
		source = core.SignalSource(req.Source)
	}

	sig, err := h.generator.GenerateSignal(r.Context(), ticker, source)
	if err != nil {
		h.logger.Warn("on-demand generation failed",
			zap.String("ticker", ticker), zap.Error(err))
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, core.ErrTickerNotFound):
			status = http.StatusNotFound
		case errors.Is(err, core.ErrUnknownSource):
			status = http.StatusBadRequest
		case errors.Is(err, core.ErrNoData):
			status = http.StatusUnprocessableEntity
		}
		response.Error(w, status, err)
		return
	}

	response.JSON(w, http.StatusCreated, map[string]any{
		"message": fmt.Sprintf("Signal generated for %s", ticker),
		"signal":  h.signalView(r, sig, false),
	})
}

// signalView flattens a signal into the wire shape shared by list and
// generate responses. Related articles are resolved only for listings.
func (h *SignalsHandler) signalView(r *http.Request, sig *core.Signal, withArticles bool) map[string]any {
	view := map[string]any{
		"id":          sig.ID,
		"ticker":      sig.Symbol,
		"signal_type": sig.Type,
		"confidence":  sig.Confidence,
		"timestamp":   sig.GeneratedAt.Format(time.RFC3339),
		"source":      sig.Source,
		"status":      sig.Status,
		"reasoning":   sig.Reasoning,
		"metadata":    sig.MarketContext,
	}

	if !withArticles {
		return view
	}

	related := make([]map[string]any, 0, maxRelatedArticles)
	for _, id := range sig.RelatedArticleIDs {
		if len(related) == maxRelatedArticles {
			break
		}
		art, err := h.articles.GetByID(r.Context(), id)
		if err != nil {
			continue
		}
		related = append(related, map[string]any{
			"id":        art.ID,
			"title":     art.Title,
			"source":    art.Source,
			"sentiment": art.Sentiment,
			"url":       art.URL,
		})
	}
	view["related_articles"] = related
	return view
}
