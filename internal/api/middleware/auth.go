// internal/api/middleware/auth.go
package middleware

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/tradingpro/pulse/internal/api/response"
	"github.com/tradingpro/pulse/internal/core"
	"github.com/tradingpro/pulse/internal/metrics"
	"github.com/tradingpro/pulse/internal/storage/subscriber"
	"github.com/tradingpro/pulse/internal/webhook"
)

type ctxKey int

const subscriberKey ctxKey = 0

// SubscriberFrom returns the authenticated subscriber attached by
// SubscriberAuth or WebhookSignatureAuth.
func SubscriberFrom(ctx context.Context) (*core.Subscriber, bool) {
	sub, ok := ctx.Value(subscriberKey).(*core.Subscriber)
	return sub, ok
}

// WithSubscriber attaches a subscriber to the context the same way the
// auth middleware does.
func WithSubscriber(ctx context.Context, sub *core.Subscriber) context.Context {
	return context.WithValue(ctx, subscriberKey, sub)
}

// SubscriberAuth returns middleware that authenticates requests via the
// X-API-Key header against the subscriber store. The guard order is
// fixed: missing/unknown key 401, inactive account 403, rate limit 429.
// Counting against the hourly window happens atomically in the store,
// and every handled request is access-logged.
// A nil registry disables the rate-limit reject counter.
func SubscriberAuth(store subscriber.Store, logger *zap.Logger, reg *metrics.Registry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			apiKey := r.Header.Get("X-API-Key")
			if apiKey == "" {
				response.Error(w, http.StatusUnauthorized, core.ErrUnauthorized)
				return
			}

			sub, err := store.GetByAPIKey(r.Context(), apiKey)
			if err != nil {
				response.Error(w, http.StatusUnauthorized, core.ErrUnauthorized)
				return
			}

			if sub.Status != core.SubscriberActive {
				response.Error(w, http.StatusForbidden,
					core.WrapError(core.ErrForbidden, fmt.Errorf("account status: %s", sub.Status)))
				return
			}

			sub, err = store.CountRequest(r.Context(), sub.ID, time.Hour)
			if err != nil {
				if errors.Is(err, core.ErrRateLimited) {
					if reg != nil {
						reg.RecordRateLimitReject()
					}
					response.Error(w, http.StatusTooManyRequests, core.ErrRateLimited)
					return
				}
				response.Error(w, http.StatusInternalServerError, err)
				return
			}

			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			ctx := context.WithValue(r.Context(), subscriberKey, sub)
			next.ServeHTTP(rec, r.WithContext(ctx))

			logger.Info("api access",
				zap.String("subscriber", sub.Name),
				zap.String("method", r.Method),
				zap.String("endpoint", r.URL.Path),
				zap.Int("status", rec.status),
				zap.String("remote", r.RemoteAddr))
		})
	}
}

// WebhookSignatureAuth returns middleware for callback endpoints. The
// request must carry both X-API-Key and X-Webhook-Signature, and the
// signature must verify over the exact request body with the
// subscriber's secret. The body is restored for the handler.
func WebhookSignatureAuth(store subscriber.Store) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			signature := r.Header.Get("X-Webhook-Signature")
			apiKey := r.Header.Get("X-API-Key")
			if signature == "" || apiKey == "" {
				response.Error(w, http.StatusUnauthorized, core.ErrUnauthorized)
				return
			}

			sub, err := store.GetByAPIKey(r.Context(), apiKey)
			if err != nil {
				response.Error(w, http.StatusUnauthorized, core.ErrUnauthorized)
				return
			}

			body, err := io.ReadAll(r.Body)
			if err != nil {
				response.Error(w, http.StatusUnauthorized, core.ErrUnauthorized)
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			if !webhook.Verify(sub.SecretKey, body, signature) {
				response.Error(w, http.StatusUnauthorized,
					core.WrapError(core.ErrUnauthorized, fmt.Errorf("invalid webhook signature")))
				return
			}

			ctx := context.WithValue(r.Context(), subscriberKey, sub)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
