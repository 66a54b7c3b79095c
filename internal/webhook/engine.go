// Package webhook delivers generated signals to subscriber endpoints
// with signed payloads and bounded retries.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tradingpro/pulse/internal/core"
	"github.com/tradingpro/pulse/internal/metrics"
	"github.com/tradingpro/pulse/internal/storage/article"
	"github.com/tradingpro/pulse/internal/storage/delivery"
	signalstore "github.com/tradingpro/pulse/internal/storage/signal"
	"github.com/tradingpro/pulse/internal/storage/subscriber"
)

const (
	eventTradingSignal = "trading_signal"
	userAgent          = "TradingPro-Webhook/1.0"
	maxPayloadArticles = 5
)

// Options tunes the delivery engine.
type Options struct {
	MaxAttempts int
	Backoff     []time.Duration
	Timeout     time.Duration
}

// DefaultOptions returns the standard retry schedule.
func DefaultOptions() Options {
	return Options{
		MaxAttempts: 5,
		Backoff: []time.Duration{
			1 * time.Second,
			5 * time.Second,
			15 * time.Second,
			60 * time.Second,
			300 * time.Second,
		},
		Timeout: 30 * time.Second,
	}
}

// Engine runs webhook delivery sequences. Sequences for the same
// (signal, subscriber) pair are serialized; distinct pairs run freely
// in parallel.
type Engine struct {
	deliveries  delivery.Store
	subscribers subscriber.Store
	signals     signalstore.Store
	articles    article.Store

	client  *http.Client
	opts    Options
	logger  *zap.Logger
	metrics *metrics.Registry // nil disables recording

	locks pairLocks
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a delivery engine. The metrics registry may be nil.
func New(deliveries delivery.Store, subscribers subscriber.Store, signals signalstore.Store, articles article.Store, opts Options, logger *zap.Logger, reg *metrics.Registry) *Engine {
	if opts.MaxAttempts <= 0 {
		opts = DefaultOptions()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		deliveries:  deliveries,
		subscribers: subscribers,
		signals:     signals,
		articles:    articles,
		client:      &http.Client{Timeout: opts.Timeout},
		opts:        opts,
		logger:      logger,
		metrics:     reg,
		locks:       pairLocks{locks: make(map[string]*pairLock)},
		now:         time.Now,
		sleep:       sleepContext,
	}
}

// DeliveryResult reports the outcome for one subscriber in a fan-out.
type DeliveryResult struct {
	Subscriber string
	Success    bool
}

// DeliverToSubscriber runs one delivery sequence for the pair. A pair
// already marked delivered short-circuits without any HTTP traffic.
func (e *Engine) DeliverToSubscriber(ctx context.Context, sig *core.Signal, sub *core.Subscriber) error {
	if sub.WebhookURL == "" {
		return core.WrapError(core.ErrDeliveryFailed,
			fmt.Errorf("subscriber %s has no webhook URL", sub.Name))
	}

	unlock := e.locks.lock(sig.ID + "|" + sub.ID)
	defer unlock()

	d, _, err := e.deliveries.GetOrCreate(ctx, sig.ID, sub.ID)
	if err != nil {
		return err
	}
	if d.Status == core.DeliveryDelivered {
		e.logger.Debug("signal already delivered",
			zap.String("signal_id", sig.ID), zap.String("subscriber", sub.Name))
		return nil
	}

	return e.runSequence(ctx, sig, sub, d)
}

// runSequence executes the attempt loop over an existing record.
// Attempt counters accumulate across sequences for the same pair.
func (e *Engine) runSequence(ctx context.Context, sig *core.Signal, sub *core.Subscriber, d *core.Delivery) error {
	payload, err := e.buildPayload(ctx, sig)
	if err != nil {
		return err
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return core.WrapError(core.ErrDeliveryFailed, err)
	}
	signature := Sign(sub.SecretKey, body)

	start := e.now()
	for attempt := 0; attempt < e.opts.MaxAttempts; attempt++ {
		d.Attempts++
		d.LastAttempt = e.now().UTC()
		if attempt > 0 {
			d.Status = core.DeliveryRetrying
		} else {
			d.Status = core.DeliveryPending
		}
		if err := e.deliveries.Update(ctx, d); err != nil {
			return err
		}

		if e.metrics != nil {
			e.metrics.RecordDeliveryAttempt()
		}

		if err := e.post(ctx, sub, body, signature); err == nil {
			d.Status = core.DeliveryDelivered
			d.DeliveredAt = e.now().UTC()
			d.ErrorMessage = ""
			if err := e.deliveries.Update(ctx, d); err != nil {
				return err
			}
			e.recordOutcome(core.DeliveryDelivered, start)
			e.logger.Info("delivered signal",
				zap.String("signal_id", sig.ID),
				zap.String("subscriber", sub.Name),
				zap.Int("attempts", d.Attempts))
			return nil
		} else {
			d.ErrorMessage = err.Error()
			if err := e.deliveries.Update(ctx, d); err != nil {
				return err
			}
			e.logger.Warn("webhook delivery attempt failed",
				zap.String("signal_id", sig.ID),
				zap.String("subscriber", sub.Name),
				zap.Int("attempt", attempt+1),
				zap.Error(err))
		}

		if attempt < e.opts.MaxAttempts-1 {
			delay := e.backoff(attempt)
			d.NextRetry = e.now().UTC().Add(delay)
			if err := e.deliveries.Update(ctx, d); err != nil {
				return err
			}
			if err := e.sleep(ctx, delay); err != nil {
				d.Status = core.DeliveryFailed
				e.deliveries.Update(context.WithoutCancel(ctx), d)
				return err
			}
		}
	}

	d.Status = core.DeliveryFailed
	if err := e.deliveries.Update(ctx, d); err != nil {
		return err
	}
	e.recordOutcome(core.DeliveryFailed, start)
	e.logger.Error("webhook delivery exhausted",
		zap.String("signal_id", sig.ID),
		zap.String("subscriber", sub.Name),
		zap.Int("attempts", d.Attempts))
	return core.WrapError(core.ErrDeliveryFailed,
		fmt.Errorf("delivery to %s exhausted after %d attempts", sub.Name, d.Attempts))
}

// DeliverToAllSubscribers fans the signal out to every active
// subscriber whose preferences match. Each subscriber runs its own
// sequence concurrently, so one endpoint's retry backoff never delays
// the others, and a failure for one subscriber does not stop the rest.
func (e *Engine) DeliverToAllSubscribers(ctx context.Context, sig *core.Signal) ([]DeliveryResult, error) {
	subs, err := e.subscribers.ListActiveWithWebhook(ctx)
	if err != nil {
		return nil, err
	}

	var matched []*core.Subscriber
	for _, sub := range subs {
		if sub.Matches(sig) {
			matched = append(matched, sub)
		}
	}

	results := make([]DeliveryResult, len(matched))
	var wg sync.WaitGroup
	for i, sub := range matched {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := e.DeliverToSubscriber(ctx, sig, sub)
			results[i] = DeliveryResult{
				Subscriber: sub.Name,
				Success:    err == nil,
			}
		}()
	}
	wg.Wait()

	e.logger.Info("fanned out signal",
		zap.String("signal_id", sig.ID),
		zap.Int("subscribers", len(results)))
	return results, ctx.Err()
}

// RetryFailedDeliveries sweeps failed records whose retry time has
// passed and reruns their sequences. Returns how many succeeded.
func (e *Engine) RetryFailedDeliveries(ctx context.Context) (int, error) {
	due, err := e.deliveries.DueForRetry(ctx, e.now().UTC(), e.opts.MaxAttempts)
	if err != nil {
		return 0, err
	}

	retried := 0
	for _, d := range due {
		sig, err := e.signals.GetByID(ctx, d.SignalID)
		if err != nil {
			e.logger.Warn("retry skipped, signal missing",
				zap.String("signal_id", d.SignalID), zap.Error(err))
			continue
		}
		sub, err := e.subscribers.GetByID(ctx, d.SubscriberID)
		if err != nil {
			e.logger.Warn("retry skipped, subscriber missing",
				zap.String("subscriber_id", d.SubscriberID), zap.Error(err))
			continue
		}

		unlock := e.locks.lock(sig.ID + "|" + sub.ID)
		err = e.runSequence(ctx, sig, sub, d)
		unlock()
		if err == nil {
			retried++
		}
		if ctx.Err() != nil {
			return retried, ctx.Err()
		}
	}

	if len(due) > 0 {
		e.logger.Info("retried failed deliveries",
			zap.Int("due", len(due)), zap.Int("succeeded", retried))
	}
	return retried, nil
}

// Stats summarizes delivery outcomes.
type Stats struct {
	Total       int
	Delivered   int
	Failed      int
	Pending     int
	Retrying    int
	SuccessRate float64 // percentage
}

// GetDeliveryStats aggregates over all delivery records.
func (e *Engine) GetDeliveryStats(ctx context.Context) (Stats, error) {
	byStatus, err := e.deliveries.Stats(ctx)
	if err != nil {
		return Stats{}, err
	}

	stats := Stats{
		Delivered: byStatus[core.DeliveryDelivered],
		Failed:    byStatus[core.DeliveryFailed],
		Pending:   byStatus[core.DeliveryPending],
		Retrying:  byStatus[core.DeliveryRetrying],
	}
	stats.Total = stats.Delivered + stats.Failed + stats.Pending + stats.Retrying
	if stats.Total > 0 {
		stats.SuccessRate = float64(stats.Delivered) / float64(stats.Total) * 100
	}
	return stats, nil
}

func (e *Engine) post(ctx context.Context, sub *core.Subscriber, body []byte, signature string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sub.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", sub.APIKey)
	req.Header.Set("X-Webhook-Signature", signature)
	req.Header.Set("X-Webhook-Event", eventTradingSignal)
	req.Header.Set("User-Agent", userAgent)

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("request error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, text)
	}
	return nil
}

// payload is the wire format of one delivered signal.
type payload struct {
	EventType  string           `json:"event_type"`
	SignalID   string           `json:"signal_id"`
	Ticker     string           `json:"ticker"`
	SignalType string           `json:"signal_type"`
	Confidence float64          `json:"confidence"`
	Timestamp  string           `json:"timestamp"`
	Source     string           `json:"source"`
	Metadata   map[string]any   `json:"metadata"`
	Articles   []payloadArticle `json:"related_articles"`
}

type payloadArticle struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Source    string `json:"source"`
	Sentiment string `json:"sentiment"`
	URL       string `json:"url"`
}

func (e *Engine) buildPayload(ctx context.Context, sig *core.Signal) (payload, error) {
	p := payload{
		EventType:  eventTradingSignal,
		SignalID:   sig.ID,
		Ticker:     sig.Symbol,
		SignalType: string(sig.Type),
		Confidence: sig.Confidence,
		Timestamp:  sig.GeneratedAt.UTC().Format(time.RFC3339),
		Source:     string(sig.Source),
		Metadata:   sig.MarketContext,
		Articles:   []payloadArticle{},
	}

	for _, id := range sig.RelatedArticleIDs {
		if len(p.Articles) >= maxPayloadArticles {
			break
		}
		a, err := e.articles.GetByID(ctx, id)
		if err != nil {
			continue
		}
		p.Articles = append(p.Articles, payloadArticle{
			ID:        a.ID,
			Title:     a.Title,
			Source:    a.Source,
			Sentiment: string(a.Sentiment),
			URL:       a.URL,
		})
	}
	return p, nil
}

func (e *Engine) backoff(attempt int) time.Duration {
	if attempt < len(e.opts.Backoff) {
		return e.opts.Backoff[attempt]
	}
	return e.opts.Backoff[len(e.opts.Backoff)-1]
}

func (e *Engine) recordOutcome(status core.DeliveryStatus, start time.Time) {
	if e.metrics == nil {
		return
	}
	e.metrics.RecordDelivery(string(status), e.now().Sub(start).Seconds())
}

// pairLocks serializes delivery sequences per (signal, subscriber)
// pair. Entries are refcounted and evicted once the last holder
// releases, so the map only holds pairs with a sequence in flight.
type pairLocks struct {
	mu    sync.Mutex
	locks map[string]*pairLock
}

type pairLock struct {
	mu   sync.Mutex
	refs int
}

func (p *pairLocks) lock(key string) func() {
	p.mu.Lock()
	l, ok := p.locks[key]
	if !ok {
		l = &pairLock{}
		p.locks[key] = l
	}
	l.refs++
	p.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		p.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(p.locks, key)
		}
		p.mu.Unlock()
	}
}

// sleepContext waits for the duration unless the context ends first.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
