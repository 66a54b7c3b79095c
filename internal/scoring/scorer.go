// Package scoring converts article text into sentiment and impact
// classifications via the LLM provider. Results are cached per article
// with a fixed TTL, and any classifier failure degrades to neutral
// defaults so downstream signal generation always has a value.
package scoring

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/tradingpro/pulse/internal/core"
	"github.com/tradingpro/pulse/internal/llm"
	"github.com/tradingpro/pulse/internal/metrics"
	"go.uber.org/zap"
)

const (
	maxTitleChars   = 100
	maxSummaryChars = 200

	sentimentPrompt = `Analyze sentiment: %s %s
Output: {"sentiment": "positive/negative/neutral", "confidence": 0.0-1.0, "reason": "brief reason"}`

	impactPrompt = `Classify news impact: %s %s
Output: {"impact": "high/medium/low", "sectors": ["sector1", "sector2"], "confidence": 0.0-1.0}`

	sentimentSystem = "You are a financial news analyst. Provide concise, structured responses."
	impactSystem    = "You are a financial analyst. Classify news impact concisely."
)

var numberPattern = regexp.MustCompile(`\d+\.?\d*`)

// SentimentResult is the sentiment classification for one article.
type SentimentResult struct {
	Sentiment  core.Sentiment `json:"sentiment"`
	Confidence float64        `json:"confidence"`
	Reason     string         `json:"reason"`
}

// ImpactResult is the impact classification for one article.
type ImpactResult struct {
	Impact     core.Impact `json:"impact"`
	Sectors    []string    `json:"sectors"`
	Confidence float64     `json:"confidence"`
}

// DefaultSentiment is returned whenever the classifier is unavailable
// or fails. Callers must treat it as a valid result, not an error.
func DefaultSentiment() SentimentResult {
	return SentimentResult{
		Sentiment:  core.SentimentNeutral,
		Confidence: 0.5,
		Reason:     "classifier unavailable",
	}
}

// DefaultImpact is the degraded impact classification.
func DefaultImpact() ImpactResult {
	return ImpactResult{
		Impact:     core.ImpactMedium,
		Sectors:    []string{"general"},
		Confidence: 0.5,
	}
}

// Scorer implements the news scoring adapter.
type Scorer struct {
	provider       llm.Provider
	sentimentCache *ttlCache[SentimentResult]
	impactCache    *ttlCache[ImpactResult]
	timeout        time.Duration
	logger         *zap.Logger
	metrics        *metrics.Registry
}

// Option configures a Scorer.
type Option func(*Scorer)

// WithTimeout bounds each classifier call.
func WithTimeout(d time.Duration) Option {
	return func(s *Scorer) { s.timeout = d }
}

// WithLogger attaches a logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Scorer) { s.logger = l }
}

// WithMetrics records cache and fallback counters on the registry.
func WithMetrics(reg *metrics.Registry) Option {
	return func(s *Scorer) { s.metrics = reg }
}

// New creates a scorer. A nil provider is allowed: every call then
// returns the defaults.
func New(provider llm.Provider, cacheTTL time.Duration, opts ...Option) *Scorer {
	s := &Scorer{
		provider:       provider,
		sentimentCache: newTTLCache[SentimentResult](cacheTTL),
		impactCache:    newTTLCache[ImpactResult](cacheTTL),
		timeout:        30 * time.Second,
		logger:         zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ScoreSentiment classifies article sentiment. Repeated calls within
// the cache TTL return the cached result without re-invoking the
// classifier.
func (s *Scorer) ScoreSentiment(ctx context.Context, article *core.Article) SentimentResult {
	key := "sentiment:" + article.ID
	if cached, ok := s.sentimentCache.get(key); ok {
		s.recordCache(true)
		return cached
	}
	s.recordCache(false)

	if s.provider == nil {
		s.recordFallback()
		return DefaultSentiment()
	}

	prompt := fmt.Sprintf(sentimentPrompt, truncate(article.Title, maxTitleChars),
		truncate(article.Summary, maxSummaryChars))

	content, err := s.chat(ctx, sentimentSystem, prompt)
	if err != nil {
		s.logger.Warn("sentiment classification failed, using default",
			zap.String("article", article.ID),
			zap.Error(err),
		)
		s.recordFallback()
		return DefaultSentiment()
	}

	result := parseSentiment(content)
	s.sentimentCache.set(key, result)
	return result
}

// ScoreImpact classifies article market impact with the same caching
// and degradation behavior as ScoreSentiment.
func (s *Scorer) ScoreImpact(ctx context.Context, article *core.Article) ImpactResult {
	key := "impact:" + article.ID
	if cached, ok := s.impactCache.get(key); ok {
		s.recordCache(true)
		return cached
	}
	s.recordCache(false)

	if s.provider == nil {
		s.recordFallback()
		return DefaultImpact()
	}

	prompt := fmt.Sprintf(impactPrompt, truncate(article.Title, maxTitleChars),
		truncate(article.Summary, maxSummaryChars))

	content, err := s.chat(ctx, impactSystem, prompt)
	if err != nil {
		s.logger.Warn("impact classification failed, using default",
			zap.String("article", article.ID),
			zap.Error(err),
		)
		s.recordFallback()
		return DefaultImpact()
	}

	result := parseImpact(content)
	s.impactCache.set(key, result)
	return result
}

// Annotate scores both dimensions and writes the annotations onto the
// article. Re-analysis overwrites previous annotations.
func (s *Scorer) Annotate(ctx context.Context, article *core.Article) {
	sentiment := s.ScoreSentiment(ctx, article)
	impact := s.ScoreImpact(ctx, article)

	article.Sentiment = sentiment.Sentiment
	article.SentimentConfidence = sentiment.Confidence
	article.Impact = impact.Impact
	article.ImpactConfidence = impact.Confidence
	article.Sectors = impact.Sectors
	article.AnalyzedAt = time.Now()
}

func (s *Scorer) recordCache(hit bool) {
	if s.metrics == nil {
		return
	}
	if hit {
		s.metrics.RecordCacheHit()
	} else {
		s.metrics.RecordCacheMiss()
	}
}

func (s *Scorer) recordFallback() {
	if s.metrics != nil {
		s.metrics.RecordScoringFallback()
	}
}

func (s *Scorer) chat(ctx context.Context, system, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	resp, err := s.provider.Chat(ctx, llm.ChatRequest{
		SystemPrompt: system,
		Messages:     []llm.Message{{Role: "user", Content: prompt}},
		MaxTokens:    1000,
		Temperature:  0.3,
		JSONMode:     true,
	})
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return "", core.WrapError(core.ErrLLMTimeout, err)
		}
		return "", core.WrapError(core.ErrLLMFailed, err)
	}
	return resp.Content, nil
}

// parseSentiment extracts a structured result from the classifier
// response, falling back to keyword scanning when JSON parsing fails.
func parseSentiment(content string) SentimentResult {
	var result SentimentResult
	if err := json.Unmarshal([]byte(extractJSON(content)), &result); err == nil {
		switch result.Sentiment {
		case core.SentimentPositive, core.SentimentNegative, core.SentimentNeutral:
			result.Confidence = clampConfidence(result.Confidence)
			return result
		}
	}
	return fallbackSentiment(content)
}

func parseImpact(content string) ImpactResult {
	var result ImpactResult
	if err := json.Unmarshal([]byte(extractJSON(content)), &result); err == nil {
		switch result.Impact {
		case core.ImpactHigh, core.ImpactMedium, core.ImpactLow:
			result.Confidence = clampConfidence(result.Confidence)
			if len(result.Sectors) == 0 {
				result.Sectors = []string{"general"}
			}
			return result
		}
	}
	return fallbackImpact(content)
}

// fallbackSentiment scans the raw response for sentiment keywords and
// any numeric substring as confidence.
func fallbackSentiment(content string) SentimentResult {
	lower := strings.ToLower(content)

	sentiment := core.SentimentNeutral
	if strings.Contains(lower, "positive") {
		sentiment = core.SentimentPositive
	} else if strings.Contains(lower, "negative") {
		sentiment = core.SentimentNegative
	}

	return SentimentResult{
		Sentiment:  sentiment,
		Confidence: extractConfidence(content),
		Reason:     "parsed from unstructured response",
	}
}

func fallbackImpact(content string) ImpactResult {
	lower := strings.ToLower(content)

	impact := core.ImpactMedium
	if strings.Contains(lower, "high") {
		impact = core.ImpactHigh
	} else if strings.Contains(lower, "low") {
		impact = core.ImpactLow
	}

	return ImpactResult{
		Impact:     impact,
		Sectors:    []string{"general"},
		Confidence: extractConfidence(content),
	}
}

func extractConfidence(content string) float64 {
	if m := numberPattern.FindString(content); m != "" {
		if v, err := strconv.ParseFloat(m, 64); err == nil {
			if v > 1.0 {
				return 1.0
			}
			return v
		}
	}
	return 0.5
}

// extractJSON returns the first {...} block so surrounding prose
// does not break parsing.
func extractJSON(content string) string {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start >= 0 && end > start {
		return content[start : end+1]
	}
	return content
}

func clampConfidence(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// truncate limits s to n characters without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
