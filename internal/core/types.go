package core

import "time"

// SignalType represents a trading signal recommendation
type SignalType string

const (
	SignalBuy        SignalType = "buy"
	SignalSell       SignalType = "sell"
	SignalHold       SignalType = "hold"
	SignalStrongBuy  SignalType = "strong_buy"
	SignalStrongSell SignalType = "strong_sell"
)

// IsBuyFamily reports whether the type recommends buying.
func (t SignalType) IsBuyFamily() bool {
	return t == SignalBuy || t == SignalStrongBuy
}

// IsSellFamily reports whether the type recommends selling.
func (t SignalType) IsSellFamily() bool {
	return t == SignalSell || t == SignalStrongSell
}

// IsStrong reports whether the type is a strong variant.
func (t SignalType) IsStrong() bool {
	return t == SignalStrongBuy || t == SignalStrongSell
}

// ValidSignalType checks membership in the signal type vocabulary.
func ValidSignalType(t SignalType) bool {
	switch t {
	case SignalBuy, SignalSell, SignalHold, SignalStrongBuy, SignalStrongSell:
		return true
	}
	return false
}

// SignalSource identifies which analysis path produced a signal
type SignalSource string

const (
	SourceGPTAnalysis SignalSource = "gpt_analysis"
	SourceMarketData  SignalSource = "market_data"
	SourceCombined    SignalSource = "combined"
	SourceTechnical   SignalSource = "technical"
	SourceSentiment   SignalSource = "sentiment"
)

// SignalStatus tracks the signal lifecycle
type SignalStatus string

const (
	StatusActive    SignalStatus = "active"
	StatusExecuted  SignalStatus = "executed"
	StatusExpired   SignalStatus = "expired"
	StatusCancelled SignalStatus = "cancelled"
)

// Sentiment classification for a news article
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
)

// Impact classification for a news article
type Impact string

const (
	ImpactHigh   Impact = "high"
	ImpactMedium Impact = "medium"
	ImpactLow    Impact = "low"
)

// Ticker identifies a tradable instrument.
// Symbol+Exchange+SecurityType+Currency are unique together.
type Ticker struct {
	Symbol       string
	Exchange     string
	SecurityType string
	Currency     string
	Name         string
}

// Quote is a point-in-time market data snapshot for one ticker.
// Spread, PriceChange and PriceChangePercent are derived from the raw
// fields and are always recomputed together (see Recompute).
type Quote struct {
	Symbol             string
	BidPrice           float64
	AskPrice           float64
	LastPrice          float64
	ClosePrice         float64
	OpenPrice          float64
	HighPrice          float64
	LowPrice           float64
	Volume             int64
	BidSize            int64
	AskSize            int64
	LastSize           int64
	Spread             float64
	PriceChange        float64
	PriceChangePercent float64
	Timestamp          time.Time
}

// Recompute refreshes all derived fields from the raw ones.
func (q *Quote) Recompute() {
	if q.BidPrice > 0 && q.AskPrice > 0 {
		q.Spread = q.AskPrice - q.BidPrice
	} else {
		q.Spread = 0
	}
	if q.LastPrice > 0 && q.ClosePrice > 0 {
		q.PriceChange = q.LastPrice - q.ClosePrice
		q.PriceChangePercent = (q.LastPrice - q.ClosePrice) / q.ClosePrice * 100
	} else {
		q.PriceChange = 0
		q.PriceChangePercent = 0
	}
}

// Bar is one OHLCV record for a ticker+timeframe+bar time triple.
type Bar struct {
	Symbol    string
	Timeframe string // "1m", "5m", "1d"
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    int64
	BarTime   time.Time
}

// Article is an ingested news article with its analysis annotations.
// Text content is immutable after ingestion; the analysis fields are
// written once per scoring pass (re-analysis overwrites, never appends).
type Article struct {
	ID          string
	Title       string
	Content     string
	Summary     string
	URL         string
	Source      string
	Author      string
	Category    string
	Tags        []string
	PublishedAt time.Time
	ScrapedAt   time.Time

	// Analysis annotations
	Sentiment           Sentiment
	SentimentConfidence float64
	Impact              Impact
	ImpactConfidence    float64
	Sectors             []string
	AnalyzedAt          time.Time
}

// Scored reports whether the article carries both analysis annotations.
func (a *Article) Scored() bool {
	return a.Sentiment != "" && a.Impact != ""
}

// Signal is a generated trading signal.
type Signal struct {
	ID         string
	Symbol     string
	Type       SignalType
	Confidence float64
	Source     SignalSource
	Status     SignalStatus

	SentimentScore float64
	SentimentLabel Sentiment
	TechnicalScore float64
	CombinedScore  float64
	Reasoning      string
	MarketContext  map[string]any

	RelatedArticleIDs []string
	QuoteTime         time.Time // timestamp of the linked quote snapshot, zero if none

	GeneratedAt time.Time
	ExpiryTime  time.Time

	TargetPrice      float64
	ExecutionPrice   float64
	ExecutionTime    time.Time
	PerformanceScore float64
	PerformanceSet   bool
}

// Expired reports whether the signal is past its expiry time.
func (s *Signal) Expired(now time.Time) bool {
	return !s.ExpiryTime.IsZero() && now.After(s.ExpiryTime)
}

// SignalMetadata is a write-once market-condition snapshot recorded
// alongside a signal at creation time.
type SignalMetadata struct {
	SignalID string

	RecentNewsCount    int
	NewsSentimentScore float64
	NewsImpactScore    float64

	VolumeRatio   float64
	AverageVolume int64
	HasVolume     bool

	RSI             float64
	MACD            float64
	MovingAverage20 float64
	MovingAverage50 float64
	BollingerUpper  float64
	BollingerLower  float64
	HasIndicators   bool

	CreatedAt time.Time
}

// SubscriberStatus is the account state of an API subscriber
type SubscriberStatus string

const (
	SubscriberActive    SubscriberStatus = "active"
	SubscriberInactive  SubscriberStatus = "inactive"
	SubscriberSuspended SubscriberStatus = "suspended"
	SubscriberPending   SubscriberStatus = "pending"
)

// Subscriber is an external system receiving signals.
// SubscribedTickers and SignalTypes act as allowlists; empty means all.
type Subscriber struct {
	ID                string
	Name              string
	APIKey            string
	SecretKey         string
	WebhookURL        string
	Status            SubscriberStatus
	SubscribedTickers []string
	MinConfidence     float64
	SignalTypes       []SignalType
	RateLimitPerHour  int
	RequestCount      int
	LastAccessed      time.Time
	CreatedAt         time.Time
}

// WantsTicker checks the ticker allowlist.
func (s *Subscriber) WantsTicker(symbol string) bool {
	if len(s.SubscribedTickers) == 0 {
		return true
	}
	for _, t := range s.SubscribedTickers {
		if t == symbol {
			return true
		}
	}
	return false
}

// WantsType checks the signal type allowlist.
func (s *Subscriber) WantsType(t SignalType) bool {
	if len(s.SignalTypes) == 0 {
		return true
	}
	for _, st := range s.SignalTypes {
		if st == t {
			return true
		}
	}
	return false
}

// Matches applies all three subscription filters to a signal.
func (s *Subscriber) Matches(sig *Signal) bool {
	return s.WantsTicker(sig.Symbol) &&
		s.MinConfidence <= sig.Confidence &&
		s.WantsType(sig.Type)
}

// DeliveryStatus tracks one webhook delivery sequence
type DeliveryStatus string

const (
	DeliveryPending   DeliveryStatus = "pending"
	DeliveryRetrying  DeliveryStatus = "retrying"
	DeliveryDelivered DeliveryStatus = "delivered"
	DeliveryFailed    DeliveryStatus = "failed"
)

// Delivery tracks the attempt sequence for one (signal, subscriber)
// pair. At most one record exists per pair; it is mutated in place
// across retries.
type Delivery struct {
	ID           string
	SignalID     string
	SubscriberID string
	Status       DeliveryStatus
	Attempts     int
	LastAttempt  time.Time
	NextRetry    time.Time
	ErrorMessage string
	DeliveredAt  time.Time
	CreatedAt    time.Time
}
