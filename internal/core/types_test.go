package core

import (
	"math"
	"testing"
	"time"
)

func TestQuote_Recompute(t *testing.T) {
	q := Quote{
		BidPrice:   149.95,
		AskPrice:   150.05,
		LastPrice:  150.00,
		ClosePrice: 145.00,
	}
	q.Recompute()

	if math.Abs(q.Spread-0.10) > 1e-9 {
		t.Errorf("spread = %f, want 0.10", q.Spread)
	}
	if math.Abs(q.PriceChange-5.00) > 1e-9 {
		t.Errorf("price change = %f, want 5.00", q.PriceChange)
	}
	if math.Abs(q.PriceChangePercent-3.4483) > 0.001 {
		t.Errorf("price change percent = %f, want ~3.4483", q.PriceChangePercent)
	}
}

func TestQuote_Recompute_DerivedFieldsTogether(t *testing.T) {
	q := Quote{BidPrice: 10, AskPrice: 10.2, LastPrice: 11, ClosePrice: 10}
	q.Recompute()

	// Updating a raw field and recomputing must refresh every derived field
	q.ClosePrice = 0
	q.BidPrice = 0
	q.Recompute()

	if q.Spread != 0 || q.PriceChange != 0 || q.PriceChangePercent != 0 {
		t.Errorf("derived fields not reset: spread=%f change=%f pct=%f",
			q.Spread, q.PriceChange, q.PriceChangePercent)
	}
}

func TestSignalType_Families(t *testing.T) {
	if !SignalStrongBuy.IsBuyFamily() || !SignalBuy.IsBuyFamily() {
		t.Error("buy family misclassified")
	}
	if !SignalStrongSell.IsSellFamily() || !SignalSell.IsSellFamily() {
		t.Error("sell family misclassified")
	}
	if SignalHold.IsBuyFamily() || SignalHold.IsSellFamily() {
		t.Error("hold should belong to neither family")
	}
	if !SignalStrongBuy.IsStrong() || SignalBuy.IsStrong() {
		t.Error("strong variant misclassified")
	}
}

func TestValidSignalType(t *testing.T) {
	if !ValidSignalType(SignalBuy) {
		t.Error("buy should be valid")
	}
	if ValidSignalType("moon") {
		t.Error("unknown type should be invalid")
	}
}

func TestSubscriber_Matches(t *testing.T) {
	sig := &Signal{Symbol: "AAPL", Type: SignalBuy, Confidence: 0.7}

	tests := []struct {
		name string
		sub  Subscriber
		want bool
	}{
		{"empty filters match all", Subscriber{MinConfidence: 0.5}, true},
		{"ticker allowlist hit", Subscriber{SubscribedTickers: []string{"AAPL"}, MinConfidence: 0.5}, true},
		{"ticker allowlist miss", Subscriber{SubscribedTickers: []string{"MSFT"}}, false},
		{"confidence too low", Subscriber{MinConfidence: 0.8}, false},
		{"type allowlist hit", Subscriber{SignalTypes: []SignalType{SignalBuy}}, true},
		{"type allowlist miss", Subscriber{SignalTypes: []SignalType{SignalSell}}, false},
	}

	for _, tt := range tests {
		if got := tt.sub.Matches(sig); got != tt.want {
			t.Errorf("%s: Matches = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestSignal_Expired(t *testing.T) {
	now := time.Now()

	s := &Signal{ExpiryTime: now.Add(-time.Minute)}
	if !s.Expired(now) {
		t.Error("past expiry should report expired")
	}

	s = &Signal{ExpiryTime: now.Add(time.Minute)}
	if s.Expired(now) {
		t.Error("future expiry should not report expired")
	}

	s = &Signal{}
	if s.Expired(now) {
		t.Error("zero expiry never expires")
	}
}
