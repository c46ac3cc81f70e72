package rates

import (
	"context"
	"math"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func TestConvert(t *testing.T) {
	rates := map[string]float64{"USD": 1.0, "EUR": 0.9, "GBP": 0.8}

	tests := []struct {
		name   string
		amount float64
		from   string
		to     string
		want   float64
		ok     bool
	}{
		{name: "same currency", amount: 42, from: "EUR", to: "EUR", want: 42, ok: true},
		{name: "usd to eur", amount: 100, from: "USD", to: "EUR", want: 90, ok: true},
		{name: "eur to usd", amount: 90, from: "EUR", to: "USD", want: 100, ok: true},
		{name: "cross via usd", amount: 90, from: "EUR", to: "GBP", want: 80, ok: true},
		{name: "lowercase codes", amount: 100, from: "usd", to: "eur", want: 90, ok: true},
		{name: "missing target rate", amount: 1, from: "USD", to: "CHF", ok: false},
		{name: "missing source rate", amount: 1, from: "CHF", to: "USD", ok: false},
		{name: "missing cross leg", amount: 1, from: "EUR", to: "CHF", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Convert(tt.amount, tt.from, tt.to, rates)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if ok && math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Convert() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestConvertRoundTrip(t *testing.T) {
	rates := map[string]float64{"USD": 1.0, "EUR": 0.9234}

	eur, ok := Convert(123.45, "USD", "EUR", rates)
	if !ok {
		t.Fatal("usd->eur failed")
	}
	back, ok := Convert(eur, "EUR", "USD", rates)
	if !ok {
		t.Fatal("eur->usd failed")
	}
	if math.Abs(back-123.45) > 1e-9 {
		t.Errorf("round trip = %v, want 123.45", back)
	}
}

func TestGetRatesCachesForAnHour(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte(`{"base":"USD","date":"2025-01-15","rates":{"EUR":0.92,"GBP":0.79}}`))
	}))
	defer srv.Close()

	c := NewCacheWithBase(srv.URL, srv.Client())
	ctx := context.Background()

	first := c.GetRates(ctx)
	second := c.GetRates(ctx)

	if hits.Load() != 1 {
		t.Errorf("expected 1 upstream hit, got %d", hits.Load())
	}
	if first["EUR"] != 0.92 || second["EUR"] != 0.92 {
		t.Errorf("unexpected rates: %v / %v", first, second)
	}
	if first["USD"] != 1.0 {
		t.Errorf("USD pivot rate missing: %v", first)
	}
}

func TestGetRatesFallsBackOnFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewCacheWithBase(srv.URL, srv.Client())
	got := c.GetRates(context.Background())

	if got["USD"] != 1.0 {
		t.Error("fallback table should include USD")
	}
	if _, ok := got["EUR"]; !ok {
		t.Error("fallback table should include EUR")
	}
}

func TestGetRatesKeepsStaleCacheOverFallback(t *testing.T) {
	var fail atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			http.Error(w, "down", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"base":"USD","date":"2025-01-15","rates":{"EUR":0.5}}`))
	}))
	defer srv.Close()

	c := NewCacheWithBase(srv.URL, srv.Client())
	ctx := context.Background()

	c.GetRates(ctx)
	fail.Store(true)
	c.fetchedAt = c.fetchedAt.Add(-2 * cacheTTL) // force expiry

	got := c.GetRates(ctx)
	if got["EUR"] != 0.5 {
		t.Errorf("expected stale cached rate 0.5, got %v", got["EUR"])
	}
}
