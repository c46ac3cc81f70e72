// Package rates fetches and caches USD-based currency conversion rates.
// Rate unavailability never fails a refresh: callers fall back to the last
// cache or a static table and degrade to showing USD.
package rates

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"
)

const defaultAPIBase = "https://api.frankfurter.app"

// cacheTTL matches how often conversion rates meaningfully move for a
// spend display.
const cacheTTL = time.Hour

// fallbackRates keeps conversion working offline. Approximate, refreshed
// manually when they drift far.
var fallbackRates = map[string]float64{
	"USD": 1.0,
	"EUR": 0.92,
	"GBP": 0.79,
	"JPY": 149.0,
	"CHF": 0.88,
	"CAD": 1.36,
	"AUD": 1.52,
	"PLN": 4.0,
	"SEK": 10.5,
	"NOK": 10.6,
	"DKK": 6.9,
	"CNY": 7.2,
	"INR": 83.0,
	"BRL": 5.0,
	"KRW": 1330.0,
}

type Cache struct {
	mu        sync.Mutex
	rates     map[string]float64
	fetchedAt time.Time

	apiBase    string
	httpClient *http.Client
}

func NewCache() *Cache {
	return &Cache{
		apiBase:    defaultAPIBase,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// NewCacheWithBase is used by tests to point at a local server.
func NewCacheWithBase(apiBase string, client *http.Client) *Cache {
	c := NewCache()
	c.apiBase = apiBase
	if client != nil {
		c.httpClient = client
	}
	return c
}

type latestResponse struct {
	Base  string             `json:"base"`
	Date  string             `json:"date"`
	Rates map[string]float64 `json:"rates"`
}

// GetRates returns the cached rate set when it is younger than an hour and
// non-empty, otherwise fetches fresh. On fetch failure it returns the stale
// cache or the static fallback table; it never returns an error to the
// caller.
func (c *Cache) GetRates(ctx context.Context) map[string]float64 {
	c.mu.Lock()
	if len(c.rates) > 0 && time.Since(c.fetchedAt) < cacheTTL {
		cached := cloneRates(c.rates)
		c.mu.Unlock()
		return cached
	}
	c.mu.Unlock()

	fresh, err := c.fetch(ctx)
	if err != nil {
		log.Printf("[rates] fetch failed, using fallback: %v", err)
		c.mu.Lock()
		defer c.mu.Unlock()
		if len(c.rates) > 0 {
			return cloneRates(c.rates)
		}
		return cloneRates(fallbackRates)
	}

	c.mu.Lock()
	c.rates = fresh
	c.fetchedAt = time.Now()
	c.mu.Unlock()

	return cloneRates(fresh)
}

func (c *Cache) fetch(ctx context.Context) (map[string]float64, error) {
	symbols := make([]string, 0, len(fallbackRates))
	for code := range fallbackRates {
		if code != "USD" {
			symbols = append(symbols, code)
		}
	}
	sort.Strings(symbols)

	url := fmt.Sprintf("%s/latest?base=USD&symbols=%s", c.apiBase, strings.Join(symbols, ","))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))
	}

	var decoded latestResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decoding rates: %w", err)
	}
	if len(decoded.Rates) == 0 {
		return nil, fmt.Errorf("empty rate set in response")
	}

	rates := cloneRates(decoded.Rates)
	rates["USD"] = 1.0
	return rates, nil
}

// Convert converts amount between two currencies, pivoting through USD.
// The boolean is false only when a required rate is missing from the
// supplied set.
func Convert(amount float64, from, to string, rates map[string]float64) (float64, bool) {
	from = strings.ToUpper(from)
	to = strings.ToUpper(to)

	if from == to {
		return amount, true
	}

	if from == "USD" {
		rate, ok := rates[to]
		if !ok || rate == 0 {
			return 0, false
		}
		return amount * rate, true
	}

	if to == "USD" {
		rate, ok := rates[from]
		if !ok || rate == 0 {
			return 0, false
		}
		return amount / rate, true
	}

	// Neither leg is USD: pivot through it.
	fromRate, okFrom := rates[from]
	toRate, okTo := rates[to]
	if !okFrom || !okTo || fromRate == 0 {
		return 0, false
	}
	return amount / fromRate * toRate, true
}

func cloneRates(in map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
