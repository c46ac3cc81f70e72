package core

import (
	"testing"
	"time"
)

func intPtr(v int) *int { return &v }

func TestInvoiceTotals(t *testing.T) {
	tests := []struct {
		name      string
		invoice   Invoice
		wantCents int
		wantUSD   float64
	}{
		{
			name:      "empty",
			invoice:   Invoice{},
			wantCents: 0,
			wantUSD:   0,
		},
		{
			name: "single item",
			invoice: Invoice{Items: []InvoiceItem{
				{Cents: 1234, Description: "gpt-4"},
			}},
			wantCents: 1234,
			wantUSD:   12.34,
		},
		{
			name: "multiple items",
			invoice: Invoice{Items: []InvoiceItem{
				{Cents: 500, Description: "sonnet"},
				{Cents: 250, Description: "haiku"},
				{Cents: 1250, Description: "opus"},
			}},
			wantCents: 2000,
			wantUSD:   20.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.invoice.TotalCents(); got != tt.wantCents {
				t.Errorf("TotalCents() = %d, want %d", got, tt.wantCents)
			}
			if got := tt.invoice.TotalUSD(); got != tt.wantUSD {
				t.Errorf("TotalUSD() = %v, want %v", got, tt.wantUSD)
			}
		})
	}
}

func TestUsagePercentUsed(t *testing.T) {
	tests := []struct {
		name  string
		usage UsageData
		want  float64
	}{
		{name: "no quota", usage: UsageData{CurrentRequests: 10}, want: -1},
		{name: "zero quota", usage: UsageData{CurrentRequests: 10, MaxRequests: intPtr(0)}, want: -1},
		{name: "half used", usage: UsageData{CurrentRequests: 250, MaxRequests: intPtr(500)}, want: 50},
		{name: "over quota", usage: UsageData{CurrentRequests: 600, MaxRequests: intPtr(500)}, want: 120},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.usage.PercentUsed(); got != tt.want {
				t.Errorf("PercentUsed() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestConnectionStatusIsActive(t *testing.T) {
	active := []ConnectionStatus{Connecting(), Syncing(), Connected()}
	for _, s := range active {
		if !s.IsActive() {
			t.Errorf("%s should be active", s.Kind)
		}
	}

	inactive := []ConnectionStatus{
		Stale(),
		ErrorStatus("boom"),
		RateLimited(time.Now().Add(time.Minute)),
	}
	for _, s := range inactive {
		if s.IsActive() {
			t.Errorf("%s should not be active", s.Kind)
		}
	}
}

func TestAllProvidersClosedSet(t *testing.T) {
	all := AllProviders()
	if len(all) != 2 {
		t.Fatalf("expected 2 providers, got %d", len(all))
	}
	for _, p := range all {
		if !p.Valid() {
			t.Errorf("provider %q should be valid", p)
		}
	}
	if Provider("copilot").Valid() {
		t.Error("unknown provider should not be valid")
	}
}
