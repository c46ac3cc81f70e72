package core

import "time"

// Provider identifies one billing/usage data source. The set is closed;
// AllProviders is the canonical iteration order.
type Provider string

const (
	ProviderCursor Provider = "cursor"
	ProviderClaude Provider = "claude"
)

func AllProviders() []Provider {
	return []Provider{ProviderCursor, ProviderClaude}
}

func (p Provider) DisplayName() string {
	switch p {
	case ProviderCursor:
		return "Cursor"
	case ProviderClaude:
		return "Claude Code"
	}
	return string(p)
}

func (p Provider) Valid() bool {
	switch p {
	case ProviderCursor, ProviderClaude:
		return true
	}
	return false
}

type StatusKind string

const (
	StatusConnecting  StatusKind = "CONNECTING"
	StatusSyncing     StatusKind = "SYNCING"
	StatusConnected   StatusKind = "CONNECTED"
	StatusStale       StatusKind = "STALE"
	StatusRateLimited StatusKind = "RATE_LIMITED"
	StatusError       StatusKind = "ERROR"
)

// ConnectionStatus is the per-provider health state shown to the user.
// Exactly one kind is set at a time; Message and RetryAfter only carry
// meaning for the error and rate-limited kinds.
type ConnectionStatus struct {
	Kind       StatusKind `json:"kind"`
	Message    string     `json:"message,omitempty"`
	RetryAfter time.Time  `json:"retry_after,omitzero"`
}

func Connecting() ConnectionStatus  { return ConnectionStatus{Kind: StatusConnecting} }
func Syncing() ConnectionStatus     { return ConnectionStatus{Kind: StatusSyncing} }
func Connected() ConnectionStatus   { return ConnectionStatus{Kind: StatusConnected} }
func Stale() ConnectionStatus       { return ConnectionStatus{Kind: StatusStale} }
func ErrorStatus(msg string) ConnectionStatus {
	return ConnectionStatus{Kind: StatusError, Message: msg}
}
func RateLimited(until time.Time) ConnectionStatus {
	return ConnectionStatus{Kind: StatusRateLimited, RetryAfter: until}
}

// IsActive reports whether a refresh could be in progress or healthy,
// i.e. the statuses flipped to an error when the network drops.
func (s ConnectionStatus) IsActive() bool {
	switch s.Kind {
	case StatusConnecting, StatusSyncing, StatusConnected:
		return true
	}
	return false
}

type InvoiceItem struct {
	Cents       int    `json:"cents"`
	Description string `json:"description"`
}

// Invoice is a provider's itemized monthly spend snapshot. It is immutable
// once fetched and replaced wholesale on each refresh.
type Invoice struct {
	Items              []InvoiceItem `json:"items"`
	PricingDescription string        `json:"pricing_description,omitempty"`
	Month              int           `json:"month"` // zero-based, matching the Cursor API
	Year               int           `json:"year"`
}

func (i Invoice) TotalCents() int {
	total := 0
	for _, item := range i.Items {
		total += item.Cents
	}
	return total
}

func (i Invoice) TotalUSD() float64 {
	return float64(i.TotalCents()) / 100.0
}

type UsageData struct {
	Provider        Provider  `json:"provider"`
	CurrentRequests int       `json:"current_requests"`
	TotalRequests   int       `json:"total_requests"`
	MaxRequests     *int      `json:"max_requests,omitempty"`
	StartOfMonth    time.Time `json:"start_of_month"`
}

// PercentUsed returns -1 when no quota is known.
func (u UsageData) PercentUsed() float64 {
	if u.MaxRequests == nil || *u.MaxRequests <= 0 {
		return -1
	}
	return float64(u.CurrentRequests) / float64(*u.MaxRequests) * 100
}

// LogEntry is one usage record parsed from a local JSONL conversation log.
// Entries are ephemeral: parsed per refresh, aggregated in memory, never
// persisted.
type LogEntry struct {
	Timestamp           time.Time
	Model               string
	InputTokens         int
	OutputTokens        int
	CacheCreationTokens int
	CacheReadTokens     int
	CostUSD             float64
	ProjectName         string
}

func (e LogEntry) TotalTokens() int {
	return e.InputTokens + e.OutputTokens + e.CacheCreationTokens + e.CacheReadTokens
}

// ProviderSession tracks a provider's authenticated identity. Mirrored in
// the persistent session store; cleared together with spending data on
// logout or unrecoverable auth failure.
type ProviderSession struct {
	Provider  Provider `json:"provider"`
	TeamID    int      `json:"team_id,omitempty"`
	TeamName  string   `json:"team_name,omitempty"`
	UserEmail string   `json:"user_email,omitempty"`
	IsActive  bool     `json:"is_active"`
}

// SpendingData is the per-provider aggregate the UI reads. Mutated only by
// the orchestrator after a fetch cycle.
type SpendingData struct {
	Provider              Provider         `json:"provider"`
	CurrentSpendingUSD    *float64         `json:"current_spending_usd,omitempty"`
	DisplaySpending       float64          `json:"display_spending"`
	DisplayCurrency       string           `json:"display_currency"`
	LatestInvoice         *Invoice         `json:"latest_invoice,omitempty"`
	Usage                 *UsageData       `json:"usage,omitempty"`
	Status                ConnectionStatus `json:"status"`
	LastSuccessfulRefresh time.Time        `json:"last_successful_refresh,omitzero"`
}

type UserInfo struct {
	Email  string `json:"email"`
	TeamID *int   `json:"team_id,omitempty"`
}

type TeamInfo struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// FallbackTeam substitutes for a failed team fetch so that a user with
// valid auth but no team data still sees personal spend.
func FallbackTeam() TeamInfo {
	return TeamInfo{ID: 0, Name: "Individual Account"}
}

func EmptyUsage(p Provider) UsageData {
	now := time.Now()
	return UsageData{
		Provider:     p,
		StartOfMonth: time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location()),
	}
}
