package claudecode

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spendbar/spendbar/internal/core"
	"github.com/spendbar/spendbar/internal/provider"
)

func writeFixture(t *testing.T, dir string, lines ...string) string {
	t.Helper()
	projects := filepath.Join(dir, "projects", "myapp")
	if err := os.MkdirAll(projects, 0o755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(projects, "session.jsonl")
	content := ""
	for _, l := range lines {
		content += l + "\n"
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func usageLine(ts time.Time, model string, in, out int) string {
	return fmt.Sprintf(
		`{"type":"assistant","timestamp":%q,"message":{"model":%q,"usage":{"input_tokens":%d,"output_tokens":%d}}}`,
		ts.Format(time.RFC3339), model, in, out)
}

func TestFetchUserInfoFromAccountFile(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir)
	acctPath := filepath.Join(dir, "account.json")
	os.WriteFile(acctPath, []byte(`{"oauthAccount":{"emailAddress":"dev@example.com","organizationUuid":"abc","organizationName":"Acme"}}`), 0o644)

	c := NewForTest(dir, acctPath, nil)

	info, err := c.FetchUserInfo(context.Background(), "")
	if err != nil {
		t.Fatal(err)
	}
	if info.Email != "dev@example.com" {
		t.Errorf("Email = %q", info.Email)
	}

	team, err := c.FetchTeamInfo(context.Background(), "")
	if err != nil {
		t.Fatal(err)
	}
	if team.Name != "Acme" || team.ID != 0 {
		t.Errorf("team = %+v", team)
	}
}

func TestFetchTeamInfoWithoutOrganization(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir)
	c := NewForTest(dir, filepath.Join(dir, "missing.json"), nil)

	_, err := c.FetchTeamInfo(context.Background(), "")
	if !errors.Is(err, provider.ErrNoTeamFound) {
		t.Errorf("err = %v, want ErrNoTeamFound", err)
	}
}

func TestMissingDirectoryGrantIsUnauthorized(t *testing.T) {
	c := NewForTest(filepath.Join(t.TempDir(), "nope"), "", nil)

	if err := c.ValidateToken(context.Background(), ""); !errors.Is(err, provider.ErrUnauthorized) {
		t.Errorf("err = %v, want ErrUnauthorized", err)
	}
	if _, err := c.FetchUserInfo(context.Background(), ""); !errors.Is(err, provider.ErrUnauthorized) {
		t.Errorf("err = %v, want ErrUnauthorized", err)
	}
}

func TestFetchUsageDataFiveHourWindow(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)

	writeFixture(t, dir,
		usageLine(now.Add(-1*time.Hour), "claude-sonnet-4", 1000, 500),   // in window
		usageLine(now.Add(-4*time.Hour), "claude-sonnet-4", 2000, 1000),  // in window
		usageLine(now.Add(-6*time.Hour), "claude-sonnet-4", 50000, 9000), // outside window, same month
		usageLine(now.AddDate(0, -1, 0), "claude-sonnet-4", 7, 3),        // previous month
	)

	c := NewForTest(dir, "", func() time.Time { return now })

	usage, err := c.FetchUsageData(context.Background(), "")
	if err != nil {
		t.Fatal(err)
	}
	if usage.CurrentRequests != 4500 {
		t.Errorf("window tokens = %d, want 4500", usage.CurrentRequests)
	}
	if usage.TotalRequests != 63500 {
		t.Errorf("month tokens = %d, want 63500", usage.TotalRequests)
	}
	if usage.MaxRequests == nil || *usage.MaxRequests != defaultWindowTokenLimit {
		t.Errorf("MaxRequests = %v", usage.MaxRequests)
	}
	if usage.Provider != core.ProviderClaude {
		t.Errorf("Provider = %s", usage.Provider)
	}
}

func TestFetchMonthlyInvoiceAggregatesByModelFamily(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)

	writeFixture(t, dir,
		// 1M input sonnet tokens = $3.00 estimated
		usageLine(now.Add(-time.Hour), "claude-sonnet-4", 1_000_000, 0),
		// 1M output opus tokens = $75.00 estimated
		usageLine(now.Add(-2*time.Hour), "claude-opus-4", 0, 1_000_000),
		// previous month, excluded
		usageLine(now.AddDate(0, -1, 0), "claude-sonnet-4", 1_000_000, 0),
	)

	c := NewForTest(dir, "", func() time.Time { return now })

	// month is zero-based: January = 0.
	invoice, err := c.FetchMonthlyInvoice(context.Background(), "", 0, 2025, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(invoice.Items) != 2 {
		t.Fatalf("items = %+v", invoice.Items)
	}
	if invoice.Items[0].Description != "opus" || invoice.Items[0].Cents != 7500 {
		t.Errorf("opus item = %+v", invoice.Items[0])
	}
	if invoice.Items[1].Description != "sonnet" || invoice.Items[1].Cents != 300 {
		t.Errorf("sonnet item = %+v", invoice.Items[1])
	}
}

func TestExplicitCostOverridesEstimate(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)

	line := fmt.Sprintf(
		`{"type":"assistant","timestamp":%q,"costUSD":1.25,"message":{"model":"claude-sonnet-4","usage":{"input_tokens":10,"output_tokens":10}}}`,
		now.Add(-time.Hour).Format(time.RFC3339))
	writeFixture(t, dir, line)

	c := NewForTest(dir, "", func() time.Time { return now })

	invoice, err := c.FetchMonthlyInvoice(context.Background(), "", 0, 2025, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(invoice.Items) != 1 || invoice.Items[0].Cents != 125 {
		t.Errorf("items = %+v", invoice.Items)
	}
}

func TestModelFamily(t *testing.T) {
	tests := []struct {
		model string
		want  string
	}{
		{"claude-opus-4-20250514", "opus"},
		{"claude-sonnet-4", "sonnet"},
		{"claude-3-5-haiku-latest", "haiku"},
		{"", "unknown"},
		{"something-else", "something-else"},
	}
	for _, tt := range tests {
		if got := modelFamily(tt.model); got != tt.want {
			t.Errorf("modelFamily(%q) = %q, want %q", tt.model, got, tt.want)
		}
	}
}
