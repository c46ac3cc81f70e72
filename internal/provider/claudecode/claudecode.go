// Package claudecode adapts the Claude Code CLI's local JSONL logs to the
// provider client contract. There is no remote auth: access to the granted
// log directory stands in for a token, and the fetch calls synthesize
// responses from parsed log aggregates.
package claudecode

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spendbar/spendbar/internal/core"
	"github.com/spendbar/spendbar/internal/logparse"
	"github.com/spendbar/spendbar/internal/provider"
)

// usageWindow is the trailing window Claude Code bills session usage in.
const usageWindow = 5 * time.Hour

// defaultWindowTokenLimit approximates a Pro-plan 5-hour token budget; the
// exact quota is not published, so this only drives the usage percentage.
const defaultWindowTokenLimit = 220_000

type Client struct {
	root        string // granted directory, typically ~/.claude
	accountPath string // ~/.claude.json
	windowLimit int
	now         func() time.Time
}

func New(root string) *Client {
	home, _ := os.UserHomeDir()
	accountPath := filepath.Join(home, ".claude.json")
	if root == "" {
		root = filepath.Join(home, ".claude")
	}
	return &Client{
		root:        root,
		accountPath: accountPath,
		windowLimit: defaultWindowTokenLimit,
		now:         time.Now,
	}
}

// NewForTest builds a client rooted at a fixture directory with a frozen
// clock.
func NewForTest(root, accountPath string, now func() time.Time) *Client {
	c := New(root)
	c.accountPath = accountPath
	if now != nil {
		c.now = now
	}
	return c
}

func (c *Client) Provider() core.Provider { return core.ProviderClaude }

// ProjectsDir is where the conversation JSONL files live; the log watcher
// observes it.
func (c *Client) ProjectsDir() string {
	return filepath.Join(c.root, "projects")
}

type accountFile struct {
	OAuthAccount *struct {
		EmailAddress     string `json:"emailAddress"`
		OrganizationUUID string `json:"organizationUuid"`
		OrganizationName string `json:"organizationName"`
	} `json:"oauthAccount"`
}

// FetchUserInfo reads the CLI's account file. A missing directory grant
// maps to unauthorized, the local analogue of a rejected token.
func (c *Client) FetchUserInfo(ctx context.Context, _ string) (core.UserInfo, error) {
	if err := c.checkAccess(); err != nil {
		return core.UserInfo{}, err
	}

	data, err := os.ReadFile(c.accountPath)
	if err != nil {
		// No account file is still a valid local install; identify by path.
		return core.UserInfo{Email: filepath.Base(c.root)}, nil
	}

	var acct accountFile
	if err := json.Unmarshal(data, &acct); err != nil {
		return core.UserInfo{Email: filepath.Base(c.root)}, nil
	}
	if acct.OAuthAccount != nil && acct.OAuthAccount.EmailAddress != "" {
		return core.UserInfo{Email: acct.OAuthAccount.EmailAddress}, nil
	}
	return core.UserInfo{Email: filepath.Base(c.root)}, nil
}

// FetchTeamInfo synthesizes a team from the OAuth organization when one is
// recorded, otherwise reports no team so the caller substitutes the
// fallback.
func (c *Client) FetchTeamInfo(ctx context.Context, _ string) (core.TeamInfo, error) {
	if err := c.checkAccess(); err != nil {
		return core.TeamInfo{}, err
	}

	data, err := os.ReadFile(c.accountPath)
	if err != nil {
		return core.TeamInfo{}, provider.ErrNoTeamFound
	}
	var acct accountFile
	if err := json.Unmarshal(data, &acct); err != nil {
		return core.TeamInfo{}, provider.ErrNoTeamFound
	}
	if acct.OAuthAccount == nil || acct.OAuthAccount.OrganizationUUID == "" {
		return core.TeamInfo{}, provider.ErrNoTeamFound
	}

	name := acct.OAuthAccount.OrganizationName
	if name == "" {
		name = "Claude Code"
	}
	return core.TeamInfo{ID: 0, Name: name}, nil
}

// FetchMonthlyInvoice aggregates the month's log entries by model into
// invoice items. Entries without an explicit cost get an API-equivalent
// estimate.
func (c *Client) FetchMonthlyInvoice(ctx context.Context, _ string, month, year int, _ int) (core.Invoice, error) {
	entries, err := c.collectEntries(ctx)
	if err != nil {
		return core.Invoice{}, err
	}

	costByModel := make(map[string]float64)
	for _, e := range entries {
		// month is zero-based to match the remote provider's API.
		if int(e.Timestamp.Month())-1 != month || e.Timestamp.Year() != year {
			continue
		}
		cost := e.CostUSD
		if cost == 0 {
			cost = estimateCost(e)
		}
		costByModel[modelFamily(e.Model)] += cost
	}

	models := make([]string, 0, len(costByModel))
	for m := range costByModel {
		models = append(models, m)
	}
	sort.Strings(models)

	invoice := core.Invoice{
		PricingDescription: "API-equivalent estimate from local logs",
		Month:              month,
		Year:               year,
	}
	for _, m := range models {
		cents := int(costByModel[m]*100 + 0.5)
		if cents == 0 {
			continue
		}
		invoice.Items = append(invoice.Items, core.InvoiceItem{Cents: cents, Description: m})
	}
	return invoice, nil
}

// FetchUsageData reports token consumption inside the trailing 5-hour
// window against the estimated window budget.
func (c *Client) FetchUsageData(ctx context.Context, _ string) (core.UsageData, error) {
	entries, err := c.collectEntries(ctx)
	if err != nil {
		return core.UsageData{}, err
	}

	now := c.now()
	windowStart := now.Add(-usageWindow)
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())

	windowTokens := 0
	monthTokens := 0
	for _, e := range entries {
		if e.Timestamp.After(windowStart) {
			windowTokens += e.TotalTokens()
		}
		if e.Timestamp.After(monthStart) {
			monthTokens += e.TotalTokens()
		}
	}

	limit := c.windowLimit
	return core.UsageData{
		Provider:        core.ProviderClaude,
		CurrentRequests: windowTokens,
		TotalRequests:   monthTokens,
		MaxRequests:     &limit,
		StartOfMonth:    monthStart,
	}, nil
}

// ValidateToken checks the directory grant.
func (c *Client) ValidateToken(ctx context.Context, _ string) error {
	return c.checkAccess()
}

func (c *Client) checkAccess() error {
	info, err := os.Stat(c.root)
	if err != nil || !info.IsDir() {
		return provider.ErrUnauthorized
	}
	return nil
}

func (c *Client) collectEntries(ctx context.Context) ([]core.LogEntry, error) {
	if err := c.checkAccess(); err != nil {
		return nil, err
	}

	var files []string
	root := c.ProjectsDir()
	_ = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // unreadable subtree, keep going
		}
		if !info.IsDir() && strings.HasSuffix(path, ".jsonl") {
			files = append(files, path)
		}
		return nil
	})
	// A granted directory with no logs yet is a fresh install, not an
	// error; it aggregates to a zero invoice.
	var entries []core.LogEntry
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		project := projectFromPath(root, path)
		for _, e := range parseFile(path) {
			if e.ProjectName == "" {
				e.ProjectName = project
			}
			entries = append(entries, e)
		}
	}
	return entries, nil
}

func parseFile(path string) []core.LogEntry {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	var entries []core.LogEntry
	scanner := bufio.NewScanner(f)
	buf := make([]byte, 0, 256*1024)
	scanner.Buffer(buf, 10*1024*1024) // some conversation lines are huge

	for scanner.Scan() {
		if entry, ok := logparse.Parse(scanner.Bytes()); ok {
			entries = append(entries, entry)
		}
	}
	return entries
}

func projectFromPath(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return ""
	}
	parts := strings.Split(rel, string(filepath.Separator))
	if len(parts) > 1 {
		return parts[0]
	}
	return ""
}
