// Package cursor adapts the Cursor dashboard API to the provider client
// contract.
package cursor

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spendbar/spendbar/internal/core"
	"github.com/spendbar/spendbar/internal/provider"
)

const defaultAPIBase = "https://www.cursor.com"

type Client struct {
	apiBase    string
	httpClient *http.Client
}

func New() *Client {
	return &Client{
		apiBase:    defaultAPIBase,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// NewWithBase is used by tests to point at a local server.
func NewWithBase(apiBase string, httpClient *http.Client) *Client {
	c := New()
	c.apiBase = apiBase
	if httpClient != nil {
		c.httpClient = httpClient
	}
	return c
}

func (c *Client) Provider() core.Provider { return core.ProviderCursor }

type meResponse struct {
	Email  string `json:"email"`
	TeamID *int   `json:"teamId"`
}

type teamsResponse struct {
	Teams []struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
	} `json:"teams"`
}

type invoiceResponse struct {
	Items []struct {
		Cents       int    `json:"cents"`
		Description string `json:"description"`
	} `json:"items"`
	PricingDescription string `json:"pricingDescription"`
}

type usageResponse struct {
	GPT4 struct {
		NumRequests      int `json:"numRequests"`
		NumRequestsTotal int `json:"numRequestsTotal"`
		MaxRequestUsage  *int `json:"maxRequestUsage"`
	} `json:"gpt-4"`
	StartOfMonth string `json:"startOfMonth"`
}

func (c *Client) FetchUserInfo(ctx context.Context, token string) (core.UserInfo, error) {
	var resp meResponse
	if err := c.get(ctx, token, "/api/me", &resp); err != nil {
		return core.UserInfo{}, err
	}
	return core.UserInfo{Email: resp.Email, TeamID: resp.TeamID}, nil
}

// FetchTeamInfo returns the first team of the account; an empty team list
// maps to ErrNoTeamFound.
func (c *Client) FetchTeamInfo(ctx context.Context, token string) (core.TeamInfo, error) {
	var resp teamsResponse
	if err := c.get(ctx, token, "/api/teams", &resp); err != nil {
		return core.TeamInfo{}, err
	}
	if len(resp.Teams) == 0 {
		return core.TeamInfo{}, provider.ErrNoTeamFound
	}
	first := resp.Teams[0]
	return core.TeamInfo{ID: first.ID, Name: first.Name}, nil
}

// FetchMonthlyInvoice queries the month's spend. month is zero-based,
// matching the API. teamID 0 (the fallback team) queries personal spend.
func (c *Client) FetchMonthlyInvoice(ctx context.Context, token string, month, year int, teamID int) (core.Invoice, error) {
	path := fmt.Sprintf("/api/usage-by-model/get-team-month?month=%d&teamId=%d&year=%d", month, teamID, year)

	var resp invoiceResponse
	if err := c.get(ctx, token, path, &resp); err != nil {
		return core.Invoice{}, err
	}

	invoice := core.Invoice{
		PricingDescription: resp.PricingDescription,
		Month:              month,
		Year:               year,
	}
	for _, item := range resp.Items {
		invoice.Items = append(invoice.Items, core.InvoiceItem{
			Cents:       item.Cents,
			Description: item.Description,
		})
	}
	return invoice, nil
}

func (c *Client) FetchUsageData(ctx context.Context, token string) (core.UsageData, error) {
	var resp usageResponse
	if err := c.get(ctx, token, "/api/usage", &resp); err != nil {
		return core.UsageData{}, err
	}

	start, err := time.Parse(time.RFC3339, resp.StartOfMonth)
	if err != nil {
		now := time.Now()
		start = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	}

	return core.UsageData{
		Provider:        core.ProviderCursor,
		CurrentRequests: resp.GPT4.NumRequests,
		TotalRequests:   resp.GPT4.NumRequestsTotal,
		MaxRequests:     resp.GPT4.MaxRequestUsage,
		StartOfMonth:    start,
	}, nil
}

func (c *Client) ValidateToken(ctx context.Context, token string) error {
	_, err := c.FetchUserInfo(ctx, token)
	return err
}

func (c *Client) get(ctx context.Context, token, path string, result interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiBase+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return provider.ErrUnauthorized
	case resp.StatusCode == http.StatusTooManyRequests:
		return provider.ErrRateLimited
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &provider.APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		// Malformed server response, treated like any other network error.
		return &provider.APIError{StatusCode: resp.StatusCode, Body: fmt.Sprintf("decoding response: %v", err)}
	}
	return nil
}
