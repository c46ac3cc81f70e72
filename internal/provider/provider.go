// Package provider defines the common client contract every billing/usage
// source adapts to, plus the error taxonomy the orchestrator classifies on.
package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/spendbar/spendbar/internal/core"
)

var (
	// ErrUnauthorized means the token was rejected. Fatal to the session.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrNoTeamFound means auth succeeded but no team is available.
	// Non-fatal; callers substitute the fallback team.
	ErrNoTeamFound = errors.New("no team found")

	// ErrRateLimited means the source asked us to back off. No retry is
	// scheduled; the next natural timer tick picks it up.
	ErrRateLimited = errors.New("rate limit exceeded")
)

// APIError carries the status and body of a non-auth HTTP failure or a
// malformed response. Classified as a generic network error.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

// Client is one provider's fetch surface. Calls are pure fetches; the
// caller owns all persistence.
type Client interface {
	Provider() core.Provider
	FetchUserInfo(ctx context.Context, token string) (core.UserInfo, error)
	FetchTeamInfo(ctx context.Context, token string) (core.TeamInfo, error)
	FetchMonthlyInvoice(ctx context.Context, token string, month, year int, teamID int) (core.Invoice, error)
	FetchUsageData(ctx context.Context, token string) (core.UsageData, error)
	ValidateToken(ctx context.Context, token string) error
}
