// Package fetcher runs one provider's fetch sequence off the orchestrating
// goroutine: user identity first, then team, then invoice and usage in
// parallel. It returns results; it never touches shared state.
package fetcher

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/spendbar/spendbar/internal/core"
	"github.com/spendbar/spendbar/internal/provider"
)

type Result struct {
	UserInfo core.UserInfo
	TeamInfo core.TeamInfo
	Invoice  core.Invoice
	Usage    core.UsageData

	// TeamFellBack notes that the fallback team was substituted, so the
	// orchestrator can annotate a warning without failing the cycle.
	TeamFellBack bool
}

// ProcessProviderData fetches a provider's full data set. Only a user-info
// or invoice failure aborts the cycle; team and usage failures degrade to
// fallback values.
func ProcessProviderData(ctx context.Context, p core.Provider, token string, client provider.Client) (Result, error) {
	var result Result

	userInfo, err := client.FetchUserInfo(ctx, token)
	if err != nil {
		return Result{}, err
	}
	result.UserInfo = userInfo

	teamInfo, err := client.FetchTeamInfo(ctx, token)
	if err != nil {
		log.Printf("[fetcher] %s team fetch failed, using fallback: %v", p, err)
		teamInfo = core.FallbackTeam()
		result.TeamFellBack = true
	}
	result.TeamInfo = teamInfo

	now := time.Now()
	month := int(now.Month()) - 1 // the invoice API counts months from zero
	year := now.Year()

	var (
		wg         sync.WaitGroup
		invoice    core.Invoice
		invoiceErr error
		usage      core.UsageData
		usageErr   error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		invoice, invoiceErr = client.FetchMonthlyInvoice(ctx, token, month, year, teamInfo.ID)
	}()
	go func() {
		defer wg.Done()
		usage, usageErr = client.FetchUsageData(ctx, token)
	}()
	wg.Wait()

	if invoiceErr != nil {
		return Result{}, invoiceErr
	}
	result.Invoice = invoice

	if usageErr != nil {
		log.Printf("[fetcher] %s usage fetch failed, using zero usage: %v", p, usageErr)
		usage = core.EmptyUsage(p)
	}
	result.Usage = usage

	return result, nil
}
