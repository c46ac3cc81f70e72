package fetcher

import (
	"context"
	"errors"
	"testing"

	"github.com/spendbar/spendbar/internal/core"
	"github.com/spendbar/spendbar/internal/provider"
)

type fakeClient struct {
	userErr    error
	teamErr    error
	invoiceErr error
	usageErr   error
}

func (f *fakeClient) Provider() core.Provider { return core.ProviderCursor }

func (f *fakeClient) FetchUserInfo(ctx context.Context, token string) (core.UserInfo, error) {
	if f.userErr != nil {
		return core.UserInfo{}, f.userErr
	}
	return core.UserInfo{Email: "dev@example.com"}, nil
}

func (f *fakeClient) FetchTeamInfo(ctx context.Context, token string) (core.TeamInfo, error) {
	if f.teamErr != nil {
		return core.TeamInfo{}, f.teamErr
	}
	return core.TeamInfo{ID: 42, Name: "Alpha"}, nil
}

func (f *fakeClient) FetchMonthlyInvoice(ctx context.Context, token string, month, year, teamID int) (core.Invoice, error) {
	if f.invoiceErr != nil {
		return core.Invoice{}, f.invoiceErr
	}
	return core.Invoice{
		Items: []core.InvoiceItem{{Cents: 1234, Description: "gpt-4"}},
		Month: month,
		Year:  year,
	}, nil
}

func (f *fakeClient) FetchUsageData(ctx context.Context, token string) (core.UsageData, error) {
	if f.usageErr != nil {
		return core.UsageData{}, f.usageErr
	}
	return core.UsageData{Provider: core.ProviderCursor, CurrentRequests: 10}, nil
}

func (f *fakeClient) ValidateToken(ctx context.Context, token string) error { return nil }

func TestProcessHappyPath(t *testing.T) {
	result, err := ProcessProviderData(context.Background(), core.ProviderCursor, "tok", &fakeClient{})
	if err != nil {
		t.Fatal(err)
	}
	if result.UserInfo.Email != "dev@example.com" {
		t.Errorf("UserInfo = %+v", result.UserInfo)
	}
	if result.TeamInfo.ID != 42 || result.TeamFellBack {
		t.Errorf("TeamInfo = %+v fellBack=%v", result.TeamInfo, result.TeamFellBack)
	}
	if result.Invoice.TotalCents() != 1234 {
		t.Errorf("Invoice = %+v", result.Invoice)
	}
	if result.Usage.CurrentRequests != 10 {
		t.Errorf("Usage = %+v", result.Usage)
	}
}

func TestUserInfoFailureIsFatal(t *testing.T) {
	_, err := ProcessProviderData(context.Background(), core.ProviderCursor, "tok",
		&fakeClient{userErr: provider.ErrUnauthorized})
	if !errors.Is(err, provider.ErrUnauthorized) {
		t.Errorf("err = %v, want ErrUnauthorized", err)
	}
}

func TestTeamFailureSubstitutesFallback(t *testing.T) {
	result, err := ProcessProviderData(context.Background(), core.ProviderCursor, "tok",
		&fakeClient{teamErr: provider.ErrNoTeamFound})
	if err != nil {
		t.Fatal(err)
	}
	if !result.TeamFellBack {
		t.Error("expected TeamFellBack")
	}
	if result.TeamInfo.ID != 0 || result.TeamInfo.Name != "Individual Account" {
		t.Errorf("TeamInfo = %+v", result.TeamInfo)
	}
}

func TestInvoiceFailureIsFatal(t *testing.T) {
	wantErr := &provider.APIError{StatusCode: 500, Body: "boom"}
	_, err := ProcessProviderData(context.Background(), core.ProviderCursor, "tok",
		&fakeClient{invoiceErr: wantErr})
	var apiErr *provider.APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != 500 {
		t.Errorf("err = %v, want the invoice APIError", err)
	}
}

func TestUsageFailureSubstitutesZeroUsage(t *testing.T) {
	result, err := ProcessProviderData(context.Background(), core.ProviderCursor, "tok",
		&fakeClient{usageErr: errors.New("timeout")})
	if err != nil {
		t.Fatal(err)
	}
	if result.Usage.CurrentRequests != 0 || result.Usage.TotalRequests != 0 {
		t.Errorf("Usage = %+v, want zero usage", result.Usage)
	}
	if result.Usage.Provider != core.ProviderCursor {
		t.Errorf("Usage.Provider = %s", result.Usage.Provider)
	}
}
