package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zdunecki/matchfund/pkg/api"
	"github.com/zdunecki/matchfund/pkg/api/apitest"
	"github.com/zdunecki/matchfund/pkg/config"
)

func newClient(t *testing.T, baseURL string, mutate ...func(*config.API)) *api.Client {
	t.Helper()
	cfg := config.API{
		BaseURL:  baseURL,
		Token:    "secret-token",
		Timeout:  5 * time.Second,
		RetryMax: 2,
	}
	for _, m := range mutate {
		m(&cfg)
	}
	c, err := api.New(cfg)
	require.NoError(t, err)
	return c
}

func startBackend(t *testing.T) (*apitest.Backend, *api.Client) {
	t.Helper()
	b := apitest.NewBackend()
	srv := b.Start()
	t.Cleanup(srv.Close)
	return b, newClient(t, srv.URL)
}

func TestNewRejectsInvalidBaseURL(t *testing.T) {
	for _, u := range []string{"", "localhost", "://nope"} {
		_, err := api.New(config.API{BaseURL: u})
		assert.Error(t, err, u)
	}
}

func TestBaseURLIsNormalized(t *testing.T) {
	c := newClient(t, "  https://api.example.org/ ")
	assert.Equal(t, "https://api.example.org", c.BaseURL())
}

func TestPath(t *testing.T) {
	assert.Equal(t, "/api/campaigns/", api.Path("campaigns"))
	assert.Equal(t, "/api/campaigns/7/fund/", api.Path("campaigns", "7", "fund"))
	assert.Equal(t, "/api/a%20b/", api.Path("/a b/"))
}

func TestBearerTokenIsSent(t *testing.T) {
	b, c := startBackend(t)

	_, err := c.ListCampaigns(context.Background())
	require.NoError(t, err)
	_, err = c.CreateCampaign(context.Background(), api.CampaignRequest{Name: "Spring"})
	require.NoError(t, err)

	headers := b.AuthHeaders()
	require.Len(t, headers, 2)
	for _, h := range headers {
		assert.Equal(t, "Bearer secret-token", h)
	}
}

func TestCampaignLifecycleCalls(t *testing.T) {
	b, c := startBackend(t)
	ctx := context.Background()

	created, err := c.CreateCampaign(ctx, api.CampaignRequest{Name: "Spring", BudgetCap: 5000})
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)
	assert.Equal(t, api.StatusDraft, created.Status)

	funded, err := c.FundCampaign(ctx, created.ID.String(), 1500)
	require.NoError(t, err)
	assert.Equal(t, api.StatusFunded, funded.Status)
	assert.Equal(t, 1500.0, funded.EscrowAmount)

	launched, err := c.LaunchCampaign(ctx, created.ID.String())
	require.NoError(t, err)
	assert.Equal(t, api.StatusActive, launched.Status)

	got, err := c.GetCampaign(ctx, created.ID.String())
	require.NoError(t, err)
	assert.Equal(t, "Spring", got.Name)

	assert.Equal(t, []string{
		apitest.OpCreateCampaign,
		apitest.OpFundCampaign,
		apitest.OpLaunchCampaign,
		apitest.OpGetCampaign,
	}, b.Calls())
}

func TestMissingIDIsRejectedLocally(t *testing.T) {
	b, c := startBackend(t)
	_, err := c.FundCampaign(context.Background(), " ", 10)
	require.Error(t, err)
	_, err = c.UpdateMatchingRules(context.Background(), "", api.MatchingRules{})
	require.Error(t, err)
	assert.Empty(t, b.Calls())
}

func TestListAcceptsBareArrayAndEnvelope(t *testing.T) {
	for _, envelope := range []bool{false, true} {
		b, c := startBackend(t)
		b.Envelope = envelope
		b.SetRewards([]api.Reward{{ID: "1", Title: "Mug", Claims: 4, Redemptions: 1}})

		rewards, err := c.ListRewards(context.Background())
		require.NoError(t, err, "envelope=%v", envelope)
		require.Len(t, rewards, 1)
		assert.Equal(t, "Mug", rewards[0].Title)
	}
}

func TestDecodeList(t *testing.T) {
	var out []api.Payment
	require.NoError(t, api.DecodeList([]byte(`[{"id":1,"amount":5}]`), &out))
	assert.Equal(t, api.ID("1"), out[0].ID)

	out = nil
	require.NoError(t, api.DecodeList([]byte(`{"count":1,"results":[{"id":"p-2","amount":7}]}`), &out))
	assert.Equal(t, api.ID("p-2"), out[0].ID)

	assert.Error(t, api.DecodeList([]byte(`{"items":[]}`), &out))
	assert.Error(t, api.DecodeList([]byte(`not json`), &out))
}

func TestIDAcceptsNumbersAndStrings(t *testing.T) {
	var v struct {
		A api.ID `json:"a"`
		B api.ID `json:"b"`
		C api.ID `json:"c"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":12,"b":"x-1","c":null}`), &v))
	assert.Equal(t, api.ID("12"), v.A)
	assert.Equal(t, api.ID("x-1"), v.B)
	assert.Equal(t, api.ID(""), v.C)
}

func TestErrorCarriesStatusAndBackendMessage(t *testing.T) {
	b, c := startBackend(t)
	b.Fail(apitest.OpCreateCampaign, http.StatusBadRequest, `{"detail":"Budget cap exceeds plan limit."}`)

	_, err := c.CreateCampaign(context.Background(), api.CampaignRequest{Name: "x"})
	require.Error(t, err)

	var apiErr *api.Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "Budget cap exceeds plan limit.", apiErr.UserMessage())
	assert.Equal(t, http.StatusBadRequest, api.StatusCode(err))
	assert.Contains(t, err.Error(), "POST /api/campaigns/")
}

func TestUserMessageKeys(t *testing.T) {
	cases := map[string]string{
		`{"message":"m"}`:              "m",
		`{"error":"e"}`:                "e",
		`{"non_field_errors":["nfe"]}`: "nfe",
		`{"name":["required"]}`:        "",
		`<html>oops</html>`:            "",
	}
	for body, want := range cases {
		e := &api.Error{StatusCode: 400, Body: []byte(body)}
		assert.Equal(t, want, e.UserMessage(), body)
	}
	assert.Equal(t, 0, api.StatusCode(errors.New("plain")))
}

func TestGetIsRetriedButWritesAreNot(t *testing.T) {
	var gets, posts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			if gets.Add(1) < 3 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			_, _ = w.Write([]byte(`[]`))
			return
		}
		posts.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)
	c := newClient(t, srv.URL)

	_, err := c.ListDonations(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 3, gets.Load())

	_, err = c.CreateCampaign(context.Background(), api.CampaignRequest{Name: "x"})
	require.Error(t, err)
	assert.EqualValues(t, 1, posts.Load())
	assert.Equal(t, http.StatusServiceUnavailable, api.StatusCode(err))
}

func TestGetKeepsLastResponseAfterRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"detail":"upstream down"}`))
	}))
	t.Cleanup(srv.Close)
	c := newClient(t, srv.URL, func(cfg *config.API) { cfg.RetryMax = 1 })

	_, err := c.ListPayments(context.Background())
	var apiErr *api.Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	assert.Equal(t, "upstream down", apiErr.UserMessage())
}

func TestCancelledContext(t *testing.T) {
	b, c := startBackend(t)
	gate := b.Gate(apitest.OpLaunchCampaign)
	defer close(gate)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := c.LaunchCampaign(ctx, "1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestApplicationsAndOnboarding(t *testing.T) {
	b, c := startBackend(t)
	ctx := context.Background()

	app, err := c.CreateCompanyApplication(ctx, api.CompanyApplication{CompanyName: "Acme", EmployeeCount: 10})
	require.NoError(t, err)
	fetched, err := c.GetApplication(ctx, app.ID.String())
	require.NoError(t, err)
	assert.Equal(t, "Acme", fetched.CompanyName)

	_, err = c.CreateNonprofitApplication(ctx, api.NonprofitApplication{OrganizationName: "Helpers", EIN: "123456789"})
	require.NoError(t, err)
	require.Len(t, b.NonprofitApplications(), 1)

	company, err := c.CompleteOnboarding(ctx, api.Onboarding{CompanyName: "Acme", MonthlyBudget: 1000})
	require.NoError(t, err)
	_, err = c.UpdateMatchingRules(ctx, company.ID.String(), api.MatchingRules{MatchRatio: 1})
	require.NoError(t, err)
	rules, ok := b.MatchingRules(company.ID.String())
	require.True(t, ok)
	assert.Equal(t, 1.0, rules.MatchRatio)
}
