package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

var errMissingID = errors.New("api: id is required")

func requireID(id string) error {
	if strings.TrimSpace(id) == "" {
		return errMissingID
	}
	return nil
}

// CreateCampaign creates a campaign in its initial (draft) state.
func (c *Client) CreateCampaign(ctx context.Context, req CampaignRequest) (*Campaign, error) {
	var out Campaign
	if err := c.Do(ctx, http.MethodPost, Path("campaigns"), req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetCampaign fetches one campaign.
func (c *Client) GetCampaign(ctx context.Context, id string) (*Campaign, error) {
	if err := requireID(id); err != nil {
		return nil, err
	}
	var out Campaign
	if err := c.Do(ctx, http.MethodGet, Path("campaigns", id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListCampaigns lists the caller's campaigns.
func (c *Client) ListCampaigns(ctx context.Context) ([]Campaign, error) {
	var out []Campaign
	if err := c.List(ctx, Path("campaigns"), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// FundCampaign pre-funds a campaign's escrow.
func (c *Client) FundCampaign(ctx context.Context, id string, amount float64) (*Campaign, error) {
	if err := requireID(id); err != nil {
		return nil, err
	}
	var out Campaign
	if err := c.Do(ctx, http.MethodPost, Path("campaigns", id, "fund"), FundRequest{Amount: amount}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// LaunchCampaign activates a funded campaign.
func (c *Client) LaunchCampaign(ctx context.Context, id string) (*Campaign, error) {
	if err := requireID(id); err != nil {
		return nil, err
	}
	var out Campaign
	if err := c.Do(ctx, http.MethodPost, Path("campaigns", id, "launch"), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateCompanyApplication submits a company application.
func (c *Client) CreateCompanyApplication(ctx context.Context, app CompanyApplication) (*CompanyApplication, error) {
	var out CompanyApplication
	if err := c.Do(ctx, http.MethodPost, Path("company-applications"), app, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetApplication fetches a company application by id.
func (c *Client) GetApplication(ctx context.Context, id string) (*CompanyApplication, error) {
	if err := requireID(id); err != nil {
		return nil, err
	}
	var out CompanyApplication
	if err := c.Do(ctx, http.MethodGet, Path("company-applications", id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateNonprofitApplication submits a nonprofit application.
func (c *Client) CreateNonprofitApplication(ctx context.Context, app NonprofitApplication) (*NonprofitApplication, error) {
	var out NonprofitApplication
	if err := c.Do(ctx, http.MethodPost, Path("nonprofit-applications"), app, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CompleteOnboarding finishes company onboarding.
func (c *Client) CompleteOnboarding(ctx context.Context, o Onboarding) (*Company, error) {
	var out Company
	if err := c.Do(ctx, http.MethodPost, Path("onboarding"), o, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateMatchingRules replaces a company's matching rules.
func (c *Client) UpdateMatchingRules(ctx context.Context, companyID string, rules MatchingRules) (*MatchingRules, error) {
	if err := requireID(companyID); err != nil {
		return nil, err
	}
	var out MatchingRules
	if err := c.Do(ctx, http.MethodPut, Path("matching-rules", companyID), rules, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListDonations lists donations visible to the caller.
func (c *Client) ListDonations(ctx context.Context) ([]Donation, error) {
	var out []Donation
	if err := c.List(ctx, Path("donations"), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListRewards lists reward offerings.
func (c *Client) ListRewards(ctx context.Context) ([]Reward, error) {
	var out []Reward
	if err := c.List(ctx, Path("rewards"), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListPayments lists payment orders.
func (c *Client) ListPayments(ctx context.Context) ([]Payment, error) {
	var out []Payment
	if err := c.List(ctx, Path("payments"), &out); err != nil {
		return nil, err
	}
	return out, nil
}
