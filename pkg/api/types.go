package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// ID accepts both numeric and string identifiers from the backend.
type ID string

func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("id: %w", err)
	}
	*id = ID(n.String())
	return nil
}

func (id ID) String() string { return string(id) }

// Campaign statuses as reported by the backend.
const (
	StatusDraft          = "draft"
	StatusPendingFunding = "pending_funding"
	StatusFunded         = "funded"
	StatusActive         = "active"
	StatusLaunched       = "launched"
)

// Campaign is a company's matching campaign.
type Campaign struct {
	ID                  ID       `json:"id"`
	Name                string   `json:"name"`
	Description         string   `json:"description,omitempty"`
	Status              string   `json:"status"`
	StartDate           string   `json:"start_date"`
	EndDate             string   `json:"end_date"`
	MatchMultiplier     float64  `json:"match_multiplier"`
	MaxMatchPerDonation float64  `json:"max_match_per_donation"`
	BudgetCap           float64  `json:"budget_cap"`
	EscrowAmount        float64  `json:"escrow_amount"`
	MatchedAmount       float64  `json:"matched_amount"`
	Causes              []string `json:"causes,omitempty"`
}

// CampaignRequest is the create-campaign payload.
type CampaignRequest struct {
	Name                string   `json:"name"`
	Description         string   `json:"description,omitempty"`
	StartDate           string   `json:"start_date"`
	EndDate             string   `json:"end_date"`
	MatchMultiplier     float64  `json:"match_multiplier"`
	MaxMatchPerDonation float64  `json:"max_match_per_donation"`
	BudgetCap           float64  `json:"budget_cap"`
	EscrowAmount        float64  `json:"escrow_amount"`
	Causes              []string `json:"causes"`
}

// FundRequest pre-funds a campaign's escrow.
type FundRequest struct {
	Amount float64 `json:"amount"`
}

// CompanyApplication is a company's request to join the platform.
type CompanyApplication struct {
	ID            ID     `json:"id,omitempty"`
	CompanyName   string `json:"company_name"`
	Website       string `json:"website,omitempty"`
	ContactName   string `json:"contact_name"`
	ContactEmail  string `json:"contact_email"`
	EmployeeCount int    `json:"employee_count"`
	Description   string `json:"description"`
	Status        string `json:"status,omitempty"`
}

// NonprofitApplication is a nonprofit's request to join the platform.
type NonprofitApplication struct {
	ID               ID       `json:"id,omitempty"`
	OrganizationName string   `json:"organization_name"`
	EIN              string   `json:"ein"`
	Website          string   `json:"website,omitempty"`
	Mission          string   `json:"mission"`
	ContactEmail     string   `json:"contact_email"`
	Causes           []string `json:"causes"`
	Status           string   `json:"status,omitempty"`
}

// Onboarding is the complete-onboarding payload.
type Onboarding struct {
	CompanyName    string   `json:"company_name"`
	Industry       string   `json:"industry"`
	ContactName    string   `json:"contact_name"`
	ContactEmail   string   `json:"contact_email"`
	Causes         []string `json:"causes"`
	MonthlyBudget  float64  `json:"monthly_budget"`
	InitialFunding float64  `json:"initial_funding"`
}

// Company is what complete-onboarding returns.
type Company struct {
	ID     ID     `json:"id"`
	Name   string `json:"name"`
	Status string `json:"status,omitempty"`
}

// MatchingRules configures how a company matches employee donations.
type MatchingRules struct {
	MatchRatio     float64  `json:"match_ratio"`
	PerEmployeeCap float64  `json:"per_employee_cap"`
	EligibleCauses []string `json:"eligible_causes,omitempty"`
}

// Donation is a donation with its matched contribution.
type Donation struct {
	ID            ID      `json:"id"`
	Donor         string  `json:"donor"`
	Nonprofit     string  `json:"nonprofit"`
	CampaignID    ID      `json:"campaign_id,omitempty"`
	Amount        float64 `json:"amount"`
	MatchedAmount float64 `json:"matched_amount"`
	CreatedAt     string  `json:"created_at"`
}

// Reward is a reward offering with its claim counters.
type Reward struct {
	ID          ID     `json:"id"`
	Title       string `json:"title"`
	Points      int    `json:"points"`
	Claims      int    `json:"claims"`
	Redemptions int    `json:"redemptions"`
}

// Payment is a payment order.
type Payment struct {
	ID        ID      `json:"id"`
	Amount    float64 `json:"amount"`
	Status    string  `json:"status"`
	PaidFor   bool    `json:"paid_for"`
	CreatedAt string  `json:"created_at"`
}

// Completed reports whether the payment counts as settled. Either signal is accepted.
func (p Payment) Completed() bool {
	return p.PaidFor || strings.EqualFold(strings.TrimSpace(p.Status), "completed")
}
