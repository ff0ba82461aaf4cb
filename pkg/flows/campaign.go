package flows

import (
	"context"
	"fmt"

	"github.com/zdunecki/matchfund/pkg/api"
	"github.com/zdunecki/matchfund/pkg/wizard"
	"github.com/zdunecki/matchfund/pkg/wizard/rules"
)

// Flow names.
const (
	CampaignFlow             = "campaign"
	OnboardingFlow           = "onboarding"
	CompanyApplicationFlow   = "company-application"
	NonprofitApplicationFlow = "nonprofit-application"
)

// Causes offered by the cause pickers.
var Causes = []string{
	"Animal Welfare",
	"Arts & Culture",
	"Disaster Relief",
	"Education",
	"Environment",
	"Health",
	"Human Rights",
	"Poverty",
}

const (
	fieldName                = "name"
	fieldDescription         = "description"
	fieldStartDate           = "startDate"
	fieldEndDate             = "endDate"
	fieldMatchMultiplier     = "matchMultiplier"
	fieldMaxMatchPerDonation = "maxMatchPerDonation"
	fieldBudgetCap           = "budgetCap"
	fieldCauses              = "causes"
	fieldLaunchNow           = "launchNow"
)

func init() {
	Register(CampaignFlow, "Create a matching campaign", NewCampaign)
}

// NewCampaign builds the four-step campaign creation flow.
func NewCampaign(deps Deps) *wizard.Flow {
	return wizard.NewFlow(CampaignFlow, "Create a matching campaign").
		Step("Basics",
			[]wizard.Field{
				{Name: fieldName, Label: "Campaign name", Kind: wizard.KindText, Placeholder: "Spring Giving Drive"},
				{Name: fieldDescription, Label: "Description", Kind: wizard.KindTextarea},
				{Name: fieldStartDate, Label: "Start date", Kind: wizard.KindDate, Placeholder: wizard.DateLayout},
				{Name: fieldEndDate, Label: "End date", Kind: wizard.KindDate, Placeholder: wizard.DateLayout},
			},
			rules.Required(fieldName, "Campaign name is required"),
			rules.Required(fieldStartDate, "Start date is required"),
			rules.Required(fieldEndDate, "End date is required"),
			rules.DateAfter(fieldEndDate, fieldStartDate, "End date must be after start date"),
		).
		Step("Matching",
			[]wizard.Field{
				{Name: fieldMatchMultiplier, Label: "Match multiplier", Kind: wizard.KindNumber, Placeholder: "1"},
				{Name: fieldMaxMatchPerDonation, Label: "Maximum match per donation ($)", Kind: wizard.KindNumber, Placeholder: "500"},
			},
			rules.Range(fieldMatchMultiplier, 1, 10, "Match multiplier must be between 1x and 10x"),
			rules.MinNumber(fieldMaxMatchPerDonation, 1, "Maximum match per donation must be at least $1"),
		).
		Step("Budget",
			[]wizard.Field{
				{Name: fieldBudgetCap, Label: "Budget cap ($)", Kind: wizard.KindNumber, Placeholder: "10000"},
			},
			rules.MinNumber(fieldBudgetCap, 1000, "Budget cap must be at least $1,000"),
		).
		Step("Causes & Launch",
			[]wizard.Field{
				{Name: fieldCauses, Label: "Eligible causes", Kind: wizard.KindSet, Choices: Causes},
				{Name: fieldLaunchNow, Label: "Fund escrow and launch now", Kind: wizard.KindBool},
			},
			rules.MinSelected(fieldCauses, 1, "Select at least one cause"),
		).
		Defaults(wizard.Fields{
			fieldName:                "",
			fieldDescription:         "",
			fieldStartDate:           "",
			fieldEndDate:             "",
			fieldMatchMultiplier:     1.0,
			fieldMaxMatchPerDonation: 500.0,
			fieldBudgetCap:           "",
			fieldCauses:              []string{},
			fieldLaunchNow:           false,
		}).
		OnSubmit(func(ctx context.Context, f wizard.Fields, progress wizard.Progress) (wizard.Outcome, error) {
			return submitCampaign(ctx, deps, f, progress)
		})
}

func campaignRequest(f wizard.Fields) api.CampaignRequest {
	multiplier, _ := f.Float(fieldMatchMultiplier)
	maxMatch, _ := f.Float(fieldMaxMatchPerDonation)
	budgetCap, _ := f.Float(fieldBudgetCap)
	return api.CampaignRequest{
		Name:                f.String(fieldName),
		Description:         f.String(fieldDescription),
		StartDate:           f.String(fieldStartDate),
		EndDate:             f.String(fieldEndDate),
		MatchMultiplier:     multiplier,
		MaxMatchPerDonation: maxMatch,
		BudgetCap:           budgetCap,
		EscrowAmount:        float64(RequiredEscrow(budgetCap)),
		Causes:              f.Strings(fieldCauses),
	}
}

func submitCampaign(ctx context.Context, deps Deps, f wizard.Fields, progress wizard.Progress) (wizard.Outcome, error) {
	req := campaignRequest(f)
	res, err := deps.launcher().Create(ctx, req, f.Bool(fieldLaunchNow), progress)
	if err != nil {
		return wizard.Outcome{}, err
	}
	id := res.Campaign.ID.String()
	return wizard.Outcome{
		ID:       id,
		Redirect: fmt.Sprintf("/company/campaigns/%s", id),
		Resource: res,
	}, nil
}
