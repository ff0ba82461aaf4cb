package flows

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/zdunecki/matchfund/pkg/api"
	"github.com/zdunecki/matchfund/pkg/wizard"
	"github.com/zdunecki/matchfund/pkg/wizard/rules"
)

const (
	fieldCompanyName    = "companyName"
	fieldIndustry       = "industry"
	fieldContactName    = "contactName"
	fieldContactEmail   = "contactEmail"
	fieldMonthlyBudget  = "monthlyBudget"
	fieldInitialFunding = "initialFunding"
	fieldMatchRatio     = "matchRatio"
	fieldPerEmployeeCap = "perEmployeeCap"
)

const emailMessage = "Enter a valid email address"

func init() {
	Register(OnboardingFlow, "Company onboarding", NewOnboarding)
}

// NewOnboarding builds the five-step company onboarding flow.
func NewOnboarding(deps Deps) *wizard.Flow {
	return wizard.NewFlow(OnboardingFlow, "Company onboarding").
		Step("Company",
			[]wizard.Field{
				{Name: fieldCompanyName, Label: "Company name", Kind: wizard.KindText},
				{Name: fieldIndustry, Label: "Industry", Kind: wizard.KindText, Placeholder: "Software"},
			},
			rules.Required(fieldCompanyName, "Company name is required"),
			rules.Required(fieldIndustry, "Industry is required"),
		).
		Step("Contact",
			[]wizard.Field{
				{Name: fieldContactName, Label: "Contact name", Kind: wizard.KindText},
				{Name: fieldContactEmail, Label: "Contact email", Kind: wizard.KindEmail},
			},
			rules.Required(fieldContactName, "Contact name is required"),
			rules.Email(fieldContactEmail, emailMessage),
		).
		Step("Causes",
			[]wizard.Field{
				{Name: fieldCauses, Label: "Causes your company supports", Kind: wizard.KindSet, Choices: Causes},
			},
			rules.MinSelected(fieldCauses, 1, "Select at least one cause"),
		).
		Step("Budget",
			[]wizard.Field{
				{Name: fieldMonthlyBudget, Label: "Monthly budget ($)", Kind: wizard.KindNumber},
				{Name: fieldInitialFunding, Label: "Initial funding ($)", Kind: wizard.KindNumber, Secure: true},
			},
			rules.MinNumber(fieldMonthlyBudget, 100, "Monthly budget must be at least $100"),
			rules.Func(func(f wizard.Fields) string {
				budget, _ := f.Float(fieldMonthlyBudget)
				funding, ok := f.Float(fieldInitialFunding)
				if !ok || funding < budget*EscrowShare {
					return "Initial funding must be at least 30% of your monthly budget"
				}
				return ""
			}),
		).
		Step("Matching rules",
			[]wizard.Field{
				{Name: fieldMatchRatio, Label: "Match ratio", Kind: wizard.KindNumber, Placeholder: "1"},
				{Name: fieldPerEmployeeCap, Label: "Per-employee annual cap ($)", Kind: wizard.KindNumber, Placeholder: "1000"},
			},
			rules.Range(fieldMatchRatio, 0.5, 3, "Match ratio must be between 0.5x and 3x"),
			rules.MinNumber(fieldPerEmployeeCap, 25, "Per-employee cap must be at least $25"),
		).
		Defaults(wizard.Fields{
			fieldCompanyName:    "",
			fieldIndustry:       "",
			fieldContactName:    "",
			fieldContactEmail:   "",
			fieldCauses:         []string{},
			fieldMonthlyBudget:  "",
			fieldInitialFunding: "",
			fieldMatchRatio:     1.0,
			fieldPerEmployeeCap: 1000.0,
		}).
		OnSubmit(func(ctx context.Context, f wizard.Fields, progress wizard.Progress) (wizard.Outcome, error) {
			return submitOnboarding(ctx, deps, f, progress)
		})
}

func submitOnboarding(ctx context.Context, deps Deps, f wizard.Fields, progress wizard.Progress) (wizard.Outcome, error) {
	budget, _ := f.Float(fieldMonthlyBudget)
	funding, _ := f.Float(fieldInitialFunding)
	ratio, _ := f.Float(fieldMatchRatio)
	perEmployee, _ := f.Float(fieldPerEmployeeCap)
	causes := f.Strings(fieldCauses)

	logf(progress, "⏳ Completing onboarding for %s...\n", f.String(fieldCompanyName))
	company, err := deps.API.CompleteOnboarding(ctx, api.Onboarding{
		CompanyName:    f.String(fieldCompanyName),
		Industry:       f.String(fieldIndustry),
		ContactName:    f.String(fieldContactName),
		ContactEmail:   f.String(fieldContactEmail),
		Causes:         causes,
		MonthlyBudget:  budget,
		InitialFunding: funding,
	})
	if err != nil {
		return wizard.Outcome{}, fmt.Errorf("complete onboarding: %w", err)
	}
	logf(progress, "✅ Company registered (ID: %s)\n", company.ID)

	logf(progress, "⏳ Saving matching rules...\n")
	matching, err := deps.API.UpdateMatchingRules(ctx, company.ID.String(), api.MatchingRules{
		MatchRatio:     ratio,
		PerEmployeeCap: perEmployee,
		EligibleCauses: causes,
	})
	if err != nil {
		deps.logger().Warn("matching rules not saved after onboarding",
			zap.String("company_id", company.ID.String()), zap.Error(err))
		return wizard.Outcome{}, fmt.Errorf("update matching rules: %w", err)
	}
	logf(progress, "✅ Matching rules saved\n")

	return wizard.Outcome{
		ID:       company.ID.String(),
		Redirect: "/company/dashboard",
		Resource: map[string]any{"company": company, "matchingRules": matching},
	}, nil
}

func logf(progress wizard.Progress, format string, args ...any) {
	if progress != nil {
		progress(format, args...)
	}
}
