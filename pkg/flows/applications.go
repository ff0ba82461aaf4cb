package flows

import (
	"context"
	"fmt"

	"github.com/zdunecki/matchfund/pkg/api"
	"github.com/zdunecki/matchfund/pkg/wizard"
	"github.com/zdunecki/matchfund/pkg/wizard/rules"
)

const (
	fieldWebsite          = "website"
	fieldEmployeeCount    = "employeeCount"
	fieldAgreeTerms       = "agreeTerms"
	fieldOrganizationName = "organizationName"
	fieldEIN              = "ein"
	fieldMission          = "mission"

	minDescriptionLength = 50
	minMissionLength     = 20
	einDigits            = 9
)

const termsMessage = "You must accept the terms to continue"

func init() {
	Register(CompanyApplicationFlow, "Apply as a company", NewCompanyApplication)
	Register(NonprofitApplicationFlow, "Apply as a nonprofit", NewNonprofitApplication)
}

// NewCompanyApplication builds the three-step company application flow.
func NewCompanyApplication(deps Deps) *wizard.Flow {
	return wizard.NewFlow(CompanyApplicationFlow, "Apply as a company").
		Step("Company",
			[]wizard.Field{
				{Name: fieldCompanyName, Label: "Company name", Kind: wizard.KindText},
				{Name: fieldWebsite, Label: "Website", Kind: wizard.KindText, Placeholder: "https://"},
				{Name: fieldContactName, Label: "Contact name", Kind: wizard.KindText},
				{Name: fieldContactEmail, Label: "Contact email", Kind: wizard.KindEmail},
				{Name: fieldEmployeeCount, Label: "Number of employees", Kind: wizard.KindNumber},
			},
			rules.Required(fieldCompanyName, "Company name is required"),
			rules.Email(fieldContactEmail, emailMessage),
			rules.MinNumber(fieldEmployeeCount, 1, "Number of employees must be at least 1"),
		).
		Step("About",
			[]wizard.Field{
				{Name: fieldDescription, Label: "Tell us about your giving program", Kind: wizard.KindTextarea},
			},
			rules.MinLength(fieldDescription, minDescriptionLength,
				fmt.Sprintf("Description must be at least %d characters", minDescriptionLength)),
		).
		Step("Terms",
			[]wizard.Field{
				{Name: fieldAgreeTerms, Label: "I accept the platform terms", Kind: wizard.KindBool},
			},
			rules.Checked(fieldAgreeTerms, termsMessage),
		).
		Defaults(wizard.Fields{
			fieldCompanyName:   "",
			fieldWebsite:       "",
			fieldContactName:   "",
			fieldContactEmail:  "",
			fieldEmployeeCount: "",
			fieldDescription:   "",
			fieldAgreeTerms:    false,
		}).
		OnSubmit(func(ctx context.Context, f wizard.Fields, progress wizard.Progress) (wizard.Outcome, error) {
			employees, _ := f.Float(fieldEmployeeCount)
			logf(progress, "⏳ Submitting application for %s...\n", f.String(fieldCompanyName))
			app, err := deps.API.CreateCompanyApplication(ctx, api.CompanyApplication{
				CompanyName:   f.String(fieldCompanyName),
				Website:       f.String(fieldWebsite),
				ContactName:   f.String(fieldContactName),
				ContactEmail:  f.String(fieldContactEmail),
				EmployeeCount: int(employees),
				Description:   f.String(fieldDescription),
			})
			if err != nil {
				return wizard.Outcome{}, fmt.Errorf("create company application: %w", err)
			}
			logf(progress, "✅ Application received (ID: %s)\n", app.ID)
			return wizard.Outcome{
				ID:       app.ID.String(),
				Redirect: fmt.Sprintf("/apply/company/%s", app.ID),
				Resource: app,
			}, nil
		})
}

// NewNonprofitApplication builds the three-step nonprofit application flow.
func NewNonprofitApplication(deps Deps) *wizard.Flow {
	return wizard.NewFlow(NonprofitApplicationFlow, "Apply as a nonprofit").
		Step("Organization",
			[]wizard.Field{
				{Name: fieldOrganizationName, Label: "Organization name", Kind: wizard.KindText},
				{Name: fieldEIN, Label: "EIN", Kind: wizard.KindText, Placeholder: "12-3456789", Secure: true},
				{Name: fieldWebsite, Label: "Website", Kind: wizard.KindText, Placeholder: "https://"},
			},
			rules.Digits(fieldEIN, einDigits, "EIN must be 9 digits"),
			rules.Required(fieldOrganizationName, "Organization name is required"),
		).
		Step("Mission",
			[]wizard.Field{
				{Name: fieldMission, Label: "Mission statement", Kind: wizard.KindTextarea},
				{Name: fieldContactEmail, Label: "Contact email", Kind: wizard.KindEmail},
			},
			rules.MinLength(fieldMission, minMissionLength,
				fmt.Sprintf("Mission must be at least %d characters", minMissionLength)),
			rules.Email(fieldContactEmail, emailMessage),
		).
		Step("Causes & Terms",
			[]wizard.Field{
				{Name: fieldCauses, Label: "Causes you serve", Kind: wizard.KindSet, Choices: Causes},
				{Name: fieldAgreeTerms, Label: "I accept the platform terms", Kind: wizard.KindBool},
			},
			rules.MinSelected(fieldCauses, 1, "Select at least one cause"),
			rules.Checked(fieldAgreeTerms, termsMessage),
		).
		Defaults(wizard.Fields{
			fieldOrganizationName: "",
			fieldEIN:              "",
			fieldWebsite:          "",
			fieldMission:          "",
			fieldContactEmail:     "",
			fieldCauses:           []string{},
			fieldAgreeTerms:       false,
		}).
		OnSubmit(func(ctx context.Context, f wizard.Fields, progress wizard.Progress) (wizard.Outcome, error) {
			logf(progress, "⏳ Submitting application for %s...\n", f.String(fieldOrganizationName))
			app, err := deps.API.CreateNonprofitApplication(ctx, api.NonprofitApplication{
				OrganizationName: f.String(fieldOrganizationName),
				EIN:              rules.StripNonDigits(f.String(fieldEIN)),
				Website:          f.String(fieldWebsite),
				Mission:          f.String(fieldMission),
				ContactEmail:     f.String(fieldContactEmail),
				Causes:           f.Strings(fieldCauses),
			})
			if err != nil {
				return wizard.Outcome{}, fmt.Errorf("create nonprofit application: %w", err)
			}
			logf(progress, "✅ Application received (ID: %s)\n", app.ID)
			return wizard.Outcome{
				ID:       app.ID.String(),
				Redirect: fmt.Sprintf("/apply/nonprofit/%s", app.ID),
				Resource: app,
			}, nil
		})
}
