package flows

import (
	"math"
	"time"

	"github.com/zdunecki/matchfund/pkg/wizard"
	"github.com/zdunecki/matchfund/pkg/wizard/rules"
)

// EscrowShare is the part of a budget cap a company pre-funds.
const EscrowShare = 0.3

// RequiredEscrow is round(budgetCap × 0.3). Non-positive caps need no escrow.
func RequiredEscrow(budgetCap float64) int {
	if budgetCap <= 0 {
		return 0
	}
	return int(math.Round(budgetCap * EscrowShare))
}

// MatchProgress is matched ÷ cap as a percentage clamped to [0, 100].
func MatchProgress(matched, budgetCap float64) float64 {
	if budgetCap <= 0 {
		return 0
	}
	p := matched / budgetCap * 100
	return math.Max(0, math.Min(100, p))
}

// DaysRemaining counts whole days until end, rounding partial days up. Past dates give 0.
func DaysRemaining(end, now time.Time) int {
	d := end.Sub(now)
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(d.Hours() / 24))
}

// Derived computes the read-only display values of a flow from its current fields.
// Unknown flows have none.
func Derived(flowName string, f wizard.Fields, now time.Time) map[string]any {
	out := map[string]any{}
	switch flowName {
	case CampaignFlow:
		budgetCap, _ := f.Float(fieldBudgetCap)
		out["requiredEscrow"] = RequiredEscrow(budgetCap)
		if end, ok := f.Date(fieldEndDate); ok {
			out["daysRemaining"] = DaysRemaining(end, now)
		}
		if start, ok := f.Date(fieldStartDate); ok {
			if end, ok := f.Date(fieldEndDate); ok && end.After(start) {
				out["durationDays"] = int(end.Sub(start).Hours() / 24)
			}
		}
	case OnboardingFlow:
		budget, _ := f.Float(fieldMonthlyBudget)
		out["minimumInitialFunding"] = RequiredEscrow(budget)
	case CompanyApplicationFlow:
		remaining := minDescriptionLength - len([]rune(f.String(fieldDescription)))
		if remaining < 0 {
			remaining = 0
		}
		out["descriptionCharsNeeded"] = remaining
	case NonprofitApplicationFlow:
		out["einDigits"] = len(rules.StripNonDigits(f.String(fieldEIN)))
	}
	return out
}
