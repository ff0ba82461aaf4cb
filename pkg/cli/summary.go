package cli

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/zdunecki/matchfund/pkg/api"
	"github.com/zdunecki/matchfund/pkg/campaign"
	"github.com/zdunecki/matchfund/pkg/dashboard"
	"github.com/zdunecki/matchfund/pkg/flows"
	"github.com/zdunecki/matchfund/pkg/wizard"
)

// Summary describes a finished submission for printing after the wizard exits.
func Summary(flowTitle string, out wizard.Outcome) string {
	lines := []string{
		styleHighlight.Render(fmt.Sprintf("✅ %s: done", flowTitle)),
		fmt.Sprintf("ID:       %s", out.ID),
		fmt.Sprintf("Next:     %s", out.Redirect),
	}
	if res, ok := out.Resource.(campaign.Result); ok {
		lines = append(lines, fmt.Sprintf("Stage:    %s", res.Stage))
		if res.Stage != campaign.Launched {
			lines = append(lines, styleSubtitle.Render(
				fmt.Sprintf("Run `matchfund campaign complete-funding %s` to fund and launch it later.", out.ID)))
		}
	}
	return strings.Join(lines, "\n")
}

// PrintDashboard writes a list view as plain rows followed by its headline metric.
func PrintDashboard(w io.Writer, v dashboard.View) {
	fmt.Fprintln(w, styleTitle.Render(strings.ToUpper(string(v.Kind))))
	if v.Err != nil {
		fmt.Fprintln(w, styleError.Render("Error: "+wizard.UserMessage(v.Err)))
		if v.UsingFallback {
			fmt.Fprintln(w, styleSubtitle.Render("Showing sample data. Run the command again to retry."))
		}
	}

	switch items := v.Items.(type) {
	case []api.Campaign:
		for _, c := range items {
			fmt.Fprintf(w, "%-8s %-28s %-10s %5.1f%% matched\n", c.ID, c.Name, c.Status, flows.MatchProgress(c.MatchedAmount, c.BudgetCap))
		}
	case []api.Donation:
		for _, d := range items {
			fmt.Fprintf(w, "%-8s %-16s %-26s %10.2f  +%.2f matched\n", d.ID, d.Donor, d.Nonprofit, d.Amount, d.MatchedAmount)
		}
	case []api.Reward:
		for _, r := range items {
			fmt.Fprintf(w, "%-8s %-28s %5d pts  %d/%d redeemed\n", r.ID, r.Title, r.Points, r.Redemptions, r.Claims)
		}
	case []api.Payment:
		for _, p := range items {
			fmt.Fprintf(w, "%-8s %10.2f  %-10s paid_for=%v\n", p.ID, p.Amount, p.Status, p.PaidFor)
		}
	}

	metrics := dashboard.Metrics(v)
	keys := make([]string, 0, len(metrics))
	for k := range metrics {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintln(w, styleSummary.Render(fmt.Sprintf("%s: %.2f", k, metrics[k])))
	}
}
