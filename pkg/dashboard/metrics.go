package dashboard

import (
	"github.com/zdunecki/matchfund/pkg/api"
	"github.com/zdunecki/matchfund/pkg/campaign"
)

// RedemptionRate is redeemed ÷ claimed as a percentage. No claims gives 0.
func RedemptionRate(rewards []api.Reward) float64 {
	var claims, redeemed int
	for _, r := range rewards {
		claims += r.Claims
		redeemed += r.Redemptions
	}
	if claims <= 0 {
		return 0
	}
	return float64(redeemed) / float64(claims) * 100
}

// TotalVolume sums settled payments. A payment is settled when its status is "completed"
// or it is flagged paid_for.
func TotalVolume(payments []api.Payment) float64 {
	var total float64
	for _, p := range payments {
		if p.Completed() {
			total += p.Amount
		}
	}
	return total
}

// TotalMatched sums the company contribution across donations.
func TotalMatched(donations []api.Donation) float64 {
	var total float64
	for _, d := range donations {
		total += d.MatchedAmount
	}
	return total
}

// ActiveCampaigns counts launched campaigns.
func ActiveCampaigns(campaigns []api.Campaign) int {
	n := 0
	for _, c := range campaigns {
		if campaign.StageFromStatus(c.Status) == campaign.Launched {
			n++
		}
	}
	return n
}

// Metrics computes the headline numbers for a list view's items.
func Metrics(v View) map[string]float64 {
	switch items := v.Items.(type) {
	case []api.Campaign:
		return map[string]float64{"active_campaigns": float64(ActiveCampaigns(items))}
	case []api.Donation:
		return map[string]float64{"total_matched": TotalMatched(items)}
	case []api.Reward:
		return map[string]float64{"redemption_rate": RedemptionRate(items)}
	case []api.Payment:
		return map[string]float64{"total_volume": TotalVolume(items)}
	default:
		return map[string]float64{}
	}
}
