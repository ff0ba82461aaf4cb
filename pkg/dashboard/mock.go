package dashboard

import "github.com/zdunecki/matchfund/pkg/api"

// Bundled datasets shown when a live load fails. Callers get fresh copies.

func mockCampaigns() []api.Campaign {
	return []api.Campaign{
		{ID: "demo-1", Name: "Spring Giving Drive", Status: api.StatusActive, StartDate: "2024-03-01", EndDate: "2024-05-31",
			MatchMultiplier: 1, MaxMatchPerDonation: 500, BudgetCap: 25000, EscrowAmount: 7500, MatchedAmount: 11250,
			Causes: []string{"Education", "Health"}},
		{ID: "demo-2", Name: "Disaster Relief Match", Status: api.StatusFunded, StartDate: "2024-06-01", EndDate: "2024-06-30",
			MatchMultiplier: 2, MaxMatchPerDonation: 1000, BudgetCap: 50000, EscrowAmount: 15000,
			Causes: []string{"Disaster Relief"}},
		{ID: "demo-3", Name: "Year-End Giving", Status: api.StatusDraft, StartDate: "2024-11-15", EndDate: "2024-12-31",
			MatchMultiplier: 1, MaxMatchPerDonation: 250, BudgetCap: 10000, EscrowAmount: 3000,
			Causes: []string{"Poverty", "Environment"}},
	}
}

func mockDonations() []api.Donation {
	return []api.Donation{
		{ID: "d-1", Donor: "Alex Kim", Nonprofit: "City Food Bank", CampaignID: "demo-1", Amount: 100, MatchedAmount: 100, CreatedAt: "2024-03-04T10:12:00Z"},
		{ID: "d-2", Donor: "Priya Shah", Nonprofit: "Green Earth Trust", CampaignID: "demo-1", Amount: 250, MatchedAmount: 250, CreatedAt: "2024-03-09T16:40:00Z"},
		{ID: "d-3", Donor: "Jordan Lee", Nonprofit: "Readers Without Borders", CampaignID: "demo-1", Amount: 50, MatchedAmount: 50, CreatedAt: "2024-03-15T08:05:00Z"},
		{ID: "d-4", Donor: "Sam Rivera", Nonprofit: "Relief Now", Amount: 75, CreatedAt: "2024-04-02T13:22:00Z"},
	}
}

func mockRewards() []api.Reward {
	return []api.Reward{
		{ID: "r-1", Title: "Extra volunteer day", Points: 500, Claims: 40, Redemptions: 28},
		{ID: "r-2", Title: "Company hoodie", Points: 250, Claims: 65, Redemptions: 60},
		{ID: "r-3", Title: "Charity of the month vote", Points: 100, Claims: 12, Redemptions: 4},
	}
}

func mockPayments() []api.Payment {
	return []api.Payment{
		{ID: "p-1", Amount: 7500, Status: "completed", PaidFor: true, CreatedAt: "2024-02-28T09:00:00Z"},
		{ID: "p-2", Amount: 15000, Status: "pending", PaidFor: true, CreatedAt: "2024-05-30T09:00:00Z"},
		{ID: "p-3", Amount: 3000, Status: "pending", CreatedAt: "2024-11-10T09:00:00Z"},
		{ID: "p-4", Amount: 1200, Status: "failed", CreatedAt: "2024-04-18T09:00:00Z"},
	}
}

// Mock returns the bundled dataset for kind, or nil for an unknown kind.
func Mock(kind Kind) any {
	switch kind {
	case Campaigns:
		return mockCampaigns()
	case Donations:
		return mockDonations()
	case Rewards:
		return mockRewards()
	case Payments:
		return mockPayments()
	default:
		return nil
	}
}
