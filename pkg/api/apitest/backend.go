// Package apitest provides an in-memory fake of the matching platform backend for tests.
package apitest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"

	"github.com/zdunecki/matchfund/pkg/api"
)

// Operation names accepted by Fail and Gate.
const (
	OpCreateCampaign      = "create-campaign"
	OpGetCampaign         = "get-campaign"
	OpListCampaigns       = "list-campaigns"
	OpFundCampaign        = "fund-campaign"
	OpLaunchCampaign      = "launch-campaign"
	OpCreateCompanyApp    = "create-company-application"
	OpGetApplication      = "get-application"
	OpCreateNonprofitApp  = "create-nonprofit-application"
	OpCompleteOnboarding  = "complete-onboarding"
	OpUpdateMatchingRules = "update-matching-rules"
	OpListDonations       = "list-donations"
	OpListRewards         = "list-rewards"
	OpListPayments        = "list-payments"
)

type failure struct {
	status int
	body   string
}

// Backend is a configurable fake backend.
type Backend struct {
	// Envelope wraps list responses as {"results": [...]}.
	Envelope bool

	mu          sync.Mutex
	mux         *http.ServeMux
	nextID      int
	campaigns   map[string]*api.Campaign
	companyApps map[string]*api.CompanyApplication
	nonprofits  map[string]*api.NonprofitApplication
	rules       map[string]api.MatchingRules
	onboarded   []api.Onboarding
	donations   []api.Donation
	rewards     []api.Reward
	payments    []api.Payment
	failures    map[string]failure
	gates       map[string]chan struct{}
	calls       []string
	authHeaders []string
}

// NewBackend creates an empty backend.
func NewBackend() *Backend {
	b := &Backend{
		mux:         http.NewServeMux(),
		nextID:      100,
		campaigns:   make(map[string]*api.Campaign),
		companyApps: make(map[string]*api.CompanyApplication),
		nonprofits:  make(map[string]*api.NonprofitApplication),
		rules:       make(map[string]api.MatchingRules),
		donations:   []api.Donation{},
		rewards:     []api.Reward{},
		payments:    []api.Payment{},
		failures:    make(map[string]failure),
		gates:       make(map[string]chan struct{}),
	}
	b.registerHandlers()
	return b
}

// Start serves the backend on a local test server. Close it when done.
func (b *Backend) Start() *httptest.Server {
	return httptest.NewServer(b)
}

// ServeHTTP implements http.Handler.
func (b *Backend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	b.authHeaders = append(b.authHeaders, r.Header.Get("Authorization"))
	b.mu.Unlock()
	b.mux.ServeHTTP(w, r)
}

func (b *Backend) registerHandlers() {
	b.mux.HandleFunc("POST /api/campaigns/{$}", b.handleCreateCampaign)
	b.mux.HandleFunc("GET /api/campaigns/{$}", b.handleListCampaigns)
	b.mux.HandleFunc("GET /api/campaigns/{id}/{$}", b.handleGetCampaign)
	b.mux.HandleFunc("POST /api/campaigns/{id}/fund/{$}", b.handleFundCampaign)
	b.mux.HandleFunc("POST /api/campaigns/{id}/launch/{$}", b.handleLaunchCampaign)
	b.mux.HandleFunc("POST /api/company-applications/{$}", b.handleCreateCompanyApp)
	b.mux.HandleFunc("GET /api/company-applications/{id}/{$}", b.handleGetApplication)
	b.mux.HandleFunc("POST /api/nonprofit-applications/{$}", b.handleCreateNonprofitApp)
	b.mux.HandleFunc("POST /api/onboarding/{$}", b.handleCompleteOnboarding)
	b.mux.HandleFunc("PUT /api/matching-rules/{id}/{$}", b.handleUpdateMatchingRules)
	b.mux.HandleFunc("GET /api/donations/{$}", b.listHandler(OpListDonations, func() any { return b.donations }))
	b.mux.HandleFunc("GET /api/rewards/{$}", b.listHandler(OpListRewards, func() any { return b.rewards }))
	b.mux.HandleFunc("GET /api/payments/{$}", b.listHandler(OpListPayments, func() any { return b.payments }))
}

// Fail makes every later call of op answer with status and body.
func (b *Backend) Fail(op string, status int, body string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures[op] = failure{status: status, body: body}
}

// Recover clears an injected failure.
func (b *Backend) Recover(op string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.failures, op)
}

// Gate makes calls of op wait until the returned channel is closed or the request is cancelled.
func (b *Backend) Gate(op string) chan struct{} {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan struct{})
	b.gates[op] = ch
	return ch
}

// Calls returns the operations served, in order.
func (b *Backend) Calls() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.calls...)
}

// AuthHeaders returns every Authorization header seen.
func (b *Backend) AuthHeaders() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.authHeaders...)
}

// Campaign returns a stored campaign.
func (b *Backend) Campaign(id string) (api.Campaign, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	c, ok := b.campaigns[id]
	if !ok {
		return api.Campaign{}, false
	}
	return *c, true
}

// PutCampaign stores a campaign as-is.
func (b *Backend) PutCampaign(c api.Campaign) {
	b.mu.Lock()
	defer b.mu.Unlock()
	cp := c
	b.campaigns[string(c.ID)] = &cp
}

// NonprofitApplications returns the stored nonprofit applications.
func (b *Backend) NonprofitApplications() []api.NonprofitApplication {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]api.NonprofitApplication, 0, len(b.nonprofits))
	for _, a := range b.nonprofits {
		out = append(out, *a)
	}
	return out
}

// Onboarded returns the onboarding payloads received.
func (b *Backend) Onboarded() []api.Onboarding {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]api.Onboarding(nil), b.onboarded...)
}

// MatchingRules returns the rules stored for a company.
func (b *Backend) MatchingRules(companyID string) (api.MatchingRules, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	r, ok := b.rules[companyID]
	return r, ok
}

// SetDonations seeds the donations list.
func (b *Backend) SetDonations(d []api.Donation) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.donations = d
}

// SetRewards seeds the rewards list.
func (b *Backend) SetRewards(r []api.Reward) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rewards = r
}

// SetPayments seeds the payments list.
func (b *Backend) SetPayments(p []api.Payment) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.payments = p
}

// begin records the call and applies injected failures and gates. It reports whether the
// handler should continue.
func (b *Backend) begin(op string, w http.ResponseWriter, r *http.Request) bool {
	b.mu.Lock()
	b.calls = append(b.calls, op)
	f, failing := b.failures[op]
	gate := b.gates[op]
	b.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-r.Context().Done():
			return false
		}
	}
	if failing {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(f.status)
		_, _ = w.Write([]byte(f.body))
		return false
	}
	return true
}

func (b *Backend) newID() string {
	b.nextID++
	return strconv.Itoa(b.nextID)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (b *Backend) writeList(w http.ResponseWriter, items any) {
	if b.Envelope {
		writeJSON(w, http.StatusOK, map[string]any{"count": 0, "results": items})
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (b *Backend) handleCreateCampaign(w http.ResponseWriter, r *http.Request) {
	if !b.begin(OpCreateCampaign, w, r) {
		return
	}
	var req api.CampaignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": err.Error()})
		return
	}
	b.mu.Lock()
	c := &api.Campaign{
		ID:                  api.ID(b.newID()),
		Name:                req.Name,
		Description:         req.Description,
		Status:              api.StatusDraft,
		StartDate:           req.StartDate,
		EndDate:             req.EndDate,
		MatchMultiplier:     req.MatchMultiplier,
		MaxMatchPerDonation: req.MaxMatchPerDonation,
		BudgetCap:           req.BudgetCap,
		EscrowAmount:        req.EscrowAmount,
		Causes:              req.Causes,
	}
	b.campaigns[string(c.ID)] = c
	out := *c
	b.mu.Unlock()
	writeJSON(w, http.StatusCreated, out)
}

func (b *Backend) handleListCampaigns(w http.ResponseWriter, r *http.Request) {
	if !b.begin(OpListCampaigns, w, r) {
		return
	}
	b.mu.Lock()
	out := make([]api.Campaign, 0, len(b.campaigns))
	for _, c := range b.campaigns {
		out = append(out, *c)
	}
	b.mu.Unlock()
	b.writeList(w, out)
}

func (b *Backend) handleGetCampaign(w http.ResponseWriter, r *http.Request) {
	if !b.begin(OpGetCampaign, w, r) {
		return
	}
	c, ok := b.Campaign(r.PathValue("id"))
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Not found."})
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (b *Backend) handleFundCampaign(w http.ResponseWriter, r *http.Request) {
	if !b.begin(OpFundCampaign, w, r) {
		return
	}
	var req api.FundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": err.Error()})
		return
	}
	b.mu.Lock()
	c, ok := b.campaigns[r.PathValue("id")]
	if !ok {
		b.mu.Unlock()
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Not found."})
		return
	}
	c.Status = api.StatusFunded
	c.EscrowAmount = req.Amount
	out := *c
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (b *Backend) handleLaunchCampaign(w http.ResponseWriter, r *http.Request) {
	if !b.begin(OpLaunchCampaign, w, r) {
		return
	}
	b.mu.Lock()
	c, ok := b.campaigns[r.PathValue("id")]
	if !ok {
		b.mu.Unlock()
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Not found."})
		return
	}
	if c.Status != api.StatusFunded {
		b.mu.Unlock()
		writeJSON(w, http.StatusConflict, map[string]string{"detail": "Campaign must be funded before launch."})
		return
	}
	c.Status = api.StatusActive
	out := *c
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (b *Backend) handleCreateCompanyApp(w http.ResponseWriter, r *http.Request) {
	if !b.begin(OpCreateCompanyApp, w, r) {
		return
	}
	var app api.CompanyApplication
	if err := json.NewDecoder(r.Body).Decode(&app); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": err.Error()})
		return
	}
	b.mu.Lock()
	app.ID = api.ID(b.newID())
	app.Status = "pending"
	b.companyApps[string(app.ID)] = &app
	b.mu.Unlock()
	writeJSON(w, http.StatusCreated, app)
}

func (b *Backend) handleGetApplication(w http.ResponseWriter, r *http.Request) {
	if !b.begin(OpGetApplication, w, r) {
		return
	}
	b.mu.Lock()
	app, ok := b.companyApps[r.PathValue("id")]
	var out api.CompanyApplication
	if ok {
		out = *app
	}
	b.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Not found."})
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (b *Backend) handleCreateNonprofitApp(w http.ResponseWriter, r *http.Request) {
	if !b.begin(OpCreateNonprofitApp, w, r) {
		return
	}
	var app api.NonprofitApplication
	if err := json.NewDecoder(r.Body).Decode(&app); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": err.Error()})
		return
	}
	b.mu.Lock()
	app.ID = api.ID(b.newID())
	app.Status = "pending"
	b.nonprofits[string(app.ID)] = &app
	b.mu.Unlock()
	writeJSON(w, http.StatusCreated, app)
}

func (b *Backend) handleCompleteOnboarding(w http.ResponseWriter, r *http.Request) {
	if !b.begin(OpCompleteOnboarding, w, r) {
		return
	}
	var o api.Onboarding
	if err := json.NewDecoder(r.Body).Decode(&o); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": err.Error()})
		return
	}
	b.mu.Lock()
	b.onboarded = append(b.onboarded, o)
	company := api.Company{ID: api.ID(b.newID()), Name: o.CompanyName, Status: "active"}
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, company)
}

func (b *Backend) handleUpdateMatchingRules(w http.ResponseWriter, r *http.Request) {
	if !b.begin(OpUpdateMatchingRules, w, r) {
		return
	}
	var rules api.MatchingRules
	if err := json.NewDecoder(r.Body).Decode(&rules); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": err.Error()})
		return
	}
	b.mu.Lock()
	b.rules[r.PathValue("id")] = rules
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, rules)
}

func (b *Backend) listHandler(op string, items func() any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !b.begin(op, w, r) {
			return
		}
		b.mu.Lock()
		v := items()
		b.mu.Unlock()
		b.writeList(w, v)
	}
}
