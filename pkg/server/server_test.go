package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/zdunecki/matchfund/pkg/api"
	"github.com/zdunecki/matchfund/pkg/api/apitest"
	"github.com/zdunecki/matchfund/pkg/config"
	"github.com/zdunecki/matchfund/pkg/dashboard"
	"github.com/zdunecki/matchfund/pkg/flows"
	"github.com/zdunecki/matchfund/pkg/logging"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
	)
}

type harness struct {
	backend *apitest.Backend
	srv     *Server
	url     string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	b := apitest.NewBackend()
	backendSrv := b.Start()
	t.Cleanup(backendSrv.Close)

	client, err := api.New(config.API{BaseURL: backendSrv.URL, Timeout: 5 * time.Second})
	require.NoError(t, err)

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	srv, err := New(
		flows.Deps{API: client, Now: func() time.Time { return now }},
		dashboard.NewLoader(client, nil, true),
		config.Server{SessionTTL: time.Minute},
		logging.Nop(),
	)
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		srv.sessions.closeAll()
	})
	return &harness{backend: b, srv: srv, url: ts.URL}
}

func (h *harness) do(t *testing.T, method, path string, body any) (int, []byte) {
	t.Helper()
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, h.url+path, rd)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, data
}

func (h *harness) wizard(t *testing.T, method, path string, body any) (int, wizardResponse) {
	t.Helper()
	status, data := h.do(t, method, path, body)
	var out wizardResponse
	if status < 300 || status == http.StatusUnprocessableEntity {
		require.NoError(t, json.Unmarshal(data, &out), string(data))
	}
	return status, out
}

func (h *harness) start(t *testing.T, flow string) wizardResponse {
	t.Helper()
	status, w := h.wizard(t, http.MethodPost, "/api/wizards", map[string]string{"flow": flow})
	require.Equal(t, http.StatusCreated, status)
	require.NotEmpty(t, w.ID)
	return w
}

func (h *harness) patch(t *testing.T, id string, fields map[string]any) wizardResponse {
	t.Helper()
	status, w := h.wizard(t, http.MethodPatch, "/api/wizards/"+id+"/fields", map[string]any{"fields": fields})
	require.Equal(t, http.StatusOK, status)
	return w
}

func (h *harness) next(t *testing.T, id string) wizardResponse {
	t.Helper()
	status, w := h.wizard(t, http.MethodPost, "/api/wizards/"+id+"/next", nil)
	require.Equal(t, http.StatusOK, status)
	return w
}

// fillCompanyApplication walks the company application to its last step with valid values.
func (h *harness) fillCompanyApplication(t *testing.T, id string) {
	t.Helper()
	h.patch(t, id, map[string]any{"companyName": "Acme", "contactName": "Sam", "contactEmail": "sam@acme.io", "employeeCount": 120})
	require.True(t, *h.next(t, id).Valid)
	h.patch(t, id, map[string]any{"description": "We match every employee gift to local schools and food banks."})
	require.True(t, *h.next(t, id).Valid)
	h.patch(t, id, map[string]any{"agreeTerms": true})
}

func events(body []byte) []string {
	var out []string
	for _, frame := range strings.Split(string(body), "\n\n") {
		if data, ok := strings.CutPrefix(frame, "data: "); ok {
			out = append(out, data)
		}
	}
	return out
}

func TestListFlows(t *testing.T) {
	h := newHarness(t)
	status, data := h.do(t, http.MethodGet, "/api/flows", nil)
	require.Equal(t, http.StatusOK, status)

	var infos []flows.Info
	require.NoError(t, json.Unmarshal(data, &infos))
	names := make([]string, 0, len(infos))
	for _, info := range infos {
		names = append(names, info.Name)
	}
	assert.Equal(t, flows.Names(), names)
}

func TestCreateWizard(t *testing.T) {
	h := newHarness(t)
	w := h.start(t, flows.CampaignFlow)
	assert.Equal(t, 1, w.State.Step)
	assert.Equal(t, 4, w.State.TotalSteps)
	assert.Len(t, w.Steps, 4)
	assert.Contains(t, w.Derived, "requiredEscrow")

	status, _ := h.do(t, http.MethodPost, "/api/wizards", map[string]string{"flow": "nope"})
	assert.Equal(t, http.StatusNotFound, status)
	status, _ = h.do(t, http.MethodPost, "/api/wizards", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestUnknownSession(t *testing.T) {
	h := newHarness(t)
	status, _ := h.do(t, http.MethodGet, "/api/wizards/missing", nil)
	assert.Equal(t, http.StatusNotFound, status)
	status, _ = h.do(t, http.MethodPost, "/api/wizards/missing/next", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestNavigation(t *testing.T) {
	h := newHarness(t)
	id := h.start(t, flows.CampaignFlow).ID

	w := h.next(t, id)
	assert.False(t, *w.Valid)
	assert.Equal(t, 1, w.State.Step)
	assert.Equal(t, "Campaign name is required", w.State.Error)

	w = h.patch(t, id, map[string]any{"name": "Spring", "startDate": "2024-03-01", "endDate": "2024-04-01"})
	assert.Empty(t, w.State.Error)
	assert.Equal(t, float64(91), w.Derived["daysRemaining"])

	w = h.next(t, id)
	assert.True(t, *w.Valid)
	assert.Equal(t, 2, w.State.Step)

	status, w := h.wizard(t, http.MethodPost, "/api/wizards/"+id+"/previous", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 1, w.State.Step)
	assert.Equal(t, "Spring", w.State.Fields["name"])

	status, w = h.wizard(t, http.MethodPost, "/api/wizards/"+id+"/goto", map[string]int{"step": 4})
	require.Equal(t, http.StatusOK, status)
	assert.False(t, *w.Valid)
	assert.Equal(t, 3, w.State.Step)
	assert.Equal(t, "Budget cap must be at least $1,000", w.State.Error)

	status, _ = h.do(t, http.MethodPost, "/api/wizards/"+id+"/goto", map[string]int{"step": 9})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestSecureFields(t *testing.T) {
	h := newHarness(t)
	id := h.start(t, flows.NonprofitApplicationFlow).ID

	status, data := h.do(t, http.MethodGet, "/api/crypto/public-key", nil)
	require.Equal(t, http.StatusOK, status)
	var key struct {
		Alg     string `json:"alg"`
		KeyID   string `json:"keyId"`
		SPKIB64 string `json:"spkiB64"`
	}
	require.NoError(t, json.Unmarshal(data, &key))
	assert.Equal(t, "RSA-OAEP-256", key.Alg)
	assert.NotEmpty(t, key.SPKIB64)

	ct, err := h.srv.keys.encrypt("12-3456789")
	require.NoError(t, err)
	status, w := h.wizard(t, http.MethodPatch, "/api/wizards/"+id+"/fields", map[string]any{
		"fields": map[string]any{"organizationName": "Helpers"},
		"secure": map[string]any{"ein": map[string]string{"ciphertext": ct, "keyId": key.KeyID}},
	})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "12-3456789", w.State.Fields["ein"])
	assert.Equal(t, "Helpers", w.State.Fields["organizationName"])
	assert.Equal(t, float64(9), w.Derived["einDigits"])

	status, _ = h.do(t, http.MethodPatch, "/api/wizards/"+id+"/fields", map[string]any{
		"secure": map[string]any{"organizationName": map[string]string{"ciphertext": ct}},
	})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = h.do(t, http.MethodPatch, "/api/wizards/"+id+"/fields", map[string]any{
		"secure": map[string]any{"ein": map[string]string{"ciphertext": ct, "keyId": "k-other"}},
	})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestSubmitStreamsProgressAndOutcome(t *testing.T) {
	h := newHarness(t)
	id := h.start(t, flows.CompanyApplicationFlow).ID
	h.fillCompanyApplication(t, id)

	resp, err := http.Post(h.url+"/api/wizards/"+id+"/submit", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	evs := events(body)
	require.GreaterOrEqual(t, len(evs), 3)
	assert.Equal(t, "Connected", evs[0])
	assert.Contains(t, evs[1], "Submitting application for Acme")

	last := evs[len(evs)-1]
	payload, ok := strings.CutPrefix(last, markerDone+" ")
	require.True(t, ok, last)
	var out struct {
		ID       string `json:"id"`
		Redirect string `json:"redirect"`
	}
	require.NoError(t, json.Unmarshal([]byte(payload), &out))
	assert.Equal(t, "/apply/company/"+out.ID, out.Redirect)

	_, w := h.wizard(t, http.MethodGet, "/api/wizards/"+id, nil)
	assert.False(t, w.State.Submitting)
}

func TestSubmitFailureStreamsErrorMarker(t *testing.T) {
	h := newHarness(t)
	h.backend.Fail(apitest.OpCreateCompanyApp, http.StatusBadRequest, `{"detail":"Company already applied"}`)
	id := h.start(t, flows.CompanyApplicationFlow).ID
	h.fillCompanyApplication(t, id)

	status, body := h.do(t, http.MethodPost, "/api/wizards/"+id+"/submit", nil)
	require.Equal(t, http.StatusOK, status)
	evs := events(body)
	assert.Equal(t, markerError+" Company already applied", evs[len(evs)-1])

	_, w := h.wizard(t, http.MethodGet, "/api/wizards/"+id, nil)
	assert.Equal(t, "Company already applied", w.State.Error)
	assert.Equal(t, 3, w.State.Step)
}

func TestSubmitRejectedBeforeStreaming(t *testing.T) {
	h := newHarness(t)
	id := h.start(t, flows.CompanyApplicationFlow).ID

	status, _ := h.do(t, http.MethodPost, "/api/wizards/"+id+"/submit", nil)
	assert.Equal(t, http.StatusConflict, status)

	h.fillCompanyApplication(t, id)
	h.patch(t, id, map[string]any{"agreeTerms": false})
	status, w := h.wizard(t, http.MethodPost, "/api/wizards/"+id+"/submit", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, "You must accept the terms to continue", w.State.Error)
	assert.Empty(t, h.backend.Calls())
}

func TestSubmitWhileInFlightConflicts(t *testing.T) {
	h := newHarness(t)
	gate := h.backend.Gate(apitest.OpCreateCompanyApp)
	id := h.start(t, flows.CompanyApplicationFlow).ID
	h.fillCompanyApplication(t, id)

	resp, err := http.Post(h.url+"/api/wizards/"+id+"/submit", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Eventually(t, func() bool {
		_, w := h.wizard(t, http.MethodGet, "/api/wizards/"+id, nil)
		return w.State.Submitting
	}, 2*time.Second, 10*time.Millisecond)

	status, _ := h.do(t, http.MethodPost, "/api/wizards/"+id+"/submit", nil)
	assert.Equal(t, http.StatusConflict, status)

	close(gate)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	evs := events(body)
	assert.True(t, strings.HasPrefix(evs[len(evs)-1], markerDone))
}

func TestConcurrentSubmitsStreamOnce(t *testing.T) {
	h := newHarness(t)
	gate := h.backend.Gate(apitest.OpCreateCompanyApp)
	id := h.start(t, flows.CompanyApplicationFlow).ID
	h.fillCompanyApplication(t, id)

	const n = 5
	responses := make(chan *http.Response, n)
	var wg sync.WaitGroup
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := http.Post(h.url+"/api/wizards/"+id+"/submit", "application/json", nil)
			if assert.NoError(t, err) {
				responses <- resp
			}
		}()
	}
	wg.Wait()
	close(responses)

	var streamed []*http.Response
	conflicts := 0
	for resp := range responses {
		switch resp.StatusCode {
		case http.StatusOK:
			streamed = append(streamed, resp)
		case http.StatusConflict:
			conflicts++
			resp.Body.Close()
		default:
			resp.Body.Close()
			t.Errorf("unexpected status %d", resp.StatusCode)
		}
	}
	close(gate)

	require.Len(t, streamed, 1)
	assert.Equal(t, n-1, conflicts)
	defer streamed[0].Body.Close()
	body, err := io.ReadAll(streamed[0].Body)
	require.NoError(t, err)
	evs := events(body)
	assert.True(t, strings.HasPrefix(evs[len(evs)-1], markerDone), evs[len(evs)-1])
	assert.Equal(t, []string{apitest.OpCreateCompanyApp}, h.backend.Calls())
}

func TestDeleteWizardDiscardsInFlightSubmission(t *testing.T) {
	h := newHarness(t)
	gate := h.backend.Gate(apitest.OpCreateCompanyApp)
	defer close(gate)
	id := h.start(t, flows.CompanyApplicationFlow).ID
	h.fillCompanyApplication(t, id)

	resp, err := http.Post(h.url+"/api/wizards/"+id+"/submit", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Eventually(t, func() bool {
		_, w := h.wizard(t, http.MethodGet, "/api/wizards/"+id, nil)
		return w.State.Submitting
	}, 2*time.Second, 10*time.Millisecond)

	status, _ := h.do(t, http.MethodDelete, "/api/wizards/"+id, nil)
	assert.Equal(t, http.StatusNoContent, status)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	evs := events(body)
	assert.True(t, strings.HasPrefix(evs[len(evs)-1], markerError), evs[len(evs)-1])

	status, _ = h.do(t, http.MethodGet, "/api/wizards/"+id, nil)
	assert.Equal(t, http.StatusNotFound, status)
	status, _ = h.do(t, http.MethodDelete, "/api/wizards/"+id, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestDashboard(t *testing.T) {
	h := newHarness(t)
	h.backend.SetRewards([]api.Reward{{ID: "1", Title: "Mug", Claims: 4, Redemptions: 1}})

	status, data := h.do(t, http.MethodGet, "/api/dashboards/rewards", nil)
	require.Equal(t, http.StatusOK, status)
	var resp struct {
		Kind     string             `json:"kind"`
		Items    []api.Reward       `json:"items"`
		Error    string             `json:"error"`
		Fallback bool               `json:"fallback"`
		Metrics  map[string]float64 `json:"metrics"`
	}
	require.NoError(t, json.Unmarshal(data, &resp))
	assert.Equal(t, "rewards", resp.Kind)
	assert.Len(t, resp.Items, 1)
	assert.False(t, resp.Fallback)
	assert.Empty(t, resp.Error)
	assert.InDelta(t, 25.0, resp.Metrics["redemption_rate"], 0.001)

	h.backend.Fail(apitest.OpListRewards, http.StatusServiceUnavailable, `{"detail":"maintenance"}`)
	status, data = h.do(t, http.MethodGet, "/api/dashboards/rewards", nil)
	require.Equal(t, http.StatusOK, status)
	require.NoError(t, json.Unmarshal(data, &resp))
	assert.True(t, resp.Fallback)
	assert.Equal(t, "maintenance", resp.Error)
	assert.NotEmpty(t, resp.Items)

	status, _ = h.do(t, http.MethodGet, "/api/dashboards/unknown", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestCompleteFunding(t *testing.T) {
	h := newHarness(t)
	h.backend.PutCampaign(api.Campaign{ID: "7", Name: "Spring", Status: api.StatusDraft, BudgetCap: 5000, EscrowAmount: 1500})

	status, data := h.do(t, http.MethodPost, "/api/campaigns/7/complete-funding", nil)
	require.Equal(t, http.StatusOK, status, string(data))
	var res struct {
		Stage string `json:"stage"`
	}
	require.NoError(t, json.Unmarshal(data, &res))
	assert.Equal(t, "launched", res.Stage)

	stored, ok := h.backend.Campaign("7")
	require.True(t, ok)
	assert.Equal(t, api.StatusActive, stored.Status)

	status, _ = h.do(t, http.MethodPost, "/api/campaigns/404/complete-funding", map[string]float64{"amount": 100})
	assert.Equal(t, http.StatusNotFound, status)
}

func TestRequestIDHeader(t *testing.T) {
	h := newHarness(t)
	resp, err := http.Get(h.url + "/api/flows")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
}
