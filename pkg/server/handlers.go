package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/zdunecki/matchfund/pkg/api"
	"github.com/zdunecki/matchfund/pkg/campaign"
	"github.com/zdunecki/matchfund/pkg/dashboard"
	"github.com/zdunecki/matchfund/pkg/flows"
	"github.com/zdunecki/matchfund/pkg/wizard"
)

type wizardResponse struct {
	ID      string         `json:"id"`
	Title   string         `json:"title"`
	Steps   []wizard.Step  `json:"steps"`
	State   wizard.State   `json:"state"`
	Derived map[string]any `json:"derived"`
	Valid   *bool          `json:"valid,omitempty"`
}

func (s *Server) wizardView(sess *session) wizardResponse {
	st := sess.ctrl.State()
	fl := sess.ctrl.Flow()
	return wizardResponse{
		ID:      sess.id,
		Title:   fl.Title,
		Steps:   fl.Steps,
		State:   st,
		Derived: flows.Derived(fl.Name, st.Fields, s.deps.Clock()),
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(v)
}

// session looks up the {id} path value and writes 404 when it is unknown.
func (s *Server) session(w http.ResponseWriter, r *http.Request) (*session, bool) {
	sess, ok := s.sessions.get(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "wizard session not found")
		return nil, false
	}
	return sess, true
}

func (s *Server) handleListFlows(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, flows.List())
}

func (s *Server) handleCreateWizard(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Flow string `json:"flow"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Flow == "" {
		writeError(w, http.StatusBadRequest, "flow is required")
		return
	}
	fl, err := flows.Build(req.Flow, s.deps)
	if err != nil {
		if errors.Is(err, flows.ErrUnknownFlow) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	sess := s.sessions.create(fl)
	writeJSON(w, http.StatusCreated, s.wizardView(sess))
}

func (s *Server) handleGetWizard(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.wizardView(sess))
}

func (s *Server) handleSetFields(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req struct {
		Fields map[string]any           `json:"fields"`
		Secure map[string]securePayload `json:"secure"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	plain, err := s.keys.decryptSecureValues(sess.ctrl.Flow(), req.Secure)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	values := make(map[string]any, len(req.Fields)+len(plain))
	for k, v := range req.Fields {
		values[k] = v
	}
	for k, v := range plain {
		values[k] = v
	}
	if len(values) > 0 {
		sess.ctrl.SetFields(values)
	}
	writeJSON(w, http.StatusOK, s.wizardView(sess))
}

func (s *Server) handleNext(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	res := sess.ctrl.Next()
	valid := res.OK()
	view := s.wizardView(sess)
	view.Valid = &valid
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handlePrevious(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	sess.ctrl.Previous()
	writeJSON(w, http.StatusOK, s.wizardView(sess))
}

func (s *Server) handleGoTo(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req struct {
		Step int `json:"step"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	err := sess.ctrl.GoToStep(req.Step)
	if errors.Is(err, wizard.ErrStepOutOfRange) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	valid := err == nil
	view := s.wizardView(sess)
	view.Valid = &valid
	writeJSON(w, http.StatusOK, view)
}

// handleSubmit streams submission progress. The stream only opens once the controller has
// accepted the submission, so rejections are plain JSON responses. The submission is not tied
// to the request: a client that disconnects stops receiving events, the submission itself runs
// to completion. Deleting the session cancels it.
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	if _, ok := w.(http.Flusher); !ok {
		writeError(w, http.StatusInternalServerError, errStreamingUnsupported.Error())
		return
	}

	var stream *sseStream
	open := wizard.OnStart(func() {
		// The Flusher check above makes this infallible.
		stream, _ = newSSEStream(w, r, s.logger)
		stream.keepAlive(s.keepAlive)
	})
	progress := func(format string, args ...any) { stream.progress(format, args...) }

	ctx := context.WithoutCancel(r.Context())
	outcome, err := sess.ctrl.Submit(ctx, progress, open)
	if stream == nil {
		s.rejectSubmit(w, sess, err)
		return
	}
	stream.stopKeepAlive()

	if err != nil {
		var vErr *wizard.ValidationError
		if !errors.As(err, &vErr) {
			s.logger.Warn("submission failed",
				zap.String("session_id", sess.id),
				zap.String("flow", sess.ctrl.Flow().Name),
				zap.Error(err))
		}
		stream.send(markerError + " " + wizard.UserMessage(err))
		return
	}

	payload, err := json.Marshal(outcome)
	if err != nil {
		stream.send(markerError + " " + wizard.GenericErrorMessage)
		return
	}
	s.logger.Info("submission completed",
		zap.String("session_id", sess.id),
		zap.String("flow", sess.ctrl.Flow().Name),
		zap.String("id", outcome.ID))
	if !stream.send(markerDone + " " + string(payload)) {
		s.logger.Debug("submission finished after client left", zap.String("session_id", sess.id), zap.Error(stream.failed()))
	}
}

// rejectSubmit answers a submission the controller refused before starting it.
func (s *Server) rejectSubmit(w http.ResponseWriter, sess *session, err error) {
	var vErr *wizard.ValidationError
	switch {
	case errors.As(err, &vErr):
		valid := false
		view := s.wizardView(sess)
		view.Valid = &valid
		writeJSON(w, http.StatusUnprocessableEntity, view)
	case errors.Is(err, wizard.ErrSubmitInFlight), errors.Is(err, wizard.ErrNotTerminal):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, wizard.ErrClosed):
		writeError(w, http.StatusNotFound, "wizard session not found")
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "submission did not start")
	}
}

func (s *Server) handleDeleteWizard(w http.ResponseWriter, r *http.Request) {
	if !s.sessions.remove(r.PathValue("id")) {
		writeError(w, http.StatusNotFound, "wizard session not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type dashboardResponse struct {
	Kind     dashboard.Kind     `json:"kind"`
	Items    any                `json:"items"`
	Error    string             `json:"error,omitempty"`
	Fallback bool               `json:"fallback"`
	Metrics  map[string]float64 `json:"metrics"`
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	kind, err := dashboard.ParseKind(r.PathValue("kind"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if s.loader == nil {
		writeError(w, http.StatusServiceUnavailable, "dashboards are not configured")
		return
	}
	v := s.loader.Load(r.Context(), kind)
	resp := dashboardResponse{
		Kind:     v.Kind,
		Items:    v.Items,
		Fallback: v.UsingFallback,
		Metrics:  dashboard.Metrics(v),
	}
	if v.Err != nil {
		resp.Error = wizard.UserMessage(v.Err)
		if !v.UsingFallback {
			writeJSON(w, http.StatusBadGateway, resp)
			return
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCompleteFunding(w http.ResponseWriter, r *http.Request) {
	if s.deps.Launcher == nil {
		writeError(w, http.StatusServiceUnavailable, "campaign backend is not configured")
		return
	}
	var req struct {
		Amount float64 `json:"amount"`
	}
	if r.ContentLength != 0 {
		if err := decodeBody(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	id := r.PathValue("id")
	res, err := s.deps.Launcher.CompleteFunding(r.Context(), id, req.Amount, nil)
	if err != nil {
		status := http.StatusBadGateway
		var partial *campaign.PartialError
		switch {
		case errors.Is(err, campaign.ErrNoAmount):
			status = http.StatusBadRequest
		case errors.As(err, &partial):
		case api.StatusCode(err) == http.StatusNotFound:
			status = http.StatusNotFound
		}
		s.logger.Warn("complete funding failed", zap.String("campaign_id", id), zap.Error(err))
		writeJSON(w, status, map[string]any{"error": wizard.UserMessage(err), "result": res})
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handlePublicKey(w http.ResponseWriter, r *http.Request) {
	keyID, spkiB64, err := s.keys.publicKey()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"alg":     "RSA-OAEP-256",
		"keyId":   keyID,
		"spkiB64": spkiB64,
	})
}
