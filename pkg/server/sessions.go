package server

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/zdunecki/matchfund/pkg/wizard"
)

type session struct {
	id   string
	ctrl *wizard.Controller

	mu       sync.Mutex
	lastSeen time.Time
}

func (s *session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// sessionStore keeps one wizard controller per browser session.
type sessionStore struct {
	ttl    time.Duration
	now    func() time.Time
	logger *zap.Logger

	mu       sync.Mutex
	sessions map[string]*session
}

func newSessionStore(ttl time.Duration, logger *zap.Logger) *sessionStore {
	return &sessionStore{
		ttl:      ttl,
		now:      time.Now,
		logger:   logger,
		sessions: make(map[string]*session),
	}
}

func (st *sessionStore) create(flow *wizard.Flow) *session {
	s := &session{
		id:       uuid.NewString(),
		ctrl:     wizard.NewController(flow),
		lastSeen: st.now(),
	}
	st.mu.Lock()
	st.sessions[s.id] = s
	st.mu.Unlock()
	st.logger.Info("wizard session created", zap.String("session_id", s.id), zap.String("flow", flow.Name))
	return s
}

func (st *sessionStore) get(id string) (*session, bool) {
	st.mu.Lock()
	s, ok := st.sessions[id]
	st.mu.Unlock()
	if ok {
		s.touch(st.now())
	}
	return s, ok
}

// remove closes the session's controller. An in-flight submission result is dropped.
func (st *sessionStore) remove(id string) bool {
	st.mu.Lock()
	s, ok := st.sessions[id]
	delete(st.sessions, id)
	st.mu.Unlock()
	if ok {
		s.ctrl.Close()
		st.logger.Info("wizard session closed", zap.String("session_id", id))
	}
	return ok
}

// sweep closes sessions idle for longer than the TTL. Sessions with a submission in flight
// are kept until it finishes.
func (st *sessionStore) sweep() int {
	if st.ttl <= 0 {
		return 0
	}
	cutoff := st.now().Add(-st.ttl)

	var expired []*session
	st.mu.Lock()
	for id, s := range st.sessions {
		if s.idleSince().Before(cutoff) && !s.ctrl.State().Submitting {
			expired = append(expired, s)
			delete(st.sessions, id)
		}
	}
	st.mu.Unlock()

	for _, s := range expired {
		s.ctrl.Close()
		st.logger.Info("wizard session expired", zap.String("session_id", s.id))
	}
	return len(expired)
}

func (st *sessionStore) closeAll() {
	st.mu.Lock()
	all := st.sessions
	st.sessions = make(map[string]*session)
	st.mu.Unlock()
	for _, s := range all {
		s.ctrl.Close()
	}
}

func (st *sessionStore) len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}

// runSweeper sweeps every interval until ctx is done.
func (st *sessionStore) runSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			st.sweep()
		}
	}
}
