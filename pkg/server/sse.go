package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	markerDone  = "[MATCHFUND::DONE]"
	markerError = "[MATCHFUND::ERROR]"
)

var errStreamingUnsupported = errors.New("streaming not supported")

// sseStream writes server-sent events to one client. Writes are serialized, and once a write
// fails every later one is skipped so the work behind the stream can keep going.
type sseStream struct {
	w       http.ResponseWriter
	flusher http.Flusher
	ctx     context.Context
	logger  *zap.Logger

	mu  sync.Mutex
	err error

	stop chan struct{}
	done chan struct{}
}

func newSSEStream(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (*sseStream, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, errStreamingUnsupported
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	s := &sseStream{
		w:       w,
		flusher: flusher,
		ctx:     r.Context(),
		logger:  logger,
	}
	s.send("Connected")
	return s, nil
}

// send writes one data line. It reports false once the client is gone.
func (s *sseStream) send(data string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeLocked(fmt.Sprintf("data: %s\n\n", data))
}

func (s *sseStream) writeLocked(frame string) bool {
	if s.err != nil {
		return false
	}
	if err := s.ctx.Err(); err != nil {
		s.err = err
		s.logger.Debug("sse client disconnected", zap.Error(err))
		return false
	}
	if _, err := fmt.Fprint(s.w, frame); err != nil {
		s.err = err
		s.logger.Debug("sse write failed", zap.Error(err))
		return false
	}
	s.flusher.Flush()
	return true
}

// progress adapts the stream to a logf style callback. Each non-empty line becomes one event.
func (s *sseStream) progress(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	for _, line := range strings.Split(msg, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		if !s.send(line) {
			return
		}
	}
}

// keepAlive sends a comment frame every interval until stopKeepAlive is called.
func (s *sseStream) keepAlive(interval time.Duration) {
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	go func() {
		defer close(s.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-s.ctx.Done():
				return
			case <-s.stop:
				return
			case <-ticker.C:
				s.mu.Lock()
				ok := s.writeLocked(": keep-alive\n\n")
				s.mu.Unlock()
				if !ok {
					return
				}
			}
		}
	}()
}

func (s *sseStream) stopKeepAlive() {
	if s.stop == nil {
		return
	}
	close(s.stop)
	<-s.done
	s.stop = nil
}

func (s *sseStream) failed() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}
