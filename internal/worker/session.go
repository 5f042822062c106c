// internal/worker/session.go
package worker

import "sync"

// Session tracks the worker's poll-loop state: breaker counters, the busy
// flag that serializes processing, and lifetime totals.
type Session struct {
	mu sync.Mutex

	processing bool
	stopped    bool

	processed int64
	succeeded int64
	failed    int64

	consecutive404      int
	consecutiveTimeouts int
	sawPollSuccess      bool
}

func NewSession() *Session {
	return &Session{}
}

// TryBeginJob claims the single processing slot. It returns false when a job
// is already in flight or the session is stopped.
func (s *Session) TryBeginJob() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.processing || s.stopped {
		return false
	}
	s.processing = true
	return true
}

// EndJob releases the processing slot and records the outcome.
func (s *Session) EndJob(succeeded bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.processing = false
	s.processed++
	if succeeded {
		s.succeeded++
	} else {
		s.failed++
	}
}

func (s *Session) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.processing
}

// RecordPollSuccess resets the breaker counters. Any 200 answer, including a
// null body, proves the poll route exists and the origin is responsive.
func (s *Session) RecordPollSuccess() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.consecutive404 = 0
	s.consecutiveTimeouts = 0
	s.sawPollSuccess = true
}

// Record404 bumps the missing-route counter and reports the new count.
func (s *Session) Record404() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.consecutive404++
	return s.consecutive404
}

// RecordTimeout bumps the timeout counter and reports the new count.
func (s *Session) RecordTimeout() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.consecutiveTimeouts++
	return s.consecutiveTimeouts
}

// SawPollSuccess reports whether the worker has ever gotten a 200 from the
// poll route. A 404 is only fatal before this flips.
func (s *Session) SawPollSuccess() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sawPollSuccess
}

// MarkStopped flips the session to stopped. Returns false if it already was,
// making stop idempotent.
func (s *Session) MarkStopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return false
	}
	s.stopped = true
	return true
}

func (s *Session) Stopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

// Totals reports lifetime processed/succeeded/failed counts.
func (s *Session) Totals() (processed, succeeded, failed int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.processed, s.succeeded, s.failed
}
