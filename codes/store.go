// Package codes is the process-local fallback for 2FA: an operator pastes a
// verification code through the ingress and the waiting worker picks it up.
// Slots are keyed by job and platform, so a job spanning several manual-2FA
// platforms has one independent waiter per platform. Entries are non-durable
// and cleared when their job terminates.
package codes

import (
	"regexp"
	"strings"
	"sync"
	"time"
)

var codePattern = regexp.MustCompile(`^[A-Z0-9]{4,8}$`)

// Valid reports whether a submitted code is acceptable after trimming.
func Valid(code string) bool {
	return codePattern.MatchString(strings.ToUpper(strings.TrimSpace(code)))
}

type Status string

const (
	StatusWaiting   Status = "waiting"
	StatusSubmitted Status = "submitted"
	StatusUnknown   Status = "unknown"
)

type slotKey struct {
	job      string
	platform string
}

type entry struct {
	code  string
	ready chan struct{}
}

type Store struct {
	mu      sync.Mutex
	entries map[slotKey]*entry
}

func NewStore() *Store {
	return &Store{entries: make(map[slotKey]*entry)}
}

// Prepare registers a pending-code slot for one job/platform waiter. Safe to
// call twice; an unconsumed slot is kept.
func (s *Store) Prepare(jobID, platform string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := slotKey{jobID, platform}
	if _, ok := s.entries[k]; !ok {
		s.entries[k] = &entry{ready: make(chan struct{})}
	}
}

// Submit stores the code and unblocks the matching waiter. An empty platform
// fans out to every pending slot of the job, covering the ingress shape that
// only carries (job, code). Returns false when the code is invalid or no
// slot accepted it.
func (s *Store) Submit(jobID, platform, code string) bool {
	code = strings.ToUpper(strings.TrimSpace(code))
	if !codePattern.MatchString(code) {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	delivered := false
	for k, e := range s.entries {
		if k.job != jobID {
			continue
		}
		if platform != "" && k.platform != platform {
			continue
		}
		if e.code == "" {
			e.code = code
			close(e.ready)
		}
		delivered = true
	}
	return delivered
}

// Wait blocks until a code is submitted for the slot or the timeout elapses.
// Returns the code and true, or "" and false on timeout or missing slot.
func (s *Store) Wait(jobID, platform string, timeout time.Duration) (string, bool) {
	s.mu.Lock()
	e, ok := s.entries[slotKey{jobID, platform}]
	s.mu.Unlock()
	if !ok {
		return "", false
	}

	select {
	case <-e.ready:
	case <-time.After(timeout):
		return "", false
	}

	return s.FetchAndClear(jobID, platform)
}

// FetchAndClear pops a submitted code without blocking.
func (s *Store) FetchAndClear(jobID, platform string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := slotKey{jobID, platform}
	e, ok := s.entries[k]
	if !ok || e.code == "" {
		return "", false
	}
	code := e.code
	delete(s.entries, k)
	return code, true
}

func (s *Store) Status(jobID, platform string) Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[slotKey{jobID, platform}]
	if !ok {
		return StatusUnknown
	}
	if e.code != "" {
		return StatusSubmitted
	}
	return StatusWaiting
}

// Clear drops every slot of the job, releasing any waiter with no code.
func (s *Store) Clear(jobID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, e := range s.entries {
		if k.job != jobID {
			continue
		}
		if e.code == "" {
			close(e.ready)
		}
		delete(s.entries, k)
	}
}
