package service

import (
	"sync"
	"time"

	"github.com/crm-electoral-api/internal/models"
)

// resultStore keeps per-row import outcomes in memory for a limited time.
// Row results are not persisted; a restart drops them while the job counters survive.
type resultStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]*resultEntry
}

type resultEntry struct {
	results   []models.ImportRowResult
	expiresAt time.Time
}

func newResultStore(ttl time.Duration) *resultStore {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &resultStore{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]*resultEntry),
	}
}

// Append adds one row outcome to a job, keeping file order
func (s *resultStore) Append(jobID string, r models.ImportRowResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sweepLocked()
	e, ok := s.entries[jobID]
	if !ok {
		e = &resultEntry{}
		s.entries[jobID] = e
	}
	e.results = append(e.results, r)
	e.expiresAt = s.now().Add(s.ttl)
}

// Get returns a copy of the outcomes recorded for a job
func (s *resultStore) Get(jobID string) []models.ImportRowResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[jobID]
	if !ok || s.now().After(e.expiresAt) {
		return nil
	}
	out := make([]models.ImportRowResult, len(e.results))
	copy(out, e.results)
	return out
}

// Failed returns only the failed outcomes of a job
func (s *resultStore) Failed(jobID string) []models.ImportRowResult {
	var failed []models.ImportRowResult
	for _, r := range s.Get(jobID) {
		if !r.Success {
			failed = append(failed, r)
		}
	}
	return failed
}

func (s *resultStore) sweepLocked() {
	now := s.now()
	for id, e := range s.entries {
		if now.After(e.expiresAt) {
			delete(s.entries, id)
		}
	}
}
