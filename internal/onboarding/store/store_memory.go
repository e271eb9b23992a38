package store

import (
	"context"
	"sync"
	"time"

	"enrolld/internal/onboarding/models"
)

// MemoryStore keeps processes in memory, mirroring the SQL semantics for unit
// tests and local runs.
type MemoryStore struct {
	mu        sync.RWMutex
	processes map[string]models.Process
}

// NewMemory constructs an in-memory process store.
func NewMemory() *MemoryStore {
	return &MemoryStore{processes: make(map[string]models.Process)}
}

func (s *MemoryStore) Create(_ context.Context, process *models.Process) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.processes[process.ID] = *process
	return nil
}

func (s *MemoryStore) Update(_ context.Context, process *models.Process) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.processes[process.ID]; !ok {
		return ErrNotFound
	}
	s.processes[process.ID] = *process
	return nil
}

func (s *MemoryStore) FindByID(_ context.Context, id string) (*models.Process, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.processes[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (s *MemoryStore) FindByFingerprint(_ context.Context, fingerprint string, status models.Status) (*models.Process, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var newest *models.Process
	for id := range s.processes {
		p := s.processes[id]
		if p.IdentificationData != fingerprint || p.Status != status {
			continue
		}
		if newest == nil || p.TimestampCreated.After(newest.TimestampCreated) {
			match := p
			newest = &match
		}
	}
	if newest == nil {
		return nil, ErrNotFound
	}
	return newest, nil
}

func (s *MemoryStore) FindByActivationID(_ context.Context, activationID string) (*models.Process, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for id := range s.processes {
		p := s.processes[id]
		if p.ActivationID == activationID && activationID != "" {
			return &p, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) FindByActivationIDAndStatus(_ context.Context, activationID string, status models.Status) (*models.Process, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for id := range s.processes {
		p := s.processes[id]
		if p.ActivationID == activationID && activationID != "" && p.Status == status {
			return &p, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) CountForUserSince(_ context.Context, userID string, since time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for id := range s.processes {
		p := s.processes[id]
		if p.UserID == userID && userID != "" && p.TimestampCreated.After(since) {
			count++
		}
	}
	return count, nil
}
