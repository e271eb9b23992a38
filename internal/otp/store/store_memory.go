package store

import (
	"context"
	"sync"
	"time"

	"enrolld/internal/otp/models"
)

// MemoryStore keeps one-time codes in memory for unit tests and local runs.
type MemoryStore struct {
	mu   sync.RWMutex
	otps map[string]models.Otp
}

// NewMemory constructs an in-memory OTP store.
func NewMemory() *MemoryStore {
	return &MemoryStore{otps: make(map[string]models.Otp)}
}

func (s *MemoryStore) Create(_ context.Context, otp *models.Otp) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.otps[otp.ID] = *otp
	return nil
}

func (s *MemoryStore) Update(_ context.Context, otp *models.Otp) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.otps[otp.ID]; !ok {
		return ErrNotFound
	}
	s.otps[otp.ID] = *otp
	return nil
}

func (s *MemoryStore) FindNewest(_ context.Context, processID string, otpType models.Type) (*models.Otp, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var newest *models.Otp
	for id := range s.otps {
		o := s.otps[id]
		if o.ProcessID != processID || o.Type != otpType {
			continue
		}
		if newest == nil || o.TimestampCreated.After(newest.TimestampCreated) {
			match := o
			newest = &match
		}
	}
	if newest == nil {
		return nil, ErrNotFound
	}
	return newest, nil
}

func (s *MemoryStore) CancelActive(_ context.Context, processID string, otpType models.Type) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	canceled := 0
	for id, o := range s.otps {
		if o.ProcessID == processID && o.Type == otpType && o.Status == models.StatusActive {
			o.Status = models.StatusCanceled
			o.TimestampUpdated = time.Now()
			s.otps[id] = o
			canceled++
		}
	}
	return canceled, nil
}
