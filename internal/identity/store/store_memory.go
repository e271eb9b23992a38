package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"enrolld/internal/identity/models"
)

// MemoryStore is an in-memory Store used in unit tests. It mirrors the
// PostgreSQL semantics including newest-first lookups.
type MemoryStore struct {
	mu            sync.RWMutex
	verifications map[string]*models.IdentityVerification
	documents     map[string]*models.DocumentVerification
	results       map[string][]*models.DocumentResult
	uploads       map[string]*models.StagedUpload
}

// NewMemory constructs an empty in-memory identity store.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		verifications: make(map[string]*models.IdentityVerification),
		documents:     make(map[string]*models.DocumentVerification),
		results:       make(map[string][]*models.DocumentResult),
		uploads:       make(map[string]*models.StagedUpload),
	}
}

func (s *MemoryStore) CreateVerification(_ context.Context, iv *models.IdentityVerification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *iv
	s.verifications[iv.ID] = &clone
	return nil
}

func (s *MemoryStore) UpdateVerification(_ context.Context, iv *models.IdentityVerification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.verifications[iv.ID]; !ok {
		return ErrNotFound
	}
	clone := *iv
	s.verifications[iv.ID] = &clone
	return nil
}

func (s *MemoryStore) FindLatestVerificationByActivation(_ context.Context, activationID string) (*models.IdentityVerification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var latest *models.IdentityVerification
	for _, iv := range s.verifications {
		if iv.ActivationID != activationID {
			continue
		}
		if latest == nil || iv.TimestampCreated.After(latest.TimestampCreated) {
			latest = iv
		}
	}
	if latest == nil {
		return nil, ErrNotFound
	}
	clone := *latest
	return &clone, nil
}

func (s *MemoryStore) ListVerificationsWithDocumentsInProgress(_ context.Context) ([]models.IdentityVerification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.IdentityVerification
	for _, iv := range s.verifications {
		if iv.Phase == models.PhaseDocumentVerification && iv.Status == models.StatusInProgress {
			out = append(out, *iv)
		}
	}
	sortVerifications(out)
	return out, nil
}

func (s *MemoryStore) FailRunningVerifications(_ context.Context, activationID string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, iv := range s.verifications {
		if iv.ActivationID != activationID {
			continue
		}
		if iv.Status == models.StatusInProgress || iv.Status == models.StatusVerificationPending {
			iv.Status = models.StatusFailed
			iv.TimestampUpdated = now
			iv.TimestampFailed = now
		}
	}
	return nil
}

func (s *MemoryStore) CreateDocument(_ context.Context, doc *models.DocumentVerification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *doc
	s.documents[doc.ID] = &clone
	return nil
}

func (s *MemoryStore) UpdateDocument(_ context.Context, doc *models.DocumentVerification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.documents[doc.ID]; !ok {
		return ErrNotFound
	}
	clone := *doc
	s.documents[doc.ID] = &clone
	return nil
}

func (s *MemoryStore) FindDocumentByID(_ context.Context, id string) (*models.DocumentVerification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.documents[id]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *doc
	return &clone, nil
}

func (s *MemoryStore) ListDocuments(_ context.Context, identityVerificationID string, statuses []models.DocumentStatus) ([]models.DocumentVerification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.DocumentVerification
	for _, doc := range s.documents {
		if doc.IdentityVerificationID != identityVerificationID {
			continue
		}
		if len(statuses) > 0 && !containsStatus(statuses, doc.Status) {
			continue
		}
		out = append(out, *doc)
	}
	sortDocuments(out)
	return out, nil
}

func (s *MemoryStore) ListDocumentsUsedForVerification(_ context.Context, identityVerificationID string) ([]models.DocumentVerification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.DocumentVerification
	for _, doc := range s.documents {
		if doc.IdentityVerificationID == identityVerificationID && doc.UsedForVerification {
			out = append(out, *doc)
		}
	}
	sortDocuments(out)
	return out, nil
}

func (s *MemoryStore) ListUploadIDs(_ context.Context, activationID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []string
	for _, doc := range s.documents {
		if doc.ActivationID == activationID && doc.UploadID != "" {
			out = append(out, doc.UploadID)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (s *MemoryStore) SetOtherSide(_ context.Context, documentID, otherSideID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if doc, ok := s.documents[documentID]; ok {
		doc.OtherSideID = otherSideID
	}
	return nil
}

func (s *MemoryStore) FailDocumentsNotFinished(_ context.Context, activationID string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, doc := range s.documents {
		if doc.ActivationID != activationID {
			continue
		}
		if containsStatus(models.DocumentStatusesNotFinished, doc.Status) {
			doc.Status = models.DocumentStatusFailed
			doc.TimestampUpdated = now
		}
	}
	return nil
}

func (s *MemoryStore) ListDocumentsPendingSubmitCheck(_ context.Context) ([]models.DocumentVerification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.DocumentVerification
	for _, doc := range s.documents {
		if doc.Status == models.DocumentStatusUploadInProgress && doc.UploadID != "" {
			out = append(out, *doc)
		}
	}
	sortDocuments(out)
	return out, nil
}

func (s *MemoryStore) AppendResult(_ context.Context, result *models.DocumentResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *result
	s.results[result.DocumentVerificationID] = append(s.results[result.DocumentVerificationID], &clone)
	return nil
}

func (s *MemoryStore) LatestResultForDocument(_ context.Context, documentVerificationID string) (*models.DocumentResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	results := s.results[documentVerificationID]
	if len(results) == 0 {
		return nil, ErrNotFound
	}
	latest := results[0]
	for _, r := range results[1:] {
		if !r.TimestampCreated.Before(latest.TimestampCreated) {
			latest = r
		}
	}
	clone := *latest
	return &clone, nil
}

func (s *MemoryStore) CreateStagedUpload(_ context.Context, upload *models.StagedUpload) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *upload
	clone.Data = append([]byte(nil), upload.Data...)
	s.uploads[upload.ID] = &clone
	return nil
}

func (s *MemoryStore) FindStagedUpload(_ context.Context, id string) (*models.StagedUpload, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	upload, ok := s.uploads[id]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *upload
	clone.Data = append([]byte(nil), upload.Data...)
	return &clone, nil
}

func (s *MemoryStore) DeleteStagedUpload(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.uploads, id)
	return nil
}

func (s *MemoryStore) DeleteStagedUploadsByActivation(_ context.Context, activationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, upload := range s.uploads {
		if upload.ActivationID == activationID {
			delete(s.uploads, id)
		}
	}
	return nil
}

func containsStatus(statuses []models.DocumentStatus, status models.DocumentStatus) bool {
	for _, st := range statuses {
		if st == status {
			return true
		}
	}
	return false
}

func sortVerifications(ivs []models.IdentityVerification) {
	sort.Slice(ivs, func(i, j int) bool {
		if ivs[i].TimestampCreated.Equal(ivs[j].TimestampCreated) {
			return ivs[i].ID < ivs[j].ID
		}
		return ivs[i].TimestampCreated.Before(ivs[j].TimestampCreated)
	})
}

func sortDocuments(docs []models.DocumentVerification) {
	sort.Slice(docs, func(i, j int) bool {
		if docs[i].TimestampCreated.Equal(docs[j].TimestampCreated) {
			return docs[i].ID < docs[j].ID
		}
		return docs[i].TimestampCreated.Before(docs[j].TimestampCreated)
	})
}
