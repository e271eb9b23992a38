//go:build integration

package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"enrolld/internal/identity/models"
	"enrolld/internal/identity/store"
	onboarding "enrolld/internal/onboarding/models"
	"enrolld/internal/platform/database"
	"enrolld/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())
	s.Require().NoError(database.EnsureSchema(context.Background(), s.postgres.DB))
	s.store = store.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateAll(context.Background()))
}

func (s *PostgresStoreSuite) newVerification(id string, created time.Time) *models.IdentityVerification {
	return &models.IdentityVerification{
		ID:               id,
		ActivationID:     "act-1",
		UserID:           "user-1",
		ProcessID:        "proc-1",
		Phase:            models.PhaseDocumentUpload,
		Status:           models.StatusInProgress,
		TimestampCreated: created,
	}
}

func (s *PostgresStoreSuite) newDocument(id, verificationID string, created time.Time) *models.DocumentVerification {
	return &models.DocumentVerification{
		ID:                     id,
		ActivationID:           "act-1",
		IdentityVerificationID: verificationID,
		Type:                   models.DocumentTypeIDCard,
		Side:                   models.CardSideFront,
		Status:                 models.DocumentStatusVerificationPending,
		Filename:               id + ".jpg",
		UploadID:               "up-" + id,
		UsedForVerification:    true,
		TimestampCreated:       created,
	}
}

func (s *PostgresStoreSuite) TestVerificationRoundTrip() {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	iv := s.newVerification("iv-1", now)
	s.Require().NoError(s.store.CreateVerification(ctx, iv))

	found, err := s.store.FindLatestVerificationByActivation(ctx, "act-1")
	s.Require().NoError(err)
	s.Equal("iv-1", found.ID)
	s.Equal(models.PhaseDocumentUpload, found.Phase)
	s.Equal(models.StatusInProgress, found.Status)
	s.Empty(found.RejectReason)

	found.Phase = models.PhaseCompleted
	found.Status = models.StatusFailed
	found.ErrorDetail = models.ErrorDocumentVerificationFailed
	found.ErrorOrigin = onboarding.OriginFinalValidation
	found.TimestampUpdated = now
	found.TimestampFailed = now
	s.Require().NoError(s.store.UpdateVerification(ctx, found))

	updated, err := s.store.FindLatestVerificationByActivation(ctx, "act-1")
	s.Require().NoError(err)
	s.Equal(models.PhaseCompleted, updated.Phase)
	s.Equal(models.StatusFailed, updated.Status)
	s.Equal(models.ErrorDocumentVerificationFailed, updated.ErrorDetail)
	s.Equal(onboarding.OriginFinalValidation, updated.ErrorOrigin)
}

func (s *PostgresStoreSuite) TestLatestVerificationWinsByCreation() {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	s.Require().NoError(s.store.CreateVerification(ctx, s.newVerification("iv-old", now.Add(-time.Hour))))
	s.Require().NoError(s.store.CreateVerification(ctx, s.newVerification("iv-new", now)))

	found, err := s.store.FindLatestVerificationByActivation(ctx, "act-1")
	s.Require().NoError(err)
	s.Equal("iv-new", found.ID)
}

func (s *PostgresStoreSuite) TestUpdateVerificationUnknownReturnsNotFound() {
	err := s.store.UpdateVerification(context.Background(), s.newVerification("ghost", time.Now().UTC()))
	s.ErrorIs(err, store.ErrNotFound)
}

func (s *PostgresStoreSuite) TestListVerificationsWithDocumentsInProgress() {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	running := s.newVerification("iv-run", now)
	running.Phase = models.PhaseDocumentVerification
	s.Require().NoError(s.store.CreateVerification(ctx, running))

	uploading := s.newVerification("iv-up", now)
	uploading.ActivationID = "act-2"
	s.Require().NoError(s.store.CreateVerification(ctx, uploading))

	list, err := s.store.ListVerificationsWithDocumentsInProgress(ctx)
	s.Require().NoError(err)
	s.Require().Len(list, 1)
	s.Equal("iv-run", list[0].ID)
}

func (s *PostgresStoreSuite) TestFailRunningVerifications() {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	running := s.newVerification("iv-run", now.Add(-time.Minute))
	s.Require().NoError(s.store.CreateVerification(ctx, running))

	done := s.newVerification("iv-done", now)
	done.Phase = models.PhaseCompleted
	done.Status = models.StatusAccepted
	s.Require().NoError(s.store.CreateVerification(ctx, done))

	s.Require().NoError(s.store.FailRunningVerifications(ctx, "act-1", now))

	latest, err := s.store.FindLatestVerificationByActivation(ctx, "act-1")
	s.Require().NoError(err)
	s.Equal(models.StatusAccepted, latest.Status, "terminal verification stays untouched")

	list, err := s.store.ListVerificationsWithDocumentsInProgress(ctx)
	s.Require().NoError(err)
	s.Empty(list)
}

func (s *PostgresStoreSuite) TestDocumentStatusFilter() {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	pending := s.newDocument("d1", "iv-1", now.Add(-time.Minute))
	accepted := s.newDocument("d2", "iv-1", now)
	accepted.Status = models.DocumentStatusAccepted
	s.Require().NoError(s.store.CreateDocument(ctx, pending))
	s.Require().NoError(s.store.CreateDocument(ctx, accepted))

	all, err := s.store.ListDocuments(ctx, "iv-1", nil)
	s.Require().NoError(err)
	s.Len(all, 2)

	onlyAccepted, err := s.store.ListDocuments(ctx, "iv-1", []models.DocumentStatus{models.DocumentStatusAccepted})
	s.Require().NoError(err)
	s.Require().Len(onlyAccepted, 1)
	s.Equal("d2", onlyAccepted[0].ID)
}

func (s *PostgresStoreSuite) TestDocumentUpdateRoundTrip() {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	doc := s.newDocument("d1", "iv-1", now)
	s.Require().NoError(s.store.CreateDocument(ctx, doc))

	doc.Status = models.DocumentStatusAccepted
	doc.VerificationID = "ver-1"
	doc.PhotoID = "photo-1"
	doc.TimestampUpdated = now
	s.Require().NoError(s.store.UpdateDocument(ctx, doc))

	found, err := s.store.FindDocumentByID(ctx, "d1")
	s.Require().NoError(err)
	s.Equal(models.DocumentStatusAccepted, found.Status)
	s.Equal("ver-1", found.VerificationID)
	s.Equal("photo-1", found.PhotoID)
	s.True(found.UsedForVerification)
}

func (s *PostgresStoreSuite) TestListDocumentsPendingSubmitCheck() {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	inProvider := s.newDocument("d1", "iv-1", now)
	inProvider.Status = models.DocumentStatusUploadInProgress
	s.Require().NoError(s.store.CreateDocument(ctx, inProvider))

	unsubmitted := s.newDocument("d2", "iv-1", now)
	unsubmitted.Status = models.DocumentStatusUploadInProgress
	unsubmitted.UploadID = ""
	s.Require().NoError(s.store.CreateDocument(ctx, unsubmitted))

	list, err := s.store.ListDocumentsPendingSubmitCheck(ctx)
	s.Require().NoError(err)
	s.Require().Len(list, 1)
	s.Equal("d1", list[0].ID)
}

func (s *PostgresStoreSuite) TestFailDocumentsNotFinished() {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	pending := s.newDocument("d1", "iv-1", now.Add(-time.Minute))
	accepted := s.newDocument("d2", "iv-1", now)
	accepted.Status = models.DocumentStatusAccepted
	s.Require().NoError(s.store.CreateDocument(ctx, pending))
	s.Require().NoError(s.store.CreateDocument(ctx, accepted))

	s.Require().NoError(s.store.FailDocumentsNotFinished(ctx, "act-1", now))

	d1, err := s.store.FindDocumentByID(ctx, "d1")
	s.Require().NoError(err)
	s.Equal(models.DocumentStatusFailed, d1.Status)

	d2, err := s.store.FindDocumentByID(ctx, "d2")
	s.Require().NoError(err)
	s.Equal(models.DocumentStatusAccepted, d2.Status)
}

func (s *PostgresStoreSuite) TestLatestResultGovernsDocument() {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	s.Require().NoError(s.store.AppendResult(ctx, &models.DocumentResult{
		ID:                     "r1",
		DocumentVerificationID: "d1",
		Phase:                  models.ResultPhaseUpload,
		ErrorDetail:            "blurry scan",
		TimestampCreated:       now.Add(-time.Minute),
	}))
	s.Require().NoError(s.store.AppendResult(ctx, &models.DocumentResult{
		ID:                     "r2",
		DocumentVerificationID: "d1",
		Phase:                  models.ResultPhaseVerification,
		ExtractedData:          `{"name":"Jan Novak"}`,
		TimestampCreated:       now,
	}))

	latest, err := s.store.LatestResultForDocument(ctx, "d1")
	s.Require().NoError(err)
	s.Equal("r2", latest.ID)
	s.Equal(models.ResultPhaseVerification, latest.Phase)
	s.Equal(`{"name":"Jan Novak"}`, latest.ExtractedData)
	s.Empty(latest.ErrorDetail)
}

func (s *PostgresStoreSuite) TestStagedUploadLifecycle() {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	upload := &models.StagedUpload{
		ID:                     "up-1",
		ActivationID:           "act-1",
		IdentityVerificationID: "iv-1",
		Filename:               "front.jpg",
		Data:                   []byte{0xff, 0xd8, 0xff},
		TimestampCreated:       now,
	}
	s.Require().NoError(s.store.CreateStagedUpload(ctx, upload))

	found, err := s.store.FindStagedUpload(ctx, "up-1")
	s.Require().NoError(err)
	s.Equal("front.jpg", found.Filename)
	s.Equal([]byte{0xff, 0xd8, 0xff}, found.Data)

	s.Require().NoError(s.store.DeleteStagedUploadsByActivation(ctx, "act-1"))
	_, err = s.store.FindStagedUpload(ctx, "up-1")
	s.ErrorIs(err, store.ErrNotFound)
}

func (s *PostgresStoreSuite) TestListUploadIDs() {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	withUpload := s.newDocument("d1", "iv-1", now)
	withoutUpload := s.newDocument("d2", "iv-1", now)
	withoutUpload.UploadID = ""
	s.Require().NoError(s.store.CreateDocument(ctx, withUpload))
	s.Require().NoError(s.store.CreateDocument(ctx, withoutUpload))

	ids, err := s.store.ListUploadIDs(ctx, "act-1")
	s.Require().NoError(err)
	s.Equal([]string{"up-d1"}, ids)
}
