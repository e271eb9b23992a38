//go:build integration

package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"enrolld/internal/otp/models"
	"enrolld/internal/otp/store"
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

func (s *PostgresStoreSuite) newOtp(id string, created time.Time) *models.Otp {
	return &models.Otp{
		ID:               id,
		ProcessID:        "proc-1",
		Type:             models.TypeActivation,
		Code:             "12345678",
		Status:           models.StatusActive,
		ExpiresAt:        created.Add(30 * time.Second),
		TimestampCreated: created,
	}
}

func (s *PostgresStoreSuite) TestCreateAndFindNewest() {
	ctx := context.Background()
	created := time.Now().UTC().Truncate(time.Microsecond)

	s.Require().NoError(s.store.Create(ctx, s.newOtp("otp-1", created)))

	found, err := s.store.FindNewest(ctx, "proc-1", models.TypeActivation)
	s.Require().NoError(err)
	s.Equal("otp-1", found.ID)
	s.Equal("12345678", found.Code)
	s.Equal(models.StatusActive, found.Status)
	s.Equal(0, found.FailedAttempts)
	s.WithinDuration(created.Add(30*time.Second), found.ExpiresAt, time.Millisecond)
}

func (s *PostgresStoreSuite) TestFindNewestPicksLatest() {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	s.Require().NoError(s.store.Create(ctx, s.newOtp("otp-old", now.Add(-time.Minute))))
	s.Require().NoError(s.store.Create(ctx, s.newOtp("otp-new", now)))

	found, err := s.store.FindNewest(ctx, "proc-1", models.TypeActivation)
	s.Require().NoError(err)
	s.Equal("otp-new", found.ID)
}

func (s *PostgresStoreSuite) TestFindNewestFiltersOnType() {
	ctx := context.Background()
	otp := s.newOtp("otp-1", time.Now().UTC())
	otp.Type = models.TypeUserVerification
	s.Require().NoError(s.store.Create(ctx, otp))

	_, err := s.store.FindNewest(ctx, "proc-1", models.TypeActivation)
	s.ErrorIs(err, store.ErrNotFound)
}

func (s *PostgresStoreSuite) TestUpdatePersistsAttempts() {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	otp := s.newOtp("otp-1", now)
	s.Require().NoError(s.store.Create(ctx, otp))

	otp.FailedAttempts = 3
	otp.Status = models.StatusFailed
	otp.TimestampUpdated = now
	s.Require().NoError(s.store.Update(ctx, otp))

	found, err := s.store.FindNewest(ctx, "proc-1", models.TypeActivation)
	s.Require().NoError(err)
	s.Equal(3, found.FailedAttempts)
	s.Equal(models.StatusFailed, found.Status)
}

func (s *PostgresStoreSuite) TestUpdateUnknownReturnsNotFound() {
	err := s.store.Update(context.Background(), s.newOtp("ghost", time.Now().UTC()))
	s.ErrorIs(err, store.ErrNotFound)
}

func (s *PostgresStoreSuite) TestCancelActiveOnlyTouchesActive() {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	used := s.newOtp("otp-used", now.Add(-time.Minute))
	used.Status = models.StatusUsed
	s.Require().NoError(s.store.Create(ctx, used))
	s.Require().NoError(s.store.Create(ctx, s.newOtp("otp-active", now)))

	canceled, err := s.store.CancelActive(ctx, "proc-1", models.TypeActivation)
	s.Require().NoError(err)
	s.Equal(1, canceled)

	found, err := s.store.FindNewest(ctx, "proc-1", models.TypeActivation)
	s.Require().NoError(err)
	s.Equal("otp-active", found.ID)
	s.Equal(models.StatusCanceled, found.Status)
}
