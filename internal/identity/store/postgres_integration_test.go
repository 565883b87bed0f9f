//go:build integration

package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"housing/internal/identity/models"
	"housing/internal/identity/store"
	"housing/pkg/domain"
	"housing/pkg/platform/sentinel"
	"housing/pkg/testutil/containers"
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
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.store = store.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "identities"))
}

func (s *PostgresStoreSuite) TestLifecycle() {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)
	rec, err := models.NewRecord(domain.NewIdentityID(), "Amina", "amina@univ.dz", domain.RoleStudent, "2023", "hash", now)
	s.Require().NoError(err)
	s.Require().NoError(s.store.Create(ctx, rec))

	dup, err := models.NewRecord(domain.NewIdentityID(), "Other", "amina@univ.dz", domain.RoleAdministrator, "", "hash", now)
	s.Require().NoError(err)
	s.ErrorIs(s.store.Create(ctx, dup), sentinel.ErrConflict)

	updated, err := s.store.Execute(ctx, rec.ID,
		func(r *models.Record) error { return nil },
		func(r *models.Record) { _ = r.ApplyStatus(domain.AccountApproved, now.Add(time.Minute)) })
	s.Require().NoError(err)
	s.Equal(domain.AccountApproved, updated.AccountStatus)

	found, err := s.store.FindByEmail(ctx, "amina@univ.dz")
	s.Require().NoError(err)
	s.Equal(domain.AccountApproved, found.AccountStatus)
	s.Equal("2023", found.StudentNumber)
}
