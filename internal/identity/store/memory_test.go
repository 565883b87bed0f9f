package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"housing/internal/identity/models"
	"housing/pkg/domain"
	"housing/pkg/platform/sentinel"
)

type IdentityStoreSuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
}

func TestIdentityStoreSuite(t *testing.T) {
	suite.Run(t, new(IdentityStoreSuite))
}

func (s *IdentityStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
}

func (s *IdentityStoreSuite) newRecord(email string) *models.Record {
	rec, err := models.NewRecord(domain.NewIdentityID(), "Test", email, domain.RoleStudent, "42", "hash", time.Now())
	s.Require().NoError(err)
	return rec
}

func (s *IdentityStoreSuite) TestCreateAndFind() {
	s.Run("finds by id and email", func() {
		rec := s.newRecord("a@univ.dz")
		s.Require().NoError(s.store.Create(s.ctx, rec))

		byID, err := s.store.FindByID(s.ctx, rec.ID)
		s.Require().NoError(err)
		s.Equal(rec.Email, byID.Email)

		byEmail, err := s.store.FindByEmail(s.ctx, "a@univ.dz")
		s.Require().NoError(err)
		s.Equal(rec.ID, byEmail.ID)
	})

	s.Run("duplicate email conflicts", func() {
		s.Require().NoError(s.store.Create(s.ctx, s.newRecord("dup@univ.dz")))
		s.ErrorIs(s.store.Create(s.ctx, s.newRecord("dup@univ.dz")), sentinel.ErrConflict)
	})

	s.Run("unknown id is not found", func() {
		_, err := s.store.FindByID(s.ctx, domain.NewIdentityID())
		s.ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("returned records are copies", func() {
		rec := s.newRecord("copy@univ.dz")
		s.Require().NoError(s.store.Create(s.ctx, rec))
		found, err := s.store.FindByID(s.ctx, rec.ID)
		s.Require().NoError(err)
		found.DisplayName = "changed"

		again, err := s.store.FindByID(s.ctx, rec.ID)
		s.Require().NoError(err)
		s.Equal("Test", again.DisplayName)
	})
}

func (s *IdentityStoreSuite) TestDelete() {
	rec := s.newRecord("gone@univ.dz")
	s.Require().NoError(s.store.Create(s.ctx, rec))
	s.Require().NoError(s.store.Delete(s.ctx, rec.ID))

	_, err := s.store.FindByID(s.ctx, rec.ID)
	s.ErrorIs(err, sentinel.ErrNotFound)
	s.NoError(s.store.Create(s.ctx, s.newRecord("gone@univ.dz")), "email is free again")
	s.NoError(s.store.Delete(s.ctx, domain.NewIdentityID()))
}

func (s *IdentityStoreSuite) TestExecute() {
	s.Run("mutation is persisted", func() {
		rec := s.newRecord("exec@univ.dz")
		s.Require().NoError(s.store.Create(s.ctx, rec))

		_, err := s.store.Execute(s.ctx, rec.ID,
			func(*models.Record) error { return nil },
			func(r *models.Record) { r.AccountStatus = domain.AccountApproved })
		s.Require().NoError(err)

		found, err := s.store.FindByID(s.ctx, rec.ID)
		s.Require().NoError(err)
		s.Equal(domain.AccountApproved, found.AccountStatus)
	})

	s.Run("validation error leaves record untouched", func() {
		rec := s.newRecord("veto@univ.dz")
		s.Require().NoError(s.store.Create(s.ctx, rec))
		veto := errors.New("veto")

		_, err := s.store.Execute(s.ctx, rec.ID,
			func(*models.Record) error { return veto },
			func(r *models.Record) { r.AccountStatus = domain.AccountApproved })
		s.ErrorIs(err, veto)

		found, err := s.store.FindByID(s.ctx, rec.ID)
		s.Require().NoError(err)
		s.Equal(domain.AccountPendingApproval, found.AccountStatus)
	})
}
