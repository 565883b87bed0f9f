package service

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/suite"
	"golang.org/x/crypto/bcrypt"

	"housing/internal/identity/store"
	"housing/internal/platform/logger"
	workflowmodels "housing/internal/workflow/models"
	workflow "housing/internal/workflow/service"
	workflowstore "housing/internal/workflow/store"
	"housing/pkg/domain"
	dErrors "housing/pkg/domain-errors"
	"housing/pkg/platform/sentinel"
	"housing/pkg/secrets"
)

func TestMain(m *testing.M) {
	secrets.Cost = bcrypt.MinCost
	os.Exit(m.Run())
}

type failingOpener struct{}

func (failingOpener) OpenAccountApproval(context.Context, domain.IdentityID) (*workflowmodels.Request, error) {
	return nil, errors.New("queue unavailable")
}

type IdentityServiceSuite struct {
	suite.Suite
	ctx      context.Context
	store    *store.InMemory
	requests *workflowstore.InMemory
	engine   *workflow.Engine
	svc      *Service
}

func TestIdentityServiceSuite(t *testing.T) {
	suite.Run(t, new(IdentityServiceSuite))
}

func (s *IdentityServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = store.NewInMemory()
	s.requests = workflowstore.NewInMemory()
	s.svc = New(s.store, WithLogger(logger.Discard()))
	s.engine = workflow.New(s.requests,
		workflow.WithLogger(logger.Discard()),
		workflow.WithAccountStatusSetter(s.svc),
	)
	s.svc.AttachApprovals(s.engine)
}

func (s *IdentityServiceSuite) register(emailAddr string) *domain.Identity {
	identity, _, err := s.svc.Register(s.ctx, RegisterRequest{
		Email:         emailAddr,
		Password:      "s3cret-pass",
		Role:          "student",
		StudentNumber: "202312345",
	})
	s.Require().NoError(err)
	return identity
}

func (s *IdentityServiceSuite) TestRegister() {
	s.Run("opens an account approval and starts pending", func() {
		identity, approval, err := s.svc.Register(s.ctx, RegisterRequest{
			DisplayName:   "Amina Benali",
			Email:         " Amina@Univ.DZ ",
			Password:      "s3cret-pass",
			Role:          "student",
			StudentNumber: "202312345",
		})
		s.Require().NoError(err)
		s.Equal("amina@univ.dz", identity.Email)
		s.Equal(domain.AccountPendingApproval, identity.AccountStatus)
		s.Require().NotNil(approval)
		s.Equal(workflowmodels.KindAccountApproval, approval.Kind)
		s.Equal(identity.ID, approval.OwnerID)
	})

	s.Run("display name derived from email", func() {
		identity := s.register("karim.haddad@univ.dz")
		s.NotEmpty(identity.DisplayName)
	})

	s.Run("validation failures", func() {
		cases := map[string]RegisterRequest{
			"bad email":          {Email: "nope", Password: "s3cret-pass", Role: "student", StudentNumber: "1"},
			"short password":     {Email: "a@b.dz", Password: "short", Role: "student", StudentNumber: "1"},
			"unknown role":       {Email: "a@b.dz", Password: "s3cret-pass", Role: "Admin"},
			"student w/o number": {Email: "a@b.dz", Password: "s3cret-pass", Role: "student"},
		}
		for name, req := range cases {
			_, _, err := s.svc.Register(s.ctx, req)
			s.True(dErrors.HasCode(err, dErrors.CodeValidation), name)
		}
	})

	s.Run("duplicate email conflicts", func() {
		s.register("dup@univ.dz")
		_, _, err := s.svc.Register(s.ctx, RegisterRequest{
			Email: "DUP@univ.dz", Password: "s3cret-pass", Role: "administrator",
		})
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("approval opener failure leaves the email free", func() {
		directory := store.NewInMemory()
		svc := New(directory, WithLogger(logger.Discard()), WithApprovalOpener(failingOpener{}))
		req := RegisterRequest{Email: "x@univ.dz", Password: "s3cret-pass", Role: "service_manager"}

		_, _, err := svc.Register(s.ctx, req)
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
		_, err = directory.FindByEmail(s.ctx, "x@univ.dz")
		s.ErrorIs(err, sentinel.ErrNotFound)

		svc.AttachApprovals(workflow.New(workflowstore.NewInMemory(), workflow.WithLogger(logger.Discard())))
		identity, approval, err := svc.Register(s.ctx, req)
		s.Require().NoError(err)
		s.Require().NotNil(approval)
		s.Equal(identity.ID, approval.OwnerID)
	})
}

func (s *IdentityServiceSuite) TestAuthenticate() {
	identity := s.register("login@univ.dz")

	s.Run("correct password", func() {
		got, err := s.svc.Authenticate(s.ctx, "LOGIN@univ.dz", "s3cret-pass")
		s.Require().NoError(err)
		s.Equal(identity.ID, got.ID)
	})

	s.Run("wrong password and unknown email look the same", func() {
		_, wrongPass := s.svc.Authenticate(s.ctx, "login@univ.dz", "not-it-at-all")
		_, unknown := s.svc.Authenticate(s.ctx, "ghost@univ.dz", "s3cret-pass")
		s.True(dErrors.HasCode(wrongPass, dErrors.CodeUnauthorized))
		s.True(dErrors.HasCode(unknown, dErrors.CodeUnauthorized))
		s.Equal(wrongPass.Error(), unknown.Error())
	})
}

func (s *IdentityServiceSuite) TestAccountApprovalFlow() {
	identity, approval, err := s.svc.Register(s.ctx, RegisterRequest{
		Email: "flow@univ.dz", Password: "s3cret-pass", Role: "student", StudentNumber: "7",
	})
	s.Require().NoError(err)

	admin := domain.Actor{ID: domain.NewIdentityID(), Role: domain.RoleAdministrator}
	_, err = s.engine.Decide(s.ctx, admin, workflow.DecisionCall{RequestID: approval.ID, Action: workflowmodels.ActionApprove})
	s.Require().NoError(err)

	resolved, err := s.svc.ResolveIdentity(s.ctx, identity.ID)
	s.Require().NoError(err)
	s.Equal(domain.AccountApproved, resolved.AccountStatus)

	err = s.svc.SetAccountStatus(s.ctx, identity.ID, domain.AccountRejected)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidTransition))
}

func (s *IdentityServiceSuite) TestResolveIdentity() {
	_, err := s.svc.ResolveIdentity(s.ctx, domain.NewIdentityID())
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

	err = s.svc.SetAccountStatus(s.ctx, domain.NewIdentityID(), domain.AccountApproved)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *IdentityServiceSuite) TestEnsureAdministrator() {
	admin, err := s.svc.EnsureAdministrator(s.ctx, "Root@Univ.dz", "bootstrap-pass")
	s.Require().NoError(err)
	s.Equal(domain.RoleAdministrator, admin.Role)
	s.Equal(domain.AccountApproved, admin.AccountStatus)
	s.Equal("root@univ.dz", admin.Email)

	again, err := s.svc.EnsureAdministrator(s.ctx, "root@univ.dz", "different-pass")
	s.Require().NoError(err)
	s.Equal(admin.ID, again.ID)

	_, err = s.svc.Authenticate(s.ctx, "root@univ.dz", "bootstrap-pass")
	s.NoError(err)

	pending, err := s.requests.List(s.ctx, workflowmodels.Filter{OwnerID: admin.ID})
	s.Require().NoError(err)
	s.Empty(pending, "bootstrap does not open an approval")

	_, err = s.svc.EnsureAdministrator(s.ctx, "other@univ.dz", "short")
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}
