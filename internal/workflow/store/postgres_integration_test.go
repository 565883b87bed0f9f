//go:build integration

package store_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"housing/internal/workflow/models"
	"housing/internal/workflow/store"
	"housing/pkg/domain"
	"housing/pkg/platform/sentinel"
	"housing/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.PostgresStore
	now      time.Time
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.store = store.NewPostgres(s.postgres.Pool)
	s.now = time.Now().UTC().Truncate(time.Microsecond)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "approvable_requests"))
}

func (s *PostgresStoreSuite) TestRoundTrip() {
	ctx := context.Background()
	req := models.NewRoomBooking(domain.NewRequestID(), domain.NewIdentityID(), domain.NewResidencyID(), "A-101", s.now)
	s.Require().NoError(s.store.Create(ctx, req))

	next := req.Clone()
	next.Status = models.StatusApprovedAwaitingPayment
	deadline := s.now.Add(72 * time.Hour)
	decider := domain.NewIdentityID()
	next.Payload.RoomBooking.AssignedRoomRef = "A-101"
	next.Payload.RoomBooking.PaymentDeadline = &deadline
	next.DecidedAt = &s.now
	next.DecidedBy = &decider
	next.Notes = "Payment details sent"
	s.Require().NoError(s.store.CompareAndSwap(ctx, next, models.StatusPending, 1))

	got, err := s.store.Get(ctx, req.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusApprovedAwaitingPayment, got.Status)
	s.Equal(int64(2), got.Version)
	s.Equal(decider, *got.DecidedBy)
	s.True(deadline.Equal(*got.Payload.RoomBooking.PaymentDeadline))
	s.Equal("Payment details sent", got.Notes)

	_, err = s.store.Get(ctx, domain.NewRequestID())
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestOpenBookingUniqueness() {
	ctx := context.Background()
	owner := domain.NewIdentityID()
	s.Require().NoError(s.store.Create(ctx, models.NewRoomBooking(domain.NewRequestID(), owner, domain.NewResidencyID(), "A-1", s.now)))
	err := s.store.Create(ctx, models.NewRoomBooking(domain.NewRequestID(), owner, domain.NewResidencyID(), "A-2", s.now))
	s.ErrorIs(err, sentinel.ErrConflict)
}

func (s *PostgresStoreSuite) TestSingleWinner() {
	ctx := context.Background()
	req := models.NewProfileChange(domain.NewRequestID(), domain.NewIdentityID(), map[string]string{"phone": "1"}, s.now)
	s.Require().NoError(s.store.Create(ctx, req))

	var wins, stale atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			next := req.Clone()
			next.Status = models.StatusApproved
			if i%2 == 1 {
				next.Status = models.StatusRejected
				next.RejectionReason = "duplicate"
			}
			switch err := s.store.CompareAndSwap(ctx, next, models.StatusPending, 1); err {
			case nil:
				wins.Add(1)
			case sentinel.ErrStale:
				stale.Add(1)
			}
		}(i)
	}
	wg.Wait()
	s.Equal(int32(1), wins.Load())
	s.Equal(int32(7), stale.Load())
}

func (s *PostgresStoreSuite) TestList() {
	ctx := context.Background()
	owner := domain.NewIdentityID()
	s.Require().NoError(s.store.Create(ctx, models.NewAccountApproval(domain.NewRequestID(), owner, s.now)))
	s.Require().NoError(s.store.Create(ctx, models.NewRoomBooking(domain.NewRequestID(), owner, domain.NewResidencyID(), "A-1", s.now.Add(time.Second))))
	s.Require().NoError(s.store.Create(ctx, models.NewRoomBooking(domain.NewRequestID(), domain.NewIdentityID(), domain.NewResidencyID(), "A-2", s.now)))

	mine, err := s.store.List(ctx, models.Filter{OwnerID: owner})
	s.Require().NoError(err)
	s.Require().Len(mine, 2)
	s.Equal(models.KindAccountApproval, mine[0].Kind)

	bookings, err := s.store.List(ctx, models.Filter{Kind: models.KindRoomBooking, Status: models.StatusPending})
	s.Require().NoError(err)
	s.Len(bookings, 2)
}
