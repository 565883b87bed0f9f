package service

import (
	"time"

	"go.uber.org/mock/gomock"

	"housing/internal/workflow/models"
	"housing/pkg/domain"
)

func (s *EngineSuite) TestSweepExpired() {
	s.billing.EXPECT().PaymentRequired(gomock.Any(), gomock.Any()).Return(nil).Times(2)
	s.notifier.EXPECT().Notify(gomock.Any(), noticeOfType(models.NoticeDecided)).Return(nil).Times(2)
	s.notifier.EXPECT().Notify(gomock.Any(), noticeOfType(models.NoticeExpired)).Return(nil).Times(1)

	early := s.submitBooking(s.student)
	_, err := s.engine.Decide(s.at(s.now), s.manager, DecisionCall{RequestID: early.ID, Action: models.ActionApprove})
	s.Require().NoError(err)

	lateStudent := domain.Actor{ID: domain.NewIdentityID(), Role: domain.RoleStudent}
	recent, err := s.engine.SubmitRoomBooking(s.at(s.now), lateStudent, domain.NewResidencyID(), "D-4")
	s.Require().NoError(err)
	_, err = s.engine.Decide(s.at(s.now.Add(48*time.Hour)), s.manager, DecisionCall{RequestID: recent.ID, Action: models.ActionApprove})
	s.Require().NoError(err)

	n, err := s.engine.SweepExpired(s.at(s.now.Add(80 * time.Hour)))
	s.Require().NoError(err)
	s.Equal(1, n)

	n, err = s.engine.SweepExpired(s.at(s.now.Add(80 * time.Hour)))
	s.Require().NoError(err)
	s.Zero(n, "a second sweep finds nothing new")
}
