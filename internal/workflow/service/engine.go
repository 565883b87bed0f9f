// Package service is the approvable-request workflow engine: role-gated
// transitions over the shared request machine plus the room booking payment
// extension.
package service

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"housing/internal/platform/metrics"
	"housing/internal/workflow/models"
	"housing/pkg/domain"
	dErrors "housing/pkg/domain-errors"
	"housing/pkg/platform/sentinel"
	"housing/pkg/platform/telemetry"
	"housing/pkg/requestcontext"
)

const tracerName = "housing/workflow"

// DefaultPaymentWindow is how long a student has to pay after approval.
const DefaultPaymentWindow = 72 * time.Hour

// PaymentDetailsSent is the default note on an approved room booking.
const PaymentDetailsSent = "Payment details sent"

var paymentRefPattern = regexp.MustCompile(`^pay_[A-Za-z0-9_-]+$`)

type Store interface {
	Create(ctx context.Context, req *models.Request) error
	Get(ctx context.Context, id domain.RequestID) (*models.Request, error)
	List(ctx context.Context, filter models.Filter) ([]*models.Request, error)
	CompareAndSwap(ctx context.Context, next *models.Request, expectedStatus models.Status, expectedVersion int64) error
}

// Notifier delivers owner notices. Failures are logged, never rolled back.
type Notifier interface {
	Notify(ctx context.Context, notice models.Notice) error
}

// BillingPort tells the billing collaborator that a booking awaits payment.
type BillingPort interface {
	PaymentRequired(ctx context.Context, req models.PaymentRequest) error
}

// AccountStatusSetter applies AccountApproval outcomes to the identity.
type AccountStatusSetter interface {
	SetAccountStatus(ctx context.Context, id domain.IdentityID, status domain.AccountStatus) error
}

type Engine struct {
	store         Store
	authority     Authority
	paymentWindow time.Duration
	notifier      Notifier
	billing       BillingPort
	accounts      AccountStatusSetter
	logger        *slog.Logger
	metrics       *metrics.Metrics
}

type Option func(*Engine)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

func WithAuthority(a Authority) Option {
	return func(e *Engine) {
		if a != nil {
			e.authority = a
		}
	}
}

func WithPaymentWindow(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.paymentWindow = d
		}
	}
}

func WithNotifier(n Notifier) Option {
	return func(e *Engine) {
		e.notifier = n
	}
}

func WithBilling(b BillingPort) Option {
	return func(e *Engine) {
		e.billing = b
	}
}

func WithAccountStatusSetter(s AccountStatusSetter) Option {
	return func(e *Engine) {
		e.accounts = s
	}
}

func New(store Store, opts ...Option) *Engine {
	e := &Engine{
		store:         store,
		authority:     DefaultAuthority(),
		paymentWindow: DefaultPaymentWindow,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// OpenAccountApproval creates the approval request implied by registration.
func (e *Engine) OpenAccountApproval(ctx context.Context, identityID domain.IdentityID) (*models.Request, error) {
	if identityID.IsNil() {
		return nil, &models.ValidationError{Field: "identityId", Reason: "is required"}
	}
	req := models.NewAccountApproval(domain.NewRequestID(), identityID, requestcontext.Now(ctx))
	if err := e.store.Create(ctx, req); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to open account approval")
	}
	return req, nil
}

// SubmitProfileChange records a student's proposed profile fields for review.
func (e *Engine) SubmitProfileChange(ctx context.Context, actor domain.Actor, fields map[string]string) (*models.Request, error) {
	if actor.Role != domain.RoleStudent {
		return nil, &models.ForbiddenError{Reason: "only students submit profile changes"}
	}
	if len(fields) == 0 {
		return nil, &models.ValidationError{Field: "proposedFields", Reason: "at least one field is required"}
	}
	for k := range fields {
		if strings.TrimSpace(k) == "" {
			return nil, &models.ValidationError{Field: "proposedFields", Reason: "field names cannot be blank"}
		}
	}
	req := models.NewProfileChange(domain.NewRequestID(), actor.ID, fields, requestcontext.Now(ctx))
	if err := e.store.Create(ctx, req); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to submit profile change")
	}
	e.logger.InfoContext(ctx, "profile change submitted", "request_id", req.ID.String(), "student_id", actor.ID.String())
	return req, nil
}

// SubmitRoomBooking books a room for a student. A student holds at most one
// open booking at a time.
func (e *Engine) SubmitRoomBooking(ctx context.Context, actor domain.Actor, residencyID domain.ResidencyID, roomRef string) (*models.Request, error) {
	if actor.Role != domain.RoleStudent {
		return nil, &models.ForbiddenError{Reason: "only students book rooms"}
	}
	if residencyID.IsNil() {
		return nil, &models.ValidationError{Field: "residencyId", Reason: "is required"}
	}
	roomRef = strings.TrimSpace(roomRef)
	if roomRef == "" {
		return nil, &models.ValidationError{Field: "requestedRoomRef", Reason: "is required"}
	}
	req := models.NewRoomBooking(domain.NewRequestID(), actor.ID, residencyID, roomRef, requestcontext.Now(ctx))
	if err := e.store.Create(ctx, req); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "student already has an open room booking")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to submit room booking")
	}
	e.logger.InfoContext(ctx, "room booking submitted", "request_id", req.ID.String(), "student_id", actor.ID.String())
	return req, nil
}

// DecisionCall is a decider's approve, reject or cancel on one request.
// ExpectedVersion, when set, is the version the decider last read; a request
// that has moved on since then is refused as stale.
type DecisionCall struct {
	RequestID       domain.RequestID
	ExpectedVersion int64
	Action          models.Action
	Reason          string
	AssignedRoomRef string
	Notes           string
}

// Decide applies a decision. Cancel is routed to Cancel and so requires
// ownership rather than decider authority.
func (e *Engine) Decide(ctx context.Context, actor domain.Actor, call DecisionCall) (result *models.Request, err error) {
	ctx, span := telemetry.StartSpan(ctx, tracerName, "workflow.Decide",
		attribute.String(telemetry.AttrRequestID, call.RequestID.String()),
		attribute.String(telemetry.AttrAction, string(call.Action)),
		attribute.String(telemetry.AttrRole, actor.Role.String()),
	)
	defer func() {
		telemetry.RecordError(span, err)
		span.End()
	}()

	switch call.Action {
	case models.ActionCancel:
		return e.Cancel(ctx, actor, call.RequestID)
	case models.ActionApprove, models.ActionReject:
	default:
		return nil, &models.ValidationError{Field: "action", Reason: "must be approve, reject or cancel"}
	}

	req, err := e.load(ctx, call.RequestID)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String(telemetry.AttrRequestKind, string(req.Kind)))

	if !e.authority.CanDecide(req.Kind, actor.Role) {
		e.observe(req.Kind, call.Action, "forbidden")
		return nil, &models.ForbiddenError{Reason: actor.Role.String() + " cannot decide " + string(req.Kind) + " requests"}
	}
	reason := strings.TrimSpace(call.Reason)
	if call.Action == models.ActionReject && reason == "" {
		e.observe(req.Kind, call.Action, "invalid")
		return nil, &models.ValidationError{Field: "reason", Reason: "is required when rejecting"}
	}
	if call.ExpectedVersion != 0 && call.ExpectedVersion != req.Version {
		return nil, e.stale(ctx, req, call.Action, models.StatusPending, req.Status)
	}

	now := requestcontext.Now(ctx)
	deciderID := actor.ID
	next, err := e.transition(ctx, req, call.Action, func(r *models.Request) {
		r.DecidedAt = &now
		r.DecidedBy = &deciderID
		r.Notes = strings.TrimSpace(call.Notes)
		if call.Action == models.ActionReject {
			r.RejectionReason = reason
		}
		if call.Action == models.ActionApprove && r.Kind == models.KindRoomBooking {
			rb := r.Payload.RoomBooking
			rb.AssignedRoomRef = strings.TrimSpace(call.AssignedRoomRef)
			if rb.AssignedRoomRef == "" {
				rb.AssignedRoomRef = rb.RequestedRoomRef
			}
			deadline := now.Add(e.paymentWindow)
			rb.PaymentDeadline = &deadline
			if r.Notes == "" {
				r.Notes = PaymentDetailsSent
			}
		}
	})
	if err != nil {
		return nil, err
	}

	e.logger.InfoContext(ctx, "request decided",
		"request_id", next.ID.String(),
		"kind", string(next.Kind),
		"status", string(next.Status),
		"decided_by", actor.ID.String(),
	)
	e.afterDecision(ctx, next, now)
	return next, nil
}

func (e *Engine) afterDecision(ctx context.Context, req *models.Request, now time.Time) {
	if req.Kind == models.KindAccountApproval && e.accounts != nil {
		status := domain.AccountRejected
		if req.Status == models.StatusApproved {
			status = domain.AccountApproved
		}
		if err := e.accounts.SetAccountStatus(ctx, req.Payload.AccountApproval.IdentityID, status); err != nil {
			e.logger.ErrorContext(ctx, "failed to apply account approval outcome",
				"request_id", req.ID.String(), "status", string(status), "error", err)
		}
	}
	if req.Status == models.StatusApprovedAwaitingPayment && e.billing != nil {
		rb := req.Payload.RoomBooking
		if err := e.billing.PaymentRequired(ctx, models.PaymentRequest{
			RequestID:       req.ID,
			StudentID:       rb.StudentID,
			ResidencyID:     rb.ResidencyID,
			AssignedRoomRef: rb.AssignedRoomRef,
			Deadline:        *rb.PaymentDeadline,
		}); err != nil {
			e.metrics.IncNotificationError("billing")
			e.logger.ErrorContext(ctx, "failed to signal payment required",
				"request_id", req.ID.String(), "error", err)
		}
	}
	e.notify(ctx, models.NewNotice(models.NoticeDecided, req, now))
}

// Cancel withdraws a request on behalf of its owner. Anyone else is refused
// whatever the request's status.
func (e *Engine) Cancel(ctx context.Context, actor domain.Actor, id domain.RequestID) (*models.Request, error) {
	req, err := e.store.Get(ctx, id)
	if err != nil {
		return nil, e.translateLoad(err)
	}
	if req.OwnerID != actor.ID {
		e.observe(req.Kind, models.ActionCancel, "forbidden")
		return nil, &models.ForbiddenError{Reason: "only the owner can cancel a request"}
	}
	if req, err = e.settle(ctx, req); err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	next, err := e.transition(ctx, req, models.ActionCancel, func(r *models.Request) {
		r.DecidedAt = &now
	})
	if err != nil {
		return nil, err
	}
	e.logger.InfoContext(ctx, "request cancelled", "request_id", next.ID.String(), "kind", string(next.Kind))
	e.notify(ctx, models.NewNotice(models.NoticeCancelled, next, now))
	return next, nil
}

// PaymentConfirmation is the billing collaborator's signal that a booking
// has been paid.
type PaymentConfirmation struct {
	RequestID  domain.RequestID
	PaymentRef string
}

// ConfirmPayment moves an awaiting-payment booking to confirmed. Any other
// status, confirmed included, is an invalid transition.
func (e *Engine) ConfirmPayment(ctx context.Context, pc PaymentConfirmation) (result *models.Request, err error) {
	ctx, span := telemetry.StartSpan(ctx, tracerName, "workflow.ConfirmPayment",
		attribute.String(telemetry.AttrRequestID, pc.RequestID.String()),
	)
	defer func() {
		telemetry.RecordError(span, err)
		span.End()
	}()

	if !paymentRefPattern.MatchString(pc.PaymentRef) {
		return nil, &models.ValidationError{Field: "paymentRef", Reason: "must look like pay_<reference>"}
	}
	req, err := e.load(ctx, pc.RequestID)
	if err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)
	next, err := e.transition(ctx, req, models.ActionConfirmPayment, func(r *models.Request) {
		r.PaymentRef = pc.PaymentRef
	})
	if err != nil {
		return nil, err
	}
	e.logger.InfoContext(ctx, "payment confirmed", "request_id", next.ID.String(), "payment_ref", pc.PaymentRef)
	e.notify(ctx, models.NewNotice(models.NoticePaymentConfirmed, next, now))
	return next, nil
}

// Get returns a request with any elapsed payment deadline applied.
func (e *Engine) Get(ctx context.Context, id domain.RequestID) (*models.Request, error) {
	return e.load(ctx, id)
}

// List returns matching requests, each passed through lazy expiry first so a
// status filter never shows an expired booking as awaiting payment.
func (e *Engine) List(ctx context.Context, filter models.Filter) ([]*models.Request, error) {
	reqs, err := e.store.List(ctx, filter)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list requests")
	}
	out := make([]*models.Request, 0, len(reqs))
	for _, req := range reqs {
		settled, err := e.settle(ctx, req)
		if err != nil {
			return nil, err
		}
		if filter.Matches(settled) {
			out = append(out, settled)
		}
	}
	return out, nil
}

// ListForOwner lists the caller's own requests.
func (e *Engine) ListForOwner(ctx context.Context, actor domain.Actor, filter models.Filter) ([]*models.Request, error) {
	filter.OwnerID = actor.ID
	return e.List(ctx, filter)
}

// ListForDecider lists requests for a decider, limited to kinds the role may
// decide. Without a status the pending queue is returned.
func (e *Engine) ListForDecider(ctx context.Context, actor domain.Actor, filter models.Filter) ([]*models.Request, error) {
	if filter.Status == "" {
		filter.Status = models.StatusPending
	}
	if filter.Kind != "" && !e.authority.CanDecide(filter.Kind, actor.Role) {
		return nil, &models.ForbiddenError{Reason: actor.Role.String() + " cannot review " + string(filter.Kind) + " requests"}
	}
	reqs, err := e.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	out := reqs[:0]
	for _, r := range reqs {
		if e.authority.CanDecide(r.Kind, actor.Role) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (e *Engine) load(ctx context.Context, id domain.RequestID) (*models.Request, error) {
	req, err := e.store.Get(ctx, id)
	if err != nil {
		return nil, e.translateLoad(err)
	}
	return e.settle(ctx, req)
}

func (e *Engine) translateLoad(err error) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "request not found")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load request")
}

// settle applies an elapsed payment deadline. Concurrent readers race on the
// same compare-and-swap; the loser re-reads the winner's result, so only one
// expiry notice is ever sent.
func (e *Engine) settle(ctx context.Context, req *models.Request) (*models.Request, error) {
	now := requestcontext.Now(ctx)
	if !req.PaymentExpired(now) {
		return req, nil
	}

	next, err := e.transition(ctx, req, models.ActionExpire, func(r *models.Request) {
		r.RejectionReason = models.PaymentWindowExpired
		r.DecidedAt = &now
	})
	var stale *models.StaleStateError
	if errors.As(err, &stale) {
		current, getErr := e.store.Get(ctx, req.ID)
		if getErr != nil {
			return nil, e.translateLoad(getErr)
		}
		return current, nil
	}
	if err != nil {
		return nil, err
	}

	e.metrics.IncPaymentExpiry()
	e.logger.InfoContext(ctx, "payment window expired", "request_id", next.ID.String())
	e.notify(ctx, models.NewNotice(models.NoticeExpired, next, now))
	return next, nil
}

// transition validates action against the state machine and commits the
// mutated copy with a compare-and-swap on the loaded status and version.
func (e *Engine) transition(ctx context.Context, req *models.Request, action models.Action, mutate func(*models.Request)) (*models.Request, error) {
	to, ok := models.Next(req.Kind, req.Status, action)
	if !ok {
		e.observe(req.Kind, action, "invalid_transition")
		return nil, &models.InvalidTransitionError{Kind: req.Kind, From: req.Status, Attempted: action}
	}

	next := req.Clone()
	next.Status = to
	next.UpdatedAt = requestcontext.Now(ctx)
	mutate(next)

	if err := e.store.CompareAndSwap(ctx, next, req.Status, req.Version); err != nil {
		if errors.Is(err, sentinel.ErrStale) {
			var current models.Status
			if winner, getErr := e.store.Get(ctx, req.ID); getErr == nil {
				current = winner.Status
			}
			return nil, e.stale(ctx, req, action, req.Status, current)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store transition")
	}
	e.observe(req.Kind, action, "ok")
	return next, nil
}

func (e *Engine) stale(ctx context.Context, req *models.Request, action models.Action, expected, current models.Status) error {
	e.observe(req.Kind, action, "stale")
	e.metrics.IncStaleConflict(string(req.Kind), string(action))
	e.logger.WarnContext(ctx, "lost concurrent transition",
		"request_id", req.ID.String(), "action", string(action), "status", string(current))
	return &models.StaleStateError{RequestID: req.ID, Expected: expected, Current: current}
}

func (e *Engine) notify(ctx context.Context, notice models.Notice) {
	if e.notifier == nil {
		return
	}
	if err := e.notifier.Notify(ctx, notice); err != nil {
		e.metrics.IncNotificationError("notifier")
		e.logger.ErrorContext(ctx, "failed to deliver notice",
			"request_id", notice.RequestID.String(), "type", string(notice.Type), "error", err)
	}
}

func (e *Engine) observe(kind models.Kind, action models.Action, result string) {
	e.metrics.ObserveTransition(string(kind), string(action), result)
}
