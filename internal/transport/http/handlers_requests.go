package httptransport

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"housing/internal/gateway"
	"housing/internal/policy"
	"housing/internal/workflow/models"
	workflowservice "housing/internal/workflow/service"
	"housing/pkg/domain"
	dErrors "housing/pkg/domain-errors"
	"housing/pkg/platform/httputil"
	"housing/pkg/requestcontext"
)

// guardedAreas are the areas the request routes rely on.
var guardedAreas = []domain.Area{policy.AreaStudentRequests, policy.AreaRequestDecisions}

// WorkflowService is the request engine as seen by HTTP.
type WorkflowService interface {
	SubmitRoomBooking(ctx context.Context, actor domain.Actor, residencyID domain.ResidencyID, roomRef string) (*models.Request, error)
	SubmitProfileChange(ctx context.Context, actor domain.Actor, fields map[string]string) (*models.Request, error)
	Cancel(ctx context.Context, actor domain.Actor, id domain.RequestID) (*models.Request, error)
	Decide(ctx context.Context, actor domain.Actor, call workflowservice.DecisionCall) (*models.Request, error)
	ConfirmPayment(ctx context.Context, pc workflowservice.PaymentConfirmation) (*models.Request, error)
	ListForOwner(ctx context.Context, actor domain.Actor, filter models.Filter) ([]*models.Request, error)
	ListForDecider(ctx context.Context, actor domain.Actor, filter models.Filter) ([]*models.Request, error)
}

// RequestHandler serves the student and decider request endpoints. Every
// route sits behind the gateway, so an actor is always in context.
type RequestHandler struct {
	workflow WorkflowService
	gateway  *gateway.Gateway
	logger   *slog.Logger
}

func NewRequestHandler(workflow WorkflowService, gw *gateway.Gateway, logger *slog.Logger) *RequestHandler {
	return &RequestHandler{workflow: workflow, gateway: gw, logger: logger}
}

func (h *RequestHandler) Register(r chi.Router) {
	r.Route("/requests", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(h.gateway.Middleware(policy.AreaStudentRequests))
			r.Post("/room-bookings", h.handleSubmitRoomBooking)
			r.Post("/profile-changes", h.handleSubmitProfileChange)
			r.Get("/mine", h.handleListMine)
			r.Post("/{id}/cancel", h.handleCancel)
		})
		r.Group(func(r chi.Router) {
			r.Use(h.gateway.Middleware(policy.AreaRequestDecisions))
			r.Get("/", h.handleListForDecider)
			r.Post("/{id}/decision", h.handleDecide)
		})
	})
}

func (h *RequestHandler) actor(w http.ResponseWriter, r *http.Request) (domain.Actor, bool) {
	actor, ok := requestcontext.Actor(r.Context())
	if !ok {
		// Only reachable if a route is registered outside the gateway.
		h.logger.ErrorContext(r.Context(), "actor missing from context despite gateway",
			"request_id", requestcontext.RequestID(r.Context()))
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "authorization context error"))
		return domain.Actor{}, false
	}
	return actor, true
}

func (h *RequestHandler) handleSubmitRoomBooking(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[RoomBookingRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	created, err := h.workflow.SubmitRoomBooking(ctx, actor, req.residencyID, req.RoomRef)
	if err != nil {
		h.writeWorkflowError(ctx, w, "submit room booking", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, created)
}

func (h *RequestHandler) handleSubmitProfileChange(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[ProfileChangeRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	created, err := h.workflow.SubmitProfileChange(ctx, actor, req.Fields)
	if err != nil {
		h.writeWorkflowError(ctx, w, "submit profile change", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, created)
}

func (h *RequestHandler) handleListMine(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	filter, err := parseFilter(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	reqs, err := h.workflow.ListForOwner(ctx, actor, filter)
	if err != nil {
		h.writeWorkflowError(ctx, w, "list own requests", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toList(reqs))
}

func (h *RequestHandler) handleCancel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, err := domain.ParseRequestID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	cancelled, err := h.workflow.Cancel(ctx, actor, id)
	if err != nil {
		h.writeWorkflowError(ctx, w, "cancel request", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toTransition(cancelled))
}

func (h *RequestHandler) handleListForDecider(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	filter, err := parseFilter(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	reqs, err := h.workflow.ListForDecider(ctx, actor, filter)
	if err != nil {
		h.writeWorkflowError(ctx, w, "list requests", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toList(reqs))
}

func (h *RequestHandler) handleDecide(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, err := domain.ParseRequestID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[DecisionRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	decided, err := h.workflow.Decide(ctx, actor, workflowservice.DecisionCall{
		RequestID:       id,
		ExpectedVersion: req.Version,
		Action:          req.action,
		Reason:          req.Reason,
		AssignedRoomRef: req.AssignedRoomRef,
		Notes:           req.Notes,
	})
	if err != nil {
		h.writeWorkflowError(ctx, w, "decide request", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toTransition(decided))
}

// writeWorkflowError logs expected outcomes (lost races, bad transitions,
// refusals) at warn and everything else at error.
func (h *RequestHandler) writeWorkflowError(ctx context.Context, w http.ResponseWriter, op string, err error) {
	level := slog.LevelWarn
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		level = slog.LevelError
	}
	h.logger.Log(ctx, level, op+" failed",
		"request_id", requestcontext.RequestID(ctx),
		"code", string(dErrors.CodeOf(err)),
		"error", err,
	)
	writeTransitionError(w, err)
}

func parseFilter(r *http.Request) (models.Filter, error) {
	var f models.Filter
	q := r.URL.Query()
	if k := q.Get("kind"); k != "" {
		kind, err := models.ParseKind(k)
		if err != nil {
			return f, err
		}
		f.Kind = kind
	}
	if s := q.Get("status"); s != "" {
		status, err := models.ParseStatus(s)
		if err != nil {
			return f, err
		}
		f.Status = status
	}
	return f, nil
}
