package httptransport

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"housing/internal/gateway"
	identityservice "housing/internal/identity/service"
	"housing/internal/platform/middleware"
	"housing/internal/policy"
	"housing/internal/ratelimit"
	"housing/internal/session"
	workflowmodels "housing/internal/workflow/models"
	"housing/pkg/domain"
	dErrors "housing/pkg/domain-errors"
	"housing/pkg/platform/httputil"
	"housing/pkg/requestcontext"
)

// IdentityService is the identity directory as seen by the auth endpoints.
type IdentityService interface {
	Register(ctx context.Context, req identityservice.RegisterRequest) (*domain.Identity, *workflowmodels.Request, error)
	Authenticate(ctx context.Context, email, password string) (*domain.Identity, error)
}

// SessionService starts, ends and resolves sessions.
type SessionService interface {
	Login(ctx context.Context, identity domain.Identity) (*session.LoginResult, error)
	Logout(ctx context.Context, key string) error
	Begin(ctx context.Context, key string) *session.Store
}

// LoginLimiter throttles repeated failed logins. A nil limiter disables it.
type LoginLimiter interface {
	Check(ctx context.Context, email, ip string) error
	RecordFailure(ctx context.Context, email, ip string) error
	Reset(ctx context.Context, email, ip string) error
}

// CookieConfig shapes the browser session cookie.
type CookieConfig struct {
	Secure bool
}

// AuthHandler serves signup, login, logout, session introspection and
// navigation decisions.
type AuthHandler struct {
	identity IdentityService
	sessions SessionService
	limiter  LoginLimiter
	gateway  *gateway.Gateway
	logger   *slog.Logger
	cookie   CookieConfig
}

func NewAuthHandler(identity IdentityService, sessions SessionService, limiter LoginLimiter, gw *gateway.Gateway, logger *slog.Logger, cookie CookieConfig) *AuthHandler {
	return &AuthHandler{
		identity: identity,
		sessions: sessions,
		limiter:  limiter,
		gateway:  gw,
		logger:   logger,
		cookie:   cookie,
	}
}

func (h *AuthHandler) Register(r chi.Router) {
	r.Post("/auth/signup", h.handleSignup)
	r.Post("/auth/login", h.handleLogin)
	r.Post("/auth/logout", h.handleLogout)
	r.Get("/auth/session", h.handleSession)
	r.Get("/navigate", h.handleNavigate)
}

func (h *AuthHandler) handleSignup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[SignupRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	identity, approval, err := h.identity.Register(ctx, identityservice.RegisterRequest{
		DisplayName:   req.DisplayName,
		Email:         req.Email,
		Password:      req.Password,
		Role:          req.Role,
		StudentNumber: req.StudentNumber,
	})
	if err != nil {
		h.logger.WarnContext(ctx, "signup failed",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	resp := SignupResponse{Identity: *identity}
	if approval != nil {
		resp.ApprovalRequestID = approval.ID
	}
	httputil.WriteJSON(w, http.StatusCreated, resp)
}

func (h *AuthHandler) handleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[LoginRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	ip := middleware.ClientIP(r)
	if h.limiter != nil {
		if err := h.limiter.Check(ctx, req.Email, ip); err != nil {
			var locked *ratelimit.LockedError
			if errors.As(err, &locked) {
				w.Header().Set("Retry-After", strconv.Itoa(locked.RetryAfterSeconds()))
			}
			httputil.WriteError(w, err)
			return
		}
	}

	identity, err := h.identity.Authenticate(ctx, req.Email, req.Password)
	if err != nil {
		if h.limiter != nil && dErrors.HasCode(err, dErrors.CodeUnauthorized) {
			if lerr := h.limiter.RecordFailure(ctx, req.Email, ip); lerr != nil {
				h.logger.WarnContext(ctx, "failed to record login failure", "request_id", requestID, "error", lerr)
			}
		}
		httputil.WriteError(w, err)
		return
	}
	if h.limiter != nil {
		if err := h.limiter.Reset(ctx, req.Email, ip); err != nil {
			h.logger.WarnContext(ctx, "failed to clear login failures", "request_id", requestID, "error", err)
		}
	}

	res, err := h.sessions.Login(ctx, *identity)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to start session",
			"request_id", requestID,
			"identity_id", identity.ID.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	http.SetCookie(w, h.sessionCookie(res.Key, res.ExpiresAt))
	httputil.WriteJSON(w, http.StatusOK, LoginResponse{
		SessionKey: res.Key,
		Identity:   *identity,
		HomeArea:   h.landingFor(identity),
		ExpiresAt:  res.ExpiresAt,
		Device:     res.Device,
	})
}

// landingFor is where the client navigates after login. Accounts that are
// not approved only reach public areas, so they stay on the landing page.
func (h *AuthHandler) landingFor(identity *domain.Identity) domain.Area {
	if identity.IsApproved() {
		if home, ok := h.gateway.HomeArea(identity.Role); ok {
			return home
		}
	}
	return policy.AreaLanding
}

func (h *AuthHandler) handleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	key := h.gateway.SessionKeyFromRequest(r)
	if err := h.sessions.Logout(ctx, key); err != nil {
		h.logger.ErrorContext(ctx, "logout failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	http.SetCookie(w, h.sessionCookie("", time.Unix(0, 0)))
	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthHandler) handleSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	store := h.sessions.Begin(ctx, h.gateway.SessionKeyFromRequest(r))
	state, err := store.State(ctx)
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeTimeout, "session hydration did not finish"))
		return
	}

	resp := SessionResponse{Authenticated: state.IsAuthenticated()}
	if state.IsAuthenticated() {
		resp.Identity = state.Identity
		resp.HomeArea = h.landingFor(state.Identity)
		if !state.Session.ExpiresAt.IsZero() {
			exp := state.Session.ExpiresAt
			resp.ExpiresAt = &exp
		}
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *AuthHandler) handleNavigate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	path := strings.TrimSpace(r.URL.Query().Get("path"))
	if path == "" || !strings.HasPrefix(path, "/") {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "path must be an absolute application path"))
		return
	}

	store := h.sessions.Begin(ctx, h.gateway.SessionKeyFromRequest(r))
	decision, err := h.gateway.Navigate(ctx, store, path)
	if err != nil {
		h.logger.ErrorContext(ctx, "navigation decision failed",
			"request_id", requestcontext.RequestID(ctx),
			"path", path,
			"error", err,
		)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "navigation decision failed"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, NavigateResponse{Path: path, Decision: decision})
}

func (h *AuthHandler) sessionCookie(value string, expires time.Time) *http.Cookie {
	c := &http.Cookie{
		Name:     h.gateway.CookieName(),
		Value:    value,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	}
	if value == "" {
		c.MaxAge = -1
	}
	return c
}
