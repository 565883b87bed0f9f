package gateway

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"housing/pkg/domain"
	dErrors "housing/pkg/domain-errors"
	"housing/pkg/platform/httputil"
	"housing/pkg/requestcontext"
)

// SessionKeyFromRequest returns the session key presented as the session
// cookie or as a bearer token, cookie first.
func (g *Gateway) SessionKeyFromRequest(r *http.Request) string {
	if c, err := r.Cookie(g.cookieName); err == nil && c.Value != "" {
		return c.Value
	}
	if after, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return strings.TrimSpace(after)
	}
	return ""
}

// CookieName is the name of the browser session cookie.
func (g *Gateway) CookieName() string { return g.cookieName }

// Middleware guards a route with the policy of area. On allow, an
// authenticated caller's actor and session key are placed in the request
// context. A redirect decision is written as JSON: 401 when the caller must
// log in, 403 when they are sent to their home area. The protected handler
// is not called in either case.
func (g *Gateway) Middleware(area domain.Area) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if g.sessions == nil {
				g.logger.ErrorContext(ctx, "gateway middleware used without sessions")
				httputil.WriteError(w, dErrors.New(dErrors.CodeConfiguration, "gateway not configured"))
				return
			}

			key := g.SessionKeyFromRequest(r)
			store := g.sessions.Begin(ctx, key)
			d, state, err := g.decide(ctx, store, area)
			if err != nil {
				g.writeDecisionError(ctx, w, area, err)
				return
			}

			if !d.Allowed() {
				status := http.StatusForbidden
				if d.Target == g.loginArea {
					status = http.StatusUnauthorized
				}
				g.logger.InfoContext(ctx, "navigation redirected",
					"request_id", requestcontext.RequestID(ctx),
					"area", area.String(),
					"target", d.Target.String(),
					"role", state.Role().String(),
				)
				httputil.WriteJSON(w, status, d)
				return
			}

			if state.IsAuthenticated() && state.Identity.IsApproved() {
				ctx = requestcontext.WithActor(ctx, state.Identity.Actor())
				ctx = requestcontext.WithSessionKey(ctx, key)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func (g *Gateway) writeDecisionError(ctx context.Context, w http.ResponseWriter, area domain.Area, err error) {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeTimeout, "session hydration did not finish"))
		return
	}
	g.logger.ErrorContext(ctx, "access decision failed",
		"request_id", requestcontext.RequestID(ctx),
		"area", area.String(),
		"error", err,
	)
	httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "access decision failed"))
}
