// Package gateway decides, for each navigation or API call, whether the
// caller may enter an area. The evaluation order is fixed:
//
//  1. wait for the session store to finish hydrating;
//  2. public areas are always allowed;
//  3. anonymous callers, and callers whose account is not approved, are sent
//     to login with the requested area kept for resumption;
//  4. callers whose role the area admits are allowed;
//  5. everyone else is sent to their role's home area.
//
// Authorization never fails with an error. Only context cancellation and
// policy configuration faults are returned as errors.
package gateway

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"

	"housing/internal/platform/metrics"
	"housing/internal/policy"
	"housing/internal/session"
	"housing/pkg/domain"
	"housing/pkg/platform/telemetry"
)

const tracerName = "housing/gateway"

// SessionSource yields the caller's hydrated session state, blocking until
// hydration completes or ctx ends.
type SessionSource interface {
	State(ctx context.Context) (session.State, error)
}

// Sessions opens a hydrating session store for a presented key.
type Sessions interface {
	Begin(ctx context.Context, key string) *session.Store
}

// Gateway evaluates access against an immutable policy table.
type Gateway struct {
	table    *policy.Table
	sessions Sessions
	logger   *slog.Logger
	metrics  *metrics.Metrics

	cookieName string
	loginArea  domain.Area
	indexArea  domain.Area
	notFound   domain.Area
}

type Option func(*Gateway)

func WithLogger(logger *slog.Logger) Option {
	return func(g *Gateway) { g.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Gateway) { g.metrics = m }
}

// WithSessions enables Middleware. Decide and Navigate work without it.
func WithSessions(s Sessions) Option {
	return func(g *Gateway) { g.sessions = s }
}

func WithCookieName(name string) Option {
	return func(g *Gateway) {
		if name != "" {
			g.cookieName = name
		}
	}
}

// DefaultCookieName carries the session key in browsers.
const DefaultCookieName = "housing_session"

// New checks that every exposed area, plus the areas the gateway itself
// redirects to, has a policy entry. A failure is a *policy.ConfigurationError
// and must abort startup.
func New(table *policy.Table, exposed []domain.Area, opts ...Option) (*Gateway, error) {
	g := &Gateway{
		table:      table,
		logger:     slog.Default(),
		cookieName: DefaultCookieName,
		loginArea:  policy.AreaLogin,
		indexArea:  policy.AreaDashboard,
		notFound:   policy.AreaNotFound,
	}
	for _, opt := range opts {
		opt(g)
	}
	if table == nil {
		return nil, &policy.ConfigurationError{Problems: []string{"no policy table"}}
	}

	var problems []string
	required := append([]domain.Area{g.loginArea, g.notFound}, exposed...)
	for _, area := range required {
		if !table.Declared(area) {
			problems = append(problems, fmt.Sprintf("area %q has no policy entry", area))
		}
	}
	if entry, err := table.PolicyFor(g.loginArea); err == nil && !entry.Public {
		problems = append(problems, fmt.Sprintf("login area %q must be public", g.loginArea))
	}
	if len(problems) > 0 {
		return nil, &policy.ConfigurationError{Problems: problems}
	}
	return g, nil
}

// Decide evaluates one navigation attempt to area.
func (g *Gateway) Decide(ctx context.Context, src SessionSource, area domain.Area) (Decision, error) {
	d, _, err := g.decide(ctx, src, area)
	return d, err
}

func (g *Gateway) decide(ctx context.Context, src SessionSource, area domain.Area) (Decision, session.State, error) {
	ctx, span := telemetry.StartSpan(ctx, tracerName, "gateway.Decide",
		attribute.String(telemetry.AttrArea, area.String()),
	)
	defer span.End()

	state, err := src.State(ctx)
	if err != nil {
		telemetry.RecordError(span, err)
		return Decision{}, session.Anonymous(), err
	}

	entry, err := g.table.PolicyFor(area)
	if err != nil {
		g.logger.ErrorContext(ctx, "navigation to undeclared area", "area", area.String(), "error", err)
		telemetry.RecordError(span, err)
		return Decision{}, state, err
	}

	d, err := g.evaluate(entry, state, area)
	if err != nil {
		telemetry.RecordError(span, err)
		return Decision{}, state, err
	}

	outcome := d.label(g.loginArea)
	span.SetAttributes(
		attribute.String(telemetry.AttrRole, state.Role().String()),
		attribute.String(telemetry.AttrOutcome, outcome),
	)
	g.metrics.ObserveDecision(area.String(), outcome)
	return d, state, nil
}

func (g *Gateway) evaluate(entry policy.Entry, state session.State, area domain.Area) (Decision, error) {
	if entry.Public {
		return Allow(), nil
	}
	if !state.IsAuthenticated() || !state.Identity.IsApproved() {
		return RedirectToLogin(g.loginArea, area), nil
	}
	role := state.Identity.Role
	if entry.Allows(role) {
		return Allow(), nil
	}
	home, ok := g.table.HomeArea(role)
	if !ok {
		return Decision{}, &policy.ConfigurationError{Problems: []string{fmt.Sprintf("role %q has no home area", role)}}
	}
	return RedirectTo(home), nil
}

// Navigate resolves a URL path to its area and decides on it. Unknown paths
// land on the public not-found area. The role-neutral index forwards an
// allowed caller to their home area.
func (g *Gateway) Navigate(ctx context.Context, src SessionSource, path string) (Decision, error) {
	area, ok := g.table.Resolve(path)
	if !ok {
		area = g.notFound
	}
	d, state, err := g.decide(ctx, src, area)
	if err != nil {
		return Decision{}, err
	}
	if d.Allowed() && area == g.indexArea && state.IsAuthenticated() {
		if home, ok := g.table.HomeArea(state.Identity.Role); ok {
			return RedirectTo(home), nil
		}
	}
	return d, nil
}

// HomeArea is where role lands after login.
func (g *Gateway) HomeArea(role domain.Role) (domain.Area, bool) {
	return g.table.HomeArea(role)
}
