// Package session resolves "who is calling" from a persisted credential and
// owns the login/logout lifecycle of that credential.
package session

import (
	"context"
	"log/slog"
	"time"

	"housing/internal/platform/metrics"
	"housing/pkg/domain"
	dErrors "housing/pkg/domain-errors"
	"housing/pkg/requestcontext"
)

const DefaultTTL = 12 * time.Hour

// Manager builds per-request Stores over a shared credential backend.
type Manager struct {
	creds    CredentialStore
	tokens   *TokenService
	resolver IdentityResolver
	ttl      time.Duration
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

type Option func(*Manager)

func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

func WithMetrics(mx *metrics.Metrics) Option {
	return func(m *Manager) {
		m.metrics = mx
	}
}

// WithIdentityResolver makes hydration re-read the identity's account status.
func WithIdentityResolver(r IdentityResolver) Option {
	return func(m *Manager) {
		m.resolver = r
	}
}

func WithTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.ttl = ttl
		}
	}
}

func NewManager(creds CredentialStore, tokens *TokenService, opts ...Option) *Manager {
	m := &Manager{
		creds:  creds,
		tokens: tokens,
		ttl:    DefaultTTL,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Open returns an unhydrated store for key.
func (m *Manager) Open(key string) *Store {
	return &Store{
		key:      key,
		creds:    m.creds,
		tokens:   m.tokens,
		resolver: m.resolver,
		ttl:      m.ttl,
		logger:   m.logger,
		metrics:  m.metrics,
		ready:    make(chan struct{}),
	}
}

// Begin opens a store for key and starts hydrating it in the background.
// Callers observe the result through Store.State.
func (m *Manager) Begin(ctx context.Context, key string) *Store {
	st := m.Open(key)
	go st.Hydrate(context.WithoutCancel(ctx))
	return st
}

// LoginResult is what a successful login hands back to the transport.
type LoginResult struct {
	Key        string
	Credential Credential
	Device     string
	ExpiresAt  time.Time
	Store      *Store
}

// Login starts a new session for an authenticated identity: it allocates a
// session key, signs a token bound to it and persists the credential.
func (m *Manager) Login(ctx context.Context, identity domain.Identity) (*LoginResult, error) {
	if !identity.Role.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, "identity has invalid role")
	}
	sid := domain.NewSessionID()
	now := requestcontext.Now(ctx)

	token, err := m.tokens.Issue(identity, sid, now, m.ttl)
	if err != nil {
		return nil, err
	}

	st := m.Open(sid.String())
	if err := st.Login(ctx, token, identity); err != nil {
		return nil, err
	}

	device := DeviceLabel(requestcontext.UserAgent(ctx))
	m.logger.InfoContext(ctx, "session started",
		"identity_id", identity.ID.String(),
		"role", identity.Role.String(),
		"device", device,
	)
	return &LoginResult{
		Key:        sid.String(),
		Credential: Credential{Token: token, Identity: identity},
		Device:     device,
		ExpiresAt:  now.Add(m.ttl),
		Store:      st,
	}, nil
}

// Logout purges the credential stored under key.
func (m *Manager) Logout(ctx context.Context, key string) error {
	return m.Open(key).Logout(ctx)
}
