package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"housing/internal/platform/metrics"
	"housing/pkg/domain"
	dErrors "housing/pkg/domain-errors"
	"housing/pkg/platform/sentinel"
)

// Session is the server-side view of a login: who, the role snapshot taken
// at login, and when it was issued.
type Session struct {
	ID         domain.SessionID
	IdentityID domain.IdentityID
	Role       domain.Role
	IssuedAt   time.Time
	ExpiresAt  time.Time
	Token      string
}

// State is the outcome of hydration. The zero value is Anonymous.
type State struct {
	Identity *domain.Identity
	Session  *Session
}

func Anonymous() State { return State{} }

func Authenticated(identity domain.Identity, sess Session) State {
	return State{Identity: &identity, Session: &sess}
}

func (s State) IsAuthenticated() bool { return s.Identity != nil }

// Role returns the role of an authenticated state and "" otherwise.
func (s State) Role() domain.Role {
	if s.Identity == nil {
		return ""
	}
	return s.Identity.Role
}

// IdentityResolver re-reads an identity so that account status changes made
// after login are honoured on the next hydration.
type IdentityResolver interface {
	ResolveIdentity(ctx context.Context, id domain.IdentityID) (domain.Identity, error)
}

// Store resolves the caller behind one session key. Construct one per
// request (or per runtime) through a Manager and share it by reference.
// State blocks until hydration has finished; nothing else in the store
// waits.
type Store struct {
	key      string
	creds    CredentialStore
	tokens   *TokenService
	resolver IdentityResolver
	ttl      time.Duration
	logger   *slog.Logger
	metrics  *metrics.Metrics

	once  sync.Once
	ready chan struct{}

	mu    sync.RWMutex
	state State
}

func (s *Store) Key() string { return s.key }

// Hydrate reads the persisted credential and resolves it to a State. It never
// fails: an absent credential is Anonymous; a corrupt or untrustworthy one
// is purged and also Anonymous. Only the first call does any work.
func (s *Store) Hydrate(ctx context.Context) State {
	s.once.Do(func() {
		st := s.hydrate(ctx)
		s.mu.Lock()
		s.state = st
		s.mu.Unlock()
		close(s.ready)
	})
	return s.current()
}

// Hydrating reports whether hydration is still outstanding.
func (s *Store) Hydrating() bool {
	select {
	case <-s.ready:
		return false
	default:
		return true
	}
}

// State waits for hydration and returns the resolved state. The only error is
// the context's.
func (s *Store) State(ctx context.Context) (State, error) {
	select {
	case <-s.ready:
		return s.current(), nil
	case <-ctx.Done():
		return Anonymous(), ctx.Err()
	}
}

func (s *Store) current() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Store) hydrate(ctx context.Context) State {
	if s.key == "" {
		s.metrics.ObserveHydration("anonymous")
		return Anonymous()
	}

	blob, err := s.creds.Load(ctx, s.key)
	if errors.Is(err, sentinel.ErrNotFound) {
		s.metrics.ObserveHydration("anonymous")
		return Anonymous()
	}
	if err != nil {
		// The credential may be fine; leave it for the next attempt.
		s.logger.WarnContext(ctx, "credential load failed, treating caller as anonymous", "error", err)
		s.metrics.ObserveHydration("unavailable")
		return Anonymous()
	}

	cred, err := decodeCredential(blob)
	if err != nil {
		return s.reject(ctx, "corrupt credential", err)
	}
	if !cred.Identity.Role.IsValid() {
		return s.reject(ctx, "credential carries unknown role", nil)
	}

	claims, err := s.tokens.Verify(cred.Token)
	if err != nil {
		return s.reject(ctx, "credential token rejected", err)
	}
	if claims.Subject != cred.Identity.ID.String() || claims.Role != string(cred.Identity.Role) || claims.SessionID != s.key {
		return s.reject(ctx, "credential token does not match identity", nil)
	}
	sid, err := domain.ParseSessionID(claims.SessionID)
	if err != nil {
		return s.reject(ctx, "credential token has malformed session id", err)
	}

	identity := cred.Identity
	if s.resolver != nil {
		fresh, err := s.resolver.ResolveIdentity(ctx, identity.ID)
		switch {
		case errors.Is(err, sentinel.ErrNotFound) || dErrors.HasCode(err, dErrors.CodeNotFound):
			return s.reject(ctx, "credential identity no longer exists", nil)
		case err != nil:
			s.logger.WarnContext(ctx, "identity lookup failed, treating caller as anonymous", "error", err)
			s.metrics.ObserveHydration("unavailable")
			return Anonymous()
		case fresh.Role != identity.Role:
			return s.reject(ctx, "identity role changed since login", nil)
		}
		identity = fresh
	}

	sess := Session{
		ID:         sid,
		IdentityID: identity.ID,
		Role:       identity.Role,
		Token:      cred.Token,
	}
	if claims.IssuedAt != nil {
		sess.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		sess.ExpiresAt = claims.ExpiresAt.Time
	}
	s.metrics.ObserveHydration("authenticated")
	return Authenticated(identity, sess)
}

// reject purges the credential and resolves to Anonymous.
func (s *Store) reject(ctx context.Context, reason string, cause error) State {
	attrs := []any{"reason", reason}
	if cause != nil {
		attrs = append(attrs, "error", cause)
	}
	s.logger.WarnContext(ctx, "purging session credential", attrs...)
	if err := s.creds.Delete(ctx, s.key); err != nil {
		s.logger.ErrorContext(ctx, "failed to purge session credential", "error", err)
	}
	s.metrics.ObserveHydration("purged")
	return Anonymous()
}

// Login persists token and identity together under this store's key and
// makes the store authenticated. Any outstanding hydration is superseded.
func (s *Store) Login(ctx context.Context, token string, identity domain.Identity) error {
	if !identity.Role.IsValid() {
		return dErrors.New(dErrors.CodeValidation, "identity has invalid role")
	}
	claims, err := s.tokens.Verify(token)
	if err != nil {
		return err
	}
	if claims.Subject != identity.ID.String() || claims.SessionID != s.key {
		return dErrors.New(dErrors.CodeSession, "token does not belong to this session")
	}

	blob, err := Credential{Token: token, Identity: identity}.encode()
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to encode credential")
	}
	if err := s.creds.Save(ctx, s.key, blob, s.ttl); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist credential")
	}

	sid, _ := domain.ParseSessionID(claims.SessionID)
	sess := Session{ID: sid, IdentityID: identity.ID, Role: identity.Role, Token: token}
	if claims.IssuedAt != nil {
		sess.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		sess.ExpiresAt = claims.ExpiresAt.Time
	}
	s.settle(Authenticated(identity, sess))
	return nil
}

// Logout purges the credential. Calling it again is a no-op.
func (s *Store) Logout(ctx context.Context) error {
	if s.key != "" {
		if err := s.creds.Delete(ctx, s.key); err != nil && !errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to purge credential")
		}
	}
	s.settle(Anonymous())
	return nil
}

func (s *Store) settle(st State) {
	s.once.Do(func() { close(s.ready) })
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}
