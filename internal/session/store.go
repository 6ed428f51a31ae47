// Package session implements the revocable session store backing both HTTP
// auth and the channel handshake. Revocability is decoupled from the token's
// own claims: deleting the row makes a token unusable immediately, even while
// its signature and expiry would still verify.
package session

import (
	"context"
	"log"
	"time"

	"complaintrack/server/internal/security"
	"complaintrack/server/internal/session/domain"
	sessionrepo "complaintrack/server/internal/session/repository"
)

// Store creates, validates, revokes, and sweeps sessions.
type Store struct {
	repo   sessionrepo.Repository
	tokens *security.TokenProvider
	ttl    time.Duration
}

// NewStore returns a Store persisting through repo. tokens signs the bearer
// token that doubles as the session row key; ttl is the session lifetime.
func NewStore(repo sessionrepo.Repository, tokens *security.TokenProvider, ttl time.Duration) *Store {
	return &Store{repo: repo, tokens: tokens, ttl: ttl}
}

// Create issues a signed bearer token for the snapshot's identity and inserts
// the session row with expiry now + TTL. Returns the token.
func (s *Store) Create(ctx context.Context, snapshot domain.Snapshot) (string, error) {
	token, expiresAt, err := s.tokens.Issue(snapshot.ID, snapshot.Role)
	if err != nil {
		return "", err
	}
	sess := &domain.Session{
		Token:     token,
		UserID:    snapshot.ID,
		Snapshot:  snapshot,
		ExpiresAt: expiresAt,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, sess); err != nil {
		return "", err
	}
	return token, nil
}

// Validate returns the identity snapshot only if a non-expired row exists for
// token. Returns (nil, nil) for missing, expired, or revoked tokens; errors
// only on database failure.
func (s *Store) Validate(ctx context.Context, token string) (*domain.Snapshot, error) {
	sess, err := s.repo.GetActiveByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, nil
	}
	snap := sess.Snapshot
	return &snap, nil
}

// ListActive returns all unexpired sessions, newest first. Admin-only surface;
// tokens on the returned sessions must not be exposed to callers.
func (s *Store) ListActive(ctx context.Context) ([]*domain.Session, error) {
	return s.repo.ListActive(ctx)
}

// Revoke deletes the session row so the token is instantly unusable.
// Revoking an unknown token is a no-op.
func (s *Store) Revoke(ctx context.Context, token string) error {
	return s.repo.Delete(ctx, token)
}

// Sweep deletes all expired session rows and returns how many were removed.
func (s *Store) Sweep(ctx context.Context) (int64, error) {
	return s.repo.DeleteExpired(ctx)
}

// RunSweeper sweeps expired sessions every interval until ctx is cancelled.
// Failures are logged and retried on the next tick only.
func (s *Store) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.Sweep(ctx)
			if err != nil {
				log.Printf("session: sweep failed: %v", err)
				continue
			}
			if n > 0 {
				log.Printf("session: swept %d expired sessions", n)
			}
		}
	}
}
