package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/dkozyrev/jobport/internal/cryptox"
	"github.com/dkozyrev/jobport/internal/logging"
	"github.com/dkozyrev/jobport/internal/repositories/localstate"
)

// Store is the single process-wide holder of the current credential.
//
// It is written only by the authentication and revocation operations and
// read by the request authorizer on every outgoing call. When constructed
// with a localstate repository and sealer, Set/Clear write through so the
// credential survives client restarts; the in-memory state is always
// applied first and is authoritative for subsequent requests even if
// persistence fails.
type Store struct {
	mu     sync.RWMutex
	cred   *Credential
	repo   localstate.Repository
	sealer *cryptox.Sealer
	log    logging.Logger
}

// NewStore returns a purely in-memory Store.
func NewStore() *Store {
	return &Store{log: logging.Nop()}
}

// NewPersistentStore returns a Store that writes the sealed credential
// through to repo on every mutation. Call Load to restore state from a
// previous run.
func NewPersistentStore(repo localstate.Repository, sealer *cryptox.Sealer, log logging.Logger) *Store {
	if log == nil {
		log = logging.Nop()
	}
	return &Store{repo: repo, sealer: sealer, log: log}
}

// Load restores the persisted credential, if any. A missing row means
// "not logged in". A blob that cannot be unsealed or decoded is treated
// as absent and removed: a stale cache must never fabricate a session.
func (s *Store) Load(ctx context.Context) error {
	if s.repo == nil {
		return nil
	}

	sealed, err := s.repo.Get(ctx, localstate.KeyCredential)
	if err != nil {
		return fmt.Errorf("failed to load credential: %w", err)
	}
	if sealed == nil {
		return nil
	}

	plaintext, err := s.sealer.Open(sealed)
	if err != nil {
		s.log.Warn(ctx, "discarding unreadable cached credential", "error", err)
		return s.repo.Delete(ctx, localstate.KeyCredential)
	}

	var cred Credential
	if err := json.Unmarshal(plaintext, &cred); err != nil {
		s.log.Warn(ctx, "discarding undecodable cached credential", "error", err)
		return s.repo.Delete(ctx, localstate.KeyCredential)
	}

	s.mu.Lock()
	s.cred = &cred
	s.mu.Unlock()
	return nil
}

// Set replaces any existing credential. Subsequent requests use it
// immediately, before any persistence I/O completes.
func (s *Store) Set(ctx context.Context, cred *Credential) error {
	c := *cred

	s.mu.Lock()
	s.cred = &c
	s.mu.Unlock()

	return s.persist(ctx, &c)
}

// Clear removes the credential; subsequent requests are unauthenticated.
// The in-memory clear always happens, even if removing the persisted copy
// fails.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	s.cred = nil
	s.mu.Unlock()

	if s.repo == nil {
		return nil
	}
	if err := s.repo.Delete(ctx, localstate.KeyCredential); err != nil {
		return fmt.Errorf("failed to clear persisted credential: %w", err)
	}
	return nil
}

// Current returns a copy of the credential, or false when absent.
func (s *Store) Current() (Credential, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.cred == nil {
		return Credential{}, false
	}
	return *s.cred, true
}

// Token implements the api.TokenSource contract: it returns the current
// bearer token or "" when unauthenticated.
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.cred == nil {
		return ""
	}
	return s.cred.Token
}

// SetTwoFactorEnabled updates the snapshot's two-factor flag after an
// enrollment or disablement succeeded server-side. It is a no-op when no
// credential is held.
func (s *Store) SetTwoFactorEnabled(ctx context.Context, enabled bool) error {
	return s.mutate(ctx, func(c *Credential) {
		c.Subject.TwoFactorEnabled = enabled
	})
}

// SetSecurityFlags refreshes the snapshot's security flags from a
// profile read. It is a no-op when no credential is held.
func (s *Store) SetSecurityFlags(ctx context.Context, emailVerified, phoneVerified, twoFactorEnabled bool) error {
	return s.mutate(ctx, func(c *Credential) {
		c.Subject.EmailVerified = emailVerified
		c.Subject.PhoneVerified = phoneVerified
		c.Subject.TwoFactorEnabled = twoFactorEnabled
	})
}

func (s *Store) mutate(ctx context.Context, fn func(*Credential)) error {
	s.mu.Lock()
	if s.cred == nil {
		s.mu.Unlock()
		return nil
	}
	fn(s.cred)
	c := *s.cred
	s.mu.Unlock()

	return s.persist(ctx, &c)
}

func (s *Store) persist(ctx context.Context, cred *Credential) error {
	if s.repo == nil {
		return nil
	}

	plaintext, err := json.Marshal(cred)
	if err != nil {
		return fmt.Errorf("failed to encode credential: %w", err)
	}
	sealed, err := s.sealer.Seal(plaintext)
	if err != nil {
		return fmt.Errorf("failed to seal credential: %w", err)
	}
	if err := s.repo.Set(ctx, localstate.KeyCredential, sealed); err != nil {
		return fmt.Errorf("failed to persist credential: %w", err)
	}
	return nil
}
