package services

import (
	"context"

	"github.com/dkozyrev/jobport/internal/api"
	"github.com/dkozyrev/jobport/internal/logging"
	"github.com/dkozyrev/jobport/internal/session"
)

// AccountService keeps the local account view in sync with the server
// and handles account deactivation.
type AccountService interface {
	// RefreshSecurityFlags re-reads the profile and updates the
	// snapshot's emailVerified/phoneVerified/twoFactorEnabled flags.
	// Call it after any operation that changes them server-side.
	RefreshSecurityFlags(ctx context.Context) (*api.Profile, error)

	// Deactivate requests account deactivation and, on success, clears
	// the local session: a deactivated account holds no credential.
	Deactivate(ctx context.Context, password string) error
}

type accountService struct {
	client api.Client
	store  *session.Store
	log    logging.Logger
}

// NewAccountService constructs an AccountService bound to the given API
// client and credential store.
func NewAccountService(client api.Client, store *session.Store, log logging.Logger) AccountService {
	if log == nil {
		log = logging.Nop()
	}
	return &accountService{client: client, store: store, log: log}
}

func (s *accountService) RefreshSecurityFlags(ctx context.Context) (*api.Profile, error) {
	profile, err := s.client.Profile(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.store.SetSecurityFlags(ctx, profile.EmailVerified, profile.PhoneVerified, profile.TwoFactorEnabled); err != nil {
		s.log.Warn(ctx, "failed to persist refreshed security flags", "error", err)
	}
	return profile, nil
}

func (s *accountService) Deactivate(ctx context.Context, password string) error {
	if err := s.client.Deactivate(ctx, password); err != nil {
		return err
	}
	s.log.Info(ctx, "account deactivated")
	return s.store.Clear(ctx)
}
