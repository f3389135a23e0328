// Package services contains the application services of the JobPort
// client session core: primary and step-up authentication, 2FA
// enrollment and disablement, session revocation, and account upkeep.
package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dkozyrev/jobport/internal/api"
	"github.com/dkozyrev/jobport/internal/common"
	"github.com/dkozyrev/jobport/internal/logging"
	"github.com/dkozyrev/jobport/internal/session"
)

// LoginPhase is the state of the current login flow. Modelling the flow
// as an explicit enum keeps illegal transitions (such as submitting a
// code with no step-up pending) unrepresentable at the call sites.
type LoginPhase int

const (
	PhaseAwaitingCredentials LoginPhase = iota
	PhaseAwaitingSecondFactor
	PhaseAuthenticated
	PhaseRejected
)

func (p LoginPhase) String() string {
	switch p {
	case PhaseAwaitingCredentials:
		return "awaiting-credentials"
	case PhaseAwaitingSecondFactor:
		return "awaiting-second-factor"
	case PhaseAuthenticated:
		return "authenticated"
	case PhaseRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// LoginOutcome is the single result of a primary login attempt. Exactly
// one of the branches holds: SecondFactorRequired, or Credential set.
// A rejected attempt is reported as an error instead.
type LoginOutcome struct {
	SecondFactorRequired bool
	Credential           *session.Credential
}

// AuthService drives the login state machine and session revocation.
//
// Contract:
//   - Login: submit primary credentials; yields a full session, a
//     step-up demand, or a rejection. Never retries.
//   - VerifyTOTP: complete a pending step-up with a one-time code.
//   - AbandonLogin: close the flow; a late response from an outstanding
//     attempt must not touch the credential store afterwards.
//   - Logout: server-side invalidation, then unconditional local clear.
//   - LogoutAll: local clear only on confirmed server success.
//   - HandleRejectedCredential: central forced-logout reaction to
//     common.ErrUnauthorized surfaced by any authenticated call.
//
// All methods must honor context cancellation/timeouts. Concurrent
// submission of the same operation is rejected with
// common.ErrOperationInFlight.
type AuthService interface {
	Login(ctx context.Context, email, password string) (*LoginOutcome, error)
	VerifyTOTP(ctx context.Context, code string) (*session.Credential, error)
	AbandonLogin()
	Phase() LoginPhase
	Logout(ctx context.Context) error
	LogoutAll(ctx context.Context) error
	HandleRejectedCredential(ctx context.Context, err error) bool
	Close(ctx context.Context) error
}

type authService struct {
	client api.Client
	store  *session.Store
	log    logging.Logger

	mu       sync.Mutex
	phase    LoginPhase
	busy     bool
	gen      uint64
	email    string
	password string
	temp     *session.TempCredential
}

// NewAuthService constructs an AuthService bound to the given API client
// and credential store.
func NewAuthService(client api.Client, store *session.Store, log logging.Logger) AuthService {
	if log == nil {
		log = logging.Nop()
	}
	return &authService{client: client, store: store, log: log}
}

// Login submits primary credentials once. Outcomes:
//   - rejection: an error wrapping common.ErrInvalidCredentials; no
//     state change, the user may immediately retry with corrected input;
//   - step-up required: outcome with SecondFactorRequired set, the
//     temporary credential retained internally, the store untouched;
//   - success: the store is set and the security flags refreshed.
//
// Starting a new login supersedes any pending step-up from an earlier
// attempt.
func (a *authService) Login(ctx context.Context, email, password string) (*LoginOutcome, error) {
	if email == "" || password == "" {
		return nil, fmt.Errorf("email and password are required: %w", common.ErrInvalidCredentials)
	}
	if !common.ValidateEmail(email) {
		return nil, fmt.Errorf("malformed email %q: %w", email, common.ErrInvalidCredentials)
	}

	gen, err := a.beginAttempt(func(s *authService) {
		// fresh attempt invalidates any earlier pending step-up
		s.temp = nil
		s.phase = PhaseAwaitingCredentials
	})
	if err != nil {
		return nil, err
	}

	res, err := a.client.Login(ctx, email, password)

	a.mu.Lock()
	defer a.mu.Unlock()
	a.busy = false

	if a.gen != gen {
		return nil, common.ErrFlowAbandoned
	}

	if err != nil {
		a.phase = PhaseRejected
		return nil, err
	}

	if res.TwoFactorRequired {
		a.phase = PhaseAwaitingSecondFactor
		a.email = email
		a.password = password
		a.temp = &session.TempCredential{Token: res.TempToken}
		a.log.Info(ctx, "second factor required", "email", email)
		return &LoginOutcome{SecondFactorRequired: true}, nil
	}

	cred, err := a.completeLocked(ctx, res.Token)
	if err != nil {
		return nil, err
	}
	return &LoginOutcome{Credential: cred}, nil
}

// VerifyTOTP exchanges the retained temporary credential plus a one-time
// code for a full session. A wrong or expired code keeps the temporary
// credential usable: the user may retry with a fresh code, the client
// enforces no local attempt limit.
func (a *authService) VerifyTOTP(ctx context.Context, code string) (*session.Credential, error) {
	if !common.ValidateOneTimeCode(code) {
		return nil, fmt.Errorf("code must be %d digits: %w", common.OneTimeCodeLength, common.ErrInvalidOneTimeCode)
	}

	a.mu.Lock()
	if a.phase != PhaseAwaitingSecondFactor || a.temp == nil {
		a.mu.Unlock()
		return nil, common.ErrSecondFactorNotPending
	}
	if a.busy {
		a.mu.Unlock()
		return nil, common.ErrOperationInFlight
	}
	a.busy = true
	gen := a.gen
	email, password, temp := a.email, a.password, a.temp.Token
	a.mu.Unlock()

	token, err := a.client.VerifyTOTP(ctx, email, password, code, temp)

	a.mu.Lock()
	defer a.mu.Unlock()
	a.busy = false

	if a.gen != gen {
		return nil, common.ErrFlowAbandoned
	}

	if err != nil {
		// the temporary credential stays usable for another attempt
		return nil, err
	}

	return a.completeLocked(ctx, token)
}

// AbandonLogin closes the current login flow. An in-flight request is
// not aborted, but its response will be ignored and will not mutate the
// credential store.
func (a *authService) AbandonLogin() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.gen++
	a.phase = PhaseAwaitingCredentials
	a.email = ""
	a.password = ""
	a.temp = nil
}

// Phase reports the current login-flow state.
func (a *authService) Phase() LoginPhase {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.phase
}

// Logout requests server-side invalidation of the current session and
// then clears the local store unconditionally: local state must not
// trust an unreachable server to decide whether this device is still
// logged in.
func (a *authService) Logout(ctx context.Context) error {
	if err := a.client.Logout(ctx); err != nil {
		a.log.Warn(ctx, "server-side logout failed, clearing local session anyway", "error", err)
	}
	return a.store.Clear(ctx)
}

// LogoutAll requests invalidation of every session for the account. The
// local store is cleared only on confirmed success; on failure this
// device deliberately stays authenticated so the user can retry.
func (a *authService) LogoutAll(ctx context.Context) error {
	if err := a.client.LogoutAll(ctx); err != nil {
		return err
	}
	return a.store.Clear(ctx)
}

// HandleRejectedCredential is the single forced-logout point: when err
// says the server rejected the held credential, the store is cleared and
// true is returned so the caller can redirect to login. Any other error
// leaves the session alone.
func (a *authService) HandleRejectedCredential(ctx context.Context, err error) bool {
	if !isUnauthorized(err) {
		return false
	}
	a.log.Info(ctx, "credential rejected by server, clearing local session")
	if cerr := a.store.Clear(ctx); cerr != nil {
		a.log.Error(ctx, "failed to clear local session", "error", cerr)
	}
	return true
}

// Close releases resources held by the underlying client.
func (a *authService) Close(ctx context.Context) error {
	return a.client.Close()
}

func isUnauthorized(err error) bool {
	return errors.Is(err, common.ErrUnauthorized)
}

// beginAttempt marks the service busy for one network exchange and
// returns the flow generation the response must match to be applied.
func (a *authService) beginAttempt(reset func(*authService)) (uint64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.busy {
		return 0, common.ErrOperationInFlight
	}
	a.busy = true
	a.gen++
	if reset != nil {
		reset(a)
	}
	return a.gen, nil
}

// completeLocked finishes a successful primary or step-up exchange:
// build the credential, set the store, wipe the retained secrets, and
// refresh the security flags. Callers hold a.mu.
func (a *authService) completeLocked(ctx context.Context, token string) (*session.Credential, error) {
	cred := session.CredentialFromToken(token)

	if err := a.store.Set(ctx, cred); err != nil {
		return nil, err
	}

	a.phase = PhaseAuthenticated
	a.email = ""
	a.password = ""
	a.temp = nil

	// the snapshot is completed best-effort; the session itself is
	// already established
	if profile, err := a.client.Profile(ctx); err != nil {
		a.log.Warn(ctx, "failed to refresh security flags after login", "error", err)
	} else {
		if cred.Subject.UserID == "" {
			cred.Subject.UserID = profile.UserID
		}
		cred.Subject.Email = profile.Email
		cred.Subject.Name = profile.Name
		cred.Subject.EmailVerified = profile.EmailVerified
		cred.Subject.PhoneVerified = profile.PhoneVerified
		cred.Subject.TwoFactorEnabled = profile.TwoFactorEnabled
		if err := a.store.Set(ctx, cred); err != nil {
			a.log.Warn(ctx, "failed to persist refreshed subject snapshot", "error", err)
		}
	}

	current, _ := a.store.Current()
	return &current, nil
}
