package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/dkozyrev/jobport/internal/api"
	"github.com/dkozyrev/jobport/internal/common"
	"github.com/dkozyrev/jobport/internal/logging"
	"github.com/dkozyrev/jobport/internal/session"
)

// EnrollmentStage is the position of the 2FA setup wizard. The stages
// are strictly ordered; a stage can only be reached from its
// predecessor, so "verify before a secret exists" is unrepresentable.
type EnrollmentStage int

const (
	StageIntro EnrollmentStage = iota
	StageQRCode
	StageVerify
	StageDone
)

func (s EnrollmentStage) String() string {
	switch s {
	case StageIntro:
		return "intro"
	case StageQRCode:
		return "qrcode"
	case StageVerify:
		return "verify"
	case StageDone:
		return "done"
	default:
		return "unknown"
	}
}

// TwoFactorService provisions and removes the account's TOTP factor.
type TwoFactorService interface {
	// NewEnrollment opens a fresh setup wizard at the intro stage.
	NewEnrollment() *EnrollmentWizard

	// Disable removes the active factor after proof of possession.
	// There is no path that disables 2FA without a valid code.
	Disable(ctx context.Context, code string) error
}

type twoFactorService struct {
	client api.Client
	store  *session.Store
	log    logging.Logger

	mu          sync.Mutex
	disableBusy bool
}

// NewTwoFactorService constructs a TwoFactorService bound to the given
// API client and credential store.
func NewTwoFactorService(client api.Client, store *session.Store, log logging.Logger) TwoFactorService {
	if log == nil {
		log = logging.Nop()
	}
	return &twoFactorService{client: client, store: store, log: log}
}

func (s *twoFactorService) NewEnrollment() *EnrollmentWizard {
	return &EnrollmentWizard{svc: s, stage: StageIntro}
}

// Disable submits one code from the currently active factor. On success
// the local twoFactorEnabled flag is flipped off; on failure the flag
// stays true and the caller's dialog remains open for another attempt.
func (s *twoFactorService) Disable(ctx context.Context, code string) error {
	if !common.ValidateOneTimeCode(code) {
		return fmt.Errorf("code must be %d digits: %w", common.OneTimeCodeLength, common.ErrInvalidOneTimeCode)
	}

	s.mu.Lock()
	if s.disableBusy {
		s.mu.Unlock()
		return common.ErrOperationInFlight
	}
	s.disableBusy = true
	s.mu.Unlock()

	err := s.client.TOTPDisable(ctx, code)

	s.mu.Lock()
	s.disableBusy = false
	s.mu.Unlock()

	if err != nil {
		return err
	}

	s.log.Info(ctx, "two-factor authentication disabled")
	return s.store.SetTwoFactorEnabled(ctx, false)
}

// EnrollmentWizard is the strictly ordered three-phase 2FA setup flow:
//
//	intro --Begin--> qrcode --AdvanceToVerify--> verify --Activate--> done
//
// The secret provisioned by Begin is not active server-side until
// Activate proves possession, so cancelling at any stage needs no
// rollback request and leaves the account's 2FA state unchanged.
type EnrollmentWizard struct {
	svc *twoFactorService

	mu         sync.Mutex
	stage      EnrollmentStage
	enrollment *api.Enrollment
	busy       bool
	cancelled  bool
}

// Stage reports the wizard's current stage.
func (w *EnrollmentWizard) Stage() EnrollmentStage {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stage
}

// Begin advances past the intro: it asks the server to provision a new,
// not-yet-active factor and moves to the qrcode stage, exposing the
// secret and provisioning image for display.
func (w *EnrollmentWizard) Begin(ctx context.Context) (*api.Enrollment, error) {
	w.mu.Lock()
	if w.cancelled {
		w.mu.Unlock()
		return nil, common.ErrFlowAbandoned
	}
	if w.stage != StageIntro {
		w.mu.Unlock()
		return nil, fmt.Errorf("begin at stage %s: %w", w.stage, common.ErrEnrollmentStageSkipped)
	}
	if w.busy {
		w.mu.Unlock()
		return nil, common.ErrOperationInFlight
	}
	w.busy = true
	w.mu.Unlock()

	enr, err := w.svc.client.TOTPSetupBegin(ctx)

	w.mu.Lock()
	defer w.mu.Unlock()
	w.busy = false

	if w.cancelled {
		// the wizard was closed while the request was in flight; the
		// provisioned secret is inert server-side, so just drop it
		return nil, common.ErrFlowAbandoned
	}
	if err != nil {
		return nil, err
	}

	w.enrollment = enr
	w.stage = StageQRCode
	return enr, nil
}

// AdvanceToVerify moves from the qrcode display to code entry. Purely
// local; requires no server call.
func (w *EnrollmentWizard) AdvanceToVerify() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.cancelled {
		return common.ErrFlowAbandoned
	}
	if w.stage != StageQRCode {
		return fmt.Errorf("advance at stage %s: %w", w.stage, common.ErrEnrollmentStageSkipped)
	}
	w.stage = StageVerify
	return nil
}

// Activate submits the one-time code together with the account
// identifier to activate the enrollment. Activation is only legal at the
// verify stage; attempting it before a secret was issued fails locally
// with common.ErrEnrollmentNotStarted instead of relying on the server
// to reject it. On failure the wizard stays at the verify stage for
// retry; on success the local twoFactorEnabled flag flips on and the
// wizard is done.
func (w *EnrollmentWizard) Activate(ctx context.Context, code string) error {
	if !common.ValidateOneTimeCode(code) {
		return fmt.Errorf("code must be %d digits: %w", common.OneTimeCodeLength, common.ErrInvalidOneTimeCode)
	}

	w.mu.Lock()
	if w.cancelled {
		w.mu.Unlock()
		return common.ErrFlowAbandoned
	}
	if w.enrollment == nil {
		w.mu.Unlock()
		return common.ErrEnrollmentNotStarted
	}
	if w.stage != StageVerify {
		w.mu.Unlock()
		return fmt.Errorf("activate at stage %s: %w", w.stage, common.ErrEnrollmentStageSkipped)
	}
	if w.busy {
		w.mu.Unlock()
		return common.ErrOperationInFlight
	}
	w.busy = true
	w.mu.Unlock()

	cred, ok := w.svc.store.Current()
	if !ok {
		w.mu.Lock()
		w.busy = false
		w.mu.Unlock()
		return common.ErrNotAuthenticated
	}

	err := w.svc.client.TOTPActivate(ctx, cred.Subject.Email, code)

	w.mu.Lock()
	defer w.mu.Unlock()
	w.busy = false

	if w.cancelled {
		// late success must not flip the local flag for a closed wizard
		return common.ErrFlowAbandoned
	}
	if err != nil {
		return err
	}

	w.stage = StageDone
	w.enrollment = nil
	w.svc.log.Info(ctx, "two-factor authentication enabled")
	return w.svc.store.SetTwoFactorEnabled(ctx, true)
}

// Enrollment exposes the provisioned secret and image while the wizard
// is at the qrcode or verify stage, nil otherwise.
func (w *EnrollmentWizard) Enrollment() *api.Enrollment {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.enrollment
}

// Cancel closes the wizard at any stage, discarding the transient
// secret. The server never marked the factor active, so no rollback
// request is needed and the account's 2FA state is unchanged.
func (w *EnrollmentWizard) Cancel() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.cancelled = true
	w.enrollment = nil
}
