package services

import (
	"context"
	"testing"

	"github.com/dkozyrev/jobport/internal/api"
	"github.com/dkozyrev/jobport/internal/common"
	"github.com/dkozyrev/jobport/internal/session"
	"github.com/stretchr/testify/require"
)

func newTwoFactor(t *testing.T, fc *fakeClient, twoFactorEnabled bool) (TwoFactorService, *session.Store) {
	t.Helper()
	store := session.NewStore()
	err := store.Set(context.Background(), &session.Credential{
		Token: "tok",
		Subject: session.Subject{
			UserID:           "u1",
			Email:            "a@b.com",
			TwoFactorEnabled: twoFactorEnabled,
		},
	})
	require.NoError(t, err)
	return NewTwoFactorService(fc, store, nil), store
}

func testEnrollment() *api.Enrollment {
	return &api.Enrollment{
		Secret:          "JBSWY3DPEHPK3PXP",
		ProvisioningURI: "otpauth://totp/JobPort:a@b.com?secret=JBSWY3DPEHPK3PXP&issuer=JobPort",
		QRImage:         []byte{0x89, 'P', 'N', 'G'},
	}
}

func TestEnrollment_HappyPath(t *testing.T) {
	fc := &fakeClient{setupRes: testEnrollment()}
	svc, store := newTwoFactor(t, fc, false)
	ctx := context.Background()

	w := svc.NewEnrollment()
	require.Equal(t, StageIntro, w.Stage())

	enr, err := w.Begin(ctx)
	require.NoError(t, err)
	require.Equal(t, StageQRCode, w.Stage())
	require.Equal(t, "JBSWY3DPEHPK3PXP", enr.Secret)
	require.NotNil(t, w.Enrollment())

	require.NoError(t, w.AdvanceToVerify())
	require.Equal(t, StageVerify, w.Stage())

	require.NoError(t, w.Activate(ctx, "123456"))
	require.Equal(t, StageDone, w.Stage())

	// activation used the account identifier from the snapshot
	require.Equal(t, "a@b.com", fc.lastActivateEmail)
	require.Equal(t, "123456", fc.lastActivateCode)

	got, _ := store.Current()
	require.True(t, got.Subject.TwoFactorEnabled)

	// the transient secret is gone once the factor is durable
	require.Nil(t, w.Enrollment())
}

func TestEnrollment_ActivateBeforeSetupFailsLocally(t *testing.T) {
	fc := &fakeClient{}
	svc, store := newTwoFactor(t, fc, false)

	w := svc.NewEnrollment()
	err := w.Activate(context.Background(), "123456")
	require.ErrorIs(t, err, common.ErrEnrollmentNotStarted)

	// nothing reached the server, nothing changed locally
	require.Empty(t, fc.lastActivateCode)
	got, _ := store.Current()
	require.False(t, got.Subject.TwoFactorEnabled)
}

func TestEnrollment_StagesAreStrictlyOrdered(t *testing.T) {
	fc := &fakeClient{setupRes: testEnrollment()}
	svc, _ := newTwoFactor(t, fc, false)
	ctx := context.Background()

	w := svc.NewEnrollment()

	// cannot skip the intro
	require.ErrorIs(t, w.AdvanceToVerify(), common.ErrEnrollmentStageSkipped)

	_, err := w.Begin(ctx)
	require.NoError(t, err)

	// cannot provision twice, cannot activate while the QR is shown
	_, err = w.Begin(ctx)
	require.ErrorIs(t, err, common.ErrEnrollmentStageSkipped)
	require.ErrorIs(t, w.Activate(ctx, "123456"), common.ErrEnrollmentStageSkipped)

	require.NoError(t, w.AdvanceToVerify())
	require.ErrorIs(t, w.AdvanceToVerify(), common.ErrEnrollmentStageSkipped)
}

func TestEnrollment_CodeGate(t *testing.T) {
	fc := &fakeClient{setupRes: testEnrollment()}
	svc, _ := newTwoFactor(t, fc, false)
	ctx := context.Background()

	w := svc.NewEnrollment()
	_, err := w.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, w.AdvanceToVerify())

	for _, code := range []string{"", "12345", "1234567", "12e456"} {
		require.ErrorIs(t, w.Activate(ctx, code), common.ErrInvalidOneTimeCode)
	}
	require.Empty(t, fc.lastActivateCode)
}

func TestEnrollment_FailedActivationKeepsWizardOpen(t *testing.T) {
	fc := &fakeClient{
		setupRes:    testEnrollment(),
		activateErr: common.ErrInvalidOneTimeCode,
	}
	svc, store := newTwoFactor(t, fc, false)
	ctx := context.Background()

	w := svc.NewEnrollment()
	_, err := w.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, w.AdvanceToVerify())

	require.ErrorIs(t, w.Activate(ctx, "000000"), common.ErrInvalidOneTimeCode)

	// still at verify, still retryable, flag unchanged
	require.Equal(t, StageVerify, w.Stage())
	got, _ := store.Current()
	require.False(t, got.Subject.TwoFactorEnabled)

	fc.mu.Lock()
	fc.activateErr = nil
	fc.mu.Unlock()
	require.NoError(t, w.Activate(ctx, "123456"))
	got, _ = store.Current()
	require.True(t, got.Subject.TwoFactorEnabled)
}

func TestEnrollment_CancelDiscardsState(t *testing.T) {
	fc := &fakeClient{setupRes: testEnrollment()}
	svc, store := newTwoFactor(t, fc, false)
	ctx := context.Background()

	w := svc.NewEnrollment()
	_, err := w.Begin(ctx)
	require.NoError(t, err)

	w.Cancel()
	require.Nil(t, w.Enrollment())

	// a cancelled wizard accepts nothing further
	require.ErrorIs(t, w.AdvanceToVerify(), common.ErrFlowAbandoned)
	_, err = w.Begin(ctx)
	require.ErrorIs(t, err, common.ErrFlowAbandoned)

	got, _ := store.Current()
	require.False(t, got.Subject.TwoFactorEnabled)
}

func TestEnrollment_CancelWhileProvisioningInFlight(t *testing.T) {
	fc := &fakeClient{
		setupRes:     testEnrollment(),
		setupStarted: make(chan struct{}),
		setupRelease: make(chan struct{}),
	}
	svc, _ := newTwoFactor(t, fc, false)
	ctx := context.Background()

	w := svc.NewEnrollment()

	done := make(chan error, 1)
	go func() {
		_, err := w.Begin(ctx)
		done <- err
	}()

	<-fc.setupStarted
	w.Cancel()
	close(fc.setupRelease)

	require.ErrorIs(t, <-done, common.ErrFlowAbandoned)
	require.Nil(t, w.Enrollment())
}

func TestEnrollment_RequiresSession(t *testing.T) {
	fc := &fakeClient{setupRes: testEnrollment()}
	store := session.NewStore()
	svc := NewTwoFactorService(fc, store, nil)
	ctx := context.Background()

	w := svc.NewEnrollment()
	_, err := w.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, w.AdvanceToVerify())

	require.ErrorIs(t, w.Activate(ctx, "123456"), common.ErrNotAuthenticated)
}

func TestDisable_WrongCodeLeavesFlagOn(t *testing.T) {
	fc := &fakeClient{disableErr: common.ErrInvalidOneTimeCode}
	svc, store := newTwoFactor(t, fc, true)
	ctx := context.Background()

	require.ErrorIs(t, svc.Disable(ctx, "000000"), common.ErrInvalidOneTimeCode)

	got, _ := store.Current()
	require.True(t, got.Subject.TwoFactorEnabled)
}

func TestDisable_Success(t *testing.T) {
	fc := &fakeClient{}
	svc, store := newTwoFactor(t, fc, true)
	ctx := context.Background()

	require.NoError(t, svc.Disable(ctx, "123456"))
	require.Equal(t, "123456", fc.lastDisableCode)

	got, _ := store.Current()
	require.False(t, got.Subject.TwoFactorEnabled)
}

func TestDisable_CodeGate(t *testing.T) {
	fc := &fakeClient{}
	svc, _ := newTwoFactor(t, fc, true)

	require.ErrorIs(t, svc.Disable(context.Background(), "12345"), common.ErrInvalidOneTimeCode)
	require.Empty(t, fc.lastDisableCode)
}
