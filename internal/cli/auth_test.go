package cli

import (
	"bufio"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/dkozyrev/jobport/internal/common"
	"github.com/dkozyrev/jobport/internal/services"
	"github.com/dkozyrev/jobport/internal/session"
)

func stubInputs(t *testing.T, email string, password []byte) func() {
	t.Helper()
	origST, origGP := getSimpleText, getPassword
	getSimpleText = func(_ *bufio.Reader, _ string, _ io.Writer) (string, error) { return email, nil }
	getPassword = func(_ io.Writer) ([]byte, error) { return password, nil }
	return func() {
		getSimpleText = origST
		getPassword = origGP
	}
}

// stubCodes feeds one-time codes from a queue; an exhausted queue yields
// an empty line (cancel).
func stubCodes(t *testing.T, codes ...string) func() {
	t.Helper()
	orig := getOneTimeCode
	getOneTimeCode = func(_ *bufio.Reader, _ io.Writer) (string, error) {
		if len(codes) == 0 {
			return "", nil
		}
		c := codes[0]
		codes = codes[1:]
		return c, nil
	}
	return func() { getOneTimeCode = orig }
}

type fakeAuth struct {
	outcome  *services.LoginOutcome
	loginErr error

	loginEmail string
	loginPass  string

	verifyCodes []string
	verifyErrs  []error
	verifyCred  *session.Credential

	abandoned       bool
	logoutCalled    bool
	logoutAllCalled bool
	logoutAllErr    error

	rejectedHandled bool
}

func (f *fakeAuth) Login(_ context.Context, email, password string) (*services.LoginOutcome, error) {
	f.loginEmail, f.loginPass = email, password
	return f.outcome, f.loginErr
}

func (f *fakeAuth) VerifyTOTP(_ context.Context, code string) (*session.Credential, error) {
	f.verifyCodes = append(f.verifyCodes, code)
	if len(f.verifyErrs) > 0 {
		err := f.verifyErrs[0]
		f.verifyErrs = f.verifyErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	return f.verifyCred, nil
}

func (f *fakeAuth) AbandonLogin() { f.abandoned = true }

func (f *fakeAuth) Phase() services.LoginPhase { return services.PhaseAwaitingCredentials }

func (f *fakeAuth) Logout(context.Context) error {
	f.logoutCalled = true
	return nil
}

func (f *fakeAuth) LogoutAll(context.Context) error {
	f.logoutAllCalled = true
	return f.logoutAllErr
}

func (f *fakeAuth) HandleRejectedCredential(_ context.Context, err error) bool {
	if errors.Is(err, common.ErrUnauthorized) {
		f.rejectedHandled = true
		return true
	}
	return false
}

func (f *fakeAuth) Close(context.Context) error { return nil }

type fakeTwoFactor struct {
	disableCode string
	disableErr  error
}

func (f *fakeTwoFactor) NewEnrollment() *services.EnrollmentWizard { return nil }
func (f *fakeTwoFactor) Disable(_ context.Context, code string) error {
	f.disableCode = code
	return f.disableErr
}

func newTestApp(auth services.AuthService, tf services.TwoFactorService) *App {
	return &App{
		authService:      auth,
		twoFactorService: tf,
		store:            session.NewStore(),
	}
}

func TestLogin_PasswordOnly(t *testing.T) {
	f := &fakeAuth{outcome: &services.LoginOutcome{Credential: &session.Credential{Token: "tok"}}}
	a := newTestApp(f, nil)

	restore := stubInputs(t, "alice@example.org", []byte("secret"))
	defer restore()

	if err := a.Login(context.Background()); err != nil {
		t.Fatalf("Login err: %v", err)
	}
	if f.loginEmail != "alice@example.org" {
		t.Fatalf("Login email mismatch: %q", f.loginEmail)
	}
	if f.loginPass != "secret" {
		t.Fatalf("Login password mismatch: %q", f.loginPass)
	}
	if a.Mode != ModeOnline {
		t.Fatalf("Mode = %s, want online", a.Mode)
	}
}

func TestLogin_InvalidCredentialsReported(t *testing.T) {
	f := &fakeAuth{loginErr: common.ErrInvalidCredentials}
	a := newTestApp(f, nil)

	restore := stubInputs(t, "alice@example.org", []byte("wrong"))
	defer restore()

	if err := a.Login(context.Background()); err != nil {
		t.Fatalf("rejection must be reported, not returned: %v", err)
	}
}

func TestLogin_StepUpRetriesUntilAccepted(t *testing.T) {
	f := &fakeAuth{
		outcome:    &services.LoginOutcome{SecondFactorRequired: true},
		verifyErrs: []error{common.ErrInvalidOneTimeCode, nil},
		verifyCred: &session.Credential{Token: "tok"},
	}
	a := newTestApp(f, nil)

	restoreIn := stubInputs(t, "alice@example.org", []byte("secret"))
	defer restoreIn()
	restoreCodes := stubCodes(t, "000000", "123456")
	defer restoreCodes()

	if err := a.Login(context.Background()); err != nil {
		t.Fatalf("Login err: %v", err)
	}
	if len(f.verifyCodes) != 2 {
		t.Fatalf("verify attempts = %d, want 2", len(f.verifyCodes))
	}
	if f.verifyCodes[1] != "123456" {
		t.Fatalf("second code = %q", f.verifyCodes[1])
	}
	if f.abandoned {
		t.Fatal("flow must not be abandoned on success")
	}
}

func TestLogin_StepUpEmptyCodeAbandons(t *testing.T) {
	f := &fakeAuth{outcome: &services.LoginOutcome{SecondFactorRequired: true}}
	a := newTestApp(f, nil)

	restoreIn := stubInputs(t, "alice@example.org", []byte("secret"))
	defer restoreIn()
	restoreCodes := stubCodes(t) // immediate cancel
	defer restoreCodes()

	if err := a.Login(context.Background()); err != nil {
		t.Fatalf("Login err: %v", err)
	}
	if !f.abandoned {
		t.Fatal("AbandonLogin not called")
	}
	if len(f.verifyCodes) != 0 {
		t.Fatalf("no code should have been submitted, got %d", len(f.verifyCodes))
	}
}

func TestLogout(t *testing.T) {
	f := &fakeAuth{}
	a := newTestApp(f, nil)
	if err := a.Logout(context.Background()); err != nil {
		t.Fatalf("Logout err: %v", err)
	}
	if !f.logoutCalled {
		t.Fatal("Logout not forwarded to the service")
	}
}

func TestLogoutAll_FailureReported(t *testing.T) {
	f := &fakeAuth{logoutAllErr: common.ErrUnavailable}
	a := newTestApp(f, nil)
	if err := a.LogoutAll(context.Background()); err != nil {
		t.Fatalf("failure must be reported, not returned: %v", err)
	}
	if !f.logoutAllCalled {
		t.Fatal("LogoutAll not forwarded to the service")
	}
}

func TestDisableTwoFactor(t *testing.T) {
	f := &fakeAuth{}
	tf := &fakeTwoFactor{}
	a := newTestApp(f, tf)
	require := func(cond bool, msg string) {
		if !cond {
			t.Fatal(msg)
		}
	}

	// not logged in: the service must not be reached
	restoreCodes := stubCodes(t, "123456")
	if err := a.DisableTwoFactor(context.Background()); err != nil {
		t.Fatal(err)
	}
	require(tf.disableCode == "", "service reached without a session")
	restoreCodes()

	// logged in: the code is forwarded
	_ = a.store.Set(context.Background(), &session.Credential{Token: "tok"})
	restoreCodes = stubCodes(t, "123456")
	defer restoreCodes()

	if err := a.DisableTwoFactor(context.Background()); err != nil {
		t.Fatal(err)
	}
	require(tf.disableCode == "123456", "code not forwarded")
}

func TestDisableTwoFactor_WrongCodeReported(t *testing.T) {
	f := &fakeAuth{}
	tf := &fakeTwoFactor{disableErr: common.ErrInvalidOneTimeCode}
	a := newTestApp(f, tf)
	_ = a.store.Set(context.Background(), &session.Credential{Token: "tok"})

	restoreCodes := stubCodes(t, "000000")
	defer restoreCodes()

	if err := a.DisableTwoFactor(context.Background()); err != nil {
		t.Fatalf("wrong code must be reported, not returned: %v", err)
	}
}
