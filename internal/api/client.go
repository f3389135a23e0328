package api

import "context"

// LoginResult is the outcome of a primary login exchange. Exactly one of
// two shapes comes back on success: a full token, or a step-up demand
// carrying a temporary token. TwoFactorRequired is control flow, not an
// error.
type LoginResult struct {
	Token             string
	TwoFactorRequired bool
	TempToken         string
}

// Enrollment is a provisioned, not-yet-active second factor: the raw
// secret for manual entry, the otpauth provisioning URI, and a QR image
// rendered by the server. It exists only while the enrollment wizard is
// open.
type Enrollment struct {
	Secret          string
	ProvisioningURI string
	QRImage         []byte
}

// Profile is the account view consumed by the session core, including
// the security flags it must keep in sync.
type Profile struct {
	UserID           string `json:"user_id"`
	Email            string `json:"email"`
	Name             string `json:"name"`
	EmailVerified    bool   `json:"email_verified"`
	PhoneVerified    bool   `json:"phone_verified"`
	TwoFactorEnabled bool   `json:"two_factor_enabled"`
}

// Client is the transport-agnostic contract for talking to the JobPort
// backend. All methods honor context cancellation and surface exactly one
// outcome per call; none of them retries.
type Client interface {
	// Login submits primary credentials. Both Login and VerifyTOTP are
	// sent unauthenticated: a leftover credential from a previous session
	// must never be attached to them.
	Login(ctx context.Context, email, password string) (*LoginResult, error)
	VerifyTOTP(ctx context.Context, email, password, code, tempToken string) (string, error)

	TOTPSetupBegin(ctx context.Context) (*Enrollment, error)
	TOTPActivate(ctx context.Context, email, code string) error
	TOTPDisable(ctx context.Context, code string) error

	Logout(ctx context.Context) error
	LogoutAll(ctx context.Context) error

	Profile(ctx context.Context) (*Profile, error)
	Deactivate(ctx context.Context, password string) error

	Ping(ctx context.Context) error
	Close() error
}
