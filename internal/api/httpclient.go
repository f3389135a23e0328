package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/dkozyrev/jobport/internal/common"
	"github.com/dkozyrev/jobport/internal/logging"
)

// HTTPClient is the JSON-over-HTTP implementation of Client. Failure
// classification is uniform across operations: connection problems map to
// common.ErrUnavailable, a rejected credential to common.ErrUnauthorized,
// and other rejections to common.ServerRejectedError carrying the
// server's reason.
type HTTPClient struct {
	baseURL string
	http    *http.Client
	log     logging.Logger
}

// NewHTTPClient builds a client for the backend at baseURL. Every request
// carries clientID; authenticated requests additionally carry the bearer
// token from tokens.
func NewHTTPClient(baseURL, clientID string, tokens TokenSource, timeout time.Duration, log logging.Logger) *HTTPClient {
	if log == nil {
		log = logging.Nop()
	}
	return &HTTPClient{
		baseURL: baseURL,
		http: &http.Client{
			Timeout: timeout,
			Transport: &authTransport{
				base:     http.DefaultTransport,
				tokens:   tokens,
				clientID: clientID,
			},
		},
		log: log,
	}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token             string `json:"token"`
	TwoFactorRequired bool   `json:"two_factor_required"`
	TempToken         string `json:"temp_token"`
}

// Login submits primary credentials once. The request is anonymous: a
// leftover credential must never upgrade a login attempt.
func (c *HTTPClient) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	var resp loginResponse
	err := c.do(WithoutAuth(ctx), http.MethodPost, "/api/v1/auth/login",
		loginRequest{Email: email, Password: password}, &resp)
	if err != nil {
		if reason, ok := rejectionReason(err); ok {
			return nil, fmt.Errorf("%s: %w", reason, common.ErrInvalidCredentials)
		}
		return nil, err
	}

	return &LoginResult{
		Token:             resp.Token,
		TwoFactorRequired: resp.TwoFactorRequired,
		TempToken:         resp.TempToken,
	}, nil
}

type verifyRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	Code      string `json:"code"`
	TempToken string `json:"temp_token"`
}

// VerifyTOTP exchanges the temporary token plus a one-time code for a
// full token. On rejection the temporary token is left untouched so the
// user may retry with a fresh code.
func (c *HTTPClient) VerifyTOTP(ctx context.Context, email, password, code, tempToken string) (string, error) {
	var resp loginResponse
	err := c.do(WithoutAuth(ctx), http.MethodPost, "/api/v1/auth/login/verify",
		verifyRequest{Email: email, Password: password, Code: code, TempToken: tempToken}, &resp)
	if err != nil {
		if reason, ok := rejectionReason(err); ok {
			return "", fmt.Errorf("%s: %w", reason, common.ErrInvalidOneTimeCode)
		}
		return "", err
	}
	return resp.Token, nil
}

type totpSetupResponse struct {
	Secret          string `json:"secret"`
	ProvisioningURI string `json:"provisioning_uri"`
	QRImage         []byte `json:"qr_image"`
}

// TOTPSetupBegin asks the server to provision a new, not-yet-active
// second factor for the authenticated account.
func (c *HTTPClient) TOTPSetupBegin(ctx context.Context) (*Enrollment, error) {
	var resp totpSetupResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/account/2fa/setup", nil, &resp); err != nil {
		return nil, err
	}
	return &Enrollment{
		Secret:          resp.Secret,
		ProvisioningURI: resp.ProvisioningURI,
		QRImage:         resp.QRImage,
	}, nil
}

type totpActivateRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

// TOTPActivate proves possession of a freshly provisioned factor; only
// then does the server mark it active.
func (c *HTTPClient) TOTPActivate(ctx context.Context, email, code string) error {
	err := c.do(ctx, http.MethodPost, "/api/v1/account/2fa/activate",
		totpActivateRequest{Email: email, Code: code}, nil)
	if reason, ok := rejectionReason(err); ok {
		return fmt.Errorf("%s: %w", reason, common.ErrInvalidOneTimeCode)
	}
	return err
}

type totpDisableRequest struct {
	Code string `json:"code"`
}

// TOTPDisable removes the active factor after proof of possession.
func (c *HTTPClient) TOTPDisable(ctx context.Context, code string) error {
	err := c.do(ctx, http.MethodPost, "/api/v1/account/2fa/disable",
		totpDisableRequest{Code: code}, nil)
	if reason, ok := rejectionReason(err); ok {
		return fmt.Errorf("%s: %w", reason, common.ErrInvalidOneTimeCode)
	}
	return err
}

// Logout asks the server to invalidate the current session.
func (c *HTTPClient) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/v1/auth/logout", nil, nil)
}

// LogoutAll asks the server to invalidate every session for the account.
func (c *HTTPClient) LogoutAll(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/v1/auth/logout_all", nil, nil)
}

// Profile fetches the account view, including the security flags the
// session core keeps in sync.
func (c *HTTPClient) Profile(ctx context.Context) (*Profile, error) {
	var resp Profile
	if err := c.do(ctx, http.MethodGet, "/api/v1/account/profile", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

type deactivateRequest struct {
	Password string `json:"password"`
}

// Deactivate requests account deactivation.
func (c *HTTPClient) Deactivate(ctx context.Context, password string) error {
	return c.do(ctx, http.MethodPost, "/api/v1/account/deactivate",
		deactivateRequest{Password: password}, nil)
}

// Ping is a liveness probe.
func (c *HTTPClient) Ping(ctx context.Context) error {
	return c.do(WithoutAuth(ctx), http.MethodGet, "/api/v1/ping", nil, nil)
}

// Close releases idle connections.
func (c *HTTPClient) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

type errorResponse struct {
	Error string `json:"error"`
}

// do performs one JSON exchange. body and out may be nil. Non-2xx
// statuses are classified by mapStatus; the response body is drained so
// connections can be reused.
func (c *HTTPClient) do(ctx context.Context, method, path string, body, out any) error {
	u, err := url.JoinPath(c.baseURL, path)
	if err != nil {
		return fmt.Errorf("invalid request path %q: %w", path, err)
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn(ctx, "request failed", "method", method, "path", path, "error", err)
		return fmt.Errorf("%s %s: %w", method, path, common.ErrUnavailable)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var er errorResponse
		_ = json.NewDecoder(resp.Body).Decode(&er)
		return c.mapStatus(ctx, method, path, resp.StatusCode, er.Error)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

// mapStatus is the single place a response status turns into an error of
// the client taxonomy. A 401 means different things depending on who was
// being authenticated: on an anonymous request (login, step-up) it
// rejects the submitted credentials; on an authenticated request it
// rejects the held session credential.
func (c *HTTPClient) mapStatus(ctx context.Context, method, path string, status int, reason string) error {
	switch {
	case status == http.StatusUnauthorized && !isAnonymous(ctx):
		return common.ErrUnauthorized
	case status >= 500:
		c.log.Warn(ctx, "server error", "method", method, "path", path, "status", status)
		return common.ErrUnavailable
	default:
		if reason == "" {
			reason = http.StatusText(status)
		}
		return &common.ServerRejectedError{Reason: reason}
	}
}

// rejectionReason extracts the server's reason from an error produced by
// do, for operations that translate a generic rejection into a more
// specific sentinel. ErrUnavailable and ErrUnauthorized never qualify.
func rejectionReason(err error) (string, bool) {
	var rej *common.ServerRejectedError
	if errors.As(err, &rej) {
		return rej.Reason, true
	}
	return "", false
}
