package api

import (
	"context"
	"net/http"

	"github.com/dkozyrev/jobport/internal/common"
)

// TokenSource supplies the current bearer token for outgoing requests.
// session.Store satisfies it. An empty string means "unauthenticated".
type TokenSource interface {
	Token() string
}

type anonymousKey struct{}

// WithoutAuth marks the request context so the authorizing transport
// skips the bearer header. Used for login and step-up verification,
// whose authority comes from the request payload alone.
func WithoutAuth(ctx context.Context) context.Context {
	return context.WithValue(ctx, anonymousKey{}, true)
}

func isAnonymous(ctx context.Context) bool {
	v, _ := ctx.Value(anonymousKey{}).(bool)
	return v
}

// authTransport attaches the current credential to every outbound request
// as a bearer Authorization header, plus the client instance ID. It never
// mutates session state: classifying and reacting to a rejected
// credential belongs to the callers.
type authTransport struct {
	base     http.RoundTripper
	tokens   TokenSource
	clientID string
}

func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())

	req.Header.Set(common.ClientIDHeaderName, t.clientID)

	if !isAnonymous(req.Context()) {
		if token := t.tokens.Token(); token != "" {
			req.Header.Set(common.AuthorizationHeaderName, "Bearer "+token)
		}
	}

	return t.base.RoundTrip(req)
}
