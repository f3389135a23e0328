// Package session holds the client's proof of identity: the credential
// types and the process-wide Store that owns the current credential.
package session

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Subject is the identity snapshot bound to a credential, including the
// account security flags the client keeps in sync after any operation
// that changes them on the server.
type Subject struct {
	UserID           string `json:"user_id"`
	Email            string `json:"email"`
	Name             string `json:"name"`
	EmailVerified    bool   `json:"email_verified"`
	PhoneVerified    bool   `json:"phone_verified"`
	TwoFactorEnabled bool   `json:"two_factor_enabled"`
}

// Credential is the client-held proof of an authenticated session.
// The token itself is opaque to the client; ExpiresAt is a display hint
// decoded from the token, never used to pre-empt the server's decision.
type Credential struct {
	Token     string    `json:"token"`
	Subject   Subject   `json:"subject"`
	ExpiresAt time.Time `json:"expires_at,omitzero"`
}

// TempCredential is the limited-authority token issued mid-login when the
// server demands a second factor. It grants nothing beyond submitting a
// one-time code and is never persisted or held by the Store.
type TempCredential struct {
	Token string
}

// tokenClaims mirrors the claims the JobPort backend places in access
// tokens. The client only reads them; it never verifies the signature
// (the server stays authoritative for token validity).
type tokenClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
	Name  string `json:"name"`
}

// CredentialFromToken builds a Credential from a raw access token,
// filling the subject snapshot and expiry hint from the token's claims
// where possible. An unparsable token still yields a usable Credential
// carrying just the opaque token.
func CredentialFromToken(token string) *Credential {
	cred := &Credential{Token: token}

	claims := &tokenClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return cred
	}

	cred.Subject.UserID = claims.Subject
	cred.Subject.Email = claims.Email
	cred.Subject.Name = claims.Name
	if claims.ExpiresAt != nil {
		cred.ExpiresAt = claims.ExpiresAt.Time
	}
	return cred
}
