// Package common contains shared constants, sentinel errors, and small
// helpers used across the JobPort client components.
package common

// AuthorizationHeaderName is the HTTP header that carries the bearer
// credential on outbound requests.
const AuthorizationHeaderName = "Authorization"

// ClientIDHeaderName is the HTTP header that carries the per-install
// client instance identifier on every outbound request.
const ClientIDHeaderName = "X-Client-Id"

// OneTimeCodeLength is the exact number of digits a TOTP code must have
// before it may be submitted.
const OneTimeCodeLength = 6
