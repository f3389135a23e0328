// Package api contains the client-side boundary to the JobPort backend.
//
// # Overview
//
// The package provides:
//  1. A transport-agnostic API contract (see the Client interface):
//     primary login, step-up verification, 2FA enrollment/activation/
//     disablement, session revocation, profile, deactivation, and a
//     liveness probe.
//  2. A concrete JSON-over-HTTP implementation (see HTTPClient) whose
//     transport attaches the current bearer credential to every
//     authenticated request and classifies failures uniformly.
//
// # Authorization
//
// The authorizing transport reads the token from a TokenSource on each
// request. Login and step-up verification are issued through WithoutAuth
// so a leftover credential from a previous session can never upgrade
// them. The transport surfaces a rejected credential as
// common.ErrUnauthorized and never clears session state itself; forced
// logout is a business-logic decision made by the callers.
//
// # Error Handling
//
// Conditions are exposed for errors.Is/errors.As matching:
// common.ErrUnavailable, common.ErrUnauthorized,
// common.ErrInvalidCredentials, common.ErrInvalidOneTimeCode, and
// *common.ServerRejectedError. A required second factor is not an error;
// see LoginResult.TwoFactorRequired.
package api
