// Package cli provides the interactive JobPort command-line client.
//
// It wires configuration, local storage, the API client, and an interactive
// REPL around the session services. Typical flow: prompt for credentials
// (completing a second-factor challenge when the account demands one), start
// a background connectivity watcher, and execute user commands.
//
// Key features:
//   - Login with automatic TOTP step-up / Logout / Logout everywhere
//   - Two-factor enrollment wizard and disablement
//   - Cached subject inspection (whoami)
//   - Account deactivation
//
// The REPL is started via App.Root(ctx), which blocks until the user exits.
// See App and StartOnlineStatusWatcher for details.
package cli
