// Package localstate persists small client-local values (instance ID,
// device secret, sealed credential) in a key/value table so they survive
// client restarts. The table is scoped to one client install.
package localstate

import "context"

// Well-known keys.
const (
	KeyClientID     = "client_id"
	KeyDeviceSecret = "device_secret"
	KeyDeviceSalt   = "device_salt"
	KeyCredential   = "credential"
)

// Repository is a tiny key/value store. Get returns nil (no error) for a
// missing key.
type Repository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
}
