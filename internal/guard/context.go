// internal/guard/context.go
//
// Request-context carry for the decided identity, so handlers behind the
// middleware can attribute work without re-verifying the credential.
//
// Usage
// -----
//     id, ok := guard.IdentityFrom(r.Context())

package guard

import (
	"context"

	"github.com/subvind/API-sub000/internal/token"
)

// identityKey is unexported to avoid context-key collisions.
type identityKey struct{}

// WithIdentity returns a new context carrying the verified identity.
func WithIdentity(ctx context.Context, id *token.Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFrom extracts the identity stored by the middleware.  It
// returns (nil, false) when no gate ran or the gate required nothing.
func IdentityFrom(ctx context.Context) (*token.Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(*token.Identity)
	return id, ok && id != nil
}
