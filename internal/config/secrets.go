// internal/config/secrets.go
//
// Post-unmarshal secret resolution.
//
// The loader leaves `vault:` URIs in place; main constructs the Vault
// client only when at least one such URI is present, then calls
// ResolveSecrets to splice plain values back into the cached Config.

package config

import (
	"context"

	"github.com/subvind/API-sub000/internal/vault"
)

// SecretResolver is satisfied by *vault.Client.
type SecretResolver interface {
	Resolve(ctx context.Context, v string) (string, error)
}

// NeedsVault reports whether any config value carries a `vault:` URI.
func NeedsVault(c *Config) bool {
	return vault.IsURI(c.Database.Password) || vault.IsURI(c.Token.Secret)
}

// ResolveSecrets replaces every `vault:` URI in c with its secret value.
// Plain values pass through untouched.
func ResolveSecrets(ctx context.Context, c *Config, r SecretResolver) error {
	pw, err := r.Resolve(ctx, c.Database.Password)
	if err != nil {
		return err
	}
	c.Database.Password = pw

	sec, err := r.Resolve(ctx, c.Token.Secret)
	if err != nil {
		return err
	}
	c.Token.Secret = sec
	return nil
}
