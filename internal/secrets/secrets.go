// Package secrets resolves stored credential references into usable
// secrets. The default resolver treats the stored value as the secret
// itself; deployments with a vault can plug in their own.
package secrets

import "context"

type Resolver interface {
	Resolve(ctx context.Context, ref string) (string, error)
}

// Plaintext passes the stored value through unchanged.
type Plaintext struct{}

func (Plaintext) Resolve(_ context.Context, ref string) (string, error) {
	return ref, nil
}
