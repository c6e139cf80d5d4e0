// Package authority resolves opaque bearer credentials to principals and
// answers namespace-ownership questions. It replaces the fixed API-key table
// of earlier deployments with a pluggable store behind the Authority
// contract, so the registry core never sees the lookup mechanism.
package authority

import (
	"context"
	"errors"
	"slices"
)

// ErrInvalidCredential is returned by Resolve when a credential is present
// but unrecognized, revoked or expired.
var ErrInvalidCredential = errors.New("invalid or revoked credential")

// Principal is a resolved caller. The zero value is nobody; Anonymous marks
// the null principal used for unauthenticated reads.
type Principal struct {
	UserID     string
	Anonymous  bool
	Namespaces []string
	Scopes     []string
}

// Owns reports whether the principal owns namespace.
func (p *Principal) Owns(namespace string) bool {
	if p == nil || p.Anonymous {
		return false
	}
	return slices.Contains(p.Namespaces, namespace)
}

// HasScope reports whether the principal's credential carries scope.
func (p *Principal) HasScope(scope string) bool {
	if p == nil {
		return false
	}
	return slices.Contains(p.Scopes, scope)
}

// Anon is the null principal for credential-less reads.
func Anon() *Principal {
	return &Principal{Anonymous: true}
}

// Authority maps credentials to principals and checks namespace ownership.
type Authority interface {
	// Resolve maps a credential to a principal. An empty credential is
	// valid and resolves to the anonymous principal. A present but
	// unrecognized, revoked or expired credential fails with
	// ErrInvalidCredential.
	Resolve(ctx context.Context, credential string) (*Principal, error)

	// Authorize reports whether principal may write to namespace.
	Authorize(principal *Principal, namespace string) bool
}
