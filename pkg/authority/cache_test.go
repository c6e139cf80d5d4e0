package authority

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

// countingAuthority counts Resolve calls and returns a canned result.
type countingAuthority struct {
	resolves  atomic.Int64
	principal *Principal
	err       error
}

func (c *countingAuthority) Resolve(_ context.Context, credential string) (*Principal, error) {
	c.resolves.Add(1)
	if credential == "" {
		return Anon(), nil
	}
	if c.err != nil {
		return nil, c.err
	}
	return c.principal, nil
}

func (c *countingAuthority) Authorize(principal *Principal, namespace string) bool {
	return principal.Owns(namespace) && principal.HasScope("write")
}

func TestCachedAuthority_HitAvoidsInnerResolve(t *testing.T) {
	inner := &countingAuthority{principal: &Principal{UserID: "u1", Namespaces: []string{"@alice"}}}
	cached := NewCachedAuthority(inner, time.Minute)

	for i := 0; i < 5; i++ {
		p, err := cached.Resolve(context.Background(), "gp_live_abc")
		if err != nil {
			t.Fatalf("resolve: %v", err)
		}
		if p.UserID != "u1" {
			t.Fatalf("got user %q, want u1", p.UserID)
		}
	}
	if got := inner.resolves.Load(); got != 1 {
		t.Fatalf("inner resolved %d times, want 1", got)
	}
}

func TestCachedAuthority_ExpiryReResolves(t *testing.T) {
	inner := &countingAuthority{principal: &Principal{UserID: "u1"}}
	cached := NewCachedAuthority(inner, 10*time.Millisecond)

	if _, err := cached.Resolve(context.Background(), "gp_live_abc"); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	if _, err := cached.Resolve(context.Background(), "gp_live_abc"); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got := inner.resolves.Load(); got != 2 {
		t.Fatalf("inner resolved %d times, want 2", got)
	}
}

func TestCachedAuthority_ErrorsNotCached(t *testing.T) {
	inner := &countingAuthority{err: ErrInvalidCredential}
	cached := NewCachedAuthority(inner, time.Minute)

	for i := 0; i < 3; i++ {
		if _, err := cached.Resolve(context.Background(), "gp_live_bad"); err == nil {
			t.Fatal("expected error")
		}
	}
	if got := inner.resolves.Load(); got != 3 {
		t.Fatalf("inner resolved %d times, want 3", got)
	}
}

func TestCachedAuthority_EmptyCredentialBypassesCache(t *testing.T) {
	inner := &countingAuthority{}
	cached := NewCachedAuthority(inner, time.Minute)

	for i := 0; i < 2; i++ {
		p, err := cached.Resolve(context.Background(), "")
		if err != nil {
			t.Fatalf("resolve: %v", err)
		}
		if !p.Anonymous {
			t.Fatal("expected anonymous principal")
		}
	}
	if got := inner.resolves.Load(); got != 2 {
		t.Fatalf("inner resolved %d times, want 2", got)
	}
}

func TestCachedAuthority_Invalidate(t *testing.T) {
	inner := &countingAuthority{principal: &Principal{UserID: "u1"}}
	cached := NewCachedAuthority(inner, time.Minute)

	if _, err := cached.Resolve(context.Background(), "gp_live_abc"); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	cached.Invalidate("gp_live_abc")
	if _, err := cached.Resolve(context.Background(), "gp_live_abc"); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got := inner.resolves.Load(); got != 2 {
		t.Fatalf("inner resolved %d times, want 2", got)
	}
}
