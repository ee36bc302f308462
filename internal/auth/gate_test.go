package auth

import (
	"sync"
	"testing"
)

func TestGateLifecycle(t *testing.T) {
	g := NewGate()
	if g.IsAuthenticated() {
		t.Fatalf("expected signed out")
	}

	g.SignIn("user-1")
	if !g.IsAuthenticated() || g.CurrentUserID() != "user-1" {
		t.Fatalf("expected user-1 signed in")
	}

	g.SignIn("user-2")
	if g.CurrentUserID() != "user-2" {
		t.Fatalf("expected session replaced")
	}

	g.SignOut()
	if g.IsAuthenticated() || g.CurrentUserID() != "" {
		t.Fatalf("expected signed out")
	}
}

func TestGateConcurrentAccess(t *testing.T) {
	g := NewGate()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			g.SignIn("user-1")
			_ = g.CurrentUserID()
			g.SignOut()
		}()
	}
	wg.Wait()
}
