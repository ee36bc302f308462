package auth

import "sync"

// Gate tracks the currently signed-in user. Components that act on behalf of
// "the" user, like the sync engine, read it instead of threading a user id
// through every call.
type Gate struct {
	mu     sync.RWMutex
	userID string
}

func NewGate() *Gate {
	return &Gate{}
}

// SignIn records userID as the active session, replacing any previous one.
func (g *Gate) SignIn(userID string) {
	g.mu.Lock()
	g.userID = userID
	g.mu.Unlock()
}

// SignOut clears the active session.
func (g *Gate) SignOut() {
	g.mu.Lock()
	g.userID = ""
	g.mu.Unlock()
}

// CurrentUserID returns the active user id, or "" when signed out.
func (g *Gate) CurrentUserID() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.userID
}

func (g *Gate) IsAuthenticated() bool {
	return g.CurrentUserID() != ""
}
