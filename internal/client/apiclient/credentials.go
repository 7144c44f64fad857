package apiclient

import "sync"

// Credentials holds the signed-in shopper for a client session. The zero
// value is a guest.
type Credentials struct {
	mu     sync.RWMutex
	userID string
	token  string
}

func NewCredentials(userID, token string) *Credentials {
	return &Credentials{userID: userID, token: token}
}

func (c *Credentials) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *Credentials) IsAuthenticated() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token != ""
}

// CurrentUser returns the signed-in user id, or "" for a guest.
func (c *Credentials) CurrentUser() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.userID
}

func (c *Credentials) Login(userID, token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.userID, c.token = userID, token
}

func (c *Credentials) Logout() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.userID, c.token = "", ""
}
