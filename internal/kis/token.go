package kis

import (
	"time"

	"stockwatch/internal/store"
)

const (
	tokenKey  = "kis_token"
	expiryKey = "kis_expiry"

	// A token this close to expiry is treated as already expired so an
	// in-flight request never crosses the boundary.
	expiryMargin = 10 * time.Minute
)

// Token is an opaque bearer credential with an absolute expiry. Tokens are
// never mutated in place, only replaced wholesale.
type Token struct {
	Access string
	Expiry time.Time
}

func (t Token) Valid(now time.Time) bool {
	return t.Access != "" && now.Add(expiryMargin).Before(t.Expiry)
}

// TokenStore persists the token across restarts through the settings store.
type TokenStore struct {
	settings *store.Settings
}

func NewTokenStore(s *store.Settings) *TokenStore {
	return &TokenStore{settings: s}
}

// Load returns the persisted token and whether it is still usable. A
// missing token or one inside the expiry margin reports ok=false.
func (ts *TokenStore) Load(now time.Time) (Token, bool) {
	access, ok := ts.settings.GetString(tokenKey)
	if !ok {
		return Token{}, false
	}
	expiry, ok := ts.settings.GetTime(expiryKey)
	if !ok {
		return Token{}, false
	}
	t := Token{Access: access, Expiry: expiry}
	if !t.Valid(now) {
		return Token{}, false
	}
	return t, true
}

// Save persists the token immediately.
func (ts *TokenStore) Save(t Token) error {
	ts.settings.SetString(tokenKey, t.Access)
	ts.settings.SetTime(expiryKey, t.Expiry)
	return ts.settings.Save()
}
