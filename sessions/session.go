package sessions

import (
	"slices"
	"time"
)

// Session notes
const (
	NoteRememberMe = "remember_me"
	NoteLoginHint  = "login_hint"
	NoteAuthMethod = "auth_method"
)

// UserSession is an authenticated SSO session. It outlives individual tokens and is bounded by
// the realm's idle timeout and max lifespan, which are captured when the session starts.
type UserSession struct {
	ID          string            // Unique session identifier (UUID), the session_state of tokens
	RealmID     string            // Realm this session belongs to
	UserID      string            // Authenticated user
	Username    string            // Username at login time
	IPAddress   string            // Remote address the session was started from
	Clients     []string          // Clients that obtained tokens through this session
	Started     time.Time         // When the user authenticated
	LastRefresh time.Time         // Last time a token was issued or refreshed
	IdleTimeout time.Duration     // Realm SSO idle timeout at start
	MaxLifespan time.Duration     // Realm SSO max lifespan at start
	Notes       map[string]string // remember-me, login hint and similar
}

// Expired reports whether the session is past its idle timeout or max lifespan.
func (s *UserSession) Expired(now time.Time) bool {
	if s.IdleTimeout > 0 && now.Sub(s.LastRefresh) > s.IdleTimeout {
		return true
	}
	return s.MaxLifespan > 0 && now.Sub(s.Started) > s.MaxLifespan
}

// RefreshExpiry is when a refresh token issued now stops being usable: the earlier of the
// idle deadline and the max lifespan deadline.
func (s *UserSession) RefreshExpiry(now time.Time) time.Time {
	idle := now.Add(s.IdleTimeout)
	hardStop := s.Started.Add(s.MaxLifespan)
	if s.MaxLifespan > 0 && hardStop.Before(idle) {
		return hardStop
	}
	return idle
}

// HasClient reports whether clientID obtained tokens through this session.
func (s *UserSession) HasClient(clientID string) bool {
	return slices.Contains(s.Clients, clientID)
}

func (s *UserSession) Clone() *UserSession {
	c := *s
	c.Clients = slices.Clone(s.Clients)
	if s.Notes != nil {
		c.Notes = make(map[string]string, len(s.Notes))
		for k, v := range s.Notes {
			c.Notes[k] = v
		}
	}
	return &c
}
