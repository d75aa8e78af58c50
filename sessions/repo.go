package sessions

import "time"

// Repo defines the interface for user session storage.
// Expired sessions should be cleaned up regularly with DeleteExpired.
type Repo interface {
	// Create stores a new session, assigning an ID if it has none
	Create(session *UserSession) error

	// Get retrieves a session by realm and ID
	Get(realmID, sessionID string) (*UserSession, error)

	// Touch sets the last refresh time of a session
	Touch(realmID, sessionID string, at time.Time) error

	// AddClient records that a client obtained tokens through the session
	AddClient(realmID, sessionID, clientID string) error

	// Delete removes a session
	Delete(realmID, sessionID string) error

	// DeleteByUserAndClient removes the user's sessions that clientID took part in and returns how many
	DeleteByUserAndClient(realmID, userID, clientID string) (int, error)

	// DeleteExpired removes sessions that are expired at now and returns how many
	DeleteExpired(now time.Time) (int, error)
}
