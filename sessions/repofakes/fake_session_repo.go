package sessionrepofakes

import (
	"sync"
	"time"

	"github.com/google/uuid"
	apperrors "github.com/jrsteele09/go-token-exchange/internal/errors"
	"github.com/jrsteele09/go-token-exchange/sessions"
)

var _ sessions.Repo = (*FakeSessionRepo)(nil)

type FakeSessionRepo struct {
	sessions map[string]*sessions.UserSession // realm/id -> session
	lock     sync.RWMutex
}

func NewFakeSessionRepo() *FakeSessionRepo {
	return &FakeSessionRepo{
		sessions: make(map[string]*sessions.UserSession),
	}
}

func key(realmID, id string) string {
	return realmID + "/" + id
}

func (sr *FakeSessionRepo) Create(session *sessions.UserSession) error {
	sr.lock.Lock()
	defer sr.lock.Unlock()

	if session.ID == "" {
		session.ID = uuid.New().String()
	}
	sr.sessions[key(session.RealmID, session.ID)] = session.Clone()
	return nil
}

func (sr *FakeSessionRepo) Get(realmID, sessionID string) (*sessions.UserSession, error) {
	sr.lock.RLock()
	defer sr.lock.RUnlock()

	session, ok := sr.sessions[key(realmID, sessionID)]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return session.Clone(), nil
}

func (sr *FakeSessionRepo) Touch(realmID, sessionID string, at time.Time) error {
	sr.lock.Lock()
	defer sr.lock.Unlock()

	session, ok := sr.sessions[key(realmID, sessionID)]
	if !ok {
		return apperrors.ErrNotFound
	}
	session.LastRefresh = at
	return nil
}

func (sr *FakeSessionRepo) AddClient(realmID, sessionID, clientID string) error {
	sr.lock.Lock()
	defer sr.lock.Unlock()

	session, ok := sr.sessions[key(realmID, sessionID)]
	if !ok {
		return apperrors.ErrNotFound
	}
	if !session.HasClient(clientID) {
		session.Clients = append(session.Clients, clientID)
	}
	return nil
}

func (sr *FakeSessionRepo) Delete(realmID, sessionID string) error {
	sr.lock.Lock()
	defer sr.lock.Unlock()

	if _, ok := sr.sessions[key(realmID, sessionID)]; !ok {
		return apperrors.ErrNotFound
	}
	delete(sr.sessions, key(realmID, sessionID))
	return nil
}

func (sr *FakeSessionRepo) DeleteByUserAndClient(realmID, userID, clientID string) (int, error) {
	sr.lock.Lock()
	defer sr.lock.Unlock()

	removed := 0
	for k, session := range sr.sessions {
		if session.RealmID == realmID && session.UserID == userID && session.HasClient(clientID) {
			delete(sr.sessions, k)
			removed++
		}
	}
	return removed, nil
}

func (sr *FakeSessionRepo) DeleteExpired(now time.Time) (int, error) {
	sr.lock.Lock()
	defer sr.lock.Unlock()

	removed := 0
	for k, session := range sr.sessions {
		if session.Expired(now) {
			delete(sr.sessions, k)
			removed++
		}
	}
	return removed, nil
}
