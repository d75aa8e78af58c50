package userrepofakes

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	apperrors "github.com/jrsteele09/go-token-exchange/internal/errors"
	"github.com/jrsteele09/go-token-exchange/users"
)

var _ users.Repo = (*FakeUserRepo)(nil)

type FakeUserRepo struct {
	users       map[string]*users.User // realm/id -> user
	usernameIDs map[string]string      // realm/username -> user id
	emailIDs    map[string]string      // realm/email -> user id
	lock        sync.RWMutex
}

func NewFakeUserRepo() *FakeUserRepo {
	return &FakeUserRepo{
		users:       make(map[string]*users.User),
		usernameIDs: make(map[string]string),
		emailIDs:    make(map[string]string),
	}
}

func key(realmID, s string) string {
	return realmID + "/" + strings.ToLower(s)
}

func (ur *FakeUserRepo) Upsert(user *users.User) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if user.DateJoined.IsZero() {
		user.DateJoined = time.Now()
	}
	if prev, ok := ur.users[key(user.RealmID, user.ID)]; ok {
		ur.unindex(prev)
	}
	ur.users[key(user.RealmID, user.ID)] = user.Clone()
	ur.usernameIDs[key(user.RealmID, user.Username)] = user.ID
	if user.Email != "" {
		ur.emailIDs[key(user.RealmID, user.Email)] = user.ID
	}
	return nil
}

func (ur *FakeUserRepo) unindex(u *users.User) {
	delete(ur.usernameIDs, key(u.RealmID, u.Username))
	if u.Email != "" {
		delete(ur.emailIDs, key(u.RealmID, u.Email))
	}
}

func (ur *FakeUserRepo) Delete(realmID, userID string) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	u, ok := ur.users[key(realmID, userID)]
	if !ok {
		return apperrors.ErrNotFound
	}
	ur.unindex(u)
	delete(ur.users, key(realmID, userID))
	return nil
}

func (ur *FakeUserRepo) GetByID(realmID, id string) (*users.User, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	u, ok := ur.users[key(realmID, id)]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return u.Clone(), nil
}

func (ur *FakeUserRepo) GetByUsername(realmID, username string) (*users.User, error) {
	return ur.byIndex(ur.usernameIDs, realmID, username)
}

func (ur *FakeUserRepo) GetByEmail(realmID, email string) (*users.User, error) {
	return ur.byIndex(ur.emailIDs, realmID, email)
}

func (ur *FakeUserRepo) byIndex(index map[string]string, realmID, s string) (*users.User, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	id, ok := index[key(realmID, s)]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return ur.users[key(realmID, id)].Clone(), nil
}

func (ur *FakeUserRepo) List(realmID string, offset, limit int) ([]*users.User, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	userList := make([]*users.User, 0)
	for _, v := range ur.users {
		if v.RealmID == realmID {
			userList = append(userList, v.Clone())
		}
	}
	sort.Slice(userList, func(i, j int) bool {
		return userList[i].Username < userList[j].Username
	})

	if offset >= len(userList) {
		return nil, nil
	}
	end := len(userList)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return userList[offset:end], nil
}

func (ur *FakeUserRepo) SetEnabled(realmID, userID string, enabled bool) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	u, ok := ur.users[key(realmID, userID)]
	if !ok {
		return apperrors.ErrNotFound
	}
	u.Enabled = enabled
	return nil
}
