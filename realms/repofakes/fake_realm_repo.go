package realmrepofakes

import (
	"sort"
	"sync"

	"github.com/google/uuid"
	apperrors "github.com/jrsteele09/go-token-exchange/internal/errors"
	"github.com/jrsteele09/go-token-exchange/realms"
)

var _ realms.Repo = (*FakeRealmRepo)(nil)

// FakeRealmRepo keeps realms in memory. Stored and returned values are copies so that callers
// hold a stable snapshot.
type FakeRealmRepo struct {
	realms map[string]*realms.Realm
	lock   sync.RWMutex
}

func NewFakeRealmRepo() realms.Repo {
	return &FakeRealmRepo{
		realms: make(map[string]*realms.Realm),
	}
}

func (rr *FakeRealmRepo) Upsert(realm *realms.Realm) error {
	rr.lock.Lock()
	defer rr.lock.Unlock()
	if realm.ID == "" {
		realm.ID = uuid.New().String()
	}
	rr.realms[realm.ID] = realm.Clone()
	return nil
}

func (rr *FakeRealmRepo) Delete(realmID string) error {
	rr.lock.Lock()
	defer rr.lock.Unlock()
	delete(rr.realms, realmID)
	return nil
}

func (rr *FakeRealmRepo) Get(realmID string) (*realms.Realm, error) {
	rr.lock.RLock()
	defer rr.lock.RUnlock()
	realm, ok := rr.realms[realmID]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return realm.Clone(), nil
}

func (rr *FakeRealmRepo) List(offset, limit int) ([]*realms.Realm, error) {
	rr.lock.RLock()
	defer rr.lock.RUnlock()

	list := make([]*realms.Realm, 0, len(rr.realms))
	for _, v := range rr.realms {
		list = append(list, v.Clone())
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].ID < list[j].ID
	})
	return paginate(list, offset, limit), nil
}

func paginate[T any](list []T, offset, limit int) []T {
	if offset >= len(list) {
		return nil
	}
	end := len(list)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return list[offset:end]
}
