package consent

import (
	"context"
	"slices"
	"strings"
	"sync"
)

var _ Store = (*MemoryStore)(nil)

// MemoryStore keeps consents in a sync.Map keyed by user and client. Stored values are never
// mutated, a grant swaps in a new value.
type MemoryStore struct {
	opts     options
	consents sync.Map // userID/clientID -> *Consent
}

func NewMemoryStore(opts ...Option) *MemoryStore {
	return &MemoryStore{opts: applyOptions(opts)}
}

func key(userID, clientID string) string {
	return userID + "/" + clientID
}

func (s *MemoryStore) Grant(_ context.Context, userID, clientID string, roles, mapperNames []string) (*Consent, error) {
	k := key(userID, clientID)
	for {
		now := s.opts.now()
		c := &Consent{
			UserID:         userID,
			ClientID:       clientID,
			GrantedRoles:   normalise(roles),
			GrantedMappers: normalise(mapperNames),
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		prev, ok := s.consents.Load(k)
		if !ok {
			if _, loaded := s.consents.LoadOrStore(k, c); !loaded {
				return copyConsent(c), nil
			}
			continue
		}
		c.CreatedAt = prev.(*Consent).CreatedAt
		if s.consents.CompareAndSwap(k, prev, c) {
			return copyConsent(c), nil
		}
	}
}

func (s *MemoryStore) Revoke(_ context.Context, userID, clientID string) (bool, error) {
	_, existed := s.consents.LoadAndDelete(key(userID, clientID))
	return existed, nil
}

func (s *MemoryStore) Lookup(_ context.Context, userID, clientID string) (*Consent, error) {
	v, ok := s.consents.Load(key(userID, clientID))
	if !ok {
		return nil, nil
	}
	return copyConsent(v.(*Consent)), nil
}

func (s *MemoryStore) List(_ context.Context, userID string) ([]*Consent, error) {
	prefix := userID + "/"
	var list []*Consent
	s.consents.Range(func(k, v any) bool {
		if strings.HasPrefix(k.(string), prefix) {
			list = append(list, copyConsent(v.(*Consent)))
		}
		return true
	})
	slices.SortFunc(list, func(a, b *Consent) int {
		return strings.Compare(a.ClientID, b.ClientID)
	})
	return list, nil
}

func copyConsent(c *Consent) *Consent {
	cp := *c
	cp.GrantedRoles = slices.Clone(c.GrantedRoles)
	cp.GrantedMappers = slices.Clone(c.GrantedMappers)
	return &cp
}
