package token

import (
	"sync"
	"time"
)

// RevocationList holds token ids that must be refused before their own expiry,
// such as refresh tokens that have already been rotated.
type RevocationList interface {
	Add(jti string, exp time.Time) error
	IsRevoked(jti string) bool
	// Prune forgets ids whose expiry is before now and reports how many went.
	Prune(now time.Time) int
}

type memoryRevocations struct {
	mu     sync.RWMutex
	expiry map[string]time.Time
}

// NewMemoryRevocations keeps revoked ids in process memory.
func NewMemoryRevocations() RevocationList {
	return &memoryRevocations{expiry: map[string]time.Time{}}
}

func (l *memoryRevocations) Add(jti string, exp time.Time) error {
	l.mu.Lock()
	l.expiry[jti] = exp
	l.mu.Unlock()
	return nil
}

func (l *memoryRevocations) IsRevoked(jti string) bool {
	l.mu.RLock()
	_, ok := l.expiry[jti]
	l.mu.RUnlock()
	return ok
}

func (l *memoryRevocations) Prune(now time.Time) (pruned int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for jti, exp := range l.expiry {
		if exp.Before(now) {
			delete(l.expiry, jti)
			pruned++
		}
	}
	return pruned
}
