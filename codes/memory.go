package codes

import (
	"context"
	"sync"
)

var _ Store = (*MemoryStore)(nil)

// MemoryStore keeps codes in process. State transitions happen under a single mutex, so
// concurrent consumers of the same code see exactly one success.
type MemoryStore struct {
	opts  options
	lock  sync.Mutex
	codes map[string]*Code
}

func NewMemoryStore(opts ...Option) *MemoryStore {
	return &MemoryStore{
		opts:  applyOptions(opts),
		codes: make(map[string]*Code),
	}
}

func (s *MemoryStore) Issue(_ context.Context, req IssueRequest) (*Code, error) {
	code, err := newCode(req, s.opts.now())
	if err != nil {
		return nil, err
	}
	s.lock.Lock()
	defer s.lock.Unlock()
	s.codes[code.ID] = code
	cp := *code
	return &cp, nil
}

func (s *MemoryStore) Consume(_ context.Context, codeID, clientID, redirectURI string) (*Code, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	code, ok := s.codes[codeID]
	if !ok || code.State != StateIssued {
		return nil, ErrInvalidCode
	}
	state, err := check(code, clientID, redirectURI, s.opts.now())
	code.State = state
	cp := *code
	return &cp, err
}

func (s *MemoryStore) Sweep(_ context.Context) (int, error) {
	now := s.opts.now()
	s.lock.Lock()
	defer s.lock.Unlock()

	removed := 0
	for id, code := range s.codes {
		if code.State != StateIssued || !now.Before(code.ExpiresAt) {
			delete(s.codes, id)
			removed++
		}
	}
	return removed, nil
}
