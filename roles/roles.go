package roles

import (
	"sort"
	"strings"
)

type nullValue = struct{}

type names map[string]nullValue

// Set holds realm roles and per-client (resource access) roles.
// The zero value is an empty, ready to use set once initialised by New.
type Set struct {
	realm    names
	resource map[string]names
}

// New returns an empty role set
func New() *Set {
	return &Set{
		realm:    make(names),
		resource: make(map[string]names),
	}
}

// FromLists builds a set from realm role names and a map of client id to client role names.
func FromLists(realmRoles []string, clientRoles map[string][]string) *Set {
	s := New()
	for _, r := range realmRoles {
		s.AddRealm(r)
	}
	for clientID, rs := range clientRoles {
		for _, r := range rs {
			s.AddClient(clientID, r)
		}
	}
	return s
}

// Qualify joins a client id and role name as "<clientId>.<role>". An empty client id
// yields the bare realm role name.
func Qualify(clientID, role string) string {
	if clientID == "" {
		return role
	}
	return clientID + "." + role
}

// Parse splits a qualified role name. A name without a dot is a realm role.
// Client ids may contain dots, so the split happens on the last one.
func Parse(qualified string) (clientID, role string) {
	i := strings.LastIndex(qualified, ".")
	if i < 0 {
		return "", qualified
	}
	return qualified[:i], qualified[i+1:]
}

func (s *Set) AddRealm(role string) {
	if role == "" {
		return
	}
	s.realm[role] = nullValue{}
}

func (s *Set) AddClient(clientID, role string) {
	if role == "" {
		return
	}
	if clientID == "" {
		s.AddRealm(role)
		return
	}
	rs, ok := s.resource[clientID]
	if !ok {
		rs = make(names)
		s.resource[clientID] = rs
	}
	rs[role] = nullValue{}
}

// Add adds a qualified role name, see Parse.
func (s *Set) Add(qualified string) {
	s.AddClient(Parse(qualified))
}

func (s *Set) HasRealm(role string) bool {
	_, ok := s.realm[role]
	return ok
}

func (s *Set) HasClient(clientID, role string) bool {
	if clientID == "" {
		return s.HasRealm(role)
	}
	_, ok := s.resource[clientID][role]
	return ok
}

// Has reports whether a qualified role name is in the set.
func (s *Set) Has(qualified string) bool {
	return s.HasClient(Parse(qualified))
}

func (s *Set) RemoveRealm(role string) {
	delete(s.realm, role)
}

func (s *Set) RemoveClient(clientID, role string) {
	if clientID == "" {
		s.RemoveRealm(role)
		return
	}
	rs, ok := s.resource[clientID]
	if !ok {
		return
	}
	delete(rs, role)
	if len(rs) == 0 {
		delete(s.resource, clientID)
	}
}

// Remove removes a qualified role name, see Parse.
func (s *Set) Remove(qualified string) {
	s.RemoveClient(Parse(qualified))
}

// Each calls fn for every role; realm roles are reported with an empty client id.
func (s *Set) Each(fn func(clientID, role string)) {
	for r := range s.realm {
		fn("", r)
	}
	for clientID, rs := range s.resource {
		for r := range rs {
			fn(clientID, r)
		}
	}
}

// Filter returns the roles for which keep returns true.
func (s *Set) Filter(keep func(clientID, role string) bool) *Set {
	out := New()
	s.Each(func(clientID, role string) {
		if keep(clientID, role) {
			out.AddClient(clientID, role)
		}
	})
	return out
}

// Intersect returns the roles present in both s and other.
func (s *Set) Intersect(other *Set) *Set {
	return s.Filter(other.HasClient)
}

// Union returns a new set holding every role of s and other.
func (s *Set) Union(other *Set) *Set {
	out := s.Clone()
	if other != nil {
		other.Each(out.AddClient)
	}
	return out
}

func (s *Set) Clone() *Set {
	return s.Filter(func(string, string) bool { return true })
}

func (s *Set) Len() int {
	n := len(s.realm)
	for _, rs := range s.resource {
		n += len(rs)
	}
	return n
}

func (s *Set) IsEmpty() bool {
	return s.Len() == 0
}

// RealmRoles returns the sorted realm role names
func (s *Set) RealmRoles() []string {
	return sortedKeys(s.realm)
}

// ClientRoles returns the sorted role names for one client
func (s *Set) ClientRoles(clientID string) []string {
	return sortedKeys(s.resource[clientID])
}

// Clients returns the sorted ids of clients with at least one role
func (s *Set) Clients() []string {
	ids := make([]string, 0, len(s.resource))
	for id := range s.resource {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Qualified returns every role as a sorted qualified name.
func (s *Set) Qualified() []string {
	out := make([]string, 0, s.Len())
	s.Each(func(clientID, role string) {
		out = append(out, Qualify(clientID, role))
	})
	sort.Strings(out)
	return out
}

func sortedKeys(n names) []string {
	out := make([]string, 0, len(n))
	for k := range n {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
