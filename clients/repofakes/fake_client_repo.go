package clientrepofakes

import (
	"sort"
	"sync"

	"github.com/jrsteele09/go-token-exchange/clients"
	apperrors "github.com/jrsteele09/go-token-exchange/internal/errors"
	"github.com/pkg/errors"
)

var _ clients.Repo = (*FakeClientRepo)(nil)

type FakeClientRepo struct {
	clients map[string]*clients.Client // realm/clientId -> client
	lock    sync.RWMutex
}

func NewFakeClientRepo() *FakeClientRepo {
	return &FakeClientRepo{
		clients: make(map[string]*clients.Client),
	}
}

func key(realmID, id string) string {
	return realmID + "/" + id
}

func (r *FakeClientRepo) Upsert(client *clients.Client) error {
	if client.RealmID == "" || client.ClientID == "" {
		return errors.New("[FakeClientRepo.Upsert] realm and client id are required")
	}
	r.lock.Lock()
	defer r.lock.Unlock()
	r.clients[key(client.RealmID, client.ClientID)] = client.Clone()
	return nil
}

func (r *FakeClientRepo) Delete(realmID, clientID string) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	delete(r.clients, key(realmID, clientID))
	return nil
}

func (r *FakeClientRepo) Get(realmID, clientID string) (*clients.Client, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	client, ok := r.clients[key(realmID, clientID)]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return client.Clone(), nil
}

func (r *FakeClientRepo) List(realmID string, offset, limit int) ([]*clients.Client, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	list := make([]*clients.Client, 0)
	for _, v := range r.clients {
		if v.RealmID == realmID {
			list = append(list, v.Clone())
		}
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].ClientID < list[j].ClientID
	})

	if offset >= len(list) {
		return nil, nil
	}
	end := len(list)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return list[offset:end], nil
}

var _ clients.TemplateRepo = (*FakeTemplateRepo)(nil)

type FakeTemplateRepo struct {
	templates map[string]*clients.Template
	lock      sync.RWMutex
}

func NewFakeTemplateRepo() *FakeTemplateRepo {
	return &FakeTemplateRepo{
		templates: make(map[string]*clients.Template),
	}
}

func (r *FakeTemplateRepo) Upsert(template *clients.Template) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.templates[key(template.RealmID, template.Name)] = template.Clone()
	return nil
}

func (r *FakeTemplateRepo) Delete(realmID, name string) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	delete(r.templates, key(realmID, name))
	return nil
}

func (r *FakeTemplateRepo) Get(realmID, name string) (*clients.Template, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	t, ok := r.templates[key(realmID, name)]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return t.Clone(), nil
}
