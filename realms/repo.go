package realms

type Repo interface {
	Upsert(realm *Realm) error
	Delete(realmID string) error
	Get(realmID string) (*Realm, error)
	List(offset, limit int) ([]*Realm, error)
}
