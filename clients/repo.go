package clients

type Repo interface {
	Upsert(client *Client) error
	Delete(realmID, clientID string) error
	Get(realmID, clientID string) (*Client, error)
	List(realmID string, offset, limit int) ([]*Client, error)
}

type TemplateRepo interface {
	Upsert(template *Template) error
	Delete(realmID, name string) error
	Get(realmID, name string) (*Template, error)
}
