package consent

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
)

// Schema creates the consent table. It is applied by EnsureSchema.
const Schema = `
CREATE TABLE IF NOT EXISTS user_consents (
	user_id         TEXT        NOT NULL,
	client_id       TEXT        NOT NULL,
	granted_roles   TEXT[]      NOT NULL DEFAULT '{}',
	granted_mappers TEXT[]      NOT NULL DEFAULT '{}',
	created_at      TIMESTAMPTZ NOT NULL,
	updated_at      TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (user_id, client_id)
)`

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var _ Store = (*PostgresStore)(nil)

// PostgresStore keeps consents in PostgreSQL. Grant is a single upsert, so concurrent grants
// for the same pair serialise on the row and grants for different pairs do not interact.
type PostgresStore struct {
	db   DBTX
	opts options
}

// Connect creates a connection pool and verifies it with a ping.
func Connect(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "[consent.Connect] parse database url")
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, errors.Wrap(err, "[consent.Connect] create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "[consent.Connect] ping")
	}
	return pool, nil
}

func NewPostgresStore(db DBTX, opts ...Option) *PostgresStore {
	return &PostgresStore{db: db, opts: applyOptions(opts)}
}

// EnsureSchema creates the consent table if it does not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return errors.Wrap(err, "[PostgresStore.EnsureSchema]")
	}
	return nil
}

func (s *PostgresStore) Grant(ctx context.Context, userID, clientID string, roles, mapperNames []string) (*Consent, error) {
	const query = `
		INSERT INTO user_consents (user_id, client_id, granted_roles, granted_mappers, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		ON CONFLICT (user_id, client_id) DO UPDATE
		SET granted_roles = EXCLUDED.granted_roles,
		    granted_mappers = EXCLUDED.granted_mappers,
		    updated_at = EXCLUDED.updated_at
		RETURNING user_id, client_id, granted_roles, granted_mappers, created_at, updated_at`

	c, err := scanConsent(s.db.QueryRow(ctx, query,
		userID, clientID, normalise(roles), normalise(mapperNames), s.opts.now().UTC()))
	if err != nil {
		return nil, errors.Wrap(err, "[PostgresStore.Grant]")
	}
	return c, nil
}

func (s *PostgresStore) Revoke(ctx context.Context, userID, clientID string) (bool, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM user_consents WHERE user_id = $1 AND client_id = $2`, userID, clientID)
	if err != nil {
		return false, errors.Wrap(err, "[PostgresStore.Revoke]")
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) Lookup(ctx context.Context, userID, clientID string) (*Consent, error) {
	const query = `
		SELECT user_id, client_id, granted_roles, granted_mappers, created_at, updated_at
		FROM user_consents WHERE user_id = $1 AND client_id = $2`

	c, err := scanConsent(s.db.QueryRow(ctx, query, userID, clientID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "[PostgresStore.Lookup]")
	}
	return c, nil
}

func (s *PostgresStore) List(ctx context.Context, userID string) ([]*Consent, error) {
	const query = `
		SELECT user_id, client_id, granted_roles, granted_mappers, created_at, updated_at
		FROM user_consents WHERE user_id = $1 ORDER BY client_id`

	rows, err := s.db.Query(ctx, query, userID)
	if err != nil {
		return nil, errors.Wrap(err, "[PostgresStore.List] query")
	}
	defer rows.Close()

	var list []*Consent
	for rows.Next() {
		c, err := scanConsent(rows)
		if err != nil {
			return nil, errors.Wrap(err, "[PostgresStore.List] scan")
		}
		list = append(list, c)
	}
	return list, errors.Wrap(rows.Err(), "[PostgresStore.List] rows")
}

func scanConsent(row pgx.Row) (*Consent, error) {
	var c Consent
	if err := row.Scan(&c.UserID, &c.ClientID, &c.GrantedRoles, &c.GrantedMappers, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}
