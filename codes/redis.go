package codes

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// Default timeouts for Redis operations.
const (
	DefaultDialTimeout  = 5 * time.Second
	DefaultReadTimeout  = 3 * time.Second
	DefaultWriteTimeout = 3 * time.Second
)

// expiredGrace keeps a code in Redis past its expiry so that a late exchange is reported
// as expired rather than unknown.
const expiredGrace = time.Minute

// RedisConfig holds the connection settings of the Redis code store.
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

var _ Store = (*RedisStore)(nil)

// RedisStore keeps codes in Redis so that any instance can redeem a code issued by another.
// Consume uses GETDEL, which makes the read and the removal a single atomic step.
type RedisStore struct {
	client    redis.UniversalClient
	keyPrefix string
	opts      options
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(ctx context.Context, cfg RedisConfig, opts ...Option) (*RedisStore, error) {
	if cfg.Addr == "" {
		return nil, errors.New("[codes.NewRedisStore] redis address is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  DefaultDialTimeout,
		ReadTimeout:  DefaultReadTimeout,
		WriteTimeout: DefaultWriteTimeout,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "[codes.NewRedisStore] ping")
	}
	return NewRedisStoreWithClient(client, cfg.KeyPrefix, opts...), nil
}

// NewRedisStoreWithClient creates a RedisStore with a pre-configured client.
// This is useful for testing with miniredis.
func NewRedisStoreWithClient(client redis.UniversalClient, keyPrefix string, opts ...Option) *RedisStore {
	if keyPrefix == "" {
		keyPrefix = "codes:"
	}
	return &RedisStore{
		client:    client,
		keyPrefix: keyPrefix,
		opts:      applyOptions(opts),
	}
}

// Close closes the Redis client connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping checks Redis connectivity (health check).
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) key(codeID string) string {
	return s.keyPrefix + codeID
}

func (s *RedisStore) Issue(ctx context.Context, req IssueRequest) (*Code, error) {
	code, err := newCode(req, s.opts.now())
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(code)
	if err != nil {
		return nil, errors.Wrap(err, "[RedisStore.Issue] marshal")
	}
	if err := s.client.Set(ctx, s.key(code.ID), data, req.Lifespan+expiredGrace).Err(); err != nil {
		return nil, errors.Wrap(err, "[RedisStore.Issue] set")
	}
	return code, nil
}

func (s *RedisStore) Consume(ctx context.Context, codeID, clientID, redirectURI string) (*Code, error) {
	if codeID == "" {
		return nil, ErrInvalidCode
	}
	data, err := s.client.GetDel(ctx, s.key(codeID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrInvalidCode
		}
		return nil, errors.Wrap(err, "[RedisStore.Consume] getdel")
	}

	var code Code
	if err := json.Unmarshal(data, &code); err != nil {
		return nil, errors.Wrap(err, "[RedisStore.Consume] unmarshal")
	}
	if code.State != StateIssued {
		return nil, ErrInvalidCode
	}
	state, err := check(&code, clientID, redirectURI, s.opts.now())
	code.State = state
	return &code, err
}

// Sweep is a no-op: Redis expires codes itself and consumed codes are deleted on read.
func (s *RedisStore) Sweep(_ context.Context) (int, error) {
	return 0, nil
}
