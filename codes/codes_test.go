package codes_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jrsteele09/go-token-exchange/codes"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type clock struct {
	lock sync.Mutex
	now  time.Time
}

func (c *clock) Now() time.Time {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.now = c.now.Add(d)
}

type storeFactory func(t *testing.T, clk *clock) codes.Store

func stores() map[string]storeFactory {
	return map[string]storeFactory{
		"memory": func(t *testing.T, clk *clock) codes.Store {
			return codes.NewMemoryStore(codes.WithNowFunc(clk.Now))
		},
		"redis": func(t *testing.T, clk *clock) codes.Store {
			mr := miniredis.RunT(t)
			client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
			t.Cleanup(func() { _ = client.Close() })
			return codes.NewRedisStoreWithClient(client, "test:codes:", codes.WithNowFunc(clk.Now))
		},
	}
}

func issueRequest() codes.IssueRequest {
	return codes.IssueRequest{
		SessionID:   "session-1",
		UserID:      "user-1",
		RealmID:     "test",
		ClientID:    "test-app",
		RedirectURI: "http://localhost:8180/app/auth",
		Scope:       "openid",
		Lifespan:    time.Minute,
	}
}

func forEachStore(t *testing.T, fn func(t *testing.T, store codes.Store, clk *clock)) {
	for name, factory := range stores() {
		t.Run(name, func(t *testing.T) {
			clk := &clock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
			fn(t, factory(t, clk), clk)
		})
	}
}

func TestStore_ConsumeOnce(t *testing.T) {
	forEachStore(t, func(t *testing.T, store codes.Store, clk *clock) {
		ctx := context.Background()
		req := issueRequest()
		code, err := store.Issue(ctx, req)
		require.NoError(t, err)
		require.Len(t, code.ID, 43)
		require.Equal(t, codes.StateIssued, code.State)

		consumed, err := store.Consume(ctx, code.ID, req.ClientID, req.RedirectURI)
		require.NoError(t, err)
		require.Equal(t, codes.StateConsumed, consumed.State)
		require.Equal(t, "session-1", consumed.SessionID)
		require.Equal(t, "openid", consumed.Scope)

		_, err = store.Consume(ctx, code.ID, req.ClientID, req.RedirectURI)
		require.ErrorIs(t, err, codes.ErrInvalidCode)
	})
}

func TestStore_UnknownCode(t *testing.T) {
	forEachStore(t, func(t *testing.T, store codes.Store, clk *clock) {
		_, err := store.Consume(context.Background(), "no-such-code", "test-app", "http://localhost")
		require.ErrorIs(t, err, codes.ErrInvalidCode)

		_, err = store.Consume(context.Background(), "", "test-app", "http://localhost")
		require.ErrorIs(t, err, codes.ErrInvalidCode)
	})
}

func TestStore_RedirectMismatchBurnsCode(t *testing.T) {
	forEachStore(t, func(t *testing.T, store codes.Store, clk *clock) {
		ctx := context.Background()
		req := issueRequest()
		code, err := store.Issue(ctx, req)
		require.NoError(t, err)

		burned, err := store.Consume(ctx, code.ID, req.ClientID, "http://evil.example.com")
		require.ErrorIs(t, err, codes.ErrRedirectMismatch)
		require.ErrorIs(t, err, codes.ErrInvalidCode)
		require.Equal(t, codes.StateInvalidRedirect, burned.State)
		require.Equal(t, req.SessionID, burned.SessionID)

		// a retry with the right redirect must still fail
		_, err = store.Consume(ctx, code.ID, req.ClientID, req.RedirectURI)
		require.ErrorIs(t, err, codes.ErrInvalidCode)
		require.NotErrorIs(t, err, codes.ErrRedirectMismatch)
	})
}

func TestStore_ClientMismatchBurnsCode(t *testing.T) {
	forEachStore(t, func(t *testing.T, store codes.Store, clk *clock) {
		ctx := context.Background()
		req := issueRequest()
		code, err := store.Issue(ctx, req)
		require.NoError(t, err)

		_, err = store.Consume(ctx, code.ID, "other-app", req.RedirectURI)
		require.ErrorIs(t, err, codes.ErrClientMismatch)

		_, err = store.Consume(ctx, code.ID, req.ClientID, req.RedirectURI)
		require.ErrorIs(t, err, codes.ErrInvalidCode)
	})
}

func TestStore_Expired(t *testing.T) {
	forEachStore(t, func(t *testing.T, store codes.Store, clk *clock) {
		ctx := context.Background()
		req := issueRequest()
		code, err := store.Issue(ctx, req)
		require.NoError(t, err)

		clk.Advance(req.Lifespan + time.Second)
		_, err = store.Consume(ctx, code.ID, req.ClientID, req.RedirectURI)
		require.ErrorIs(t, err, codes.ErrCodeExpired)
	})
}

func TestStore_ConcurrentConsume(t *testing.T) {
	forEachStore(t, func(t *testing.T, store codes.Store, clk *clock) {
		ctx := context.Background()
		req := issueRequest()
		code, err := store.Issue(ctx, req)
		require.NoError(t, err)

		var (
			wg        sync.WaitGroup
			successes atomic.Int32
		)
		for range 32 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := store.Consume(ctx, code.ID, req.ClientID, req.RedirectURI); err == nil {
					successes.Add(1)
				}
			}()
		}
		wg.Wait()
		require.Equal(t, int32(1), successes.Load())
	})
}

func TestStore_IssueRequiresLifespan(t *testing.T) {
	forEachStore(t, func(t *testing.T, store codes.Store, clk *clock) {
		req := issueRequest()
		req.Lifespan = 0
		_, err := store.Issue(context.Background(), req)
		require.Error(t, err)
	})
}

func TestMemoryStore_Sweep(t *testing.T) {
	clk := &clock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	store := codes.NewMemoryStore(codes.WithNowFunc(clk.Now))
	ctx := context.Background()
	req := issueRequest()

	used, err := store.Issue(ctx, req)
	require.NoError(t, err)
	_, err = store.Consume(ctx, used.ID, req.ClientID, req.RedirectURI)
	require.NoError(t, err)

	_, err = store.Issue(ctx, req)
	require.NoError(t, err)

	n, err := store.Sweep(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	clk.Advance(2 * time.Minute)
	n, err = store.Sweep(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)
}
