package federation_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jrsteele09/go-token-exchange/federation"
	apperrors "github.com/jrsteele09/go-token-exchange/internal/errors"
	"github.com/jrsteele09/go-token-exchange/users"
	userrepofakes "github.com/jrsteele09/go-token-exchange/users/repofakes"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestWithTimeout_HangingBackend(t *testing.T) {
	var calls atomic.Int32
	hanging := federation.CredentialBackendFunc(func(ctx context.Context, _, _, _ string) (bool, error) {
		calls.Add(1)
		<-ctx.Done()
		return true, nil
	})

	start := time.Now()
	ok, err := federation.WithTimeout(hanging, 50*time.Millisecond).Check(context.Background(), "john", "password", "secret")
	require.False(t, ok)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Less(t, time.Since(start), 2*time.Second)
	require.Equal(t, int32(1), calls.Load())
}

func TestWithTimeout_PassesResult(t *testing.T) {
	backend := federation.CredentialBackendFunc(func(_ context.Context, username, _, secret string) (bool, error) {
		return username == "john" && secret == "secret", nil
	})
	b := federation.WithTimeout(backend, time.Second)

	ok, err := b.Check(context.Background(), "john", "password", "secret")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = b.Check(context.Background(), "john", "password", "wrong")
	require.NoError(t, err)
	require.False(t, ok)

	failing := federation.WithTimeout(federation.CredentialBackendFunc(func(context.Context, string, string, string) (bool, error) {
		return true, errors.New("pam unavailable")
	}), time.Second)
	ok, err = failing.Check(context.Background(), "john", "password", "secret")
	require.Error(t, err)
	require.False(t, ok)
}

func TestRepoDirectory_Conflict(t *testing.T) {
	repo := userrepofakes.NewFakeUserRepo()
	require.NoError(t, repo.Upsert(&users.User{RealmID: "test", Username: "keycloak-user@localhost", Email: "a@localhost"}))
	require.NoError(t, repo.Upsert(&users.User{RealmID: "test", Username: "other", Email: "keycloak-user@localhost"}))
	dir := federation.NewRepoDirectory(repo)

	_, err := dir.FindByUsernameOrEmail(context.Background(), "test", "keycloak-user@localhost")
	require.ErrorIs(t, err, federation.ErrModelConflict)

	u, err := dir.FindByUsernameOrEmail(context.Background(), "test", "other")
	require.NoError(t, err)
	require.Equal(t, "other", u.Username)

	_, err = dir.FindByUsernameOrEmail(context.Background(), "test", "missing")
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestChain(t *testing.T) {
	first := userrepofakes.NewFakeUserRepo()
	second := userrepofakes.NewFakeUserRepo()
	require.NoError(t, first.Upsert(&users.User{ID: "1", RealmID: "test", Username: "alice"}))
	require.NoError(t, second.Upsert(&users.User{ID: "2", RealmID: "test", Username: "alice"}))
	require.NoError(t, second.Upsert(&users.User{ID: "3", RealmID: "test", Username: "bob"}))

	chain := federation.Chain{federation.NewRepoDirectory(first), federation.NewRepoDirectory(second)}
	ctx := context.Background()

	_, err := chain.FindByUsernameOrEmail(ctx, "test", "alice")
	require.ErrorIs(t, err, federation.ErrModelConflict)

	u, err := chain.FindByUsernameOrEmail(ctx, "test", "bob")
	require.NoError(t, err)
	require.Equal(t, "3", u.ID)

	require.NoError(t, chain.RemoveUser(ctx, "test", "3"))
	require.ErrorIs(t, chain.RemoveUser(ctx, "test", "3"), apperrors.ErrNotFound)
}
