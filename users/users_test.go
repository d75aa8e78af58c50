package users_test

import (
	"testing"

	apperrors "github.com/jrsteele09/go-token-exchange/internal/errors"
	"github.com/jrsteele09/go-token-exchange/users"
	userrepofakes "github.com/jrsteele09/go-token-exchange/users/repofakes"
	"github.com/stretchr/testify/require"
)

func TestPasswordHash(t *testing.T) {
	u := &users.User{}
	require.NoError(t, u.SetPassword("password"))
	require.True(t, users.CheckPasswordHash("password", u.Credentials.PasswordHash))
	require.False(t, users.CheckPasswordHash("invalid", u.Credentials.PasswordHash))
}

func TestValidatePasswordStrength(t *testing.T) {
	require.NoError(t, users.ValidatePasswordStrength("Passw0rdOK"))
	require.Error(t, users.ValidatePasswordStrength("short1A"))
	require.Error(t, users.ValidatePasswordStrength("alllowercase1"))
	require.Error(t, users.ValidatePasswordStrength("NoNumbersHere"))
}

func TestUser_RolesAndGrant(t *testing.T) {
	u := &users.User{RealmRoles: []string{"user"}}
	u.GrantRole("test-app.customer-user")
	u.GrantRole("test-app.customer-user")
	u.GrantRole("admin")

	set := u.Roles()
	require.ElementsMatch(t, []string{"user", "admin"}, set.RealmRoles())
	require.Equal(t, []string{"customer-user"}, set.ClientRoles("test-app"))
}

func TestFindByUsernameOrEmail(t *testing.T) {
	repo := userrepofakes.NewFakeUserRepo()
	require.NoError(t, repo.Upsert(&users.User{RealmID: "test", Username: "Test-User", Email: "tom@localhost", Enabled: true}))

	u, err := users.FindByUsernameOrEmail(repo, "test", "test-user")
	require.NoError(t, err)
	require.Equal(t, "Test-User", u.Username)

	u, err = users.FindByUsernameOrEmail(repo, "test", "TOM@localhost")
	require.NoError(t, err)
	require.Equal(t, "Test-User", u.Username)

	_, err = users.FindByUsernameOrEmail(repo, "test", "nobody")
	require.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = users.FindByUsernameOrEmail(repo, "other", "test-user")
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestFakeUserRepo_RenameReindexes(t *testing.T) {
	repo := userrepofakes.NewFakeUserRepo()
	u := &users.User{RealmID: "test", Username: "old", Enabled: true}
	require.NoError(t, repo.Upsert(u))

	stored, err := repo.GetByID("test", u.ID)
	require.NoError(t, err)
	stored.Username = "new"
	require.NoError(t, repo.Upsert(stored))

	_, err = repo.GetByUsername("test", "old")
	require.Error(t, err)
	_, err = repo.GetByUsername("test", "new")
	require.NoError(t, err)

	require.NoError(t, repo.SetEnabled("test", u.ID, false))
	stored, err = repo.GetByID("test", u.ID)
	require.NoError(t, err)
	require.False(t, stored.Enabled)
}
