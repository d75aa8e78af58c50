package credentials_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jrsteele09/go-token-exchange/credentials"
	"github.com/jrsteele09/go-token-exchange/federation"
	"github.com/jrsteele09/go-token-exchange/realms"
	"github.com/jrsteele09/go-token-exchange/users"
	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/require"
)

const totpSecret = "JBSWY3DPEHPK3PXP"

var now = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

type validatorFixture struct {
	realm *realms.Realm
	user  *users.User
}

func newValidatorFixture(t *testing.T) *validatorFixture {
	t.Helper()
	user := &users.User{ID: "user-1", Username: "test-user@localhost", Enabled: true}
	require.NoError(t, user.SetPassword("password"))
	user.Credentials.TOTPSecret = totpSecret
	return &validatorFixture{
		realm: &realms.Realm{ID: "test", Enabled: true},
		user:  user,
	}
}

func code(t *testing.T, at time.Time) string {
	t.Helper()
	c, err := totp.GenerateCode(totpSecret, at)
	require.NoError(t, err)
	return c
}

func TestValidate_Password(t *testing.T) {
	f := newValidatorFixture(t)
	v := credentials.NewValidator()
	ctx := context.Background()

	require.True(t, v.Validate(ctx, f.realm, f.user, []credentials.Input{credentials.Password("password")}))
	require.False(t, v.Validate(ctx, f.realm, f.user, []credentials.Input{credentials.Password("invalid")}))
	require.False(t, v.Validate(ctx, f.realm, f.user, []credentials.Input{credentials.Password("")}))
	require.False(t, v.Validate(ctx, f.realm, f.user, nil))
}

func TestValidate_TOTP(t *testing.T) {
	f := newValidatorFixture(t)
	v := credentials.NewValidator(credentials.WithNowFunc(func() time.Time { return now }))
	ctx := context.Background()

	both := func(otp string) []credentials.Input {
		return []credentials.Input{credentials.Password("password"), credentials.TOTP(otp)}
	}
	require.True(t, v.Validate(ctx, f.realm, f.user, both(code(t, now))))
	require.True(t, v.Validate(ctx, f.realm, f.user, both(code(t, now.Add(-30*time.Second)))), "one step of skew")
	require.False(t, v.Validate(ctx, f.realm, f.user, both(code(t, now.Add(-90*time.Second)))))

	// a valid code does not rescue a wrong password
	require.False(t, v.Validate(ctx, f.realm, f.user, []credentials.Input{
		credentials.Password("invalid"), credentials.TOTP(code(t, now)),
	}))

	f.user.Credentials.TOTPSecret = ""
	require.False(t, v.Validate(ctx, f.realm, f.user, both(code(t, now))))
}

func TestValidate_UnknownType(t *testing.T) {
	f := newValidatorFixture(t)
	v := credentials.NewValidator()
	require.False(t, v.Validate(context.Background(), f.realm, f.user, []credentials.Input{{Type: "kerberos", Value: "ticket"}}))
}

func TestValidate_FederatedUserUsesBackend(t *testing.T) {
	f := newValidatorFixture(t)
	f.user.FederationLink = "sssd"

	var calls atomic.Int32
	backend := federation.CredentialBackendFunc(func(_ context.Context, username, credentialType, secret string) (bool, error) {
		calls.Add(1)
		return username == "test-user@localhost" && credentialType == "password" && secret == "pam-secret", nil
	})
	v := credentials.NewValidator(credentials.WithBackend(backend, time.Second))
	ctx := context.Background()

	require.True(t, v.Validate(ctx, f.realm, f.user, []credentials.Input{credentials.Password("pam-secret")}))
	require.False(t, v.Validate(ctx, f.realm, f.user, []credentials.Input{credentials.Password("password")}))
	require.Equal(t, int32(2), calls.Load())
}

func TestValidate_HangingBackendTimesOut(t *testing.T) {
	f := newValidatorFixture(t)
	f.user.FederationLink = "sssd"

	var calls atomic.Int32
	backend := federation.CredentialBackendFunc(func(ctx context.Context, _, _, _ string) (bool, error) {
		calls.Add(1)
		<-ctx.Done()
		return true, nil
	})
	v := credentials.NewValidator(credentials.WithBackend(backend, 50*time.Millisecond))

	start := time.Now()
	require.False(t, v.Validate(context.Background(), f.realm, f.user, []credentials.Input{credentials.Password("pam-secret")}))
	require.Less(t, time.Since(start), 2*time.Second)
	require.Equal(t, int32(1), calls.Load(), "the backend is not retried")
}
