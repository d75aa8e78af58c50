package errors_test

import (
	"net/http"
	"testing"

	apperrors "github.com/jrsteele09/go-token-exchange/internal/errors"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestWithCause_KeepsClassification(t *testing.T) {
	base := apperrors.GrantError(apperrors.CodeInvalidGrant, "Code not valid", http.StatusBadRequest, apperrors.EventInvalidCode)
	cause := errors.New("store lookup failed")

	err := errors.Wrap(base.WithCause(cause), "[test] exchange")

	appErr, ok := apperrors.AsError(err)
	require.True(t, ok)
	require.Equal(t, apperrors.KindGrant, appErr.Kind)
	require.Equal(t, "Code not valid", appErr.Description)
	require.True(t, apperrors.Is(err, cause))
	require.True(t, apperrors.IsKind(err, apperrors.KindGrant))
	require.False(t, apperrors.IsKind(err, apperrors.KindPolicy))
	require.Nil(t, errors.Unwrap(base), "the shared error value is not modified")
}

func TestConfigAndConflictErrors(t *testing.T) {
	err := apperrors.ConfigError("mapper %q: missing config %q", "hard", "claim.name")
	require.Equal(t, apperrors.KindConfig, err.Kind)
	require.Contains(t, err.Error(), `mapper "hard": missing config "claim.name"`)

	conflict := apperrors.ModelConflict("duplicate user")
	require.Equal(t, http.StatusUnauthorized, conflict.Status)
	require.Equal(t, apperrors.EventInvalidUser, conflict.EventError)

	require.False(t, apperrors.IsKind(errors.New("plain"), apperrors.KindConfig))
	require.Nil(t, apperrors.Wrapf(nil, "nothing"))
	require.ErrorIs(t, apperrors.Wrapf(apperrors.ErrNotFound, "client %s", "x"), apperrors.ErrNotFound)
}
