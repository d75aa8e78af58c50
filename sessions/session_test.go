package sessions_test

import (
	"testing"
	"time"

	"github.com/jrsteele09/go-token-exchange/sessions"
	sessionrepofakes "github.com/jrsteele09/go-token-exchange/sessions/repofakes"
	"github.com/stretchr/testify/require"
)

var start = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

func newSession() *sessions.UserSession {
	return &sessions.UserSession{
		RealmID:     "test",
		UserID:      "user-1",
		Started:     start,
		LastRefresh: start,
		IdleTimeout: 30 * time.Minute,
		MaxLifespan: time.Hour,
	}
}

func TestUserSession_Expired(t *testing.T) {
	s := newSession()
	require.False(t, s.Expired(start.Add(29*time.Minute)))
	require.True(t, s.Expired(start.Add(31*time.Minute)), "idle timeout")

	s.LastRefresh = start.Add(50 * time.Minute)
	require.False(t, s.Expired(start.Add(59*time.Minute)))
	require.True(t, s.Expired(start.Add(61*time.Minute)), "max lifespan")
}

func TestUserSession_RefreshExpiry(t *testing.T) {
	s := newSession()
	require.Equal(t, start.Add(30*time.Minute), s.RefreshExpiry(start))

	// within the last idle window the max lifespan wins
	now := start.Add(45 * time.Minute)
	require.Equal(t, start.Add(time.Hour), s.RefreshExpiry(now))
}

func TestFakeSessionRepo(t *testing.T) {
	repo := sessionrepofakes.NewFakeSessionRepo()
	s := newSession()
	require.NoError(t, repo.Create(s))
	require.NotEmpty(t, s.ID)

	require.NoError(t, repo.AddClient("test", s.ID, "test-app"))
	require.NoError(t, repo.AddClient("test", s.ID, "test-app"))
	require.NoError(t, repo.Touch("test", s.ID, start.Add(20*time.Minute)))

	got, err := repo.Get("test", s.ID)
	require.NoError(t, err)
	require.Equal(t, []string{"test-app"}, got.Clients)
	require.Equal(t, start.Add(20*time.Minute), got.LastRefresh)

	other := newSession()
	require.NoError(t, repo.Create(other))

	n, err := repo.DeleteByUserAndClient("test", "user-1", "test-app")
	require.NoError(t, err)
	require.Equal(t, 1, n)

	n, err = repo.DeleteExpired(start.Add(2 * time.Hour))
	require.NoError(t, err)
	require.Equal(t, 1, n)

	_, err = repo.Get("test", other.ID)
	require.Error(t, err)
}
