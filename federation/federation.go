package federation

import (
	"context"
	"time"

	apperrors "github.com/jrsteele09/go-token-exchange/internal/errors"
	"github.com/jrsteele09/go-token-exchange/users"
	"github.com/pkg/errors"
)

// ErrModelConflict is returned when a lookup matches more than one user.
var ErrModelConflict = errors.New("user lookup matched more than one user")

// CredentialBackend verifies a secret against an external system such as PAM.
type CredentialBackend interface {
	Check(ctx context.Context, username, credentialType, secret string) (bool, error)
}

// CredentialBackendFunc adapts a function to CredentialBackend.
type CredentialBackendFunc func(ctx context.Context, username, credentialType, secret string) (bool, error)

func (f CredentialBackendFunc) Check(ctx context.Context, username, credentialType, secret string) (bool, error) {
	return f(ctx, username, credentialType, secret)
}

// UserDirectory finds and manages users in a store that may be external to the realm.
type UserDirectory interface {
	// FindByUsernameOrEmail returns the user whose username or email is s. It returns
	// ErrModelConflict when s identifies more than one user and ErrNotFound when none.
	FindByUsernameOrEmail(ctx context.Context, realmID, s string) (*users.User, error)
	AddUser(ctx context.Context, realmID string, user *users.User) error
	RemoveUser(ctx context.Context, realmID, userID string) error
}

// EmailSender delivers mail on behalf of a realm.
type EmailSender interface {
	Send(ctx context.Context, realmID, to, subject, body string) error
}

type timeoutBackend struct {
	backend CredentialBackend
	timeout time.Duration
}

// WithTimeout bounds every Check of backend. A check still running at the deadline reports
// false with the context error. The backend call itself is never retried.
func WithTimeout(backend CredentialBackend, timeout time.Duration) CredentialBackend {
	return &timeoutBackend{backend: backend, timeout: timeout}
}

type checkResult struct {
	ok  bool
	err error
}

func (b *timeoutBackend) Check(ctx context.Context, username, credentialType, secret string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	done := make(chan checkResult, 1)
	go func() {
		ok, err := b.backend.Check(ctx, username, credentialType, secret)
		done <- checkResult{ok: ok, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return false, errors.Wrap(r.err, "[timeoutBackend.Check]")
		}
		return r.ok, nil
	case <-ctx.Done():
		return false, errors.Wrap(ctx.Err(), "[timeoutBackend.Check] credential backend")
	}
}

var _ UserDirectory = (*RepoDirectory)(nil)

// RepoDirectory is the realm's own user store seen as a UserDirectory.
type RepoDirectory struct {
	repo users.Repo
}

func NewRepoDirectory(repo users.Repo) *RepoDirectory {
	return &RepoDirectory{repo: repo}
}

func (d *RepoDirectory) FindByUsernameOrEmail(_ context.Context, realmID, s string) (*users.User, error) {
	byName, err := d.repo.GetByUsername(realmID, s)
	if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		return nil, errors.Wrap(err, "[RepoDirectory.FindByUsernameOrEmail] username")
	}
	byEmail, err := d.repo.GetByEmail(realmID, s)
	if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		return nil, errors.Wrap(err, "[RepoDirectory.FindByUsernameOrEmail] email")
	}
	switch {
	case byName != nil && byEmail != nil && byName.ID != byEmail.ID:
		return nil, ErrModelConflict
	case byName != nil:
		return byName, nil
	case byEmail != nil:
		return byEmail, nil
	}
	return nil, apperrors.ErrNotFound
}

func (d *RepoDirectory) AddUser(_ context.Context, realmID string, user *users.User) error {
	user.RealmID = realmID
	return d.repo.Upsert(user)
}

func (d *RepoDirectory) RemoveUser(_ context.Context, realmID, userID string) error {
	return d.repo.Delete(realmID, userID)
}

// Chain consults directories in order. A user found in more than one directory is a conflict.
type Chain []UserDirectory

var _ UserDirectory = Chain(nil)

func (c Chain) FindByUsernameOrEmail(ctx context.Context, realmID, s string) (*users.User, error) {
	var found *users.User
	for _, d := range c {
		u, err := d.FindByUsernameOrEmail(ctx, realmID, s)
		if errors.Is(err, apperrors.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if found != nil && found.ID != u.ID {
			return nil, ErrModelConflict
		}
		found = u
	}
	if found == nil {
		return nil, apperrors.ErrNotFound
	}
	return found, nil
}

// AddUser adds to the first directory.
func (c Chain) AddUser(ctx context.Context, realmID string, user *users.User) error {
	if len(c) == 0 {
		return apperrors.ErrUnsupported
	}
	return c[0].AddUser(ctx, realmID, user)
}

// RemoveUser removes from every directory that knows the user.
func (c Chain) RemoveUser(ctx context.Context, realmID, userID string) error {
	removed := false
	for _, d := range c {
		err := d.RemoveUser(ctx, realmID, userID)
		switch {
		case err == nil:
			removed = true
		case errors.Is(err, apperrors.ErrNotFound), errors.Is(err, apperrors.ErrUnsupported):
		default:
			return err
		}
	}
	if !removed {
		return apperrors.ErrNotFound
	}
	return nil
}
