package users

import (
	"strings"

	apperrors "github.com/jrsteele09/go-token-exchange/internal/errors"
	"github.com/pkg/errors"
)

type Repo interface {
	Upsert(user *User) error
	Delete(realmID, userID string) error
	GetByID(realmID, id string) (*User, error)
	GetByUsername(realmID, username string) (*User, error)
	GetByEmail(realmID, email string) (*User, error)
	List(realmID string, offset, limit int) ([]*User, error)
	SetEnabled(realmID, userID string, enabled bool) error
}

// FindByUsernameOrEmail looks a user up by username, falling back to email when s looks
// like an address.
func FindByUsernameOrEmail(repo Repo, realmID, s string) (*User, error) {
	user, err := repo.GetByUsername(realmID, s)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, apperrors.ErrNotFound) || !strings.Contains(s, "@") {
		return nil, err
	}
	return repo.GetByEmail(realmID, s)
}
