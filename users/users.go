package users

import (
	"fmt"
	"maps"
	"slices"
	"time"
	"unicode"

	"github.com/jrsteele09/go-token-exchange/mappers"
	"github.com/jrsteele09/go-token-exchange/roles"
	"golang.org/x/crypto/bcrypt"
)

// RequiredAction is something the user must do before any token is issued to them.
type RequiredAction string

const (
	ActionUpdatePassword RequiredAction = "UPDATE_PASSWORD"
	ActionConfigureTOTP  RequiredAction = "CONFIGURE_TOTP"
	ActionVerifyEmail    RequiredAction = "VERIFY_EMAIL"
	ActionUpdateProfile  RequiredAction = "UPDATE_PROFILE"
)

// Credentials holds the stored secrets of a local user
type Credentials struct {
	PasswordHash string `json:"-"` // bcrypt
	TOTPSecret   string `json:"-"` // base32
}

type User struct {
	ID              string              `json:"id,omitempty"`
	RealmID         string              `json:"realm_id,omitempty"`
	Username        string              `json:"username,omitempty"`
	Email           string              `json:"email,omitempty"`
	EmailVerified   bool                `json:"email_verified,omitempty"`
	FirstName       string              `json:"first_name,omitempty"`
	LastName        string              `json:"last_name,omitempty"`
	Enabled         bool                `json:"enabled"`
	RequiredActions []RequiredAction    `json:"required_actions,omitempty"`
	RealmRoles      []string            `json:"realm_roles,omitempty"`
	ClientRoles     map[string][]string `json:"client_roles,omitempty"` // client id -> role names
	Attributes      map[string][]string `json:"attributes,omitempty"`
	Credentials     Credentials         `json:"-"`
	FederationLink  string              `json:"federation_link,omitempty"` // set when a federation provider owns the credentials
	DateJoined      time.Time           `json:"date_joined,omitempty"`
}

// ValidatePasswordStrength checks if password meets security requirements:
// - At least 8 characters long
// - Contains uppercase and lowercase letters
// - Contains at least one number
func ValidatePasswordStrength(password string) error {
	if len(password) < 8 {
		return fmt.Errorf("password must be at least 8 characters long")
	}

	var (
		hasUpper  bool
		hasLower  bool
		hasNumber bool
	)

	for _, char := range password {
		if unicode.IsUpper(char) {
			hasUpper = true
		} else if unicode.IsLower(char) {
			hasLower = true
		} else if unicode.IsDigit(char) {
			hasNumber = true
		}
	}

	if !hasUpper {
		return fmt.Errorf("password must contain at least one uppercase letter")
	}
	if !hasLower {
		return fmt.Errorf("password must contain at least one lowercase letter")
	}
	if !hasNumber {
		return fmt.Errorf("password must contain at least one number")
	}

	return nil
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// SetPassword stores the bcrypt hash of password.
func (u *User) SetPassword(password string) error {
	hash, err := HashPassword(password)
	if err != nil {
		return err
	}
	u.Credentials.PasswordHash = hash
	return nil
}

// IsFederated reports whether an external provider owns the user's credentials.
func (u *User) IsFederated() bool {
	return u.FederationLink != ""
}

// HasRequiredActions reports whether the user must complete setup before login.
func (u *User) HasRequiredActions() bool {
	return len(u.RequiredActions) > 0
}

// Roles returns the user's granted realm and client roles.
func (u *User) Roles() *roles.Set {
	return roles.FromLists(u.RealmRoles, u.ClientRoles)
}

// GrantRole grants a qualified role ("role" or "client.role").
func (u *User) GrantRole(qualified string) {
	clientID, role := roles.Parse(qualified)
	if clientID == "" {
		if !slices.Contains(u.RealmRoles, role) {
			u.RealmRoles = append(u.RealmRoles, role)
		}
		return
	}
	if u.ClientRoles == nil {
		u.ClientRoles = make(map[string][]string)
	}
	if !slices.Contains(u.ClientRoles[clientID], role) {
		u.ClientRoles[clientID] = append(u.ClientRoles[clientID], role)
	}
}

// Subject returns the view of the user that protocol mappers read.
func (u *User) Subject() mappers.Subject {
	return mappers.Subject{
		Username:      u.Username,
		Email:         u.Email,
		EmailVerified: u.EmailVerified,
		FirstName:     u.FirstName,
		LastName:      u.LastName,
		Attributes:    u.Attributes,
	}
}

func (u *User) Clone() *User {
	c := *u
	c.RequiredActions = slices.Clone(u.RequiredActions)
	c.RealmRoles = slices.Clone(u.RealmRoles)
	c.ClientRoles = cloneMulti(u.ClientRoles)
	c.Attributes = cloneMulti(u.Attributes)
	return &c
}

func cloneMulti(m map[string][]string) map[string][]string {
	if m == nil {
		return nil
	}
	out := maps.Clone(m)
	for k, v := range out {
		out[k] = slices.Clone(v)
	}
	return out
}
