// Package sssd looks users up in SSSD through its D-Bus infopipe responder.
package sssd

import (
	"context"
	"strings"
	"sync"

	"github.com/godbus/dbus/v5"
	apperrors "github.com/jrsteele09/go-token-exchange/internal/errors"
	"github.com/jrsteele09/go-token-exchange/federation"
	"github.com/jrsteele09/go-token-exchange/users"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// ProviderName is the federation link of users imported from SSSD.
const ProviderName = "sssd"

const (
	BusName    = "org.freedesktop.sssd.infopipe"
	ObjectPath = dbus.ObjectPath("/org/freedesktop/sssd/infopipe")

	methodGetUserAttr   = BusName + ".GetUserAttr"
	methodGetUserGroups = BusName + ".GetUserGroups"

	errNotFound = "org.freedesktop.sssd.Error.NotFound"
)

// user attributes requested from SSSD
var userAttributes = []string{"mail", "givenname", "sn", "telephoneNumber"}

// Conn is the part of *dbus.Conn the directory uses.
type Conn interface {
	Object(dest string, path dbus.ObjectPath) dbus.BusObject
	Close() error
}

// Connector opens the bus connection.
type Connector func() (Conn, error)

// SystemBus connects to the system bus.
func SystemBus() (Conn, error) {
	return dbus.ConnectSystemBus()
}

var _ federation.UserDirectory = (*Directory)(nil)

// Directory is a read-only UserDirectory over SSSD. Users found in SSSD are imported into the
// local repository with FederationLink set, and a linked user whose SSSD email no longer matches
// is dropped from the local repository.
//
// The D-Bus connection is opened on first use and owned by the Directory until Close.
type Directory struct {
	local   users.Repo
	connect func() (Conn, error)

	lock   sync.Mutex
	opened bool
	closed bool
}

func NewDirectory(local users.Repo, connector Connector) *Directory {
	if connector == nil {
		connector = SystemBus
	}
	return &Directory{
		local:   local,
		connect: sync.OnceValues(func() (Conn, error) { return connector() }),
	}
}

// Close releases the bus connection if one was opened.
func (d *Directory) Close() error {
	d.lock.Lock()
	defer d.lock.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	if !d.opened {
		return nil
	}
	conn, err := d.connect()
	if err != nil {
		return nil
	}
	return conn.Close()
}

func (d *Directory) infopipe() (dbus.BusObject, error) {
	d.lock.Lock()
	defer d.lock.Unlock()
	if d.closed {
		return nil, errors.New("[Directory.infopipe] directory is closed")
	}
	conn, err := d.connect()
	if err != nil {
		return nil, errors.Wrap(err, "[Directory.infopipe] connect to system bus")
	}
	d.opened = true
	return conn.Object(BusName, ObjectPath), nil
}

// entry is what SSSD knows about a user.
type entry struct {
	attributes map[string][]string
	groups     []string
}

func (e *entry) first(name string) string {
	if v := e.attributes[name]; len(v) > 0 {
		return v[0]
	}
	return ""
}

func (d *Directory) lookup(ctx context.Context, username string) (*entry, error) {
	obj, err := d.infopipe()
	if err != nil {
		return nil, err
	}

	var raw map[string]dbus.Variant
	if err := obj.CallWithContext(ctx, methodGetUserAttr, 0, username, userAttributes).Store(&raw); err != nil {
		if isNotFound(err) {
			return nil, apperrors.ErrNotFound
		}
		return nil, errors.Wrap(err, "[Directory.lookup] GetUserAttr")
	}
	e := &entry{attributes: make(map[string][]string, len(raw))}
	for k, v := range raw {
		if values, ok := v.Value().([]string); ok {
			e.attributes[k] = values
		}
	}

	if err := obj.CallWithContext(ctx, methodGetUserGroups, 0, username).Store(&e.groups); err != nil {
		// groups are optional, the user is still usable without them
		log.Warn().Err(err).Str("username", username).Msg("sssd group lookup failed")
	}
	return e, nil
}

func isNotFound(err error) bool {
	var dbusErr dbus.Error
	if errors.As(err, &dbusErr) {
		return dbusErr.Name == errNotFound
	}
	var dbusErrPtr *dbus.Error
	if errors.As(err, &dbusErrPtr) {
		return dbusErrPtr.Name == errNotFound
	}
	return false
}

// FindByUsernameOrEmail looks the user up locally first, then in SSSD.
func (d *Directory) FindByUsernameOrEmail(ctx context.Context, realmID, s string) (*users.User, error) {
	local, err := users.FindByUsernameOrEmail(d.local, realmID, s)
	if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		return nil, errors.Wrap(err, "[Directory.FindByUsernameOrEmail] local")
	}
	if local != nil && local.FederationLink != ProviderName {
		return nil, apperrors.ErrNotFound
	}

	username := s
	if local != nil {
		username = local.Username
	}
	e, err := d.lookup(ctx, username)
	if errors.Is(err, apperrors.ErrNotFound) {
		if local != nil {
			d.dropLocal(realmID, local)
		}
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if local != nil {
		if !valid(local, e) {
			d.dropLocal(realmID, local)
			return nil, apperrors.ErrNotFound
		}
		return local, nil
	}
	return d.importUser(realmID, username, e)
}

// valid reports whether the local copy still describes the SSSD user.
func valid(local *users.User, e *entry) bool {
	return strings.EqualFold(local.Email, e.first("mail"))
}

func (d *Directory) dropLocal(realmID string, u *users.User) {
	if err := d.local.Delete(realmID, u.ID); err != nil {
		log.Err(err).Str("user", u.Username).Msg("failed to remove stale sssd user")
		return
	}
	log.Info().Str("realm", realmID).Str("user", u.Username).Msg("removed stale sssd user")
}

func (d *Directory) importUser(realmID, username string, e *entry) (*users.User, error) {
	u := &users.User{
		RealmID:        realmID,
		Username:       username,
		Email:          e.first("mail"),
		FirstName:      e.first("givenname"),
		LastName:       e.first("sn"),
		Enabled:        true,
		FederationLink: ProviderName,
		Attributes:     map[string][]string{},
	}
	if phone := e.attributes["telephoneNumber"]; len(phone) > 0 {
		u.Attributes["phone"] = phone
	}
	if len(e.groups) > 0 {
		u.Attributes["groups"] = e.groups
	}
	if err := d.local.Upsert(u); err != nil {
		return nil, errors.Wrap(err, "[Directory.importUser]")
	}
	return u, nil
}

// AddUser is not supported, SSSD is read-only.
func (d *Directory) AddUser(_ context.Context, _ string, _ *users.User) error {
	return apperrors.ErrUnsupported
}

// RemoveUser removes the imported copy. The SSSD entry is untouched.
func (d *Directory) RemoveUser(_ context.Context, realmID, userID string) error {
	u, err := d.local.GetByID(realmID, userID)
	if err != nil {
		return err
	}
	if u.FederationLink != ProviderName {
		return apperrors.ErrNotFound
	}
	return d.local.Delete(realmID, userID)
}
