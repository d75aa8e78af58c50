package server

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-token-exchange/auth"
	"github.com/jrsteele09/go-token-exchange/clients"
	"github.com/jrsteele09/go-token-exchange/internal/config"
	apperrors "github.com/jrsteele09/go-token-exchange/internal/errors"
	"github.com/jrsteele09/go-token-exchange/mappers"
	"github.com/jrsteele09/go-token-exchange/realms"
	"github.com/jrsteele09/go-token-exchange/token"
	"github.com/jrsteele09/go-token-exchange/users"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	AdminCLIClientID          = "admin-cli"
	DefaultSuperAdminUsername = "admin"
	AdminRole                 = "admin"
	UserRole                  = "user"
	listPageSize              = 100
)

// Bootstrap creates the configured realm with its account and admin-cli clients and an admin
// user when they do not exist yet. It returns the generated admin password on first creation
// (empty when the admin already existed or the password came from the environment).
func Bootstrap(cfg config.Config, repos auth.Repos, tokens *token.Manager) (generatedPassword string, err error) {
	realmID := cfg.GetBootstrapRealm()
	if realmID == "" {
		return "", nil
	}
	log.Info().Str("realm", realmID).Msg("bootstrap: checking realm configuration")

	realm, err := bootstrapRealm(cfg, repos.Realms, tokens, realmID)
	if err != nil {
		return "", errors.Wrap(err, "[Bootstrap] realm")
	}
	if err := bootstrapClients(cfg, repos.Clients, realm); err != nil {
		return "", errors.Wrap(err, "[Bootstrap] clients")
	}
	generatedPassword, err = bootstrapAdmin(cfg, repos.Users, realm)
	if err != nil {
		return "", errors.Wrap(err, "[Bootstrap] admin user")
	}

	issuer := realm.IssuerURL(cfg.GetBaseURL())
	log.Info().
		Str("realm", realm.ID).
		Str("issuer", issuer).
		Str("discovery", issuer+"/.well-known/openid-configuration").
		Msg("bootstrap complete")
	if generatedPassword != "" {
		log.Warn().
			Str("username", DefaultSuperAdminUsername).
			Str("password", generatedPassword).
			Msg("generated admin password; save it now, it is not shown again and must be changed on first login")
	}
	return generatedPassword, nil
}

func bootstrapRealm(cfg config.Config, repo realms.Repo, tokens *token.Manager, realmID string) (*realms.Realm, error) {
	realm, err := repo.Get(realmID)
	if err == nil {
		if token.HasKeyMaterial(realm) {
			return realm, nil
		}
		log.Warn().Str("realm", realmID).Msg("realm has no key material, generating new keys")
	} else if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	} else {
		realm = &realms.Realm{
			ID:          realmID,
			Name:        realmID,
			Enabled:     true,
			SSLRequired: realms.SSLRequiredExternal,
			SignerType:  realms.SignerTypeRS256,
			Roles:       []string{AdminRole, UserRole},
		}
		realm.ApplyDefaults(cfg.GetRealmLifespans())
	}

	signer, err := token.GenerateSignerForRealm(realm)
	if err != nil {
		return nil, err
	}
	if err := repo.Upsert(realm); err != nil {
		return nil, err
	}
	tokens.RegisterRealmSigner(realm, signer)
	log.Info().Str("realm", realm.ID).Str("alg", string(realm.SignerType)).Str("kid", realm.KeyID).Msg("realm signing key created")
	return realm, nil
}

func bootstrapClients(cfg config.Config, repo clients.Repo, realm *realms.Realm) error {
	accountURL := realm.IssuerURL(cfg.GetBaseURL()) + "/account/*"
	wanted := []*clients.Client{
		{
			ClientID:     clients.AccountClientID,
			Name:         "Account Console",
			RealmID:      realm.ID,
			Enabled:      true,
			PublicClient: true,
			RedirectURIs: []string{accountURL},
			ScopeMappings: clients.ScopeMappings{
				Realm: []string{UserRole},
			},
		},
		{
			ClientID:                  AdminCLIClientID,
			Name:                      "Admin CLI",
			RealmID:                   realm.ID,
			Enabled:                   true,
			PublicClient:              true,
			DirectAccessGrantsEnabled: true,
			FullScopeAllowed:          true,
		},
	}
	for _, c := range wanted {
		_, err := repo.Get(realm.ID, c.ClientID)
		if err == nil {
			continue
		}
		if !errors.Is(err, apperrors.ErrNotFound) {
			return err
		}
		if err := repo.Upsert(c); err != nil {
			return err
		}
		log.Info().Str("realm", realm.ID).Str("client", c.ClientID).Msg("client created")
	}
	return nil
}

func bootstrapAdmin(cfg config.Config, repo users.Repo, realm *realms.Realm) (string, error) {
	_, err := repo.GetByUsername(realm.ID, DefaultSuperAdminUsername)
	if err == nil {
		return "", nil
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		return "", err
	}

	admin := &users.User{
		ID:         uuid.New().String(),
		RealmID:    realm.ID,
		Username:   DefaultSuperAdminUsername,
		Enabled:    true,
		RealmRoles: []string{AdminRole, UserRole},
	}

	password := cfg.GetBootstrapAdminPassword()
	var generated string
	if password == "" {
		passwordBytes := make([]byte, 18)
		if _, err := rand.Read(passwordBytes); err != nil {
			return "", errors.Wrap(err, "failed to generate password")
		}
		generated = base64.RawURLEncoding.EncodeToString(passwordBytes)
		password = generated
		admin.RequiredActions = []users.RequiredAction{users.ActionUpdatePassword}
	}
	if err := admin.SetPassword(password); err != nil {
		return "", err
	}
	if err := repo.Upsert(admin); err != nil {
		return "", err
	}
	return generated, nil
}

// ValidateMappers checks the protocol mappers of every client and client template. A
// malformed mapper is a ConfigError that must stop the server before it takes traffic.
func ValidateMappers(repos auth.Repos) error {
	for offset := 0; ; offset += listPageSize {
		realmList, err := repos.Realms.List(offset, listPageSize)
		if err != nil {
			return errors.Wrap(err, "[ValidateMappers] list realms")
		}
		for _, realm := range realmList {
			if err := validateRealmMappers(repos, realm.ID); err != nil {
				return err
			}
		}
		if len(realmList) < listPageSize {
			return nil
		}
	}
}

func validateRealmMappers(repos auth.Repos, realmID string) error {
	checked := make(map[string]struct{})
	for offset := 0; ; offset += listPageSize {
		clientList, err := repos.Clients.List(realmID, offset, listPageSize)
		if err != nil {
			return errors.Wrap(err, "[ValidateMappers] list clients")
		}
		for _, c := range clientList {
			if err := mappers.ValidateAll(c.ProtocolMappers); err != nil {
				return apperrors.ConfigError("realm %s client %s: %v", realmID, c.ClientID, err)
			}
			if c.Template == "" || repos.Templates == nil {
				continue
			}
			if _, done := checked[c.Template]; done {
				continue
			}
			checked[c.Template] = struct{}{}
			t, err := repos.Templates.Get(realmID, c.Template)
			if err != nil {
				log.Warn().Str("realm", realmID).Str("template", c.Template).Msg(fmt.Sprintf("client %s references a missing template", c.ClientID))
				continue
			}
			if err := mappers.ValidateAll(t.ProtocolMappers); err != nil {
				return apperrors.ConfigError("realm %s template %s: %v", realmID, t.Name, err)
			}
		}
		if len(clientList) < listPageSize {
			return nil
		}
	}
}
