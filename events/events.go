package events

import (
	"context"
	"maps"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Type is the kind of audit event.
type Type string

const (
	Login             Type = "LOGIN"
	LoginError        Type = "LOGIN_ERROR"
	CodeToToken       Type = "CODE_TO_TOKEN"
	CodeToTokenError  Type = "CODE_TO_TOKEN_ERROR"
	RefreshToken      Type = "REFRESH_TOKEN"
	RefreshTokenError Type = "REFRESH_TOKEN_ERROR"
	RevokeGrant       Type = "REVOKE_GRANT"
)

// Detail keys
const (
	DetailCodeID           = "code_id"
	DetailTokenID          = "token_id"
	DetailRefreshTokenID   = "refresh_token_id"
	DetailRefreshTokenType = "refresh_token_type"
	DetailUsername         = "username"
	DetailAuthMethod       = "auth_method"
	DetailRedirectURI      = "redirect_uri"
	DetailConsent          = "consent"
	DetailRevokedClient    = "revoked_client"
	DetailGrantType        = "grant_type"
)

// Detail values
const (
	ConsentGranted        = "consent_granted"
	ConsentPersisted      = "persisted_consent"
	ConsentNotNeeded      = "no_consent_required"
	AuthMethodOIDC        = "openid-connect"
	AuthMethodCredentials = "oauth_credentials"
	RefreshTypeRefresh    = "Refresh"
)

// Event is one audit record.
type Event struct {
	Type      Type              `json:"type"`
	Time      time.Time         `json:"time"`
	RealmID   string            `json:"realmId"`
	ClientID  string            `json:"clientId,omitempty"`
	UserID    string            `json:"userId,omitempty"`
	SessionID string            `json:"sessionId,omitempty"`
	IPAddress string            `json:"ipAddress,omitempty"`
	Error     string            `json:"error,omitempty"`
	Details   map[string]string `json:"details,omitempty"`
}

// Detail sets a detail and returns e for chaining.
func (e *Event) Detail(key, value string) *Event {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// RemoveDetail deletes a detail.
func (e *Event) RemoveDetail(key string) *Event {
	delete(e.Details, key)
	return e
}

// Clone copies the event including its details.
func (e Event) Clone() Event {
	e.Details = maps.Clone(e.Details)
	return e
}

// Sink receives audit events. Send must not block the request for long.
type Sink interface {
	Send(ctx context.Context, e Event)
}

// LogSink writes events to the zerolog logger.
type LogSink struct {
	logger zerolog.Logger
}

// NewLogSink writes to the global logger when logger is nil.
func NewLogSink(logger *zerolog.Logger) *LogSink {
	if logger == nil {
		return &LogSink{logger: log.Logger.With().Str("component", "events").Logger()}
	}
	return &LogSink{logger: *logger}
}

func (s *LogSink) Send(_ context.Context, e Event) {
	ev := s.logger.Info()
	if e.Error != "" {
		ev = s.logger.Warn().Str("error", e.Error)
	}
	ev = ev.Str("type", string(e.Type)).
		Time("time", e.Time).
		Str("realm", e.RealmID).
		Str("client", e.ClientID).
		Str("user", e.UserID).
		Str("session", e.SessionID).
		Str("ip", e.IPAddress)
	if len(e.Details) > 0 {
		d := zerolog.Dict()
		for k, v := range e.Details {
			d = d.Str(k, v)
		}
		ev = ev.Dict("details", d)
	}
	ev.Msg("audit event")
}

// Multi fans an event out to several sinks.
type Multi []Sink

func (m Multi) Send(ctx context.Context, e Event) {
	for _, s := range m {
		s.Send(ctx, e.Clone())
	}
}
