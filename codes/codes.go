package codes

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"time"

	"github.com/pkg/errors"
)

// State is the lifecycle state of an authorization code. Every state other than
// StateIssued is terminal.
type State string

const (
	StateIssued          State = "ISSUED"
	StateConsumed        State = "CONSUMED"
	StateExpired         State = "EXPIRED"
	StateInvalidRedirect State = "INVALID_REDIRECT"
	StateInvalidClient   State = "INVALID_CLIENT"
)

// ErrInvalidCode is returned for any failed consume. The more specific errors below wrap it.
var ErrInvalidCode = errors.New("invalid authorization code")

var (
	ErrCodeExpired      = errors.Wrap(ErrInvalidCode, "code is expired")
	ErrRedirectMismatch = errors.Wrap(ErrInvalidCode, "incorrect redirect_uri")
	ErrClientMismatch   = errors.Wrap(ErrInvalidCode, "code was issued to another client")
)

// Code is a one-time authorization code bound to a session, client and redirect URI.
type Code struct {
	ID          string    `json:"id"`
	SessionID   string    `json:"session_id"`
	UserID      string    `json:"user_id"`
	RealmID     string    `json:"realm_id"`
	ClientID    string    `json:"client_id"`
	RedirectURI string    `json:"redirect_uri"`
	Scope       string    `json:"scope,omitempty"`
	Nonce       string    `json:"nonce,omitempty"`
	IssuedAt    time.Time `json:"issued_at"`
	ExpiresAt   time.Time `json:"expires_at"`
	State       State     `json:"state"`
}

// IssueRequest describes the code to issue. Lifespan is the realm's access code lifespan.
type IssueRequest struct {
	SessionID   string
	UserID      string
	RealmID     string
	ClientID    string
	RedirectURI string
	Scope       string
	Nonce       string
	Lifespan    time.Duration
}

// Store issues and consumes authorization codes. Consume succeeds at most once per code,
// and any consume attempt, successful or not, leaves the code unusable. When a known code is
// burned by a mismatch or expiry, Consume returns it in its terminal state along with the error.
type Store interface {
	Issue(ctx context.Context, req IssueRequest) (*Code, error)
	Consume(ctx context.Context, codeID, clientID, redirectURI string) (*Code, error)
	// Sweep removes terminal and expired codes and returns how many were removed
	Sweep(ctx context.Context) (int, error)
}

// Option configures a store
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithNowFunc replaces the wall clock used for issue and expiry checks.
func WithNowFunc(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

func applyOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func newCode(req IssueRequest, now time.Time) (*Code, error) {
	if req.Lifespan <= 0 {
		return nil, errors.New("[codes.newCode] lifespan must be positive")
	}
	id, err := generateID()
	if err != nil {
		return nil, errors.Wrap(err, "[codes.newCode] generateID")
	}
	return &Code{
		ID:          id,
		SessionID:   req.SessionID,
		UserID:      req.UserID,
		RealmID:     req.RealmID,
		ClientID:    req.ClientID,
		RedirectURI: req.RedirectURI,
		Scope:       req.Scope,
		Nonce:       req.Nonce,
		IssuedAt:    now,
		ExpiresAt:   now.Add(req.Lifespan),
		State:       StateIssued,
	}, nil
}

// check decides the terminal state of an issued code presented with clientID and redirectURI.
func check(c *Code, clientID, redirectURI string, now time.Time) (State, error) {
	switch {
	case c.ClientID != clientID:
		return StateInvalidClient, ErrClientMismatch
	case c.RedirectURI != redirectURI:
		return StateInvalidRedirect, ErrRedirectMismatch
	case !now.Before(c.ExpiresAt):
		return StateExpired, ErrCodeExpired
	}
	return StateConsumed, nil
}

// EventID is the identifier audit events record for a code. It is derived from the code
// so that events never carry a redeemable value.
func EventID(codeID string) string {
	sum := sha256.Sum256([]byte(codeID))
	return hex.EncodeToString(sum[:8])
}

// generateID returns 32 random bytes, base64url encoded.
func generateID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
