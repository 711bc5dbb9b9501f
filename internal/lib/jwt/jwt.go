// Package jwt issues and parses the HS256 tokens used by the auth service.
//
// Every token carries a scope claim. Access and refresh tokens authorize API
// calls and session renewal; email confirmation and password reset tokens are
// single purpose and are never accepted in place of each other.
package jwt

import (
	"errors"
	"fmt"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	ScopeAccess        = "access"
	ScopeRefresh       = "refresh"
	ScopeEmailConfirm  = "email_confirm"
	ScopePasswordReset = "password_reset"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrEmptySecret  = errors.New("signing secret is empty")
)

type Claims struct {
	Scope string `json:"scope"`
	gojwt.RegisteredClaims
}

type TTLs struct {
	Access        time.Duration
	Refresh       time.Duration
	EmailConfirm  time.Duration
	PasswordReset time.Duration
}

func DefaultTTLs() TTLs {
	return TTLs{
		Access:        15 * time.Minute,
		Refresh:       7 * 24 * time.Hour,
		EmailConfirm:  7 * 24 * time.Hour,
		PasswordReset: 7 * 24 * time.Hour,
	}
}

type Manager struct {
	secret []byte
	ttls   map[string]time.Duration
	now    func() time.Time
}

type Option func(*Manager)

// WithClock overrides the time source used for iat/exp and validation.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

func New(secret string, ttls TTLs, opts ...Option) (*Manager, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}

	defaults := DefaultTTLs()

	m := &Manager{
		secret: []byte(secret),
		ttls: map[string]time.Duration{
			ScopeAccess:        orDefault(ttls.Access, defaults.Access),
			ScopeRefresh:       orDefault(ttls.Refresh, defaults.Refresh),
			ScopeEmailConfirm:  orDefault(ttls.EmailConfirm, defaults.EmailConfirm),
			ScopePasswordReset: orDefault(ttls.PasswordReset, defaults.PasswordReset),
		},
		now: time.Now,
	}

	for _, opt := range opts {
		opt(m)
	}

	return m, nil
}

func (m *Manager) NewAccessToken(subject string) (string, error) {
	return m.issue(subject, ScopeAccess)
}

func (m *Manager) NewRefreshToken(subject string) (string, error) {
	return m.issue(subject, ScopeRefresh)
}

func (m *Manager) NewEmailToken(subject string) (string, error) {
	return m.issue(subject, ScopeEmailConfirm)
}

func (m *Manager) NewResetToken(subject string) (string, error) {
	return m.issue(subject, ScopePasswordReset)
}

// AccessTTL is exposed for the expires_in field of token responses.
func (m *Manager) AccessTTL() time.Duration {
	return m.ttls[ScopeAccess]
}

// Parse verifies signature, expiry and scope and returns the subject.
// Every failure wraps ErrInvalidToken.
func (m *Manager) Parse(token, expectedScope string) (string, error) {
	const op = "jwt.Parse"

	claims := &Claims{}

	_, err := gojwt.ParseWithClaims(token, claims, func(t *gojwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*gojwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.secret, nil
	},
		gojwt.WithValidMethods([]string{gojwt.SigningMethodHS256.Alg()}),
		gojwt.WithExpirationRequired(),
		gojwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return "", fmt.Errorf("%s: %w: %v", op, ErrInvalidToken, err)
	}

	if claims.Scope != expectedScope {
		return "", fmt.Errorf("%s: %w: scope %q, want %q", op, ErrInvalidToken, claims.Scope, expectedScope)
	}

	if claims.Subject == "" {
		return "", fmt.Errorf("%s: %w: missing subject", op, ErrInvalidToken)
	}

	return claims.Subject, nil
}

func (m *Manager) issue(subject, scope string) (string, error) {
	const op = "jwt.issue"

	now := m.now()

	claims := Claims{
		Scope: scope,
		RegisteredClaims: gojwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   subject,
			IssuedAt:  gojwt.NewNumericDate(now),
			ExpiresAt: gojwt.NewNumericDate(now.Add(m.ttls[scope])),
		},
	}

	signed, err := gojwt.NewWithClaims(gojwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return signed, nil
}

func orDefault(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}
