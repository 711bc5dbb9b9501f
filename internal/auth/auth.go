package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"messenger_auth/internal/lib/jwt"
	sl "messenger_auth/internal/lib/logger"
	"messenger_auth/internal/lib/metrics"
	"messenger_auth/internal/models"
	"messenger_auth/internal/storage"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserExists         = errors.New("user already exists")
	ErrUserNotFound       = errors.New("user not found")
	ErrEmailNotVerified   = errors.New("email not verified")
	ErrInvalid2FA         = errors.New("invalid 2FA token")
	Err2FARequired        = errors.New("2FA token required")
	ErrVerificationFailed = errors.New("verification error")
	ErrPasswordMismatch   = errors.New("passwords do not match")
	ErrInvalidToken       = jwt.ErrInvalidToken
)

type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    time.Duration
}

type UserRepo interface {
	SaveUser(ctx context.Context, email, username, passHash string) (int64, error)
	User(ctx context.Context, email string) (models.Account, error)
	UserByID(ctx context.Context, id int64) (models.Account, error)
	SetEmailConfirmed(ctx context.Context, id int64) error
	SetTOTPSecret(ctx context.Context, id int64, secret string) error
	// UpdatePassword must clear the refresh token in the same write.
	UpdatePassword(ctx context.Context, id int64, passHash string) error
}

// UserCache holds account snapshots. Readers fill it with PutIfAbsent so a
// snapshot loaded before a write can never replace the writer's Put.
type UserCache interface {
	Get(ctx context.Context, email string) (models.Account, bool, error)
	PutIfAbsent(ctx context.Context, email string, acc models.Account, ttl time.Duration) (bool, error)
	Put(ctx context.Context, email string, acc models.Account, ttl time.Duration) error
	Delete(ctx context.Context, email string) error
}

type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, digest string) bool
	NeedsRehash(digest string) bool
}

type TokenManager interface {
	NewAccessToken(subject string) (string, error)
	NewRefreshToken(subject string) (string, error)
	NewEmailToken(subject string) (string, error)
	NewResetToken(subject string) (string, error)
	Parse(token, expectedScope string) (string, error)
	AccessTTL() time.Duration
}

type TwoFactor interface {
	GenerateSecret() (string, error)
	Verify(secret, code string) bool
	ProvisioningURI(secret, account string) string
}

type SessionStore interface {
	Rotate(ctx context.Context, accountID int64, token *string) error
	Validate(ctx context.Context, accountID int64, presented string) (bool, error)
	Exchange(ctx context.Context, accountID int64, presented, next string) (bool, error)
	Revoke(ctx context.Context, accountID int64, presented string) (bool, error)
}

type Notifier interface {
	SendConfirmation(email, username, token string)
	SendPasswordReset(email, token string)
}

type Deps struct {
	Users    UserRepo
	Cache    UserCache
	Hasher   PasswordHasher
	Tokens   TokenManager
	TOTP     TwoFactor
	Sessions SessionStore
	Notifier Notifier
	CacheTTL time.Duration
}

type Auth struct {
	log      *slog.Logger
	users    UserRepo
	cache    UserCache
	hasher   PasswordHasher
	tokens   TokenManager
	totp     TwoFactor
	sessions SessionStore
	notifier Notifier
	cacheTTL time.Duration
}

func New(log *slog.Logger, deps Deps) *Auth {
	return &Auth{
		log:      log,
		users:    deps.Users,
		cache:    deps.Cache,
		hasher:   deps.Hasher,
		tokens:   deps.Tokens,
		totp:     deps.TOTP,
		sessions: deps.Sessions,
		notifier: deps.Notifier,
		cacheTTL: deps.CacheTTL,
	}
}

// * Signup creates an unconfirmed account and queues the confirmation email.
// No tokens are issued here.
func (a *Auth) Signup(ctx context.Context, username, email, password string) (models.Account, error) {
	const op = "auth.Signup"

	log := a.log.With(slog.String("op", op))

	_, err := a.users.User(ctx, email)
	switch {
	case err == nil:
		log.Warn("user already exists")
		return models.Account{}, ErrUserExists
	case !errors.Is(err, storage.ErrUserNotFound):
		log.Error("failed to look up user", sl.Err(err))
		return models.Account{}, fmt.Errorf("%s: %w", op, err)
	}

	passHash, err := a.hasher.Hash(password)
	if err != nil {
		log.Error("failed to generate password hash", sl.Err(err))
		return models.Account{}, fmt.Errorf("%s: %w", op, err)
	}

	id, err := a.users.SaveUser(ctx, email, username, passHash)
	if err != nil {
		if errors.Is(err, storage.ErrUserExists) {
			log.Warn("user already exists")
			return models.Account{}, ErrUserExists
		}

		log.Error("failed to save user", sl.Err(err))
		return models.Account{}, fmt.Errorf("%s: %w", op, err)
	}

	acc, err := a.users.UserByID(ctx, id)
	if err != nil {
		log.Error("failed to load saved user", sl.Err(err))
		return models.Account{}, fmt.Errorf("%s: %w", op, err)
	}

	a.sendConfirmation(log, acc)

	log.Info("user registered", slog.Int64("uid", id))

	return acc, nil
}

// * Login checks the password and issues a fresh token pair.
// Accounts with 2FA enabled must use Login2FA.
func (a *Auth) Login(ctx context.Context, email, password string) (TokenPair, error) {
	const op = "auth.Login"

	log := a.log.With(slog.String("op", op))

	acc, err := a.checkPassword(ctx, log, email, password)
	if err != nil {
		return TokenPair{}, err
	}

	if acc.TwoFactorEnabled() {
		log.Info("2FA required", slog.Int64("uid", acc.ID))
		return TokenPair{}, Err2FARequired
	}

	return a.startSession(ctx, log, acc, password)
}

// * Login2FA requires both the password and a current TOTP code.
func (a *Auth) Login2FA(ctx context.Context, email, password, code string) (TokenPair, error) {
	const op = "auth.Login2FA"

	log := a.log.With(slog.String("op", op))

	acc, err := a.checkPassword(ctx, log, email, password)
	if err != nil {
		return TokenPair{}, err
	}

	if !acc.TwoFactorEnabled() || !a.totp.Verify(acc.TOTPSecret, code) {
		log.Info("invalid 2FA token", slog.Int64("uid", acc.ID))
		return TokenPair{}, ErrInvalid2FA
	}

	return a.startSession(ctx, log, acc, password)
}

// * Refresh exchanges a refresh token for a new pair. The presented token
// must equal the stored one; any mismatch revokes the session.
func (a *Auth) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	const op = "auth.Refresh"

	log := a.log.With(slog.String("op", op))

	email, err := a.tokens.Parse(refreshToken, jwt.ScopeRefresh)
	if err != nil {
		log.Info("invalid refresh token", sl.Err(err))
		return TokenPair{}, ErrInvalidToken
	}

	acc, err := a.users.User(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			log.Warn("refresh for unknown user")
			return TokenPair{}, ErrInvalidCredentials
		}

		log.Error("failed to load user", sl.Err(err))
		return TokenPair{}, fmt.Errorf("%s: %w", op, err)
	}

	pair, err := a.issuePair(acc.Email)
	if err != nil {
		log.Error("failed to issue tokens", sl.Err(err))
		return TokenPair{}, fmt.Errorf("%s: %w", op, err)
	}

	ok, err := a.sessions.Exchange(ctx, acc.ID, refreshToken, pair.RefreshToken)
	if err != nil {
		log.Error("failed to rotate refresh token", sl.Err(err))
		return TokenPair{}, fmt.Errorf("%s: %w", op, err)
	}

	if !ok {
		log.Warn("refresh token reuse detected, session revoked", slog.Int64("uid", acc.ID))
		metrics.SessionsRevoked.WithLabelValues(metrics.ReasonTokenReuse).Inc()
		return TokenPair{}, ErrInvalidCredentials
	}

	log.Info("refresh successful", slog.Int64("uid", acc.ID))

	return pair, nil
}

// * Logout revokes the session the refresh token belongs to.
func (a *Auth) Logout(ctx context.Context, refreshToken string) error {
	const op = "auth.Logout"

	log := a.log.With(slog.String("op", op))

	email, err := a.tokens.Parse(refreshToken, jwt.ScopeRefresh)
	if err != nil {
		log.Info("invalid refresh token", sl.Err(err))
		return ErrInvalidToken
	}

	acc, err := a.users.User(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return ErrInvalidCredentials
		}

		log.Error("failed to load user", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	ok, err := a.sessions.Revoke(ctx, acc.ID, refreshToken)
	if err != nil {
		log.Error("failed to delete refresh token", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	if !ok {
		log.Warn("stale refresh token on logout, session revoked", slog.Int64("uid", acc.ID))
		metrics.SessionsRevoked.WithLabelValues(metrics.ReasonTokenReuse).Inc()
		return ErrInvalidCredentials
	}

	metrics.SessionsRevoked.WithLabelValues(metrics.ReasonLogout).Inc()

	log.Info("logout successful", slog.Int64("uid", acc.ID))

	return nil
}

// * Enable2FA stores a new TOTP secret. The secret is returned only once.
func (a *Auth) Enable2FA(ctx context.Context, accountID int64) (secret string, uri string, err error) {
	const op = "auth.Enable2FA"

	log := a.log.With(slog.String("op", op), slog.Int64("uid", accountID))

	acc, err := a.users.UserByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return "", "", ErrUserNotFound
		}

		log.Error("failed to load user", sl.Err(err))
		return "", "", fmt.Errorf("%s: %w", op, err)
	}

	secret, err = a.totp.GenerateSecret()
	if err != nil {
		log.Error("failed to generate totp secret", sl.Err(err))
		return "", "", fmt.Errorf("%s: %w", op, err)
	}

	if err := a.users.SetTOTPSecret(ctx, acc.ID, secret); err != nil {
		log.Error("failed to save totp secret", sl.Err(err))
		return "", "", fmt.Errorf("%s: %w", op, err)
	}

	a.repopulate(ctx, log, acc.ID, acc.Email)

	log.Info("2FA enabled")

	return secret, a.totp.ProvisioningURI(secret, acc.Email), nil
}

// * ConfirmEmail marks the account confirmed. Confirming twice is a no-op
// reported through alreadyConfirmed.
func (a *Auth) ConfirmEmail(ctx context.Context, token string) (alreadyConfirmed bool, err error) {
	const op = "auth.ConfirmEmail"

	log := a.log.With(slog.String("op", op))

	email, err := a.tokens.Parse(token, jwt.ScopeEmailConfirm)
	if err != nil {
		log.Info("invalid confirmation token", sl.Err(err))
		return false, ErrInvalidToken
	}

	acc, err := a.users.User(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return false, ErrVerificationFailed
		}

		log.Error("failed to load user", sl.Err(err))
		return false, fmt.Errorf("%s: %w", op, err)
	}

	if acc.Confirmed {
		return true, nil
	}

	if err := a.users.SetEmailConfirmed(ctx, acc.ID); err != nil {
		log.Error("failed to confirm email", sl.Err(err))
		return false, fmt.Errorf("%s: %w", op, err)
	}

	a.repopulate(ctx, log, acc.ID, acc.Email)

	log.Info("email confirmed", slog.Int64("uid", acc.ID))

	return false, nil
}

// * ResendConfirmation queues a new confirmation email for an unconfirmed
// account. Unknown and confirmed addresses are ignored silently.
func (a *Auth) ResendConfirmation(ctx context.Context, email string) error {
	const op = "auth.ResendConfirmation"

	log := a.log.With(slog.String("op", op))

	acc, err := a.userByEmail(ctx, log, email)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			log.Info("resend requested for unknown address")
			return nil
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	if acc.Confirmed {
		return nil
	}

	a.sendConfirmation(log, acc)

	return nil
}

// * RequestPasswordReset queues a reset link for confirmed accounts. The
// result never reveals whether the address is registered.
func (a *Auth) RequestPasswordReset(ctx context.Context, email string) error {
	const op = "auth.RequestPasswordReset"

	log := a.log.With(slog.String("op", op))

	acc, err := a.userByEmail(ctx, log, email)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			log.Info("reset requested for unknown address")
			return nil
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	if !acc.Confirmed {
		log.Info("reset requested for unconfirmed account", slog.Int64("uid", acc.ID))
		return nil
	}

	token, err := a.tokens.NewResetToken(acc.Email)
	if err != nil {
		log.Error("failed to generate reset token", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	a.notifier.SendPasswordReset(acc.Email, token)

	return nil
}

// * ResetPassword sets a new password and revokes the current session.
func (a *Auth) ResetPassword(ctx context.Context, token, password, confirm string) error {
	const op = "auth.ResetPassword"

	log := a.log.With(slog.String("op", op))

	if password != confirm {
		return ErrPasswordMismatch
	}

	email, err := a.tokens.Parse(token, jwt.ScopePasswordReset)
	if err != nil {
		log.Info("invalid reset token", sl.Err(err))
		return ErrInvalidToken
	}

	acc, err := a.users.User(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return ErrVerificationFailed
		}

		log.Error("failed to load user", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	passHash, err := a.hasher.Hash(password)
	if err != nil {
		log.Error("failed to generate password hash", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := a.users.UpdatePassword(ctx, acc.ID, passHash); err != nil {
		log.Error("failed to update password", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	a.repopulate(ctx, log, acc.ID, acc.Email)

	metrics.SessionsRevoked.WithLabelValues(metrics.ReasonPasswordReset).Inc()

	log.Info("password reset, session revoked", slog.Int64("uid", acc.ID))

	return nil
}

// * Authenticate resolves an access token to its account.
func (a *Auth) Authenticate(ctx context.Context, accessToken string) (models.Account, error) {
	const op = "auth.Authenticate"

	log := a.log.With(slog.String("op", op))

	email, err := a.tokens.Parse(accessToken, jwt.ScopeAccess)
	if err != nil {
		log.Debug("invalid access token", sl.Err(err))
		return models.Account{}, ErrInvalidToken
	}

	acc, err := a.userByEmail(ctx, log, email)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return models.Account{}, ErrInvalidCredentials
		}

		return models.Account{}, fmt.Errorf("%s: %w", op, err)
	}

	return acc, nil
}

func (a *Auth) checkPassword(ctx context.Context, log *slog.Logger, email, password string) (models.Account, error) {
	acc, err := a.userByEmail(ctx, log, email)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			log.Info("user not found")
			return models.Account{}, ErrInvalidCredentials
		}

		return models.Account{}, err
	}

	if !a.hasher.Verify(password, acc.PassHash) {
		log.Info("invalid password", slog.Int64("uid", acc.ID))
		return models.Account{}, ErrInvalidCredentials
	}

	if !acc.Confirmed {
		log.Info("email not confirmed", slog.Int64("uid", acc.ID))
		return models.Account{}, ErrEmailNotVerified
	}

	return acc, nil
}

// startSession issues a pair and makes its refresh token the only valid one.
// A password hashed with outdated costs is upgraded first.
func (a *Auth) startSession(ctx context.Context, log *slog.Logger, acc models.Account, password string) (TokenPair, error) {
	if a.hasher.NeedsRehash(acc.PassHash) {
		a.rehash(ctx, log, acc, password)
	}

	pair, err := a.issuePair(acc.Email)
	if err != nil {
		log.Error("failed to issue tokens", sl.Err(err))
		return TokenPair{}, err
	}

	if err := a.sessions.Rotate(ctx, acc.ID, &pair.RefreshToken); err != nil {
		log.Error("failed to save refresh token", sl.Err(err))
		return TokenPair{}, err
	}

	log.Info("user logged in successfully", slog.Int64("uid", acc.ID))

	return pair, nil
}

func (a *Auth) rehash(ctx context.Context, log *slog.Logger, acc models.Account, password string) {
	passHash, err := a.hasher.Hash(password)
	if err != nil {
		log.Warn("failed to rehash password", sl.Err(err))
		return
	}

	if err := a.users.UpdatePassword(ctx, acc.ID, passHash); err != nil {
		log.Warn("failed to store rehashed password", sl.Err(err))
		return
	}

	a.repopulate(ctx, log, acc.ID, acc.Email)
}

func (a *Auth) issuePair(subject string) (TokenPair, error) {
	access, err := a.tokens.NewAccessToken(subject)
	if err != nil {
		return TokenPair{}, err
	}

	refresh, err := a.tokens.NewRefreshToken(subject)
	if err != nil {
		return TokenPair{}, err
	}

	return TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    a.tokens.AccessTTL(),
	}, nil
}

func (a *Auth) sendConfirmation(log *slog.Logger, acc models.Account) {
	token, err := a.tokens.NewEmailToken(acc.Email)
	if err != nil {
		log.Error("failed to generate confirmation token", sl.Err(err))
		return
	}

	a.notifier.SendConfirmation(acc.Email, acc.Username, token)
}

// userByEmail is the single cache-aside read path. Cache failures fall
// through to the record store.
func (a *Auth) userByEmail(ctx context.Context, log *slog.Logger, email string) (models.Account, error) {
	acc, ok, err := a.cache.Get(ctx, email)
	if err != nil {
		log.Warn("cache read failed", sl.Err(err))
	}
	if ok {
		return acc, nil
	}

	acc, err = a.users.User(ctx, email)
	if err != nil {
		if !errors.Is(err, storage.ErrUserNotFound) {
			log.Error("failed to get user", sl.Err(err))
		}
		return models.Account{}, err
	}

	if _, err := a.cache.PutIfAbsent(ctx, email, acc, a.cacheTTL); err != nil {
		log.Warn("cache write failed", sl.Err(err))
	}

	return acc, nil
}

// repopulate runs after every committed write to a cached field. The row is
// re-read after the commit and overwrites whatever a concurrent reader put.
// If that fails the entry is dropped instead.
func (a *Auth) repopulate(ctx context.Context, log *slog.Logger, id int64, email string) {
	acc, err := a.users.UserByID(ctx, id)
	if err == nil {
		if err = a.cache.Put(ctx, email, acc, a.cacheTTL); err == nil {
			return
		}
	}

	log.Warn("cache refresh failed", sl.Err(err))

	if err := a.cache.Delete(ctx, email); err != nil {
		log.Warn("cache invalidation failed", sl.Err(err))
	}
}
