package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"messenger_auth/internal/config"
	"messenger_auth/internal/models"
	"messenger_auth/internal/storage"
	"messenger_auth/internal/storage/postgres/migrations"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

const uniqueViolation = "23505"

type PostgresRepo struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, cfg *config.Config) (*PostgresRepo, error) {
	return Connect(ctx, dsn(cfg))
}

func Connect(ctx context.Context, dsn string) (*PostgresRepo, error) {
	const op = "storage.postgres.Connect"

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse config: %w", op, err)
	}

	poolConfig.MaxConns = 10
	poolConfig.MinConns = 2
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = time.Minute * 30

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to create pool: %w", op, err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%s: failed to ping database: %w", op, err)
	}

	return &PostgresRepo{pool: pool}, nil
}

// * Migrate applies the embedded goose migrations
func (r *PostgresRepo) Migrate(ctx context.Context) error {
	const op = "storage.postgres.Migrate"

	db := stdlib.OpenDBFromPool(r.pool)
	defer db.Close()

	goose.SetBaseFS(migrations.FS)

	if err := goose.SetDialect("pgx"); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := goose.UpContext(ctx, db, "."); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (r *PostgresRepo) SaveUser(ctx context.Context, email, username, passHash string) (int64, error) {
	const op = "storage.postgres.SaveUser"

	query := `
		INSERT INTO users (email, username, password_hash)
		VALUES ($1, $2, $3)
		RETURNING id;
	`

	var id int64

	err := r.pool.QueryRow(ctx, query, email, username, passHash).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return 0, storage.ErrUserExists
		}

		return 0, fmt.Errorf("%s: failed to save user: %w", op, err)
	}

	return id, nil
}

const selectUser = `
	SELECT id, username, email, password_hash, confirmed,
	       COALESCE(totp_secret, ''), COALESCE(avatar, ''), refresh_token, created_at
	FROM users
`

func (r *PostgresRepo) User(ctx context.Context, email string) (models.Account, error) {
	const op = "storage.postgres.User"

	return r.scanUser(r.pool.QueryRow(ctx, selectUser+`WHERE email = $1;`, email), op)
}

func (r *PostgresRepo) UserByID(ctx context.Context, id int64) (models.Account, error) {
	const op = "storage.postgres.UserByID"

	return r.scanUser(r.pool.QueryRow(ctx, selectUser+`WHERE id = $1;`, id), op)
}

func (r *PostgresRepo) SetEmailConfirmed(ctx context.Context, id int64) error {
	const op = "storage.postgres.SetEmailConfirmed"

	return r.execOne(ctx, op, `UPDATE users SET confirmed = TRUE WHERE id = $1`, id)
}

func (r *PostgresRepo) SetTOTPSecret(ctx context.Context, id int64, secret string) error {
	const op = "storage.postgres.SetTOTPSecret"

	return r.execOne(ctx, op, `UPDATE users SET totp_secret = $2 WHERE id = $1`, id, secret)
}

// * UpdatePassword stores the new hash and revokes the refresh token in the same statement
func (r *PostgresRepo) UpdatePassword(ctx context.Context, id int64, passHash string) error {
	const op = "storage.postgres.UpdatePassword"

	return r.execOne(ctx, op, `UPDATE users SET password_hash = $2, refresh_token = NULL WHERE id = $1`, id, passHash)
}

func (r *PostgresRepo) SetRefreshToken(ctx context.Context, id int64, token *string) error {
	const op = "storage.postgres.SetRefreshToken"

	return r.execOne(ctx, op, `UPDATE users SET refresh_token = $2::text WHERE id = $1`, id, token)
}

// * SwapRefreshToken is a compare-and-swap on refresh_token. The row lock
// serializes concurrent callers; a mismatch clears the stored token.
func (r *PostgresRepo) SwapRefreshToken(ctx context.Context, id int64, current string, next *string) (bool, error) {
	const op = "storage.postgres.SwapRefreshToken"

	query := `
		WITH prev AS (
			SELECT id, refresh_token FROM users WHERE id = $1 FOR UPDATE
		)
		UPDATE users u
		SET refresh_token = CASE WHEN prev.refresh_token = $2::text THEN $3::text ELSE NULL END
		FROM prev
		WHERE u.id = prev.id
		RETURNING COALESCE(prev.refresh_token = $2::text, FALSE);
	`

	var matched bool

	err := r.pool.QueryRow(ctx, query, id, current, next).Scan(&matched)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, storage.ErrUserNotFound
		}

		return false, fmt.Errorf("%s: %w", op, err)
	}

	return matched, nil
}

func (r *PostgresRepo) Close() {
	r.pool.Close()
}

func (r *PostgresRepo) scanUser(row pgx.Row, op string) (models.Account, error) {
	var u models.Account

	err := row.Scan(
		&u.ID,
		&u.Username,
		&u.Email,
		&u.PassHash,
		&u.Confirmed,
		&u.TOTPSecret,
		&u.Avatar,
		&u.RefreshToken,
		&u.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Account{}, storage.ErrUserNotFound
		}

		return models.Account{}, fmt.Errorf("%s: %w", op, err)
	}

	return u, nil
}

func (r *PostgresRepo) execOne(ctx context.Context, op, query string, args ...any) error {
	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if tag.RowsAffected() == 0 {
		return storage.ErrUserNotFound
	}

	return nil
}

// * dsn builds the connection string from config
func dsn(cfg *config.Config) string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s database=%s sslmode=%s",
		cfg.Postgres.Host,
		cfg.Postgres.Port,
		cfg.Postgres.User,
		cfg.Postgres.Password,
		cfg.Postgres.DBName,
		cfg.Postgres.SSLMode,
	)
}
