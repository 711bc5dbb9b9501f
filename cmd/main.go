package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"messenger_auth/internal/auth"
	twoFactorAuth "messenger_auth/internal/auth/2fa"
	"messenger_auth/internal/auth/refresh"
	"messenger_auth/internal/config"
	"messenger_auth/internal/http_server/handlers/enable2fa"
	"messenger_auth/internal/http_server/handlers/login"
	"messenger_auth/internal/http_server/handlers/login2fa"
	"messenger_auth/internal/http_server/handlers/logout"
	"messenger_auth/internal/http_server/handlers/me"
	passwordReset "messenger_auth/internal/http_server/handlers/password_reset"
	passwordResetConfirm "messenger_auth/internal/http_server/handlers/password_reset_confirm"
	refreshHandler "messenger_auth/internal/http_server/handlers/refresh"
	"messenger_auth/internal/http_server/handlers/register"
	resendEmail "messenger_auth/internal/http_server/handlers/resend_verification_email"
	"messenger_auth/internal/http_server/handlers/verify"
	"messenger_auth/internal/lib/jwt"
	sl "messenger_auth/internal/lib/logger"
	"messenger_auth/internal/lib/metrics"
	"messenger_auth/internal/lib/password"
	"messenger_auth/internal/lib/verification"
	"messenger_auth/internal/middleware/authenticate"
	"messenger_auth/internal/rabbitmq"
	"messenger_auth/internal/storage/memory"
	"messenger_auth/internal/storage/postgres"
	"messenger_auth/internal/storage/redis"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

type repository interface {
	auth.UserRepo
	refresh.Repo
}

func main() {
	cfg := config.MustLoad("./config/config.yaml")

	log := setupLogger(cfg.Env)

	log.Info("starting auth service", slog.String("env", cfg.Env), slog.String("storage", cfg.Storage))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("auth service failed", sl.Err(err))
		os.Exit(1)
	}

	log.Info("Main service stopped")
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	repo, closeRepo, err := setupStorage(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeRepo()

	cache, err := redis.New(ctx, cfg.Cache.Address, cfg.Cache.Password, cfg.Cache.DB)
	if err != nil {
		return err
	}
	defer cache.Close()

	if err := cache.Clear(ctx); err != nil {
		return err
	}

	msgBroker, err := rabbitmq.New(cfg.RabbitMQ.URL, cfg.RabbitMQ.QueueName)
	if err != nil {
		return err
	}
	defer msgBroker.Close()

	hasher, err := password.New(password.Params{
		Time:        cfg.Password.Time,
		Memory:      cfg.Password.Memory,
		Parallelism: cfg.Password.Parallelism,
	})
	if err != nil {
		return err
	}

	tokens, err := jwt.New(cfg.SecretKey, jwt.TTLs{
		Access:        cfg.Tokens.AccessTokenTTL,
		Refresh:       cfg.Tokens.RefreshTokenTTL,
		EmailConfirm:  cfg.Tokens.EmailTokenTTL,
		PasswordReset: cfg.Tokens.ResetTokenTTL,
	})
	if err != nil {
		return err
	}

	notifier := verification.New(log, msgBroker, cfg.PublicURL)
	defer notifier.Wait()

	authService := auth.New(log, auth.Deps{
		Users:    repo,
		Cache:    cache,
		Hasher:   hasher,
		Tokens:   tokens,
		TOTP:     twoFactorAuth.New(cfg.TOTP.Issuer),
		Sessions: refresh.New(repo),
		Notifier: notifier,
		CacheTTL: cfg.Cache.TTL,
	})

	srv := &http.Server{
		Addr:         cfg.HTTPServer.Address,
		Handler:      setupRouter(log, authService, cfg.HTTPServer.MetricsPath),
		ReadTimeout:  cfg.HTTPServer.Timeout,
		WriteTimeout: cfg.HTTPServer.Timeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("HTTP server is running", slog.String("address", cfg.HTTPServer.Address))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
		log.Info("Shutdown signal received")
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	log.Info("Shutting down HTTP server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server shutdown error", sl.Err(err))
	} else {
		log.Info("Server stopped gracefully")
	}

	return nil
}

func setupStorage(ctx context.Context, cfg *config.Config) (repository, func(), error) {
	switch cfg.Storage {
	case config.StorageMemory:
		return memory.New(), func() {}, nil
	case config.StoragePostgres:
		repo, err := postgres.New(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}

		if err := repo.Migrate(ctx); err != nil {
			repo.Close()
			return nil, nil, err
		}

		return repo, repo.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage %q", cfg.Storage)
	}
}

func setupRouter(log *slog.Logger, authService *auth.Auth, metricsPath string) *chi.Mux {
	validate := validator.New()

	registry := prometheus.NewRegistry()
	metrics.Register(registry)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)

	r.Handle(metricsPath, metrics.Handler(registry))

	r.Route("/auth", func(r chi.Router) {
		r.Post("/signup", register.New(log, validate, authService))
		r.Post("/login", login.New(log, validate, authService))
		r.Post("/login_2fa", login2fa.New(log, validate, authService))

		refreshTokens := refreshHandler.New(log, validate, authService)
		r.Post("/refresh_token", refreshTokens)
		r.Get("/refresh_token", refreshTokens)

		r.Post("/logout", logout.New(log, validate, authService))
		r.Get("/confirmed_email/{token}", verify.New(log, authService))
		r.Post("/request_email", resendEmail.New(log, validate, authService))
		r.Post("/password_reset", passwordReset.New(log, validate, authService))
		r.Post("/password_reset_confirm/{token}", passwordResetConfirm.New(log, validate, authService))

		r.Group(func(r chi.Router) {
			r.Use(authenticate.New(log, authService))

			r.Post("/enable_2fa", enable2fa.New(log, authService))
			r.Get("/me", me.New())
		})
	})

	return r
}

func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case envLocal:
		log = slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envProd:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	default:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	}

	return log
}
