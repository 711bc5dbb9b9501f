package login

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"messenger_auth/internal/auth"
	"messenger_auth/internal/lib/api/request"
	resp "messenger_auth/internal/lib/api/response"
	sl "messenger_auth/internal/lib/logger"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
)

type Request struct {
	Email string `json:"email" validate:"required,email"`
	Pass  string `json:"password" validate:"required"`
}

type Authenticator interface {
	Login(ctx context.Context, email, password string) (auth.TokenPair, error)
}

func New(
	log *slog.Logger,
	validate *validator.Validate,
	authService Authenticator,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.login.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req Request
		if !request.Decode(w, r, log, validate, &req) {
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), request.Timeout)
		defer cancel()

		pair, err := authService.Login(ctx, req.Email, req.Pass)
		if err != nil {
			switch {
			case errors.Is(err, auth.ErrInvalidCredentials):
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, resp.Error("invalid credentials"))
			case errors.Is(err, auth.Err2FARequired):
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, resp.Error("2FA token required, use /auth/login_2fa"))
			case errors.Is(err, auth.ErrEmailNotVerified):
				render.Status(r, http.StatusForbidden)
				render.JSON(w, r, resp.Error("email not confirmed"))
			default:
				log.Error("failed to login user", sl.Err(err))

				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, resp.Error("internal error"))
			}

			return
		}

		render.JSON(w, r, resp.TokenPair(pair.AccessToken, pair.RefreshToken))
	}
}
