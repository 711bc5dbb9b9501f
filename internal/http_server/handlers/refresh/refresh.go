package refresh

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
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (auth.TokenPair, error)
}

// New accepts the refresh token as a bearer credential or in the JSON body.
func New(
	log *slog.Logger,
	validate *validator.Validate,
	authService Refresher,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.refresh.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		token, ok := request.BearerToken(r)
		if !ok {
			var req Request
			if !request.Decode(w, r, log, validate, &req) {
				return
			}
			token = req.RefreshToken
		}

		ctx, cancel := context.WithTimeout(r.Context(), request.Timeout)
		defer cancel()

		pair, err := authService.Refresh(ctx, token)
		if err != nil {
			if errors.Is(err, auth.ErrInvalidToken) || errors.Is(err, auth.ErrInvalidCredentials) {
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, resp.Error("invalid refresh token"))

				return
			}

			log.Error("failed to refresh tokens", sl.Err(err))

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.Error("internal error"))

			return
		}

		log.Info("tokens refreshed successfully")

		render.JSON(w, r, resp.TokenPair(pair.AccessToken, pair.RefreshToken))
	}
}
