package authenticate

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"messenger_auth/internal/auth"
	"messenger_auth/internal/lib/api/request"
	resp "messenger_auth/internal/lib/api/response"
	sl "messenger_auth/internal/lib/logger"
	"messenger_auth/internal/models"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
)

type ctxKey struct{}

type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (models.Account, error)
}

// * New rejects requests without a valid access token and stores the
// resolved account in the request context.
func New(log *slog.Logger, authService Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			const op = "middleware.authenticate"

			log := log.With(
				slog.String("op", op),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)

			token, ok := request.BearerToken(r)
			if !ok {
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, resp.Error("missing bearer token"))

				return
			}

			ctx, cancel := context.WithTimeout(r.Context(), request.Timeout)
			defer cancel()

			acc, err := authService.Authenticate(ctx, token)
			if err != nil {
				if errors.Is(err, auth.ErrInvalidToken) || errors.Is(err, auth.ErrInvalidCredentials) {
					render.Status(r, http.StatusUnauthorized)
					render.JSON(w, r, resp.Error("could not validate credentials"))

					return
				}

				log.Error("failed to authenticate", sl.Err(err))

				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, resp.Error("internal error"))

				return
			}

			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, acc)))
		}

		return http.HandlerFunc(fn)
	}
}

func Account(ctx context.Context) (models.Account, bool) {
	acc, ok := ctx.Value(ctxKey{}).(models.Account)
	return acc, ok
}
