package enable2fa

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"messenger_auth/internal/auth"
	"messenger_auth/internal/lib/api/request"
	resp "messenger_auth/internal/lib/api/response"
	sl "messenger_auth/internal/lib/logger"
	"messenger_auth/internal/middleware/authenticate"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
)

type Response struct {
	resp.Response
	TOTPSecret      string `json:"totp_secret"`
	ProvisioningURI string `json:"uri"`
}

type TwoFactorEnabler interface {
	Enable2FA(ctx context.Context, accountID int64) (secret string, uri string, err error)
}

// New must be mounted behind the authenticate middleware.
func New(log *slog.Logger, authService TwoFactorEnabler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.enable2fa.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		acc, ok := authenticate.Account(r.Context())
		if !ok {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, resp.Error("not authenticated"))

			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), request.Timeout)
		defer cancel()

		secret, uri, err := authService.Enable2FA(ctx, acc.ID)
		if err != nil {
			if errors.Is(err, auth.ErrUserNotFound) {
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, resp.Error("user not found"))

				return
			}

			log.Error("failed to enable 2FA", sl.Err(err))

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.Error("internal error"))

			return
		}

		render.JSON(w, r, Response{
			Response:        resp.OK(),
			TOTPSecret:      secret,
			ProvisioningURI: uri,
		})
	}
}
