package verify

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"messenger_auth/internal/auth"
	"messenger_auth/internal/lib/api/request"
	resp "messenger_auth/internal/lib/api/response"
	sl "messenger_auth/internal/lib/logger"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
)

type Response struct {
	resp.Response
	Message string `json:"message"`
}

type EmailConfirmer interface {
	ConfirmEmail(ctx context.Context, token string) (alreadyConfirmed bool, err error)
}

// New serves GET /confirmed_email/{token}.
func New(log *slog.Logger, authService EmailConfirmer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.verify.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		token := chi.URLParam(r, "token")
		if token == "" {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.Error("missing token"))

			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), request.Timeout)
		defer cancel()

		already, err := authService.ConfirmEmail(ctx, token)
		if err != nil {
			switch {
			case errors.Is(err, auth.ErrInvalidToken):
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, resp.Error("invalid or expired token"))
			case errors.Is(err, auth.ErrVerificationFailed):
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, resp.Error("verification error"))
			default:
				log.Error("failed to confirm email", sl.Err(err))

				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, resp.Error("internal error"))
			}

			return
		}

		msg := "Email confirmed"
		if already {
			msg = "Your email is already confirmed"
		}

		render.JSON(w, r, Response{Response: resp.OK(), Message: msg})
	}
}
