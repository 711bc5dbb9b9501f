package passwordResetConfirm

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
	"github.com/go-playground/validator/v10"
)

type Request struct {
	Pass        string `json:"password" validate:"required,min=6,max=64"`
	ConfirmPass string `json:"confirm_password" validate:"required"`
}

type PasswordResetter interface {
	ResetPassword(ctx context.Context, token, password, confirm string) error
}

// New serves POST /password_reset_confirm/{token}.
func New(
	log *slog.Logger,
	validate *validator.Validate,
	authService PasswordResetter,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.passwordResetConfirm.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		token := chi.URLParam(r, "token")

		var req Request
		if !request.Decode(w, r, log, validate, &req) {
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), request.Timeout)
		defer cancel()

		err := authService.ResetPassword(ctx, token, req.Pass, req.ConfirmPass)
		if err != nil {
			switch {
			case errors.Is(err, auth.ErrPasswordMismatch):
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, resp.Error("passwords do not match"))
			case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrVerificationFailed):
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, resp.Error("invalid token or user does not exist"))
			default:
				log.Error("failed to reset password", sl.Err(err))

				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, resp.Error("internal error"))
			}

			return
		}

		log.Info("password reset")

		render.JSON(w, r, resp.OK())
	}
}
