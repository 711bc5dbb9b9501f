package passwordReset

import (
	"context"
	"log/slog"
	"net/http"

	"messenger_auth/internal/lib/api/request"
	resp "messenger_auth/internal/lib/api/response"
	sl "messenger_auth/internal/lib/logger"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
)

type Request struct {
	Email string `json:"email" validate:"required,email"`
}

type Response struct {
	resp.Response
	Message string `json:"message"`
}

type ResetRequester interface {
	RequestPasswordReset(ctx context.Context, email string) error
}

func New(
	log *slog.Logger,
	validate *validator.Validate,
	authService ResetRequester,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.passwordReset.New"

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

		if err := authService.RequestPasswordReset(ctx, req.Email); err != nil {
			log.Error("failed to request password reset", sl.Err(err))

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.Error("internal error"))

			return
		}

		render.JSON(w, r, Response{
			Response: resp.OK(),
			Message:  "If the account exists, a reset link has been sent.",
		})
	}
}
