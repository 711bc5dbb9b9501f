package request

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	resp "messenger_auth/internal/lib/api/response"
	sl "messenger_auth/internal/lib/logger"

	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
)

// Timeout bounds every flow started by a handler.
const Timeout = 5 * time.Second

// * Decode reads a JSON body into dst and validates it. On failure it has
// already written a 400 response and returns false.
func Decode(w http.ResponseWriter, r *http.Request, log *slog.Logger, validate *validator.Validate, dst any) bool {
	err := render.DecodeJSON(r.Body, dst)
	if errors.Is(err, io.EOF) {
		log.Error("request body is empty")

		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, resp.Error("empty request"))

		return false
	}
	if err != nil {
		log.Error("failed to decode request body", sl.Err(err))

		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, resp.Error("failed to decode request"))

		return false
	}

	log.Debug("request body decoded")

	if err := validate.Struct(dst); err != nil {
		var validateErr validator.ValidationErrors
		if !errors.As(err, &validateErr) {
			log.Error("failed to validate request", sl.Err(err))

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.Error("internal error"))

			return false
		}

		log.Info("invalid request", sl.Err(err))

		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, resp.ValidationError(validateErr))

		return false
	}

	return true
}

// BearerToken extracts the credentials of an "Authorization: Bearer" header.
func BearerToken(r *http.Request) (string, bool) {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}

	token = strings.TrimSpace(token)

	return token, token != ""
}
