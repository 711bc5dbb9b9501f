package me

import (
	"net/http"

	resp "messenger_auth/internal/lib/api/response"
	"messenger_auth/internal/middleware/authenticate"

	"github.com/go-chi/render"
)

type Response struct {
	resp.Response
	User resp.User `json:"user"`
}

// New must be mounted behind the authenticate middleware.
func New() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		acc, ok := authenticate.Account(r.Context())
		if !ok {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, resp.Error("not authenticated"))

			return
		}

		render.JSON(w, r, Response{Response: resp.OK(), User: resp.UserView(acc)})
	}
}
