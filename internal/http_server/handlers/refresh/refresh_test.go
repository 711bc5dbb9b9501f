package refresh

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"messenger_auth/internal/auth"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
)

type recordingRefresher struct {
	got string
	err error
}

func (r *recordingRefresher) Refresh(_ context.Context, token string) (auth.TokenPair, error) {
	r.got = token
	return auth.TokenPair{AccessToken: "at", RefreshToken: "rt2"}, r.err
}

func TestRefreshTokenSources(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("bearer header", func(t *testing.T) {
		svc := &recordingRefresher{}
		r := httptest.NewRequest(http.MethodPost, "/auth/refresh_token", nil)
		r.Header.Set("Authorization", "Bearer rt1")
		w := httptest.NewRecorder()

		New(log, validator.New(), svc).ServeHTTP(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "rt1", svc.got)
	})

	t.Run("json body", func(t *testing.T) {
		svc := &recordingRefresher{}
		r := httptest.NewRequest(http.MethodPost, "/auth/refresh_token", strings.NewReader(`{"refresh_token":"rt1"}`))
		w := httptest.NewRecorder()

		New(log, validator.New(), svc).ServeHTTP(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "rt1", svc.got)
	})

	t.Run("missing", func(t *testing.T) {
		svc := &recordingRefresher{}
		r := httptest.NewRequest(http.MethodPost, "/auth/refresh_token", nil)
		w := httptest.NewRecorder()

		New(log, validator.New(), svc).ServeHTTP(w, r)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Empty(t, svc.got)
	})

	t.Run("reused token", func(t *testing.T) {
		svc := &recordingRefresher{err: auth.ErrInvalidCredentials}
		r := httptest.NewRequest(http.MethodPost, "/auth/refresh_token", nil)
		r.Header.Set("Authorization", "Bearer old")
		w := httptest.NewRecorder()

		New(log, validator.New(), svc).ServeHTTP(w, r)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}
