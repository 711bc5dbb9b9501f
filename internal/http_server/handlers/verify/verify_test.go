package verify

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"messenger_auth/internal/auth"

	"github.com/go-chi/chi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubConfirmer struct {
	already bool
	err     error
}

func (s stubConfirmer) ConfirmEmail(context.Context, string) (bool, error) {
	return s.already, s.err
}

func serve(t *testing.T, svc EmailConfirmer) *httptest.ResponseRecorder {
	t.Helper()

	router := chi.NewRouter()
	router.Get("/auth/confirmed_email/{token}", New(slog.New(slog.NewTextHandler(io.Discard, nil)), svc))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/auth/confirmed_email/tok", nil))

	return w
}

func TestVerifyHandler(t *testing.T) {
	w := serve(t, stubConfirmer{})
	require.Equal(t, http.StatusOK, w.Code)

	var got Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "Email confirmed", got.Message)

	w = serve(t, stubConfirmer{already: true})
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "Your email is already confirmed", got.Message)

	assert.Equal(t, http.StatusBadRequest, serve(t, stubConfirmer{err: auth.ErrInvalidToken}).Code)
	assert.Equal(t, http.StatusBadRequest, serve(t, stubConfirmer{err: auth.ErrVerificationFailed}).Code)
}
