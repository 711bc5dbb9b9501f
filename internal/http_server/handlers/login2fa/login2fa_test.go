package login2fa

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"messenger_auth/internal/auth"
	resp "messenger_auth/internal/lib/api/response"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubAuth struct {
	pair auth.TokenPair
	err  error
}

func (s stubAuth) Login2FA(context.Context, string, string, string) (auth.TokenPair, error) {
	return s.pair, s.err
}

func TestLogin2FAHandler(t *testing.T) {
	const body = `{"email":"a@b.io","password":"secret1","token":"123456"}`

	tests := []struct {
		name   string
		body   string
		svc    stubAuth
		status int
	}{
		{
			name:   "success",
			body:   body,
			svc:    stubAuth{pair: auth.TokenPair{AccessToken: "at", RefreshToken: "rt"}},
			status: http.StatusOK,
		},
		{
			name:   "bad credentials",
			body:   body,
			svc:    stubAuth{err: auth.ErrInvalidCredentials},
			status: http.StatusUnauthorized,
		},
		{
			name:   "bad code",
			body:   body,
			svc:    stubAuth{err: auth.ErrInvalid2FA},
			status: http.StatusUnauthorized,
		},
		{
			name:   "unconfirmed",
			body:   body,
			svc:    stubAuth{err: auth.ErrEmailNotVerified},
			status: http.StatusForbidden,
		},
		{
			name:   "store failure",
			body:   body,
			svc:    stubAuth{err: errors.New("boom")},
			status: http.StatusInternalServerError,
		},
		{
			name:   "code not numeric",
			body:   `{"email":"a@b.io","password":"secret1","token":"12a456"}`,
			status: http.StatusBadRequest,
		},
		{
			name:   "code too short",
			body:   `{"email":"a@b.io","password":"secret1","token":"12345"}`,
			status: http.StatusBadRequest,
		},
	}

	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := New(log, validator.New(), tt.svc)

			r := httptest.NewRequest(http.MethodPost, "/auth/login_2fa", strings.NewReader(tt.body))
			r.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()

			h.ServeHTTP(w, r)

			require.Equal(t, tt.status, w.Code)

			if tt.status != http.StatusOK {
				return
			}

			var got resp.Tokens
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
			assert.Equal(t, "at", got.AccessToken)
			assert.Equal(t, "rt", got.RefreshToken)
		})
	}
}
