package enable2fa

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"messenger_auth/internal/auth"
	"messenger_auth/internal/middleware/authenticate"
	"messenger_auth/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubAuthenticator struct{}

func (stubAuthenticator) Authenticate(_ context.Context, token string) (models.Account, error) {
	if token != "good" {
		return models.Account{}, auth.ErrInvalidToken
	}

	return models.Account{ID: 9, Email: "a@b.io"}, nil
}

type stubEnabler struct {
	gotID int64
	err   error
}

func (s *stubEnabler) Enable2FA(_ context.Context, accountID int64) (string, string, error) {
	s.gotID = accountID
	if s.err != nil {
		return "", "", s.err
	}

	return "SECRET", "otpauth://totp/x", nil
}

func TestEnable2FAHandler(t *testing.T) {
	tests := []struct {
		name   string
		header string
		err    error
		status int
	}{
		{name: "success", header: "Bearer good", status: http.StatusOK},
		{name: "no token", status: http.StatusUnauthorized},
		{name: "bad token", header: "Bearer bad", status: http.StatusUnauthorized},
		{name: "account gone", header: "Bearer good", err: auth.ErrUserNotFound, status: http.StatusNotFound},
		{name: "store failure", header: "Bearer good", err: errors.New("boom"), status: http.StatusInternalServerError},
	}

	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubEnabler{err: tt.err}
			h := authenticate.New(log, stubAuthenticator{})(New(log, svc))

			r := httptest.NewRequest(http.MethodPost, "/auth/enable_2fa", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()

			h.ServeHTTP(w, r)

			require.Equal(t, tt.status, w.Code)

			if tt.status != http.StatusOK {
				return
			}

			var got Response
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
			assert.Equal(t, int64(9), svc.gotID)
			assert.Equal(t, "SECRET", got.TOTPSecret)
			assert.Equal(t, "otpauth://totp/x", got.ProvisioningURI)
		})
	}
}

func TestEnable2FAWithoutMiddleware(t *testing.T) {
	h := New(slog.New(slog.NewTextHandler(io.Discard, nil)), &stubEnabler{})

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/auth/enable_2fa", nil))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
