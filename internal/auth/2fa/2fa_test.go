package twoFactorAuth

import (
	"encoding/base32"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RFC 6238 appendix B, SHA1 seed "12345678901234567890", truncated to 6 digits.
func TestRFC6238Vectors(t *testing.T) {
	s := New("Messenger")
	secret := base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString([]byte("12345678901234567890"))

	cases := map[int64]string{
		59:          "287082",
		1111111109:  "081804",
		1111111111:  "050471",
		1234567890:  "005924",
		2000000000:  "279037",
		20000000000: "353130",
	}

	for unix, want := range cases {
		got, err := s.CodeAt(secret, time.Unix(unix, 0))
		require.NoError(t, err)
		assert.Equal(t, want, got, unix)
		assert.True(t, s.VerifyAt(secret, want, time.Unix(unix, 0)), unix)
	}
}

func TestVerifyWindow(t *testing.T) {
	s := New("Messenger")
	secret, err := s.GenerateSecret()
	require.NoError(t, err)

	now := time.Date(2024, 5, 1, 12, 0, 15, 0, time.UTC)

	current, err := s.CodeAt(secret, now)
	require.NoError(t, err)
	previous, err := s.CodeAt(secret, now.Add(-period*time.Second))
	require.NoError(t, err)
	distant, err := s.CodeAt(secret, now.Add(10*period*time.Second))
	require.NoError(t, err)

	assert.True(t, s.VerifyAt(secret, current, now))
	assert.True(t, s.VerifyAt(secret, previous, now))
	if distant != current && distant != previous {
		assert.False(t, s.VerifyAt(secret, distant, now))
	}
}

func TestVerifyRejectsMalformedInput(t *testing.T) {
	s := New("Messenger")
	secret, err := s.GenerateSecret()
	require.NoError(t, err)

	now := time.Now()

	assert.False(t, s.VerifyAt(secret, "", now))
	assert.False(t, s.VerifyAt(secret, "12345", now))
	assert.False(t, s.VerifyAt(secret, "abcdef", now))
	assert.False(t, s.VerifyAt("not base32!", "123456", now))
	assert.False(t, s.VerifyAt("", "123456", now))
}

func TestVerifyUsesClock(t *testing.T) {
	s := New("Messenger")
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	secret, err := s.GenerateSecret()
	require.NoError(t, err)

	code, err := s.CodeAt(secret, fixed)
	require.NoError(t, err)

	assert.True(t, s.Verify(secret, code))
}

func TestGenerateSecretShape(t *testing.T) {
	s := New("Messenger")

	first, err := s.GenerateSecret()
	require.NoError(t, err)
	second, err := s.GenerateSecret()
	require.NoError(t, err)

	assert.Len(t, first, 32)
	assert.NotEqual(t, first, second)
	assert.Equal(t, strings.ToUpper(first), first)
}

func TestProvisioningURI(t *testing.T) {
	s := New("Messenger")

	uri := s.ProvisioningURI("JBSWY3DPEHPK3PXP", "a@x.com")

	assert.True(t, strings.HasPrefix(uri, "otpauth://totp/Messenger:a@x.com?"), uri)
	assert.Contains(t, uri, "secret=JBSWY3DPEHPK3PXP")
	assert.Contains(t, uri, "issuer=Messenger")
}
