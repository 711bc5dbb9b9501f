// Package twoFactorAuth implements RFC 6238 TOTP secrets and codes
// (HMAC-SHA1, 6 digits, 30 second step, one step of skew either side).
package twoFactorAuth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"crypto/subtle"
	"encoding/base32"
	"encoding/binary"
	"fmt"
	"net/url"
	"strings"
	"time"
)

const (
	secretBytes = 20
	digits      = 6
	period      = 30
	skew        = 1
)

var encoding = base32.StdEncoding.WithPadding(base32.NoPadding)

type TwoFactorAuthentificator struct {
	issuer string
	now    func() time.Time
}

func New(issuer string) *TwoFactorAuthentificator {
	return &TwoFactorAuthentificator{
		issuer: issuer,
		now:    time.Now,
	}
}

// * GenerateSecret returns a fresh base32 secret (32 chars, no padding)
func (s *TwoFactorAuthentificator) GenerateSecret() (string, error) {
	const op = "twoFactorAuth.GenerateSecret"

	raw := make([]byte, secretBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return encoding.EncodeToString(raw), nil
}

// * Verify checks code against the current time step and its neighbours
func (s *TwoFactorAuthentificator) Verify(secret, code string) bool {
	return s.VerifyAt(secret, code, s.now())
}

func (s *TwoFactorAuthentificator) VerifyAt(secret, code string, at time.Time) bool {
	code = strings.TrimSpace(code)
	if len(code) != digits || strings.Trim(code, "0123456789") != "" {
		return false
	}

	key, err := decodeSecret(secret)
	if err != nil {
		return false
	}

	counter := at.Unix() / period
	for step := int64(-skew); step <= skew; step++ {
		if counter+step < 0 {
			continue
		}
		if subtle.ConstantTimeCompare([]byte(hotp(key, uint64(counter+step))), []byte(code)) == 1 {
			return true
		}
	}

	return false
}

// * CodeAt computes the code for the time step containing at
func (s *TwoFactorAuthentificator) CodeAt(secret string, at time.Time) (string, error) {
	const op = "twoFactorAuth.CodeAt"

	key, err := decodeSecret(secret)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return hotp(key, uint64(at.Unix()/period)), nil
}

// * ProvisioningURI builds the otpauth:// link authenticator apps scan
func (s *TwoFactorAuthentificator) ProvisioningURI(secret, account string) string {
	v := url.Values{}
	v.Set("secret", secret)
	v.Set("issuer", s.issuer)
	v.Set("algorithm", "SHA1")
	v.Set("digits", fmt.Sprint(digits))
	v.Set("period", fmt.Sprint(period))

	return "otpauth://totp/" + url.PathEscape(s.issuer+":"+account) + "?" + v.Encode()
}

func decodeSecret(secret string) ([]byte, error) {
	secret = strings.ToUpper(strings.ReplaceAll(secret, " ", ""))
	secret = strings.TrimRight(secret, "=")

	key, err := encoding.DecodeString(secret)
	if err != nil {
		return nil, err
	}
	if len(key) == 0 {
		return nil, fmt.Errorf("empty secret")
	}

	return key, nil
}

func hotp(key []byte, counter uint64) string {
	var msg [8]byte
	binary.BigEndian.PutUint64(msg[:], counter)

	mac := hmac.New(sha1.New, key)
	mac.Write(msg[:])
	sum := mac.Sum(nil)

	offset := sum[len(sum)-1] & 0x0f
	bin := binary.BigEndian.Uint32(sum[offset:offset+4]) & 0x7fffffff

	return fmt.Sprintf("%0*d", digits, bin%1000000)
}
