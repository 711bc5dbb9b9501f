// Package password hashes and verifies account passwords with argon2id.
//
// Digests use the PHC string format, so the cost parameters travel with the
// hash and older digests keep verifying after the configured cost changes.
package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	algorithmID = "argon2id"
	saltLength  = 16
	keyLength   = 32

	// maxCostFactor bounds how far a stored digest's costs may exceed the
	// larger of the configured and default costs before it is rejected.
	maxCostFactor = 4
	maxKeyLength  = 128
)

var ErrInvalidParams = errors.New("invalid argon2 parameters")

// Params are argon2id costs. Memory is in KiB.
type Params struct {
	Time        uint32
	Memory      uint32
	Parallelism uint8
}

func DefaultParams() Params {
	return Params{
		Time:        6,
		Memory:      102400,
		Parallelism: 8,
	}
}

type Hasher struct {
	params Params
}

func New(params Params) (*Hasher, error) {
	if params.Time == 0 || params.Memory == 0 || params.Parallelism == 0 {
		return nil, ErrInvalidParams
	}

	return &Hasher{params: params}, nil
}

func (h *Hasher) Hash(password string) (string, error) {
	const op = "password.Hash"

	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	key := argon2.IDKey([]byte(password), salt, h.params.Time, h.params.Memory, h.params.Parallelism, keyLength)

	return fmt.Sprintf(
		"$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		algorithmID,
		argon2.Version,
		h.params.Memory,
		h.params.Time,
		h.params.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify reports whether password matches digest. A malformed digest is
// treated as a wrong password.
func (h *Hasher) Verify(password, digest string) bool {
	d, ok := parse(digest)
	if !ok || !h.affordable(d) {
		return false
	}

	computed := argon2.IDKey([]byte(password), d.salt, d.params.Time, d.params.Memory, d.params.Parallelism, uint32(len(d.key)))

	return subtle.ConstantTimeCompare(computed, d.key) == 1
}

// NeedsRehash reports whether digest was produced with weaker costs than
// the hasher is configured with.
func (h *Hasher) NeedsRehash(digest string) bool {
	d, ok := parse(digest)
	if !ok {
		return true
	}

	return d.params.Time < h.params.Time ||
		d.params.Memory < h.params.Memory ||
		d.params.Parallelism < h.params.Parallelism
}

// affordable rejects digests whose costs would stall or exhaust the process.
func (h *Hasher) affordable(d decoded) bool {
	def := DefaultParams()

	maxTime := uint64(max(h.params.Time, def.Time)) * maxCostFactor
	maxMemory := uint64(max(h.params.Memory, def.Memory)) * maxCostFactor

	return uint64(d.params.Time) <= maxTime &&
		uint64(d.params.Memory) <= maxMemory &&
		len(d.key) <= maxKeyLength
}

type decoded struct {
	params Params
	salt   []byte
	key    []byte
}

func parse(digest string) (decoded, bool) {
	parts := strings.Split(digest, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != algorithmID {
		return decoded{}, false
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return decoded{}, false
	}

	var p Params
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.Memory, &p.Time, &p.Parallelism); err != nil {
		return decoded{}, false
	}
	if p.Time == 0 || p.Memory == 0 || p.Parallelism == 0 {
		return decoded{}, false
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil || len(salt) == 0 {
		return decoded{}, false
	}

	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(key) == 0 {
		return decoded{}, false
	}

	return decoded{params: p, salt: salt, key: key}, true
}
