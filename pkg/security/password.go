package security

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"

	"github.com/campusmart/campusmart-backend/pkg/config"
)

// ErrInvalidHash signals a stored password hash that is not argon2id PHC text.
var ErrInvalidHash = errors.New("invalid argon2id hash")

var b64 = base64.RawStdEncoding

type argonParams struct {
	memory  uint32
	time    uint32
	threads uint8
	saltLen uint32
	keyLen  uint32
}

// PasswordCheck is the outcome of comparing a password with a stored hash.
// NeedsRehash is set on a match whose hash was produced with other parameters.
type PasswordCheck struct {
	Match       bool
	NeedsRehash bool
}

// PasswordHasher produces and checks argon2id hashes in the
// $argon2id$v=19$m=..,t=..,p=..$salt$key form.
type PasswordHasher struct {
	params argonParams
}

// NewPasswordHasher clamps the configured cost parameters into safe bounds.
func NewPasswordHasher(cfg config.PasswordConfig) *PasswordHasher {
	return &PasswordHasher{params: argonParams{
		memory:  clamp(cfg.ArgonMemoryKB, 8, 512*1024),
		time:    clamp(cfg.ArgonTime, 1, 10),
		threads: uint8(clamp(cfg.ArgonParallelism, 1, 255)),
		saltLen: clamp(cfg.ArgonSaltLen, 8, 64),
		keyLen:  clamp(cfg.ArgonKeyLen, 16, 64),
	}}
}

func (h *PasswordHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", errors.New("password cannot be empty")
	}
	salt := make([]byte, h.params.saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	p := h.params
	key := argon2.IDKey([]byte(password), salt, p.time, p.memory, p.threads, p.keyLen)
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, p.memory, p.time, p.threads, b64.EncodeToString(salt), b64.EncodeToString(key)), nil
}

func (h *PasswordHasher) Verify(password, encoded string) (PasswordCheck, error) {
	stored, salt, key, err := parseHash(encoded)
	if err != nil {
		return PasswordCheck{}, err
	}
	computed := argon2.IDKey([]byte(password), salt, stored.time, stored.memory, stored.threads, uint32(len(key)))
	if subtle.ConstantTimeCompare(key, computed) != 1 {
		return PasswordCheck{}, nil
	}
	return PasswordCheck{Match: true, NeedsRehash: stored != h.params}, nil
}

func parseHash(encoded string) (argonParams, []byte, []byte, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return argonParams{}, nil, nil, ErrInvalidHash
	}
	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return argonParams{}, nil, nil, ErrInvalidHash
	}
	var p argonParams
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.memory, &p.time, &p.threads); err != nil {
		return argonParams{}, nil, nil, ErrInvalidHash
	}
	salt, err := b64.DecodeString(parts[4])
	if err != nil || len(salt) == 0 {
		return argonParams{}, nil, nil, ErrInvalidHash
	}
	key, err := b64.DecodeString(parts[5])
	if err != nil || len(key) == 0 {
		return argonParams{}, nil, nil, ErrInvalidHash
	}
	p.saltLen = uint32(len(salt))
	p.keyLen = uint32(len(key))
	return p, salt, key, nil
}

func clamp(value, lo, hi int) uint32 {
	switch {
	case value < lo:
		return uint32(lo)
	case value > hi:
		return uint32(hi)
	default:
		return uint32(value)
	}
}
