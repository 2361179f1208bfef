package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"

	"github.com/dmitrijs2005/palletkeeper/internal/common"
	"golang.org/x/crypto/pbkdf2"
)

const (
	DefaultIterations = 100_000
	saltLength        = 32
	keyLength         = 32
	credentialSep     = "$"
)

// PasswordHasher turns passwords into salted PBKDF2-SHA256 credentials of
// the form hex(salt)$hex(hash) and checks passwords against them.
type PasswordHasher struct {
	iterations int
}

type HasherOption func(*PasswordHasher)

// WithIterations overrides the PBKDF2 round count. Values below 1 are ignored.
func WithIterations(n int) HasherOption {
	return func(h *PasswordHasher) {
		if n > 0 {
			h.iterations = n
		}
	}
}

func NewPasswordHasher(opts ...HasherOption) *PasswordHasher {
	h := &PasswordHasher{iterations: DefaultIterations}
	for _, o := range opts {
		o(h)
	}
	return h
}

func (h *PasswordHasher) derive(password string, salt []byte) []byte {
	return pbkdf2.Key([]byte(password), salt, h.iterations, keyLength, sha256.New)
}

// Hash returns a fresh credential for password. Two calls never share a salt.
func (h *PasswordHasher) Hash(password string) (string, error) {
	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	key := h.derive(password, salt)
	defer common.WipeByteArray(key)

	return hex.EncodeToString(salt) + credentialSep + hex.EncodeToString(key), nil
}

// Verify reports whether password matches credential. Malformed or foreign
// credentials simply do not match.
func (h *PasswordHasher) Verify(password, credential string) bool {
	parts := strings.Split(credential, credentialSep)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return false
	}

	salt, err := hex.DecodeString(parts[0])
	if err != nil {
		return false
	}
	want, err := hex.DecodeString(parts[1])
	if err != nil {
		return false
	}

	got := h.derive(password, salt)
	defer common.WipeByteArray(got)

	return subtle.ConstantTimeCompare(got, want) == 1
}
