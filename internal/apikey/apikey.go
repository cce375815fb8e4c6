// Package apikey issues opaque API keys and stores them only as salted
// argon2id hashes.
package apikey

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	keyPrefix   = "tb"
	lookupBytes = 6
	secretBytes = 32
	saltBytes   = 16

	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
	argonKeyLen  = 32
)

// ErrMalformed is returned for strings that are not API keys.
var ErrMalformed = errors.New("malformed api key")

// Key is a freshly issued API key. Plaintext must be shown to the owner
// once and then discarded; only Lookup, Salt and Hash are stored.
type Key struct {
	Plaintext string
	Lookup    string
	Salt      string
	Hash      string
}

// Generate issues a new random key of the form tb_<lookup>_<secret>.
func Generate() (Key, error) {
	lookup := make([]byte, lookupBytes)
	secret := make([]byte, secretBytes)
	salt := make([]byte, saltBytes)
	for _, b := range [][]byte{lookup, secret, salt} {
		if _, err := rand.Read(b); err != nil {
			return Key{}, fmt.Errorf("reading random bytes: %w", err)
		}
	}

	k := Key{
		Lookup: hex.EncodeToString(lookup),
		Salt:   base64.RawStdEncoding.EncodeToString(salt),
	}
	k.Plaintext = fmt.Sprintf("%s_%s_%s", keyPrefix, k.Lookup, base64.RawURLEncoding.EncodeToString(secret))
	k.Hash = hash(k.Plaintext, salt)
	return k, nil
}

// LookupOf extracts the lookup segment used to find a key's stored hash.
func LookupOf(plaintext string) (string, error) {
	parts := strings.SplitN(strings.TrimSpace(plaintext), "_", 3)
	if len(parts) != 3 || parts[0] != keyPrefix || len(parts[1]) != lookupBytes*2 || parts[2] == "" {
		return "", ErrMalformed
	}
	if _, err := hex.DecodeString(parts[1]); err != nil {
		return "", ErrMalformed
	}
	return parts[1], nil
}

// Verify reports whether plaintext hashes to storedHash under storedSalt.
func Verify(plaintext, storedSalt, storedHash string) bool {
	salt, err := base64.RawStdEncoding.DecodeString(storedSalt)
	if err != nil {
		return false
	}
	computed := hash(strings.TrimSpace(plaintext), salt)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(storedHash)) == 1
}

func hash(plaintext string, salt []byte) string {
	sum := argon2.IDKey([]byte(plaintext), salt, argonTime, argonMemory, argonThreads, argonKeyLen)
	return base64.RawStdEncoding.EncodeToString(sum)
}
