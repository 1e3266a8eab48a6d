// Package password hashes account credentials.
//
// New hashes are Argon2id. Accounts imported from the legacy back office
// carry bcrypt hashes ($2y$, $2a$, $2b$); those still verify and are
// reported by NeedsRehash so login can upgrade them in place.
package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

type argonParams struct {
	memory  uint32
	time    uint32
	threads uint8
	keyLen  uint32
	saltLen int
}

var current = argonParams{
	memory:  64 * 1024,
	time:    1,
	threads: 4,
	keyLen:  32,
	saltLen: 16,
}

var errMalformed = errors.New("malformed password hash")

// Hash returns the encoded Argon2id hash stored in users.password_hash.
func Hash(plain string) (string, error) {
	salt := make([]byte, current.saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	key := argon2.IDKey([]byte(plain), salt, current.time, current.memory, current.threads, current.keyLen)
	return encodeArgon(current, salt, key), nil
}

// Verify reports whether plain matches encoded, for either scheme.
func Verify(plain, encoded string) bool {
	if isBcrypt(encoded) {
		return bcrypt.CompareHashAndPassword([]byte(legacyPrefix(encoded)), []byte(plain)) == nil
	}
	params, salt, key, err := decodeArgon(encoded)
	if err != nil {
		return false
	}
	check := argon2.IDKey([]byte(plain), salt, params.time, params.memory, params.threads, uint32(len(key)))
	return subtle.ConstantTimeCompare(key, check) == 1
}

// NeedsRehash is true for bcrypt hashes and Argon2id hashes made with
// weaker parameters than the current ones.
func NeedsRehash(encoded string) bool {
	if isBcrypt(encoded) {
		return true
	}
	params, _, _, err := decodeArgon(encoded)
	if err != nil {
		return true
	}
	return params.memory < current.memory || params.time < current.time
}

func isBcrypt(encoded string) bool {
	for _, prefix := range []string{"$2y$", "$2a$", "$2b$"} {
		if strings.HasPrefix(encoded, prefix) {
			return true
		}
	}
	return false
}

// x/crypto/bcrypt does not accept the PHP $2y$ tag; the algorithm is identical.
func legacyPrefix(encoded string) string {
	if strings.HasPrefix(encoded, "$2y$") {
		return "$2a$" + encoded[4:]
	}
	return encoded
}

func encodeArgon(p argonParams, salt, key []byte) string {
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, p.memory, p.time, p.threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key))
}

func decodeArgon(encoded string) (argonParams, []byte, []byte, error) {
	var p argonParams
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return p, nil, nil, errMalformed
	}
	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return p, nil, nil, errMalformed
	}
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.memory, &p.time, &p.threads); err != nil {
		return p, nil, nil, errMalformed
	}
	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return p, nil, nil, errMalformed
	}
	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(key) == 0 {
		return p, nil, nil, errMalformed
	}
	return p, salt, key, nil
}
