package security

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/crypto/argon2"
)

var errInvalidArgon2Params = errors.New("argon2: invalid parameters")

// Argon2Params tunes Argon2id password hashing. Stored hashes do not embed
// their parameters, so the values are deployment-wide and changing them
// invalidates previously stored credentials.
type Argon2Params struct {
	Memory      uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

var (
	defaultArgon2Params = Argon2Params{
		Memory:      64 * 1024,
		Iterations:  3,
		Parallelism: 4,
		SaltLength:  16,
		KeyLength:   32,
	}

	activeArgon2Params = defaultArgon2Params
	argon2ParamsMu     sync.RWMutex
)

// DefaultArgon2Params returns the built-in hashing parameters.
func DefaultArgon2Params() Argon2Params {
	return defaultArgon2Params
}

// CurrentArgon2Params returns the active hashing parameters.
func CurrentArgon2Params() Argon2Params {
	argon2ParamsMu.RLock()
	defer argon2ParamsMu.RUnlock()
	return activeArgon2Params
}

// ConfigureArgon2 installs hashing parameters after validation.
func ConfigureArgon2(params Argon2Params) error {
	if params.Memory < 8*1024 {
		return fmt.Errorf("%w: memory must be at least 8192 KiB", errInvalidArgon2Params)
	}
	if params.Iterations == 0 {
		return fmt.Errorf("%w: iterations must be greater than zero", errInvalidArgon2Params)
	}
	if params.Parallelism == 0 {
		return fmt.Errorf("%w: parallelism must be greater than zero", errInvalidArgon2Params)
	}
	if params.SaltLength < 8 {
		return fmt.Errorf("%w: salt length must be at least 8 bytes", errInvalidArgon2Params)
	}
	if params.KeyLength < 16 {
		return fmt.Errorf("%w: key length must be at least 16 bytes", errInvalidArgon2Params)
	}

	argon2ParamsMu.Lock()
	activeArgon2Params = params
	argon2ParamsMu.Unlock()
	return nil
}

// HashPassword generates an Argon2id hash using the active parameters.
// The resulting string is encoded as "salt:hash" with both components base64-encoded.
func HashPassword(password string) (string, error) {
	params := CurrentArgon2Params()

	salt := make([]byte, params.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	hash := argon2.IDKey([]byte(password), salt, params.Iterations, params.Memory, params.Parallelism, params.KeyLength)
	encodedSalt := base64.StdEncoding.EncodeToString(salt)
	encodedHash := base64.StdEncoding.EncodeToString(hash)

	return fmt.Sprintf("%s:%s", encodedSalt, encodedHash), nil
}

// VerifyPassword compares the provided password against a stored Argon2id hash.
func VerifyPassword(password, encoded string) (bool, error) {
	if password == "" || encoded == "" {
		return false, nil
	}

	parts := strings.Split(encoded, ":")
	if len(parts) != 2 {
		return false, fmt.Errorf("invalid password hash format")
	}

	salt, err := base64.StdEncoding.DecodeString(parts[0])
	if err != nil {
		return false, fmt.Errorf("decode salt: %w", err)
	}

	storedHash, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return false, fmt.Errorf("decode hash: %w", err)
	}

	params := CurrentArgon2Params()
	computed := argon2.IDKey([]byte(password), salt, params.Iterations, params.Memory, params.Parallelism, uint32(len(storedHash)))

	if subtle.ConstantTimeCompare(computed, storedHash) == 1 {
		return true, nil
	}

	return false, nil
}
