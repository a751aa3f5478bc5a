// Package crypto provides the password hashers accounts are stored with.
package crypto

import (
	"errors"
	"fmt"
	"strings"

	"github.com/usermanagement/account-api/internal/core/ports"
)

var (
	ErrInvalidHash         = errors.New("password hash is not in a recognised format")
	ErrIncompatibleVersion = errors.New("password hash was made with an unsupported argon2 version")
)

const (
	AlgorithmArgon2id = "argon2id"
	AlgorithmBcrypt   = "bcrypt"
)

// NewHasher returns the hasher registered under algorithm.
func NewHasher(algorithm string, bcryptCost int) (ports.PasswordHasher, error) {
	switch strings.ToLower(strings.TrimSpace(algorithm)) {
	case "", AlgorithmArgon2id:
		return NewArgon2Hasher(DefaultArgon2Params), nil
	case AlgorithmBcrypt:
		return NewBcryptHasher(bcryptCost), nil
	default:
		return nil, fmt.Errorf("unknown password hasher %q", algorithm)
	}
}
