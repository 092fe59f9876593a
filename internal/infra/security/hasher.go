package security

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Andiquis/xQor3/internal/core/port"
	"github.com/Andiquis/xQor3/internal/infra/config"
)

// ErrEmptyPassword is returned when hashing an empty secret.
var ErrEmptyPassword = errors.New("security: empty password")

// ErrUnknownHashFormat is returned when a stored hash matches no supported algorithm.
var ErrUnknownHashFormat = errors.New("security: unknown password hash format")

// PasswordHasher hashes with the configured algorithm and verifies any supported stored format,
// so switching algorithms keeps existing accounts working.
type PasswordHasher struct {
	primary port.PasswordHasher
	bcrypt  *BcryptHasher
	argon2  *Argon2Hasher
}

// NewPasswordHasher builds the hasher selected by security.password_algorithm.
func NewPasswordHasher(cfg config.SecuritySettings) (*PasswordHasher, error) {
	bh, err := NewBcryptHasher(cfg.BcryptCost)
	if err != nil {
		return nil, err
	}

	argonCfg := DefaultArgon2Config()
	if cfg.Argon2.Memory > 0 {
		argonCfg = Argon2Config{
			Memory:      cfg.Argon2.Memory,
			Iterations:  cfg.Argon2.Iterations,
			Parallelism: cfg.Argon2.Parallelism,
			SaltLength:  cfg.Argon2.SaltLength,
			KeyLength:   cfg.Argon2.KeyLength,
		}
	}
	ah, err := NewArgon2Hasher(argonCfg)
	if err != nil {
		return nil, err
	}

	h := &PasswordHasher{bcrypt: bh, argon2: ah}
	switch cfg.PasswordAlgorithm {
	case "", "bcrypt":
		h.primary = bh
	case "argon2id":
		h.primary = ah
	default:
		return nil, fmt.Errorf("security: unsupported password algorithm %q", cfg.PasswordAlgorithm)
	}
	return h, nil
}

// Hash hashes with the primary algorithm.
func (h *PasswordHasher) Hash(password string) (string, error) {
	return h.primary.Hash(password)
}

// Verify dispatches on the stored hash prefix.
func (h *PasswordHasher) Verify(password, encoded string) (bool, error) {
	switch {
	case strings.HasPrefix(encoded, "$argon2id$"):
		return h.argon2.Verify(password, encoded)
	case strings.HasPrefix(encoded, "$2a$"), strings.HasPrefix(encoded, "$2b$"), strings.HasPrefix(encoded, "$2y$"):
		return h.bcrypt.Verify(password, encoded)
	case encoded == "":
		return false, nil
	default:
		return false, ErrUnknownHashFormat
	}
}

var _ port.PasswordHasher = (*PasswordHasher)(nil)
