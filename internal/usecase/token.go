package usecase

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/Andiquis/xQor3/internal/core/domain"
	"github.com/Andiquis/xQor3/internal/infra/config"
)

// DefaultTokenLifetimeSeconds applies when the configured lifetime is absent or malformed.
const DefaultTokenLifetimeSeconds int64 = 86400

// MaxTokenLifetimeSeconds caps the configured lifetime at ten years. Longer values are
// treated as malformed.
const MaxTokenLifetimeSeconds int64 = 10 * 365 * 86400

var expiresInPattern = regexp.MustCompile(`^(\d+)([smhd])$`)

// ErrMissingSigningSecret is returned when no signing secret was injected.
var ErrMissingSigningSecret = errors.New("token signing secret is not configured")

type accessTokenClaims struct {
	Email string   `json:"email"`
	Roles []string `json:"roles"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies HS256 session tokens.
type TokenIssuer struct {
	secret    []byte
	expiresIn int64
	now       func() time.Time
}

// NewTokenIssuer builds an issuer from the injected JWT settings.
func NewTokenIssuer(cfg config.JWTSettings) (*TokenIssuer, error) {
	if strings.TrimSpace(cfg.Secret) == "" {
		return nil, ErrMissingSigningSecret
	}
	return &TokenIssuer{
		secret:    []byte(cfg.Secret),
		expiresIn: ParseExpiresIn(cfg.ExpiresIn),
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

// WithClock overrides the issuer clock for deterministic tests.
func (t *TokenIssuer) WithClock(clock func() time.Time) *TokenIssuer {
	if clock != nil {
		t.now = clock
	}
	return t
}

// ExpiresIn reports the token lifetime in seconds.
func (t *TokenIssuer) ExpiresIn() int64 { return t.expiresIn }

// ParseExpiresIn converts a compact duration such as "15m" or "24h" into seconds.
func ParseExpiresIn(value string) int64 {
	m := expiresInPattern.FindStringSubmatch(strings.TrimSpace(value))
	if m == nil {
		return DefaultTokenLifetimeSeconds
	}
	n, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil || n <= 0 {
		return DefaultTokenLifetimeSeconds
	}
	var unit int64
	switch m[2] {
	case "s":
		unit = 1
	case "m":
		unit = 60
	case "h":
		unit = 3600
	case "d":
		unit = 86400
	}
	if n > MaxTokenLifetimeSeconds/unit {
		return DefaultTokenLifetimeSeconds
	}
	return n * unit
}

// Issue signs a token whose subject is the decimal user id.
func (t *TokenIssuer) Issue(userID int64, email string, roles []string) (domain.IssuedToken, error) {
	if roles == nil {
		roles = []string{}
	}
	now := t.now()
	claims := accessTokenClaims{
		Email: email,
		Roles: roles,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   strconv.FormatInt(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(t.expiresIn) * time.Second)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return domain.IssuedToken{}, fmt.Errorf("sign access token: %w", err)
	}

	return domain.IssuedToken{
		AccessToken: signed,
		TokenType:   domain.TokenTypeBearer,
		ExpiresIn:   t.expiresIn,
	}, nil
}

// Parse verifies the signature and expiry of a token and returns its claims.
func (t *TokenIssuer) Parse(token string) (*domain.AccessTokenClaims, error) {
	var claims accessTokenClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(t.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredAccessToken
		}
		return nil, ErrInvalidAccessToken
	}
	if !parsed.Valid {
		return nil, ErrInvalidAccessToken
	}

	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return nil, ErrInvalidAccessToken
	}

	out := &domain.AccessTokenClaims{
		UserID: userID,
		Email:  claims.Email,
		Roles:  claims.Roles,
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	return out, nil
}
