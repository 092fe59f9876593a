package security

import (
	"fmt"
	"strings"
	"unicode"

	zxcvbn "github.com/nbutton23/zxcvbn-go"

	"github.com/Andiquis/xQor3/internal/core/port"
)

const (
	MinPasswordLength     = 8
	MaxPasswordLength     = 128
	defaultMinZxcvbnScore = 2
)

// PasswordViolation describes a single failed password rule.
type PasswordViolation struct {
	Code    string
	Message string
}

// PasswordPolicyError lists every rule a password failed.
type PasswordPolicyError struct {
	Violations []PasswordViolation
}

func (e *PasswordPolicyError) Error() string {
	return "password policy violated: " + strings.Join(e.Messages(), "; ")
}

// Messages returns the human readable violation messages in rule order.
func (e *PasswordPolicyError) Messages() []string {
	out := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		out = append(out, v.Message)
	}
	return out
}

// PasswordRule checks one aspect of a password. userInputs carry account attributes
// the password must not be built from.
type PasswordRule func(password string, userInputs []string) *PasswordViolation

// PasswordValidator applies every rule and reports all violations together.
type PasswordValidator struct {
	rules []PasswordRule
}

// NewPasswordValidator constructs a validator with the provided rules.
func NewPasswordValidator(rules ...PasswordRule) *PasswordValidator {
	copied := make([]PasswordRule, len(rules))
	copy(copied, rules)
	return &PasswordValidator{rules: copied}
}

// DefaultPasswordValidator enforces the registration policy: 8 to 128 characters,
// at least one lowercase, uppercase, digit and symbol, and a minimum zxcvbn score.
func DefaultPasswordValidator(minScore int) *PasswordValidator {
	if minScore <= 0 {
		minScore = defaultMinZxcvbnScore
	}
	return NewPasswordValidator(
		LengthRule(MinPasswordLength, MaxPasswordLength),
		RequireClassRule("lowercase", "password must contain at least one lowercase letter", unicode.IsLower),
		RequireClassRule("uppercase", "password must contain at least one uppercase letter", unicode.IsUpper),
		RequireClassRule("digit", "password must contain at least one number", unicode.IsDigit),
		RequireClassRule("symbol", "password must contain at least one special character", isSymbol),
		StrengthRule(minScore),
	)
}

// Validate returns a *PasswordPolicyError when any rule fails.
func (v *PasswordValidator) Validate(password string, userInputs ...string) error {
	if v == nil {
		return fmt.Errorf("password validator not configured")
	}
	var violations []PasswordViolation
	for _, rule := range v.rules {
		if violation := rule(password, userInputs); violation != nil {
			violations = append(violations, *violation)
		}
	}
	if len(violations) > 0 {
		return &PasswordPolicyError{Violations: violations}
	}
	return nil
}

// LengthRule bounds the password length in runes.
func LengthRule(min, max int) PasswordRule {
	return func(password string, _ []string) *PasswordViolation {
		n := len([]rune(password))
		switch {
		case n < min:
			return &PasswordViolation{Code: "min_length", Message: fmt.Sprintf("password must be at least %d characters long", min)}
		case max > 0 && n > max:
			return &PasswordViolation{Code: "max_length", Message: fmt.Sprintf("password must be at most %d characters long", max)}
		}
		return nil
	}
}

// RequireClassRule requires at least one rune satisfying match.
func RequireClassRule(code, message string, match func(rune) bool) PasswordRule {
	return func(password string, _ []string) *PasswordViolation {
		for _, r := range password {
			if match(r) {
				return nil
			}
		}
		return &PasswordViolation{Code: code, Message: message}
	}
}

// StrengthRule enforces a minimum zxcvbn score, penalising passwords derived from userInputs.
func StrengthRule(minScore int) PasswordRule {
	if minScore > 4 {
		minScore = 4
	}
	return func(password string, userInputs []string) *PasswordViolation {
		if minScore <= 0 || password == "" {
			return nil
		}
		if zxcvbn.PasswordStrength(password, userInputs).Score >= minScore {
			return nil
		}
		return &PasswordViolation{Code: "weak_password", Message: "password is too weak; choose a less predictable value"}
	}
}

func isSymbol(r rune) bool {
	return unicode.IsSymbol(r) || unicode.IsPunct(r)
}

var _ port.PasswordPolicyValidator = (*PasswordValidator)(nil)
