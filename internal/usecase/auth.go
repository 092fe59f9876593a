package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/Andiquis/xQor3/internal/core/domain"
	"github.com/Andiquis/xQor3/internal/core/port"
	"github.com/Andiquis/xQor3/internal/infra/config"
	"github.com/Andiquis/xQor3/internal/infra/logger"
	"github.com/Andiquis/xQor3/internal/infra/telemetry"
	"github.com/Andiquis/xQor3/internal/repository"
)

// LockoutPolicy bounds consecutive failed logins.
type LockoutPolicy struct {
	MaxAttempts int
	Duration    time.Duration
}

// LockoutPolicyFrom reads the policy from the auth settings, falling back to 5 attempts / 15 minutes.
func LockoutPolicyFrom(cfg config.AuthSettings) LockoutPolicy {
	p := LockoutPolicy{MaxAttempts: cfg.MaxLoginAttempts, Duration: cfg.LockoutDuration}
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 5
	}
	if p.Duration <= 0 {
		p.Duration = 15 * time.Minute
	}
	return p
}

// AuthService runs the login and lockout state machine.
type AuthService struct {
	users       port.UserRepository
	assignments port.AssignmentRepository
	hasher      port.PasswordHasher
	tokens      *TokenIssuer
	policy      LockoutPolicy

	events  port.EventPublisher
	metrics port.AuthMetrics
	logger  *zap.Logger
	now     func() time.Time
}

// NewAuthService constructs an AuthService.
func NewAuthService(
	users port.UserRepository,
	assignments port.AssignmentRepository,
	hasher port.PasswordHasher,
	tokens *TokenIssuer,
	policy LockoutPolicy,
) *AuthService {
	return &AuthService{
		users:       users,
		assignments: assignments,
		hasher:      hasher,
		tokens:      tokens,
		policy:      policy,
		events:      nopPublisher{},
		metrics:     nopMetrics{},
		logger:      zap.NewNop(),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (s *AuthService) WithLogger(l *zap.Logger) *AuthService {
	if l != nil {
		s.logger = l
	}
	return s
}

func (s *AuthService) WithEvents(p port.EventPublisher) *AuthService {
	if p != nil {
		s.events = p
	}
	return s
}

func (s *AuthService) WithMetrics(m port.AuthMetrics) *AuthService {
	if m != nil {
		s.metrics = m
	}
	return s
}

// WithClock overrides the service clock for deterministic tests.
func (s *AuthService) WithClock(clock func() time.Time) *AuthService {
	if clock != nil {
		s.now = clock
	}
	return s
}

// Login verifies credentials, applying the lockout policy before any password hashing.
func (s *AuthService) Login(ctx context.Context, email, password string) (domain.AuthResult, error) {
	ctx, span := tracer.Start(ctx, "AuthService.Login")
	defer span.End()

	result, outcome, err := s.login(ctx, email, password)
	s.metrics.LoginAttempt(outcome)
	span.SetAttributes(attribute.String("auth.outcome", outcome))
	if outcome == telemetry.OutcomeError {
		span.RecordError(err)
		span.SetStatus(codes.Error, "login failed")
	}
	return result, err
}

func (s *AuthService) login(ctx context.Context, email, password string) (domain.AuthResult, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	log := contextLogger(ctx, s.logger).With(zap.String("email", logger.MaskEmail(email)))

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.AuthResult{}, telemetry.OutcomeInvalidCredentials, ErrInvalidCredentials
		}
		return domain.AuthResult{}, telemetry.OutcomeError, fmt.Errorf("lookup user: %w", err)
	}

	now := s.now()
	switch user.StateAt(now) {
	case domain.UserStateDeactivated:
		return domain.AuthResult{}, telemetry.OutcomeDisabled, ErrAccountDisabled
	case domain.UserStateLocked:
		return domain.AuthResult{}, telemetry.OutcomeLocked, &AccountLockedError{
			Until:            *user.LockedUntil,
			MinutesRemaining: user.MinutesUntilUnlock(now),
		}
	}

	ok, err := s.hasher.Verify(password, user.PasswordHash)
	if err != nil {
		return domain.AuthResult{}, telemetry.OutcomeError, fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		if err := s.recordFailure(ctx, log, user, now); err != nil {
			return domain.AuthResult{}, telemetry.OutcomeError, err
		}
		return domain.AuthResult{}, telemetry.OutcomeInvalidCredentials, ErrInvalidCredentials
	}

	if err := s.users.RecordSuccessfulLogin(ctx, user.ID, now); err != nil {
		return domain.AuthResult{}, telemetry.OutcomeError, fmt.Errorf("record login: %w", err)
	}
	user.FailedLoginAttempts = 0
	user.LockedUntil = nil
	user.LastLoginAt = &now

	roles, err := s.assignments.ListActiveRoleNamesForUser(ctx, user.ID)
	if err != nil {
		return domain.AuthResult{}, telemetry.OutcomeError, fmt.Errorf("load roles: %w", err)
	}

	token, err := s.tokens.Issue(user.ID, user.Email, roles)
	if err != nil {
		return domain.AuthResult{}, telemetry.OutcomeError, err
	}

	log.Info("user logged in", zap.Int64("user_id", user.ID))
	return domain.AuthResult{Token: token, User: domain.NewPublicUser(*user, roles)}, telemetry.OutcomeSuccess, nil
}

// recordFailure bumps the failure counter and locks the account once the threshold is reached.
// The increment and the lock are separate writes; concurrent failures may lock one attempt early or late.
func (s *AuthService) recordFailure(ctx context.Context, log *zap.Logger, user *domain.User, now time.Time) error {
	attempts, err := s.users.RegisterFailedLogin(ctx, user.ID, now)
	if err != nil {
		return fmt.Errorf("register failed login: %w", err)
	}
	if attempts < s.policy.MaxAttempts {
		log.Debug("failed login", zap.Int64("user_id", user.ID), zap.Int("attempts", attempts))
		return nil
	}

	until := now.Add(s.policy.Duration)
	if err := s.users.LockUntil(ctx, user.ID, until); err != nil {
		return fmt.Errorf("lock account: %w", err)
	}
	s.metrics.AccountLocked()
	log.Warn("account locked",
		zap.Int64("user_id", user.ID),
		zap.Int("attempts", attempts),
		zap.Time("locked_until", until),
	)

	event := domain.AccountLockedEvent{
		EventID:        uuid.NewString(),
		UserID:         user.ID,
		FailedAttempts: attempts,
		LockedAt:       now,
		LockedUntil:    until,
	}
	if err := s.events.PublishAccountLocked(ctx, event); err != nil {
		log.Warn("publish account locked event", zap.Error(err))
	}
	return nil
}

// ParseAccessToken validates a bearer token for the HTTP layer.
func (s *AuthService) ParseAccessToken(token string) (*domain.AccessTokenClaims, error) {
	return s.tokens.Parse(token)
}
