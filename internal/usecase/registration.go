package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/Andiquis/xQor3/internal/core/domain"
	"github.com/Andiquis/xQor3/internal/core/port"
	"github.com/Andiquis/xQor3/internal/infra/logger"
	"github.com/Andiquis/xQor3/internal/infra/telemetry"
	"github.com/Andiquis/xQor3/internal/repository"
)

// RegistrationInput is a normalized sign-up request.
type RegistrationInput struct {
	Email      string
	Password   string
	FirstName  string
	LastName   string
	Phone      *string
	NationalID *string
}

// RegistrationOptions tunes the default role granted at sign-up.
type RegistrationOptions struct {
	DefaultRole string
	// RequireDefaultRole fails registration when the default role is missing instead of logging a warning.
	RequireDefaultRole bool
}

// RegistrationService creates accounts and issues their first token.
type RegistrationService struct {
	users       port.UserRepository
	roles       port.RoleRepository
	assignments port.AssignmentRepository
	hasher      port.PasswordHasher
	policy      port.PasswordPolicyValidator
	tokens      *TokenIssuer
	opts        RegistrationOptions

	events  port.EventPublisher
	metrics port.AuthMetrics
	logger  *zap.Logger
	now     func() time.Time
}

// NewRegistrationService constructs a RegistrationService. policy may be nil to skip strength checks.
func NewRegistrationService(
	users port.UserRepository,
	roles port.RoleRepository,
	assignments port.AssignmentRepository,
	hasher port.PasswordHasher,
	policy port.PasswordPolicyValidator,
	tokens *TokenIssuer,
	opts RegistrationOptions,
) *RegistrationService {
	if opts.DefaultRole == "" {
		opts.DefaultRole = domain.RoleUser
	}
	return &RegistrationService{
		users:       users,
		roles:       roles,
		assignments: assignments,
		hasher:      hasher,
		policy:      policy,
		tokens:      tokens,
		opts:        opts,
		events:      nopPublisher{},
		metrics:     nopMetrics{},
		logger:      zap.NewNop(),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (s *RegistrationService) WithLogger(l *zap.Logger) *RegistrationService {
	if l != nil {
		s.logger = l
	}
	return s
}

func (s *RegistrationService) WithEvents(p port.EventPublisher) *RegistrationService {
	if p != nil {
		s.events = p
	}
	return s
}

func (s *RegistrationService) WithMetrics(m port.AuthMetrics) *RegistrationService {
	if m != nil {
		s.metrics = m
	}
	return s
}

func (s *RegistrationService) WithClock(clock func() time.Time) *RegistrationService {
	if clock != nil {
		s.now = clock
	}
	return s
}

// Register creates the account, grants the default role and issues a token.
func (s *RegistrationService) Register(ctx context.Context, in RegistrationInput) (domain.AuthResult, error) {
	ctx, span := tracer.Start(ctx, "RegistrationService.Register")
	defer span.End()

	result, err := s.register(ctx, in)
	switch {
	case err == nil:
		s.metrics.Registration(telemetry.OutcomeSuccess)
	case errors.Is(err, ErrConflict):
		s.metrics.Registration(telemetry.OutcomeConflict)
	default:
		s.metrics.Registration(telemetry.OutcomeError)
		span.RecordError(err)
		span.SetStatus(codes.Error, "registration failed")
	}
	return result, err
}

func (s *RegistrationService) register(ctx context.Context, in RegistrationInput) (domain.AuthResult, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	log := contextLogger(ctx, s.logger).With(zap.String("email", logger.MaskEmail(email)))

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return domain.AuthResult{}, conflict("email already registered")
	} else if !errors.Is(err, repository.ErrNotFound) {
		return domain.AuthResult{}, fmt.Errorf("lookup email: %w", err)
	}

	if in.NationalID != nil && *in.NationalID != "" {
		exists, err := s.users.ExistsByNationalID(ctx, *in.NationalID)
		if err != nil {
			return domain.AuthResult{}, fmt.Errorf("lookup national id: %w", err)
		}
		if exists {
			return domain.AuthResult{}, conflict("id already registered")
		}
	}

	if s.policy != nil {
		if err := s.policy.Validate(in.Password, email, in.FirstName, in.LastName); err != nil {
			return domain.AuthResult{}, &ValidationError{Messages: policyMessages(err)}
		}
	}

	if s.opts.RequireDefaultRole {
		if _, err := s.roles.GetByName(ctx, s.opts.DefaultRole); err != nil {
			log.Error("default role unavailable", zap.String("role", s.opts.DefaultRole), zap.Error(err))
			return domain.AuthResult{}, ErrRegistrationFailed
		}
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		log.Error("hash password", zap.Error(err))
		return domain.AuthResult{}, ErrRegistrationFailed
	}

	user := domain.User{
		Email:        email,
		Name:         strings.TrimSpace(in.FirstName) + " " + strings.TrimSpace(in.LastName),
		PasswordHash: hash,
		Phone:        in.Phone,
		NationalID:   in.NationalID,
		Active:       true,
		CreatedAt:    s.now(),
	}
	user.ID, err = s.users.Create(ctx, domain.NewUser{
		Email:        user.Email,
		Name:         user.Name,
		PasswordHash: user.PasswordHash,
		Phone:        user.Phone,
		NationalID:   user.NationalID,
	})
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			if repository.ConflictConstraint(err) == repository.ConstraintUserNationalID {
				return domain.AuthResult{}, conflict("id already registered")
			}
			return domain.AuthResult{}, conflict("email already registered")
		}
		log.Error("create user", zap.Error(err))
		return domain.AuthResult{}, ErrRegistrationFailed
	}

	roles := s.grantDefaultRole(ctx, log, user.ID)

	token, err := s.tokens.Issue(user.ID, user.Email, roles)
	if err != nil {
		log.Error("issue token", zap.Error(err))
		return domain.AuthResult{}, ErrRegistrationFailed
	}

	event := domain.UserRegisteredEvent{
		EventID:      uuid.NewString(),
		UserID:       user.ID,
		Email:        user.Email,
		Name:         user.Name,
		Roles:        roles,
		RegisteredAt: user.CreatedAt,
	}
	if err := s.events.PublishUserRegistered(ctx, event); err != nil {
		log.Warn("publish user registered event", zap.Error(err))
	}

	log.Info("user registered", zap.Int64("user_id", user.ID))
	return domain.AuthResult{Token: token, User: domain.NewPublicUser(user, roles)}, nil
}

// grantDefaultRole is best effort: a missing role or failed grant leaves the user without roles.
func (s *RegistrationService) grantDefaultRole(ctx context.Context, log *zap.Logger, userID int64) []string {
	role, err := s.roles.GetByName(ctx, s.opts.DefaultRole)
	if err != nil {
		log.Warn("default role not granted", zap.String("role", s.opts.DefaultRole), zap.Error(err))
		return []string{}
	}
	if _, err := s.assignments.Create(ctx, userID, role.ID, s.now()); err != nil {
		log.Warn("assign default role", zap.String("role", role.Name), zap.Error(err))
		return []string{}
	}
	return []string{role.Name}
}

type messageLister interface {
	Messages() []string
}

func policyMessages(err error) []string {
	var ml messageLister
	if errors.As(err, &ml) {
		return ml.Messages()
	}
	return []string{err.Error()}
}
