package kafka

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Andiquis/xQor3/internal/core/domain"
	"github.com/Andiquis/xQor3/internal/core/port"
)

// StubPublisher logs events instead of sending them. Used when no brokers are configured.
type StubPublisher struct {
	logger *zap.Logger
}

// NewStubPublisher constructs a log-only event publisher.
func NewStubPublisher(logger *zap.Logger) *StubPublisher {
	return &StubPublisher{logger: logger}
}

func (p *StubPublisher) log(eventType string, userID int64, at time.Time, fields ...zap.Field) {
	p.logger.Info("event published (stub)",
		append([]zap.Field{
			zap.String("event_type", eventType),
			zap.Int64("user_id", userID),
			zap.Time("timestamp", at.UTC()),
		}, fields...)...,
	)
}

func (p *StubPublisher) PublishUserRegistered(_ context.Context, event domain.UserRegisteredEvent) error {
	p.log(EventUserRegistered, event.UserID, event.RegisteredAt, zap.Strings("roles", event.Roles))
	return nil
}

func (p *StubPublisher) PublishRoleAssigned(_ context.Context, event domain.RoleAssignedEvent) error {
	p.log(EventRoleAssigned, event.UserID, event.AssignedAt, zap.String("role", event.RoleName))
	return nil
}

func (p *StubPublisher) PublishRoleRevoked(_ context.Context, event domain.RoleRevokedEvent) error {
	p.log(EventRoleRevoked, event.UserID, event.RevokedAt, zap.String("role", event.RoleName))
	return nil
}

func (p *StubPublisher) PublishAccountLocked(_ context.Context, event domain.AccountLockedEvent) error {
	p.log(EventAccountLocked, event.UserID, event.LockedAt, zap.Time("locked_until", event.LockedUntil))
	return nil
}

var _ port.EventPublisher = (*StubPublisher)(nil)
