package port

import (
	"context"

	"github.com/Andiquis/xQor3/internal/core/domain"
)

// EventPublisher publishes domain events to the message bus.
type EventPublisher interface {
	PublishUserRegistered(ctx context.Context, event domain.UserRegisteredEvent) error
	PublishRoleAssigned(ctx context.Context, event domain.RoleAssignedEvent) error
	PublishRoleRevoked(ctx context.Context, event domain.RoleRevokedEvent) error
	PublishAccountLocked(ctx context.Context, event domain.AccountLockedEvent) error
}
