package usecase

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/Andiquis/xQor3/internal/core/domain"
	"github.com/Andiquis/xQor3/internal/infra/logger"
)

var tracer = otel.Tracer("github.com/Andiquis/xQor3/internal/usecase")

type nopPublisher struct{}

func (nopPublisher) PublishUserRegistered(context.Context, domain.UserRegisteredEvent) error {
	return nil
}
func (nopPublisher) PublishRoleAssigned(context.Context, domain.RoleAssignedEvent) error { return nil }
func (nopPublisher) PublishRoleRevoked(context.Context, domain.RoleRevokedEvent) error   { return nil }
func (nopPublisher) PublishAccountLocked(context.Context, domain.AccountLockedEvent) error {
	return nil
}

type nopMetrics struct{}

func (nopMetrics) LoginAttempt(string) {}
func (nopMetrics) AccountLocked()      {}
func (nopMetrics) Registration(string) {}

func contextLogger(ctx context.Context, base *zap.Logger) *zap.Logger {
	if id := logger.RequestIDFromContext(ctx); id != "" {
		return base.With(zap.String("request_id", id))
	}
	return base
}
