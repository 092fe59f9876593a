package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/Andiquis/xQor3/internal/core/domain"
	"github.com/Andiquis/xQor3/internal/core/port"
	"github.com/Andiquis/xQor3/internal/infra/config"
)

const schemaVersion = "1.0"

const (
	EventUserRegistered = "user.registered"
	EventRoleAssigned   = "role.assigned"
	EventRoleRevoked    = "role.revoked"
	EventAccountLocked  = "user.locked"
)

// EventPublisher implements port.EventPublisher using Kafka. Messages are keyed by user id
// so all events of one account land on the same partition.
type EventPublisher struct {
	producer *Producer
	logger   *zap.Logger
	appCfg   config.AppSettings
}

// NewEventPublisher constructs a Kafka-backed event publisher.
func NewEventPublisher(producer *Producer, appCfg config.AppSettings, logger *zap.Logger) *EventPublisher {
	return &EventPublisher{producer: producer, appCfg: appCfg, logger: logger}
}

type eventEnvelope struct {
	EventID   string            `json:"event_id"`
	EventType string            `json:"event_type"`
	UserID    string            `json:"user_id"`
	Timestamp time.Time         `json:"timestamp"`
	Version   string            `json:"version"`
	Payload   any               `json:"payload"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

func (p *EventPublisher) publish(ctx context.Context, eventID, eventType string, userID int64, ts time.Time, payload any) error {
	if ts.IsZero() {
		ts = time.Now()
	}
	if eventID == "" {
		eventID = uuid.NewString()
	}

	metadata := map[string]string{
		"service":     p.appCfg.Name,
		"environment": p.appCfg.Env,
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		metadata["trace_id"] = sc.TraceID().String()
	}

	key := strconv.FormatInt(userID, 10)
	body, err := json.Marshal(eventEnvelope{
		EventID:   eventID,
		EventType: eventType,
		UserID:    key,
		Timestamp: ts.UTC(),
		Version:   schemaVersion,
		Payload:   payload,
		Metadata:  metadata,
	})
	if err != nil {
		return fmt.Errorf("marshal %s envelope: %w", eventType, err)
	}

	message := &sarama.ProducerMessage{
		Topic: p.producer.TopicName(eventType),
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(body),
	}

	select {
	case p.producer.Input() <- message:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PublishUserRegistered publishes user.registered events.
func (p *EventPublisher) PublishUserRegistered(ctx context.Context, event domain.UserRegisteredEvent) error {
	payload := struct {
		Email        string    `json:"email"`
		Name         string    `json:"name"`
		Roles        []string  `json:"roles"`
		RegisteredAt time.Time `json:"registered_at"`
	}{
		Email:        event.Email,
		Name:         event.Name,
		Roles:        event.Roles,
		RegisteredAt: event.RegisteredAt.UTC(),
	}
	return p.publish(ctx, event.EventID, EventUserRegistered, event.UserID, event.RegisteredAt, payload)
}

// PublishRoleAssigned publishes role.assigned events.
func (p *EventPublisher) PublishRoleAssigned(ctx context.Context, event domain.RoleAssignedEvent) error {
	payload := struct {
		AssignmentID string    `json:"assignment_id"`
		RoleID       string    `json:"role_id"`
		RoleName     string    `json:"role_name"`
		AssignedAt   time.Time `json:"assigned_at"`
	}{
		AssignmentID: strconv.FormatInt(event.AssignmentID, 10),
		RoleID:       strconv.FormatInt(int64(event.RoleID), 10),
		RoleName:     event.RoleName,
		AssignedAt:   event.AssignedAt.UTC(),
	}
	return p.publish(ctx, event.EventID, EventRoleAssigned, event.UserID, event.AssignedAt, payload)
}

// PublishRoleRevoked publishes role.revoked events.
func (p *EventPublisher) PublishRoleRevoked(ctx context.Context, event domain.RoleRevokedEvent) error {
	payload := struct {
		AssignmentID string    `json:"assignment_id"`
		RoleID       string    `json:"role_id"`
		RoleName     string    `json:"role_name"`
		RevokedAt    time.Time `json:"revoked_at"`
	}{
		AssignmentID: strconv.FormatInt(event.AssignmentID, 10),
		RoleID:       strconv.FormatInt(int64(event.RoleID), 10),
		RoleName:     event.RoleName,
		RevokedAt:    event.RevokedAt.UTC(),
	}
	return p.publish(ctx, event.EventID, EventRoleRevoked, event.UserID, event.RevokedAt, payload)
}

// PublishAccountLocked publishes user.locked events.
func (p *EventPublisher) PublishAccountLocked(ctx context.Context, event domain.AccountLockedEvent) error {
	payload := struct {
		FailedAttempts int       `json:"failed_attempts"`
		LockedAt       time.Time `json:"locked_at"`
		LockedUntil    time.Time `json:"locked_until"`
	}{
		FailedAttempts: event.FailedAttempts,
		LockedAt:       event.LockedAt.UTC(),
		LockedUntil:    event.LockedUntil.UTC(),
	}
	return p.publish(ctx, event.EventID, EventAccountLocked, event.UserID, event.LockedAt, payload)
}

var _ port.EventPublisher = (*EventPublisher)(nil)
