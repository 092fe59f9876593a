package port

import (
	"context"
	"time"

	"github.com/Andiquis/xQor3/internal/core/domain"
)

// UserRepository exposes persistence behavior for users.
type UserRepository interface {
	Create(ctx context.Context, user domain.NewUser) (int64, error)
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	ExistsByNationalID(ctx context.Context, nationalID string) (bool, error)
	List(ctx context.Context) ([]domain.User, error)
	SetActive(ctx context.Context, id int64, active bool) error

	// RegisterFailedLogin atomically increments the failure counter and returns the new value.
	// When the stored lock has already expired the counter restarts from zero and the lock is cleared.
	RegisterFailedLogin(ctx context.Context, id int64, now time.Time) (int, error)
	LockUntil(ctx context.Context, id int64, until time.Time) error
	RecordSuccessfulLogin(ctx context.Context, id int64, at time.Time) error
}
