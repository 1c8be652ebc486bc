package port

import (
	"context"

	"github.com/arklim/student-platform-auth/internal/core/domain"
)

// UserRepository looks up and creates account records.
type UserRepository interface {
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByID(ctx context.Context, id string) (*domain.User, error)
	Create(ctx context.Context, user domain.User) error
}
