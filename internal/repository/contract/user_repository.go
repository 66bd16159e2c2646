package contract

import (
	"context"

	"subtrack-be/internal/entity"
	"subtrack-be/internal/repository/specification"

	"github.com/google/uuid"
)

type UserRepository interface {
	Create(ctx context.Context, user *entity.User) error
	Update(ctx context.Context, user *entity.User) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.User, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.User, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)

	// Business Specific
	UpdateStripeCustomerId(ctx context.Context, userId uuid.UUID, customerId string) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
}
