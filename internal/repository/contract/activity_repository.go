package contract

import (
	"context"

	"subtrack-be/internal/entity"
	"subtrack-be/internal/repository/specification"
)

type ActivityRepository interface {
	Create(ctx context.Context, activity *entity.UserActivity) error
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.UserActivity, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
}
