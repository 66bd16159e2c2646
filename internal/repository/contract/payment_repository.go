package contract

import (
	"context"

	"subtrack-be/internal/entity"
	"subtrack-be/internal/repository/specification"
)

type PaymentRepository interface {
	// Create inserts a payment row. The stripe_payment_id unique index makes
	// this the idempotency gate for webhook replays: a duplicate insert
	// surfaces gorm.ErrDuplicatedKey, which callers treat as already-recorded.
	Create(ctx context.Context, payment *entity.Payment) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Payment, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Payment, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)

	// Dashboard Stats
	GetTotalRevenue(ctx context.Context) (int64, error)
	GetRecentPayments(ctx context.Context, limit int) ([]*entity.PaymentDetail, error)
}
