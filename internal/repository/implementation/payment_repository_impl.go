package implementation

import (
	"context"
	"errors"

	"subtrack-be/internal/entity"
	"subtrack-be/internal/mapper"
	"subtrack-be/internal/model"
	"subtrack-be/internal/repository/contract"
	"subtrack-be/internal/repository/specification"

	"gorm.io/gorm"
)

type PaymentRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.PaymentMapper
}

func NewPaymentRepository(db *gorm.DB) contract.PaymentRepository {
	return &PaymentRepositoryImpl{
		db:     db,
		mapper: mapper.NewPaymentMapper(),
	}
}

func (r *PaymentRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *PaymentRepositoryImpl) Create(ctx context.Context, payment *entity.Payment) error {
	m := r.mapper.ToModel(payment)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		// gorm.ErrDuplicatedKey passes through untouched so callers can
		// distinguish a replayed insert from a real failure.
		return err
	}
	*payment = *r.mapper.ToEntity(m)
	return nil
}

func (r *PaymentRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Payment, error) {
	var m model.Payment
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)

	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return r.mapper.ToEntity(&m), nil
}

func (r *PaymentRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Payment, error) {
	var models []*model.Payment
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)

	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}

	return r.mapper.ToEntities(models), nil
}

func (r *PaymentRepositoryImpl) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	var count int64
	query := r.applySpecifications(r.db.WithContext(ctx).Model(&model.Payment{}), specs...)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Dashboard Stats

func (r *PaymentRepositoryImpl) GetTotalRevenue(ctx context.Context) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&model.Payment{}).
		Where("status = ?", "succeeded").
		Select("COALESCE(SUM(amount), 0)").
		Scan(&total).Error
	return total, err
}

func (r *PaymentRepositoryImpl) GetRecentPayments(ctx context.Context, limit int) ([]*entity.PaymentDetail, error) {
	var rows []struct {
		model.Payment
		UserEmail string `gorm:"column:user_email"`
		PlanName  string `gorm:"column:plan_name"`
	}

	err := r.db.WithContext(ctx).Table("payments").
		Select("payments.*, users.email as user_email, COALESCE(subscription_plans.name, '') as plan_name").
		Joins("JOIN users ON users.id = payments.user_id").
		Joins("LEFT JOIN subscriptions ON subscriptions.id = payments.subscription_id").
		Joins("LEFT JOIN subscription_plans ON subscription_plans.id = subscriptions.plan_id").
		Order("payments.created_at DESC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	details := make([]*entity.PaymentDetail, 0, len(rows))
	for _, row := range rows {
		details = append(details, &entity.PaymentDetail{
			Id:              row.Id,
			UserId:          row.UserId,
			UserEmail:       row.UserEmail,
			PlanName:        row.PlanName,
			Amount:          row.Amount,
			Currency:        row.Currency,
			Status:          entity.PaymentStatus(row.Status),
			StripePaymentId: row.StripePaymentId,
			CreatedAt:       row.CreatedAt,
		})
	}

	return details, nil
}
