package mapper

import (
	"subtrack-be/internal/entity"
	"subtrack-be/internal/model"
)

type PaymentMapper struct{}

func NewPaymentMapper() *PaymentMapper {
	return &PaymentMapper{}
}

func (m *PaymentMapper) ToEntity(p *model.Payment) *entity.Payment {
	if p == nil {
		return nil
	}
	return &entity.Payment{
		Id:              p.Id,
		UserId:          p.UserId,
		SubscriptionId:  p.SubscriptionId,
		StripePaymentId: p.StripePaymentId,
		Amount:          p.Amount,
		Currency:        p.Currency,
		Status:          entity.PaymentStatus(p.Status),
		Description:     p.Description,
		ReceiptURL:      p.ReceiptURL,
		CreatedAt:       p.CreatedAt,
	}
}

func (m *PaymentMapper) ToEntities(payments []*model.Payment) []*entity.Payment {
	entities := make([]*entity.Payment, 0, len(payments))
	for _, p := range payments {
		entities = append(entities, m.ToEntity(p))
	}
	return entities
}

func (m *PaymentMapper) ToModel(p *entity.Payment) *model.Payment {
	if p == nil {
		return nil
	}
	return &model.Payment{
		Id:              p.Id,
		UserId:          p.UserId,
		SubscriptionId:  p.SubscriptionId,
		StripePaymentId: p.StripePaymentId,
		Amount:          p.Amount,
		Currency:        p.Currency,
		Status:          string(p.Status),
		Description:     p.Description,
		ReceiptURL:      p.ReceiptURL,
		CreatedAt:       p.CreatedAt,
	}
}
