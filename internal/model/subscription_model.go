package model

import (
	"time"

	"github.com/google/uuid"
)

type SubscriptionPlan struct {
	Id            uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Name          string    `gorm:"type:varchar(255);not null"`
	Slug          string    `gorm:"type:varchar(255);uniqueIndex;not null"`
	Description   string    `gorm:"type:text"`
	PriceAmount   int64     `gorm:"not null"` // minor currency unit
	Currency      string    `gorm:"type:varchar(3);not null;default:'usd'"`
	Interval      string    `gorm:"type:billing_interval;not null"`
	StripePriceId string    `gorm:"type:varchar(255);not null"`
	IsMostPopular bool      `gorm:"default:false"`
	IsActive      bool      `gorm:"default:true"`
	SortOrder     int       `gorm:"default:0"`
}

func (SubscriptionPlan) TableName() string {
	return "subscription_plans"
}

type Subscription struct {
	Id     uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	UserId uuid.UUID `gorm:"type:uuid;not null;index"`
	PlanId uuid.UUID `gorm:"type:uuid;not null;index"`
	// The unique index is load-bearing: it is what makes concurrent webhook
	// redeliveries safe, not the application-side existence check.
	StripeSubscriptionId string     `gorm:"type:varchar(255);uniqueIndex;not null"`
	Status               string     `gorm:"type:subscription_status;not null"`
	CurrentPeriodStart   time.Time  `gorm:"not null"`
	CurrentPeriodEnd     time.Time  `gorm:"not null"`
	CancelAtPeriodEnd    bool       `gorm:"default:false"`
	CanceledAt           *time.Time
	TrialStart           *time.Time
	TrialEnd             *time.Time
	CreatedAt            time.Time `gorm:"autoCreateTime"`
	UpdatedAt            time.Time `gorm:"autoUpdateTime"`
}

func (Subscription) TableName() string {
	return "subscriptions"
}
