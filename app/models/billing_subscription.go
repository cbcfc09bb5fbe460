package models

import "time"

// Billing provider constants used across billing-related models.
const (
	BillingProviderStripe = "stripe"
)

const (
	BillingStatusActive   = "active"
	BillingStatusTrialing = "trialing"
	BillingStatusPastDue  = "past_due"
	BillingStatusCanceled = "canceled"
)

// BillingSubscription mirrors the provider subscription of an organization.
// There is at most one row per org; later snapshots overwrite it in place.
type BillingSubscription struct {
	ID                     uint       `gorm:"primaryKey" json:"id"`
	OrgID                  string     `gorm:"type:varchar(64);not null;uniqueIndex:ux_billing_subscriptions_org" json:"org_id"`
	Provider               string     `gorm:"type:varchar(20);not null;default:'stripe'" json:"provider"`
	ProviderSubscriptionID string     `gorm:"type:varchar(191);not null;index" json:"provider_subscription_id"`
	ProviderCustomerID     string     `gorm:"type:varchar(191);not null;default:''" json:"provider_customer_id"`
	ProviderPriceID        string     `gorm:"type:varchar(191);not null;default:''" json:"provider_price_id"`
	Status                 string     `gorm:"type:varchar(32);not null;default:'active';index" json:"status"`
	PlanCode               string     `gorm:"type:varchar(50);not null;default:''" json:"plan_code"`
	Seats                  int        `gorm:"not null;default:1" json:"seats"`
	TrialEnd               *time.Time `gorm:"type:datetime;default:null" json:"trial_end,omitempty"`
	PeriodStart            *time.Time `gorm:"type:datetime;default:null" json:"period_start,omitempty"`
	PeriodEnd              *time.Time `gorm:"type:datetime;default:null" json:"period_end,omitempty"`
	CancelAtPeriodEnd      bool       `gorm:"default:false" json:"cancel_at_period_end"`
	LastEventID            string     `gorm:"type:varchar(191);not null;default:''" json:"last_event_id"`
	LastEventAt            *time.Time `gorm:"type:datetime;default:null" json:"last_event_at,omitempty"`
	CreatedAt              time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt              time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsEntitling reports whether the subscription grants its plan's capabilities.
func (s *BillingSubscription) IsEntitling() bool {
	if s == nil {
		return false
	}
	switch s.Status {
	case BillingStatusActive, BillingStatusTrialing, BillingStatusPastDue:
		return true
	default:
		return false
	}
}
