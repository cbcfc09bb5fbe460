package models

import "time"

const (
	EntitlementKindFlag  = "flag"
	EntitlementKindLimit = "limit"
)

// UnlimitedEntitlement is stored in LimitValue for limits without an upper bound.
const UnlimitedEntitlement int64 = -1

// OrgEntitlement is one capability of an organization's derived entitlement set.
// The set for an org is always replaced as a whole, never patched row by row.
type OrgEntitlement struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	OrgID      string    `gorm:"type:varchar(64);not null;uniqueIndex:ux_billing_org_entitlements_org_cap,priority:1" json:"org_id"`
	Capability string    `gorm:"type:varchar(100);not null;uniqueIndex:ux_billing_org_entitlements_org_cap,priority:2" json:"capability"`
	Kind       string    `gorm:"type:varchar(10);not null" json:"kind"`
	Enabled    bool      `gorm:"default:false" json:"enabled"`
	LimitValue int64     `gorm:"default:0" json:"limit_value"`
	PlanCode   string    `gorm:"type:varchar(50);not null" json:"plan_code"`
	Seats      int       `gorm:"not null;default:1" json:"seats"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (OrgEntitlement) TableName() string {
	return "billing_org_entitlements"
}
