package models

import "time"

// BillingProcessedEvent marks a provider event whose side effects are fully
// committed. The row is written last, after every dependent write succeeded.
type BillingProcessedEvent struct {
	EventID     string    `gorm:"primaryKey;type:varchar(191)" json:"event_id"`
	EventType   string    `gorm:"type:varchar(100);not null;default:'';index" json:"event_type"`
	Outcome     string    `gorm:"type:varchar(32);not null;default:''" json:"outcome"`
	ProcessedAt time.Time `gorm:"not null;index" json:"processed_at"`
}
