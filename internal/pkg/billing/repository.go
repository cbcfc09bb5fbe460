package billing

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ManuelReschke/PromptForge/app/models"
	"github.com/ManuelReschke/PromptForge/internal/pkg/entitlements"
)

// Repository provides DB operations used by the billing service.
// Find methods return gorm.ErrRecordNotFound when no row matches.
type Repository interface {
	entitlements.Store
	FindSubscriptionByOrg(ctx context.Context, orgID string) (*models.BillingSubscription, error)
	FindSubscriptionByProviderID(ctx context.Context, providerSubscriptionID string) (*models.BillingSubscription, error)
	UpsertSubscription(ctx context.Context, sub *models.BillingSubscription, withPlan bool) error
	IsEventProcessed(ctx context.Context, eventID string) (bool, error)
	MarkEventProcessed(ctx context.Context, event *models.BillingProcessedEvent) error
	ListProcessedEvents(ctx context.Context, limit int) ([]models.BillingProcessedEvent, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a billing repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) FindSubscriptionByOrg(ctx context.Context, orgID string) (*models.BillingSubscription, error) {
	var sub models.BillingSubscription
	if err := r.db.WithContext(ctx).Where("org_id = ?", orgID).First(&sub).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *gormRepository) FindSubscriptionByProviderID(ctx context.Context, providerSubscriptionID string) (*models.BillingSubscription, error) {
	var sub models.BillingSubscription
	err := r.db.WithContext(ctx).
		Where("provider = ? AND provider_subscription_id = ?", models.BillingProviderStripe, strings.TrimSpace(providerSubscriptionID)).
		Order("updated_at DESC").
		First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// UpsertSubscription writes the row keyed by org_id. With withPlan false the
// stored plan_code is left as it is.
func (r *gormRepository) UpsertSubscription(ctx context.Context, sub *models.BillingSubscription, withPlan bool) error {
	columns := []string{
		"provider",
		"provider_subscription_id",
		"provider_customer_id",
		"provider_price_id",
		"status",
		"seats",
		"trial_end",
		"period_start",
		"period_end",
		"cancel_at_period_end",
		"last_event_id",
		"last_event_at",
		"updated_at",
	}
	if withPlan {
		columns = append(columns, "plan_code")
	}

	// Rows loaded from the table carry their primary key; inserting it would
	// conflict on id rather than on org_id.
	sub.ID = 0
	sub.CreatedAt = time.Time{}

	db := r.db.WithContext(ctx)
	if err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "org_id"}},
		DoUpdates: clause.AssignmentColumns(columns),
	}).Create(sub).Error; err != nil {
		return err
	}

	// Ensure ID and plan_code reflect the persisted row after conflict updates.
	var persisted models.BillingSubscription
	if err := db.Where("org_id = ?", sub.OrgID).First(&persisted).Error; err != nil {
		return err
	}
	*sub = persisted
	return nil
}

// ReplaceEntitlements swaps the org's whole entitlement set in one transaction.
func (r *gormRepository) ReplaceEntitlements(ctx context.Context, orgID string, rows []models.OrgEntitlement) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("org_id = ?", orgID).Delete(&models.OrgEntitlement{}).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.Create(&rows).Error
	})
}

func (r *gormRepository) ListEntitlements(ctx context.Context, orgID string) ([]models.OrgEntitlement, error) {
	var rows []models.OrgEntitlement
	if err := r.db.WithContext(ctx).Where("org_id = ?", orgID).Order("capability ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *gormRepository) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.BillingProcessedEvent{}).Where("event_id = ?", eventID).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// MarkEventProcessed inserts the processed record if absent. A concurrent
// delivery that won the race yields ErrEventAlreadyProcessed.
func (r *gormRepository) MarkEventProcessed(ctx context.Context, event *models.BillingProcessedEvent) error {
	if event.ProcessedAt.IsZero() {
		event.ProcessedAt = time.Now().UTC()
	}
	tx := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "event_id"}},
		DoNothing: true,
	}).Create(event)
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return ErrEventAlreadyProcessed
	}
	return nil
}

func (r *gormRepository) ListProcessedEvents(ctx context.Context, limit int) ([]models.BillingProcessedEvent, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	var events []models.BillingProcessedEvent
	if err := r.db.WithContext(ctx).Order("processed_at DESC").Limit(limit).Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}
