package entitlements

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/PromptForge/app/models"
)

// Store is the persistence contract the entitlement components need.
type Store interface {
	ReplaceEntitlements(ctx context.Context, orgID string, rows []models.OrgEntitlement) error
	ListEntitlements(ctx context.Context, orgID string) ([]models.OrgEntitlement, error)
}

// Applier rewrites an organization's entitlement set from its plan.
type Applier struct {
	catalog *Catalog
	store   Store
	reader  *Reader
}

// NewApplier creates an applier. reader may be nil; when set, its cache
// entry for the org is dropped after each successful write and a failed
// drop fails the apply so the caller retries.
func NewApplier(catalog *Catalog, store Store, reader *Reader) *Applier {
	return &Applier{catalog: catalog, store: store, reader: reader}
}

// Catalog returns the plan table the applier computes sets from.
func (a *Applier) Catalog() *Catalog {
	return a.catalog
}

// Apply replaces the org's entitlement set with the one derived from
// planCode and seats.
func (a *Applier) Apply(ctx context.Context, orgID, planCode string, seats int) (Set, error) {
	orgID = strings.TrimSpace(orgID)
	if orgID == "" {
		return Set{}, errors.New("org_id is required")
	}

	set, err := a.catalog.Compute(planCode, seats)
	if err != nil {
		return Set{}, err
	}
	if err := a.store.ReplaceEntitlements(ctx, orgID, set.Rows(orgID)); err != nil {
		return Set{}, fmt.Errorf("replace entitlements for org %s: %w", orgID, err)
	}

	if a.reader != nil {
		if err := a.reader.Invalidate(ctx, orgID); err != nil {
			return Set{}, err
		}
	}
	log.Infof("[Entitlements] Applied plan %s (%d seats) to org %s", set.PlanCode, set.Seats, orgID)
	return set, nil
}

// ApplyFallback writes the default plan for an org that no longer has an
// entitling subscription.
func (a *Applier) ApplyFallback(ctx context.Context, orgID string) (Set, error) {
	return a.Apply(ctx, orgID, string(a.catalog.DefaultPlan), 1)
}
