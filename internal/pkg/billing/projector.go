package billing

import (
	"github.com/ManuelReschke/PromptForge/app/models"
)

// Projection is the local state derived from one subscription event.
type Projection struct {
	Subscription models.BillingSubscription
	// Plan is the plan entitlements are computed from. For canceled
	// subscriptions it is the default plan.
	Plan     PlanResolution
	Seats    int
	Fallback bool
}

// Projector turns subscription snapshots into subscription rows.
type Projector struct {
	resolver    *PriceResolver
	defaultPlan string
}

func NewProjector(resolver *PriceResolver, defaultPlan string) *Projector {
	return &Projector{resolver: resolver, defaultPlan: defaultPlan}
}

// Project is pure: it reads nothing but the event and the price table.
func (p *Projector) Project(ev *SubscriptionEvent, orgID string) Projection {
	snap := ev.Subscription

	seats := 1
	if snap.Quantity != nil && *snap.Quantity > 0 {
		seats = int(*snap.Quantity)
	}

	var status string
	switch ev.Type() {
	case EventSubscriptionCreated:
		status = models.BillingStatusActive
		if snap.TrialEnd != nil {
			status = models.BillingStatusTrialing
		}
	case EventSubscriptionDeleted:
		status = models.BillingStatusCanceled
	default:
		status = normalizeStatus(snap.ProviderStatus)
	}

	plan := p.resolver.Resolve(snap.PriceID)
	occurred := ev.OccurredAt()

	proj := Projection{
		Subscription: models.BillingSubscription{
			OrgID:                  orgID,
			Provider:               models.BillingProviderStripe,
			ProviderSubscriptionID: snap.ID,
			ProviderCustomerID:     snap.CustomerID,
			ProviderPriceID:        snap.PriceID,
			Status:                 status,
			PlanCode:               plan.Code,
			Seats:                  seats,
			TrialEnd:               snap.TrialEnd,
			PeriodStart:            snap.PeriodStart,
			PeriodEnd:              snap.PeriodEnd,
			CancelAtPeriodEnd:      snap.CancelAtPeriodEnd,
			LastEventID:            ev.EventID(),
			LastEventAt:            &occurred,
		},
		Plan:  plan,
		Seats: seats,
	}

	if status == models.BillingStatusCanceled {
		proj.Fallback = true
		proj.Plan = PlanResolution{Code: p.defaultPlan, Resolved: true}
		proj.Subscription.PlanCode = p.defaultPlan
	}
	return proj
}
