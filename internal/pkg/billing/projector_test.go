package billing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/PromptForge/app/models"
	"github.com/ManuelReschke/PromptForge/internal/pkg/entitlements"
)

func newTestProjector(t *testing.T) *Projector {
	t.Helper()
	catalog, err := entitlements.DefaultCatalog()
	require.NoError(t, err)
	resolver, err := DefaultPriceResolver(catalog)
	require.NoError(t, err)
	return NewProjector(resolver, string(catalog.DefaultPlan))
}

func int64Ptr(v int64) *int64 { return &v }

func timePtr(v time.Time) *time.Time { return &v }

func subscriptionEvent(kind EventType, snap SubscriptionSnapshot) *SubscriptionEvent {
	return &SubscriptionEvent{
		eventHeader: eventHeader{
			ID:       "evt_p",
			Kind:     kind,
			RawType:  "customer." + string(kind),
			Occurred: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		},
		Subscription: snap,
	}
}

func TestProjector_Seats(t *testing.T) {
	p := newTestProjector(t)

	tests := []struct {
		name     string
		quantity *int64
		want     int
	}{
		{name: "absent", quantity: nil, want: 1},
		{name: "zero", quantity: int64Ptr(0), want: 1},
		{name: "negative", quantity: int64Ptr(-4), want: 1},
		{name: "explicit", quantity: int64Ptr(7), want: 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			proj := p.Project(subscriptionEvent(EventSubscriptionUpdated, SubscriptionSnapshot{
				ID: "sub_1", ProviderStatus: "active", PriceID: "price_pro_monthly", Quantity: tt.quantity,
			}), "org_1")
			assert.Equal(t, tt.want, proj.Seats)
			assert.Equal(t, tt.want, proj.Subscription.Seats)
		})
	}
}

func TestProjector_StatusByEvent(t *testing.T) {
	p := newTestProjector(t)
	trialEnd := timePtr(time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC))

	tests := []struct {
		name     string
		kind     EventType
		status   string
		trialEnd *time.Time
		want     string
	}{
		{name: "created without trial", kind: EventSubscriptionCreated, status: "incomplete", want: models.BillingStatusActive},
		{name: "created with trial", kind: EventSubscriptionCreated, status: "trialing", trialEnd: trialEnd, want: models.BillingStatusTrialing},
		{name: "updated mirrors provider", kind: EventSubscriptionUpdated, status: "past_due", want: models.BillingStatusPastDue},
		{name: "deleted always cancels", kind: EventSubscriptionDeleted, status: "active", want: models.BillingStatusCanceled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			proj := p.Project(subscriptionEvent(tt.kind, SubscriptionSnapshot{
				ID: "sub_1", ProviderStatus: tt.status, PriceID: "price_pro_monthly", TrialEnd: tt.trialEnd,
			}), "org_1")
			assert.Equal(t, tt.want, proj.Subscription.Status)
		})
	}
}

func TestProjector_CanceledUsesDefaultPlan(t *testing.T) {
	p := newTestProjector(t)

	proj := p.Project(subscriptionEvent(EventSubscriptionDeleted, SubscriptionSnapshot{
		ID: "sub_1", PriceID: "price_enterprise_yearly", Quantity: int64Ptr(9),
	}), "org_1")

	assert.True(t, proj.Fallback)
	assert.Equal(t, PlanResolution{Code: "pilot", Resolved: true}, proj.Plan)
	assert.Equal(t, "pilot", proj.Subscription.PlanCode)
	assert.Equal(t, "price_enterprise_yearly", proj.Subscription.ProviderPriceID)
}

func TestProjector_UnknownPrice(t *testing.T) {
	p := newTestProjector(t)

	proj := p.Project(subscriptionEvent(EventSubscriptionUpdated, SubscriptionSnapshot{
		ID: "sub_1", ProviderStatus: "active", PriceID: "price_mystery",
	}), "org_1")

	assert.False(t, proj.Plan.Resolved)
	assert.False(t, proj.Fallback)
	assert.Empty(t, proj.Subscription.PlanCode)
	assert.Equal(t, "evt_p", proj.Subscription.LastEventID)
	require.NotNil(t, proj.Subscription.LastEventAt)
}
