package billing

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82/webhook"
	"gorm.io/gorm"

	"github.com/ManuelReschke/PromptForge/app/models"
	"github.com/ManuelReschke/PromptForge/internal/pkg/entitlements"
)

const testSecret = "whsec_test_secret"

func eventPayload(t *testing.T, id, eventType string, object map[string]any) []byte {
	t.Helper()
	raw, err := json.Marshal(map[string]any{
		"id":          id,
		"object":      "event",
		"type":        eventType,
		"created":     1767225600,
		"api_version": "2025-03-31.basil",
		"livemode":    false,
		"data":        map[string]any{"object": object},
	})
	require.NoError(t, err)
	return raw
}

func subscriptionObject(subID, orgID, status, priceID string, quantity int) map[string]any {
	obj := map[string]any{
		"id":                   subID,
		"object":               "subscription",
		"customer":             "cus_123",
		"status":               status,
		"cancel_at_period_end": false,
		"current_period_start": 1767225600,
		"current_period_end":   1769904000,
		"metadata":             map[string]string{},
		"items": map[string]any{
			"object": "list",
			"data": []map[string]any{{
				"id":       "si_1",
				"price":    map[string]any{"id": priceID},
				"quantity": quantity,
			}},
		},
	}
	if orgID != "" {
		obj["metadata"] = map[string]string{"org_id": orgID}
	}
	return obj
}

func invoiceObject(invoiceID, subID string) map[string]any {
	return map[string]any{
		"id":           invoiceID,
		"object":       "invoice",
		"customer":     "cus_123",
		"subscription": subID,
	}
}

func sign(payload []byte, secret string) string {
	return webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    secret,
		Timestamp: time.Now(),
		Scheme:    "v1",
	}).Header
}

// fakeRepo is an in-memory Repository with failure injection.
type fakeRepo struct {
	mu        sync.Mutex
	subs      map[string]models.BillingSubscription
	ents      map[string][]models.OrgEntitlement
	processed map[string]models.BillingProcessedEvent

	upsertErr  error
	replaceErr error
	markErr    error
	lookupErr  error

	upserts  int
	replaces int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		subs:      map[string]models.BillingSubscription{},
		ents:      map[string][]models.OrgEntitlement{},
		processed: map[string]models.BillingProcessedEvent{},
	}
}

func (f *fakeRepo) FindSubscriptionByOrg(_ context.Context, orgID string) (*models.BillingSubscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sub, ok := f.subs[orgID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &sub, nil
}

func (f *fakeRepo) FindSubscriptionByProviderID(_ context.Context, id string) (*models.BillingSubscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, sub := range f.subs {
		if sub.ProviderSubscriptionID == id {
			s := sub
			return &s, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepo) UpsertSubscription(_ context.Context, sub *models.BillingSubscription, withPlan bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.upserts++
	if existing, ok := f.subs[sub.OrgID]; ok {
		sub.ID = existing.ID
		sub.CreatedAt = existing.CreatedAt
		if !withPlan {
			sub.PlanCode = existing.PlanCode
		}
	} else {
		sub.ID = uint(len(f.subs) + 1)
		sub.CreatedAt = time.Now()
	}
	sub.UpdatedAt = time.Now()
	f.subs[sub.OrgID] = *sub
	return nil
}

func (f *fakeRepo) ReplaceEntitlements(_ context.Context, orgID string, rows []models.OrgEntitlement) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.replaceErr != nil {
		return f.replaceErr
	}
	f.replaces++
	f.ents[orgID] = append([]models.OrgEntitlement(nil), rows...)
	return nil
}

func (f *fakeRepo) ListEntitlements(_ context.Context, orgID string) ([]models.OrgEntitlement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.OrgEntitlement(nil), f.ents[orgID]...), nil
}

func (f *fakeRepo) IsEventProcessed(_ context.Context, eventID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.lookupErr != nil {
		return false, f.lookupErr
	}
	_, ok := f.processed[eventID]
	return ok, nil
}

func (f *fakeRepo) MarkEventProcessed(_ context.Context, event *models.BillingProcessedEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.markErr != nil {
		return f.markErr
	}
	if _, ok := f.processed[event.EventID]; ok {
		return ErrEventAlreadyProcessed
	}
	f.processed[event.EventID] = *event
	return nil
}

func (f *fakeRepo) ListProcessedEvents(_ context.Context, _ int) ([]models.BillingProcessedEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.BillingProcessedEvent, 0, len(f.processed))
	for _, ev := range f.processed {
		out = append(out, ev)
	}
	return out, nil
}

func (f *fakeRepo) entitlementSet(orgID string) (entitlements.Set, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return entitlements.SetFromRows(f.ents[orgID])
}

func (f *fakeRepo) subscription(orgID string) (models.BillingSubscription, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sub, ok := f.subs[orgID]
	return sub, ok
}

func (f *fakeRepo) isProcessed(eventID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.processed[eventID]
	return ok
}

type telemetryRecord struct {
	eventType string
	outcome   Outcome
}

type recordingTelemetry struct {
	records chan telemetryRecord
}

func (r *recordingTelemetry) RecordWebhook(_ context.Context, eventType string, outcome Outcome, _ time.Duration) {
	r.records <- telemetryRecord{eventType: eventType, outcome: outcome}
}

func newTestService(t *testing.T, repo Repository, telemetry Telemetry) *Service {
	t.Helper()
	catalog, err := entitlements.DefaultCatalog()
	require.NoError(t, err)
	resolver, err := DefaultPriceResolver(catalog)
	require.NoError(t, err)

	return NewService(Deps{
		Verifier:  NewVerifier(testSecret, 0),
		Guard:     NewGuard(repo, nil),
		Projector: NewProjector(resolver, string(catalog.DefaultPlan)),
		Repo:      repo,
		Applier:   entitlements.NewApplier(catalog, repo, entitlements.NewReader(catalog, repo, nil)),
		Telemetry: telemetry,
	})
}
